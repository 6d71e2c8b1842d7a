package workflow

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"sync"

	"github.com/teemow/mailbot/internal/client"
	"github.com/teemow/mailbot/internal/gmail"
	"github.com/teemow/mailbot/internal/logging"
)

// DefaultCount is the number of emails loaded when no count is configured.
const DefaultCount = 10

var (
	// ErrNothingToApply is returned by ApplySelected when no email is
	// selected or no label is pending.
	ErrNothingToApply = errors.New("no email selected or no labels pending")

	// ErrNoSelection is returned by RemoveLabel without a selected email.
	ErrNoSelection = errors.New("no email selected")

	// ErrUnknownEmail is returned by Select for an id not in the loaded list.
	ErrUnknownEmail = errors.New("email not loaded")
)

// EmailAPI is the gateway surface the workflow needs. *client.Client
// implements it.
type EmailAPI interface {
	FetchEmails(ctx context.Context, count int) ([]gmail.Email, error)
	ApplyLabels(ctx context.Context, emailID string, labelIDs []string) error
	RemoveLabels(ctx context.Context, emailID string, labelIDs []string) error
}

// Error is a recorded failure with a message safe to show.
type Error struct {
	Message string
	Err     error
}

func (e *Error) Error() string { return e.Message }

func (e *Error) Unwrap() error { return e.Err }

// Workflow holds the loaded emails, the selection and the pending labels.
// It is safe for concurrent use.
type Workflow struct {
	api    EmailAPI
	count  int
	logger *slog.Logger

	mu       sync.Mutex
	emails   []gmail.Email
	selected *gmail.Email
	pending  []string
	issued   uint64
	applied  uint64
	err      *Error
}

// Option configures a Workflow.
type Option func(*Workflow)

// WithCount sets how many emails Load fetches.
func WithCount(n int) Option {
	return func(w *Workflow) {
		if n > 0 {
			w.count = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(w *Workflow) { w.logger = l }
}

// New creates a workflow over api.
func New(api EmailAPI, opts ...Option) *Workflow {
	w := &Workflow{
		api:    api,
		count:  DefaultCount,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.logger = w.logger.With("component", "workflow")
	return w
}

// Count returns the number of emails Load fetches.
func (w *Workflow) Count() int {
	return w.count
}

// Emails returns a copy of the loaded emails.
func (w *Workflow) Emails() []gmail.Email {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]gmail.Email, len(w.emails))
	for i, e := range w.emails {
		out[i] = copyEmail(e)
	}
	return out
}

// Selected returns a copy of the selected email.
func (w *Workflow) Selected() (gmail.Email, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.selected == nil {
		return gmail.Email{}, false
	}
	return copyEmail(*w.selected), true
}

// Pending returns the staged label ids in the order they were added.
func (w *Workflow) Pending() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return slices.Clone(w.pending)
}

// Err returns the last recorded failure, or nil.
func (w *Workflow) Err() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err == nil {
		return nil
	}
	return w.err
}

// Load fetches the emails. A response older than one already applied is
// discarded. The selection is replaced by its refetched copy when present
// and kept as-is otherwise.
func (w *Workflow) Load(ctx context.Context) error {
	w.mu.Lock()
	w.issued++
	gen := w.issued
	w.mu.Unlock()

	emails, err := w.api.FetchEmails(ctx, w.count)

	w.mu.Lock()
	defer w.mu.Unlock()
	if gen <= w.applied {
		w.logger.Debug("discarded stale email list", "generation", gen)
		return nil
	}
	if err != nil {
		return w.failLocked(err, client.MsgFetchEmailsFailed)
	}

	w.applied = gen
	w.emails = emails
	w.err = nil
	if w.selected != nil {
		if i := w.indexLocked(w.selected.ID); i >= 0 {
			fresh := copyEmail(w.emails[i])
			w.selected = &fresh
		}
	}
	return nil
}

// Select makes the email with id the selection. Pending labels are kept.
func (w *Workflow) Select(id string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	i := w.indexLocked(id)
	if i < 0 {
		return ErrUnknownEmail
	}
	e := copyEmail(w.emails[i])
	w.selected = &e
	return nil
}

// ClearSelection drops the selection.
func (w *Workflow) ClearSelection() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.selected = nil
}

// TogglePending stages labelID, or unstages it when already staged.
func (w *Workflow) TogglePending(labelID string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if i := slices.Index(w.pending, labelID); i >= 0 {
		w.pending = slices.Delete(w.pending, i, i+1)
		return
	}
	w.pending = append(w.pending, labelID)
}

// CanApply reports whether an email is selected and a label is pending.
func (w *Workflow) CanApply() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.canApplyLocked()
}

func (w *Workflow) canApplyLocked() bool {
	return w.selected != nil && len(w.pending) > 0
}

// ApplySelected applies the pending labels to the selected email. On
// success the pending labels are cleared and the emails are refetched; the
// returned error is then the refetch result. On failure nothing changes.
func (w *Workflow) ApplySelected(ctx context.Context) error {
	w.mu.Lock()
	if !w.canApplyLocked() {
		w.mu.Unlock()
		return ErrNothingToApply
	}
	emailID := w.selected.ID
	labelIDs := slices.Clone(w.pending)
	w.mu.Unlock()

	if err := w.api.ApplyLabels(ctx, emailID, labelIDs); err != nil {
		w.mu.Lock()
		defer w.mu.Unlock()
		return w.failLocked(err, client.MsgApplyLabelsFailed)
	}

	w.mu.Lock()
	w.pending = nil
	w.err = nil
	w.mu.Unlock()

	w.logger.Info("applied labels", logging.EmailID(emailID), "labels", len(labelIDs))
	return w.Load(ctx)
}

// RemoveLabel removes one label from the selected email and refetches.
// Pending labels are not touched.
func (w *Workflow) RemoveLabel(ctx context.Context, labelID string) error {
	w.mu.Lock()
	if w.selected == nil {
		w.mu.Unlock()
		return ErrNoSelection
	}
	emailID := w.selected.ID
	w.mu.Unlock()

	if err := w.api.RemoveLabels(ctx, emailID, []string{labelID}); err != nil {
		w.mu.Lock()
		defer w.mu.Unlock()
		return w.failLocked(err, client.MsgRemoveLabelsFailed)
	}

	w.mu.Lock()
	w.err = nil
	w.mu.Unlock()

	w.logger.Info("removed label", logging.EmailID(emailID), logging.LabelID(labelID))
	return w.Load(ctx)
}

func (w *Workflow) failLocked(err error, fallback string) *Error {
	w.err = &Error{Message: client.Message(err, fallback), Err: err}
	w.logger.Warn("workflow operation failed", logging.Err(err))
	return w.err
}

func (w *Workflow) indexLocked(id string) int {
	return slices.IndexFunc(w.emails, func(e gmail.Email) bool { return e.ID == id })
}

func copyEmail(e gmail.Email) gmail.Email {
	e.LabelIDs = slices.Clone(e.LabelIDs)
	return e
}
