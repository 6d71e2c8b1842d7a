package labelstore

import (
	"context"
	"log/slog"
	"sync"

	"github.com/teemow/mailbot/internal/client"
	"github.com/teemow/mailbot/internal/gmail"
	"github.com/teemow/mailbot/internal/logging"
)

// LabelAPI is the gateway surface the store needs. *client.Client
// implements it.
type LabelAPI interface {
	ListLabels(ctx context.Context) ([]gmail.Label, error)
	CreateLabel(ctx context.Context, name string) (gmail.Label, error)
	UpdateLabel(ctx context.Context, id, name string) (gmail.Label, error)
	DeleteLabel(ctx context.Context, id string) error
}

// Op identifies a store operation.
type Op string

const (
	OpFetch  Op = "fetch"
	OpCreate Op = "create"
	OpUpdate Op = "update"
	OpDelete Op = "delete"
)

var fallbacks = map[Op]string{
	OpFetch:  client.MsgFetchLabelsFailed,
	OpCreate: client.MsgCreateLabelFailed,
	OpUpdate: client.MsgUpdateLabelFailed,
	OpDelete: client.MsgDeleteLabelFailed,
}

// Error is the recorded failure of an operation. Message is safe to show.
type Error struct {
	Op      Op
	Message string
	Err     error
}

func (e *Error) Error() string { return e.Message }

func (e *Error) Unwrap() error { return e.Err }

// Editable reports whether a label may be renamed or deleted.
func Editable(l gmail.Label) bool {
	return l.Type == gmail.LabelTypeUser
}

type opError struct {
	err *Error
	seq uint64
}

// Store is a label cache over a LabelAPI. It is safe for concurrent use.
type Store struct {
	api    LabelAPI
	logger *slog.Logger

	mu       sync.Mutex
	labels   []gmail.Label
	loaded   bool
	issued   uint64
	applied  uint64
	inFlight map[Op]int
	errs     map[Op]opError
	errSeq   uint64
	subs     map[int]func()
	nextSub  int

	wg sync.WaitGroup
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// New creates an empty store over api.
func New(api LabelAPI, opts ...Option) *Store {
	s := &Store{
		api:      api,
		logger:   slog.Default(),
		inFlight: make(map[Op]int),
		errs:     make(map[Op]opError),
		subs:     make(map[int]func()),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "labelstore")
	return s
}

// Labels returns a copy of the last fetched labels. It is empty before the
// first successful Refresh.
func (s *Store) Labels() []gmail.Label {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]gmail.Label, len(s.labels))
	copy(out, s.labels)
	return out
}

// Loaded reports whether a refresh has succeeded.
func (s *Store) Loaded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loaded
}

// IsLoading reports whether a label list refresh is in flight.
func (s *Store) IsLoading() bool { return s.busy(OpFetch) }

// IsCreating reports whether a create is in flight.
func (s *Store) IsCreating() bool { return s.busy(OpCreate) }

// IsUpdating reports whether a rename is in flight.
func (s *Store) IsUpdating() bool { return s.busy(OpUpdate) }

// IsDeleting reports whether a delete is in flight.
func (s *Store) IsDeleting() bool { return s.busy(OpDelete) }

func (s *Store) busy(op Op) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inFlight[op] > 0
}

// OpErr returns the last failure of op, or nil.
func (s *Store) OpErr(op Op) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.errs[op]; ok {
		return e.err
	}
	return nil
}

// Err returns the most recent failure still recorded across all
// operations, or nil.
func (s *Store) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var latest opError
	for _, e := range s.errs {
		if e.seq > latest.seq {
			latest = e
		}
	}
	if latest.err == nil {
		return nil
	}
	return latest.err
}

// Subscribe registers fn to run after every change of labels, flags or
// errors. fn runs without the store lock held. The returned func removes
// the subscription.
func (s *Store) Subscribe(fn func()) (unsubscribe func()) {
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

func (s *Store) notify() {
	s.mu.Lock()
	subs := make([]func(), 0, len(s.subs))
	for _, fn := range s.subs {
		subs = append(subs, fn)
	}
	s.mu.Unlock()

	for _, fn := range subs {
		fn()
	}
}

// begin marks op in flight.
func (s *Store) begin(op Op) {
	s.mu.Lock()
	s.inFlight[op]++
	s.mu.Unlock()
	s.notify()
}

// finish clears the in-flight mark of op and records its outcome.
func (s *Store) finish(op Op, err error) *Error {
	s.mu.Lock()
	s.inFlight[op]--
	var recorded *Error
	if err != nil {
		recorded = s.setErrLocked(op, err)
	} else {
		delete(s.errs, op)
	}
	s.mu.Unlock()
	s.notify()

	if recorded != nil {
		s.logger.Warn("label operation failed", logging.Operation(string(op)), logging.Err(err))
	}
	return recorded
}

func (s *Store) setErrLocked(op Op, err error) *Error {
	s.errSeq++
	e := &Error{Op: op, Message: client.Message(err, fallbacks[op]), Err: err}
	s.errs[op] = opError{err: e, seq: s.errSeq}
	return e
}

// Refresh fetches the full label list. Only the most recently issued
// refresh may replace the cached list; an older response arriving later is
// discarded. On failure the cached list is kept.
func (s *Store) Refresh(ctx context.Context) error {
	s.mu.Lock()
	s.issued++
	gen := s.issued
	s.inFlight[OpFetch]++
	s.mu.Unlock()
	s.notify()

	labels, err := s.api.ListLabels(ctx)

	s.mu.Lock()
	s.inFlight[OpFetch]--
	stale := gen <= s.applied
	var recorded *Error
	switch {
	case stale:
	case err != nil:
		recorded = s.setErrLocked(OpFetch, err)
	default:
		s.applied = gen
		s.labels = append([]gmail.Label(nil), labels...)
		s.loaded = true
		delete(s.errs, OpFetch)
	}
	s.mu.Unlock()
	s.notify()

	if stale {
		s.logger.Debug("discarded stale label list", "generation", gen)
	}
	if recorded != nil {
		s.logger.Warn("label refresh failed", logging.Err(err))
		return recorded
	}
	return nil
}

// CreateLabel creates a label and refreshes the list on success. The
// returned error, if any, is the recorded *Error.
func (s *Store) CreateLabel(ctx context.Context, name string) (gmail.Label, error) {
	s.begin(OpCreate)
	label, err := s.api.CreateLabel(ctx, name)
	if recorded := s.finish(OpCreate, err); recorded != nil {
		return gmail.Label{}, recorded
	}
	_ = s.Refresh(ctx)
	return label, nil
}

// UpdateLabel renames a label and refreshes the list on success.
func (s *Store) UpdateLabel(ctx context.Context, id, name string) (gmail.Label, error) {
	s.begin(OpUpdate)
	label, err := s.api.UpdateLabel(ctx, id, name)
	if recorded := s.finish(OpUpdate, err); recorded != nil {
		return gmail.Label{}, recorded
	}
	_ = s.Refresh(ctx)
	return label, nil
}

// DeleteLabel deletes a label and refreshes the list on success.
func (s *Store) DeleteLabel(ctx context.Context, id string) error {
	s.begin(OpDelete)
	err := s.api.DeleteLabel(ctx, id)
	if recorded := s.finish(OpDelete, err); recorded != nil {
		return recorded
	}
	_ = s.Refresh(ctx)
	return nil
}

// RefreshAsync starts a Refresh and returns immediately.
func (s *Store) RefreshAsync(ctx context.Context) {
	s.goAsync(func() { _ = s.Refresh(ctx) })
}

// CreateLabelAsync starts a CreateLabel and returns immediately. The
// outcome is observable through IsCreating, OpErr and Labels.
func (s *Store) CreateLabelAsync(ctx context.Context, name string) {
	s.goAsync(func() { _, _ = s.CreateLabel(ctx, name) })
}

// UpdateLabelAsync starts an UpdateLabel and returns immediately.
func (s *Store) UpdateLabelAsync(ctx context.Context, id, name string) {
	s.goAsync(func() { _, _ = s.UpdateLabel(ctx, id, name) })
}

// DeleteLabelAsync starts a DeleteLabel and returns immediately.
func (s *Store) DeleteLabelAsync(ctx context.Context, id string) {
	s.goAsync(func() { _ = s.DeleteLabel(ctx, id) })
}

func (s *Store) goAsync(fn func()) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		fn()
	}()
}

// Wait blocks until all async operations have finished.
func (s *Store) Wait() {
	s.wg.Wait()
}
