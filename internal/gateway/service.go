package gateway

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/oauth2"
	gmailapi "google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"github.com/teemow/mailbot/internal/gmail"
	"github.com/teemow/mailbot/internal/google"
	"github.com/teemow/mailbot/internal/instrumentation"
	"github.com/teemow/mailbot/internal/logging"
)

const (
	// DefaultEmailCount is used when a caller asks for zero or fewer emails.
	DefaultEmailCount = 10
	// MaxEmailCount is Gmail's maxResults ceiling for messages.list.
	MaxEmailCount = 500
	// DefaultFetchConcurrency bounds concurrent messages.get calls.
	DefaultFetchConcurrency = 10
)

// GmailAPI is the token-scoped Gmail surface the gateway calls.
// *gmail.Client implements it.
type GmailAPI interface {
	ListLabels(ctx context.Context) ([]*gmailapi.Label, error)
	CreateLabel(ctx context.Context, name string) (*gmailapi.Label, error)
	PatchLabel(ctx context.Context, id, name string) (*gmailapi.Label, error)
	DeleteLabel(ctx context.Context, id string) error
	ListMessageIDs(ctx context.Context, maxResults int64) ([]string, error)
	GetMessage(ctx context.Context, messageID string) (*gmailapi.Message, error)
	ModifyMessage(ctx context.Context, messageID string, add, remove []string) error
}

// ClientFactory builds a Gmail client bound to one access token.
type ClientFactory func(ctx context.Context, token *oauth2.Token) (GmailAPI, error)

// NewClientFactory returns the production factory. opts are passed to every
// client, which lets tests point the gateway at a fake server.
func NewClientFactory(opts ...option.ClientOption) ClientFactory {
	return func(ctx context.Context, token *oauth2.Token) (GmailAPI, error) {
		return gmail.NewClient(ctx, token, opts...)
	}
}

// Config configures a Service.
type Config struct {
	ClientFactory    ClientFactory
	Logger           *slog.Logger
	Metrics          *instrumentation.Metrics
	FetchConcurrency int
}

// Service implements the gateway operations.
type Service struct {
	newClient        ClientFactory
	logger           *slog.Logger
	metrics          *instrumentation.Metrics
	fetchConcurrency int
}

// NewService creates a Service. Zero values in cfg get defaults.
func NewService(cfg Config) *Service {
	if cfg.ClientFactory == nil {
		cfg.ClientFactory = NewClientFactory()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.FetchConcurrency <= 0 {
		cfg.FetchConcurrency = DefaultFetchConcurrency
	}
	return &Service{
		newClient:        cfg.ClientFactory,
		logger:           logging.WithService(cfg.Logger, instrumentation.ServiceGmail),
		metrics:          cfg.Metrics,
		fetchConcurrency: cfg.FetchConcurrency,
	}
}

// FetchConcurrency returns the messages.get concurrency limit.
func (s *Service) FetchConcurrency() int {
	return s.fetchConcurrency
}

// client checks the token and builds a Gmail client for it.
func (s *Service) client(ctx context.Context, token *oauth2.Token) (GmailAPI, error) {
	if !google.Valid(token) {
		return nil, Unauthenticated()
	}
	return s.clientUnchecked(ctx, token)
}

func (s *Service) clientUnchecked(ctx context.Context, token *oauth2.Token) (GmailAPI, error) {
	c, err := s.newClient(ctx, token)
	if err != nil {
		return nil, s.upstreamError(ctx, "client.create", err)
	}
	return c, nil
}

// call runs one upstream Gmail call inside a span and records its metrics.
func (s *Service) call(ctx context.Context, operation string, fn func(context.Context) error, attrs ...attribute.KeyValue) error {
	ctx, span := instrumentation.StartUpstreamSpan(ctx, instrumentation.ServiceGmail, operation, attrs...)
	start := time.Now()

	err := fn(ctx)

	status := instrumentation.StatusSuccess
	if err != nil {
		status = instrumentation.StatusError
	}
	s.metrics.RecordUpstreamOperation(ctx, instrumentation.ServiceGmail, operation, status, time.Since(start))
	instrumentation.EndSpan(span, err)

	if err != nil {
		return s.upstreamError(ctx, operation, err)
	}
	return nil
}

// upstreamError classifies and logs a failed upstream call.
func (s *Service) upstreamError(ctx context.Context, operation string, err error) error {
	gerr := Upstream(operation, err)

	attrs := []any{
		logging.Operation(operation),
		"detail", gerr.Detail(),
	}
	if code, reason, ok := GoogleAPIStatus(err); ok {
		attrs = append(attrs, "upstream_code", code, "upstream_reason", reason)
	}
	s.logger.ErrorContext(ctx, "gmail call failed", attrs...)
	return gerr
}

// ListLabels lists all labels of the mailbox.
func (s *Service) ListLabels(ctx context.Context, token *oauth2.Token) ([]gmail.Label, error) {
	c, err := s.client(ctx, token)
	if err != nil {
		return nil, err
	}

	var labels []*gmailapi.Label
	err = s.call(ctx, instrumentation.OperationListLabels, func(ctx context.Context) error {
		var err error
		labels, err = c.ListLabels(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}
	return gmail.LabelsFromAPI(labels), nil
}

// CreateLabel creates a user label. The name is trimmed before validation.
func (s *Service) CreateLabel(ctx context.Context, token *oauth2.Token, name string) (gmail.Label, error) {
	if !google.Valid(token) {
		return gmail.Label{}, Unauthenticated()
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return gmail.Label{}, InvalidArgument(MsgLabelNameRequired)
	}

	c, err := s.clientUnchecked(ctx, token)
	if err != nil {
		return gmail.Label{}, err
	}

	var created *gmailapi.Label
	err = s.call(ctx, instrumentation.OperationCreateLabel, func(ctx context.Context) error {
		var err error
		created, err = c.CreateLabel(ctx, name)
		return err
	})
	if err != nil {
		return gmail.Label{}, err
	}

	s.logger.InfoContext(ctx, "label created", logging.LabelID(created.Id))
	return gmail.LabelFromAPI(created), nil
}

// UpdateLabel renames a label.
func (s *Service) UpdateLabel(ctx context.Context, token *oauth2.Token, id, name string) (gmail.Label, error) {
	if !google.Valid(token) {
		return gmail.Label{}, Unauthenticated()
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return gmail.Label{}, InvalidArgument(MsgLabelIDRequired)
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return gmail.Label{}, InvalidArgument(MsgLabelNameRequired)
	}

	c, err := s.clientUnchecked(ctx, token)
	if err != nil {
		return gmail.Label{}, err
	}

	var updated *gmailapi.Label
	err = s.call(ctx, instrumentation.OperationUpdateLabel, func(ctx context.Context) error {
		var err error
		updated, err = c.PatchLabel(ctx, id, name)
		return err
	}, instrumentation.LabelIDAttr(id))
	if err != nil {
		return gmail.Label{}, err
	}

	s.logger.InfoContext(ctx, "label updated", logging.LabelID(id))
	return gmail.LabelFromAPI(updated), nil
}

// DeleteLabel deletes a label. Gmail rejects system and unknown ids, which
// surface as upstream errors.
func (s *Service) DeleteLabel(ctx context.Context, token *oauth2.Token, id string) error {
	if !google.Valid(token) {
		return Unauthenticated()
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return InvalidArgument(MsgLabelIDRequired)
	}

	c, err := s.clientUnchecked(ctx, token)
	if err != nil {
		return err
	}

	err = s.call(ctx, instrumentation.OperationDeleteLabel, func(ctx context.Context) error {
		return c.DeleteLabel(ctx, id)
	}, instrumentation.LabelIDAttr(id))
	if err != nil {
		return err
	}

	s.logger.InfoContext(ctx, "label deleted", logging.LabelID(id))
	return nil
}

// NormalizeCount applies the default and the ceiling to a requested email count.
func NormalizeCount(count int) int {
	if count <= 0 {
		return DefaultEmailCount
	}
	if count > MaxEmailCount {
		return MaxEmailCount
	}
	return count
}
