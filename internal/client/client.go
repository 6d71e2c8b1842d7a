package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/teemow/mailbot/internal/gmail"
	"github.com/teemow/mailbot/internal/google"
	"github.com/teemow/mailbot/internal/instrumentation"
	"github.com/teemow/mailbot/internal/logging"
)

// DefaultBaseURL is the gateway API of a locally running server.
const DefaultBaseURL = "http://localhost:8080/api"

const defaultTimeout = 30 * time.Second

// Fallback messages used when a failed response carries no error field.
const (
	MsgFetchLabelsFailed  = "Failed to fetch Gmail labels"
	MsgCreateLabelFailed  = "Failed to create label"
	MsgUpdateLabelFailed  = "Failed to update label"
	MsgDeleteLabelFailed  = "Failed to delete label"
	MsgFetchEmailsFailed  = "Failed to fetch emails"
	MsgApplyLabelsFailed  = "Failed to apply labels"
	MsgRemoveLabelsFailed = "Failed to remove labels"
)

// APIError is a non-2xx gateway response.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return e.Message
}

// Message returns the caller-facing message of err: the gateway's message
// for an *APIError, fallback for anything else.
func Message(err error, fallback string) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	return fallback
}

// IsUnauthenticated reports whether err is a 401 from the gateway.
func IsUnauthenticated(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusUnauthorized
}

// Client calls the gateway API.
type Client struct {
	baseURL    string
	token      string
	sessionID  string
	httpClient *http.Client
	metrics    *instrumentation.Metrics
	logger     *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithToken sends token as the bearer credential.
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// WithSession sends the session id so the gateway can resolve a stored token.
func WithSession(id string) Option {
	return func(c *Client) { c.sessionID = id }
}

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithMetrics records gateway calls.
func WithMetrics(m *instrumentation.Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// New creates a gateway client. baseURL includes the API prefix, e.g.
// http://localhost:8080/api. An empty baseURL selects DefaultBaseURL.
func New(baseURL string, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout:   defaultTimeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = logging.WithService(c.logger, instrumentation.ServiceGateway)
	return c
}

// BaseURL returns the gateway base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

type labelsResponse struct {
	Labels []gmail.Label `json:"labels"`
}

type labelResponse struct {
	Label gmail.Label `json:"label"`
}

type emailsResponse struct {
	Emails []gmail.Email `json:"emails"`
}

type labelRequest struct {
	Name string `json:"name"`
}

type mutationRequest struct {
	EmailID  string   `json:"emailId"`
	LabelIDs []string `json:"labelIds"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// ListLabels returns every label of the mailbox.
func (c *Client) ListLabels(ctx context.Context) ([]gmail.Label, error) {
	var resp labelsResponse
	if err := c.do(ctx, instrumentation.OperationListLabels, http.MethodGet, "/labels", nil, &resp, MsgFetchLabelsFailed); err != nil {
		return nil, err
	}
	if resp.Labels == nil {
		resp.Labels = []gmail.Label{}
	}
	return resp.Labels, nil
}

// CreateLabel creates a user label.
func (c *Client) CreateLabel(ctx context.Context, name string) (gmail.Label, error) {
	var resp labelResponse
	err := c.do(ctx, instrumentation.OperationCreateLabel, http.MethodPost, "/labels", labelRequest{Name: name}, &resp, MsgCreateLabelFailed)
	return resp.Label, err
}

// UpdateLabel renames a label.
func (c *Client) UpdateLabel(ctx context.Context, id, name string) (gmail.Label, error) {
	var resp labelResponse
	err := c.do(ctx, instrumentation.OperationUpdateLabel, http.MethodPatch, "/labels/"+url.PathEscape(id), labelRequest{Name: name}, &resp, MsgUpdateLabelFailed)
	return resp.Label, err
}

// DeleteLabel deletes a label.
func (c *Client) DeleteLabel(ctx context.Context, id string) error {
	return c.do(ctx, instrumentation.OperationDeleteLabel, http.MethodDelete, "/labels/"+url.PathEscape(id), nil, nil, MsgDeleteLabelFailed)
}

// FetchEmails returns up to count recent emails. A count of zero or less
// lets the gateway apply its default.
func (c *Client) FetchEmails(ctx context.Context, count int) ([]gmail.Email, error) {
	path := "/emails/fetch"
	if count > 0 {
		path += "?count=" + strconv.Itoa(count)
	}
	var resp emailsResponse
	if err := c.do(ctx, instrumentation.OperationFetchEmails, http.MethodGet, path, nil, &resp, MsgFetchEmailsFailed); err != nil {
		return nil, err
	}
	if resp.Emails == nil {
		resp.Emails = []gmail.Email{}
	}
	return resp.Emails, nil
}

// ApplyLabels adds labelIDs to an email.
func (c *Client) ApplyLabels(ctx context.Context, emailID string, labelIDs []string) error {
	body := mutationRequest{EmailID: emailID, LabelIDs: labelIDs}
	return c.do(ctx, instrumentation.OperationApplyLabels, http.MethodPost, "/emails/labels", body, nil, MsgApplyLabelsFailed)
}

// RemoveLabels removes labelIDs from an email.
func (c *Client) RemoveLabels(ctx context.Context, emailID string, labelIDs []string) error {
	body := mutationRequest{EmailID: emailID, LabelIDs: labelIDs}
	return c.do(ctx, instrumentation.OperationRemoveLabels, http.MethodDelete, "/emails/labels", body, nil, MsgRemoveLabelsFailed)
}

func (c *Client) do(ctx context.Context, operation, method, path string, body, out any, fallback string) (err error) {
	ctx, span := instrumentation.StartUpstreamSpan(ctx, instrumentation.ServiceGateway, operation)
	start := time.Now()
	defer func() {
		status := instrumentation.StatusSuccess
		if err != nil {
			status = instrumentation.StatusError
			c.logger.DebugContext(ctx, "gateway request failed", logging.Operation(operation), logging.Err(err))
		}
		c.metrics.RecordUpstreamOperation(ctx, instrumentation.ServiceGateway, operation, status, time.Since(start))
		instrumentation.EndSpan(span, err)
	}()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if c.sessionID != "" {
		req.Header.Set(google.SessionHeader, c.sessionID)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to call gateway: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(resp, fallback)
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", path, err)
	}
	return nil
}

// decodeError reads the error field of a failed response.
func decodeError(resp *http.Response, fallback string) *APIError {
	apiErr := &APIError{StatusCode: resp.StatusCode, Message: fallback}
	var body errorResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<16)).Decode(&body); err == nil && body.Error != "" {
		apiErr.Message = body.Error
	}
	return apiErr
}
