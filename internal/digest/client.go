package digest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/teemow/mailbot/internal/gmail"
	"github.com/teemow/mailbot/internal/instrumentation"
	"github.com/teemow/mailbot/internal/logging"
)

// DefaultBaseURL is the hosted digest backend.
const DefaultBaseURL = "https://mailbot.up.railway.app/api"

const defaultTimeout = 30 * time.Second

// Error is a non-2xx backend response.
type Error struct {
	StatusCode int
	Status     string
}

func (e *Error) Error() string {
	return "API request failed: " + e.Status
}

// Client calls the digest backend.
type Client struct {
	baseURL    string
	httpClient *http.Client
	metrics    *instrumentation.Metrics
	logger     *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithMetrics records backend calls.
func WithMetrics(m *instrumentation.Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// NewClient creates a digest client. An empty baseURL selects DefaultBaseURL.
func NewClient(baseURL string, opts ...Option) *Client {
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
	c.logger = logging.WithService(c.logger, instrumentation.ServiceDigest)
	return c
}

// BaseURL returns the backend base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// FetchEmails returns the backend's view of the caller's recent emails.
func (c *Client) FetchEmails(ctx context.Context, token string) ([]gmail.Email, error) {
	var resp emailsResponse
	if err := c.do(ctx, instrumentation.OperationFetchEmails, http.MethodGet, "/emails/fetch", token, nil, &resp); err != nil {
		return nil, err
	}
	if resp.Emails == nil {
		resp.Emails = []gmail.Email{}
	}
	return resp.Emails, nil
}

// SummarizeEmails asks the backend to categorize and summarize emails.
func (c *Client) SummarizeEmails(ctx context.Context, token string, emails []gmail.Email) (*EmailSummary, error) {
	if emails == nil {
		emails = []gmail.Email{}
	}
	var summary EmailSummary
	if err := c.do(ctx, instrumentation.OperationSummarizeEmails, http.MethodPost, "/emails/summarize", token, summarizeRequest{Emails: emails}, &summary); err != nil {
		return nil, err
	}
	return &summary, nil
}

// GetDailyDigest returns today's digest.
func (c *Client) GetDailyDigest(ctx context.Context, token string) (*DailyDigest, error) {
	var resp digestResponse
	if err := c.do(ctx, instrumentation.OperationGetDigest, http.MethodGet, "/digest", token, nil, &resp); err != nil {
		return nil, err
	}
	return &resp.DailyDigest, nil
}

// UpdatePreferences stores digest preferences and returns the stored values.
func (c *Client) UpdatePreferences(ctx context.Context, token string, prefs UserPreferences) (*PreferencesResponse, error) {
	var resp PreferencesResponse
	if err := c.do(ctx, instrumentation.OperationUpdatePreferences, http.MethodPost, "/preferences", token, prefs, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// SendEmailNotification registers an address and sends a notification.
func (c *Client) SendEmailNotification(ctx context.Context, token string, req NotificationRequest) (*NotificationResponse, error) {
	if req.EmailData.Emails == nil {
		req.EmailData.Emails = []gmail.Email{}
	}
	var resp NotificationResponse
	if err := c.do(ctx, instrumentation.OperationSendNotification, http.MethodPost, "/notifications", token, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) do(ctx context.Context, operation, method, path, token string, body, out any) (err error) {
	ctx, span := instrumentation.StartUpstreamSpan(ctx, instrumentation.ServiceDigest, operation)
	start := time.Now()
	defer func() {
		status := instrumentation.StatusSuccess
		if err != nil {
			status = instrumentation.StatusError
			c.logger.WarnContext(ctx, "digest request failed", logging.Operation(operation), logging.Err(err))
		}
		c.metrics.RecordUpstreamOperation(ctx, instrumentation.ServiceDigest, operation, status, time.Since(start))
		instrumentation.EndSpan(span, err)
	}()

	u := c.baseURL + path + "?" + url.Values{"token": {token}}.Encode()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to call digest backend: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return &Error{StatusCode: resp.StatusCode, Status: statusText(resp)}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", path, err)
	}
	return nil
}

// statusText returns the reason phrase of resp, e.g. "Not Found".
func statusText(resp *http.Response) string {
	code := fmt.Sprintf("%d ", resp.StatusCode)
	if strings.HasPrefix(resp.Status, code) {
		return strings.TrimPrefix(resp.Status, code)
	}
	if text := http.StatusText(resp.StatusCode); text != "" {
		return text
	}
	return resp.Status
}
