// Package backend is the signed HTTP client for the CRM backend: deployment context, lead
// creation and one-time-code delivery and verification.
package backend

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
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/BTreeMap/LeadPipe/internal/errorsx"
	"github.com/BTreeMap/LeadPipe/internal/flow"
	"github.com/BTreeMap/LeadPipe/internal/models"
	"github.com/BTreeMap/LeadPipe/internal/observability"
	"github.com/BTreeMap/LeadPipe/internal/resilience"
)

const (
	// DefaultBaseURL is used when no API base URL is configured.
	DefaultBaseURL = "http://localhost:5000"
	// DefaultFrontendURL serves the OTP email template.
	DefaultFrontendURL = "http://localhost:3000"
	// DefaultTimeout bounds every backend request.
	DefaultTimeout = 15 * time.Second

	breakerThreshold  = 5
	breakerCooldown   = 30 * time.Second
	contextRetries    = 2
	contextRetryDelay = 500 * time.Millisecond
	maxErrorBody      = 512
)

var (
	// ErrCircuitOpen is returned while the breaker rejects calls after repeated failures.
	ErrCircuitOpen = resilience.ErrCircuitOpen
	// ErrMissingUserID is returned when a call needs a deployment id and none was given.
	ErrMissingUserID = errors.New("missing user id")
)

// StatusError is returned for non-2xx responses.
type StatusError struct {
	Endpoint string
	Status   int
	Message  string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s returned status %d: %s", e.Endpoint, e.Status, e.Message)
	}
	return fmt.Sprintf("%s returned status %d", e.Endpoint, e.Status)
}

// Client calls the backend. It is safe for concurrent use.
type Client struct {
	baseURL     string
	frontendURL string
	secret      string
	http        *http.Client
	breaker     *resilience.CircuitBreaker
	retry       resilience.RetryPolicy
	now         func() time.Time
}

// Opts holds configuration for the client.
type Opts struct {
	BaseURL     string
	FrontendURL string
	Secret      string
	Timeout     time.Duration
	HTTPClient  *http.Client
}

// Option configures the client.
type Option func(*Opts)

// WithBaseURL sets the API base URL (without /api/v1).
func WithBaseURL(u string) Option {
	return func(o *Opts) { o.BaseURL = u }
}

// WithFrontendURL sets the base URL serving the OTP email template.
func WithFrontendURL(u string) Option {
	return func(o *Opts) { o.FrontendURL = u }
}

// WithSecret sets the request signing secret.
func WithSecret(secret string) Option {
	return func(o *Opts) { o.Secret = secret }
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(o *Opts) { o.Timeout = d }
}

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(o *Opts) { o.HTTPClient = c }
}

// NewClient creates a backend client.
func NewClient(opts ...Option) *Client {
	cfg := Opts{BaseURL: DefaultBaseURL, FrontendURL: DefaultFrontendURL, Timeout: DefaultTimeout}
	for _, opt := range opts {
		opt(&cfg)
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: cfg.Timeout}
	}
	retry := resilience.NewRetryPolicy(contextRetries, contextRetryDelay)
	retry.Retryable = isTransportError
	return &Client{
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		frontendURL: strings.TrimRight(cfg.FrontendURL, "/"),
		secret:      cfg.Secret,
		http:        hc,
		// Only transport failures and 5xx responses indicate an unhealthy backend.
		breaker: resilience.NewCircuitBreaker(breakerThreshold, breakerCooldown).CountOnly(isBackendFailure),
		retry:   retry,
		now:     time.Now,
	}
}

// APIBase returns the versioned API root, e.g. for workflow attachment URLs.
func (c *Client) APIBase() string {
	return c.baseURL + "/api/v1"
}

func isTransportError(err error) bool {
	var se *StatusError
	return !errors.As(err, &se) && !errors.Is(err, context.Canceled) && !errors.Is(err, ErrCircuitOpen)
}

func isBackendFailure(err error) bool {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Status >= 500
	}
	return !errors.Is(err, context.Canceled)
}

// do sends a signed request and decodes a JSON response into out when out is non-nil.
func (c *Client) do(ctx context.Context, endpoint, method, path, userID string, body, out any) error {
	ctx, span := observability.StartSpan(ctx, "backend."+endpoint,
		attribute.String("http.method", method), attribute.String("backend.path", path))
	defer span.End()

	err := c.breaker.Execute(func() error {
		return c.send(ctx, endpoint, method, c.baseURL+path, path, userID, body, out)
	})
	outcome := "ok"
	if err != nil {
		outcome = string(errorsx.Reason(err))
		if errors.Is(err, ErrCircuitOpen) {
			err = errorsx.Wrap(err, errorsx.ReasonBackendCircuitOpen)
			outcome = string(errorsx.ReasonBackendCircuitOpen)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, outcome)
	}
	observability.RecordBackendRequest(endpoint, outcome)
	return err
}

func (c *Client) send(ctx context.Context, endpoint, method, fullURL, signPath, userID string, body, out any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return errorsx.Wrap(fmt.Errorf("failed to encode %s request: %w", endpoint, err), errorsx.ReasonBackendRequest)
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, fullURL, reader)
	if err != nil {
		return errorsx.Wrap(fmt.Errorf("failed to build %s request: %w", endpoint, err), errorsx.ReasonBackendRequest)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	sign(req, c.secret, signPath, userID, c.now())

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		slog.Error("Client.send: request failed", "endpoint", endpoint, "error", err)
		return errorsx.Wrap(fmt.Errorf("%s request failed: %w", endpoint, err), errorsx.ReasonBackendRequest)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return errorsx.Wrap(fmt.Errorf("failed to read %s response: %w", endpoint, err), errorsx.ReasonBackendRequest)
	}
	slog.Debug("Client.send: response received", "endpoint", endpoint, "status", resp.StatusCode, "duration", time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return errorsx.Wrap(&StatusError{Endpoint: endpoint, Status: resp.StatusCode, Message: errorMessage(data)}, errorsx.ReasonBackendStatus)
	}
	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return errorsx.Wrap(fmt.Errorf("failed to decode %s response: %w", endpoint, err), errorsx.ReasonBackendDecode)
	}
	return nil
}

// errorMessage extracts "message" from a JSON error body, or returns a truncated raw body.
func errorMessage(data []byte) string {
	var body struct {
		Message string `json:"message"`
	}
	if json.Unmarshal(data, &body) == nil && body.Message != "" {
		return body.Message
	}
	s := strings.TrimSpace(string(data))
	if len(s) > maxErrorBody {
		s = s[:maxErrorBody]
	}
	return s
}

// FetchContext loads the deployment context for userID. Transport errors are retried twice.
func (c *Client) FetchContext(ctx context.Context, userID string) (*models.Context, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, ErrMissingUserID
	}
	path := "/api/v1/users/public/" + url.PathEscape(userID) + "/context"
	var raw map[string]any
	err := c.retry.Do(ctx, func() error {
		raw = nil
		return c.do(ctx, "context", http.MethodGet, path, userID, nil, &raw)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch context for %s: %w", userID, err)
	}
	bc, err := NormalizeContext(userID, raw)
	if err != nil {
		return nil, errorsx.Wrap(err, errorsx.ReasonBackendDecode)
	}
	slog.Info("Client.FetchContext: context loaded", "userID", userID, "leadTypes", len(bc.LeadTypes),
		"services", len(bc.AllServiceNames()), "workflows", len(bc.Workflows))
	return bc, nil
}

// CreateLead submits a lead. Any 2xx response is success.
func (c *Client) CreateLead(ctx context.Context, userID string, lead flow.LeadPayload) error {
	if strings.TrimSpace(userID) == "" {
		return ErrMissingUserID
	}
	if lead.LeadPhoneNumber != "" {
		lead.LeadPhoneNumber = FormatE164(lead.LeadPhoneNumber)
	}
	path := "/api/v1/leads/public/" + url.PathEscape(userID)
	if err := c.do(ctx, "lead", http.MethodPost, path, userID, lead, nil); err != nil {
		return errorsx.Wrap(fmt.Errorf("failed to create lead: %w", err), errorsx.ReasonLeadCreate)
	}
	slog.Info("Client.CreateLead: lead created", "userID", userID, "leadType", lead.LeadType, "service", lead.ServiceType)
	return nil
}

// OTPTemplate fetches the HTML email template for the verification code. The frontend may
// answer with JSON {"htmlTemplate": ...} or with the raw HTML.
func (c *Client) OTPTemplate(ctx context.Context, customerName string) (string, error) {
	path := "/templates/otp-verification?customerName=" + url.QueryEscape(customerName)
	ctx, span := observability.StartSpan(ctx, "backend.otp_template")
	defer span.End()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.frontendURL+path, nil)
	if err != nil {
		return "", fmt.Errorf("failed to build template request: %w", err)
	}
	sign(req, c.secret, path, "", c.now())
	resp, err := c.http.Do(req)
	if err != nil {
		observability.RecordBackendRequest("otp_template", string(errorsx.ReasonBackendRequest))
		return "", fmt.Errorf("template request failed: %w", err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read template: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		observability.RecordBackendRequest("otp_template", string(errorsx.ReasonBackendStatus))
		return "", &StatusError{Endpoint: "otp_template", Status: resp.StatusCode}
	}
	observability.RecordBackendRequest("otp_template", "ok")
	var body struct {
		HTMLTemplate string `json:"htmlTemplate"`
	}
	if json.Unmarshal(data, &body) == nil {
		return body.HTMLTemplate, nil
	}
	return string(data), nil
}

// SendEmailOTP asks the backend to email a verification code. A missing template does not
// prevent sending.
func (c *Client) SendEmailOTP(ctx context.Context, userID, email, customerName string) error {
	if strings.TrimSpace(userID) == "" {
		return ErrMissingUserID
	}
	payload := map[string]string{"email": email}
	if tmpl, err := c.OTPTemplate(ctx, customerName); err != nil {
		slog.Warn("Client.SendEmailOTP: template unavailable, sending without it", "userID", userID, "error", err)
	} else if tmpl != "" {
		payload["htmlTemplate"] = tmpl
	}
	path := "/api/v1/otp/send-email/" + url.PathEscape(userID)
	if err := c.do(ctx, "otp_send_email", http.MethodPost, path, userID, payload, nil); err != nil {
		return errorsx.Wrap(fmt.Errorf("failed to send email code: %w", err), errorsx.ReasonOTPSend)
	}
	slog.Info("Client.SendEmailOTP: code sent", "userID", userID)
	return nil
}

// VerifyEmailOTP checks an email verification code.
func (c *Client) VerifyEmailOTP(ctx context.Context, userID, email, code string) error {
	if strings.TrimSpace(userID) == "" {
		return ErrMissingUserID
	}
	path := "/api/v1/otp/verify-email/" + url.PathEscape(userID)
	body := map[string]string{"email": email, "otp": code}
	if err := c.do(ctx, "otp_verify_email", http.MethodPost, path, userID, body, nil); err != nil {
		return errorsx.Wrap(fmt.Errorf("failed to verify email code: %w", err), errorsx.ReasonOTPVerify)
	}
	return nil
}

// SendSMSOTP asks the backend to text a verification code.
func (c *Client) SendSMSOTP(ctx context.Context, userID, phone string) error {
	if strings.TrimSpace(userID) == "" {
		return ErrMissingUserID
	}
	path := "/api/v1/otp/send-sms/" + url.PathEscape(userID)
	body := map[string]string{"phoneNumber": FormatE164(phone)}
	if err := c.do(ctx, "otp_send_sms", http.MethodPost, path, userID, body, nil); err != nil {
		return errorsx.Wrap(fmt.Errorf("failed to send sms code: %w", err), errorsx.ReasonOTPSend)
	}
	slog.Info("Client.SendSMSOTP: code sent", "userID", userID)
	return nil
}

// VerifySMSOTP checks a phone verification code.
func (c *Client) VerifySMSOTP(ctx context.Context, userID, phone, code string) error {
	if strings.TrimSpace(userID) == "" {
		return ErrMissingUserID
	}
	path := "/api/v1/otp/verify-sms/" + url.PathEscape(userID)
	body := map[string]string{"phoneNumber": FormatE164(phone), "otp": code}
	if err := c.do(ctx, "otp_verify_sms", http.MethodPost, path, userID, body, nil); err != nil {
		return errorsx.Wrap(fmt.Errorf("failed to verify sms code: %w", err), errorsx.ReasonOTPVerify)
	}
	return nil
}
