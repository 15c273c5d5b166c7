// Package ledger provides the JSON-over-HTTPS client for the ledger service.
package ledger

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	payerr "github.com/mrz1836/payflow/pkg/errors"
)

// DefaultTimeout is the per-request transport timeout. Ledger calls may
// involve real blockchain queries, so it is generous.
const DefaultTimeout = 60 * time.Second

// maxBodySize caps how much of a response is read.
const maxBodySize = 1 << 20

// Outcome labels reported to the Observer.
const (
	OutcomeOK              = "ok"
	OutcomeWait            = "wait"
	OutcomeFactorsRequired = "factors_required"
	OutcomeRejected        = "rejected"
	OutcomeInsufficient    = "insufficient"
	OutcomeError           = "error"
)

// API is the ledger service surface used by the send flow.
//
//go:generate mockgen -source=client.go -destination=mocks/mock_api.go -package=mocks
type API interface {
	FeePresets(ctx context.Context, token, currency string) (*PresetsReply, error)
	EstimateFee(ctx context.Context, token string, req *EstimateRequest) (EstimateResult, error)
	Send(ctx context.Context, token string, req *SendRequest) (Reply, error)
	Login(ctx context.Context, req *LoginRequest) (Reply, error)
}

// LogWriter provides logging operations.
type LogWriter interface {
	Debug(format string, args ...any)
	Error(format string, args ...any)
}

// Observer records request outcomes and latencies.
type Observer interface {
	ObserveLedgerRequest(operation, outcome string, elapsed time.Duration)
}

// Options configures a Client.
type Options struct {
	BaseURL       string
	Timeout       time.Duration
	RatePerSecond float64
	Burst         int
	HTTPClient    *http.Client
	Logger        LogWriter
	Observer      Observer
	UserAgent     string
}

// Client talks to the ledger service, one POST endpoint per operation.
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *RateLimiter
	logger     LogWriter
	observer   Observer
	userAgent  string
}

var _ API = (*Client)(nil)

// NewClient creates a ledger client.
func NewClient(opts *Options) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: DefaultTimeout},
		limiter:    DefaultRateLimiter(),
		logger:     nopLogger{},
		observer:   nopObserver{},
		userAgent:  "payflow",
	}
	if opts == nil {
		return c
	}

	c.baseURL = strings.TrimRight(opts.BaseURL, "/")
	if opts.HTTPClient != nil {
		c.httpClient = opts.HTTPClient
	} else if opts.Timeout > 0 {
		c.httpClient = &http.Client{Timeout: opts.Timeout}
	}
	if opts.RatePerSecond != 0 || opts.Burst != 0 {
		c.limiter = NewRateLimiter(opts.RatePerSecond, opts.Burst)
	}
	if opts.Logger != nil {
		c.logger = opts.Logger
	}
	if opts.Observer != nil {
		c.observer = opts.Observer
	}
	if opts.UserAgent != "" {
		c.userAgent = opts.UserAgent
	}
	return c
}

// FeePresets requests fee suggestions for a currency. A "not ready" answer
// is reported through PresetsReply.Wait, not as an error.
func (c *Client) FeePresets(ctx context.Context, token, currency string) (*PresetsReply, error) {
	start := time.Now()
	body, err := c.post(ctx, OpFeePresets, token, map[string]string{"currency": currency})
	if err != nil {
		c.observe(OpFeePresets, OutcomeError, start)
		return nil, err
	}

	reply, err := DecodePresets(body)
	if err != nil {
		c.observe(OpFeePresets, OutcomeError, start)
		return nil, err
	}

	switch {
	case reply.Wait:
		c.observe(OpFeePresets, OutcomeWait, start)
	case reply.Message != "" && len(reply.Presets) == 0:
		c.observe(OpFeePresets, OutcomeRejected, start)
	default:
		c.observe(OpFeePresets, OutcomeOK, start)
	}
	return reply, nil
}

// EstimateFee asks the ledger for a spend breakdown.
func (c *Client) EstimateFee(ctx context.Context, token string, req *EstimateRequest) (EstimateResult, error) {
	start := time.Now()
	body, err := c.post(ctx, OpEstimateFee, token, req)
	if err != nil {
		c.observe(OpEstimateFee, OutcomeError, start)
		return nil, err
	}

	result, err := DecodeEstimate(body)
	if err != nil {
		c.observe(OpEstimateFee, OutcomeError, start)
		return nil, err
	}

	switch result.(type) {
	case *InsufficientFunds:
		c.observe(OpEstimateFee, OutcomeInsufficient, start)
	case *Rejected:
		c.observe(OpEstimateFee, OutcomeRejected, start)
	default:
		c.observe(OpEstimateFee, OutcomeOK, start)
	}
	return result, nil
}

// Send submits a send request. It is never retried.
func (c *Client) Send(ctx context.Context, token string, req *SendRequest) (Reply, error) {
	return c.action(ctx, OpSend, token, req)
}

// Login exchanges credentials for a token.
func (c *Client) Login(ctx context.Context, req *LoginRequest) (Reply, error) {
	return c.action(ctx, OpLogin, "", req)
}

func (c *Client) action(ctx context.Context, op, token string, payload any) (Reply, error) {
	start := time.Now()
	body, err := c.post(ctx, op, token, payload)
	if err != nil {
		c.observe(op, OutcomeError, start)
		return nil, err
	}

	reply, err := DecodeReply(body)
	if err != nil {
		c.observe(op, OutcomeError, start)
		return nil, err
	}

	c.observe(op, replyOutcome(reply), start)
	return reply, nil
}

// post sends payload to the operation endpoint and returns the body.
// Non-2xx responses that carry a JSON body are returned for classification.
func (c *Client) post(ctx context.Context, op, token string, payload any) ([]byte, error) {
	if err := c.limiter.Wait(ctx, op); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, payerr.Wrap(payerr.ErrNetworkError, "%s: rate limiter", op)
	}

	reqBody, err := encode(payload)
	if err != nil {
		return nil, fmt.Errorf("marshaling %s request: %w", op, err)
	}

	url := c.baseURL + "/" + op
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("creating %s request: %w", op, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("User-Agent", c.userAgent)
	if token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}

	c.logger.Debug("ledger %s: POST %s", op, url)

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, context.Canceled
		}
		c.logger.Error("ledger %s: %v", op, err)
		return nil, payerr.Wrap(payerr.ErrNetworkError, "%s", op)
	}
	// Body.Close error is intentionally ignored as it only fails if the
	// connection is already broken, and there's no recovery action.
	defer func() { _ = httpResp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(httpResp.Body, maxBodySize))
	if err != nil {
		return nil, payerr.Wrap(payerr.ErrNetworkError, "%s: reading response", op)
	}

	c.logger.Debug("ledger %s: status %d, %d bytes", op, httpResp.StatusCode, len(body))

	// A failed login answers 401 with the reason in the body.
	if httpResp.StatusCode == http.StatusUnauthorized && (op != OpLogin || !looksLikeJSON(body)) {
		return nil, payerr.ErrNotAuthenticated
	}
	if httpResp.StatusCode >= 300 && !looksLikeJSON(body) {
		return nil, payerr.WithDetails(payerr.ErrNetworkError, map[string]string{
			"operation": op,
			"status":    strconv.Itoa(httpResp.StatusCode),
		})
	}
	return body, nil
}

func (c *Client) observe(op, outcome string, start time.Time) {
	c.observer.ObserveLedgerRequest(op, outcome, time.Since(start))
}

func replyOutcome(r Reply) string {
	switch r.(type) {
	case *FactorsRequired:
		return OutcomeFactorsRequired
	case *Rejected:
		return OutcomeRejected
	default:
		return OutcomeOK
	}
}

func looksLikeJSON(body []byte) bool {
	trimmed := bytes.TrimSpace(body)
	return len(trimmed) > 0 && (trimmed[0] == '{' || trimmed[0] == '"')
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Error(string, ...any) {}

type nopObserver struct{}

func (nopObserver) ObserveLedgerRequest(string, string, time.Duration) {}
