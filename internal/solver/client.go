// Package solver talks to the external optimization service: one POST per
// submit, plus downloads of the layout references a result points at.
package solver

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/piwi3910/slabcut-remote/internal/circuitbreaker"
	"github.com/piwi3910/slabcut-remote/internal/metrics"
	"github.com/piwi3910/slabcut-remote/internal/model"
)

// Body size limits.
const (
	maxResultBody = 1 << 20  // 1 MiB
	maxErrorBody  = 64 << 10 // 64 KiB
	maxLayoutBody = 32 << 20 // 32 MiB
)

// RequestIDHeader carries a fresh UUID on every outbound call.
const RequestIDHeader = "X-Request-ID"

// Config holds the connection settings for the optimization service.
type Config struct {
	Endpoint string
	Timeout  time.Duration // 0 = no timeout
	Breaker  circuitbreaker.Config
}

// ConfigFromApp builds a client Config from the application config.
func ConfigFromApp(cfg model.AppConfig) Config {
	return Config{
		Endpoint: cfg.Endpoint,
		Timeout:  time.Duration(cfg.RequestTimeoutSeconds) * time.Second,
		Breaker: circuitbreaker.Config{
			FailureThreshold: cfg.BreakerFailureThreshold,
			SuccessThreshold: cfg.BreakerSuccessThreshold,
			Timeout:          time.Duration(cfg.BreakerTimeoutSeconds) * time.Second,
			Name:             "optimizer",
		},
	}
}

// Option customises a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client. Its Timeout wins over Config.Timeout.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithLogger sets the logger used for call logs.
func WithLogger(l zerolog.Logger) Option {
	return func(c *Client) { c.log = l }
}

// WithMetrics records call metrics on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// Client is safe for concurrent use.
type Client struct {
	endpoint *url.URL
	http     *http.Client
	breaker  *circuitbreaker.CircuitBreaker
	log      zerolog.Logger
	metrics  *metrics.Metrics
	newID    func() string
}

// New validates the endpoint and builds a client.
func New(cfg Config, opts ...Option) (*Client, error) {
	endpoint, err := url.Parse(cfg.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("parse endpoint: %w", err)
	}
	if endpoint.Scheme != "http" && endpoint.Scheme != "https" {
		return nil, fmt.Errorf("endpoint %q: scheme must be http or https", cfg.Endpoint)
	}
	if endpoint.Host == "" {
		return nil, fmt.Errorf("endpoint %q: missing host", cfg.Endpoint)
	}

	c := &Client{
		endpoint: endpoint,
		http:     &http.Client{Timeout: cfg.Timeout},
		log:      log.Logger.With().Str("component", "solver").Logger(),
		newID:    func() string { return uuid.New().String() },
	}
	for _, opt := range opts {
		opt(c)
	}

	bcfg := cfg.Breaker
	bcfg.IsFailure = tripsBreaker
	bcfg.Logger = &c.log
	if m := c.metrics; m != nil {
		bcfg.OnStateChange = func(_, to circuitbreaker.State) { m.SetBreakerState(int(to)) }
	}
	c.breaker = circuitbreaker.New(bcfg)

	return c, nil
}

// Endpoint returns the optimization service URL.
func (c *Client) Endpoint() string {
	return c.endpoint.String()
}

// BreakerStats reports the state of the circuit breaker.
func (c *Client) BreakerStats() circuitbreaker.Stats {
	return c.breaker.GetStats()
}

// tripsBreaker counts unreachable services and server errors against the
// circuit. Client errors and malformed bodies do not.
func tripsBreaker(err error) bool {
	var terr *TransportError
	if errors.As(err, &terr) {
		return !errors.Is(err, context.Canceled)
	}
	var herr *HTTPError
	if errors.As(err, &herr) {
		return herr.StatusCode >= 500
	}
	return false
}

// wireResult mirrors the success body. slabUsed arrives as a JSON number.
type wireResult struct {
	SlabUsed        float64  `json:"slabUsed"`
	UnfittedPieceID []string `json:"unfittedPieceId"`
	Images          []string `json:"image"`
}

// Optimize sends req to the service and parses the result. Failures are a
// *TransportError, *HTTPError or *MalformedResponseError.
func (c *Client) Optimize(ctx context.Context, req model.OptimizationRequest) (model.OptimizationResult, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return model.OptimizationResult{}, fmt.Errorf("encode request: %w", err)
	}

	var result model.OptimizationResult
	err = c.breaker.Execute(ctx, func(ctx context.Context) error {
		var callErr error
		result, callErr = c.post(ctx, payload)
		return callErr
	})
	if errors.Is(err, circuitbreaker.ErrCircuitOpen) {
		c.log.Warn().Str("endpoint", c.Endpoint()).Msg("optimization call skipped, circuit open")
		return model.OptimizationResult{}, &TransportError{Op: "optimize", Err: err}
	}
	return result, err
}

func (c *Client) post(ctx context.Context, payload []byte) (model.OptimizationResult, error) {
	requestID := c.newID()
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint.String(), bytes.NewReader(payload))
	if err != nil {
		return model.OptimizationResult{}, &TransportError{Op: "optimize", Err: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set(RequestIDHeader, requestID)

	logger := c.log.With().Str("request_id", requestID).Logger()
	logger.Debug().Int("bytes", len(payload)).Str("endpoint", c.endpoint.String()).Msg("sending optimization request")

	start := time.Now()
	resp, err := c.http.Do(httpReq)
	if err != nil {
		c.metrics.RecordOptimizerCall(time.Since(start), 0)
		logger.Warn().Err(err).Msg("optimization request failed")
		return model.OptimizationResult{}, &TransportError{Op: "optimize", Err: err}
	}
	defer resp.Body.Close()

	limit := int64(maxResultBody)
	if !isSuccess(resp.StatusCode) {
		limit = maxErrorBody
	}
	body, readErr := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	c.metrics.RecordOptimizerCall(time.Since(start), resp.StatusCode)

	logger.Info().
		Int("status", resp.StatusCode).
		Dur("duration", time.Since(start)).
		Int("response_bytes", len(body)).
		Msg("optimization response received")

	if !isSuccess(resp.StatusCode) {
		if int64(len(body)) > limit {
			body = body[:limit]
		}
		return model.OptimizationResult{}, &HTTPError{StatusCode: resp.StatusCode, Body: body}
	}
	if readErr != nil {
		return model.OptimizationResult{}, &TransportError{Op: "optimize", Err: readErr}
	}
	if int64(len(body)) > limit {
		return model.OptimizationResult{}, &MalformedResponseError{Err: fmt.Errorf("body exceeds %d bytes", limit)}
	}
	return decodeResult(body)
}

// decodeResult parses a success body. Missing fields stay empty; anything
// that is not a JSON object is malformed.
func decodeResult(body []byte) (model.OptimizationResult, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return model.OptimizationResult{}, &MalformedResponseError{Err: errors.New("expected a JSON object")}
	}

	var w wireResult
	if err := json.Unmarshal(trimmed, &w); err != nil {
		return model.OptimizationResult{}, &MalformedResponseError{Err: err}
	}

	result := model.OptimizationResult{
		SlabUsed:        int(w.SlabUsed),
		UnfittedPieceID: w.UnfittedPieceID,
		Images:          w.Images,
	}
	if result.SlabUsed < 0 {
		result.SlabUsed = 0
	}
	if result.UnfittedPieceID == nil {
		result.UnfittedPieceID = []string{}
	}
	if result.Images == nil {
		result.Images = []string{}
	}
	return result, nil
}

func isSuccess(status int) bool {
	return status >= 200 && status < 300
}
