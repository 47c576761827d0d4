// Package oracle wraps the reasoning oracle: a chat-completions endpoint
// that, given role-tagged messages, returns free text an agent used to
// form its opinion and quote. Calls never retry; a failure simply means
// the calling agent abstains from this round.
package oracle

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/mochiyaki/accountability-market/internal/metrics"
)

// Client asks the reasoning oracle for a completion. Ask returns the
// assistant's text and true on success, or ("", false) on any failure:
// network error, non-2xx status, or a response with no choices. There are
// no retries; the caller treats a false return as an abstention.
type Client interface {
	Ask(ctx context.Context, messages []Message, opts ...Option) (string, bool)
}

// Option configures a single Ask call.
type Option func(*askConfig)

type askConfig struct {
	model    string
	provider *ProviderHint
}

// WithModel overrides the default model identifier for this call.
func WithModel(model string) Option {
	return func(c *askConfig) { c.model = model }
}

// WithProvider forces a single upstream provider ordering. Used only by
// the legacy base-price estimator; the debate pipeline never sets it.
func WithProvider(hint ProviderHint) Option {
	return func(c *askConfig) { c.provider = &hint }
}

// Config configures an HTTPClient.
type Config struct {
	Endpoint       string
	APIKey         string
	DefaultModel   string
	Temperature    float64
	MaxTokens      int
	Timeout        time.Duration
	RateLimitPerS  float64
	RateLimitBurst int
}

// HTTPClient is the production oracle client: an HTTP POST to a
// chat-completions endpoint, resilience-wrapped with a circuit breaker and
// a token-bucket rate limiter.
type HTTPClient struct {
	cfg        Config
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker
	limiter    *rate.Limiter
}

// NewHTTPClient builds an HTTPClient, applying defaults the teacher's LLM
// client also applies when a field is left zero.
func NewHTTPClient(cfg Config) *HTTPClient {
	if cfg.DefaultModel == "" {
		cfg.DefaultModel = "openrouter/auto"
	}
	if cfg.Temperature == 0 {
		cfg.Temperature = 0.7
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = 800
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.RateLimitPerS == 0 {
		cfg.RateLimitPerS = 5
	}
	if cfg.RateLimitBurst == 0 {
		cfg.RateLimitBurst = 5
	}

	breakerSettings := gobreaker.Settings{
		Name:        "reasoning-oracle",
		MaxRequests: 2,
		Interval:    10 * time.Second,
		Timeout:     60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.Requests >= 3 && float64(counts.TotalFailures)/float64(counts.Requests) >= 0.6
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("oracle circuit breaker state change")
		},
	}

	return &HTTPClient{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		breaker:    gobreaker.NewCircuitBreaker(breakerSettings),
		limiter:    rate.NewLimiter(rate.Limit(cfg.RateLimitPerS), cfg.RateLimitBurst),
	}
}

// Ask implements Client.
func (c *HTTPClient) Ask(ctx context.Context, messages []Message, opts ...Option) (string, bool) {
	cfg := askConfig{model: c.cfg.DefaultModel}
	for _, opt := range opts {
		opt(&cfg)
	}

	if err := c.limiter.Wait(ctx); err != nil {
		log.Warn().Err(err).Msg("oracle rate limiter aborted wait")
		return "", false
	}

	start := time.Now()
	result, err := c.breaker.Execute(func() (interface{}, error) {
		return c.doRequest(ctx, messages, cfg)
	})
	durationMs := float64(time.Since(start).Milliseconds())
	metrics.RecordOracleRequest(err == nil, durationMs, err)
	metrics.OracleBreakerState.Set(float64(c.breaker.State()))

	if err != nil {
		log.Warn().Err(err).Str("model", cfg.model).Msg("oracle call failed, agent abstains this round")
		return "", false
	}
	return result.(string), true
}

func (c *HTTPClient) doRequest(ctx context.Context, messages []Message, cfg askConfig) (string, error) {
	reqBody := chatRequest{
		Model:       cfg.model,
		Messages:    messages,
		Temperature: c.cfg.Temperature,
		MaxTokens:   c.cfg.MaxTokens,
		Provider:    cfg.provider,
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshal oracle request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build oracle request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("send oracle request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read oracle response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var errResp errorResponse
		_ = json.Unmarshal(respBody, &errResp)
		return "", fmt.Errorf("oracle returned status %d: %s", resp.StatusCode, errResp.Error.Message)
	}

	var chatResp chatResponse
	if err := json.Unmarshal(respBody, &chatResp); err != nil {
		return "", fmt.Errorf("parse oracle response: %w", err)
	}
	if len(chatResp.Choices) == 0 {
		return "", fmt.Errorf("oracle response had no choices")
	}

	log.Debug().
		Str("model", cfg.model).
		Dur("latency", time.Since(start)).
		Msg("oracle call completed")

	return chatResp.Choices[0].Message.Content, nil
}

var _ Client = (*HTTPClient)(nil)
