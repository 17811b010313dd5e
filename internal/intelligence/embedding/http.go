package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/turtacn/ProtocolIQ/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/ProtocolIQ/pkg/errors"
)

// HTTPConfig configures the external embeddings endpoint.
type HTTPConfig struct {
	Endpoint          string        `mapstructure:"endpoint"`
	APIKey            string        `mapstructure:"api_key"`
	Model             string        `mapstructure:"model"`
	Timeout           time.Duration `mapstructure:"timeout"`
	MaxRetries        int           `mapstructure:"max_retries"`
	RetryBackoff      time.Duration `mapstructure:"retry_backoff"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
	Burst             int           `mapstructure:"burst"`
}

// HTTPEmbedder calls an OpenAI-compatible embeddings endpoint.
type HTTPEmbedder struct {
	cfg     HTTPConfig
	client  *http.Client
	limiter *rate.Limiter
	logger  logging.Logger
}

type embedRequest struct {
	Model string `json:"model,omitempty"`
	Input string `json:"input"`
}

type embedResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
	Embedding []float32 `json:"embedding"`
}

// NewHTTPEmbedder validates cfg and builds the client.
func NewHTTPEmbedder(cfg HTTPConfig, logger logging.Logger) (*HTTPEmbedder, error) {
	if strings.TrimSpace(cfg.Endpoint) == "" {
		return nil, errors.New(errors.CodeEmbeddingUnavailable, "embedding endpoint is not configured")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Second
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = 100 * time.Millisecond
	}
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = 20
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 5
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &HTTPEmbedder{
		cfg:     cfg,
		client:  &http.Client{Timeout: cfg.Timeout},
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst),
		logger:  logger.Named("embedding"),
	}, nil
}

// Embed returns the vector for text. Rate limiting, retries and the caller's
// deadline all apply.
func (e *HTTPEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, errors.InvalidParam("text to embed must not be empty")
	}
	payload, err := json.Marshal(embedRequest{Model: e.cfg.Model, Input: text})
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSerialization, "failed to encode embedding request")
	}

	var lastErr error
	for attempt := 0; attempt <= e.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := e.cfg.RetryBackoff * time.Duration(1<<uint(attempt-1))
			select {
			case <-ctx.Done():
				return nil, errors.Wrap(ctx.Err(), errors.CodeEmbeddingFailed, "embedding cancelled during retry")
			case <-time.After(delay):
			}
		}
		if err := e.limiter.Wait(ctx); err != nil {
			return nil, errors.Wrap(err, errors.CodeEmbeddingFailed, "embedding rate limiter wait failed")
		}
		vec, retry, err := e.do(ctx, payload)
		if err == nil {
			return vec, nil
		}
		lastErr = err
		if !retry {
			break
		}
		e.logger.Debug("embedding request failed", logging.Int("attempt", attempt+1), logging.Err(err))
	}
	return nil, errors.Wrap(lastErr, errors.CodeEmbeddingFailed, "embedding request failed")
}

func (e *HTTPEmbedder) do(ctx context.Context, payload []byte) ([]float32, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.cfg.Endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, false, err
	}
	req.Header.Set("Content-Type", "application/json")
	if e.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+e.cfg.APIKey)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, ctx.Err() == nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, true, fmt.Errorf("embedding endpoint returned status %d", resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, false, fmt.Errorf("embedding endpoint returned status %d", resp.StatusCode)
	}

	var out embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, false, fmt.Errorf("decoding embedding response: %w", err)
	}
	vec := out.Embedding
	if len(out.Data) > 0 {
		vec = out.Data[0].Embedding
	}
	if len(vec) == 0 {
		return nil, false, fmt.Errorf("embedding response contained no vector")
	}
	return vec, false, nil
}
