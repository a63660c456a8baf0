package rewrite

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/nextlogic/remix-api/pkg/logger"
	"github.com/nextlogic/remix-api/pkg/metrics"
)

var (
	// ErrTimeout means the service did not answer within the configured interval.
	ErrTimeout = errors.New("content service timeout")
	// ErrService covers transport failures, non-2xx replies and unusable payloads.
	ErrService = errors.New("content service error")
)

// Gateway turns text into a rewritten version for a tool.
type Gateway interface {
	Transform(ctx context.Context, text, tool string) (string, error)
}

type Config struct {
	BaseURL         string
	Model           string
	APIKey          string
	Timeout         time.Duration
	Temperature     float64
	MaxOutputTokens int
}

type GeminiGateway struct {
	config  Config
	client  *http.Client
	metrics *metrics.Metrics
	logger  *logger.Logger
}

func NewGeminiGateway(cfg Config, m *metrics.Metrics, log *logger.Logger) *GeminiGateway {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 120 * time.Second
	}
	if cfg.Temperature == 0 {
		cfg.Temperature = 0.7
	}
	if cfg.MaxOutputTokens <= 0 {
		cfg.MaxOutputTokens = 2000
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	return &GeminiGateway{
		config: cfg,
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
		metrics: m,
		logger:  log,
	}
}

type generateRequest struct {
	Contents         []content        `json:"contents"`
	GenerationConfig generationConfig `json:"generationConfig"`
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type generationConfig struct {
	Temperature     float64 `json:"temperature"`
	MaxOutputTokens int     `json:"maxOutputTokens"`
}

type generateResponse struct {
	Candidates []struct {
		Content content `json:"content"`
	} `json:"candidates"`
}

func (g *GeminiGateway) endpoint() string {
	return fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s",
		g.config.BaseURL, url.PathEscape(g.config.Model), url.QueryEscape(g.config.APIKey))
}

// Transform makes exactly one call. It does not retry.
func (g *GeminiGateway) Transform(ctx context.Context, text, tool string) (string, error) {
	start := time.Now()
	out, err := g.transform(ctx, text, tool)

	outcome := "ok"
	switch {
	case errors.Is(err, ErrTimeout):
		outcome = "timeout"
	case err != nil:
		outcome = "error"
	}
	if g.metrics != nil {
		g.metrics.GatewayLatency.WithLabelValues(outcome).Observe(time.Since(start).Seconds())
	}
	if err != nil {
		g.logger.Error(err, "content generation failed",
			"tool", tool,
			"duration_ms", time.Since(start).Milliseconds())
	}
	return out, err
}

func (g *GeminiGateway) transform(ctx context.Context, text, tool string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, g.config.Timeout)
	defer cancel()

	body, err := json.Marshal(generateRequest{
		Contents: []content{{Parts: []part{{Text: Prompt(tool, text)}}}},
		GenerationConfig: generationConfig{
			Temperature:     g.config.Temperature,
			MaxOutputTokens: g.config.MaxOutputTokens,
		},
	})
	if err != nil {
		return "", fmt.Errorf("%w: encode request: %v", ErrService, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.endpoint(), bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("%w: build request: %v", ErrService, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		if isTimeout(ctx, err) {
			return "", ErrTimeout
		}
		return "", fmt.Errorf("%w: %v", ErrService, redact(err, g.config.APIKey))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<16))
		return "", fmt.Errorf("%w: status %d", ErrService, resp.StatusCode)
	}

	var payload generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		if isTimeout(ctx, err) {
			return "", ErrTimeout
		}
		return "", fmt.Errorf("%w: decode response: %v", ErrService, err)
	}

	if len(payload.Candidates) == 0 || len(payload.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("%w: empty response", ErrService)
	}
	out := payload.Candidates[0].Content.Parts[0].Text
	if strings.TrimSpace(out) == "" {
		return "", fmt.Errorf("%w: empty response", ErrService)
	}
	return out, nil
}

func isTimeout(ctx context.Context, err error) bool {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr interface{ Timeout() bool }
	return errors.As(err, &netErr) && netErr.Timeout()
}

// redact keeps the API key, which travels in the query string, out of logs.
func redact(err error, key string) string {
	msg := err.Error()
	if key == "" {
		return msg
	}
	msg = strings.ReplaceAll(msg, url.QueryEscape(key), "REDACTED")
	return strings.ReplaceAll(msg, key, "REDACTED")
}
