// Package analysis runs the AI analyses of the app: InBody sheet
// extraction, health checkup grading and daily diet feedback, against an
// OpenAI-compatible chat completion gateway.
package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"golang.org/x/time/rate"

	"github.com/youngukshin9402-code/cloud-sync-manager/internal/errors"
	"github.com/youngukshin9402-code/cloud-sync-manager/internal/logging"
)

// DefaultModel is the model requested when none is configured.
const DefaultModel = "google/gemini-2.5-flash"

// GatewayConfig holds AI gateway configuration.
type GatewayConfig struct {
	Endpoint string
	APIKey   string
	Model    string
	// RequestsPerMinute throttles outgoing calls; 0 disables the limiter.
	RequestsPerMinute float64
	Timeout           time.Duration
	HTTPClient        *http.Client
}

// Gateway is an OpenAI-compatible chat completion client.
type Gateway struct {
	endpoint   string
	apiKey     string
	model      string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewGateway creates a Gateway.
func NewGateway(cfg GatewayConfig) (*Gateway, error) {
	if cfg.Endpoint == "" || cfg.APIKey == "" {
		return nil, errors.New(errors.ErrAINotConfigured, "AI endpoint and API key are required")
	}
	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 60 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	g := &Gateway{
		endpoint:   strings.TrimSuffix(cfg.Endpoint, "/"),
		apiKey:     cfg.APIKey,
		model:      model,
		httpClient: httpClient,
	}
	if cfg.RequestsPerMinute > 0 {
		g.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerMinute/60), 1)
	}
	return g, nil
}

// Message is one chat message. Content is a string or a list of parts.
type Message struct {
	Role    string      `json:"role"`
	Content interface{} `json:"content"`
}

// ContentPart is a multimodal message part.
type ContentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *ImageRef `json:"image_url,omitempty"`
}

type ImageRef struct {
	URL string `json:"url"`
}

// TextPart returns a text content part.
func TextPart(text string) ContentPart {
	return ContentPart{Type: "text", Text: text}
}

// ImagePart returns an image content part for a data URI or URL.
func ImagePart(url string) ContentPart {
	return ContentPart{Type: "image_url", ImageURL: &ImageRef{URL: url}}
}

// CompletionRequest is a chat completion request.
type CompletionRequest struct {
	Messages    []Message
	MaxTokens   int
	Temperature *float64
}

type completionBody struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	Temperature *float64  `json:"temperature,omitempty"`
}

// Complete sends req and returns the first choice's content.
func (g *Gateway) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			return "", errors.Wrap(errors.ErrAITimeout, "waiting for AI rate limiter", err)
		}
	}

	jsonData, err := json.Marshal(completionBody{
		Model:       g.model,
		Messages:    req.Messages,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	})
	if err != nil {
		return "", errors.Wrap(errors.ErrInternal, "encode completion request", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.endpoint+"/chat/completions", bytes.NewReader(jsonData))
	if err != nil {
		return "", errors.Wrap(errors.ErrInternal, "build completion request", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+g.apiKey)

	start := time.Now()
	resp, err := g.httpClient.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil || stderrors.Is(err, context.DeadlineExceeded) {
			return "", errors.Wrap(errors.ErrAITimeout, "AI request timed out", err)
		}
		return "", errors.Wrap(errors.ErrAIFailed, "AI request failed", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", errors.Wrap(errors.ErrAIFailed, "read AI response", err)
	}

	if resp.StatusCode != http.StatusOK {
		logging.Warn("AI gateway returned an error", map[string]interface{}{
			"status": resp.StatusCode,
			"error":  gjson.GetBytes(body, "error.message").String(),
		})
		return "", statusError(resp.StatusCode, body)
	}

	content := gjson.GetBytes(body, "choices.0.message.content").String()
	if content == "" {
		return "", errors.New(errors.ErrAIInvalidResponse, "empty AI response")
	}

	logging.Debug("AI completion received", map[string]interface{}{
		"model":       g.model,
		"duration_ms": time.Since(start).Milliseconds(),
		"chars":       len(content),
	})
	return content, nil
}

func statusError(status int, body []byte) error {
	msg := gjson.GetBytes(body, "error.message").String()
	if msg == "" {
		msg = strings.TrimSpace(string(body))
	}
	cause := fmt.Errorf("AI gateway returned %d: %s", status, msg)
	switch status {
	case http.StatusTooManyRequests:
		return errors.Wrap(errors.ErrAIRateLimit, "too many AI requests, try again later", cause)
	case http.StatusPaymentRequired:
		return errors.Wrap(errors.ErrAIQuotaExceeded, "AI credits exhausted", cause)
	case http.StatusUnauthorized, http.StatusForbidden:
		return errors.Wrap(errors.ErrAIInvalidCredentials, "AI credentials rejected", cause)
	case http.StatusGatewayTimeout, http.StatusRequestTimeout:
		return errors.Wrap(errors.ErrAITimeout, "AI request timed out", cause)
	default:
		return errors.Wrap(errors.ErrAIFailed, "AI analysis failed", cause)
	}
}
