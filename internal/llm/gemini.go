// Package llm wraps the Gemini API behind the prompt/text interface the game uses.
package llm

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/pefman/ai-fight-club/internal/apperr"
	"github.com/pefman/ai-fight-club/internal/prompts"
)

const (
	DefaultModel       = "gemini-2.0-flash"
	defaultTemperature = 0.7
	defaultMaxTokens   = 1024
)

// contentGenerator is the slice of *genai.Models we call.
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

type Gemini struct {
	models      contentGenerator
	model       string
	temperature float32
	maxTokens   int32
	timeout     time.Duration
	log         *zap.Logger
}

type Config struct {
	APIKey      string
	Model       string
	Temperature float32
	MaxTokens   int32
	// Timeout bounds one model call; zero means no limit beyond ctx.
	Timeout time.Duration
}

func NewGemini(ctx context.Context, cfg Config, log *zap.Logger) (*Gemini, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, apperr.E(apperr.KindInvalid, "gemini api key is required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, err, "create gemini client")
	}
	return newGemini(client.Models, cfg, log), nil
}

func newGemini(m contentGenerator, cfg Config, log *zap.Logger) *Gemini {
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Temperature <= 0 {
		cfg.Temperature = defaultTemperature
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = defaultMaxTokens
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Gemini{
		models:      m,
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		timeout:     cfg.Timeout,
		log:         log.Named("gemini"),
	}
}

func (g *Gemini) Model() string { return g.model }

// Generate runs one prompt through the model and returns its text.
func (g *Gemini) Generate(ctx context.Context, p prompts.Prompt) (string, error) {
	if strings.TrimSpace(p.User) == "" {
		return "", apperr.E(apperr.KindInvalid, "prompt is required")
	}
	cfg := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(g.temperature),
		MaxOutputTokens: g.maxTokens,
	}
	if s := strings.TrimSpace(p.System); s != "" {
		cfg.SystemInstruction = genai.NewContentFromText(s, genai.RoleUser)
	}
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}
	start := time.Now()
	resp, err := g.models.GenerateContent(ctx, g.model, genai.Text(p.User), cfg)
	if err != nil {
		g.log.Warn("generate failed", zap.String("model", g.model), zap.Duration("took", time.Since(start)), zap.Error(err))
		return "", classify(err)
	}
	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", apperr.E(apperr.KindUnavailable, "model returned no text")
	}
	g.log.Debug("generated", zap.String("model", g.model), zap.Int("chars", len(text)), zap.Duration("took", time.Since(start)))
	return text, nil
}

func classify(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return apperr.Wrap(apperr.KindUnavailable, err, "model call timed out")
	}
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.Code == http.StatusTooManyRequests || apiErr.Code >= 500:
			return apperr.Wrap(apperr.KindUnavailable, err, "model temporarily unavailable")
		case apiErr.Code >= 400:
			return apperr.Wrap(apperr.KindInvalid, err, "model rejected the request")
		}
	}
	return apperr.Wrap(apperr.KindUnavailable, err, "model call failed")
}
