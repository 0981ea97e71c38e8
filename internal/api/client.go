package api

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"github.com/pefman/ai-fight-club/internal/apperr"
	"github.com/pefman/ai-fight-club/internal/prompts"
)

const (
	defaultTimeout   = 30 * time.Second
	defaultRetries   = 2
	defaultRetryWait = 250 * time.Millisecond
	defaultCacheSize = 256
	defaultCacheTTL  = 5 * time.Minute
)

// Config holds backend client configuration. Zero values fall back to defaults.
type Config struct {
	BaseURL    string
	Timeout    time.Duration
	MaxRetries uint
	RetryWait  time.Duration
	CacheSize  int
	CacheTTL   time.Duration
}

// Observer is told about every backend call; the metrics package implements it.
type Observer interface {
	BackendCall(outcome string, took time.Duration)
}

type GenerateResponse struct {
	Text  string `json:"text"`
	Model string `json:"model,omitempty"`
}

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

type cacheEntry struct {
	text     string
	storedAt time.Time
}

// Client talks to the AI backend's /api/generate endpoint.
type Client struct {
	config Config
	http   *http.Client
	cache  *lru.Cache[string, cacheEntry]
	log    *zap.Logger
	obs    Observer
}

func NewClient(cfg Config, log *zap.Logger, obs Observer) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.RetryWait <= 0 {
		cfg.RetryWait = defaultRetryWait
	}
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = defaultCacheSize
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = defaultCacheTTL
	}
	if log == nil {
		log = zap.NewNop()
	}
	// size is positive, New cannot fail
	cache, _ := lru.New[string, cacheEntry](cfg.CacheSize)
	return &Client{
		config: cfg,
		http:   &http.Client{Timeout: cfg.Timeout},
		cache:  cache,
		log:    log.Named("backend"),
		obs:    obs,
	}
}

// DefaultConfig returns the client defaults for baseURL.
func DefaultConfig(baseURL string) Config {
	return Config{BaseURL: baseURL, MaxRetries: defaultRetries}
}

func (c *Client) url(path string) string {
	return strings.TrimRight(c.config.BaseURL, "/") + path
}

func cacheKey(p prompts.Prompt) string {
	h := sha256.New()
	h.Write([]byte(p.System))
	h.Write([]byte{0})
	h.Write([]byte(p.User))
	return hex.EncodeToString(h.Sum(nil))
}

// Generate sends a prompt to the backend. Identical prompts within the cache
// TTL are answered from memory. Network errors, 429 and 5xx are retried.
func (c *Client) Generate(ctx context.Context, p prompts.Prompt) (string, error) {
	key := cacheKey(p)
	if e, ok := c.cache.Get(key); ok {
		if time.Since(e.storedAt) < c.config.CacheTTL {
			c.observe("cached", 0)
			return e.text, nil
		}
		c.cache.Remove(key)
	}

	start := time.Now()
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.config.RetryWait
	b.MaxInterval = 8 * c.config.RetryWait
	attempt := 0
	text, err := backoff.Retry(ctx, func() (string, error) {
		attempt++
		text, err := c.post(ctx, p)
		if err != nil {
			c.log.Debug("backend call failed", zap.Int("attempt", attempt), zap.Error(err))
		}
		return text, err
	}, backoff.WithBackOff(b), backoff.WithMaxTries(c.config.MaxRetries+1))
	if err != nil {
		c.observe("error", time.Since(start))
		if ctx.Err() != nil {
			return "", apperr.Wrap(apperr.KindUnavailable, ctx.Err(), "ai backend timed out")
		}
		if apperr.KindOf(err) == apperr.KindInternal {
			return "", apperr.Wrap(apperr.KindUnavailable, err, "ai backend unavailable")
		}
		return "", err
	}
	c.observe("ok", time.Since(start))
	c.cache.Add(key, cacheEntry{text: text, storedAt: time.Now()})
	return text, nil
}

func (c *Client) observe(outcome string, took time.Duration) {
	if c.obs != nil {
		c.obs.BackendCall(outcome, took)
	}
}

func (c *Client) post(ctx context.Context, p prompts.Prompt) (string, error) {
	body, err := json.Marshal(p)
	if err != nil {
		return "", backoff.Permanent(err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url("/api/generate"), bytes.NewReader(body))
	if err != nil {
		return "", backoff.Permanent(err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", err
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		secs, _ := strconv.Atoi(resp.Header.Get("Retry-After"))
		return "", backoff.RetryAfter(secs)
	case resp.StatusCode >= 500:
		return "", apperr.E(apperr.KindUnavailable, "ai backend status %d: %s", resp.StatusCode, backendMessage(raw))
	case resp.StatusCode != http.StatusOK:
		return "", backoff.Permanent(apperr.E(apperr.KindInvalid, "ai backend rejected request (%d): %s", resp.StatusCode, backendMessage(raw)))
	}

	var out GenerateResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", backoff.Permanent(apperr.Wrap(apperr.KindUnavailable, err, "ai backend sent malformed response"))
	}
	if strings.TrimSpace(out.Text) == "" {
		return "", backoff.Permanent(apperr.E(apperr.KindUnavailable, "ai backend returned empty text"))
	}
	return out.Text, nil
}

func backendMessage(raw []byte) string {
	var e errorBody
	if json.Unmarshal(raw, &e) == nil {
		if e.Message != "" {
			return e.Message
		}
		if e.Error != "" {
			return e.Error
		}
	}
	s := strings.TrimSpace(string(raw))
	if len(s) > 200 {
		s = s[:200]
	}
	return s
}

// Health checks the backend's health endpoint.
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url("/api/healthz"), nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return apperr.Wrap(apperr.KindUnavailable, err, "ai backend unreachable")
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode != http.StatusOK {
		return apperr.E(apperr.KindUnavailable, "ai backend health status %d", resp.StatusCode)
	}
	return nil
}
