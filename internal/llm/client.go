package llm

import (
	"context"
	"time"
)

// Client sends one prompt, optionally with images, and returns the text reply.
type Client interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// Request is a single-turn model request.
type Request struct {
	System string
	Prompt string
	Images []Image
}

// Image is an encoded page image.
type Image struct {
	MediaType string // e.g. "image/jpeg"
	Data      []byte
}

// Config holds configuration for the model clients and the Assistant.
type Config struct {
	Provider    string
	APIKey      string
	Model       string
	BaseURL     string // overrides the provider endpoint; used by tests and proxies
	MaxRetries  int
	RetryDelay  time.Duration
	CacheTTL    time.Duration
	RateLimit   int // requests per minute
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
}
