package llm

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Veraticus/invoice-chaser/internal/common"
	"github.com/Veraticus/invoice-chaser/internal/model"
	"github.com/Veraticus/invoice-chaser/internal/service"
)

var mediaTypes = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".webp": "image/webp",
}

// Assistant implements service.Extractor and service.Drafter on a model Client.
type Assistant struct {
	client      Client
	cache       *extractionCache
	logger      *slog.Logger
	rateLimiter *rateLimiter
	retryOpts   service.RetryOptions
}

// NewAssistant creates an Assistant for the configured provider.
func NewAssistant(cfg Config, logger *slog.Logger) (*Assistant, error) {
	client, err := NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create LLM client: %w", err)
	}
	return NewAssistantWithClient(client, cfg, logger), nil
}

// NewAssistantWithClient wraps an existing client.
func NewAssistantWithClient(client Client, cfg Config, logger *slog.Logger) *Assistant {
	if logger == nil {
		logger = slog.Default()
	}

	retryOpts := service.RetryOptions{
		MaxAttempts:  cfg.MaxRetries,
		InitialDelay: cfg.RetryDelay,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
	}
	if retryOpts.MaxAttempts == 0 {
		retryOpts.MaxAttempts = 3
	}
	if retryOpts.InitialDelay == 0 {
		retryOpts.InitialDelay = time.Second
	}

	return &Assistant{
		client:      client,
		cache:       newExtractionCache(cfg.CacheTTL),
		logger:      logger,
		retryOpts:   retryOpts,
		rateLimiter: newRateLimiter(cfg.RateLimit),
	}
}

// Extract reads invoice fields from the page images. Unreadable images are
// skipped; any model or parse failure yields empty fields.
func (a *Assistant) Extract(ctx context.Context, contextText string, imagePaths []string) model.ExtractedFields {
	images := a.loadImages(imagePaths)
	if len(images) == 0 {
		return model.ExtractedFields{}
	}

	key := cacheKey(contextText, images)
	if fields, ok := a.cache.get(key); ok {
		a.logger.Debug("Extraction cache hit", "pages", len(images))
		return fields
	}

	req := Request{
		System: extractionSystemPrompt,
		Prompt: buildExtractionPrompt(contextText),
		Images: images,
	}

	fields, err := common.WithRetryValue(ctx, func() (model.ExtractedFields, error) {
		content, err := a.complete(ctx, req)
		if err != nil {
			return model.ExtractedFields{}, err
		}
		// A malformed reply is retried like a failed call.
		return parseExtraction(content)
	}, a.retryOpts)
	if err != nil {
		a.logger.Warn("Extraction failed", "pages", len(images), "error", err)
		return model.ExtractedFields{}
	}

	a.cache.set(key, fields)
	a.logger.Debug("Extracted fields",
		"pages", len(images),
		"identifiers", len(fields.Identifiers),
		"contact_changed", fields.ContactChanged)
	return fields
}

// Draft composes a reply that thanks the sender for matched identifiers and
// asks for the missing ones. It makes a single attempt; callers retry.
func (a *Assistant) Draft(ctx context.Context, sender string, missing, matched []string, contextText string) (string, error) {
	content, err := a.complete(ctx, Request{
		System: draftSystemPrompt,
		Prompt: buildDraftPrompt(sender, missing, matched, contextText),
	})
	if err != nil {
		return "", fmt.Errorf("failed to draft reply: %w", err)
	}
	return strings.TrimSpace(cleanMarkdownWrapper(content)), nil
}

// Close releases the extraction cache.
func (a *Assistant) Close() {
	a.cache.Close()
}

func (a *Assistant) complete(ctx context.Context, req Request) (string, error) {
	if err := a.rateLimiter.wait(ctx); err != nil {
		return "", err
	}
	return a.client.Complete(ctx, req)
}

func (a *Assistant) loadImages(paths []string) []Image {
	images := make([]Image, 0, len(paths))
	for _, path := range paths {
		mediaType, ok := mediaTypes[strings.ToLower(filepath.Ext(path))]
		if !ok {
			a.logger.Warn("Unsupported image type", "path", path)
			continue
		}
		data, err := os.ReadFile(path) // #nosec G304 -- paths come from the converter
		if err != nil {
			a.logger.Warn("Failed to load image", "path", path, "error", err)
			continue
		}
		images = append(images, Image{MediaType: mediaType, Data: data})
	}
	return images
}
