package engine

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/Veraticus/invoice-chaser/internal/model"
)

// MockConverter turns every document into a single page image unless the
// path is listed in Unreadable.
type MockConverter struct {
	Unreadable map[string]bool
	Calls      []string
	mu         sync.Mutex
}

// NewMockConverter creates a converter that fails on the given paths.
func NewMockConverter(unreadable ...string) *MockConverter {
	m := &MockConverter{Unreadable: make(map[string]bool)}
	for _, p := range unreadable {
		m.Unreadable[p] = true
	}
	return m
}

// ToImages returns "<path>#1" for readable documents.
func (m *MockConverter) ToImages(_ context.Context, documentPath string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Calls = append(m.Calls, documentPath)
	if m.Unreadable[documentPath] {
		return nil
	}
	return []string{documentPath + "#1"}
}

// MockExtractor returns canned fields per document path. Image paths produced
// by MockConverter are mapped back to their document.
type MockExtractor struct {
	Fields map[string]model.ExtractedFields
	Calls  []MockExtractCall
	mu     sync.Mutex
}

// MockExtractCall records one extraction request.
type MockExtractCall struct {
	ContextText string
	ImagePaths  []string
}

// NewMockExtractor creates an extractor with no canned results.
func NewMockExtractor() *MockExtractor {
	return &MockExtractor{Fields: make(map[string]model.ExtractedFields)}
}

// On sets the identifiers read from the document at path.
func (m *MockExtractor) On(path string, identifiers ...string) *MockExtractor {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Fields[path] = model.ExtractedFields{Identifiers: identifiers}
	return m
}

// Extract returns the canned fields for the first image's document.
func (m *MockExtractor) Extract(_ context.Context, contextText string, imagePaths []string) model.ExtractedFields {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Calls = append(m.Calls, MockExtractCall{ContextText: contextText, ImagePaths: imagePaths})
	if len(imagePaths) == 0 {
		return model.ExtractedFields{}
	}
	doc, _, _ := strings.Cut(imagePaths[0], "#")
	return m.Fields[doc]
}

// MockDrafter writes a plain summary draft. DraftFunc overrides it.
type MockDrafter struct {
	DraftFunc func(sender string, missing, matched []string) (string, error)
	Calls     int
	mu        sync.Mutex
}

// Draft returns a deterministic draft naming what arrived and what is missing.
func (m *MockDrafter) Draft(_ context.Context, sender string, missing, matched []string, _ string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Calls++
	if m.DraftFunc != nil {
		return m.DraftFunc(sender, missing, matched)
	}
	return fmt.Sprintf("To %s: received [%s], missing [%s]",
		sender, strings.Join(matched, ", "), strings.Join(missing, ", ")), nil
}
