package sheets

import (
	"context"
	"sync"

	"github.com/Veraticus/invoice-chaser/internal/analytics"
	"github.com/Veraticus/invoice-chaser/internal/model"
)

// MockWriter is a mock implementation of service.ReportWriter for testing.
type MockWriter struct {
	WriteFunc   func(ctx context.Context, records []model.ExpectedRecord, summary analytics.Summary) (string, error)
	LastSummary *analytics.Summary
	LastRecords []model.ExpectedRecord
	WriteCalls  int
	mu          sync.Mutex
}

// NewMockWriter creates a new mock writer.
func NewMockWriter() *MockWriter {
	return &MockWriter{}
}

// Write records the call and returns WriteFunc's result, or "mock-sheet".
func (m *MockWriter) Write(ctx context.Context, records []model.ExpectedRecord, summary analytics.Summary) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.WriteCalls++
	m.LastRecords = records
	m.LastSummary = &summary

	if m.WriteFunc != nil {
		return m.WriteFunc(ctx, records, summary)
	}
	return "mock-sheet", nil
}

// SetWriteError configures the mock to fail every Write.
func (m *MockWriter) SetWriteError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.WriteFunc = func(context.Context, []model.ExpectedRecord, analytics.Summary) (string, error) {
		return "", err
	}
}
