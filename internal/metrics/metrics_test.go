package metrics

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/invoice-chaser/internal/engine"
	"github.com/Veraticus/invoice-chaser/internal/model"
)

var _ engine.Recorder = (*Recorder)(nil)

func TestRecorder_Counters(t *testing.T) {
	r := New()

	r.MessagesFetched(3)
	r.MessagesFetched(2)
	r.ItemQueued(model.ItemDraft, model.ItemPending)
	r.ItemQueued(model.ItemDraft, model.ItemPending)
	r.ItemQueued(model.ItemManualReview, model.ItemPending)
	r.ExtractionFailed()
	r.RecordsSatisfied(4)
	r.ReminderSent()

	assert.InDelta(t, 5, testutil.ToFloat64(r.messagesFetched), 0)
	assert.InDelta(t, 2, testutil.ToFloat64(r.itemsQueued.WithLabelValues("DRAFT", "PENDING")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(r.itemsQueued.WithLabelValues("MANUAL_REVIEW", "PENDING")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(r.extractionFailures), 0)
	assert.InDelta(t, 4, testutil.ToFloat64(r.recordsSatisfied), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(r.remindersSent), 0)
}

func TestRecorder_CycleFinished(t *testing.T) {
	r := New()

	r.CycleFinished(2*time.Second, nil)
	r.CycleFinished(time.Second, errors.New("fetch failed"))
	r.CycleFinished(time.Second, nil)

	assert.Equal(t, 2, testutil.CollectAndCount(r.cycleDuration))
}

func TestRecorder_Handler(t *testing.T) {
	r := New()
	r.ReminderSent()

	srv := httptest.NewServer(r.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "chaser_reminders_sent_total 1")
}

func TestNew_IndependentRegistries(t *testing.T) {
	a, b := New(), New()
	a.ReminderSent()

	assert.InDelta(t, 0, testutil.ToFloat64(b.remindersSent), 0)
}
