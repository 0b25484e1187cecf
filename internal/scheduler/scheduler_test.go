package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/invoice-chaser/internal/common"
	"github.com/Veraticus/invoice-chaser/internal/engine"
	"github.com/Veraticus/invoice-chaser/internal/model"
)

type fakeRunner struct {
	cycleErr  error
	cycles    atomic.Int32
	reminders atomic.Int32
}

func (f *fakeRunner) RunCycle(context.Context) ([]model.ReportItem, error) {
	f.cycles.Add(1)
	if f.cycleErr != nil {
		return nil, f.cycleErr
	}
	return []model.ReportItem{{Kind: model.ItemDraft, Status: model.ItemPending}}, nil
}

func (f *fakeRunner) RunRemindersWhenFree(context.Context) ([]engine.ReminderResult, error) {
	f.reminders.Add(1)
	return []engine.ReminderResult{
		{Sender: "a@x.example", Sent: true},
		{Sender: "b@x.example", Err: errors.New("send failed")},
	}, nil
}

func TestNew_Validation(t *testing.T) {
	_, err := New(nil, DefaultConfig(), nil)
	assert.ErrorIs(t, err, common.ErrMissingConfig)

	_, err = New(&fakeRunner{}, Config{}, nil)
	assert.ErrorIs(t, err, common.ErrInvalidConfig)

	s, err := New(&fakeRunner{}, Config{PollInterval: time.Minute}, nil)
	require.NoError(t, err)
	assert.Equal(t, time.Local, s.config.Location)
}

func TestScheduler_PollsUntilCanceled(t *testing.T) {
	tests := []struct {
		name     string
		cycleErr error
	}{
		{name: "successful cycles"},
		{name: "cycle in flight", cycleErr: common.ErrCycleInFlight},
		{name: "failing cycles keep polling", cycleErr: errors.New("gmail down")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := &fakeRunner{cycleErr: tt.cycleErr}
			s, err := New(runner, Config{PollInterval: 5 * time.Millisecond, ReminderAt: TimeOfDay{Hour: 9}}, nil)
			require.NoError(t, err)
			// Far from the reminder time so only polling happens.
			s.now = func() time.Time { return time.Date(2024, 7, 1, 10, 0, 0, 0, time.Local) }

			ctx, cancel := context.WithTimeout(context.Background(), 60*time.Millisecond)
			defer cancel()

			require.NoError(t, s.Run(ctx))
			assert.GreaterOrEqual(t, runner.cycles.Load(), int32(2))
			assert.Zero(t, runner.reminders.Load())
		})
	}
}

func TestScheduler_RemindsAtTimeOfDay(t *testing.T) {
	runner := &fakeRunner{}
	s, err := New(runner, Config{PollInterval: time.Hour, ReminderAt: TimeOfDay{Hour: 9}, Location: time.UTC}, nil)
	require.NoError(t, err)
	s.now = func() time.Time { return time.Date(2024, 7, 1, 8, 59, 59, 990_000_000, time.UTC) }

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	require.NoError(t, s.Run(ctx))
	assert.GreaterOrEqual(t, runner.reminders.Load(), int32(1))
	assert.Equal(t, int32(1), runner.cycles.Load(), "first poll runs immediately")
}

func TestParseTimeOfDay(t *testing.T) {
	tests := []struct {
		input   string
		want    TimeOfDay
		wantErr bool
	}{
		{input: "09:00", want: TimeOfDay{Hour: 9}},
		{input: "17:45", want: TimeOfDay{Hour: 17, Minute: 45}},
		{input: "00:00", want: TimeOfDay{}},
		{input: "9am", wantErr: true},
		{input: "24:00", wantErr: true},
		{input: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseTimeOfDay(tt.input)
			if tt.wantErr {
				assert.ErrorIs(t, err, common.ErrInvalidConfig)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.input, got.String())
		})
	}
}

func TestTimeOfDay_Next(t *testing.T) {
	at := TimeOfDay{Hour: 9}
	day := func(d, h, m int) time.Time { return time.Date(2024, 7, d, h, m, 0, 0, time.UTC) }

	tests := []struct {
		name string
		now  time.Time
		want time.Time
	}{
		{name: "later today", now: day(1, 8, 0), want: day(1, 9, 0)},
		{name: "exactly now rolls to tomorrow", now: day(1, 9, 0), want: day(2, 9, 0)},
		{name: "already passed", now: day(1, 18, 30), want: day(2, 9, 0)},
		{name: "month end", now: time.Date(2024, 7, 31, 12, 0, 0, 0, time.UTC), want: time.Date(2024, 8, 1, 9, 0, 0, 0, time.UTC)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, at.Next(tt.now))
		})
	}
}
