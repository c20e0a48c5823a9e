package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"almaconnector/internal/config"
	"almaconnector/internal/logger"
	"almaconnector/pkg/models"
)

type fakeLocker struct {
	mu    sync.Mutex
	held  map[string]bool
	err   error
	calls []time.Duration
}

func (l *fakeLocker) Acquire(_ context.Context, key string, ttl time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, ttl)
	if l.err != nil {
		return false, l.err
	}
	if l.held == nil {
		l.held = map[string]bool{}
	}
	if l.held[key] {
		return false, nil
	}
	l.held[key] = true
	return true, nil
}

var nightly = config.ScheduleEntry{Name: "nightly", Task: "create_alma_records", Interval: time.Hour}

func TestTick_FiresOncePerLock(t *testing.T) {
	var fired []models.Task
	locker := &fakeLocker{}
	s := New([]config.ScheduleEntry{nightly}, func(_ context.Context, task models.Task) error {
		fired = append(fired, task)
		return nil
	}, locker, logger.NopLogger())

	assert.Equal(t, "fired", s.Tick(context.Background(), nightly))
	assert.Equal(t, "skipped", s.Tick(context.Background(), nightly))

	require.Len(t, fired, 1)
	assert.Equal(t, models.Task{Name: "create_alma_records", ScheduledBy: "nightly"}, fired[0])
	assert.Equal(t, 54*time.Minute, locker.calls[0])
}

func TestTick_Errors(t *testing.T) {
	tests := []struct {
		name   string
		locker Locker
		fire   FireFunc
	}{
		{
			name:   "lock error",
			locker: &fakeLocker{err: errors.New("redis down")},
			fire:   func(context.Context, models.Task) error { return nil },
		},
		{
			name:   "fire error",
			locker: nil,
			fire:   func(context.Context, models.Task) error { return errors.New("kafka down") },
		},
		{
			name:   "fire panic",
			locker: nil,
			fire:   func(context.Context, models.Task) error { panic("boom") },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New(nil, tt.fire, tt.locker, logger.NopLogger())
			assert.Equal(t, "error", s.Tick(context.Background(), nightly))
		})
	}
}

func TestRun_TicksUntilCancelled(t *testing.T) {
	var fired atomic.Int32
	entry := config.ScheduleEntry{Name: "fast", Task: "update_repository_records", Interval: 10 * time.Millisecond}
	s := New([]config.ScheduleEntry{entry}, func(context.Context, models.Task) error {
		fired.Add(1)
		return nil
	}, nil, logger.NopLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	require.NoError(t, s.Run(ctx))
	assert.GreaterOrEqual(t, fired.Load(), int32(2))
}

func TestRun_NoEntries(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.NoError(t, New(nil, nil, nil, logger.NopLogger()).Run(ctx))
}

func TestLockTTL(t *testing.T) {
	assert.Equal(t, 9*time.Second, lockTTL(10*time.Second))
	assert.Equal(t, time.Nanosecond, lockTTL(time.Nanosecond))
}
