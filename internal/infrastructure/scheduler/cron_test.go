package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCronSchedulerRejectsBadSpec(t *testing.T) {
	t.Parallel()

	_, err := NewCronScheduler("every morning", nil, nil)
	assert.ErrorContains(t, err, "invalid cron spec")
}

func TestNextUsesLocation(t *testing.T) {
	t.Parallel()

	dakar, err := time.LoadLocation("Africa/Dakar")
	require.NoError(t, err)
	s, err := NewCronScheduler("", dakar, nil)
	require.NoError(t, err)

	from := time.Date(2026, time.January, 20, 7, 30, 0, 0, dakar)
	assert.Equal(t, time.Date(2026, time.January, 20, 12, 0, 0, 0, dakar), s.Next(from))

	evening := time.Date(2026, time.January, 20, 18, 0, 0, 0, dakar)
	assert.Equal(t, time.Date(2026, time.January, 21, 6, 0, 0, 0, dakar), s.Next(evening))
}

func TestStartRunsJob(t *testing.T) {
	t.Parallel()

	s, err := NewCronScheduler("@every 1s", time.UTC, nil)
	require.NoError(t, err)

	fired := make(chan time.Time, 1)
	require.NoError(t, s.Start(context.Background(), func(at time.Time) {
		select {
		case fired <- at:
		default:
		}
	}))

	select {
	case at := <-fired:
		assert.Equal(t, time.UTC, at.Location())
	case <-time.After(3 * time.Second):
		t.Fatal("job did not fire")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, s.Stop(ctx))
	require.NoError(t, s.Stop(ctx))
}
