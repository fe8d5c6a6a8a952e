package jobs

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubmitBeforeStart(t *testing.T) {
	q := NewQueue("backfill", func(ctx context.Context, job Job) error { return nil }, QueueConfig{})
	_, err := q.Submit("backfill", nil)
	assert.ErrorIs(t, err, ErrNotRunning)
}

func TestSubmitRunsHandler(t *testing.T) {
	done := make(chan Job, 1)
	q := NewQueue("backfill", func(ctx context.Context, job Job) error {
		done <- job
		return nil
	}, QueueConfig{})
	q.Start(context.Background())
	defer q.Stop()

	id, err := q.Submit("backfill", "payload")
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	select {
	case job := <-done:
		assert.Equal(t, id, job.ID)
		assert.Equal(t, "payload", job.Payload)
	case <-time.After(2 * time.Second):
		t.Fatal("job not processed")
	}
}

func TestFailedJobIsRetried(t *testing.T) {
	var calls int32
	done := make(chan struct{})
	q := NewQueue("backfill", func(ctx context.Context, job Job) error {
		if atomic.AddInt32(&calls, 1) == 1 {
			return errors.New("transient")
		}
		close(done)
		return nil
	}, QueueConfig{MaxRetries: 1, RetryDelay: 10 * time.Millisecond})
	q.Start(context.Background())
	defer q.Stop()

	_, err := q.Submit("backfill", nil)
	require.NoError(t, err)

	select {
	case <-done:
		assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
	case <-time.After(2 * time.Second):
		t.Fatal("job not retried")
	}
}

func TestRetriesStopAtMaxRetries(t *testing.T) {
	var calls int32
	q := NewQueue("backfill", func(ctx context.Context, job Job) error {
		atomic.AddInt32(&calls, 1)
		return errors.New("permanent")
	}, QueueConfig{MaxRetries: 2, RetryDelay: time.Millisecond})
	q.Start(context.Background())
	defer q.Stop()

	_, err := q.Submit("backfill", nil)
	require.NoError(t, err)

	assert.Eventually(t, func() bool { return atomic.LoadInt32(&calls) == 3 }, 2*time.Second, 5*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestSubmitRejectsWhenFull(t *testing.T) {
	started := make(chan struct{}, 2)
	release := make(chan struct{})
	q := NewQueue("backfill", func(ctx context.Context, job Job) error {
		started <- struct{}{}
		<-release
		return nil
	}, QueueConfig{Workers: 1, Capacity: 1})
	q.Start(context.Background())
	defer q.Stop()
	defer close(release)

	_, err := q.Submit("backfill", "first")
	require.NoError(t, err)
	<-started

	_, err = q.Submit("backfill", "second")
	require.NoError(t, err)
	_, err = q.Submit("backfill", "third")
	assert.ErrorIs(t, err, ErrFull)
}

func TestSubmitAfterStop(t *testing.T) {
	q := NewQueue("backfill", func(ctx context.Context, job Job) error { return nil }, QueueConfig{})
	q.Start(context.Background())
	q.Stop()

	_, err := q.Submit("backfill", nil)
	assert.ErrorIs(t, err, ErrNotRunning)
}
