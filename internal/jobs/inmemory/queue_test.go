package inmemory

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tallyhq/ledger/internal/jobs"
)

func TestQueue_ProcessesJob(t *testing.T) {
	store := NewStore()
	q := NewQueue(10, 1, store)
	defer q.Close()

	var processed atomic.Int32
	require.NoError(t, q.Start(context.Background(), func(ctx context.Context, job jobs.Job) error {
		processed.Add(1)
		return nil
	}))

	job := &jobs.SyncAccountJob{AccountID: "acct-1"}
	require.NoError(t, q.PublishSyncAccount(context.Background(), job))

	assert.NotEmpty(t, job.JobID, "publish assigns an id")
	require.Eventually(t, func() bool {
		saved, err := store.GetJob(context.Background(), job.JobID)
		return err == nil && saved.Status == jobs.JobStatusCompleted
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, int32(1), processed.Load())
}

func TestQueue_RetriesKeepSeq(t *testing.T) {
	store := NewStore()
	q := NewQueue(10, 1, store)
	defer q.Close()

	var calls atomic.Int32
	require.NoError(t, q.Start(context.Background(), func(ctx context.Context, job jobs.Job) error {
		if calls.Add(1) == 1 {
			return fmt.Errorf("transient")
		}
		syncJob, ok := job.(*jobs.SyncAccountJob)
		if assert.True(t, ok) {
			assert.Equal(t, uint64(7), syncJob.Seq, "retries must not reissue the sequence number")
		}
		return nil
	}))

	job := &jobs.SyncAccountJob{AccountID: "acct-1", Seq: 7}
	require.NoError(t, q.PublishSyncAccount(context.Background(), job))

	require.Eventually(t, func() bool {
		saved, err := store.GetJob(context.Background(), job.JobID)
		return err == nil && saved.Status == jobs.JobStatusCompleted
	}, 5*time.Second, 20*time.Millisecond)
	assert.Equal(t, int32(2), calls.Load())
	assert.Equal(t, 1, job.RetryCount)
}

func TestQueue_PublishAfterClose(t *testing.T) {
	q := NewQueue(1, 1, nil)
	require.NoError(t, q.Close())

	err := q.PublishSyncAccount(context.Background(), &jobs.SyncAccountJob{AccountID: "acct-1"})
	assert.Error(t, err)
}

func TestStore_Filter(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	require.NoError(t, store.SaveJob(ctx, &jobs.SyncAccountJob{JobID: "j1", AccountID: "a", Status: jobs.JobStatusCompleted}))
	require.NoError(t, store.SaveJob(ctx, &jobs.SyncAccountJob{JobID: "j2", AccountID: "b", Status: jobs.JobStatusFailed}))

	byAccount, err := store.ListJobs(ctx, jobs.JobFilter{AccountID: "a"})
	require.NoError(t, err)
	require.Len(t, byAccount, 1)
	assert.Equal(t, "j1", byAccount[0].JobID)

	byStatus, err := store.ListJobs(ctx, jobs.JobFilter{Status: jobs.JobStatusFailed})
	require.NoError(t, err)
	require.Len(t, byStatus, 1)
	assert.Equal(t, "j2", byStatus[0].JobID)
}
