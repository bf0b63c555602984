package cli

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/stockledger/jobs"
)

type fakeClient struct {
	enqueued []*asynq.Task
	closed   bool
}

func (f *fakeClient) EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	f.enqueued = append(f.enqueued, task)
	return &asynq.TaskInfo{ID: "t-1", Type: task.Type(), Queue: jobs.QueueDefault}, nil
}

func (f *fakeClient) Close() error {
	f.closed = true
	return nil
}

type fakeInspector struct {
	info      *asynq.QueueInfo
	scheduled []*asynq.TaskInfo
	err       error
}

func (f *fakeInspector) GetQueueInfo(queue string) (*asynq.QueueInfo, error) {
	return f.info, f.err
}

func (f *fakeInspector) ListScheduledTasks(queue string, opts ...asynq.ListOption) ([]*asynq.TaskInfo, error) {
	return f.scheduled, f.err
}

func (f *fakeInspector) Close() error { return errors.New("already closed") }

func TestTriggerEnqueuesKnownJobs(t *testing.T) {
	client := &fakeClient{}
	c := &JobsCLI{client: client, inspector: &fakeInspector{}}

	var out bytes.Buffer
	require.NoError(t, c.Run(context.Background(), []string{"trigger", jobs.TaskLedgerIntegrity}, &out))
	require.Len(t, client.enqueued, 1)
	assert.Equal(t, jobs.TaskLedgerIntegrity, client.enqueued[0].Type())
	assert.Contains(t, out.String(), "enqueued "+jobs.TaskLedgerIntegrity)

	require.Error(t, c.Run(context.Background(), []string{"trigger", "gl:rebuild"}, &out))
	require.Error(t, c.Run(context.Background(), []string{"trigger"}, &out))
}

func TestStatsAndScheduled(t *testing.T) {
	next := time.Date(2026, 3, 1, 6, 0, 0, 0, time.UTC)
	c := &JobsCLI{client: &fakeClient{}, inspector: &fakeInspector{
		info:      &asynq.QueueInfo{Queue: jobs.QueueDefault, Pending: 3, Retry: 1},
		scheduled: []*asynq.TaskInfo{{ID: "s-1", Type: jobs.TaskLowStockScan, NextProcessAt: next}},
	}}

	var out bytes.Buffer
	require.NoError(t, c.Run(context.Background(), []string{"stats"}, &out))
	assert.Contains(t, out.String(), "PENDING")

	stats, err := c.InspectQueue(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Pending)
	assert.Equal(t, 1, stats.Retry)

	out.Reset()
	require.NoError(t, c.Run(context.Background(), []string{"scheduled", "--size", "5"}, &out))
	assert.Equal(t, "s-1\t"+jobs.TaskLowStockScan+"\t2026-03-01T06:00:00Z\n", out.String())
}

func TestRunErrors(t *testing.T) {
	c := &JobsCLI{client: &fakeClient{}, inspector: &fakeInspector{err: errors.New("redis down")}}
	var out bytes.Buffer
	require.Error(t, c.Run(context.Background(), nil, &out))
	require.Error(t, c.Run(context.Background(), []string{"purge"}, &out))
	require.Error(t, c.Run(context.Background(), []string{"stats"}, &out))

	var unconfigured *JobsCLI
	_, err := unconfigured.Trigger(context.Background(), jobs.TaskLowStockScan)
	require.Error(t, err)
}

func TestCloseJoinsErrors(t *testing.T) {
	client := &fakeClient{}
	c := &JobsCLI{client: client, inspector: &fakeInspector{}}
	require.Error(t, c.Close())
	assert.True(t, client.closed)
}
