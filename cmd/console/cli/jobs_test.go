package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/machineskills/console/jobs"
)

type stubClient struct {
	tasks []*asynq.Task
}

func (s *stubClient) EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	s.tasks = append(s.tasks, task)
	return &asynq.TaskInfo{ID: "t1", Type: task.Type(), Queue: jobs.QueueDefault}, nil
}

func (s *stubClient) Close() error { return nil }

type stubInspector struct {
	info *asynq.QueueInfo
	err  error
}

func (s stubInspector) GetQueueInfo(queue string) (*asynq.QueueInfo, error) {
	return s.info, s.err
}

func (s stubInspector) ListScheduledTasks(queue string, opts ...asynq.ListOption) ([]*asynq.TaskInfo, error) {
	return []*asynq.TaskInfo{{ID: "s1", Type: jobs.TaskStagingSweep, NextProcessAt: time.Date(2026, 1, 2, 3, 0, 0, 0, time.UTC)}}, nil
}

func (s stubInspector) Close() error { return nil }

func TestTriggerSweepWithOverride(t *testing.T) {
	client := &stubClient{}
	c := NewJobsCLIWith(client, stubInspector{})
	var out, errOut bytes.Buffer

	code := c.Command(context.Background(), []string{"trigger", "--older-than", "90m", jobs.TaskStagingSweep}, &out, &errOut)
	require.Equal(t, 0, code, errOut.String())
	assert.Contains(t, out.String(), "enqueued staging:sweep id=t1")

	require.Len(t, client.tasks, 1)
	var payload jobs.StagingSweepPayload
	require.NoError(t, json.Unmarshal(client.tasks[0].Payload(), &payload))
	assert.Equal(t, 90*time.Minute, payload.OlderThan)
}

func TestTriggerUnknownJob(t *testing.T) {
	c := NewJobsCLIWith(&stubClient{}, stubInspector{})
	var out, errOut bytes.Buffer
	code := c.Command(context.Background(), []string{"trigger", "mail:send"}, &out, &errOut)
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut.String(), "unsupported job")
}

func TestStatsJSON(t *testing.T) {
	c := NewJobsCLIWith(&stubClient{}, stubInspector{info: &asynq.QueueInfo{Queue: "default", Pending: 2, Scheduled: 1}})
	var out, errOut bytes.Buffer
	require.Equal(t, 0, c.Command(context.Background(), []string{"stats", "--json"}, &out, &errOut))

	var stats QueueStats
	require.NoError(t, json.Unmarshal(out.Bytes(), &stats))
	assert.Equal(t, QueueStats{Queue: "default", Pending: 2, Scheduled: 1}, stats)
}

func TestStatsMissingQueue(t *testing.T) {
	c := NewJobsCLIWith(&stubClient{}, stubInspector{err: asynq.ErrQueueNotFound})
	stats, err := c.InspectQueue(context.Background())
	require.NoError(t, err)
	assert.Zero(t, stats.Pending)
}

func TestScheduledAndUsage(t *testing.T) {
	c := NewJobsCLIWith(&stubClient{}, stubInspector{})
	var out, errOut bytes.Buffer
	require.Equal(t, 0, c.Command(context.Background(), []string{"scheduled"}, &out, &errOut))
	assert.Contains(t, out.String(), "s1 staging:sweep next=2026-01-02T03:00:00Z")

	assert.Equal(t, 2, c.Command(context.Background(), nil, &out, &errOut))
	assert.Equal(t, 2, c.Command(context.Background(), []string{"bogus"}, &out, &errOut))
}
