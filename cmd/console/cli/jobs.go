// Package cli implements the console's maintenance sub-commands.
package cli

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"time"

	"github.com/hibiken/asynq"

	"github.com/machineskills/console/jobs"
)

// Enqueuer submits tasks.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
	Close() error
}

// Inspector reads queue state.
type Inspector interface {
	GetQueueInfo(queue string) (*asynq.QueueInfo, error)
	ListScheduledTasks(queue string, opts ...asynq.ListOption) ([]*asynq.TaskInfo, error)
	Close() error
}

// JobsCLI wraps manual management helpers for Asynq jobs.
type JobsCLI struct {
	client    Enqueuer
	inspector Inspector
}

// NewJobsCLI initialises the CLI helpers against the queue Redis.
func NewJobsCLI(opts asynq.RedisClientOpt) *JobsCLI {
	return &JobsCLI{client: asynq.NewClient(opts), inspector: asynq.NewInspector(opts)}
}

// NewJobsCLIWith builds the helpers from existing clients.
func NewJobsCLIWith(client Enqueuer, inspector Inspector) *JobsCLI {
	return &JobsCLI{client: client, inspector: inspector}
}

// Close releases underlying resources.
func (c *JobsCLI) Close() error {
	var err error
	if c.inspector != nil {
		if closeErr := c.inspector.Close(); closeErr != nil {
			err = closeErr
		}
	}
	if c.client != nil {
		if closeErr := c.client.Close(); closeErr != nil {
			err = closeErr
		}
	}
	return err
}

// Trigger enqueues a supported job by name.
func (c *JobsCLI) Trigger(ctx context.Context, name string, olderThan time.Duration) (*asynq.TaskInfo, error) {
	if c == nil || c.client == nil {
		return nil, errors.New("jobs cli: client not configured")
	}
	var task *asynq.Task
	var err error
	switch name {
	case jobs.TaskStagingSweep:
		task, err = jobs.NewStagingSweepTask(olderThan)
	default:
		return nil, fmt.Errorf("jobs cli: unsupported job %s", name)
	}
	if err != nil {
		return nil, err
	}
	return c.client.EnqueueContext(ctx, task, asynq.Queue(jobs.QueueDefault), asynq.MaxRetry(3))
}

// QueueStats summarises the current queue state.
type QueueStats struct {
	Queue     string `json:"queue"`
	Pending   int    `json:"pending"`
	Active    int    `json:"active"`
	Scheduled int    `json:"scheduled"`
	Retry     int    `json:"retry"`
}

// InspectQueue reports the queue metrics for the default queue.
func (c *JobsCLI) InspectQueue(ctx context.Context) (QueueStats, error) {
	if c == nil || c.inspector == nil {
		return QueueStats{}, errors.New("jobs cli: inspector not configured")
	}
	stats := QueueStats{Queue: jobs.QueueDefault}
	info, err := c.inspector.GetQueueInfo(jobs.QueueDefault)
	if errors.Is(err, asynq.ErrQueueNotFound) {
		return stats, nil
	}
	if err != nil {
		return QueueStats{}, err
	}
	if info != nil {
		stats.Pending = info.Pending
		stats.Active = info.Active
		stats.Scheduled = info.Scheduled
		stats.Retry = info.Retry
	}
	return stats, nil
}

// ListScheduled returns scheduled task infos for observability.
func (c *JobsCLI) ListScheduled(ctx context.Context, size int) ([]*asynq.TaskInfo, error) {
	if c == nil || c.inspector == nil {
		return nil, errors.New("jobs cli: inspector not configured")
	}
	if size <= 0 {
		size = 10
	}
	return c.inspector.ListScheduledTasks(jobs.QueueDefault, asynq.PageSize(size), asynq.Page(1))
}

// Command runs `console jobs <trigger|stats|scheduled>` and returns the exit code.
func (c *JobsCLI) Command(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		_, _ = fmt.Fprintln(stderr, "usage: console jobs <trigger NAME|stats|scheduled> [flags]")
		return 2
	}
	switch args[0] {
	case "trigger":
		fs := flag.NewFlagSet("jobs trigger", flag.ContinueOnError)
		fs.SetOutput(stderr)
		olderThan := fs.Duration("older-than", 0, "sweep files older than this (default: worker STAGING_TTL)")
		if err := fs.Parse(args[1:]); err != nil {
			return 2
		}
		name := jobs.TaskStagingSweep
		if fs.NArg() > 0 {
			name = fs.Arg(0)
		}
		info, err := c.Trigger(ctx, name, *olderThan)
		if err != nil {
			_, _ = fmt.Fprintf(stderr, "jobs trigger: %v\n", err)
			return 1
		}
		_, _ = fmt.Fprintf(stdout, "enqueued %s id=%s queue=%s\n", info.Type, info.ID, info.Queue)
		return 0
	case "stats":
		fs := flag.NewFlagSet("jobs stats", flag.ContinueOnError)
		fs.SetOutput(stderr)
		asJSON := fs.Bool("json", false, "print JSON")
		if err := fs.Parse(args[1:]); err != nil {
			return 2
		}
		stats, err := c.InspectQueue(ctx)
		if err != nil {
			_, _ = fmt.Fprintf(stderr, "jobs stats: %v\n", err)
			return 1
		}
		if *asJSON {
			if err := json.NewEncoder(stdout).Encode(stats); err != nil {
				_, _ = fmt.Fprintf(stderr, "jobs stats: encode json: %v\n", err)
				return 1
			}
			return 0
		}
		_, _ = fmt.Fprintf(stdout, "queue=%s pending=%d active=%d scheduled=%d retry=%d\n",
			stats.Queue, stats.Pending, stats.Active, stats.Scheduled, stats.Retry)
		return 0
	case "scheduled":
		fs := flag.NewFlagSet("jobs scheduled", flag.ContinueOnError)
		fs.SetOutput(stderr)
		size := fs.Int("size", 10, "number of tasks to list")
		if err := fs.Parse(args[1:]); err != nil {
			return 2
		}
		tasks, err := c.ListScheduled(ctx, *size)
		if err != nil {
			_, _ = fmt.Fprintf(stderr, "jobs scheduled: %v\n", err)
			return 1
		}
		for _, t := range tasks {
			_, _ = fmt.Fprintf(stdout, "%s %s next=%s\n", t.ID, t.Type, t.NextProcessAt.Format(time.RFC3339))
		}
		return 0
	}
	_, _ = fmt.Fprintf(stderr, "jobs: unknown command %q\n", args[0])
	return 2
}
