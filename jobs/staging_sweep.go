package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/machineskills/console/internal/jobs"
	"github.com/machineskills/console/internal/staging"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// StagingSweepJob deletes staged files older than the TTL. The worker runs
// in its own process, so it cannot see which files live drafts still hold;
// the TTL must outlast the draft TTL.
type StagingSweepJob struct {
	Dir     string
	TTL     time.Duration
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
	clock   func() time.Time
}

// NewStagingSweepJob wires dependencies for the sweep handler.
func NewStagingSweepJob(dir string, ttl time.Duration, logger *slog.Logger, metrics *jobmetrics.Metrics) *StagingSweepJob {
	return &StagingSweepJob{
		Dir:     dir,
		TTL:     ttl,
		Logger:  logger,
		Metrics: metrics,
		clock:   time.Now,
	}
}

// Handle processes TaskStagingSweep tasks.
func (j *StagingSweepJob) Handle(ctx context.Context, t *asynq.Task) (resultErr error) {
	if j == nil || j.Dir == "" {
		return errors.New("staging sweep: handler not configured")
	}
	var payload StagingSweepPayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
	}
	olderThan := payload.OlderThan
	if olderThan <= 0 {
		olderThan = j.TTL
	}

	tracker := j.metrics().Track(TaskStagingSweep)
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	if err := ctx.Err(); err != nil {
		return err
	}
	removed, err := staging.SweepDir(j.Dir, j.clock().Add(-olderThan), nil)
	j.metrics().AddSwept(removed)
	logger := j.logger().With(slog.String("dir", j.Dir), slog.Duration("older_than", olderThan))
	if err != nil {
		logger.Error("sweep staging dir", slog.Int("removed", removed), slog.Any("error", err))
		return err
	}
	logger.Info("swept staging dir", slog.Int("removed", removed))
	return nil
}

func (j *StagingSweepJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

func (j *StagingSweepJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}
