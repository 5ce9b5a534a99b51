package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskStagingSweep removes staged upload files left behind by closed forms.
	TaskStagingSweep = "staging:sweep"
)

// StagingSweepPayload describes one sweep run. A zero OlderThan uses the
// worker's configured staging TTL.
type StagingSweepPayload struct {
	OlderThan time.Duration `json:"older_than,omitempty"`
}

// NewStagingSweepTask constructs an Asynq task.
func NewStagingSweepTask(olderThan time.Duration) (*asynq.Task, error) {
	data, err := json.Marshal(StagingSweepPayload{OlderThan: olderThan})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskStagingSweep, data), nil
}
