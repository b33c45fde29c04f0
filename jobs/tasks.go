package jobs

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskTypeStatementEmail is the task type for monthly statement emails.
	TaskTypeStatementEmail = "mail:statement"
)

// StatementEmailPayload describes a statement email delivery.
type StatementEmailPayload struct {
	To      string `json:"to"`
	Period  string `json:"period"`
	Subject string `json:"subject"`
}

// NewStatementEmailTask constructs an Asynq task.
func NewStatementEmailTask(payload StatementEmailPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeStatementEmail, data), nil
}

// HandleStatementEmailTask processes TaskTypeStatementEmail tasks.
func HandleStatementEmailTask(ctx context.Context, t *asynq.Task) error {
	var payload StatementEmailPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	// Placeholder: integrate with SMTP once the mail relay lands.
	fmt.Printf("[jobs] send statement to %s period=%s\n", payload.To, payload.Period)
	return nil
}
