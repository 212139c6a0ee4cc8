package jobs

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskTypeEventNotify fans a domain event out to subscribers.
	TaskTypeEventNotify = "event:notify"
)

// EventNotifyPayload carries a domain event into the worker.
type EventNotifyPayload struct {
	Type      string         `json:"type"`
	CreatedBy string         `json:"createdBy,omitempty"`
	Data      map[string]any `json:"data,omitempty"`
}

// NewEventNotifyTask constructs an Asynq task for a domain event.
func NewEventNotifyTask(payload EventNotifyPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeEventNotify, data), nil
}

// HandleEventNotifyTask processes TaskTypeEventNotify tasks. Delivery to
// external subscribers (webhooks, addons) plugs in here; for now the
// worker records the event.
func HandleEventNotifyTask(ctx context.Context, t *asynq.Task) error {
	var payload EventNotifyPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	slog.Default().Info("domain event",
		slog.String("type", payload.Type),
		slog.String("createdBy", payload.CreatedBy),
	)
	return nil
}
