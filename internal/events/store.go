package events

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/beaconhq/beacon/jobs"
)

// Domain event types appended by the project lifecycle.
const (
	ProjectCreated = "project-created"
	ProjectUpdated = "project-updated"
	ProjectDeleted = "project-deleted"
)

// Event is a single domain event record.
type Event struct {
	Type      string
	CreatedBy string
	Data      map[string]any
	At        time.Time
}

// Store appends domain events and fans them out to the job queue. The
// append is the source of truth; the queue hop is best effort.
type Store struct {
	pool   *pgxpool.Pool
	client *asynq.Client
	logger *slog.Logger
}

// NewStore returns a new event Store. The asynq client may be nil when
// no worker is deployed.
func NewStore(pool *pgxpool.Pool, client *asynq.Client, logger *slog.Logger) *Store {
	return &Store{pool: pool, client: client, logger: logger}
}

// Append persists the event and enqueues a notification task.
// Fire-and-forget from the caller's perspective: the project lifecycle
// does not roll back on event failures, so errors are logged here rather
// than propagated.
func (s *Store) Append(ctx context.Context, event Event) {
	if s == nil || s.pool == nil {
		return
	}
	if event.Type == "" {
		s.logger.Warn("dropping event without a type")
		return
	}
	dataJSON, err := json.Marshal(event.Data)
	if err != nil {
		s.logger.Warn("marshal event data", slog.Any("error", err))
		return
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO events (type, created_by, data, created_at) VALUES ($1, $2, $3, COALESCE(NULLIF($4, '0001-01-01T00:00:00Z'::timestamptz), NOW()))`,
		event.Type, event.CreatedBy, dataJSON, event.At)
	if err != nil {
		s.logger.Warn("append event", slog.String("type", event.Type), slog.Any("error", err))
		return
	}

	if s.client == nil {
		return
	}
	task, err := jobs.NewEventNotifyTask(jobs.EventNotifyPayload{
		Type:      event.Type,
		CreatedBy: event.CreatedBy,
		Data:      event.Data,
	})
	if err != nil {
		s.logger.Warn("build event task", slog.Any("error", err))
		return
	}
	if _, err := s.client.EnqueueContext(ctx, task, asynq.Queue(jobs.QueueDefault)); err != nil && !errors.Is(err, asynq.ErrDuplicateTask) {
		s.logger.Warn("enqueue event task", slog.String("type", event.Type), slog.Any("error", err))
	}
}
