package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/docutrail/dtrs-api/internal/models"
)

// EventRepository writes the append-only document audit trail.
type EventRepository struct {
	db *sqlx.DB
}

// NewEventRepository constructs the repository.
func NewEventRepository(db *sqlx.DB) *EventRepository {
	return &EventRepository{db: db}
}

func (r *EventRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// Append inserts one event row.
func (r *EventRepository) Append(ctx context.Context, exec sqlx.ExtContext, event *models.DocumentEvent) error {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}
	if len(event.Payload) == 0 {
		event.Payload = []byte("{}")
	}
	const query = `INSERT INTO document_events (id, document_id, event_type, actor_user_id, payload, occurred_at)
	 VALUES (:id, :document_id, :event_type, :actor_user_id, :payload, :occurred_at)`
	if _, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, event); err != nil {
		return fmt.Errorf("append document event: %w", err)
	}
	return nil
}

// ListByDocument returns events for a document, oldest first.
func (r *EventRepository) ListByDocument(ctx context.Context, documentID string, limit, offset int) ([]models.DocumentEvent, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	const query = `SELECT id, document_id, event_type, actor_user_id, payload, occurred_at
	 FROM document_events WHERE document_id = $1 ORDER BY occurred_at ASC LIMIT $2 OFFSET $3`
	var events []models.DocumentEvent
	if err := r.db.SelectContext(ctx, &events, query, documentID, limit, offset); err != nil {
		return nil, fmt.Errorf("list document events: %w", err)
	}
	return events, nil
}
