package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/docutrail/dtrs-api/internal/models"
)

const alertColumns = `id, document_id, alert_type, message, department_id, is_active, created_at, resolved_at`

// AlertRepository persists derived document alerts.
type AlertRepository struct {
	db *sqlx.DB
}

// NewAlertRepository constructs the repository.
func NewAlertRepository(db *sqlx.DB) *AlertRepository {
	return &AlertRepository{db: db}
}

func (r *AlertRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// Create inserts an active alert row.
func (r *AlertRepository) Create(ctx context.Context, exec sqlx.ExtContext, alert *models.DocumentAlert) error {
	if alert.ID == "" {
		alert.ID = uuid.NewString()
	}
	if alert.CreatedAt.IsZero() {
		alert.CreatedAt = time.Now().UTC()
	}
	alert.IsActive = true
	const query = `INSERT INTO document_alerts (id, document_id, alert_type, message, department_id, is_active, created_at, resolved_at)
	 VALUES (:id, :document_id, :alert_type, :message, :department_id, :is_active, :created_at, :resolved_at)`
	if _, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, alert); err != nil {
		return fmt.Errorf("create alert: %w", err)
	}
	return nil
}

// ListActive returns every unresolved alert. The generator passes its tx so
// the scan and the resolve/create writes see one snapshot.
func (r *AlertRepository) ListActive(ctx context.Context, exec sqlx.ExtContext) ([]models.DocumentAlert, error) {
	query := fmt.Sprintf(`SELECT %s FROM document_alerts WHERE is_active = true`, alertColumns)
	var alerts []models.DocumentAlert
	if err := sqlx.SelectContext(ctx, r.exec(exec), &alerts, query); err != nil {
		return nil, fmt.Errorf("list active alerts: %w", err)
	}
	return alerts, nil
}

// Resolve deactivates one alert.
func (r *AlertRepository) Resolve(ctx context.Context, exec sqlx.ExtContext, id string, resolvedAt time.Time) error {
	const query = `UPDATE document_alerts SET is_active = false, resolved_at = $2 WHERE id = $1 AND is_active = true`
	if _, err := r.exec(exec).ExecContext(ctx, query, id, resolvedAt); err != nil {
		return fmt.Errorf("resolve alert: %w", err)
	}
	return nil
}

// List returns alerts matching the filter, newest first.
func (r *AlertRepository) List(ctx context.Context, filter models.AlertFilter) ([]models.DocumentAlert, error) {
	builder := strings.Builder{}
	args := make([]interface{}, 0, 4)
	builder.WriteString(fmt.Sprintf("SELECT %s FROM document_alerts", alertColumns))

	conditions := make([]string, 0, 4)
	if filter.DocumentID != "" {
		args = append(args, filter.DocumentID)
		conditions = append(conditions, fmt.Sprintf("document_id = $%d", len(args)))
	}
	if filter.DepartmentID != "" {
		args = append(args, filter.DepartmentID)
		conditions = append(conditions, fmt.Sprintf("department_id = $%d", len(args)))
	}
	if filter.AlertType != "" {
		args = append(args, filter.AlertType)
		conditions = append(conditions, fmt.Sprintf("alert_type = $%d", len(args)))
	}
	if filter.ActiveOnly {
		conditions = append(conditions, "is_active = true")
	}
	if len(conditions) > 0 {
		builder.WriteString(" WHERE ")
		builder.WriteString(strings.Join(conditions, " AND "))
	}
	builder.WriteString(" ORDER BY created_at DESC")

	limit := filter.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	builder.WriteString(fmt.Sprintf(" LIMIT %d OFFSET %d", limit, offset))

	var alerts []models.DocumentAlert
	if err := r.db.SelectContext(ctx, &alerts, builder.String(), args...); err != nil {
		return nil, fmt.Errorf("list alerts: %w", err)
	}
	return alerts, nil
}
