package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/docutrail/dtrs-api/internal/models"
)

// DashboardRepository runs the aggregate queries behind the summary view.
type DashboardRepository struct {
	db *sqlx.DB
}

// NewDashboardRepository constructs the repository.
func NewDashboardRepository(db *sqlx.DB) *DashboardRepository {
	return &DashboardRepository{db: db}
}

// StatusCounts returns document counts per workflow status, optionally
// scoped to one department.
func (r *DashboardRepository) StatusCounts(ctx context.Context, departmentID string) (map[models.DocumentStatus]int, error) {
	query := `SELECT status, COUNT(*) AS total FROM documents`
	args := []interface{}{}
	if departmentID != "" {
		query += ` WHERE current_department_id = $1`
		args = append(args, departmentID)
	}
	query += ` GROUP BY status`

	rows := []struct {
		Status models.DocumentStatus `db:"status"`
		Total  int                   `db:"total"`
	}{}
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("dashboard status counts: %w", err)
	}
	counts := make(map[models.DocumentStatus]int, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.Total
	}
	return counts, nil
}

// OverdueCount counts open documents whose deadline has passed.
func (r *DashboardRepository) OverdueCount(ctx context.Context, departmentID string, asOf time.Time) (int, error) {
	query := `SELECT COUNT(*) FROM documents WHERE status IN ($1, $2, $3) AND due_at IS NOT NULL AND due_at < $4`
	args := []interface{}{models.DocumentStatusIncoming, models.DocumentStatusOnQueue, models.DocumentStatusOutgoing, asOf}
	if departmentID != "" {
		query += ` AND current_department_id = $5`
		args = append(args, departmentID)
	}
	var count int
	if err := r.db.GetContext(ctx, &count, query, args...); err != nil {
		return 0, fmt.Errorf("dashboard overdue count: %w", err)
	}
	return count, nil
}

// DueTodayCount counts open documents whose deadline falls inside the day.
func (r *DashboardRepository) DueTodayCount(ctx context.Context, departmentID string, dayStart, dayEnd time.Time) (int, error) {
	query := `SELECT COUNT(*) FROM documents WHERE status IN ($1, $2, $3) AND due_at >= $4 AND due_at < $5`
	args := []interface{}{models.DocumentStatusIncoming, models.DocumentStatusOnQueue, models.DocumentStatusOutgoing, dayStart, dayEnd}
	if departmentID != "" {
		query += ` AND current_department_id = $6`
		args = append(args, departmentID)
	}
	var count int
	if err := r.db.GetContext(ctx, &count, query, args...); err != nil {
		return 0, fmt.Errorf("dashboard due today count: %w", err)
	}
	return count, nil
}

// ReturnableOverdueCount counts returnable documents whose deadline has
// passed and whose original has not gone back to its owner.
func (r *DashboardRepository) ReturnableOverdueCount(ctx context.Context, departmentID string, asOf time.Time) (int, error) {
	query := `SELECT COUNT(*) FROM documents WHERE is_returnable = true AND returned_at IS NULL
	 AND due_at IS NOT NULL AND due_at < $1`
	args := []interface{}{asOf}
	if departmentID != "" {
		query += ` AND current_department_id = $2`
		args = append(args, departmentID)
	}
	var count int
	if err := r.db.GetContext(ctx, &count, query, args...); err != nil {
		return 0, fmt.Errorf("dashboard returnable overdue count: %w", err)
	}
	return count, nil
}

// OriginalsInCustodyCount counts active custody records.
func (r *DashboardRepository) OriginalsInCustodyCount(ctx context.Context, departmentID string) (int, error) {
	query := `SELECT COUNT(*) FROM document_custodies WHERE is_current = true`
	args := []interface{}{}
	if departmentID != "" {
		query += ` AND department_id = $1`
		args = append(args, departmentID)
	}
	var count int
	if err := r.db.GetContext(ctx, &count, query, args...); err != nil {
		return 0, fmt.Errorf("dashboard custody count: %w", err)
	}
	return count, nil
}

// ActiveCopiesCount counts reproduction inventory rows.
func (r *DashboardRepository) ActiveCopiesCount(ctx context.Context, departmentID string) (int, error) {
	query := `SELECT COUNT(*) FROM document_copies`
	args := []interface{}{}
	if departmentID != "" {
		query += ` WHERE department_id = $1`
		args = append(args, departmentID)
	}
	var count int
	if err := r.db.GetContext(ctx, &count, query, args...); err != nil {
		return 0, fmt.Errorf("dashboard copies count: %w", err)
	}
	return count, nil
}

// AlertCounts returns active alert totals per type.
func (r *DashboardRepository) AlertCounts(ctx context.Context, departmentID string) (map[models.AlertType]int, error) {
	query := `SELECT alert_type, COUNT(*) AS total FROM document_alerts WHERE is_active = true`
	args := []interface{}{}
	if departmentID != "" {
		query += ` AND department_id = $1`
		args = append(args, departmentID)
	}
	query += ` GROUP BY alert_type`

	rows := []struct {
		AlertType models.AlertType `db:"alert_type"`
		Total     int              `db:"total"`
	}{}
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("dashboard alert counts: %w", err)
	}
	counts := make(map[models.AlertType]int, len(rows))
	for _, row := range rows {
		counts[row.AlertType] = row.Total
	}
	return counts, nil
}
