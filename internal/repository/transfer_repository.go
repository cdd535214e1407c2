package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/docutrail/dtrs-api/internal/models"
)

const transferColumns = `id, document_id, from_department_id, to_department_id, forwarded_by_user_id,
       accepted_by_user_id, status, forward_version_type, remarks, dispatch_method, dispatch_reference,
       release_receipt_reference, forwarded_at, accepted_at`

// TransferRepository persists routing edges.
type TransferRepository struct {
	db *sqlx.DB
}

// NewTransferRepository constructs the repository.
func NewTransferRepository(db *sqlx.DB) *TransferRepository {
	return &TransferRepository{db: db}
}

func (r *TransferRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// Create inserts a new transfer row.
func (r *TransferRepository) Create(ctx context.Context, exec sqlx.ExtContext, transfer *models.DocumentTransfer) error {
	if transfer.ID == "" {
		transfer.ID = uuid.NewString()
	}
	if transfer.Status == "" {
		transfer.Status = models.TransferStatusPending
	}
	if transfer.ForwardedAt.IsZero() {
		transfer.ForwardedAt = time.Now().UTC()
	}
	const query = `INSERT INTO document_transfers
	(id, document_id, from_department_id, to_department_id, forwarded_by_user_id, accepted_by_user_id,
	 status, forward_version_type, remarks, dispatch_method, dispatch_reference, release_receipt_reference,
	 forwarded_at, accepted_at)
	VALUES (:id, :document_id, :from_department_id, :to_department_id, :forwarded_by_user_id, :accepted_by_user_id,
	 :status, :forward_version_type, :remarks, :dispatch_method, :dispatch_reference, :release_receipt_reference,
	 :forwarded_at, :accepted_at)`
	if _, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, transfer); err != nil {
		return fmt.Errorf("create transfer: %w", err)
	}
	return nil
}

// GetByID fetches a transfer by identifier.
func (r *TransferRepository) GetByID(ctx context.Context, id string) (*models.DocumentTransfer, error) {
	query := fmt.Sprintf(`SELECT %s FROM document_transfers WHERE id = $1`, transferColumns)
	var transfer models.DocumentTransfer
	if err := r.db.GetContext(ctx, &transfer, query, id); err != nil {
		return nil, err
	}
	return &transfer, nil
}

// GetPending returns the in-flight transfer for a document, or
// sql.ErrNoRows when none exists. Callers inside a routing transaction
// pass the tx so the read observes the locked row state.
func (r *TransferRepository) GetPending(ctx context.Context, exec sqlx.ExtContext, documentID string) (*models.DocumentTransfer, error) {
	query := fmt.Sprintf(`SELECT %s FROM document_transfers WHERE document_id = $1 AND status = $2`, transferColumns)
	var transfer models.DocumentTransfer
	if err := sqlx.GetContext(ctx, r.exec(exec), &transfer, query, documentID, models.TransferStatusPending); err != nil {
		return nil, err
	}
	return &transfer, nil
}

// ResolveTransferParams groups resolution columns for accept/recall.
type ResolveTransferParams struct {
	ID               string
	Status           models.TransferStatus
	AcceptedByUserID *string
	AcceptedAt       *time.Time
}

// Resolve finalises a pending transfer. The status guard makes the update
// a compare-and-swap: a transfer already resolved by a concurrent call
// yields sql.ErrNoRows.
func (r *TransferRepository) Resolve(ctx context.Context, exec sqlx.ExtContext, params ResolveTransferParams) error {
	const query = `UPDATE document_transfers SET status = $2, accepted_by_user_id = $3, accepted_at = $4
	 WHERE id = $1 AND status = $5`
	result, err := r.exec(exec).ExecContext(ctx, query, params.ID, params.Status,
		params.AcceptedByUserID, params.AcceptedAt, models.TransferStatusPending)
	if err != nil {
		return fmt.Errorf("resolve transfer: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check transfer resolve rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// List returns transfers matching the filter (latest first).
func (r *TransferRepository) List(ctx context.Context, filter models.TransferFilter) ([]models.DocumentTransfer, error) {
	builder := strings.Builder{}
	args := make([]interface{}, 0, 4)
	builder.WriteString(fmt.Sprintf("SELECT %s FROM document_transfers", transferColumns))

	conditions := make([]string, 0, 4)
	if filter.DocumentID != "" {
		args = append(args, filter.DocumentID)
		conditions = append(conditions, fmt.Sprintf("document_id = $%d", len(args)))
	}
	if len(filter.Status) > 0 {
		placeholders := make([]string, len(filter.Status))
		for i, status := range filter.Status {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		conditions = append(conditions, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}
	if filter.ForwardedByUserID != "" {
		args = append(args, filter.ForwardedByUserID)
		conditions = append(conditions, fmt.Sprintf("forwarded_by_user_id = $%d", len(args)))
	}
	if filter.ToDepartmentID != "" {
		args = append(args, filter.ToDepartmentID)
		conditions = append(conditions, fmt.Sprintf("to_department_id = $%d", len(args)))
	}
	if len(conditions) > 0 {
		builder.WriteString(" WHERE ")
		builder.WriteString(strings.Join(conditions, " AND "))
	}
	builder.WriteString(" ORDER BY forwarded_at DESC")

	limit := filter.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	builder.WriteString(fmt.Sprintf(" LIMIT %d OFFSET %d", limit, offset))

	var transfers []models.DocumentTransfer
	if err := r.db.SelectContext(ctx, &transfers, builder.String(), args...); err != nil {
		return nil, fmt.Errorf("list transfers: %w", err)
	}
	return transfers, nil
}
