package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/docutrail/dtrs-api/internal/models"
)

const custodyColumns = `id, document_id, department_id, user_id, version_type, is_current, status,
       physical_location, storage_reference, created_at`

const copyColumns = `id, document_id, department_id, user_id, copy_type, storage_location, purpose, created_at`

// CustodyRepository persists custody and copy inventory records.
type CustodyRepository struct {
	db *sqlx.DB
}

// NewCustodyRepository constructs the repository.
func NewCustodyRepository(db *sqlx.DB) *CustodyRepository {
	return &CustodyRepository{db: db}
}

func (r *CustodyRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// GetCurrent returns the active custody record for a document, or nil when
// the original has no recorded holder.
func (r *CustodyRepository) GetCurrent(ctx context.Context, exec sqlx.ExtContext, documentID string) (*models.DocumentCustody, error) {
	query := fmt.Sprintf(`SELECT %s FROM document_custodies WHERE document_id = $1 AND is_current = true`, custodyColumns)
	var custody models.DocumentCustody
	if err := sqlx.GetContext(ctx, r.exec(exec), &custody, query, documentID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get current custody: %w", err)
	}
	return &custody, nil
}

// CloseCurrent flips any active custody row to the given terminal status.
func (r *CustodyRepository) CloseCurrent(ctx context.Context, exec sqlx.ExtContext, documentID string, status models.CustodyStatus) error {
	const query = `UPDATE document_custodies SET is_current = false, status = $2
	 WHERE document_id = $1 AND is_current = true`
	if _, err := r.exec(exec).ExecContext(ctx, query, documentID, status); err != nil {
		return fmt.Errorf("close current custody: %w", err)
	}
	return nil
}

// Create inserts a new custody record. Callers close the previous current
// row in the same transaction to preserve the single-holder invariant.
func (r *CustodyRepository) Create(ctx context.Context, exec sqlx.ExtContext, custody *models.DocumentCustody) error {
	if custody.ID == "" {
		custody.ID = uuid.NewString()
	}
	if custody.Status == "" {
		custody.Status = models.CustodyStatusInCustody
	}
	if custody.CreatedAt.IsZero() {
		custody.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO document_custodies
	(id, document_id, department_id, user_id, version_type, is_current, status, physical_location, storage_reference, created_at)
	VALUES (:id, :document_id, :department_id, :user_id, :version_type, :is_current, :status, :physical_location, :storage_reference, :created_at)`
	if _, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, custody); err != nil {
		return fmt.Errorf("create custody: %w", err)
	}
	return nil
}

// ListByDocument returns the custody history for a document, newest first.
func (r *CustodyRepository) ListByDocument(ctx context.Context, documentID string) ([]models.DocumentCustody, error) {
	query := fmt.Sprintf(`SELECT %s FROM document_custodies WHERE document_id = $1 ORDER BY created_at DESC`, custodyColumns)
	var custodies []models.DocumentCustody
	if err := r.db.SelectContext(ctx, &custodies, query, documentID); err != nil {
		return nil, fmt.Errorf("list custodies: %w", err)
	}
	return custodies, nil
}

// CreateCopy appends a reproduction inventory record.
func (r *CustodyRepository) CreateCopy(ctx context.Context, exec sqlx.ExtContext, copyRec *models.DocumentCopy) error {
	if copyRec.ID == "" {
		copyRec.ID = uuid.NewString()
	}
	if copyRec.CreatedAt.IsZero() {
		copyRec.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO document_copies
	(id, document_id, department_id, user_id, copy_type, storage_location, purpose, created_at)
	VALUES (:id, :document_id, :department_id, :user_id, :copy_type, :storage_location, :purpose, :created_at)`
	if _, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, copyRec); err != nil {
		return fmt.Errorf("create document copy: %w", err)
	}
	return nil
}

// ListCopies returns copy inventory rows for a document.
func (r *CustodyRepository) ListCopies(ctx context.Context, documentID string) ([]models.DocumentCopy, error) {
	query := fmt.Sprintf(`SELECT %s FROM document_copies WHERE document_id = $1 ORDER BY created_at DESC`, copyColumns)
	var copies []models.DocumentCopy
	if err := r.db.SelectContext(ctx, &copies, query, documentID); err != nil {
		return nil, fmt.Errorf("list document copies: %w", err)
	}
	return copies, nil
}
