package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/docutrail/dtrs-api/internal/models"
)

// CaseRepository persists the cases that group related documents.
type CaseRepository struct {
	db *sqlx.DB
}

// NewCaseRepository constructs the repository.
func NewCaseRepository(db *sqlx.DB) *CaseRepository {
	return &CaseRepository{db: db}
}

func (r *CaseRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// Create inserts a new case row.
func (r *CaseRepository) Create(ctx context.Context, exec sqlx.ExtContext, documentCase *models.DocumentCase) error {
	if documentCase.ID == "" {
		documentCase.ID = uuid.NewString()
	}
	if documentCase.CreatedAt.IsZero() {
		documentCase.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO document_cases (id, case_number, title, created_by_user_id, created_at)
	 VALUES (:id, :case_number, :title, :created_by_user_id, :created_at)`
	if _, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, documentCase); err != nil {
		return fmt.Errorf("create case: %w", err)
	}
	return nil
}

// GetByID fetches a case by identifier.
func (r *CaseRepository) GetByID(ctx context.Context, id string) (*models.DocumentCase, error) {
	const query = `SELECT id, case_number, title, created_by_user_id, created_at FROM document_cases WHERE id = $1`
	var documentCase models.DocumentCase
	if err := r.db.GetContext(ctx, &documentCase, query, id); err != nil {
		return nil, err
	}
	return &documentCase, nil
}
