package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/docutrail/dtrs-api/internal/models"
)

// RelationshipRepository persists directed links between documents.
type RelationshipRepository struct {
	db *sqlx.DB
}

// NewRelationshipRepository constructs the repository.
func NewRelationshipRepository(db *sqlx.DB) *RelationshipRepository {
	return &RelationshipRepository{db: db}
}

func (r *RelationshipRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// Create appends one relationship row.
func (r *RelationshipRepository) Create(ctx context.Context, exec sqlx.ExtContext, rel *models.DocumentRelationship) error {
	if rel.ID == "" {
		rel.ID = uuid.NewString()
	}
	if rel.CreatedAt.IsZero() {
		rel.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO document_relationships
	(id, document_id, related_document_id, relation_type, created_by_user_id, remarks, created_at)
	VALUES (:id, :document_id, :related_document_id, :relation_type, :created_by_user_id, :remarks, :created_at)`
	if _, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, rel); err != nil {
		return fmt.Errorf("create relationship: %w", err)
	}
	return nil
}

// ListByDocument returns links where the document is either endpoint.
func (r *RelationshipRepository) ListByDocument(ctx context.Context, documentID string) ([]models.DocumentRelationship, error) {
	const query = `SELECT id, document_id, related_document_id, relation_type, created_by_user_id, remarks, created_at
	 FROM document_relationships WHERE document_id = $1 OR related_document_id = $1 ORDER BY created_at DESC`
	var rels []models.DocumentRelationship
	if err := r.db.SelectContext(ctx, &rels, query, documentID); err != nil {
		return nil, fmt.Errorf("list relationships: %w", err)
	}
	return rels, nil
}
