package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/docutrail/dtrs-api/internal/models"
	appErrors "github.com/docutrail/dtrs-api/pkg/errors"
)

const documentColumns = `id, tracking_number, subject, document_type, owner_type, owner_name, priority, status,
       current_department_id, current_user_id, document_case_id, is_returnable, due_at, received_at,
       completed_at, returned_at, returned_to, original_current_department_id, original_physical_location,
       metadata, created_at, updated_at`

// DocumentRepository persists document records.
type DocumentRepository struct {
	db *sqlx.DB
}

// NewDocumentRepository constructs the repository.
func NewDocumentRepository(db *sqlx.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

func (r *DocumentRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// Create inserts a new document row. A unique_violation on the tracking
// number surfaces as an integrity error per the intake numbering contract.
func (r *DocumentRepository) Create(ctx context.Context, exec sqlx.ExtContext, doc *models.Document) error {
	if doc.ID == "" {
		doc.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if doc.ReceivedAt.IsZero() {
		doc.ReceivedAt = now
	}
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = now
	}
	doc.UpdatedAt = now
	if doc.Priority == "" {
		doc.Priority = models.PriorityNormal
	}
	if len(doc.Metadata) == 0 {
		doc.Metadata = []byte("{}")
	}
	const query = `INSERT INTO documents
	(id, tracking_number, subject, document_type, owner_type, owner_name, priority, status,
	 current_department_id, current_user_id, document_case_id, is_returnable, due_at, received_at,
	 completed_at, returned_at, returned_to, original_current_department_id, original_physical_location,
	 metadata, created_at, updated_at)
	VALUES (:id, :tracking_number, :subject, :document_type, :owner_type, :owner_name, :priority, :status,
	 :current_department_id, :current_user_id, :document_case_id, :is_returnable, :due_at, :received_at,
	 :completed_at, :returned_at, :returned_to, :original_current_department_id, :original_physical_location,
	 :metadata, :created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, doc); err != nil {
		var pqErr *pq.Error
		if asPQError(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
			return appErrors.Wrap(err, appErrors.ErrIntegrity.Code, appErrors.ErrIntegrity.Status, "duplicate tracking number")
		}
		return fmt.Errorf("create document: %w", err)
	}
	return nil
}

// GetByID fetches a document by identifier.
func (r *DocumentRepository) GetByID(ctx context.Context, id string) (*models.Document, error) {
	query := fmt.Sprintf(`SELECT %s FROM documents WHERE id = $1`, documentColumns)
	var doc models.Document
	if err := r.db.GetContext(ctx, &doc, query, id); err != nil {
		return nil, err
	}
	return &doc, nil
}

// GetForUpdate loads a document inside a transaction with a row lock so
// concurrent routing operations serialise on the document.
func (r *DocumentRepository) GetForUpdate(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Document, error) {
	query := fmt.Sprintf(`SELECT %s FROM documents WHERE id = $1 FOR UPDATE`, documentColumns)
	var doc models.Document
	if err := sqlx.GetContext(ctx, r.exec(exec), &doc, query, id); err != nil {
		return nil, err
	}
	return &doc, nil
}

// List returns documents matching the filter (latest received first).
func (r *DocumentRepository) List(ctx context.Context, filter models.DocumentFilter) ([]models.Document, error) {
	builder := strings.Builder{}
	args := make([]interface{}, 0, 6)
	builder.WriteString(fmt.Sprintf("SELECT %s FROM documents", documentColumns))

	conditions := make([]string, 0, 5)
	if len(filter.Status) > 0 {
		placeholders := make([]string, len(filter.Status))
		for i, status := range filter.Status {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		conditions = append(conditions, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}
	if filter.DepartmentID != "" {
		args = append(args, filter.DepartmentID)
		conditions = append(conditions, fmt.Sprintf("current_department_id = $%d", len(args)))
	}
	if filter.CurrentUserID != "" {
		args = append(args, filter.CurrentUserID)
		conditions = append(conditions, fmt.Sprintf("current_user_id = $%d", len(args)))
	}
	if filter.CaseID != "" {
		args = append(args, filter.CaseID)
		conditions = append(conditions, fmt.Sprintf("document_case_id = $%d", len(args)))
	}
	if filter.DocumentType != "" {
		args = append(args, filter.DocumentType)
		conditions = append(conditions, fmt.Sprintf("document_type = $%d", len(args)))
	}
	if filter.Priority != "" {
		args = append(args, filter.Priority)
		conditions = append(conditions, fmt.Sprintf("priority = $%d", len(args)))
	}
	if filter.Search != "" {
		args = append(args, "%"+filter.Search+"%")
		conditions = append(conditions, fmt.Sprintf("(subject ILIKE $%d OR tracking_number ILIKE $%d)", len(args), len(args)))
	}
	if len(conditions) > 0 {
		builder.WriteString(" WHERE ")
		builder.WriteString(strings.Join(conditions, " AND "))
	}
	builder.WriteString(" ORDER BY received_at DESC")

	limit := filter.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	builder.WriteString(fmt.Sprintf(" LIMIT %d OFFSET %d", limit, offset))

	var docs []models.Document
	if err := r.db.SelectContext(ctx, &docs, builder.String(), args...); err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	return docs, nil
}

// ListOpen returns every non-finished document, for the alert engine scan.
func (r *DocumentRepository) ListOpen(ctx context.Context, exec sqlx.ExtContext) ([]models.Document, error) {
	query := fmt.Sprintf(`SELECT %s FROM documents WHERE status IN ($1, $2, $3)`, documentColumns)
	var docs []models.Document
	err := sqlx.SelectContext(ctx, r.exec(exec), &docs, query,
		models.DocumentStatusIncoming, models.DocumentStatusOnQueue, models.DocumentStatusOutgoing)
	if err != nil {
		return nil, fmt.Errorf("list open documents: %w", err)
	}
	return docs, nil
}

// UpdateRoutingParams groups the columns the workflow engine mutates.
type UpdateRoutingParams struct {
	ID                  string
	Status              models.DocumentStatus
	CurrentDepartmentID *string
	CurrentUserID       *string
	CompletedAt         *time.Time
	UpdatedAt           time.Time
}

// UpdateRouting applies a workflow transition to the holder pointers.
func (r *DocumentRepository) UpdateRouting(ctx context.Context, exec sqlx.ExtContext, params UpdateRoutingParams) error {
	if params.UpdatedAt.IsZero() {
		params.UpdatedAt = time.Now().UTC()
	}
	const query = `UPDATE documents SET status = $2, current_department_id = $3, current_user_id = $4,
	 completed_at = COALESCE($5, completed_at), updated_at = $6 WHERE id = $1`
	if _, err := r.exec(exec).ExecContext(ctx, query, params.ID, params.Status,
		params.CurrentDepartmentID, params.CurrentUserID, params.CompletedAt, params.UpdatedAt); err != nil {
		return fmt.Errorf("update document routing: %w", err)
	}
	return nil
}

// UpdateOriginalCustody records who holds the physical original.
func (r *DocumentRepository) UpdateOriginalCustody(ctx context.Context, exec sqlx.ExtContext, id string, departmentID, physicalLocation *string) error {
	const query = `UPDATE documents SET original_current_department_id = $2, original_physical_location = $3,
	 updated_at = $4 WHERE id = $1`
	if _, err := r.exec(exec).ExecContext(ctx, query, id, departmentID, physicalLocation, time.Now().UTC()); err != nil {
		return fmt.Errorf("update document custody pointer: %w", err)
	}
	return nil
}

// UpdateReturn marks the physical original as returned to its owner.
func (r *DocumentRepository) UpdateReturn(ctx context.Context, exec sqlx.ExtContext, id, returnedTo string, returnedAt time.Time) error {
	const query = `UPDATE documents SET returned_at = $2, returned_to = $3, updated_at = $2 WHERE id = $1`
	if _, err := r.exec(exec).ExecContext(ctx, query, id, returnedAt, returnedTo); err != nil {
		return fmt.Errorf("update document return: %w", err)
	}
	return nil
}

// UpdateMetadata replaces the free-form annotation payload.
func (r *DocumentRepository) UpdateMetadata(ctx context.Context, exec sqlx.ExtContext, id string, metadata []byte) error {
	const query = `UPDATE documents SET metadata = $2, updated_at = $3 WHERE id = $1`
	if _, err := r.exec(exec).ExecContext(ctx, query, id, metadata, time.Now().UTC()); err != nil {
		return fmt.Errorf("update document metadata: %w", err)
	}
	return nil
}

// NextTrackingSequence atomically advances the per-year intake counter.
func (r *DocumentRepository) NextTrackingSequence(ctx context.Context, exec sqlx.ExtContext, year int) (int, error) {
	const query = `INSERT INTO tracking_counters (year, value) VALUES ($1, 1)
	 ON CONFLICT (year) DO UPDATE SET value = tracking_counters.value + 1
	 RETURNING value`
	var value int
	if err := sqlx.GetContext(ctx, r.exec(exec), &value, query, year); err != nil {
		return 0, fmt.Errorf("next tracking sequence: %w", err)
	}
	return value, nil
}

// ListRegister returns documents received or completed inside the window,
// for the monthly register report.
func (r *DocumentRepository) ListRegister(ctx context.Context, from, to time.Time) ([]models.Document, error) {
	query := fmt.Sprintf(`SELECT %s FROM documents
	 WHERE (received_at >= $1 AND received_at < $2) OR (completed_at >= $1 AND completed_at < $2)
	 ORDER BY received_at ASC`, documentColumns)
	var docs []models.Document
	if err := r.db.SelectContext(ctx, &docs, query, from, to); err != nil {
		return nil, fmt.Errorf("list register documents: %w", err)
	}
	return docs, nil
}

func asPQError(err error, target **pq.Error) bool {
	for err != nil {
		if e, ok := err.(*pq.Error); ok {
			*target = e
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
