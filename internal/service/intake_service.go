package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/docutrail/dtrs-api/internal/dto"
	"github.com/docutrail/dtrs-api/internal/models"
	appErrors "github.com/docutrail/dtrs-api/pkg/errors"
)

type intakeDocumentRepository interface {
	Create(ctx context.Context, exec sqlx.ExtContext, doc *models.Document) error
	GetByID(ctx context.Context, id string) (*models.Document, error)
	List(ctx context.Context, filter models.DocumentFilter) ([]models.Document, error)
	NextTrackingSequence(ctx context.Context, exec sqlx.ExtContext, year int) (int, error)
}

type intakeCaseRepository interface {
	Create(ctx context.Context, exec sqlx.ExtContext, documentCase *models.DocumentCase) error
	GetByID(ctx context.Context, id string) (*models.DocumentCase, error)
}

type intakeEventRepository interface {
	Append(ctx context.Context, exec sqlx.ExtContext, event *models.DocumentEvent) error
	ListByDocument(ctx context.Context, documentID string, limit, offset int) ([]models.DocumentEvent, error)
}

// IntakeService registers new documents at the receiving office and
// assigns tracking numbers.
type IntakeService struct {
	documents      intakeDocumentRepository
	cases          intakeCaseRepository
	events         intakeEventRepository
	tx             txProvider
	validator      *validator.Validate
	logger         *zap.Logger
	trackingPrefix string
}

// NewIntakeService constructs an IntakeService.
func NewIntakeService(
	documents intakeDocumentRepository,
	cases intakeCaseRepository,
	events intakeEventRepository,
	tx txProvider,
	validate *validator.Validate,
	logger *zap.Logger,
	trackingPrefix string,
) *IntakeService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if trackingPrefix == "" {
		trackingPrefix = "DTS"
	}
	return &IntakeService{
		documents:      documents,
		cases:          cases,
		events:         events,
		tx:             tx,
		validator:      validate,
		logger:         logger,
		trackingPrefix: trackingPrefix,
	}
}

// Receive registers a document at the actor's department. The document
// lands ON_QUEUE with the actor as its personal holder.
func (s *IntakeService) Receive(ctx context.Context, actor *models.JWTClaims, req dto.ReceiveDocumentRequest) (*models.Document, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid receive payload")
	}
	if req.Priority != "" {
		switch req.Priority {
		case models.PriorityLow, models.PriorityNormal, models.PriorityHigh, models.PriorityUrgent:
		default:
			return nil, appErrors.Clone(appErrors.ErrValidation, "unknown priority")
		}
	}

	var caseID *string
	if req.CaseID != "" {
		if _, err := s.cases.GetByID(ctx, req.CaseID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Clone(appErrors.ErrNotFound, "case not found")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load case")
		}
		id := req.CaseID
		caseID = &id
	}

	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	now := time.Now().UTC()

	if caseID == nil && req.CaseTitle != "" {
		documentCase := &models.DocumentCase{
			CaseNumber:      fmt.Sprintf("CASE-%d-%d", now.Year(), now.UnixNano()%1_000_000),
			Title:           req.CaseTitle,
			CreatedByUserID: actor.UserID,
		}
		if err = s.cases.Create(ctx, tx, documentCase); err != nil {
			err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create case")
			return nil, err
		}
		caseID = &documentCase.ID
	}

	var sequence int
	sequence, err = s.documents.NextTrackingSequence(ctx, tx, now.Year())
	if err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to allocate tracking number")
		return nil, err
	}

	deptID := actor.DepartmentID
	userID := actor.UserID
	doc := &models.Document{
		TrackingNumber:      fmt.Sprintf("%s-%d-%06d", s.trackingPrefix, now.Year(), sequence),
		Subject:             req.Subject,
		DocumentType:        req.DocumentType,
		OwnerType:           req.OwnerType,
		OwnerName:           req.OwnerName,
		Priority:            req.Priority,
		Status:              models.DocumentStatusOnQueue,
		CurrentDepartmentID: &deptID,
		CurrentUserID:       &userID,
		DocumentCaseID:      caseID,
		IsReturnable:        req.IsReturnable,
		DueAt:               req.DueAt,
		ReceivedAt:          now,
	}
	if err = s.documents.Create(ctx, tx, doc); err != nil {
		return nil, err
	}

	payload, marshalErr := json.Marshal(map[string]any{
		"tracking_number": doc.TrackingNumber,
		"department_id":   deptID,
		"remarks":         req.Remarks,
	})
	if marshalErr != nil {
		err = appErrors.Wrap(marshalErr, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to encode event payload")
		return nil, err
	}
	if err = s.events.Append(ctx, tx, &models.DocumentEvent{
		DocumentID:  doc.ID,
		EventType:   models.EventDocumentCreated,
		ActorUserID: &userID,
		Payload:     payload,
	}); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to append document event")
		return nil, err
	}

	if err = tx.Commit(); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit intake transaction")
		return nil, err
	}

	s.logger.Info("document received",
		zap.String("document_id", doc.ID),
		zap.String("tracking_number", doc.TrackingNumber),
		zap.String("department_id", deptID))
	return doc, nil
}

// Get fetches one document.
func (s *IntakeService) Get(ctx context.Context, id string) (*models.Document, error) {
	doc, err := s.documents.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "document not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load document")
	}
	return doc, nil
}

// List returns documents matching the query. Non-admin actors are scoped
// to their own department.
func (s *IntakeService) List(ctx context.Context, actor *models.JWTClaims, query dto.DocumentQuery) ([]models.Document, error) {
	scope := query.DepartmentID
	if !models.CrossDepartmentVisibility(actor.Role) {
		scope = actor.DepartmentID
	}

	pageSize := query.PageSize
	if pageSize <= 0 {
		pageSize = 50
	}
	page := query.Page
	if page < 1 {
		page = 1
	}

	docs, err := s.documents.List(ctx, models.DocumentFilter{
		Status:       query.Status,
		DepartmentID: scope,
		CaseID:       query.CaseID,
		DocumentType: query.DocumentType,
		Search:       query.Search,
		Limit:        pageSize,
		Offset:       (page - 1) * pageSize,
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list documents")
	}
	return docs, nil
}

// Timeline returns the audit trail for a document.
func (s *IntakeService) Timeline(ctx context.Context, documentID string, limit, offset int) ([]models.DocumentEvent, error) {
	events, err := s.events.ListByDocument(ctx, documentID, limit, offset)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list document events")
	}
	return events, nil
}
