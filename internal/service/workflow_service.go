package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/docutrail/dtrs-api/internal/dto"
	"github.com/docutrail/dtrs-api/internal/models"
	"github.com/docutrail/dtrs-api/internal/repository"
	appErrors "github.com/docutrail/dtrs-api/pkg/errors"
)

type txProvider interface {
	BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error)
}

type workflowDocumentRepository interface {
	GetByID(ctx context.Context, id string) (*models.Document, error)
	GetForUpdate(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Document, error)
	List(ctx context.Context, filter models.DocumentFilter) ([]models.Document, error)
	UpdateRouting(ctx context.Context, exec sqlx.ExtContext, params repository.UpdateRoutingParams) error
}

type workflowTransferRepository interface {
	Create(ctx context.Context, exec sqlx.ExtContext, transfer *models.DocumentTransfer) error
	GetPending(ctx context.Context, exec sqlx.ExtContext, documentID string) (*models.DocumentTransfer, error)
	Resolve(ctx context.Context, exec sqlx.ExtContext, params repository.ResolveTransferParams) error
	List(ctx context.Context, filter models.TransferFilter) ([]models.DocumentTransfer, error)
}

type workflowCopyRepository interface {
	CreateCopy(ctx context.Context, exec sqlx.ExtContext, copyRec *models.DocumentCopy) error
}

type workflowDepartmentRepository interface {
	GetByID(ctx context.Context, id string) (*models.Department, error)
}

type workflowEventRepository interface {
	Append(ctx context.Context, exec sqlx.ExtContext, event *models.DocumentEvent) error
}

// WorkflowService implements document routing between departments:
// forward, accept, recall, and complete. Every mutation locks the document
// row so concurrent transitions serialise.
type WorkflowService struct {
	documents   workflowDocumentRepository
	transfers   workflowTransferRepository
	copies      workflowCopyRepository
	departments workflowDepartmentRepository
	events      workflowEventRepository
	tx          txProvider
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewWorkflowService constructs a WorkflowService.
func NewWorkflowService(
	documents workflowDocumentRepository,
	transfers workflowTransferRepository,
	copies workflowCopyRepository,
	departments workflowDepartmentRepository,
	events workflowEventRepository,
	tx txProvider,
	validate *validator.Validate,
	logger *zap.Logger,
) *WorkflowService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &WorkflowService{
		documents:   documents,
		transfers:   transfers,
		copies:      copies,
		departments: departments,
		events:      events,
		tx:          tx,
		validator:   validate,
		logger:      logger,
	}
}

// Forward routes a document from the actor's department to another
// department, leaving it OUTGOING until the destination accepts.
func (s *WorkflowService) Forward(ctx context.Context, actor *models.JWTClaims, documentID string, req dto.ForwardRequest) (*dto.ForwardResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid forward payload")
	}
	if !models.ValidVersionType(req.ForwardVersionType) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown forward version type")
	}

	destination, err := s.departments.GetByID(ctx, req.ToDepartmentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "destination department not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load destination department")
	}
	if !destination.Active {
		return nil, appErrors.Clone(appErrors.ErrValidation, "destination department is not active")
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

	doc, err := s.documents.GetForUpdate(ctx, tx, documentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = appErrors.Clone(appErrors.ErrNotFound, "document not found")
			return nil, err
		}
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load document")
		return nil, err
	}

	if doc.Status != models.DocumentStatusOnQueue {
		err = appErrors.Clone(appErrors.ErrWorkflow, "document is not on a department queue")
		return nil, err
	}
	if doc.CurrentDepartmentID == nil || actor.DepartmentID != *doc.CurrentDepartmentID {
		err = appErrors.Clone(appErrors.ErrAuthorization, "document is not held by the actor's department")
		return nil, err
	}
	if req.ToDepartmentID == *doc.CurrentDepartmentID {
		err = appErrors.Clone(appErrors.ErrValidation, "cannot forward a document to its current department")
		return nil, err
	}

	if _, pendingErr := s.transfers.GetPending(ctx, tx, documentID); pendingErr == nil {
		err = appErrors.Clone(appErrors.ErrWorkflow, "document already has a pending transfer")
		return nil, err
	} else if !errors.Is(pendingErr, sql.ErrNoRows) {
		err = appErrors.Wrap(pendingErr, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check pending transfers")
		return nil, err
	}

	now := time.Now().UTC()
	fromDept := *doc.CurrentDepartmentID
	transfer := &models.DocumentTransfer{
		DocumentID:              documentID,
		FromDepartmentID:        &fromDept,
		ToDepartmentID:          req.ToDepartmentID,
		ForwardedByUserID:       actor.UserID,
		Status:                  models.TransferStatusPending,
		ForwardVersionType:      req.ForwardVersionType,
		Remarks:                 req.Remarks,
		DispatchMethod:          optionalString(req.DispatchMethod),
		DispatchReference:       optionalString(req.DispatchReference),
		ReleaseReceiptReference: optionalString(req.ReleaseReceiptRef),
		ForwardedAt:             now,
	}
	if err = s.transfers.Create(ctx, tx, transfer); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create transfer")
		return nil, err
	}

	// The document stays attributed to the sending department while in
	// flight; the personal holder is cleared.
	if err = s.documents.UpdateRouting(ctx, tx, repository.UpdateRoutingParams{
		ID:                  documentID,
		Status:              models.DocumentStatusOutgoing,
		CurrentDepartmentID: doc.CurrentDepartmentID,
		CurrentUserID:       nil,
		UpdatedAt:           now,
	}); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update document routing")
		return nil, err
	}

	if req.KeepCopy {
		copyRec := &models.DocumentCopy{
			DocumentID:      documentID,
			DepartmentID:    fromDept,
			UserID:          actor.UserID,
			CopyType:        models.VersionPhotocopy,
			StorageLocation: optionalString(req.CopyStorageLocation),
			Purpose:         optionalString(req.CopyPurpose),
		}
		if err = s.copies.CreateCopy(ctx, tx, copyRec); err != nil {
			err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record retained copy")
			return nil, err
		}
	}

	if err = s.appendEvent(ctx, tx, documentID, models.EventWorkflowForwarded, actor.UserID, map[string]any{
		"transfer_id":          transfer.ID,
		"from_department_id":   fromDept,
		"to_department_id":     req.ToDepartmentID,
		"forward_version_type": req.ForwardVersionType,
		"remarks":              req.Remarks,
	}); err != nil {
		return nil, err
	}

	if err = tx.Commit(); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit forward transaction")
		return nil, err
	}

	doc.Status = models.DocumentStatusOutgoing
	doc.CurrentUserID = nil
	doc.UpdatedAt = now
	return &dto.ForwardResponse{Document: doc, Transfer: transfer}, nil
}

// Accept claims an inbound transfer for the actor's department, placing
// the document on its queue.
func (s *WorkflowService) Accept(ctx context.Context, actor *models.JWTClaims, documentID string) (*models.Document, error) {
	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	doc, err := s.documents.GetForUpdate(ctx, tx, documentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = appErrors.Clone(appErrors.ErrNotFound, "document not found")
			return nil, err
		}
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load document")
		return nil, err
	}

	if doc.Status != models.DocumentStatusOutgoing && doc.Status != models.DocumentStatusIncoming {
		err = appErrors.Clone(appErrors.ErrWorkflow, "document has no transfer awaiting acceptance")
		return nil, err
	}

	pending, err := s.transfers.GetPending(ctx, tx, documentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = appErrors.Clone(appErrors.ErrWorkflow, "document has no pending transfer")
			return nil, err
		}
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load pending transfer")
		return nil, err
	}

	if pending.ToDepartmentID != actor.DepartmentID {
		err = appErrors.Clone(appErrors.ErrAuthorization, "transfer is not addressed to the actor's department")
		return nil, err
	}

	now := time.Now().UTC()
	acceptedBy := actor.UserID
	if err = s.transfers.Resolve(ctx, tx, repository.ResolveTransferParams{
		ID:               pending.ID,
		Status:           models.TransferStatusAccepted,
		AcceptedByUserID: &acceptedBy,
		AcceptedAt:       &now,
	}); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = appErrors.Clone(appErrors.ErrWorkflow, "transfer was already resolved")
			return nil, err
		}
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve transfer")
		return nil, err
	}

	destDept := pending.ToDepartmentID
	if err = s.documents.UpdateRouting(ctx, tx, repository.UpdateRoutingParams{
		ID:                  documentID,
		Status:              models.DocumentStatusOnQueue,
		CurrentDepartmentID: &destDept,
		CurrentUserID:       &acceptedBy,
		UpdatedAt:           now,
	}); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update document routing")
		return nil, err
	}

	if err = s.appendEvent(ctx, tx, documentID, models.EventWorkflowAccepted, actor.UserID, map[string]any{
		"transfer_id":      pending.ID,
		"to_department_id": pending.ToDepartmentID,
	}); err != nil {
		return nil, err
	}

	if err = tx.Commit(); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit accept transaction")
		return nil, err
	}

	doc.Status = models.DocumentStatusOnQueue
	doc.CurrentDepartmentID = &destDept
	doc.CurrentUserID = &acceptedBy
	doc.UpdatedAt = now
	return doc, nil
}

// Recall withdraws a pending transfer, returning the document to the
// sending department's queue. Allowed for the authoring user or anyone in
// the sending department.
func (s *WorkflowService) Recall(ctx context.Context, actor *models.JWTClaims, documentID string) (*models.Document, error) {
	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	doc, err := s.documents.GetForUpdate(ctx, tx, documentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = appErrors.Clone(appErrors.ErrNotFound, "document not found")
			return nil, err
		}
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load document")
		return nil, err
	}

	pending, err := s.transfers.GetPending(ctx, tx, documentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = appErrors.Clone(appErrors.ErrWorkflow, "document has no pending transfer to recall")
			return nil, err
		}
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load pending transfer")
		return nil, err
	}

	authorised := actor.UserID == pending.ForwardedByUserID ||
		(pending.FromDepartmentID != nil && actor.DepartmentID == *pending.FromDepartmentID)
	if !authorised {
		err = appErrors.Clone(appErrors.ErrAuthorization, "only the sender or the sending department may recall a transfer")
		return nil, err
	}

	now := time.Now().UTC()
	if err = s.transfers.Resolve(ctx, tx, repository.ResolveTransferParams{
		ID:     pending.ID,
		Status: models.TransferStatusRecalled,
	}); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = appErrors.Clone(appErrors.ErrWorkflow, "transfer was already resolved")
			return nil, err
		}
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve transfer")
		return nil, err
	}

	forwardedBy := pending.ForwardedByUserID
	if err = s.documents.UpdateRouting(ctx, tx, repository.UpdateRoutingParams{
		ID:                  documentID,
		Status:              models.DocumentStatusOnQueue,
		CurrentDepartmentID: pending.FromDepartmentID,
		CurrentUserID:       &forwardedBy,
		UpdatedAt:           now,
	}); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update document routing")
		return nil, err
	}

	if err = s.appendEvent(ctx, tx, documentID, models.EventWorkflowRecalled, actor.UserID, map[string]any{
		"transfer_id":      pending.ID,
		"to_department_id": pending.ToDepartmentID,
	}); err != nil {
		return nil, err
	}

	if err = tx.Commit(); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit recall transaction")
		return nil, err
	}

	doc.Status = models.DocumentStatusOnQueue
	doc.CurrentDepartmentID = pending.FromDepartmentID
	doc.CurrentUserID = &forwardedBy
	doc.UpdatedAt = now
	return doc, nil
}

// Complete finishes a document at the actor's department.
func (s *WorkflowService) Complete(ctx context.Context, actor *models.JWTClaims, documentID string, req dto.CompleteRequest) (*models.Document, error) {
	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	doc, err := s.documents.GetForUpdate(ctx, tx, documentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = appErrors.Clone(appErrors.ErrNotFound, "document not found")
			return nil, err
		}
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load document")
		return nil, err
	}

	if doc.Status != models.DocumentStatusOnQueue {
		err = appErrors.Clone(appErrors.ErrWorkflow, "only a document on a queue can be completed")
		return nil, err
	}
	if doc.CurrentDepartmentID == nil || actor.DepartmentID != *doc.CurrentDepartmentID {
		err = appErrors.Clone(appErrors.ErrAuthorization, "document is not held by the actor's department")
		return nil, err
	}

	now := time.Now().UTC()
	if err = s.documents.UpdateRouting(ctx, tx, repository.UpdateRoutingParams{
		ID:                  documentID,
		Status:              models.DocumentStatusFinished,
		CurrentDepartmentID: nil,
		CurrentUserID:       nil,
		CompletedAt:         &now,
		UpdatedAt:           now,
	}); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update document routing")
		return nil, err
	}

	if err = s.appendEvent(ctx, tx, documentID, models.EventWorkflowCompleted, actor.UserID, map[string]any{
		"department_id": actor.DepartmentID,
		"remarks":       req.Remarks,
	}); err != nil {
		return nil, err
	}

	if err = tx.Commit(); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit complete transaction")
		return nil, err
	}

	doc.Status = models.DocumentStatusFinished
	doc.CurrentDepartmentID = nil
	doc.CurrentUserID = nil
	doc.CompletedAt = &now
	doc.UpdatedAt = now
	return doc, nil
}

// ForAction returns the work sitting with a department. Non-admin actors
// are always scoped to their own department.
func (s *WorkflowService) ForAction(ctx context.Context, actor *models.JWTClaims, departmentID string) (*dto.ForActionResponse, error) {
	scope := actor.DepartmentID
	if departmentID != "" && models.CrossDepartmentVisibility(actor.Role) {
		scope = departmentID
	}

	queue, err := s.documents.List(ctx, models.DocumentFilter{
		Status:       []models.DocumentStatus{models.DocumentStatusOnQueue},
		DepartmentID: scope,
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list department queue")
	}

	inbound, err := s.transfers.List(ctx, models.TransferFilter{
		Status:         []models.TransferStatus{models.TransferStatusPending},
		ToDepartmentID: scope,
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list inbound transfers")
	}

	return &dto.ForActionResponse{Queue: queue, AwaitingAcceptance: inbound}, nil
}

// PendingAuthoredBy lists the actor's own unresolved forwards, the ones
// they may still recall.
func (s *WorkflowService) PendingAuthoredBy(ctx context.Context, actor *models.JWTClaims) ([]models.DocumentTransfer, error) {
	transfers, err := s.transfers.List(ctx, models.TransferFilter{
		Status:            []models.TransferStatus{models.TransferStatusPending},
		ForwardedByUserID: actor.UserID,
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list authored transfers")
	}
	return transfers, nil
}

func (s *WorkflowService) appendEvent(ctx context.Context, exec sqlx.ExtContext, documentID, eventType, actorID string, payload map[string]any) error {
	raw, marshalErr := json.Marshal(payload)
	if marshalErr != nil {
		return appErrors.Wrap(marshalErr, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to encode event payload")
	}
	event := &models.DocumentEvent{
		DocumentID:  documentID,
		EventType:   eventType,
		ActorUserID: &actorID,
		Payload:     raw,
	}
	if appendErr := s.events.Append(ctx, exec, event); appendErr != nil {
		return appErrors.Wrap(appendErr, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to append document event")
	}
	return nil
}

func optionalString(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}
