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

type custodyDocumentRepository interface {
	GetForUpdate(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Document, error)
	UpdateOriginalCustody(ctx context.Context, exec sqlx.ExtContext, id string, departmentID, physicalLocation *string) error
	UpdateReturn(ctx context.Context, exec sqlx.ExtContext, id, returnedTo string, returnedAt time.Time) error
	UpdateRouting(ctx context.Context, exec sqlx.ExtContext, params repository.UpdateRoutingParams) error
}

type custodyRecordRepository interface {
	GetCurrent(ctx context.Context, exec sqlx.ExtContext, documentID string) (*models.DocumentCustody, error)
	CloseCurrent(ctx context.Context, exec sqlx.ExtContext, documentID string, status models.CustodyStatus) error
	Create(ctx context.Context, exec sqlx.ExtContext, custody *models.DocumentCustody) error
	CreateCopy(ctx context.Context, exec sqlx.ExtContext, copyRec *models.DocumentCopy) error
	ListByDocument(ctx context.Context, documentID string) ([]models.DocumentCustody, error)
	ListCopies(ctx context.Context, documentID string) ([]models.DocumentCopy, error)
}

type custodyUserRepository interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

type custodyTransferRepository interface {
	GetPending(ctx context.Context, exec sqlx.ExtContext, documentID string) (*models.DocumentTransfer, error)
}

type custodyEventRepository interface {
	Append(ctx context.Context, exec sqlx.ExtContext, event *models.DocumentEvent) error
}

// CustodyService tracks where a document's physical original sits and
// inventories the copies departments retain.
type CustodyService struct {
	documents custodyDocumentRepository
	custodies custodyRecordRepository
	users     custodyUserRepository
	transfers custodyTransferRepository
	events    custodyEventRepository
	tx        txProvider
	validator *validator.Validate
	logger    *zap.Logger
}

// NewCustodyService constructs a CustodyService.
func NewCustodyService(
	documents custodyDocumentRepository,
	custodies custodyRecordRepository,
	users custodyUserRepository,
	transfers custodyTransferRepository,
	events custodyEventRepository,
	tx txProvider,
	validate *validator.Validate,
	logger *zap.Logger,
) *CustodyService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &CustodyService{
		documents: documents,
		custodies: custodies,
		users:     users,
		transfers: transfers,
		events:    events,
		tx:        tx,
		validator: validate,
		logger:    logger,
	}
}

// AssignOriginal records a new holder for the physical original. The
// previous holder's record is closed in the same transaction so exactly
// one current row survives, and the custody event names the holder that
// was displaced.
func (s *CustodyService) AssignOriginal(ctx context.Context, actor *models.JWTClaims, documentID string, req dto.AssignCustodyRequest) (*models.DocumentCustody, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid custody payload")
	}

	custodian, err := s.users.FindByID(ctx, req.CustodianUserID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "custodian user not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load custodian")
	}
	if custodian.DepartmentID != req.DepartmentID {
		return nil, appErrors.Clone(appErrors.ErrCustodyAction, "custodian does not belong to the receiving department")
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

	if doc.ReturnedAt != nil {
		err = appErrors.Clone(appErrors.ErrCustodyAction, "original was already returned to its owner")
		return nil, err
	}

	previous, err := s.custodies.GetCurrent(ctx, tx, documentID)
	if err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load current custody")
		return nil, err
	}

	if err = s.custodies.CloseCurrent(ctx, tx, documentID, models.CustodyStatusTransferred); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to close previous custody")
		return nil, err
	}

	custody := &models.DocumentCustody{
		DocumentID:       documentID,
		DepartmentID:     req.DepartmentID,
		UserID:           req.CustodianUserID,
		VersionType:      models.VersionOriginal,
		IsCurrent:        true,
		Status:           models.CustodyStatusInCustody,
		PhysicalLocation: optionalString(req.PhysicalLocation),
		StorageReference: optionalString(req.StorageReference),
	}
	if err = s.custodies.Create(ctx, tx, custody); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create custody record")
		return nil, err
	}

	deptID := req.DepartmentID
	if err = s.documents.UpdateOriginalCustody(ctx, tx, documentID, &deptID, optionalString(req.PhysicalLocation)); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update document custody pointer")
		return nil, err
	}

	payload := map[string]any{
		"custody_id":        custody.ID,
		"department_id":     req.DepartmentID,
		"custodian_user_id": req.CustodianUserID,
	}
	if previous != nil {
		payload["previous_department_id"] = previous.DepartmentID
		payload["previous_custodian_user_id"] = previous.UserID
	}
	if err = s.appendEvent(ctx, tx, documentID, models.EventCustodyAssigned, actor.UserID, payload); err != nil {
		return nil, err
	}

	if err = tx.Commit(); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit custody transaction")
		return nil, err
	}
	return custody, nil
}

// RecordCopy inventories a reproduction retained at a department.
func (s *CustodyService) RecordCopy(ctx context.Context, actor *models.JWTClaims, documentID string, req dto.RecordCopyRequest) (*models.DocumentCopy, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid copy payload")
	}
	if !models.ValidVersionType(req.CopyType) || req.CopyType == models.VersionOriginal {
		return nil, appErrors.Clone(appErrors.ErrValidation, "copy type must be a non-original rendition")
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

	if _, err = s.documents.GetForUpdate(ctx, tx, documentID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = appErrors.Clone(appErrors.ErrNotFound, "document not found")
			return nil, err
		}
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load document")
		return nil, err
	}

	copyRec := &models.DocumentCopy{
		DocumentID:      documentID,
		DepartmentID:    req.DepartmentID,
		UserID:          req.UserID,
		CopyType:        req.CopyType,
		StorageLocation: optionalString(req.StorageLocation),
		Purpose:         optionalString(req.Purpose),
	}
	if err = s.custodies.CreateCopy(ctx, tx, copyRec); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record copy")
		return nil, err
	}

	if err = s.appendEvent(ctx, tx, documentID, models.EventCustodyCopyRecorded, actor.UserID, map[string]any{
		"copy_id":       copyRec.ID,
		"department_id": req.DepartmentID,
		"copy_type":     req.CopyType,
	}); err != nil {
		return nil, err
	}

	if err = tx.Commit(); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit copy transaction")
		return nil, err
	}
	return copyRec, nil
}

// MarkReturned hands the physical original back to its owner. When no
// transfer is in flight the document is also finished.
func (s *CustodyService) MarkReturned(ctx context.Context, actor *models.JWTClaims, documentID string, req dto.ReturnOriginalRequest) (*models.Document, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid return payload")
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

	if !doc.IsReturnable {
		err = appErrors.Clone(appErrors.ErrCustodyAction, "document is not returnable")
		return nil, err
	}
	if doc.ReturnedAt != nil {
		err = appErrors.Clone(appErrors.ErrCustodyAction, "original was already returned")
		return nil, err
	}

	now := time.Now().UTC()
	if err = s.custodies.CloseCurrent(ctx, tx, documentID, models.CustodyStatusReturned); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to close custody record")
		return nil, err
	}

	if err = s.documents.UpdateReturn(ctx, tx, documentID, req.ReturnedTo, now); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record return")
		return nil, err
	}

	finished := false
	if doc.Status != models.DocumentStatusFinished {
		if _, pendingErr := s.transfers.GetPending(ctx, tx, documentID); pendingErr != nil {
			if !errors.Is(pendingErr, sql.ErrNoRows) {
				err = appErrors.Wrap(pendingErr, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check pending transfers")
				return nil, err
			}
			if err = s.documents.UpdateRouting(ctx, tx, repository.UpdateRoutingParams{
				ID:          documentID,
				Status:      models.DocumentStatusFinished,
				CompletedAt: &now,
				UpdatedAt:   now,
			}); err != nil {
				err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to finish document")
				return nil, err
			}
			finished = true
		}
	}

	if err = s.appendEvent(ctx, tx, documentID, models.EventCustodyReturned, actor.UserID, map[string]any{
		"returned_to": req.ReturnedTo,
		"finished":    finished,
	}); err != nil {
		return nil, err
	}

	if err = tx.Commit(); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit return transaction")
		return nil, err
	}

	doc.ReturnedAt = &now
	doc.ReturnedTo = &req.ReturnedTo
	if finished {
		doc.Status = models.DocumentStatusFinished
		doc.CurrentDepartmentID = nil
		doc.CurrentUserID = nil
		doc.CompletedAt = &now
	}
	doc.UpdatedAt = now
	return doc, nil
}

// History returns the custody trail and copy inventory for a document.
func (s *CustodyService) History(ctx context.Context, documentID string) ([]models.DocumentCustody, []models.DocumentCopy, error) {
	custodies, err := s.custodies.ListByDocument(ctx, documentID)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list custody history")
	}
	copies, err := s.custodies.ListCopies(ctx, documentID)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list copies")
	}
	return custodies, copies, nil
}

func (s *CustodyService) appendEvent(ctx context.Context, exec sqlx.ExtContext, documentID, eventType, actorID string, payload map[string]any) error {
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
