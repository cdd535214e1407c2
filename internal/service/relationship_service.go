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

type relationshipDocumentRepository interface {
	GetByID(ctx context.Context, id string) (*models.Document, error)
	GetForUpdate(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Document, error)
	Create(ctx context.Context, exec sqlx.ExtContext, doc *models.Document) error
	UpdateMetadata(ctx context.Context, exec sqlx.ExtContext, id string, metadata []byte) error
	NextTrackingSequence(ctx context.Context, exec sqlx.ExtContext, year int) (int, error)
}

type relationshipLinkRepository interface {
	Create(ctx context.Context, exec sqlx.ExtContext, rel *models.DocumentRelationship) error
	ListByDocument(ctx context.Context, documentID string) ([]models.DocumentRelationship, error)
}

type relationshipTransferRepository interface {
	Create(ctx context.Context, exec sqlx.ExtContext, transfer *models.DocumentTransfer) error
}

type relationshipCopyRepository interface {
	CreateCopy(ctx context.Context, exec sqlx.ExtContext, copyRec *models.DocumentCopy) error
}

type relationshipDepartmentRepository interface {
	GetByID(ctx context.Context, id string) (*models.Department, error)
}

type relationshipEventRepository interface {
	Append(ctx context.Context, exec sqlx.ExtContext, event *models.DocumentEvent) error
}

// RelationshipService links documents together and decomposes a parent
// document into independently routed children.
type RelationshipService struct {
	documents      relationshipDocumentRepository
	relationships  relationshipLinkRepository
	transfers      relationshipTransferRepository
	copies         relationshipCopyRepository
	departments    relationshipDepartmentRepository
	events         relationshipEventRepository
	tx             txProvider
	validator      *validator.Validate
	logger         *zap.Logger
	trackingPrefix string
}

// NewRelationshipService constructs a RelationshipService.
func NewRelationshipService(
	documents relationshipDocumentRepository,
	relationships relationshipLinkRepository,
	transfers relationshipTransferRepository,
	copies relationshipCopyRepository,
	departments relationshipDepartmentRepository,
	events relationshipEventRepository,
	tx txProvider,
	validate *validator.Validate,
	logger *zap.Logger,
	trackingPrefix string,
) *RelationshipService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if trackingPrefix == "" {
		trackingPrefix = "DTS"
	}
	return &RelationshipService{
		documents:      documents,
		relationships:  relationships,
		transfers:      transfers,
		copies:         copies,
		departments:    departments,
		events:         events,
		tx:             tx,
		validator:      validate,
		logger:         logger,
		trackingPrefix: trackingPrefix,
	}
}

// AttachTo links supporting documents to a source document.
func (s *RelationshipService) AttachTo(ctx context.Context, actor *models.JWTClaims, documentID string, req dto.AttachRequest) ([]models.DocumentRelationship, error) {
	return s.link(ctx, actor, documentID, req.RelatedDocumentIDs, models.RelationAttachedTo, req.Remarks)
}

// RelateTo records a loose association between documents.
func (s *RelationshipService) RelateTo(ctx context.Context, actor *models.JWTClaims, documentID string, req dto.RelateRequest) ([]models.DocumentRelationship, error) {
	return s.link(ctx, actor, documentID, req.RelatedDocumentIDs, models.RelationRelatedTo, req.Remarks)
}

func (s *RelationshipService) link(ctx context.Context, actor *models.JWTClaims, documentID string, relatedIDs []string, relType models.RelationType, remarks string) ([]models.DocumentRelationship, error) {
	if len(relatedIDs) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "at least one related document is required")
	}

	if _, err := s.documents.GetByID(ctx, documentID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "document not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load document")
	}

	for _, relatedID := range relatedIDs {
		if relatedID == documentID {
			return nil, appErrors.Clone(appErrors.ErrValidation, "a document cannot be related to itself")
		}
		if _, err := s.documents.GetByID(ctx, relatedID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("related document %s not found", relatedID))
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load related document")
		}
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

	created := make([]models.DocumentRelationship, 0, len(relatedIDs))
	for _, relatedID := range relatedIDs {
		rel := &models.DocumentRelationship{
			DocumentID:        documentID,
			RelatedDocumentID: relatedID,
			RelationType:      relType,
			CreatedByUserID:   actor.UserID,
			Remarks:           remarks,
		}
		if err = s.relationships.Create(ctx, tx, rel); err != nil {
			err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create relationship")
			return nil, err
		}
		if err = s.appendEvent(ctx, tx, documentID, models.EventRelationshipLinked, actor.UserID, map[string]any{
			"related_document_id": relatedID,
			"relation_type":       relType,
		}); err != nil {
			return nil, err
		}
		created = append(created, *rel)
	}

	if err = tx.Commit(); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit relationship transaction")
		return nil, err
	}
	return created, nil
}

// SplitInto carves child documents out of a parent in a single
// transaction. Each child starts OUTGOING at the parent's department with
// a pending transfer to its target, so the fan-out is atomic: all children
// exist and are routed, or none are.
func (s *RelationshipService) SplitInto(ctx context.Context, actor *models.JWTClaims, documentID string, req dto.SplitRequest) (*dto.SplitResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid split payload")
	}

	for _, child := range req.Children {
		if !models.ValidVersionType(child.ForwardVersionType) {
			return nil, appErrors.Clone(appErrors.ErrValidation, "unknown forward version type in child spec")
		}
		for _, deptID := range child.TargetDepartmentIDs {
			dept, deptErr := s.departments.GetByID(ctx, deptID)
			if deptErr != nil {
				if errors.Is(deptErr, sql.ErrNoRows) {
					return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("target department %s not found", deptID))
				}
				return nil, appErrors.Wrap(deptErr, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load target department")
			}
			if !dept.Active {
				return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("target department %s is not active", deptID))
			}
		}
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

	parent, err := s.documents.GetForUpdate(ctx, tx, documentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = appErrors.Clone(appErrors.ErrNotFound, "document not found")
			return nil, err
		}
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load document")
		return nil, err
	}

	if parent.Status != models.DocumentStatusOnQueue {
		err = appErrors.Clone(appErrors.ErrWorkflow, "only a document on a queue can be split")
		return nil, err
	}
	if parent.CurrentDepartmentID == nil || actor.DepartmentID != *parent.CurrentDepartmentID {
		err = appErrors.Clone(appErrors.ErrAuthorization, "document is not held by the actor's department")
		return nil, err
	}

	now := time.Now().UTC()
	parentDept := *parent.CurrentDepartmentID
	children := make([]models.Document, 0)

	for _, spec := range req.Children {
		for _, targetDept := range spec.TargetDepartmentIDs {
			var sequence int
			sequence, err = s.documents.NextTrackingSequence(ctx, tx, now.Year())
			if err != nil {
				err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to allocate tracking number")
				return nil, err
			}

			priority := spec.Priority
			if priority == "" {
				priority = parent.Priority
			}
			ownerType := spec.OwnerType
			if ownerType == "" {
				ownerType = parent.OwnerType
			}
			ownerName := spec.OwnerName
			if ownerName == "" {
				ownerName = parent.OwnerName
			}

			child := models.Document{
				TrackingNumber:      fmt.Sprintf("%s-%d-%06d", s.trackingPrefix, now.Year(), sequence),
				Subject:             spec.Subject,
				DocumentType:        spec.DocumentType,
				OwnerType:           ownerType,
				OwnerName:           ownerName,
				Priority:            priority,
				Status:              models.DocumentStatusOutgoing,
				CurrentDepartmentID: &parentDept,
				DocumentCaseID:      parent.DocumentCaseID,
				IsReturnable:        spec.IsReturnable,
				DueAt:               spec.DueAt,
				ReceivedAt:          now,
			}
			if err = s.documents.Create(ctx, tx, &child); err != nil {
				err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create child document")
				return nil, err
			}

			transfer := &models.DocumentTransfer{
				DocumentID:         child.ID,
				FromDepartmentID:   &parentDept,
				ToDepartmentID:     targetDept,
				ForwardedByUserID:  actor.UserID,
				Status:             models.TransferStatusPending,
				ForwardVersionType: spec.ForwardVersionType,
				Remarks:            spec.Remarks,
				ForwardedAt:        now,
			}
			if err = s.transfers.Create(ctx, tx, transfer); err != nil {
				err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to route child document")
				return nil, err
			}

			if spec.KeepCopy {
				copyRec := &models.DocumentCopy{
					DocumentID:      child.ID,
					DepartmentID:    parentDept,
					UserID:          actor.UserID,
					CopyType:        models.VersionPhotocopy,
					StorageLocation: optionalString(spec.CopyStorageLocation),
				}
				if err = s.copies.CreateCopy(ctx, tx, copyRec); err != nil {
					err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record retained copy")
					return nil, err
				}
			}

			rel := &models.DocumentRelationship{
				DocumentID:        child.ID,
				RelatedDocumentID: parent.ID,
				RelationType:      models.RelationSplitFrom,
				CreatedByUserID:   actor.UserID,
				Remarks:           spec.Remarks,
			}
			if err = s.relationships.Create(ctx, tx, rel); err != nil {
				err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to link child to parent")
				return nil, err
			}

			if err = s.appendEvent(ctx, tx, child.ID, models.EventDocumentCreated, actor.UserID, map[string]any{
				"tracking_number":      child.TrackingNumber,
				"split_from":           parent.ID,
				"target_department_id": targetDept,
			}); err != nil {
				return nil, err
			}

			children = append(children, child)
		}
	}

	metadata := map[string]any{}
	if len(parent.Metadata) > 0 {
		if unmarshalErr := json.Unmarshal(parent.Metadata, &metadata); unmarshalErr != nil {
			metadata = map[string]any{}
		}
	}
	metadata["split_completed"] = true
	metadata["split_children_count"] = len(children)
	metadataBytes, marshalErr := json.Marshal(metadata)
	if marshalErr != nil {
		err = appErrors.Wrap(marshalErr, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to encode parent metadata")
		return nil, err
	}
	if err = s.documents.UpdateMetadata(ctx, tx, parent.ID, metadataBytes); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update parent metadata")
		return nil, err
	}

	childIDs := make([]string, 0, len(children))
	for _, child := range children {
		childIDs = append(childIDs, child.ID)
	}
	if err = s.appendEvent(ctx, tx, parent.ID, models.EventDocumentSplit, actor.UserID, map[string]any{
		"child_document_ids": childIDs,
	}); err != nil {
		return nil, err
	}

	if err = tx.Commit(); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit split transaction")
		return nil, err
	}

	parent.Metadata = metadataBytes
	return &dto.SplitResponse{Parent: parent, Children: children}, nil
}

// Links returns every relationship the document participates in.
func (s *RelationshipService) Links(ctx context.Context, documentID string) ([]models.DocumentRelationship, error) {
	rels, err := s.relationships.ListByDocument(ctx, documentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list relationships")
	}
	return rels, nil
}

func (s *RelationshipService) appendEvent(ctx context.Context, exec sqlx.ExtContext, documentID, eventType, actorID string, payload map[string]any) error {
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
