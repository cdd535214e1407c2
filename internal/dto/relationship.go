package dto

import (
	"time"

	"github.com/docutrail/dtrs-api/internal/models"
)

// AttachRequest links supporting documents to a source document.
type AttachRequest struct {
	RelatedDocumentIDs []string `json:"related_document_ids" validate:"required,min=1"`
	Remarks            string   `json:"remarks"`
}

// RelateRequest records a loose association between documents.
type RelateRequest struct {
	RelatedDocumentIDs []string `json:"related_document_ids" validate:"required,min=1"`
	Remarks            string   `json:"remarks"`
}

// SplitChildSpec describes one child document to carve out of a parent.
// A spec with N target departments produces N children, one per
// department, each independently routed.
type SplitChildSpec struct {
	Subject             string                  `json:"subject" validate:"required"`
	DocumentType        string                  `json:"document_type" validate:"required"`
	OwnerType           string                  `json:"owner_type"`
	OwnerName           string                  `json:"owner_name"`
	Priority            models.DocumentPriority `json:"priority"`
	TargetDepartmentIDs []string                `json:"target_department_ids" validate:"required,min=1"`
	ForwardVersionType  models.VersionType      `json:"forward_version_type" validate:"required"`
	IsReturnable        bool                    `json:"is_returnable"`
	DueAt               *time.Time              `json:"due_at"`
	Remarks             string                  `json:"remarks"`
	KeepCopy            bool                    `json:"keep_copy"`
	CopyStorageLocation string                  `json:"copy_storage_location"`
}

// SplitRequest decomposes a parent document into routed children.
type SplitRequest struct {
	Children []SplitChildSpec `json:"children" validate:"required,min=1,dive"`
}

// SplitResponse reports the created children.
type SplitResponse struct {
	Parent   *models.Document  `json:"parent"`
	Children []models.Document `json:"children"`
}
