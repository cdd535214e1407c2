package dto

import (
	"time"

	"github.com/docutrail/dtrs-api/internal/models"
)

// ReceiveDocumentRequest registers a new document at the intake office.
type ReceiveDocumentRequest struct {
	Subject      string                  `json:"subject" validate:"required"`
	DocumentType string                  `json:"document_type" validate:"required"`
	OwnerType    string                  `json:"owner_type" validate:"required"`
	OwnerName    string                  `json:"owner_name" validate:"required"`
	Priority     models.DocumentPriority `json:"priority"`
	CaseID       string                  `json:"case_id"`
	CaseTitle    string                  `json:"case_title"`
	IsReturnable bool                    `json:"is_returnable"`
	DueAt        *time.Time              `json:"due_at"`
	Remarks      string                  `json:"remarks"`
}

// DocumentQuery filters document listings.
type DocumentQuery struct {
	Status       []models.DocumentStatus
	DepartmentID string
	CaseID       string
	DocumentType string
	Search       string
	Page         int
	PageSize     int
}
