package models

import (
	"time"

	"github.com/jmoiron/sqlx/types"
)

// DocumentStatus captures the routing state of a document.
type DocumentStatus string

const (
	DocumentStatusIncoming DocumentStatus = "INCOMING"
	DocumentStatusOnQueue  DocumentStatus = "ON_QUEUE"
	DocumentStatusOutgoing DocumentStatus = "OUTGOING"
	DocumentStatusFinished DocumentStatus = "FINISHED"
)

// OpenStatuses lists every non-terminal document status.
func OpenStatuses() []DocumentStatus {
	return []DocumentStatus{DocumentStatusIncoming, DocumentStatusOnQueue, DocumentStatusOutgoing}
}

// DocumentPriority enumerates handling priorities.
type DocumentPriority string

const (
	PriorityLow    DocumentPriority = "LOW"
	PriorityNormal DocumentPriority = "NORMAL"
	PriorityHigh   DocumentPriority = "HIGH"
	PriorityUrgent DocumentPriority = "URGENT"
)

// VersionType describes which rendition of a document moves or is stored.
type VersionType string

const (
	VersionOriginal      VersionType = "ORIGINAL"
	VersionCertifiedCopy VersionType = "CERTIFIED_COPY"
	VersionPhotocopy     VersionType = "PHOTOCOPY"
	VersionScan          VersionType = "SCAN"
)

// ValidVersionType reports whether the value is a known rendition.
func ValidVersionType(v VersionType) bool {
	switch v {
	case VersionOriginal, VersionCertifiedCopy, VersionPhotocopy, VersionScan:
		return true
	}
	return false
}

// Document is a trackable unit of paper or case work.
//
// CurrentDepartmentID and CurrentUserID are both nil exactly when the
// document is FINISHED; ON_QUEUE has both set, OUTGOING/INCOMING has the
// department set with a nil user while a pending transfer is in flight.
type Document struct {
	ID                        string           `db:"id" json:"id"`
	TrackingNumber            string           `db:"tracking_number" json:"tracking_number"`
	Subject                   string           `db:"subject" json:"subject"`
	DocumentType              string           `db:"document_type" json:"document_type"`
	OwnerType                 string           `db:"owner_type" json:"owner_type"`
	OwnerName                 string           `db:"owner_name" json:"owner_name"`
	Priority                  DocumentPriority `db:"priority" json:"priority"`
	Status                    DocumentStatus   `db:"status" json:"status"`
	CurrentDepartmentID       *string          `db:"current_department_id" json:"current_department_id,omitempty"`
	CurrentUserID             *string          `db:"current_user_id" json:"current_user_id,omitempty"`
	DocumentCaseID            *string          `db:"document_case_id" json:"document_case_id,omitempty"`
	IsReturnable              bool             `db:"is_returnable" json:"is_returnable"`
	DueAt                     *time.Time       `db:"due_at" json:"due_at,omitempty"`
	ReceivedAt                time.Time        `db:"received_at" json:"received_at"`
	CompletedAt               *time.Time       `db:"completed_at" json:"completed_at,omitempty"`
	ReturnedAt                *time.Time       `db:"returned_at" json:"returned_at,omitempty"`
	ReturnedTo                *string          `db:"returned_to" json:"returned_to,omitempty"`
	OriginalCurrentDepartment *string          `db:"original_current_department_id" json:"original_current_department_id,omitempty"`
	OriginalPhysicalLocation  *string          `db:"original_physical_location" json:"original_physical_location,omitempty"`
	Metadata                  types.JSONText   `db:"metadata" json:"metadata,omitempty"`
	CreatedAt                 time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt                 time.Time        `db:"updated_at" json:"updated_at"`
}

// Open reports whether the document is still in routing.
func (d *Document) Open() bool {
	return d.Status != DocumentStatusFinished
}

// DocumentFilter constrains document listing queries.
type DocumentFilter struct {
	Status        []DocumentStatus
	DepartmentID  string
	CurrentUserID string
	CaseID        string
	DocumentType  string
	Priority      DocumentPriority
	Search        string
	Limit         int
	Offset        int
}
