package models

import "time"

// CustodyStatus tracks the state of a custody record.
type CustodyStatus string

const (
	CustodyStatusInCustody   CustodyStatus = "IN_CUSTODY"
	CustodyStatusTransferred CustodyStatus = "TRANSFERRED"
	CustodyStatusReturned    CustodyStatus = "RETURNED"
)

// DocumentCustody records the holder of a document's physical original.
// At most one row per document has IsCurrent set.
type DocumentCustody struct {
	ID               string        `db:"id" json:"id"`
	DocumentID       string        `db:"document_id" json:"document_id"`
	DepartmentID     string        `db:"department_id" json:"department_id"`
	UserID           string        `db:"user_id" json:"user_id"`
	VersionType      VersionType   `db:"version_type" json:"version_type"`
	IsCurrent        bool          `db:"is_current" json:"is_current"`
	Status           CustodyStatus `db:"status" json:"status"`
	PhysicalLocation *string       `db:"physical_location" json:"physical_location,omitempty"`
	StorageReference *string       `db:"storage_reference" json:"storage_reference,omitempty"`
	CreatedAt        time.Time     `db:"created_at" json:"created_at"`
}

// DocumentCopy is an inventory record for a non-original reproduction
// kept at a department. Copies are append-only.
type DocumentCopy struct {
	ID              string      `db:"id" json:"id"`
	DocumentID      string      `db:"document_id" json:"document_id"`
	DepartmentID    string      `db:"department_id" json:"department_id"`
	UserID          string      `db:"user_id" json:"user_id"`
	CopyType        VersionType `db:"copy_type" json:"copy_type"`
	StorageLocation *string     `db:"storage_location" json:"storage_location,omitempty"`
	Purpose         *string     `db:"purpose" json:"purpose,omitempty"`
	CreatedAt       time.Time   `db:"created_at" json:"created_at"`
}
