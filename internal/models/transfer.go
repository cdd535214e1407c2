package models

import "time"

// TransferStatus tracks the lifecycle of a single forward attempt.
type TransferStatus string

const (
	TransferStatusPending   TransferStatus = "PENDING"
	TransferStatusAccepted  TransferStatus = "ACCEPTED"
	TransferStatusRecalled  TransferStatus = "RECALLED"
	TransferStatusCancelled TransferStatus = "CANCELLED"
)

// DocumentTransfer is one directed edge in a document's routing history.
// At most one PENDING transfer may exist per document.
type DocumentTransfer struct {
	ID                      string         `db:"id" json:"id"`
	DocumentID              string         `db:"document_id" json:"document_id"`
	FromDepartmentID        *string        `db:"from_department_id" json:"from_department_id,omitempty"`
	ToDepartmentID          string         `db:"to_department_id" json:"to_department_id"`
	ForwardedByUserID       string         `db:"forwarded_by_user_id" json:"forwarded_by_user_id"`
	AcceptedByUserID        *string        `db:"accepted_by_user_id" json:"accepted_by_user_id,omitempty"`
	Status                  TransferStatus `db:"status" json:"status"`
	ForwardVersionType      VersionType    `db:"forward_version_type" json:"forward_version_type"`
	Remarks                 string         `db:"remarks" json:"remarks"`
	DispatchMethod          *string        `db:"dispatch_method" json:"dispatch_method,omitempty"`
	DispatchReference       *string        `db:"dispatch_reference" json:"dispatch_reference,omitempty"`
	ReleaseReceiptReference *string        `db:"release_receipt_reference" json:"release_receipt_reference,omitempty"`
	ForwardedAt             time.Time      `db:"forwarded_at" json:"forwarded_at"`
	AcceptedAt              *time.Time     `db:"accepted_at" json:"accepted_at,omitempty"`
}

// TransferFilter constrains transfer listing queries.
type TransferFilter struct {
	DocumentID        string
	Status            []TransferStatus
	ForwardedByUserID string
	ToDepartmentID    string
	Limit             int
	Offset            int
}
