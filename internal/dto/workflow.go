package dto

import "github.com/docutrail/dtrs-api/internal/models"

// ForwardRequest routes a document to another department.
type ForwardRequest struct {
	ToDepartmentID      string             `json:"to_department_id" validate:"required"`
	Remarks             string             `json:"remarks"`
	ForwardVersionType  models.VersionType `json:"forward_version_type" validate:"required"`
	KeepCopy            bool               `json:"keep_copy"`
	CopyStorageLocation string             `json:"copy_storage_location"`
	CopyPurpose         string             `json:"copy_purpose"`
	DispatchMethod      string             `json:"dispatch_method"`
	DispatchReference   string             `json:"dispatch_reference"`
	ReleaseReceiptRef   string             `json:"release_receipt_reference"`
}

// ForwardResponse returns the updated document and the in-flight transfer.
type ForwardResponse struct {
	Document *models.Document         `json:"document"`
	Transfer *models.DocumentTransfer `json:"transfer"`
}

// CompleteRequest finishes a document at its current department.
type CompleteRequest struct {
	Remarks string `json:"remarks"`
}

// ForActionResponse lists the work sitting with a department: documents on
// its queue plus inbound transfers it has not yet accepted.
type ForActionResponse struct {
	Queue              []models.Document         `json:"queue"`
	AwaitingAcceptance []models.DocumentTransfer `json:"awaiting_acceptance"`
}
