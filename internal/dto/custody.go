package dto

import "github.com/docutrail/dtrs-api/internal/models"

// AssignCustodyRequest moves the physical original to a custodian.
type AssignCustodyRequest struct {
	DepartmentID     string `json:"department_id" validate:"required"`
	CustodianUserID  string `json:"custodian_user_id" validate:"required"`
	PhysicalLocation string `json:"physical_location"`
	StorageReference string `json:"storage_reference"`
}

// RecordCopyRequest inventories a non-original reproduction.
type RecordCopyRequest struct {
	DepartmentID    string             `json:"department_id" validate:"required"`
	UserID          string             `json:"user_id" validate:"required"`
	CopyType        models.VersionType `json:"copy_type" validate:"required"`
	StorageLocation string             `json:"storage_location"`
	Purpose         string             `json:"purpose"`
}

// ReturnOriginalRequest records the physical original leaving the system.
type ReturnOriginalRequest struct {
	ReturnedTo string `json:"returned_to" validate:"required"`
}
