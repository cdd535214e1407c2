package models

import "time"

// DepartmentKind distinguishes office levels in the organisation tree.
type DepartmentKind string

const (
	DepartmentKindDepartment DepartmentKind = "DEPARTMENT"
	DepartmentKindDistrict   DepartmentKind = "DISTRICT"
	DepartmentKindSchool     DepartmentKind = "SCHOOL"
)

// Department is an office that can hold and route documents.
type Department struct {
	ID        string         `db:"id" json:"id"`
	Code      string         `db:"code" json:"code"`
	Name      string         `db:"name" json:"name"`
	Kind      DepartmentKind `db:"kind" json:"kind"`
	ParentID  *string        `db:"parent_id" json:"parent_id,omitempty"`
	Active    bool           `db:"active" json:"active"`
	CreatedAt time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt time.Time      `db:"updated_at" json:"updated_at"`
}
