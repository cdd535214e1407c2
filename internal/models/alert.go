package models

import "time"

// AlertType enumerates derived operational signals.
type AlertType string

const (
	AlertTypeOverdue AlertType = "OVERDUE"
	AlertTypeStalled AlertType = "STALLED"
)

// DocumentAlert is a derived, re-computable signal. At most one active
// alert exists per (document, alert type) pair; rows are created and
// retired only by the alert engine.
type DocumentAlert struct {
	ID           string     `db:"id" json:"id"`
	DocumentID   string     `db:"document_id" json:"document_id"`
	DepartmentID *string    `db:"department_id" json:"department_id,omitempty"`
	AlertType    AlertType  `db:"alert_type" json:"alert_type"`
	Message      string     `db:"message" json:"message"`
	IsActive     bool       `db:"is_active" json:"is_active"`
	ResolvedAt   *time.Time `db:"resolved_at" json:"resolved_at,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
}

// AlertRunResult reports the outcome of one alert generation pass.
type AlertRunResult struct {
	Created  int `json:"created"`
	Resolved int `json:"resolved"`
}

// AlertFilter constrains alert listing queries.
type AlertFilter struct {
	DocumentID   string
	DepartmentID string
	AlertType    AlertType
	ActiveOnly   bool
	Limit        int
	Offset       int
}
