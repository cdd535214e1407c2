package models

import "time"

// DocumentCase groups related documents (split children, merges) under a
// single join key.
type DocumentCase struct {
	ID              string    `db:"id" json:"id"`
	CaseNumber      string    `db:"case_number" json:"case_number"`
	Title           string    `db:"title" json:"title"`
	CreatedByUserID string    `db:"created_by_user_id" json:"created_by_user_id"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
}
