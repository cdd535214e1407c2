package dto

import "time"

// MonthlyRegisterRequest selects the register period.
type MonthlyRegisterRequest struct {
	Year  int `json:"year" validate:"required,min=2000"`
	Month int `json:"month" validate:"required,min=1,max=12"`
}

// ReportFile describes one rendered register artifact.
type ReportFile struct {
	Format    string    `json:"format"`
	Path      string    `json:"path"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// MonthlyRegisterResponse reports rendered register files and row counts.
type MonthlyRegisterResponse struct {
	Year      int          `json:"year"`
	Month     int          `json:"month"`
	Received  int          `json:"received"`
	Completed int          `json:"completed"`
	StillOpen int          `json:"still_open"`
	Files     []ReportFile `json:"files"`
}
