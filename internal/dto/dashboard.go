package dto

// QueueCounts summarises open documents per workflow state.
type QueueCounts struct {
	Incoming int `json:"incoming"`
	OnQueue  int `json:"on_queue"`
	Outgoing int `json:"outgoing"`
}

// WorkflowHighlights surfaces deadline pressure for a department scope.
type WorkflowHighlights struct {
	Overdue           int `json:"overdue"`
	DueToday          int `json:"due_today"`
	ReturnableOverdue int `json:"returnable_overdue"`
}

// CustodyHighlights summarises physical holdings.
type CustodyHighlights struct {
	OriginalsInCustody int `json:"originals_in_custody"`
	ActiveCopies       int `json:"active_copies"`
}

// AlertCounts summarises active derived alerts.
type AlertCounts struct {
	Total   int `json:"total"`
	Overdue int `json:"overdue"`
	Stalled int `json:"stalled"`
}

// DashboardSummary is the aggregate payload served to office dashboards.
// DepartmentID is empty for cross-department (admin) scope.
type DashboardSummary struct {
	DepartmentID string             `json:"department_id,omitempty"`
	Queues       QueueCounts        `json:"queues"`
	Workflow     WorkflowHighlights `json:"workflow"`
	Custody      CustodyHighlights  `json:"custody"`
	Alerts       AlertCounts        `json:"alerts"`
}
