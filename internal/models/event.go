package models

import (
	"time"

	"github.com/jmoiron/sqlx/types"
)

// Event type constants written by the routing, custody, and relationship
// engines. The notification collaborator tails DOCUMENT_CREATED rows.
const (
	EventDocumentCreated     = "DOCUMENT_CREATED"
	EventDocumentSplit       = "DOCUMENT_SPLIT"
	EventWorkflowForwarded   = "WORKFLOW_FORWARDED"
	EventWorkflowAccepted    = "WORKFLOW_ACCEPTED"
	EventWorkflowRecalled    = "WORKFLOW_RECALLED"
	EventWorkflowCompleted   = "WORKFLOW_COMPLETED"
	EventCustodyAssigned     = "CUSTODY_ASSIGNED"
	EventCustodyCopyRecorded = "CUSTODY_COPY_RECORDED"
	EventCustodyReturned     = "CUSTODY_RETURNED"
	EventRelationshipLinked  = "RELATIONSHIP_LINKED"
	EventRemarkAdded         = "REMARK_ADDED"
)

// DocumentEvent is an append-only audit entry. ActorUserID is nil for
// system-generated events such as alert runs.
type DocumentEvent struct {
	ID          string         `db:"id" json:"id"`
	DocumentID  string         `db:"document_id" json:"document_id"`
	EventType   string         `db:"event_type" json:"event_type"`
	ActorUserID *string        `db:"actor_user_id" json:"actor_user_id,omitempty"`
	Payload     types.JSONText `db:"payload" json:"payload,omitempty"`
	OccurredAt  time.Time      `db:"occurred_at" json:"occurred_at"`
}
