package models

import "time"

// RelationType enumerates directed links between documents.
type RelationType string

const (
	RelationMergedInto RelationType = "MERGED_INTO"
	RelationSplitFrom  RelationType = "SPLIT_FROM"
	RelationAttachedTo RelationType = "ATTACHED_TO"
	RelationRelatedTo  RelationType = "RELATED_TO"
)

// DocumentRelationship links two documents. Append-only.
type DocumentRelationship struct {
	ID                string       `db:"id" json:"id"`
	DocumentID        string       `db:"document_id" json:"document_id"`
	RelatedDocumentID string       `db:"related_document_id" json:"related_document_id"`
	RelationType      RelationType `db:"relation_type" json:"relation_type"`
	CreatedByUserID   string       `db:"created_by_user_id" json:"created_by_user_id"`
	Remarks           string       `db:"remarks" json:"remarks"`
	CreatedAt         time.Time    `db:"created_at" json:"created_at"`
}
