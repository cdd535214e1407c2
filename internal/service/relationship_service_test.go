package service

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/docutrail/dtrs-api/internal/dto"
	"github.com/docutrail/dtrs-api/internal/models"
	appErrors "github.com/docutrail/dtrs-api/pkg/errors"
)

func newRelationshipFixture(t *testing.T, docs ...*models.Document) (*RelationshipService, *stubDocumentRepo, *stubRelationshipRepo, *stubTransferRepo, *stubEventRepo, sqlmock.Sqlmock) {
	t.Helper()
	documents := newStubDocumentRepo(docs...)
	relationships := &stubRelationshipRepo{}
	transfers := newStubTransferRepo()
	copies := newStubCustodyRepo()
	events := &stubEventRepo{}
	departments := newStubDepartmentRepo(
		&models.Department{ID: "dept-1", Code: "REC", Name: "Records", Kind: models.DepartmentKindDepartment, Active: true},
		&models.Department{ID: "dept-2", Code: "LEG", Name: "Legal", Kind: models.DepartmentKindDepartment, Active: true},
		&models.Department{ID: "dept-3", Code: "FIN", Name: "Finance", Kind: models.DepartmentKindDepartment, Active: true},
	)
	db, mock := newTxProviderMock(t)
	svc := NewRelationshipService(documents, relationships, transfers, copies, departments, events, db, nil, nil, "DTS")
	return svc, documents, relationships, transfers, events, mock
}

func TestRelationshipAttachLinksDocuments(t *testing.T) {
	parent := onQueueDocument("doc-1", "dept-1", "user-1")
	other := onQueueDocument("doc-2", "dept-1", "user-1")
	svc, _, relationships, _, events, mock := newRelationshipFixture(t, parent, other)
	mock.ExpectBegin()
	mock.ExpectCommit()

	created, err := svc.AttachTo(context.Background(), testActor("user-1", "dept-1", models.RoleRecordsOfficer), "doc-1", dto.AttachRequest{
		RelatedDocumentIDs: []string{"doc-2"},
		Remarks:            "supporting affidavit",
	})
	require.NoError(t, err)

	require.Len(t, created, 1)
	require.Equal(t, models.RelationAttachedTo, created[0].RelationType)
	require.Len(t, relationships.rels, 1)
	require.Equal(t, []string{models.EventRelationshipLinked}, events.typesFor("doc-1"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRelationshipAttachRejectsSelfLink(t *testing.T) {
	parent := onQueueDocument("doc-1", "dept-1", "user-1")
	svc, _, _, _, _, _ := newRelationshipFixture(t, parent)

	_, err := svc.AttachTo(context.Background(), testActor("user-1", "dept-1", models.RoleRecordsOfficer), "doc-1", dto.AttachRequest{
		RelatedDocumentIDs: []string{"doc-1"},
	})
	require.Error(t, err)
	require.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestRelationshipSplitCreatesRoutedChildren(t *testing.T) {
	parent := onQueueDocument("doc-1", "dept-1", "user-1")
	svc, documents, relationships, transfers, events, mock := newRelationshipFixture(t, parent)
	mock.ExpectBegin()
	mock.ExpectCommit()

	dueAt := time.Now().UTC().Add(72 * time.Hour)
	resp, err := svc.SplitInto(context.Background(), testActor("user-1", "dept-1", models.RoleRecordsOfficer), "doc-1", dto.SplitRequest{
		Children: []dto.SplitChildSpec{{
			Subject:             "Budget extract",
			DocumentType:        "MEMO",
			TargetDepartmentIDs: []string{"dept-2", "dept-3"},
			ForwardVersionType:  models.VersionCertifiedCopy,
			DueAt:               &dueAt,
		}},
	})
	require.NoError(t, err)

	require.Len(t, resp.Children, 2)
	year := time.Now().UTC().Year()
	for i, child := range resp.Children {
		require.Equal(t, fmt.Sprintf("DTS-%d-%06d", year, i+1), child.TrackingNumber)
		require.Equal(t, models.DocumentStatusOutgoing, child.Status)
		require.Equal(t, "dept-1", *child.CurrentDepartmentID)
		require.Equal(t, parent.Priority, child.Priority)
		require.Equal(t, parent.OwnerName, child.OwnerName)
	}

	require.Len(t, transfers.created, 2)
	targets := []string{transfers.created[0].ToDepartmentID, transfers.created[1].ToDepartmentID}
	require.ElementsMatch(t, []string{"dept-2", "dept-3"}, targets)
	for _, transfer := range transfers.created {
		require.Equal(t, models.TransferStatusPending, transfer.Status)
		require.Equal(t, models.VersionCertifiedCopy, transfer.ForwardVersionType)
	}

	require.Len(t, relationships.rels, 2)
	for _, rel := range relationships.rels {
		require.Equal(t, models.RelationSplitFrom, rel.RelationType)
		require.Equal(t, "doc-1", rel.RelatedDocumentID)
	}

	var metadata map[string]any
	require.NoError(t, json.Unmarshal(documents.metadata["doc-1"], &metadata))
	require.Equal(t, true, metadata["split_completed"])
	require.Equal(t, float64(2), metadata["split_children_count"])

	require.Equal(t, []string{models.EventDocumentSplit}, events.typesFor("doc-1"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRelationshipSplitRejectsParentOffQueue(t *testing.T) {
	parent := onQueueDocument("doc-1", "dept-1", "user-1")
	parent.Status = models.DocumentStatusOutgoing
	parent.CurrentUserID = nil
	svc, _, _, _, _, mock := newRelationshipFixture(t, parent)
	mock.ExpectBegin()
	mock.ExpectRollback()

	_, err := svc.SplitInto(context.Background(), testActor("user-1", "dept-1", models.RoleRecordsOfficer), "doc-1", dto.SplitRequest{
		Children: []dto.SplitChildSpec{{
			Subject:             "Extract",
			DocumentType:        "MEMO",
			TargetDepartmentIDs: []string{"dept-2"},
			ForwardVersionType:  models.VersionPhotocopy,
		}},
	})
	require.Error(t, err)
	require.Equal(t, appErrors.ErrWorkflow.Code, appErrors.FromError(err).Code)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRelationshipSplitRejectsUnknownDepartment(t *testing.T) {
	parent := onQueueDocument("doc-1", "dept-1", "user-1")
	svc, _, _, _, _, _ := newRelationshipFixture(t, parent)

	_, err := svc.SplitInto(context.Background(), testActor("user-1", "dept-1", models.RoleRecordsOfficer), "doc-1", dto.SplitRequest{
		Children: []dto.SplitChildSpec{{
			Subject:             "Extract",
			DocumentType:        "MEMO",
			TargetDepartmentIDs: []string{"dept-missing"},
			ForwardVersionType:  models.VersionPhotocopy,
		}},
	})
	require.Error(t, err)
	require.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}
