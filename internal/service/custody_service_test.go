package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/docutrail/dtrs-api/internal/dto"
	"github.com/docutrail/dtrs-api/internal/models"
	appErrors "github.com/docutrail/dtrs-api/pkg/errors"
)

func newCustodyFixture(t *testing.T, docs ...*models.Document) (*CustodyService, *stubDocumentRepo, *stubCustodyRepo, *stubTransferRepo, *stubEventRepo, sqlmock.Sqlmock) {
	t.Helper()
	documents := newStubDocumentRepo(docs...)
	custodies := newStubCustodyRepo()
	transfers := newStubTransferRepo()
	events := &stubEventRepo{}
	users := newStubUserRepo(
		&models.User{ID: "user-1", Email: "one@example.com", FullName: "User One", Role: models.RoleRecordsOfficer, DepartmentID: "dept-1", Active: true},
		&models.User{ID: "user-2", Email: "two@example.com", FullName: "User Two", Role: models.RoleRecordsOfficer, DepartmentID: "dept-2", Active: true},
	)
	db, mock := newTxProviderMock(t)
	svc := NewCustodyService(documents, custodies, users, transfers, events, db, nil, nil)
	return svc, documents, custodies, transfers, events, mock
}

func TestCustodyAssignOriginalRecordsHolder(t *testing.T) {
	doc := onQueueDocument("doc-1", "dept-1", "user-1")
	svc, documents, custodies, _, events, mock := newCustodyFixture(t, doc)
	custodies.current["doc-1"] = &models.DocumentCustody{
		ID:         "custody-old",
		DocumentID: "doc-1",
		IsCurrent:  true,
		Status:     models.CustodyStatusInCustody,
	}
	mock.ExpectBegin()
	mock.ExpectCommit()

	custody, err := svc.AssignOriginal(context.Background(), testActor("user-1", "dept-1", models.RoleRecordsOfficer), "doc-1", dto.AssignCustodyRequest{
		DepartmentID:     "dept-2",
		CustodianUserID:  "user-2",
		PhysicalLocation: "Cabinet 4",
	})
	require.NoError(t, err)

	require.True(t, custody.IsCurrent)
	require.Equal(t, models.CustodyStatusInCustody, custody.Status)
	require.Equal(t, models.VersionOriginal, custody.VersionType)
	require.Equal(t, "dept-2", custody.DepartmentID)

	require.Equal(t, []models.CustodyStatus{models.CustodyStatusTransferred}, custodies.closed)
	require.Equal(t, "dept-2", *documents.docs["doc-1"].OriginalCurrentDepartment)
	require.Equal(t, []string{models.EventCustodyAssigned}, events.typesFor("doc-1"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCustodyAssignOriginalEventNamesDisplacedHolder(t *testing.T) {
	doc := onQueueDocument("doc-1", "dept-1", "user-1")
	svc, _, custodies, _, events, mock := newCustodyFixture(t, doc)
	custodies.current["doc-1"] = &models.DocumentCustody{
		ID:           "custody-old",
		DocumentID:   "doc-1",
		DepartmentID: "dept-1",
		UserID:       "user-1",
		IsCurrent:    true,
		Status:       models.CustodyStatusInCustody,
	}
	mock.ExpectBegin()
	mock.ExpectCommit()

	_, err := svc.AssignOriginal(context.Background(), testActor("user-1", "dept-1", models.RoleRecordsOfficer), "doc-1", dto.AssignCustodyRequest{
		DepartmentID:    "dept-2",
		CustodianUserID: "user-2",
	})
	require.NoError(t, err)

	require.Len(t, events.events, 1)
	var payload map[string]any
	require.NoError(t, json.Unmarshal(events.events[0].Payload, &payload))
	require.Equal(t, "dept-1", payload["previous_department_id"])
	require.Equal(t, "user-1", payload["previous_custodian_user_id"])
	require.Equal(t, "dept-2", payload["department_id"])
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCustodyAssignOriginalFirstHolderOmitsPredecessor(t *testing.T) {
	doc := onQueueDocument("doc-1", "dept-1", "user-1")
	svc, _, _, _, events, mock := newCustodyFixture(t, doc)
	mock.ExpectBegin()
	mock.ExpectCommit()

	_, err := svc.AssignOriginal(context.Background(), testActor("user-1", "dept-1", models.RoleRecordsOfficer), "doc-1", dto.AssignCustodyRequest{
		DepartmentID:    "dept-2",
		CustodianUserID: "user-2",
	})
	require.NoError(t, err)

	require.Len(t, events.events, 1)
	var payload map[string]any
	require.NoError(t, json.Unmarshal(events.events[0].Payload, &payload))
	require.NotContains(t, payload, "previous_department_id")
	require.NotContains(t, payload, "previous_custodian_user_id")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCustodyAssignOriginalRejectsForeignCustodian(t *testing.T) {
	doc := onQueueDocument("doc-1", "dept-1", "user-1")
	svc, _, _, _, _, _ := newCustodyFixture(t, doc)

	_, err := svc.AssignOriginal(context.Background(), testActor("user-1", "dept-1", models.RoleRecordsOfficer), "doc-1", dto.AssignCustodyRequest{
		DepartmentID:    "dept-1",
		CustodianUserID: "user-2",
	})
	require.Error(t, err)
	require.Equal(t, appErrors.ErrCustodyAction.Code, appErrors.FromError(err).Code)
}

func TestCustodyAssignOriginalRejectsReturnedDocument(t *testing.T) {
	doc := onQueueDocument("doc-1", "dept-1", "user-1")
	returnedAt := time.Now().UTC().Add(-time.Hour)
	doc.ReturnedAt = &returnedAt
	svc, _, _, _, _, mock := newCustodyFixture(t, doc)
	mock.ExpectBegin()
	mock.ExpectRollback()

	_, err := svc.AssignOriginal(context.Background(), testActor("user-2", "dept-2", models.RoleRecordsOfficer), "doc-1", dto.AssignCustodyRequest{
		DepartmentID:    "dept-2",
		CustodianUserID: "user-2",
	})
	require.Error(t, err)
	require.Equal(t, appErrors.ErrCustodyAction.Code, appErrors.FromError(err).Code)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCustodyRecordCopyRejectsOriginal(t *testing.T) {
	doc := onQueueDocument("doc-1", "dept-1", "user-1")
	svc, _, _, _, _, _ := newCustodyFixture(t, doc)

	_, err := svc.RecordCopy(context.Background(), testActor("user-1", "dept-1", models.RoleRecordsOfficer), "doc-1", dto.RecordCopyRequest{
		DepartmentID: "dept-1",
		UserID:       "user-1",
		CopyType:     models.VersionOriginal,
	})
	require.Error(t, err)
	require.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestCustodyRecordCopyInventoriesReproduction(t *testing.T) {
	doc := onQueueDocument("doc-1", "dept-1", "user-1")
	svc, _, custodies, _, events, mock := newCustodyFixture(t, doc)
	mock.ExpectBegin()
	mock.ExpectCommit()

	copyRec, err := svc.RecordCopy(context.Background(), testActor("user-1", "dept-1", models.RoleRecordsOfficer), "doc-1", dto.RecordCopyRequest{
		DepartmentID: "dept-1",
		UserID:       "user-1",
		CopyType:     models.VersionCertifiedCopy,
		Purpose:      "Board submission",
	})
	require.NoError(t, err)

	require.Equal(t, models.VersionCertifiedCopy, copyRec.CopyType)
	require.Len(t, custodies.copies, 1)
	require.Equal(t, []string{models.EventCustodyCopyRecorded}, events.typesFor("doc-1"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCustodyMarkReturnedFinishesIdleDocument(t *testing.T) {
	doc := onQueueDocument("doc-1", "dept-1", "user-1")
	doc.IsReturnable = true
	svc, documents, custodies, _, events, mock := newCustodyFixture(t, doc)
	custodies.current["doc-1"] = &models.DocumentCustody{
		ID:         "custody-1",
		DocumentID: "doc-1",
		IsCurrent:  true,
		Status:     models.CustodyStatusInCustody,
	}
	mock.ExpectBegin()
	mock.ExpectCommit()

	returned, err := svc.MarkReturned(context.Background(), testActor("user-1", "dept-1", models.RoleRecordsOfficer), "doc-1", dto.ReturnOriginalRequest{ReturnedTo: "Juan Dela Cruz"})
	require.NoError(t, err)

	require.NotNil(t, returned.ReturnedAt)
	require.Equal(t, "Juan Dela Cruz", *returned.ReturnedTo)
	require.Equal(t, models.DocumentStatusFinished, returned.Status)
	require.Nil(t, returned.CurrentDepartmentID)
	require.NotNil(t, returned.CompletedAt)

	require.Equal(t, []models.CustodyStatus{models.CustodyStatusReturned}, custodies.closed)
	require.Len(t, documents.routing, 1)
	require.Equal(t, models.DocumentStatusFinished, documents.routing[0].Status)
	require.Equal(t, []string{models.EventCustodyReturned}, events.typesFor("doc-1"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCustodyMarkReturnedKeepsRoutingWhileTransferPending(t *testing.T) {
	doc := onQueueDocument("doc-1", "dept-1", "user-1")
	doc.IsReturnable = true
	doc.Status = models.DocumentStatusOutgoing
	doc.CurrentUserID = nil
	svc, documents, _, transfers, _, mock := newCustodyFixture(t, doc)
	transfers.pending["doc-1"] = &models.DocumentTransfer{
		ID:             "transfer-1",
		DocumentID:     "doc-1",
		ToDepartmentID: "dept-2",
		Status:         models.TransferStatusPending,
	}
	mock.ExpectBegin()
	mock.ExpectCommit()

	returned, err := svc.MarkReturned(context.Background(), testActor("user-1", "dept-1", models.RoleRecordsOfficer), "doc-1", dto.ReturnOriginalRequest{ReturnedTo: "Owner"})
	require.NoError(t, err)

	require.NotNil(t, returned.ReturnedAt)
	require.Equal(t, models.DocumentStatusOutgoing, returned.Status)
	require.Empty(t, documents.routing)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCustodyMarkReturnedRejectsNonReturnable(t *testing.T) {
	doc := onQueueDocument("doc-1", "dept-1", "user-1")
	svc, _, _, _, _, mock := newCustodyFixture(t, doc)
	mock.ExpectBegin()
	mock.ExpectRollback()

	_, err := svc.MarkReturned(context.Background(), testActor("user-1", "dept-1", models.RoleRecordsOfficer), "doc-1", dto.ReturnOriginalRequest{ReturnedTo: "Owner"})
	require.Error(t, err)
	require.Equal(t, appErrors.ErrCustodyAction.Code, appErrors.FromError(err).Code)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCustodyMarkReturnedRejectsDoubleReturn(t *testing.T) {
	doc := onQueueDocument("doc-1", "dept-1", "user-1")
	doc.IsReturnable = true
	returnedAt := time.Now().UTC().Add(-time.Hour)
	doc.ReturnedAt = &returnedAt
	svc, _, _, _, _, mock := newCustodyFixture(t, doc)
	mock.ExpectBegin()
	mock.ExpectRollback()

	_, err := svc.MarkReturned(context.Background(), testActor("user-1", "dept-1", models.RoleRecordsOfficer), "doc-1", dto.ReturnOriginalRequest{ReturnedTo: "Owner"})
	require.Error(t, err)
	require.Equal(t, appErrors.ErrCustodyAction.Code, appErrors.FromError(err).Code)
	require.NoError(t, mock.ExpectationsWereMet())
}
