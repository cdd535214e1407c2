package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/docutrail/dtrs-api/internal/models"
)

func TestAlertGenerateCreatesOverdueAlerts(t *testing.T) {
	asOf := time.Now().UTC()
	dueAt := asOf.Add(-48 * time.Hour)
	doc := onQueueDocument("doc-1", "dept-1", "user-1")
	doc.DueAt = &dueAt
	doc.UpdatedAt = asOf.Add(-time.Hour)

	documents := newStubDocumentRepo(doc)
	alerts := &stubAlertRepo{}
	db, mock := newTxProviderMock(t)
	svc := NewAlertService(documents, alerts, db, nil, 5)
	mock.ExpectBegin()
	mock.ExpectCommit()

	result, err := svc.Generate(context.Background(), asOf)
	require.NoError(t, err)

	require.Equal(t, 1, result.Created)
	require.Equal(t, 0, result.Resolved)
	require.Len(t, alerts.created, 1)
	require.Equal(t, models.AlertTypeOverdue, alerts.created[0].AlertType)
	require.Equal(t, "doc-1", alerts.created[0].DocumentID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAlertGenerateFlagsStalledDocuments(t *testing.T) {
	asOf := time.Now().UTC()
	doc := onQueueDocument("doc-1", "dept-1", "user-1")
	doc.UpdatedAt = asOf.Add(-10 * 24 * time.Hour)

	documents := newStubDocumentRepo(doc)
	alerts := &stubAlertRepo{}
	db, mock := newTxProviderMock(t)
	svc := NewAlertService(documents, alerts, db, nil, 5)
	mock.ExpectBegin()
	mock.ExpectCommit()

	result, err := svc.Generate(context.Background(), asOf)
	require.NoError(t, err)

	require.Equal(t, 1, result.Created)
	require.Equal(t, models.AlertTypeStalled, alerts.created[0].AlertType)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAlertGenerateIsIdempotent(t *testing.T) {
	asOf := time.Now().UTC()
	dueAt := asOf.Add(-48 * time.Hour)
	doc := onQueueDocument("doc-1", "dept-1", "user-1")
	doc.DueAt = &dueAt
	doc.UpdatedAt = asOf.Add(-time.Hour)

	documents := newStubDocumentRepo(doc)
	alerts := &stubAlertRepo{}
	db, mock := newTxProviderMock(t)
	svc := NewAlertService(documents, alerts, db, nil, 5)
	mock.ExpectBegin()
	mock.ExpectCommit()
	mock.ExpectBegin()
	mock.ExpectCommit()

	first, err := svc.Generate(context.Background(), asOf)
	require.NoError(t, err)
	require.Equal(t, 1, first.Created)

	second, err := svc.Generate(context.Background(), asOf)
	require.NoError(t, err)
	require.Equal(t, 0, second.Created)
	require.Equal(t, 0, second.Resolved)
	require.Len(t, alerts.created, 1)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAlertGenerateResolvesClearedConditions(t *testing.T) {
	asOf := time.Now().UTC()
	doc := onQueueDocument("doc-1", "dept-1", "user-1")
	doc.UpdatedAt = asOf.Add(-time.Hour)

	documents := newStubDocumentRepo(doc)
	alerts := &stubAlertRepo{active: []models.DocumentAlert{{
		ID:         "alert-stale",
		DocumentID: "doc-1",
		AlertType:  models.AlertTypeOverdue,
		IsActive:   true,
	}}}
	db, mock := newTxProviderMock(t)
	svc := NewAlertService(documents, alerts, db, nil, 5)
	mock.ExpectBegin()
	mock.ExpectCommit()

	result, err := svc.Generate(context.Background(), asOf)
	require.NoError(t, err)

	require.Equal(t, 0, result.Created)
	require.Equal(t, 1, result.Resolved)
	require.Equal(t, []string{"alert-stale"}, alerts.resolved)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAlertListScopesNonAdminToOwnDepartment(t *testing.T) {
	alerts := &stubAlertRepo{}
	db, _ := newTxProviderMock(t)
	svc := NewAlertService(newStubDocumentRepo(), alerts, db, nil, 5)

	_, err := svc.List(context.Background(), testActor("user-1", "dept-1", models.RoleViewer), models.AlertFilter{DepartmentID: "dept-9"})
	require.NoError(t, err)
	require.Equal(t, "dept-1", alerts.lastFilter.DepartmentID)
}
