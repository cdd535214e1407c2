package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/docutrail/dtrs-api/internal/models"
)

func newDocumentRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func documentRows(doc models.Document) *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "tracking_number", "subject", "document_type", "owner_type", "owner_name", "priority", "status",
		"current_department_id", "current_user_id", "document_case_id", "is_returnable", "due_at", "received_at",
		"completed_at", "returned_at", "returned_to", "original_current_department_id", "original_physical_location",
		"metadata", "created_at", "updated_at",
	}).AddRow(
		doc.ID, doc.TrackingNumber, doc.Subject, doc.DocumentType, doc.OwnerType, doc.OwnerName, doc.Priority, doc.Status,
		doc.CurrentDepartmentID, doc.CurrentUserID, doc.DocumentCaseID, doc.IsReturnable, doc.DueAt, doc.ReceivedAt,
		doc.CompletedAt, doc.ReturnedAt, doc.ReturnedTo, doc.OriginalCurrentDepartment, doc.OriginalPhysicalLocation,
		[]byte(`{}`), doc.CreatedAt, doc.UpdatedAt,
	)
}

func TestDocumentRepositoryCreateAndGet(t *testing.T) {
	db, mock, cleanup := newDocumentRepoMock(t)
	defer cleanup()

	repo := NewDocumentRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO documents")).
		WillReturnResult(sqlmock.NewResult(1, 1))

	deptID := "dept-records"
	userID := "user-1"
	doc := &models.Document{
		TrackingNumber:      "DTS-2026-000101",
		Subject:             "Request for certified transcript",
		DocumentType:        "REQUEST",
		OwnerType:           "CITIZEN",
		OwnerName:           "M. Rivera",
		Status:              models.DocumentStatusOnQueue,
		CurrentDepartmentID: &deptID,
		CurrentUserID:       &userID,
	}
	require.NoError(t, repo.Create(context.Background(), nil, doc))
	require.NotEmpty(t, doc.ID)
	require.Equal(t, models.PriorityNormal, doc.Priority)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, tracking_number, subject")).
		WithArgs(doc.ID).
		WillReturnRows(documentRows(*doc))

	found, err := repo.GetByID(context.Background(), doc.ID)
	require.NoError(t, err)
	require.Equal(t, doc.TrackingNumber, found.TrackingNumber)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDocumentRepositoryListFilters(t *testing.T) {
	db, mock, cleanup := newDocumentRepoMock(t)
	defer cleanup()

	repo := NewDocumentRepository(db)
	deptID := "dept-records"
	doc := models.Document{
		ID:                  "doc-1",
		TrackingNumber:      "DTS-2026-000001",
		Subject:             "Leave application",
		DocumentType:        "APPLICATION",
		OwnerType:           "EMPLOYEE",
		OwnerName:           "A. Cruz",
		Priority:            models.PriorityNormal,
		Status:              models.DocumentStatusOnQueue,
		CurrentDepartmentID: &deptID,
		ReceivedAt:          time.Now(),
		CreatedAt:           time.Now(),
		UpdatedAt:           time.Now(),
	}
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, tracking_number, subject")).
		WithArgs("ON_QUEUE", deptID).
		WillReturnRows(documentRows(doc))

	list, err := repo.List(context.Background(), models.DocumentFilter{
		Status:       []models.DocumentStatus{models.DocumentStatusOnQueue},
		DepartmentID: deptID,
	})
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, "doc-1", list[0].ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDocumentRepositoryNextTrackingSequence(t *testing.T) {
	db, mock, cleanup := newDocumentRepoMock(t)
	defer cleanup()

	repo := NewDocumentRepository(db)
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO tracking_counters")).
		WithArgs(2026).
		WillReturnRows(sqlmock.NewRows([]string{"value"}).AddRow(42))

	value, err := repo.NextTrackingSequence(context.Background(), nil, 2026)
	require.NoError(t, err)
	require.Equal(t, 42, value)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDocumentRepositoryUpdateRouting(t *testing.T) {
	db, mock, cleanup := newDocumentRepoMock(t)
	defer cleanup()

	repo := NewDocumentRepository(db)
	deptID := "dept-legal"
	mock.ExpectExec(regexp.QuoteMeta("UPDATE documents SET status")).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.UpdateRouting(context.Background(), nil, UpdateRoutingParams{
		ID:                  "doc-1",
		Status:              models.DocumentStatusOnQueue,
		CurrentDepartmentID: &deptID,
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}
