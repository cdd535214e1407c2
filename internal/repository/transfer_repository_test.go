package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/docutrail/dtrs-api/internal/models"
)

func newTransferRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func transferRows(transfer models.DocumentTransfer) *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "document_id", "from_department_id", "to_department_id", "forwarded_by_user_id",
		"accepted_by_user_id", "status", "forward_version_type", "remarks", "dispatch_method",
		"dispatch_reference", "release_receipt_reference", "forwarded_at", "accepted_at",
	}).AddRow(
		transfer.ID, transfer.DocumentID, transfer.FromDepartmentID, transfer.ToDepartmentID, transfer.ForwardedByUserID,
		transfer.AcceptedByUserID, transfer.Status, transfer.ForwardVersionType, transfer.Remarks, transfer.DispatchMethod,
		transfer.DispatchReference, transfer.ReleaseReceiptReference, transfer.ForwardedAt, transfer.AcceptedAt,
	)
}

func TestTransferRepositoryCreateDefaultsPending(t *testing.T) {
	db, mock, cleanup := newTransferRepoMock(t)
	defer cleanup()

	repo := NewTransferRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO document_transfers")).
		WillReturnResult(sqlmock.NewResult(1, 1))

	fromDept := "dept-records"
	transfer := &models.DocumentTransfer{
		DocumentID:         "doc-1",
		FromDepartmentID:   &fromDept,
		ToDepartmentID:     "dept-legal",
		ForwardedByUserID:  "user-1",
		ForwardVersionType: models.VersionOriginal,
	}
	require.NoError(t, repo.Create(context.Background(), nil, transfer))
	require.NotEmpty(t, transfer.ID)
	require.Equal(t, models.TransferStatusPending, transfer.Status)
	require.False(t, transfer.ForwardedAt.IsZero())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTransferRepositoryGetPending(t *testing.T) {
	db, mock, cleanup := newTransferRepoMock(t)
	defer cleanup()

	repo := NewTransferRepository(db)
	fromDept := "dept-records"
	pending := models.DocumentTransfer{
		ID:                 "transfer-1",
		DocumentID:         "doc-1",
		FromDepartmentID:   &fromDept,
		ToDepartmentID:     "dept-legal",
		ForwardedByUserID:  "user-1",
		Status:             models.TransferStatusPending,
		ForwardVersionType: models.VersionOriginal,
		ForwardedAt:        time.Now(),
	}
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, document_id, from_department_id")).
		WithArgs("doc-1", "PENDING").
		WillReturnRows(transferRows(pending))

	found, err := repo.GetPending(context.Background(), nil, "doc-1")
	require.NoError(t, err)
	require.Equal(t, "transfer-1", found.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTransferRepositoryResolveGuardsStatus(t *testing.T) {
	db, mock, cleanup := newTransferRepoMock(t)
	defer cleanup()

	repo := NewTransferRepository(db)
	acceptedBy := "user-2"
	acceptedAt := time.Now()

	mock.ExpectExec(regexp.QuoteMeta("UPDATE document_transfers SET")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	err := repo.Resolve(context.Background(), nil, ResolveTransferParams{
		ID:               "transfer-1",
		Status:           models.TransferStatusAccepted,
		AcceptedByUserID: &acceptedBy,
		AcceptedAt:       &acceptedAt,
	})
	require.NoError(t, err)

	// already resolved by a concurrent caller
	mock.ExpectExec(regexp.QuoteMeta("UPDATE document_transfers SET")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	err = repo.Resolve(context.Background(), nil, ResolveTransferParams{
		ID:     "transfer-1",
		Status: models.TransferStatusRecalled,
	})
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}
