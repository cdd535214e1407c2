package service

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/docutrail/dtrs-api/internal/dto"
	"github.com/docutrail/dtrs-api/internal/models"
	"github.com/docutrail/dtrs-api/pkg/jobs"
	"github.com/docutrail/dtrs-api/pkg/storage"
)

type stubRegisterRepo struct {
	from time.Time
	to   time.Time
	docs []models.Document
}

func (s *stubRegisterRepo) ListRegister(ctx context.Context, from, to time.Time) ([]models.Document, error) {
	s.from = from
	s.to = to
	return s.docs, nil
}

func newReportFixture(t *testing.T, docs ...models.Document) (*ReportService, *stubRegisterRepo, string) {
	t.Helper()
	dir := t.TempDir()
	store, err := storage.NewLocalStorage(dir)
	require.NoError(t, err)
	signer := storage.NewSignedURLSigner("test-secret", time.Hour)
	repo := &stubRegisterRepo{docs: docs}
	return NewReportService(repo, store, signer, nil, nil), repo, dir
}

func TestMonthlyRegisterRendersBothFormats(t *testing.T) {
	finished := time.Date(2026, 2, 20, 0, 0, 0, 0, time.UTC)
	svc, repo, dir := newReportFixture(t,
		models.Document{
			TrackingNumber: "DTS-2026-000001",
			Subject:        "Budget request",
			DocumentType:   "MEMO",
			Priority:       models.PriorityNormal,
			Status:         models.DocumentStatusFinished,
			ReceivedAt:     time.Date(2026, 2, 3, 0, 0, 0, 0, time.UTC),
			CompletedAt:    &finished,
		},
		models.Document{
			TrackingNumber:      "DTS-2026-000002",
			Subject:             "Audit referral",
			DocumentType:        "LETTER",
			Priority:            models.PriorityUrgent,
			Status:              models.DocumentStatusOnQueue,
			ReceivedAt:          time.Date(2026, 2, 10, 0, 0, 0, 0, time.UTC),
			CurrentDepartmentID: strPtr("dept-1"),
		},
	)

	resp, err := svc.MonthlyRegister(context.Background(), dto.MonthlyRegisterRequest{Year: 2026, Month: 2})
	require.NoError(t, err)

	require.Equal(t, time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC), repo.from)
	require.Equal(t, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), repo.to)
	require.Equal(t, 2, resp.Received)
	require.Equal(t, 1, resp.Completed)
	require.Equal(t, 1, resp.StillOpen)

	require.Len(t, resp.Files, 2)
	for _, file := range resp.Files {
		require.NotEmpty(t, file.Token)
		_, statErr := os.Stat(filepath.Join(dir, file.Path))
		require.NoError(t, statErr)
	}
}

func TestReportWorkerRendersClosedMonth(t *testing.T) {
	svc, repo, _ := newReportFixture(t)
	worker := NewReportWorker(svc, nil)

	job := MonthlyRegisterJob(time.Date(2026, 3, 1, 0, 0, 2, 0, time.UTC))
	req, ok := job.Payload.(dto.MonthlyRegisterRequest)
	require.True(t, ok)
	require.Equal(t, 2026, req.Year)
	require.Equal(t, 2, req.Month)

	require.NoError(t, worker.Handle(context.Background(), job))
	require.Equal(t, time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC), repo.from)
	require.Equal(t, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), repo.to)
}

func TestReportWorkerRejectsForeignPayload(t *testing.T) {
	svc, _, _ := newReportFixture(t)
	worker := NewReportWorker(svc, nil)

	err := worker.Handle(context.Background(), jobs.Job{ID: "job-1", Type: "reports.monthly_register", Payload: "2026-02"})
	require.Error(t, err)
}

func TestMonthlyRegisterJobCrossesYearBoundary(t *testing.T) {
	job := MonthlyRegisterJob(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	req, ok := job.Payload.(dto.MonthlyRegisterRequest)
	require.True(t, ok)
	require.Equal(t, 2025, req.Year)
	require.Equal(t, 12, req.Month)

	require.Equal(t, time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC), NextMonthStart(time.Date(2026, 1, 15, 9, 30, 0, 0, time.UTC)))
}
