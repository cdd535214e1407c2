package service

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/docutrail/dtrs-api/internal/dto"
	"github.com/docutrail/dtrs-api/internal/models"
	appErrors "github.com/docutrail/dtrs-api/pkg/errors"
	"github.com/docutrail/dtrs-api/pkg/export"
	"github.com/docutrail/dtrs-api/pkg/jobs"
	"github.com/docutrail/dtrs-api/pkg/storage"
)

type reportDocumentRepository interface {
	ListRegister(ctx context.Context, from, to time.Time) ([]models.Document, error)
}

// ReportService renders the monthly document register as CSV and PDF
// files and hands out signed download tokens for them.
type ReportService struct {
	documents reportDocumentRepository
	csv       *export.CSVExporter
	pdf       *export.PDFExporter
	store     *storage.LocalStorage
	signer    *storage.SignedURLSigner
	validator *validator.Validate
	logger    *zap.Logger
}

// NewReportService constructs a ReportService.
func NewReportService(
	documents reportDocumentRepository,
	store *storage.LocalStorage,
	signer *storage.SignedURLSigner,
	validate *validator.Validate,
	logger *zap.Logger,
) *ReportService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReportService{
		documents: documents,
		csv:       export.NewCSVExporter(),
		pdf:       export.NewPDFExporter(),
		store:     store,
		signer:    signer,
		validator: validate,
		logger:    logger,
	}
}

var registerHeaders = []string{
	"Tracking Number", "Subject", "Type", "Owner", "Priority",
	"Status", "Received At", "Completed At", "Department",
}

// MonthlyRegister renders the register for one calendar month. Every
// document received in the period is listed, whatever its current state.
func (s *ReportService) MonthlyRegister(ctx context.Context, req dto.MonthlyRegisterRequest) (*dto.MonthlyRegisterResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid register period")
	}

	from := time.Date(req.Year, time.Month(req.Month), 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 1, 0)

	docs, err := s.documents.ListRegister(ctx, from, to)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load register rows")
	}

	dataset := export.Dataset{Headers: registerHeaders, Rows: make([]map[string]string, 0, len(docs))}
	resp := &dto.MonthlyRegisterResponse{Year: req.Year, Month: req.Month}
	for _, doc := range docs {
		resp.Received++
		completed := ""
		if doc.CompletedAt != nil {
			completed = doc.CompletedAt.Format("2006-01-02")
		}
		if doc.Status == models.DocumentStatusFinished {
			resp.Completed++
		} else {
			resp.StillOpen++
		}
		department := ""
		if doc.CurrentDepartmentID != nil {
			department = *doc.CurrentDepartmentID
		}
		dataset.Rows = append(dataset.Rows, map[string]string{
			"Tracking Number": doc.TrackingNumber,
			"Subject":         doc.Subject,
			"Type":            doc.DocumentType,
			"Owner":           doc.OwnerName,
			"Priority":        string(doc.Priority),
			"Status":          string(doc.Status),
			"Received At":     doc.ReceivedAt.Format("2006-01-02"),
			"Completed At":    completed,
			"Department":      department,
		})
	}

	title := fmt.Sprintf("Document Register %04d-%02d", req.Year, req.Month)
	jobID := uuid.NewString()
	base := fmt.Sprintf("registers/%04d/%02d/register-%04d-%02d", req.Year, req.Month, req.Year, req.Month)

	csvBytes, err := s.csv.Render(dataset)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render csv register")
	}
	csvFile, err := s.publish(jobID, base+".csv", "csv", csvBytes)
	if err != nil {
		return nil, err
	}
	resp.Files = append(resp.Files, csvFile)

	pdfBytes, err := s.pdf.Render(dataset, title)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render pdf register")
	}
	pdfFile, err := s.publish(jobID, base+".pdf", "pdf", pdfBytes)
	if err != nil {
		return nil, err
	}
	resp.Files = append(resp.Files, pdfFile)

	s.logger.Info("monthly register rendered",
		zap.Int("year", req.Year),
		zap.Int("month", req.Month),
		zap.Int("rows", resp.Received))
	return resp, nil
}

func (s *ReportService) publish(jobID, relPath, format string, data []byte) (dto.ReportFile, error) {
	saved, err := s.store.Save(relPath, data)
	if err != nil {
		return dto.ReportFile{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store register file")
	}
	token, expiresAt, err := s.signer.Generate(jobID, saved)
	if err != nil {
		return dto.ReportFile{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign register download")
	}
	return dto.ReportFile{Format: format, Path: saved, Token: token, ExpiresAt: expiresAt}, nil
}

// Resolve validates a download token and returns the stored file path.
func (s *ReportService) Resolve(token string) (string, error) {
	_, relPath, _, err := s.signer.Parse(token, false)
	if err != nil {
		return "", appErrors.Clone(appErrors.ErrAuthorization, "invalid or expired download token")
	}
	return s.store.Path(relPath), nil
}

// ReportWorker bridges queue jobs to the register renderer.
type ReportWorker struct {
	reports *ReportService
	logger  *zap.Logger
}

// NewReportWorker constructs a worker.
func NewReportWorker(reports *ReportService, logger *zap.Logger) *ReportWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReportWorker{reports: reports, logger: logger}
}

// Handle renders the register period carried in the job payload.
func (w *ReportWorker) Handle(ctx context.Context, job jobs.Job) error {
	req, ok := job.Payload.(dto.MonthlyRegisterRequest)
	if !ok {
		return fmt.Errorf("unexpected report job payload %T", job.Payload)
	}
	if _, err := w.reports.MonthlyRegister(ctx, req); err != nil {
		w.logger.Sugar().Warnw("scheduled register render failed",
			"year", req.Year, "month", req.Month, "error", err)
		return err
	}
	return nil
}

// MonthlyRegisterJob builds the scheduled job for the calendar month that
// closed at asOf.
func MonthlyRegisterJob(asOf time.Time) jobs.Job {
	prev := time.Date(asOf.Year(), asOf.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, -1, 0)
	return jobs.Job{
		ID:      uuid.NewString(),
		Type:    "reports.monthly_register",
		Payload: dto.MonthlyRegisterRequest{Year: prev.Year(), Month: int(prev.Month())},
	}
}

// NextMonthStart returns the first instant of the month after asOf, when
// the register for the closing month becomes due.
func NextMonthStart(asOf time.Time) time.Time {
	return time.Date(asOf.Year(), asOf.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, 1, 0)
}
