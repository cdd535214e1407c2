package service

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/docutrail/dtrs-api/internal/models"
	appErrors "github.com/docutrail/dtrs-api/pkg/errors"
)

type alertDocumentRepository interface {
	ListOpen(ctx context.Context, exec sqlx.ExtContext) ([]models.Document, error)
}

type alertRecordRepository interface {
	ListActive(ctx context.Context, exec sqlx.ExtContext) ([]models.DocumentAlert, error)
	Create(ctx context.Context, exec sqlx.ExtContext, alert *models.DocumentAlert) error
	Resolve(ctx context.Context, exec sqlx.ExtContext, id string, resolvedAt time.Time) error
	List(ctx context.Context, filter models.AlertFilter) ([]models.DocumentAlert, error)
}

// AlertService derives overdue and stalled alerts from document state.
// Alerts are re-computable: each run creates the alerts that should exist
// and retires the ones that no longer qualify, so running twice with the
// same data changes nothing.
type AlertService struct {
	documents    alertDocumentRepository
	alerts       alertRecordRepository
	tx           txProvider
	logger       *zap.Logger
	stalledAfter time.Duration
}

// NewAlertService constructs an AlertService. stalledAfterDays controls
// how long a document may sit without movement before it is flagged.
func NewAlertService(
	documents alertDocumentRepository,
	alerts alertRecordRepository,
	tx txProvider,
	logger *zap.Logger,
	stalledAfterDays int,
) *AlertService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if stalledAfterDays <= 0 {
		stalledAfterDays = 5
	}
	return &AlertService{
		documents:    documents,
		alerts:       alerts,
		tx:           tx,
		logger:       logger,
		stalledAfter: time.Duration(stalledAfterDays) * 24 * time.Hour,
	}
}

type alertKey struct {
	documentID string
	alertType  models.AlertType
}

// Generate runs one alert pass as of the given instant.
func (s *AlertService) Generate(ctx context.Context, asOf time.Time) (*models.AlertRunResult, error) {
	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	openDocs, err := s.documents.ListOpen(ctx, tx)
	if err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list open documents")
		return nil, err
	}

	active, err := s.alerts.ListActive(ctx, tx)
	if err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list active alerts")
		return nil, err
	}

	existing := make(map[alertKey]models.DocumentAlert, len(active))
	for _, alert := range active {
		existing[alertKey{documentID: alert.DocumentID, alertType: alert.AlertType}] = alert
	}

	wanted := make(map[alertKey]models.DocumentAlert, len(openDocs))
	for _, doc := range openDocs {
		if doc.DueAt != nil && doc.DueAt.Before(asOf) {
			wanted[alertKey{documentID: doc.ID, alertType: models.AlertTypeOverdue}] = models.DocumentAlert{
				DocumentID:   doc.ID,
				DepartmentID: doc.CurrentDepartmentID,
				AlertType:    models.AlertTypeOverdue,
				Message:      fmt.Sprintf("document %s is past its action deadline", doc.TrackingNumber),
			}
		}
		if asOf.Sub(doc.UpdatedAt) > s.stalledAfter {
			wanted[alertKey{documentID: doc.ID, alertType: models.AlertTypeStalled}] = models.DocumentAlert{
				DocumentID:   doc.ID,
				DepartmentID: doc.CurrentDepartmentID,
				AlertType:    models.AlertTypeStalled,
				Message:      fmt.Sprintf("document %s has not moved since %s", doc.TrackingNumber, doc.UpdatedAt.Format("2006-01-02")),
			}
		}
	}

	result := &models.AlertRunResult{}
	for key, alert := range wanted {
		if _, ok := existing[key]; ok {
			continue
		}
		created := alert
		if err = s.alerts.Create(ctx, tx, &created); err != nil {
			err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create alert")
			return nil, err
		}
		result.Created++
	}
	for key, alert := range existing {
		if _, ok := wanted[key]; ok {
			continue
		}
		if err = s.alerts.Resolve(ctx, tx, alert.ID, asOf); err != nil {
			err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve alert")
			return nil, err
		}
		result.Resolved++
	}

	if err = tx.Commit(); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit alert run")
		return nil, err
	}

	s.logger.Info("alert run finished",
		zap.Int("created", result.Created),
		zap.Int("resolved", result.Resolved),
		zap.Time("as_of", asOf))
	return result, nil
}

// List returns alerts matching the filter. Non-admin actors are scoped to
// their own department.
func (s *AlertService) List(ctx context.Context, actor *models.JWTClaims, filter models.AlertFilter) ([]models.DocumentAlert, error) {
	if !models.CrossDepartmentVisibility(actor.Role) {
		filter.DepartmentID = actor.DepartmentID
	}
	alerts, err := s.alerts.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list alerts")
	}
	return alerts, nil
}
