package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/docutrail/dtrs-api/internal/dto"
	"github.com/docutrail/dtrs-api/internal/models"
	appErrors "github.com/docutrail/dtrs-api/pkg/errors"
)

type dashboardRepository interface {
	StatusCounts(ctx context.Context, departmentID string) (map[models.DocumentStatus]int, error)
	OverdueCount(ctx context.Context, departmentID string, asOf time.Time) (int, error)
	DueTodayCount(ctx context.Context, departmentID string, dayStart, dayEnd time.Time) (int, error)
	ReturnableOverdueCount(ctx context.Context, departmentID string, asOf time.Time) (int, error)
	OriginalsInCustodyCount(ctx context.Context, departmentID string) (int, error)
	ActiveCopiesCount(ctx context.Context, departmentID string) (int, error)
	AlertCounts(ctx context.Context, departmentID string) (map[models.AlertType]int, error)
}

// DashboardService aggregates department workload figures for office
// dashboards. Summaries are cached; any workflow or custody mutation
// should call InvalidateSummaries.
type DashboardService struct {
	repo   dashboardRepository
	cache  *CacheService
	logger *zap.Logger
	ttl    time.Duration
}

// NewDashboardService constructs a DashboardService.
func NewDashboardService(repo dashboardRepository, cache *CacheService, logger *zap.Logger, ttl time.Duration) *DashboardService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if ttl <= 0 {
		ttl = 2 * time.Minute
	}
	return &DashboardService{repo: repo, cache: cache, logger: logger, ttl: ttl}
}

func dashboardCacheKey(departmentID string) string {
	if departmentID == "" {
		return "dashboard:summary:all"
	}
	return fmt.Sprintf("dashboard:summary:%s", departmentID)
}

// Summary builds the aggregate view for the actor's scope. Actors without
// cross-department visibility always see their own department, whatever
// scope they ask for.
func (s *DashboardService) Summary(ctx context.Context, actor *models.JWTClaims, departmentID string, asOf time.Time) (*dto.DashboardSummary, error) {
	scope := departmentID
	if !models.CrossDepartmentVisibility(actor.Role) {
		scope = actor.DepartmentID
	}

	cacheKey := dashboardCacheKey(scope)
	if s.cache.Enabled() {
		var cached dto.DashboardSummary
		hit, err := s.cache.Get(ctx, cacheKey, &cached)
		if err == nil && hit {
			return &cached, nil
		}
	}

	statusCounts, err := s.repo.StatusCounts(ctx, scope)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to aggregate queue counts")
	}

	dayStart := time.Date(asOf.Year(), asOf.Month(), asOf.Day(), 0, 0, 0, 0, asOf.Location())
	dayEnd := dayStart.Add(24 * time.Hour)

	overdue, err := s.repo.OverdueCount(ctx, scope, asOf)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to aggregate overdue counts")
	}
	dueToday, err := s.repo.DueTodayCount(ctx, scope, dayStart, dayEnd)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to aggregate due today counts")
	}
	returnableOverdue, err := s.repo.ReturnableOverdueCount(ctx, scope, asOf)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to aggregate returnable counts")
	}
	originals, err := s.repo.OriginalsInCustodyCount(ctx, scope)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to aggregate custody counts")
	}
	copies, err := s.repo.ActiveCopiesCount(ctx, scope)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to aggregate copy counts")
	}
	alertCounts, err := s.repo.AlertCounts(ctx, scope)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to aggregate alert counts")
	}

	summary := &dto.DashboardSummary{
		DepartmentID: scope,
		Queues: dto.QueueCounts{
			Incoming: statusCounts[models.DocumentStatusIncoming],
			OnQueue:  statusCounts[models.DocumentStatusOnQueue],
			Outgoing: statusCounts[models.DocumentStatusOutgoing],
		},
		Workflow: dto.WorkflowHighlights{
			Overdue:           overdue,
			DueToday:          dueToday,
			ReturnableOverdue: returnableOverdue,
		},
		Custody: dto.CustodyHighlights{
			OriginalsInCustody: originals,
			ActiveCopies:       copies,
		},
		Alerts: dto.AlertCounts{
			Total:   alertCounts[models.AlertTypeOverdue] + alertCounts[models.AlertTypeStalled],
			Overdue: alertCounts[models.AlertTypeOverdue],
			Stalled: alertCounts[models.AlertTypeStalled],
		},
	}

	if s.cache.Enabled() {
		if cacheErr := s.cache.Set(ctx, cacheKey, summary, s.ttl); cacheErr != nil {
			s.logger.Warn("failed to cache dashboard summary", zap.String("key", cacheKey), zap.Error(cacheErr))
		}
	}
	return summary, nil
}

// InvalidateSummaries drops all cached dashboard payloads.
func (s *DashboardService) InvalidateSummaries(ctx context.Context) {
	if !s.cache.Enabled() {
		return
	}
	if err := s.cache.Invalidate(ctx, "dashboard:summary:*"); err != nil {
		s.logger.Warn("failed to invalidate dashboard cache", zap.Error(err))
	}
}
