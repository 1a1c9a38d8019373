package subscription

import (
	"context"
	"fmt"
	"time"

	"github.com/shippingcomps/backend/pkg/analysis"
	"github.com/shippingcomps/backend/pkg/logger"
	"github.com/shippingcomps/backend/pkg/models"
)

// SubscriptionStore is the persistence surface the runner needs
type SubscriptionStore interface {
	Create(ctx context.Context, userID, email, url string) (*models.ReportSubscription, error)
	ListByUser(ctx context.Context, userID string) ([]*models.ReportSubscription, error)
	ListDue(ctx context.Context, limit int) ([]*models.ReportSubscription, error)
	MarkRun(ctx context.Context, id string, ranAt time.Time) error
	Cancel(ctx context.Context, id, userID string) error
}

// AnalysisStore persists the records produced by subscription runs
type AnalysisStore interface {
	InsertAnalysis(ctx context.Context, userID *string, url, mode string) (string, error)
	CompleteAnalysis(ctx context.Context, id string, record *models.AnalysisRecord) error
	FailAnalysis(ctx context.Context, id, errMsg string, elapsedMs int64) error
}

// ReportSender delivers the finished report by email
type ReportSender interface {
	SendAnalysisReport(toEmail, url string, record *models.AnalysisRecord) error
}

// Service runs recurring report subscriptions
type Service struct {
	subs     SubscriptionStore
	analyses AnalysisStore
	pipeline analysis.Runner
	email    ReportSender
	logger   logger.Logger
}

// NewService creates a subscription runner
func NewService(subs SubscriptionStore, analyses AnalysisStore, pipeline analysis.Runner, email ReportSender, log logger.Logger) *Service {
	if log == nil {
		log = logger.Default()
	}
	return &Service{
		subs:     subs,
		analyses: analyses,
		pipeline: pipeline,
		email:    email,
		logger:   log,
	}
}

// Subscribe creates a new bi-weekly report subscription
func (s *Service) Subscribe(ctx context.Context, userID, email, url string) (*models.ReportSubscription, error) {
	return s.subs.Create(ctx, userID, email, url)
}

// List returns a user's subscriptions
func (s *Service) List(ctx context.Context, userID string) ([]*models.ReportSubscription, error) {
	return s.subs.ListByUser(ctx, userID)
}

// Cancel deactivates a subscription
func (s *Service) Cancel(ctx context.Context, id, userID string) error {
	return s.subs.Cancel(ctx, id, userID)
}

// RunDue executes every subscription whose next run is in the past.
// Each subscription runs independently; one failing never blocks the rest.
// Returns the number of subscriptions that produced a report.
func (s *Service) RunDue(ctx context.Context, limit int) (int, error) {
	due, err := s.subs.ListDue(ctx, limit)
	if err != nil {
		return 0, fmt.Errorf("list due subscriptions: %w", err)
	}
	if len(due) == 0 {
		return 0, nil
	}

	s.logger.Info("running due subscriptions", "count", len(due))

	var ran int
	for _, sub := range due {
		if err := s.runOne(ctx, sub); err != nil {
			s.logger.Error("subscription run failed", "subscription", sub.ID, "url", sub.URL, "error", err)
			continue
		}
		ran++
	}
	return ran, nil
}

func (s *Service) runOne(ctx context.Context, sub *models.ReportSubscription) error {
	start := time.Now()

	id, err := s.analyses.InsertAnalysis(ctx, &sub.UserID, sub.URL, "comprehensive")
	if err != nil {
		return err
	}

	result, err := s.pipeline.Run(ctx, sub.URL, "comprehensive")
	if err != nil {
		if failErr := s.analyses.FailAnalysis(ctx, id, err.Error(), time.Since(start).Milliseconds()); failErr != nil {
			s.logger.Warn("could not record failed subscription analysis", "analysis", id, "error", failErr)
		}
		return err
	}

	record := &models.AnalysisRecord{
		ID:               id,
		UserID:           &sub.UserID,
		URL:              sub.URL,
		Mode:             "comprehensive",
		Status:           models.StatusCompleted,
		BusinessProfile:  result.BusinessProfile,
		BusinessSummary:  result.BusinessSummary,
		Competitors:      result.Competitors,
		UserShipping:     result.UserShipping,
		AverageThreshold: result.AverageThreshold,
		Recommendations:  result.Recommendations,
		AnalysisTimeMs:   time.Since(start).Milliseconds(),
	}
	if err := s.analyses.CompleteAnalysis(ctx, id, record); err != nil {
		return err
	}

	if err := s.email.SendAnalysisReport(sub.Email, sub.URL, record); err != nil {
		// the report exists either way; delivery failure must not block rescheduling
		s.logger.Warn("report email delivery failed", "subscription", sub.ID, "error", err)
	}

	if err := s.subs.MarkRun(ctx, sub.ID, time.Now()); err != nil {
		return err
	}

	s.logger.Info("subscription report delivered",
		"subscription", sub.ID, "url", sub.URL, "analysis", id)
	return nil
}
