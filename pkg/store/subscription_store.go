package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/shippingcomps/backend/pkg/models"
)

// SubscriptionStore persists recurring report subscriptions
type SubscriptionStore struct {
	db *sql.DB
}

// NewSubscriptionStore creates a store backed by the given database handle
func NewSubscriptionStore(db *sql.DB) *SubscriptionStore {
	return &SubscriptionStore{db: db}
}

// defaultIntervalDays is the bi-weekly report cadence
const defaultIntervalDays = 14

// Create inserts a new active subscription with the first run one interval out
func (s *SubscriptionStore) Create(ctx context.Context, userID, email, url string) (*models.ReportSubscription, error) {
	sub := &models.ReportSubscription{
		ID:           uuid.New().String(),
		UserID:       userID,
		Email:        email,
		URL:          url,
		Active:       true,
		IntervalDays: defaultIntervalDays,
		NextRunAt:    time.Now().AddDate(0, 0, defaultIntervalDays),
		CreatedAt:    time.Now(),
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO report_subscriptions (id, user_id, email, url, active, interval_days, next_run_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		sub.ID, sub.UserID, sub.Email, sub.URL, sub.Active, sub.IntervalDays, sub.NextRunAt)
	if err != nil {
		return nil, fmt.Errorf("create subscription: %w", err)
	}
	return sub, nil
}

const subscriptionColumns = `id, user_id, email, url, active, interval_days, last_run_at, next_run_at, created_at`

// ListByUser returns a user's subscriptions, newest first
func (s *SubscriptionStore) ListByUser(ctx context.Context, userID string) ([]*models.ReportSubscription, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+subscriptionColumns+` FROM report_subscriptions
		 WHERE user_id = $1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list subscriptions: %w", err)
	}
	defer rows.Close()
	return scanSubscriptions(rows)
}

// ListDue returns active subscriptions whose next run is in the past
func (s *SubscriptionStore) ListDue(ctx context.Context, limit int) ([]*models.ReportSubscription, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+subscriptionColumns+` FROM report_subscriptions
		 WHERE active = TRUE AND next_run_at <= now()
		 ORDER BY next_run_at ASC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list due subscriptions: %w", err)
	}
	defer rows.Close()
	return scanSubscriptions(rows)
}

// MarkRun records a completed run and schedules the next one
func (s *SubscriptionStore) MarkRun(ctx context.Context, id string, ranAt time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE report_subscriptions
		SET last_run_at = $2, next_run_at = $2 + interval_days * interval '1 day'
		WHERE id = $1`, id, ranAt)
	if err != nil {
		return fmt.Errorf("mark subscription run: %w", err)
	}
	return requireFound(res)
}

// Cancel deactivates a subscription. The user scoping prevents cancelling
// another user's subscription by guessing IDs.
func (s *SubscriptionStore) Cancel(ctx context.Context, id, userID string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE report_subscriptions SET active = FALSE
		WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("cancel subscription: %w", err)
	}
	return requireFound(res)
}

func scanSubscriptions(rows *sql.Rows) ([]*models.ReportSubscription, error) {
	var subs []*models.ReportSubscription
	for rows.Next() {
		var sub models.ReportSubscription
		var lastRun sql.NullTime
		err := rows.Scan(&sub.ID, &sub.UserID, &sub.Email, &sub.URL, &sub.Active,
			&sub.IntervalDays, &lastRun, &sub.NextRunAt, &sub.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan subscription: %w", err)
		}
		if lastRun.Valid {
			sub.LastRunAt = &lastRun.Time
		}
		subs = append(subs, &sub)
	}
	return subs, rows.Err()
}

func requireFound(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}
