package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/shippingcomps/backend/pkg/models"
)

var (
	// ErrNotFound is returned when a requested record does not exist
	ErrNotFound = errors.New("record not found")
)

// AnalysisStore persists analysis records and report subscriptions
type AnalysisStore struct {
	db *sql.DB
}

// NewAnalysisStore creates a store backed by the given database handle
func NewAnalysisStore(db *sql.DB) *AnalysisStore {
	return &AnalysisStore{db: db}
}

// InsertAnalysis creates a new analysis row in the processing state and
// returns its generated ID.
func (s *AnalysisStore) InsertAnalysis(ctx context.Context, userID *string, url, mode string) (string, error) {
	id := uuid.New().String()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO analyses (id, user_id, url, mode, status)
		VALUES ($1, $2, $3, $4, $5)`,
		id, userID, url, mode, models.StatusProcessing)
	if err != nil {
		return "", fmt.Errorf("insert analysis: %w", err)
	}
	return id, nil
}

// CompleteAnalysis writes the pipeline result onto a processing row and moves
// it to completed. The update is conditional on the row still being in the
// processing state, so a reaper that already marked it failed wins and the
// late completion is dropped. Returns ErrInvalidTransition when the row was
// no longer processing.
func (s *AnalysisStore) CompleteAnalysis(ctx context.Context, id string, record *models.AnalysisRecord) error {
	if !models.CanTransition(models.StatusProcessing, models.StatusCompleted) {
		return models.ErrInvalidTransition
	}

	competitors, err := json.Marshal(record.Competitors)
	if err != nil {
		return fmt.Errorf("marshal competitors: %w", err)
	}

	var userShipping []byte
	if record.UserShipping != nil {
		userShipping, err = json.Marshal(record.UserShipping)
		if err != nil {
			return fmt.Errorf("marshal user shipping: %w", err)
		}
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE analyses
		SET status = $2,
		    business_profile = $3,
		    business_summary = $4,
		    competitors = $5,
		    user_shipping = $6,
		    average_threshold = $7,
		    recommendations = $8,
		    analysis_time_ms = $9,
		    updated_at = now()
		WHERE id = $1 AND status = $10`,
		id, models.StatusCompleted,
		record.BusinessProfile, record.BusinessSummary,
		competitors, nullableJSON(userShipping),
		record.AverageThreshold, record.Recommendations,
		record.AnalysisTimeMs, models.StatusProcessing)
	if err != nil {
		return fmt.Errorf("complete analysis: %w", err)
	}
	return requireTransition(res)
}

// FailAnalysis moves a processing row to failed with an error message.
// Conditional on the processing state like CompleteAnalysis.
func (s *AnalysisStore) FailAnalysis(ctx context.Context, id, errMsg string, elapsedMs int64) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE analyses
		SET status = $2, error = $3, analysis_time_ms = $4, updated_at = now()
		WHERE id = $1 AND status = $5`,
		id, models.StatusFailed, errMsg, elapsedMs, models.StatusProcessing)
	if err != nil {
		return fmt.Errorf("fail analysis: %w", err)
	}
	return requireTransition(res)
}

// MarkStaleProcessingFailed sweeps processing rows whose updated_at is older
// than the cutoff into the failed state. Returns the number of rows reaped.
func (s *AnalysisStore) MarkStaleProcessingFailed(ctx context.Context, olderThan time.Duration) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE analyses
		SET status = $1, error = 'analysis timed out', updated_at = now()
		WHERE status = $2 AND updated_at < now() - $3::interval`,
		models.StatusFailed, models.StatusProcessing,
		fmt.Sprintf("%d seconds", int(olderThan.Seconds())))
	if err != nil {
		return 0, fmt.Errorf("reap stale analyses: %w", err)
	}
	return res.RowsAffected()
}

const analysisColumns = `id, user_id, url, mode, status, business_profile, business_summary,
	competitors, user_shipping, average_threshold, recommendations, error,
	analysis_time_ms, created_at, updated_at`

// GetAnalysis fetches one analysis by ID
func (s *AnalysisStore) GetAnalysis(ctx context.Context, id string) (*models.AnalysisRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+analysisColumns+` FROM analyses WHERE id = $1`, id)
	return scanAnalysis(row)
}

// ListByUser returns a user's analyses, newest first
func (s *AnalysisStore) ListByUser(ctx context.Context, userID string, limit int) ([]*models.AnalysisRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+analysisColumns+` FROM analyses
		 WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list analyses: %w", err)
	}
	defer rows.Close()

	var records []*models.AnalysisRecord
	for rows.Next() {
		rec, err := scanAnalysis(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAnalysis(row rowScanner) (*models.AnalysisRecord, error) {
	var rec models.AnalysisRecord
	var userID sql.NullString
	var competitors []byte
	var userShipping []byte

	err := row.Scan(&rec.ID, &userID, &rec.URL, &rec.Mode, &rec.Status,
		&rec.BusinessProfile, &rec.BusinessSummary,
		&competitors, &userShipping, &rec.AverageThreshold,
		&rec.Recommendations, &rec.Error, &rec.AnalysisTimeMs,
		&rec.CreatedAt, &rec.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan analysis: %w", err)
	}

	if userID.Valid {
		rec.UserID = &userID.String
	}
	if len(competitors) > 0 {
		if err := json.Unmarshal(competitors, &rec.Competitors); err != nil {
			return nil, fmt.Errorf("decode competitors: %w", err)
		}
	}
	if len(userShipping) > 0 {
		rec.UserShipping = &models.UserShipping{}
		if err := json.Unmarshal(userShipping, rec.UserShipping); err != nil {
			return nil, fmt.Errorf("decode user shipping: %w", err)
		}
	}
	return &rec, nil
}

func requireTransition(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return models.ErrInvalidTransition
	}
	return nil
}

func nullableJSON(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return b
}
