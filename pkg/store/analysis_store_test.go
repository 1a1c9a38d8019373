package store

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shippingcomps/backend/pkg/models"
)

func newMockStore(t *testing.T) (*AnalysisStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewAnalysisStore(db), mock
}

func TestInsertAnalysis(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec("INSERT INTO analyses").
		WithArgs(sqlmock.AnyArg(), nil, "https://example.com", "fast", models.StatusProcessing).
		WillReturnResult(sqlmock.NewResult(0, 1))

	id, err := store.InsertAnalysis(context.Background(), nil, "https://example.com", "fast")
	require.NoError(t, err)
	assert.NotEmpty(t, id)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCompleteAnalysisConditionalOnProcessing(t *testing.T) {
	store, mock := newMockStore(t)

	record := &models.AnalysisRecord{
		BusinessProfile:  "profile",
		AverageThreshold: 42.5,
		AnalysisTimeMs:   1234,
	}

	t.Run("row still processing", func(t *testing.T) {
		mock.ExpectExec("UPDATE analyses").
			WillReturnResult(sqlmock.NewResult(0, 1))

		err := store.CompleteAnalysis(context.Background(), "id-1", record)
		assert.NoError(t, err)
	})

	t.Run("row already terminal", func(t *testing.T) {
		// the reaper marked this row failed first; zero rows match the
		// WHERE status = 'processing' guard
		mock.ExpectExec("UPDATE analyses").
			WillReturnResult(sqlmock.NewResult(0, 0))

		err := store.CompleteAnalysis(context.Background(), "id-1", record)
		assert.ErrorIs(t, err, models.ErrInvalidTransition)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFailAnalysisConditionalOnProcessing(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec("UPDATE analyses").
		WithArgs("id-1", models.StatusFailed, "boom", int64(500), models.StatusProcessing).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := store.FailAnalysis(context.Background(), "id-1", "boom", 500)
	assert.ErrorIs(t, err, models.ErrInvalidTransition)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkStaleProcessingFailed(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec("UPDATE analyses").
		WithArgs(models.StatusFailed, models.StatusProcessing, "300 seconds").
		WillReturnResult(sqlmock.NewResult(0, 3))

	reaped, err := store.MarkStaleProcessingFailed(context.Background(), 5*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(3), reaped)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetAnalysis(t *testing.T) {
	store, mock := newMockStore(t)

	threshold := 75.0
	competitors, _ := json.Marshal([]models.CompetitorResult{
		{Name: "Acme", Website: "acme.com", Shipping: models.ShippingProfile{Threshold: &threshold}},
	})
	userShipping, _ := json.Marshal(models.UserShipping{Threshold: &threshold, Analysis: "Free over $75"})

	now := time.Now()
	rows := sqlmock.NewRows([]string{
		"id", "user_id", "url", "mode", "status", "business_profile", "business_summary",
		"competitors", "user_shipping", "average_threshold", "recommendations", "error",
		"analysis_time_ms", "created_at", "updated_at",
	}).AddRow("id-1", "user-1", "https://example.com", "fast", "completed",
		"profile", "summary", competitors, userShipping, 75.0, "recs", "", int64(900), now, now)

	mock.ExpectQuery("SELECT (.+) FROM analyses WHERE id").
		WithArgs("id-1").
		WillReturnRows(rows)

	rec, err := store.GetAnalysis(context.Background(), "id-1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, rec.Status)
	require.NotNil(t, rec.UserID)
	assert.Equal(t, "user-1", *rec.UserID)
	require.Len(t, rec.Competitors, 1)
	assert.Equal(t, "Acme", rec.Competitors[0].Name)
	require.NotNil(t, rec.UserShipping)
	assert.Equal(t, 75.0, *rec.UserShipping.Threshold)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetAnalysisNotFound(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("SELECT (.+) FROM analyses WHERE id").
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := store.GetAnalysis(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListByUser(t *testing.T) {
	store, mock := newMockStore(t)

	now := time.Now()
	rows := sqlmock.NewRows([]string{
		"id", "user_id", "url", "mode", "status", "business_profile", "business_summary",
		"competitors", "user_shipping", "average_threshold", "recommendations", "error",
		"analysis_time_ms", "created_at", "updated_at",
	}).
		AddRow("id-2", "user-1", "https://b.com", "fast", "completed", "", "", []byte("[]"), nil, 0.0, "", "", int64(0), now, now).
		AddRow("id-1", "user-1", "https://a.com", "fast", "failed", "", "", []byte("[]"), nil, 0.0, "", "timeout", int64(0), now, now)

	mock.ExpectQuery("SELECT (.+) FROM analyses").
		WithArgs("user-1", 50).
		WillReturnRows(rows)

	records, err := store.ListByUser(context.Background(), "user-1", 0)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "id-2", records[0].ID)
	assert.Equal(t, models.StatusFailed, records[1].Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}
