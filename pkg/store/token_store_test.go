package store

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockTokenStore(t *testing.T) (*TokenStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewTokenStore(db), mock
}

func TestBalance(t *testing.T) {
	store, mock := newMockTokenStore(t)

	mock.ExpectQuery("SELECT balance FROM token_accounts").
		WithArgs("user-1").
		WillReturnRows(sqlmock.NewRows([]string{"balance"}).AddRow(7))

	balance, err := store.Balance(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, 7, balance)
}

func TestBalanceUnknownUserIsZero(t *testing.T) {
	store, mock := newMockTokenStore(t)

	mock.ExpectQuery("SELECT balance FROM token_accounts").
		WithArgs("nobody").
		WillReturnRows(sqlmock.NewRows([]string{"balance"}))

	balance, err := store.Balance(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Equal(t, 0, balance)
}

func TestCreditUpsertsAndLogs(t *testing.T) {
	store, mock := newMockTokenStore(t)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO token_accounts").
		WithArgs("user-1", 10).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO token_transactions").
		WithArgs("user-1", 10, "stripe purchase", "cs_123").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	err := store.Credit(context.Background(), "user-1", 10, "stripe purchase", "cs_123")
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreditRejectsNonPositiveAmount(t *testing.T) {
	store, _ := newMockTokenStore(t)

	assert.Error(t, store.Credit(context.Background(), "user-1", 0, "x", ""))
	assert.Error(t, store.Credit(context.Background(), "user-1", -5, "x", ""))
}

func TestDeductConditionalOnBalance(t *testing.T) {
	t.Run("sufficient balance", func(t *testing.T) {
		store, mock := newMockTokenStore(t)

		mock.ExpectBegin()
		mock.ExpectExec("UPDATE token_accounts").
			WithArgs("user-1", 1).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec("INSERT INTO token_transactions").
			WithArgs("user-1", -1, "analysis", nil).
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectCommit()

		err := store.Deduct(context.Background(), "user-1", 1, "analysis")
		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("insufficient balance", func(t *testing.T) {
		store, mock := newMockTokenStore(t)

		mock.ExpectBegin()
		mock.ExpectExec("UPDATE token_accounts").
			WithArgs("user-1", 5).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectRollback()

		err := store.Deduct(context.Background(), "user-1", 5, "analysis")
		assert.ErrorIs(t, err, ErrInsufficientTokens)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestSessionCredited(t *testing.T) {
	store, mock := newMockTokenStore(t)

	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("cs_123").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	credited, err := store.SessionCredited(context.Background(), "cs_123")
	require.NoError(t, err)
	assert.True(t, credited)
}
