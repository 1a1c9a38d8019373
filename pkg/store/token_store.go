package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// ErrInsufficientTokens is returned when a deduction would take a balance
// below zero.
var ErrInsufficientTokens = errors.New("insufficient token balance")

// TokenStore persists per-user token balances and their transaction log
type TokenStore struct {
	db *sql.DB
}

// NewTokenStore creates a store backed by the given database handle
func NewTokenStore(db *sql.DB) *TokenStore {
	return &TokenStore{db: db}
}

// Balance returns the user's current token balance, zero for unknown users
func (s *TokenStore) Balance(ctx context.Context, userID string) (int, error) {
	var balance int
	err := s.db.QueryRowContext(ctx,
		`SELECT balance FROM token_accounts WHERE user_id = $1`, userID).Scan(&balance)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("token balance: %w", err)
	}
	return balance, nil
}

// Credit adds tokens to a user's balance, creating the account on first
// credit, and logs the transaction. The whole operation is one transaction.
func (s *TokenStore) Credit(ctx context.Context, userID string, amount int, reason, stripeSessionID string) error {
	if amount <= 0 {
		return fmt.Errorf("credit amount must be positive, got %d", amount)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin credit: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO token_accounts (user_id, balance)
		VALUES ($1, $2)
		ON CONFLICT (user_id) DO UPDATE
		SET balance = token_accounts.balance + $2, updated_at = now()`,
		userID, amount)
	if err != nil {
		return fmt.Errorf("credit tokens: %w", err)
	}

	if err := logTransaction(ctx, tx, userID, amount, reason, stripeSessionID); err != nil {
		return err
	}
	return tx.Commit()
}

// Deduct removes tokens from a user's balance. The update is conditional on
// the balance covering the amount, so concurrent deductions cannot drive the
// balance negative. Returns ErrInsufficientTokens when it does not.
func (s *TokenStore) Deduct(ctx context.Context, userID string, amount int, reason string) error {
	if amount <= 0 {
		return fmt.Errorf("deduct amount must be positive, got %d", amount)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin deduct: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE token_accounts
		SET balance = balance - $2, updated_at = now()
		WHERE user_id = $1 AND balance >= $2`,
		userID, amount)
	if err != nil {
		return fmt.Errorf("deduct tokens: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return ErrInsufficientTokens
	}

	if err := logTransaction(ctx, tx, userID, -amount, reason, ""); err != nil {
		return err
	}
	return tx.Commit()
}

// SessionCredited reports whether a Stripe checkout session was already
// credited, making webhook delivery idempotent.
func (s *TokenStore) SessionCredited(ctx context.Context, stripeSessionID string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM token_transactions WHERE stripe_session_id = $1
		)`, stripeSessionID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("session credited: %w", err)
	}
	return exists, nil
}

func logTransaction(ctx context.Context, tx *sql.Tx, userID string, delta int, reason, stripeSessionID string) error {
	var sessionID any
	if stripeSessionID != "" {
		sessionID = stripeSessionID
	}
	_, err := tx.ExecContext(ctx, `
		INSERT INTO token_transactions (user_id, delta, reason, stripe_session_id)
		VALUES ($1, $2, $3, $4)`,
		userID, delta, reason, sessionID)
	if err != nil {
		return fmt.Errorf("log token transaction: %w", err)
	}
	return nil
}
