package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"yieldfetcher/internal/match"
	"yieldfetcher/internal/storage"
)

// GetUserMatch returns the saved preferences of userID, or nil if none exist.
func (s *Store) GetUserMatch(ctx context.Context, userID string) (*match.UserMatch, error) {
	var (
		m                    match.UserMatch
		wallet               string
		createdAt, updatedAt string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT user_id, wallet_balance, risk_tolerance, max_allocation_pct, investment_horizon, created_at, updated_at
		FROM user_matches WHERE user_id = ?
	`, userID).Scan(&m.UserID, &wallet, &m.RiskTolerance, &m.MaxAllocationPct, &m.InvestmentHorizon, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, wrap("query user match", err)
	}

	m.WalletBalance = map[string]decimal.Decimal{}
	if err := json.Unmarshal([]byte(wallet), &m.WalletBalance); err != nil {
		return nil, wrap("decode wallet balance", err)
	}
	if m.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, wrap("parse created_at", err)
	}
	if m.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, wrap("parse updated_at", err)
	}
	return &m, nil
}

// UpsertUserMatch stores req for userID. CreatedAt is kept from the first
// write; UpdatedAt is refreshed on every write.
func (s *Store) UpsertUserMatch(ctx context.Context, userID string, req match.Request) (match.UserMatch, error) {
	if userID == "" {
		return match.UserMatch{}, fmt.Errorf("%w: empty user id", storage.ErrStorage)
	}
	wallet := req.WalletBalance
	if wallet == nil {
		wallet = map[string]decimal.Decimal{}
	}
	b, err := json.Marshal(wallet)
	if err != nil {
		return match.UserMatch{}, wrap("encode wallet balance", err)
	}

	now := formatTime(s.now())
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO user_matches
		(user_id, wallet_balance, risk_tolerance, max_allocation_pct, investment_horizon, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			wallet_balance = excluded.wallet_balance,
			risk_tolerance = excluded.risk_tolerance,
			max_allocation_pct = excluded.max_allocation_pct,
			investment_horizon = excluded.investment_horizon,
			updated_at = excluded.updated_at
	`, userID, string(b), req.RiskTolerance, req.MaxAllocationPct, req.InvestmentHorizon, now, now)
	if err != nil {
		return match.UserMatch{}, wrap("upsert user match", err)
	}

	m, err := s.GetUserMatch(ctx, userID)
	if err != nil {
		return match.UserMatch{}, err
	}
	if m == nil {
		return match.UserMatch{}, fmt.Errorf("%w: user match %q vanished after upsert", storage.ErrStorage, userID)
	}
	return *m, nil
}
