package sqlite

import (
	"context"
	"fmt"

	"yieldfetcher/internal/opportunity"
	"yieldfetcher/internal/storage"
)

const upsertOpportunitySQL = `
	INSERT INTO opportunities
	(id, name, provider, asset, chain, apr, category, liquidity, risk_score, yield_date, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		name = excluded.name,
		provider = excluded.provider,
		asset = excluded.asset,
		chain = excluded.chain,
		apr = excluded.apr,
		category = excluded.category,
		liquidity = excluded.liquidity,
		risk_score = excluded.risk_score,
		yield_date = excluded.yield_date,
		updated_at = excluded.updated_at
`

// BatchUpsertOpportunities writes recs in one transaction. Either every
// record is stored or none is: any invalid record or write failure yields
// {Success: 0, Failed: len(recs)} with the cause.
func (s *Store) BatchUpsertOpportunities(ctx context.Context, recs []opportunity.Opportunity) (storage.BatchResult, error) {
	if len(recs) == 0 {
		return storage.BatchResult{}, nil
	}
	failed := storage.BatchResult{Failed: len(recs)}

	for _, r := range recs {
		if err := r.Validate(); err != nil {
			return failed, fmt.Errorf("%w: record %q: %w", storage.ErrStorage, r.ID, err)
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return failed, wrap("begin batch", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, upsertOpportunitySQL)
	if err != nil {
		return failed, wrap("prepare upsert", err)
	}
	defer stmt.Close()

	for _, r := range recs {
		_, err := stmt.ExecContext(ctx,
			r.ID,
			r.Name,
			r.Provider,
			r.Asset,
			string(r.Chain),
			r.APR,
			string(r.Category),
			string(r.Liquidity),
			r.RiskScore,
			formatTime(r.YieldDate),
			formatTime(r.UpdatedAt),
		)
		if err != nil {
			return failed, wrap(fmt.Sprintf("upsert %q", r.ID), err)
		}
	}
	if err := tx.Commit(); err != nil {
		return failed, wrap("commit batch", err)
	}
	return storage.BatchResult{Success: len(recs)}, nil
}

// GetAllOpportunities returns every stored record, most recent yield date first.
func (s *Store) GetAllOpportunities(ctx context.Context) ([]opportunity.Opportunity, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, provider, asset, chain, apr, category, liquidity, risk_score, yield_date, updated_at
		FROM opportunities
		ORDER BY yield_date DESC, id
	`)
	if err != nil {
		return nil, wrap("query opportunities", err)
	}
	defer rows.Close()

	out := []opportunity.Opportunity{}
	for rows.Next() {
		var (
			o                    opportunity.Opportunity
			chain, cat, liq      string
			yieldDate, updatedAt string
		)
		if err := rows.Scan(&o.ID, &o.Name, &o.Provider, &o.Asset, &chain, &o.APR, &cat, &liq, &o.RiskScore, &yieldDate, &updatedAt); err != nil {
			return nil, wrap("scan opportunity", err)
		}
		o.Chain = opportunity.Chain(chain)
		o.Category = opportunity.Category(cat)
		o.Liquidity = opportunity.Liquidity(liq)
		if o.YieldDate, err = parseTime(yieldDate); err != nil {
			return nil, wrap("parse yield_date", err)
		}
		if o.UpdatedAt, err = parseTime(updatedAt); err != nil {
			return nil, wrap("parse updated_at", err)
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, wrap("iterate opportunities", err)
	}
	return out, nil
}
