package store

import (
	"context"
	"fmt"
	"time"
)

// TryClaim atomically records a rule as fired. Returns true when this call
// inserted the claim, false when the rule was already claimed. This
// insert-if-absent is the only cross-tick serialization point: of any number
// of concurrent claims for one rule, exactly one returns true.
func (s *Store) TryClaim(ctx context.Context, ruleID, feedID, ownerID string, firedAt time.Time) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO dedup_log (rule_id, feed_id, owner_id, fired_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(rule_id) DO NOTHING
	`, ruleID, feedID, ownerID, firedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return false, fmt.Errorf("try claim: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("try claim: %w", err)
	}
	return n == 1, nil
}

// Claimed reports whether a rule already appears in the dedup log.
func (s *Store) Claimed(ctx context.Context, ruleID string) (bool, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM dedup_log WHERE rule_id = ?`, ruleID).Scan(&n); err != nil {
		return false, fmt.Errorf("claimed: %w", err)
	}
	return n > 0, nil
}

// CountClaims returns the number of fired rules in the dedup log.
func (s *Store) CountClaims(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM dedup_log`).Scan(&n)
	return n, err
}
