package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/theoremus-urban-solutions/gtfsrt-trigger/rules"
)

// ErrNotFound is returned when a rule id does not exist.
var ErrNotFound = errors.New("rule not found")

// PutRule inserts a rule, or replaces the row when the id already exists
// (the rules API uses replacement for updates; the engine never writes).
func (s *Store) PutRule(ctx context.Context, r rules.TriggerRule) error {
	condJSON, err := json.Marshal(r.Condition)
	if err != nil {
		return fmt.Errorf("put rule: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO rules (id, feed_id, owner_id, webhook_url, description, condition, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			feed_id = excluded.feed_id,
			owner_id = excluded.owner_id,
			webhook_url = excluded.webhook_url,
			description = excluded.description,
			condition = excluded.condition
	`,
		r.ID,
		r.FeedID,
		r.OwnerID,
		r.WebhookURL,
		r.Description,
		string(condJSON),
		r.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("put rule: %w", err)
	}
	return nil
}

// ListPending returns live rules not yet claimed in the dedup log, oldest
// first. An empty feedID returns every feed's rules. A rule already present
// in the dedup log is treated as fired and excluded even while its row still
// exists, which tolerates retirement lag.
func (s *Store) ListPending(ctx context.Context, feedID string) ([]rules.TriggerRule, error) {
	query := `
		SELECT r.id, r.feed_id, r.owner_id, r.webhook_url, r.description, r.condition, r.created_at
		FROM rules r
		LEFT JOIN dedup_log d ON d.rule_id = r.id
		WHERE d.rule_id IS NULL`
	args := []any{}
	if feedID != "" {
		query += ` AND r.feed_id = ?`
		args = append(args, feedID)
	}
	query += ` ORDER BY r.created_at`
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list pending: %w", err)
	}
	defer func() { _ = rows.Close() }()
	return scanRules(rows)
}

// GetRule fetches one rule by id.
func (s *Store) GetRule(ctx context.Context, id string) (rules.TriggerRule, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, feed_id, owner_id, webhook_url, description, condition, created_at
		FROM rules WHERE id = ?`, id)
	r, err := scanRule(row)
	if errors.Is(err, sql.ErrNoRows) {
		return rules.TriggerRule{}, ErrNotFound
	}
	return r, err
}

// ListRulesByOwner returns every rule owned by an identity, newest first.
func (s *Store) ListRulesByOwner(ctx context.Context, ownerID string) ([]rules.TriggerRule, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, feed_id, owner_id, webhook_url, description, condition, created_at
		FROM rules WHERE owner_id = ? ORDER BY created_at DESC`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list rules by owner: %w", err)
	}
	defer func() { _ = rows.Close() }()
	return scanRules(rows)
}

// DeleteRule removes a rule by id. Deleting an absent rule is a no-op.
func (s *Store) DeleteRule(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM rules WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete rule: %w", err)
	}
	return nil
}

// CountRules returns the number of live rule rows (fired-but-unretired
// included).
func (s *Store) CountRules(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM rules`).Scan(&n)
	return n, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRule(row rowScanner) (rules.TriggerRule, error) {
	var r rules.TriggerRule
	var condJSON, createdAt string
	if err := row.Scan(&r.ID, &r.FeedID, &r.OwnerID, &r.WebhookURL, &r.Description, &condJSON, &createdAt); err != nil {
		return rules.TriggerRule{}, err
	}
	if err := json.Unmarshal([]byte(condJSON), &r.Condition); err != nil {
		return rules.TriggerRule{}, fmt.Errorf("rule %s: bad condition: %w", r.ID, err)
	}
	ts, err := time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return rules.TriggerRule{}, fmt.Errorf("rule %s: bad created_at: %w", r.ID, err)
	}
	r.CreatedAt = ts
	return r, nil
}

func scanRules(rows *sql.Rows) ([]rules.TriggerRule, error) {
	var out []rules.TriggerRule
	for rows.Next() {
		r, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
