// Package postgres provides the pgx-backed record store. Every mutation
// records a change event in the outbox table inside the same transaction,
// which is what the live-feed subscriptions ultimately consume.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"example.com/biastrack/internal/domain"
)

// Store implements domain.RecordStore on PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore constructs a Store.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

const behaviorColumns = `id, user_id, timestamp, activity, biases_detected, confidence, notes, created_at`

func scanBehaviorRow(row pgx.Row) (domain.BehaviorRow, error) {
	var out domain.BehaviorRow
	err := row.Scan(&out.ID, &out.UserID, &out.Timestamp, &out.Activity, &out.BiasesDetected, &out.Confidence, &out.Notes, &out.CreatedAt)
	return out, err
}

// BehaviorEntries fetches all behavior entries for the user.
func (s *Store) BehaviorEntries(ctx context.Context, userID string) ([]domain.BehaviorRow, error) {
	query := fmt.Sprintf(`SELECT %s FROM behavior_entries WHERE user_id=$1`, behaviorColumns)
	rows, err := s.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.BehaviorRow, 0)
	for rows.Next() {
		entry, err := scanBehaviorRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, entry)
	}
	return out, rows.Err()
}

// ListBehaviorEntries returns a timestamp-descending page of behavior entries.
func (s *Store) ListBehaviorEntries(ctx context.Context, userID string, cursor *domain.Cursor, limit int) ([]domain.BehaviorRow, *domain.Cursor, error) {
	args := []interface{}{userID, limit}
	query := fmt.Sprintf(`SELECT %s FROM behavior_entries WHERE user_id=$1`, behaviorColumns)
	if cursor != nil {
		query += ` AND (timestamp, id) < ($3, $4)`
		args = append(args, cursor.Timestamp, cursor.ID)
	}
	query += ` ORDER BY timestamp DESC, id DESC LIMIT $2`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	results := make([]domain.BehaviorRow, 0, limit)
	for rows.Next() {
		entry, err := scanBehaviorRow(rows)
		if err != nil {
			return nil, nil, err
		}
		results = append(results, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}

	var next *domain.Cursor
	if len(results) == limit && limit > 0 {
		last := results[len(results)-1]
		next = &domain.Cursor{Timestamp: last.Timestamp, ID: last.ID}
	}
	return results, next, nil
}

// InsertBehaviorEntry persists the row and its change event in one transaction.
func (s *Store) InsertBehaviorEntry(ctx context.Context, row domain.BehaviorRow) error {
	return s.withTx(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx,
			`INSERT INTO behavior_entries (id, user_id, timestamp, activity, biases_detected, confidence, notes, created_at)
             VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
			row.ID, row.UserID, row.Timestamp, row.Activity, row.BiasesDetected, row.Confidence, row.Notes, row.CreatedAt,
		)
		if err != nil {
			return err
		}
		return s.insertChangeEvent(ctx, tx, "behavior_entry.created", row.UserID, row.ID, row)
	})
}

// ShoppingPatterns fetches all shopping patterns for the user.
func (s *Store) ShoppingPatterns(ctx context.Context, userID string) ([]domain.ShoppingRow, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, user_id, category, amount, purchase_date, bias_type, impulse, created_at
         FROM shopping_patterns WHERE user_id=$1 ORDER BY purchase_date DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.ShoppingRow, 0)
	for rows.Next() {
		var p domain.ShoppingRow
		if err := rows.Scan(&p.ID, &p.UserID, &p.Category, &p.Amount, &p.PurchaseDate, &p.BiasType, &p.Impulse, &p.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// InsertShoppingPattern persists the row and its change event in one transaction.
func (s *Store) InsertShoppingPattern(ctx context.Context, row domain.ShoppingRow) error {
	return s.withTx(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx,
			`INSERT INTO shopping_patterns (id, user_id, category, amount, purchase_date, bias_type, impulse, created_at)
             VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
			row.ID, row.UserID, row.Category, row.Amount, row.PurchaseDate, row.BiasType, row.Impulse, row.CreatedAt,
		)
		if err != nil {
			return err
		}
		return s.insertChangeEvent(ctx, tx, "shopping_pattern.created", row.UserID, row.ID, row)
	})
}

// NewsSources fetches all news sources for the user, newest first.
func (s *Store) NewsSources(ctx context.Context, userID string) ([]domain.NewsSourceRow, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, user_id, name, bias_score, articles_read, category, reliability, created_at
         FROM news_sources WHERE user_id=$1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.NewsSourceRow, 0)
	for rows.Next() {
		var n domain.NewsSourceRow
		if err := rows.Scan(&n.ID, &n.UserID, &n.Name, &n.BiasScore, &n.ArticlesRead, &n.Category, &n.Reliability, &n.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// InsertNewsSource persists the row and its change event in one transaction.
func (s *Store) InsertNewsSource(ctx context.Context, row domain.NewsSourceRow) error {
	return s.withTx(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx,
			`INSERT INTO news_sources (id, user_id, name, bias_score, articles_read, category, reliability, created_at)
             VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
			row.ID, row.UserID, row.Name, row.BiasScore, row.ArticlesRead, row.Category, row.Reliability, row.CreatedAt,
		)
		if err != nil {
			return err
		}
		return s.insertChangeEvent(ctx, tx, "news_source.created", row.UserID, row.ID, row)
	})
}

// DeleteNewsSource removes the source and records the deletion event.
func (s *Store) DeleteNewsSource(ctx context.Context, userID, sourceID string) error {
	return s.withTx(ctx, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx,
			`DELETE FROM news_sources WHERE user_id=$1 AND id=$2
             RETURNING id, user_id, name, bias_score, articles_read, category, reliability, created_at`,
			userID, sourceID)

		var old domain.NewsSourceRow
		if err := row.Scan(&old.ID, &old.UserID, &old.Name, &old.BiasScore, &old.ArticlesRead, &old.Category, &old.Reliability, &old.CreatedAt); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return domain.ErrNewsSourceNotFound
			}
			return err
		}
		return s.insertChangeEvent(ctx, tx, "news_source.deleted", userID, old.ID, old)
	})
}

const challengeColumns = `id, user_id, title, description, type, progress, target, completed, reward, created_at`

func scanChallengeRow(row pgx.Row) (domain.ChallengeRow, error) {
	var out domain.ChallengeRow
	err := row.Scan(&out.ID, &out.UserID, &out.Title, &out.Description, &out.Type, &out.Progress, &out.Target, &out.Completed, &out.Reward, &out.CreatedAt)
	return out, err
}

// Challenges fetches all challenges for the user.
func (s *Store) Challenges(ctx context.Context, userID string) ([]domain.ChallengeRow, error) {
	query := fmt.Sprintf(`SELECT %s FROM challenges WHERE user_id=$1 ORDER BY created_at`, challengeColumns)
	rows, err := s.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.ChallengeRow, 0)
	for rows.Next() {
		c, err := scanChallengeRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// GetChallenge fetches a challenge by ID, nil when absent.
func (s *Store) GetChallenge(ctx context.Context, userID, challengeID string) (*domain.ChallengeRow, error) {
	query := fmt.Sprintf(`SELECT %s FROM challenges WHERE user_id=$1 AND id=$2`, challengeColumns)
	c, err := scanChallengeRow(s.pool.QueryRow(ctx, query, userID, challengeID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &c, nil
}

// UpdateChallengeProgress persists the new progress and completion flag
// and returns the updated row, nil when absent.
func (s *Store) UpdateChallengeProgress(ctx context.Context, userID, challengeID string, progress int, completed bool) (*domain.ChallengeRow, error) {
	var updated domain.ChallengeRow
	err := s.withTx(ctx, func(tx pgx.Tx) error {
		query := fmt.Sprintf(
			`UPDATE challenges SET progress=$3, completed=$4 WHERE user_id=$1 AND id=$2 RETURNING %s`,
			challengeColumns)
		row, err := scanChallengeRow(tx.QueryRow(ctx, query, userID, challengeID, progress, completed))
		if err != nil {
			return err
		}
		updated = row
		return s.insertChangeEvent(ctx, tx, "challenge.updated", userID, updated.ID, updated)
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &updated, nil
}

// BiasMetrics fetches all bias metrics for the user.
func (s *Store) BiasMetrics(ctx context.Context, userID string) ([]domain.BiasMetricRow, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, user_id, type, value, trend, created_at FROM bias_metrics WHERE user_id=$1`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.BiasMetricRow, 0)
	for rows.Next() {
		var m domain.BiasMetricRow
		if err := rows.Scan(&m.ID, &m.UserID, &m.Type, &m.Value, &m.Trend, &m.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *Store) withTx(ctx context.Context, fn func(pgx.Tx) error) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		tx.Rollback(ctx)
		return err
	}
	return tx.Commit(ctx)
}

func (s *Store) insertChangeEvent(ctx context.Context, tx pgx.Tx, eventType, userID, recordID string, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	meta, ok := ChangeEventCatalog[eventType]
	if !ok {
		return fmt.Errorf("unknown event type: %s", eventType)
	}

	dedupeKey := fmt.Sprintf("%s:%s", recordID, eventType)

	const stmt = `INSERT INTO outbox (user_id, record_kind, record_id, event_type, topic, schema_subject, partition_key, payload, dedupe_key)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`

	_, err = tx.Exec(ctx, stmt,
		userID,
		meta.RecordKind,
		recordID,
		eventType,
		meta.Topic,
		meta.SchemaSubject,
		userID,
		body,
		dedupeKey,
	)
	return err
}

// ChangeEventMetadata describes how to route a change event.
type ChangeEventMetadata struct {
	RecordKind    string
	Topic         string
	SchemaSubject string
}

// ChangeEventCatalog maps event types to their routing metadata. One
// topic per record kind, keyed/partitioned by user.
var ChangeEventCatalog = map[string]ChangeEventMetadata{
	"behavior_entry.created": {
		RecordKind:    "behavior_entry",
		Topic:         "biastrack.behavior_entries",
		SchemaSubject: "biastrack.behavior_entries-value",
	},
	"shopping_pattern.created": {
		RecordKind:    "shopping_pattern",
		Topic:         "biastrack.shopping_patterns",
		SchemaSubject: "biastrack.shopping_patterns-value",
	},
	"news_source.created": {
		RecordKind:    "news_source",
		Topic:         "biastrack.news_sources",
		SchemaSubject: "biastrack.news_sources-value",
	},
	"news_source.deleted": {
		RecordKind:    "news_source",
		Topic:         "biastrack.news_sources",
		SchemaSubject: "biastrack.news_sources-value",
	},
	"challenge.updated": {
		RecordKind:    "challenge",
		Topic:         "biastrack.challenges",
		SchemaSubject: "biastrack.challenges-value",
	},
}
