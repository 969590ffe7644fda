package domain

import (
	"context"
	"time"
)

// Raw rows mirror the persisted column names of each table. The same
// structs are scanned out of Postgres and carried as JSON payloads on the
// change-event topics, so the fetch path and the live-subscription path
// share one mapping step.

// BehaviorRow is a raw behavior_entries row.
type BehaviorRow struct {
	ID             string    `json:"id"`
	UserID         string    `json:"user_id"`
	Timestamp      time.Time `json:"timestamp"`
	Activity       string    `json:"activity"`
	BiasesDetected []string  `json:"biases_detected"`
	Confidence     float64   `json:"confidence"`
	Notes          *string   `json:"notes"`
	CreatedAt      time.Time `json:"created_at"`
}

// ShoppingRow is a raw shopping_patterns row.
type ShoppingRow struct {
	ID           string    `json:"id"`
	UserID       string    `json:"user_id"`
	Category     string    `json:"category"`
	Amount       float64   `json:"amount"`
	PurchaseDate time.Time `json:"purchase_date"`
	BiasType     string    `json:"bias_type"`
	Impulse      bool      `json:"impulse"`
	CreatedAt    time.Time `json:"created_at"`
}

// NewsSourceRow is a raw news_sources row.
type NewsSourceRow struct {
	ID           string    `json:"id"`
	UserID       string    `json:"user_id"`
	Name         string    `json:"name"`
	BiasScore    float64   `json:"bias_score"`
	ArticlesRead int       `json:"articles_read"`
	Category     string    `json:"category"`
	Reliability  float64   `json:"reliability"`
	CreatedAt    time.Time `json:"created_at"`
}

// ChallengeRow is a raw challenges row.
type ChallengeRow struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	Title       string    `json:"title"`
	Description *string   `json:"description"`
	Type        string    `json:"type"`
	Progress    int       `json:"progress"`
	Target      int       `json:"target"`
	Completed   bool      `json:"completed"`
	Reward      *string   `json:"reward"`
	CreatedAt   time.Time `json:"created_at"`
}

// BiasMetricRow is a raw bias_metrics row.
type BiasMetricRow struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Type      string    `json:"type"`
	Value     float64   `json:"value"`
	Trend     float64   `json:"trend"`
	CreatedAt time.Time `json:"created_at"`
}

// Cursor models the pagination token for timestamp-ordered listings.
type Cursor struct {
	Timestamp time.Time
	ID        string
}

// RecordStore captures the external record store contract, one set of
// operations per record kind, everything scoped by user_id. Failures
// surface verbatim; the core never retries.
type RecordStore interface {
	BehaviorEntries(ctx context.Context, userID string) ([]BehaviorRow, error)
	ListBehaviorEntries(ctx context.Context, userID string, cursor *Cursor, limit int) ([]BehaviorRow, *Cursor, error)
	InsertBehaviorEntry(ctx context.Context, row BehaviorRow) error

	ShoppingPatterns(ctx context.Context, userID string) ([]ShoppingRow, error)
	InsertShoppingPattern(ctx context.Context, row ShoppingRow) error

	NewsSources(ctx context.Context, userID string) ([]NewsSourceRow, error)
	InsertNewsSource(ctx context.Context, row NewsSourceRow) error
	DeleteNewsSource(ctx context.Context, userID, sourceID string) error

	Challenges(ctx context.Context, userID string) ([]ChallengeRow, error)
	GetChallenge(ctx context.Context, userID, challengeID string) (*ChallengeRow, error)
	UpdateChallengeProgress(ctx context.Context, userID, challengeID string, progress int, completed bool) (*ChallengeRow, error)

	BiasMetrics(ctx context.Context, userID string) ([]BiasMetricRow, error)
}
