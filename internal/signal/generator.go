// Package signal simulates background collection of new activity records.
package signal

import (
	"context"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"

	"example.com/biastrack/internal/domain"
	"example.com/biastrack/internal/observability"
)

var (
	behaviorActivities = []string{"Reading News", "Social Media", "Decision Making"}
	behaviorBiases     = []string{"Confirmation Bias", "Anchoring", "Social Proof"}
	shoppingCategories = []string{"Books", "Electronics", "Garden", "Clothing", "Home", "Health", "Toys", "Sports"}
	shoppingBiases     = []string{"Impulse", "Scarcity", "Social Proof"}
	newsSourceNames    = []string{"The Daily Chronicle", "Global News Network", "The Fact Checker", "The Opinion Post"}
	newsCategories     = []string{"left", "center", "right"}
)

// Generator synthesizes plausible activity records and persists them
// through the record store. Safe for concurrent use; mu guards rng,
// which is not.
type Generator struct {
	store domain.RecordStore
	now   func() time.Time

	mu  sync.Mutex
	rng *rand.Rand
}

// Option configures optional behaviour for the Generator.
type Option func(*Generator)

// WithRand overrides the random source, mainly for deterministic tests.
func WithRand(rng *rand.Rand) Option {
	return func(g *Generator) {
		g.rng = rng
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(g *Generator) {
		g.now = now
	}
}

// NewGenerator constructs a Generator.
func NewGenerator(store domain.RecordStore, opts ...Option) *Generator {
	g := &Generator{
		store: store,
		rng:   rand.New(rand.NewSource(time.Now().UnixNano())),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Sync inserts 1 to 3 new records, each independently and uniformly one
// of the three activity kinds, under the given user. Inserts run in
// sequence; if one fails the run stops there and the error surfaces,
// leaving earlier inserts persisted.
func (g *Generator) Sync(ctx context.Context, userID string) error {
	if userID == "" {
		return domain.ErrUnauthenticated
	}

	for _, planned := range g.plan(userID) {
		if err := planned.insert(ctx); err != nil {
			return err
		}
		observability.RecordSignalGenerated(string(planned.kind))
	}
	return nil
}

type plannedInsert struct {
	kind   domain.ActivityKind
	insert func(context.Context) error
}

// plan draws all randomness for one sync under the lock, so concurrent
// syncs never interleave on the shared RNG. Inserts run after release.
func (g *Generator) plan(userID string) []plannedInsert {
	g.mu.Lock()
	defer g.mu.Unlock()

	count := 1 + g.rng.Intn(3)
	out := make([]plannedInsert, 0, count)
	for i := 0; i < count; i++ {
		switch g.rng.Intn(3) {
		case 0:
			row := g.behaviorEntry(userID)
			out = append(out, plannedInsert{kind: domain.ActivityKindBehavior, insert: func(ctx context.Context) error {
				return g.store.InsertBehaviorEntry(ctx, row)
			}})
		case 1:
			row := g.shoppingPattern(userID)
			out = append(out, plannedInsert{kind: domain.ActivityKindShopping, insert: func(ctx context.Context) error {
				return g.store.InsertShoppingPattern(ctx, row)
			}})
		default:
			row := g.newsSource(userID)
			out = append(out, plannedInsert{kind: domain.ActivityKindNews, insert: func(ctx context.Context) error {
				return g.store.InsertNewsSource(ctx, row)
			}})
		}
	}
	return out
}

func (g *Generator) behaviorEntry(userID string) domain.BehaviorRow {
	tagCount := 1 + g.rng.Intn(2)
	tags := make([]string, 0, tagCount)
	for _, idx := range g.rng.Perm(len(behaviorBiases))[:tagCount] {
		tags = append(tags, behaviorBiases[idx])
	}

	now := g.now().UTC()
	return domain.BehaviorRow{
		ID:             uuid.NewString(),
		UserID:         userID,
		Timestamp:      g.recentInstant(),
		Activity:       behaviorActivities[g.rng.Intn(len(behaviorActivities))],
		BiasesDetected: tags,
		Confidence:     roundTo(0.5+g.rng.Float64()*0.5, 1),
		CreatedAt:      now,
	}
}

func (g *Generator) shoppingPattern(userID string) domain.ShoppingRow {
	now := g.now().UTC()
	return domain.ShoppingRow{
		ID:           uuid.NewString(),
		UserID:       userID,
		Category:     shoppingCategories[g.rng.Intn(len(shoppingCategories))],
		Amount:       roundTo(5+g.rng.Float64()*495, 2),
		PurchaseDate: g.recentInstant(),
		BiasType:     shoppingBiases[g.rng.Intn(len(shoppingBiases))],
		Impulse:      g.rng.Intn(2) == 0,
		CreatedAt:    now,
	}
}

func (g *Generator) newsSource(userID string) domain.NewsSourceRow {
	now := g.now().UTC()
	return domain.NewsSourceRow{
		ID:           uuid.NewString(),
		UserID:       userID,
		Name:         newsSourceNames[g.rng.Intn(len(newsSourceNames))],
		BiasScore:    roundTo(-5+g.rng.Float64()*10, 1),
		ArticlesRead: 1,
		Category:     newsCategories[g.rng.Intn(len(newsCategories))],
		Reliability:  roundTo(60+g.rng.Float64()*35, 1),
		CreatedAt:    now,
	}
}

// recentInstant picks a moment within the last 24 hours.
func (g *Generator) recentInstant() time.Time {
	offset := time.Duration(g.rng.Int63n(int64(24 * time.Hour)))
	return g.now().UTC().Add(-offset)
}

func roundTo(value float64, decimals int) float64 {
	factor := math.Pow(10, float64(decimals))
	return math.Round(value*factor) / factor
}
