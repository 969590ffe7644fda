// Package feed builds the unified, time-ordered activity view across
// behavior entries, shopping patterns, and news sources.
package feed

import (
	"context"
	"sort"

	"golang.org/x/sync/errgroup"

	"example.com/biastrack/internal/domain"
	"example.com/biastrack/internal/observability"
)

// Aggregator merges the three activity-bearing record kinds for one user.
type Aggregator struct {
	store domain.RecordStore
}

// NewAggregator constructs an Aggregator.
func NewAggregator(store domain.RecordStore) *Aggregator {
	return &Aggregator{store: store}
}

// CombinedLog fetches all three kinds concurrently, maps and kind-tags
// each row, and returns one list sorted by timestamp descending. Equal
// timestamps order by descending ID so repeated calls agree. Any fetch
// error fails the whole call with that error; there are no partial
// results and no retries.
func (a *Aggregator) CombinedLog(ctx context.Context, userID string) ([]domain.UnifiedActivity, error) {
	if userID == "" {
		return nil, domain.ErrUnauthenticated
	}

	var (
		behaviors []domain.BehaviorRow
		shopping  []domain.ShoppingRow
		news      []domain.NewsSourceRow
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		rows, err := a.store.BehaviorEntries(gctx, userID)
		behaviors = rows
		return err
	})
	g.Go(func() error {
		rows, err := a.store.ShoppingPatterns(gctx, userID)
		shopping = rows
		return err
	})
	g.Go(func() error {
		rows, err := a.store.NewsSources(gctx, userID)
		news = rows
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	combined := make([]domain.UnifiedActivity, 0, len(behaviors)+len(shopping)+len(news))
	for _, row := range behaviors {
		combined = append(combined, domain.UnifyBehavior(domain.MapBehaviorEntry(row)))
	}
	for _, row := range shopping {
		combined = append(combined, domain.UnifyShopping(domain.MapShoppingPattern(row)))
	}
	for _, row := range news {
		combined = append(combined, domain.UnifyNews(domain.MapNewsSource(row)))
	}

	sort.SliceStable(combined, func(i, j int) bool {
		if combined[i].Timestamp.Equal(combined[j].Timestamp) {
			return combined[i].ID > combined[j].ID
		}
		return combined[i].Timestamp.After(combined[j].Timestamp)
	})

	observability.RecordFeedAggregated(len(combined))
	return combined, nil
}
