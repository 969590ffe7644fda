package consumer

import (
	"context"
	"encoding/json"
	"fmt"

	"example.com/biastrack/internal/domain"
	"example.com/biastrack/internal/feed"
)

// FeedHandler maps inserted rows into unified activities and prepends
// them to the live feed. Events for users other than the feed's owner are
// ignored; this is a single-user tool but topics are shared.
type FeedHandler struct {
	userID  string
	reducer *feed.Reducer
}

// NewFeedHandler constructs a FeedHandler for one user's feed.
func NewFeedHandler(userID string, reducer *feed.Reducer) *FeedHandler {
	return &FeedHandler{userID: userID, reducer: reducer}
}

// Callbacks returns the change callbacks for one record kind's topic.
func (h *FeedHandler) Callbacks(kind domain.ActivityKind) Callbacks {
	return Callbacks{
		OnInsert: func(ctx context.Context, event ChangeEvent) error {
			return h.prepend(ctx, kind, event)
		},
	}
}

func (h *FeedHandler) prepend(ctx context.Context, kind domain.ActivityKind, event ChangeEvent) error {
	if event.UserID != h.userID {
		return nil
	}

	var activity domain.UnifiedActivity
	switch kind {
	case domain.ActivityKindBehavior:
		var row domain.BehaviorRow
		if err := json.Unmarshal(event.Row, &row); err != nil {
			return err
		}
		activity = domain.UnifyBehavior(domain.MapBehaviorEntry(row))
	case domain.ActivityKindShopping:
		var row domain.ShoppingRow
		if err := json.Unmarshal(event.Row, &row); err != nil {
			return err
		}
		activity = domain.UnifyShopping(domain.MapShoppingPattern(row))
	case domain.ActivityKindNews:
		var row domain.NewsSourceRow
		if err := json.Unmarshal(event.Row, &row); err != nil {
			return err
		}
		activity = domain.UnifyNews(domain.MapNewsSource(row))
	default:
		return fmt.Errorf("unhandled activity kind: %s", kind)
	}

	return h.reducer.Prepend(ctx, activity)
}
