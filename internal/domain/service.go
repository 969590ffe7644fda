package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Service orchestrates record workflows on top of the external store.
type Service struct {
	store RecordStore
}

// NewService constructs a Service.
func NewService(store RecordStore) *Service {
	return &Service{store: store}
}

// Dashboard fetches the four dashboard collections concurrently. Any
// failing fetch fails the whole call with that fetch's error.
func (s *Service) Dashboard(ctx context.Context, userID string) (*Dashboard, error) {
	if userID == "" {
		return nil, ErrUnauthenticated
	}

	var dash Dashboard
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		rows, err := s.store.BiasMetrics(gctx, userID)
		if err != nil {
			return err
		}
		dash.BiasMetrics = make([]BiasMetric, 0, len(rows))
		for _, row := range rows {
			dash.BiasMetrics = append(dash.BiasMetrics, MapBiasMetric(row))
		}
		return nil
	})
	g.Go(func() error {
		rows, err := s.store.NewsSources(gctx, userID)
		if err != nil {
			return err
		}
		dash.NewsSources = make([]NewsSource, 0, len(rows))
		for _, row := range rows {
			dash.NewsSources = append(dash.NewsSources, MapNewsSource(row))
		}
		return nil
	})
	g.Go(func() error {
		rows, err := s.store.Challenges(gctx, userID)
		if err != nil {
			return err
		}
		dash.Challenges = make([]Challenge, 0, len(rows))
		for _, row := range rows {
			dash.Challenges = append(dash.Challenges, MapChallenge(row))
		}
		return nil
	})
	g.Go(func() error {
		rows, err := s.store.ShoppingPatterns(gctx, userID)
		if err != nil {
			return err
		}
		dash.ShoppingPatterns = make([]ShoppingPattern, 0, len(rows))
		for _, row := range rows {
			dash.ShoppingPatterns = append(dash.ShoppingPatterns, MapShoppingPattern(row))
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &dash, nil
}

// BehaviorEntries returns all behavior entries for analytics consumption.
func (s *Service) BehaviorEntries(ctx context.Context, userID string) ([]BehaviorEntry, error) {
	if userID == "" {
		return nil, ErrUnauthenticated
	}
	rows, err := s.store.BehaviorEntries(ctx, userID)
	if err != nil {
		return nil, err
	}
	entries := make([]BehaviorEntry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, MapBehaviorEntry(row))
	}
	return entries, nil
}

// ListBehaviorEntries returns a timestamp-descending page of behavior entries.
func (s *Service) ListBehaviorEntries(ctx context.Context, userID string, cursor *Cursor, limit int) ([]BehaviorEntry, *Cursor, error) {
	if userID == "" {
		return nil, nil, ErrUnauthenticated
	}
	rows, next, err := s.store.ListBehaviorEntries(ctx, userID, cursor, limit)
	if err != nil {
		return nil, nil, err
	}
	entries := make([]BehaviorEntry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, MapBehaviorEntry(row))
	}
	return entries, next, nil
}

// NewsSources returns all registered sources, newest first per store order.
func (s *Service) NewsSources(ctx context.Context, userID string) ([]NewsSource, error) {
	if userID == "" {
		return nil, ErrUnauthenticated
	}
	rows, err := s.store.NewsSources(ctx, userID)
	if err != nil {
		return nil, err
	}
	sources := make([]NewsSource, 0, len(rows))
	for _, row := range rows {
		sources = append(sources, MapNewsSource(row))
	}
	return sources, nil
}

// ShoppingPatterns returns all recorded purchases.
func (s *Service) ShoppingPatterns(ctx context.Context, userID string) ([]ShoppingPattern, error) {
	if userID == "" {
		return nil, ErrUnauthenticated
	}
	rows, err := s.store.ShoppingPatterns(ctx, userID)
	if err != nil {
		return nil, err
	}
	patterns := make([]ShoppingPattern, 0, len(rows))
	for _, row := range rows {
		patterns = append(patterns, MapShoppingPattern(row))
	}
	return patterns, nil
}

// Challenges returns all challenges for the user.
func (s *Service) Challenges(ctx context.Context, userID string) ([]Challenge, error) {
	if userID == "" {
		return nil, ErrUnauthenticated
	}
	rows, err := s.store.Challenges(ctx, userID)
	if err != nil {
		return nil, err
	}
	challenges := make([]Challenge, 0, len(rows))
	for _, row := range rows {
		challenges = append(challenges, MapChallenge(row))
	}
	return challenges, nil
}

// AddNewsSourceInput captures a manual source registration.
type AddNewsSourceInput struct {
	Name        string
	BiasScore   float64
	Category    NewsCategory
	Reliability float64
}

// AddNewsSource registers a source with a single article read.
func (s *Service) AddNewsSource(ctx context.Context, userID string, input AddNewsSourceInput) (*NewsSource, error) {
	if userID == "" {
		return nil, ErrUnauthenticated
	}
	row := NewsSourceRow{
		ID:           uuid.NewString(),
		UserID:       userID,
		Name:         input.Name,
		BiasScore:    input.BiasScore,
		ArticlesRead: 1,
		Category:     string(input.Category),
		Reliability:  input.Reliability,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.store.InsertNewsSource(ctx, row); err != nil {
		return nil, err
	}
	source := MapNewsSource(row)
	return &source, nil
}

// DeleteNewsSource removes a registered source.
func (s *Service) DeleteNewsSource(ctx context.Context, userID, sourceID string) error {
	if userID == "" {
		return ErrUnauthenticated
	}
	return s.store.DeleteNewsSource(ctx, userID, sourceID)
}

// ChallengeUpdate is the result of a progress change. JustCompleted is
// computed against the pre-update snapshot so callers can decide whether
// a completion notification fires.
type ChallengeUpdate struct {
	Challenge     Challenge
	JustCompleted bool
}

// UpdateChallengeProgress applies a caller-supplied progress value and
// recomputes the completion flag. The value is not clamped; anything the
// caller sends is persisted as-is.
func (s *Service) UpdateChallengeProgress(ctx context.Context, userID, challengeID string, newProgress int) (*ChallengeUpdate, error) {
	if userID == "" {
		return nil, ErrUnauthenticated
	}

	prior, err := s.store.GetChallenge(ctx, userID, challengeID)
	if err != nil {
		return nil, err
	}
	if prior == nil {
		return nil, ErrChallengeNotFound
	}

	completed := newProgress >= prior.Target
	updated, err := s.store.UpdateChallengeProgress(ctx, userID, challengeID, newProgress, completed)
	if err != nil {
		return nil, err
	}
	if updated == nil {
		return nil, ErrChallengeNotFound
	}

	return &ChallengeUpdate{
		Challenge:     MapChallenge(*updated),
		JustCompleted: completed && !prior.Completed,
	}, nil
}
