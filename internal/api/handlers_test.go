package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"example.com/biastrack/internal/auth"
	"example.com/biastrack/internal/domain"
	"example.com/biastrack/internal/feed"
)

type stubStore struct {
	domain.RecordStore

	behaviors []domain.BehaviorRow
	shopping  []domain.ShoppingRow
	news      []domain.NewsSourceRow
	metrics   []domain.BiasMetricRow

	challenge *domain.ChallengeRow
	deleteErr error
	syncErr   error
}

func (s *stubStore) BehaviorEntries(ctx context.Context, userID string) ([]domain.BehaviorRow, error) {
	return s.behaviors, nil
}

func (s *stubStore) ListBehaviorEntries(ctx context.Context, userID string, cursor *domain.Cursor, limit int) ([]domain.BehaviorRow, *domain.Cursor, error) {
	if limit >= len(s.behaviors) {
		return s.behaviors, nil, nil
	}
	page := s.behaviors[:limit]
	last := page[len(page)-1]
	return page, &domain.Cursor{Timestamp: last.Timestamp, ID: last.ID}, nil
}

func (s *stubStore) ShoppingPatterns(ctx context.Context, userID string) ([]domain.ShoppingRow, error) {
	return s.shopping, nil
}

func (s *stubStore) NewsSources(ctx context.Context, userID string) ([]domain.NewsSourceRow, error) {
	return s.news, nil
}

func (s *stubStore) BiasMetrics(ctx context.Context, userID string) ([]domain.BiasMetricRow, error) {
	return s.metrics, nil
}

func (s *stubStore) Challenges(ctx context.Context, userID string) ([]domain.ChallengeRow, error) {
	if s.challenge == nil {
		return nil, nil
	}
	return []domain.ChallengeRow{*s.challenge}, nil
}

func (s *stubStore) GetChallenge(ctx context.Context, userID, challengeID string) (*domain.ChallengeRow, error) {
	if s.challenge == nil || s.challenge.ID != challengeID {
		return nil, nil
	}
	return s.challenge, nil
}

func (s *stubStore) UpdateChallengeProgress(ctx context.Context, userID, challengeID string, progress int, completed bool) (*domain.ChallengeRow, error) {
	row := *s.challenge
	row.Progress = progress
	row.Completed = completed
	return &row, nil
}

func (s *stubStore) InsertNewsSource(ctx context.Context, row domain.NewsSourceRow) error {
	s.news = append(s.news, row)
	return nil
}

func (s *stubStore) DeleteNewsSource(ctx context.Context, userID, sourceID string) error {
	return s.deleteErr
}

type stubGenerator struct {
	called bool
	userID string
	err    error
}

func (g *stubGenerator) Sync(ctx context.Context, userID string) error {
	g.called = true
	g.userID = userID
	return g.err
}

type testEnv struct {
	mux       *http.ServeMux
	store     *stubStore
	generator *stubGenerator
	cancel    context.CancelFunc
}

func newTestEnv(t *testing.T, store *stubStore) *testEnv {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	reducer := feed.NewReducer()
	go reducer.Run(ctx)

	generator := &stubGenerator{err: store.syncErr}
	handler := NewHandler(domain.NewService(store), feed.NewAggregator(store), reducer, generator, "u-1")
	mux := http.NewServeMux()
	handler.RegisterRoutes(mux)

	return &testEnv{mux: mux, store: store, generator: generator, cancel: cancel}
}

func readClaims() *auth.Claims {
	return &auth.Claims{
		Subject: "u-1",
		Scopes:  map[string]struct{}{auth.ScopeRecordsRead: {}},
	}
}

func writeClaims() *auth.Claims {
	return &auth.Claims{
		Subject: "u-1",
		Scopes: map[string]struct{}{
			auth.ScopeRecordsRead:  {},
			auth.ScopeRecordsWrite: {},
		},
	}
}

func (e *testEnv) do(method, target string, claims *auth.Claims, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if claims != nil {
		req = req.WithContext(auth.WithClaims(req.Context(), claims))
	}
	rec := httptest.NewRecorder()
	e.mux.ServeHTTP(rec, req)
	return rec
}

func TestGetFeedMergesAndSorts(t *testing.T) {
	base := time.Date(2025, time.November, 3, 12, 0, 0, 0, time.UTC)
	store := &stubStore{
		behaviors: []domain.BehaviorRow{
			{ID: "b-1", UserID: "u-1", Timestamp: base.Add(-time.Hour), Activity: "Reading News"},
		},
		shopping: []domain.ShoppingRow{
			{ID: "s-1", UserID: "u-1", PurchaseDate: base.Add(time.Hour), Category: "Books", BiasType: "Impulse"},
		},
		news: []domain.NewsSourceRow{
			{ID: "n-1", UserID: "u-1", Name: "The Fact Checker", Category: "center", CreatedAt: base},
		},
	}
	env := newTestEnv(t, store)

	rec := env.do(http.MethodGet, "/v1/feed?user_id=u-1", readClaims(), "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp FeedResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Items, 3)
	require.Equal(t, "s-1", resp.Items[0].ID)
	require.Equal(t, "n-1", resp.Items[1].ID)
	require.Equal(t, "b-1", resp.Items[2].ID)

	require.Equal(t, "shopping", resp.Items[0].ActivityType)
	require.NotNil(t, resp.Items[0].Shopping)
	require.Nil(t, resp.Items[0].Behavior)
	require.Nil(t, resp.Items[0].News)
}

func TestGetFeedSeedsLiveFeed(t *testing.T) {
	store := &stubStore{
		behaviors: []domain.BehaviorRow{
			{ID: "b-1", UserID: "u-1", Timestamp: time.Now(), Activity: "Social Media"},
		},
	}
	env := newTestEnv(t, store)

	rec := env.do(http.MethodGet, "/v1/feed?user_id=u-1", readClaims(), "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(http.MethodGet, "/v1/feed/live?user_id=u-1", readClaims(), "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp FeedResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Items, 1)
	require.Equal(t, "b-1", resp.Items[0].ID)
}

func TestLiveFeedScopedToOwner(t *testing.T) {
	store := &stubStore{
		behaviors: []domain.BehaviorRow{
			{ID: "b-owner", UserID: "u-1", Timestamp: time.Now(), Activity: "Reading News"},
		},
	}
	env := newTestEnv(t, store)

	// Another user's full read must not become the owner's live baseline.
	rec := env.do(http.MethodGet, "/v1/feed?user_id=u-2", readClaims(), "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(http.MethodGet, "/v1/feed/live?user_id=u-1", readClaims(), "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp FeedResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Empty(t, resp.Items)

	// And there is no live feed to serve for the non-owner.
	rec = env.do(http.MethodGet, "/v1/feed/live?user_id=u-2", readClaims(), "")
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetFeedMissingUserID(t *testing.T) {
	env := newTestEnv(t, &stubStore{})
	rec := env.do(http.MethodGet, "/v1/feed", readClaims(), "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetFeedRequiresClaims(t *testing.T) {
	env := newTestEnv(t, &stubStore{})
	rec := env.do(http.MethodGet, "/v1/feed?user_id=u-1", nil, "")
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestGetFeedRejectsMissingScope(t *testing.T) {
	env := newTestEnv(t, &stubStore{})
	claims := &auth.Claims{Subject: "u-1", Scopes: map[string]struct{}{}}
	rec := env.do(http.MethodGet, "/v1/feed?user_id=u-1", claims, "")
	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestGetAnalytics(t *testing.T) {
	ts := time.Date(2025, time.November, 3, 14, 30, 0, 0, time.UTC)
	store := &stubStore{
		behaviors: []domain.BehaviorRow{
			{ID: "b-1", UserID: "u-1", Timestamp: ts, BiasesDetected: []string{"Anchoring", "Social Proof"}},
			{ID: "b-2", UserID: "u-1", Timestamp: ts.Add(time.Minute), BiasesDetected: []string{"Anchoring"}},
		},
	}
	env := newTestEnv(t, store)

	rec := env.do(http.MethodGet, "/v1/analytics?user_id=u-1", readClaims(), "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp AnalyticsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "Anchoring", resp.DominantBias)
	require.Equal(t, 2, resp.EntryCount)
	require.Equal(t, []string{"Anchoring", "Social Proof"}, resp.Correlation.Labels)
	require.NotEmpty(t, resp.PeakActivityTime)
	require.NotEqual(t, "N/A", resp.PeakActivityTime)
}

func TestGetAnalyticsEmpty(t *testing.T) {
	env := newTestEnv(t, &stubStore{})

	rec := env.do(http.MethodGet, "/v1/analytics?user_id=u-1", readClaims(), "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp AnalyticsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "N/A", resp.DominantBias)
	require.Equal(t, "N/A", resp.PeakActivityTime)
	require.Zero(t, resp.EntryCount)
}

func TestGetDashboard(t *testing.T) {
	desc := "Identify biases in your reading"
	store := &stubStore{
		metrics: []domain.BiasMetricRow{
			{ID: "m-1", UserID: "u-1", Type: "Confirmation Bias", Value: 62.5},
		},
		challenge: &domain.ChallengeRow{
			ID: "c-1", UserID: "u-1", Title: "Spot 5 biases", Description: &desc, Type: "weekly", Progress: 2, Target: 5,
		},
	}
	env := newTestEnv(t, store)

	rec := env.do(http.MethodGet, "/v1/dashboard?user_id=u-1", readClaims(), "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp DashboardResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.BiasMetrics, 1)
	require.Len(t, resp.Challenges, 1)
	require.Equal(t, "0 XP", resp.Challenges[0].Reward)
	require.Empty(t, resp.NewsSources)
	require.Empty(t, resp.ShoppingPatterns)
}

func TestListBehaviorsPaginates(t *testing.T) {
	base := time.Date(2025, time.November, 3, 12, 0, 0, 0, time.UTC)
	store := &stubStore{
		behaviors: []domain.BehaviorRow{
			{ID: "b-3", UserID: "u-1", Timestamp: base.Add(2 * time.Hour)},
			{ID: "b-2", UserID: "u-1", Timestamp: base.Add(time.Hour)},
			{ID: "b-1", UserID: "u-1", Timestamp: base},
		},
	}
	env := newTestEnv(t, store)

	rec := env.do(http.MethodGet, "/v1/behaviors?user_id=u-1&limit=2", readClaims(), "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp ListBehaviorsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Items, 2)
	require.NotEmpty(t, resp.NextCursor)

	rec = env.do(http.MethodGet, "/v1/behaviors?user_id=u-1&cursor=not-base64!", readClaims(), "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPatchChallengeJustCompleted(t *testing.T) {
	store := &stubStore{
		challenge: &domain.ChallengeRow{ID: "c-1", UserID: "u-1", Title: "Spot 5 biases", Type: "weekly", Progress: 4, Target: 5},
	}
	env := newTestEnv(t, store)

	rec := env.do(http.MethodPatch, "/v1/challenges/c-1?user_id=u-1", writeClaims(), `{"progress": 5}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp UpdateChallengeResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.True(t, resp.Challenge.Completed)
	require.True(t, resp.JustCompleted)
	require.Equal(t, 5, resp.Challenge.Progress)
}

func TestPatchChallengeNotFound(t *testing.T) {
	env := newTestEnv(t, &stubStore{})
	rec := env.do(http.MethodPatch, "/v1/challenges/missing?user_id=u-1", writeClaims(), `{"progress": 5}`)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPatchChallengeRequiresWriteScope(t *testing.T) {
	store := &stubStore{
		challenge: &domain.ChallengeRow{ID: "c-1", UserID: "u-1", Target: 5},
	}
	env := newTestEnv(t, store)

	rec := env.do(http.MethodPatch, "/v1/challenges/c-1?user_id=u-1", readClaims(), `{"progress": 5}`)
	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestAddNewsSource(t *testing.T) {
	store := &stubStore{}
	env := newTestEnv(t, store)

	body := `{"name": "The Fact Checker", "bias_score": -0.5, "category": "center", "reliability": 90}`
	rec := env.do(http.MethodPost, "/v1/news-sources?user_id=u-1", writeClaims(), body)
	require.Equal(t, http.StatusCreated, rec.Code)

	var view NewsSourceView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	require.Equal(t, 1, view.ArticlesRead)
	require.NotEmpty(t, view.ID)
	require.Len(t, store.news, 1)
}

func TestAddNewsSourceValidation(t *testing.T) {
	env := newTestEnv(t, &stubStore{})

	rec := env.do(http.MethodPost, "/v1/news-sources?user_id=u-1", writeClaims(), `{"name": "", "category": "center"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(http.MethodPost, "/v1/news-sources?user_id=u-1", writeClaims(), `{"name": "X", "category": "centrist"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDeleteNewsSourceNotFound(t *testing.T) {
	store := &stubStore{deleteErr: domain.ErrNewsSourceNotFound}
	env := newTestEnv(t, store)

	rec := env.do(http.MethodDelete, "/v1/news-sources/n-404?user_id=u-1", writeClaims(), "")
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDeleteNewsSource(t *testing.T) {
	env := newTestEnv(t, &stubStore{})
	rec := env.do(http.MethodDelete, "/v1/news-sources/n-1?user_id=u-1", writeClaims(), "")
	require.Equal(t, http.StatusNoContent, rec.Code)
}

func TestSyncSignalsAccepted(t *testing.T) {
	env := newTestEnv(t, &stubStore{})

	rec := env.do(http.MethodPost, "/v1/signals/sync?user_id=u-1", writeClaims(), "")
	require.Equal(t, http.StatusAccepted, rec.Code)
	require.True(t, env.generator.called)
	require.Equal(t, "u-1", env.generator.userID)
}

func TestSyncSignalsMethodNotAllowed(t *testing.T) {
	env := newTestEnv(t, &stubStore{})
	rec := env.do(http.MethodGet, "/v1/signals/sync?user_id=u-1", writeClaims(), "")
	require.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestHealthzUnauthenticated(t *testing.T) {
	env := newTestEnv(t, &stubStore{})
	rec := env.do(http.MethodGet, "/healthz", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
}
