// Package api exposes HTTP handlers for the biastrack service.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"example.com/biastrack/internal/analytics"
	"example.com/biastrack/internal/auth"
	"example.com/biastrack/internal/domain"
	"example.com/biastrack/internal/feed"
	"example.com/biastrack/internal/observability"
	"example.com/biastrack/internal/persistence"
)

// SignalGenerator is the slice of the generator the API needs.
type SignalGenerator interface {
	Sync(ctx context.Context, userID string) error
}

// Handler coordinates HTTP requests with the domain service, the feed,
// and the analytics engine. The process owns a single live-feed reducer
// for feedUserID; requests for other users never touch it.
type Handler struct {
	service    *domain.Service
	aggregator *feed.Aggregator
	reducer    *feed.Reducer
	generator  SignalGenerator
	feedUserID string
}

// NewHandler builds a Handler. feedUserID names the user whose live feed
// the reducer holds; empty disables the live feed.
func NewHandler(service *domain.Service, aggregator *feed.Aggregator, reducer *feed.Reducer, generator SignalGenerator, feedUserID string) *Handler {
	return &Handler{service: service, aggregator: aggregator, reducer: reducer, generator: generator, feedUserID: feedUserID}
}

// RegisterRoutes wires endpoints to the mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/v1/feed", h.getFeed)
	mux.HandleFunc("/v1/feed/live", h.getLiveFeed)
	mux.HandleFunc("/v1/analytics", h.getAnalytics)
	mux.HandleFunc("/v1/dashboard", h.getDashboard)
	mux.HandleFunc("/v1/behaviors", h.listBehaviors)
	mux.HandleFunc("/v1/news-sources", h.newsSources)
	mux.HandleFunc("/v1/news-sources/", h.newsSourceByID)
	mux.HandleFunc("/v1/shopping", h.listShopping)
	mux.HandleFunc("/v1/challenges", h.listChallenges)
	mux.HandleFunc("/v1/challenges/", h.challengeByID)
	mux.HandleFunc("/v1/signals/sync", h.syncSignals)
	mux.HandleFunc("/healthz", healthz)
}

// healthz reports a simple OK status for container health checks.
func healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (h *Handler) getFeed(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.readUser(w, r, auth.ScopeRecordsRead)
	if !ok {
		return
	}

	activities, err := h.aggregator.CombinedLog(r.Context(), userID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	// Seed the live feed so subsequent change events prepend onto a
	// current baseline. Only the owning user's reads reseed it; anyone
	// else would overwrite the baseline the owner's prepends land on.
	if userID == h.feedUserID {
		if err := h.reducer.Replace(r.Context(), activities); err != nil {
			writeError(w, http.StatusInternalServerError, "server_error", err.Error())
			return
		}
	}

	writeJSON(w, http.StatusOK, FeedResponse{Items: toActivityViews(activities)})
}

func (h *Handler) getLiveFeed(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.readUser(w, r, auth.ScopeRecordsRead)
	if !ok {
		return
	}
	if h.feedUserID == "" || userID != h.feedUserID {
		writeError(w, http.StatusNotFound, "not_found", "no live feed for this user")
		return
	}

	activities, err := h.reducer.Snapshot(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, FeedResponse{Items: toActivityViews(activities)})
}

func (h *Handler) getAnalytics(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.readUser(w, r, auth.ScopeRecordsRead)
	if !ok {
		return
	}

	entries, err := h.service.BehaviorEntries(r.Context(), userID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	resp := AnalyticsResponse{
		DominantBias:     analytics.DominantBias(entries),
		PeakActivityTime: analytics.PeakActivityTime(entries),
		Correlation:      analytics.CorrelationMatrix(entries),
		EntryCount:       len(entries),
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) getDashboard(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.readUser(w, r, auth.ScopeRecordsRead)
	if !ok {
		return
	}

	dash, err := h.service.Dashboard(r.Context(), userID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	resp := DashboardResponse{
		BiasMetrics:      make([]BiasMetricView, 0, len(dash.BiasMetrics)),
		NewsSources:      make([]NewsSourceView, 0, len(dash.NewsSources)),
		Challenges:       make([]ChallengeView, 0, len(dash.Challenges)),
		ShoppingPatterns: make([]ShoppingPatternView, 0, len(dash.ShoppingPatterns)),
	}
	for _, m := range dash.BiasMetrics {
		resp.BiasMetrics = append(resp.BiasMetrics, toBiasMetricView(m))
	}
	for _, s := range dash.NewsSources {
		resp.NewsSources = append(resp.NewsSources, toNewsSourceView(s))
	}
	for _, c := range dash.Challenges {
		resp.Challenges = append(resp.Challenges, toChallengeView(c))
	}
	for _, p := range dash.ShoppingPatterns {
		resp.ShoppingPatterns = append(resp.ShoppingPatterns, toShoppingPatternView(p))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) listBehaviors(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.readUser(w, r, auth.ScopeRecordsRead)
	if !ok {
		return
	}

	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	cursor, err := persistence.DecodeCursor(r.URL.Query().Get("cursor"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", "invalid cursor")
		return
	}

	entries, next, err := h.service.ListBehaviorEntries(r.Context(), userID, cursor, limit)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	items := make([]BehaviorEntryView, 0, len(entries))
	for _, entry := range entries {
		items = append(items, toBehaviorEntryView(entry))
	}
	writeJSON(w, http.StatusOK, ListBehaviorsResponse{Items: items, NextCursor: persistence.EncodeCursor(next)})
}

func (h *Handler) newsSources(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.listNewsSources(w, r)
	case http.MethodPost:
		h.addNewsSource(w, r)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
	}
}

func (h *Handler) listNewsSources(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.readUser(w, r, auth.ScopeRecordsRead)
	if !ok {
		return
	}

	sources, err := h.service.NewsSources(r.Context(), userID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	items := make([]NewsSourceView, 0, len(sources))
	for _, s := range sources {
		items = append(items, toNewsSourceView(s))
	}
	writeJSON(w, http.StatusOK, ListNewsSourcesResponse{Items: items})
}

func (h *Handler) addNewsSource(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.writeUser(w, r)
	if !ok {
		return
	}

	var req AddNewsSourceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "unable to parse body")
		return
	}
	if err := req.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
		return
	}

	source, err := h.service.AddNewsSource(r.Context(), userID, domain.AddNewsSourceInput{
		Name:        req.Name,
		BiasScore:   req.BiasScore,
		Category:    domain.NewsCategory(req.Category),
		Reliability: req.Reliability,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toNewsSourceView(*source))
}

func (h *Handler) newsSourceByID(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/v1/news-sources/")
	if id == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "missing news source id")
		return
	}
	if r.Method != http.MethodDelete {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}

	userID, ok := h.writeUser(w, r)
	if !ok {
		return
	}

	if err := h.service.DeleteNewsSource(r.Context(), userID, id); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) listShopping(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.readUser(w, r, auth.ScopeRecordsRead)
	if !ok {
		return
	}

	patterns, err := h.service.ShoppingPatterns(r.Context(), userID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	items := make([]ShoppingPatternView, 0, len(patterns))
	for _, p := range patterns {
		items = append(items, toShoppingPatternView(p))
	}
	writeJSON(w, http.StatusOK, ListShoppingResponse{Items: items})
}

func (h *Handler) listChallenges(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.readUser(w, r, auth.ScopeRecordsRead)
	if !ok {
		return
	}

	challenges, err := h.service.Challenges(r.Context(), userID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	items := make([]ChallengeView, 0, len(challenges))
	for _, c := range challenges {
		items = append(items, toChallengeView(c))
	}
	writeJSON(w, http.StatusOK, ListChallengesResponse{Items: items})
}

func (h *Handler) challengeByID(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/v1/challenges/")
	if id == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "missing challenge id")
		return
	}
	if r.Method != http.MethodPatch {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}

	userID, ok := h.writeUser(w, r)
	if !ok {
		return
	}

	var req UpdateChallengeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "unable to parse body")
		return
	}

	update, err := h.service.UpdateChallengeProgress(r.Context(), userID, id, req.Progress)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if update.JustCompleted {
		observability.RecordChallengeCompleted()
	}

	writeJSON(w, http.StatusOK, UpdateChallengeResponse{
		Challenge:     toChallengeView(update.Challenge),
		JustCompleted: update.JustCompleted,
	})
}

func (h *Handler) syncSignals(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}

	userID, ok := h.writeUser(w, r)
	if !ok {
		return
	}

	if err := h.generator.Sync(r.Context(), userID); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

// readUser authorizes a read request and extracts the target user ID.
func (h *Handler) readUser(w http.ResponseWriter, r *http.Request, scope string) (string, bool) {
	claims, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
		return "", false
	}
	if !claims.HasScope(scope) && !claims.HasScope(auth.ScopeRecordsWrite) {
		writeError(w, http.StatusForbidden, "forbidden", "scope "+scope+" required")
		return "", false
	}

	userID := strings.TrimSpace(r.URL.Query().Get("user_id"))
	if userID == "" {
		writeError(w, http.StatusBadRequest, "validation_failed", "missing user_id parameter")
		return "", false
	}
	return userID, true
}

// writeUser authorizes a mutating request and extracts the target user ID.
func (h *Handler) writeUser(w http.ResponseWriter, r *http.Request) (string, bool) {
	claims, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
		return "", false
	}
	if !claims.HasScope(auth.ScopeRecordsWrite) {
		writeError(w, http.StatusForbidden, "forbidden", "scope records:write required")
		return "", false
	}

	userID := strings.TrimSpace(r.URL.Query().Get("user_id"))
	if userID == "" {
		writeError(w, http.StatusBadRequest, "validation_failed", "missing user_id parameter")
		return "", false
	}
	return userID, true
}

func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrUnauthenticated):
		writeError(w, http.StatusUnauthorized, "unauthenticated", err.Error())
	case errors.Is(err, domain.ErrChallengeNotFound), errors.Is(err, domain.ErrNewsSourceNotFound):
		writeError(w, http.StatusNotFound, "not_found", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
	}
}

// AddNewsSourceRequest is the payload for POST /v1/news-sources.
type AddNewsSourceRequest struct {
	Name        string  `json:"name"`
	BiasScore   float64 `json:"bias_score"`
	Category    string  `json:"category"`
	Reliability float64 `json:"reliability"`
}

// Validate ensures request correctness.
func (r AddNewsSourceRequest) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return errors.New("name is required")
	}
	switch domain.NewsCategory(r.Category) {
	case domain.NewsCategoryLeft, domain.NewsCategoryCenter, domain.NewsCategoryRight:
	default:
		return errors.New("category must be left, center, or right")
	}
	return nil
}

// UpdateChallengeRequest is the payload for PATCH /v1/challenges/{id}.
type UpdateChallengeRequest struct {
	Progress int `json:"progress"`
}

// UpdateChallengeResponse returns the updated challenge and whether this
// update crossed the completion threshold.
type UpdateChallengeResponse struct {
	Challenge     ChallengeView `json:"challenge"`
	JustCompleted bool          `json:"just_completed"`
}

// ActivityView is one unified feed item. Exactly one of the kind-specific
// fields is set, matching ActivityType.
type ActivityView struct {
	ActivityType string               `json:"activity_type"`
	ID           string               `json:"id"`
	Timestamp    time.Time            `json:"timestamp"`
	Behavior     *BehaviorEntryView   `json:"behavior,omitempty"`
	Shopping     *ShoppingPatternView `json:"shopping,omitempty"`
	News         *NewsSourceView      `json:"news,omitempty"`
}

// FeedResponse packages the unified activity log.
type FeedResponse struct {
	Items []ActivityView `json:"items"`
}

// AnalyticsResponse carries the three derived bias statistics.
type AnalyticsResponse struct {
	DominantBias     string                `json:"dominant_bias"`
	PeakActivityTime string                `json:"peak_activity_time"`
	Correlation      analytics.Correlation `json:"correlation"`
	EntryCount       int                   `json:"entry_count"`
}

// DashboardResponse bundles the four dashboard collections.
type DashboardResponse struct {
	BiasMetrics      []BiasMetricView      `json:"bias_metrics"`
	NewsSources      []NewsSourceView      `json:"news_sources"`
	Challenges       []ChallengeView       `json:"challenges"`
	ShoppingPatterns []ShoppingPatternView `json:"shopping_patterns"`
}

// BehaviorEntryView exposes a behavior entry.
type BehaviorEntryView struct {
	ID           string    `json:"id"`
	Timestamp    time.Time `json:"timestamp"`
	Activity     string    `json:"activity"`
	BiasDetected []string  `json:"bias_detected"`
	Confidence   float64   `json:"confidence"`
	Notes        string    `json:"notes,omitempty"`
}

// ShoppingPatternView exposes a shopping pattern.
type ShoppingPatternView struct {
	ID       string    `json:"id"`
	Category string    `json:"category"`
	Amount   float64   `json:"amount"`
	Date     time.Time `json:"date"`
	BiasType string    `json:"bias_type"`
	Impulse  bool      `json:"impulse"`
}

// NewsSourceView exposes a news source.
type NewsSourceView struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	BiasScore    float64   `json:"bias_score"`
	ArticlesRead int       `json:"articles_read"`
	Category     string    `json:"category"`
	Reliability  float64   `json:"reliability"`
	CreatedAt    time.Time `json:"created_at"`
}

// ChallengeView exposes a challenge.
type ChallengeView struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Type        string `json:"type"`
	Progress    int    `json:"progress"`
	Target      int    `json:"target"`
	Completed   bool   `json:"completed"`
	Reward      string `json:"reward"`
}

// BiasMetricView exposes a bias metric.
type BiasMetricView struct {
	ID          string    `json:"id"`
	Type        string    `json:"type"`
	Value       float64   `json:"value"`
	Trend       float64   `json:"trend"`
	LastUpdated time.Time `json:"last_updated"`
}

// ListBehaviorsResponse packages a behavior page.
type ListBehaviorsResponse struct {
	Items      []BehaviorEntryView `json:"items"`
	NextCursor string              `json:"next_cursor,omitempty"`
}

// ListNewsSourcesResponse packages news sources.
type ListNewsSourcesResponse struct {
	Items []NewsSourceView `json:"items"`
}

// ListShoppingResponse packages shopping patterns.
type ListShoppingResponse struct {
	Items []ShoppingPatternView `json:"items"`
}

// ListChallengesResponse packages challenges.
type ListChallengesResponse struct {
	Items []ChallengeView `json:"items"`
}

func toActivityViews(activities []domain.UnifiedActivity) []ActivityView {
	items := make([]ActivityView, 0, len(activities))
	for _, activity := range activities {
		items = append(items, toActivityView(activity))
	}
	return items
}

func toActivityView(activity domain.UnifiedActivity) ActivityView {
	view := ActivityView{
		ActivityType: string(activity.Kind),
		ID:           activity.ID,
		Timestamp:    activity.Timestamp,
	}
	switch record := activity.Record.(type) {
	case *domain.BehaviorEntry:
		v := toBehaviorEntryView(*record)
		view.Behavior = &v
	case *domain.ShoppingPattern:
		v := toShoppingPatternView(*record)
		view.Shopping = &v
	case *domain.NewsSource:
		v := toNewsSourceView(*record)
		view.News = &v
	}
	return view
}

func toBehaviorEntryView(e domain.BehaviorEntry) BehaviorEntryView {
	return BehaviorEntryView{
		ID:           e.ID,
		Timestamp:    e.Timestamp,
		Activity:     e.Activity,
		BiasDetected: e.BiasDetected,
		Confidence:   e.Confidence,
		Notes:        e.Notes,
	}
}

func toShoppingPatternView(p domain.ShoppingPattern) ShoppingPatternView {
	return ShoppingPatternView{
		ID:       p.ID,
		Category: p.Category,
		Amount:   p.Amount,
		Date:     p.Date,
		BiasType: p.BiasType,
		Impulse:  p.Impulse,
	}
}

func toNewsSourceView(s domain.NewsSource) NewsSourceView {
	return NewsSourceView{
		ID:           s.ID,
		Name:         s.Name,
		BiasScore:    s.BiasScore,
		ArticlesRead: s.ArticlesRead,
		Category:     string(s.Category),
		Reliability:  s.Reliability,
		CreatedAt:    s.CreatedAt,
	}
}

func toChallengeView(c domain.Challenge) ChallengeView {
	return ChallengeView{
		ID:          c.ID,
		Title:       c.Title,
		Description: c.Description,
		Type:        string(c.Type),
		Progress:    c.Progress,
		Target:      c.Target,
		Completed:   c.Completed,
		Reward:      c.Reward,
	}
}

func toBiasMetricView(m domain.BiasMetric) BiasMetricView {
	return BiasMetricView{
		ID:          m.ID,
		Type:        m.Type,
		Value:       m.Value,
		Trend:       m.Trend,
		LastUpdated: m.LastUpdated,
	}
}

func writeError(w http.ResponseWriter, status int, code, detail string) {
	payload := map[string]string{
		"type":   code,
		"detail": detail,
	}
	writeJSON(w, status, payload)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
