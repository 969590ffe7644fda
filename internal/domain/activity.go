package domain

import "time"

// ActivityKind discriminates the record behind a UnifiedActivity.
type ActivityKind string

const (
	ActivityKindBehavior ActivityKind = "behavior"
	ActivityKindShopping ActivityKind = "shopping"
	ActivityKindNews     ActivityKind = "news"
)

// ActivityRecord is the closed set of record types that can appear in the
// unified feed. Adding a kind means adding a type here and extending every
// switch over the kind, which the compiler will point at.
type ActivityRecord interface {
	activityRecord()
}

func (*BehaviorEntry) activityRecord()   {}
func (*ShoppingPattern) activityRecord() {}
func (*NewsSource) activityRecord()      {}

// UnifiedActivity is one feed item: a kind-tagged record plus the
// normalized timestamp used for ordering. Which underlying field the
// timestamp came from depends on the kind (behavior: its own timestamp,
// shopping: the purchase date, news: source creation time).
type UnifiedActivity struct {
	Kind      ActivityKind
	ID        string
	Timestamp time.Time
	Record    ActivityRecord
}

// UnifyBehavior wraps a behavior entry as a feed item.
func UnifyBehavior(e BehaviorEntry) UnifiedActivity {
	return UnifiedActivity{Kind: ActivityKindBehavior, ID: e.ID, Timestamp: e.Timestamp, Record: &e}
}

// UnifyShopping wraps a shopping pattern as a feed item.
func UnifyShopping(p ShoppingPattern) UnifiedActivity {
	return UnifiedActivity{Kind: ActivityKindShopping, ID: p.ID, Timestamp: p.Date, Record: &p}
}

// UnifyNews wraps a news source as a feed item.
func UnifyNews(s NewsSource) UnifiedActivity {
	return UnifiedActivity{Kind: ActivityKindNews, ID: s.ID, Timestamp: s.CreatedAt, Record: &s}
}
