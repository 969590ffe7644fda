// Package domain defines the business logic for the biastrack service.
package domain

import "time"

// NewsCategory is the political leaning bucket of a news source.
type NewsCategory string

const (
	NewsCategoryLeft   NewsCategory = "left"
	NewsCategoryCenter NewsCategory = "center"
	NewsCategoryRight  NewsCategory = "right"
)

// ChallengeType is the cadence of a challenge.
type ChallengeType string

const (
	ChallengeTypeDaily   ChallengeType = "daily"
	ChallengeTypeWeekly  ChallengeType = "weekly"
	ChallengeTypeMonthly ChallengeType = "monthly"
)

// BehaviorEntry is one logged behavior observation with the biases detected in it.
type BehaviorEntry struct {
	ID           string
	UserID       string
	Timestamp    time.Time
	Activity     string
	BiasDetected []string
	Confidence   float64
	Notes        string
}

// ShoppingPattern is one recorded purchase and the bias attributed to it.
type ShoppingPattern struct {
	ID       string
	UserID   string
	Category string
	Amount   float64
	Date     time.Time
	BiasType string
	Impulse  bool
}

// NewsSource is a registered reading source. Its feed timestamp is the
// moment the source was added, not a per-article read event.
type NewsSource struct {
	ID           string
	UserID       string
	Name         string
	BiasScore    float64
	ArticlesRead int
	Category     NewsCategory
	Reliability  float64
	CreatedAt    time.Time
}

// Challenge is a self-improvement goal with integer progress toward a target.
type Challenge struct {
	ID          string
	UserID      string
	Title       string
	Description string
	Type        ChallengeType
	Progress    int
	Target      int
	Completed   bool
	Reward      string
}

// BiasMetric is a headline dashboard stat for one bias type.
type BiasMetric struct {
	ID          string
	UserID      string
	Type        string
	Value       float64
	Trend       float64
	LastUpdated time.Time
}

// Dashboard bundles the four record collections shown on the overview page.
type Dashboard struct {
	BiasMetrics      []BiasMetric
	NewsSources      []NewsSource
	Challenges       []Challenge
	ShoppingPatterns []ShoppingPattern
}
