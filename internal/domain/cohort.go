package domain

import "time"

// DailyUserResult is one user's outcome from a daily analysis run.
type DailyUserResult struct {
	UserID string `json:"user_id"`

	// Qualified marks the categories in which the user met the full
	// daily limit on the analyzed day.
	Qualified map[Category]bool `json:"qualified"`

	// Active is true when the user qualified in at least one category.
	Active bool `json:"active"`

	ConsecutiveActivityDays   int     `json:"consecutive_activity_days"`
	HistoricalEngagementScore float64 `json:"historical_engagement_score"`
	NormalizedScore           float64 `json:"normalized_score"`
}

// DailySummary is the aggregate outcome of one daily analysis run.
type DailySummary struct {
	Day         time.Time `json:"day"`
	TotalUsers  int       `json:"total_users"`
	ActiveUsers int       `json:"active_users"`

	// QualifiedCounts is the number of users who met the daily limit,
	// per category.
	QualifiedCounts map[Category]int `json:"qualified_counts"`

	Results []DailyUserResult `json:"results"`
}

// RewardCohort lists the users qualified for a category's reward after a
// daily analysis run, published for downstream reward distribution.
type RewardCohort struct {
	Category    Category  `json:"category"`
	Day         time.Time `json:"day"`
	UserIDs     []string  `json:"user_ids"`
	GeneratedAt time.Time `json:"generated_at"`
}
