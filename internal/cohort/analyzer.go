// Package cohort runs the daily analysis: it classifies every user per
// category as reward-qualified or empathy-eligible, maintains activity
// streaks, and publishes the resulting cohorts for reward distribution.
package cohort

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/chainsocial/scoring-service/internal/config"
	"github.com/chainsocial/scoring-service/internal/domain"
	"github.com/chainsocial/scoring-service/internal/pkg/logger"
	"github.com/chainsocial/scoring-service/internal/scoring"
)

// CategoryCohort is the per-category outcome of one analysis run.
type CategoryCohort struct {
	Qualified []string `json:"qualified"`
	Empathy   []string `json:"empathy"`
}

// AnalysisResult is the full outcome of one analysis run.
type AnalysisResult struct {
	Summary domain.DailySummary                `json:"summary"`
	Cohorts map[domain.Category]CategoryCohort `json:"cohorts"`
}

// Analyzer computes the daily cohorts over the score repository.
type Analyzer struct {
	repo scoring.Repository
	cfg  config.ScoringConfig
	now  func() time.Time
}

// NewAnalyzer creates an Analyzer.
func NewAnalyzer(repo scoring.Repository, cfg config.ScoringConfig) *Analyzer {
	return &Analyzer{repo: repo, cfg: cfg, now: time.Now}
}

// SetClock overrides the time source. Tests only.
func (a *Analyzer) SetClock(now func() time.Time) { a.now = now }

type userSnapshot struct {
	id         string
	qualified  map[domain.Category]bool
	active     bool
	prevStreak int
	empathy    float64
	normalized float64
}

// Run performs one analysis pass. A user is qualified in a category when
// their accepted interactions over the trailing 24 hours met the full
// daily limit, and counts as active when qualified in at least one
// category. Active users extend their streak; inactive users bank an
// engagement score from their pre-reset streak and lifetime interaction
// counts, then lose the streak. Per category, the top 10% of non-qualified
// users by banked score form the empathy cohort.
func (a *Analyzer) Run(ctx context.Context) (*AnalysisResult, error) {
	now := a.now().UTC()
	cutoff := now.Add(-24 * time.Hour)

	var snaps []userSnapshot
	err := a.repo.ScanAll(ctx, func(s *domain.UserScore) error {
		snap := userSnapshot{
			id:         s.UserID,
			qualified:  make(map[domain.Category]bool, 6),
			prevStreak: s.ConsecutiveActivityDays,
			normalized: a.normalize(s.TotalMonthlyPoints()),
		}
		for _, c := range domain.Categories() {
			if s.CountSince(c, cutoff) >= a.cfg.DailyLimits[c] {
				snap.qualified[c] = true
				snap.active = true
			}
		}
		if !snap.active {
			snap.empathy = a.engagementScore(s)
		}
		snaps = append(snaps, snap)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan users: %w", err)
	}

	// Persist streak and banked-score transitions
	for i := range snaps {
		snap := &snaps[i]
		err := a.repo.Update(ctx, snap.id, func(s *domain.UserScore) error {
			if snap.active {
				s.ConsecutiveActivityDays = snap.prevStreak + 1
				s.HistoricalEngagementScore = 0
			} else {
				s.HistoricalEngagementScore = snap.empathy
				s.ConsecutiveActivityDays = 0
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("update user activity state: %w", err)
		}
		if snap.active {
			snap.prevStreak++
		}
	}

	result := &AnalysisResult{
		Summary: domain.DailySummary{
			Day:             now.Truncate(24 * time.Hour),
			TotalUsers:      len(snaps),
			QualifiedCounts: make(map[domain.Category]int, 6),
		},
		Cohorts: make(map[domain.Category]CategoryCohort, 6),
	}

	for _, c := range domain.Categories() {
		var qualified []string
		var candidates []userSnapshot
		for _, snap := range snaps {
			if snap.qualified[c] {
				qualified = append(qualified, snap.id)
			} else if snap.empathy > 0 {
				candidates = append(candidates, snap)
			}
		}
		sort.Strings(qualified)
		result.Summary.QualifiedCounts[c] = len(qualified)
		result.Cohorts[c] = CategoryCohort{
			Qualified: qualified,
			Empathy:   pickEmpathy(candidates, a.cfg.EmpathyFraction),
		}
	}

	for _, snap := range snaps {
		res := domain.DailyUserResult{
			UserID:                    snap.id,
			Qualified:                 snap.qualified,
			Active:                    snap.active,
			ConsecutiveActivityDays:   snap.prevStreak,
			HistoricalEngagementScore: snap.empathy,
			NormalizedScore:           snap.normalized,
		}
		result.Summary.Results = append(result.Summary.Results, res)
		if snap.active {
			result.Summary.ActiveUsers++
		}
	}

	logger.Info("cohort: analysis complete",
		"users", result.Summary.TotalUsers, "active", result.Summary.ActiveUsers)
	return result, nil
}

// engagementScore banks an inactive user's history: streak carries the
// heaviest weight, then lifetime interaction counts per category.
func (a *Analyzer) engagementScore(s *domain.UserScore) float64 {
	score := float64(s.ConsecutiveActivityDays) * a.cfg.StreakWeight
	for _, c := range domain.Categories() {
		score += float64(len(s.Timestamps[c])) * a.cfg.EmpathyWeight[c]
	}
	return score
}

// pickEmpathy ranks candidates by banked score descending, user_id
// ascending on ties, and keeps the top fraction (ceiling).
func pickEmpathy(candidates []userSnapshot, fraction float64) []string {
	if len(candidates) == 0 {
		return nil
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].empathy != candidates[j].empathy {
			return candidates[i].empathy > candidates[j].empathy
		}
		return candidates[i].id < candidates[j].id
	})
	n := int(math.Ceil(fraction * float64(len(candidates))))
	if n > len(candidates) {
		n = len(candidates)
	}
	out := make([]string, 0, n)
	for _, c := range candidates[:n] {
		out = append(out, c.id)
	}
	return out
}

func (a *Analyzer) normalize(total float64) float64 {
	max := a.cfg.MaxMonthlyTotal()
	if max <= 0 {
		return 0
	}
	n := total / max * 100
	if n < 0 {
		return 0
	}
	if n > 100 {
		return 100
	}
	return n
}
