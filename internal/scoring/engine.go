// Package scoring implements the point ledger: per-category awards with
// daily limits and monthly caps, one-time bonuses, and post refunds.
package scoring

import (
	"context"
	"fmt"
	"time"

	"github.com/chainsocial/scoring-service/internal/config"
	"github.com/chainsocial/scoring-service/internal/domain"
	"github.com/chainsocial/scoring-service/internal/pkg/logger"
)

// Status classifies the outcome of applying an interaction.
type Status string

const (
	// StatusAccepted means points were awarded and a timestamp recorded.
	StatusAccepted Status = "accepted"
	// StatusLimited means the daily limit for the category was already met.
	StatusLimited Status = "limited"
	// StatusCapped means the monthly cap left no room for any award.
	StatusCapped Status = "capped"
)

// Result reports what an Apply call did to the user's ledger.
type Result struct {
	Status          Status
	Reason          string
	Delta           float64
	MonthlyTotal    float64
	NormalizedScore float64
}

// PostContext carries the validator's verdict for a post award.
type PostContext struct {
	PostID      string
	Quality     int
	Originality float64
	Degraded    bool
}

// Engine applies interactions to the score repository under the configured
// award table, daily limits, and monthly caps.
type Engine struct {
	repo Repository
	cfg  config.ScoringConfig
	now  func() time.Time
}

// NewEngine creates a scoring engine.
func NewEngine(repo Repository, cfg config.ScoringConfig) *Engine {
	return &Engine{repo: repo, cfg: cfg, now: time.Now}
}

// SetClock overrides the engine's time source. Tests only.
func (e *Engine) SetClock(now func() time.Time) { e.now = now }

// Apply awards the interaction to the user. For posts, post carries the
// validated quality and originality; for every other category post must be
// nil. Exactly one of three things happens: points plus a timestamp are
// recorded together, or the daily limit blocks the interaction, or the
// monthly cap blocks it. The record mutates only in the accepted case.
func (e *Engine) Apply(ctx context.Context, userID string, category domain.Category, post *PostContext) (Result, error) {
	if !category.Valid() {
		return Result{}, ErrInvalidCategory
	}

	now := e.now().UTC()
	var res Result

	err := e.repo.Update(ctx, userID, func(s *domain.UserScore) error {
		if s.NeedsReset(now) {
			s.ResetMonth(now)
		}

		limit := e.cfg.DailyLimits[category]
		if s.CountSince(category, now.Add(-24*time.Hour)) >= limit {
			res = Result{
				Status:          StatusLimited,
				Reason:          fmt.Sprintf("daily limit reached for %s", category),
				MonthlyTotal:    s.TotalMonthlyPoints(),
				NormalizedScore: e.Normalize(s.TotalMonthlyPoints()),
			}
			return nil
		}

		delta := e.awardFor(category, post)

		cap := e.cfg.MonthlyCaps[category]
		remainder := cap - s.Points[category]
		if remainder <= 0 {
			res = Result{
				Status:          StatusCapped,
				Reason:          fmt.Sprintf("monthly cap reached for %s", category),
				MonthlyTotal:    s.TotalMonthlyPoints(),
				NormalizedScore: e.Normalize(s.TotalMonthlyPoints()),
			}
			return nil
		}
		if delta > remainder {
			delta = remainder
		}

		s.Points[category] += delta
		s.Timestamps[category] = append(s.Timestamps[category], now)
		s.LastActiveDate = now

		total := s.TotalMonthlyPoints()
		res = Result{
			Status:          StatusAccepted,
			Delta:           delta,
			MonthlyTotal:    total,
			NormalizedScore: e.Normalize(total),
		}
		return nil
	})
	if err != nil {
		return Result{}, fmt.Errorf("apply %s for user: %w", category, err)
	}

	if category == domain.CategoryPost && res.Status == StatusAccepted && post != nil && post.PostID != "" {
		if err := e.repo.RecordPostAward(ctx, post.PostID, userID, res.Delta); err != nil {
			logger.Warn("scoring: failed to record post award",
				"post_id", post.PostID, "user", userID, "error", err)
		}
	}

	return res, nil
}

// awardFor computes the uncapped delta for an interaction.
func (e *Engine) awardFor(category domain.Category, post *PostContext) float64 {
	base := e.cfg.Awards[category]
	if category != domain.CategoryPost || post == nil {
		return base
	}

	quality := post.Quality
	if quality < 0 {
		quality = 0
	} else if quality > 10 {
		quality = 10
	}
	originality := post.Originality
	if originality < 0 {
		originality = 0
	} else if originality > 1 {
		originality = 1
	}

	return base +
		float64(quality)/10*e.cfg.QualityBonusMax +
		originality*e.cfg.OriginalityBonusMax
}

// ApplyOneTime grants a named bonus at most once per ledger month. Replays
// are no-ops that report the current totals.
func (e *Engine) ApplyOneTime(ctx context.Context, userID string, event domain.OneTimeEvent, points float64) (Result, error) {
	if event == "" {
		return Result{}, ErrInvalidEvent
	}

	now := e.now().UTC()
	var res Result

	err := e.repo.Update(ctx, userID, func(s *domain.UserScore) error {
		if s.NeedsReset(now) {
			s.ResetMonth(now)
		}

		if s.HasOneTimeEvent(event) {
			res = Result{
				Status:          StatusLimited,
				Reason:          fmt.Sprintf("one-time event %s already granted", event),
				MonthlyTotal:    s.TotalMonthlyPoints(),
				NormalizedScore: e.Normalize(s.TotalMonthlyPoints()),
			}
			return nil
		}

		s.OneTimePoints += points
		s.OneTimeEvents = append(s.OneTimeEvents, event)

		res = Result{
			Status:          StatusAccepted,
			Delta:           points,
			MonthlyTotal:    s.TotalMonthlyPoints(),
			NormalizedScore: e.Normalize(s.TotalMonthlyPoints()),
		}
		return nil
	})
	if err != nil {
		return Result{}, fmt.Errorf("apply one-time %s for user: %w", event, err)
	}
	return res, nil
}

// DeductPost refunds the exact points a deleted post earned and drops its
// timestamp. A post with no recorded award never earned anything (it was
// limited or capped), so the ledger stays untouched and the delete is only
// logged. Removing a timestamp here would free daily-limit capacity that
// belongs to a still-standing post.
func (e *Engine) DeductPost(ctx context.Context, userID, postID string) error {
	delta, found, err := e.repo.TakePostAward(ctx, postID, userID)
	if err != nil {
		return fmt.Errorf("take post award: %w", err)
	}
	if !found {
		logger.Warn("scoring: no recorded award for deleted post, refunding zero",
			"post_id", postID, "user", userID)
		return nil
	}

	return e.repo.Update(ctx, userID, func(s *domain.UserScore) error {
		s.Points[domain.CategoryPost] -= delta
		if s.Points[domain.CategoryPost] < 0 {
			s.Points[domain.CategoryPost] = 0
		}
		if ts := s.Timestamps[domain.CategoryPost]; len(ts) > 0 {
			s.SortTimestamps()
			ts = s.Timestamps[domain.CategoryPost]
			s.Timestamps[domain.CategoryPost] = ts[:len(ts)-1]
		}
		return nil
	})
}

// Normalize converts a monthly point total to the 0..100 published scale.
func (e *Engine) Normalize(total float64) float64 {
	max := e.cfg.MaxMonthlyTotal()
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
