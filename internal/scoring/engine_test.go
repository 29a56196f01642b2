package scoring

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chainsocial/scoring-service/internal/config"
	"github.com/chainsocial/scoring-service/internal/domain"
)

func newTestEngine(t *testing.T) (*Engine, *MemoryRepository, *time.Time) {
	t.Helper()
	repo := NewMemoryRepository()
	eng := NewEngine(repo, config.LoadFromEnv().Scoring)

	now := time.Date(2026, 8, 10, 12, 0, 0, 0, time.UTC)
	clock := &now
	eng.SetClock(func() time.Time { return *clock })
	repo.SetClock(func() time.Time { return *clock })
	return eng, repo, clock
}

func TestApplyFixedAwards(t *testing.T) {
	ctx := context.Background()
	eng, _, _ := newTestEngine(t)

	cases := []struct {
		category domain.Category
		want     float64
	}{
		{domain.CategoryLike, 0.1},
		{domain.CategoryComment, 0.1},
		{domain.CategoryCrypto, 0.5},
		{domain.CategoryTipping, 0.5},
		{domain.CategoryReferral, 10},
	}
	for _, tc := range cases {
		res, err := eng.Apply(ctx, "0xUserA", tc.category, nil)
		require.NoError(t, err, tc.category)
		assert.Equal(t, StatusAccepted, res.Status, tc.category)
		assert.InDelta(t, tc.want, res.Delta, 1e-9, tc.category)
	}
}

func TestApplyPostFormula(t *testing.T) {
	ctx := context.Background()
	eng, _, _ := newTestEngine(t)

	res, err := eng.Apply(ctx, "0xUserA", domain.CategoryPost, &PostContext{
		PostID:      "p1",
		Quality:     8,
		Originality: 1.0,
	})
	require.NoError(t, err)
	assert.Equal(t, StatusAccepted, res.Status)
	// 0.5 base + 8/10*1.0 quality + 1.0*0.25 originality
	assert.InDelta(t, 1.55, res.Delta, 1e-9)
}

func TestApplyPostClampsQualityAndOriginality(t *testing.T) {
	ctx := context.Background()
	eng, _, _ := newTestEngine(t)

	res, err := eng.Apply(ctx, "0xUserA", domain.CategoryPost, &PostContext{
		PostID:      "p1",
		Quality:     42,
		Originality: 3.5,
	})
	require.NoError(t, err)
	assert.InDelta(t, 0.5+1.0+0.25, res.Delta, 1e-9)
}

func TestDailyLimitBlocksWithoutMutation(t *testing.T) {
	ctx := context.Background()
	eng, repo, _ := newTestEngine(t)

	res, err := eng.Apply(ctx, "0xUserA", domain.CategoryTipping, nil)
	require.NoError(t, err)
	assert.Equal(t, StatusAccepted, res.Status)

	res, err = eng.Apply(ctx, "0xUserA", domain.CategoryTipping, nil)
	require.NoError(t, err)
	assert.Equal(t, StatusLimited, res.Status)
	assert.Zero(t, res.Delta)
	assert.Contains(t, res.Reason, "daily limit")

	s, err := repo.Get(ctx, "0xUserA")
	require.NoError(t, err)
	assert.InDelta(t, 0.5, s.Points[domain.CategoryTipping], 1e-9)
	assert.Len(t, s.Timestamps[domain.CategoryTipping], 1)
}

func TestDailyLimitRollsOver(t *testing.T) {
	ctx := context.Background()
	eng, _, clock := newTestEngine(t)

	_, err := eng.Apply(ctx, "0xUserA", domain.CategoryTipping, nil)
	require.NoError(t, err)

	*clock = clock.Add(25 * time.Hour)
	res, err := eng.Apply(ctx, "0xUserA", domain.CategoryTipping, nil)
	require.NoError(t, err)
	assert.Equal(t, StatusAccepted, res.Status)
}

func TestMonthlyCapClampsPartialAward(t *testing.T) {
	ctx := context.Background()
	eng, repo, clock := newTestEngine(t)

	// 5 tips on 5 days: 2.5 points. Then push points near the cap directly
	// to exercise the clamp without 39 more days of tips.
	require.NoError(t, repo.Update(ctx, "0xUserA", func(s *domain.UserScore) error {
		s.Points[domain.CategoryTipping] = 19.8
		return nil
	}))

	res, err := eng.Apply(ctx, "0xUserA", domain.CategoryTipping, nil)
	require.NoError(t, err)
	assert.Equal(t, StatusAccepted, res.Status)
	assert.InDelta(t, 0.2, res.Delta, 1e-9)

	// Cap reached: next attempt on a later day is capped, with no timestamp
	*clock = clock.Add(25 * time.Hour)
	res, err = eng.Apply(ctx, "0xUserA", domain.CategoryTipping, nil)
	require.NoError(t, err)
	assert.Equal(t, StatusCapped, res.Status)
	assert.Contains(t, res.Reason, "monthly cap")

	s, err := repo.Get(ctx, "0xUserA")
	require.NoError(t, err)
	assert.InDelta(t, 20.0, s.Points[domain.CategoryTipping], 1e-9)
	assert.Len(t, s.Timestamps[domain.CategoryTipping], 1)
}

func TestMonthResetClearsTotalsKeepsStreak(t *testing.T) {
	ctx := context.Background()
	eng, repo, clock := newTestEngine(t)

	_, err := eng.Apply(ctx, "0xUserA", domain.CategoryLike, nil)
	require.NoError(t, err)
	_, err = eng.ApplyOneTime(ctx, "0xUserA", domain.EventRegistration, 10)
	require.NoError(t, err)
	require.NoError(t, repo.Update(ctx, "0xUserA", func(s *domain.UserScore) error {
		s.ConsecutiveActivityDays = 7
		return nil
	}))

	// Cross into September
	*clock = time.Date(2026, 9, 1, 0, 30, 0, 0, time.UTC)

	res, err := eng.Apply(ctx, "0xUserA", domain.CategoryLike, nil)
	require.NoError(t, err)
	assert.Equal(t, StatusAccepted, res.Status)

	s, err := repo.Get(ctx, "0xUserA")
	require.NoError(t, err)
	assert.InDelta(t, 0.1, s.Points[domain.CategoryLike], 1e-9)
	assert.Zero(t, s.OneTimePoints)
	assert.Empty(t, s.OneTimeEvents)
	// Timestamp histories survive the reset; only totals clear
	assert.Len(t, s.Timestamps[domain.CategoryLike], 2)
	assert.Equal(t, 7, s.ConsecutiveActivityDays)
	assert.Equal(t, time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC), s.LastResetDate)
}

func TestApplyOneTimeIdempotent(t *testing.T) {
	ctx := context.Background()
	eng, repo, _ := newTestEngine(t)

	res, err := eng.ApplyOneTime(ctx, "0xUserA", domain.EventRegistration, 10)
	require.NoError(t, err)
	assert.Equal(t, StatusAccepted, res.Status)
	assert.InDelta(t, 10.0, res.Delta, 1e-9)

	res, err = eng.ApplyOneTime(ctx, "0xUserA", domain.EventRegistration, 10)
	require.NoError(t, err)
	assert.Equal(t, StatusLimited, res.Status)
	assert.Zero(t, res.Delta)

	s, err := repo.Get(ctx, "0xUserA")
	require.NoError(t, err)
	assert.InDelta(t, 10.0, s.OneTimePoints, 1e-9)
	assert.Len(t, s.OneTimeEvents, 1)
}

func TestApplyOneTimeArbitraryEvent(t *testing.T) {
	ctx := context.Background()
	eng, repo, _ := newTestEngine(t)

	res, err := eng.ApplyOneTime(ctx, "0xUserA", "SIGNUP_BONUS", 25)
	require.NoError(t, err)
	assert.Equal(t, StatusAccepted, res.Status)
	assert.InDelta(t, 25.0, res.Delta, 1e-9)

	res, err = eng.ApplyOneTime(ctx, "0xUserA", "SIGNUP_BONUS", 25)
	require.NoError(t, err)
	assert.Equal(t, StatusLimited, res.Status)

	s, err := repo.Get(ctx, "0xUserA")
	require.NoError(t, err)
	assert.Len(t, s.OneTimeEvents, 1)

	_, err = eng.ApplyOneTime(ctx, "0xUserA", "", 5)
	assert.ErrorIs(t, err, ErrInvalidEvent)
}

func TestDeductPostExactRefund(t *testing.T) {
	ctx := context.Background()
	eng, repo, _ := newTestEngine(t)

	res, err := eng.Apply(ctx, "0xUserA", domain.CategoryPost, &PostContext{
		PostID: "p1", Quality: 8, Originality: 1.0,
	})
	require.NoError(t, err)
	awarded := res.Delta

	require.NoError(t, eng.DeductPost(ctx, "0xUserA", "p1"))

	s, err := repo.Get(ctx, "0xUserA")
	require.NoError(t, err)
	assert.InDelta(t, 0, s.Points[domain.CategoryPost], 1e-9)
	assert.Empty(t, s.Timestamps[domain.CategoryPost])
	assert.InDelta(t, 1.55, awarded, 1e-9)

	// Second delete of the same post refunds nothing
	require.NoError(t, eng.DeductPost(ctx, "0xUserA", "p1"))
	s, err = repo.Get(ctx, "0xUserA")
	require.NoError(t, err)
	assert.InDelta(t, 0, s.Points[domain.CategoryPost], 1e-9)
}

func TestDeductPostUnknownAwardLeavesLedgerUntouched(t *testing.T) {
	ctx := context.Background()
	eng, repo, _ := newTestEngine(t)

	_, err := eng.Apply(ctx, "0xUserA", domain.CategoryPost, &PostContext{
		PostID: "p1", Quality: 5, Originality: 0.5,
	})
	require.NoError(t, err)

	// Refund for a post with no sidecar record: no points subtracted and
	// no timestamp removed
	require.NoError(t, eng.DeductPost(ctx, "0xUserA", "unknown-post"))

	s, err := repo.Get(ctx, "0xUserA")
	require.NoError(t, err)
	assert.Greater(t, s.Points[domain.CategoryPost], 0.0)
	assert.Len(t, s.Timestamps[domain.CategoryPost], 1)
}

func TestDeductLimitedPostDoesNotFreeDailyCapacity(t *testing.T) {
	ctx := context.Background()
	eng, repo, _ := newTestEngine(t)

	for _, id := range []string{"pA", "pB"} {
		res, err := eng.Apply(ctx, "0xUserA", domain.CategoryPost, &PostContext{
			PostID: id, Quality: 5, Originality: 0.5,
		})
		require.NoError(t, err)
		require.Equal(t, StatusAccepted, res.Status)
	}

	// Third post of the day is limited: no award record, no timestamp
	res, err := eng.Apply(ctx, "0xUserA", domain.CategoryPost, &PostContext{
		PostID: "pC", Quality: 5, Originality: 0.5,
	})
	require.NoError(t, err)
	require.Equal(t, StatusLimited, res.Status)

	// Deleting the limited post must not consume an awarded post's
	// timestamp, so the daily limit still holds
	require.NoError(t, eng.DeductPost(ctx, "0xUserA", "pC"))

	s, err := repo.Get(ctx, "0xUserA")
	require.NoError(t, err)
	assert.Len(t, s.Timestamps[domain.CategoryPost], 2)

	res, err = eng.Apply(ctx, "0xUserA", domain.CategoryPost, &PostContext{
		PostID: "pD", Quality: 5, Originality: 0.5,
	})
	require.NoError(t, err)
	assert.Equal(t, StatusLimited, res.Status)
}

func TestNormalize(t *testing.T) {
	eng, _, _ := newTestEngine(t)

	assert.InDelta(t, 0, eng.Normalize(0), 1e-9)
	assert.InDelta(t, 50, eng.Normalize(55), 1e-9)
	assert.InDelta(t, 100, eng.Normalize(110), 1e-9)
	assert.InDelta(t, 100, eng.Normalize(500), 1e-9)
}

func TestApplyInvalidCategory(t *testing.T) {
	eng, _, _ := newTestEngine(t)
	_, err := eng.Apply(context.Background(), "0xUserA", domain.Category("dance"), nil)
	assert.ErrorIs(t, err, ErrInvalidCategory)
}
