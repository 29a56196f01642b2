// Package postgres persists user score records and post award sidecars.
// All score writes go through a transactional read-modify-write holding a
// row lock, so concurrent interactions for the same user serialize.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/chainsocial/scoring-service/internal/domain"
	"github.com/chainsocial/scoring-service/internal/pkg/logger"
	"github.com/chainsocial/scoring-service/internal/scoring"
)

const (
	updateAttempts = 3
	retryDelay     = 50 * time.Millisecond
)

// ScoreStore implements scoring.Repository on Postgres.
type ScoreStore struct {
	db *sql.DB
}

// NewScoreStore creates a score store over the given database handle.
func NewScoreStore(db *sql.DB) *ScoreStore {
	return &ScoreStore{db: db}
}

const scoreColumns = `user_id,
	post_points, like_points, comment_points, crypto_points, tipping_points, referral_points,
	post_ts, like_ts, comment_ts, crypto_ts, tipping_ts, referral_ts,
	one_time_points, one_time_events,
	last_reset_date, last_active_date, consecutive_activity_days, historical_engagement_score`

// Get loads a user's score record.
func (s *ScoreStore) Get(ctx context.Context, userID string) (*domain.UserScore, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+scoreColumns+` FROM user_scores WHERE user_id = $1`, userID)
	score, err := scanScore(row)
	if err == sql.ErrNoRows {
		return nil, scoring.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load score record: %w", err)
	}
	return score, nil
}

// Update runs the mutator over the user's record inside a transaction with
// SELECT ... FOR UPDATE, creating the row first if the user is new.
// Serialization failures retry up to 3 times.
func (s *ScoreStore) Update(ctx context.Context, userID string, fn func(*domain.UserScore) error) error {
	var lastErr error
	for attempt := 1; attempt <= updateAttempts; attempt++ {
		err := s.updateOnce(ctx, userID, fn)
		if err == nil {
			return nil
		}
		lastErr = err
		if !retryableSQL(err) {
			return err
		}
		logger.Warn("postgres: score update contention, retrying",
			"user", userID, "attempt", attempt, "error", err)
		select {
		case <-time.After(retryDelay * time.Duration(attempt)):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return fmt.Errorf("score update failed after %d attempts: %w", updateAttempts, lastErr)
}

func (s *ScoreStore) updateOnce(ctx context.Context, userID string, fn func(*domain.UserScore) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	_, err = tx.ExecContext(ctx,
		`INSERT INTO user_scores (user_id, last_reset_date) VALUES ($1, $2)
		 ON CONFLICT (user_id) DO NOTHING`,
		userID, domain.MonthStart(now))
	if err != nil {
		return fmt.Errorf("failed to ensure score row: %w", err)
	}

	row := tx.QueryRowContext(ctx,
		`SELECT `+scoreColumns+` FROM user_scores WHERE user_id = $1 FOR UPDATE`, userID)
	score, err := scanScore(row)
	if err != nil {
		return fmt.Errorf("failed to lock score row: %w", err)
	}

	if err := fn(score); err != nil {
		return err
	}

	events := make([]string, len(score.OneTimeEvents))
	for i, e := range score.OneTimeEvents {
		events[i] = string(e)
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE user_scores SET
			post_points = $2, like_points = $3, comment_points = $4,
			crypto_points = $5, tipping_points = $6, referral_points = $7,
			post_ts = $8, like_ts = $9, comment_ts = $10,
			crypto_ts = $11, tipping_ts = $12, referral_ts = $13,
			one_time_points = $14, one_time_events = $15,
			last_reset_date = $16, last_active_date = $17,
			consecutive_activity_days = $18, historical_engagement_score = $19
		WHERE user_id = $1`,
		userID,
		score.Points[domain.CategoryPost], score.Points[domain.CategoryLike],
		score.Points[domain.CategoryComment], score.Points[domain.CategoryCrypto],
		score.Points[domain.CategoryTipping], score.Points[domain.CategoryReferral],
		pq.Array(score.Timestamps[domain.CategoryPost]), pq.Array(score.Timestamps[domain.CategoryLike]),
		pq.Array(score.Timestamps[domain.CategoryComment]), pq.Array(score.Timestamps[domain.CategoryCrypto]),
		pq.Array(score.Timestamps[domain.CategoryTipping]), pq.Array(score.Timestamps[domain.CategoryReferral]),
		score.OneTimePoints, pq.Array(events),
		score.LastResetDate, nullTime(score.LastActiveDate),
		score.ConsecutiveActivityDays, score.HistoricalEngagementScore,
	)
	if err != nil {
		return fmt.Errorf("failed to write score row: %w", err)
	}

	return tx.Commit()
}

// ScanAll streams every score record through the visitor, ordered by
// user_id for deterministic analysis output.
func (s *ScoreStore) ScanAll(ctx context.Context, fn func(*domain.UserScore) error) error {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+scoreColumns+` FROM user_scores ORDER BY user_id`)
	if err != nil {
		return fmt.Errorf("failed to scan score records: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		score, err := scanScore(rows)
		if err != nil {
			return fmt.Errorf("failed to scan score record: %w", err)
		}
		if err := fn(score); err != nil {
			return err
		}
	}
	return rows.Err()
}

// RecordPostAward stores the exact delta granted for a post.
func (s *ScoreStore) RecordPostAward(ctx context.Context, postID, userID string, delta float64) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO post_awards (post_id, user_id, awarded_delta, created_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (post_id) DO NOTHING`,
		postID, userID, delta)
	if err != nil {
		return fmt.Errorf("failed to record post award: %w", err)
	}
	return nil
}

// TakePostAward removes and returns the recorded delta for a post owned by
// the user. Returns found=false when no record exists.
func (s *ScoreStore) TakePostAward(ctx context.Context, postID, userID string) (float64, bool, error) {
	var delta float64
	err := s.db.QueryRowContext(ctx, `
		DELETE FROM post_awards WHERE post_id = $1 AND user_id = $2
		RETURNING awarded_delta`,
		postID, userID).Scan(&delta)
	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to take post award: %w", err)
	}
	return delta, true, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanScore(row rowScanner) (*domain.UserScore, error) {
	var (
		s          domain.UserScore
		points     [6]float64
		stamps     [6][]time.Time
		events     []string
		lastActive sql.NullTime
	)
	err := row.Scan(
		&s.UserID,
		&points[0], &points[1], &points[2], &points[3], &points[4], &points[5],
		pq.Array(&stamps[0]), pq.Array(&stamps[1]), pq.Array(&stamps[2]),
		pq.Array(&stamps[3]), pq.Array(&stamps[4]), pq.Array(&stamps[5]),
		&s.OneTimePoints, pq.Array(&events),
		&s.LastResetDate, &lastActive,
		&s.ConsecutiveActivityDays, &s.HistoricalEngagementScore,
	)
	if err != nil {
		return nil, err
	}

	order := []domain.Category{
		domain.CategoryPost, domain.CategoryLike, domain.CategoryComment,
		domain.CategoryCrypto, domain.CategoryTipping, domain.CategoryReferral,
	}
	s.Points = make(map[domain.Category]float64, 6)
	s.Timestamps = make(map[domain.Category][]time.Time, 6)
	for i, c := range order {
		s.Points[c] = points[i]
		s.Timestamps[c] = stamps[i]
	}
	s.OneTimeEvents = make([]domain.OneTimeEvent, len(events))
	for i, e := range events {
		s.OneTimeEvents[i] = domain.OneTimeEvent(e)
	}
	if lastActive.Valid {
		s.LastActiveDate = lastActive.Time
	}
	s.SortTimestamps()
	return &s, nil
}

func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}

// retryableSQL reports whether the error is a transient lock/serialization
// failure worth retrying.
func retryableSQL(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "40001", "40P01", "55P03": // serialization, deadlock, lock_not_available
			return true
		}
	}
	return false
}
