package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chainsocial/scoring-service/internal/domain"
	"github.com/chainsocial/scoring-service/internal/scoring"
)

var scoreCols = []string{
	"user_id",
	"post_points", "like_points", "comment_points", "crypto_points", "tipping_points", "referral_points",
	"post_ts", "like_ts", "comment_ts", "crypto_ts", "tipping_ts", "referral_ts",
	"one_time_points", "one_time_events",
	"last_reset_date", "last_active_date", "consecutive_activity_days", "historical_engagement_score",
}

func emptyScoreRow(userID string, reset time.Time) *sqlmock.Rows {
	return sqlmock.NewRows(scoreCols).AddRow(
		userID,
		0.0, 0.0, 0.0, 0.0, 0.0, 0.0,
		"{}", "{}", "{}", "{}", "{}", "{}",
		0.0, "{}",
		reset, nil, 0, 0.0,
	)
}

func TestGetNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT .+ FROM user_scores WHERE user_id").
		WithArgs("0xUserA").
		WillReturnRows(sqlmock.NewRows(scoreCols))

	store := NewScoreStore(db)
	_, err = store.Get(context.Background(), "0xUserA")
	assert.ErrorIs(t, err, scoring.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetScansRecord(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	reset := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery("SELECT .+ FROM user_scores WHERE user_id").
		WithArgs("0xUserA").
		WillReturnRows(emptyScoreRow("0xUserA", reset))

	store := NewScoreStore(db)
	s, err := store.Get(context.Background(), "0xUserA")
	require.NoError(t, err)
	assert.Equal(t, "0xUserA", s.UserID)
	assert.Equal(t, reset, s.LastResetDate)
	assert.Empty(t, s.Timestamps[domain.CategoryPost])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateLocksRowAndWrites(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	reset := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO user_scores").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("SELECT .+ FROM user_scores WHERE user_id = \\$1 FOR UPDATE").
		WithArgs("0xUserA").
		WillReturnRows(emptyScoreRow("0xUserA", reset))
	mock.ExpectExec("UPDATE user_scores SET").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	store := NewScoreStore(db)
	err = store.Update(context.Background(), "0xUserA", func(s *domain.UserScore) error {
		s.Points[domain.CategoryLike] += 0.1
		return nil
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateMutatorErrorRollsBack(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	reset := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO user_scores").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("FOR UPDATE").
		WithArgs("0xUserA").
		WillReturnRows(emptyScoreRow("0xUserA", reset))
	mock.ExpectRollback()

	store := NewScoreStore(db)
	err = store.Update(context.Background(), "0xUserA", func(s *domain.UserScore) error {
		return assert.AnError
	})
	assert.ErrorIs(t, err, assert.AnError)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTakePostAward(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("DELETE FROM post_awards").
		WithArgs("p1", "0xUserA").
		WillReturnRows(sqlmock.NewRows([]string{"awarded_delta"}).AddRow(1.55))

	store := NewScoreStore(db)
	delta, found, err := store.TakePostAward(context.Background(), "p1", "0xUserA")
	require.NoError(t, err)
	assert.True(t, found)
	assert.InDelta(t, 1.55, delta, 1e-9)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTakePostAwardMissing(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("DELETE FROM post_awards").
		WithArgs("p1", "0xUserB").
		WillReturnRows(sqlmock.NewRows([]string{"awarded_delta"}))

	store := NewScoreStore(db)
	_, found, err := store.TakePostAward(context.Background(), "p1", "0xUserB")
	require.NoError(t, err)
	assert.False(t, found)
	assert.NoError(t, mock.ExpectationsWereMet())
}
