package scoring

import (
	"context"

	"github.com/chainsocial/scoring-service/internal/domain"
)

// Repository is the persistence contract for user score records.
//
// Update is the only write path for score state: it runs the mutator over
// the user's current record inside a transaction that holds a row lock, so
// concurrent interactions for one user serialize. The record is created
// empty if the user has never interacted. Returning an error from the
// mutator aborts the write.
type Repository interface {
	Get(ctx context.Context, userID string) (*domain.UserScore, error)
	Update(ctx context.Context, userID string, fn func(*domain.UserScore) error) error

	// ScanAll visits every score record. Used by the daily analysis.
	ScanAll(ctx context.Context, fn func(*domain.UserScore) error) error

	// RecordPostAward stores the exact delta granted for a post so a later
	// delete can refund it; TakePostAward removes and returns it.
	RecordPostAward(ctx context.Context, postID, userID string, delta float64) error
	TakePostAward(ctx context.Context, postID, userID string) (float64, bool, error)
}
