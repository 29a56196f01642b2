// Package validate runs the content acceptance pipeline for posts and
// comments: gibberish screening, near-duplicate lookup, quality scoring,
// and index registration.
package validate

import (
	"context"
	"errors"
	"fmt"

	"github.com/chainsocial/scoring-service/internal/contentindex"
	"github.com/chainsocial/scoring-service/internal/gibberish"
	"github.com/chainsocial/scoring-service/internal/pkg/logger"
	"github.com/chainsocial/scoring-service/internal/quality"
)

// Post is the content submitted for validation.
type Post struct {
	ID     string
	UserID string
	Text   string
	Image  []byte
}

// Result is the validation verdict for a post or comment.
type Result struct {
	Approved bool
	Reason   string

	// Quality and Originality feed the post award formula. Degraded marks
	// a neutral quality score taken because the model was unavailable.
	Quality     int
	Originality float64
	Degraded    bool
}

// Validator composes the acceptance checks.
type Validator struct {
	gibber       *gibberish.Classifier
	index        contentindex.Index
	scorer       quality.Scorer
	dupThreshold float64
}

// New creates a Validator.
func New(gibber *gibberish.Classifier, index contentindex.Index, scorer quality.Scorer, dupThreshold float64) *Validator {
	return &Validator{
		gibber:       gibber,
		index:        index,
		scorer:       scorer,
		dupThreshold: dupThreshold,
	}
}

// ValidatePost runs the full pipeline. The checks run cheapest first so a
// gibberish post never pays for a model call. An accepted post has been
// inserted into the similarity index; a redelivered duplicate hits the
// post_id conflict and rejects without a second award.
func (v *Validator) ValidatePost(ctx context.Context, post Post) (Result, error) {
	if verdict := v.gibber.Check(ctx, post.Text); !verdict.OK {
		return Result{Reason: verdict.Reason}, nil
	}

	post.Image = NormalizeImage(post.Image)

	originality := 1.0
	match, found, err := v.index.Nearest(ctx, post.Text, post.Image)
	if err != nil {
		return Result{}, fmt.Errorf("nearest lookup: %w", err)
	}
	if found {
		if match.Distance <= v.dupThreshold {
			return Result{Reason: fmt.Sprintf("duplicate of %s", match.PostID)}, nil
		}
		originality = match.Distance
		if originality > 1 {
			originality = 1
		}
	}

	score, degraded := v.scorer.Score(ctx, post.Text, post.Image)

	err = v.index.Insert(ctx, contentindex.Post{
		ID:     post.ID,
		UserID: post.UserID,
		Text:   post.Text,
		Image:  post.Image,
	})
	if errors.Is(err, contentindex.ErrConflict) {
		logger.Info("validate: post already indexed, rejecting replay", "post_id", post.ID)
		return Result{Reason: "post_id conflict"}, nil
	}
	if err != nil {
		return Result{}, fmt.Errorf("index insert: %w", err)
	}

	return Result{
		Approved:    true,
		Quality:     score,
		Originality: originality,
		Degraded:    degraded,
	}, nil
}

// ValidateComment screens a comment. Comments are not indexed or quality
// scored; only the gibberish checks apply.
func (v *Validator) ValidateComment(ctx context.Context, text string) Result {
	if verdict := v.gibber.Check(ctx, text); !verdict.OK {
		return Result{Reason: verdict.Reason}
	}
	return Result{Approved: true}
}
