// Package contentindex stores post content for near-duplicate detection.
// Two implementations exist: an HTTP client for a remote vector-store
// service and an in-memory cosine index for tests and single-node runs.
package contentindex

import (
	"context"
	"errors"
)

var (
	// ErrConflict is returned when inserting a post_id that already exists.
	ErrConflict = errors.New("post id already indexed")

	// ErrNotFound is returned when deleting a post that is absent or owned
	// by a different user.
	ErrNotFound = errors.New("post not found in index")
)

// Post is the indexed content of one post.
type Post struct {
	ID     string
	UserID string
	Text   string
	Image  []byte
}

// Match is the nearest indexed neighbor of a query.
type Match struct {
	PostID   string
	Distance float64
}

// Index is the content similarity store.
//
// Nearest returns found=false on an empty index; callers treat that as
// full originality.
type Index interface {
	Insert(ctx context.Context, post Post) error
	Nearest(ctx context.Context, text string, image []byte) (Match, bool, error)
	Delete(ctx context.Context, postID, userID string) error
	Count(ctx context.Context) (int, error)
}
