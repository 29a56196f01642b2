package validate

import (
	"bytes"
	"context"
	"image"
	"image/jpeg"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chainsocial/scoring-service/internal/contentindex"
	"github.com/chainsocial/scoring-service/internal/gibberish"
	"github.com/chainsocial/scoring-service/internal/quality"
)

func newTestValidator(score int) (*Validator, *contentindex.MemoryIndex) {
	idx := contentindex.NewMemoryIndex()
	v := New(gibberish.New(), idx, quality.StaticScorer{Value: score}, 0.1)
	return v, idx
}

func TestValidatePostAccepted(t *testing.T) {
	ctx := context.Background()
	v, idx := newTestValidator(8)

	res, err := v.ValidatePost(ctx, Post{
		ID: "p1", UserID: "0xUserA",
		Text: "Spent the weekend building a solar charger for my bike lights.",
	})
	require.NoError(t, err)
	assert.True(t, res.Approved)
	assert.Equal(t, 8, res.Quality)
	// First post into an empty index gets full originality
	assert.InDelta(t, 1.0, res.Originality, 1e-9)
	assert.False(t, res.Degraded)

	n, err := idx.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestValidatePostRejectsGibberish(t *testing.T) {
	ctx := context.Background()
	v, idx := newTestValidator(8)

	res, err := v.ValidatePost(ctx, Post{
		ID: "p1", UserID: "0xUserA",
		Text: "asdfghjkl qwerty zxcvbn",
	})
	require.NoError(t, err)
	assert.False(t, res.Approved)
	assert.Equal(t, "keyboard pattern detected", res.Reason)

	// Rejected posts never enter the index
	n, err := idx.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestValidatePostRejectsDuplicate(t *testing.T) {
	ctx := context.Background()
	v, _ := newTestValidator(8)

	text := "Spent the weekend building a solar charger for my bike lights."
	_, err := v.ValidatePost(ctx, Post{ID: "p1", UserID: "0xUserA", Text: text})
	require.NoError(t, err)

	res, err := v.ValidatePost(ctx, Post{ID: "p2", UserID: "0xUserB", Text: text})
	require.NoError(t, err)
	assert.False(t, res.Approved)
	assert.Equal(t, "duplicate of p1", res.Reason)
}

func TestValidatePostRejectsIDConflict(t *testing.T) {
	ctx := context.Background()
	v, _ := newTestValidator(8)

	_, err := v.ValidatePost(ctx, Post{
		ID: "p1", UserID: "0xUserA",
		Text: "Spent the weekend building a solar charger for my bike lights.",
	})
	require.NoError(t, err)

	// Same post_id redelivered with different text
	res, err := v.ValidatePost(ctx, Post{
		ID: "p1", UserID: "0xUserA",
		Text: "Quarterly protocol fee revenue hit a new high in July.",
	})
	require.NoError(t, err)
	assert.False(t, res.Approved)
	assert.Equal(t, "post_id conflict", res.Reason)
}

func TestValidatePostOriginalityFromDistance(t *testing.T) {
	ctx := context.Background()
	v, _ := newTestValidator(8)

	_, err := v.ValidatePost(ctx, Post{
		ID: "p1", UserID: "0xUserA",
		Text: "Spent the weekend building a solar charger for my bike lights.",
	})
	require.NoError(t, err)

	res, err := v.ValidatePost(ctx, Post{
		ID: "p2", UserID: "0xUserB",
		Text: "Quarterly protocol fee revenue hit a new high in July.",
	})
	require.NoError(t, err)
	assert.True(t, res.Approved)
	assert.Greater(t, res.Originality, 0.1)
	assert.LessOrEqual(t, res.Originality, 1.0)
}

func TestValidateComment(t *testing.T) {
	ctx := context.Background()
	v, _ := newTestValidator(8)

	res := v.ValidateComment(ctx, "Really helpful writeup, thanks for posting it.")
	assert.True(t, res.Approved)

	res = v.ValidateComment(ctx, "asdfghjkl qwerty zxcvbn")
	assert.False(t, res.Approved)
	assert.NotEmpty(t, res.Reason)
}

func TestNormalizeImageDownscales(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 1024, 768))
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, src, nil))

	out := NormalizeImage(buf.Bytes())
	require.NotEmpty(t, out)

	decoded, _, err := image.Decode(bytes.NewReader(out))
	require.NoError(t, err)
	assert.LessOrEqual(t, decoded.Bounds().Dx(), 512)
	assert.LessOrEqual(t, decoded.Bounds().Dy(), 512)
}

func TestNormalizeImagePassesThroughGarbage(t *testing.T) {
	data := []byte("not an image at all")
	assert.Equal(t, data, NormalizeImage(data))
	assert.Nil(t, NormalizeImage(nil))
}
