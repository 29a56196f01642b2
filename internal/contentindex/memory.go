package contentindex

import (
	"context"
	"math"
	"strings"
	"sync"
)

// MemoryIndex is an in-memory Index using cosine distance over character
// trigram frequency vectors. Image bytes do not contribute to similarity;
// duplicate detection is text-driven.
type MemoryIndex struct {
	mu    sync.RWMutex
	posts map[string]memoryEntry
}

type memoryEntry struct {
	userID string
	vector map[string]float64
}

// NewMemoryIndex creates an empty in-memory index.
func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{posts: make(map[string]memoryEntry)}
}

func (m *MemoryIndex) Insert(ctx context.Context, post Post) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.posts[post.ID]; ok {
		return ErrConflict
	}
	m.posts[post.ID] = memoryEntry{userID: post.UserID, vector: trigramVector(post.Text)}
	return nil
}

func (m *MemoryIndex) Nearest(ctx context.Context, text string, image []byte) (Match, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if len(m.posts) == 0 {
		return Match{}, false, nil
	}

	query := trigramVector(text)
	best := Match{Distance: math.Inf(1)}
	for id, entry := range m.posts {
		d := cosineDistance(query, entry.vector)
		if d < best.Distance || (d == best.Distance && id < best.PostID) {
			best = Match{PostID: id, Distance: d}
		}
	}
	return best, true, nil
}

func (m *MemoryIndex) Delete(ctx context.Context, postID, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.posts[postID]
	if !ok || entry.userID != userID {
		return ErrNotFound
	}
	delete(m.posts, postID)
	return nil
}

func (m *MemoryIndex) Count(ctx context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.posts), nil
}

// trigramVector builds a character trigram frequency vector over the
// lowercased text with collapsed whitespace.
func trigramVector(text string) map[string]float64 {
	norm := strings.Join(strings.Fields(strings.ToLower(text)), " ")
	vec := make(map[string]float64)
	runes := []rune(norm)
	if len(runes) < 3 {
		if norm != "" {
			vec[norm] = 1
		}
		return vec
	}
	for i := 0; i+3 <= len(runes); i++ {
		vec[string(runes[i:i+3])]++
	}
	return vec
}

// cosineDistance is 1 minus the cosine similarity of two sparse vectors.
// Disjoint or empty vectors are maximally distant.
func cosineDistance(a, b map[string]float64) float64 {
	var dot, na, nb float64
	for k, va := range a {
		na += va * va
		if vb, ok := b[k]; ok {
			dot += va * vb
		}
	}
	for _, vb := range b {
		nb += vb * vb
	}
	if na == 0 || nb == 0 {
		return 1
	}
	sim := dot / (math.Sqrt(na) * math.Sqrt(nb))
	if sim > 1 {
		sim = 1
	}
	return 1 - sim
}
