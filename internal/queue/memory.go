package queue

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryQueue is an in-process Queue with the same claim semantics as the
// Postgres implementation. Backs worker tests and single-node runs.
type MemoryQueue struct {
	mu         sync.Mutex
	jobs       []*memJob
	visibility time.Duration
	now        func() time.Time

	dead []Job
}

type memJob struct {
	job      Job
	status   string
	lockedAt time.Time
}

// NewMemoryQueue creates an empty in-memory queue.
func NewMemoryQueue(visibility time.Duration) *MemoryQueue {
	if visibility == 0 {
		visibility = 5 * time.Minute
	}
	return &MemoryQueue{visibility: visibility, now: time.Now}
}

// SetClock overrides the time source. Tests only.
func (q *MemoryQueue) SetClock(now func() time.Time) { q.now = now }

func (q *MemoryQueue) Enqueue(ctx context.Context, kind Kind, payload []byte) (string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	id := uuid.NewString()
	q.jobs = append(q.jobs, &memJob{
		job:    Job{ID: id, Kind: kind, Payload: payload, EnqueuedAt: q.now()},
		status: "pending",
	})
	return id, nil
}

func (q *MemoryQueue) Claim(ctx context.Context, workerID string, limit int) ([]Job, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	now := q.now()
	var out []Job
	for _, j := range q.jobs {
		if len(out) >= limit {
			break
		}
		ready := j.status == "pending" ||
			(j.status == "processing" && now.Sub(j.lockedAt) > q.visibility)
		if !ready {
			continue
		}
		j.status = "processing"
		j.lockedAt = now
		j.job.Attempts++
		out = append(out, j.job)
	}
	return out, nil
}

func (q *MemoryQueue) Ack(ctx context.Context, jobID string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i, j := range q.jobs {
		if j.job.ID == jobID {
			q.jobs = append(q.jobs[:i], q.jobs[i+1:]...)
			return nil
		}
	}
	return nil
}

func (q *MemoryQueue) Fail(ctx context.Context, jobID, reason string, maxAttempts int) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i, j := range q.jobs {
		if j.job.ID != jobID {
			continue
		}
		if j.job.Attempts >= maxAttempts {
			q.dead = append(q.dead, j.job)
			q.jobs = append(q.jobs[:i], q.jobs[i+1:]...)
		} else {
			j.status = "pending"
		}
		return nil
	}
	return nil
}

// Dead returns the dead-lettered jobs. Tests only.
func (q *MemoryQueue) Dead() []Job {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]Job(nil), q.dead...)
}
