// Package queue is the durable job queue between intake and the scoring
// workers. Jobs survive restarts and are delivered at least once; a
// visibility timeout returns jobs whose worker died, and repeated failures
// land in a dead-letter state for inspection.
package queue

import (
	"context"
	"time"
)

// Kind identifies what a job carries.
type Kind string

const (
	KindPost    Kind = "post"
	KindComment Kind = "comment"
	KindWebhook Kind = "webhook"
)

// Job is one unit of queued work.
type Job struct {
	ID         string
	Kind       Kind
	Payload    []byte
	Attempts   int
	EnqueuedAt time.Time
}

// Queue is the job queue contract.
//
// Claim marks up to limit ready jobs as owned by workerID and increments
// their attempt counters; a job not acked or failed within the visibility
// window becomes claimable again. Fail either requeues the job or, when
// its attempts reached maxAttempts, parks it dead.
type Queue interface {
	Enqueue(ctx context.Context, kind Kind, payload []byte) (string, error)
	Claim(ctx context.Context, workerID string, limit int) ([]Job, error)
	Ack(ctx context.Context, jobID string) error
	Fail(ctx context.Context, jobID, reason string, maxAttempts int) error
}
