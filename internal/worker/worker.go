// Package worker runs the asynchronous half of intake: claimed post and
// comment jobs flow through validation and scoring, and their outcomes go
// back out as webhooks.
package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/chainsocial/scoring-service/internal/config"
	"github.com/chainsocial/scoring-service/internal/domain"
	"github.com/chainsocial/scoring-service/internal/pkg/logger"
	"github.com/chainsocial/scoring-service/internal/queue"
	"github.com/chainsocial/scoring-service/internal/scoring"
	"github.com/chainsocial/scoring-service/internal/validate"
	"github.com/chainsocial/scoring-service/internal/webhook"
)

// Pool claims jobs from the queue with a fixed number of workers.
type Pool struct {
	queue      queue.Queue
	validator  *validate.Validator
	engine     *scoring.Engine
	dispatcher *webhook.Dispatcher
	cfg        config.WorkerConfig
	id         string
}

// NewPool creates a worker pool.
func NewPool(q queue.Queue, v *validate.Validator, e *scoring.Engine,
	d *webhook.Dispatcher, cfg config.WorkerConfig) *Pool {
	return &Pool{
		queue:      q,
		validator:  v,
		engine:     e,
		dispatcher: d,
		cfg:        cfg,
		id:         uuid.NewString(),
	}
}

// Run starts the workers and blocks until the context is canceled.
func (p *Pool) Run(ctx context.Context) {
	logger.Info("worker: pool starting", "workers", p.cfg.Count, "worker_id", p.id)

	var wg sync.WaitGroup
	for i := 0; i < p.cfg.Count; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			p.loop(ctx, fmt.Sprintf("%s-%d", p.id, n))
		}(i)
	}
	wg.Wait()
	logger.Info("worker: pool stopped")
}

func (p *Pool) loop(ctx context.Context, workerID string) {
	for {
		if ctx.Err() != nil {
			return
		}

		jobs, err := p.queue.Claim(ctx, workerID, p.cfg.ClaimBatch)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Error("worker: claim failed", "error", err)
			jobs = nil
		}

		if len(jobs) == 0 {
			select {
			case <-time.After(p.cfg.PollInterval):
			case <-ctx.Done():
				return
			}
			continue
		}

		for _, job := range jobs {
			p.processJob(ctx, job)
		}
	}
}

// processJob runs one job to completion: handler success acks, handler
// failure requeues (or dead-letters once the attempt budget is spent).
func (p *Pool) processJob(ctx context.Context, job queue.Job) {
	err := p.handle(ctx, job)
	if err != nil {
		logger.Warn("worker: job failed", "job_id", job.ID, "kind", job.Kind,
			"attempt", job.Attempts, "error", err)
		if ferr := p.queue.Fail(ctx, job.ID, err.Error(), p.cfg.MaxAttempts); ferr != nil {
			logger.Error("worker: failed to requeue job", "job_id", job.ID, "error", ferr)
		}
		return
	}
	if aerr := p.queue.Ack(ctx, job.ID); aerr != nil {
		logger.Error("worker: failed to ack job", "job_id", job.ID, "error", aerr)
	}
}

func (p *Pool) handle(ctx context.Context, job queue.Job) error {
	switch job.Kind {
	case queue.KindPost:
		return p.handlePost(ctx, job)
	case queue.KindComment:
		return p.handleComment(ctx, job)
	case queue.KindWebhook:
		return p.handleWebhook(ctx, job)
	default:
		// Unknown kinds are dropped, not retried
		logger.Error("worker: unknown job kind, dropping", "job_id", job.ID, "kind", job.Kind)
		return nil
	}
}

func (p *Pool) handlePost(ctx context.Context, job queue.Job) error {
	var pj PostJob
	if err := json.Unmarshal(job.Payload, &pj); err != nil {
		logger.Error("worker: malformed post job, dropping", "job_id", job.ID, "error", err)
		return nil
	}

	res, err := p.validator.ValidatePost(ctx, validate.Post{
		ID:     pj.PostID,
		UserID: awardAccount(pj.CreatorAddress, pj.InteractorAddress),
		Text:   pj.Text,
		Image:  pj.Image,
	})
	if err != nil {
		p.notifyFinalFailure(ctx, job, pj.WebhookURL, pj.PostID,
			pj.CreatorAddress, pj.InteractorAddress, "validation unavailable")
		return fmt.Errorf("post validation: %w", err)
	}

	validation := webhook.Validation{PostID: pj.PostID, Reason: res.Reason}
	if res.Approved {
		outcome, err := p.engine.Apply(ctx, awardAccount(pj.CreatorAddress, pj.InteractorAddress),
			domain.CategoryPost, &scoring.PostContext{
				PostID:      pj.PostID,
				Quality:     res.Quality,
				Originality: res.Originality,
				Degraded:    res.Degraded,
			})
		if err != nil {
			p.notifyFinalFailure(ctx, job, pj.WebhookURL, pj.PostID,
				pj.CreatorAddress, pj.InteractorAddress, "scoring unavailable")
			return fmt.Errorf("post scoring: %w", err)
		}
		validation.Approved = outcome.Status == scoring.StatusAccepted
		validation.Reason = outcome.Reason
		validation.SignificanceScore = outcome.Delta
		validation.FinalUserScore = outcome.NormalizedScore
	}

	return p.sendWebhook(ctx, pj.WebhookURL, webhook.Payload{
		CreatorAddress:    pj.CreatorAddress,
		InteractorAddress: pj.InteractorAddress,
		Validation:        validation,
	})
}

func (p *Pool) handleComment(ctx context.Context, job queue.Job) error {
	var cj CommentJob
	if err := json.Unmarshal(job.Payload, &cj); err != nil {
		logger.Error("worker: malformed comment job, dropping", "job_id", job.ID, "error", err)
		return nil
	}

	res := p.validator.ValidateComment(ctx, cj.Text)

	validation := webhook.Validation{PostID: cj.PostID, Reason: res.Reason}
	if res.Approved {
		outcome, err := p.engine.Apply(ctx, awardAccount(cj.CreatorAddress, cj.InteractorAddress),
			domain.CategoryComment, nil)
		if err != nil {
			p.notifyFinalFailure(ctx, job, cj.WebhookURL, cj.PostID,
				cj.CreatorAddress, cj.InteractorAddress, "scoring unavailable")
			return fmt.Errorf("comment scoring: %w", err)
		}
		validation.Approved = outcome.Status == scoring.StatusAccepted
		validation.Reason = outcome.Reason
		validation.SignificanceScore = outcome.Delta
		validation.FinalUserScore = outcome.NormalizedScore
	}

	return p.sendWebhook(ctx, cj.WebhookURL, webhook.Payload{
		CreatorAddress:    cj.CreatorAddress,
		InteractorAddress: cj.InteractorAddress,
		Validation:        validation,
	})
}

// notifyFinalFailure tells the caller a post could not be processed once
// the job is out of attempts. Earlier attempts stay silent so a transient
// outage that recovers on retry never reports a rejection.
func (p *Pool) notifyFinalFailure(ctx context.Context, job queue.Job, url, postID, creator, interactor, reason string) {
	if job.Attempts < p.cfg.MaxAttempts {
		return
	}
	err := p.sendWebhook(ctx, url, webhook.Payload{
		CreatorAddress:    creator,
		InteractorAddress: interactor,
		Validation: webhook.Validation{
			PostID: postID,
			Reason: reason,
		},
	})
	if err != nil {
		logger.Error("worker: failed to queue failure webhook", "job_id", job.ID, "error", err)
	}
}

// sendWebhook queues the outcome for delivery so it survives a restart
// between scoring and notification.
func (p *Pool) sendWebhook(ctx context.Context, url string, payload webhook.Payload) error {
	if url == "" {
		return nil
	}
	body, err := json.Marshal(WebhookJob{URL: url, Payload: payload})
	if err != nil {
		return fmt.Errorf("marshal webhook job: %w", err)
	}
	if _, err := p.queue.Enqueue(ctx, queue.KindWebhook, body); err != nil {
		return fmt.Errorf("enqueue webhook job: %w", err)
	}
	return nil
}

// handleWebhook delivers a queued webhook. The dispatcher already retried
// transient failures with backoff, so a remaining error means the endpoint
// is broken; the job completes and the payload is dropped.
func (p *Pool) handleWebhook(ctx context.Context, job queue.Job) error {
	var wj WebhookJob
	if err := json.Unmarshal(job.Payload, &wj); err != nil {
		logger.Error("worker: malformed webhook job, dropping", "job_id", job.ID, "error", err)
		return nil
	}
	if err := p.dispatcher.Deliver(ctx, wj.URL, wj.Payload); err != nil {
		logger.Warn("worker: webhook undeliverable, dropping", "job_id", job.ID, "error", err)
	}
	return nil
}
