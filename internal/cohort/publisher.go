package cohort

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrNoResult is returned when no analysis result has been published yet.
var ErrNoResult = errors.New("no analysis result published")

const latestKey = "cohorts:latest"

// Publisher stores the latest analysis result in Redis so the read
// endpoints and downstream reward distribution see one consistent view.
type Publisher struct {
	client *redis.Client
	ttl    time.Duration
}

// NewPublisher creates a publisher. Results expire after 48 hours so a
// dead scheduler cannot serve week-old cohorts as current.
func NewPublisher(client *redis.Client) *Publisher {
	return &Publisher{client: client, ttl: 48 * time.Hour}
}

// Publish stores the result as the latest.
func (p *Publisher) Publish(ctx context.Context, result *AnalysisResult) error {
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal analysis result: %w", err)
	}
	if err := p.client.Set(ctx, latestKey, data, p.ttl).Err(); err != nil {
		return fmt.Errorf("publish analysis result: %w", err)
	}
	return nil
}

// Latest returns the most recently published result.
func (p *Publisher) Latest(ctx context.Context) (*AnalysisResult, error) {
	data, err := p.client.Get(ctx, latestKey).Bytes()
	if err == redis.Nil {
		return nil, ErrNoResult
	}
	if err != nil {
		return nil, fmt.Errorf("load analysis result: %w", err)
	}
	var result AnalysisResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("decode analysis result: %w", err)
	}
	return &result, nil
}
