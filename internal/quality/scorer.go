// Package quality rates post content 0..10 with a generative model on
// Amazon Bedrock. Model failures degrade to a neutral score instead of
// blocking intake.
package quality

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"

	"github.com/chainsocial/scoring-service/internal/config"
	"github.com/chainsocial/scoring-service/internal/pkg/logger"
)

// DefaultScore is returned when the model cannot be reached or its output
// cannot be parsed within the retry budget.
const DefaultScore = 5

// Scorer rates content quality. degraded reports that the score is the
// neutral fallback rather than a model verdict.
type Scorer interface {
	Score(ctx context.Context, text string, image []byte) (score int, degraded bool)
}

type modelInvoker interface {
	InvokeModel(ctx context.Context, params *bedrockruntime.InvokeModelInput,
		optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error)
}

// BedrockScorer implements Scorer on bedrockruntime.InvokeModel with an
// Anthropic-format request payload.
type BedrockScorer struct {
	client     modelInvoker
	modelID    string
	maxRetries int
	baseDelay  time.Duration
	budget     time.Duration
	sleep      func(context.Context, time.Duration) error
}

// NewBedrockScorer builds a scorer from the quality configuration,
// resolving AWS credentials from the default chain.
func NewBedrockScorer(ctx context.Context, cfg config.QualityConfig) (*BedrockScorer, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return &BedrockScorer{
		client:     bedrockruntime.NewFromConfig(awsCfg),
		modelID:    cfg.ModelID,
		maxRetries: cfg.MaxRetries,
		baseDelay:  cfg.BaseDelay,
		budget:     cfg.Budget,
		sleep:      sleepCtx,
	}, nil
}

// newForTest wires a stub invoker with no delays.
func newForTest(client modelInvoker) *BedrockScorer {
	return &BedrockScorer{
		client:     client,
		modelID:    "test-model",
		maxRetries: 3,
		baseDelay:  time.Millisecond,
		budget:     time.Second,
		sleep:      func(context.Context, time.Duration) error { return nil },
	}
}

type anthropicRequest struct {
	AnthropicVersion string             `json:"anthropic_version"`
	MaxTokens        int                `json:"max_tokens"`
	Messages         []anthropicMessage `json:"messages"`
}

type anthropicMessage struct {
	Role    string             `json:"role"`
	Content []anthropicContent `json:"content"`
}

type anthropicContent struct {
	Type   string           `json:"type"`
	Text   string           `json:"text,omitempty"`
	Source *anthropicSource `json:"source,omitempty"`
}

type anthropicSource struct {
	Type      string `json:"type"`
	MediaType string `json:"media_type"`
	Data      string `json:"data"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

const prompt = `Rate the following social media post on a scale of 0 to 10, ` +
	`judging effort, creativity, and clarity. Respond with only the number, nothing else.

Post:
%s`

// Score rates the content. The whole call, retries included, is bounded by
// the configured budget; exhaustion returns the neutral default with
// degraded=true.
func (b *BedrockScorer) Score(ctx context.Context, text string, image []byte) (int, bool) {
	ctx, cancel := context.WithTimeout(ctx, b.budget)
	defer cancel()

	var lastErr error
	for attempt := 0; attempt <= b.maxRetries; attempt++ {
		if attempt > 0 {
			delay := b.baseDelay * time.Duration(1<<(attempt-1))
			if err := b.sleep(ctx, delay); err != nil {
				lastErr = err
				break
			}
		}

		score, err := b.invoke(ctx, text, image)
		if err == nil {
			return score, false
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}
	}

	logger.Warn("quality: model scoring failed, using neutral default",
		"score", DefaultScore, "error", lastErr)
	return DefaultScore, true
}

func (b *BedrockScorer) invoke(ctx context.Context, text string, image []byte) (int, error) {
	content := []anthropicContent{
		{Type: "text", Text: fmt.Sprintf(prompt, text)},
	}
	if len(image) > 0 {
		content = append(content, anthropicContent{
			Type: "image",
			Source: &anthropicSource{
				Type:      "base64",
				MediaType: "image/jpeg",
				Data:      base64.StdEncoding.EncodeToString(image),
			},
		})
	}

	body, err := json.Marshal(anthropicRequest{
		AnthropicVersion: "bedrock-2023-05-31",
		MaxTokens:        16,
		Messages:         []anthropicMessage{{Role: "user", Content: content}},
	})
	if err != nil {
		return 0, fmt.Errorf("failed to marshal model request: %w", err)
	}

	out, err := b.client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(b.modelID),
		ContentType: aws.String("application/json"),
		Body:        body,
	})
	if err != nil {
		return 0, fmt.Errorf("model invocation failed: %w", err)
	}

	var resp anthropicResponse
	if err := json.Unmarshal(out.Body, &resp); err != nil {
		return 0, fmt.Errorf("failed to parse model response: %w", err)
	}
	for _, c := range resp.Content {
		if c.Type == "text" {
			if score, ok := parseScore(c.Text); ok {
				return score, nil
			}
		}
	}
	return 0, fmt.Errorf("no score found in model response")
}

// parseScore extracts the first integer in the text, clamped to 0..10.
func parseScore(text string) (int, bool) {
	start := -1
	for i, r := range text {
		if unicode.IsDigit(r) {
			start = i
			break
		}
	}
	if start < 0 {
		return 0, false
	}
	end := start
	for end < len(text) && end-start < 4 && text[end] >= '0' && text[end] <= '9' {
		end++
	}
	n, err := strconv.Atoi(strings.TrimSpace(text[start:end]))
	if err != nil {
		return 0, false
	}
	if n < 0 {
		n = 0
	} else if n > 10 {
		n = 10
	}
	return n, true
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// StaticScorer returns a fixed score. Used by tests and offline runs.
type StaticScorer struct {
	Value int
}

func (s StaticScorer) Score(ctx context.Context, text string, image []byte) (int, bool) {
	return s.Value, false
}
