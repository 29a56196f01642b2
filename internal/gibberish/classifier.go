// Package gibberish detects low-effort or keyboard-mash text before it can
// earn points. Rule and statistical checks run locally; an optional
// external ML model adds a third signal and fails open when unreachable.
package gibberish

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"unicode"

	"github.com/chainsocial/scoring-service/internal/pkg/httpretry"
	"github.com/chainsocial/scoring-service/internal/pkg/logger"
)

// Verdict is the outcome of a gibberish check.
type Verdict struct {
	OK     bool
	Reason string
}

func reject(reason string) Verdict { return Verdict{Reason: reason} }

var accepted = Verdict{OK: true}

// Classifier runs the layered gibberish checks.
type Classifier struct {
	modelURL      string
	minConfidence float64
	client        httpretry.HTTPDoer
}

// Option configures a Classifier.
type Option func(*Classifier)

// WithModel enables the external ML signal at the given URL. Confidence at
// or above minConfidence on the gibberish label rejects.
func WithModel(url string, minConfidence float64, client httpretry.HTTPDoer) Option {
	return func(c *Classifier) {
		c.modelURL = url
		c.minConfidence = minConfidence
		c.client = client
	}
}

// New creates a Classifier. Without options only the local checks run.
func New(opts ...Option) *Classifier {
	c := &Classifier{minConfidence: 0.85}
	for _, opt := range opts {
		opt(c)
	}
	if c.client == nil {
		c.client = httpretry.NewRetryClient(nil, 2)
	}
	return c
}

// Check classifies text. Rule checks run first, then statistical checks,
// then the ML model if configured. The first rejecting signal wins.
func (c *Classifier) Check(ctx context.Context, text string) Verdict {
	if v := checkRules(text); !v.OK {
		return v
	}
	if v := checkStatistics(text); !v.OK {
		return v
	}
	if c.modelURL != "" {
		if v := c.checkModel(ctx, text); !v.OK {
			return v
		}
	}
	return accepted
}

var keyboardRows = []string{
	"qwertyuiop", "asdfghjkl", "zxcvbnm",
	"poiuytrewq", "lkjhgfdsa", "mnbvcxz",
	"1234567890", "0987654321",
}

func checkRules(text string) Verdict {
	trimmed := strings.TrimSpace(text)
	if len(trimmed) < 3 {
		return reject("text too short")
	}

	distinct := map[rune]bool{}
	for _, r := range strings.ToLower(trimmed) {
		if !unicode.IsSpace(r) {
			distinct[r] = true
		}
	}
	if len(distinct) < 3 {
		return reject("too few distinct characters")
	}

	for _, token := range tokens(trimmed) {
		if len(token) < 4 {
			continue
		}
		for _, row := range keyboardRows {
			if strings.Contains(row, token) {
				return reject("keyboard pattern detected")
			}
		}
	}

	letters, vowels := letterCounts(trimmed)
	if letters > 0 {
		consonantRatio := float64(letters-vowels) / float64(letters)
		if consonantRatio >= 0.85 && letters >= 5 {
			return reject("consonant ratio too high")
		}
		if letters > 8 && float64(vowels)/float64(letters) < 0.1 {
			return reject("vowel ratio too low")
		}
	}

	return accepted
}

func checkStatistics(text string) Verdict {
	toks := tokens(text)
	if len(toks) == 0 {
		return accepted
	}

	var totalLen, vowelFree, longTokens int
	for _, tok := range toks {
		totalLen += len(tok)
		if len(tok) >= 4 {
			longTokens++
			if _, v := letterCounts(tok); v == 0 {
				vowelFree++
			}
		}
	}

	if float64(totalLen)/float64(len(toks)) >= 20 {
		return reject("mean token length too high")
	}
	if longTokens > 0 && float64(vowelFree)/float64(longTokens) > 0.7 {
		return reject("too many vowel-free tokens")
	}

	// Entropy collapse: one character dominating the text
	freq := map[rune]int{}
	letters := 0
	for _, r := range strings.ToLower(text) {
		if unicode.IsLetter(r) {
			freq[r]++
			letters++
		}
	}
	for _, n := range freq {
		if letters >= 10 && float64(n)/float64(letters) > 0.5 {
			return reject("repeated character pattern")
		}
	}

	return accepted
}

type modelRequest struct {
	Text string `json:"text"`
}

type modelResponse struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
}

// checkModel queries the external binary classifier. Any transport, status,
// or parse failure is treated as a pass so a model outage never blocks
// legitimate content.
func (c *Classifier) checkModel(ctx context.Context, text string) Verdict {
	body, err := json.Marshal(modelRequest{Text: text})
	if err != nil {
		return accepted
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.modelURL, bytes.NewReader(body))
	if err != nil {
		return accepted
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		logger.Warn("gibberish: model unavailable, passing", "error", err)
		return accepted
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		logger.Warn("gibberish: model returned non-200, passing", "status", resp.StatusCode)
		return accepted
	}

	var out modelResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		logger.Warn("gibberish: model response unreadable, passing", "error", err)
		return accepted
	}

	if out.Label == "gibberish" && out.Confidence >= c.minConfidence {
		return reject(fmt.Sprintf("model flagged gibberish (confidence %.2f)", out.Confidence))
	}
	return accepted
}

// tokens splits text on whitespace and lowercases, keeping only tokens that
// contain at least one letter or digit.
func tokens(text string) []string {
	fields := strings.Fields(strings.ToLower(text))
	out := fields[:0]
	for _, f := range fields {
		f = strings.TrimFunc(f, func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsDigit(r)
		})
		if f != "" {
			out = append(out, f)
		}
	}
	return out
}

func letterCounts(s string) (letters, vowels int) {
	for _, r := range strings.ToLower(s) {
		if !unicode.IsLetter(r) {
			continue
		}
		letters++
		switch r {
		case 'a', 'e', 'i', 'o', 'u', 'y':
			vowels++
		}
	}
	return letters, vowels
}
