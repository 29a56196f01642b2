package contentindex

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/chainsocial/scoring-service/internal/pkg/httpretry"
)

// HTTPIndex is an Index backed by a remote vector-store service speaking
// JSON over REST. Requests are retried on transient failures and bounded
// by the configured timeout.
type HTTPIndex struct {
	baseURL string
	client  httpretry.HTTPDoer
}

// NewHTTPIndex creates a client for the vector-store service at baseURL.
func NewHTTPIndex(baseURL string, timeout time.Duration) *HTTPIndex {
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &HTTPIndex{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  httpretry.NewRetryClient(&http.Client{Timeout: timeout}, 3),
	}
}

// SetClient overrides the HTTP client. Tests only.
func (h *HTTPIndex) SetClient(c httpretry.HTTPDoer) { h.client = c }

type insertRequest struct {
	PostID string `json:"post_id"`
	UserID string `json:"user_id"`
	Text   string `json:"text"`
	Image  string `json:"image,omitempty"`
}

type nearestRequest struct {
	Text  string `json:"text"`
	Image string `json:"image,omitempty"`
}

type nearestResponse struct {
	Found    bool    `json:"found"`
	PostID   string  `json:"post_id"`
	Distance float64 `json:"distance"`
}

type countResponse struct {
	Count int `json:"count"`
}

func (h *HTTPIndex) Insert(ctx context.Context, post Post) error {
	body := insertRequest{
		PostID: post.ID,
		UserID: post.UserID,
		Text:   post.Text,
	}
	if len(post.Image) > 0 {
		body.Image = base64.StdEncoding.EncodeToString(post.Image)
	}

	resp, err := h.do(ctx, http.MethodPost, "/v1/posts", body)
	if err != nil {
		return fmt.Errorf("index insert: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusCreated:
		return nil
	case http.StatusConflict:
		return ErrConflict
	default:
		return fmt.Errorf("index insert: unexpected status %d", resp.StatusCode)
	}
}

func (h *HTTPIndex) Nearest(ctx context.Context, text string, image []byte) (Match, bool, error) {
	body := nearestRequest{Text: text}
	if len(image) > 0 {
		body.Image = base64.StdEncoding.EncodeToString(image)
	}

	resp, err := h.do(ctx, http.MethodPost, "/v1/nearest", body)
	if err != nil {
		return Match{}, false, fmt.Errorf("index nearest: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Match{}, false, fmt.Errorf("index nearest: unexpected status %d", resp.StatusCode)
	}

	var out nearestResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return Match{}, false, fmt.Errorf("index nearest: decode response: %w", err)
	}
	if !out.Found {
		return Match{}, false, nil
	}
	return Match{PostID: out.PostID, Distance: out.Distance}, true, nil
}

func (h *HTTPIndex) Delete(ctx context.Context, postID, userID string) error {
	path := "/v1/posts/" + url.PathEscape(postID) + "?user_id=" + url.QueryEscape(userID)
	resp, err := h.do(ctx, http.MethodDelete, path, nil)
	if err != nil {
		return fmt.Errorf("index delete: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusNoContent:
		return nil
	case http.StatusNotFound, http.StatusForbidden:
		return ErrNotFound
	default:
		return fmt.Errorf("index delete: unexpected status %d", resp.StatusCode)
	}
}

func (h *HTTPIndex) Count(ctx context.Context) (int, error) {
	resp, err := h.do(ctx, http.MethodGet, "/v1/posts/count", nil)
	if err != nil {
		return 0, fmt.Errorf("index count: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("index count: unexpected status %d", resp.StatusCode)
	}

	var out countResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return 0, fmt.Errorf("index count: decode response: %w", err)
	}
	return out.Count, nil
}

// do issues one request. Per-request deadlines come from the underlying
// http.Client timeout so response bodies stay readable after return.
func (h *HTTPIndex) do(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, h.baseURL+path, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return h.client.Do(req)
}
