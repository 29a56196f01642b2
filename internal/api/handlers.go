// Package api exposes the intake and admin HTTP surface.
package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/chainsocial/scoring-service/internal/cohort"
	"github.com/chainsocial/scoring-service/internal/config"
	"github.com/chainsocial/scoring-service/internal/contentindex"
	"github.com/chainsocial/scoring-service/internal/domain"
	"github.com/chainsocial/scoring-service/internal/pkg/httputil"
	"github.com/chainsocial/scoring-service/internal/pkg/logger"
	"github.com/chainsocial/scoring-service/internal/queue"
	"github.com/chainsocial/scoring-service/internal/scoring"
	"github.com/chainsocial/scoring-service/internal/worker"
)

// Handlers bundles the dependencies of the HTTP surface.
type Handlers struct {
	engine    *scoring.Engine
	repo      scoring.Repository
	queue     queue.Queue
	index     contentindex.Index
	runner    *cohort.Runner
	publisher *cohort.Publisher
	scoringC  config.ScoringConfig
	maxUpload int64
}

// NewHandlers creates the handler set.
func NewHandlers(engine *scoring.Engine, repo scoring.Repository, q queue.Queue,
	index contentindex.Index, runner *cohort.Runner, publisher *cohort.Publisher,
	cfg *config.Config) *Handlers {
	return &Handlers{
		engine:    engine,
		repo:      repo,
		queue:     q,
		index:     index,
		runner:    runner,
		publisher: publisher,
		scoringC:  cfg.Scoring,
		maxUpload: cfg.Server.MaxUploadBytes,
	}
}

type actionRequest struct {
	ActionType        string `json:"actionType"`
	CreatorAddress    string `json:"creatorAddress"`
	InteractorAddress string `json:"interactorAddress,omitempty"`
	Data              string `json:"data,omitempty"`
	PostID            string `json:"post_id,omitempty"`
	WebhookURL        string `json:"webhookUrl,omitempty"`
}

type actionResponse struct {
	Approved          bool    `json:"aiAgentResponseApproved"`
	SignificanceScore float64 `json:"significanceScore"`
	Reason            string  `json:"reason,omitempty"`
	FinalUserScore    float64 `json:"finalUserScore"`
}

// awardAccount picks the scored account: the interactor when given, else
// the creator.
func awardAccount(creator, interactor string) string {
	if interactor != "" {
		return interactor
	}
	return creator
}

// SubmitAction handles POST /v1/submit_action. Likes, tips, crypto
// actions, referrals, and one-time bonuses score synchronously; posts and
// comments go through the queue and answer 202.
func (h *Handlers) SubmitAction(w http.ResponseWriter, r *http.Request) {
	var req actionRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	if req.CreatorAddress == "" {
		httputil.BadRequest(w, "creatorAddress is required")
		return
	}

	account := awardAccount(req.CreatorAddress, req.InteractorAddress)

	switch req.ActionType {
	case "like", "tipping", "crypto", "referral":
		category := domain.Category(req.ActionType)
		res, err := h.engine.Apply(r.Context(), account, category, nil)
		if err != nil {
			httputil.InternalError(w, err)
			return
		}
		httputil.OK(w, actionResponse{
			Approved:          res.Status == scoring.StatusAccepted,
			SignificanceScore: res.Delta,
			Reason:            res.Reason,
			FinalUserScore:    res.NormalizedScore,
		})

	case "registration", "verification":
		event := domain.OneTimeEvent(req.ActionType)
		res, err := h.engine.ApplyOneTime(r.Context(), account, event, h.scoringC.OneTimeAwards[event])
		if err != nil {
			httputil.InternalError(w, err)
			return
		}
		httputil.OK(w, actionResponse{
			Approved:          res.Status == scoring.StatusAccepted,
			SignificanceScore: res.Delta,
			Reason:            res.Reason,
			FinalUserScore:    res.NormalizedScore,
		})

	case "comment":
		h.enqueue(w, r, queue.KindComment, worker.CommentJob{
			PostID:            req.PostID,
			CreatorAddress:    req.CreatorAddress,
			InteractorAddress: req.InteractorAddress,
			Text:              req.Data,
			WebhookURL:        req.WebhookURL,
		})

	case "post":
		if req.PostID == "" {
			httputil.BadRequest(w, "post_id is required for posts")
			return
		}
		h.enqueue(w, r, queue.KindPost, worker.PostJob{
			PostID:            req.PostID,
			CreatorAddress:    req.CreatorAddress,
			InteractorAddress: req.InteractorAddress,
			Text:              req.Data,
			WebhookURL:        req.WebhookURL,
		})

	default:
		httputil.BadRequest(w, "unknown actionType: "+req.ActionType)
	}
}

func (h *Handlers) enqueue(w http.ResponseWriter, r *http.Request, kind queue.Kind, payload any) {
	body, err := json.Marshal(payload)
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	id, err := h.queue.Enqueue(r.Context(), kind, body)
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.Accepted(w, map[string]string{"status": "processing", "job_id": id})
}

// SubmitPost handles POST /v1/submit_post: a multipart form with the post
// text, addresses, and an optional image.
func (h *Handlers) SubmitPost(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)
	if err := r.ParseMultipartForm(h.maxUpload); err != nil {
		httputil.BadRequest(w, "invalid multipart form: "+err.Error())
		return
	}

	job := worker.PostJob{
		PostID:            r.FormValue("post_id"),
		CreatorAddress:    r.FormValue("creatorAddress"),
		InteractorAddress: r.FormValue("interactorAddress"),
		Text:              r.FormValue("data"),
		WebhookURL:        r.FormValue("webhookUrl"),
	}
	if job.CreatorAddress == "" {
		httputil.BadRequest(w, "creatorAddress is required")
		return
	}
	if job.PostID == "" {
		httputil.BadRequest(w, "post_id is required")
		return
	}

	if file, _, err := r.FormFile("image"); err == nil {
		data, err := io.ReadAll(file)
		file.Close()
		if err != nil {
			httputil.BadRequest(w, "failed to read image: "+err.Error())
			return
		}
		job.Image = data
	}

	h.enqueue(w, r, queue.KindPost, job)
}

// DeletePost handles DELETE /v1/delete/{post_id}. The post leaves the
// similarity index first; only then are its exact points refunded.
func (h *Handlers) DeletePost(w http.ResponseWriter, r *http.Request) {
	postID := chi.URLParam(r, "post_id")
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		httputil.BadRequest(w, "user_id query parameter is required")
		return
	}

	err := h.index.Delete(r.Context(), postID, userID)
	if errors.Is(err, contentindex.ErrNotFound) {
		httputil.NotFound(w, "post not found")
		return
	}
	if err != nil {
		httputil.InternalError(w, err)
		return
	}

	if err := h.engine.DeductPost(r.Context(), userID, postID); err != nil {
		httputil.InternalError(w, err)
		return
	}

	score := 0.0
	if s, err := h.repo.Get(r.Context(), userID); err == nil {
		score = h.engine.Normalize(s.TotalMonthlyPoints())
	}
	httputil.OK(w, map[string]any{
		"status":         "deleted",
		"post_id":        postID,
		"user_id":        userID,
		"finalUserScore": score,
	})
}

// RunDailyAnalysis handles POST /admin/run-daily-analysis.
func (h *Handlers) RunDailyAnalysis(w http.ResponseWriter, r *http.Request) {
	result, err := h.runner.RunOnce(r.Context())
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	if result == nil {
		httputil.JSON(w, http.StatusConflict, map[string]string{
			"status": "analysis already running",
		})
		return
	}
	httputil.OK(w, result)
}

// DailySummary handles GET /admin/daily-summary, serving the latest
// published analysis and computing one on demand when none exists yet.
func (h *Handlers) DailySummary(w http.ResponseWriter, r *http.Request) {
	result, err := h.publisher.Latest(r.Context())
	if errors.Is(err, cohort.ErrNoResult) {
		logger.Info("api: no published analysis, computing on demand")
		result, err = h.runner.RunOnce(r.Context())
		if err == nil && result == nil {
			httputil.JSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "analysis in progress, retry shortly",
			})
			return
		}
	}
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, result)
}

type categoryActivity struct {
	Points        float64 `json:"points"`
	LifetimeCount int     `json:"lifetime_count"`
	Last24hCount  int     `json:"last_24h_count"`
	DailyLimit    int     `json:"daily_limit"`
	MonthlyCap    float64 `json:"monthly_cap"`
}

type userActivityResponse struct {
	UserID                    string                               `json:"user_id"`
	Categories                map[domain.Category]categoryActivity `json:"categories"`
	MonthlyTotal              float64                              `json:"monthly_total"`
	NormalizedScore           float64                              `json:"normalized_score"`
	OneTimePoints             float64                              `json:"one_time_points"`
	ConsecutiveActivityDays   int                                  `json:"consecutive_activity_days"`
	HistoricalEngagementScore float64                              `json:"historical_engagement_score"`
	LastResetDate             time.Time                            `json:"last_reset_date"`
}

// UserActivity handles GET /admin/user-activity/{id}.
func (h *Handlers) UserActivity(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "id")

	s, err := h.repo.Get(r.Context(), userID)
	if errors.Is(err, scoring.ErrNotFound) {
		httputil.NotFound(w, "no activity recorded for user")
		return
	}
	if err != nil {
		httputil.InternalError(w, err)
		return
	}

	cutoff := time.Now().UTC().Add(-24 * time.Hour)
	resp := userActivityResponse{
		UserID:                    s.UserID,
		Categories:                make(map[domain.Category]categoryActivity, 6),
		MonthlyTotal:              s.TotalMonthlyPoints(),
		NormalizedScore:           h.engine.Normalize(s.TotalMonthlyPoints()),
		OneTimePoints:             s.OneTimePoints,
		ConsecutiveActivityDays:   s.ConsecutiveActivityDays,
		HistoricalEngagementScore: s.HistoricalEngagementScore,
		LastResetDate:             s.LastResetDate,
	}
	for _, c := range domain.Categories() {
		resp.Categories[c] = categoryActivity{
			Points:        s.Points[c],
			LifetimeCount: len(s.Timestamps[c]),
			Last24hCount:  s.CountSince(c, cutoff),
			DailyLimit:    h.scoringC.DailyLimits[c],
			MonthlyCap:    h.scoringC.MonthlyCaps[c],
		}
	}
	httputil.OK(w, resp)
}

type rewardResponse struct {
	Category   domain.Category       `json:"category"`
	Award      float64               `json:"award"`
	DailyLimit int                   `json:"daily_limit"`
	MonthlyCap float64               `json:"monthly_cap"`
	Cohort     cohort.CategoryCohort `json:"cohort"`
}

// Rewards handles GET /api/rewards/{category}: category reward metadata
// plus the latest qualified and empathy cohorts.
func (h *Handlers) Rewards(w http.ResponseWriter, r *http.Request) {
	category := domain.Category(chi.URLParam(r, "category"))
	if !category.Valid() {
		httputil.NotFound(w, "unknown category")
		return
	}

	resp := rewardResponse{
		Category:   category,
		Award:      h.scoringC.Awards[category],
		DailyLimit: h.scoringC.DailyLimits[category],
		MonthlyCap: h.scoringC.MonthlyCaps[category],
	}
	if latest, err := h.publisher.Latest(r.Context()); err == nil {
		resp.Cohort = latest.Cohorts[category]
	} else if !errors.Is(err, cohort.ErrNoResult) {
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, resp)
}

// Health handles GET /health.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	httputil.OK(w, map[string]string{"status": "ok"})
}
