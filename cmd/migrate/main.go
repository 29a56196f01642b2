package main

import (
	"database/sql"
	"flag"
	"os"

	_ "github.com/lib/pq"

	"github.com/chainsocial/scoring-service/internal/config"
	"github.com/chainsocial/scoring-service/internal/pkg/logger"
)

const schema = `
CREATE TABLE IF NOT EXISTS user_scores (
	user_id TEXT PRIMARY KEY,
	post_points REAL NOT NULL DEFAULT 0,
	like_points REAL NOT NULL DEFAULT 0,
	comment_points REAL NOT NULL DEFAULT 0,
	crypto_points REAL NOT NULL DEFAULT 0,
	tipping_points REAL NOT NULL DEFAULT 0,
	referral_points REAL NOT NULL DEFAULT 0,
	post_ts TIMESTAMPTZ[] NOT NULL DEFAULT '{}',
	like_ts TIMESTAMPTZ[] NOT NULL DEFAULT '{}',
	comment_ts TIMESTAMPTZ[] NOT NULL DEFAULT '{}',
	crypto_ts TIMESTAMPTZ[] NOT NULL DEFAULT '{}',
	tipping_ts TIMESTAMPTZ[] NOT NULL DEFAULT '{}',
	referral_ts TIMESTAMPTZ[] NOT NULL DEFAULT '{}',
	one_time_points REAL NOT NULL DEFAULT 0,
	one_time_events TEXT[] NOT NULL DEFAULT '{}',
	last_reset_date DATE NOT NULL,
	last_active_date DATE,
	consecutive_activity_days INT NOT NULL DEFAULT 0,
	historical_engagement_score REAL NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS post_awards (
	post_id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL,
	awarded_delta REAL NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS post_awards_user_idx ON post_awards (user_id);

CREATE TABLE IF NOT EXISTS scoring_jobs (
	id UUID PRIMARY KEY,
	kind TEXT NOT NULL,
	payload JSONB NOT NULL,
	status TEXT NOT NULL DEFAULT 'pending',
	attempts INT NOT NULL DEFAULT 0,
	locked_at TIMESTAMPTZ,
	worker_id TEXT,
	last_error TEXT,
	enqueued_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS scoring_jobs_ready_idx
	ON scoring_jobs (enqueued_at) WHERE status IN ('pending', 'processing');
`

func main() {
	configPath := flag.String("config", "", "path to YAML config (env-only when empty)")
	flag.Parse()

	var cfg *config.Config
	if *configPath == "" {
		cfg = config.LoadFromEnv()
	} else {
		var err error
		cfg, err = config.Load(*configPath)
		if err != nil {
			logger.Error("migrate: failed to load config", "error", err)
			os.Exit(1)
		}
	}

	db, err := sql.Open("postgres", cfg.Database.URL)
	if err != nil {
		logger.Error("migrate: failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if _, err := db.Exec(schema); err != nil {
		logger.Error("migrate: schema apply failed", "error", err)
		os.Exit(1)
	}
	logger.Info("migrate: schema applied")
}
