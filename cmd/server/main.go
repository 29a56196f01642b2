package main

import (
	"context"
	"database/sql"
	"flag"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"

	"github.com/chainsocial/scoring-service/internal/api"
	"github.com/chainsocial/scoring-service/internal/cohort"
	"github.com/chainsocial/scoring-service/internal/config"
	"github.com/chainsocial/scoring-service/internal/contentindex"
	"github.com/chainsocial/scoring-service/internal/pkg/logger"
	"github.com/chainsocial/scoring-service/internal/queue"
	"github.com/chainsocial/scoring-service/internal/repository/postgres"
	"github.com/chainsocial/scoring-service/internal/scoring"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config (env-only when empty)")
	flag.Parse()

	cfg := loadConfig(*configPath)
	applyLogLevel(cfg.LogLevel)

	db, err := sql.Open("postgres", cfg.Database.URL)
	if err != nil {
		logger.Error("server: failed to open database", "error", err)
		os.Exit(1)
	}
	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	defer db.Close()

	rc := openRedis(cfg.Redis.URL)
	defer rc.Close()

	repo := postgres.NewScoreStore(db)
	engine := scoring.NewEngine(repo, cfg.Scoring)
	jobs := queue.NewPostgresQueue(db, cfg.Worker.Visibility)

	// Server and worker run as separate processes; a process-local index
	// would leave deletes and duplicate detection looking at different data
	if cfg.Index.URL == "" {
		logger.Error("server: VECTOR_INDEX_URL is required")
		os.Exit(1)
	}
	index := contentindex.NewHTTPIndex(cfg.Index.URL, cfg.Index.Timeout)

	analyzer := cohort.NewAnalyzer(repo, cfg.Scoring)
	publisher := cohort.NewPublisher(rc)
	runner := cohort.NewRunner(analyzer, publisher, rc, cfg.Analysis)

	handlers := api.NewHandlers(engine, repo, jobs, index, runner, publisher, cfg)
	server := api.NewServer(cfg.Server, api.NewRouter(handlers))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := server.Run(ctx); err != nil {
		logger.Error("server: exited with error", "error", err)
		os.Exit(1)
	}
}

func loadConfig(path string) *config.Config {
	if path == "" {
		return config.LoadFromEnv()
	}
	cfg, err := config.Load(path)
	if err != nil {
		logger.Error("server: failed to load config", "path", path, "error", err)
		os.Exit(1)
	}
	return cfg
}

func applyLogLevel(level string) {
	switch config.ParseLogLevel(level) {
	case "debug":
		logger.SetLevel(logger.DEBUG)
	case "warn":
		logger.SetLevel(logger.WARN)
	case "error":
		logger.SetLevel(logger.ERROR)
	default:
		logger.SetLevel(logger.INFO)
	}
}

func openRedis(url string) *redis.Client {
	opts, err := redis.ParseURL(url)
	if err != nil {
		logger.Warn("server: invalid redis URL, using as plain address", "error", err)
		opts = &redis.Options{Addr: url}
	}
	return redis.NewClient(opts)
}
