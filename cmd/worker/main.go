package main

import (
	"context"
	"database/sql"
	"flag"
	"os"
	"os/signal"
	"sync"
	"syscall"

	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"

	"github.com/chainsocial/scoring-service/internal/cohort"
	"github.com/chainsocial/scoring-service/internal/config"
	"github.com/chainsocial/scoring-service/internal/contentindex"
	"github.com/chainsocial/scoring-service/internal/gibberish"
	"github.com/chainsocial/scoring-service/internal/pkg/logger"
	"github.com/chainsocial/scoring-service/internal/quality"
	"github.com/chainsocial/scoring-service/internal/queue"
	"github.com/chainsocial/scoring-service/internal/repository/postgres"
	"github.com/chainsocial/scoring-service/internal/scoring"
	"github.com/chainsocial/scoring-service/internal/validate"
	"github.com/chainsocial/scoring-service/internal/webhook"
	"github.com/chainsocial/scoring-service/internal/worker"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config (env-only when empty)")
	flag.Parse()

	cfg := loadConfig(*configPath)
	applyLogLevel(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := sql.Open("postgres", cfg.Database.URL)
	if err != nil {
		logger.Error("worker: failed to open database", "error", err)
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
		logger.Error("worker: VECTOR_INDEX_URL is required")
		os.Exit(1)
	}
	index := contentindex.NewHTTPIndex(cfg.Index.URL, cfg.Index.Timeout)

	var scorer quality.Scorer
	bedrock, err := quality.NewBedrockScorer(ctx, cfg.Quality)
	if err != nil {
		logger.Warn("worker: bedrock unavailable, posts score neutral", "error", err)
		scorer = quality.StaticScorer{Value: quality.DefaultScore}
	} else {
		scorer = bedrock
	}

	var gibberOpts []gibberish.Option
	if cfg.Gibber.ModelURL != "" {
		gibberOpts = append(gibberOpts,
			gibberish.WithModel(cfg.Gibber.ModelURL, cfg.Gibber.MinConfidence, nil))
	}
	validator := validate.New(gibberish.New(gibberOpts...), index, scorer,
		cfg.Scoring.DuplicateThreshold)

	dispatcher := webhook.NewDispatcher(cfg.Webhook)
	pool := worker.NewPool(jobs, validator, engine, dispatcher, cfg.Worker)

	analyzer := cohort.NewAnalyzer(repo, cfg.Scoring)
	runner := cohort.NewRunner(analyzer, cohort.NewPublisher(rc), rc, cfg.Analysis)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		pool.Run(ctx)
	}()
	go func() {
		defer wg.Done()
		runner.Run(ctx)
	}()
	wg.Wait()
}

func loadConfig(path string) *config.Config {
	if path == "" {
		return config.LoadFromEnv()
	}
	cfg, err := config.Load(path)
	if err != nil {
		logger.Error("worker: failed to load config", "path", path, "error", err)
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
		logger.Warn("worker: invalid redis URL, using as plain address", "error", err)
		opts = &redis.Options{Addr: url}
	}
	return redis.NewClient(opts)
}
