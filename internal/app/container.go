package app

import (
	"context"
	"log"
	"time"

	"review-pulse/internal/config"
	"review-pulse/internal/database"
	dbpostgres "review-pulse/internal/database/postgres"
	"review-pulse/internal/database/schema"
	"review-pulse/internal/database/seeder"
	"review-pulse/internal/delivery/http/handler"
	"review-pulse/internal/delivery/http/middleware"
	v1 "review-pulse/internal/delivery/http/routes/v1"
	"review-pulse/internal/infrastructure/cache"
	"review-pulse/internal/pkg/jwt"
	"review-pulse/internal/repository"
	"review-pulse/internal/scrape"
	"review-pulse/internal/sentiment"
	"review-pulse/internal/usecase"
	"review-pulse/internal/ws"
)

const (
	accessTokenTTL  = 15 * time.Minute
	refreshTokenTTL = 7 * 24 * time.Hour
)

// Container wires the whole object graph once at startup. Everything
// downstream receives interfaces; only the container knows concrete
// types.
type Container struct {
	Config config.Config
	Logger *log.Logger

	DB    database.DB
	Cache *cache.Redis

	Locations     repository.LocationRepository
	Reviews       repository.ReviewRepository
	Annotations   repository.AnnotationRepository
	Conversations repository.ConversationRepository

	Hub         *scrape.Hub
	Coordinator *scrape.Coordinator
	Scheduler   *scrape.Scheduler

	Pool  *sentiment.Pool
	WSHub *ws.Hub

	Limiter *middleware.RateLimiter
	Deps    v1.Deps
}

func NewContainer(cfg config.Config, logger *log.Logger) (*Container, error) {
	if logger == nil {
		logger = log.Default()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db, err := dbpostgres.Connect(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	if err := schema.Ensure(ctx, db, logger); err != nil {
		_ = db.Close()
		return nil, err
	}
	if cfg.App.Environment == "development" {
		runner := seeder.Runner{Seeders: seeder.Defaults()}
		if err := runner.Run(ctx, db); err != nil {
			logger.Printf("[Seed] demo data skipped: %v", err)
		}
	}

	redis := cache.NewRedis(cfg.Redis, logger)

	locations := repository.NewPostgresLocationRepository(db)
	reviews := repository.NewPostgresReviewRepository(db)
	annotations := repository.NewPostgresAnnotationRepository(db)
	conversations := repository.NewPostgresConversationRepository(db)

	wsHub := ws.NewHub(logger)
	notifier := ws.NewStatusNotifier(wsHub, logger)

	hub := scrape.NewHub(logger)
	source := scrape.NewFeedSource(cfg.Scraper.SourceBaseURL, logger)
	coordinator := scrape.NewCoordinator(locations, reviews, source, hub, redis, notifier, logger, scrape.CoordinatorConfig{
		JobTimeout:        cfg.Scraper.JobTimeout,
		TerminalRetention: cfg.Scraper.TerminalJobRetention,
	})
	scheduler := scrape.NewScheduler(coordinator, locations, conversations, logger)

	classifier := sentiment.NewLLMClassifier(cfg.LLM, logger)
	pool := sentiment.NewPool(classifier, cfg.LLM.ConcurrentRequests)
	chatModel := sentiment.NewLLMChatModel(cfg.LLM, logger)

	analysisUC := usecase.NewAnalysisUsecase(locations, reviews, annotations, pool, redis, logger)
	listUC := usecase.NewReviewListUsecase(locations, reviews, annotations, redis, logger)
	readinessUC := usecase.NewReadinessUsecase(locations, reviews, annotations, redis, logger)
	rollupUC := usecase.NewRollupUsecase(locations, redis, logger)
	chatUC := usecase.NewChatUsecase(readinessUC, locations, annotations, conversations, chatModel, redis, logger)

	jwtSvc := jwt.NewHMACService(cfg.Auth.AccessSecret, cfg.Auth.RefreshSecret, accessTokenTTL, refreshTokenTTL)
	authMw := middleware.NewAuthMiddleware(jwtSvc)
	limiter := middleware.NewRateLimiter(logger)

	deps := v1.Deps{
		Auth:     authMw,
		Limiter:  limiter,
		Health:   handler.NewHealthHandler(db, redis),
		Scrape:   handler.NewScrapeHandler(coordinator, hub, logger),
		Review:   handler.NewReviewHandler(listUC, analysisUC),
		Location: handler.NewLocationHandler(readinessUC, rollupUC),
		Chatbot:  handler.NewChatbotHandler(chatUC),
		Status:   ws.NewHandler(wsHub, logger),
	}

	return &Container{
		Config:        cfg,
		Logger:        logger,
		DB:            db,
		Cache:         redis,
		Locations:     locations,
		Reviews:       reviews,
		Annotations:   annotations,
		Conversations: conversations,
		Hub:           hub,
		Coordinator:   coordinator,
		Scheduler:     scheduler,
		Pool:          pool,
		WSHub:         wsHub,
		Limiter:       limiter,
		Deps:          deps,
	}, nil
}

func (c *Container) Close() error {
	if c == nil {
		return nil
	}
	if c.Pool != nil {
		c.Pool.Close()
	}
	if c.DB == nil {
		return nil
	}
	return c.DB.Close()
}
