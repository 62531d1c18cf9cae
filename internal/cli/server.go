package cli

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"

	"company-quiz-service/internal/app"
	"company-quiz-service/internal/auth"
	"company-quiz-service/internal/config"
	"company-quiz-service/internal/infra/memory"
	"company-quiz-service/internal/infra/postgres"
	redisinfra "company-quiz-service/internal/infra/redis"
	transport "company-quiz-service/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the quiz server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if cfg.Auth.Secret == "" {
		return fmt.Errorf("auth secret not configured")
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	// Without a Postgres URL everything runs in memory; handy for local
	// runs, useless in production.
	var (
		store  app.Store
		loader memory.QuizLoader
		reader app.AnalyticsReader
	)
	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg); err != nil {
			return err
		}

		sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(cfg.Postgres.URL)))
		db := bun.NewDB(sqldb, pgdialect.New())
		defer db.Close()

		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		defer pool.Close()

		pgStore := postgres.NewStore(db)
		store = pgStore
		loader = pgStore
		reader = postgres.NewAnalyticsReader(pool)
	} else {
		log.Printf("no postgres url configured, using in-memory store")
		memStore := memory.NewStore()
		store = memStore
		loader = memStore
		reader = memStore
	}

	var answers app.AnswerCache
	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer client.Close()
		answers = redisinfra.NewAnswerCache(client)
	} else {
		log.Printf("no redis address configured, using in-memory answer cache")
		answers = memory.NewAnswerCache()
	}

	quizTTL := config.TTLDuration(cfg.Cache.QuizTTL, 10*time.Minute)
	quizCache := memory.NewQuizCache(loader, quizTTL)

	tokenTTL := config.TTLDuration(cfg.Auth.TokenTTL, auth.DefaultTokenTTL)
	tokens := auth.NewTokenManager(cfg.Auth.Secret, tokenTTL)

	companySvc := app.NewCompanyService(store)
	userSvc := app.NewUserService(store, tokens, auth.NewBcryptHasher(), nil)
	quizSvc := app.NewQuizService(store, companySvc, quizCache)
	scoringSvc := app.NewScoringService(store, quizCache, answers)
	analyticsSvc := app.NewAnalyticsService(store, reader)

	mux := http.NewServeMux()
	handler := transport.NewHandler(userSvc, companySvc, quizSvc, scoringSvc, analyticsSvc)
	handler.Register(mux)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Printf("starting company quiz service on :%s", finalPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("failed to start server: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Println("shutting down server...")
	case <-ctx.Done():
		log.Println("context canceled, shutting down server...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
