package cli

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"exit-ticket-service/internal/app"
	"exit-ticket-service/internal/config"
	"exit-ticket-service/internal/generator"
	"exit-ticket-service/internal/infra/memory"
	pgstore "exit-ticket-service/internal/infra/postgres"
	redisstore "exit-ticket-service/internal/infra/redis"
	transport "exit-ticket-service/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the exit-ticket server",
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

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg); err != nil {
			return err
		}
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}
	sessionTTL := config.TTLDuration(cfg.Session.TTL, 30*time.Minute)
	// Status changes evict the cached document; the TTL bounds staleness for
	// writers outside this process.
	cacheTTL := config.TTLDuration(cfg.TicketCache.TTL, 30*time.Second)

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		defer pool.Close()
	}

	var tickets app.TicketStore
	var responses app.ResponseStore
	if pool != nil {
		tickets = pgstore.NewTicketStore(pool)
		responses = pgstore.NewResponseStore(pool)
	} else {
		log.Printf("postgres not configured, using in-memory stores")
		tickets = memory.NewTicketStore()
		responses = memory.NewResponseStore()
	}

	var ticketSource app.TicketSource
	var ticketInvalidator app.TicketInvalidator
	if redisClient != nil {
		cache := redisstore.NewTicketCache(redisClient, tickets, cacheTTL)
		ticketSource, ticketInvalidator = cache, cache
	} else {
		cache := memory.NewTicketCache(tickets, cacheTTL)
		ticketSource, ticketInvalidator = cache, cache
	}

	var sessions app.SessionStore
	if redisClient != nil {
		sessions = redisstore.NewSessionStore(redisClient, sessionTTL)
	} else {
		sessions = memory.NewSessionStore(sessionTTL)
	}

	var producer generator.Producer
	if cfg.Generator.APIKey != "" {
		producer = generator.NewGeminiClient(cfg.Generator.APIKey, cfg.Generator.Model)
	} else {
		log.Printf("generator api key not set, using static question producer")
		producer = generator.NewStaticProducer(generator.SamplePool())
	}

	ticketSvc := app.NewTicketService(tickets)
	ticketSvc.SetCacheInvalidator(ticketInvalidator)
	analyticsSvc := app.NewAnalyticsService(responses)
	sessionSvc := app.NewSessionService(ticketSource, sessions, responses)
	feed := app.NewResultsFeed()
	sessionSvc.SetResultsFeed(feed, analyticsSvc)
	questionSvc := generator.NewService(producer)

	handler := transport.NewHandler(ticketSvc, sessionSvc, analyticsSvc, questionSvc, feed)
	router := transport.NewRouter(handler)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Printf("starting exit-ticket service on :%s", finalPort)
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
