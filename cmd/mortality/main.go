package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"

	"mortality/internal/biography"
	"mortality/internal/events"
	"mortality/internal/notify"
	"mortality/internal/platform/config"
	"mortality/internal/platform/httpserver"
	"mortality/internal/platform/logger"
	"mortality/internal/platform/redis"
	"mortality/internal/reconcile"
	"mortality/internal/reconcile/metrics"
	"mortality/internal/roster"
	httptransport "mortality/internal/transport/http"
	"mortality/internal/wiki"
	"mortality/pkg/platform/retry"
)

// main wires the pipeline and runs it: once when no interval is configured
// (the external scheduler case), or on a ticker. The HTTP server only serves
// health and metrics while runs are in flight.
func main() {
	cfg := config.FromEnv()
	log := logger.New()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := sql.Open("postgres", cfg.Postgres.DSN)
	if err != nil {
		log.Error("open postgres", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	if err := db.PingContext(ctx); err != nil {
		log.Error("ping postgres", "error", err)
		os.Exit(1)
	}
	store := roster.NewPostgres(db)

	redisClient, err := redis.New(cfg.Redis)
	if err != nil {
		log.Error("connect redis", "error", err)
		os.Exit(1)
	}
	var cache biography.ClaimCache = biography.NewMemoryClaimCache()
	if redisClient != nil {
		defer redisClient.Close()
		cache = biography.NewRedisClaimCache(redisClient, cfg.Redis.ClaimTTL)
	}

	wikiClient := wiki.NewClient(cfg.Wiki.WikipediaAPIURL, cfg.Wiki.WikidataAPIURL, nil, log)
	resolver := wiki.NewResolver(wikiClient)

	var source biography.Source
	switch cfg.Wiki.Source {
	case "infobox":
		source = biography.NewInfoboxSource(cfg.Infobox, nil, log)
	default:
		source = biography.NewClaimsSource(wikiClient, cache, log)
	}

	var chat notify.ChatSink
	if cfg.Slack.WebhookURL != "" {
		chat = notify.NewSlackWebhook(cfg.Slack.WebhookURL, nil)
	} else {
		log.Warn("no slack webhook configured, chat notices disabled")
	}

	var sms notify.SMSSink
	if cfg.SMS.AccountSID != "" {
		sms = notify.NewTwilioSMS(cfg.SMS.AccountSID, cfg.SMS.AuthToken, cfg.SMS.FromNumber, cfg.SMS.APIURL, nil)
	} else {
		log.Warn("no twilio credentials configured, sms broadcasts disabled")
	}

	var commentator notify.Commentator
	if cfg.Commentary.APIKey != "" {
		c, err := notify.NewGeminiCommentator(ctx, cfg.Commentary.APIKey, cfg.Commentary.Model)
		if err != nil {
			log.Warn("commentary disabled", "error", err)
		} else {
			commentator = c
		}
	}

	var publisher events.Publisher
	if len(cfg.Kafka.Brokers) > 0 {
		kp, err := events.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		if err != nil {
			log.Warn("status events disabled", "error", err)
		} else {
			defer kp.Close()
			publisher = kp
		}
	}

	engine := reconcile.New(reconcile.Params{
		Store:       store,
		Resolver:    resolver,
		Source:      source,
		Chat:        chat,
		SMS:         sms,
		Commentator: commentator,
		Events:      publisher,
		Metrics:     metrics.New(),
		Log:         log,
		Retry: retry.Policy{
			Attempts:  cfg.Fetch.Attempts,
			Delay:     cfg.Fetch.Delay,
			Retryable: biography.IsRetryable,
		},
	})

	checks := map[string]httptransport.HealthCheck{"postgres": store.Health}
	if redisClient != nil {
		checks["redis"] = redisClient.Health
	}
	srv := httpserver.New(cfg.HTTPAddr, httptransport.NewRouter(log, checks))
	go func() {
		log.Info("serving health and metrics", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server error", "error", err)
		}
	}()

	runErr := run(ctx, engine, cfg.RunInterval, log)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
	}

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		log.Error("run failed", "error", runErr)
		os.Exit(1)
	}
}

// run executes a single pass, then keeps re-running on the interval if one
// is configured.
func run(ctx context.Context, engine *reconcile.Engine, interval time.Duration, log *slog.Logger) error {
	if _, err := engine.Run(ctx); err != nil {
		if interval == 0 {
			return err
		}
		log.Error("roster pass failed", "error", err)
	}
	if interval == 0 {
		return nil
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := engine.Run(ctx); err != nil {
				log.Error("roster pass failed", "error", err)
			}
		}
	}
}
