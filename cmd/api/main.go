package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"example.com/biastrack/internal/api"
	"example.com/biastrack/internal/auth"
	"example.com/biastrack/internal/config"
	"example.com/biastrack/internal/consumer"
	"example.com/biastrack/internal/domain"
	"example.com/biastrack/internal/feed"
	"example.com/biastrack/internal/outbox"
	persistence "example.com/biastrack/internal/persistence/postgres"
	signalgen "example.com/biastrack/internal/signal"
	httptransport "example.com/biastrack/internal/transport/http"
)

func main() {
	cfg := config.Load()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := pgxpool.New(ctx, cfg.PostgresURL)
	if err != nil {
		log.Fatalf("failed to connect to postgres: %v", err)
	}
	defer pool.Close()

	store := persistence.NewStore(pool)
	producer := outbox.NewKafkaProducer(cfg.KafkaBrokers)
	defer producer.Close()

	registry := outbox.NewSchemaRegistryClient(cfg.SchemaRegistryURL)
	dispatcher := outbox.NewDispatcher(pool, producer, registry, cfg.OutboxPollInterval, cfg.OutboxBatchSize)
	go dispatcher.Start(ctx)

	service := domain.NewService(store)
	aggregator := feed.NewAggregator(store)
	reducer := feed.NewReducer()
	go reducer.Run(ctx)

	generator := signalgen.NewGenerator(store)

	// Live feed subscriptions: one change topic per activity kind, all
	// funneling into the single reducer.
	var subscriptions []*consumer.Subscription
	if cfg.FeedUserID != "" {
		feedHandler := consumer.NewFeedHandler(cfg.FeedUserID, reducer)
		for topic, kind := range map[string]domain.ActivityKind{
			"biastrack.behavior_entries":  domain.ActivityKindBehavior,
			"biastrack.shopping_patterns": domain.ActivityKindShopping,
			"biastrack.news_sources":      domain.ActivityKindNews,
		} {
			sub := consumer.Subscribe(ctx, consumer.SubscriptionConfig{
				Brokers: cfg.KafkaBrokers,
				GroupID: cfg.FeedGroupID,
				Topic:   topic,
			}, feedHandler.Callbacks(kind))
			subscriptions = append(subscriptions, sub)
		}
		log.Printf("live feed subscriptions started for user %s", cfg.FeedUserID)
	} else {
		log.Printf("FEED_USER_ID unset; live feed subscriptions disabled")
	}

	handler := api.NewHandler(service, aggregator, reducer, generator, cfg.FeedUserID)
	mux := http.NewServeMux()
	handler.RegisterRoutes(mux)
	mux.Handle("/metrics", promhttp.Handler())

	// Simple CORS middleware for local dev
	cors := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "http://localhost:5173")
			w.Header().Set("Access-Control-Allow-Credentials", "true")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			w.Header().Set("Access-Control-Allow-Methods", "GET,POST,PATCH,DELETE,OPTIONS")
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}

	// Basic request logger
	logger := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			log.Printf("%s %s", r.Method, r.URL.Path)
			next.ServeHTTP(w, r)
		})
	}

	authMiddleware := auth.NewMiddleware(auth.Config{Secret: cfg.JWTSecret, Issuer: cfg.JWTIssuer}, func(r *http.Request) bool {
		return r.URL.Path == "/healthz" || r.URL.Path == "/metrics"
	})

	server := httptransport.NewServer(httptransport.ServerConfig{
		Address:      cfg.HTTPAddress,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}, authMiddleware.Wrap(logger(cors(mux))))

	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Printf("biastrack api listening on %s", cfg.HTTPAddress)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	<-shutdownCh
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}

	for _, sub := range subscriptions {
		if err := sub.Close(); err != nil {
			log.Printf("subscription close error: %v", err)
		}
	}

	dispatcher.Wait()
	reducer.Wait()
}
