package main

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/BrandonHuang23/odds-dashboard/internal/config"
	"github.com/BrandonHuang23/odds-dashboard/internal/feed"
	httpHandler "github.com/BrandonHuang23/odds-dashboard/internal/handler/http"
	wsHandler "github.com/BrandonHuang23/odds-dashboard/internal/handler/ws"
	"github.com/BrandonHuang23/odds-dashboard/internal/hub"
	"github.com/BrandonHuang23/odds-dashboard/internal/messaging"
	"github.com/BrandonHuang23/odds-dashboard/internal/metadata"
	"github.com/BrandonHuang23/odds-dashboard/internal/store"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig("config/config.yaml")
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	// Setup logger
	logger := setupLogger(cfg.Logging)
	logger.Info().Msg("starting odds-dashboard")

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Create the accumulated odds store and the client registry
	st := store.New(logger)
	clientHub := hub.New(logger)

	// Create the metadata client. Redis is a soft dependency: the proxy
	// still serves live data when the cache is down.
	metaClient := metadata.NewClient(metadata.Config{
		BaseURL:       cfg.Feed.RESTBase,
		APIKey:        cfg.Feed.APIKey,
		RedisAddr:     cfg.Redis.Addr,
		RedisPassword: cfg.Redis.Password,
		RedisDB:       cfg.Redis.DB,
		InfoTTL:       cfg.Redis.InfoTTL,
		GamesTTL:      cfg.Redis.GamesTTL,
		MarketsTTL:    cfg.Redis.MarketsTTL,
	}, logger)
	defer metaClient.Close()

	if err := metaClient.Ping(ctx); err != nil {
		logger.Warn().Err(err).Msg("Redis unavailable, metadata caching disabled")
	} else {
		logger.Info().Str("addr", cfg.Redis.Addr).Msg("connected to Redis")
	}

	// Create the Kafka movement publisher when enabled
	var publisher *messaging.MovementPublisher
	if cfg.Kafka.Enabled {
		publisher = messaging.NewMovementPublisher(messaging.MovementPublisherConfig{
			Brokers: cfg.Kafka.Brokers,
			Topic:   cfg.Kafka.Topic,
		}, st, logger)
		defer publisher.Close()
		logger.Info().Strs("brokers", cfg.Kafka.Brokers).Str("topic", cfg.Kafka.Topic).Msg("movement publisher enabled")
	}

	// Fan changed games out to subscribed clients, each with its own market
	// filter, then publish movement events.
	onUpdate := func(gameIDs []string) {
		for _, gameID := range gameIDs {
			subscribers := clientHub.ClientsForGame(gameID)

			var wg sync.WaitGroup
			for _, sub := range subscribers {
				wg.Add(1)
				go func(sub hub.Subscriber) {
					defer wg.Done()
					snapshot := st.Snapshot(gameID, sub.Subscription.Market)
					if snapshot == nil || len(snapshot.Odds) == 0 {
						return
					}
					clientHub.SendToClient(sub.ID, wsHandler.UpdateMessage{Type: "update", Snapshot: *snapshot})
				}(sub)
			}
			wg.Wait()
		}

		if publisher != nil {
			publisher.PublishChanges(ctx, gameIDs)
		}
	}

	// Create the feed client and start its reconnect loop. A feed that is
	// down at boot is not fatal; the loop keeps retrying.
	transport := feed.NewWebsocketTransport(feedURL(cfg.Feed), 10*time.Second)
	feedClient := feed.NewClient(feed.Config{
		AckTimeout:   cfg.Feed.AckTimeout,
		ReconnectMin: cfg.Feed.ReconnectMin,
		ReconnectMax: cfg.Feed.ReconnectMax,
	}, transport, st, onUpdate, logger)
	feedClient.Start(ctx)
	defer feedClient.Stop()
	logger.Info().Str("url", cfg.Feed.WSURL).Msg("feed client started")

	// Initialize handlers
	oddsWS := wsHandler.NewOddsHandler(clientHub, st, feedClient, logger)
	metaHandler := httpHandler.NewMetaHandler(st, metaClient, feedClient, logger)

	// Setup HTTP server routes
	mux := http.NewServeMux()

	// Health and monitoring endpoints
	mux.HandleFunc("/health", healthHandler)
	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		readyHandler(w, r, feedClient)
	})
	mux.Handle("/metrics", promhttp.Handler())

	// Register API and websocket routes
	oddsWS.RegisterRoutes(mux)
	metaHandler.RegisterRoutes(mux)
	logger.Info().Msg("routes registered")

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      mux,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start HTTP server in goroutine
	go func() {
		logger.Info().Int("port", cfg.Server.Port).Msg("starting HTTP server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("HTTP server failed")
		}
	}()

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info().Msg("shutting down gracefully...")

	// Stop the feed loop before tearing down downstream connections
	feedClient.Stop()
	cancel()

	// Shutdown HTTP server
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("HTTP server shutdown failed")
	}

	logger.Info().Msg("shutdown complete")
}

// feedURL appends the API key to the stream endpoint
func feedURL(cfg config.FeedConfig) string {
	if cfg.APIKey == "" {
		return cfg.WSURL
	}
	u, err := url.Parse(cfg.WSURL)
	if err != nil {
		return cfg.WSURL
	}
	q := u.Query()
	q.Set("key", cfg.APIKey)
	u.RawQuery = q.Encode()
	return u.String()
}

// setupLogger configures the logger based on config
func setupLogger(cfg config.LoggingConfig) zerolog.Logger {
	// Set log level
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	// Set format
	if cfg.Format == "console" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})
	}

	return log.Logger.With().Str("service", "odds-dashboard").Logger()
}

// healthHandler returns 200 if service is running
func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

// readyHandler returns 200 once the feed connection is established
func readyHandler(w http.ResponseWriter, r *http.Request, upstream *feed.Client) {
	if !upstream.IsConnected() {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte("feed disconnected"))
		return
	}

	w.WriteHeader(http.StatusOK)
	w.Write([]byte("READY"))
}
