package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/jamilsultanli/webscraper/internal/config"
	"github.com/jamilsultanli/webscraper/internal/control"
	"github.com/jamilsultanli/webscraper/internal/health"
	"github.com/jamilsultanli/webscraper/internal/store"
)

func main() {
	// Setup logger
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Set log level
	setLogLevel(cfg.LogLevel)

	// Create context with signal handling
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		logger.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	db, err := store.New(ctx, cfg.PostgresDSN)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer db.Close()

	if err := db.Migrate(ctx); err != nil {
		logger.Fatal().Err(err).Msg("Failed to run migrations")
	}

	ctrl := control.New(cfg, db, &logger)

	// Start health server
	healthServer := health.New(ctrl, cfg.HealthPort)

	go func() {
		logger.Info().Int("port", cfg.HealthPort).Msg("Starting health server")

		if err := healthServer.Start(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("Health server error")
		}
	}()

	// Mark as ready now that the database is connected and migrated
	healthServer.SetReady(true)

	apiServer := newAPIServer(ctrl, &logger)

	go func() {
		<-ctx.Done()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()

		_ = apiServer.Shutdown(shutdownCtx)
	}()

	logger.Info().Str("addr", apiServer.Addr).Msg("Starting control API server")

	if err := apiServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal().Err(err).Msg("Control API server error")
	}

	logger.Info().Msg("Crawler stopped")
}

// newAPIServer wraps the Control API (§6) in a minimal JSON HTTP surface:
// start, status, links. The dashboard, auth, and any richer query layer
// built on top of it are out of scope (§1); this is the thinnest wiring
// that makes the API reachable from outside the process.
func newAPIServer(ctrl *control.Controller, logger *zerolog.Logger) *http.Server {
	mux := http.NewServeMux()

	mux.HandleFunc("/v1/start", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			URL string `json:"url"`
		}

		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		result, err := ctrl.Start(r.Context(), req.URL, config.Options{})
		if err != nil {
			var ctrlErr *control.Error
			if errors.As(err, &ctrlErr) {
				http.Error(w, ctrlErr.Error(), http.StatusBadRequest)
				return
			}

			logger.Error().Err(err).Msg("start crawl failed")
			http.Error(w, "internal error", http.StatusInternalServerError)

			return
		}

		writeJSON(w, result)
	})

	mux.HandleFunc("/v1/status", func(w http.ResponseWriter, r *http.Request) {
		baseDomain := r.URL.Query().Get("base_domain")

		result, err := ctrl.Status(r.Context(), baseDomain)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				http.Error(w, "not found", http.StatusNotFound)
				return
			}

			logger.Error().Err(err).Msg("status lookup failed")
			http.Error(w, "internal error", http.StatusInternalServerError)

			return
		}

		writeJSON(w, result)
	})

	mux.HandleFunc("/v1/links", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()

		page, _ := strconv.Atoi(q.Get("page"))
		limit, _ := strconv.Atoi(q.Get("limit"))

		result, err := ctrl.Links(r.Context(), q.Get("base_domain"), page, limit, q.Get("text_filter"), control.RelType(q.Get("rel_type")), q.Get("domain_filter"))
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				http.Error(w, "not found", http.StatusNotFound)
				return
			}

			logger.Error().Err(err).Msg("links lookup failed")
			http.Error(w, "internal error", http.StatusInternalServerError)

			return
		}

		writeJSON(w, result)
	})

	return &http.Server{Addr: ":8090", Handler: mux}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

// setLogLevel sets the global log level based on the configuration.
func setLogLevel(level string) {
	switch level {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}
