package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/Sternrassler/creature-catalog/internal/config"
	"github.com/Sternrassler/creature-catalog/pkg/broadcast"
	"github.com/Sternrassler/creature-catalog/pkg/catalog"
	"github.com/Sternrassler/creature-catalog/pkg/client"
	"github.com/Sternrassler/creature-catalog/pkg/enrichment"
	"github.com/Sternrassler/creature-catalog/pkg/logging"
	"github.com/Sternrassler/creature-catalog/pkg/metrics"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Refresh periodically and serve the published list over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd, root)
			if err != nil {
				return err
			}
			return serve(cmd.Context(), cfg)
		},
	}
}

func serve(ctx context.Context, cfg config.Config) error {
	logger := logging.NewLogger("server")

	catalogClient, err := client.New(cfg.ClientConfig())
	if err != nil {
		return fmt.Errorf("create catalog client: %w", err)
	}

	pipeline := enrichment.New(catalogClient, cfg.EnrichmentConfig())

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()

		if err := redisClient.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("connect to redis at %s: %w", cfg.Redis.Addr, err)
		}
		logger.Info().Str("addr", cfg.Redis.Addr).Msg("Connected to Redis")

		sink := broadcast.NewRedisSink(redisClient, cfg.BroadcastConfig())
		sub := pipeline.Subscribe(sink.Listener())
		defer pipeline.Unsubscribe(sub)
	}

	ctx, cancel := context.WithCancel(ctx)
	srv := newServer(ctx, pipeline, cfg.Pipeline, redisClient)

	loopDone := make(chan struct{})
	go func() {
		defer close(loopDone)
		srv.refreshLoop(cfg.Pipeline.RefreshInterval)
	}()
	defer func() {
		cancel()
		<-loopDone
		pipeline.Wait()
	}()

	httpServer := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           srv.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().
			Str("addr", cfg.Server.Addr).
			Str("base_url", cfg.Catalog.BaseURL).
			Str("user_agent", cfg.Catalog.UserAgent).
			Msg("Starting catalog server")
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info().Msg("Shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	return httpServer.Shutdown(shutdownCtx)
}

// server exposes the pipeline over HTTP. Background refreshes run under ctx
// so they outlive the request that triggered them.
type server struct {
	ctx      context.Context
	pipeline *enrichment.Pipeline
	page     config.PipelineConfig
	redis    *redis.Client
	logger   zerolog.Logger
}

func newServer(ctx context.Context, pipeline *enrichment.Pipeline, page config.PipelineConfig, redisClient *redis.Client) *server {
	return &server{
		ctx:      ctx,
		pipeline: pipeline,
		page:     page,
		redis:    redisClient,
		logger:   logging.NewLogger("server"),
	}
}

func (s *server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", healthHandler)
	mux.HandleFunc("GET /ready", s.readyHandler)
	mux.Handle("GET /metrics", metrics.Handler())
	mux.HandleFunc("GET /creatures", s.listHandler)
	mux.HandleFunc("GET /creatures/{id}", s.itemHandler)
	mux.HandleFunc("POST /refresh", s.refreshHandler)
	return mux
}

// refreshLoop refreshes once immediately and then every interval until the
// server context ends. A zero interval disables the ticker.
func (s *server) refreshLoop(interval time.Duration) {
	refresh := func() {
		if err := s.trigger(s.page.Offset, s.page.Limit); err != nil {
			s.logger.Warn().Err(err).Msg("Scheduled refresh not started")
		}
	}

	refresh()
	if interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			refresh()
		}
	}
}

func (s *server) trigger(offset, limit int) error {
	if s.ctx.Err() != nil {
		return s.ctx.Err()
	}
	return s.pipeline.RefreshAsync(s.ctx, offset, limit)
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "OK")
}

// readyHandler reports ready once a ResultSet has been published and, when
// configured, Redis answers.
func (s *server) readyHandler(w http.ResponseWriter, r *http.Request) {
	if s.pipeline.Current().Generation == 0 {
		http.Error(w, "no result set published yet", http.StatusServiceUnavailable)
		return
	}

	if s.redis != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.redis.Ping(ctx).Err(); err != nil {
			http.Error(w, fmt.Sprintf("redis unavailable: %v", err), http.StatusServiceUnavailable)
			return
		}
	}

	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "OK")
}

func (s *server) listHandler(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.pipeline.Current())
}

func (s *server) itemHandler(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil || id < 0 {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}

	entity, ok := s.pipeline.Lookup(id)
	if !ok {
		http.Error(w, fmt.Sprintf("creature %d not in the current list", id), http.StatusNotFound)
		return
	}
	s.writeJSON(w, http.StatusOK, entity)
}

// refreshHandler starts a background refresh. The query parameters offset
// and limit override the configured page.
func (s *server) refreshHandler(w http.ResponseWriter, r *http.Request) {
	offset, limit := s.page.Offset, s.page.Limit

	q := r.URL.Query()
	var err error
	if v := q.Get("offset"); v != "" {
		if offset, err = strconv.Atoi(v); err != nil {
			http.Error(w, "invalid offset", http.StatusBadRequest)
			return
		}
	}
	if v := q.Get("limit"); v != "" {
		if limit, err = strconv.Atoi(v); err != nil {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
	}
	if limit > config.MaxPageLimit {
		http.Error(w, fmt.Sprintf("limit must be <= %d", config.MaxPageLimit), http.StatusBadRequest)
		return
	}

	if err := s.trigger(offset, limit); err != nil {
		if errors.Is(err, catalog.ErrInvalidPage) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}

	s.writeJSON(w, http.StatusAccepted, map[string]any{
		"status": "accepted",
		"offset": offset,
		"limit":  limit,
	})
}

func (s *server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to write response")
	}
}
