package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// RequestIDHeader carries the request id between client and server.
const RequestIDHeader = "X-Request-ID"

// ServerConfig holds configuration for the web server
type ServerConfig struct {
	Port           int
	AllowedOrigin  string
	RequestTimeout time.Duration
	Watch          bool

	// DB is nil when the cutoff data failed to load; the comparison
	// endpoints then answer 503.
	DB   *DB
	Chat *ChatHandler
}

type requestIDKey struct{}

// NewRouter builds the API routes and middleware.
func NewRouter(config ServerConfig) http.Handler {
	if config.RequestTimeout <= 0 {
		config.RequestTimeout = 60 * time.Second
	}

	r := chi.NewRouter()

	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(config.RequestTimeout))
	r.Use(corsMiddleware(config.AllowedOrigin))

	apiHandler := &APIHandler{Chat: config.Chat}
	if config.DB != nil {
		apiHandler.Service = NewComparisonService(config.DB)
		apiHandler.Stats = config.DB
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", apiHandler.Health)

		r.Route("/compare", func(r chi.Router) {
			r.Get("/test", apiHandler.Endpoints)
			r.Get("/health", apiHandler.CompareHealth)
			r.Get("/colleges", apiHandler.SearchColleges)
			r.Post("/branches", apiHandler.Branches)
			r.Post("/compare", apiHandler.Compare)
		})

		if config.Chat != nil {
			r.Post("/chat", config.Chat.Chat)
			r.Get("/chat/status", config.Chat.Status)
			r.Post("/chat/clear", config.Chat.Clear)
		}
	})

	return r
}

// StartServer serves the API until ctx is cancelled, then shuts down gracefully.
func StartServer(ctx context.Context, config ServerConfig) error {
	if config.Watch && config.DB != nil {
		go func() {
			if err := WatchCutoffs(ctx, config.DB); err != nil && logger != nil {
				logger.Error("Cutoff watcher stopped", zap.Error(err))
			}
		}()
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", config.Port),
		Handler:           NewRouter(config),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if logger != nil {
			logger.Info("Starting server", zap.String("addr", srv.Addr))
		}
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down server: %w", err)
	}
	return nil
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)
		ctx := context.WithValue(r.Context(), requestIDKey{}, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func requestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if logger == nil {
			next.ServeHTTP(w, r)
			return
		}
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		logger.Info("HTTP request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Int("bytes", ww.BytesWritten()),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("request_id", requestID(r.Context())))
	})
}

// corsMiddleware allows the configured browser origin and answers preflights.
func corsMiddleware(origin string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if origin != "" {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Headers", "Content-Type,Authorization,Accept,X-Requested-With,"+RequestIDHeader)
				w.Header().Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
				w.Header().Add("Vary", "Origin")
			}
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
