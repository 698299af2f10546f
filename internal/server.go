package internal

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"assettrack-api/internal/auth"
	"assettrack-api/internal/config"
	"assettrack-api/internal/extract"
	"assettrack-api/internal/history"
	"assettrack-api/internal/repository"
	"assettrack-api/internal/store"
	"assettrack-api/pkg/normalizer"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// Extractor turns free text into candidate asset rows. Satisfied by
// extract.Client; tests substitute a stub.
type Extractor interface {
	Extract(ctx context.Context, text string) ([]map[string]string, error)
}

// Server wires the repository, snapshot cache, history engine and HTTP
// surface together.
type Server struct {
	Repo       repository.AssetRepository
	Snapshot   *store.Snapshot
	Engine     *history.Engine
	Extractor  Extractor
	Router     *chi.Mux
	JWTManager *auth.JWTManager
	Metrics    *Metrics
	Logger     *zap.Logger

	normalizerOpts normalizer.Options
}

// NewServer assembles the server from configuration and an opened
// repository.
func NewServer(cfg *config.Config, repo repository.AssetRepository, engine *history.Engine, log *zap.Logger) (*Server, error) {
	jwtManager := auth.NewJWTManager(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTAudience, cfg.JWTExpiry)
	if err := jwtManager.ValidateConfig(); err != nil {
		return nil, err
	}

	opts := normalizer.Options{EnforceSitePattern: cfg.EnforceSitePattern}
	if cfg.AliasFile != "" {
		aliases, err := normalizer.LoadAliasFile(cfg.AliasFile)
		if err != nil {
			return nil, err
		}
		opts.Aliases = aliases
	}

	s := &Server{
		Repo:       repo,
		Snapshot:   store.NewSnapshot(repo),
		Engine:     engine,
		Extractor: extract.NewClient(extract.Config{
			Endpoint: cfg.ExtractEndpoint,
			APIKey:   cfg.ExtractAPIKey,
			Model:    cfg.ExtractModel,
			Timeout:  cfg.ExtractTimeout,
		}),
		Router:         chi.NewRouter(),
		JWTManager:     jwtManager,
		Metrics:        NewMetrics(),
		Logger:         log,
		normalizerOpts: opts,
	}

	// Middleware must be attached before any route is registered.
	s.Router.Use(s.requestLogger)
	if cfg.EnableMetrics {
		s.Router.Use(s.Metrics.Middleware())
	}

	// Public routes first.
	s.Router.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		if _, err := w.Write([]byte("ok")); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	})
	s.Router.Post("/auth/login", s.loginUser)
	if cfg.EnableMetrics {
		s.Router.Get("/metrics", s.Metrics.Handler().ServeHTTP)
	}

	// Protected routes.
	s.Router.Group(func(r chi.Router) {
		r.Use(auth.AuthMiddleware(s.JWTManager))
		s.mountProtectedRoutes(r)
	})

	return s, nil
}

// mountProtectedRoutes mounts the routes that require a session token.
func (s *Server) mountProtectedRoutes(r chi.Router) {
	r.Get("/assets", s.listAssets)
	r.Get("/assets/{id}", s.getAsset)
	r.Get("/assets/{id}/history", s.getAssetHistory)
	r.Post("/assets", s.createAsset)
	r.Put("/assets/{id}", s.updateAsset)
	r.Delete("/assets", s.deleteAssets)

	r.Post("/imports/spreadsheet", s.importSpreadsheet)
	r.Post("/imports/text", s.importText)

	r.Get("/dashboard/summary", s.dashboardSummary)
}

// requestLogger logs each request with its route, status and latency.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &statusRecorder{ResponseWriter: w, code: http.StatusOK}
		next.ServeHTTP(rw, r)
		s.Logger.Info("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rw.code),
			zap.Duration("duration", time.Since(start)),
		)
	})
}

// loginUser is the placeholder login: any non-empty username and password
// are exchanged for a session token.
func (s *Server) loginUser(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", "invalid JSON body")
		return
	}
	if req.Username == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "CREDENTIALS_REQUIRED", "username and password are required")
		return
	}

	token, err := s.JWTManager.GenerateToken(req.Username)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "TOKEN_FAILED", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

// ensureSnapshot makes sure the cache has been loaded at least once. The
// initial load is best-effort: a connectivity failure logs and serves an
// empty set instead of failing the read.
func (s *Server) ensureSnapshot(ctx context.Context, force bool) error {
	if force {
		return s.Snapshot.Reload(ctx)
	}
	if s.Snapshot.Loaded() {
		return nil
	}
	if err := s.Snapshot.Reload(ctx); err != nil {
		s.Logger.Warn("initial snapshot load failed, serving empty set", zap.Error(err))
	}
	return nil
}
