package server

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"time"

	"farmazia/internal/blob"
	"farmazia/internal/config"
	"farmazia/internal/docstore"
	custommiddleware "farmazia/internal/middleware"
	"farmazia/internal/repository"
	"farmazia/internal/service"
	"farmazia/internal/transport"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type Server struct {
	*http.Server
	config *config.Config
	logger *zap.Logger
	db     *sql.DB
	sync   *service.SyncRegistry
}

func NewServer(cfg *config.Config, logger *zap.Logger, db *sql.DB) (*Server, error) {
	// Create router
	router := chi.NewRouter()

	// Add basic middleware
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Recoverer)
	router.Use(middleware.Compress(5))
	router.Use(custommiddleware.ErrorHandlingMiddleware(logger))
	router.Use(custommiddleware.LoggingMiddleware(logger))
	router.Use(custommiddleware.CORSMiddleware(nil, cfg.Server.Env == "development"))

	if cfg.Redis.Host != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     fmt.Sprintf("%s:%s", cfg.Redis.Host, cfg.Redis.Port),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		router.Use(custommiddleware.RateLimitMiddleware(redisClient, custommiddleware.DefaultRateLimitConfig(), logger))
	}

	// Health check endpoint
	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})

	// Initialize stores
	documents := docstore.NewPostgresStore(db)

	var blobs blob.Store
	if cfg.Storage.Bucket != "" {
		gcs, err := blob.NewGCSStore(context.Background(), cfg.Storage.Bucket, cfg.Storage.CDNDomain)
		if err != nil {
			return nil, fmt.Errorf("failed to create blob store: %w", err)
		}
		blobs = gcs
	} else {
		logger.Warn("No storage bucket configured, product images are disabled")
		blobs = blob.NewNoopStore()
	}

	// Initialize repositories
	userRepo := repository.NewUserRepository(db)
	refreshTokenRepo := repository.NewRefreshTokenRepository(db)
	sellerRepo := repository.NewSellerRepository(documents)
	catalogRepo := repository.NewCatalogRepository(documents)

	// Initialize services
	authService := service.NewAuthService(userRepo, refreshTokenRepo, cfg.JWT.Secret)
	syncRegistry := service.NewSyncRegistry(func() *service.SyncService {
		return service.NewSyncService(sellerRepo, catalogRepo, blobs, authService, logger)
	})

	// Initialize handlers
	authHandler := transport.NewAuthHandler(authService, syncRegistry, logger)
	sellerHandler := transport.NewSellerHandler(syncRegistry, logger)
	catalogHandler := transport.NewCatalogHandler(catalogRepo, sellerRepo, logger)

	// Create auth middleware
	authMiddleware := custommiddleware.AuthMiddleware(cfg.JWT.Secret, logger)
	farmMiddleware := custommiddleware.RequireFarmProfile(sellerRepo, logger)

	// Register routes
	authHandler.RegisterRoutes(router, authMiddleware)
	sellerHandler.RegisterRoutes(router, authMiddleware, farmMiddleware)
	catalogHandler.RegisterRoutes(router)

	server := &Server{
		Server: &http.Server{
			Addr:         fmt.Sprintf(":%s", cfg.Server.Port),
			Handler:      router,
			IdleTimeout:  time.Minute,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		config: cfg,
		logger: logger,
		db:     db,
		sync:   syncRegistry,
	}

	return server, nil
}

func (s *Server) Close() error {
	s.logger.Info("Closing server resources")

	// Release per-seller sync sessions
	if s.sync != nil {
		s.sync.Close()
	}

	// Close database connection
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			s.logger.Error("Failed to close database connection", zap.Error(err))
		}
	}

	s.logger.Sync()
	return nil
}
