// internal/app/server.go
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"ordering-service/internal/config"
	"ordering-service/internal/db"
	authHandler "ordering-service/internal/handlers/auth"
	catalogHandler "ordering-service/internal/handlers/catalog"
	invitationHandler "ordering-service/internal/handlers/invitation"
	wsHandler "ordering-service/internal/handlers/websocket"
	"ordering-service/internal/metrics"
	"ordering-service/internal/middleware"
	"ordering-service/internal/pkg/cache"
	"ordering-service/internal/pkg/kvstore"
	"ordering-service/internal/repository/gotrue"
	"ordering-service/internal/repository/postgres"
	authUsecase "ordering-service/internal/service/auth"
	catalogUsecase "ordering-service/internal/service/catalog"
	"ordering-service/internal/service/email"
	"ordering-service/internal/service/invitation"
	sessionUsecase "ordering-service/internal/service/session"
	"ordering-service/internal/websocket"
)

type Server struct {
	cfg    config.AppConfig
	engine *gin.Engine
	logger *zap.Logger
	http   *http.Server

	pool     *pgxpool.Pool
	sqliteDB *sql.DB
	redis    redis.UniversalClient
}

func NewServer(cfg config.AppConfig, logger *zap.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)
	return &Server{cfg: cfg, engine: gin.New(), logger: logger}
}

// Start wires every component and serves until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	logger := s.logger

	// ----- PostgreSQL -----
	if s.cfg.RunMigrations {
		if err := db.RunMigrations(s.cfg.DatabaseURL); err != nil {
			return err
		}
		logger.Info("database migrations applied")
	}
	pool, err := db.ConnectDB(ctx, db.PostgresConfig{
		URL:             s.cfg.DatabaseURL,
		MaxConns:        s.cfg.DBMaxConns,
		MaxConnLifetime: time.Hour,
	})
	if err != nil {
		return fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}
	s.pool = pool
	logger.Info("connected to PostgreSQL")

	// ----- Device-local store -----
	backend, err := s.openKVBackend(ctx)
	if err != nil {
		return err
	}
	store := kvstore.New(backend,
		kvstore.WithNamespace(s.cfg.KVNamespace),
		kvstore.WithReadCacheTTL(s.cfg.Auth.StoreReadCacheTTL),
		kvstore.WithLogger(logger.Named("kvstore")),
	)

	// ----- Metrics -----
	registry := prometheus.NewRegistry()
	var recorder metrics.Recorder = metrics.Nop{}
	if s.cfg.MetricsEnabled {
		registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		recorder = metrics.NewCollector(registry)
	}
	dataCache := cache.NewDataCache(s.cfg.Auth.DataCacheTTL, time.Now, recorder)

	// ----- Identity provider -----
	provider, err := gotrue.New(gotrue.Config{
		URL:         s.cfg.AuthURL,
		AnonKey:     s.cfg.AuthAnonKey,
		JWTSecret:   s.cfg.AuthJWTSecret,
		Timeout:     s.cfg.AuthTimeout,
		RedirectURL: s.cfg.AuthRedirectURL,
	}, store, logger.Named("gotrue"))
	if err != nil {
		return fmt.Errorf("failed to create identity provider client: %w", err)
	}

	// ----- Repositories -----
	adminRepo := postgres.NewAdminRepository(pool)
	invitationRepo := postgres.NewInvitationRepository(pool)
	customerRepo := postgres.NewCustomerRepository(pool)
	catalogRepo := postgres.NewCatalogRepository(pool)

	// ----- WebSocket Hub -----
	hub := websocket.NewHub(logger.Named("ws"))
	go hub.Run(ctx)

	// ----- Services -----
	resolver := sessionUsecase.NewResolver(
		provider,
		adminRepo,
		customerRepo,
		store,
		dataCache,
		hub,
		recorder,
		logger.Named("session"),
	)
	hub.RegisterHandler(websocket.NewSessionHandler(resolver))

	authService := authUsecase.NewService(
		provider,
		adminRepo,
		customerRepo,
		resolver,
		store,
		authUsecase.NewCooldown(store, s.cfg.Auth.ResendCooldown, time.Now),
		hub,
		recorder,
		logger.Named("auth"),
	)

	emailSender := email.NewSender(email.Config{
		Host:      s.cfg.SMTPHost,
		Port:      s.cfg.SMTPPort,
		Username:  s.cfg.SMTPUser,
		Password:  s.cfg.SMTPPass,
		FromName:  s.cfg.SMTPFromName,
		Secure:    s.cfg.SMTPSecure,
		InviteURL: s.cfg.InviteURL,
	}, logger.Named("email"))
	if !emailSender.Enabled() {
		logger.Warn("SMTP not configured, invitations will not be emailed")
	}

	invitationManager := invitation.NewManager(
		adminRepo,
		invitationRepo,
		provider,
		resolver,
		store,
		emailSender,
		s.cfg.Auth.InvitationTTL,
		logger.Named("invitation"),
	)

	catalogService := catalogUsecase.NewService(
		catalogRepo,
		customerRepo,
		resolver,
		dataCache,
		s.cfg.Auth.RecentOrdersLimit,
		logger.Named("catalog"),
	)

	// ----- Middlewares -----
	s.engine.Use(
		middleware.LoggingMiddleware(logger, recorder),
		middleware.RecoveryMiddleware(logger, recorder),
		middleware.CORSMiddleware(s.cfg.AllowedOrigins),
	)

	// ----- Router -----
	handlers := &Handlers{
		AuthHandler:       authHandler.NewAuthHandler(authService, resolver, logger),
		InvitationHandler: invitationHandler.NewInvitationHandler(invitationManager, logger),
		CatalogHandler:    catalogHandler.NewCatalogHandler(catalogService),
		WSHandler:         wsHandler.NewWebSocketHandler(hub, resolver, s.cfg.AllowedOrigins, logger),
		SessionMiddleware: middleware.NewSessionMiddleware(resolver),
	}
	if s.cfg.MetricsEnabled {
		handlers.Metrics = metrics.Handler(registry)
	}
	SetupRouter(s.engine, handlers)

	// Restore the previous session so the first screen does not flash signed out.
	if sess := resolver.GetSession(ctx); sess != nil {
		logger.Info("session restored", zap.String("role", string(sess.Role())))
	}

	// ----- Start HTTP -----
	s.http = &http.Server{
		Addr:              s.cfg.HTTPAddr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	logger.Info("server running", zap.String("addr", s.cfg.HTTPAddr))
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// Shutdown stops the HTTP server and closes the stores.
func (s *Server) Shutdown(ctx context.Context) error {
	var errs []error
	if s.http != nil {
		if err := s.http.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("http shutdown: %w", err))
		}
	}
	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close redis: %w", err))
		}
	}
	if s.sqliteDB != nil {
		if err := s.sqliteDB.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close sqlite: %w", err))
		}
	}
	if s.pool != nil {
		s.pool.Close()
	}
	return errors.Join(errs...)
}

func (s *Server) openKVBackend(ctx context.Context) (kvstore.Backend, error) {
	switch s.cfg.KVBackend {
	case config.KVBackendRedis:
		client, err := db.NewRedis(ctx, db.RedisConfig{
			ClusterMode: s.cfg.RedisIsCluster,
			Addresses:   s.cfg.RedisAddrs,
			Password:    s.cfg.RedisPass,
			DB:          s.cfg.RedisDB,
			PoolSize:    s.cfg.RedisPool,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to connect to Redis: %w", err)
		}
		s.redis = client
		s.logger.Info("key-value store on Redis", zap.Strings("addrs", s.cfg.RedisAddrs))
		return kvstore.NewRedisBackend(client), nil
	default:
		sqlDB, err := db.OpenSQLite(s.cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		s.sqliteDB = sqlDB
		backend, err := kvstore.NewSQLiteBackend(ctx, sqlDB)
		if err != nil {
			return nil, err
		}
		s.logger.Info("key-value store on SQLite", zap.String("path", s.cfg.SQLitePath))
		return backend, nil
	}
}
