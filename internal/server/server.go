package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/tiketi/apiserver/config"
	"github.com/tiketi/apiserver/internal/auth"
	"github.com/tiketi/apiserver/internal/cache"
	"github.com/tiketi/apiserver/internal/db"
	"github.com/tiketi/apiserver/internal/handlers"
	"github.com/tiketi/apiserver/internal/metrics"
	"github.com/tiketi/apiserver/internal/mq"
	"github.com/tiketi/apiserver/internal/ratelimit"
	"github.com/tiketi/apiserver/internal/services"
	"github.com/tiketi/apiserver/internal/storage"
	"github.com/tiketi/apiserver/internal/store"
)

// Server wraps the HTTP server and router.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	db         *sql.DB
	mq         *mq.MQ
	cache      cache.Cache
	limiter    *ratelimit.Limiter
	stop       context.CancelFunc
}

// Services bundles the use-cases exposed over HTTP.
type Services struct {
	Users      *services.UserService
	Categories *services.CategoryService
	Events     *services.EventService
	Tickets    *services.TicketService
	Payments   *services.PaymentService
}

// RouterOptions configures NewRouter.
type RouterOptions struct {
	Tokens       *auth.TokenIssuer
	AdminOnly    bool
	LoginLimiter *ratelimit.Limiter
	Metrics      bool
	DB           handlers.Pinger
}

// New connects every configured backend and builds the HTTP server.
func New(ctx context.Context, cfg config.Config) (*Server, error) {
	dbConn, err := db.Open(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	s := &Server{db: dbConn}
	ok := false
	defer func() {
		if !ok {
			_ = s.Shutdown(context.Background())
		}
	}()

	hasher, err := auth.NewHasher(cfg.Auth.BcryptCost)
	if err != nil {
		return nil, err
	}
	tokens, err := auth.NewTokenIssuer(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	if err != nil {
		return nil, err
	}

	s.mq, err = mq.NewFromConfig(ctx, cfg.MQ)
	if err != nil {
		return nil, err
	}
	var events services.EventPublisher
	if s.mq != nil {
		events = s.mq
	}

	posterStorage, err := storage.NewFromConfig(ctx, cfg.Storage)
	if err != nil {
		return nil, err
	}
	var posters services.PosterStore
	if posterStorage != nil {
		posters = posterStorage
	}

	var categoryCache cache.Cache
	if cfg.Redis.URL != "" {
		categoryCache, err = cache.NewRedisCache(ctx, cfg.Redis.URL)
		if err != nil {
			return nil, err
		}
		s.cache = categoryCache
	}

	userRepo := store.NewUserRepository(dbConn)
	categoryRepo := store.NewCategoryRepository(dbConn)
	eventRepo := store.NewEventRepository(dbConn)
	ticketRepo := store.NewTicketRepository(dbConn)
	paymentRepo := store.NewPaymentRepository(dbConn)

	categoryService := services.NewCategoryService(categoryRepo, categoryCache, cfg.Redis.CategoryTTL)
	svc := Services{
		Users:      services.NewUserService(userRepo, hasher, tokens, events),
		Categories: categoryService,
		Events:     services.NewEventService(eventRepo, ticketRepo, posters, categoryService),
		Tickets:    services.NewTicketService(ticketRepo),
		Payments:   services.NewPaymentService(paymentRepo, events),
	}

	if cfg.RateLimit.LoginRate > 0 {
		s.limiter = ratelimit.New(cfg.RateLimit.LoginRate, cfg.RateLimit.LoginBurst)
		limiterCtx, cancel := context.WithCancel(context.Background())
		s.stop = cancel
		go s.limiter.Run(limiterCtx)
	}

	s.router = NewRouter(svc, RouterOptions{
		Tokens:       tokens,
		AdminOnly:    cfg.Auth.AdminOnly,
		LoginLimiter: s.limiter,
		Metrics:      cfg.Metrics,
		DB:           dbConn,
	})

	port := cfg.ServerPort
	if port == 0 {
		port = 8080
	}

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	slog.Info("server configured",
		"port", port,
		"admin_only", cfg.Auth.AdminOnly,
		"storage", cfg.Storage.Backend,
		"mq", cfg.MQ.Backend,
		"cache", categoryCache != nil,
	)
	ok = true
	return s, nil
}

// NewRouter mounts every route with the standard middleware chain.
func NewRouter(svc Services, opts RouterOptions) *chi.Mux {
	authMiddleware := handlers.RequireAuth(opts.Tokens)
	privileged := handlers.Privileged(authMiddleware, opts.AdminOnly)

	var loginLimit func(http.Handler) http.Handler
	if opts.LoginLimiter != nil {
		loginLimit = opts.LoginLimiter.Middleware
	}

	router := chi.NewRouter()
	router.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Recoverer,
		middleware.Logger,
		middleware.Timeout(60*time.Second),
	)
	router.Get("/healthz", handlers.Healthz(opts.DB))
	if opts.Metrics {
		router.Handle("/metrics", metrics.Handler())
	}

	handlers.AuthRouter(router, svc.Users, authMiddleware, privileged, loginLimit)
	router.Route("/categories", func(r chi.Router) {
		handlers.CategoryRouter(r, svc.Categories, privileged)
	})
	router.Route("/events", func(r chi.Router) {
		handlers.EventRouter(r, svc.Events, privileged)
	})
	router.Route("/tickets", func(r chi.Router) {
		handlers.TicketRouter(r, svc.Tickets, privileged)
	})
	router.Route("/payments", func(r chi.Router) {
		handlers.PaymentRouter(r, svc.Payments, authMiddleware)
	})

	return router
}

// Router exposes the chi router for route registration.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Start runs the HTTP server until it is shut down.
func (s *Server) Start() error {
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests and releases every backend.
func (s *Server) Shutdown(ctx context.Context) error {
	var errs []error
	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("http shutdown: %w", err))
		}
	}
	if s.stop != nil {
		s.stop()
	}
	if s.mq != nil {
		if err := s.mq.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close mq: %w", err))
		}
	}
	if s.cache != nil {
		if err := s.cache.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close cache: %w", err))
		}
	}
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close database: %w", err))
		}
	}
	return errors.Join(errs...)
}
