package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rolegate/rolegate/config"
	"github.com/rolegate/rolegate/internal/db"
	"github.com/rolegate/rolegate/internal/events"
	"github.com/rolegate/rolegate/internal/handlers"
	"github.com/rolegate/rolegate/internal/metrics"
	"github.com/rolegate/rolegate/internal/mq"
	"github.com/rolegate/rolegate/internal/services"
	"github.com/rolegate/rolegate/internal/session"
	"github.com/rolegate/rolegate/internal/storage"
	"github.com/rolegate/rolegate/internal/store"
	"github.com/rolegate/rolegate/internal/views"
	"github.com/sirupsen/logrus"
)

const (
	sweepInterval   = time.Minute
	limiterIdleTime = 10 * time.Minute
)

type sessionBackend interface {
	services.SessionStore
	session.Expirer
}

// Server wraps the HTTP server, its router and the resources it owns.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	db         *sql.DB
	broker     mq.Backend
	publisher  *events.Publisher
	sessions   sessionBackend
	limiter    *handlers.LoginLimiter
	log        logrus.FieldLogger

	stop context.CancelFunc
}

// New opens the database and the optional broker and asset backends, and
// wires the routes.
func New(ctx context.Context, cfg config.Config, log *logrus.Logger) (*Server, error) {
	dbConn, err := db.Open(ctx, cfg)
	if err != nil {
		return nil, err
	}

	broker, err := mq.Open(ctx, cfg.Events)
	if err != nil {
		_ = dbConn.Close()
		return nil, fmt.Errorf("open events backend: %w", err)
	}

	assets, err := storage.Open(ctx, cfg.Assets)
	if err != nil {
		closeBroker(broker)
		_ = dbConn.Close()
		return nil, fmt.Errorf("open assets backend: %w", err)
	}

	renderer, err := views.New()
	if err != nil {
		closeBroker(broker)
		_ = dbConn.Close()
		return nil, err
	}

	var sessions sessionBackend
	switch cfg.Session.Store {
	case config.SessionStorePostgres:
		sessions = store.NewSessionRepository(dbConn)
	default:
		sessions = session.NewMemoryStore()
	}

	publisher := events.NewPublisher(broker, cfg.Events.Channel, log)
	auth := services.NewAuthService(
		store.NewUserRepository(dbConn),
		sessions,
		services.NewBcryptHasher(cfg.Auth.BcryptCost),
		services.WithSessionTTL(cfg.Session.TTL),
		services.WithEvents(publisher),
		services.WithLogger(log),
	)

	m := metrics.New()
	limiter := handlers.NewLoginLimiter(cfg.Auth.LoginRate, cfg.Auth.LoginBurst)

	router := newRouter(cfg, routes{
		app: handlers.AppContext{
			Auth:     auth,
			Cookies:  session.NewCookies(session.NewCodec(cfg.Session.Secret), cfg.Session.CookieSecure),
			Views:    renderer,
			Metrics:  m,
			Log:      log,
			Throttle: limiter,
		},
		assets: assets,
		db:     dbConn,
		log:    log,
	})

	port := cfg.ServerPort
	if port == 0 {
		port = 3000
	}

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: httpServer,
		router:     router,
		db:         dbConn,
		broker:     broker,
		publisher:  publisher,
		sessions:   sessions,
		limiter:    limiter,
		log:        log,
	}, nil
}

// routes holds what newRouter mounts.
type routes struct {
	app    handlers.AppContext
	assets storage.ObjectStorage
	db     handlers.Pinger
	log    *logrus.Logger
}

func newRouter(cfg config.Config, rt routes) *chi.Mux {
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	if cfg.TrustProxyHeaders {
		router.Use(middleware.RealIP)
	}
	router.Use(
		middleware.Recoverer,
		middleware.RequestLogger(&middleware.DefaultLogFormatter{Logger: rt.log, NoColor: true}),
		rt.app.Metrics.Middleware,
		middleware.Timeout(60*time.Second),
	)
	handlers.HealthRouter(router, rt.db)
	router.Method(http.MethodGet, "/metrics", rt.app.Metrics.Handler())
	handlers.AssetRouter(router, rt.assets, rt.log)
	handlers.AuthRouter(router, rt.app)
	return router
}

// Router exposes the chi router for route registration.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Start runs the background sweepers and serves HTTP until Shutdown.
func (s *Server) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	s.stop = cancel

	go session.Sweep(ctx, s.sessions, sweepInterval, s.log)
	go s.pruneLimiter(ctx)

	s.log.WithField("addr", s.httpServer.Addr).Info("server listening")
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests, then releases the database and broker.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.stop != nil {
		s.stop()
	}
	err := s.httpServer.Shutdown(ctx)
	if perr := s.publisher.Close(ctx); perr != nil {
		s.log.WithError(perr).Warn("pending auth events were not delivered")
	}
	closeBroker(s.broker)
	if s.db != nil {
		_ = s.db.Close()
	}
	return err
}

func (s *Server) pruneLimiter(ctx context.Context) {
	ticker := time.NewTicker(limiterIdleTime)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.limiter.Prune(limiterIdleTime)
		}
	}
}

func closeBroker(b mq.Backend) {
	if b != nil {
		_ = b.Close()
	}
}
