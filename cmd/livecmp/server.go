package main

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"

	"github.com/pthm/livecmp"
	"github.com/pthm/livecmp/internal/demo"
	"github.com/pthm/livecmp/lib/bridge"
	"github.com/pthm/livecmp/lib/config"
	"github.com/pthm/livecmp/lib/session"
)

// server holds the demo application and the resources it owns.
type server struct {
	cfg      *config.Config
	logger   *slog.Logger
	registry *livecmp.Registry
	sessions session.Store
	nc       *nats.Conn
	handler  http.Handler
}

func newServer(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*server, error) {
	s := &server{cfg: cfg, logger: logger}

	key := []byte(cfg.SecretKey)
	if len(key) == 0 {
		key = make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			return nil, fmt.Errorf("generate key: %w", err)
		}
		logger.Warn("no secret key configured, using a random one; lazy placeholders will not survive a restart")
	}

	opts := []livecmp.Option{
		livecmp.WithLogger(logger.With("component", "livecmp")),
		livecmp.WithDebug(cfg.Debug),
		livecmp.WithLayout(siteLayout(cfg.Title)),
		livecmp.WithScripts(cfg.ScriptsConfig()),
		livecmp.WithTracerProvider(otel.GetTracerProvider()),
	}

	var promReg *prometheus.Registry
	if cfg.Metrics {
		promReg = prometheus.NewRegistry()
		promReg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		opts = append(opts, livecmp.WithMetrics(livecmp.NewMetrics(livecmp.WithMetricsRegistry(promReg))))
	}

	if cfg.NATSURL != "" {
		nc, err := bridge.Connect(cfg.NATSURL, "livecmp", logger)
		if err != nil {
			return nil, err
		}
		s.nc = nc
		opts = append(opts, livecmp.WithNativeSink(bridge.NewPublisher(nc, cfg.NATSSubject)))
	}

	store, err := session.Open(ctx, cfg.Session.Driver, cfg.Session.DSN)
	if err != nil {
		s.Close()
		return nil, err
	}
	s.sessions = store

	s.registry = livecmp.NewRegistry(key, opts...)
	s.registry.SetSessions(session.NewManager(store,
		session.WithCookieName(cfg.Session.Cookie),
		session.WithTTL(cfg.Session.TTL),
	))
	demo.Register(s.registry, demo.Deps{Home: "/dashboard"})

	s.handler = s.routes(promReg)
	return s, nil
}

func (s *server) routes(promReg *prometheus.Registry) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.logRequests)
	r.Use(middleware.Recoverer)

	r.Method(http.MethodPost, s.cfg.Endpoint, s.registry.Handler())
	r.Method(http.MethodGet, livecmp.AssetPath, livecmp.AssetHandler())

	r.Method(http.MethodGet, "/", s.registry.PageHandler("counter", nil))
	r.Method(http.MethodGet, "/todos", s.registry.PageHandler("todos", nil))
	r.Method(http.MethodGet, "/signup", s.registry.PageHandler("signup", nil))
	r.Method(http.MethodGet, "/login", s.registry.PageHandler("login", nil))
	r.Method(http.MethodGet, "/device", s.registry.PageHandler("device", nil))
	r.Method(http.MethodGet, "/dashboard", s.registry.PageHandler("stats", nil))
	r.Method(http.MethodGet, "/dashboard/{range}", s.registry.PageHandler("stats", func(r *http.Request) map[string]any {
		return map[string]any{"range": chi.URLParam(r, "range")}
	}))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok"))
	})
	if promReg != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(promReg, promhttp.HandlerOpts{}))
	}
	return r
}

func (s *server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

// sweep removes expired sessions until ctx is done.
func (s *server) sweep(ctx context.Context, every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			n, err := s.sessions.Sweep(ctx)
			if err != nil {
				s.logger.Warn("session sweep failed", "error", err)
				continue
			}
			if n > 0 {
				s.logger.Debug("swept sessions", "count", n)
			}
		}
	}
}

// run serves until ctx is cancelled, then shuts down gracefully.
func (s *server) run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	sweepCtx, stopSweep := context.WithCancel(ctx)
	defer stopSweep()
	go s.sweep(sweepCtx, s.cfg.Session.TTL/4)

	errc := make(chan error, 1)
	go func() {
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// Close releases the session store and the NATS connection.
func (s *server) Close() error {
	var errs []error
	if s.sessions != nil {
		errs = append(errs, s.sessions.Close())
	}
	if s.nc != nil {
		if err := s.nc.Drain(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
