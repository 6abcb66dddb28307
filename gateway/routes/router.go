package routes

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"lendcore/gateway/middleware"
	"lendcore/native/bank"
	"lendcore/native/bank/spell"
	"lendcore/native/oracle"
	"lendcore/services/bankindex"
)

// EventLister reads indexed events.
type EventLister interface {
	List(ctx context.Context, f bankindex.Filter) ([]bankindex.Entry, error)
}

// Config wires the HTTP surface to a running engine. Index, RateLimiter and
// Observability are optional.
type Config struct {
	Engine        *bank.Engine
	Spells        *spell.Registry
	Prices        *oracle.Simple
	Routes        *oracle.Core
	Proxy         *oracle.Proxy
	Index         EventLister
	Authenticator *middleware.Authenticator
	RateLimiter   *middleware.RateLimiter
	Observability *middleware.Observability
	Logger        *slog.Logger
	Timeout       time.Duration
}

// server serialises every engine call; the engine itself is single-threaded.
type server struct {
	cfg    Config
	mu     sync.Mutex
	logger *slog.Logger
}

func New(cfg Config) http.Handler {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Spells == nil {
		cfg.Spells = spell.NewRegistry()
	}
	if cfg.Authenticator == nil {
		cfg.Authenticator = middleware.NewAuthenticator(middleware.AuthConfig{}, cfg.Logger)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	s := &server{cfg: cfg, logger: cfg.Logger}

	r := chi.NewRouter()
	if cfg.Observability != nil {
		r.Use(cfg.Observability.Middleware)
	}
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(v1 chi.Router) {
		v1.Use(cfg.RateLimiter.Middleware("/v1"))
		v1.Get("/banks", s.listBanks)
		v1.Get("/banks/{asset}", s.getBank)
		v1.Get("/positions/{id}", s.getPosition)
		v1.Get("/positions/{id}/events", s.positionEvents)
		v1.Get("/spells", s.listSpells)

		v1.Group(func(authed chi.Router) {
			authed.Use(cfg.Authenticator.Middleware())
			authed.Post("/execute", s.execute)
		})
		v1.Route("/admin", func(admin chi.Router) {
			admin.Use(cfg.Authenticator.Middleware(middleware.ScopeAdmin))
			admin.Post("/banks", s.addBank)
			admin.Post("/oracles", s.setOracles)
		})
	})

	return otelhttp.NewHandler(r, "bankd",
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return r.Method + " " + r.URL.Path
		}))
}

func (s *server) context(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, s.cfg.Timeout)
}
