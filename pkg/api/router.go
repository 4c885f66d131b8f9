package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"tokenmint/pkg/fee"
	"tokenmint/pkg/metrics"
)

// HandlerConfig wires the HTTP API to its services
type HandlerConfig struct {
	Calculator  *fee.Calculator
	Builder     PaymentBuilder
	Verifier    PaymentVerifier
	Tokens      TokenService
	Network     string
	RateLimiter *RateLimiter
	CORSOrigins []string
	Logger      *slog.Logger
}

func (cfg HandlerConfig) validate() error {
	if cfg.Calculator == nil {
		return errors.New("fee calculator is required")
	}
	if cfg.Builder == nil {
		return errors.New("payment builder is required")
	}
	if cfg.Verifier == nil {
		return errors.New("payment verifier is required")
	}
	if cfg.Tokens == nil {
		return errors.New("token service is required")
	}
	if cfg.Logger == nil {
		return errors.New("logger is required")
	}
	return nil
}

// NewRouter builds the chi router serving the API, health and metrics
func NewRouter(cfg HandlerConfig) (http.Handler, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	h := &Handlers{
		calculator: cfg.Calculator,
		builder:    cfg.Builder,
		verifier:   cfg.Verifier,
		tokens:     cfg.Tokens,
		network:    cfg.Network,
		log:        cfg.Logger,
	}

	origins := cfg.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(metrics.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type", IdempotencyKeyHeader},
		ExposedHeaders: []string{ReplayedHeader, "Retry-After"},
		MaxAge:         300,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("ok\n")); err != nil {
			cfg.Logger.Error("failed to write healthz response", "error", err)
		}
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Get("/config", h.handleConfig)
		r.Post("/fee", h.handleFee)

		// Verification is polled while the user signs, so only the routes
		// that build or submit transactions are limited
		r.Post("/payment/verify", h.handleVerifyPayment)
		r.Post("/payment/verify/reference", h.handleVerifyReference)

		r.Group(func(r chi.Router) {
			if cfg.RateLimiter != nil {
				r.Use(cfg.RateLimiter.Middleware)
			}
			r.Post("/payment/transaction", h.handleBuildPayment)
			r.Post("/tokens", h.handleCreateToken)
		})
	})

	return r, nil
}
