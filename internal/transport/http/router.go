package http

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-email-verify/internal/application/verification"
	"github.com/go-email-verify/internal/config"
	"github.com/go-email-verify/internal/transport/http/handler"
	appmiddleware "github.com/go-email-verify/internal/transport/http/middleware"
	"golang.org/x/time/rate"
)

// NewRouter builds and returns the application router. ctx bounds the
// rate limiter's cleanup loop.
func NewRouter(ctx context.Context, cfg *config.Config, deps *Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	limit := func(next http.Handler) http.Handler { return next }
	if cfg.RateLimitRPS > 0 {
		rl := appmiddleware.NewRateLimiter(rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst)
		go func() { _ = rl.Cleanup(ctx, time.Minute) }()
		limit = rl.Limit
	}

	svc := verification.NewService(verification.ServiceDeps{
		Store:           deps.Store,
		Mailer:          deps.Mailer,
		Renderer:        deps.Renderer,
		Publisher:       deps.Publisher,
		Signer:          deps.Signer,
		Metrics:         deps.Metrics,
		CodeTTL:         cfg.CodeTTL,
		DeliveryTimeout: cfg.DeliveryTimeout,
		Subject:         cfg.EmailSubject,
		HashPasswords:   cfg.HashPendingPasswords,
	})

	healthH := handler.NewHealthHandler()
	verifyH := handler.NewVerificationHandler(svc)

	r.Get("/health-check/{action}", healthH.Ping)
	r.Post("/health-check/{action}", healthH.Ping)
	r.With(limit).Post("/send-code", verifyH.SendCode)
	r.With(limit).Post("/verify-code", verifyH.VerifyCode)
	if deps.Metrics != nil {
		r.Handle("/metrics", deps.Metrics.Handler())
	}

	return r
}
