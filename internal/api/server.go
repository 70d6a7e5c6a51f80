// Package api serves the tip ledger over HTTP.
package api

import (
	"context"
	"io"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

	"tip-ledger/internal/dashboard"
	"tip-ledger/internal/domain"
	"tip-ledger/internal/observability"
	"tip-ledger/internal/reward"
)

// TipRecorder records a tip and evaluates its reward.
type TipRecorder interface {
	RecordTip(ctx context.Context, req reward.TipRequest) (*reward.TipResult, error)
}

// DashboardReader builds read-only ledger views.
type DashboardReader interface {
	Supporter(ctx context.Context, wallet string) (*dashboard.Dashboard, error)
	CreatorSupporters(ctx context.Context, creator string, limit int) (*dashboard.CreatorSupporters, error)
}

// Leaderboard ranks creators from the analytics mirror.
type Leaderboard interface {
	CreatorLeaderboard(ctx context.Context, sinceMs int64, limit int) ([]*domain.CreatorRanking, error)
}

// Options configures the HTTP handler.
type Options struct {
	Tips      TipRecorder
	Dashboard DashboardReader
	// Leaderboard is optional; without it the leaderboard route is not mounted.
	Leaderboard    Leaderboard
	PlatformWallet string

	CORS CORSConfig
	// TipRateLimit limits POST /tip per client. Zero disables limiting.
	TipRateLimit RateLimit
	Logger       *log.Logger
}

// Server holds the handlers' dependencies.
type Server struct {
	tips           TipRecorder
	dashboard      DashboardReader
	leaderboard    Leaderboard
	platformWallet string
	logger         *log.Logger
}

// NewRouter builds the routes. Every route is also served under /api.
func NewRouter(opts Options) http.Handler {
	s := &Server{
		tips:           opts.Tips,
		dashboard:      opts.Dashboard,
		leaderboard:    opts.Leaderboard,
		platformWallet: opts.PlatformWallet,
		logger:         opts.Logger,
	}
	if s.logger == nil {
		s.logger = log.New(io.Discard, "", 0)
	}

	var limiter *RateLimiter
	if opts.TipRateLimit.RequestsPerMinute > 0 {
		limiter = NewRateLimiter(opts.TipRateLimit, s.logger)
	}

	r := chi.NewRouter()
	r.Use(CORS(opts.CORS))
	r.Use(Metrics)

	r.Handle("/metrics", observability.Handler())

	mount := func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.With(limiter.Middleware).Post("/tip", s.handleTip)
		r.Get("/supporter/{wallet}", s.handleSupporter)
		r.Get("/creator/{wallet}/supporters", s.handleCreatorSupporters)
		if s.leaderboard != nil {
			r.Get("/creators/leaderboard", s.handleLeaderboard)
		}
	}
	mount(r)
	r.Route("/api", func(r chi.Router) {
		mount(r)
		r.Get("/dashboard/{wallet}", s.handleSupporter)
	})

	return r
}
