package web

import (
	"context"
	"fmt"
	"net/http"

	"github.com/stellarperps/perpmon/internal/domain"
	"github.com/stellarperps/perpmon/internal/usecase"
	"go.uber.org/zap"
)

type Server struct {
	router  *http.ServeMux
	server  *http.Server
	store   *usecase.PositionStore
	monitor *usecase.MonitorService
	events  domain.EventRepository
	logger  *zap.Logger

	verifySignature  bool
	trustedVerifiers map[string]bool
	webhookLimiter   *clientLimiter
}

type Options struct {
	Port             int
	VerifySignature  bool
	TrustedVerifiers []string
	RateLimitPerSec  float64
	RateLimitBurst   int
}

func NewServer(
	opts Options,
	store *usecase.PositionStore,
	monitor *usecase.MonitorService,
	events domain.EventRepository,
	logger *zap.Logger,
) *Server {
	trusted := make(map[string]bool, len(opts.TrustedVerifiers))
	for _, v := range opts.TrustedVerifiers {
		trusted[v] = true
	}

	s := &Server{
		router:           http.NewServeMux(),
		store:            store,
		monitor:          monitor,
		events:           events,
		logger:           logger,
		verifySignature:  opts.VerifySignature,
		trustedVerifiers: trusted,
		webhookLimiter:   newClientLimiter(opts.RateLimitPerSec, opts.RateLimitBurst),
	}
	s.routes()
	s.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", opts.Port),
		Handler: s.router,
	}
	return s
}

func (s *Server) routes() {
	// Price feed ingestion
	s.router.Handle("POST /webhook/reflector", s.webhookLimiter.limit(http.HandlerFunc(s.handleReflectorWebhook)))

	// Positions
	s.router.HandleFunc("POST /api/positions", s.handleCreatePosition)
	s.router.HandleFunc("GET /api/positions", s.handleListPositions)
	s.router.HandleFunc("GET /api/positions/{id}", s.handleGetPosition)

	// Events
	s.router.HandleFunc("GET /api/events", s.handleListEvents)
	s.router.HandleFunc("GET /api/alerts", s.handleListAlerts)
	s.router.HandleFunc("GET /api/funding", s.handleListFunding)

	// Stats
	s.router.HandleFunc("GET /api/stats", s.handleStats)

	// Status
	s.router.HandleFunc("GET /status", s.handleStatus)
}

// Handler exposes the routed mux, used by tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) Start() error {
	s.logger.Info("Starting web server", zap.String("addr", s.server.Addr))
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
