package web

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/stellarperps/perpmon/internal/domain"
	"github.com/stellarperps/perpmon/internal/infrastructure/oracle"
	"go.uber.org/zap"
)

const maxWebhookBody = 1 << 20

// handleReflectorWebhook ingests one oracle price tick. Malformed payloads
// and bad signatures are rejected before any state is touched.
func (s *Server) handleReflectorWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read body")
		return
	}

	env, err := oracle.ParseEnvelope(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if s.verifySignature {
		if err := env.Verify(s.trustedVerifiers); err != nil {
			s.logger.Warn("webhook signature rejected", zap.Error(err))
			writeError(w, http.StatusUnauthorized, "signature verification failed")
			return
		}
	}

	update, err := env.Decode()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	liquidations, err := s.monitor.ProcessPriceUpdate(
		r.Context(), update.Asset, update.Price, update.PrevPrice, update.Timestamp)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"asset":        update.Asset,
		"price":        update.Price,
		"liquidations": len(liquidations),
	})
}

type createPositionRequest struct {
	Owner        string      `json:"owner"`
	Asset        string      `json:"asset"`
	Side         domain.Side `json:"side"`
	NotionalSize float64     `json:"notional_size"`
	EntryPrice   float64     `json:"entry_price"`
	Leverage     int         `json:"leverage"`
	Margin       float64     `json:"margin"`
}

func (s *Server) handleCreatePosition(w http.ResponseWriter, r *http.Request) {
	var req createPositionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	pos, err := s.store.Create(r.Context(),
		req.Owner, req.Asset, req.Side, req.NotionalSize, req.EntryPrice, req.Leverage, req.Margin)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidParams) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.logger.Error("failed to create position", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to create position")
		return
	}

	writeJSON(w, http.StatusCreated, pos)
}

func (s *Server) handleListPositions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var positions []*domain.Position
	switch {
	case q.Get("owner") != "":
		positions = s.store.ByOwner(q.Get("owner"))
	case q.Get("asset") != "":
		positions = s.store.ActiveByAsset(q.Get("asset"))
	default:
		positions = s.store.AllActive()
	}

	if positions == nil {
		positions = []*domain.Position{}
	}
	writeJSON(w, http.StatusOK, positions)
}

func (s *Server) handleGetPosition(w http.ResponseWriter, r *http.Request) {
	pos, err := s.store.Get(r.PathValue("id"))
	if err != nil {
		if errors.Is(err, domain.ErrPositionNotFound) {
			writeError(w, http.StatusNotFound, "position not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to get position")
		return
	}
	writeJSON(w, http.StatusOK, pos)
}

func (s *Server) handleListEvents(w http.ResponseWriter, r *http.Request) {
	events, err := s.events.ListLiquidationEvents(r.Context(), parseLimit(r, 50))
	if err != nil {
		s.logger.Error("failed to list liquidation events", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list events")
		return
	}
	if events == nil {
		events = []*domain.LiquidationEvent{}
	}
	writeJSON(w, http.StatusOK, events)
}

func (s *Server) handleListAlerts(w http.ResponseWriter, r *http.Request) {
	alerts, err := s.events.ListPriceAlerts(r.Context(), parseLimit(r, 50))
	if err != nil {
		s.logger.Error("failed to list price alerts", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list alerts")
		return
	}
	if alerts == nil {
		alerts = []*domain.PriceAlert{}
	}
	writeJSON(w, http.StatusOK, alerts)
}

func (s *Server) handleListFunding(w http.ResponseWriter, r *http.Request) {
	samples, err := s.events.ListFundingSamples(r.Context(), r.URL.Query().Get("asset"), parseLimit(r, 50))
	if err != nil {
		s.logger.Error("failed to list funding samples", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list funding samples")
		return
	}
	if samples == nil {
		samples = []*domain.FundingSample{}
	}
	writeJSON(w, http.StatusOK, samples)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.monitor.Stats(r.Context())
	if err != nil {
		s.logger.Error("failed to compute stats", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to compute stats")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
