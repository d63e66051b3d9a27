// Package server exposes the reconciled data over HTTP: token details,
// transaction history, OHLC candles, holder distribution, and an on-demand
// sync trigger.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"curveScope/internal/aggregate"
	"curveScope/internal/discovery"
	"curveScope/internal/model"
	"curveScope/internal/numeric"
	"curveScope/internal/reconcile"
	"curveScope/internal/store"
)

// Syncer triggers reconciliation for one token.
type Syncer interface {
	SyncToken(ctx context.Context, tokenAddress string) (reconcile.Outcome, error)
}

// TokenLister reads the factory's recent token addresses.
type TokenLister interface {
	RecentTokens(ctx context.Context) ([]common.Address, error)
}

// Config holds server settings.
type Config struct {
	// TotalSupplyTokens feeds the holder distribution percentages. Zero
	// means the factory default.
	TotalSupplyTokens int64
}

// Server serves the read API over a store plus an optional sync trigger.
type Server struct {
	cfg    Config
	store  store.Store
	syncer Syncer
	lister TokenLister
	logger *zap.Logger
	mux    *http.ServeMux
}

// NewServer builds a Server. syncer and lister may be nil; the endpoints
// depending on them then answer 503.
func NewServer(cfg Config, st store.Store, syncer Syncer, lister TokenLister, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.TotalSupplyTokens <= 0 {
		cfg.TotalSupplyTokens = model.DefaultTotalSupplyTokens
	}

	s := &Server{cfg: cfg, store: st, syncer: syncer, lister: lister, logger: logger, mux: http.NewServeMux()}
	s.mux.HandleFunc("GET /healthz", s.handleHealth)
	s.mux.HandleFunc("GET /tokens", s.handleRecentTokens)
	s.mux.HandleFunc("GET /tokens/{address}", s.handleToken)
	s.mux.HandleFunc("GET /tokens/{address}/transactions", s.handleTransactions)
	s.mux.HandleFunc("GET /tokens/{address}/candles", s.handleCandles)
	s.mux.HandleFunc("GET /tokens/{address}/holders", s.handleHolders)
	s.mux.HandleFunc("POST /tokens/{address}/sync", s.handleSync)
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// tokenResponse is the descriptor plus stats with display renderings.
type tokenResponse struct {
	model.Token
	PriceDisplay     string `json:"price_display"`
	MarketCapDisplay string `json:"market_cap_display"`
	DayVolumeDisplay string `json:"day_volume_display"`
}

// handleRecentTokens joins the factory's recent token list with the stored
// descriptors. Addresses the store has not reconciled yet are skipped; a
// sync pass will fill them in.
func (s *Server) handleRecentTokens(w http.ResponseWriter, r *http.Request) {
	if s.lister == nil {
		writeError(w, http.StatusServiceUnavailable, "token listing is not configured")
		return
	}

	addresses, err := s.lister.RecentTokens(r.Context())
	if err != nil {
		s.logger.Warn("recent tokens read failed", zap.Error(err))
		writeError(w, http.StatusBadGateway, "chain provider unavailable, retry later")
		return
	}

	tokens := make([]tokenResponse, 0, len(addresses))
	for _, address := range addresses {
		token, found, err := s.store.TokenByAddress(r.Context(), strings.ToLower(address.Hex()))
		if err != nil {
			s.internalError(w, "load token", err)
			return
		}
		if !found {
			continue
		}
		tokens = append(tokens, newTokenResponse(token))
	}
	writeJSON(w, http.StatusOK, tokens)
}

func (s *Server) handleToken(w http.ResponseWriter, r *http.Request) {
	address, ok := s.tokenAddress(w, r)
	if !ok {
		return
	}

	token, found, err := s.store.TokenByAddress(r.Context(), address)
	if err != nil {
		s.internalError(w, "load token", err)
		return
	}
	if !found {
		writeError(w, http.StatusNotFound, "token not found")
		return
	}

	writeJSON(w, http.StatusOK, newTokenResponse(token))
}

func newTokenResponse(token model.Token) tokenResponse {
	resp := tokenResponse{Token: token}
	if token.LastPriceUsd != nil {
		resp.PriceDisplay = numeric.FormatPrice(*token.LastPriceUsd)
	}
	if token.MarketCapUsd != nil {
		resp.MarketCapDisplay = numeric.Abbreviate(*token.MarketCapUsd)
	}
	resp.DayVolumeDisplay = numeric.Abbreviate(token.DayVolume)
	return resp
}

func (s *Server) handleTransactions(w http.ResponseWriter, r *http.Request) {
	address, ok := s.tokenAddress(w, r)
	if !ok {
		return
	}

	records, err := s.store.TransactionsByToken(r.Context(), address)
	if err != nil {
		s.internalError(w, "load transactions", err)
		return
	}
	writeJSON(w, http.StatusOK, records)
}

func (s *Server) handleCandles(w http.ResponseWriter, r *http.Request) {
	address, ok := s.tokenAddress(w, r)
	if !ok {
		return
	}

	width, err := strconv.ParseInt(r.URL.Query().Get("width"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "width must be an integer number of seconds")
		return
	}
	if _, ok := aggregate.BucketWidths[width]; !ok {
		writeError(w, http.StatusBadRequest, "unsupported candle width")
		return
	}

	records, err := s.store.TransactionsByToken(r.Context(), address)
	if err != nil {
		s.internalError(w, "load transactions", err)
		return
	}
	model.SortAscending(records)

	candles, err := aggregate.Candles(records, width)
	if err != nil {
		s.internalError(w, "aggregate candles", err)
		return
	}
	writeJSON(w, http.StatusOK, candles)
}

func (s *Server) handleHolders(w http.ResponseWriter, r *http.Request) {
	address, ok := s.tokenAddress(w, r)
	if !ok {
		return
	}

	records, err := s.store.TransactionsByToken(r.Context(), address)
	if err != nil {
		s.internalError(w, "load transactions", err)
		return
	}

	holders, err := aggregate.HolderDistribution(records, s.cfg.TotalSupplyTokens)
	if err != nil {
		s.internalError(w, "aggregate holders", err)
		return
	}
	writeJSON(w, http.StatusOK, holders)
}

func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	address, ok := s.tokenAddress(w, r)
	if !ok {
		return
	}
	if s.syncer == nil {
		writeError(w, http.StatusServiceUnavailable, "sync is not configured")
		return
	}

	outcome, err := s.syncer.SyncToken(r.Context(), address)
	if err != nil {
		if discovery.IsRetryable(err) {
			s.logger.Warn("sync upstream failure", zap.String("token", address), zap.Error(err))
			writeError(w, http.StatusBadGateway, "chain provider unavailable, retry later")
			return
		}
		s.internalError(w, "sync token", err)
		return
	}
	writeJSON(w, http.StatusOK, outcome)
}

// tokenAddress validates the path wildcard and returns the lowercase hex
// address the store keys on.
func (s *Server) tokenAddress(w http.ResponseWriter, r *http.Request) (string, bool) {
	raw := r.PathValue("address")
	if !common.IsHexAddress(raw) {
		writeError(w, http.StatusBadRequest, "invalid token address")
		return "", false
	}
	return strings.ToLower(common.HexToAddress(raw).Hex()), true
}

func (s *Server) internalError(w http.ResponseWriter, op string, err error) {
	s.logger.Error(op, zap.Error(err))
	writeError(w, http.StatusInternalServerError, "internal error")
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

var _ Syncer = (*reconcile.Reconciler)(nil)
