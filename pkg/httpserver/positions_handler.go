package httpserver

import (
	"net/http"

	"github.com/LeifuChen/SynthetixFundingRateArbitrage/pkg/types"
	"github.com/goccy/go-json"
	"go.uber.org/zap"
)

// PositionSource exposes the currently tracked pairs for inspection.
type PositionSource interface {
	Snapshot() []types.MatchedPositionPair
}

// PositionsHandler serves a read-only view of the tracked pairs.
type PositionsHandler struct {
	source PositionSource
	logger *zap.Logger
}

// NewPositionsHandler creates a positions handler.
func NewPositionsHandler(source PositionSource, logger *zap.Logger) *PositionsHandler {
	return &PositionsHandler{
		source: source,
		logger: logger,
	}
}

// PositionsResponse represents the HTTP response for tracked pairs.
type PositionsResponse struct {
	Count int                         `json:"count"`
	Pairs []types.MatchedPositionPair `json:"pairs"`
}

// HandlePositions handles GET /api/positions requests.
func (h *PositionsHandler) HandlePositions(w http.ResponseWriter, r *http.Request) {
	pairs := h.source.Snapshot()
	if pairs == nil {
		pairs = []types.MatchedPositionPair{}
	}

	resp := PositionsResponse{
		Count: len(pairs),
		Pairs: pairs,
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		h.logger.Error("positions-response-encode-failed", zap.Error(err))
	}
}
