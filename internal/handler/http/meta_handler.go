package http

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"github.com/BrandonHuang23/odds-dashboard/internal/store"
)

// MetadataClient fetches sports, games, and market metadata from the feed
// REST API when the live stream has no data yet.
type MetadataClient interface {
	Info(ctx context.Context) (json.RawMessage, error)
	Games(ctx context.Context, sport string) (json.RawMessage, error)
	Markets(ctx context.Context, sport string) (json.RawMessage, error)
}

// Upstream reports the state of the feed connection.
type Upstream interface {
	IsConnected() bool
}

// MetaHandler handles HTTP requests for discovery metadata and proxy status.
// Queries are answered from the live store when it has data for the request
// and fall back to the cached feed REST API otherwise.
type MetaHandler struct {
	store    *store.Store
	metadata MetadataClient
	upstream Upstream
	logger   zerolog.Logger
}

// NewMetaHandler creates a new metadata HTTP handler
func NewMetaHandler(st *store.Store, metadata MetadataClient, upstream Upstream, logger zerolog.Logger) *MetaHandler {
	return &MetaHandler{
		store:    st,
		metadata: metadata,
		upstream: upstream,
		logger:   logger.With().Str("component", "meta_handler").Logger(),
	}
}

// RegisterRoutes registers HTTP routes with the provided mux
func (h *MetaHandler) RegisterRoutes(mux *http.ServeMux) {
	// GET /api/sports - List sports with live or upstream data
	mux.HandleFunc("/api/sports", h.handleGetSports)

	// GET /api/games/:sport - List games for a sport
	mux.HandleFunc("/api/games/", h.handleGetGames)

	// GET /api/markets/:sport?game_id= - List market types
	mux.HandleFunc("/api/markets/", h.handleGetMarkets)

	// GET /api/status - Proxy health summary
	mux.HandleFunc("/api/status", h.handleGetStatus)
}

// handleGetSports handles GET /api/sports
func (h *MetaHandler) handleGetSports(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		h.errorResponse(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	if sports := h.store.Sports(); len(sports) > 0 {
		h.jsonResponse(w, http.StatusOK, map[string]interface{}{
			"sports":      sports,
			"sportsbooks": h.store.ActiveSportsbooks(),
		})
		return
	}

	info, err := h.metadata.Info(r.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to fetch feed info")
		h.errorResponse(w, http.StatusBadGateway, "feed metadata unavailable")
		return
	}
	h.jsonResponse(w, http.StatusOK, info)
}

// handleGetGames handles GET /api/games/:sport
func (h *MetaHandler) handleGetGames(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		h.errorResponse(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	sport := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/api/games/"), "/")
	if sport == "" || strings.Contains(sport, "/") {
		h.errorResponse(w, http.StatusBadRequest, "invalid path: expected /api/games/:sport")
		return
	}

	if games := h.store.GamesForSport(sport); len(games) > 0 {
		h.jsonResponse(w, http.StatusOK, map[string]interface{}{
			"sport": sport,
			"count": len(games),
			"games": games,
		})
		return
	}

	games, err := h.metadata.Games(r.Context(), sport)
	if err != nil {
		h.logger.Error().Err(err).Str("sport", sport).Msg("failed to fetch feed games")
		h.errorResponse(w, http.StatusBadGateway, "feed metadata unavailable")
		return
	}
	h.jsonResponse(w, http.StatusOK, map[string]interface{}{
		"sport": sport,
		"games": games,
	})
}

// handleGetMarkets handles GET /api/markets/:sport?game_id=
func (h *MetaHandler) handleGetMarkets(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		h.errorResponse(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	sport := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/api/markets/"), "/")
	if sport == "" || strings.Contains(sport, "/") {
		h.errorResponse(w, http.StatusBadRequest, "invalid path: expected /api/markets/:sport")
		return
	}

	gameID := r.URL.Query().Get("game_id")
	if gameID != "" {
		if markets := h.store.MarketsForGame(gameID); len(markets) > 0 {
			h.jsonResponse(w, http.StatusOK, map[string]interface{}{
				"sport":   sport,
				"game_id": gameID,
				"markets": markets,
			})
			return
		}
	}

	markets, err := h.metadata.Markets(r.Context(), sport)
	if err != nil {
		h.logger.Error().Err(err).Str("sport", sport).Msg("failed to fetch feed markets")
		h.errorResponse(w, http.StatusBadGateway, "feed metadata unavailable")
		return
	}
	h.jsonResponse(w, http.StatusOK, map[string]interface{}{
		"sport":   sport,
		"markets": markets,
	})
}

// handleGetStatus handles GET /api/status
func (h *MetaHandler) handleGetStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		h.errorResponse(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	h.jsonResponse(w, http.StatusOK, map[string]interface{}{
		"upstream_connected": h.upstream.IsConnected(),
		"games_tracked":      h.store.GameCount(),
		"sportsbooks_active": h.store.ActiveSportsbooks(),
		"sports":             h.store.Sports(),
	})
}

// jsonResponse writes a JSON response
func (h *MetaHandler) jsonResponse(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error().Err(err).Msg("failed to encode JSON response")
	}
}

// errorResponse writes a JSON error response
func (h *MetaHandler) errorResponse(w http.ResponseWriter, status int, message string) {
	h.jsonResponse(w, status, map[string]string{
		"error": message,
	})
}
