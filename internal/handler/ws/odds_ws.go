// Package ws exposes the downstream websocket endpoint that dashboard
// clients connect to for live odds pushes.
package ws

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/BrandonHuang23/odds-dashboard/internal/hub"
	"github.com/BrandonHuang23/odds-dashboard/internal/models"
	"github.com/BrandonHuang23/odds-dashboard/internal/store"
)

const writeWait = 10 * time.Second

// Upstream reports the state of the feed connection for status messages.
type Upstream interface {
	IsConnected() bool
}

// ClientMessage is a request sent by a dashboard client.
type ClientMessage struct {
	Type   string `json:"type"`
	Sport  string `json:"sport,omitempty"`
	GameID string `json:"game_id,omitempty"`
	Market string `json:"market,omitempty"`
}

// ConnectedMessage greets a client right after the upgrade.
type ConnectedMessage struct {
	Type       string `json:"type"`
	ServerTime string `json:"server_time"`
}

// PongMessage answers a client ping.
type PongMessage struct {
	Type       string `json:"type"`
	ServerTime string `json:"server_time"`
}

// StatusMessage reports proxy health after a subscription change.
type StatusMessage struct {
	Type              string `json:"type"`
	UpstreamConnected bool   `json:"upstream_connected"`
	GamesTracked      int    `json:"games_tracked"`
	SportsbooksActive int    `json:"sportsbooks_active"`
}

// SnapshotMessage carries the full filtered game state after a subscribe.
type SnapshotMessage struct {
	Type string `json:"type"`
	models.Snapshot
}

// UpdateMessage carries the refreshed game state after a feed change.
type UpdateMessage struct {
	Type string `json:"type"`
	models.Snapshot
}

// OddsHandler upgrades dashboard connections and serves the subscribe
// protocol over them.
type OddsHandler struct {
	hub      *hub.Hub
	store    *store.Store
	upstream Upstream
	logger   zerolog.Logger
	upgrader websocket.Upgrader
}

// NewOddsHandler creates a new websocket handler.
func NewOddsHandler(h *hub.Hub, st *store.Store, upstream Upstream, logger zerolog.Logger) *OddsHandler {
	return &OddsHandler{
		hub:      h,
		store:    st,
		upstream: upstream,
		logger:   logger.With().Str("component", "ws_handler").Logger(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			// Dashboards are served from arbitrary origins
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// RegisterRoutes registers the websocket route with the provided mux
func (h *OddsHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/ws/odds", h.HandleOdds)
}

// HandleOdds handles GET /ws/odds websocket upgrades.
func (h *OddsHandler) HandleOdds(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn().Err(err).Str("remote", r.RemoteAddr).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	wc := newWSConn(conn)
	clientID := h.hub.AddClient(wc)
	defer h.hub.RemoveClient(clientID)

	logger := h.logger.With().Str("client_id", clientID).Logger()
	logger.Info().Str("remote", r.RemoteAddr).Msg("client connected")

	if err := wc.SendJSON(ConnectedMessage{Type: "connected", ServerTime: now()}); err != nil {
		return
	}

	for {
		var msg ClientMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Debug().Err(err).Msg("client read failed")
			}
			return
		}

		switch msg.Type {
		case "subscribe":
			h.handleSubscribe(clientID, msg, wc, logger)
		case "unsubscribe":
			h.hub.ClearSubscription(clientID)
			logger.Debug().Msg("client unsubscribed")
		case "ping":
			if err := wc.SendJSON(PongMessage{Type: "pong", ServerTime: now()}); err != nil {
				return
			}
		default:
			logger.Debug().Str("type", msg.Type).Msg("ignoring unknown client message")
		}
	}
}

// handleSubscribe records the client's filter and answers with an immediate
// snapshot plus a status message. An unknown game still gets an empty
// snapshot echoing the requested filter, so the dashboard can render a
// placeholder until the feed catches up.
func (h *OddsHandler) handleSubscribe(clientID string, msg ClientMessage, wc *wsConn, logger zerolog.Logger) {
	h.hub.SetSubscription(clientID, msg.Sport, msg.GameID, msg.Market)

	logger.Info().
		Str("sport", msg.Sport).
		Str("game_id", msg.GameID).
		Str("market", msg.Market).
		Msg("client subscribed")

	snapshot := h.store.Snapshot(msg.GameID, msg.Market)
	if snapshot == nil {
		snapshot = &models.Snapshot{
			Sport:  msg.Sport,
			GameID: msg.GameID,
			Odds:   map[string]map[string]models.SnapshotOutcome{},
		}
		if msg.Market != "" {
			market := msg.Market
			snapshot.Market = &market
		}
	}

	if err := wc.SendJSON(SnapshotMessage{Type: "snapshot", Snapshot: *snapshot}); err != nil {
		return
	}

	wc.SendJSON(StatusMessage{
		Type:              "status",
		UpstreamConnected: h.upstream.IsConnected(),
		GamesTracked:      h.store.GameCount(),
		SportsbooksActive: len(h.store.ActiveSportsbooks()),
	})
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339)
}

// wsConn wraps a gorilla connection with a write lock so the read loop's
// replies and hub pushes never interleave on the wire.
type wsConn struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func newWSConn(conn *websocket.Conn) *wsConn {
	return &wsConn{conn: conn}
}

// SendJSON writes one JSON message, serializing concurrent writers.
func (c *wsConn) SendJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteJSON(v)
}
