// Package hub tracks downstream subscriber connections and fans upstream
// changes out to exactly the clients whose subscription matches.
package hub

import (
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/BrandonHuang23/odds-dashboard/internal/metrics"
	"github.com/BrandonHuang23/odds-dashboard/internal/models"
)

// Conn is the send side of one downstream connection. The websocket
// handler provides an implementation whose writes are serialized, since
// fan-out pushes run concurrently with the handler's own replies.
type Conn interface {
	SendJSON(v any) error
}

type client struct {
	id           string
	conn         Conn
	subscription models.Subscription
}

// Subscriber is a point-in-time view of one registered client, safe to use
// outside the hub's lock.
type Subscriber struct {
	ID           string
	Subscription models.Subscription
}

// Hub owns the downstream client registry. All methods are safe for
// concurrent use; fan-out iteration and client removal contend on the same
// lock so a disconnect can never tear the registry mid-broadcast.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*client
	logger  zerolog.Logger
}

// New creates an empty hub.
func New(logger zerolog.Logger) *Hub {
	return &Hub{
		clients: make(map[string]*client),
		logger:  logger.With().Str("component", "hub").Logger(),
	}
}

// AddClient registers a connection with an empty subscription and returns
// its opaque client id.
func (h *Hub) AddClient(conn Conn) string {
	id := uuid.New().String()[:8]

	h.mu.Lock()
	h.clients[id] = &client{id: id, conn: conn}
	total := len(h.clients)
	h.mu.Unlock()

	metrics.ConnectedClients.Set(float64(total))
	h.logger.Info().Str("client_id", id).Int("total", total).Msg("client connected")
	return id
}

// RemoveClient deregisters a client. Safe to call more than once.
func (h *Hub) RemoveClient(id string) {
	h.mu.Lock()
	_, existed := h.clients[id]
	delete(h.clients, id)
	total := len(h.clients)
	h.mu.Unlock()

	if existed {
		metrics.ConnectedClients.Set(float64(total))
		h.logger.Info().Str("client_id", id).Int("total", total).Msg("client disconnected")
	}
}

// SetSubscription replaces a client's subscription. An empty market means
// all markets for the game.
func (h *Hub) SetSubscription(id, sport, gameID, market string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if c, ok := h.clients[id]; ok {
		c.subscription = models.Subscription{Sport: sport, GameID: gameID, Market: market}
		h.logger.Info().
			Str("client_id", id).
			Str("sport", sport).
			Str("game_id", gameID).
			Str("market", market).
			Msg("client subscribed")
	}
}

// ClearSubscription removes a client's subscription; no further pushes
// reach it until it subscribes again.
func (h *Hub) ClearSubscription(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if c, ok := h.clients[id]; ok {
		c.subscription = models.Subscription{}
	}
}

// Subscription returns a client's current subscription.
func (h *Hub) Subscription(id string) (models.Subscription, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	c, ok := h.clients[id]
	if !ok {
		return models.Subscription{}, false
	}
	return c.subscription, true
}

// ClientsForGame returns every client subscribed to the given game. Only
// the game id routes events: sport and market narrow the payload, not the
// recipient set.
func (h *Hub) ClientsForGame(gameID string) []Subscriber {
	h.mu.RLock()
	defer h.mu.RUnlock()

	var subscribers []Subscriber
	for _, c := range h.clients {
		if c.subscription.GameID == gameID {
			subscribers = append(subscribers, Subscriber{ID: c.id, Subscription: c.subscription})
		}
	}
	return subscribers
}

// SendToClient pushes one message to one client, best effort. A transport
// failure is treated as an implicit disconnect: the client is removed and
// the error is swallowed.
func (h *Hub) SendToClient(id string, message any) {
	h.mu.RLock()
	c, ok := h.clients[id]
	h.mu.RUnlock()
	if !ok {
		return
	}

	if err := c.conn.SendJSON(message); err != nil {
		h.logger.Warn().Err(err).Str("client_id", id).Msg("send failed, dropping client")
		h.RemoveClient(id)
		return
	}
	metrics.UpdatesPushed.Inc()
}

// BroadcastToGame pushes a message to every client subscribed to a game.
// Pushes run concurrently and one client's failure never blocks or fails
// delivery to the others.
func (h *Hub) BroadcastToGame(gameID string, message any) {
	subscribers := h.ClientsForGame(gameID)
	if len(subscribers) == 0 {
		return
	}

	var wg sync.WaitGroup
	for _, sub := range subscribers {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			h.SendToClient(id, message)
		}(sub.ID)
	}
	wg.Wait()
}

// ClientCount returns the number of registered clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
