package server

import (
	"log/slog"
	"net/http"
	"sync"

	"lightsats/internal/domain"
	"lightsats/internal/infra"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// TipEvent is pushed to connected viewers when a tip changes state.
type TipEvent struct {
	Type       string `json:"type"` // "tip_claimed", "tip_withdrawn"
	TipID      string `json:"tip_id"`
	Status     string `json:"status"`
	AmountSats int64  `json:"amount_sats"`
}

// Hub fans tip lifecycle events out to connected websocket clients, keyed by
// user so a tipper sees the moment their gift is claimed.
type Hub struct {
	mu       sync.Mutex
	clients  map[string]map[*websocket.Conn]bool
	upgrader websocket.Upgrader
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		clients: make(map[string]map[*websocket.Conn]bool),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // CORS is handled at the HTTP layer
			},
		},
	}
}

// HandleWS upgrades the request and registers the connection for the
// authenticated user.
func (s *Server) HandleWS(c *gin.Context) {
	userID := c.GetString(ctxUserID)

	conn, err := s.hub.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		slog.Warn("Websocket upgrade failed", slog.Any("error", err))
		return
	}

	s.hub.register(userID, conn)
	infra.GlobalMetrics.IncrementSockets()

	// Reader loop exists only to observe the close.
	go func() {
		defer func() {
			s.hub.unregister(userID, conn)
			infra.GlobalMetrics.DecrementSockets()
			conn.Close()
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

func (h *Hub) register(userID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[userID] == nil {
		h.clients[userID] = make(map[*websocket.Conn]bool)
	}
	h.clients[userID][conn] = true
}

func (h *Hub) unregister(userID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clients[userID], conn)
	if len(h.clients[userID]) == 0 {
		delete(h.clients, userID)
	}
}

// sendTo pushes an event to every connection of a user. Dead connections are
// dropped on write failure.
func (h *Hub) sendTo(userID string, ev TipEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.clients[userID] {
		if err := conn.WriteJSON(ev); err != nil {
			conn.Close()
			delete(h.clients[userID], conn)
		}
	}
}

// TipClaimed notifies the tipper and the tippee that the tip was claimed.
func (h *Hub) TipClaimed(tip *domain.Tip) {
	ev := TipEvent{Type: "tip_claimed", TipID: tip.ID, Status: tip.Status, AmountSats: tip.AmountSats}
	h.sendTo(tip.TipperID, ev)
	if tip.TippeeID != nil {
		h.sendTo(*tip.TippeeID, ev)
	}
}

// TipWithdrawn notifies the tipper that the funds left the platform.
func (h *Hub) TipWithdrawn(tip *domain.Tip) {
	ev := TipEvent{Type: "tip_withdrawn", TipID: tip.ID, Status: tip.Status, AmountSats: tip.AmountSats}
	h.sendTo(tip.TipperID, ev)
	if tip.TippeeID != nil {
		h.sendTo(*tip.TippeeID, ev)
	}
}
