package handler

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"coinpulse/internal/domain"

	"github.com/coder/websocket"
	"github.com/gin-gonic/gin"
)

const wsWriteTimeout = 5 * time.Second

// Hub fans finished cycle summaries out to websocket subscribers. Slow or
// dead connections are dropped, never waited on.
type Hub struct {
	mu    sync.Mutex
	conns map[*websocket.Conn]struct{}
}

func NewHub() *Hub {
	return &Hub{conns: make(map[*websocket.Conn]struct{})}
}

func (h *Hub) add(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.conns[conn] = struct{}{}
}

func (h *Hub) remove(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.conns, conn)
}

// Subscribers reports the current connection count.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.conns)
}

// BroadcastCycle pushes one finished cycle to every subscriber.
func (h *Hub) BroadcastCycle(cycle *domain.CollectionCycle) {
	payload, err := json.Marshal(gin.H{"type": "cycle", "cycle": cycle})
	if err != nil {
		return
	}

	h.mu.Lock()
	conns := make([]*websocket.Conn, 0, len(h.conns))
	for conn := range h.conns {
		conns = append(conns, conn)
	}
	h.mu.Unlock()

	for _, conn := range conns {
		ctx, cancel := context.WithTimeout(context.Background(), wsWriteTimeout)
		err := conn.Write(ctx, websocket.MessageText, payload)
		cancel()
		if err != nil {
			h.remove(conn)
			_ = conn.Close(websocket.StatusPolicyViolation, "write timeout")
		}
	}
}

// NotifyCycle lets the hub sit behind the collector job's notifier, so
// timer-driven cycles reach subscribers the same way triggered ones do.
func (h *Hub) NotifyCycle(cycle *domain.CollectionCycle) {
	h.BroadcastCycle(cycle)
}

// ServeWS godoc
// @Summary      Subscribe to collection cycle updates over websocket
// @Tags         cycles
// @Router       /ws [get]
func (h *Handler) ServeWS(c *gin.Context) {
	conn, err := websocket.Accept(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("websocket accept: %v", err)
		return
	}

	h.hub.add(conn)
	defer h.hub.remove(conn)

	// Reads are discarded; this endpoint only pushes. CloseRead returns a
	// context that ends when the peer goes away.
	ctx := conn.CloseRead(c.Request.Context())
	<-ctx.Done()
	_ = conn.Close(websocket.StatusNormalClosure, "")
}
