package ws

import (
	"sync"

	"go.uber.org/zap"

	"careline/pkg/logger"
	"careline/pkg/metrics"
)

// Hub is the in-memory routing table for a single server instance. Each
// user id maps to the set of that user's live connections, so a second
// device registers alongside the first instead of replacing it.
type Hub struct {
	clients       map[string]map[*UserClient]struct{}
	register      chan *UserClient
	unregister    chan *UserClient
	mu            sync.RWMutex
	onUserOffline func(userId string)
	log           *logger.Logger
}

func NewHub(log *logger.Logger) *Hub {
	return &Hub{
		clients:    make(map[string]map[*UserClient]struct{}),
		register:   make(chan *UserClient),
		unregister: make(chan *UserClient),
		log:        log,
	}
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.addClient(client)

		case client := <-h.unregister:
			h.removeClient(client)
		}
	}
}

func (h *Hub) addClient(client *UserClient) {
	h.mu.Lock()
	set, ok := h.clients[client.UserId]
	if !ok {
		set = make(map[*UserClient]struct{})
		h.clients[client.UserId] = set
	}
	set[client] = struct{}{}
	n := len(set)
	h.mu.Unlock()

	metrics.WSConnectionsActive.Inc()
	h.log.Info("client registered",
		zap.String("user_id", client.UserId),
		zap.Int("connections", n),
	)
}

func (h *Hub) removeClient(client *UserClient) {
	removed := false
	lastConnection := false

	h.mu.Lock()
	if set, ok := h.clients[client.UserId]; ok {
		if _, member := set[client]; member {
			delete(set, client)
			close(client.Send)
			removed = true
		}
		if len(set) == 0 {
			delete(h.clients, client.UserId)
			// only the last device going away takes the user offline
			lastConnection = true
		}
	}
	h.mu.Unlock()

	if !removed {
		return
	}

	metrics.WSConnectionsActive.Dec()
	h.log.Info("client disconnected",
		zap.String("user_id", client.UserId),
		zap.Bool("last_connection", lastConnection),
	)

	if lastConnection && h.onUserOffline != nil {
		h.onUserOffline(client.UserId)
	}
}

// SendToUser fans out to every connection the user holds on this node.
// A connection whose send buffer is full is skipped rather than allowed
// to stall the caller.
func (h *Hub) SendToUser(userId string, message []byte) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	pushed := 0
	for client := range h.clients[userId] {
		select {
		case client.Send <- message:
			pushed++
			metrics.DeliveryPushesTotal.Inc()
		default:
			metrics.DeliveryDropsTotal.Inc()
			h.log.Warn("send buffer full, dropping push", zap.String("user_id", userId))
		}
	}
	return pushed
}

func (h *Hub) ConnectionCount(userId string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userId])
}

func (h *Hub) RegisterClient(client *UserClient) {
	h.register <- client
}

func (h *Hub) UnregisterClient(client *UserClient) {
	h.unregister <- client
}

func (h *Hub) SetOnUserOffline(callback func(userId string)) {
	h.onUserOffline = callback
}
