// Package realtime fans order lifecycle updates out to websocket clients.
package realtime

import (
	"encoding/json"
	"log"
	"sync"

	"github.com/gorilla/websocket"
)

// OrderUpdate is the payload broadcast after an order is persisted.
type OrderUpdate struct {
	PedidoID string  `json:"pedido_id"`
	Estado   string  `json:"estado"`
	Total    float64 `json:"total"`
	Alarma   string  `json:"alarma,omitempty"`
}

// Hub manages websocket subscribers and broadcasts order updates to them.
type Hub struct {
	connections map[*websocket.Conn]struct{}
	Register    chan *websocket.Conn
	Unregister  chan *websocket.Conn
	updates     chan OrderUpdate
	mu          sync.Mutex
}

// NewHub constructs a Hub.
func NewHub() *Hub {
	return &Hub{
		connections: make(map[*websocket.Conn]struct{}),
		Register:    make(chan *websocket.Conn),
		Unregister:  make(chan *websocket.Conn),
		updates:     make(chan OrderUpdate, 64),
	}
}

// Publish queues an update for broadcast. It never blocks the caller: when
// the queue is full the update is dropped, the feed is advisory.
func (h *Hub) Publish(update OrderUpdate) {
	if h == nil {
		return
	}
	select {
	case h.updates <- update:
	default:
		log.Printf("realtime: feed saturado, se descarta actualizacion de %s", update.PedidoID)
	}
}

// Run processes register/unregister/broadcast events.
func (h *Hub) Run() {
	for {
		select {
		case conn := <-h.Register:
			h.mu.Lock()
			h.connections[conn] = struct{}{}
			h.mu.Unlock()
		case conn := <-h.Unregister:
			h.mu.Lock()
			delete(h.connections, conn)
			h.mu.Unlock()
			conn.Close()
		case update := <-h.updates:
			msg, err := json.Marshal(update)
			if err != nil {
				log.Printf("realtime: marshal update: %v", err)
				continue
			}
			h.mu.Lock()
			for conn := range h.connections {
				if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
					conn.Close()
					delete(h.connections, conn)
				}
			}
			h.mu.Unlock()
		}
	}
}
