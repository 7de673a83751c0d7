// internal/handlers/hub.go
package handlers

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"
)

// outboundBuffer is how many messages may queue for one connection before it
// is considered too slow and dropped.
const outboundBuffer = 16

// Client is one live websocket connection.
type Client struct {
	ID      string
	OutChan chan map[string]interface{}

	cancel    context.CancelFunc
	closeSlow func()
}

// NewClient builds a client. cancel stops its pumps; closeSlow is called
// once if the client falls behind.
func NewClient(id string, cancel context.CancelFunc, closeSlow func()) *Client {
	return &Client{
		ID:        id,
		OutChan:   make(chan map[string]interface{}, outboundBuffer),
		cancel:    cancel,
		closeSlow: closeSlow,
	}
}

// Send queues msg without blocking. A client whose buffer is full is closed.
func (c *Client) Send(msg map[string]interface{}) bool {
	select {
	case c.OutChan <- msg:
		return true
	default:
		if c.closeSlow != nil {
			go c.closeSlow()
		}
		return false
	}
}

// WriteError sends an error message to the client.
func (c *Client) WriteError(message string) {
	c.Send(map[string]interface{}{
		"type":    "error",
		"message": message,
	})
}

// Hub tracks live connections and the lobby groups they belong to. A
// connection may be in several groups.
type Hub struct {
	mu       sync.Mutex
	clients  map[string]*Client
	groups   map[string]map[string]*Client  // lobby code -> connection id -> client
	memberOf map[string]map[string]struct{} // connection id -> lobby codes

	log logrus.FieldLogger
}

// NewHub creates an empty hub.
func NewHub(logger logrus.FieldLogger) *Hub {
	return &Hub{
		clients:  make(map[string]*Client),
		groups:   make(map[string]map[string]*Client),
		memberOf: make(map[string]map[string]struct{}),
		log:      logger.WithField("component", "hub"),
	}
}

// Register makes c addressable by its ID.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c.ID] = c
}

// Unregister removes c from every group and stops it. It returns the lobby
// codes the client was a member of.
func (h *Hub) Unregister(c *Client) []string {
	h.mu.Lock()
	defer h.mu.Unlock()

	if cur, ok := h.clients[c.ID]; !ok || cur != c {
		return nil
	}
	delete(h.clients, c.ID)

	var codes []string
	for code := range h.memberOf[c.ID] {
		codes = append(codes, code)
		h.removeLocked(code, c.ID)
	}
	delete(h.memberOf, c.ID)

	if c.cancel != nil {
		c.cancel()
	}
	return codes
}

// AddToGroup puts a registered connection into the group for code.
func (h *Hub) AddToGroup(code, connID string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	c, ok := h.clients[connID]
	if !ok {
		return false
	}
	g, ok := h.groups[code]
	if !ok {
		g = make(map[string]*Client)
		h.groups[code] = g
	}
	g[connID] = c

	m, ok := h.memberOf[connID]
	if !ok {
		m = make(map[string]struct{})
		h.memberOf[connID] = m
	}
	m[code] = struct{}{}
	return true
}

// RemoveFromGroup takes a connection out of the group for code.
func (h *Hub) RemoveFromGroup(code, connID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(code, connID)
	delete(h.memberOf[connID], code)
}

func (h *Hub) removeLocked(code, connID string) {
	g, ok := h.groups[code]
	if !ok {
		return
	}
	delete(g, connID)
	if len(g) == 0 {
		delete(h.groups, code)
	}
}

// Broadcast sends msg to every connection in the group and returns how many
// accepted it.
func (h *Hub) Broadcast(code string, msg map[string]interface{}) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	sent := 0
	for _, c := range h.groups[code] {
		if c.Send(msg) {
			sent++
		} else {
			h.log.WithFields(logrus.Fields{"code": code, "conn": c.ID}).Warn("dropping slow client")
		}
	}
	return sent
}

// SendTo delivers msg to a single connection.
func (h *Hub) SendTo(connID string, msg map[string]interface{}) bool {
	h.mu.Lock()
	c, ok := h.clients[connID]
	h.mu.Unlock()
	if !ok {
		return false
	}
	return c.Send(msg)
}

// GroupSize reports how many connections are in the group for code.
func (h *Hub) GroupSize(code string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.groups[code])
}
