package handlers

import (
	"bytes"
	"encoding/json"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/mossy-p/pit-signaling/internal/metrics"
	"github.com/mossy-p/pit-signaling/internal/models"
)

// Hub tracks live websocket clients by peer id and implements
// session.Notifier on top of their send queues.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client
}

func NewHub() *Hub {
	return &Hub{clients: make(map[string]*Client)}
}

func (h *Hub) register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c.ID] = c
}

// unregister removes c and closes its send queue, which stops its write pump.
func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if cur, ok := h.clients[c.ID]; ok && cur == c {
		delete(h.clients, c.ID)
		close(c.Send)
	}
}

// SendTo queues an event for one peer without blocking. Messages for unknown
// peers or full queues are dropped.
func (h *Hub) SendTo(peerID, event string, payload any) {
	data, err := encodeEnvelope(event, payload)
	if err != nil {
		log.Error().Err(err).Str("event", event).Msg("Failed to marshal message")
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	client, exists := h.clients[peerID]
	if !exists {
		metrics.MessagesDropped.WithLabelValues("unknown_peer").Inc()
		log.Debug().Str("peer_id", peerID).Str("event", event).Msg("Target peer not connected")
		return
	}

	select {
	case client.Send <- data:
	default:
		metrics.MessagesDropped.WithLabelValues("buffer_full").Inc()
		log.Warn().Str("peer_id", peerID).Str("event", event).Msg("Failed to send message, buffer full")
	}
}

// Count returns the number of registered clients.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// CloseAll closes every client connection. Each read pump then runs its
// normal disconnect path.
func (h *Hub) CloseAll() {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.clients {
		c.Conn.Close()
	}
}

func encodeEnvelope(event string, payload any) ([]byte, error) {
	env := models.Envelope{Event: event}
	if payload != nil {
		data, err := marshal(payload)
		if err != nil {
			return nil, err
		}
		env.Data = data
	}
	return marshal(env)
}

// marshal is json.Marshal without HTML escaping, so relayed SDP and
// candidate strings reach the target as sent.
func marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
