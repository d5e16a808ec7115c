// Package broadcast fans domain events out to websocket subscribers.
// Topics are auction ids; delivery is best-effort with no persistence
// or replay.  A client that reconnects must re-read auction state over
// HTTP rather than rely on missed events.
package broadcast

import (
	"encoding/json"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/campusbid/auction-service/internal/auction"
)

// Hub tracks which clients are watching which auction.  All methods
// are safe for concurrent use.  Publish never blocks: a client whose
// send buffer is full is dropped so one slow consumer cannot stall
// the rest of a room.
type Hub struct {
	mu    sync.RWMutex
	rooms map[string]map[*Client]struct{}
}

// NewHub returns an empty hub.
func NewHub() *Hub {
	return &Hub{rooms: make(map[string]map[*Client]struct{})}
}

// Join subscribes a client to one auction's topic.
func (h *Hub) Join(topic string, c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	room, ok := h.rooms[topic]
	if !ok {
		room = make(map[*Client]struct{})
		h.rooms[topic] = room
	}
	room[c] = struct{}{}
	c.topics[topic] = struct{}{}
}

// Leave unsubscribes a client from one topic.
func (h *Hub) Leave(topic string, c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.drop(topic, c)
	delete(c.topics, topic)
}

// Remove detaches a client from every topic and closes its send
// channel.  Safe to call more than once.
func (h *Hub) Remove(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for topic := range c.topics {
		h.drop(topic, c)
	}
	c.topics = make(map[string]struct{})
	c.closeOnce.Do(func() { close(c.send) })
}

// drop removes c from a room; caller holds h.mu.
func (h *Hub) drop(topic string, c *Client) {
	if room, ok := h.rooms[topic]; ok {
		delete(room, c)
		if len(room) == 0 {
			delete(h.rooms, topic)
		}
	}
}

// Subscribers reports how many clients are watching a topic.
func (h *Hub) Subscribers(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[topic])
}

// Publish delivers a payload to every subscriber of a topic.  Events
// published while a topic has no subscribers are lost by design.
func (h *Hub) Publish(topic string, payload []byte) {
	h.mu.RLock()
	room := h.rooms[topic]
	slow := make([]*Client, 0)
	for c := range room {
		select {
		case c.send <- payload:
		default:
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range slow {
		log.WithFields(log.Fields{"topic": topic}).Warn("dropping slow broadcast subscriber")
		h.Remove(c)
	}
}

// envelope is the wire shape of every broadcast frame.
type envelope struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

func (h *Hub) publishEvent(topic, kind string, data any) {
	payload, err := json.Marshal(envelope{Type: kind, Data: data})
	if err != nil {
		log.WithError(err).Error("marshal broadcast event")
		return
	}
	h.Publish(topic, payload)
}

// Sink adapts the hub to the auction.EventSink contract.
type Sink struct {
	hub *Hub
}

// NewSink wraps a hub for the domain core.
func NewSink(h *Hub) *Sink { return &Sink{hub: h} }

func (s *Sink) NewBid(ev auction.NewBidEvent) {
	s.hub.publishEvent(ev.AuctionID, auction.EventNewBid, ev)
}

func (s *Sink) AuctionEnded(ev auction.AuctionEndedEvent) {
	s.hub.publishEvent(ev.AuctionID, auction.EventAuctionEnded, ev)
}

func (s *Sink) EndingSoon(ev auction.EndingSoonEvent) {
	s.hub.publishEvent(ev.AuctionID, auction.EventEndingSoon, ev)
}
