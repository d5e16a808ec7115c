package broadcast

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"

	"github.com/campusbid/auction-service/internal/model"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
	// sendBuffer sizes the per-client queue; a client further behind
	// than this is dropped.
	sendBuffer = 64
)

// Client is one websocket connection.  Its identity was validated
// once at connect time; topic joins and leaves are not re-authorized.
type Client struct {
	hub       *Hub
	conn      *websocket.Conn
	principal model.Principal

	send      chan []byte
	topics    map[string]struct{} // guarded by hub.mu
	closeOnce sync.Once
}

func newClient(hub *Hub, conn *websocket.Conn, principal model.Principal) *Client {
	return &Client{
		hub:       hub,
		conn:      conn,
		principal: principal,
		send:      make(chan []byte, sendBuffer),
		topics:    make(map[string]struct{}),
	}
}

// frame is the control protocol clients speak: explicit join/leave of
// per-auction topics.
type frame struct {
	Action    string `json:"action"` // "join" | "leave"
	AuctionID string `json:"auction_id"`
}

// readPump consumes control frames until the connection drops, then
// detaches the client from every room.
func (c *Client) readPump() {
	defer func() {
		c.hub.Remove(c)
		_ = c.conn.Close()
	}()

	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.WithFields(log.Fields{"user_id": c.principal.ID}).WithError(err).Debug("websocket read ended")
			}
			return
		}
		var f frame
		if err := json.Unmarshal(raw, &f); err != nil || f.AuctionID == "" {
			continue // ignore malformed frames
		}
		switch f.Action {
		case "join":
			c.hub.Join(f.AuctionID, c)
		case "leave":
			c.hub.Leave(f.AuctionID, c)
		}
	}
}

// writePump drains the send queue onto the wire and keeps the
// connection alive with pings.  It exits when the hub closes the send
// channel or a write fails.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
