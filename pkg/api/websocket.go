package api

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/nyxlab/boxd/pkg/logging"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer. Experiment uploads are the
	// largest inbound frames.
	maxMessageSize = 65536

	// Size of client send buffer.
	sendBufferSize = 256
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Panels connect from lab machines on the local network.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Client is a single connected control panel.
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
	log  zerolog.Logger
}

func newClient(hub *Hub, conn *websocket.Conn) *Client {
	return &Client{
		hub:  hub,
		conn: conn,
		send: make(chan []byte, sendBufferSize),
		log:  logging.Component("ws"),
	}
}

// sendJSON queues one message for this client only. The message is
// dropped when the client's buffer is full; a stalled connection gets
// torn down by the ping deadline.
func (c *Client) sendJSON(v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		c.log.Error().Err(err).Msg("could not encode message")
		return
	}
	select {
	case c.send <- data:
	default:
		c.log.Warn().Msg("client send buffer full, dropping message")
	}
}

// readPump pumps messages from the panel into the dispatcher. It runs in
// a per-connection goroutine.
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.log.Warn().Err(err).Msg("read error")
			}
			break
		}
		if c.hub.dispatch != nil {
			c.hub.dispatch(c, message)
		}
	}
}

// writePump pumps queued messages to the panel, one JSON document per
// frame, and keeps the connection alive with pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Hub maintains the set of connected panels and broadcasts device
// messages to them.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client

	// dispatch handles inbound panel messages. Set once before Run.
	dispatch func(c *Client, message []byte)

	// onDisconnect runs after a panel drops. Set once before Run.
	onDisconnect func()

	mu   sync.RWMutex
	log  zerolog.Logger
	done chan struct{}
}

// NewHub creates a hub with no connected panels.
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan []byte, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		log:        logging.Component("ws"),
		done:       make(chan struct{}),
	}
}

// Run owns the client set until Stop is called.
func (h *Hub) Run() {
	for {
		select {
		case <-h.done:
			h.mu.Lock()
			for client := range h.clients {
				close(client.send)
				delete(h.clients, client)
			}
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			h.log.Info().Int("total", h.ClientCount()).Msg("panel connected")

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()
			h.log.Info().Int("total", h.ClientCount()).Msg("panel disconnected")
			if h.onDisconnect != nil {
				h.onDisconnect()
			}

		case message := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					delete(h.clients, client)
					close(client.send)
					h.log.Warn().Msg("dropping slow panel connection")
				}
			}
			h.mu.Unlock()
		}
	}
}

// Stop disconnects every panel and ends Run.
func (h *Hub) Stop() {
	close(h.done)
}

// ClientCount returns the number of connected panels.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// broadcastJSON queues v for every connected panel. Frames are dropped
// when the hub queue is full; the periodic senders always have a fresher
// one coming.
func (h *Hub) broadcastJSON(v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		h.log.Error().Err(err).Msg("could not encode broadcast")
		return
	}
	select {
	case h.broadcast <- data:
	case <-h.done:
	default:
	}
}

// ---- outbound device notifications ----

// TrialStart broadcasts a trial_start frame.
func (h *Hub) TrialStart(title string) {
	h.broadcastJSON(newTrialStart(title))
}

// TrialComplete broadcasts a trial_complete frame with the trial's data.
func (h *Hub) TrialComplete(title string, data map[string]interface{}) {
	h.broadcastJSON(newTrialComplete(title, data))
}

// ExperimentStatus broadcasts a run state change in both status message
// families.
func (h *Hub) ExperimentStatus(status, trial string) {
	for _, msg := range newStatusMessages(status, trial) {
		h.broadcastJSON(msg)
	}
}

// TestState broadcasts the state of every hardware test.
func (h *Hub) TestState(states map[string]int) {
	h.broadcastJSON(newTestState(states))
}

// DeviceLog broadcasts one mirrored log line.
func (h *Hub) DeviceLog(message, state string) {
	h.broadcastJSON(newDeviceLog(message, state))
}

// ServeWS upgrades an HTTP request and runs the client pumps.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("upgrade failed")
		return
	}

	client := newClient(h, conn)
	h.register <- client

	go client.writePump()
	go client.readPump()
}
