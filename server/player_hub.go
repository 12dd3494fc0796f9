package server

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"genesis/core/playback"
	"genesis/logger"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10 // must be less than pongWait
	maxMessageSize = 8192
	sendBuffer     = 64
)

// Message types pushed to player clients.
const (
	msgCommand = "command"
	msgEvent   = "event"
	msgNotice  = "notice"
	msgError   = "error"
	msgPong    = "pong"
)

// Media commands carried by msgCommand.
const (
	cmdLoad   = "load"
	cmdUnload = "unload"
	cmdPlay   = "play"
	cmdPause  = "pause"
	cmdSeek   = "seek"
	cmdVolume = "volume"
)

// hubMessage is one server to client frame.
type hubMessage struct {
	Type      string          `json:"type"`
	Command   string          `json:"command,omitempty"`
	Token     uint64          `json:"token,omitempty"`
	Ref       string          `json:"ref,omitempty"`
	Value     *float64        `json:"value,omitempty"`
	Event     *playback.Event `json:"event,omitempty"`
	Message   string          `json:"message,omitempty"`
	Timestamp int64           `json:"timestamp"`
}

// clientMessage is one client to server frame: media feedback, a player
// command or a ping.
type clientMessage struct {
	Type     string          `json:"type"` // ready, ended, timeupdate, error, command, ping
	Token    uint64          `json:"token"`
	Duration float64         `json:"duration"`
	Position float64         `json:"position"`
	Command  string          `json:"command"`
	Body     json.RawMessage `json:"body"`
}

type directMessage struct {
	client *playerClient
	data   []byte
}

type playerClient struct {
	hub  *PlayerHub
	conn *websocket.Conn
	send chan []byte
}

// PlayerHub drives the browsers' audio elements: it is the engine's Output,
// forwards media feedback back into the engine and pushes engine events and
// notifications to every connected client.
//
// Output methods are called with the engine locked, so they only queue.
type PlayerHub struct {
	upgrader websocket.Upgrader
	engine   *playback.Engine

	clients    map[*playerClient]bool
	register   chan *playerClient
	unregister chan *playerClient
	broadcast  chan []byte
	direct     chan directMessage
	done       chan struct{}
	stopOnce   sync.Once

	eventMu sync.Mutex
	lastSeq uint64

	mu     sync.Mutex
	loaded *hubMessage // last load, replayed to late joiners
	volume float64
	count  int
}

func NewPlayerHub() *PlayerHub {
	return &PlayerHub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		clients:    make(map[*playerClient]bool),
		register:   make(chan *playerClient),
		unregister: make(chan *playerClient),
		broadcast:  make(chan []byte, 256),
		direct:     make(chan directMessage, 64),
		done:       make(chan struct{}),
		volume:     1,
	}
}

// Attach binds the hub to the engine whose events it pushes and whose
// feedback calls it makes.
func (h *PlayerHub) Attach(e *playback.Engine) func() {
	h.engine = e
	return e.Subscribe(h.forward)
}

// forward broadcasts ev unless a newer snapshot already went out. Notices
// are always delivered.
func (h *PlayerHub) forward(ev playback.Event) {
	h.eventMu.Lock()
	defer h.eventMu.Unlock()
	if ev.Seq <= h.lastSeq && ev.Type != playback.EventNotice {
		return
	}
	if ev.Seq > h.lastSeq {
		h.lastSeq = ev.Seq
	}
	h.send(&hubMessage{Type: msgEvent, Event: &ev})
}

// Run is the hub main loop. It returns after Stop.
func (h *PlayerHub) Run() {
	for {
		select {
		case c := <-h.register:
			h.registerClient(c)

		case c := <-h.unregister:
			h.removeClient(c)

		case m := <-h.direct:
			if h.clients[m.client] {
				select {
				case m.client.send <- m.data:
				default:
				}
			}

		case msg := <-h.broadcast:
			for c := range h.clients {
				select {
				case c.send <- msg:
				default:
					// slow client
					h.removeClient(c)
				}
			}

		case <-h.done:
			for c := range h.clients {
				h.removeClient(c)
			}
			return
		}
	}
}

// Stop ends Run and closes every client.
func (h *PlayerHub) Stop() {
	h.stopOnce.Do(func() { close(h.done) })
}

// Clients returns the number of connected clients.
func (h *PlayerHub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.count
}

func (h *PlayerHub) registerClient(c *playerClient) {
	h.clients[c] = true

	h.mu.Lock()
	h.count = len(h.clients)
	loaded, volume := h.loaded, h.volume
	h.mu.Unlock()

	if loaded != nil {
		h.sendTo(c, loaded)
	}
	h.sendTo(c, &hubMessage{Type: msgCommand, Command: cmdVolume, Value: &volume})
	if h.engine != nil {
		ev := h.engine.Current()
		h.sendTo(c, &hubMessage{Type: msgEvent, Event: &ev})
	}
	logger.Info("player client connected", logger.Int("clients", len(h.clients)))
}

func (h *PlayerHub) removeClient(c *playerClient) {
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	close(c.send)

	h.mu.Lock()
	h.count = len(h.clients)
	h.mu.Unlock()
	logger.Info("player client disconnected", logger.Int("clients", len(h.clients)))
}

func encode(msg *hubMessage) ([]byte, bool) {
	msg.Timestamp = time.Now().UnixMilli()
	data, err := json.Marshal(msg)
	if err != nil {
		logger.Error("failed to encode player message", logger.String("type", msg.Type), logger.ErrorField(err))
		return nil, false
	}
	return data, true
}

// sendTo queues msg for one client. Hub goroutine only.
func (h *PlayerHub) sendTo(c *playerClient, msg *hubMessage) {
	data, ok := encode(msg)
	if !ok {
		return
	}
	select {
	case c.send <- data:
	default:
		h.removeClient(c)
	}
}

// send queues msg for every client without blocking.
func (h *PlayerHub) send(msg *hubMessage) {
	data, ok := encode(msg)
	if !ok {
		return
	}
	select {
	case h.broadcast <- data:
	case <-h.done:
	default:
		logger.Warn("player broadcast buffer full, dropping message", logger.String("type", msg.Type))
	}
}

func (h *PlayerHub) Load(token uint64, ref string) {
	msg := &hubMessage{Type: msgCommand, Command: cmdLoad, Token: token, Ref: ref}
	h.mu.Lock()
	h.loaded = msg
	h.mu.Unlock()
	h.send(msg)
}

func (h *PlayerHub) Unload() {
	h.mu.Lock()
	h.loaded = nil
	h.mu.Unlock()
	h.send(&hubMessage{Type: msgCommand, Command: cmdUnload})
}

func (h *PlayerHub) Play()  { h.send(&hubMessage{Type: msgCommand, Command: cmdPlay}) }
func (h *PlayerHub) Pause() { h.send(&hubMessage{Type: msgCommand, Command: cmdPause}) }

func (h *PlayerHub) Seek(seconds float64) {
	h.send(&hubMessage{Type: msgCommand, Command: cmdSeek, Value: &seconds})
}

func (h *PlayerHub) SetVolume(v float64) {
	h.mu.Lock()
	h.volume = v
	h.mu.Unlock()
	h.send(&hubMessage{Type: msgCommand, Command: cmdVolume, Value: &v})
}

// Notify pushes a transient message to every client.
func (h *PlayerHub) Notify(msg string) {
	h.send(&hubMessage{Type: msgNotice, Message: msg})
}

// ServeWS upgrades the request and serves one player client.
func (h *PlayerHub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Error("failed to upgrade player websocket", logger.ErrorField(err))
		return
	}

	c := &playerClient{hub: h, conn: conn, send: make(chan []byte, sendBuffer)}
	select {
	case h.register <- c:
	case <-h.done:
		conn.Close()
		return
	}

	go c.writePump()
	c.readPump()
}

func (c *playerClient) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Warn("player websocket closed unexpectedly", logger.ErrorField(err))
			}
			return
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))

		var msg clientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			c.reply(&hubMessage{Type: msgError, Message: "Invalid message format"})
			continue
		}
		c.handle(msg)
	}
}

// reply queues msg for this client only. A full buffer drops it.
func (c *playerClient) reply(msg *hubMessage) {
	data, ok := encode(msg)
	if !ok {
		return
	}
	select {
	case c.hub.direct <- directMessage{client: c, data: data}:
	case <-c.hub.done:
	default:
	}
}

func (c *playerClient) handle(msg clientMessage) {
	e := c.hub.engine
	if e == nil {
		return
	}
	switch msg.Type {
	case "ready":
		e.MediaReady(msg.Token, msg.Duration)
	case "ended":
		e.MediaEnded(msg.Token)
	case "timeupdate":
		e.TimeUpdate(msg.Token, msg.Position, msg.Duration)
	case "error":
		logger.Warn("player client failed to load media", logger.Uint64("token", msg.Token))
	case "command":
		var req playerRequest
		if len(msg.Body) > 0 {
			if err := json.Unmarshal(msg.Body, &req); err != nil {
				c.reply(&hubMessage{Type: msgError, Message: "Invalid command body"})
				return
			}
		}
		if err := runPlayerCommand(e, msg.Command, req); err != nil {
			_, text := commandError(err)
			c.reply(&hubMessage{Type: msgError, Message: text})
		}
	case "ping":
		c.reply(&hubMessage{Type: msgPong})
	default:
		c.reply(&hubMessage{Type: msgError, Message: "Unknown message type"})
	}
}

func (c *playerClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, nil)
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
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
