// internal/feed/hub.go
//
// Live feed of dashboard changes over WebSocket.
//
// Context
// -------
// Widgets write into the in-memory document; browsers mirror it.  The hub
// subscribes to document changes and to manager lifecycle events, and fans
// both out to every connected browser as JSON messages.  Browsers send back
// viewport resizes and the refresh and reload commands.
//
// Workflow
// --------
//   1. GET /ws upgrades; the new client is sent a full snapshot first.
//   2. Every later document change is sent as {"type":"change"}.  Appends
//      and markup swaps carry the container's state so the browser can
//      rebuild it.
//   3. Lifecycle events arrive through OnEvent and go out as {"type":"event"}.
//   4. Incoming {"type":"resize"|"refresh"|"reload"} call the Controller.
//
// Notes
// -----
//   • Each client has a buffered send queue.  A client whose queue is full
//     is disconnected rather than slowing everybody else down.
//   • Oxford commas, two spaces after periods.
package feed

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	cloudevents "github.com/cloudevents/sdk-go/v2"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/maxlink/dashboard/internal/dom"
	"github.com/maxlink/dashboard/internal/metrics"
)

// Message types.
const (
	TypeSnapshot = "snapshot"
	TypeChange   = "change"
	TypeEvent    = "event"
	TypeError    = "error"

	CmdResize  = "resize"
	CmdRefresh = "refresh"
	CmdReload  = "reload"
)

// Controller is the part of the dashboard manager the feed drives.
type Controller interface {
	Resize(width, height float64)
	RefreshAll(ctx context.Context) int
	ReloadWidget(ctx context.Context, id string) error
}

// Message is one server to browser frame.
type Message struct {
	Type    string            `json:"type"`
	Change  *dom.Change       `json:"change,omitempty"`
	Element *dom.ElementState `json:"element,omitempty"`
	Data    any               `json:"data,omitempty"`
}

// Command is one browser to server frame.
type Command struct {
	Type   string  `json:"type"`
	ID     string  `json:"id,omitempty"`
	Width  float64 `json:"width,omitempty"`
	Height float64 `json:"height,omitempty"`
}

// Options tunes connection handling.  Zero values pick the defaults.
type Options struct {
	SendBuffer     int
	WriteTimeout   time.Duration
	PongTimeout    time.Duration
	MaxMessageSize int64
	// CheckOrigin defaults to same-origin only.
	CheckOrigin func(r *http.Request) bool
}

func (o Options) withDefaults() Options {
	if o.SendBuffer <= 0 {
		o.SendBuffer = 256
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = 10 * time.Second
	}
	if o.PongTimeout <= 0 {
		o.PongTimeout = 60 * time.Second
	}
	if o.MaxMessageSize <= 0 {
		o.MaxMessageSize = 4096
	}
	return o
}

// Hub serves /ws.
type Hub struct {
	doc  *dom.Document
	ctl  Controller
	log  *zap.SugaredLogger
	opts Options

	upgrader    websocket.Upgrader
	unsubscribe func()
	ctx         context.Context
	cancel      context.CancelFunc

	mu      sync.RWMutex
	clients map[*client]struct{}
	closed  bool
}

type client struct {
	conn *websocket.Conn
	send chan []byte
	once sync.Once
}

func (c *client) close() {
	c.once.Do(func() { close(c.send) })
}

// NewHub subscribes to doc and returns a hub ready to serve.  ctl may be
// nil, in which case browser commands are ignored.
func NewHub(doc *dom.Document, ctl Controller, log *zap.SugaredLogger, opts Options) *Hub {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	opts = opts.withDefaults()
	ctx, cancel := context.WithCancel(context.Background())

	h := &Hub{
		doc:     doc,
		ctl:     ctl,
		log:     log,
		opts:    opts,
		ctx:     ctx,
		cancel:  cancel,
		clients: make(map[*client]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     opts.CheckOrigin,
		},
	}
	h.unsubscribe = doc.Subscribe(h.onChange)
	return h
}

// ObserverID lets the hub register as a dashboard observer.
func (h *Hub) ObserverID() string { return "feed" }

// OnEvent forwards a lifecycle event to every browser.
func (h *Hub) OnEvent(_ context.Context, event cloudevents.Event) error {
	h.broadcast(Message{Type: TypeEvent, Data: event})
	return nil
}

func (h *Hub) onChange(c dom.Change) {
	msg := Message{Type: TypeChange, Change: &c}
	if c.Kind == dom.ChangeAppend || c.Kind == dom.ChangeMarkup {
		if st, ok := h.doc.State(c.ID); ok {
			msg.Element = &st
		}
	}
	h.broadcast(msg)
}

// Clients reports the number of connected browsers.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) broadcast(msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.log.Errorw("feed marshal failed", "type", msg.Type, "err", err)
		return
	}

	var slow []*client
	h.mu.RLock()
	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range slow {
		h.log.Warnw("feed client too slow, disconnecting", "remote", c.conn.RemoteAddr().String())
		h.drop(c)
	}
}

func (h *Hub) drop(c *client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		metrics.FeedClients.Set(float64(len(h.clients)))
	}
	h.mu.Unlock()
	c.close()
}

// ServeHTTP upgrades the request and runs the client until it disconnects.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warnw("websocket upgrade failed", "remote", r.RemoteAddr, "err", err)
		return
	}
	c := &client{conn: conn, send: make(chan []byte, h.opts.SendBuffer)}

	// The snapshot is queued under the hub lock so no change can slip in
	// between it and registration.
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		conn.Close()
		return
	}
	snap, err := json.Marshal(Message{Type: TypeSnapshot, Data: h.doc.Snapshot()})
	if err == nil {
		c.send <- snap
	}
	h.clients[c] = struct{}{}
	metrics.FeedClients.Set(float64(len(h.clients)))
	h.mu.Unlock()

	h.log.Debugw("feed client connected", "remote", r.RemoteAddr)

	go h.writePump(c)
	h.readPump(c)
}

func (h *Hub) writePump(c *client) {
	ping := time.NewTicker(h.opts.PongTimeout * 9 / 10)
	defer func() {
		ping.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(h.opts.WriteTimeout))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				h.drop(c)
				return
			}
		case <-ping.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(h.opts.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				h.drop(c)
				return
			}
		}
	}
}

func (h *Hub) readPump(c *client) {
	defer h.drop(c)

	c.conn.SetReadLimit(h.opts.MaxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(h.opts.PongTimeout))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(h.opts.PongTimeout))
	})

	for {
		var cmd Command
		if err := c.conn.ReadJSON(&cmd); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.Debugw("feed client read failed", "err", err)
			}
			return
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(h.opts.PongTimeout))
		h.handle(c, cmd)
	}
}

func (h *Hub) handle(c *client, cmd Command) {
	if h.ctl == nil {
		return
	}
	switch cmd.Type {
	case CmdResize:
		h.ctl.Resize(cmd.Width, cmd.Height)
	case CmdRefresh:
		go h.ctl.RefreshAll(h.ctx)
	case CmdReload:
		go func() {
			if err := h.ctl.ReloadWidget(h.ctx, cmd.ID); err != nil {
				h.reply(c, Message{Type: TypeError, Data: map[string]string{"id": cmd.ID, "error": err.Error()}})
			}
		}()
	default:
		h.log.Debugw("unknown feed command", "type", cmd.Type)
	}
}

func (h *Hub) reply(c *client, msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	if _, ok := h.clients[c]; !ok {
		return
	}
	select {
	case c.send <- data:
	default:
	}
}

// Close disconnects every browser and stops following the document.
func (h *Hub) Close() {
	h.unsubscribe()
	h.cancel()

	h.mu.Lock()
	h.closed = true
	clients := h.clients
	h.clients = make(map[*client]struct{})
	metrics.FeedClients.Set(0)
	h.mu.Unlock()

	for c := range clients {
		c.close()
	}
}
