package server

import (
	"fmt"
	"math"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/pefman/ai-fight-club/internal/models"
)

const (
	sendBuffer = 16
	writeWait  = 5 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

// ClientGauge tracks connected websocket clients.
type ClientGauge interface {
	ClientConnected()
	ClientDisconnected()
}

type client struct {
	session string
	conn    *websocket.Conn
	send    chan models.WsMsg
	once    sync.Once
}

func (c *client) close() {
	c.once.Do(func() { close(c.send) })
}

type tickPayload struct {
	Round     int       `json:"round"`
	Remaining int       `json:"remaining_seconds"`
	Deadline  time.Time `json:"deadline"`
}

// Hub fans session events out to the websocket clients watching a session
// and runs the per-round countdown ticks.
type Hub struct {
	mu       sync.Mutex
	clients  map[string]map[*client]struct{}
	timers   map[string]chan struct{}
	closed   bool
	wg       sync.WaitGroup
	upgrader websocket.Upgrader
	interval time.Duration
	now      func() time.Time
	log      *zap.Logger
	gauge    ClientGauge
}

func NewHub(log *zap.Logger, gauge ClientGauge, allowedOrigin string) *Hub {
	if log == nil {
		log = zap.NewNop()
	}
	h := &Hub{
		clients:  make(map[string]map[*client]struct{}),
		timers:   make(map[string]chan struct{}),
		interval: time.Second,
		now:      time.Now,
		log:      log.Named("ws"),
		gauge:    gauge,
	}
	h.upgrader = websocket.Upgrader{CheckOrigin: func(r *http.Request) bool {
		if allowedOrigin == "" || allowedOrigin == "*" {
			return true
		}
		return r.Header.Get("Origin") == allowedOrigin
	}}
	return h
}

func timerKey(sessionID string, round int) string { return fmt.Sprintf("%s#%d", sessionID, round) }

// Serve upgrades the request and streams events for sess until the client
// goes away or the hub closes. The current state is sent first.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, sess *models.Session) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Debug("upgrade failed", zap.Error(err))
		return
	}
	c := &client{session: sess.ID, conn: conn, send: make(chan models.WsMsg, sendBuffer)}
	c.send <- models.WsMsg{Type: "state", Data: redactSession(sess)}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		_ = conn.Close()
		return
	}
	if h.clients[sess.ID] == nil {
		h.clients[sess.ID] = make(map[*client]struct{})
	}
	h.clients[sess.ID][c] = struct{}{}
	h.wg.Add(2)
	h.mu.Unlock()

	if h.gauge != nil {
		h.gauge.ClientConnected()
	}
	h.log.Debug("client connected", zap.String("session", sess.ID), zap.String("from", r.RemoteAddr))
	go h.writer(c)
	go h.reader(c)
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	if set, ok := h.clients[c.session]; ok {
		if _, ok := set[c]; ok {
			delete(set, c)
			if len(set) == 0 {
				delete(h.clients, c.session)
			}
			if h.gauge != nil {
				h.gauge.ClientDisconnected()
			}
		}
	}
	h.mu.Unlock()
	c.close()
}

// reader only watches for the client going away; clients don't send commands.
func (h *Hub) reader(c *client) {
	defer h.wg.Done()
	defer h.unregister(c)
	c.conn.SetReadLimit(512)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writer(c *client) {
	defer h.wg.Done()
	ping := time.NewTicker(pingPeriod)
	defer func() {
		ping.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case m, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.conn.WriteJSON(m); err != nil {
				h.log.Debug("write failed", zap.String("session", c.session), zap.Error(err))
				return
			}
		case <-ping.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// broadcast queues m for every client of a session. Slow clients drop messages.
func (h *Hub) broadcast(sessionID string, m models.WsMsg) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients[sessionID] {
		select {
		case c.send <- m:
		default:
			h.log.Debug("client too slow, dropping message", zap.String("session", sessionID), zap.String("type", m.Type))
		}
	}
}

// Clients returns the number of clients watching a session.
func (h *Hub) Clients(sessionID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients[sessionID])
}

func (h *Hub) SessionUpdated(s *models.Session) {
	h.broadcast(s.ID, models.WsMsg{Type: "state", Data: redactSession(s)})
}

// RoundStarted ticks the remaining time to the session's clients every
// interval until the deadline passes or the round closes.
func (h *Hub) RoundStarted(sessionID string, round int, deadline time.Time) {
	key := timerKey(sessionID, round)
	stop := make(chan struct{})
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	if old, ok := h.timers[key]; ok {
		close(old)
	}
	h.timers[key] = stop
	h.wg.Add(1)
	h.mu.Unlock()

	go func() {
		defer h.wg.Done()
		t := time.NewTicker(h.interval)
		defer t.Stop()
		for {
			remaining := int(math.Ceil(deadline.Sub(h.now()).Seconds()))
			if remaining < 0 {
				remaining = 0
			}
			h.broadcast(sessionID, models.WsMsg{Type: "tick", Data: tickPayload{Round: round, Remaining: remaining, Deadline: deadline}})
			if remaining == 0 {
				h.dropTimer(key, stop)
				return
			}
			select {
			case <-stop:
				return
			case <-t.C:
			}
		}
	}()
}

func (h *Hub) dropTimer(key string, stop chan struct{}) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if cur, ok := h.timers[key]; ok && cur == stop {
		delete(h.timers, key)
	}
}

func (h *Hub) RoundClosed(sessionID string, round int) {
	key := timerKey(sessionID, round)
	h.mu.Lock()
	if stop, ok := h.timers[key]; ok {
		close(stop)
		delete(h.timers, key)
	}
	h.mu.Unlock()
	h.broadcast(sessionID, models.WsMsg{Type: "round_closed", Data: map[string]int{"round": round}})
}

// Close stops all timers, disconnects every client and waits for the hub's
// goroutines to exit.
func (h *Hub) Close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	for key, stop := range h.timers {
		close(stop)
		delete(h.timers, key)
	}
	var all []*client
	for _, set := range h.clients {
		for c := range set {
			all = append(all, c)
		}
	}
	h.clients = make(map[string]map[*client]struct{})
	h.mu.Unlock()

	for _, c := range all {
		if h.gauge != nil {
			h.gauge.ClientDisconnected()
		}
		c.close()
		_ = c.conn.Close()
	}
	h.wg.Wait()
}
