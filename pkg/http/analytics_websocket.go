package http

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"callqa-server/pkg/metrics"
	"callqa-server/pkg/realtime/analytics"
)

const (
	wsWriteWait      = 10 * time.Second
	wsPongWait       = 60 * time.Second
	wsPingPeriod     = 54 * time.Second
	wsHeartbeatEvery = 30 * time.Second
	wsSendBuffer     = 256
)

// AnalyticsWebSocketHandler streams finished analyses and their alerts to
// WebSocket clients
type AnalyticsWebSocketHandler struct {
	logger   *logrus.Logger
	upgrader websocket.Upgrader

	sessions   map[*wsSession]struct{}
	sessionsMu sync.RWMutex

	join   chan *wsSession
	leave  chan *wsSession
	outbox chan *AnalyticsMessage

	done     chan struct{}
	stopOnce sync.Once
}

// wsSession is one connected client. An empty source receives every
// analysis.
type wsSession struct {
	id   string
	conn *websocket.Conn
	out  chan []byte
	hub  *AnalyticsWebSocketHandler

	mu     sync.Mutex
	source string
	closed bool
}

// AnalyticsMessage is the envelope of every server-to-client frame
type AnalyticsMessage struct {
	Type       string              `json:"type"`
	AnalysisID string              `json:"analysis_id,omitempty"`
	Source     string              `json:"source,omitempty"`
	Timestamp  time.Time           `json:"timestamp"`
	Data       *analytics.Snapshot `json:"data,omitempty"`
	Event      interface{}         `json:"event,omitempty"`
}

// clientMessage is what clients may send: subscribe, unsubscribe or ping
type clientMessage struct {
	Type   string `json:"type"`
	Source string `json:"source"`
}

// NewAnalyticsWebSocketHandler creates the hub. allowedOrigin "*" accepts
// any origin.
func NewAnalyticsWebSocketHandler(logger *logrus.Logger, allowedOrigin string) *AnalyticsWebSocketHandler {
	return &AnalyticsWebSocketHandler{
		logger: logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return originAllowed(r, allowedOrigin)
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		sessions: make(map[*wsSession]struct{}),
		join:     make(chan *wsSession),
		leave:    make(chan *wsSession),
		outbox:   make(chan *AnalyticsMessage, wsSendBuffer),
		done:     make(chan struct{}),
	}
}

func originAllowed(r *http.Request, allowed string) bool {
	if allowed == "" || allowed == "*" {
		return true
	}
	origin := r.Header.Get("Origin")
	return origin == "" || origin == allowed
}

// Start runs the hub loop in the background
func (h *AnalyticsWebSocketHandler) Start() {
	go h.run()
}

// Stop ends the hub loop and disconnects every client. Safe to call twice.
func (h *AnalyticsWebSocketHandler) Stop() {
	h.stopOnce.Do(func() { close(h.done) })
}

func (h *AnalyticsWebSocketHandler) run() {
	heartbeat := time.NewTicker(wsHeartbeatEvery)
	defer heartbeat.Stop()

	for {
		select {
		case s := <-h.join:
			h.sessionsMu.Lock()
			h.sessions[s] = struct{}{}
			n := len(h.sessions)
			h.sessionsMu.Unlock()
			metrics.SetWebSocketClients(n)
			h.logger.WithField("session_id", s.id).Debug("Analytics client connected")

		case s := <-h.leave:
			h.drop(s)

		case msg := <-h.outbox:
			h.drop(h.fanOut(msg)...)

		case <-heartbeat.C:
			h.drop(h.fanOut(&AnalyticsMessage{Type: "ping", Timestamp: time.Now()})...)

		case <-h.done:
			h.drop(h.snapshot()...)
			return
		}
	}
}

func (h *AnalyticsWebSocketHandler) snapshot() []*wsSession {
	h.sessionsMu.RLock()
	defer h.sessionsMu.RUnlock()
	all := make([]*wsSession, 0, len(h.sessions))
	for s := range h.sessions {
		all = append(all, s)
	}
	return all
}

// fanOut queues msg for every interested session and returns the ones whose
// buffers are full.
func (h *AnalyticsWebSocketHandler) fanOut(msg *AnalyticsMessage) []*wsSession {
	if msg == nil {
		return nil
	}
	frame, err := json.Marshal(msg)
	if err != nil {
		h.logger.WithError(err).Error("Failed to encode analytics message")
		return nil
	}

	var slow []*wsSession
	for _, s := range h.snapshot() {
		if !s.wants(msg) {
			continue
		}
		select {
		case s.out <- frame:
		default:
			slow = append(slow, s)
		}
	}
	if msg.Type != "ping" {
		metrics.RecordWebSocketMessage(msg.Type)
	}
	return slow
}

// drop forgets sessions and closes their outgoing queues, which ends their
// write loops.
func (h *AnalyticsWebSocketHandler) drop(sessions ...*wsSession) {
	if len(sessions) == 0 {
		return
	}
	h.sessionsMu.Lock()
	for _, s := range sessions {
		if _, ok := h.sessions[s]; !ok {
			continue
		}
		delete(h.sessions, s)
		s.close()
		h.logger.WithField("session_id", s.id).Debug("Analytics client disconnected")
	}
	n := len(h.sessions)
	h.sessionsMu.Unlock()
	metrics.SetWebSocketClients(n)
}

// ServeHTTP upgrades the request and attaches the new client to the hub.
// Query parameters: session_id (generated when absent) and source.
func (h *AnalyticsWebSocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.WithError(err).Warn("Analytics WebSocket upgrade failed")
		return
	}

	query := r.URL.Query()
	s := &wsSession{
		id:     query.Get("session_id"),
		conn:   conn,
		out:    make(chan []byte, wsSendBuffer),
		hub:    h,
		source: query.Get("source"),
	}
	if s.id == "" {
		s.id = uuid.New().String()
	}

	select {
	case h.join <- s:
	case <-h.done:
		conn.Close()
		return
	}

	s.queue(&AnalyticsMessage{
		Type:      "connected",
		Timestamp: time.Now(),
		Event: map[string]interface{}{
			"session_id": s.id,
			"source":     s.source,
			"features":   []string{"analysis", "alerts", "stats"},
		},
	})

	go s.writeLoop()
	go s.readLoop()
}

// BroadcastAnalysis queues a finished analysis for every matching client
func (h *AnalyticsWebSocketHandler) BroadcastAnalysis(snapshot *analytics.Snapshot) {
	if snapshot == nil {
		return
	}
	h.enqueue(&AnalyticsMessage{
		Type:       "analysis_complete",
		AnalysisID: snapshot.AnalysisID,
		Source:     snapshot.Source,
		Timestamp:  time.Now(),
		Data:       snapshot,
	})
}

// BroadcastEvent queues an event such as an alert. A "source" entry in a map
// payload is used for client filtering.
func (h *AnalyticsWebSocketHandler) BroadcastEvent(analysisID string, eventType string, event interface{}) {
	msg := &AnalyticsMessage{
		Type:       eventType,
		AnalysisID: analysisID,
		Timestamp:  time.Now(),
		Event:      event,
	}
	if payload, ok := event.(map[string]interface{}); ok {
		msg.Source, _ = payload["source"].(string)
	}
	h.enqueue(msg)
}

func (h *AnalyticsWebSocketHandler) enqueue(msg *AnalyticsMessage) {
	select {
	case h.outbox <- msg:
	default:
		h.logger.WithField("type", msg.Type).Warn("Analytics outbox full, dropping message")
	}
}

// GetConnectedClients returns the number of connected clients
func (h *AnalyticsWebSocketHandler) GetConnectedClients() int {
	h.sessionsMu.RLock()
	defer h.sessionsMu.RUnlock()
	return len(h.sessions)
}

func (s *wsSession) wants(msg *AnalyticsMessage) bool {
	if msg.Type == "ping" {
		return true
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.source == "" || s.source == msg.Source
}

func (s *wsSession) setSource(source string) {
	s.mu.Lock()
	s.source = source
	s.mu.Unlock()
}

// queue sends directly to this session, skipping the hub. Used for replies
// and the welcome frame.
func (s *wsSession) queue(msg *AnalyticsMessage) {
	frame, err := json.Marshal(msg)
	if err != nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.out <- frame:
	default:
	}
}

func (s *wsSession) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.out)
	}
}

func (s *wsSession) readLoop() {
	defer func() {
		select {
		case s.hub.leave <- s:
		case <-s.hub.done:
		}
		s.conn.Close()
	}()

	s.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	for {
		_, raw, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				s.hub.logger.WithError(err).WithField("session_id", s.id).Debug("Analytics client read failed")
			}
			return
		}

		var msg clientMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			s.hub.logger.WithError(err).Debug("Ignoring malformed client message")
			continue
		}
		s.handle(msg)
	}
}

func (s *wsSession) handle(msg clientMessage) {
	log := s.hub.logger.WithField("session_id", s.id)
	switch msg.Type {
	case "subscribe":
		if msg.Source == "" {
			return
		}
		s.setSource(msg.Source)
		log.WithField("source", msg.Source).Debug("Client subscribed to source")
	case "unsubscribe":
		s.setSource("")
		log.Debug("Client unsubscribed")
	case "ping":
		s.queue(&AnalyticsMessage{Type: "pong", Timestamp: time.Now()})
	default:
		log.WithField("type", msg.Type).Debug("Unknown client message type")
	}
}

func (s *wsSession) writeLoop() {
	ping := time.NewTicker(wsPingPeriod)
	defer func() {
		ping.Stop()
		s.conn.Close()
	}()

	for {
		select {
		case frame, ok := <-s.out:
			s.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if !ok {
				s.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := s.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-ping.C:
			s.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
