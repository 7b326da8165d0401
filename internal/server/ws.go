package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ayusman/handorbit/internal/hub"
	"github.com/ayusman/handorbit/internal/logger"
)

// Viewer channel events.
const (
	EventGestureUpdate  = "gesture_update"
	EventStartDetection = "start_detection"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Viewers may be served from any origin
	},
}

// Message is the envelope exchanged with viewers in both directions.
type Message struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type outgoing struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// Session is the part of the application a viewer connection talks to.
type Session interface {
	Join() *hub.Subscriber
	Leave(*hub.Subscriber)
	Begin() error
}

// ViewerHandler upgrades viewer connections and pushes every published
// state to them as gesture_update events.
type ViewerHandler struct {
	session Session
}

// NewViewerHandler creates a ViewerHandler for the given session.
func NewViewerHandler(s Session) *ViewerHandler {
	return &ViewerHandler{session: s}
}

// ServeHTTP handles WebSocket upgrade requests.
func (h *ViewerHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warn("WS", "Upgrade error: %v", err)
		return
	}
	defer conn.Close()

	sub := h.session.Join()
	logger.Info("WS", "Viewer %s connected from %s", sub.ID(), r.RemoteAddr)

	done := make(chan struct{})
	go h.write(conn, sub, done)

	h.read(conn)

	h.session.Leave(sub)
	<-done
	logger.Info("WS", "Viewer %s disconnected", sub.ID())
}

// read consumes viewer events until the connection fails.
func (h *ViewerHandler) read(conn *websocket.Conn) {
	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Debug("WS", "Read error: %v", err)
			}
			return
		}
		conn.SetReadDeadline(time.Now().Add(pongWait))

		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			logger.Debug("WS", "Ignoring malformed message: %v", err)
			continue
		}

		switch msg.Event {
		case EventStartDetection:
			if err := h.session.Begin(); err != nil {
				logger.Warn("WS", "start_detection failed: %v", err)
			}
		default:
			logger.Debug("WS", "Ignoring unknown event %q", msg.Event)
		}
	}
}

// write is the connection's only writer. It exits when the subscriber
// channel closes or a write fails, closing the connection either way.
func (h *ViewerHandler) write(conn *websocket.Conn, sub *hub.Subscriber, done chan<- struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
		close(done)
	}()

	for {
		select {
		case state, ok := <-sub.C():
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := conn.WriteJSON(outgoing{Event: EventGestureUpdate, Data: state}); err != nil {
				logger.Debug("WS", "Write to %s failed: %v", sub.ID(), err)
				h.session.Leave(sub)
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				h.session.Leave(sub)
				return
			}
		}
	}
}
