package api

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Same-origin policy for upgrades; localhost allowed for development
	// behind a proxy.
	CheckOrigin: func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		if strings.Contains(origin, "://localhost:") || strings.Contains(origin, "://127.0.0.1:") {
			return true
		}
		host := r.Host
		if after, ok := strings.CutPrefix(origin, "http://"); ok {
			return after == host
		}
		if after, ok := strings.CutPrefix(origin, "https://"); ok {
			return after == host
		}
		return false
	},
}

// WSMessage is a topic-based envelope sent to clients.
type WSMessage struct {
	Topic string `json:"topic"`
	Data  any    `json:"data"`
}

// statusPushInterval is how often a connected client receives a fresh
// fleet snapshot.
const statusPushInterval = 5 * time.Second

// handleStatusWS upgrades the connection and streams fleet status
// snapshots until the client goes away.
func (s *Server) handleStatusWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("Websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	s.logger.Debug("Websocket client connected", "remote", r.RemoteAddr)

	// Reader goroutine: we never expect client messages, but reading is
	// required to notice close frames.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(statusPushInterval)
	defer ticker.Stop()

	// Immediate first push, then on every tick.
	for {
		if err := s.pushStatus(conn, r); err != nil {
			s.logger.Debug("Websocket client gone", "remote", r.RemoteAddr, "error", err)
			return
		}
		select {
		case <-done:
			return
		case <-r.Context().Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *Server) pushStatus(conn *websocket.Conn, r *http.Request) error {
	statuses := s.fleet.GetAllStatus(r.Context())
	payload, err := json.Marshal(WSMessage{Topic: "status", Data: statuses})
	if err != nil {
		return err
	}
	conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return conn.WriteMessage(websocket.TextMessage, payload)
}
