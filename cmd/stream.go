package cmd

import (
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/gorilla/websocket"

	"github.com/saverx/saverx/internal/engine/events"
	"github.com/saverx/saverx/internal/utils"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     isLocalOrigin,
}

// isLocalOrigin accepts non-browser clients and pages served from loopback.
func isLocalOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	if u.Hostname() == "localhost" {
		return true
	}
	ip := net.ParseIP(u.Hostname())
	return ip != nil && ip.IsLoopback()
}

// handleStream pushes every event published after the handshake to the
// client as a JSON envelope. The subscription is taken before upgrading so
// a client that has connected cannot miss an event.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	q := s.ctrl.Subscribe()
	defer s.ctrl.Unsubscribe(q)

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		utils.Debug("WebSocket: upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	// The read loop only handles control frames and notices disconnects.
	closed := make(chan struct{})
	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-closed:
			return
		case <-q.Notify():
			for _, e := range q.Drain() {
				_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
				if err := conn.WriteJSON(events.Wrap(e)); err != nil {
					utils.Debug("WebSocket: write failed: %v", err)
					return
				}
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}
