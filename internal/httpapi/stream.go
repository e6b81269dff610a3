package httpapi

import (
	"encoding/json"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

// streamMessage is pushed to observers on connect and after every replace.
type streamMessage struct {
	Source  string `json:"source"`
	Version uint64 `json:"version"`
	Data    any    `json:"data"`
}

// handleStream pushes source snapshots over a websocket until either side
// goes away.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	log := s.log.WithRequest(r).WithField("handler", "stream")
	src := s.board.Source()

	sub, err := src.Subscribe()
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "source closed")
		return
	}
	defer sub.Close()

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.WithField("error", err.Error()).Warn("websocket upgrade failed")
		return
	}
	defer conn.Close()
	log = log.WithField("subscriber", sub.ID)
	log.Info("observer connected")

	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	// observers never send anything meaningful; reading surfaces the close
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()
	for {
		select {
		case snap, ok := <-sub.C():
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "source closed"),
					time.Now().Add(writeWait))
				log.Info("source closed, observer dropped")
				return
			}
			msg, err := json.Marshal(streamMessage{Source: src.Name(), Version: snap.Version, Data: snap.Data})
			if err != nil {
				log.WithField("error", err.Error()).WithField("version", snap.Version).Error("failed to encode snapshot")
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseInternalServerErr, "snapshot not encodable"),
					time.Now().Add(writeWait))
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				log.WithField("error", err.Error()).Warn("push failed")
				return
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		case <-done:
			log.Info("observer disconnected")
			return
		}
	}
}

// originChecker allows same-host requests, requests without an Origin and
// the configured origins ("*" allows all).
func originChecker(allowed []string) func(*http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" || slices.Contains(allowed, "*") || slices.Contains(allowed, origin) {
			return true
		}
		u, err := url.Parse(origin)
		if err != nil {
			return false
		}
		return strings.EqualFold(u.Host, r.Host)
	}
}
