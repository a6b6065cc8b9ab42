package server

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/geto-app/geto/internal/domain"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = 54 * time.Second
)

// Message is one frame of the entry stream.
type Message struct {
	Type      string                `json:"type"`
	Package   string                `json:"package,omitempty"`
	Entries   []domain.SettingEntry `json:"entries,omitempty"`
	Error     string                `json:"error,omitempty"`
	Timestamp time.Time             `json:"timestamp"`
}

// handleEntryStream pushes the entry list of a package whenever it changes.
// The current list is sent right after the upgrade.
func (s *APIServer) handleEntryStream(w http.ResponseWriter, r *http.Request) {
	if s.deps.Entries == nil {
		writeError(w, r, http.StatusServiceUnavailable, "entry store unavailable")
		return
	}
	pkg := packageParam(r)

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[WebSocket] upgrade error: %v", err)
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	updates, err := s.deps.Entries.Watch(ctx, pkg, s.opts.WatchInterval)
	if err != nil {
		s.writeFrame(conn, Message{Type: "error", Package: pkg, Error: err.Error()})
		return
	}

	go readPump(conn, cancel)

	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		case entries, ok := <-updates:
			if !ok {
				return
			}
			if entries == nil {
				entries = []domain.SettingEntry{}
			}
			if err := s.writeFrame(conn, Message{Type: "entries", Package: pkg, Entries: entries}); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (s *APIServer) writeFrame(conn *websocket.Conn, msg Message) error {
	msg.Timestamp = s.clock.Now().UTC()
	conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	if err := conn.WriteJSON(msg); err != nil {
		log.Printf("[WebSocket] write %s frame: %v", msg.Type, err)
		return err
	}
	return nil
}

// readPump drains client frames so control messages are processed and
// cancels the stream once the peer goes away.
func readPump(conn *websocket.Conn, cancel context.CancelFunc) {
	defer cancel()

	conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(wsPongWait))
		return nil
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("[WebSocket] read error: %v", err)
			}
			return
		}
	}
}
