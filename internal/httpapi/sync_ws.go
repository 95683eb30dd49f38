package httpapi

import (
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/wordcut/wordcut/internal/session"
	"github.com/wordcut/wordcut/pkg/log"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// tickMessage is one playback position report from the player surface.
type tickMessage struct {
	Time   float64 `json:"time"`
	Paused bool    `json:"paused"`
}

// seekMessage tells the surface to jump over deleted material.
type seekMessage struct {
	Seek float64 `json:"seek"`
}

// handleSync drives one playback surface. The client streams position
// reports; the server answers with seek commands whenever playback enters a
// deleted word. Each connection gets its own syncer, so reconnecting resets
// the jump guard.
func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn("Sync websocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	syncer := session.NewSyncer(s.ctrl)
	for {
		var tick tickMessage
		if err := conn.ReadJSON(&tick); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Warn("Sync websocket read failed: %v", err)
			}
			return
		}

		target, jump := syncer.Tick(tick.Time, tick.Paused)
		if !jump {
			continue
		}
		if err := conn.WriteJSON(seekMessage{Seek: target}); err != nil {
			log.Warn("Sync websocket write failed: %v", err)
			return
		}
	}
}
