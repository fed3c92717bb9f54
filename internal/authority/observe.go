package authority

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"NightRunners/internal/netcode"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// observerEvent is one processed sync cycle pushed to observer connections.
type observerEvent struct {
	MissionID   string                     `json:"missionId"`
	Snapshot    netcode.SyncSnapshot       `json:"snapshot"`
	Corrections []netcode.ServerCorrection `json:"corrections"`
	ReceivedAt  time.Time                  `json:"receivedAt"`
}

const observerBuffer = 16

// handleObserve upgrades the connection and streams every processed sync
// cycle to it. Slow observers drop events rather than backpressuring sync.
func (s *Server) handleObserve(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn().Err(err).Msg("observer upgrade failed")
		return
	}

	events := make(chan observerEvent, observerBuffer)
	s.obsMu.Lock()
	s.observers[events] = struct{}{}
	s.obsMu.Unlock()

	go s.writePump(conn, events)
}

func (s *Server) writePump(conn *websocket.Conn, events chan observerEvent) {
	defer func() {
		s.obsMu.Lock()
		delete(s.observers, events)
		s.obsMu.Unlock()
		_ = conn.Close()
	}()

	for ev := range events {
		if err := conn.WriteJSON(ev); err != nil {
			return
		}
	}
}

func (s *Server) broadcast(ev observerEvent) {
	s.obsMu.Lock()
	defer s.obsMu.Unlock()
	for ch := range s.observers {
		select {
		case ch <- ev:
		default:
			// Observer too slow; drop the event.
		}
	}
}
