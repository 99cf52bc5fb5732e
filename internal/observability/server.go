package observability

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

// Server serves the live ready-structure view over WebSocket, the same
// upgrade-then-push shape as the teacher pack-mate's
// streaming.WebSocketServer, collapsed to one stream since this module has
// exactly one collaborator (a Watcher) rather than separate job/node/
// partition poll streams.
type Server struct {
	watcher  *Watcher
	upgrader websocket.Upgrader
}

// NewServer builds a Server that streams watcher's snapshots to every
// connected client.
func NewServer(watcher *Watcher) *Server {
	return &Server{
		watcher: watcher,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// HandleWebSocket upgrades the connection and streams snapshots until the
// client disconnects or the request context is cancelled.
func (s *Server) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("observability: upgrade error: %v", err)
		return
	}
	defer func() {
		if err := conn.Close(); err != nil {
			log.Printf("observability: close error: %v", err)
		}
	}()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	go s.watchClientClose(conn, cancel)
	s.stream(ctx, conn)
}

// watchClientClose drains (and discards) inbound frames purely to detect a
// client-initiated close; this view is push-only, so nothing the client
// sends is ever acted on.
func (s *Server) watchClientClose(conn *websocket.Conn, cancel context.CancelFunc) {
	defer cancel()
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (s *Server) stream(ctx context.Context, conn *websocket.Conn) {
	snapshots := s.watcher.Watch(ctx)
	ping := time.NewTicker(30 * time.Second)
	defer ping.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case snap, ok := <-snapshots:
			if !ok {
				return
			}
			if err := conn.WriteJSON(snap); err != nil {
				log.Printf("observability: write error: %v", err)
				return
			}
		case <-ping.C:
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
