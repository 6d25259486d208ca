package sut

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// serveWebSocket upgrades the request and echoes every message back. The
// request stays tracked until the connection closes.
func (s *Server) serveWebSocket(ctx context.Context, w http.ResponseWriter, r *http.Request, req *Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Debug().Err(err).Str("id", req.ID).Msg("websocket upgrade failed")
		return
	}

	s.mu.Lock()
	s.conns[conn] = struct{}{}
	s.mu.Unlock()

	defer func() {
		conn.Close()
		s.mu.Lock()
		delete(s.conns, conn)
		s.mu.Unlock()
		s.report.Event("websocket", []string{"closed"}, map[string]any{"id": req.ID})
	}()

	s.report.Event("websocket", []string{"open"}, map[string]any{"id": req.ID})

	for {
		mt, message, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Debug().Err(err).Str("id", req.ID).Msg("websocket read")
			}
			return
		}

		if err := s.gate.Next(ctx, "Websocket echo is next"); err != nil {
			return
		}

		s.report.Action("echo", string(message))

		if err := conn.WriteMessage(mt, message); err != nil {
			log.Debug().Err(err).Str("id", req.ID).Msg("websocket write")
			return
		}
	}
}

func (s *Server) closeConns() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for conn := range s.conns {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server stopping"), deadline())
		conn.Close()
	}
}

func deadline() time.Time {
	return time.Now().Add(time.Second)
}
