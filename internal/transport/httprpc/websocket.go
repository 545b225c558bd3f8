package httprpc

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/teemow/crmgate/internal/dispatch"
	"github.com/teemow/crmgate/internal/logging"
)

// wsConn serializes writes; gorilla allows one concurrent writer.
type wsConn struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *wsConn) writeJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteJSON(v)
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		s.logger.Debug("websocket upgrade failed", logging.Err(err))
		return
	}
	conn.SetReadLimit(s.maxBodySize)

	// The request context ends when the handler returns, so in-flight
	// dispatches get their own context tied to the connection.
	ctx, cancel := context.WithCancel(context.WithoutCancel(r.Context()))
	ws := &wsConn{conn: conn}

	var wg sync.WaitGroup
	defer func() {
		cancel()
		wg.Wait()
		_ = conn.Close()
	}()

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			// gorilla sends the close frame itself when the read limit is hit.
			if errors.Is(err, websocket.ErrReadLimit) {
				s.logger.Warn("websocket message too large", slog.Int64("limit", s.maxBodySize))
			} else if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Debug("websocket read ended", logging.Err(err))
			}
			return
		}

		if msgType != websocket.TextMessage {
			_ = ws.writeJSON(dispatch.NewError(json.RawMessage("null"), dispatch.CodeParseError, "binary messages are not supported"))
			continue
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			resp := s.dispatcher.DispatchBytes(ctx, data)
			if err := ws.writeJSON(resp); err != nil {
				s.logger.Debug("websocket write failed", logging.Err(err), slog.String("id", string(resp.ID)))
			}
		}()
	}
}
