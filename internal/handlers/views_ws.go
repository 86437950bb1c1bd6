// internal/handlers/views_ws.go
package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jason-s-yu/arena/internal/auth"
	"github.com/jason-s-yu/arena/internal/middleware"
	"github.com/jason-s-yu/arena/internal/views"
)

// Subprotocol is the websocket subprotocol clients must request.
const Subprotocol = "arena"

const writeTimeout = 5 * time.Second

// ViewStreamHandler streams one role's projection over a websocket. The
// stream is one-way: every change of the projection is written as a JSON
// text message; client messages are ignored.
func (s *ArenaServer) ViewStreamHandler(w http.ResponseWriter, r *http.Request) {
	role, ok := views.ParseRole(chi.URLParam(r, "role"))
	if !ok {
		http.Error(w, "unknown view role", http.StatusBadRequest)
		return
	}
	patterns := s.OriginPatterns
	if len(patterns) == 0 {
		patterns = []string{"*"}
	}

	c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		Subprotocols:   []string{Subprotocol},
		OriginPatterns: patterns,
	})
	if err != nil {
		s.Logger.Warnf("websocket accept error: %v", err)
		return
	}
	defer c.Close(websocket.StatusInternalError, "handler finished")

	if c.Subprotocol() != Subprotocol {
		c.Close(BadSubprotocolError, "client must speak the arena subprotocol")
		return
	}

	playerID := uuid.Nil
	if role != views.RoleScreen {
		id, err := auth.FromRequest(r)
		if err != nil {
			c.Close(InvalidAuthTokenError, "invalid or missing auth token")
			return
		}
		if role == views.RoleAdmin && !id.Admin {
			c.Close(AdminOnlyError, "admin token required")
			return
		}
		playerID = id.PlayerID
	}

	middleware.LogWebSocketConnect(s.Logger, r.RemoteAddr, string(role))

	// CloseRead discards client frames and cancels ctx when the peer goes away.
	ctx := c.CloseRead(r.Context())
	obs := &views.Observer{
		Source:      s.Coordinator,
		Hub:         s.Hub,
		Role:        role,
		PlayerID:    playerID,
		Clock:       s.Coordinator.Clock(),
		Tick:        s.Tick,
		CheckExpiry: s.ObserverExpiry,
		Logger:      s.Logger,
		Emit: func(ctx context.Context, view interface{}) error {
			wctx, cancel := context.WithTimeout(ctx, writeTimeout)
			defer cancel()
			return wsjson.Write(wctx, c, view)
		},
	}
	err = obs.Run(ctx)
	middleware.LogWebSocketDisconnect(s.Logger, r.RemoteAddr, string(role), err)

	if err != nil && ctx.Err() == nil {
		c.Close(ViewStreamError, "view stream stopped")
		return
	}
	c.Close(websocket.StatusNormalClosure, "")
}
