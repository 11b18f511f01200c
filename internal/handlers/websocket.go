package handlers

import (
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/murmurnet/murmur/internal/realtime"
)

// WebSocketHandler upgrades an authenticated request to a realtime session.
// The connection binds to a user room only after the client's setup event.
func (h *Handler) WebSocketHandler(allowedOrigins []string) http.HandlerFunc {
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, origin := range allowedOrigins {
		allowed[origin] = true
	}

	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			// Non-browser clients send no Origin header.
			return origin == "" || allowed[origin]
		},
	}

	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			h.log.Debug().Err(err).Msg("websocket upgrade failed")
			return
		}
		realtime.NewClient(h.hub, conn, h.log).Start()
	}
}
