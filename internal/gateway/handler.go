package gateway

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// RegisterRoutes mounts one websocket endpoint per role.
func (h *Hub) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/ws/station", h.serveRole(RoleStation))
	mux.HandleFunc("/ws/admin", h.serveRole(RoleAdmin))
	mux.HandleFunc("/ws/viewer", h.serveRole(RoleViewer))
	mux.HandleFunc("/ws/register", h.serveRole(RoleRegistration))
}

// serveRole upgrades the request and attaches the connection to its role
// pool. A second station or admin is refused with a policy-violation close.
func (h *Hub) serveRole(role Role) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ws, err := h.upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Error().Err(err).Str("role", string(role)).Msg("websocket upgrade failed")
			return
		}

		c := &Conn{
			id:          uuid.New().String(),
			role:        role,
			ws:          ws,
			send:        make(chan []byte, h.cfg.SendBuffer),
			hub:         h,
			connectedAt: time.Now(),
		}

		if !h.attach(h.context(), c) {
			log.Warn().Str("role", string(role)).Msg("refusing second connection for singleton role")
			ws.WriteControl(
				websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "role already connected"),
				time.Now().Add(time.Second),
			)
			ws.Close()
			return
		}
		go c.writePump()
		go c.readPump()
	}
}
