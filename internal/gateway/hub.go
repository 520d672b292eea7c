package gateway

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/racekit/timekeeper/internal/race"
)

// Hub maintains the per-role connection pools and relays between them and the
// race core: inbound frames become calls into the Manager, Manager events fan
// out to the roles that care. The station and admin slots hold at most one
// connection each; viewers and registration connections are unbounded.
//
// Events are consumed by a single loop so they reach every receiver in the
// order they were generated; per-connection send channels decouple slow
// sockets from that loop.
type Hub struct {
	manager *race.Manager
	cfg     Config

	upgrader websocket.Upgrader

	mu          sync.Mutex
	station     *Conn
	admin       *Conn
	viewers     map[*Conn]struct{}
	registrants map[*Conn]struct{}
	ctx         context.Context
}

// NewHub creates a hub relaying for the given manager.
func NewHub(manager *race.Manager, cfg Config) *Hub {
	return &Hub{
		manager: manager,
		cfg:     cfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  cfg.ReadBufferSize,
			WriteBufferSize: cfg.WriteBufferSize,
			CheckOrigin:     cfg.CheckOrigin,
		},
		viewers:     make(map[*Conn]struct{}),
		registrants: make(map[*Conn]struct{}),
	}
}

// Run consumes the manager's event stream until the context is cancelled.
func (h *Hub) Run(ctx context.Context) error {
	h.mu.Lock()
	h.ctx = ctx
	h.mu.Unlock()
	log.Info().Msg("gateway hub started")

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("gateway hub shutting down")
			return nil
		case e := <-h.manager.Events():
			h.dispatch(ctx, e)
		}
	}
}

func (h *Hub) dispatch(ctx context.Context, e race.Event) {
	switch e.Type {
	case race.EventStateChanged:
		h.stateChanged(ctx, e.Prev, e.Next)
	case race.EventMeasurementTaken:
		// Raw and unattributed, so only the admin sees it.
		h.sendToAdmin(CmdMeasuredStop, e.Time)
	case race.EventRunnerFinished:
		h.broadcastViewers(CmdRunnerFinished, FinishedRunner{Starter: e.Starter, Time: e.Elapsed})
	}
}

func (h *Hub) stateChanged(ctx context.Context, prev, next race.State) {
	h.sendToAdmin(CmdState, next)
	h.broadcastViewers(CmdState, next)

	switch next {
	case race.StateStartRequested:
		h.sendToStation(CmdStartMeasuring, h.manager.ExpectedRunners())
	case race.StateInProgress:
		if info, ok := h.manager.StartInfo(); ok {
			h.sendToAdmin(CmdRaceStart, info)
			h.broadcastViewers(CmdRaceStart, info)
		}
	}

	if prev == race.StateInProgress {
		h.sendToStation(CmdStopMeasuring, nil)
		h.sendToAdmin(CmdRaceEnd, nil)
		h.sendToAdmin(CmdAvailableRaces, h.manager.StartableRaces(ctx))
		h.broadcastViewers(CmdRaceEnd, nil)
		h.broadcastViewers(CmdRaces, h.manager.PastRaces(ctx))
	}
}

// handleFrame decodes an inbound frame and routes it by the sender's role.
// Malformed frames and commands outside the role's set are dropped.
func (h *Hub) handleFrame(c *Conn, data []byte) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		log.Debug().Err(err).Str("connection_id", c.id).Msg("malformed frame")
		return
	}

	ctx := h.context()
	switch c.role {
	case RoleStation:
		h.handleStationFrame(ctx, msg)
	case RoleAdmin:
		h.handleAdminFrame(ctx, c, msg)
	case RoleViewer:
		h.handleViewerFrame(ctx, c, msg)
	case RoleRegistration:
		h.handleRegistrationFrame(ctx, msg)
	}
}

// attach registers a connection in its role pool. It fails when a singleton
// slot is already taken.
func (h *Hub) attach(ctx context.Context, c *Conn) bool {
	h.mu.Lock()
	switch c.role {
	case RoleStation:
		if h.station != nil {
			h.mu.Unlock()
			return false
		}
		h.station = c
	case RoleAdmin:
		if h.admin != nil {
			h.mu.Unlock()
			return false
		}
		h.admin = c
	case RoleViewer:
		h.viewers[c] = struct{}{}
	case RoleRegistration:
		h.registrants[c] = struct{}{}
	}
	h.mu.Unlock()

	log.Info().Str("connection_id", c.id).Str("role", string(c.role)).Msg("connection established")

	switch c.role {
	case RoleStation:
		// The station being connected is what makes the system operational.
		h.manager.Ready()
	case RoleAdmin:
		h.replayAdmin(ctx, c)
	case RoleViewer:
		h.replayViewer(ctx, c)
	case RoleRegistration:
		h.send(c, CmdRaces, h.manager.FutureRaces(ctx))
	}
	return true
}

// disconnect removes a connection from its pool, exactly once, and runs the
// role's disconnect side effect. The send channel is closed while holding the
// lock so in-flight sends cannot hit a closed channel.
func (h *Hub) disconnect(c *Conn) {
	h.mu.Lock()
	removed := false
	switch c.role {
	case RoleStation:
		if h.station == c {
			h.station = nil
			removed = true
		}
	case RoleAdmin:
		if h.admin == c {
			h.admin = nil
			removed = true
		}
	case RoleViewer:
		if _, ok := h.viewers[c]; ok {
			delete(h.viewers, c)
			removed = true
		}
	case RoleRegistration:
		if _, ok := h.registrants[c]; ok {
			delete(h.registrants, c)
			removed = true
		}
	}
	if removed {
		close(c.send)
	}
	h.mu.Unlock()

	if !removed {
		return
	}
	log.Info().
		Str("connection_id", c.id).
		Str("role", string(c.role)).
		Dur("connected_for", time.Since(c.connectedAt)).
		Msg("connection closed")

	if c.role == RoleStation {
		h.manager.Disable()
	}
}

// send encodes and queues a frame for one connection. Delivery is
// best-effort: a receiver with a full buffer is disconnected rather than
// retried or waited on.
func (h *Hub) send(c *Conn, cmd Command, data any) {
	if c == nil {
		return
	}
	frame, err := encodeMessage(cmd, data)
	if err != nil {
		log.Error().Err(err).Str("command", string(cmd)).Msg("failed to encode frame")
		return
	}

	h.mu.Lock()
	attached := h.attachedLocked(c)
	queued := false
	if attached {
		queued = c.enqueue(frame)
	}
	h.mu.Unlock()

	if attached && !queued {
		log.Warn().Str("connection_id", c.id).Str("role", string(c.role)).Msg("send buffer full, dropping connection")
		h.disconnect(c)
		c.ws.Close()
	}
}

func (h *Hub) attachedLocked(c *Conn) bool {
	switch c.role {
	case RoleStation:
		return h.station == c
	case RoleAdmin:
		return h.admin == c
	case RoleViewer:
		_, ok := h.viewers[c]
		return ok
	case RoleRegistration:
		_, ok := h.registrants[c]
		return ok
	}
	return false
}

func (h *Hub) sendToStation(cmd Command, data any) {
	h.mu.Lock()
	c := h.station
	h.mu.Unlock()
	h.send(c, cmd, data)
}

func (h *Hub) sendToAdmin(cmd Command, data any) {
	h.mu.Lock()
	c := h.admin
	h.mu.Unlock()
	h.send(c, cmd, data)
}

func (h *Hub) broadcastViewers(cmd Command, data any) {
	h.mu.Lock()
	targets := make([]*Conn, 0, len(h.viewers))
	for c := range h.viewers {
		targets = append(targets, c)
	}
	h.mu.Unlock()

	for _, c := range targets {
		h.send(c, cmd, data)
	}
}

func (h *Hub) context() context.Context {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.ctx != nil {
		return h.ctx
	}
	return context.Background()
}
