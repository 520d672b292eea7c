package gateway

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/racekit/timekeeper/internal/models"
)

// replayAdmin brings a (re)connecting admin up to date: current state, the
// startable races, and, if a race is running, the start snapshot plus every
// measurement still waiting for an assignment.
func (h *Hub) replayAdmin(ctx context.Context, c *Conn) {
	h.send(c, CmdState, h.manager.CurrentState())
	h.send(c, CmdAvailableRaces, h.manager.StartableRaces(ctx))

	if info, ok := h.manager.StartInfo(); ok {
		h.send(c, CmdRaceStart, info)
		for _, t := range h.manager.UnassignedMeasurements() {
			h.send(c, CmdMeasuredStop, t)
		}
	}
}

func (h *Hub) handleAdminFrame(ctx context.Context, c *Conn, msg Message) {
	switch msg.Command {
	case CmdStart:
		var raceID int64
		if err := json.Unmarshal(msg.Data, &raceID); err != nil {
			log.Debug().Err(err).Msg("bad Start payload")
			return
		}
		h.manager.RequestStart(ctx, raceID)

	case CmdAssignTime:
		var a Assignment
		if err := json.Unmarshal(msg.Data, &a); err != nil {
			log.Debug().Err(err).Msg("bad AssignTime payload")
			return
		}
		if !h.manager.TryAssign(ctx, a.Starter, a.Time) {
			// Re-announce the measurement so the admin can retry.
			h.send(c, CmdMeasuredStop, a.Time)
		}

	case CmdCreateRace:
		var r models.Race
		if err := json.Unmarshal(msg.Data, &r); err != nil {
			log.Debug().Err(err).Msg("bad CreateRace payload")
			return
		}
		if err := h.manager.CreateRace(ctx, &r); err != nil {
			log.Error().Err(err).Msg("failed to create race")
			return
		}
		h.send(c, CmdAvailableRaces, h.manager.StartableRaces(ctx))

	default:
		log.Debug().Str("command", string(msg.Command)).Msg("unexpected admin command")
	}
}
