package gateway

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog/log"
)

// replayViewer sends a new viewer the current state, the running race's start
// snapshot when there is one, and the list of past races.
func (h *Hub) replayViewer(ctx context.Context, c *Conn) {
	h.send(c, CmdState, h.manager.CurrentState())
	if info, ok := h.manager.StartInfo(); ok {
		h.send(c, CmdRaceStart, info)
	}
	h.send(c, CmdRaces, h.manager.PastRaces(ctx))
}

func (h *Hub) handleViewerFrame(ctx context.Context, c *Conn, msg Message) {
	if msg.Command != CmdGetRunners {
		log.Debug().Str("command", string(msg.Command)).Msg("unexpected viewer command")
		return
	}

	var raceID int64
	if err := json.Unmarshal(msg.Data, &raceID); err != nil {
		log.Debug().Err(err).Msg("bad GetRunners payload")
		return
	}
	h.send(c, CmdRunners, h.manager.RunnersForRace(ctx, raceID))
}
