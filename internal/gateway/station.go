package gateway

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog/log"
)

// handleStationFrame relays station input into the race core. A measured
// start moves a requested race into progress and records the clock offset; a
// measured stop lands in the unassigned queue and is pushed to the admin.
func (h *Hub) handleStationFrame(ctx context.Context, msg Message) {
	switch msg.Command {
	case CmdMeasuredStart:
		var t int64
		if err := json.Unmarshal(msg.Data, &t); err != nil {
			log.Debug().Err(err).Msg("bad MeasuredStart payload")
			return
		}
		h.manager.StartRace(ctx, t)

	case CmdMeasuredStop:
		var t int64
		if err := json.Unmarshal(msg.Data, &t); err != nil {
			log.Debug().Err(err).Msg("bad MeasuredStop payload")
			return
		}
		h.manager.RecordMeasurement(t)

	default:
		log.Debug().Str("command", string(msg.Command)).Msg("unexpected station command")
	}
}
