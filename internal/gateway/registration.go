package gateway

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog/log"
)

// handleRegistrationFrame forwards a registration to the repository. The
// race core is only consulted for the list of upcoming races; registration
// never touches the state machine.
func (h *Hub) handleRegistrationFrame(ctx context.Context, msg Message) {
	if msg.Command != CmdRegister {
		log.Debug().Str("command", string(msg.Command)).Msg("unexpected registration command")
		return
	}

	var reg Registration
	if err := json.Unmarshal(msg.Data, &reg); err != nil {
		log.Debug().Err(err).Msg("bad Register payload")
		return
	}
	h.manager.RegisterParticipant(ctx, &reg.Participant, reg.RaceID)
}
