package gateway

import (
	"encoding/json"

	"github.com/racekit/timekeeper/internal/models"
)

// Command tags a wire frame. Each role speaks its own subset; a command that
// is not part of the sender's role is ignored.
type Command string

// Station commands.
const (
	// CmdStartMeasuring tells the station to sound the start signal and begin
	// measuring. Data is the expected runner count.
	CmdStartMeasuring Command = "StartMeasuring"
	// CmdStopMeasuring tells the station the race is over. Data is null.
	CmdStopMeasuring Command = "StopMeasuring"
	// CmdMeasuredStart reports the station timestamp of the start signal.
	CmdMeasuredStart Command = "MeasuredStart"
	// CmdMeasuredStop reports a detected finish. Station to server it carries
	// the raw station timestamp; server to admin it re-announces a timestamp
	// that is not yet assigned to a runner.
	CmdMeasuredStop Command = "MeasuredStop"
)

// Admin commands.
const (
	// CmdState carries the race state enum.
	CmdState Command = "State"
	// CmdAvailableRaces carries the races the admin may start right now.
	CmdAvailableRaces Command = "AvailableRaces"
	// CmdRaceStart carries a race.StartInfo snapshot.
	CmdRaceStart Command = "RaceStart"
	// CmdRaceEnd signals the end of the running race. Data is null.
	CmdRaceEnd Command = "RaceEnd"
	// CmdStart requests the start of a race. Data is the race id.
	CmdStart Command = "Start"
	// CmdAssignTime attributes a measurement to a starter. Data is an
	// Assignment.
	CmdAssignTime Command = "AssignTime"
	// CmdCreateRace creates a new race. Data is a models.Race.
	CmdCreateRace Command = "CreateRace"
)

// Viewer commands. Viewers also receive State, RaceStart and RaceEnd.
const (
	// CmdRunnerFinished carries a FinishedRunner.
	CmdRunnerFinished Command = "RunnerFinished"
	// CmdRaces carries a race list: past races for viewers, upcoming races
	// for registration connections.
	CmdRaces Command = "Races"
	// CmdRunners carries the roster of a requested race.
	CmdRunners Command = "Runners"
	// CmdGetRunners requests the roster of a race. Data is the race id.
	CmdGetRunners Command = "GetRunners"
)

// Registration commands.
const (
	// CmdRegister signs a participant up for a race. Data is a Registration.
	CmdRegister Command = "Register"
)

// Message is the {command, data} envelope shared by every role. Data is
// decoded per command.
type Message struct {
	Command Command         `json:"command"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Assignment pairs a starter number with a raw measured timestamp.
type Assignment struct {
	Starter int   `json:"starter"`
	Time    int64 `json:"time"`
}

// FinishedRunner announces an assigned finishing time to viewers.
type FinishedRunner struct {
	Starter int `json:"starter"`
	// Time is milliseconds elapsed from the race start.
	Time int64 `json:"time"`
}

// Registration is the payload of a Register frame.
type Registration struct {
	RaceID      int64              `json:"raceId"`
	Participant models.Participant `json:"participant"`
}

// encodeMessage marshals a full frame.
func encodeMessage(cmd Command, data any) ([]byte, error) {
	msg := Message{Command: cmd}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			return nil, err
		}
		msg.Data = raw
	}
	return json.Marshal(msg)
}
