package timing

import (
	"github.com/jonboulle/clockwork"
)

// NoStart is returned by queries before a start has been recorded.
const NoStart int64 = -1

// TimeMeter translates between the station's free-running timer and the
// server's wall clock. The station reports timestamps in its own domain
// (milliseconds since an arbitrary epoch, typically device boot); capturing
// the server time at the moment the station reports its start lets us map the
// current server instant back into the station domain. The offset is computed
// once per race and assumed stable for its duration.
type TimeMeter struct {
	clock clockwork.Clock

	stationStartTime int64
	serverStartTime  int64
	started          bool
}

// NewTimeMeter creates a meter reading time from the given clock.
// In production, use clockwork.NewRealClock(). In tests, a FakeClock.
func NewTimeMeter(clock clockwork.Clock) *TimeMeter {
	return &TimeMeter{clock: clock}
}

// RecordStart captures the station's start timestamp together with the
// server time of this call. Called once per race.
func (m *TimeMeter) RecordStart(stationStartTime int64) {
	m.stationStartTime = stationStartTime
	m.serverStartTime = m.clock.Now().UnixMilli()
	m.started = true
}

// StartTime returns the station-domain start timestamp of the current race,
// or NoStart if none has been recorded.
func (m *TimeMeter) StartTime() int64 {
	if !m.started {
		return NoStart
	}
	return m.stationStartTime
}

// ApproximateCurrentTime returns the station-domain equivalent of the current
// instant, so late-joining clients can render a running clock without a live
// ping to the station. Returns NoStart before the first RecordStart.
func (m *TimeMeter) ApproximateCurrentTime() int64 {
	if !m.started {
		return NoStart
	}
	offset := m.serverStartTime - m.stationStartTime
	return m.clock.Now().UnixMilli() - offset
}

// Reset discards the recorded start. Queries return NoStart until the next
// RecordStart.
func (m *TimeMeter) Reset() {
	m.started = false
	m.stationStartTime = 0
	m.serverStartTime = 0
}
