package race

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/racekit/timekeeper/internal/models"
)

// StartInfo is the snapshot sent to clients when a race starts or when they
// join one already in progress.
type StartInfo struct {
	// StartTime is the station-domain timestamp of the measured start.
	StartTime int64 `json:"startTime"`
	// CurrentTime is the station-domain equivalent of now, for rendering a
	// running clock.
	CurrentTime int64            `json:"currentTime"`
	Runners     []*models.Runner `json:"runners"`
}

// CurrentState returns the lifecycle state.
func (m *Manager) CurrentState() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// CurrentRace returns the race picked for starting or in progress, nil
// otherwise.
func (m *Manager) CurrentRace() *models.Race {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// Runners returns the roster of the current race.
func (m *Manager) Runners() []*models.Runner {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*models.Runner, len(m.runners))
	copy(out, m.runners)
	return out
}

// UnassignedMeasurements returns the queued raw timestamps in arrival order.
func (m *Manager) UnassignedMeasurements() []int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.measurements.snapshot()
}

// ExpectedRunners returns the roster size computed when the start was
// requested, so the station knows how many finishes to expect.
func (m *Manager) ExpectedRunners() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.expectedRunners
}

// StartInfo returns the race-start snapshot. The second return is false
// unless a race is in progress.
func (m *Manager) StartInfo() (StartInfo, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != StateInProgress {
		return StartInfo{}, false
	}
	runners := make([]*models.Runner, len(m.runners))
	copy(runners, m.runners)
	return StartInfo{
		StartTime:   m.meter.StartTime(),
		CurrentTime: m.meter.ApproximateCurrentTime(),
		Runners:     runners,
	}, true
}

// StartableRaces returns the races an administrator may start right now: not
// done, scheduled within the eligibility window around now.
func (m *Manager) StartableRaces(ctx context.Context) []models.Race {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.startableRaces(ctx)
}

func (m *Manager) startableRaces(ctx context.Context) []models.Race {
	now := m.clock.Now().UnixMilli()
	out := []models.Race{}
	for _, r := range m.listRaces(ctx) {
		diff := r.Date - now
		if diff < 0 {
			diff = -diff
		}
		if !r.Done && diff <= startableWindow.Milliseconds() {
			out = append(out, r)
		}
	}
	return out
}

// PastRaces returns completed races.
func (m *Manager) PastRaces(ctx context.Context) []models.Race {
	out := []models.Race{}
	for _, r := range m.listRaces(ctx) {
		if r.Done {
			out = append(out, r)
		}
	}
	return out
}

// FutureRaces returns races participants can still register for.
func (m *Manager) FutureRaces(ctx context.Context) []models.Race {
	now := m.clock.Now().UnixMilli()
	out := []models.Race{}
	for _, r := range m.listRaces(ctx) {
		if !r.Done && r.Date > now {
			out = append(out, r)
		}
	}
	return out
}

// RunnersForRace returns the stored roster of an arbitrary race, for viewers
// browsing past results.
func (m *Manager) RunnersForRace(ctx context.Context, raceID int64) []*models.Runner {
	runners, err := m.repo.GetRunnersForRace(ctx, raceID)
	if err != nil {
		log.Error().Err(err).Int64("race_id", raceID).Msg("failed to load runners")
		return []*models.Runner{}
	}
	return runners
}

func (m *Manager) listRaces(ctx context.Context) []models.Race {
	races, err := m.repo.ListRaces(ctx)
	if err != nil {
		log.Error().Err(err).Msg("failed to list races")
		return nil
	}
	return races
}
