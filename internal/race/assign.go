package race

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/racekit/timekeeper/internal/models"
)

// TryAssign attributes a queued measurement to the runner with the given
// starter number. It fails, without mutating anything, when the raw time was
// never measured (guards replays and typos), when no such starter exists in
// the current race, or when that runner already has a time. On success the
// measurement is consumed, the runner's elapsed time (raw time minus the
// station start) is stored and persisted, and completion is checked: once
// every runner has finished the race is marked done and the manager returns
// to Ready.
func (m *Manager) TryAssign(ctx context.Context, starter int, rawTime int64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != StateInProgress {
		return false
	}
	if !m.measurements.contains(rawTime) {
		return false
	}

	var runner *models.Runner
	for _, r := range m.runners {
		if r.Starter == starter && !r.Finished() {
			runner = r
			break
		}
	}
	if runner == nil {
		return false
	}

	m.measurements.remove(rawTime)
	elapsed := rawTime - m.meter.StartTime()
	runner.Time = &elapsed
	if err := m.repo.UpdateRunner(ctx, runner); err != nil {
		log.Error().Err(err).Int("starter", starter).Msg("failed to persist runner time")
	}
	m.publishLocked(Event{Type: EventRunnerFinished, Starter: starter, Elapsed: elapsed})

	if m.allFinishedLocked() {
		m.completeLocked(ctx)
	}
	return true
}

func (m *Manager) allFinishedLocked() bool {
	for _, r := range m.runners {
		if !r.Finished() {
			return false
		}
	}
	return len(m.runners) > 0
}

// completeLocked finishes the current race: the done flag is set and
// persisted, leftover measurements are discarded, and the manager returns to
// Ready for the next race.
func (m *Manager) completeLocked(ctx context.Context) {
	m.current.Done = true
	if err := m.repo.UpdateRace(ctx, m.current); err != nil {
		log.Error().Err(err).Int64("race_id", m.current.ID).Msg("failed to persist race completion")
	}
	log.Info().Int64("race_id", m.current.ID).Msg("race completed")

	m.measurements.clear()
	m.current = nil
	m.runners = nil
	m.expectedRunners = 0
	m.transitionLocked(StateReady)
}
