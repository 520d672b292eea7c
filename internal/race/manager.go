package race

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/racekit/timekeeper/internal/models"
	"github.com/racekit/timekeeper/internal/timing"
)

// startableWindow is how far a race's scheduled time may be from now, in
// either direction, for an administrator to start it. The window tolerates
// clock skew and races scheduled across midnight.
const startableWindow = 12 * time.Hour

// eventBuffer bounds the subscriber channel. Events are published from inside
// the critical section without blocking; if the subscriber falls this far
// behind, events are dropped.
const eventBuffer = 256

// Manager owns the race lifecycle: the state machine, the current race and
// its roster, the queue of unassigned measurements and the station clock
// offset. All mutations run under a single mutex so station input, admin
// input and internally triggered completion are serialized.
type Manager struct {
	repo  Repository
	clock clockwork.Clock
	meter *timing.TimeMeter

	mu              sync.Mutex
	state           State
	current         *models.Race
	runners         []*models.Runner
	measurements    measurementQueue
	expectedRunners int

	events chan Event
}

// NewManager creates a Manager in the Disabled state.
func NewManager(repo Repository, clock clockwork.Clock, meter *timing.TimeMeter) *Manager {
	return &Manager{
		repo:   repo,
		clock:  clock,
		meter:  meter,
		state:  StateDisabled,
		events: make(chan Event, eventBuffer),
	}
}

// Events returns the ordered stream of notifications. There is a single
// stream per Manager; the gateway consumes it and fans out per role.
func (m *Manager) Events() <-chan Event {
	return m.events
}

// Ready marks the manager ready to start a race. Called when a station
// connects; only valid from Disabled.
func (m *Manager) Ready() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != StateDisabled {
		return
	}
	m.transitionLocked(StateReady)
}

// Disable aborts whatever is going on and blocks further starts. Called when
// the station disconnects. An in-progress race is left not done so it can be
// started again later; stale measurements are discarded on the next start.
func (m *Manager) Disable() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state == StateDisabled {
		return
	}
	m.current = nil
	m.runners = nil
	m.expectedRunners = 0
	m.meter.Reset()
	m.transitionLocked(StateDisabled)
}

// RequestStart picks the race to run. It succeeds only from Ready and only
// for a race in the startable set; otherwise it is a no-op and returns false.
func (m *Manager) RequestStart(ctx context.Context, raceID int64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != StateReady {
		return false
	}

	var picked *models.Race
	for _, r := range m.startableRaces(ctx) {
		if r.ID == raceID {
			rc := r
			picked = &rc
			break
		}
	}
	if picked == nil {
		log.Warn().Int64("race_id", raceID).Msg("start requested for non-startable race")
		return false
	}

	existing, err := m.repo.GetRunnersForRace(ctx, raceID)
	if err != nil {
		log.Error().Err(err).Int64("race_id", raceID).Msg("failed to load runners")
		return false
	}
	waiting, err := m.repo.GetParticipantsWithoutRunner(ctx, raceID)
	if err != nil {
		log.Error().Err(err).Int64("race_id", raceID).Msg("failed to load participants")
		return false
	}

	m.current = picked
	m.expectedRunners = len(existing) + len(waiting)
	m.transitionLocked(StateStartRequested)
	return true
}

// StartRace handles the station's measured start. It records the clock
// offset, clears stale measurements from any previous race, and materializes
// the roster: every participant registered for the race without a runner row
// gets one, in registration order, with contiguous starter numbers. A race
// with an empty roster is aborted straight back to Ready.
func (m *Manager) StartRace(ctx context.Context, stationStartTime int64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != StateStartRequested {
		return
	}

	m.meter.RecordStart(stationStartTime)
	m.measurements.clear()
	m.runners = m.materializeRunners(ctx)

	if len(m.runners) == 0 {
		log.Warn().Int64("race_id", m.current.ID).Msg("no runners registered, aborting race")
		m.abortLocked()
		return
	}

	log.Info().
		Int64("race_id", m.current.ID).
		Int("runners", len(m.runners)).
		Int64("station_start", stationStartTime).
		Msg("race started")
	m.transitionLocked(StateInProgress)
}

// RecordMeasurement queues a raw stop timestamp reported by the station.
// Ignored outside a running race, and for timestamps at or before the
// measured start.
func (m *Manager) RecordMeasurement(t int64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != StateInProgress {
		return
	}
	if t <= m.meter.StartTime() {
		return
	}
	m.measurements.append(t)
	m.publishLocked(Event{Type: EventMeasurementTaken, Time: t})
}

// CreateRace stores a new race.
func (m *Manager) CreateRace(ctx context.Context, race *models.Race) error {
	return m.repo.CreateRace(ctx, race)
}

// RegisterParticipant validates the registration and forwards it to the
// repository, which assigns the next starter number. Registrations are only
// accepted for races that have not happened yet.
func (m *Manager) RegisterParticipant(ctx context.Context, p *models.Participant, raceID int64) bool {
	if err := p.Validate(); err != nil {
		log.Warn().Err(err).Msg("rejected participant registration")
		return false
	}

	eligible := false
	for _, r := range m.FutureRaces(ctx) {
		if r.ID == raceID {
			eligible = true
			break
		}
	}
	if !eligible {
		log.Warn().Int64("race_id", raceID).Msg("registration for race that is not upcoming")
		return false
	}

	if err := m.repo.RegisterParticipant(ctx, p, raceID); err != nil {
		log.Error().Err(err).Int64("race_id", raceID).Msg("failed to register participant")
		return false
	}
	return true
}

// materializeRunners loads the roster and creates runner rows for
// participants that registered without one, continuing the starter sequence.
func (m *Manager) materializeRunners(ctx context.Context) []*models.Runner {
	runners, err := m.repo.GetRunnersForRace(ctx, m.current.ID)
	if err != nil {
		log.Error().Err(err).Int64("race_id", m.current.ID).Msg("failed to load runners")
		runners = nil
	}

	next := 0
	for _, r := range runners {
		if r.Starter > next {
			next = r.Starter
		}
	}

	waiting, err := m.repo.GetParticipantsWithoutRunner(ctx, m.current.ID)
	if err != nil {
		log.Error().Err(err).Int64("race_id", m.current.ID).Msg("failed to load participants")
		waiting = nil
	}
	for i := range waiting {
		next++
		runner := &models.Runner{
			RaceID:      m.current.ID,
			Starter:     next,
			Participant: &waiting[i],
		}
		if err := m.repo.CreateRunner(ctx, runner); err != nil {
			log.Error().Err(err).Int("starter", next).Msg("failed to persist runner")
		}
		runners = append(runners, runner)
	}
	return runners
}

// abortLocked drops the current race without marking it done, so it stays
// startable.
func (m *Manager) abortLocked() {
	m.current = nil
	m.runners = nil
	m.expectedRunners = 0
	m.transitionLocked(StateReady)
}

func (m *Manager) transitionLocked(next State) {
	if next == m.state {
		return
	}
	prev := m.state
	m.state = next
	log.Info().
		Stringer("prev", prev).
		Stringer("next", next).
		Msg("race state changed")
	m.publishLocked(Event{Type: EventStateChanged, Prev: prev, Next: next})
}

func (m *Manager) publishLocked(e Event) {
	select {
	case m.events <- e:
	default:
		log.Warn().Str("event", string(e.Type)).Msg("event buffer full, dropping event")
	}
}
