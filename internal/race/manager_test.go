package race

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/racekit/timekeeper/internal/models"
	"github.com/racekit/timekeeper/internal/timing"
)

// testNow is the fake wall clock at the start of every test, unix millis.
const testNow int64 = 1_700_000_000_000

type fakeRepo struct {
	races   []models.Race
	runners map[int64][]*models.Runner
	// waiting holds registered participants without a runner row, per race.
	waiting map[int64][]models.Participant

	createdRunners []*models.Runner
	updatedRunners []*models.Runner
	updatedRaces   []models.Race
	registered     []*models.Participant

	listErr error
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		runners: make(map[int64][]*models.Runner),
		waiting: make(map[int64][]models.Participant),
	}
}

func (f *fakeRepo) GetRace(_ context.Context, id int64) (*models.Race, error) {
	for i := range f.races {
		if f.races[i].ID == id {
			return &f.races[i], nil
		}
	}
	return nil, errors.New("race not found")
}

func (f *fakeRepo) ListRaces(_ context.Context) ([]models.Race, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.races, nil
}

func (f *fakeRepo) CreateRace(_ context.Context, race *models.Race) error {
	race.ID = int64(len(f.races) + 1)
	f.races = append(f.races, *race)
	return nil
}

func (f *fakeRepo) UpdateRace(_ context.Context, race *models.Race) error {
	f.updatedRaces = append(f.updatedRaces, *race)
	for i := range f.races {
		if f.races[i].ID == race.ID {
			f.races[i] = *race
		}
	}
	return nil
}

func (f *fakeRepo) GetRunnersForRace(_ context.Context, raceID int64) ([]*models.Runner, error) {
	return f.runners[raceID], nil
}

func (f *fakeRepo) GetParticipantsWithoutRunner(_ context.Context, raceID int64) ([]models.Participant, error) {
	return f.waiting[raceID], nil
}

func (f *fakeRepo) CreateRunner(_ context.Context, runner *models.Runner) error {
	runner.ID = int64(len(f.createdRunners) + 1)
	f.createdRunners = append(f.createdRunners, runner)
	f.runners[runner.RaceID] = append(f.runners[runner.RaceID], runner)
	return nil
}

func (f *fakeRepo) UpdateRunner(_ context.Context, runner *models.Runner) error {
	f.updatedRunners = append(f.updatedRunners, runner)
	return nil
}

func (f *fakeRepo) RegisterParticipant(_ context.Context, p *models.Participant, raceID int64) error {
	p.RaceID = raceID
	f.registered = append(f.registered, p)
	return nil
}

func newTestManager(repo *fakeRepo) (*Manager, *clockwork.FakeClock) {
	clock := clockwork.NewFakeClockAt(time.UnixMilli(testNow))
	meter := timing.NewTimeMeter(clock)
	return NewManager(repo, clock, meter), clock
}

func drainEvents(m *Manager) []Event {
	var out []Event
	for {
		select {
		case e := <-m.Events():
			out = append(out, e)
		default:
			return out
		}
	}
}

// startedManager returns a manager with one eligible race of three registered
// participants, driven into InProgress with a station start time of 1000.
func startedManager(t *testing.T) (*Manager, *fakeRepo) {
	t.Helper()

	repo := newFakeRepo()
	repo.races = []models.Race{{ID: 7, Date: testNow}}
	repo.waiting[7] = []models.Participant{
		{ID: 1, Firstname: "Anna", Lastname: "Huber"},
		{ID: 2, Firstname: "Max", Lastname: "Bauer"},
		{ID: 3, Firstname: "Eva", Lastname: "Maier"},
	}

	m, _ := newTestManager(repo)
	m.Ready()
	require.True(t, m.RequestStart(context.Background(), 7))
	m.StartRace(context.Background(), 1000)
	require.Equal(t, StateInProgress, m.CurrentState())
	return m, repo
}

func TestManager_ReadyOnlyFromDisabled(t *testing.T) {
	m, _ := newTestManager(newFakeRepo())
	require.Equal(t, StateDisabled, m.CurrentState())

	m.Ready()
	assert.Equal(t, StateReady, m.CurrentState())

	events := drainEvents(m)
	require.Len(t, events, 1)
	assert.Equal(t, EventStateChanged, events[0].Type)
	assert.Equal(t, StateDisabled, events[0].Prev)
	assert.Equal(t, StateReady, events[0].Next)

	// Ready again is a no-op and publishes nothing.
	m.Ready()
	assert.Empty(t, drainEvents(m))
}

func TestManager_RequestStart(t *testing.T) {
	repo := newFakeRepo()
	repo.races = []models.Race{
		{ID: 1, Date: testNow + time.Hour.Milliseconds()},
		{ID: 2, Date: testNow, Done: true},
		{ID: 3, Date: testNow + 13*time.Hour.Milliseconds()},
	}
	m, _ := newTestManager(repo)

	// Not ready yet.
	assert.False(t, m.RequestStart(context.Background(), 1))

	m.Ready()
	drainEvents(m)

	// Done races and races outside the 12h window are not startable.
	assert.False(t, m.RequestStart(context.Background(), 2))
	assert.False(t, m.RequestStart(context.Background(), 3))
	assert.Equal(t, StateReady, m.CurrentState())
	assert.Nil(t, m.CurrentRace())
	assert.Empty(t, drainEvents(m))

	require.True(t, m.RequestStart(context.Background(), 1))
	assert.Equal(t, StateStartRequested, m.CurrentState())
	require.NotNil(t, m.CurrentRace())
	assert.Equal(t, int64(1), m.CurrentRace().ID)

	// A second request is rejected while one is pending.
	assert.False(t, m.RequestStart(context.Background(), 1))
}

func TestManager_StartRaceMaterializesRunners(t *testing.T) {
	m, repo := startedManager(t)

	runners := m.Runners()
	require.Len(t, runners, 3)
	for i, r := range runners {
		assert.Equal(t, i+1, r.Starter)
		assert.False(t, r.Finished())
		assert.Equal(t, int64(7), r.RaceID)
	}
	assert.Equal(t, "Anna", runners[0].Participant.Firstname)
	assert.Len(t, repo.createdRunners, 3)
}

func TestManager_StartRaceContinuesStarterSequence(t *testing.T) {
	repo := newFakeRepo()
	repo.races = []models.Race{{ID: 7, Date: testNow}}
	repo.runners[7] = []*models.Runner{
		{ID: 10, RaceID: 7, Starter: 1, Participant: &models.Participant{ID: 1}},
		{ID: 11, RaceID: 7, Starter: 2, Participant: &models.Participant{ID: 2}},
	}
	repo.waiting[7] = []models.Participant{{ID: 3}, {ID: 4}}

	m, _ := newTestManager(repo)
	m.Ready()
	require.True(t, m.RequestStart(context.Background(), 7))
	assert.Equal(t, 4, m.ExpectedRunners())

	m.StartRace(context.Background(), 1000)

	runners := m.Runners()
	require.Len(t, runners, 4)
	assert.Equal(t, []int{1, 2, 3, 4}, []int{
		runners[0].Starter, runners[1].Starter, runners[2].Starter, runners[3].Starter,
	})
	assert.Len(t, repo.createdRunners, 2)
}

func TestManager_StartRaceEmptyRosterAborts(t *testing.T) {
	repo := newFakeRepo()
	repo.races = []models.Race{{ID: 7, Date: testNow}}

	m, _ := newTestManager(repo)
	m.Ready()
	require.True(t, m.RequestStart(context.Background(), 7))
	drainEvents(m)

	m.StartRace(context.Background(), 1000)

	assert.Equal(t, StateReady, m.CurrentState())
	assert.Nil(t, m.CurrentRace())
	assert.Empty(t, repo.updatedRaces)

	events := drainEvents(m)
	require.Len(t, events, 1)
	assert.Equal(t, StateStartRequested, events[0].Prev)
	assert.Equal(t, StateReady, events[0].Next)
}

func TestManager_StartRaceRequiresStartRequested(t *testing.T) {
	repo := newFakeRepo()
	m, _ := newTestManager(repo)
	m.Ready()
	drainEvents(m)

	m.StartRace(context.Background(), 1000)

	assert.Equal(t, StateReady, m.CurrentState())
	assert.Empty(t, drainEvents(m))
}

func TestManager_RecordMeasurement(t *testing.T) {
	m, _ := startedManager(t)
	drainEvents(m)

	// At or before the measured start: ignored.
	m.RecordMeasurement(1000)
	m.RecordMeasurement(900)
	assert.Empty(t, m.UnassignedMeasurements())
	assert.Empty(t, drainEvents(m))

	m.RecordMeasurement(2000)
	m.RecordMeasurement(3000)
	m.RecordMeasurement(2000)
	assert.Equal(t, []int64{2000, 3000, 2000}, m.UnassignedMeasurements())

	events := drainEvents(m)
	require.Len(t, events, 3)
	for _, e := range events {
		assert.Equal(t, EventMeasurementTaken, e.Type)
	}
	assert.Equal(t, int64(2000), events[0].Time)
}

func TestManager_RecordMeasurementOutsideRace(t *testing.T) {
	m, _ := newTestManager(newFakeRepo())
	m.Ready()

	m.RecordMeasurement(2000)
	assert.Empty(t, m.UnassignedMeasurements())
}

func TestManager_Disable(t *testing.T) {
	m, repo := startedManager(t)
	m.RecordMeasurement(2000)
	drainEvents(m)

	m.Disable()

	assert.Equal(t, StateDisabled, m.CurrentState())
	assert.Nil(t, m.CurrentRace())
	assert.Empty(t, m.Runners())
	// The aborted race is not marked done, so it stays startable.
	assert.False(t, repo.races[0].Done)
	assert.Empty(t, repo.updatedRaces)

	events := drainEvents(m)
	require.Len(t, events, 1)
	assert.Equal(t, StateInProgress, events[0].Prev)
	assert.Equal(t, StateDisabled, events[0].Next)

	// Disable when already disabled publishes nothing.
	m.Disable()
	assert.Empty(t, drainEvents(m))
}

func TestManager_StaleMeasurementsDiscardedOnNextStart(t *testing.T) {
	m, _ := startedManager(t)
	m.RecordMeasurement(2000)
	m.Disable()

	m.Ready()
	require.True(t, m.RequestStart(context.Background(), 7))
	m.StartRace(context.Background(), 5000)

	assert.Empty(t, m.UnassignedMeasurements())
}

func TestManager_RegisterParticipant(t *testing.T) {
	repo := newFakeRepo()
	repo.races = []models.Race{
		{ID: 1, Date: testNow + 2*24*time.Hour.Milliseconds()},
		{ID: 2, Date: testNow - time.Hour.Milliseconds()},
	}
	m, _ := newTestManager(repo)

	valid := models.Participant{Firstname: "Anna", Lastname: "Huber", Sex: "w", YearGroup: 1990}

	// Invalid participant.
	bad := valid
	bad.Sex = "x"
	assert.False(t, m.RegisterParticipant(context.Background(), &bad, 1))

	// Race already in the past.
	p := valid
	assert.False(t, m.RegisterParticipant(context.Background(), &p, 2))
	assert.Empty(t, repo.registered)

	assert.True(t, m.RegisterParticipant(context.Background(), &p, 1))
	require.Len(t, repo.registered, 1)
	assert.Equal(t, int64(1), repo.registered[0].RaceID)
}

func TestManager_RaceLists(t *testing.T) {
	repo := newFakeRepo()
	repo.races = []models.Race{
		{ID: 1, Date: testNow + time.Hour.Milliseconds()},
		{ID: 2, Date: testNow - time.Hour.Milliseconds()},
		{ID: 3, Date: testNow - 2*time.Hour.Milliseconds(), Done: true},
		{ID: 4, Date: testNow + 24*time.Hour.Milliseconds()},
	}
	m, _ := newTestManager(repo)

	startable := m.StartableRaces(context.Background())
	require.Len(t, startable, 2)
	assert.Equal(t, int64(1), startable[0].ID)
	assert.Equal(t, int64(2), startable[1].ID)

	past := m.PastRaces(context.Background())
	require.Len(t, past, 1)
	assert.Equal(t, int64(3), past[0].ID)

	future := m.FutureRaces(context.Background())
	require.Len(t, future, 2)
	assert.Equal(t, int64(1), future[0].ID)
	assert.Equal(t, int64(4), future[1].ID)
}

func TestManager_ListFailureYieldsEmpty(t *testing.T) {
	repo := newFakeRepo()
	repo.listErr = errors.New("storage down")
	m, _ := newTestManager(repo)

	assert.Empty(t, m.StartableRaces(context.Background()))
	assert.Empty(t, m.PastRaces(context.Background()))
	assert.Empty(t, m.FutureRaces(context.Background()))
}

func TestManager_StartInfo(t *testing.T) {
	m, _ := startedManager(t)

	info, ok := m.StartInfo()
	require.True(t, ok)
	assert.Equal(t, int64(1000), info.StartTime)
	assert.Len(t, info.Runners, 3)
	// Fake clock has not advanced since the start was recorded.
	assert.Equal(t, int64(1000), info.CurrentTime)

	m.Disable()
	_, ok = m.StartInfo()
	assert.False(t, ok)
}
