package race

import (
	"context"

	"github.com/racekit/timekeeper/internal/models"
)

// Repository defines what the race core needs from the persistence layer.
// Every call may fail; the core logs failures and keeps going with in-memory
// state rather than propagating them (storage divergence is accepted until an
// operator intervenes).
type Repository interface {
	GetRace(ctx context.Context, id int64) (*models.Race, error)
	ListRaces(ctx context.Context) ([]models.Race, error)
	CreateRace(ctx context.Context, race *models.Race) error
	UpdateRace(ctx context.Context, race *models.Race) error

	// GetRunnersForRace returns runners ordered by starter number.
	GetRunnersForRace(ctx context.Context, raceID int64) ([]*models.Runner, error)
	// GetParticipantsWithoutRunner returns registered participants that have
	// no runner row yet, in registration order.
	GetParticipantsWithoutRunner(ctx context.Context, raceID int64) ([]models.Participant, error)
	CreateRunner(ctx context.Context, runner *models.Runner) error
	UpdateRunner(ctx context.Context, runner *models.Runner) error

	// RegisterParticipant stores the participant and creates their runner row
	// with the next free starter number for the race.
	RegisterParticipant(ctx context.Context, participant *models.Participant, raceID int64) error
}
