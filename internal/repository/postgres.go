package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/racekit/timekeeper/internal/models"
)

// Postgres implements the race core's repository on a pgx connection pool.
// See schema.sql for the table layout.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres creates a repository backed by the given pool.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

// GetRace retrieves a race by ID.
func (p *Postgres) GetRace(ctx context.Context, id int64) (*models.Race, error) {
	var r models.Race
	err := p.pool.QueryRow(ctx,
		`SELECT id, date, done FROM races WHERE id = $1`, id,
	).Scan(&r.ID, &r.Date, &r.Done)
	if err != nil {
		return nil, fmt.Errorf("failed to get race: %w", err)
	}
	return &r, nil
}

// ListRaces retrieves all races ordered by scheduled date.
func (p *Postgres) ListRaces(ctx context.Context) ([]models.Race, error) {
	rows, err := p.pool.Query(ctx, `SELECT id, date, done FROM races ORDER BY date`)
	if err != nil {
		return nil, fmt.Errorf("failed to list races: %w", err)
	}
	defer rows.Close()

	var races []models.Race
	for rows.Next() {
		var r models.Race
		if err := rows.Scan(&r.ID, &r.Date, &r.Done); err != nil {
			return nil, fmt.Errorf("failed to scan race: %w", err)
		}
		races = append(races, r)
	}
	return races, rows.Err()
}

// CreateRace inserts a race and fills in its ID.
func (p *Postgres) CreateRace(ctx context.Context, race *models.Race) error {
	err := p.pool.QueryRow(ctx,
		`INSERT INTO races (date, done) VALUES ($1, $2) RETURNING id`,
		race.Date, race.Done,
	).Scan(&race.ID)
	if err != nil {
		return fmt.Errorf("failed to create race: %w", err)
	}
	return nil
}

// UpdateRace persists the race's date and done flag.
func (p *Postgres) UpdateRace(ctx context.Context, race *models.Race) error {
	_, err := p.pool.Exec(ctx,
		`UPDATE races SET date = $2, done = $3 WHERE id = $1`,
		race.ID, race.Date, race.Done,
	)
	if err != nil {
		return fmt.Errorf("failed to update race: %w", err)
	}
	return nil
}

// GetRunnersForRace retrieves the roster with participants, ordered by
// starter number.
func (p *Postgres) GetRunnersForRace(ctx context.Context, raceID int64) ([]*models.Runner, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT r.id, r.race_id, r.starter, r.time,
		       pt.id, pt.race_id, pt.firstname, pt.lastname, pt.sex,
		       pt.year_group, pt.nationality, pt.city, pt.team, pt.email
		FROM runners r
		JOIN participants pt ON pt.id = r.participant_id
		WHERE r.race_id = $1
		ORDER BY r.starter`, raceID)
	if err != nil {
		return nil, fmt.Errorf("failed to get runners: %w", err)
	}
	defer rows.Close()

	var runners []*models.Runner
	for rows.Next() {
		var r models.Runner
		var pt models.Participant
		err := rows.Scan(
			&r.ID, &r.RaceID, &r.Starter, &r.Time,
			&pt.ID, &pt.RaceID, &pt.Firstname, &pt.Lastname, &pt.Sex,
			&pt.YearGroup, &pt.Nationality, &pt.City, &pt.Team, &pt.Email,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan runner: %w", err)
		}
		r.Participant = &pt
		runners = append(runners, &r)
	}
	return runners, rows.Err()
}

// GetParticipantsWithoutRunner retrieves participants registered for the race
// that have no runner row yet, in registration order.
func (p *Postgres) GetParticipantsWithoutRunner(ctx context.Context, raceID int64) ([]models.Participant, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT pt.id, pt.race_id, pt.firstname, pt.lastname, pt.sex,
		       pt.year_group, pt.nationality, pt.city, pt.team, pt.email
		FROM participants pt
		WHERE pt.race_id = $1
		  AND NOT EXISTS (
			SELECT 1 FROM runners r WHERE r.participant_id = pt.id
		  )
		ORDER BY pt.id`, raceID)
	if err != nil {
		return nil, fmt.Errorf("failed to get participants: %w", err)
	}
	defer rows.Close()

	var participants []models.Participant
	for rows.Next() {
		var pt models.Participant
		err := rows.Scan(
			&pt.ID, &pt.RaceID, &pt.Firstname, &pt.Lastname, &pt.Sex,
			&pt.YearGroup, &pt.Nationality, &pt.City, &pt.Team, &pt.Email,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan participant: %w", err)
		}
		participants = append(participants, pt)
	}
	return participants, rows.Err()
}

// CreateRunner inserts a runner and fills in its ID.
func (p *Postgres) CreateRunner(ctx context.Context, runner *models.Runner) error {
	err := p.pool.QueryRow(ctx,
		`INSERT INTO runners (race_id, participant_id, starter, time)
		 VALUES ($1, $2, $3, $4) RETURNING id`,
		runner.RaceID, runner.Participant.ID, runner.Starter, runner.Time,
	).Scan(&runner.ID)
	if err != nil {
		return fmt.Errorf("failed to create runner: %w", err)
	}
	return nil
}

// UpdateRunner persists the runner's finishing time.
func (p *Postgres) UpdateRunner(ctx context.Context, runner *models.Runner) error {
	_, err := p.pool.Exec(ctx,
		`UPDATE runners SET time = $2 WHERE id = $1`,
		runner.ID, runner.Time,
	)
	if err != nil {
		return fmt.Errorf("failed to update runner: %w", err)
	}
	return nil
}

// RegisterParticipant stores the participant and their runner row in one
// transaction, assigning the next free starter number for the race.
func (p *Postgres) RegisterParticipant(ctx context.Context, participant *models.Participant, raceID int64) error {
	err := pgx.BeginFunc(ctx, p.pool, func(tx pgx.Tx) error {
		participant.RaceID = raceID
		err := tx.QueryRow(ctx, `
			INSERT INTO participants
				(race_id, firstname, lastname, sex, year_group, nationality, city, team, email)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			RETURNING id`,
			raceID, participant.Firstname, participant.Lastname, participant.Sex,
			participant.YearGroup, participant.Nationality, participant.City,
			participant.Team, participant.Email,
		).Scan(&participant.ID)
		if err != nil {
			return err
		}

		return tx.QueryRow(ctx, `
			INSERT INTO runners (race_id, participant_id, starter)
			SELECT $1, $2, COALESCE(MAX(starter), 0) + 1
			FROM runners WHERE race_id = $1
			RETURNING starter`,
			raceID, participant.ID,
		).Scan(new(int))
	})
	if err != nil {
		return fmt.Errorf("failed to register participant: %w", err)
	}
	return nil
}
