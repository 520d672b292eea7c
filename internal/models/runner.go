package models

// Runner is a participant's instance within one race. Starter numbers are
// sequential per race; Time is milliseconds elapsed from the race start and
// stays nil until the runner finishes.
type Runner struct {
	ID          int64        `json:"id"`
	RaceID      int64        `json:"raceId"`
	Starter     int          `json:"starter"`
	Time        *int64       `json:"time"`
	Participant *Participant `json:"participant,omitempty"`
}

// Finished reports whether a time has been assigned.
func (r *Runner) Finished() bool {
	return r.Time != nil
}
