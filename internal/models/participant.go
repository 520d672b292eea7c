package models

import (
	"fmt"
	"regexp"
)

// Participant is a person registered for a race. Field constraints follow the
// registration form: capitalized name words, sex is one of m/w/s, year group
// starts at 1920.
type Participant struct {
	ID          int64  `json:"id"`
	RaceID      int64  `json:"raceId"`
	Firstname   string `json:"firstname"`
	Lastname    string `json:"lastname"`
	Sex         string `json:"sex"`
	YearGroup   int    `json:"yearGroup"`
	Nationality string `json:"nationality,omitempty"`
	City        string `json:"city,omitempty"`
	Team        string `json:"team,omitempty"`
	Email       string `json:"email,omitempty"`
}

var (
	lastnameRe  = regexp.MustCompile(`^[A-ZÄÜÖ][a-zäüö]+(-[A-ZÄÜÖ][a-zäüö]+)?$`)
	firstnameRe = regexp.MustCompile(`^([A-ZÄÜÖ][a-zäüö]+)( [A-ZÄÜÖ][a-zäüö]+)*$`)
	sexRe       = regexp.MustCompile(`^[mws]$`)
	emailRe     = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)
)

// Validate checks the registration constraints.
func (p *Participant) Validate() error {
	if !lastnameRe.MatchString(p.Lastname) {
		return fmt.Errorf("invalid lastname %q", p.Lastname)
	}
	if !firstnameRe.MatchString(p.Firstname) {
		return fmt.Errorf("invalid firstname %q", p.Firstname)
	}
	if !sexRe.MatchString(p.Sex) {
		return fmt.Errorf("invalid sex %q", p.Sex)
	}
	if p.YearGroup < 1920 || p.YearGroup > 3000 {
		return fmt.Errorf("invalid year group %d", p.YearGroup)
	}
	if p.Email != "" && !emailRe.MatchString(p.Email) {
		return fmt.Errorf("invalid email %q", p.Email)
	}
	return nil
}
