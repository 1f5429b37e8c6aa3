package model

import (
	"strconv"
	"strings"
)

// Profile holds the intake fields collected before a session starts.
// It is immutable once the session starts.
type Profile struct {
	UserID     string `json:"user_id,omitempty"`
	Position   string `json:"position"`
	Role       string `json:"role"`
	TeamSize   int    `json:"team_size"`
	Motivation string `json:"motivation,omitempty"`
}

// Validate reports every blank or out-of-range required field as a
// ProfileIncompleteError.
func (p Profile) Validate() error {
	var missing []string
	if strings.TrimSpace(p.Position) == "" {
		missing = append(missing, "position")
	}
	if strings.TrimSpace(p.Role) == "" {
		missing = append(missing, "role")
	}
	if p.TeamSize < 0 {
		missing = append(missing, "team_size")
	}
	if len(missing) > 0 {
		return &ProfileIncompleteError{Missing: missing}
	}
	return nil
}

// ParseProfile builds a Profile from raw intake form values. A blank or
// non-numeric team size is reported alongside any other missing field.
func ParseProfile(position, role, teamSize, motivation string) (Profile, error) {
	p := Profile{
		Position:   strings.TrimSpace(position),
		Role:       strings.TrimSpace(role),
		Motivation: strings.TrimSpace(motivation),
	}

	var missing []string
	n, err := strconv.Atoi(strings.TrimSpace(teamSize))
	if err != nil || n < 0 {
		missing = append(missing, "team_size")
	} else {
		p.TeamSize = n
	}

	if verr := p.Validate(); verr != nil {
		pie := verr.(*ProfileIncompleteError)
		missing = append(pie.Missing, missing...)
	}
	if len(missing) > 0 {
		return p, &ProfileIncompleteError{Missing: missing}
	}
	return p, nil
}
