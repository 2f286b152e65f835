package models

import "strings"

// Pilot is an application user. Only users with IsPilot set can hold checkouts,
// but any user may sign in and browse.
type Pilot struct {
	ID           int64  `json:"id"`
	Username     string `json:"username"`
	FirstName    string `json:"first_name"`
	LastName     string `json:"last_name"`
	IsPilot      bool   `json:"is_pilot"`
	IsSuperuser  bool   `json:"is_superuser"`
	PasswordHash string `json:"-"`
}

// FullName returns the first and last name, or the username when neither is set
func (p *Pilot) FullName() string {
	name := strings.TrimSpace(p.FirstName + " " + p.LastName)
	if name == "" {
		return p.Username
	}
	return name
}

func (p *Pilot) String() string {
	return p.FullName()
}
