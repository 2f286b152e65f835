package database

import (
	"fmt"
	"time"
)

// Fixture is one named, JSON serializable table export
type Fixture struct {
	Name string
	Rows any
	Len  int
}

type pilotFixture struct {
	Username     string `json:"username"`
	FirstName    string `json:"first_name"`
	LastName     string `json:"last_name"`
	IsPilot      bool   `json:"is_pilot"`
	IsSuperuser  bool   `json:"is_superuser"`
	PasswordHash string `json:"password_hash"`
}

type checkoutFixture struct {
	Pilot        string    `json:"pilot"`
	Airstrip     string    `json:"airstrip"`
	AircraftType string    `json:"aircraft_type"`
	CreatedAt    time.Time `json:"created_at"`
}

// ExportFixtures reads every table into natural-key fixtures suitable for backups
func (d *DB) ExportFixtures() ([]Fixture, error) {
	pilots, err := d.Pilots().ListAll()
	if err != nil {
		return nil, fmt.Errorf("failed to export pilots: %w", err)
	}
	pilotRows := make([]pilotFixture, 0, len(pilots))
	for _, p := range pilots {
		pilotRows = append(pilotRows, pilotFixture{
			Username:     p.Username,
			FirstName:    p.FirstName,
			LastName:     p.LastName,
			IsPilot:      p.IsPilot,
			IsSuperuser:  p.IsSuperuser,
			PasswordHash: p.PasswordHash,
		})
	}

	airstrips, err := d.Airstrips().List()
	if err != nil {
		return nil, fmt.Errorf("failed to export airstrips: %w", err)
	}

	attachments, err := d.Airstrips().Attachments()
	if err != nil {
		return nil, fmt.Errorf("failed to export attachments: %w", err)
	}

	aircraftTypes, err := d.AircraftTypes().List()
	if err != nil {
		return nil, fmt.Errorf("failed to export aircraft types: %w", err)
	}

	checkouts, err := d.Checkouts().List(CheckoutFilter{})
	if err != nil {
		return nil, fmt.Errorf("failed to export checkouts: %w", err)
	}
	checkoutRows := make([]checkoutFixture, 0, len(checkouts))
	for _, c := range checkouts {
		checkoutRows = append(checkoutRows, checkoutFixture{
			Pilot:        c.Pilot.Username,
			Airstrip:     c.Airstrip.Ident,
			AircraftType: c.AircraftType.Name,
			CreatedAt:    c.CreatedAt.UTC(),
		})
	}

	return []Fixture{
		{Name: "pilots", Rows: pilotRows, Len: len(pilotRows)},
		{Name: "airstrips", Rows: airstrips, Len: len(airstrips)},
		{Name: "attachments", Rows: attachments, Len: len(attachments)},
		{Name: "aircraft_types", Rows: aircraftTypes, Len: len(aircraftTypes)},
		{Name: "checkouts", Rows: checkoutRows, Len: len(checkoutRows)},
	}, nil
}
