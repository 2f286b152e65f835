package models

import (
	"fmt"
	"time"
)

// Checkout certifies that a pilot may fly an aircraft type into an airstrip.
// The (Pilot, Airstrip, AircraftType) triple is unique.
type Checkout struct {
	ID           int64        `json:"id"`
	Pilot        Pilot        `json:"pilot"`
	Airstrip     Airstrip     `json:"airstrip"`
	AircraftType AircraftType `json:"aircraft_type"`
	CreatedAt    time.Time    `json:"created_at"`
}

// Describe renders the human readable form of a checkout triple
func Describe(pilot *Pilot, airstrip *Airstrip, aircraftType *AircraftType) string {
	return fmt.Sprintf("%s is checked out at %s in a %s", pilot, airstrip, aircraftType)
}

func (c *Checkout) String() string {
	return Describe(&c.Pilot, &c.Airstrip, &c.AircraftType)
}

// AirstripCheckouts groups the aircraft types a pilot holds at one airstrip
type AirstripCheckouts struct {
	Airstrip      Airstrip       `json:"airstrip"`
	AircraftTypes []AircraftType `json:"aircraft_types"`
}

// PilotCheckouts groups the aircraft types one pilot holds at an airstrip
type PilotCheckouts struct {
	Pilot         Pilot          `json:"pilot"`
	AircraftTypes []AircraftType `json:"aircraft_types"`
}
