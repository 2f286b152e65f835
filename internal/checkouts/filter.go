package checkouts

import (
	"cotracker/internal/database"
	"cotracker/internal/models"
)

// FilterStatus selects between checkouts that exist and combinations that do not
type FilterStatus string

const (
	StatusCompleted    FilterStatus = "completed"
	StatusNotCompleted FilterStatus = "not_completed"
)

// FilterCriteria narrows the checkout filter. Empty fields match everything.
// Base restricts airstrips to the base and the airstrips attached to it.
type FilterCriteria struct {
	Status       FilterStatus
	Pilot        string
	Airstrip     string
	AircraftType string
	Base         string
}

// FilterRow is one (pilot, airstrip, aircraft type) combination
type FilterRow struct {
	Pilot        models.Pilot        `json:"pilot"`
	Airstrip     models.Airstrip     `json:"airstrip"`
	AircraftType models.AircraftType `json:"aircraft_type"`
}

// FilterResult is the outcome of a checkout filter
type FilterResult struct {
	Status FilterStatus `json:"status"`
	Rows   []FilterRow  `json:"rows"`
	Count  int          `json:"count"`
}

type tripleKey struct {
	pilot, airstrip, aircraftType int64
}

// Filter lists completed checkouts, or the combinations still lacking one
func (s *Service) Filter(criteria FilterCriteria) (*FilterResult, error) {
	pilots, airstrips, aircraftTypes, err := s.filterScope(criteria)
	if err != nil {
		return nil, err
	}

	filter := database.CheckoutFilter{}
	if criteria.Pilot != "" {
		filter.PilotID = pilots[0].ID
	}
	if criteria.Airstrip != "" || criteria.Base != "" {
		for _, a := range airstrips {
			filter.AirstripIDs = append(filter.AirstripIDs, a.ID)
		}
	}
	if criteria.AircraftType != "" {
		filter.AircraftTypeID = aircraftTypes[0].ID
	}

	result := &FilterResult{Status: criteria.Status, Rows: make([]FilterRow, 0)}

	// A base with nothing attached and an airstrip outside the base scope
	// leave no airstrips to match.
	if len(airstrips) == 0 {
		return result, nil
	}

	existing, err := s.checkouts.List(filter)
	if err != nil {
		return nil, err
	}

	if criteria.Status == StatusCompleted {
		for _, c := range existing {
			result.Rows = append(result.Rows, FilterRow{Pilot: c.Pilot, Airstrip: c.Airstrip, AircraftType: c.AircraftType})
		}
		result.Count = len(result.Rows)
		return result, nil
	}

	done := make(map[tripleKey]bool, len(existing))
	for _, c := range existing {
		done[tripleKey{c.Pilot.ID, c.Airstrip.ID, c.AircraftType.ID}] = true
	}
	for _, p := range pilots {
		for _, a := range airstrips {
			for _, t := range aircraftTypes {
				if done[tripleKey{p.ID, a.ID, t.ID}] {
					continue
				}
				result.Rows = append(result.Rows, FilterRow{Pilot: p, Airstrip: a, AircraftType: t})
			}
		}
	}
	result.Count = len(result.Rows)
	return result, nil
}

// filterScope resolves the criteria into the pilots, airstrips and aircraft types they cover
func (s *Service) filterScope(criteria FilterCriteria) ([]models.Pilot, []models.Airstrip, []models.AircraftType, error) {
	verr := &ValidationError{}
	const invalidChoice = "Select a valid choice. That choice is not one of the available choices."

	if criteria.Status != StatusCompleted && criteria.Status != StatusNotCompleted {
		verr.add("checkout_status", invalidChoice)
	}

	var pilots []models.Pilot
	var err error
	if criteria.Pilot != "" {
		pilot, err := s.pilots.GetByUsername(criteria.Pilot)
		switch {
		case isNotFound(err) || (err == nil && !pilot.IsPilot):
			verr.add("pilot", invalidChoice)
		case err != nil:
			return nil, nil, nil, err
		default:
			pilots = []models.Pilot{*pilot}
		}
	} else if pilots, err = s.pilots.ListPilots(); err != nil {
		return nil, nil, nil, err
	}

	var airstrips []models.Airstrip
	if criteria.Airstrip != "" {
		airstrip, err := s.airstrips.GetByIdent(criteria.Airstrip)
		switch {
		case isNotFound(err):
			verr.add("airstrip", invalidChoice)
		case err != nil:
			return nil, nil, nil, err
		default:
			airstrips = []models.Airstrip{*airstrip}
		}
	} else if airstrips, err = s.airstrips.List(); err != nil {
		return nil, nil, nil, err
	}

	if criteria.Base != "" {
		base, err := s.base(criteria.Base)
		switch {
		case isNotFound(err) || isNotBase(err):
			verr.add("base", invalidChoice)
		case err != nil:
			return nil, nil, nil, err
		default:
			attached, err := s.airstrips.Attached(base.ID)
			if err != nil {
				return nil, nil, nil, err
			}
			inScope := map[int64]bool{base.ID: true}
			for _, a := range attached {
				inScope[a.ID] = true
			}
			scoped := airstrips[:0:0]
			for _, a := range airstrips {
				if inScope[a.ID] {
					scoped = append(scoped, a)
				}
			}
			airstrips = scoped
		}
	}

	var aircraftTypes []models.AircraftType
	if criteria.AircraftType != "" {
		aircraftTypes, err = s.aircraftTypes.ListByNames([]string{criteria.AircraftType})
		if err != nil {
			return nil, nil, nil, err
		}
		if len(aircraftTypes) == 0 {
			verr.add("aircraft_type", invalidChoice)
		}
	} else if aircraftTypes, err = s.aircraftTypes.List(); err != nil {
		return nil, nil, nil, err
	}

	if !verr.empty() {
		return nil, nil, nil, verr
	}
	return pilots, airstrips, aircraftTypes, nil
}

// GroupByAirstrip groups a pilot's checkouts by airstrip, preserving first-seen order
func GroupByAirstrip(checkouts []models.Checkout) []models.AirstripCheckouts {
	groups := make([]models.AirstripCheckouts, 0)
	index := make(map[int64]int)
	for _, c := range checkouts {
		i, ok := index[c.Airstrip.ID]
		if !ok {
			i = len(groups)
			index[c.Airstrip.ID] = i
			groups = append(groups, models.AirstripCheckouts{Airstrip: c.Airstrip})
		}
		groups[i].AircraftTypes = append(groups[i].AircraftTypes, c.AircraftType)
	}
	return groups
}

// GroupByPilot groups an airstrip's checkouts by pilot, preserving first-seen order
func GroupByPilot(checkouts []models.Checkout) []models.PilotCheckouts {
	groups := make([]models.PilotCheckouts, 0)
	index := make(map[int64]int)
	for _, c := range checkouts {
		i, ok := index[c.Pilot.ID]
		if !ok {
			i = len(groups)
			index[c.Pilot.ID] = i
			groups = append(groups, models.PilotCheckouts{Pilot: c.Pilot})
		}
		groups[i].AircraftTypes = append(groups[i].AircraftTypes, c.AircraftType)
	}
	return groups
}
