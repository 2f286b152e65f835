package checkouts

import (
	"fmt"

	"cotracker/internal/database"
	"cotracker/internal/models"
)

type PilotStore interface {
	GetByUsername(username string) (*models.Pilot, error)
	ListPilots() ([]models.Pilot, error)
}

type AirstripStore interface {
	AttachmentStore
	GetByIdent(ident string) (*models.Airstrip, error)
	List() ([]models.Airstrip, error)
	ListByIdents(idents []string) ([]models.Airstrip, error)
	BaseSummaries() ([]models.BaseSummary, error)
	Attached(baseID int64) ([]models.Airstrip, error)
	Unattached(baseID int64) ([]models.Airstrip, error)
}

type AircraftTypeStore interface {
	List() ([]models.AircraftType, error)
	ListByNames(names []string) ([]models.AircraftType, error)
}

type CheckoutLister interface {
	CheckoutStore
	List(filter database.CheckoutFilter) ([]models.Checkout, error)
}

// Service ties the gate and reconcilers to storage for the web pages
type Service struct {
	pilots        PilotStore
	airstrips     AirstripStore
	aircraftTypes AircraftTypeStore
	checkouts     CheckoutLister

	gate        *Gate
	attachments *AttachmentReconciler
	reconciler  *CheckoutReconciler
}

func NewService(pilots PilotStore, airstrips AirstripStore, aircraftTypes AircraftTypeStore, checkouts CheckoutLister, recorder Recorder) *Service {
	return &Service{
		pilots:        pilots,
		airstrips:     airstrips,
		aircraftTypes: aircraftTypes,
		checkouts:     checkouts,
		gate:          NewGate(recorder),
		attachments:   NewAttachmentReconciler(airstrips, recorder),
		reconciler:    NewCheckoutReconciler(checkouts, recorder),
	}
}

// PilotDetail is a pilot with their checkouts grouped by airstrip
type PilotDetail struct {
	Pilot     models.Pilot               `json:"pilot"`
	Checkouts []models.AirstripCheckouts `json:"checkouts"`
}

// AirstripDetail is an airstrip with its checkouts grouped by pilot
type AirstripDetail struct {
	Airstrip  models.Airstrip         `json:"airstrip"`
	Checkouts []models.PilotCheckouts `json:"checkouts"`
}

// BaseAirstrips is a base with either its attached or its unattached airstrips
type BaseAirstrips struct {
	Base          models.Airstrip   `json:"base"`
	AttachedState string            `json:"attached_state"`
	Airstrips     []models.Airstrip `json:"airstrips"`
}

// AttachmentForm holds the choices for editing a base's attachments
type AttachmentForm struct {
	Base      models.Airstrip   `json:"base"`
	Airstrips []models.Airstrip `json:"airstrips"`
	Attached  []models.Airstrip `json:"attached"`
}

// CheckoutForm holds the choices for the checkout edit form
type CheckoutForm struct {
	Pilots        []models.Pilot        `json:"pilots"`
	Airstrips     []models.Airstrip     `json:"airstrips"`
	AircraftTypes []models.AircraftType `json:"aircraft_types"`
	InitialPilot  string                `json:"initial_pilot,omitempty"`
}

// CheckoutEdit is a submitted checkout edit, by natural keys
type CheckoutEdit struct {
	Pilot         string
	Airstrip      string
	AircraftTypes []string
	Action        CheckoutAction
}

// Authorize checks the actor's capability for action. Callers run it before
// reading any submitted form data.
func (s *Service) Authorize(req *Request, action Action) error {
	return s.gate.Authorize(req, action)
}

func (s *Service) Pilots() ([]models.Pilot, error) {
	return s.pilots.ListPilots()
}

func (s *Service) Pilot(username string) (*PilotDetail, error) {
	pilot, err := s.pilots.GetByUsername(username)
	if err != nil {
		return nil, err
	}
	checkouts, err := s.checkouts.List(database.CheckoutFilter{PilotID: pilot.ID})
	if err != nil {
		return nil, err
	}
	return &PilotDetail{Pilot: *pilot, Checkouts: GroupByAirstrip(checkouts)}, nil
}

func (s *Service) Airstrips() ([]models.Airstrip, error) {
	return s.airstrips.List()
}

func (s *Service) Airstrip(ident string) (*AirstripDetail, error) {
	airstrip, err := s.airstrips.GetByIdent(ident)
	if err != nil {
		return nil, err
	}
	checkouts, err := s.checkouts.List(database.CheckoutFilter{AirstripIDs: []int64{airstrip.ID}})
	if err != nil {
		return nil, err
	}
	return &AirstripDetail{Airstrip: *airstrip, Checkouts: GroupByPilot(checkouts)}, nil
}

func (s *Service) AircraftTypes() ([]models.AircraftType, error) {
	return s.aircraftTypes.List()
}

func (s *Service) Bases() ([]models.BaseSummary, error) {
	return s.airstrips.BaseSummaries()
}

// BaseAttached lists the airstrips attached to a base, or with attached false the ones that are not
func (s *Service) BaseAttached(ident string, attached bool) (*BaseAirstrips, error) {
	base, err := s.airstrips.GetByIdent(ident)
	if err != nil {
		return nil, err
	}

	result := &BaseAirstrips{Base: *base}
	if attached {
		result.AttachedState = "attached"
		result.Airstrips, err = s.airstrips.Attached(base.ID)
	} else {
		result.AttachedState = "unattached"
		result.Airstrips, err = s.airstrips.Unattached(base.ID)
	}
	if err != nil {
		return nil, err
	}
	return result, nil
}

// AttachmentForm returns every airstrip except the base and the ones attached to it
func (s *Service) AttachmentForm(req *Request, ident string) (*AttachmentForm, error) {
	if err := s.gate.Authorize(req, ActionEditAttachments); err != nil {
		return nil, err
	}
	base, err := s.base(ident)
	if err != nil {
		return nil, err
	}

	all, err := s.airstrips.List()
	if err != nil {
		return nil, err
	}
	form := &AttachmentForm{Base: *base, Airstrips: make([]models.Airstrip, 0, len(all))}
	for _, a := range all {
		if a.ID != base.ID {
			form.Airstrips = append(form.Airstrips, a)
		}
	}
	form.Attached, err = s.airstrips.Attached(base.ID)
	if err != nil {
		return nil, err
	}
	return form, nil
}

// EditAttachments replaces the set of airstrips attached to a base with the
// airstrips named by proposed
func (s *Service) EditAttachments(req *Request, ident string, proposed []string) (AttachmentOutcome, error) {
	if err := s.gate.Authorize(req, ActionEditAttachments); err != nil {
		return AttachmentOutcome{}, err
	}
	base, err := s.base(ident)
	if err != nil {
		return AttachmentOutcome{}, err
	}

	current, err := s.airstrips.Attached(base.ID)
	if err != nil {
		return AttachmentOutcome{}, err
	}
	req.Logger.Debug("Current attached airstrips", "base", base.Ident, "count", len(current))

	proposedAirstrips, err := s.airstrips.ListByIdents(proposed)
	if err != nil {
		return AttachmentOutcome{}, err
	}
	if missing := missingKeys(proposed, proposedAirstrips, func(a models.Airstrip) string { return a.Ident }); len(missing) > 0 {
		verr := &ValidationError{}
		verr.add("airstrip", fmt.Sprintf("Select a valid choice. %s is not one of the available choices.", missing[0]))
		return AttachmentOutcome{}, verr
	}
	req.Logger.Debug("Proposed attached airstrips", "base", base.Ident, "count", len(proposedAirstrips))

	return s.attachments.Apply(req, *base, Diff(current, proposedAirstrips, *base))
}

// CheckoutForm returns the choices for the checkout edit form. Non-superusers
// only get themselves as a pilot choice.
func (s *Service) CheckoutForm(req *Request) (*CheckoutForm, error) {
	if err := s.gate.Authorize(req, ActionEditCheckouts); err != nil {
		return nil, err
	}

	form := &CheckoutForm{}
	if req.Actor.IsPilot {
		form.InitialPilot = req.Actor.Username
	}

	var err error
	if req.Actor.IsSuperuser {
		form.Pilots, err = s.pilots.ListPilots()
		if err != nil {
			return nil, err
		}
	} else {
		form.Pilots = []models.Pilot{*req.Actor}
	}

	if form.Airstrips, err = s.airstrips.List(); err != nil {
		return nil, err
	}
	if form.AircraftTypes, err = s.aircraftTypes.List(); err != nil {
		return nil, err
	}
	return form, nil
}

// EditCheckout applies a submitted checkout edit. The caller's role is checked
// before the form is looked at; the own-checkouts rule can only be checked
// once the form has resolved the target pilot.
func (s *Service) EditCheckout(req *Request, edit CheckoutEdit) (CheckoutOutcome, error) {
	if err := s.gate.Authorize(req, ActionEditCheckouts); err != nil {
		return CheckoutOutcome{}, err
	}

	pilot, airstrip, aircraftTypes, err := s.resolveCheckoutEdit(edit)
	if err != nil {
		return CheckoutOutcome{}, err
	}

	if err := s.gate.AuthorizeCheckoutOwner(req, pilot); err != nil {
		return CheckoutOutcome{}, err
	}

	return s.reconciler.Apply(req, edit.Action, *pilot, *airstrip, aircraftTypes)
}

func (s *Service) resolveCheckoutEdit(edit CheckoutEdit) (*models.Pilot, *models.Airstrip, []models.AircraftType, error) {
	verr := &ValidationError{}
	const invalidChoice = "Select a valid choice. That choice is not one of the available choices."

	pilot, err := s.pilots.GetByUsername(edit.Pilot)
	switch {
	case err == nil && !pilot.IsPilot:
		verr.add("pilot", invalidChoice)
	case isNotFound(err):
		verr.add("pilot", invalidChoice)
	case err != nil:
		return nil, nil, nil, err
	}

	airstrip, err := s.airstrips.GetByIdent(edit.Airstrip)
	switch {
	case isNotFound(err):
		verr.add("airstrip", invalidChoice)
	case err != nil:
		return nil, nil, nil, err
	}

	var aircraftTypes []models.AircraftType
	if len(edit.AircraftTypes) == 0 {
		verr.add("aircraft_type", "This field is required.")
	} else {
		aircraftTypes, err = s.aircraftTypes.ListByNames(edit.AircraftTypes)
		if err != nil {
			return nil, nil, nil, err
		}
		if missing := missingKeys(edit.AircraftTypes, aircraftTypes, func(t models.AircraftType) string { return t.Name }); len(missing) > 0 {
			verr.add("aircraft_type", fmt.Sprintf("Select a valid choice. %s is not one of the available choices.", missing[0]))
		}
	}

	if !verr.empty() {
		return nil, nil, nil, verr
	}
	return pilot, airstrip, aircraftTypes, nil
}

// Base returns the airstrip with ident, or ErrNotBase when it is not a base
func (s *Service) Base(ident string) (*models.Airstrip, error) {
	return s.base(ident)
}

func (s *Service) base(ident string) (*models.Airstrip, error) {
	base, err := s.airstrips.GetByIdent(ident)
	if err != nil {
		return nil, err
	}
	if !base.IsBase {
		return nil, fmt.Errorf("%s: %w", ident, ErrNotBase)
	}
	return base, nil
}

// missingKeys returns the requested keys that no found item carries, in request order
func missingKeys[T any](requested []string, found []T, key func(T) string) []string {
	present := make(map[string]bool, len(found))
	for _, item := range found {
		present[key(item)] = true
	}
	var missing []string
	for _, k := range requested {
		if !present[k] {
			missing = append(missing, k)
		}
	}
	return missing
}
