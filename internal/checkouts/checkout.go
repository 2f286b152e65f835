package checkouts

import (
	"fmt"
	"strings"

	"cotracker/internal/models"
)

// CheckoutAction selects between adding and removing checkouts
type CheckoutAction int

const (
	ActionAdd CheckoutAction = iota
	ActionRemove
)

func (a CheckoutAction) String() string {
	if a == ActionRemove {
		return "remove"
	}
	return "add"
}

// ParseCheckoutAction maps the submitted action button to an action.
// Anything that is not a remove request adds.
func ParseCheckoutAction(value string) CheckoutAction {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "remove checkout", "remove":
		return ActionRemove
	}
	return ActionAdd
}

// CheckoutStore persists checkouts
type CheckoutStore interface {
	Find(pilotID, airstripID int64, aircraftTypeIDs []int64) ([]models.Checkout, error)
	Create(checkout *models.Checkout) error
	Delete(id int64) error
}

// CheckoutOutcome reports what a checkout edit did. Pretended holds the
// descriptions of requested deletions that had nothing to delete.
type CheckoutOutcome struct {
	Added     []models.Checkout `json:"added"`
	Existing  []models.Checkout `json:"existing"`
	Deleted   []models.Checkout `json:"deleted"`
	Pretended []string          `json:"-"`
}

// CheckoutReconciler creates and deletes checkouts for one pilot and airstrip
type CheckoutReconciler struct {
	store    CheckoutStore
	recorder Recorder
}

func NewCheckoutReconciler(store CheckoutStore, recorder Recorder) *CheckoutReconciler {
	if recorder == nil {
		recorder = nopRecorder{}
	}
	return &CheckoutReconciler{store: store, recorder: recorder}
}

// Apply dispatches to Add or Remove
func (r *CheckoutReconciler) Apply(req *Request, action CheckoutAction, pilot models.Pilot, airstrip models.Airstrip, aircraftTypes []models.AircraftType) (CheckoutOutcome, error) {
	if action == ActionRemove {
		return r.Remove(req, pilot, airstrip, aircraftTypes)
	}
	return r.Add(req, pilot, airstrip, aircraftTypes)
}

// Remove deletes the pilot's checkouts at airstrip in the given aircraft types.
// Every requested type is reported as deleted, whether or not a checkout existed
// for it: a missing target is never surfaced to the user.
func (r *CheckoutReconciler) Remove(req *Request, pilot models.Pilot, airstrip models.Airstrip, aircraftTypes []models.AircraftType) (CheckoutOutcome, error) {
	var outcome CheckoutOutcome
	remaining := uniqueTypes(aircraftTypes)

	ids := make([]int64, 0, len(remaining))
	for _, t := range remaining {
		ids = append(ids, t.ID)
	}

	found, err := r.store.Find(pilot.ID, airstrip.ID, ids)
	if err != nil {
		return outcome, fmt.Errorf("failed to look up checkouts: %w", err)
	}

	for _, c := range found {
		if err := r.store.Delete(c.ID); err != nil {
			r.recorder.CheckoutsChanged("remove", len(outcome.Deleted))
			return outcome, fmt.Errorf("failed to delete checkout: %w", err)
		}
		req.audit("Deleted checkout", "checkout", c.String())
		remaining = withoutType(remaining, c.AircraftType.ID)
		outcome.Deleted = append(outcome.Deleted, c)
		req.Messages.Success(fmt.Sprintf("Deleted '%s'", c.String()))
	}
	r.recorder.CheckoutsChanged("remove", len(outcome.Deleted))

	for _, t := range remaining {
		description := models.Describe(&pilot, &airstrip, &t)
		req.Logger.Info("Pretending to delete non-existent checkout", "checkout", description)
		outcome.Pretended = append(outcome.Pretended, description)
		req.Messages.Success(fmt.Sprintf("Deleted '%s'", description))
	}

	return outcome, nil
}

// Add creates a checkout for each aircraft type the pilot does not already
// hold at airstrip. Duplicates are reported, not created, and never block the
// other types.
func (r *CheckoutReconciler) Add(req *Request, pilot models.Pilot, airstrip models.Airstrip, aircraftTypes []models.AircraftType) (CheckoutOutcome, error) {
	var outcome CheckoutOutcome
	defer func() {
		r.recorder.CheckoutsChanged("add", len(outcome.Added))
	}()

	for _, t := range uniqueTypes(aircraftTypes) {
		existing, err := r.store.Find(pilot.ID, airstrip.ID, []int64{t.ID})
		if err != nil {
			return outcome, fmt.Errorf("failed to look up checkout: %w", err)
		}

		if len(existing) > 0 {
			c := existing[0]
			req.Logger.Debug("Prevented duplicate checkout", "checkout", c.String())
			outcome.Existing = append(outcome.Existing, c)
			req.Messages.Success(fmt.Sprintf("Already exists: '%s'", c.String()))
			continue
		}

		c := models.Checkout{Pilot: pilot, Airstrip: airstrip, AircraftType: t}
		if err := r.store.Create(&c); err != nil {
			return outcome, fmt.Errorf("failed to create checkout: %w", err)
		}
		req.audit("Added checkout", "checkout", c.String())
		outcome.Added = append(outcome.Added, c)
		req.Messages.Success(fmt.Sprintf("Added '%s'", c.String()))
	}

	return outcome, nil
}

func uniqueTypes(aircraftTypes []models.AircraftType) []models.AircraftType {
	seen := make(map[int64]bool, len(aircraftTypes))
	unique := make([]models.AircraftType, 0, len(aircraftTypes))
	for _, t := range aircraftTypes {
		if seen[t.ID] {
			continue
		}
		seen[t.ID] = true
		unique = append(unique, t)
	}
	return unique
}

func withoutType(aircraftTypes []models.AircraftType, id int64) []models.AircraftType {
	kept := aircraftTypes[:0]
	for _, t := range aircraftTypes {
		if t.ID != id {
			kept = append(kept, t)
		}
	}
	return kept
}
