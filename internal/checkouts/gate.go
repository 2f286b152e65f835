package checkouts

import "cotracker/internal/models"

// Action names a mutating operation subject to authorization
type Action string

const (
	ActionEditAttachments Action = "edit_attachments"
	ActionEditCheckouts   Action = "edit_checkouts"
)

const (
	ReasonAttachments   = "Only admins may modify which airstrips are attached to a base."
	ReasonCheckouts     = "Only pilots may edit checkouts."
	ReasonOwnCheckouts  = "Pilots may only edit their own checkouts."
	reasonUnknownAction = "Sorry, you can't do that."
)

// Gate decides whether an actor may perform an action. Every denial is
// logged at warning level with the actor and the attempted action.
type Gate struct {
	recorder Recorder
}

func NewGate(recorder Recorder) *Gate {
	if recorder == nil {
		recorder = nopRecorder{}
	}
	return &Gate{recorder: recorder}
}

// Authorize checks the actor's capabilities for action
func (g *Gate) Authorize(req *Request, action Action) error {
	actor := req.Actor
	switch action {
	case ActionEditAttachments:
		if actor.IsSuperuser {
			return nil
		}
		return g.deny(req, action, ReasonAttachments)
	case ActionEditCheckouts:
		if actor.IsSuperuser || actor.IsPilot {
			return nil
		}
		return g.deny(req, action, ReasonCheckouts)
	}
	return g.deny(req, action, reasonUnknownAction)
}

// AuthorizeCheckoutOwner checks that a non-superuser only edits their own checkouts
func (g *Gate) AuthorizeCheckoutOwner(req *Request, pilot *models.Pilot) error {
	if req.Actor.IsSuperuser || pilot.ID == req.Actor.ID {
		return nil
	}
	return g.deny(req, ActionEditCheckouts, ReasonOwnCheckouts, "target_pilot", pilot.Username)
}

func (g *Gate) deny(req *Request, action Action, reason string, args ...any) error {
	g.recorder.Forbidden(action)
	req.Logger.Warn("Forbidden", append([]any{"action", string(action), "reason", reason}, args...)...)
	return &AuthorizationError{Actor: req.Actor.Username, Action: action, Reason: reason}
}
