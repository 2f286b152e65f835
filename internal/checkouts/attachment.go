package checkouts

import (
	"fmt"
	"strings"

	"cotracker/internal/models"
)

// AttachmentDiff is the change needed to move a base from its current set of
// attached airstrips to a proposed one
type AttachmentDiff struct {
	ToAdd    []models.Airstrip
	ToRemove []models.Airstrip
	// Rejected is set when the proposal tried to attach the base to itself
	Rejected *models.Airstrip
}

// Empty reports whether the diff changes nothing
func (d AttachmentDiff) Empty() bool {
	return len(d.ToAdd) == 0 && len(d.ToRemove) == 0
}

// Diff computes proposed - current and current - proposed, keyed by airstrip ID.
// ToAdd keeps the order of proposed and ToRemove the order of current.
// The base itself is never added; proposing it sets Rejected instead.
func Diff(current, proposed []models.Airstrip, base models.Airstrip) AttachmentDiff {
	inCurrent := make(map[int64]bool, len(current))
	for _, a := range current {
		inCurrent[a.ID] = true
	}
	inProposed := make(map[int64]bool, len(proposed))
	for _, a := range proposed {
		inProposed[a.ID] = true
	}

	var diff AttachmentDiff
	seen := make(map[int64]bool, len(proposed))
	for _, a := range proposed {
		if inCurrent[a.ID] || seen[a.ID] {
			continue
		}
		seen[a.ID] = true
		if a.ID == base.ID {
			rejected := a
			diff.Rejected = &rejected
			continue
		}
		diff.ToAdd = append(diff.ToAdd, a)
	}

	seen = make(map[int64]bool, len(current))
	for _, a := range current {
		if inProposed[a.ID] || seen[a.ID] {
			continue
		}
		seen[a.ID] = true
		diff.ToRemove = append(diff.ToRemove, a)
	}

	return diff
}

// AttachmentStore persists the airstrip to base relation. Both calls are idempotent.
type AttachmentStore interface {
	Attach(airstripID, baseID int64) error
	Detach(airstripID, baseID int64) error
}

// AttachmentOutcome reports what an applied diff changed
type AttachmentOutcome struct {
	Added    []models.Airstrip `json:"added"`
	Removed  []models.Airstrip `json:"removed"`
	Rejected *models.Airstrip  `json:"rejected,omitempty"`
	NoOp     bool              `json:"no_op"`
}

// AttachmentReconciler applies attachment diffs and reports them to the user
type AttachmentReconciler struct {
	store    AttachmentStore
	recorder Recorder
}

func NewAttachmentReconciler(store AttachmentStore, recorder Recorder) *AttachmentReconciler {
	if recorder == nil {
		recorder = nopRecorder{}
	}
	return &AttachmentReconciler{store: store, recorder: recorder}
}

// Apply attaches and detaches airstrips per diff. There is no rollback: if a
// call fails mid-batch the earlier items of that batch stay applied and are
// reported in the returned outcome alongside the error.
func (r *AttachmentReconciler) Apply(req *Request, base models.Airstrip, diff AttachmentDiff) (AttachmentOutcome, error) {
	outcome := AttachmentOutcome{Rejected: diff.Rejected}

	if diff.Rejected != nil {
		req.Messages.Error(fmt.Sprintf("Unable to set attachment for '%s' to itself", base.Name))
	}

	if diff.Empty() {
		outcome.NoOp = true
		req.Messages.Success("Nothing updated; No changes necessary.")
		return outcome, nil
	}

	if len(diff.ToAdd) > 0 {
		for _, airstrip := range diff.ToAdd {
			if err := r.store.Attach(airstrip.ID, base.ID); err != nil {
				r.reportBatch(req, base, "attach", outcome.Added)
				return outcome, fmt.Errorf("failed to attach %s to %s: %w", airstrip.Ident, base.Ident, err)
			}
			outcome.Added = append(outcome.Added, airstrip)
		}
		r.reportBatch(req, base, "attach", outcome.Added)
	}

	if len(diff.ToRemove) > 0 {
		for _, airstrip := range diff.ToRemove {
			if err := r.store.Detach(airstrip.ID, base.ID); err != nil {
				r.reportBatch(req, base, "detach", outcome.Removed)
				return outcome, fmt.Errorf("failed to detach %s from %s: %w", airstrip.Ident, base.Ident, err)
			}
			outcome.Removed = append(outcome.Removed, airstrip)
		}
		r.reportBatch(req, base, "detach", outcome.Removed)
	}

	return outcome, nil
}

// reportBatch emits one message and one audit line for a batch
func (r *AttachmentReconciler) reportBatch(req *Request, base models.Airstrip, action string, airstrips []models.Airstrip) {
	if len(airstrips) == 0 {
		return
	}
	updates := strings.Join(models.AirstripNames(airstrips), ", ")
	r.recorder.AttachmentsChanged(action, len(airstrips))

	if action == "attach" {
		req.audit("Attaching airstrips to base", "base", base.Ident, "airstrips", updates)
		req.Messages.Success("Attached: " + updates)
		return
	}
	req.audit("Detaching airstrips from base", "base", base.Ident, "airstrips", updates)
	req.Messages.Success("Unattached: " + updates)
}
