package checkouts

import (
	"log/slog"

	"cotracker/internal/models"
)

// MessageSink receives leveled, user facing messages
type MessageSink interface {
	Success(text string)
	Error(text string)
}

// Request carries the per-request collaborators every operation reports through
type Request struct {
	Actor    *models.Pilot
	Logger   *slog.Logger
	Messages MessageSink
}

// NewRequest builds a Request whose logger is tagged with the actor
func NewRequest(actor *models.Pilot, logger *slog.Logger, messages MessageSink) *Request {
	if logger == nil {
		logger = slog.Default()
	}
	return &Request{
		Actor:    actor,
		Logger:   logger.With("actor", actor.Username),
		Messages: messages,
	}
}

// audit writes an audit line for a persisted change
func (r *Request) audit(msg string, args ...any) {
	r.Logger.Info(msg, append([]any{"audit", true}, args...)...)
}

// Recorder observes changes and denials for metrics
type Recorder interface {
	Forbidden(action Action)
	CheckoutsChanged(action string, n int)
	AttachmentsChanged(action string, n int)
}

type nopRecorder struct{}

func (nopRecorder) Forbidden(Action)               {}
func (nopRecorder) CheckoutsChanged(string, int)   {}
func (nopRecorder) AttachmentsChanged(string, int) {}
