package storage

import (
	"context"
	"time"

	"github.com/nerrad567/plaf203-core/internal/session"
)

const recordTimeout = 5 * time.Second

// Logger is the logging interface used by the recorder.
type Logger interface {
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Warn(string, ...any) {}

// FeedRecorder writes feed start and end events to the feed log.
type FeedRecorder struct {
	store  *Store
	logger Logger
}

// NewFeedRecorder creates a recorder writing to store. logger may be nil.
func NewFeedRecorder(store *Store, logger Logger) *FeedRecorder {
	if logger == nil {
		logger = noopLogger{}
	}
	return &FeedRecorder{store: store, logger: logger}
}

// HandleEvent implements session.Listener. Other event kinds are ignored.
func (r *FeedRecorder) HandleEvent(ev session.Event) {
	var entry FeedLogEntry
	switch p := ev.Payload.(type) {
	case session.FeedStarted:
		entry = FeedLogEntry{
			Phase:      PhaseStart,
			OutputType: p.Type.String(),
			PlanID:     p.PlanID,
			Expected:   p.Expected,
		}
	case session.FeedEnded:
		actual := p.Actual
		entry = FeedLogEntry{
			Phase:      PhaseEnd,
			OutputType: p.Type.String(),
			PlanID:     p.PlanID,
			Expected:   p.Expected,
			Actual:     &actual,
			Mismatch:   p.Actual != p.Expected,
		}
	default:
		return
	}
	entry.RecordedAt = ev.Time

	ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
	defer cancel()
	if err := r.store.RecordFeed(ctx, &entry); err != nil {
		r.logger.Warn("recording feed failed", "serial", ev.Serial, "phase", entry.Phase, "error", err)
	}
}
