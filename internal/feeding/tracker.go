package feeding

import "github.com/nerrad567/plaf203-core/internal/protocol"

// Progress is the dispenser state derived from GRAIN_OUTPUT_EVENTs.
type Progress string

const (
	ProgressIdle    Progress = "IDLE"
	ProgressRunning Progress = "RUNNING"
	ProgressBlocked Progress = "BLOCKED"

	// ProgressError is part of the reported vocabulary. The tracker itself
	// never enters it: a quantity mismatch is reported through
	// Observation.Mismatch and the feed still ends IDLE.
	ProgressError Progress = "ERROR"
)

// Started describes a feed that has begun.
type Started struct {
	Type     protocol.GrainOutputType
	Expected int
	PlanID   *int
}

// Ended describes a finished feed.
type Ended struct {
	Type     protocol.GrainOutputType
	Actual   int
	Expected int
	PlanID   *int
}

// Observation is the outcome of one grain output event.
type Observation struct {
	// Changes lists every progress value the event moved through, in order.
	Changes []Progress

	Started *Started
	Ended   *Ended

	// Overlapped is set when a start arrives while a feed is still running.
	Overlapped bool

	// Mismatch is set when a feed ends with actual != expected.
	Mismatch *MismatchError

	// Invalid is set for events with an unrecognised exec step.
	Invalid bool
}

// Tracker follows feeds through their start, blocking and end steps.
// It is not safe for concurrent use.
type Tracker struct {
	progress Progress
}

// NewTracker creates an idle tracker.
func NewTracker() *Tracker {
	return &Tracker{progress: ProgressIdle}
}

// Progress returns the current state.
func (t *Tracker) Progress() Progress { return t.progress }

// Observe folds one event into the tracker.
func (t *Tracker) Observe(ev *protocol.GrainOutputEventIn) Observation {
	var obs Observation

	switch ev.ExecStep {
	case protocol.ExecStepGrainStart:
		obs.Overlapped = t.progress == ProgressRunning || t.progress == ProgressBlocked
		obs.Started = &Started{Type: ev.Type, Expected: ev.ExpectGrainNum, PlanID: ev.PlanID}
		t.move(&obs, ProgressRunning)

	case protocol.ExecStepGrainBlocking:
		t.move(&obs, ProgressBlocked)

	case protocol.ExecStepGrainEnd:
		obs.Ended = &Ended{
			Type:     ev.Type,
			Actual:   ev.ActualGrainNum,
			Expected: ev.ExpectGrainNum,
			PlanID:   ev.PlanID,
		}
		if ev.ActualGrainNum != ev.ExpectGrainNum {
			obs.Mismatch = &MismatchError{Actual: ev.ActualGrainNum, Expected: ev.ExpectGrainNum}
		}
		t.move(&obs, ProgressIdle)

	default:
		obs.Invalid = true
	}
	return obs
}

func (t *Tracker) move(obs *Observation, p Progress) {
	t.progress = p
	obs.Changes = append(obs.Changes, p)
}
