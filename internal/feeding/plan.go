package feeding

import (
	"fmt"

	"github.com/nerrad567/plaf203-core/internal/protocol"
)

// Plan is one scheduled feed.
type Plan struct {
	ID          int                 `json:"id"`
	Time        protocol.TimeOfDay  `json:"time"`
	Days        protocol.WeekdaySet `json:"days"`
	EnableAudio bool                `json:"enable_audio"`
	AudioTimes  int                 `json:"audio_times"`
	GrainNum    int                 `json:"grain_num"`
}

// Validate checks the plan's fields.
func (p Plan) Validate() error {
	switch {
	case p.ID < 1:
		return fmt.Errorf("%w: id %d must be at least 1", ErrInvalidPlan, p.ID)
	case !p.Time.Valid():
		return fmt.Errorf("%w: time %s is not a clock time", ErrInvalidPlan, p.Time)
	case p.GrainNum < 1:
		return fmt.Errorf("%w: grain_num %d must be at least 1", ErrInvalidPlan, p.GrainNum)
	case p.AudioTimes < 0:
		return fmt.Errorf("%w: audio_times %d must not be negative", ErrInvalidPlan, p.AudioTimes)
	}
	return nil
}

// PlanSet is an ordered set of plans keyed by ID. The zero value is empty.
type PlanSet struct {
	plans []Plan
}

// NewPlanSet builds a set from plans; later duplicates replace earlier ones.
func NewPlanSet(plans ...Plan) PlanSet {
	var s PlanSet
	for _, p := range plans {
		s.Set(p)
	}
	return s
}

// Set replaces the plan with the same ID in place, or appends it. It
// reports whether the set changed.
func (s *PlanSet) Set(p Plan) bool {
	for i := range s.plans {
		if s.plans[i].ID == p.ID {
			if s.plans[i] == p {
				return false
			}
			s.plans[i] = p
			return true
		}
	}
	s.plans = append(s.plans, p)
	return true
}

// Remove deletes the plan with id.
func (s *PlanSet) Remove(id int) error {
	for i := range s.plans {
		if s.plans[i].ID == id {
			s.plans = append(s.plans[:i:i], s.plans[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("%w: %d", ErrPlanNotFound, id)
}

// Get returns the plan with id.
func (s PlanSet) Get(id int) (Plan, bool) {
	for _, p := range s.plans {
		if p.ID == id {
			return p, true
		}
	}
	return Plan{}, false
}

// Plans returns a copy of the plans in order.
func (s PlanSet) Plans() []Plan {
	out := make([]Plan, len(s.plans))
	copy(out, s.plans)
	return out
}

// Len returns the number of plans.
func (s PlanSet) Len() int { return len(s.plans) }

// Equal reports whether both sets hold the same plans in the same order.
func (s PlanSet) Equal(other PlanSet) bool {
	if len(s.plans) != len(other.plans) {
		return false
	}
	for i := range s.plans {
		if s.plans[i] != other.plans[i] {
			return false
		}
	}
	return true
}

// Validate checks every plan.
func (s PlanSet) Validate() error {
	for _, p := range s.plans {
		if err := p.Validate(); err != nil {
			return err
		}
	}
	return nil
}
