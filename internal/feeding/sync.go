package feeding

import (
	"time"

	"github.com/nerrad567/plaf203-core/internal/protocol"
)

// Synchronizer holds the authoritative plan set and renders it for the device.
type Synchronizer struct {
	plans    PlanSet
	lastSync time.Time
}

// NewSynchronizer creates a synchronizer holding plans.
func NewSynchronizer(plans PlanSet) *Synchronizer {
	return &Synchronizer{plans: plans}
}

// Replace swaps in a new plan set.
func (s *Synchronizer) Replace(plans PlanSet) { s.plans = plans }

// Plans returns the current plan set.
func (s *Synchronizer) Plans() PlanSet { return s.plans }

// LastSync returns the sync time of the last rendered push or reply.
func (s *Synchronizer) LastSync() time.Time { return s.lastSync }

// Push renders a FEEDING_PLAN_SERVICE request carrying every plan.
func (s *Synchronizer) Push(now time.Time) *protocol.FeedingPlanServiceOut {
	return &protocol.FeedingPlanServiceOut{Plans: s.render(now)}
}

// Reply answers a device's GET_FEEDING_PLAN_EVENT.
func (s *Synchronizer) Reply(in *protocol.GetFeedingPlanEventIn, now time.Time) *protocol.GetFeedingPlanEventOut {
	return &protocol.GetFeedingPlanEventOut{
		Header: protocol.ReplyTo(in),
		Code:   protocol.CodeOK,
		Plans:  s.render(now),
	}
}

// Unconfirmed returns the IDs of current plans missing from a device acknowledgement.
func (s *Synchronizer) Unconfirmed(acked []protocol.PlanSync) []int {
	seen := make(map[int]bool, len(acked))
	for _, a := range acked {
		seen[a.PlanID] = true
	}
	var missing []int
	for _, p := range s.plans.plans {
		if !seen[p.ID] {
			missing = append(missing, p.ID)
		}
	}
	return missing
}

func (s *Synchronizer) render(now time.Time) []protocol.FeedingPlan {
	s.lastSync = now
	out := make([]protocol.FeedingPlan, 0, s.plans.Len())
	for _, p := range s.plans.plans {
		out = append(out, protocol.FeedingPlan{
			PlanID:        p.ID,
			ExecutionTime: p.Time,
			RepeatDays:    p.Days,
			EnableAudio:   p.EnableAudio,
			AudioTimes:    p.AudioTimes,
			GrainNum:      p.GrainNum,
			SyncTime:      now,
		})
	}
	return out
}
