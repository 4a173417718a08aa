package submission

import (
	"time"

	"github.com/examstack/examstack/internal/exam"
)

// ResolveRelease decides the initial results_released value for a submission
// finalized at now, from the exam's release policy.
func ResolveRelease(policy exam.ReleasePolicy, scheduledAt int64, now time.Time) bool {
	switch policy {
	case exam.ReleaseInstant:
		return true
	case exam.ReleaseScheduled:
		return scheduledAt > 0 && scheduledAt <= now.Unix()
	default:
		// DELAYED, and anything unrecognized, stays hidden until an admin
		// releases it explicitly.
		return false
	}
}
