package health

import (
	"fmt"
	"time"

	"github.com/podscope/podscope/pkg/domain"
)

// Tracker owns the failure-count/backoff/auto-disable state machine of a
// source. It mutates health fields in place; persisting the change is the
// caller's job.
type Tracker struct {
	MaxFailures     int // default consecutive permanent failures before auto-disable
	MaxBackoffHours int // default cap on the backed-off poll interval
}

// NewTracker creates a tracker with process-wide defaults
func NewTracker(maxFailures, maxBackoffHours int) *Tracker {
	return &Tracker{MaxFailures: maxFailures, MaxBackoffHours: maxBackoffHours}
}

// RecordSuccess resets the failure state. Enabled and DisabledReason are
// left untouched: re-enabling a disabled source is an explicit
// administrative action, never automatic.
func (t *Tracker) RecordSuccess(src *domain.Source) {
	src.ConsecutiveFailures = 0
	src.LastFailureKind = domain.FailureNone
}

// RecordFailure increments the failure count and auto-disables the source
// when the failure itself is permanent and the count reaches the threshold.
// A transient failure never disables, no matter how high the count already
// is; only a permanently-classified failure can flip the switch.
func (t *Tracker) RecordFailure(src *domain.Source, cls Classification) {
	src.ConsecutiveFailures++
	src.LastFailureKind = cls.Kind

	if src.Enabled && cls.Kind == domain.FailurePermanent && src.ConsecutiveFailures >= t.effectiveMaxFailures(src) {
		src.Enabled = false
		src.DisabledReason = fmt.Sprintf("Auto-disabled after %d consecutive %s errors", src.ConsecutiveFailures, cls.Reason)
	}
}

// EffectivePollInterval returns the health-adjusted poll interval:
// the configured interval doubled per consecutive failure, capped at the
// source's max backoff.
func (t *Tracker) EffectivePollInterval(src *domain.Source) time.Duration {
	capMinutes := int64(t.effectiveMaxBackoffHours(src)) * 60

	minutes := int64(src.PollInterval)
	for i := 0; i < src.ConsecutiveFailures; i++ {
		minutes *= 2
		if minutes >= capMinutes {
			minutes = capMinutes
			break
		}
	}
	if minutes > capMinutes {
		minutes = capMinutes
	}
	return time.Duration(minutes) * time.Minute
}

func (t *Tracker) effectiveMaxFailures(src *domain.Source) int {
	if src.MaxFailures != nil {
		return *src.MaxFailures
	}
	return t.MaxFailures
}

func (t *Tracker) effectiveMaxBackoffHours(src *domain.Source) int {
	if src.MaxBackoffHours != nil {
		return *src.MaxBackoffHours
	}
	return t.MaxBackoffHours
}
