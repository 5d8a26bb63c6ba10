package scheduler

import (
	"time"

	"github.com/podscope/podscope/pkg/domain"
)

// DelayConfig resolves how long to wait before issuing a source's outbound
// request. It exists so operators can throttle specific noisy hosts without
// touching the scheduling cadence. Precedence: per-source explicit override,
// then per-host, then per-type, then zero.
type DelayConfig struct {
	Hosts map[string]time.Duration
	Types map[domain.SourceType]time.Duration
}

// Resolve returns the pre-request delay for a source
func (d DelayConfig) Resolve(src *domain.Source) time.Duration {
	if src.FetchDelay != nil {
		return *src.FetchDelay
	}
	if host := hostOf(src.URL); host != "" {
		if delay, ok := d.Hosts[host]; ok {
			return delay
		}
	}
	if delay, ok := d.Types[src.Type]; ok {
		return delay
	}
	return 0
}
