package domain

import "time"

// SourceType identifies which fetcher handles a source
type SourceType string

// known source types
const (
	SourceTypeFeed     SourceType = "feed"
	SourceTypePage     SourceType = "page"
	SourceTypeTimeline SourceType = "timeline"
)

// FailureKind classifies the most recent fetch failure of a source
type FailureKind string

// failure kinds recorded on a source
const (
	FailureNone      FailureKind = ""
	FailureTransient FailureKind = "transient"
	FailurePermanent FailureKind = "permanent"
)

// Source represents a polled content origin. Health fields (LastPolled,
// LastSeenCursor, ConsecutiveFailures, LastFailureKind, DisabledReason)
// are mutated by the poll scheduler only; everything else is configuration.
type Source struct {
	ID              int64
	Type            SourceType
	URL             string
	Title           string
	PollInterval    int // minutes
	Enabled         bool
	Aggregate       *bool          // nil means "decide by type/host"
	MaxFailures     *int           // nil means process-wide default
	MaxBackoffHours *int           // nil means process-wide default
	FetchDelay      *time.Duration // nil means resolve from host/type config

	LastPolled          *time.Time
	LastSeenCursor      string // opaque, fetcher-specific encoding
	ConsecutiveFailures int
	LastFailureKind     FailureKind
	DisabledReason      string
	CreatedAt           time.Time
}
