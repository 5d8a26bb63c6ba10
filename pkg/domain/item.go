package domain

import "time"

// Item represents one fetched unit of content. Items are immutable after
// creation; the fingerprint deduplicates within a source.
type Item struct {
	ID          int64
	SourceID    int64
	Title       string
	Body        string
	URL         string
	Author      string
	Published   *time.Time
	Fingerprint string
	CreatedAt   time.Time
}
