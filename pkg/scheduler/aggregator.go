package scheduler

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/podscope/podscope/pkg/domain"
	"github.com/podscope/podscope/pkg/fetcher"
)

// digestDateFormat is the human-readable date used in digest titles
const digestDateFormat = "Jan 2, 2006"

// digestSeparator visibly splits the original bodies inside a digest
const digestSeparator = "\n\n----\n\n"

// mirrorHostPatterns marks hosts that proxy social-media timelines; sources
// on these hosts aggregate by default even when typed as plain feeds
var mirrorHostPatterns = []string{"nitter", "birdsite"}

// Aggregator collapses a multi-item poll batch into a single digest item for
// sources that aggregate. High-volume timeline sources produce many short
// posts per poll; a digest keeps downstream processing per-poll, not per-post.
type Aggregator struct{}

// NewAggregator creates an aggregator
func NewAggregator() *Aggregator {
	return &Aggregator{}
}

// Aggregate returns the batch unchanged unless the source aggregates and the
// batch has more than one item, in which case the whole batch collapses into
// one synthetic digest.
func (a *Aggregator) Aggregate(items []domain.Item, src *domain.Source) []domain.Item {
	if len(items) <= 1 {
		return items
	}
	if !a.shouldAggregate(src) {
		return items
	}
	return []domain.Item{a.digest(items, src)}
}

// shouldAggregate decides whether a source aggregates: an explicit
// per-source override wins; otherwise timelines and known mirror hosts do.
func (a *Aggregator) shouldAggregate(src *domain.Source) bool {
	if src.Aggregate != nil {
		return *src.Aggregate
	}
	if src.Type == domain.SourceTypeTimeline {
		return true
	}
	return isMirrorHost(hostOf(src.URL))
}

// digest builds the synthetic item replacing the batch
func (a *Aggregator) digest(items []domain.Item, src *domain.Source) domain.Item {
	author := firstAuthor(items)
	latest := latestPublished(items)

	who := author
	if who == "" {
		who = hostOf(src.URL)
	}
	when := "Unknown date"
	if latest != nil {
		when = latest.Format(digestDateFormat)
	}

	parts := make([]string, 0, len(items))
	for _, item := range items {
		if item.Published != nil {
			parts = append(parts, fmt.Sprintf("[%s] %s", item.Published.Format(digestDateFormat), item.Body))
			continue
		}
		parts = append(parts, item.Body)
	}
	body := strings.Join(parts, digestSeparator)

	return domain.Item{
		SourceID:    src.ID,
		Title:       fmt.Sprintf("Posts from %s — %s", who, when),
		Body:        body,
		URL:         src.URL,
		Author:      author,
		Published:   latest,
		Fingerprint: fetcher.Fingerprint(body),
	}
}

// firstAuthor returns the first non-empty author in original order
func firstAuthor(items []domain.Item) string {
	for _, item := range items {
		if item.Author != "" {
			return item.Author
		}
	}
	return ""
}

// latestPublished returns the maximum published time across items
func latestPublished(items []domain.Item) *time.Time {
	var latest *time.Time
	for _, item := range items {
		if item.Published == nil {
			continue
		}
		if latest == nil || item.Published.After(*latest) {
			t := *item.Published
			latest = &t
		}
	}
	return latest
}

// hostOf extracts the host from a URL, empty when unparsable
func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return u.Hostname()
}

// isMirrorHost reports whether the host matches a known mirror pattern
func isMirrorHost(host string) bool {
	for _, pattern := range mirrorHostPatterns {
		if strings.Contains(host, pattern) {
			return true
		}
	}
	return false
}
