package fetcher

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/podscope/podscope/pkg/domain"
)

// TimelineFetcher polls social-media timelines exposed as RSS by
// Nitter-style mirrors. The cursor is a compound "remoteUser:lastItemID"
// string; status IDs are numeric and monotonically increasing, so items at
// or below the last seen ID are dropped.
type TimelineFetcher struct {
	feed *FeedFetcher
}

// NewTimelineFetcher creates a timeline fetcher with the given timeout
func NewTimelineFetcher(timeout time.Duration, userAgent string) *TimelineFetcher {
	return &TimelineFetcher{feed: NewFeedFetcher(timeout, userAgent)}
}

// Fetch retrieves the timeline feed and returns items newer than the cursor
func (f *TimelineFetcher) Fetch(ctx context.Context, src *domain.Source) ([]domain.Item, string, error) {
	body, err := f.feed.get(ctx, src.URL)
	if err != nil {
		return nil, "", err
	}
	defer body.Close()

	parsed, err := gofeed.NewParser().Parse(body)
	if err != nil {
		return nil, "", fmt.Errorf("parse timeline %s: %w", src.URL, err)
	}

	user := remoteUser(src.URL)
	_, lastID := parseTimelineCursor(src.LastSeenCursor)

	items := make([]domain.Item, 0, len(parsed.Items))
	maxID := lastID
	for _, fi := range parsed.Items {
		id := statusID(fi)
		if id != 0 && lastID != 0 && id <= lastID {
			continue
		}

		item := domain.Item{
			SourceID:  src.ID,
			Title:     fi.Title,
			Body:      sanitize(itemBody(fi)),
			URL:       fi.Link,
			Published: itemPublished(fi),
		}
		if fi.Author != nil {
			item.Author = fi.Author.Name
		}
		items = append(items, item)

		if id > maxID {
			maxID = id
		}
	}

	nextCursor := ""
	if maxID != 0 {
		nextCursor = formatTimelineCursor(user, maxID)
	}
	return items, nextCursor, nil
}

// remoteUser extracts the timeline owner from a mirror URL like
// https://nitter.net/someuser/rss
func remoteUser(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(parts) == 0 {
		return ""
	}
	return parts[0]
}

// statusID extracts the numeric status ID from an item GUID or link,
// e.g. https://nitter.net/user/status/1234567890#m
func statusID(fi *gofeed.Item) uint64 {
	ref := fi.GUID
	if ref == "" {
		ref = fi.Link
	}
	ref = strings.TrimSuffix(ref, "#m")

	idx := strings.LastIndex(ref, "/")
	if idx < 0 || idx == len(ref)-1 {
		return 0
	}
	id, err := strconv.ParseUint(ref[idx+1:], 10, 64)
	if err != nil {
		return 0
	}
	return id
}

// parseTimelineCursor decodes a compound "user:lastID" cursor
func parseTimelineCursor(cursor string) (user string, lastID uint64) {
	if cursor == "" {
		return "", 0
	}
	idx := strings.LastIndex(cursor, ":")
	if idx < 0 {
		return cursor, 0
	}
	id, err := strconv.ParseUint(cursor[idx+1:], 10, 64)
	if err != nil {
		return cursor[:idx], 0
	}
	return cursor[:idx], id
}

// formatTimelineCursor encodes a compound "user:lastID" cursor
func formatTimelineCursor(user string, lastID uint64) string {
	return fmt.Sprintf("%s:%d", user, lastID)
}
