package scheduler

import (
	"context"

	"github.com/go-pkgz/lgr"

	"github.com/podscope/podscope/pkg/domain"
	"github.com/podscope/podscope/pkg/fetcher"
	"github.com/podscope/podscope/pkg/health"
)

// PollDueSources runs one tick of the poll loop: every enabled source whose
// health-adjusted interval has elapsed is polled, sequentially. One source's
// failure never prevents later sources from being attempted.
func (s *Scheduler) PollDueSources(ctx context.Context) {
	sources, err := s.sources.GetSources(ctx, true)
	if err != nil {
		lgr.Printf("[ERROR] failed to get enabled sources: %v", err)
		return
	}

	for _, src := range sources {
		if !s.isDue(src) {
			continue
		}
		s.pollSource(ctx, src)
	}
}

// isDue reports whether the source's effective poll interval has elapsed.
// A never-polled source is always due.
func (s *Scheduler) isDue(src *domain.Source) bool {
	if src.LastPolled == nil {
		return true
	}
	return s.now().Sub(*src.LastPolled) >= s.tracker.EffectivePollInterval(src)
}

// pollSource runs a single poll attempt: fetch, dedup, aggregate, persist,
// and record the outcome in the source's health state. LastPolled advances
// on failure too, so a broken source waits out its backoff instead of
// retrying every tick.
func (s *Scheduler) pollSource(ctx context.Context, src *domain.Source) {
	lgr.Printf("[DEBUG] polling source %s", sourceIdentifier(src))

	if delay := s.delays.Resolve(src); delay > 0 {
		s.sleep(delay)
	}

	f, err := s.fetchers.For(src.Type)
	if err != nil {
		// a wiring problem, not a source health problem
		lgr.Printf("[ERROR] source %s: %v", sourceIdentifier(src), err)
		return
	}

	items, nextCursor, err := f.Fetch(ctx, src)
	now := s.now()
	if err != nil {
		cls := health.Classify(err)
		s.tracker.RecordFailure(src, cls)
		src.LastPolled = &now
		if !src.Enabled {
			lgr.Printf("[WARN] source %s disabled: %s", sourceIdentifier(src), src.DisabledReason)
		} else {
			lgr.Printf("[WARN] source %s fetch failed (%s, %d consecutive): %v",
				sourceIdentifier(src), cls.Kind, src.ConsecutiveFailures, err)
		}
		s.saveSourceStatus(ctx, src)
		return
	}

	newItems := s.dedup(ctx, src, items)
	if digested := s.aggregator.Aggregate(newItems, src); len(digested) != len(newItems) {
		// the digest is a new synthetic item with its own fingerprint; an
		// identical digest from an earlier poll must dedup, not error out
		newItems = s.dedup(ctx, src, digested)
	}

	saved := 0
	for i := range newItems {
		if err := s.items.CreateItem(ctx, &newItems[i]); err != nil {
			lgr.Printf("[WARN] source %s: failed to save item %q: %v", sourceIdentifier(src), newItems[i].Title, err)
			continue
		}
		saved++
	}

	if nextCursor != "" {
		src.LastSeenCursor = nextCursor
	}
	s.tracker.RecordSuccess(src)
	src.LastPolled = &now
	s.saveSourceStatus(ctx, src)

	if saved > 0 {
		lgr.Printf("[INFO] source %s: saved %d new items", sourceIdentifier(src), saved)
	}
}

// dedup computes fingerprints and drops items already recorded for the source
func (s *Scheduler) dedup(ctx context.Context, src *domain.Source, items []domain.Item) []domain.Item {
	fresh := make([]domain.Item, 0, len(items))
	for _, item := range items {
		if item.Fingerprint == "" {
			item.Fingerprint = fetcher.Fingerprint(item.Body)
		}

		exists, err := s.items.ItemExists(ctx, src.ID, item.Fingerprint)
		if err != nil {
			lgr.Printf("[WARN] source %s: fingerprint lookup failed: %v", sourceIdentifier(src), err)
			continue
		}
		if exists {
			continue
		}
		fresh = append(fresh, item)
	}
	return fresh
}

// saveSourceStatus persists the health fields mutated by a poll attempt
func (s *Scheduler) saveSourceStatus(ctx context.Context, src *domain.Source) {
	if err := s.sources.UpdateSourceStatus(ctx, src); err != nil {
		lgr.Printf("[ERROR] failed to update status of source %s: %v", sourceIdentifier(src), err)
	}
}

// sourceIdentifier returns a human-readable identifier for a source
func sourceIdentifier(src *domain.Source) string {
	if src.Title != "" {
		return src.Title
	}
	return src.URL
}
