package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/go-pkgz/lgr"
	"github.com/robfig/cron/v3"

	"github.com/podscope/podscope/pkg/domain"
)

// GenerateDue runs one tick of the generation loop. For every podcast the
// next cron occurrence is computed and, if it is due and not too stale,
// dispatched to the generation pipeline. Occurrences missed by more than the
// staleness window are discarded, never queued: firing days-old schedules
// back-to-back after downtime would be wasteful and confusing.
func (s *Scheduler) GenerateDue(ctx context.Context) {
	podcasts, err := s.podcasts.GetPodcasts(ctx)
	if err != nil {
		lgr.Printf("[ERROR] failed to get podcasts: %v", err)
		return
	}

	for _, p := range podcasts {
		// a bad cron expression or pipeline error for one podcast must not
		// block the rest of the tick
		if err := s.checkPodcast(ctx, p); err != nil {
			lgr.Printf("[WARN] podcast %s: %v", p.Name, err)
		}
	}
}

// checkPodcast evaluates one podcast's schedule and dispatches generation
// when an occurrence is due within the staleness window.
func (s *Scheduler) checkPodcast(ctx context.Context, p *domain.Podcast) error {
	schedule, err := cron.ParseStandard(p.CronExpr)
	if err != nil {
		return fmt.Errorf("parse cron %q: %w", p.CronExpr, err)
	}

	now := s.now()
	candidate := s.firstCandidate(schedule, p, now)

	// discard occurrences that are due but too old to be meaningful
	for !candidate.After(now) && now.Sub(candidate) > s.stalenessWindow {
		lgr.Printf("[INFO] podcast %s: skipping stale occurrence %s (%v late)",
			p.Name, candidate.Format(time.RFC3339), now.Sub(candidate).Round(time.Second))
		candidate = schedule.Next(candidate)
	}

	if candidate.After(now) {
		return nil // not due yet
	}

	lgr.Printf("[INFO] podcast %s: generation due (occurrence %s)", p.Name, candidate.Format(time.RFC3339))

	episode, err := s.pipeline.Generate(ctx, p)
	if err != nil {
		return fmt.Errorf("generate: %w", err)
	}

	// nil episode means nothing to generate; the occurrence is still honored
	if episode != nil {
		if err := s.episodes.CreateEpisode(ctx, episode); err != nil {
			lgr.Printf("[WARN] podcast %s: failed to save episode: %v", p.Name, err)
		}
	}

	p.LastGeneratedAt = &now
	if err := s.podcasts.UpdatePodcastGenerated(ctx, p.ID, now); err != nil {
		return fmt.Errorf("update last generated: %w", err)
	}
	return nil
}

// firstCandidate computes the starting cron occurrence to evaluate: the
// first one after the last generation, or, for a never-run podcast, the
// first one after the start of the current calendar day (so it is judged
// against "should it have fired today").
func (s *Scheduler) firstCandidate(schedule cron.Schedule, p *domain.Podcast, now time.Time) time.Time {
	if p.LastGeneratedAt != nil {
		return schedule.Next(*p.LastGeneratedAt)
	}
	startOfDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	return schedule.Next(startOfDay)
}
