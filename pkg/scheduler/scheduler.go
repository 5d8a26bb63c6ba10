package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-pkgz/lgr"
	"golang.org/x/sync/errgroup"

	"github.com/podscope/podscope/pkg/domain"
	"github.com/podscope/podscope/pkg/fetcher"
	"github.com/podscope/podscope/pkg/health"
)

// Scheduler drives the two periodic loops of the system: source polling and
// podcast generation. Each loop runs on its own fixed-delay tick; work for a
// tick runs to completion before the next tick of the same loop, so a loop
// never overlaps with itself. The two loops may interleave with each other.
type Scheduler struct {
	sources  SourceManager
	items    ItemManager
	podcasts PodcastManager
	episodes EpisodeManager
	fetchers Fetchers
	pipeline Pipeline

	tracker         *health.Tracker
	aggregator      *Aggregator
	delays          DelayConfig
	pollTick        time.Duration
	generationTick  time.Duration
	stalenessWindow time.Duration

	// injected time for tests
	now   func() time.Time
	sleep func(time.Duration)

	wg     sync.WaitGroup
	cancel context.CancelFunc
}

// SourceManager provides source persistence for the poll loop
type SourceManager interface {
	GetSource(ctx context.Context, id int64) (*domain.Source, error)
	GetSources(ctx context.Context, enabledOnly bool) ([]*domain.Source, error)
	UpdateSourceStatus(ctx context.Context, src *domain.Source) error
}

// ItemManager provides item persistence and fingerprint lookups
type ItemManager interface {
	CreateItem(ctx context.Context, item *domain.Item) error
	ItemExists(ctx context.Context, sourceID int64, fingerprint string) (bool, error)
}

// PodcastManager provides podcast schedule persistence for the generation loop
type PodcastManager interface {
	GetPodcasts(ctx context.Context) ([]*domain.Podcast, error)
	UpdatePodcastGenerated(ctx context.Context, id int64, generatedAt time.Time) error
}

// EpisodeManager stores generation artifacts
type EpisodeManager interface {
	CreateEpisode(ctx context.Context, episode *domain.Episode) error
}

// Fetchers dispatches a source type to its content fetcher
type Fetchers interface {
	For(t domain.SourceType) (fetcher.Fetcher, error)
}

// Pipeline is the external generation stage. A nil episode with a nil error
// means there was nothing to generate; it is not a failure.
type Pipeline interface {
	Generate(ctx context.Context, podcast *domain.Podcast) (*domain.Episode, error)
}

// Params holds scheduler configuration and dependencies
type Params struct {
	Sources  SourceManager
	Items    ItemManager
	Podcasts PodcastManager
	Episodes EpisodeManager
	Fetchers Fetchers
	Pipeline Pipeline

	PollTick        time.Duration
	GenerationTick  time.Duration
	StalenessWindow time.Duration
	MaxFailures     int
	MaxBackoffHours int
	Delays          DelayConfig

	Now   func() time.Time    // defaults to time.Now
	Sleep func(time.Duration) // defaults to time.Sleep
}

// NewScheduler creates a scheduler, filling in defaults for zero values
func NewScheduler(p Params) *Scheduler {
	if p.PollTick == 0 {
		p.PollTick = time.Minute
	}
	if p.GenerationTick == 0 {
		p.GenerationTick = time.Minute
	}
	if p.StalenessWindow == 0 {
		p.StalenessWindow = 30 * time.Minute
	}
	if p.MaxFailures == 0 {
		p.MaxFailures = 5
	}
	if p.MaxBackoffHours == 0 {
		p.MaxBackoffHours = 24
	}
	if p.Now == nil {
		p.Now = time.Now
	}
	if p.Sleep == nil {
		p.Sleep = time.Sleep
	}

	return &Scheduler{
		sources:         p.Sources,
		items:           p.Items,
		podcasts:        p.Podcasts,
		episodes:        p.Episodes,
		fetchers:        p.Fetchers,
		pipeline:        p.Pipeline,
		tracker:         health.NewTracker(p.MaxFailures, p.MaxBackoffHours),
		aggregator:      NewAggregator(),
		delays:          p.Delays,
		pollTick:        p.PollTick,
		generationTick:  p.GenerationTick,
		stalenessWindow: p.StalenessWindow,
		now:             p.Now,
		sleep:           p.Sleep,
	}
}

// Start begins both loops. They stop when the context is canceled or Stop
// is called.
func (s *Scheduler) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		g, ctx := errgroup.WithContext(ctx)
		g.Go(func() error { s.pollWorker(ctx); return nil })
		g.Go(func() error { s.generationWorker(ctx); return nil })
		_ = g.Wait()
	}()

	lgr.Printf("[INFO] scheduler started, poll tick %v, generation tick %v, staleness window %v",
		s.pollTick, s.generationTick, s.stalenessWindow)
}

// Stop gracefully stops the scheduler
func (s *Scheduler) Stop() {
	lgr.Printf("[INFO] stopping scheduler...")
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
	lgr.Printf("[INFO] scheduler stopped")
}

// pollWorker ticks the poll loop
func (s *Scheduler) pollWorker(ctx context.Context) {
	ticker := time.NewTicker(s.pollTick)
	defer ticker.Stop()

	// run immediately on start
	s.PollDueSources(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.PollDueSources(ctx)
		}
	}
}

// generationWorker ticks the generation loop
func (s *Scheduler) generationWorker(ctx context.Context) {
	ticker := time.NewTicker(s.generationTick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.GenerateDue(ctx)
		}
	}
}

// PollSourceNow triggers an immediate poll of a specific source regardless
// of its schedule
func (s *Scheduler) PollSourceNow(ctx context.Context, sourceID int64) error {
	src, err := s.sources.GetSource(ctx, sourceID)
	if err != nil {
		return fmt.Errorf("get source %d: %w", sourceID, err)
	}

	s.pollSource(ctx, src)
	return nil
}
