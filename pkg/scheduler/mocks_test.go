package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/podscope/podscope/pkg/domain"
	"github.com/podscope/podscope/pkg/fetcher"
)

var errNotFound = errors.New("source not found")

// hand-rolled fakes for the scheduler's collaborator interfaces; each records
// calls and delegates to an optional func field

type sourcesFake struct {
	mu        sync.Mutex
	sources   []*domain.Source
	getErr    error
	updateErr error
	statusLog []domain.Source // value copies taken at UpdateSourceStatus time
}

func (f *sourcesFake) GetSource(_ context.Context, id int64) (*domain.Source, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	for _, src := range f.sources {
		if src.ID == id {
			return src, nil
		}
	}
	return nil, errNotFound
}

func (f *sourcesFake) GetSources(_ context.Context, enabledOnly bool) ([]*domain.Source, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	if !enabledOnly {
		return f.sources, nil
	}
	res := make([]*domain.Source, 0, len(f.sources))
	for _, src := range f.sources {
		if src.Enabled {
			res = append(res, src)
		}
	}
	return res, nil
}

func (f *sourcesFake) UpdateSourceStatus(_ context.Context, src *domain.Source) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statusLog = append(f.statusLog, *src)
	return f.updateErr
}

func (f *sourcesFake) lastStatus() domain.Source {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.statusLog[len(f.statusLog)-1]
}

type itemsFake struct {
	mu        sync.Mutex
	existing  map[string]bool // fingerprint -> exists
	createErr error
	existsErr error
	created   []domain.Item
}

func (f *itemsFake) CreateItem(_ context.Context, item *domain.Item) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	f.created = append(f.created, *item)
	return nil
}

func (f *itemsFake) ItemExists(_ context.Context, _ int64, fingerprint string) (bool, error) {
	if f.existsErr != nil {
		return false, f.existsErr
	}
	return f.existing[fingerprint], nil
}

type podcastsFake struct {
	podcasts  []*domain.Podcast
	getErr    error
	updateErr error
	generated []time.Time
}

func (f *podcastsFake) GetPodcasts(_ context.Context) ([]*domain.Podcast, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	return f.podcasts, nil
}

func (f *podcastsFake) UpdatePodcastGenerated(_ context.Context, _ int64, generatedAt time.Time) error {
	if f.updateErr != nil {
		return f.updateErr
	}
	f.generated = append(f.generated, generatedAt)
	return nil
}

type episodesFake struct {
	createErr error
	episodes  []domain.Episode
}

func (f *episodesFake) CreateEpisode(_ context.Context, episode *domain.Episode) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.episodes = append(f.episodes, *episode)
	return nil
}

type fetcherFake struct {
	items  []domain.Item
	cursor string
	err    error
	calls  int
}

func (f *fetcherFake) Fetch(_ context.Context, _ *domain.Source) ([]domain.Item, string, error) {
	f.calls++
	if f.err != nil {
		return nil, "", f.err
	}
	return f.items, f.cursor, nil
}

type fetchersFake struct {
	byType map[domain.SourceType]fetcher.Fetcher
	err    error
}

func (f *fetchersFake) For(t domain.SourceType) (fetcher.Fetcher, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.byType[t], nil
}

type pipelineFake struct {
	episode *domain.Episode
	err     error
	calls   []domain.Podcast
}

func (f *pipelineFake) Generate(_ context.Context, podcast *domain.Podcast) (*domain.Episode, error) {
	f.calls = append(f.calls, *podcast)
	if f.err != nil {
		return nil, f.err
	}
	return f.episode, nil
}
