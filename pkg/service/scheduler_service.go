package service

import (
	"context"
	"time"

	"github.com/podscope/podscope/pkg/domain"
	"github.com/podscope/podscope/pkg/repository"
)

// SchedulerService provides unified access to repositories for the scheduler
// and the generation pipeline
type SchedulerService struct {
	sourceRepo  *repository.SourceRepository
	itemRepo    *repository.ItemRepository
	podcastRepo *repository.PodcastRepository
	episodeRepo *repository.EpisodeRepository
}

// NewSchedulerService creates a new scheduler service
func NewSchedulerService(repos *repository.Repositories) *SchedulerService {
	return &SchedulerService{
		sourceRepo:  repos.Source,
		itemRepo:    repos.Item,
		podcastRepo: repos.Podcast,
		episodeRepo: repos.Episode,
	}
}

// Source management methods

func (s *SchedulerService) GetSource(ctx context.Context, id int64) (*domain.Source, error) {
	return s.sourceRepo.GetSource(ctx, id)
}

func (s *SchedulerService) GetSources(ctx context.Context, enabledOnly bool) ([]*domain.Source, error) {
	return s.sourceRepo.GetSources(ctx, enabledOnly)
}

func (s *SchedulerService) UpdateSourceStatus(ctx context.Context, src *domain.Source) error {
	return s.sourceRepo.UpdateSourceStatus(ctx, src)
}

// Item methods

func (s *SchedulerService) CreateItem(ctx context.Context, item *domain.Item) error {
	return s.itemRepo.CreateItem(ctx, item)
}

func (s *SchedulerService) ItemExists(ctx context.Context, sourceID int64, fingerprint string) (bool, error) {
	return s.itemRepo.ItemExists(ctx, sourceID, fingerprint)
}

func (s *SchedulerService) GetItemsSince(ctx context.Context, since time.Time, limit int) ([]*domain.Item, error) {
	return s.itemRepo.GetItemsSince(ctx, since, limit)
}

// Podcast and episode methods

func (s *SchedulerService) GetPodcasts(ctx context.Context) ([]*domain.Podcast, error) {
	return s.podcastRepo.GetPodcasts(ctx)
}

func (s *SchedulerService) UpdatePodcastGenerated(ctx context.Context, id int64, generatedAt time.Time) error {
	return s.podcastRepo.UpdatePodcastGenerated(ctx, id, generatedAt)
}

func (s *SchedulerService) CreateEpisode(ctx context.Context, episode *domain.Episode) error {
	return s.episodeRepo.CreateEpisode(ctx, episode)
}
