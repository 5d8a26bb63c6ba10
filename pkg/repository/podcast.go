package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/go-pkgz/repeater/v2"
	"github.com/jmoiron/sqlx"

	"github.com/podscope/podscope/pkg/domain"
)

// PodcastRepository handles podcast-related database operations
type PodcastRepository struct {
	db *sqlx.DB
}

// podcastSQL represents a podcast for SQL operations
type podcastSQL struct {
	ID              int64      `db:"id"`
	Name            string     `db:"name"`
	CronExpr        string     `db:"cron_expr"`
	LastGeneratedAt *time.Time `db:"last_generated_at"`
	CreatedAt       time.Time  `db:"created_at"`
}

// NewPodcastRepository creates a new podcast repository
func NewPodcastRepository(database *sqlx.DB) *PodcastRepository {
	return &PodcastRepository{db: database}
}

// CreatePodcast inserts a new podcast
func (r *PodcastRepository) CreatePodcast(ctx context.Context, p *domain.Podcast) error {
	result, err := r.db.ExecContext(ctx,
		"INSERT INTO podcasts (name, cron_expr) VALUES (?, ?)", p.Name, p.CronExpr)
	if err != nil {
		return fmt.Errorf("create podcast: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("get insert id: %w", err)
	}
	p.ID = id
	return nil
}

// GetPodcasts retrieves all podcasts
func (r *PodcastRepository) GetPodcasts(ctx context.Context) ([]*domain.Podcast, error) {
	var sqlPodcasts []podcastSQL
	err := r.db.SelectContext(ctx, &sqlPodcasts, "SELECT * FROM podcasts ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("get podcasts: %w", err)
	}

	podcasts := make([]*domain.Podcast, len(sqlPodcasts))
	for i, p := range sqlPodcasts {
		podcasts[i] = &domain.Podcast{
			ID:              p.ID,
			Name:            p.Name,
			CronExpr:        p.CronExpr,
			LastGeneratedAt: p.LastGeneratedAt,
			CreatedAt:       p.CreatedAt,
		}
	}
	return podcasts, nil
}

// UpdatePodcastGenerated records when a generation run was dispatched
func (r *PodcastRepository) UpdatePodcastGenerated(ctx context.Context, id int64, generatedAt time.Time) error {
	retrier := repeater.NewBackoff(5, 50*time.Millisecond, repeater.WithMaxDelay(2*time.Second))

	return retrier.Do(ctx, func() error {
		_, err := r.db.ExecContext(ctx,
			"UPDATE podcasts SET last_generated_at = ? WHERE id = ?", generatedAt, id)
		if err != nil {
			if isLockError(err) {
				return err // retry
			}
			return &criticalError{err: fmt.Errorf("update podcast generated: %w", err)}
		}
		return nil
	})
}

// EpisodeRepository handles episode-related database operations
type EpisodeRepository struct {
	db *sqlx.DB
}

// NewEpisodeRepository creates a new episode repository
func NewEpisodeRepository(database *sqlx.DB) *EpisodeRepository {
	return &EpisodeRepository{db: database}
}

// episodeSQL represents an episode for SQL operations
type episodeSQL struct {
	ID        int64     `db:"id"`
	PodcastID int64     `db:"podcast_id"`
	Title     string    `db:"title"`
	Script    string    `db:"script"`
	CreatedAt time.Time `db:"created_at"`
}

// CreateEpisode inserts a new episode
func (r *EpisodeRepository) CreateEpisode(ctx context.Context, e *domain.Episode) error {
	result, err := r.db.ExecContext(ctx,
		"INSERT INTO episodes (podcast_id, title, script) VALUES (?, ?, ?)",
		e.PodcastID, e.Title, e.Script)
	if err != nil {
		return fmt.Errorf("create episode: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("get insert id: %w", err)
	}
	e.ID = id
	return nil
}

// GetEpisodes retrieves the newest episodes of a podcast
func (r *EpisodeRepository) GetEpisodes(ctx context.Context, podcastID int64, limit int) ([]*domain.Episode, error) {
	var sqlEpisodes []episodeSQL
	err := r.db.SelectContext(ctx, &sqlEpisodes,
		"SELECT * FROM episodes WHERE podcast_id = ? ORDER BY created_at DESC, id DESC LIMIT ?", podcastID, limit)
	if err != nil {
		return nil, fmt.Errorf("get episodes: %w", err)
	}

	episodes := make([]*domain.Episode, len(sqlEpisodes))
	for i, e := range sqlEpisodes {
		episodes[i] = &domain.Episode{
			ID:        e.ID,
			PodcastID: e.PodcastID,
			Title:     e.Title,
			Script:    e.Script,
			CreatedAt: e.CreatedAt,
		}
	}
	return episodes, nil
}
