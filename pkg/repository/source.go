package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/go-pkgz/repeater/v2"
	"github.com/jmoiron/sqlx"

	"github.com/podscope/podscope/pkg/domain"
)

// SourceRepository handles source-related database operations
type SourceRepository struct {
	db *sqlx.DB
}

// sourceSQL represents a source for SQL operations
type sourceSQL struct {
	ID                  int64      `db:"id"`
	Type                string     `db:"type"`
	URL                 string     `db:"url"`
	Title               string     `db:"title"`
	PollInterval        int        `db:"poll_interval"`
	Enabled             bool       `db:"enabled"`
	Aggregate           *bool      `db:"aggregate"`
	MaxFailures         *int       `db:"max_failures"`
	MaxBackoffHours     *int       `db:"max_backoff_hours"`
	FetchDelaySeconds   *int64     `db:"fetch_delay_seconds"`
	LastPolled          *time.Time `db:"last_polled"`
	LastSeenCursor      string     `db:"last_seen_cursor"`
	ConsecutiveFailures int        `db:"consecutive_failures"`
	LastFailureKind     string     `db:"last_failure_kind"`
	DisabledReason      string     `db:"disabled_reason"`
	CreatedAt           time.Time  `db:"created_at"`
}

// NewSourceRepository creates a new source repository
func NewSourceRepository(database *sqlx.DB) *SourceRepository {
	return &SourceRepository{db: database}
}

// CreateSource inserts a new source
func (r *SourceRepository) CreateSource(ctx context.Context, src *domain.Source) error {
	sqlSrc := r.toSQLSource(src)

	query := `
		INSERT INTO sources (type, url, title, poll_interval, enabled, aggregate,
		                     max_failures, max_backoff_hours, fetch_delay_seconds, last_seen_cursor)
		VALUES (:type, :url, :title, :poll_interval, :enabled, :aggregate,
		        :max_failures, :max_backoff_hours, :fetch_delay_seconds, :last_seen_cursor)
	`
	result, err := r.db.NamedExecContext(ctx, query, sqlSrc)
	if err != nil {
		return fmt.Errorf("create source: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("get insert id: %w", err)
	}

	src.ID = id
	return nil
}

// GetSource retrieves a source by ID
func (r *SourceRepository) GetSource(ctx context.Context, id int64) (*domain.Source, error) {
	var sqlSrc sourceSQL
	err := r.db.GetContext(ctx, &sqlSrc, "SELECT * FROM sources WHERE id = ?", id)
	if err != nil {
		return nil, fmt.Errorf("get source: %w", err)
	}
	return r.toDomainSource(&sqlSrc), nil
}

// GetSources retrieves sources with optional filtering
func (r *SourceRepository) GetSources(ctx context.Context, enabledOnly bool) ([]*domain.Source, error) {
	query := "SELECT * FROM sources"
	if enabledOnly {
		query += " WHERE enabled = 1"
	}
	query += " ORDER BY id"

	var sqlSources []sourceSQL
	err := r.db.SelectContext(ctx, &sqlSources, query)
	if err != nil {
		return nil, fmt.Errorf("get sources: %w", err)
	}

	sources := make([]*domain.Source, len(sqlSources))
	for i, s := range sqlSources {
		sources[i] = r.toDomainSource(&s)
	}
	return sources, nil
}

// UpdateSourceStatus persists the mutable health fields after a poll attempt.
// This is the single read-modify-write step the poll scheduler owns.
func (r *SourceRepository) UpdateSourceStatus(ctx context.Context, src *domain.Source) error {
	retrier := repeater.NewBackoff(5, 50*time.Millisecond, repeater.WithMaxDelay(2*time.Second))

	return retrier.Do(ctx, func() error {
		query := `
			UPDATE sources
			SET last_polled = ?,
			    last_seen_cursor = ?,
			    consecutive_failures = ?,
			    last_failure_kind = ?,
			    enabled = ?,
			    disabled_reason = ?
			WHERE id = ?
		`
		_, err := r.db.ExecContext(ctx, query,
			src.LastPolled, src.LastSeenCursor, src.ConsecutiveFailures,
			string(src.LastFailureKind), src.Enabled, src.DisabledReason, src.ID)
		if err != nil {
			if isLockError(err) {
				return err // retry
			}
			return &criticalError{err: fmt.Errorf("update source status: %w", err)}
		}
		return nil
	})
}

// SetSourceEnabled flips the enabled flag; enabling clears the disabled
// reason. This is the explicit administrative action for recovering an
// auto-disabled source.
func (r *SourceRepository) SetSourceEnabled(ctx context.Context, id int64, enabled bool) error {
	query := `
		UPDATE sources
		SET enabled = ?,
		    disabled_reason = CASE WHEN ? THEN '' ELSE disabled_reason END,
		    consecutive_failures = CASE WHEN ? THEN 0 ELSE consecutive_failures END,
		    last_failure_kind = CASE WHEN ? THEN '' ELSE last_failure_kind END
		WHERE id = ?
	`
	_, err := r.db.ExecContext(ctx, query, enabled, enabled, enabled, enabled, id)
	if err != nil {
		return fmt.Errorf("set source enabled: %w", err)
	}
	return nil
}

// toSQLSource converts a domain source to its SQL representation
func (r *SourceRepository) toSQLSource(src *domain.Source) *sourceSQL {
	sqlSrc := &sourceSQL{
		ID:                  src.ID,
		Type:                string(src.Type),
		URL:                 src.URL,
		Title:               src.Title,
		PollInterval:        src.PollInterval,
		Enabled:             src.Enabled,
		Aggregate:           src.Aggregate,
		MaxFailures:         src.MaxFailures,
		MaxBackoffHours:     src.MaxBackoffHours,
		LastPolled:          src.LastPolled,
		LastSeenCursor:      src.LastSeenCursor,
		ConsecutiveFailures: src.ConsecutiveFailures,
		LastFailureKind:     string(src.LastFailureKind),
		DisabledReason:      src.DisabledReason,
	}
	if src.FetchDelay != nil {
		seconds := int64(*src.FetchDelay / time.Second)
		sqlSrc.FetchDelaySeconds = &seconds
	}
	return sqlSrc
}

// toDomainSource converts a SQL source to its domain representation
func (r *SourceRepository) toDomainSource(sqlSrc *sourceSQL) *domain.Source {
	src := &domain.Source{
		ID:                  sqlSrc.ID,
		Type:                domain.SourceType(sqlSrc.Type),
		URL:                 sqlSrc.URL,
		Title:               sqlSrc.Title,
		PollInterval:        sqlSrc.PollInterval,
		Enabled:             sqlSrc.Enabled,
		Aggregate:           sqlSrc.Aggregate,
		MaxFailures:         sqlSrc.MaxFailures,
		MaxBackoffHours:     sqlSrc.MaxBackoffHours,
		LastPolled:          sqlSrc.LastPolled,
		LastSeenCursor:      sqlSrc.LastSeenCursor,
		ConsecutiveFailures: sqlSrc.ConsecutiveFailures,
		LastFailureKind:     domain.FailureKind(sqlSrc.LastFailureKind),
		DisabledReason:      sqlSrc.DisabledReason,
		CreatedAt:           sqlSrc.CreatedAt,
	}
	if sqlSrc.FetchDelaySeconds != nil {
		delay := time.Duration(*sqlSrc.FetchDelaySeconds) * time.Second
		src.FetchDelay = &delay
	}
	return src
}
