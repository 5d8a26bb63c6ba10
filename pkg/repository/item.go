package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/go-pkgz/repeater/v2"
	"github.com/jmoiron/sqlx"

	"github.com/podscope/podscope/pkg/domain"
)

// ItemRepository handles item-related database operations
type ItemRepository struct {
	db *sqlx.DB
}

// itemSQL represents an item for SQL operations
type itemSQL struct {
	ID          int64      `db:"id"`
	SourceID    int64      `db:"source_id"`
	Title       string     `db:"title"`
	Body        string     `db:"body"`
	URL         string     `db:"url"`
	Author      string     `db:"author"`
	Published   *time.Time `db:"published"`
	Fingerprint string     `db:"fingerprint"`
	CreatedAt   time.Time  `db:"created_at"`
}

// NewItemRepository creates a new item repository
func NewItemRepository(database *sqlx.DB) *ItemRepository {
	return &ItemRepository{db: database}
}

// CreateItem inserts a new item
func (r *ItemRepository) CreateItem(ctx context.Context, item *domain.Item) error {
	retrier := repeater.NewBackoff(5, 50*time.Millisecond, repeater.WithMaxDelay(2*time.Second))

	return retrier.Do(ctx, func() error {
		query := `
			INSERT INTO items (source_id, title, body, url, author, published, fingerprint)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`
		result, err := r.db.ExecContext(ctx, query,
			item.SourceID, item.Title, item.Body, item.URL, item.Author, item.Published, item.Fingerprint)
		if err != nil {
			if isLockError(err) {
				return err // retry
			}
			return &criticalError{err: fmt.Errorf("create item: %w", err)}
		}

		id, err := result.LastInsertId()
		if err != nil {
			return &criticalError{err: fmt.Errorf("get insert id: %w", err)}
		}
		item.ID = id
		return nil
	})
}

// ItemExists checks whether an item with this fingerprint was already
// recorded for the source
func (r *ItemRepository) ItemExists(ctx context.Context, sourceID int64, fingerprint string) (bool, error) {
	var count int
	err := r.db.GetContext(ctx, &count,
		"SELECT COUNT(*) FROM items WHERE source_id = ? AND fingerprint = ?", sourceID, fingerprint)
	if err != nil {
		return false, fmt.Errorf("check item existence: %w", err)
	}
	return count > 0, nil
}

// GetRecentItems returns the newest items for a source
func (r *ItemRepository) GetRecentItems(ctx context.Context, sourceID int64, limit int) ([]*domain.Item, error) {
	var sqlItems []itemSQL
	err := r.db.SelectContext(ctx, &sqlItems,
		"SELECT * FROM items WHERE source_id = ? ORDER BY created_at DESC, id DESC LIMIT ?", sourceID, limit)
	if err != nil {
		return nil, fmt.Errorf("get recent items: %w", err)
	}

	items := make([]*domain.Item, len(sqlItems))
	for i, it := range sqlItems {
		items[i] = r.toDomainItem(&it)
	}
	return items, nil
}

// GetItemsSince returns items created after the given time across all sources
func (r *ItemRepository) GetItemsSince(ctx context.Context, since time.Time, limit int) ([]*domain.Item, error) {
	var sqlItems []itemSQL
	err := r.db.SelectContext(ctx, &sqlItems,
		"SELECT * FROM items WHERE created_at > ? ORDER BY created_at DESC, id DESC LIMIT ?", since, limit)
	if err != nil {
		return nil, fmt.Errorf("get items since: %w", err)
	}

	items := make([]*domain.Item, len(sqlItems))
	for i, it := range sqlItems {
		items[i] = r.toDomainItem(&it)
	}
	return items, nil
}

// toDomainItem converts a SQL item to its domain representation
func (r *ItemRepository) toDomainItem(sqlItem *itemSQL) *domain.Item {
	return &domain.Item{
		ID:          sqlItem.ID,
		SourceID:    sqlItem.SourceID,
		Title:       sqlItem.Title,
		Body:        sqlItem.Body,
		URL:         sqlItem.URL,
		Author:      sqlItem.Author,
		Published:   sqlItem.Published,
		Fingerprint: sqlItem.Fingerprint,
		CreatedAt:   sqlItem.CreatedAt,
	}
}
