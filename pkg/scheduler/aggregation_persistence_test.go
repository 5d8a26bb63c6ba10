package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/podscope/podscope/pkg/domain"
	"github.com/podscope/podscope/pkg/fetcher"
	"github.com/podscope/podscope/pkg/repository"
	"github.com/podscope/podscope/pkg/service"
)

// sequenceFetcher returns a different batch on each call, repeating the last
// batch once the sequence is exhausted
type sequenceFetcher struct {
	batches [][]domain.Item
	calls   int
}

func (f *sequenceFetcher) Fetch(_ context.Context, _ *domain.Source) ([]domain.Item, string, error) {
	idx := f.calls
	if idx >= len(f.batches) {
		idx = len(f.batches) - 1
	}
	f.calls++
	return f.batches[idx], "", nil
}

func TestScheduler_Aggregation_RepeatedPollsPersist(t *testing.T) {
	repos, err := repository.NewRepositories(context.Background(), repository.Config{
		DSN:          ":memory:",
		MaxOpenConns: 1,
		MaxIdleConns: 1,
	})
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, repos.Close()) })

	svc := service.NewSchedulerService(repos)
	ctx := context.Background()

	src := &domain.Source{Type: domain.SourceTypeTimeline, URL: "https://nitter.net/alice/rss",
		PollInterval: 30, Enabled: true}
	require.NoError(t, repos.Source.CreateSource(ctx, src))

	seq := &sequenceFetcher{batches: [][]domain.Item{
		{
			{SourceID: src.ID, Title: "a1", Body: "monday post one", Author: "alice"},
			{SourceID: src.ID, Title: "a2", Body: "monday post two", Author: "alice"},
		},
		{
			{SourceID: src.ID, Title: "b1", Body: "tuesday post one", Author: "alice"},
			{SourceID: src.ID, Title: "b2", Body: "tuesday post two", Author: "alice"},
		},
	}}

	clock := time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)
	s := newTestScheduler(t, Params{
		Sources:  svc,
		Items:    svc,
		Fetchers: &fetchersFake{byType: map[domain.SourceType]fetcher.Fetcher{domain.SourceTypeTimeline: seq}},
		Now:      func() time.Time { return clock },
	})

	// first poll: one digest row with a real fingerprint
	s.PollDueSources(ctx)
	items, err := repos.Item.GetRecentItems(ctx, src.ID, 10)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.NotEmpty(t, items[0].Fingerprint)
	assert.Contains(t, items[0].Body, "monday post one")

	// second poll with new content: a second digest row, not a unique
	// constraint casualty
	clock = clock.Add(31 * time.Minute)
	s.PollDueSources(ctx)
	items, err = repos.Item.GetRecentItems(ctx, src.ID, 10)
	require.NoError(t, err)
	require.Len(t, items, 2, "each poll's digest persists independently")
	assert.NotEqual(t, items[0].Fingerprint, items[1].Fingerprint)
	for _, item := range items {
		assert.NotEmpty(t, item.Fingerprint)
	}

	// third poll repeats the second batch: the rebuilt digest has the same
	// fingerprint as the stored one, so it dedups instead of erroring, and
	// the source still records a success
	clock = clock.Add(31 * time.Minute)
	s.PollDueSources(ctx)
	items, err = repos.Item.GetRecentItems(ctx, src.ID, 10)
	require.NoError(t, err)
	assert.Len(t, items, 2)

	updated, err := repos.Source.GetSource(ctx, src.ID)
	require.NoError(t, err)
	assert.Zero(t, updated.ConsecutiveFailures)
	require.NotNil(t, updated.LastPolled)
}
