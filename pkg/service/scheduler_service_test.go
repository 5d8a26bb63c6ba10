package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/podscope/podscope/pkg/domain"
	"github.com/podscope/podscope/pkg/repository"
)

func setupTestService(t *testing.T) *SchedulerService {
	t.Helper()

	repos, err := repository.NewRepositories(context.Background(), repository.Config{
		DSN:          ":memory:",
		MaxOpenConns: 1,
		MaxIdleConns: 1,
	})
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, repos.Close()) })

	// seed one source directly through the repository; the service itself
	// only exposes what the scheduler needs
	src := &domain.Source{Type: domain.SourceTypeFeed, URL: "https://example.com/feed.xml",
		PollInterval: 60, Enabled: true}
	require.NoError(t, repos.Source.CreateSource(context.Background(), src))

	return NewSchedulerService(repos)
}

func TestSchedulerService_RoundTrip(t *testing.T) {
	svc := setupTestService(t)
	ctx := context.Background()

	sources, err := svc.GetSources(ctx, true)
	require.NoError(t, err)
	require.Len(t, sources, 1)
	src := sources[0]

	got, err := svc.GetSource(ctx, src.ID)
	require.NoError(t, err)
	assert.Equal(t, src.URL, got.URL)

	polled := time.Now().UTC().Truncate(time.Second)
	src.LastPolled = &polled
	src.ConsecutiveFailures = 1
	src.LastFailureKind = domain.FailureTransient
	require.NoError(t, svc.UpdateSourceStatus(ctx, src))

	item := &domain.Item{SourceID: src.ID, Title: "post", Body: "body", Fingerprint: "fp"}
	require.NoError(t, svc.CreateItem(ctx, item))

	exists, err := svc.ItemExists(ctx, src.ID, "fp")
	require.NoError(t, err)
	assert.True(t, exists)

	items, err := svc.GetItemsSince(ctx, time.Now().Add(-time.Hour), 10)
	require.NoError(t, err)
	assert.Len(t, items, 1)
}
