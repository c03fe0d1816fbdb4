package aiclient_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/auric-labs/personagate/internal/auth/aiclient"
)

func newInitializedFactory(t *testing.T) *aiclient.Factory {
	t.Helper()

	f := aiclient.NewFactory(aiclient.Config{
		APIKey:  "service-key",
		BaseURL: "https://relay.example.com",
	}, nil)
	require.NoError(t, f.Initialize(context.Background()))
	return f
}

func TestInitialize(t *testing.T) {
	t.Parallel()

	t.Run("requires api key", func(t *testing.T) {
		t.Parallel()

		f := aiclient.NewFactory(aiclient.Config{BaseURL: "https://relay.example.com"}, nil)
		require.Error(t, f.Initialize(context.Background()))
		require.False(t, f.CacheStats().HasDefaultClient)
	})

	t.Run("builds default client", func(t *testing.T) {
		t.Parallel()

		f := newInitializedFactory(t)
		stats := f.CacheStats()
		require.True(t, stats.HasDefaultClient)
		require.Equal(t, 0, stats.CachedClients)
	})
}

func TestMethodsRequireInitialization(t *testing.T) {
	t.Parallel()

	f := aiclient.NewFactory(aiclient.Config{APIKey: "k"}, nil)

	_, err := f.CreateUserClient(context.Background(), "user-1", "tok", false)
	require.Error(t, err)

	_, err = f.GetClient(context.Background(), aiclient.GetClientOptions{UserID: "user-1"})
	require.Error(t, err)
}

func TestCreateUserClientCaching(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newInitializedFactory(t)

	first, err := f.CreateUserClient(ctx, "user-1", "token-a", false)
	require.NoError(t, err)
	require.Equal(t, 1, f.CacheStats().CachedClients)

	// a repeat call returns the cached instance even with a different token
	again, err := f.CreateUserClient(ctx, "user-1", "token-b", false)
	require.NoError(t, err)
	require.Same(t, first, again)
	require.Equal(t, 1, f.CacheStats().CachedClients)

	// the bypass variant is a distinct cache entry
	bypass, err := f.CreateUserClient(ctx, "user-1", "token-a", true)
	require.NoError(t, err)
	require.NotSame(t, first, bypass)
	require.Equal(t, 2, f.CacheStats().CachedClients)

	_, err = f.CreateUserClient(ctx, "", "token-a", false)
	require.Error(t, err)
}

func TestClearUserClient(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newInitializedFactory(t)

	first, err := f.CreateUserClient(ctx, "user-1", "token-a", false)
	require.NoError(t, err)
	_, err = f.CreateUserClient(ctx, "user-1", "token-a", true)
	require.NoError(t, err)
	_, err = f.CreateUserClient(ctx, "user-2", "token-c", false)
	require.NoError(t, err)
	require.Equal(t, 3, f.CacheStats().CachedClients)

	f.ClearUserClient("user-1")
	require.Equal(t, 1, f.CacheStats().CachedClients, "both variants for the user are dropped")

	rebuilt, err := f.CreateUserClient(ctx, "user-1", "token-b", false)
	require.NoError(t, err)
	require.NotSame(t, first, rebuilt)
}

func TestClearAllClients(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newInitializedFactory(t)

	_, err := f.CreateUserClient(ctx, "user-1", "token-a", false)
	require.NoError(t, err)
	_, err = f.CreateUserClient(ctx, "user-2", "token-b", false)
	require.NoError(t, err)

	f.ClearAllClients()
	stats := f.CacheStats()
	require.Equal(t, 0, stats.CachedClients)
	require.True(t, stats.HasDefaultClient, "default client survives a cache clear")
}

func TestGetClient(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newInitializedFactory(t)

	byDefault, err := f.GetClient(ctx, aiclient.GetClientOptions{UseDefault: true, UserID: "user-1"})
	require.NoError(t, err)

	anonymous, err := f.GetClient(ctx, aiclient.GetClientOptions{})
	require.NoError(t, err)
	require.Same(t, byDefault, anonymous)

	perUser, err := f.GetClient(ctx, aiclient.GetClientOptions{UserID: "user-1", UserToken: "token-a"})
	require.NoError(t, err)
	require.NotSame(t, byDefault, perUser)

	cached, err := f.GetClient(ctx, aiclient.GetClientOptions{UserID: "user-1", UserToken: "token-a"})
	require.NoError(t, err)
	require.Same(t, perUser, cached)
}
