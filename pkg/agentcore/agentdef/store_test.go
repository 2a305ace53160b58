package agentdef_test

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/agentcore/pkg/agentcore/agentdef"
)

// storeFactories runs shared behavior tests against every Store.
func storeFactories(t *testing.T) map[string]func() agentdef.Store {
	return map[string]func() agentdef.Store{
		"memory": func() agentdef.Store { return agentdef.NewMemoryStore() },
		"sqlite": func() agentdef.Store {
			s, err := agentdef.NewSQLiteStore(":memory:")
			require.NoError(t, err)
			return s
		},
	}
}

func TestStore_SaveGet(t *testing.T) {
	for name, factory := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			store := factory()
			defer store.Close()
			ctx := context.Background()

			def := &agentdef.Definition{
				Name:         "watcher",
				TickInterval: agentdef.Duration(500 * time.Millisecond),
				Tags:         []string{"io"},
				Settings:     map[string]any{"target": "ops"},
			}
			require.NoError(t, store.Save(ctx, def))

			got, err := store.Get(ctx, "watcher")
			require.NoError(t, err)
			assert.Equal(t, "watcher", got.Name)
			assert.Equal(t, 500*time.Millisecond, got.TickInterval.Std())
			assert.Equal(t, []string{"io"}, got.Tags)
			assert.Equal(t, "ops", got.Config().String("target", ""))

			_, err = store.Get(ctx, "missing")
			assert.ErrorIs(t, err, agentdef.ErrNotFound)
		})
	}
}

func TestStore_Versions(t *testing.T) {
	for name, factory := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			store := factory()
			defer store.Close()
			ctx := context.Background()

			require.NoError(t, store.Save(ctx, &agentdef.Definition{Name: "b"}))
			require.NoError(t, store.Save(ctx, &agentdef.Definition{Name: "a"}))
			require.NoError(t, store.Save(ctx, &agentdef.Definition{Name: "a", Description: "v2"}))

			infos, err := store.List(ctx)
			require.NoError(t, err)
			require.Len(t, infos, 2)

			assert.Equal(t, "a", infos[0].Name)
			assert.Equal(t, 2, infos[0].Version)
			assert.Positive(t, infos[0].Size)
			assert.False(t, infos[0].UpdatedAt.IsZero())
			assert.Equal(t, "b", infos[1].Name)
			assert.Equal(t, 1, infos[1].Version)

			got, err := store.Get(ctx, "a")
			require.NoError(t, err)
			assert.Equal(t, "v2", got.Description)
		})
	}
}

func TestStore_Delete(t *testing.T) {
	for name, factory := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			store := factory()
			defer store.Close()
			ctx := context.Background()

			require.NoError(t, store.Save(ctx, &agentdef.Definition{Name: "a"}))
			require.NoError(t, store.Delete(ctx, "a"))
			require.NoError(t, store.Delete(ctx, "never-existed"))

			_, err := store.Get(ctx, "a")
			assert.ErrorIs(t, err, agentdef.ErrNotFound)
		})
	}
}

func TestStore_RejectsInvalid(t *testing.T) {
	for name, factory := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			store := factory()
			defer store.Close()

			err := store.Save(context.Background(), &agentdef.Definition{})
			assert.ErrorIs(t, err, agentdef.ErrInvalidDefinition)
		})
	}
}

func TestStore_Closed(t *testing.T) {
	for name, factory := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			store := factory()
			ctx := context.Background()

			require.NoError(t, store.Close())
			assert.NoError(t, store.Close())

			assert.ErrorIs(t, store.Save(ctx, &agentdef.Definition{Name: "a"}), agentdef.ErrStoreClosed)
			_, err := store.Get(ctx, "a")
			assert.ErrorIs(t, err, agentdef.ErrStoreClosed)
			_, err = store.List(ctx)
			assert.ErrorIs(t, err, agentdef.ErrStoreClosed)
			assert.ErrorIs(t, store.Delete(ctx, "a"), agentdef.ErrStoreClosed)
		})
	}
}

func TestStore_Concurrent(t *testing.T) {
	for name, factory := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			store := factory()
			defer store.Close()
			ctx := context.Background()

			var wg sync.WaitGroup
			for i := 0; i < 20; i++ {
				wg.Add(1)
				go func(id int) {
					defer wg.Done()
					def := &agentdef.Definition{Name: fmt.Sprintf("agent-%d", id%5)}
					for j := 0; j < 10; j++ {
						_ = store.Save(ctx, def)
						_, _ = store.Get(ctx, def.Name)
						_, _ = store.List(ctx)
					}
				}(i)
			}
			wg.Wait()

			infos, err := store.List(ctx)
			require.NoError(t, err)
			assert.Len(t, infos, 5)
			total := 0
			for _, info := range infos {
				total += info.Version
			}
			assert.Equal(t, 200, total)
		})
	}
}

func TestMemoryStore_Isolation(t *testing.T) {
	store := agentdef.NewMemoryStore()
	ctx := context.Background()

	def := &agentdef.Definition{Name: "a", Tags: []string{"x"}}
	require.NoError(t, store.Save(ctx, def))
	def.Tags[0] = "mutated"

	got, err := store.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, []string{"x"}, got.Tags)
}

func TestSQLiteStore_Persistence(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "state", "agents.db")
	ctx := context.Background()

	store1, err := agentdef.NewSQLiteStore(dbPath)
	require.NoError(t, err)
	require.NoError(t, store1.Save(ctx, &agentdef.Definition{
		Name:         "persistent",
		TickInterval: agentdef.Duration(3 * time.Second),
	}))
	require.NoError(t, store1.Close())

	store2, err := agentdef.NewSQLiteStore(dbPath)
	require.NoError(t, err)
	defer store2.Close()

	got, err := store2.Get(ctx, "persistent")
	require.NoError(t, err)
	assert.Equal(t, 3*time.Second, got.TickInterval.Std())
}
