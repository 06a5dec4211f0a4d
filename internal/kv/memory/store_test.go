package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_SetNXWinsOnce(t *testing.T) {
	t.Parallel()

	s := NewStore()
	ctx := context.Background()

	const callers = 32
	var wg sync.WaitGroup
	wins := make(chan bool, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := s.SetNX(ctx, "lease", "ts", time.Hour)
			require.NoError(t, err)
			wins <- ok
		}()
	}
	wg.Wait()
	close(wins)

	won := 0
	for ok := range wins {
		if ok {
			won++
		}
	}
	assert.Equal(t, 1, won)
}

func TestStore_SetNXReclaimsExpired(t *testing.T) {
	t.Parallel()

	now := time.Unix(1000, 0)
	s := NewStoreWithClock(func() time.Time { return now })
	ctx := context.Background()

	ok, err := s.SetNX(ctx, "k", "one", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = s.SetNX(ctx, "k", "two", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	now = now.Add(2 * time.Minute)
	ok, err = s.SetNX(ctx, "k", "three", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	v, found, err := s.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "three", v)
}

func TestStore_GetEvictsExpired(t *testing.T) {
	t.Parallel()

	now := time.Unix(2000, 0)
	s := NewStoreWithClock(func() time.Time { return now })
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "k", "v", time.Second))

	_, found, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, found)

	now = now.Add(time.Second)
	_, found, err = s.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestStore_DeleteAbsentIsNoOp(t *testing.T) {
	t.Parallel()

	s := NewStore()
	assert.NoError(t, s.Delete(context.Background(), "missing"))
}

func TestStore_SetOverwrites(t *testing.T) {
	t.Parallel()

	s := NewStore()
	ctx := context.Background()
	require.NoError(t, s.Set(ctx, "k", "one", 0))
	require.NoError(t, s.Set(ctx, "k", "two", 0))

	v, found, err := s.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "two", v)
}
