package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPutObject_StoresCopyAndReturnsURI(t *testing.T) {
	t.Parallel()

	store := NewBlobStore()
	payload := []byte(`{"status":"completed"}`)

	uri, err := store.PutObject(context.Background(), "reports/example.com.json", "application/json", payload)
	require.NoError(t, err)
	assert.Equal(t, "memory://reports/example.com.json", uri)

	// Mutating the caller's slice must not affect the stored copy.
	payload[0] = 'X'

	got, ok := store.Object("reports/example.com.json")
	require.True(t, ok)
	assert.Equal(t, []byte(`{"status":"completed"}`), got)
}

func TestObject_Missing(t *testing.T) {
	t.Parallel()

	store := NewBlobStore()
	_, ok := store.Object("reports/missing.json")
	assert.False(t, ok)
}
