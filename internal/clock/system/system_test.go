package system

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNow_ReturnsUTC(t *testing.T) {
	t.Parallel()

	clk := New()
	got := clk.Now()
	require.Equal(t, time.UTC, got.Location())
	assert.WithinDuration(t, time.Now().UTC(), got, time.Second)
}

func TestNow_NonDecreasing(t *testing.T) {
	t.Parallel()

	clk := New()
	first := clk.Now()
	second := clk.Now()
	assert.False(t, second.Before(first))
}
