package id

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewIsSortable(t *testing.T) {
	t.Parallel()

	prev := New()
	for i := 0; i < 100; i++ {
		next := New()
		assert.Len(t, next, 26)
		assert.Greater(t, next, prev)
		prev = next
	}
}

func TestNewAtRoundTrip(t *testing.T) {
	t.Parallel()

	ts := time.Date(2024, 8, 27, 15, 0, 0, 0, time.UTC)
	got, err := Time(NewAt(ts))
	require.NoError(t, err)
	assert.Equal(t, ts, got)

	_, err = Time("not-a-ulid")
	assert.Error(t, err)
}
