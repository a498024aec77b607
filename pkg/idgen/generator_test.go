package idgen

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSnowflakeGenerator_RejectsOutOfRangeNode(t *testing.T) {
	_, err := NewSnowflakeGenerator(4096)
	assert.Error(t, err)
}

func TestSnowflakeGenerator_Unique(t *testing.T) {
	g, err := NewSnowflakeGenerator(1)
	require.NoError(t, err)

	seen := make(map[string]struct{})
	var last int64
	for i := 0; i < 1000; i++ {
		id := g.NextRunID()
		_, dup := seen[id]
		require.False(t, dup, "duplicate run id %s", id)
		seen[id] = struct{}{}

		n, err := strconv.ParseInt(id, 36, 64)
		require.NoError(t, err)
		assert.Greater(t, n, last)
		last = n
	}
}
