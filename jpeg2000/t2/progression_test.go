package t2

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collect(s *Sequence) []Coordinate {
	var out []Coordinate
	for {
		c, ok := s.Next()
		if !ok {
			return out
		}
		out = append(out, c)
	}
}

func TestSequenceCoversAllPackets(t *testing.T) {
	numComps, numLayers, numRes := 3, 2, 4
	numPrec := func(c, r int) int { return 2 }

	for order := OrderLRCP; order <= OrderCPRL; order++ {
		s := NewSequence(numComps, numLayers, numRes, numPrec, order)
		coords := collect(s)
		require.Len(t, coords, numComps*numLayers*numRes*2, "order %s", OrderName(order))

		seen := make(map[Coordinate]bool)
		for _, c := range coords {
			assert.False(t, seen[c], "duplicate packet %v under %s", c, OrderName(order))
			seen[c] = true
		}
	}
}

func TestSequenceNestingLRCPvsRLCP(t *testing.T) {
	numPrec := func(c, r int) int { return 1 }

	lrcp := collect(NewSequence(1, 2, 2, numPrec, OrderLRCP))
	rlcp := collect(NewSequence(1, 2, 2, numPrec, OrderRLCP))

	// LRCP: layer is the outermost loop.
	assert.Equal(t, []Coordinate{
		{0, 0, 0, 0}, {0, 1, 0, 0}, {1, 0, 0, 0}, {1, 1, 0, 0},
	}, lrcp)
	// RLCP: resolution is the outermost loop.
	assert.Equal(t, []Coordinate{
		{0, 0, 0, 0}, {1, 0, 0, 0}, {0, 1, 0, 0}, {1, 1, 0, 0},
	}, rlcp)
}

func TestSequenceRaggedPrecincts(t *testing.T) {
	// Components with different precinct counts per resolution.
	numPrec := func(c, r int) int {
		if c == 0 {
			return 1
		}
		return 3
	}
	s := NewSequence(2, 1, 2, numPrec, OrderPCRL)
	coords := collect(s)
	require.Len(t, coords, 2*1+2*3)
	for _, c := range coords {
		assert.Less(t, c.Precinct, numPrec(c.Component, c.Resolution))
	}
}

func TestSequenceVolumes(t *testing.T) {
	numPrec := func(c, r int) int { return 1 }
	vols := []Volume{
		{Order: OrderRLCP, LayerEnd: 2, ResStart: 0, ResEnd: 1, CompStart: 0, CompEnd: 1},
		{Order: OrderLRCP, LayerEnd: 2, ResStart: 0, ResEnd: 3, CompStart: 0, CompEnd: 1},
	}
	s := NewSequenceVolumes(1, 2, 3, numPrec, vols)
	coords := collect(s)

	// Every packet exactly once: resolution 0 first (from the first
	// volume), then the remainder in LRCP order.
	require.Len(t, coords, 2*3)
	seen := make(map[Coordinate]bool)
	for _, c := range coords {
		assert.False(t, seen[c])
		seen[c] = true
	}
	assert.Equal(t, Coordinate{0, 0, 0, 0}, coords[0])
	assert.Equal(t, Coordinate{1, 0, 0, 0}, coords[1])
}

func TestOrderName(t *testing.T) {
	assert.Equal(t, "LRCP", OrderName(OrderLRCP))
	assert.Equal(t, "CPRL", OrderName(OrderCPRL))
	assert.Equal(t, "UNKNOWN", OrderName(9))
}
