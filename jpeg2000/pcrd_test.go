package jpeg2000

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cocosip/go-j2k/jpeg2000/t1"
	"github.com/cocosip/go-j2k/jpeg2000/t2"
)

// concavePasses fabricates a pass list with diminishing returns: equal
// byte increments, shrinking distortion gains.
func concavePasses(n int, bytesPerPass int) []t1.Pass {
	passes := make([]t1.Pass, n)
	cum := 0
	dist := 0.0
	gain := float64(int(1) << uint(n))
	for i := 0; i < n; i++ {
		cum += bytesPerPass
		dist += gain
		gain /= 2
		passes[i] = t1.Pass{Index: i, Len: bytesPerPass, CumLen: cum, Distortion: dist}
	}
	return passes
}

func TestBuildHullMonotoneSlopes(t *testing.T) {
	var infos []passInfo
	for _, p := range concavePasses(8, 10) {
		infos = append(infos, passInfo{rate: p.CumLen, dist: p.Distortion})
	}
	hull := buildHull(infos)
	require.NotEmpty(t, hull)
	for i := 1; i < len(hull); i++ {
		assert.Less(t, hull[i].slope, hull[i-1].slope, "hull slopes must strictly decrease")
		assert.Greater(t, hull[i].passCount, hull[i-1].passCount)
	}
}

func TestAllocateLayersUnboundedTakesAll(t *testing.T) {
	blocks := []*t2.CodeBlock{
		{Passes: concavePasses(6, 10)},
		{Passes: concavePasses(3, 5)},
	}
	require.NoError(t, allocateLayers(context.Background(), blocks, []int{0}, 0.005))
	assert.Equal(t, []int{6}, blocks[0].LayerPasses)
	assert.Equal(t, []int{3}, blocks[1].LayerPasses)
}

func TestAllocateLayersRespectsBudget(t *testing.T) {
	blocks := []*t2.CodeBlock{
		{Passes: concavePasses(10, 10)},
		{Passes: concavePasses(10, 10)},
	}
	budget := 60
	require.NoError(t, allocateLayers(context.Background(), blocks, []int{budget, 0}, 0.005))

	spent := 0
	for _, cb := range blocks {
		if n := cb.LayerPasses[0]; n > 0 {
			spent += cb.Passes[n-1].CumLen
		}
	}
	assert.LessOrEqual(t, spent, budget, "layer 0 must respect its byte budget")
	assert.Greater(t, spent, 0, "a feasible budget must select some passes")

	// Final unbounded layer takes everything.
	assert.Equal(t, 10, blocks[0].LayerPasses[1])
	assert.Equal(t, 10, blocks[1].LayerPasses[1])
}

func TestAllocateLayersMonotone(t *testing.T) {
	blocks := []*t2.CodeBlock{
		{Passes: concavePasses(12, 7)},
		{Passes: concavePasses(8, 3)},
		{Passes: nil},
	}
	budgets := []int{20, 50, 90, 0}
	require.NoError(t, allocateLayers(context.Background(), blocks, budgets, 0.005))

	for i, cb := range blocks {
		require.Len(t, cb.LayerPasses, len(budgets))
		for l := 1; l < len(budgets); l++ {
			assert.GreaterOrEqual(t, cb.LayerPasses[l], cb.LayerPasses[l-1],
				"block %d layer %d selection must include layer %d", i, l, l-1)
		}
		assert.Equal(t, len(cb.Passes), cb.LayerPasses[len(budgets)-1],
			"block %d final layer must include every pass", i)
	}
}

func TestAllocateLayersCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	blocks := []*t2.CodeBlock{{Passes: concavePasses(6, 10)}}
	err := allocateLayers(ctx, blocks, []int{30}, 0.005)
	assert.ErrorIs(t, err, ErrCancelled)
}

func TestLayerBudgets(t *testing.T) {
	p := &EncodeParams{NumLayers: 3, LayerBytes: []int{10, 20, 0}}
	assert.Equal(t, []int{10, 20, 0}, layerBudgets(p, 1000, 4096))

	p = &EncodeParams{NumLayers: 2}
	budgets := layerBudgets(p, 1000, 4096)
	require.Len(t, budgets, 2)
	assert.Greater(t, budgets[0], 0)
	assert.Less(t, budgets[0], 1000)
	assert.Zero(t, budgets[1], "without rate control the final layer is unbounded")

	p = &EncodeParams{NumLayers: 1, TargetRatio: 4}
	budgets = layerBudgets(p, 100000, 4096)
	assert.Equal(t, []int{1024}, budgets)
}
