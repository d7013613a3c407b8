package jpeg2000

import (
	"context"

	"github.com/cocosip/go-j2k/jpeg2000/codestream"
	"github.com/cocosip/go-j2k/jpeg2000/t2"
)

// Post-compression rate-distortion optimisation (PCRD-opt). Each code
// block's pass list reduces to the convex hull of its (rate, distortion)
// points; one slope threshold per layer then selects a truncation point
// per block, found by bisection against the layer's byte budget. Layer
// selections are monotone: layer L includes every pass of layer L-1.

// hullPoint is one vertex of a block's rate-distortion hull.
type hullPoint struct {
	passCount int     // cumulative passes through this vertex
	rate      int     // cumulative bytes
	slope     float64 // distortion decrease per byte of the segment ending here
}

// buildHull keeps the pass prefixes on the monotone-decreasing convex
// hull of (CumLen, Distortion).
func buildHull(passes []passInfo) []hullPoint {
	var hull []hullPoint
	prevRate, prevDist := 0, 0.0
	for i, p := range passes {
		dr := p.rate - prevRate
		dd := p.dist - prevDist
		if dr <= 0 {
			dr = 1
		}
		if dd < 0 {
			dd = 0
		}
		pt := hullPoint{passCount: i + 1, rate: p.rate, slope: dd / float64(dr)}

		// Pop vertices whose slope is not strictly above the new
		// segment's: recompute the merged slope from the popped vertex.
		for len(hull) > 0 && hull[len(hull)-1].slope <= pt.slope {
			hull = hull[:len(hull)-1]
			baseRate, baseDist := 0, 0.0
			if len(hull) > 0 {
				baseRate = hull[len(hull)-1].rate
				baseDist = distAt(passes, hull[len(hull)-1].passCount)
			}
			mergedRate := p.rate - baseRate
			mergedDist := p.dist - baseDist
			if mergedRate <= 0 {
				mergedRate = 1
			}
			if mergedDist < 0 {
				mergedDist = 0
			}
			pt = hullPoint{passCount: i + 1, rate: p.rate, slope: mergedDist / float64(mergedRate)}
		}
		hull = append(hull, pt)
		prevRate, prevDist = p.rate, p.dist
	}
	return hull
}

func distAt(passes []passInfo, count int) float64 {
	if count <= 0 {
		return 0
	}
	return passes[count-1].dist
}

type passInfo struct {
	rate int
	dist float64
}

// blockRD is the per-block allocator state.
type blockRD struct {
	passes []passInfo
	hull   []hullPoint
	locked int // passes committed by earlier layers
}

// allocator assigns cumulative pass counts per layer for every block.
type allocator struct {
	blocks []*blockRD
	tol    float64
}

func newAllocator(blocks [][]passInfo, tol float64) *allocator {
	a := &allocator{tol: tol}
	for _, passes := range blocks {
		a.blocks = append(a.blocks, &blockRD{
			passes: passes,
			hull:   buildHull(passes),
		})
	}
	if a.tol <= 0 {
		a.tol = 0.005
	}
	return a
}

// selectAt returns the truncation (cumulative passes) for a block at
// slope threshold lambda, never below the locked count.
func (b *blockRD) selectAt(lambda float64) int {
	n := b.locked
	for _, pt := range b.hull {
		if pt.slope > lambda && pt.passCount > n {
			n = pt.passCount
		}
	}
	return n
}

// rateAt returns the block's byte cost at a truncation.
func (b *blockRD) rateAt(count int) int {
	if count <= 0 {
		return 0
	}
	return b.passes[count-1].rate
}

// totalRate sums block costs at threshold lambda.
func (a *allocator) totalRate(lambda float64) int {
	total := 0
	for _, b := range a.blocks {
		total += b.rateAt(b.selectAt(lambda))
	}
	return total
}

// layer selects one layer's truncations. budget <= 0 means unbounded:
// every remaining pass is included.
func (a *allocator) layer(ctx context.Context, budget int) ([]int, error) {
	counts := make([]int, len(a.blocks))

	if budget <= 0 {
		for i, b := range a.blocks {
			counts[i] = len(b.passes)
			b.locked = counts[i]
		}
		return counts, nil
	}

	// The locked prefix may already exceed the budget; layers are
	// monotone, so it stays.
	if a.totalRate(maxLambda(a.blocks)+1) >= budget {
		for i, b := range a.blocks {
			counts[i] = b.locked
		}
		return counts, nil
	}

	lo, hi := 0.0, maxLambda(a.blocks)+1
	for iter := 0; iter < 64; iter++ {
		if err := checkCancel(ctx); err != nil {
			return nil, err
		}
		mid := (lo + hi) / 2
		r := a.totalRate(mid)
		if r <= budget {
			hi = mid
			if budget > 0 && float64(budget-r) <= a.tol*float64(budget) {
				break
			}
		} else {
			lo = mid
		}
	}

	for i, b := range a.blocks {
		counts[i] = b.selectAt(hi)
		b.locked = counts[i]
	}
	return counts, nil
}

func maxLambda(blocks []*blockRD) float64 {
	m := 0.0
	for _, b := range blocks {
		for _, pt := range b.hull {
			if pt.slope > m {
				m = pt.slope
			}
		}
	}
	return m
}

func checkCancel(ctx context.Context) error {
	if ctx == nil {
		return nil
	}
	select {
	case <-ctx.Done():
		return codestream.Cancelledf("%v", ctx.Err())
	default:
		return nil
	}
}

// allocateLayers distributes passes over quality layers. budgets holds
// one cumulative byte budget per layer; non-positive entries are
// unbounded. The result is written into each block's LayerPasses.
func allocateLayers(ctx context.Context, blocks []*t2.CodeBlock, budgets []int, tol float64) error {
	rd := make([][]passInfo, len(blocks))
	for i, cb := range blocks {
		passes := make([]passInfo, len(cb.Passes))
		for j, p := range cb.Passes {
			passes[j] = passInfo{rate: p.CumLen, dist: p.Distortion}
		}
		rd[i] = passes
	}

	a := newAllocator(rd, tol)
	numLayers := len(budgets)
	layerCounts := make([][]int, numLayers)
	for l := 0; l < numLayers; l++ {
		counts, err := a.layer(ctx, budgets[l])
		if err != nil {
			return err
		}
		layerCounts[l] = counts
	}

	for i, cb := range blocks {
		cb.LayerPasses = make([]int, numLayers)
		for l := 0; l < numLayers; l++ {
			cb.LayerPasses[l] = layerCounts[l][i]
		}
	}
	return nil
}

// layerBudgets derives cumulative per-layer budgets. An explicit list
// wins; otherwise a target byte count is split with a slightly convex
// ramp, and without rate control every layer but the last gets a share
// of the actual total so earlier layers stay useful, while the last is
// unbounded.
func layerBudgets(p *EncodeParams, totalBytes int, pixelBytes int) []int {
	budgets := make([]int, p.NumLayers)
	if len(p.LayerBytes) > 0 {
		copy(budgets, p.LayerBytes)
		return budgets
	}

	target := 0
	if p.TargetRatio > 0 {
		target = int(float64(pixelBytes) / p.TargetRatio)
	}

	final := target
	if final <= 0 {
		final = 0 // unbounded last layer
	}
	for l := 0; l < p.NumLayers; l++ {
		if l == p.NumLayers-1 {
			budgets[l] = final
			continue
		}
		base := target
		if base <= 0 {
			base = totalBytes
		}
		frac := float64(l+1) / float64(p.NumLayers)
		budgets[l] = int(float64(base) * frac * frac * 0.9)
		if budgets[l] < 1 {
			budgets[l] = 1
		}
	}
	return budgets
}
