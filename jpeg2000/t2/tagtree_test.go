package t2

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTagTreeFullRoundTrip(t *testing.T) {
	grids := []struct{ w, h int }{{1, 1}, {2, 2}, {3, 2}, {4, 4}, {5, 3}, {7, 7}}
	for _, grid := range grids {
		values := make([]int, grid.w*grid.h)
		for i := range values {
			values[i] = (i*7 + 3) % 6
		}

		enc := NewTagTree(grid.w, grid.h)
		for y := 0; y < grid.h; y++ {
			for x := 0; x < grid.w; x++ {
				enc.SetValue(x, y, values[y*grid.w+x])
			}
		}
		bw := newBitWriter()
		for y := 0; y < grid.h; y++ {
			for x := 0; x < grid.w; x++ {
				enc.Encode(bw, x, y, values[y*grid.w+x]+1)
			}
		}
		data := bw.finish()

		dec := NewTagTree(grid.w, grid.h)
		br := newBitReader(data)
		for y := 0; y < grid.h; y++ {
			for x := 0; x < grid.w; x++ {
				v, err := dec.DecodeFull(br, x, y)
				require.NoError(t, err)
				assert.Equal(t, values[y*grid.w+x], v, "leaf (%d,%d) in %dx%d grid", x, y, grid.w, grid.h)
			}
		}
	}
}

// Layered thresholds: the decoder must resume where the previous layer's
// walk stopped, mirroring the encoder's persistent node state.
func TestTagTreeLayeredThresholds(t *testing.T) {
	const w, h = 3, 3
	values := []int{0, 2, 1, 4, 0, 3, 2, 1, 5}
	maxVal := 5

	enc := NewTagTree(w, h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			enc.SetValue(x, y, values[y*w+x])
		}
	}

	bw := newBitWriter()
	for threshold := 1; threshold <= maxVal+1; threshold++ {
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				enc.Encode(bw, x, y, threshold)
			}
		}
	}
	data := bw.finish()

	dec := NewTagTree(w, h)
	br := newBitReader(data)
	pinned := make(map[int]int)
	for threshold := 1; threshold <= maxVal+1; threshold++ {
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				v, err := dec.Decode(br, x, y, threshold)
				require.NoError(t, err)
				want := values[y*w+x]
				if want < threshold {
					assert.Equal(t, want, v)
					pinned[y*w+x] = v
				} else {
					assert.Equal(t, threshold, v, "undetermined leaf must report the threshold")
				}
			}
		}
	}
	assert.Len(t, pinned, w*h, "all leaves pinned after the final threshold")
}

func TestTagTreeReset(t *testing.T) {
	tree := NewTagTree(2, 2)
	tree.SetValue(0, 0, 3)
	tree.Reset()

	bw := newBitWriter()
	tree.SetValue(0, 0, 0)
	tree.SetValue(1, 0, 0)
	tree.SetValue(0, 1, 0)
	tree.SetValue(1, 1, 0)
	tree.Encode(bw, 0, 0, 1)
	data := bw.finish()
	require.NotEmpty(t, data)
}
