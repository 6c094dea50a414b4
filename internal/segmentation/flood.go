package segmentation

// spatialGrid walks the spatial cells of one frame in row-major order.
type spatialGrid struct {
	shape   []int
	strides []int // row-major strides over shape
	offsets []int // in-frame field offset of each cell
}

func newGrid(shape, offsets []int) *spatialGrid {
	strides := make([]int, len(shape))
	acc := 1
	for i := len(shape) - 1; i >= 0; i-- {
		strides[i] = acc
		acc *= shape[i]
	}
	return &spatialGrid{shape: shape, strides: strides, offsets: offsets}
}

func (g *spatialGrid) index(pos []int) int {
	idx := 0
	for i, p := range pos {
		idx += p * g.strides[i]
	}
	return idx
}

// fill visits cells face-connected to seed breadth first. claim is called
// for every neighbour reached, including cells already taken, and reports
// whether the cell joins the region; only cells it accepts are expanded.
// It returns the number of accepted cells.
func (g *spatialGrid) fill(seed int, claim func(cell int) bool) int {
	if !claim(seed) {
		return 0
	}
	n := 1
	queue := []int{seed}
	for len(queue) > 0 {
		cell := queue[0]
		queue = queue[1:]
		rem := cell
		for axis, stride := range g.strides {
			coord := rem / stride
			rem %= stride
			if coord > 0 && claim(cell-stride) {
				queue = append(queue, cell-stride)
				n++
			}
			if coord < g.shape[axis]-1 && claim(cell+stride) {
				queue = append(queue, cell+stride)
				n++
			}
		}
	}
	return n
}
