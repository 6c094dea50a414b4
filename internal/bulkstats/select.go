package bulkstats

import "slices"

// regions maps every label of one frame to its cells in the common spatial
// space, ascending.
type regions map[int64][]int

// indexFrame scans the mask slice of one frame once. Labels <= 0 are
// background. With collapsed dims a projected cell is listed once per label
// that occurs anywhere along the collapsed axes.
func (p *plan) indexFrame(frame int) regions {
	base := p.maskTimeOffset[frame]
	r := make(regions)
	for c, off := range p.maskCells {
		label := p.maskData[base+off]
		if label <= 0 {
			continue
		}
		cell := c
		if p.project != nil {
			cell = p.project[c]
		}
		r[label] = append(r[label], cell)
	}
	if p.project != nil {
		for label, cells := range r {
			slices.Sort(cells)
			r[label] = slices.Compact(cells)
		}
	}
	return r
}

// Select returns the cells labeled with feature, or nil when the label does
// not occur in the frame. An empty selection is not an error here.
func (r regions) Select(feature int64) []int {
	return r[feature]
}
