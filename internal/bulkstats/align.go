package bulkstats

import (
	"github.com/kelcyno/tobac/internal/grid"
)

// plan is the result of aligning every field with the mask. It is built
// once per Compute call and only read afterwards, so frames can be
// processed concurrently.
//
// The common space is the mask's spatial dims (minus collapsed dims)
// followed by the extra dims of all fields in first-appearance order. Each
// field is described by flat offsets over that space; an axis the field
// lacks has stride 0, which repeats the field along it.
type plan struct {
	maskData       []int64
	maskTimeOffset []int // per mask frame
	// maskCells holds the in-frame offset of every spatial cell of the mask,
	// row-major over all spatial dims including collapsed ones.
	maskCells []int
	// project maps a maskCells index to a cell of the common spatial space.
	// nil when no dims are collapsed (identity).
	project []int

	spatialDims  []string
	spatialShape []int
	extraDims    []string
	extraShape   []int

	fields []fieldPlan
}

type fieldPlan struct {
	data []float64
	// timeOffset is indexed by mask frame; nil for a time-invariant field.
	// Frames not referenced by the table hold -1.
	timeOffset []int
	cells      []int // per common spatial cell
	extras     []int // per extra-dim combination
}

// newPlan aligns fields with mask for the given frames. Every problem is
// reported as an *AlignmentError before any row is processed.
func newPlan(mask *grid.Labels, fields []*grid.Field, frames []int, timeDim string, collapse []string) (*plan, error) {
	if !mask.HasDim(timeDim) {
		return nil, alignErr(-1, timeDim, "mask has no time dimension")
	}
	nFrames := mask.DimSize(timeDim)
	for _, f := range frames {
		if f < 0 || f >= nFrames {
			return nil, alignErr(-1, timeDim, "frame %d out of range, mask has %d frames", f, nFrames)
		}
	}

	collapsed := make(map[string]bool, len(collapse))
	for _, d := range collapse {
		if d == timeDim || !mask.HasDim(d) {
			return nil, alignErr(-1, d, "cannot collapse: not a spatial dimension of the mask")
		}
		collapsed[d] = true
	}

	p := &plan{maskData: mask.Data()}

	// Mask spatial space, full and projected.
	var fullShape, fullStrides, projectStrides []int
	for _, d := range mask.Dims() {
		if d == timeDim {
			continue
		}
		fullShape = append(fullShape, mask.DimSize(d))
		fullStrides = append(fullStrides, mask.DimStride(d))
		if !collapsed[d] {
			p.spatialDims = append(p.spatialDims, d)
			p.spatialShape = append(p.spatialShape, mask.DimSize(d))
		}
	}
	p.maskCells = grid.Offsets(fullShape, fullStrides)
	if len(collapsed) > 0 {
		strides := rowMajor(p.spatialShape)
		k := 0
		for _, d := range mask.Dims() {
			if d == timeDim {
				continue
			}
			if collapsed[d] {
				projectStrides = append(projectStrides, 0)
				continue
			}
			projectStrides = append(projectStrides, strides[k])
			k++
		}
		p.project = grid.Offsets(fullShape, projectStrides)
	}

	p.maskTimeOffset = make([]int, nFrames)
	for f := range p.maskTimeOffset {
		p.maskTimeOffset[f] = f * mask.DimStride(timeDim)
	}

	// Union of extra dims across all fields.
	extraCoords := make(map[string]grid.Coord)
	for i, fld := range fields {
		for _, d := range fld.Dims() {
			if d == timeDim || indexOf(p.spatialDims, d) >= 0 {
				continue
			}
			size := fld.DimSize(d)
			c, hasCoord := fld.Coord(d)
			if j := indexOf(p.extraDims, d); j >= 0 {
				if p.extraShape[j] != size {
					return nil, alignErr(i, d, "ambiguous broadcast: size %d conflicts with size %d in another field", size, p.extraShape[j])
				}
				if prev, ok := extraCoords[d]; ok && hasCoord && !prev.Equal(c) {
					return nil, alignErr(i, d, "ambiguous broadcast: coordinates differ from another field")
				}
			} else {
				p.extraDims = append(p.extraDims, d)
				p.extraShape = append(p.extraShape, size)
			}
			if _, ok := extraCoords[d]; !ok && hasCoord {
				extraCoords[d] = c
			}
		}
	}

	maskTime, maskHasTimeCoord := mask.Coord(timeDim)
	for i, fld := range fields {
		fp := fieldPlan{data: fld.Data()}

		spatialStrides := make([]int, len(p.spatialDims))
		for j, d := range p.spatialDims {
			if !fld.HasDim(d) {
				continue
			}
			if fld.DimSize(d) != p.spatialShape[j] {
				return nil, alignErr(i, d, "size %d does not match mask size %d", fld.DimSize(d), p.spatialShape[j])
			}
			fc, fok := fld.Coord(d)
			mc, mok := mask.Coord(d)
			if fok && mok && !fc.Equal(mc) {
				return nil, alignErr(i, d, "coordinate values do not match the mask")
			}
			spatialStrides[j] = fld.DimStride(d)
		}
		fp.cells = grid.Offsets(p.spatialShape, spatialStrides)

		extraStrides := make([]int, len(p.extraDims))
		for j, d := range p.extraDims {
			extraStrides[j] = fld.DimStride(d)
		}
		fp.extras = grid.Offsets(p.extraShape, extraStrides)

		if fld.HasDim(timeDim) {
			fieldTime, fieldHasTimeCoord := fld.Coord(timeDim)
			stride := fld.DimStride(timeDim)
			fp.timeOffset = make([]int, nFrames)
			for f := range fp.timeOffset {
				fp.timeOffset[f] = -1
			}
			for _, f := range frames {
				var idx int
				switch {
				case maskHasTimeCoord && fieldHasTimeCoord:
					idx = fieldTime.IndexOf(maskTime, f)
					if idx < 0 {
						return nil, alignErr(i, timeDim, "no time coordinate matching %s (frame %d)", maskTime.String(f), f)
					}
				case !maskHasTimeCoord && !fieldHasTimeCoord:
					if fld.DimSize(timeDim) != nFrames {
						return nil, alignErr(i, timeDim, "%d time steps without coordinates cannot match %d mask frames", fld.DimSize(timeDim), nFrames)
					}
					idx = f
				default:
					return nil, alignErr(i, timeDim, "only one of mask and field has time coordinates")
				}
				fp.timeOffset[f] = idx * stride
			}
		}
		p.fields = append(p.fields, fp)
	}
	return p, nil
}

// gather returns the field values of the given common spatial cells crossed
// with every extra-dim combination, extra dims varying fastest.
func (fp *fieldPlan) gather(frame int, cells []int) []float64 {
	base := 0
	if fp.timeOffset != nil {
		base = fp.timeOffset[frame]
	}
	out := make([]float64, 0, len(cells)*len(fp.extras))
	for _, c := range cells {
		off := base + fp.cells[c]
		for _, e := range fp.extras {
			out = append(out, fp.data[off+e])
		}
	}
	return out
}

func rowMajor(shape []int) []int {
	strides := make([]int, len(shape))
	acc := 1
	for i := len(shape) - 1; i >= 0; i-- {
		strides[i] = acc
		acc *= shape[i]
	}
	return strides
}

func indexOf(names []string, name string) int {
	for i, n := range names {
		if n == name {
			return i
		}
	}
	return -1
}
