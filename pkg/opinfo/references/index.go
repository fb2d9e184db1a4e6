// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package references

import (
	"slices"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/opinfo/pkg/core/shapes"
	"github.com/gomlx/opinfo/pkg/core/tensorlib"
	"github.com/gomlx/opinfo/pkg/opinfo"
	"github.com/gomlx/opinfo/pkg/support/xslices"
)

// atLeast1D returns the dims of a, with a scalar taken as a vector of one element.
func atLeast1D(a *Array) []int {
	if a.Rank() == 0 {
		return []int{1}
	}
	return a.Dims
}

// normalizedIndices converts index values to positions in [0, size).
func normalizedIndices(values []float64, size int) ([]int, error) {
	indices := make([]int, len(values))
	for ii, v := range values {
		idx := int(v)
		if idx < -size || idx >= size {
			return nil, noReference("index %d out of range for size %d", idx, size)
		}
		if idx < 0 {
			idx += size
		}
		indices[ii] = idx
	}
	return indices, nil
}

// scalarFill parses a fill value given as a Go scalar or as a tensor with one element, converted to dtype.
func scalarFill(sample *opinfo.SampleInput, pos int, name string, dtype dtypes.DType) (float64, error) {
	v, found := param(sample, pos, name)
	if !found {
		return 0, noReference("missing argument %q", name)
	}
	if t, ok := v.(tensorlib.Tensor); ok && t.Rank() != 0 {
		return 0, noReference("argument %q of shape %s", name, t.Shape())
	}
	value, err := floatParam(sample, pos, name, 0)
	if err != nil {
		return 0, err
	}
	return CastValue(dtype, value), nil
}

// IndexKind selects the operator of the index family reproduced by Index.
type IndexKind int

const (
	IndexSelect IndexKind = iota
	IndexAdd
	IndexCopy
	IndexFill
)

// Index returns the reference of the index family, which work on the slices of input along dim selected
// by the vector index:
//
//   - index_select(input, dim, index)
//   - index_add(input, dim, index, source, alpha=1)
//   - index_copy(input, dim, index, source)
//   - index_fill(input, dim, index, value)
func Index(kind IndexKind) opinfo.ReferenceFunc {
	return func(sample *opinfo.SampleInput) ([]opinfo.Result, error) {
		x, err := input(sample)
		if err != nil {
			return nil, err
		}
		axis, err := axisParam(sample, 0, "dim", 0, x.Rank())
		if err != nil {
			return nil, err
		}
		index, err := tensorParam(sample, 1, "index")
		if err != nil {
			return nil, err
		}
		if index.Rank() > 1 {
			return nil, noReference("index of shape %s", index.Shape())
		}
		dims := atLeast1D(x)
		indices, err := normalizedIndices(index.Data, dims[axis])
		if err != nil {
			return nil, err
		}
		strides := shapes.Strides(dims)
		selectedDims := slices.Clone(dims)
		selectedDims[axis] = len(indices)
		position := make([]int, len(dims))
		flatPositions := func(yield func(flat int) bool) {
			for selected := range shapes.IterDims(selectedDims) {
				copy(position, selected)
				position[axis] = indices[selected[axis]]
				if !yield(shapes.FlatIndex(position, strides, 0)) {
					return
				}
			}
		}

		if kind == IndexSelect {
			values := make([]float64, 0, xslices.Prod(selectedDims))
			for flat := range flatPositions {
				values = append(values, x.Data[flat])
			}
			if x.Rank() == 0 && index.Rank() == 0 {
				selectedDims = nil
			}
			return results(NewArray(x.DType, values, selectedDims...))
		}

		var update func(ii int, old float64) float64
		if kind == IndexFill {
			fill, err := scalarFill(sample, 2, "value", x.DType)
			if err != nil {
				return nil, err
			}
			update = func(int, float64) float64 { return fill }
		} else {
			source, err := tensorParam(sample, 2, "source")
			if err != nil {
				return nil, err
			}
			if source.DType != x.DType || source.Size() != xslices.Prod(selectedDims) {
				return nil, noReference("source %s for %d indices of %s", source.Shape(), len(indices), x.Shape())
			}
			alpha := 1.0
			if kind == IndexAdd {
				if alpha, err = floatParam(sample, 3, "alpha", 1); err != nil {
					return nil, err
				}
			}
			update = func(ii int, old float64) float64 {
				if kind == IndexAdd {
					return old + alpha*source.Data[ii]
				}
				return source.Data[ii]
			}
		}
		values := slices.Clone(x.Data)
		ii := 0
		for flat := range flatPositions {
			values[flat] = update(ii, values[flat])
			ii++
		}
		castAll(x.DType, values)
		return results(NewArray(x.DType, values, x.Dims...))
	}
}

// gatherParams parses the (input, dim, index) arguments of the gather family.
func gatherParams(sample *opinfo.SampleInput) (x *Array, axis int, index *Array, err error) {
	if x, err = input(sample); err != nil {
		return
	}
	if axis, err = axisParam(sample, 0, "dim", 0, x.Rank()); err != nil {
		return
	}
	if index, err = tensorParam(sample, 1, "index"); err != nil {
		return
	}
	if index.DType != dtypes.Int64 || len(atLeast1D(index)) != len(atLeast1D(x)) {
		err = noReference("index %s for input %s", index.Shape(), x.Shape())
	}
	return
}

// Gather is the reference of gather(input, dim, index): out[i][j] = input[index[i][j]][j] for dim=0.
func Gather(sample *opinfo.SampleInput) ([]opinfo.Result, error) {
	x, axis, index, err := gatherParams(sample)
	if err != nil {
		return nil, err
	}
	xDims := atLeast1D(x)
	indices, err := normalizedIndices(index.Data, xDims[axis])
	if err != nil {
		return nil, err
	}
	values := make([]float64, 0, len(indices))
	source := make([]int, len(xDims))
	ii := 0
	for position := range shapes.IterDims(atLeast1D(index)) {
		copy(source, position)
		source[axis] = indices[ii]
		ii++
		values = append(values, x.Data[shapes.FlatIndex(source, shapes.Strides(xDims), 0)])
	}
	return results(NewArray(x.DType, values, index.Dims...))
}

// Scatter returns the reference of scatter(input, dim, index, src) or, if add is set, of
// scatter_add(input, dim, index, src): input[index[i][j]][j] = src[i][j] (or +=) for dim=0.
// scatter also accepts a Go scalar src.
func Scatter(add bool) opinfo.ReferenceFunc {
	return func(sample *opinfo.SampleInput) ([]opinfo.Result, error) {
		x, axis, index, err := gatherParams(sample)
		if err != nil {
			return nil, err
		}
		src, err := operandParam(sample, 2, "src")
		if err != nil {
			return nil, err
		}
		if src == nil || (add && src.array == nil) || (src.array != nil && src.array.DType != x.DType) {
			return nil, noReference("src for %s", x.Shape())
		}
		xDims := atLeast1D(x)
		indices, err := normalizedIndices(index.Data, xDims[axis])
		if err != nil {
			return nil, err
		}
		var srcStrides []int
		var scalar float64
		if src.array != nil {
			srcStrides = shapes.Strides(atLeast1D(src.array))
		} else {
			scalar, _ = toFloat(src.scalar)
			scalar = CastValue(x.DType, scalar)
		}
		values := slices.Clone(x.Data)
		xStrides := shapes.Strides(xDims)
		target := make([]int, len(xDims))
		ii := 0
		for position := range shapes.IterDims(atLeast1D(index)) {
			value := scalar
			if src.array != nil {
				value = src.array.Data[shapes.FlatIndex(position, srcStrides, 0)]
			}
			copy(target, position)
			target[axis] = indices[ii]
			ii++
			flat := shapes.FlatIndex(target, xStrides, 0)
			if add {
				values[flat] += value
			} else {
				values[flat] = value
			}
		}
		castAll(x.DType, values)
		return results(NewArray(x.DType, values, x.Dims...))
	}
}

// MaskedFill is the reference of masked_fill(input, mask, value): value where the broadcast mask is set.
func MaskedFill(sample *opinfo.SampleInput) ([]opinfo.Result, error) {
	x, err := input(sample)
	if err != nil {
		return nil, err
	}
	mask, err := tensorParam(sample, 0, "mask")
	if err != nil {
		return nil, err
	}
	if mask.DType != dtypes.Bool {
		return nil, noReference("mask of dtype %s", mask.DType)
	}
	fill, err := scalarFill(sample, 1, "value", x.DType)
	if err != nil {
		return nil, err
	}
	dims, values, err := broadcastOperands(x.DType, &operand{array: x}, &operand{array: mask})
	if err != nil {
		return nil, err
	}
	out := values[0]
	for ii, m := range values[1] {
		if m != 0 {
			out[ii] = fill
		}
	}
	return results(NewArray(x.DType, out, dims...))
}
