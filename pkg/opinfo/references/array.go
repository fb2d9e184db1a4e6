// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package references implements reference functions (opinfo.ReferenceFunc) for the operators of the catalogue,
// computed on plain float64 arrays with gonum, independently of the library under test.
//
// The tested library and gonum disagree on a few things, which the references correct explicitly:
//
//   - Type promotion: the result dtype is computed with the rules of the tested library (see
//     dtypesets.ResultType), and operands are cast to it before computing.
//   - Precision: everything is computed in float64, and rounded to the result dtype with Cast, which follows
//     the conversion rules of the tested library (integers truncate and wrap around, bool is value != 0).
//   - keepdim: reductions reinsert the reduced axes with size 1 when keepdim is set.
//
// References that don't cover some sample return opinfo.ErrNoReference for it.
package references

import (
	"fmt"
	"math"
	"slices"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/gopjrt/dtypes/bfloat16"
	"github.com/gomlx/opinfo/pkg/core/shapes"
	"github.com/gomlx/opinfo/pkg/core/tensorlib"
	"github.com/gomlx/opinfo/pkg/opinfo"
	"github.com/gomlx/opinfo/pkg/support/xslices"
	"github.com/pkg/errors"
	"github.com/x448/float16"
	"golang.org/x/exp/constraints"
)

// Array is a dense, row-major, multi-dimensional array of values stored as float64, with the dtype they
// represent. It implements opinfo.Result.
type Array struct {
	Dims  []int
	DType dtypes.DType
	Data  []float64
}

// NewArray creates an Array with the given values, which are not copied.
func NewArray(dtype dtypes.DType, values []float64, dims ...int) *Array {
	if len(values) != xslices.Prod(dims) {
		panic(errors.Errorf("references.NewArray: %d values given for dims %v", len(values), dims))
	}
	return &Array{Dims: slices.Clone(dims), DType: dtype, Data: values}
}

// FromTensor returns the values of t (dense, even for sparse tensors) as an Array.
func FromTensor(t tensorlib.Tensor) *Array {
	return &Array{Dims: t.Dims(), DType: t.DType(), Data: t.Values()}
}

// Shape implements shapes.HasShape.
func (a *Array) Shape() shapes.Shape {
	return shapes.Make(a.DType, a.Dims...)
}

// Values implements opinfo.Result. It returns the Data itself, not a copy.
func (a *Array) Values() []float64 { return a.Data }

// Rank is the number of axes.
func (a *Array) Rank() int { return len(a.Dims) }

// Size is the number of elements.
func (a *Array) Size() int { return len(a.Data) }

// String implements fmt.Stringer.
func (a *Array) String() string {
	return fmt.Sprintf("(%s)%v: %v", a.DType, a.Dims, a.Data)
}

// Cast returns a copy of a converted to dtype.
func Cast(a *Array, dtype dtypes.DType) *Array {
	data := slices.Clone(a.Data)
	castAll(dtype, data)
	return &Array{Dims: slices.Clone(a.Dims), DType: dtype, Data: data}
}

// castAll rounds the values in-place to the nearest value representable by dtype.
func castAll(dtype dtypes.DType, values []float64) {
	if dtype == dtypes.Float64 {
		return
	}
	for ii, v := range values {
		values[ii] = CastValue(dtype, v)
	}
}

// CastValue converts one value to dtype: floating point values are rounded to nearest, integers are truncated
// towards zero and wrap around (NaN and infinities become 0), and bool is value != 0.
func CastValue(dtype dtypes.DType, v float64) float64 {
	switch dtype {
	case dtypes.Float64:
		return v
	case dtypes.Float32:
		return float64(float32(v))
	case dtypes.Float16:
		return float64(float16.Fromfloat32(float32(v)).Float32())
	case dtypes.BFloat16:
		return float64(bfloat16.FromFloat32(float32(v)).Float32())
	case dtypes.Bool:
		if v != 0 {
			return 1
		}
		return 0
	case dtypes.Int8:
		return truncateTo[int8](v)
	case dtypes.Int16:
		return truncateTo[int16](v)
	case dtypes.Int32:
		return truncateTo[int32](v)
	case dtypes.Int64:
		return truncateTo[int64](v)
	case dtypes.Uint8:
		return truncateTo[uint8](v)
	case dtypes.Uint16:
		return truncateTo[uint16](v)
	case dtypes.Uint32:
		return truncateTo[uint32](v)
	case dtypes.Uint64:
		return truncateTo[uint64](v)
	}
	panic(errors.Errorf("references.CastValue: dtype %s not supported", dtype))
}

func truncateTo[T constraints.Integer](v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return float64(T(int64(v)))
}

// broadcastTo returns the values of a broadcast to the target dims, in row-major order.
func (a *Array) broadcastTo(target []int) []float64 {
	if slices.Equal(a.Dims, target) {
		return slices.Clone(a.Data)
	}
	strides := shapes.BroadcastStrides(a.Dims, shapes.Strides(a.Dims), target)
	values := make([]float64, 0, xslices.Prod(target))
	for indices := range shapes.IterDims(target) {
		values = append(values, a.Data[shapes.FlatIndex(indices, strides, 0)])
	}
	return values
}

// at returns the element at the given indices.
func (a *Array) at(indices []int) float64 {
	return a.Data[shapes.FlatIndex(indices, shapes.Strides(a.Dims), 0)]
}

// lanes splits the values of a along axis: it returns one lane (the values obtained varying only the index
// on axis) per position of the other axes, in row-major order. A scalar is one lane with one element.
func (a *Array) lanes(axis int) [][]float64 {
	if a.Rank() == 0 {
		return [][]float64{slices.Clone(a.Data)}
	}
	otherDims := slices.Clone(a.Dims)
	otherDims[axis] = 1
	strides := shapes.Strides(a.Dims)
	var lanes [][]float64
	for indices := range shapes.IterDims(otherDims) {
		start := shapes.FlatIndex(indices, strides, 0)
		lane := make([]float64, a.Dims[axis])
		for ii := range lane {
			lane[ii] = a.Data[start+ii*strides[axis]]
		}
		lanes = append(lanes, lane)
	}
	return lanes
}

// fromLanes is the inverse of lanes: it builds an Array with dims, except that axis has size laneLen, from the
// lanes in row-major order of the other axes.
func fromLanes(dtype dtypes.DType, dims []int, axis, laneLen int, lanes [][]float64) *Array {
	if len(dims) == 0 {
		return NewArray(dtype, lanes[0])
	}
	outDims := slices.Clone(dims)
	outDims[axis] = laneLen
	values := make([]float64, xslices.Prod(outDims))
	strides := shapes.Strides(outDims)
	otherDims := slices.Clone(outDims)
	otherDims[axis] = 1
	ii := 0
	for indices := range shapes.IterDims(otherDims) {
		start := shapes.FlatIndex(indices, strides, 0)
		for jj, v := range lanes[ii] {
			values[start+jj*strides[axis]] = v
		}
		ii++
	}
	return NewArray(dtype, values, outDims...)
}

// results wraps arrays as the return value of a ReferenceFunc.
func results(arrays ...*Array) ([]opinfo.Result, error) {
	out := make([]opinfo.Result, len(arrays))
	for ii, a := range arrays {
		out[ii] = a
	}
	return out, nil
}
