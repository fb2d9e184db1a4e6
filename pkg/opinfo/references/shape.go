// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package references

import (
	"slices"

	"github.com/gomlx/opinfo/pkg/core/dtypesets"
	"github.com/gomlx/opinfo/pkg/core/shapes"
	"github.com/gomlx/opinfo/pkg/opinfo"
	"github.com/gomlx/opinfo/pkg/support/xslices"
)

// reshapedTo returns x with new dims of the same size, and the values untouched.
func reshapedTo(x *Array, dims []int) ([]opinfo.Result, error) {
	if xslices.Prod(dims) != x.Size() {
		return nil, noReference("reshape of %s to %v", x.Shape(), dims)
	}
	return results(NewArray(x.DType, x.Data, dims...))
}

// Reshape is the reference of reshape(input, shape), where one dimension of shape may be -1.
func Reshape(sample *opinfo.SampleInput) ([]opinfo.Result, error) {
	x, err := input(sample)
	if err != nil {
		return nil, err
	}
	dims, err := intsParam(sample, 0, "shape")
	if err != nil {
		return nil, err
	}
	if idx := slices.Index(dims, -1); idx >= 0 {
		known := -xslices.Prod(dims)
		if known <= 0 || x.Size()%known != 0 {
			return nil, noReference("reshape of %s to %v", x.Shape(), dims)
		}
		dims[idx] = x.Size() / known
	}
	return reshapedTo(x, dims)
}

// Transpose is the reference of transpose(input, dim0, dim1).
func Transpose(sample *opinfo.SampleInput) ([]opinfo.Result, error) {
	x, err := input(sample)
	if err != nil {
		return nil, err
	}
	dim0, err := axisParam(sample, 0, "dim0", 0, x.Rank())
	if err != nil {
		return nil, err
	}
	dim1, err := axisParam(sample, 1, "dim1", 0, x.Rank())
	if err != nil {
		return nil, err
	}
	if x.Rank() == 0 {
		return results(x)
	}
	perm := xslices.Iota(0, x.Rank())
	perm[dim0], perm[dim1] = perm[dim1], perm[dim0]
	return results(permuteAxes(x, perm))
}

// Permute is the reference of permute(input, dims).
func Permute(sample *opinfo.SampleInput) ([]opinfo.Result, error) {
	x, err := input(sample)
	if err != nil {
		return nil, err
	}
	order, err := intsParam(sample, 0, "dims")
	if err != nil {
		return nil, err
	}
	if len(order) != x.Rank() {
		return nil, noReference("permute of %s with %v", x.Shape(), order)
	}
	perm, err := shapes.NormalizeAxes(order, x.Rank())
	if err != nil {
		return nil, noReference("invalid dims: %v", err)
	}
	return results(permuteAxes(x, perm))
}

// Squeeze is the reference of squeeze(input, dim=None).
func Squeeze(sample *opinfo.SampleInput) ([]opinfo.Result, error) {
	x, err := input(sample)
	if err != nil {
		return nil, err
	}
	dimList, err := intsParam(sample, 0, "dim")
	if err != nil {
		return nil, err
	}
	axes := xslices.Iota(0, x.Rank())
	if dimList != nil {
		if axes, err = shapes.NormalizeAxes(dimList, x.Rank()); err != nil {
			return nil, noReference("invalid dims: %v", err)
		}
	}
	dims := []int{}
	for axis, dim := range x.Dims {
		if dim != 1 || !slices.Contains(axes, axis) {
			dims = append(dims, dim)
		}
	}
	return reshapedTo(x, dims)
}

// Unsqueeze is the reference of unsqueeze(input, dim), dim in [-rank-1, rank].
func Unsqueeze(sample *opinfo.SampleInput) ([]opinfo.Result, error) {
	x, err := input(sample)
	if err != nil {
		return nil, err
	}
	axis, err := axisParam(sample, 0, "dim", 0, x.Rank()+1)
	if err != nil {
		return nil, err
	}
	return reshapedTo(x, slices.Insert(slices.Clone(x.Dims), axis, 1))
}

// Flatten is the reference of flatten(input, start_dim=0, end_dim=-1).
func Flatten(sample *opinfo.SampleInput) ([]opinfo.Result, error) {
	x, err := input(sample)
	if err != nil {
		return nil, err
	}
	if x.Rank() == 0 {
		return reshapedTo(x, []int{1})
	}
	start, err := axisParam(sample, 0, "start_dim", 0, x.Rank())
	if err != nil {
		return nil, err
	}
	end, err := axisParam(sample, 1, "end_dim", -1, x.Rank())
	if err != nil {
		return nil, err
	}
	if start > end {
		return nil, noReference("flatten from %d to %d", start, end)
	}
	dims := slices.Clone(x.Dims[:start])
	dims = append(dims, xslices.Prod(x.Dims[start:end+1]))
	dims = append(dims, x.Dims[end+1:]...)
	return reshapedTo(x, dims)
}

// Flip is the reference of flip(input, dims).
func Flip(sample *opinfo.SampleInput) ([]opinfo.Result, error) {
	x, err := input(sample)
	if err != nil {
		return nil, err
	}
	dimList, err := intsParam(sample, 0, "dims")
	if err != nil {
		return nil, err
	}
	axes, err := shapes.NormalizeAxes(dimList, x.Rank())
	if err != nil {
		return nil, noReference("invalid dims: %v", err)
	}
	if x.Rank() == 0 {
		return results(x)
	}
	values := make([]float64, 0, x.Size())
	source := make([]int, x.Rank())
	for indices := range shapes.IterDims(x.Dims) {
		copy(source, indices)
		for _, axis := range axes {
			source[axis] = x.Dims[axis] - 1 - indices[axis]
		}
		values = append(values, x.at(source))
	}
	return results(NewArray(x.DType, values, x.Dims...))
}

// Expand is the reference of expand(input, sizes), where -1 keeps the dimension: it broadcasts input to sizes.
func Expand(sample *opinfo.SampleInput) ([]opinfo.Result, error) {
	x, err := input(sample)
	if err != nil {
		return nil, err
	}
	sizes, err := intsParam(sample, 0, "sizes")
	if err != nil {
		return nil, err
	}
	if len(sizes) < x.Rank() {
		return nil, noReference("expand of %s to %v", x.Shape(), sizes)
	}
	offset := len(sizes) - x.Rank()
	dims := slices.Clone(sizes)
	for axis := offset; axis < len(dims); axis++ {
		if dims[axis] == -1 {
			dims[axis] = x.Dims[axis-offset]
		}
	}
	if broadcast, err := shapes.BroadcastDims(x.Dims, dims); err != nil || !slices.Equal(broadcast, dims) {
		return nil, noReference("expand of %s to %v", x.Shape(), sizes)
	}
	return results(NewArray(x.DType, x.broadcastTo(dims), dims...))
}

// Narrow is the reference of narrow(input, dim, start, length).
func Narrow(sample *opinfo.SampleInput) ([]opinfo.Result, error) {
	x, err := input(sample)
	if err != nil {
		return nil, err
	}
	if x.Rank() == 0 {
		return nil, noReference("narrow of a scalar")
	}
	axis, err := axisParam(sample, 0, "dim", 0, x.Rank())
	if err != nil {
		return nil, err
	}
	start, err := intParam(sample, 1, "start", 0)
	if err != nil {
		return nil, err
	}
	length, err := intParam(sample, 2, "length", -1)
	if err != nil {
		return nil, err
	}
	dim := x.Dims[axis]
	if start < 0 {
		start += dim
	}
	if start < 0 || length < 0 || start+length > dim {
		return nil, noReference("narrow of %s from %d with length %d", x.Shape(), start, length)
	}
	return results(mapLanes(x, axis, length, x.DType, func(lane []float64) []float64 {
		return lane[start : start+length]
	}))
}

// concatenate joins arrays of the same rank along axis, in their promoted dtype.
func concatenate(arrays []*Array, axis int) ([]opinfo.Result, error) {
	dtype := arrays[0].DType
	for _, a := range arrays[1:] {
		var err error
		if dtype, err = dtypesets.Promote(dtype, a.DType); err != nil {
			return nil, noReference("concatenation of %s and %s", dtype, a.DType)
		}
	}
	allLanes := xslices.Map(arrays, func(a *Array) [][]float64 { return a.lanes(axis) })
	joined := make([][]float64, len(allLanes[0]))
	total := 0
	for ii, a := range arrays {
		total += a.Dims[axis]
		for jj, lane := range allLanes[ii] {
			joined[jj] = append(joined[jj], lane...)
		}
	}
	out := fromLanes(dtype, arrays[0].Dims, axis, total, joined)
	castAll(dtype, out.Data)
	return results(out)
}

// Cat is the reference of cat(tensors, dim=0), skipping 1D empty tensors.
func Cat(sample *opinfo.SampleInput) ([]opinfo.Result, error) {
	all, err := inputList(sample)
	if err != nil {
		return nil, err
	}
	arrays := xslices.Filter(all, func(a *Array) bool { return !(a.Rank() == 1 && a.Dims[0] == 0) })
	if len(arrays) == 0 {
		return results(all[0])
	}
	axis, err := axisParam(sample, 0, "dim", 0, arrays[0].Rank())
	if err != nil {
		return nil, err
	}
	for _, a := range arrays {
		if a.Rank() == 0 || a.Rank() != arrays[0].Rank() {
			return nil, noReference("concatenation of %s and %s", arrays[0].Shape(), a.Shape())
		}
		for ii, dim := range a.Dims {
			if ii != axis && dim != arrays[0].Dims[ii] {
				return nil, noReference("concatenation of %s and %s", arrays[0].Shape(), a.Shape())
			}
		}
	}
	return concatenate(arrays, axis)
}

// Stack is the reference of stack(tensors, dim=0).
func Stack(sample *opinfo.SampleInput) ([]opinfo.Result, error) {
	arrays, err := inputList(sample)
	if err != nil {
		return nil, err
	}
	axis, err := axisParam(sample, 0, "dim", 0, arrays[0].Rank()+1)
	if err != nil {
		return nil, err
	}
	expanded := make([]*Array, len(arrays))
	for ii, a := range arrays {
		if !slices.Equal(a.Dims, arrays[0].Dims) {
			return nil, noReference("stack of %s and %s", arrays[0].Shape(), a.Shape())
		}
		expanded[ii] = NewArray(a.DType, a.Data, slices.Insert(slices.Clone(a.Dims), axis, 1)...)
	}
	return concatenate(expanded, axis)
}
