// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package references

import (
	"fmt"
	"math"
	"slices"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/opinfo/pkg/core/dtypesets"
	"github.com/gomlx/opinfo/pkg/core/shapes"
	"github.com/gomlx/opinfo/pkg/opinfo"
	"github.com/gomlx/opinfo/pkg/support/xslices"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// ReduceKind selects the reduction computed by Reduce.
type ReduceKind int

const (
	Sum ReduceKind = iota
	Prod
	Mean
	AMax
	AMin
	ArgMax
	ArgMin
	All
	Any
	CountNonzero
	LogSumExp
	Var
	Std
)

var reduceKindNames = []string{"Sum", "Prod", "Mean", "AMax", "AMin", "ArgMax", "ArgMin", "All", "Any",
	"CountNonzero", "LogSumExp", "Var", "Std"}

// String implements fmt.Stringer.
func (k ReduceKind) String() string {
	if k < 0 || int(k) >= len(reduceKindNames) {
		return fmt.Sprintf("ReduceKind(%d)", int(k))
	}
	return reduceKindNames[k]
}

// ResultDType returns the dtype of the reduction of an input of the given dtype.
func (k ReduceKind) ResultDType(dtype dtypes.DType) dtypes.DType {
	switch k {
	case Sum, Prod:
		return dtypesets.SumResultType(dtype)
	case ArgMax, ArgMin, CountNonzero:
		return dtypes.Int64
	case All, Any:
		return dtypes.Bool
	case LogSumExp:
		return dtypesets.FloatResultType(dtype)
	}
	return dtype
}

// hasKeepDim returns whether the reduction takes the keepdim argument.
func (k ReduceKind) hasKeepDim() bool { return k != CountNonzero }

// reducer returns the function reducing the values of one output element, in row-major order of the input.
func (k ReduceKind) reducer(correction float64) func(values []float64) float64 {
	switch k {
	case Sum:
		return floats.Sum
	case Prod:
		return floats.Prod
	case Mean:
		return func(values []float64) float64 { return stat.Mean(values, nil) }
	case AMax:
		return withNaN(floats.Max)
	case AMin:
		return withNaN(floats.Min)
	case ArgMax:
		return argWithNaN(floats.MaxIdx)
	case ArgMin:
		return argWithNaN(floats.MinIdx)
	case All:
		return func(values []float64) float64 { return boolValue(floats.Count(isZero, values) == 0) }
	case Any:
		return func(values []float64) float64 { return boolValue(floats.Count(isZero, values) < len(values)) }
	case CountNonzero:
		return func(values []float64) float64 { return float64(len(values) - floats.Count(isZero, values)) }
	case LogSumExp:
		return func(values []float64) float64 {
			if len(values) == 0 {
				return math.Inf(-1)
			}
			return floats.LogSumExp(values)
		}
	case Var:
		return func(values []float64) float64 { return variance(values, correction) }
	case Std:
		return func(values []float64) float64 { return math.Sqrt(variance(values, correction)) }
	}
	panic(fmt.Sprintf("references: unknown reduction %s", k))
}

func isZero(v float64) bool { return v == 0 }

// withNaN makes an extremum propagate NaN: the gonum versions only do that for NaN in the first position.
func withNaN(fn func([]float64) float64) func([]float64) float64 {
	return func(values []float64) float64 {
		if floats.HasNaN(values) {
			return math.NaN()
		}
		return fn(values)
	}
}

// argWithNaN makes an arg-extremum return the position of the first NaN, if there is one.
func argWithNaN(fn func([]float64) int) func([]float64) float64 {
	return func(values []float64) float64 {
		if idx := slices.IndexFunc(values, math.IsNaN); idx >= 0 {
			return float64(idx)
		}
		return float64(fn(values))
	}
}

// variance with the given correction: the sum of squared deviations divided by max(0, n - correction).
func variance(values []float64, correction float64) float64 {
	mean := stat.Mean(values, nil)
	centered := slices.Clone(values)
	floats.AddConst(-mean, centered)
	return floats.Dot(centered, centered) / max(0, float64(len(values))-correction)
}

// Reduce returns the reference of the reduction op(input, dim=None, keepdim=False): dim may be an int or a
// list of ints, and None or an empty list reduce over all axes. Var and Std take a "correction" keyword argument.
func Reduce(kind ReduceKind) opinfo.ReferenceFunc {
	return func(sample *opinfo.SampleInput) ([]opinfo.Result, error) {
		x, err := input(sample)
		if err != nil {
			return nil, err
		}
		dimList, err := intsParam(sample, 0, "dim")
		if err != nil {
			return nil, err
		}
		axes := xslices.Iota(0, x.Rank())
		if len(dimList) > 0 {
			if axes, err = shapes.NormalizeAxes(dimList, x.Rank()); err != nil {
				return nil, noReference("invalid dims: %v", err)
			}
		}
		keepDim := false
		if kind.hasKeepDim() {
			if keepDim, err = boolParam(sample, 1, "keepdim", false); err != nil {
				return nil, err
			}
		}
		correction := 1.0
		if kind == Var || kind == Std {
			if correction, err = floatParam(sample, -1, "correction", 1); err != nil {
				return nil, err
			}
		}
		outDims, groups := groupReduced(x, axes, keepDim)
		reducer := kind.reducer(correction)
		values := make([]float64, len(groups))
		for ii, group := range groups {
			values[ii] = reducer(group)
		}
		outDType := kind.ResultDType(x.DType)
		castAll(outDType, values)
		return results(NewArray(outDType, values, outDims...))
	}
}

// groupReduced transposes the reduced axes of x to the end, and splits the values in groups of the reduced
// size: one per output element, with values in row-major order of the input.
func groupReduced(x *Array, axes []int, keepDim bool) (outDims []int, groups [][]float64) {
	reduced := make([]bool, x.Rank())
	for _, axis := range axes {
		if axis < x.Rank() {
			reduced[axis] = true
		}
	}
	var kept, moved []int
	for axis := range x.Rank() {
		if reduced[axis] {
			moved = append(moved, axis)
		} else {
			kept = append(kept, axis)
		}
	}
	permuted := permuteAxes(x, append(slices.Clone(kept), moved...))
	groupSize := xslices.Prod(xslices.Map(moved, func(axis int) int { return x.Dims[axis] }))
	numGroups := xslices.Prod(xslices.Map(kept, func(axis int) int { return x.Dims[axis] }))
	groups = make([][]float64, numGroups)
	for ii := range groups {
		groups[ii] = permuted.Data[ii*groupSize : (ii+1)*groupSize]
	}
	if keepDim {
		outDims = slices.Clone(x.Dims)
		for _, axis := range moved {
			outDims[axis] = 1
		}
	} else {
		outDims = xslices.Map(kept, func(axis int) int { return x.Dims[axis] })
	}
	return outDims, groups
}

// permuteAxes returns a copy of x with its axes reordered: axis ii of the result is axis perm[ii] of x.
func permuteAxes(x *Array, perm []int) *Array {
	dims := xslices.Map(perm, func(axis int) int { return x.Dims[axis] })
	strides := shapes.Strides(x.Dims)
	permutedStrides := xslices.Map(perm, func(axis int) int { return strides[axis] })
	values := make([]float64, 0, x.Size())
	for indices := range shapes.IterDims(dims) {
		values = append(values, x.Data[shapes.FlatIndex(indices, permutedStrides, 0)])
	}
	return NewArray(x.DType, values, dims...)
}
