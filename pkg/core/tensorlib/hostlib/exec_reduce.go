// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package hostlib

import (
	"math"
	"slices"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/opinfo/pkg/core/dtypesets"
	"github.com/gomlx/opinfo/pkg/core/shapes"
	"github.com/gomlx/opinfo/pkg/core/tensorlib"
	"github.com/gomlx/opinfo/pkg/support/xslices"
)

// reduction describes a reduction operator with signature op(input, dim=None, keepdim=False).
type reduction struct {
	// hasIdentity is false for reductions that fail over zero-sized axes.
	hasIdentity bool

	// singleDim reductions only accept one dim (or None).
	singleDim bool

	// noKeepDim reductions don't take the keepdim argument.
	noKeepDim bool

	outDType func(opName string, dtype dtypes.DType) (dtypes.DType, error)

	// reducer returns the function that reduces the values of one output element, given in row-major order.
	reducer func(c *opCall) (func(values []float64) float64, error)
}

func sameDType(_ string, dtype dtypes.DType) (dtypes.DType, error) { return dtype, nil }

func sumDType(_ string, dtype dtypes.DType) (dtypes.DType, error) {
	return dtypesets.SumResultType(dtype), nil
}

func int64DType(string, dtypes.DType) (dtypes.DType, error) { return dtypes.Int64, nil }

func boolDType(string, dtypes.DType) (dtypes.DType, error) { return dtypes.Bool, nil }

func floatDType(_ string, dtype dtypes.DType) (dtypes.DType, error) {
	return dtypesets.FloatResultType(dtype), nil
}

func floatOnlyDType(opName string, dtype dtypes.DType) (dtypes.DType, error) {
	if !dtypesets.IsFloating(dtype) {
		if opName == "mean" {
			return dtypes.InvalidDType, tensorlib.Errorf(tensorlib.RuntimeError,
				"mean(): could not infer output dtype. Input dtype must be either a floating point or complex dtype. Got: %s", dtype)
		}
		return dtypes.InvalidDType, tensorlib.Errorf(tensorlib.RuntimeError,
			"std and var only support floating point and complex dtypes")
	}
	return dtype, nil
}

func simpleReducer(fn func(values []float64) float64) func(*opCall) (func([]float64) float64, error) {
	return func(*opCall) (func([]float64) float64, error) { return fn, nil }
}

func sumValues(values []float64) float64 {
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum
}

func prodValues(values []float64) float64 {
	prod := 1.0
	for _, v := range values {
		prod *= v
	}
	return prod
}

func extremum(better func(a, b float64) bool) func(values []float64) float64 {
	return func(values []float64) float64 {
		result := values[0]
		for _, v := range values[1:] {
			if math.IsNaN(v) {
				return v
			}
			if better(v, result) {
				result = v
			}
		}
		return result
	}
}

// argExtremum returns the position of the first extreme value; NaN counts as the extreme.
func argExtremum(better func(a, b float64) bool) func(values []float64) float64 {
	return func(values []float64) float64 {
		best := 0
		for ii, v := range values {
			if math.IsNaN(values[best]) {
				break
			}
			if math.IsNaN(v) || better(v, values[best]) {
				best = ii
			}
		}
		return float64(best)
	}
}

func logSumExp(values []float64) float64 {
	if len(values) == 0 {
		return math.Inf(-1)
	}
	maxValue := slices.Max(values)
	if math.IsInf(maxValue, 0) {
		if math.IsInf(maxValue, 1) {
			return maxValue
		}
		return math.Inf(-1)
	}
	var sum float64
	for _, v := range values {
		sum += math.Exp(v - maxValue)
	}
	return maxValue + math.Log(sum)
}

// varianceReducer implements var and std with the "correction" keyword argument (default 1).
func varianceReducer(sqrt bool) func(c *opCall) (func([]float64) float64, error) {
	return func(c *opCall) (func([]float64) float64, error) {
		correction, err := c.floatParam(-1, "correction", 1)
		if err != nil {
			return nil, err
		}
		return func(values []float64) float64 {
			n := float64(len(values))
			mean := sumValues(values) / n
			var sumSquares float64
			for _, v := range values {
				sumSquares += (v - mean) * (v - mean)
			}
			variance := sumSquares / max(0, n-correction)
			if sqrt {
				return math.Sqrt(variance)
			}
			return variance
		}, nil
	}
}

var reductions = map[string]reduction{
	"sum":  {hasIdentity: true, outDType: sumDType, reducer: simpleReducer(sumValues)},
	"prod": {hasIdentity: true, singleDim: true, outDType: sumDType, reducer: simpleReducer(prodValues)},
	"mean": {hasIdentity: true, outDType: floatOnlyDType, reducer: simpleReducer(func(values []float64) float64 {
		return sumValues(values) / float64(len(values))
	})},
	"amax":   {outDType: sameDType, reducer: simpleReducer(extremum(func(a, b float64) bool { return a > b }))},
	"amin":   {outDType: sameDType, reducer: simpleReducer(extremum(func(a, b float64) bool { return a < b }))},
	"argmax": {singleDim: true, outDType: int64DType, reducer: simpleReducer(argExtremum(func(a, b float64) bool { return a > b }))},
	"argmin": {singleDim: true, outDType: int64DType, reducer: simpleReducer(argExtremum(func(a, b float64) bool { return a < b }))},
	"all": {hasIdentity: true, outDType: boolDType, reducer: simpleReducer(func(values []float64) float64 {
		return boolToFloat(!slices.Contains(values, 0))
	})},
	"any": {hasIdentity: true, outDType: boolDType, reducer: simpleReducer(func(values []float64) float64 {
		return boolToFloat(slices.ContainsFunc(values, func(v float64) bool { return v != 0 }))
	})},
	"count_nonzero": {hasIdentity: true, noKeepDim: true, outDType: int64DType, reducer: simpleReducer(func(values []float64) float64 {
		return float64(len(values) - xslices.Count(values, 0))
	})},
	"logsumexp": {hasIdentity: true, outDType: floatDType, reducer: simpleReducer(logSumExp)},
	"std":       {hasIdentity: true, outDType: floatOnlyDType, reducer: varianceReducer(true)},
	"var":       {hasIdentity: true, outDType: floatOnlyDType, reducer: varianceReducer(false)},
}

func init() {
	for name, r := range reductions {
		registerOp(name, execReduction(r), name == "sum")
	}
}

// reduceBuckets groups the values of x by output element, reducing the given axes (already normalized).
// Within a bucket values are in row-major order.
func reduceBuckets(x *Tensor, axes []int, keepDim bool) (outDims []int, buckets [][]float64) {
	rank := x.Rank()
	isReduced := make([]bool, rank)
	for _, axis := range axes {
		if axis < rank {
			isReduced[axis] = true
		}
	}
	var keptDims []int
	for axis, dim := range x.dims {
		if !isReduced[axis] {
			keptDims = append(keptDims, dim)
		}
	}
	keptStrides := shapes.Strides(keptDims)
	buckets = make([][]float64, xslices.Prod(keptDims))
	for indices := range shapes.IterDims(x.dims) {
		flat, kept := 0, 0
		for axis, idx := range indices {
			if !isReduced[axis] {
				flat += idx * keptStrides[kept]
				kept++
			}
		}
		buckets[flat] = append(buckets[flat], x.at(indices))
	}
	if !keepDim {
		return keptDims, buckets
	}
	outDims = slices.Clone(x.dims)
	for axis := range outDims {
		if isReduced[axis] {
			outDims[axis] = 1
		}
	}
	return outDims, buckets
}

// reductionAxes parses the "dim" argument: nil or an empty list means all axes.
func (c *opCall) reductionAxes(x *Tensor, singleDim bool) ([]int, bool, error) {
	dims, found, err := c.intsParam(0, "dim")
	if err != nil {
		return nil, false, err
	}
	if singleDim && len(dims) > 1 {
		return nil, false, tensorlib.Errorf(tensorlib.TypeError, "%s(): argument 'dim' must be int, not tuple", c.name)
	}
	if !found || len(dims) == 0 {
		return xslices.Iota(0, x.Rank()), false, nil
	}
	axes, err := normalizeAxes(dims, x.Rank())
	return axes, true, err
}

func execReduction(r reduction) opExecutor {
	return func(c *opCall) (any, error) {
		x, err := c.inputTensor()
		if err != nil {
			return nil, err
		}
		x = x.dense()
		outDType, err := r.outDType(c.name, x.dtype)
		if err != nil {
			return nil, err
		}
		axes, hasDim, err := c.reductionAxes(x, r.singleDim)
		if err != nil {
			return nil, err
		}
		keepDim := false
		if !r.noKeepDim {
			if keepDim, err = c.boolParam(1, "keepdim", false); err != nil {
				return nil, err
			}
		}
		if !r.hasIdentity && x.Size() == 0 {
			for _, axis := range axes {
				if x.Rank() > 0 && x.dims[axis] == 0 {
					if !hasDim && r.singleDim {
						return nil, tensorlib.Errorf(tensorlib.RuntimeError,
							"%s(): Expected reduction dim to be specified for input.numel() == 0.", c.name)
					}
					return nil, tensorlib.Errorf(tensorlib.IndexError,
						"%s(): Expected reduction dim %d to have non-zero size.", c.name, axis)
				}
			}
		}
		reducer, err := r.reducer(c)
		if err != nil {
			return nil, err
		}
		outDims, buckets := reduceBuckets(x, axes, keepDim)
		values := make([]float64, len(buckets))
		for ii, bucket := range buckets {
			values[ii] = reducer(bucket)
		}
		result := newTensorFrom(outDType, x.device, outDims, values)
		result.requiresGrad = x.requiresGrad && dtypesets.IsFloating(outDType)
		return result, nil
	}
}
