// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package hostlib

import (
	"cmp"
	"math"
	"slices"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/opinfo/pkg/core/dtypesets"
	"github.com/gomlx/opinfo/pkg/core/shapes"
	"github.com/gomlx/opinfo/pkg/core/tensorlib"
	"github.com/gomlx/opinfo/pkg/support/xslices"
)

func init() {
	registerOp("cumsum", execScan(func(acc, v float64) float64 { return acc + v }, 0), false)
	registerOp("cumprod", execScan(func(acc, v float64) float64 { return acc * v }, 1), false)
	registerOp("softmax", execSoftmax(false), false)
	registerOp("log_softmax", execSoftmax(true), false)
	registerOp("sort", execSort, false)
	registerOp("argsort", execSort, false)
	registerOp("topk", execTopK, false)
}

// mapLanes calls fn for each lane of x along axis, that is, the 1D slices of x obtained by varying only
// the index on axis. fn returns the outLen values of the corresponding output lane.
// A scalar x is taken as one lane with one element.
func mapLanes(x *Tensor, axis, outLen int, fn func(lane []float64) []float64) (outDims []int, values []float64) {
	x = x.dense()
	if x.Rank() == 0 {
		return nil, fn([]float64{x.at(nil)})
	}
	outDims = slices.Clone(x.dims)
	outDims[axis] = outLen
	outStrides := shapes.Strides(outDims)
	values = make([]float64, xslices.Prod(outDims))
	otherDims := slices.Clone(x.dims)
	otherDims[axis] = 1
	lane := make([]float64, x.dims[axis])
	position := make([]int, x.Rank())
	for indices := range shapes.IterDims(otherDims) {
		copy(position, indices)
		for ii := range lane {
			position[axis] = ii
			lane[ii] = x.at(position)
		}
		for ii, v := range fn(lane) {
			position[axis] = ii
			values[shapes.FlatIndex(position, outStrides, 0)] = v
		}
	}
	return outDims, values
}

// laneLen returns the length of the lanes of x along axis.
func laneLen(x *Tensor, axis int) int {
	if x.Rank() == 0 {
		return 1
	}
	return x.dims[axis]
}

// execScan implements cumulative operators, op(input, dim). Integer inputs accumulate in Int64.
func execScan(accumulate func(acc, v float64) float64, initial float64) opExecutor {
	return func(c *opCall) (any, error) {
		x, err := c.inputTensor()
		if err != nil {
			return nil, err
		}
		if _, found := c.param(0, "dim"); !found {
			return nil, tensorlib.Errorf(tensorlib.TypeError, "%s() missing required argument 'dim'", c.name)
		}
		axis, err := c.axisParam(0, "dim", 0, x.Rank())
		if err != nil {
			return nil, err
		}
		outDType := dtypesets.SumResultType(x.dtype)
		outDims, values := mapLanes(x, axis, laneLen(x, axis), func(lane []float64) []float64 {
			out := make([]float64, len(lane))
			acc := initial
			for ii, v := range lane {
				acc = quantize(outDType, accumulate(acc, v))
				out[ii] = acc
			}
			return out
		})
		result := newTensorFrom(outDType, x.device, outDims, values)
		result.requiresGrad = x.requiresGrad && dtypesets.IsFloating(outDType)
		return result, nil
	}
}

// execSoftmax implements softmax(input, dim) and log_softmax(input, dim), for floating point inputs.
func execSoftmax(log bool) opExecutor {
	return func(c *opCall) (any, error) {
		x, err := c.inputTensor()
		if err != nil {
			return nil, err
		}
		if !dtypesets.IsFloating(x.dtype) {
			return nil, notImplementedFor(c.name, x.dtype)
		}
		if _, found := c.param(0, "dim"); !found {
			return nil, tensorlib.Errorf(tensorlib.TypeError, "%s() missing required argument 'dim'", c.name)
		}
		axis, err := c.axisParam(0, "dim", 0, x.Rank())
		if err != nil {
			return nil, err
		}
		outDims, values := mapLanes(x, axis, laneLen(x, axis), func(lane []float64) []float64 {
			out := make([]float64, len(lane))
			if len(lane) == 0 {
				return out
			}
			maxValue := slices.Max(lane)
			var sum float64
			for ii, v := range lane {
				out[ii] = v - maxValue
				sum += math.Exp(out[ii])
			}
			logSum := math.Log(sum)
			for ii := range out {
				if log {
					out[ii] -= logSum
				} else {
					out[ii] = math.Exp(out[ii] - logSum)
				}
			}
			return out
		})
		result := newTensorFrom(x.dtype, x.device, outDims, values)
		result.requiresGrad = x.requiresGrad
		return result, nil
	}
}

// compareForSort orders values ascending, with NaN after every other value.
func compareForSort(a, b float64) int {
	aNaN, bNaN := math.IsNaN(a), math.IsNaN(b)
	switch {
	case aNaN && bNaN:
		return 0
	case aNaN:
		return 1
	case bNaN:
		return -1
	}
	return cmp.Compare(a, b)
}

// sortPermutation returns the stable sorting permutation of lane.
func sortPermutation(lane []float64, descending bool) []int {
	perm := xslices.Iota(0, len(lane))
	slices.SortStableFunc(perm, func(i, j int) int {
		if descending {
			return compareForSort(lane[j], lane[i])
		}
		return compareForSort(lane[i], lane[j])
	})
	return perm
}

// sortedLanes returns the values and indices of the first k elements of each lane sorted.
func sortedLanes(x *Tensor, axis, k int, descending bool) (outDims []int, values, indices []float64) {
	outDims, values = mapLanes(x, axis, k, func(lane []float64) []float64 {
		perm := sortPermutation(lane, descending)[:k]
		return xslices.Map(perm, func(i int) float64 { return lane[i] })
	})
	_, indices = mapLanes(x, axis, k, func(lane []float64) []float64 {
		perm := sortPermutation(lane, descending)[:k]
		return xslices.Map(perm, func(i int) float64 { return float64(i) })
	})
	return
}

// execSort implements sort(input, dim=-1, descending=False), returning values and indices,
// and argsort(input, dim=-1, descending=False), returning only the indices.
func execSort(c *opCall) (any, error) {
	x, err := c.inputTensor()
	if err != nil {
		return nil, err
	}
	axis, err := c.axisParam(0, "dim", -1, x.Rank())
	if err != nil {
		return nil, err
	}
	descending, err := c.boolParam(1, "descending", false)
	if err != nil {
		return nil, err
	}
	outDims, values, indices := sortedLanes(x, axis, laneLen(x, axis), descending)
	indicesTensor := newTensor(dtypes.Int64, x.device, outDims, indices)
	if c.name == "argsort" {
		return indicesTensor, nil
	}
	valuesTensor := newTensor(x.dtype, x.device, outDims, values)
	valuesTensor.requiresGrad = x.requiresGrad
	return []tensorlib.Tensor{valuesTensor, indicesTensor}, nil
}

// execTopK implements topk(input, k, dim=-1, largest=True, sorted=True). Results are always sorted.
func execTopK(c *opCall) (any, error) {
	x, err := c.inputTensor()
	if err != nil {
		return nil, err
	}
	k, err := c.requiredIntParam(0, "k")
	if err != nil {
		return nil, err
	}
	axis, err := c.axisParam(1, "dim", -1, x.Rank())
	if err != nil {
		return nil, err
	}
	largest, err := c.boolParam(2, "largest", true)
	if err != nil {
		return nil, err
	}
	if _, err = c.boolParam(3, "sorted", true); err != nil {
		return nil, err
	}
	if k < 0 || k > laneLen(x, axis) || (x.Rank() == 0 && k == 0) {
		return nil, tensorlib.Errorf(tensorlib.RuntimeError, "selected index k out of range")
	}
	outDims, values, indices := sortedLanes(x, axis, k, largest)
	valuesTensor := newTensor(x.dtype, x.device, outDims, values)
	valuesTensor.requiresGrad = x.requiresGrad
	return []tensorlib.Tensor{valuesTensor, newTensor(dtypes.Int64, x.device, outDims, indices)}, nil
}
