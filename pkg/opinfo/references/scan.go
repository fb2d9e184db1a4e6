// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package references

import (
	"cmp"
	"math"
	"slices"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/opinfo/pkg/core/dtypesets"
	"github.com/gomlx/opinfo/pkg/opinfo"
	"github.com/gomlx/opinfo/pkg/support/xslices"
	"gonum.org/v1/gonum/floats"
)

// alongDim parses the input and the required "dim" of operators working along one axis.
func alongDim(sample *opinfo.SampleInput, defaultDim int, required bool) (*Array, int, error) {
	x, err := input(sample)
	if err != nil {
		return nil, 0, err
	}
	if _, found := param(sample, 0, "dim"); required && !found {
		return nil, 0, noReference("missing argument \"dim\"")
	}
	axis, err := axisParam(sample, 0, "dim", defaultDim, x.Rank())
	return x, axis, err
}

// laneLen is the length of the lanes of x along axis. A scalar is one lane of one element.
func laneLen(x *Array, axis int) int {
	if x.Rank() == 0 {
		return 1
	}
	return x.Dims[axis]
}

// mapLanes applies fn to each lane of x along axis, producing lanes of length outLen.
func mapLanes(x *Array, axis, outLen int, outDType dtypes.DType, fn func(lane []float64) []float64) *Array {
	lanes := x.lanes(axis)
	for ii, lane := range lanes {
		lanes[ii] = fn(lane)
	}
	out := fromLanes(outDType, x.Dims, axis, outLen, lanes)
	castAll(outDType, out.Data)
	return out
}

// accumulate returns the reference of cumsum or cumprod. Float64 and integers (accumulated in Int64) use the
// gonum scan, other floating point dtypes round the running value to the dtype at each step, as the
// tested library does.
func accumulate(scan func(dst, s []float64) []float64, step func(acc, v float64) float64) opinfo.ReferenceFunc {
	return func(sample *opinfo.SampleInput) ([]opinfo.Result, error) {
		x, axis, err := alongDim(sample, 0, true)
		if err != nil {
			return nil, err
		}
		outDType := dtypesets.SumResultType(x.DType)
		return results(mapLanes(x, axis, laneLen(x, axis), outDType, func(lane []float64) []float64 {
			out := make([]float64, len(lane))
			if len(lane) == 0 {
				return out
			}
			if outDType == dtypes.Float64 || !dtypesets.IsFloating(outDType) {
				return scan(out, lane)
			}
			acc := lane[0]
			for ii, v := range lane {
				if ii > 0 {
					acc = CastValue(outDType, step(acc, v))
				}
				out[ii] = acc
			}
			return out
		}))
	}
}

var (
	// CumSum is the reference of cumsum(input, dim).
	CumSum = accumulate(floats.CumSum, func(acc, v float64) float64 { return acc + v })

	// CumProd is the reference of cumprod(input, dim).
	CumProd = accumulate(floats.CumProd, func(acc, v float64) float64 { return acc * v })
)

// softmax returns the reference of softmax(input, dim) or, if log is set, of log_softmax(input, dim).
func softmax(log bool) opinfo.ReferenceFunc {
	return func(sample *opinfo.SampleInput) ([]opinfo.Result, error) {
		x, axis, err := alongDim(sample, 0, true)
		if err != nil {
			return nil, err
		}
		if !dtypesets.IsFloating(x.DType) {
			return nil, noReference("softmax of %s", x.DType)
		}
		return results(mapLanes(x, axis, laneLen(x, axis), x.DType, func(lane []float64) []float64 {
			out := slices.Clone(lane)
			if len(lane) == 0 {
				return out
			}
			floats.AddConst(-floats.LogSumExp(lane), out)
			if !log {
				for ii, v := range out {
					out[ii] = math.Exp(v)
				}
			}
			return out
		}))
	}
}

var (
	// Softmax is the reference of softmax(input, dim).
	Softmax = softmax(false)

	// LogSoftmax is the reference of log_softmax(input, dim).
	LogSoftmax = softmax(true)
)

// sortOrder returns the positions of lane in sorted order: ascending with NaN last, or the reverse order
// (NaN first) if descending. Ties keep their original order in both cases.
func sortOrder(lane []float64, descending bool) []int {
	order := xslices.Iota(0, len(lane))
	slices.SortStableFunc(order, func(i, j int) int {
		c := compareNaNLast(lane[i], lane[j])
		if descending {
			return -c
		}
		return c
	})
	return order
}

func compareNaNLast(a, b float64) int {
	if aNaN, bNaN := math.IsNaN(a), math.IsNaN(b); aNaN || bNaN {
		switch {
		case aNaN && bNaN:
			return 0
		case aNaN:
			return 1
		}
		return -1
	}
	return cmp.Compare(a, b)
}

// sortedLanes returns the values and the Int64 indices of the first k elements of the sorted lanes.
func sortedLanes(x *Array, axis, k int, descending bool) (values, indices *Array) {
	lanes := x.lanes(axis)
	valueLanes := make([][]float64, len(lanes))
	indexLanes := make([][]float64, len(lanes))
	for ii, lane := range lanes {
		order := sortOrder(lane, descending)[:k]
		valueLanes[ii] = xslices.Map(order, func(pos int) float64 { return lane[pos] })
		indexLanes[ii] = xslices.Map(order, func(pos int) float64 { return float64(pos) })
	}
	return fromLanes(x.DType, x.Dims, axis, k, valueLanes), fromLanes(dtypes.Int64, x.Dims, axis, k, indexLanes)
}

// sort returns the reference of sort(input, dim=-1, descending=False), with outputs values and indices, or, if
// indicesOnly, of argsort, with the indices output only.
func sort(indicesOnly bool) opinfo.ReferenceFunc {
	return func(sample *opinfo.SampleInput) ([]opinfo.Result, error) {
		x, axis, err := alongDim(sample, -1, false)
		if err != nil {
			return nil, err
		}
		descending, err := boolParam(sample, 1, "descending", false)
		if err != nil {
			return nil, err
		}
		values, indices := sortedLanes(x, axis, laneLen(x, axis), descending)
		if indicesOnly {
			return results(indices)
		}
		return results(values, indices)
	}
}

var (
	// Sort is the reference of sort(input, dim=-1, descending=False).
	Sort = sort(false)

	// ArgSort is the reference of argsort(input, dim=-1, descending=False).
	ArgSort = sort(true)
)

// TopK is the reference of topk(input, k, dim=-1, largest=True, sorted=True), with outputs values and indices.
// Results are sorted regardless of the "sorted" argument.
func TopK(sample *opinfo.SampleInput) ([]opinfo.Result, error) {
	x, err := input(sample)
	if err != nil {
		return nil, err
	}
	k, err := intParam(sample, 0, "k", -1)
	if err != nil {
		return nil, err
	}
	axis, err := axisParam(sample, 1, "dim", -1, x.Rank())
	if err != nil {
		return nil, err
	}
	largest, err := boolParam(sample, 2, "largest", true)
	if err != nil {
		return nil, err
	}
	if k < 0 || k > laneLen(x, axis) {
		return nil, noReference("k=%d out of range", k)
	}
	values, indices := sortedLanes(x, axis, k, largest)
	return results(values, indices)
}
