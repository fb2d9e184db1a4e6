// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package generators

import (
	"iter"
	"math"
	"regexp"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/opinfo/pkg/core/dtypesets"
	"github.com/gomlx/opinfo/pkg/core/tensorlib"
	"github.com/gomlx/opinfo/pkg/opinfo"
)

// alongDim lists the (dims, dim) combinations of operators working along one axis.
var alongDim = []struct {
	dims []int
	dim  int
}{
	{[]int{3, 4, 5}, 0},
	{[]int{3, 4, 5}, 1},
	{[]int{3, 4, 5}, -1},
	{[]int{5}, 0},
	{[]int{}, 0},
	{[]int{0, 3}, 0},
	{[]int{0, 3}, 1},
}

// AlongDim generates samples for operators op(input, dim) working along one axis, like cumsum, cumprod,
// softmax and log_softmax.
func AlongDim(op *opinfo.OpInfo, device tensorlib.Device, dtype dtypes.DType, requiresGrad bool, _ map[string]any) iter.Seq[*opinfo.SampleInput] {
	return samples(func(e *emitter[*opinfo.SampleInput]) {
		makeFn := opinfo.Maker(op, device, dtype, requiresGrad)
		var options []opinfo.MakeOption
		if dtypesets.IsFloating(dtype) {
			// Keep products and exponentials in a range where half precision is still meaningful.
			options = append(options, opinfo.Range(-2, 2))
		}
		for _, c := range alongDim {
			if !e.emit(opinfo.NewSample(makeFn(c.dims, options...), c.dim)) {
				return
			}
		}
		e.emit(opinfo.NewSample(makeFn([]int{3, 4, 5}, append(options, opinfo.Noncontiguous())...), 2).WithName("noncontiguous"))
		e.emit(opinfo.NewSample(makeFn([]int{4, 3}, options...)).WithKwarg("dim", -2).WithName("dim keyword"))
	})
}

// AlongDimErrors generates the error case of operators along one axis with a dim out of range.
func AlongDimErrors(op *opinfo.OpInfo, device tensorlib.Device, dtype dtypes.DType, _ bool, _ map[string]any) iter.Seq[*opinfo.ErrorInput] {
	return errorInputs(func(e *emitter[*opinfo.ErrorInput]) {
		makeFn := noGradMaker(op, device, dtype)
		e.emit(opinfo.NewErrorInput(opinfo.NewSample(makeFn([]int{3, 4}), 3), tensorlib.IndexError,
			regexp.QuoteMeta("Dimension out of range (expected to be in range of [-2, 1], but got 3)")))
		e.emit(opinfo.NewErrorInput(opinfo.NewSample(makeFn([]int{3, 4})), tensorlib.TypeError,
			regexp.QuoteMeta(op.Name+"() missing required argument 'dim'")))
	})
}

// selectValues is the OutputProcessFnGrad of operators returning (values, indices): only values are
// differentiable.
func selectValues(output any) any {
	if outputs, ok := output.([]tensorlib.Tensor); ok && len(outputs) > 0 {
		return outputs[0]
	}
	return output
}

// sortInput makes the input of sorting samples. Integer dtypes draw from a small range so there are ties,
// which exercise the stability of the sort.
func sortInput(makeFn opinfo.MakeFunc, dtype dtypes.DType, dims []int, options ...opinfo.MakeOption) tensorlib.Tensor {
	if dtypesets.IsIntegral(dtype) {
		options = append(options, opinfo.Range(0, 4))
	}
	return makeFn(dims, options...)
}

// Sort generates samples for sort(input, dim=-1, descending=False) and argsort, over dims and both orders.
// For sort, OutputProcessFnGrad selects the values output.
func Sort(op *opinfo.OpInfo, device tensorlib.Device, dtype dtypes.DType, requiresGrad bool, _ map[string]any) iter.Seq[*opinfo.SampleInput] {
	return samples(func(e *emitter[*opinfo.SampleInput]) {
		makeFn := opinfo.Maker(op, device, dtype, requiresGrad)
		sample := func(x tensorlib.Tensor, args ...any) *opinfo.SampleInput {
			return opinfo.NewSample(x, args...).WithOutputProcessFnGrad(selectValues)
		}
		if !e.emit(sample(sortInput(makeFn, dtype, []int{3, 4, 5}))) {
			return
		}
		for _, dim := range []int{0, -1, 1} {
			for _, descending := range []bool{false, true} {
				if !e.emit(sample(sortInput(makeFn, dtype, []int{3, 4, 5}), dim, descending)) {
					return
				}
			}
		}
		e.emit(sample(sortInput(makeFn, dtype, []int{5})).WithKwarg("descending", true))
		e.emit(sample(sortInput(makeFn, dtype, nil)).WithName("scalar"))
		e.emit(sample(sortInput(makeFn, dtype, []int{0, 3}), 0).WithName("empty"))
		e.emit(sample(sortInput(makeFn, dtype, []int{3, 5}, opinfo.Noncontiguous()), -1, true).WithName("noncontiguous"))
		if dtypesets.IsFloating(dtype) {
			nan := math.NaN()
			x := opinfo.FromValues(op, device, dtype, []float64{3, nan, -1, 2, nan, 0}, 6)
			e.emit(sample(opinfo.WithRequiresGrad(x, requiresGrad)).WithName("with NaN"))
		}
	})
}

// TopK generates samples for topk(input, k, dim=-1, largest=True, sorted=True).
// OutputProcessFnGrad selects the values output.
func TopK(op *opinfo.OpInfo, device tensorlib.Device, dtype dtypes.DType, requiresGrad bool, _ map[string]any) iter.Seq[*opinfo.SampleInput] {
	return samples(func(e *emitter[*opinfo.SampleInput]) {
		makeFn := opinfo.Maker(op, device, dtype, requiresGrad)
		sample := func(x tensorlib.Tensor, args ...any) *opinfo.SampleInput {
			return opinfo.NewSample(x, args...).WithOutputProcessFnGrad(selectValues)
		}
		if !e.emit(sample(sortInput(makeFn, dtype, []int{3, 4, 5}), 2)) {
			return
		}
		for _, largest := range []bool{true, false} {
			e.emit(sample(sortInput(makeFn, dtype, []int{3, 4, 5}), 3, -1, largest))
			e.emit(sample(sortInput(makeFn, dtype, []int{3, 4, 5}), 1, 0, largest, true))
		}
		e.emit(sample(sortInput(makeFn, dtype, []int{3, 4, 5}), 4).WithKwarg("dim", 1).WithName("k = dim size"))
		e.emit(sample(sortInput(makeFn, dtype, []int{5}), 0).WithName("k = 0"))
		e.emit(sample(sortInput(makeFn, dtype, nil), 1).WithName("scalar"))
		e.emit(sample(sortInput(makeFn, dtype, []int{0, 3}), 2).WithName("empty"))
		e.emit(sample(sortInput(makeFn, dtype, []int{3, 5}, opinfo.Noncontiguous()), 2).WithName("noncontiguous"))
	})
}

// SortErrors generates the error case of sorting along a dim out of range.
func SortErrors(op *opinfo.OpInfo, device tensorlib.Device, dtype dtypes.DType, _ bool, _ map[string]any) iter.Seq[*opinfo.ErrorInput] {
	return errorInputs(func(e *emitter[*opinfo.ErrorInput]) {
		makeFn := noGradMaker(op, device, dtype)
		e.emit(opinfo.NewErrorInput(opinfo.NewSample(makeFn([]int{3, 4}), 2), tensorlib.IndexError,
			regexp.QuoteMeta("Dimension out of range (expected to be in range of [-2, 1], but got 2)")))
	})
}

// TopKErrors generates the error cases of topk: k larger than the dimension, and a dim out of range.
func TopKErrors(op *opinfo.OpInfo, device tensorlib.Device, dtype dtypes.DType, _ bool, _ map[string]any) iter.Seq[*opinfo.ErrorInput] {
	return errorInputs(func(e *emitter[*opinfo.ErrorInput]) {
		makeFn := noGradMaker(op, device, dtype)
		e.emit(opinfo.NewErrorInput(opinfo.NewSample(makeFn([]int{3, 4}), 5), tensorlib.RuntimeError,
			regexp.QuoteMeta("selected index k out of range")))
		e.emit(opinfo.NewErrorInput(opinfo.NewSample(makeFn([]int{3, 4}), 1, 2), tensorlib.IndexError,
			regexp.QuoteMeta("Dimension out of range (expected to be in range of [-2, 1], but got 2)")))
		e.emit(opinfo.NewErrorInput(opinfo.NewSample(makeFn([]int{3, 4})), tensorlib.TypeError,
			regexp.QuoteMeta("topk() missing required argument 'k'")))
	})
}
