// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package generators

import (
	"iter"
	"regexp"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/opinfo/pkg/core/dtypesets"
	"github.com/gomlx/opinfo/pkg/core/tensorlib"
	"github.com/gomlx/opinfo/pkg/opinfo"
)

// Where generates samples for where(input, condition, other), with a boolean condition.
func Where(op *opinfo.OpInfo, device tensorlib.Device, dtype dtypes.DType, requiresGrad bool, _ map[string]any) iter.Seq[*opinfo.SampleInput] {
	return samples(func(e *emitter[*opinfo.SampleInput]) {
		makeFn := opinfo.Maker(op, device, dtype, requiresGrad)
		condition := func(dims ...int) tensorlib.Tensor { return makeFn(dims, opinfo.WithDType(dtypes.Bool)) }
		cases := []struct {
			input, condition, other []int
		}{
			{[]int{5, 5}, []int{5, 5}, []int{5, 5}},
			{[]int{5, 5}, []int{5, 1}, []int{5}},
			{[]int{5}, []int{5, 5}, []int{1, 5}},
			{[]int{}, []int{3, 3}, []int{}},
			{[]int{0, 3}, []int{0, 3}, []int{3}},
			{[]int{}, []int{}, []int{}},
		}
		for _, c := range cases {
			x, cond, other := makeFn(c.input), condition(c.condition...), makeFn(c.other)
			if !e.emit(opinfo.NewSample(x, cond, other).WithBroadcastsInput(broadcasts(x, cond, other))) {
				return
			}
		}
		e.emit(opinfo.NewSample(makeFn([]int{5, 5}, opinfo.Noncontiguous()), condition(5, 5),
			makeFn([]int{5, 5}, opinfo.Noncontiguous())).WithName("noncontiguous"))
		e.emit(opinfo.NewSample(makeFn([]int{3, 3}), condition(3, 3), scalarOf(dtype, 1)).WithName("scalar other"))
	})
}

// WhereErrors generates error cases for where: a non-boolean condition, and shapes that don't broadcast.
func WhereErrors(op *opinfo.OpInfo, device tensorlib.Device, dtype dtypes.DType, _ bool, _ map[string]any) iter.Seq[*opinfo.ErrorInput] {
	return errorInputs(func(e *emitter[*opinfo.ErrorInput]) {
		makeFn := noGradMaker(op, device, dtype)
		sample := opinfo.NewSample(makeFn([]int{3}), makeFn([]int{3}, opinfo.WithDType(dtypes.Float32)), makeFn([]int{3}))
		e.emit(opinfo.NewErrorInput(sample, tensorlib.RuntimeError,
			regexp.QuoteMeta("where expected condition to be a boolean tensor, but got a tensor with dtype Float32")))
		sample = opinfo.NewSample(makeFn([]int{2, 3}), makeFn([]int{2, 3}, opinfo.WithDType(dtypes.Bool)), makeFn([]int{2, 4}))
		e.emit(opinfo.NewErrorInput(sample, tensorlib.RuntimeError,
			regexp.QuoteMeta("The size of tensor a (3) must match the size of tensor b (4) at non-singleton dimension 1")))
	})
}

// clampBounds returns the range of values of lower and upper bounds for dtype, so they don't wrap around
// for unsigned dtypes.
func clampBounds(dtype dtypes.DType) (lower, upper [2]float64) {
	if dtypesets.IsUnsigned(dtype) {
		return [2]float64{0, 3}, [2]float64{5, 9}
	}
	return [2]float64{-5, 0}, [2]float64{0, 5}
}

// Clamp generates samples for clamp(input, min=None, max=None): tensor bounds, scalar bounds and only one of
// the bounds set.
func Clamp(op *opinfo.OpInfo, device tensorlib.Device, dtype dtypes.DType, requiresGrad bool, _ map[string]any) iter.Seq[*opinfo.SampleInput] {
	return samples(func(e *emitter[*opinfo.SampleInput]) {
		makeFn := opinfo.Maker(op, device, dtype, requiresGrad)
		lower, upper := clampBounds(dtype)
		bounds := func(lowerDims, upperDims []int) (tensorlib.Tensor, tensorlib.Tensor) {
			return makeFn(lowerDims, opinfo.Range(lower[0], lower[1])), makeFn(upperDims, opinfo.Range(upper[0], upper[1]))
		}
		for _, dims := range [][3][]int{
			{{5, 5}, {5, 5}, {5, 5}},
			{{5, 5}, {5}, {1, 5}},
			{{}, {}, {}},
			{{0, 3}, {3}, {0, 3}},
		} {
			x := makeFn(dims[0])
			low, high := bounds(dims[1], dims[2])
			if !e.emit(opinfo.NewSample(x, low, high).WithBroadcastsInput(broadcasts(x, low, high))) {
				return
			}
		}
		low, high := bounds([]int{5, 5}, []int{5, 5})
		e.emit(opinfo.NewSample(makeFn([]int{5, 5}, opinfo.Noncontiguous()), low, high).WithName("noncontiguous"))
		lowScalar, highScalar := scalarOf(dtype, lower[1]-1), scalarOf(dtype, upper[0]+1)
		e.emit(opinfo.NewSample(makeFn([]int{5, 5}), lowScalar, highScalar).WithName("scalar bounds"))
		e.emit(opinfo.NewSample(makeFn([]int{5, 5}), nil, highScalar).WithName("no min"))
		e.emit(opinfo.NewSample(makeFn([]int{5, 5})).WithKwarg("min", lowScalar).WithName("no max"))
		high = makeFn([]int{5}, opinfo.Range(upper[0], upper[1]))
		e.emit(opinfo.NewSample(makeFn([]int{5, 5})).WithKwarg("max", high).WithName("tensor max only"))
	})
}

// ClampErrors generates the error case of clamp with no bounds.
func ClampErrors(op *opinfo.OpInfo, device tensorlib.Device, dtype dtypes.DType, _ bool, _ map[string]any) iter.Seq[*opinfo.ErrorInput] {
	return errorInputs(func(e *emitter[*opinfo.ErrorInput]) {
		makeFn := noGradMaker(op, device, dtype)
		e.emit(opinfo.NewErrorInput(opinfo.NewSample(makeFn([]int{3}), nil, nil), tensorlib.RuntimeError,
			regexp.QuoteMeta("At least one of 'min' or 'max' must not be None")))
	})
}

// Lerp generates samples for lerp(input, end, weight), with scalar and tensor weights.
func Lerp(op *opinfo.OpInfo, device tensorlib.Device, dtype dtypes.DType, requiresGrad bool, _ map[string]any) iter.Seq[*opinfo.SampleInput] {
	return samples(func(e *emitter[*opinfo.SampleInput]) {
		makeFn := opinfo.Maker(op, device, dtype, requiresGrad)
		weight := func(dims ...int) tensorlib.Tensor { return makeFn(dims, opinfo.Range(0, 1)) }
		for _, dims := range [][3][]int{
			{{5, 5}, {5, 5}, {5, 5}},
			{{5, 5}, {5}, {5, 1}},
			{{5}, {5, 5}, {}},
			{{}, {}, {}},
			{{0, 3}, {0, 3}, {3}},
		} {
			x, end, w := makeFn(dims[0]), makeFn(dims[1]), weight(dims[2]...)
			if !e.emit(opinfo.NewSample(x, end, w).WithBroadcastsInput(broadcasts(x, end, w))) {
				return
			}
		}
		for _, w := range []float64{0.5, 0, 1} {
			e.emit(opinfo.NewSample(makeFn([]int{5, 5}), makeFn([]int{5, 5}), w).WithName("scalar weight"))
		}
		e.emit(opinfo.NewSample(makeFn([]int{5, 5}, opinfo.Noncontiguous()), makeFn([]int{5, 5}, opinfo.Noncontiguous()),
			0.25).WithName("noncontiguous"))
	})
}

// LerpErrors generates the error case of lerp with an end tensor of a different dtype.
func LerpErrors(op *opinfo.OpInfo, device tensorlib.Device, dtype dtypes.DType, _ bool, _ map[string]any) iter.Seq[*opinfo.ErrorInput] {
	return errorInputs(func(e *emitter[*opinfo.ErrorInput]) {
		capabilities := op.Library().Capabilities()
		endDType := dtypes.InvalidDType
		for _, candidate := range []dtypes.DType{dtypes.Float64, dtypes.Float32, dtypes.Float16} {
			if candidate != dtype && capabilities.SupportsDType(device.Class, candidate) {
				endDType = candidate
				break
			}
		}
		makeFn := noGradMaker(op, device, dtype)
		sample := opinfo.NewSample(makeFn([]int{3}), makeFn([]int{3}, opinfo.WithDType(endDType)), 0.5)
		e.emit(opinfo.NewErrorInput(sample, tensorlib.RuntimeError,
			regexp.QuoteMeta("expected dtype "+dtype.String()+" for `end` but got dtype "+endDType.String())))
	})
}
