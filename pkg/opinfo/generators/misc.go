// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package generators

import (
	"fmt"
	"iter"
	"math"
	"regexp"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/opinfo/pkg/core/dtypesets"
	"github.com/gomlx/opinfo/pkg/core/tensorlib"
	"github.com/gomlx/opinfo/pkg/opinfo"
)

// Histc generates samples for histc(input, bins=100, min=0, max=0). Ranges with negative bounds are
// skipped for unsigned dtypes.
func Histc(op *opinfo.OpInfo, device tensorlib.Device, dtype dtypes.DType, requiresGrad bool, _ map[string]any) iter.Seq[*opinfo.SampleInput] {
	return samples(func(e *emitter[*opinfo.SampleInput]) {
		makeFn := opinfo.Maker(op, device, dtype, requiresGrad)
		if !e.emit(opinfo.NewSample(makeFn([]int{5, 5}))) {
			return
		}
		for _, c := range []struct {
			dims          []int
			bins          int
			lower, higher float64
		}{
			{[]int{5, 5}, 10, -5, 5},
			{[]int{3, 4, 5}, 7, 0, 6},
			{[]int{20}, 1, 0, 10},
			{[]int{20}, 4, 2, 2},
			{[]int{}, 3, -1, 1},
			{[]int{0}, 5, 0, 1},
			{[]int{0}, 5, 0, 0},
		} {
			if dtypesets.IsUnsigned(dtype) && c.lower < 0 {
				skipf(op, "negative histogram range [%g, %g] for %s", c.lower, c.higher, dtype)
				continue
			}
			if !e.emit(opinfo.NewSample(makeFn(c.dims), c.bins, scalarOf(dtype, c.lower), scalarOf(dtype, c.higher))) {
				return
			}
		}
		e.emit(opinfo.NewSample(makeFn([]int{5, 5}, opinfo.Noncontiguous()), 6).WithName("noncontiguous"))
		e.emit(opinfo.NewSample(makeFn([]int{5, 5})).WithKwargs(map[string]any{"bins": 4, "min": 1, "max": 8}).
			WithName("keywords"))
	})
}

// HistcErrors generates the error cases of histc: invalid number of bins, inverted range and, for floating
// point dtypes, a range that is not finite.
func HistcErrors(op *opinfo.OpInfo, device tensorlib.Device, dtype dtypes.DType, _ bool, _ map[string]any) iter.Seq[*opinfo.ErrorInput] {
	return errorInputs(func(e *emitter[*opinfo.ErrorInput]) {
		makeFn := noGradMaker(op, device, dtype)
		if !e.emit(opinfo.NewErrorInput(opinfo.NewSample(makeFn([]int{5}), 0), tensorlib.RuntimeError,
			regexp.QuoteMeta("torch.histc: bins must be > 0, but got 0"))) {
			return
		}
		e.emit(opinfo.NewErrorInput(opinfo.NewSample(makeFn([]int{5}), 10, 5, 1), tensorlib.RuntimeError,
			regexp.QuoteMeta("torch.histc: max must be larger than min")))
		if !dtypesets.IsFloating(dtype) {
			return
		}
		withNaN := opinfo.FromValues(op, device, dtype, []float64{1, math.NaN(), 3}, 3)
		e.emit(opinfo.NewErrorInput(opinfo.NewSample(withNaN, 10), tensorlib.RuntimeError,
			`^torch\.histc: range of \[.*\] is not finite`))
		e.emit(opinfo.NewErrorInput(opinfo.NewSample(makeFn([]int{5}), 10, 0, math.Inf(1)), tensorlib.RuntimeError,
			regexp.QuoteMeta("torch.histc: range of [0, +Inf] is not finite")))
	})
}

// LikeKind selects the creation operator taking the shape (and by default the dtype and device) of its input.
type LikeKind int

const (
	// ZerosLike is zeros_like(input, dtype=None).
	ZerosLike LikeKind = iota

	// OnesLike is ones_like(input, dtype=None).
	OnesLike

	// FullLike is full_like(input, fill_value, dtype=None).
	FullLike
)

// String implements fmt.Stringer.
func (k LikeKind) String() string {
	switch k {
	case ZerosLike:
		return "ZerosLike"
	case OnesLike:
		return "OnesLike"
	case FullLike:
		return "FullLike"
	}
	return fmt.Sprintf("LikeKind(%d)", int(k))
}

// Like returns the sample generator of the given creation operator: the input shapes, noncontiguous inputs,
// and an explicit dtype argument.
func Like(kind LikeKind) opinfo.SampleInputsFunc {
	return func(op *opinfo.OpInfo, device tensorlib.Device, dtype dtypes.DType, requiresGrad bool, _ map[string]any) iter.Seq[*opinfo.SampleInput] {
		return samples(func(e *emitter[*opinfo.SampleInput]) {
			makeFn := opinfo.Maker(op, device, dtype, requiresGrad)
			var args []any
			if kind == FullLike {
				args = append(args, scalarOf(dtype, 3))
			}
			for _, dims := range [][]int{{5, 5}, {}, {0, 3}, {3, 4, 5}} {
				if !e.emit(opinfo.NewSample(makeFn(dims), args...)) {
					return
				}
			}
			e.emit(opinfo.NewSample(makeFn([]int{5, 5}, opinfo.Noncontiguous()), args...).WithName("noncontiguous"))
			e.emit(opinfo.NewSample(makeFn([]int{3, 3}), args...).WithKwarg("dtype", dtypes.Int32).WithName("dtype"))
			if kind == FullLike {
				e.emit(opinfo.NewSample(makeFn([]int{3, 3})).WithKwarg("fill_value", scalarOf(dtype, 1)).WithName("fill_value keyword"))
			}
		})
	}
}

// LikeErrors returns the error generator of the given creation operator: an invalid dtype argument, a
// dtype the device doesn't support and, for FullLike, the missing fill value.
func LikeErrors(kind LikeKind) opinfo.ErrorInputsFunc {
	return func(op *opinfo.OpInfo, device tensorlib.Device, dtype dtypes.DType, _ bool, _ map[string]any) iter.Seq[*opinfo.ErrorInput] {
		return errorInputs(func(e *emitter[*opinfo.ErrorInput]) {
			makeFn := noGradMaker(op, device, dtype)
			var args []any
			if kind == FullLike {
				args = append(args, scalarOf(dtype, 3))
			}
			sample := opinfo.NewSample(makeFn([]int{3}), args...).WithKwarg("dtype", "float32")
			if !e.emit(opinfo.NewErrorInput(sample, tensorlib.TypeError,
				regexp.QuoteMeta(op.Name+"(): argument 'dtype' must be dtype, not string"))) {
				return
			}
			if kind == FullLike {
				e.emit(opinfo.NewErrorInput(opinfo.NewSample(makeFn([]int{3})), tensorlib.TypeError,
					regexp.QuoteMeta("full_like() missing required argument 'fill_value'")))
			}
			capabilities := op.Library().Capabilities()
			for _, unsupported := range dtypesets.Known() {
				if capabilities.SupportsDType(device.Class, unsupported) {
					continue
				}
				sample = opinfo.NewSample(makeFn([]int{3}), args...).WithKwarg("dtype", unsupported)
				e.emit(opinfo.NewErrorInput(sample, tensorlib.TypeError,
					regexp.QuoteMeta(fmt.Sprintf("dtype %s is not supported on device %s", unsupported, device))))
				break
			}
		})
	}
}
