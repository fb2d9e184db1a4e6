// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package generators

import (
	"fmt"
	"iter"
	"regexp"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/opinfo/pkg/core/dtypesets"
	"github.com/gomlx/opinfo/pkg/core/tensorlib"
	"github.com/gomlx/opinfo/pkg/opinfo"
)

// binaryPairs are the shapes of (input, other) of the regular samples of binary operators, after the
// canonical (5,5)x(5,5).
var binaryPairs = [][2][]int{
	{{4, 1}, {4, 4}},
	{{4, 4}, {4, 1}},
	{{1, 4}, {4, 1}},
	{{3, 1, 5}, {4, 5}},
	{{5}, {2, 3, 5}},
	{{}, {3, 3}},
	{{3, 3}, {}},
	{{0, 3}, {0, 3}},
	{{0, 3}, {1, 3}},
	{{}, {}},
}

// PromotionPartners are the dtypes tried as "other" operand in the type promotion samples, in this order.
var PromotionPartners = []dtypes.DType{
	dtypes.Bool, dtypes.Uint8, dtypes.Int8, dtypes.Int16, dtypes.Int32, dtypes.Int64,
	dtypes.Float16, dtypes.BFloat16, dtypes.Float32, dtypes.Float64,
}

// RoundingMode of the division operator, a tagged variant of the binary family.
type RoundingMode int

const (
	// RoundingNone is true division.
	RoundingNone RoundingMode = iota

	// RoundingTrunc rounds the quotient towards zero.
	RoundingTrunc

	// RoundingFloor rounds the quotient towards negative infinity.
	RoundingFloor
)

// String returns the value of the "rounding_mode" argument.
func (m RoundingMode) String() string {
	switch m {
	case RoundingNone:
		return "None"
	case RoundingTrunc:
		return "trunc"
	case RoundingFloor:
		return "floor"
	}
	return fmt.Sprintf("RoundingMode(%d)", int(m))
}

// binaryConfig holds the variant data of the binary family that is not in the record.
type binaryConfig struct {
	// alpha adds a sample with the "alpha" keyword argument.
	alpha bool

	// rounding is set for division variants with a rounding mode: added as "rounding_mode" to all samples.
	rounding RoundingMode
}

// rhsOptions returns the options to make the "other" operand, given the dtype the operation is computed in.
func rhsOptions(op *opinfo.OpInfo, computeDType dtypes.DType) []opinfo.MakeOption {
	var options []opinfo.MakeOption
	if op.RHSExcludeZero {
		options = append(options, opinfo.ExcludeZero())
	}
	if op.RHSNonNegative && dtypesets.IsIntegral(computeDType) {
		options = append(options, opinfo.Low(0))
	}
	return options
}

// BinaryElementwise generates samples for elementwise binary operators op(input, other).
var BinaryElementwise = binaryFamily(binaryConfig{})

// BinaryWithAlpha generates the samples of BinaryElementwise, plus one with the "alpha" keyword argument, for
// add and sub.
var BinaryWithAlpha = binaryFamily(binaryConfig{alpha: true})

// Div generates the samples of BinaryElementwise for division with the given rounding mode.
func Div(mode RoundingMode) opinfo.SampleInputsFunc {
	return binaryFamily(binaryConfig{rounding: mode})
}

func binaryFamily(config binaryConfig) opinfo.SampleInputsFunc {
	return func(op *opinfo.OpInfo, device tensorlib.Device, dtype dtypes.DType, requiresGrad bool, _ map[string]any) iter.Seq[*opinfo.SampleInput] {
		return samples(func(e *emitter[*opinfo.SampleInput]) {
			makeFn := opinfo.Maker(op, device, dtype, requiresGrad)
			rhs := rhsOptions(op, dtype)
			emit := func(sample *opinfo.SampleInput) bool {
				if config.rounding != RoundingNone {
					sample.WithKwarg("rounding_mode", config.rounding.String())
				}
				return e.emit(sample)
			}
			pair := func(lhsDims, rhsDims []int, options ...opinfo.MakeOption) *opinfo.SampleInput {
				lhs := makeFn(lhsDims, options...)
				other := makeFn(rhsDims, append(options, rhs...)...)
				return opinfo.NewSample(lhs, other).WithBroadcastsInput(broadcasts(lhs, other))
			}

			if !emit(pair([]int{5, 5}, []int{5, 5})) {
				return
			}
			for _, dims := range binaryPairs {
				if !emit(pair(dims[0], dims[1])) {
					return
				}
			}
			emit(pair([]int{5, 5}, []int{5, 5}, opinfo.Noncontiguous()).WithName("noncontiguous"))

			// Type promotion.
			supported := op.SupportedDTypes(device)
			capabilities := op.Library().Capabilities()
			for _, partner := range PromotionPartners {
				if partner == dtype {
					continue
				}
				promoted, err := dtypesets.Promote(dtype, partner)
				if err != nil || !supported.Has(partner) || !supported.Has(promoted) ||
					!capabilities.SupportsDType(device.Class, partner) {
					skipf(op, "promotion of %s with %s", dtype, partner)
					continue
				}
				lhs := makeFn([]int{3, 3})
				partnerMakeFn := opinfo.Maker(op, device, partner, requiresGrad)
				other := partnerMakeFn([]int{3, 3}, rhsOptions(op, promoted)...)
				if !emit(opinfo.NewSample(lhs, other).WithName("promotion with " + partner.String())) {
					return
				}
			}

			// Go scalars as "other".
			for _, scalar := range []any{2, 2.5, true} {
				promoted, err := dtypesets.PromoteWithScalar(dtype, scalar)
				if err != nil || !supported.Has(promoted) {
					skipf(op, "scalar %T with %s", scalar, dtype)
					continue
				}
				if !emit(opinfo.NewSample(makeFn([]int{3, 3}), scalar).WithName(fmt.Sprintf("scalar %T", scalar))) {
					return
				}
			}

			if config.alpha {
				var alpha any
				switch dtypesets.CategoryOf(dtype) {
				case dtypesets.CategoryBool:
					alpha = true
				case dtypesets.CategoryInteger:
					alpha = 2
				default:
					alpha = 0.5
				}
				emit(pair([]int{3, 3}, []int{3, 3}).WithKwarg("alpha", alpha).WithName("alpha"))
			}
		})
	}
}

// BinaryErrors generates the error cases shared by binary operators: operands that don't broadcast, operands
// on different devices, and out= arguments that overlap the inputs.
func BinaryErrors(op *opinfo.OpInfo, device tensorlib.Device, dtype dtypes.DType, _ bool, _ map[string]any) iter.Seq[*opinfo.ErrorInput] {
	return errorInputs(func(e *emitter[*opinfo.ErrorInput]) {
		makeFn := noGradMaker(op, device, dtype)
		rhs := rhsOptions(op, dtype)

		sample := opinfo.NewSample(makeFn([]int{2, 3}), makeFn([]int{2, 4}, rhs...))
		e.emit(opinfo.NewErrorInput(sample, tensorlib.RuntimeError,
			regexp.QuoteMeta("The size of tensor a (3) must match the size of tensor b (4) at non-singleton dimension 1")))

		if other, ok := otherDevice(op, device, dtype); ok {
			otherMakeFn := opinfo.MakerFor(op.Library(), other, dtype, false)
			sample = opinfo.NewSample(makeFn([]int{3}), otherMakeFn([]int{3}, rhs...))
			e.emit(opinfo.NewErrorInput(sample, tensorlib.RuntimeError,
				regexp.QuoteMeta("Expected all tensors to be on the same device")))
		}

		if !op.SupportsOut || !dtypesets.CanCast(op.ResultDTypeFor(dtype), dtype) {
			return
		}
		base := makeFn([]int{4})
		input := callOp(op, "narrow", base, 0, 0, 3)
		out := callOp(op, "narrow", base, 0, 1, 3)
		sample = opinfo.NewSample(input, makeFn([]int{3}, rhs...)).WithKwarg("out", out)
		e.emit(opinfo.NewErrorInput(sample, tensorlib.RuntimeError,
			regexp.QuoteMeta("some elements of the input tensor and the written-to tensor refer to a single memory location")))

		out = callOp(op, "expand", makeFn([]int{1}), []int{3})
		sample = opinfo.NewSample(makeFn([]int{3}), makeFn([]int{3}, rhs...)).WithKwarg("out", out)
		e.emit(opinfo.NewErrorInput(sample, tensorlib.RuntimeError,
			regexp.QuoteMeta("more than one element of the written-to tensor refers to a single memory location")))
	})
}

// DivErrors returns the error generator of division with the given rounding mode: the cases of BinaryErrors
// with the rounding mode, and for true division an invalid rounding mode.
func DivErrors(mode RoundingMode) opinfo.ErrorInputsFunc {
	return func(op *opinfo.OpInfo, device tensorlib.Device, dtype dtypes.DType, requiresGrad bool, extra map[string]any) iter.Seq[*opinfo.ErrorInput] {
		return errorInputs(func(e *emitter[*opinfo.ErrorInput]) {
			for errorInput := range BinaryErrors(op, device, dtype, requiresGrad, extra) {
				if mode != RoundingNone {
					errorInput.Sample.WithKwarg("rounding_mode", mode.String())
				}
				if !e.emit(errorInput) {
					return
				}
			}
			if mode != RoundingNone {
				return
			}
			makeFn := noGradMaker(op, device, dtype)
			sample := opinfo.NewSample(makeFn([]int{3}), makeFn([]int{3}, opinfo.ExcludeZero())).WithKwarg("rounding_mode", "ceil")
			e.emit(opinfo.NewErrorInput(sample, tensorlib.ValueError,
				regexp.QuoteMeta("div expected rounding_mode to be one of None, 'trunc', or 'floor' but found 'ceil'")))
		})
	}
}
