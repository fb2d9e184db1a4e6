// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package opinfo

import (
	"slices"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/opinfo/pkg/core/dtypesets"
	"github.com/gomlx/opinfo/pkg/core/tensorlib"
	"github.com/janpfeifer/must"
)

// MakeOption changes the tensorlib.MakeSpec used by a MakeFunc.
type MakeOption func(spec *tensorlib.MakeSpec)

// Low sets the lower bound of the values.
func Low(low float64) MakeOption {
	return func(spec *tensorlib.MakeSpec) { spec.Low = &low }
}

// High sets the upper bound of the values.
func High(high float64) MakeOption {
	return func(spec *tensorlib.MakeSpec) { spec.High = &high }
}

// Range sets both bounds of the values.
func Range(low, high float64) MakeOption {
	return func(spec *tensorlib.MakeSpec) { spec.Low, spec.High = &low, &high }
}

// InDomain sets the bounds that are present in domain.
func InDomain(domain Domain) MakeOption {
	return func(spec *tensorlib.MakeSpec) {
		if low, ok := domain.Low.Get(); ok {
			spec.Low = &low
		}
		if high, ok := domain.High.Get(); ok {
			spec.High = &high
		}
	}
}

// ExcludeZero replaces zeros by the smallest positive step of the dtype.
func ExcludeZero() MakeOption {
	return func(spec *tensorlib.MakeSpec) { spec.ExcludeZero = true }
}

// Noncontiguous makes a strided view with gaps.
func Noncontiguous() MakeOption {
	return func(spec *tensorlib.MakeSpec) { spec.Noncontiguous = true }
}

// NoGrad disables gradient tracking, e.g. for index tensors.
func NoGrad() MakeOption {
	return func(spec *tensorlib.MakeSpec) { spec.RequiresGrad = false }
}

// WithDType overrides the dtype. Gradient tracking is dropped if the new dtype doesn't support it.
func WithDType(dtype dtypes.DType) MakeOption {
	return func(spec *tensorlib.MakeSpec) { spec.DType = dtype }
}

// MakeFunc creates a tensor with the given dimensions. It panics on failure.
type MakeFunc func(dims []int, options ...MakeOption) tensorlib.Tensor

// Maker returns the MakeFunc used by generators of op: it creates tensors on device with dtype, tracking
// gradients if requiresGrad is set and the dtype supports it.
//
// op must be bound to a library, see Builder.Build.
func Maker(op *OpInfo, device tensorlib.Device, dtype dtypes.DType, requiresGrad bool) MakeFunc {
	if op.lib == nil {
		exceptions.Panicf("opinfo.Maker(%s): record not bound to a library, build it into a Registry first", op.FullName())
	}
	return MakerFor(op.lib, device, dtype, requiresGrad)
}

// MakerFor is like Maker, but takes the library directly.
func MakerFor(lib tensorlib.Library, device tensorlib.Device, dtype dtypes.DType, requiresGrad bool) MakeFunc {
	return func(dims []int, options ...MakeOption) tensorlib.Tensor {
		spec := tensorlib.MakeSpec{
			Dims:         slices.Clone(dims),
			DType:        dtype,
			Device:       device,
			RequiresGrad: requiresGrad,
		}
		for _, option := range options {
			option(&spec)
		}
		if spec.RequiresGrad && !dtypesets.SupportsGrad(spec.DType) {
			spec.RequiresGrad = false
		}
		return must.M1(lib.MakeTensor(spec))
	}
}

// FromValues creates a tensor with the given values on device, for the generators of op. It panics on failure.
func FromValues(op *OpInfo, device tensorlib.Device, dtype dtypes.DType, values []float64, dims ...int) tensorlib.Tensor {
	if op.lib == nil {
		exceptions.Panicf("opinfo.FromValues(%s): record not bound to a library, build it into a Registry first", op.FullName())
	}
	return must.M1(op.lib.FromValues(values, dtype, device, dims...))
}

// Full creates a tensor filled with value on device, for the generators of op. It panics on failure.
func Full(op *OpInfo, device tensorlib.Device, dtype dtypes.DType, value float64, dims ...int) tensorlib.Tensor {
	if op.lib == nil {
		exceptions.Panicf("opinfo.Full(%s): record not bound to a library, build it into a Registry first", op.FullName())
	}
	return must.M1(op.lib.Full(dims, value, dtype, device))
}

// WithRequiresGrad sets gradient tracking on t if requiresGrad and its dtype supports it, and returns t.
func WithRequiresGrad(t tensorlib.Tensor, requiresGrad bool) tensorlib.Tensor {
	if requiresGrad && dtypesets.SupportsGrad(t.DType()) {
		must.M(t.SetRequiresGrad(true))
	}
	return t
}
