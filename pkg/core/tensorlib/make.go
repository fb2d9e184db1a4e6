// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package tensorlib

import (
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/opinfo/pkg/core/dtypesets"
)

// MakeSpec describes a pseudo-random tensor to create with Library.MakeTensor.
//
// Values are drawn uniformly from [Low, High] (High exclusive for integer dtypes), where unset bounds
// default to DefaultRange of the dtype, and are clamped to what the dtype can represent.
type MakeSpec struct {
	Dims   []int
	DType  dtypes.DType
	Device Device

	// Low and High bounds of the values, nil for the dtype default.
	Low, High *float64

	// ExcludeZero replaces zeros by the smallest positive step of the dtype (see dtypesets.Eps).
	ExcludeZero bool

	// Noncontiguous returns a strided view with gaps between elements, if the tensor has more than one element.
	Noncontiguous bool

	// RequiresGrad marks the tensor as tracking gradients. Only valid for floating point dtypes.
	RequiresGrad bool
}

// DefaultRange returns the default [low, high] range of values of the dtype:
// {0, 1} for Bool, [0, 10) for unsigned, [-9, 10) for signed integers and [-9, 9] for floats.
func DefaultRange(dtype dtypes.DType) (low, high float64) {
	switch {
	case dtype == dtypes.Bool:
		return 0, 2
	case dtypesets.IsUnsigned(dtype):
		return 0, 10
	case dtypesets.IsSigned(dtype):
		return -9, 10
	}
	return -9, 9
}

// Bounds returns the effective [low, high] of the spec, after applying defaults and clamping to the
// representable range of the dtype.
func (spec MakeSpec) Bounds() (low, high float64) {
	low, high = DefaultRange(spec.DType)
	if spec.Low != nil {
		low = *spec.Low
	}
	if spec.High != nil {
		high = *spec.High
	}
	minValue, maxValue := dtypesets.Range(spec.DType)
	if spec.DType == dtypes.Bool {
		maxValue = 2
	}
	low = min(max(low, minValue), maxValue)
	high = min(max(high, minValue), maxValue)
	return
}

// Validate checks the spec for errors that don't depend on the library.
func (spec MakeSpec) Validate() error {
	for _, dim := range spec.Dims {
		if dim < 0 {
			return Errorf(RuntimeError, "Trying to create tensor with negative dimension %d: %v", dim, spec.Dims)
		}
	}
	if spec.RequiresGrad && !dtypesets.SupportsGrad(spec.DType) {
		return Errorf(TypeError, "Only Tensors of floating point dtype can require gradients, got %s", spec.DType)
	}
	if spec.Low != nil && spec.High != nil {
		low, high := *spec.Low, *spec.High
		if math.IsNaN(low) || math.IsNaN(high) {
			return Errorf(ValueError, "make_tensor: low and high must not be NaN, got low=%g, high=%g", low, high)
		}
		if low > high {
			return Errorf(ValueError, "make_tensor: low must be less than or equal to high, got low=%g, high=%g", low, high)
		}
	}
	return nil
}

// String implements fmt.Stringer.
func (spec MakeSpec) String() string {
	parts := []string{fmt.Sprintf("(%s)%v", spec.DType, spec.Dims), spec.Device.String()}
	if spec.Low != nil {
		parts = append(parts, fmt.Sprintf("low=%g", *spec.Low))
	}
	if spec.High != nil {
		parts = append(parts, fmt.Sprintf("high=%g", *spec.High))
	}
	if spec.ExcludeZero {
		parts = append(parts, "exclude_zero")
	}
	if spec.Noncontiguous {
		parts = append(parts, "noncontiguous")
	}
	if spec.RequiresGrad {
		parts = append(parts, "requires_grad")
	}
	return "MakeSpec{" + strings.Join(parts, ", ") + "}"
}

// Clone returns a deep copy of the spec.
func (spec MakeSpec) Clone() MakeSpec {
	spec.Dims = slices.Clone(spec.Dims)
	if spec.Low != nil {
		low := *spec.Low
		spec.Low = &low
	}
	if spec.High != nil {
		high := *spec.High
		spec.High = &high
	}
	return spec
}
