// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package tensorlib

import (
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/opinfo/pkg/core/shapes"
)

// Tensor is a multi-dimensional array owned by a Library.
//
// Values are exposed as float64 in row-major order regardless of the dtype: every dtype the fixture
// engine supports is exactly representable in float64, except for Int64/Uint64 values beyond 2^53, which
// the sample generators never produce.
type Tensor interface {
	shapes.HasShape

	// DType of the elements.
	DType() dtypes.DType

	// Dims returns a copy of the dimensions of the tensor.
	Dims() []int

	// Rank is the number of axes.
	Rank() int

	// Size is the number of elements.
	Size() int

	Device() Device
	Layout() Layout

	// Strides returns the number of storage elements to skip per step on each axis. It returns nil for
	// sparse tensors.
	Strides() []int

	// IsContiguous returns whether the tensor is strided with row-major strides and no gaps.
	IsContiguous() bool

	// SharesStorage returns whether both tensors are views of the same storage.
	SharesStorage(other Tensor) bool

	// RequiresGrad returns whether gradients are tracked for this tensor.
	RequiresGrad() bool

	// SetRequiresGrad changes gradient tracking in-place. It fails if the dtype is not floating point.
	SetRequiresGrad(requiresGrad bool) error

	// Values returns a copy of the (dense) values in row-major order.
	Values() []float64

	// SetValue sets the element at the given row-major position, converting value to the dtype.
	// It panics for sparse tensors.
	SetValue(flatIndex int, value float64)

	// Clone returns a copy with its own contiguous storage, keeping the layout and RequiresGrad.
	Clone() Tensor

	// Detach returns a view of the same storage that doesn't track gradients.
	Detach() Tensor

	String() string
}
