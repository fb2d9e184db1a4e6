// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package shapes defines Shape and associated tools.
//
// Shape represents the shape (rank, dimensions and DType) of a tensor used as a sample input. DType
// indicates the type of the unit element and is defined in github.com/gomlx/gopjrt/dtypes.
//
// Differently from the shapes used to build computation graphs, sample shapes may have axes of
// dimension 0: empty tensors are one of the edge cases the fixture engine has to exercise.
//
// ## Glossary
//
//   - Rank: number of axes (dimensions) of a Tensor.
//   - Axis: is the index of a dimension on a multidimensional Tensor. Negative axes count from the end,
//     so axis=-1 refers to the last axis.
//   - Dimension: the size of a multi-dimensions Tensor in one of its axes.
//   - Scalar: is a shape where there are no axes (or dimensions), only a single value
//     of the associated DType.
//   - Empty: a shape with at least one axis of dimension 0, hence with no elements.
//
// Example: a `(float32)[2 3]` shape has rank 2, axis 0 has dimension 2, and axis 1 has dimension 3.
// It can be created with `shapes.Make(dtypes.Float32, 2, 3)`.
package shapes

import (
	"fmt"
	"slices"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/pkg/errors"
)

// Shape represents the shape of a tensor: its DType and the dimension of each of its axes.
type Shape struct {
	DType      dtypes.DType
	Dimensions []int
}

// HasShape is implemented by anything that has a Shape, including Shape itself.
type HasShape interface {
	Shape() Shape
}

// Make returns a Shape structure filled with the values given.
// Dimensions can be 0 (empty tensors), but it panics for negative dimensions.
func Make(dtype dtypes.DType, dimensions ...int) Shape {
	s := Shape{Dimensions: slices.Clone(dimensions), DType: dtype}
	for _, dim := range dimensions {
		if dim < 0 {
			exceptions.Panicf("shapes.Make(%s): cannot create a shape with an axis with dimension < 0", s)
		}
	}
	return s
}

// Invalid returns an invalid shape.
//
// Invalid().Ok() == false.
func Invalid() Shape {
	return Shape{DType: dtypes.InvalidDType}
}

// Ok returns whether this is a valid Shape. A "zero" shape, that is just instantiating it with Shape{} will be invalid.
func (s Shape) Ok() bool { return s.DType != dtypes.InvalidDType }

// Rank of the shape, that is, the number of dimensions.
func (s Shape) Rank() int { return len(s.Dimensions) }

// IsScalar returns whether the shape represents a scalar, that is there are no dimensions (rank==0).
func (s Shape) IsScalar() bool { return s.Ok() && s.Rank() == 0 }

// IsEmpty returns whether the shape has no elements, that is, one of its axes has dimension 0.
func (s Shape) IsEmpty() bool { return s.Size() == 0 }

// Dim returns the dimension of the given axis. axis can take negative numbers, in which
// case it counts as starting from the end -- so axis=-1 refers to the last axis.
// Like with a slice indexing, it panics for an out-of-bound axis.
func (s Shape) Dim(axis int) int {
	adjustedAxis, err := NormalizeAxis(axis, s.Rank())
	if err != nil || s.Rank() == 0 {
		exceptions.Panicf("Shape.Dim(%d) out-of-bounds for rank %d (shape=%s)", axis, s.Rank(), s)
	}
	return s.Dimensions[adjustedAxis]
}

// Shape returns a shallow copy of itself. It implements the HasShape interface.
func (s Shape) Shape() Shape { return s }

// String implements stringer, pretty-prints the shape.
func (s Shape) String() string {
	if s.Rank() == 0 {
		return fmt.Sprintf("(%s)", s.DType)
	}
	return fmt.Sprintf("(%s)%v", s.DType, s.Dimensions)
}

// Size returns the number of elements of DType are needed for this shape. It's the product of all dimensions.
func (s Shape) Size() (size int) {
	size = 1
	for _, d := range s.Dimensions {
		size *= d
	}
	return
}

// Memory returns the memory used to store an array of the given shape, the same as the size in bytes.
func (s Shape) Memory() uintptr {
	return s.DType.Memory() * uintptr(s.Size())
}

// Equal compares two shapes for equality: dtype and dimensions are compared.
func (s Shape) Equal(s2 Shape) bool {
	return s.DType == s2.DType && s.EqualDimensions(s2)
}

// EqualDimensions compares two shapes for equality of dimensions. Dtypes can be different.
func (s Shape) EqualDimensions(s2 Shape) bool {
	return slices.Equal(s.Dimensions, s2.Dimensions)
}

// Clone returns a new deep copy of the shape.
func (s Shape) Clone() (s2 Shape) {
	s2.DType = s.DType
	s2.Dimensions = slices.Clone(s.Dimensions)
	return
}

// WithDType returns a copy of the shape with the DType replaced.
func (s Shape) WithDType(dtype dtypes.DType) Shape {
	s2 := s.Clone()
	s2.DType = dtype
	return s2
}

// Strides returns the row-major (contiguous) strides, in number of elements, for the given dimensions.
// Axes of dimension 0 or 1 still get the stride they would have with dimension 1.
func Strides(dimensions []int) []int {
	strides := make([]int, len(dimensions))
	stride := 1
	for axis := len(dimensions) - 1; axis >= 0; axis-- {
		strides[axis] = stride
		stride *= max(dimensions[axis], 1)
	}
	return strides
}

// NormalizeAxis converts a possibly negative axis into the range [0, rank).
//
// Scalars (rank 0) accept the axes 0 and -1, like a tensor of rank 1, and both normalize to 0.
// The error message follows the convention of the tested library, since error generators match it.
func NormalizeAxis(axis, rank int) (int, error) {
	effectiveRank := max(rank, 1)
	if axis < -effectiveRank || axis >= effectiveRank {
		return 0, errors.Errorf("Dimension out of range (expected to be in range of [%d, %d], but got %d)",
			-effectiveRank, effectiveRank-1, axis)
	}
	if axis < 0 {
		axis += effectiveRank
	}
	return axis, nil
}

// NormalizeAxes normalizes each of the axes with NormalizeAxis, and checks that there are no repeated axes.
func NormalizeAxes(axes []int, rank int) ([]int, error) {
	normalized := make([]int, 0, len(axes))
	for _, axis := range axes {
		adjusted, err := NormalizeAxis(axis, rank)
		if err != nil {
			return nil, err
		}
		if slices.Contains(normalized, adjusted) {
			return nil, errors.Errorf("dim %d appears multiple times in the list of dims", adjusted)
		}
		normalized = append(normalized, adjusted)
	}
	return normalized, nil
}

// Strides returns the row-major (contiguous) strides for the shape, see Strides.
func (s Shape) Strides() []int { return Strides(s.Dimensions) }
