// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package hostlib

import (
	"fmt"
	"slices"
	"strings"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/opinfo/pkg/core/dtypesets"
	"github.com/gomlx/opinfo/pkg/core/shapes"
	"github.com/gomlx/opinfo/pkg/core/tensorlib"
	"github.com/gomlx/opinfo/pkg/support/xslices"
)

// storage is the buffer shared by a tensor and its views.
// Values are kept as float64, already converted (quantized) to the dtype of the tensors using it.
type storage struct {
	data []float64
}

// cooData holds the coordinates and values of a sparse COO tensor, sorted in row-major order of
// the coordinates and without duplicates.
type cooData struct {
	indices [][]int
	values  []float64
}

// Tensor implements tensorlib.Tensor for the host library.
type Tensor struct {
	storage      *storage
	offset       int
	dims         []int
	strides      []int
	dtype        dtypes.DType
	device       tensorlib.Device
	requiresGrad bool

	// coo is set for tensors with the SparseCOO layout, in which case storage is nil.
	coo *cooData
}

// Compile-time check that Tensor implements tensorlib.Tensor.
var _ tensorlib.Tensor = (*Tensor)(nil)

// newTensor creates a contiguous tensor owning data, which must already be quantized to dtype.
func newTensor(dtype dtypes.DType, device tensorlib.Device, dims []int, data []float64) *Tensor {
	if len(data) != xslices.Prod(dims) {
		exceptions.Panicf("hostlib: %d values given for a tensor of dimensions %v", len(data), dims)
	}
	return &Tensor{
		storage: &storage{data: data},
		dims:    slices.Clone(dims),
		strides: shapes.Strides(dims),
		dtype:   dtype,
		device:  device,
	}
}

// newTensorFrom is like newTensor, but quantizes the values in data to the dtype in-place first.
func newTensorFrom(dtype dtypes.DType, device tensorlib.Device, dims []int, data []float64) *Tensor {
	quantizeAll(dtype, data)
	return newTensor(dtype, device, dims, data)
}

// Shape implements shapes.HasShape.
func (t *Tensor) Shape() shapes.Shape { return shapes.Make(t.dtype, t.dims...) }

// DType implements tensorlib.Tensor.
func (t *Tensor) DType() dtypes.DType { return t.dtype }

// Dims implements tensorlib.Tensor.
func (t *Tensor) Dims() []int { return slices.Clone(t.dims) }

// Rank implements tensorlib.Tensor.
func (t *Tensor) Rank() int { return len(t.dims) }

// Size implements tensorlib.Tensor.
func (t *Tensor) Size() int { return xslices.Prod(t.dims) }

// Device implements tensorlib.Tensor.
func (t *Tensor) Device() tensorlib.Device { return t.device }

// Layout implements tensorlib.Tensor.
func (t *Tensor) Layout() tensorlib.Layout {
	if t.coo != nil {
		return tensorlib.SparseCOO
	}
	return tensorlib.Strided
}

// IsSparse returns whether the tensor uses the SparseCOO layout.
func (t *Tensor) IsSparse() bool { return t.coo != nil }

// Strides implements tensorlib.Tensor.
func (t *Tensor) Strides() []int {
	if t.coo != nil {
		return nil
	}
	return slices.Clone(t.strides)
}

// IsContiguous implements tensorlib.Tensor. Axes of dimension 1 are ignored, and empty tensors are
// always contiguous.
func (t *Tensor) IsContiguous() bool {
	if t.coo != nil {
		return false
	}
	if t.Size() == 0 {
		return true
	}
	expected := shapes.Strides(t.dims)
	for axis, dim := range t.dims {
		if dim != 1 && t.strides[axis] != expected[axis] {
			return false
		}
	}
	return true
}

// SharesStorage implements tensorlib.Tensor.
func (t *Tensor) SharesStorage(other tensorlib.Tensor) bool {
	o, ok := other.(*Tensor)
	return ok && t.storage != nil && t.storage == o.storage
}

// sameView returns whether both tensors read exactly the same elements of the same storage.
func (t *Tensor) sameView(o *Tensor) bool {
	return t.SharesStorage(o) && t.offset == o.offset && slices.Equal(t.dims, o.dims) && slices.Equal(t.strides, o.strides)
}

// hasInternalOverlap returns whether more than one element of the tensor maps to the same storage position,
// as with expanded tensors.
func (t *Tensor) hasInternalOverlap() bool {
	for axis, dim := range t.dims {
		if dim > 1 && t.strides[axis] == 0 {
			return true
		}
	}
	return false
}

// RequiresGrad implements tensorlib.Tensor.
func (t *Tensor) RequiresGrad() bool { return t.requiresGrad }

// SetRequiresGrad implements tensorlib.Tensor.
func (t *Tensor) SetRequiresGrad(requiresGrad bool) error {
	if requiresGrad && !dtypesets.SupportsGrad(t.dtype) {
		return tensorlib.Errorf(tensorlib.RuntimeError,
			"only Tensors of floating point dtype can require gradients, got %s", t.dtype)
	}
	t.requiresGrad = requiresGrad
	return nil
}

// at returns the value at the given indices, for strided tensors.
func (t *Tensor) at(indices []int) float64 {
	return t.storage.data[shapes.FlatIndex(indices, t.strides, t.offset)]
}

// Values implements tensorlib.Tensor.
func (t *Tensor) Values() []float64 {
	if t.coo != nil {
		dense := make([]float64, t.Size())
		denseStrides := shapes.Strides(t.dims)
		for ii, indices := range t.coo.indices {
			dense[shapes.FlatIndex(indices, denseStrides, 0)] += t.coo.values[ii]
		}
		return dense
	}
	values := make([]float64, 0, t.Size())
	for indices := range shapes.IterDims(t.dims) {
		values = append(values, t.at(indices))
	}
	return values
}

// SetValue implements tensorlib.Tensor.
func (t *Tensor) SetValue(flatIndex int, value float64) {
	if t.coo != nil {
		exceptions.Panicf("hostlib: SetValue not supported for sparse tensors")
	}
	size := t.Size()
	if flatIndex < 0 || flatIndex >= size {
		exceptions.Panicf("hostlib: SetValue(%d) out of bounds for tensor with %d elements", flatIndex, size)
	}
	indices := unravel(flatIndex, t.dims)
	t.storage.data[shapes.FlatIndex(indices, t.strides, t.offset)] = quantize(t.dtype, value)
}

// unravel converts a row-major flat index into indices for the given dimensions.
func unravel(flatIndex int, dims []int) []int {
	indices := make([]int, len(dims))
	for axis := len(dims) - 1; axis >= 0; axis-- {
		if dims[axis] > 0 {
			indices[axis] = flatIndex % dims[axis]
			flatIndex /= dims[axis]
		}
	}
	return indices
}

// Clone implements tensorlib.Tensor.
func (t *Tensor) Clone() tensorlib.Tensor { return t.clone() }

func (t *Tensor) clone() *Tensor {
	if t.coo != nil {
		coo := &cooData{
			indices: xslices.Map(t.coo.indices, slices.Clone[[]int]),
			values:  slices.Clone(t.coo.values),
		}
		return &Tensor{dims: slices.Clone(t.dims), dtype: t.dtype, device: t.device, requiresGrad: t.requiresGrad, coo: coo}
	}
	c := newTensor(t.dtype, t.device, t.dims, t.Values())
	c.requiresGrad = t.requiresGrad
	return c
}

// Detach implements tensorlib.Tensor.
func (t *Tensor) Detach() tensorlib.Tensor {
	d := t.view(t.dims, t.strides, t.offset)
	d.requiresGrad = false
	if t.coo != nil {
		d.coo = t.coo
	}
	return d
}

// view returns a new tensor sharing the storage of t, with the given layout. It doesn't track gradients.
func (t *Tensor) view(dims, strides []int, offset int) *Tensor {
	return &Tensor{
		storage: t.storage,
		offset:  offset,
		dims:    slices.Clone(dims),
		strides: slices.Clone(strides),
		dtype:   t.dtype,
		device:  t.device,
	}
}

// dense returns t itself if strided, or a dense copy if it is sparse.
func (t *Tensor) dense() *Tensor {
	if t.coo == nil {
		return t
	}
	d := newTensor(t.dtype, t.device, t.dims, t.Values())
	d.requiresGrad = t.requiresGrad
	return d
}

// broadcastValues returns the values of t broadcast to the target dimensions, in row-major order.
func (t *Tensor) broadcastValues(target []int) []float64 {
	d := t.dense()
	strides := shapes.BroadcastStrides(d.dims, d.strides, target)
	values := make([]float64, 0, xslices.Prod(target))
	for indices := range shapes.IterDims(target) {
		values = append(values, d.storage.data[shapes.FlatIndex(indices, strides, d.offset)])
	}
	return values
}

// String implements fmt.Stringer. It prints up to 8 values.
func (t *Tensor) String() string {
	var sb strings.Builder
	sb.WriteString(t.Shape().String())
	if t.device != tensorlib.CPU {
		fmt.Fprintf(&sb, " device=%s", t.device)
	}
	if t.coo != nil {
		fmt.Fprintf(&sb, " sparse(nnz=%d)", len(t.coo.values))
	} else if !t.IsContiguous() {
		fmt.Fprintf(&sb, " strides=%v", t.strides)
	}
	if t.requiresGrad {
		sb.WriteString(" requires_grad")
	}
	values := t.Values()
	const maxShown = 8
	shown := values[:min(len(values), maxShown)]
	fmt.Fprintf(&sb, " %v", shown)
	if len(values) > maxShown {
		sb.WriteString("...")
	}
	return sb.String()
}

// asTensor converts a value to a host tensor, or returns a TypeError.
func asTensor(v any, opName, argName string) (*Tensor, error) {
	t, ok := v.(*Tensor)
	if !ok || t == nil {
		return nil, tensorlib.Errorf(tensorlib.TypeError, "%s(): argument '%s' must be Tensor, not %T", opName, argName, v)
	}
	return t, nil
}
