// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package hostlib

import (
	"slices"
	"strconv"
	"strings"

	"github.com/gomlx/opinfo/pkg/core/dtypesets"
	"github.com/gomlx/opinfo/pkg/core/shapes"
	"github.com/gomlx/opinfo/pkg/core/tensorlib"
	"github.com/gomlx/opinfo/pkg/support/xslices"
)

func init() {
	registerOp("reshape", execReshape, false)
	registerOp("transpose", execTranspose, false)
	registerOp("permute", execPermute, false)
	registerOp("squeeze", execSqueeze, false)
	registerOp("unsqueeze", execUnsqueeze, false)
	registerOp("flatten", execFlatten, false)
	registerOp("flip", execFlip, false)
	registerOp("expand", execExpand, false)
	registerOp("narrow", execNarrow, false)
	registerOp("cat", execCat, false)
	registerOp("stack", execStack, false)
}

// gradView returns a view of x that tracks gradients if x does.
func gradView(x *Tensor, dims, strides []int, offset int) *Tensor {
	v := x.view(dims, strides, offset)
	v.requiresGrad = x.requiresGrad
	return v
}

// reshaped returns x with new dimensions: a view if x is contiguous, a copy otherwise.
func reshaped(x *Tensor, dims []int) *Tensor {
	if x.IsContiguous() {
		return gradView(x, dims, shapes.Strides(dims), x.offset)
	}
	result := newTensor(x.dtype, x.device, dims, x.Values())
	result.requiresGrad = x.requiresGrad
	return result
}

// inferShape resolves one -1 entry of shape for a tensor of the given size.
func inferShape(shape []int, size int) ([]int, error) {
	shape = slices.Clone(shape)
	inferred := -1
	known := 1
	for axis, dim := range shape {
		switch {
		case dim == -1:
			if inferred >= 0 {
				return nil, tensorlib.Errorf(tensorlib.RuntimeError, "only one dimension can be inferred")
			}
			inferred = axis
		case dim < 0:
			return nil, tensorlib.Errorf(tensorlib.RuntimeError, "invalid shape dimension %d", dim)
		default:
			known *= dim
		}
	}
	if inferred >= 0 {
		if known == 0 || size%known != 0 {
			return nil, tensorlib.Errorf(tensorlib.RuntimeError, "shape '%s' is invalid for input of size %d", formatDims(shape), size)
		}
		shape[inferred] = size / known
	} else if known != size {
		return nil, tensorlib.Errorf(tensorlib.RuntimeError, "shape '%s' is invalid for input of size %d", formatDims(shape), size)
	}
	return shape, nil
}

// formatDims formats dims as "[2, 3]".
func formatDims(dims []int) string {
	return "[" + strings.Join(xslices.Map(dims, strconv.Itoa), ", ") + "]"
}

// execReshape implements reshape(input, shape).
func execReshape(c *opCall) (any, error) {
	x, err := c.inputTensor()
	if err != nil {
		return nil, err
	}
	shape, found, err := c.intsParam(0, "shape")
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, tensorlib.Errorf(tensorlib.TypeError, "reshape() missing required argument 'shape'")
	}
	dims, err := inferShape(shape, x.Size())
	if err != nil {
		return nil, err
	}
	return reshaped(x, dims), nil
}

// execTranspose implements transpose(input, dim0, dim1) as a view.
func execTranspose(c *opCall) (any, error) {
	x, err := c.inputTensor()
	if err != nil {
		return nil, err
	}
	dim0, err := c.axisParam(0, "dim0", 0, x.Rank())
	if err != nil {
		return nil, err
	}
	dim1, err := c.axisParam(1, "dim1", 0, x.Rank())
	if err != nil {
		return nil, err
	}
	dims, strides := slices.Clone(x.dims), slices.Clone(x.strides)
	if x.Rank() > 0 {
		dims[dim0], dims[dim1] = dims[dim1], dims[dim0]
		strides[dim0], strides[dim1] = strides[dim1], strides[dim0]
	}
	return gradView(x, dims, strides, x.offset), nil
}

// execPermute implements permute(input, dims) as a view.
func execPermute(c *opCall) (any, error) {
	x, err := c.inputTensor()
	if err != nil {
		return nil, err
	}
	order, _, err := c.intsParam(0, "dims")
	if err != nil {
		return nil, err
	}
	if len(order) != x.Rank() {
		return nil, tensorlib.Errorf(tensorlib.RuntimeError,
			"permute(): number of dimensions in the tensor input does not match the length of the desired ordering of dimensions i.e. input.dim() = %d is not equal to len(dims) = %d",
			x.Rank(), len(order))
	}
	axes := make([]int, len(order))
	for ii, axis := range order {
		if axes[ii], err = normalizeAxis(axis, x.Rank()); err != nil {
			return nil, err
		}
		if slices.Contains(axes[:ii], axes[ii]) {
			return nil, tensorlib.Errorf(tensorlib.RuntimeError, "permute(): duplicate dims are not allowed.")
		}
	}
	dims := xslices.Map(axes, func(axis int) int { return x.dims[axis] })
	strides := xslices.Map(axes, func(axis int) int { return x.strides[axis] })
	return gradView(x, dims, strides, x.offset), nil
}

// execSqueeze implements squeeze(input, dim=None): removes the given axes (or all) of dimension 1.
func execSqueeze(c *opCall) (any, error) {
	x, err := c.inputTensor()
	if err != nil {
		return nil, err
	}
	dimList, found, err := c.intsParam(0, "dim")
	if err != nil {
		return nil, err
	}
	axes := xslices.Iota(0, x.Rank())
	if found {
		if axes, err = normalizeAxes(dimList, x.Rank()); err != nil {
			return nil, err
		}
	}
	var dims, strides []int
	for axis, dim := range x.dims {
		if dim == 1 && slices.Contains(axes, axis) {
			continue
		}
		dims = append(dims, dim)
		strides = append(strides, x.strides[axis])
	}
	return gradView(x, dims, strides, x.offset), nil
}

// execUnsqueeze implements unsqueeze(input, dim): inserts an axis of dimension 1 at dim, in [-rank-1, rank].
func execUnsqueeze(c *opCall) (any, error) {
	x, err := c.inputTensor()
	if err != nil {
		return nil, err
	}
	axis, err := c.axisParam(0, "dim", 0, x.Rank()+1)
	if err != nil {
		return nil, err
	}
	stride := 1
	if axis < x.Rank() {
		stride = x.strides[axis] * max(x.dims[axis], 1)
	}
	dims := slices.Insert(slices.Clone(x.dims), axis, 1)
	strides := slices.Insert(slices.Clone(x.strides), axis, stride)
	return gradView(x, dims, strides, x.offset), nil
}

// execFlatten implements flatten(input, start_dim=0, end_dim=-1). Scalars become 1D tensors with one element.
func execFlatten(c *opCall) (any, error) {
	x, err := c.inputTensor()
	if err != nil {
		return nil, err
	}
	if x.Rank() == 0 {
		return reshaped(x, []int{1}), nil
	}
	start, err := c.axisParam(0, "start_dim", 0, x.Rank())
	if err != nil {
		return nil, err
	}
	end, err := c.axisParam(1, "end_dim", -1, x.Rank())
	if err != nil {
		return nil, err
	}
	if start > end {
		return nil, tensorlib.Errorf(tensorlib.RuntimeError, "flatten() has invalid args: start_dim cannot come after end_dim")
	}
	dims := slices.Clone(x.dims[:start])
	dims = append(dims, xslices.Prod(x.dims[start:end+1]))
	dims = append(dims, x.dims[end+1:]...)
	return reshaped(x, dims), nil
}

// execFlip implements flip(input, dims), returning a copy.
func execFlip(c *opCall) (any, error) {
	x, err := c.inputTensor()
	if err != nil {
		return nil, err
	}
	dimList, _, err := c.intsParam(0, "dims")
	if err != nil {
		return nil, err
	}
	axes, err := normalizeAxes(dimList, x.Rank())
	if err != nil {
		return nil, err
	}
	values := make([]float64, 0, x.Size())
	source := make([]int, x.Rank())
	for indices := range shapes.IterDims(x.dims) {
		copy(source, indices)
		for _, axis := range axes {
			if x.Rank() > 0 {
				source[axis] = x.dims[axis] - 1 - indices[axis]
			}
		}
		values = append(values, x.at(source))
	}
	result := newTensor(x.dtype, x.device, x.dims, values)
	result.requiresGrad = x.requiresGrad
	return result, nil
}

// execExpand implements expand(input, sizes) as a view with zero strides: -1 keeps the dimension.
func execExpand(c *opCall) (any, error) {
	x, err := c.inputTensor()
	if err != nil {
		return nil, err
	}
	sizes, _, err := c.intsParam(0, "sizes")
	if err != nil {
		return nil, err
	}
	if len(sizes) < x.Rank() {
		return nil, tensorlib.Errorf(tensorlib.RuntimeError,
			"expand: the number of sizes provided (%d) must be greater or equal to the number of dimensions in the tensor (%d)",
			len(sizes), x.Rank())
	}
	offset := len(sizes) - x.Rank()
	dims := make([]int, len(sizes))
	strides := make([]int, len(sizes))
	for axis, size := range sizes {
		if axis < offset {
			if size < 0 {
				return nil, tensorlib.Errorf(tensorlib.RuntimeError,
					"The expanded size of the tensor (%d) isn't allowed in a leading, non-existing dimension %d", size, axis)
			}
			dims[axis] = size
			continue
		}
		dim := x.dims[axis-offset]
		switch {
		case size == -1 || size == dim:
			dims[axis] = dim
			strides[axis] = x.strides[axis-offset]
		case dim == 1:
			dims[axis] = size
		default:
			return nil, tensorlib.Errorf(tensorlib.RuntimeError,
				"The expanded size of the tensor (%d) must match the existing size (%d) at non-singleton dimension %d.  Target sizes: %s.  Tensor sizes: %s",
				size, dim, axis, formatDims(sizes), formatDims(x.dims))
		}
	}
	return gradView(x, dims, strides, x.offset), nil
}

// execNarrow implements narrow(input, dim, start, length) as a view.
func execNarrow(c *opCall) (any, error) {
	x, err := c.inputTensor()
	if err != nil {
		return nil, err
	}
	if x.Rank() == 0 {
		return nil, tensorlib.Errorf(tensorlib.RuntimeError, "narrow() cannot be applied to a 0-dim tensor.")
	}
	axis, err := c.axisParam(0, "dim", 0, x.Rank())
	if err != nil {
		return nil, err
	}
	start, err := c.requiredIntParam(1, "start")
	if err != nil {
		return nil, err
	}
	length, err := c.requiredIntParam(2, "length")
	if err != nil {
		return nil, err
	}
	dim := x.dims[axis]
	if start < -dim || start > dim {
		return nil, tensorlib.Errorf(tensorlib.IndexError,
			"start out of range (expected to be in range of [%d, %d], but got %d)", -dim, dim, start)
	}
	if start < 0 {
		start += dim
	}
	if length < 0 || start+length > dim {
		return nil, tensorlib.Errorf(tensorlib.RuntimeError,
			"start (%d) + length (%d) exceeds dimension size (%d).", start, length, dim)
	}
	dims := slices.Clone(x.dims)
	dims[axis] = length
	return gradView(x, dims, x.strides, x.offset+start*x.strides[axis]), nil
}

// tensorList parses the input of cat and stack: a list of tensors.
func (c *opCall) tensorList() ([]*Tensor, error) {
	list, ok := c.input.([]tensorlib.Tensor)
	if !ok {
		return nil, c.typeError("tensors", "tuple of Tensors", c.input)
	}
	tensors := make([]*Tensor, len(list))
	for ii, t := range list {
		var err error
		if tensors[ii], err = asTensor(t, c.name, "tensors"); err != nil {
			return nil, err
		}
	}
	return tensors, nil
}

// concatenate joins tensors (all with the same rank) along axis, converting values to the promoted dtype.
func concatenate(tensors []*Tensor, axis int) (*Tensor, error) {
	dtype := tensors[0].dtype
	requiresGrad := false
	for _, t := range tensors[1:] {
		var err error
		if dtype, err = dtypesets.Promote(dtype, t.dtype); err != nil {
			return nil, tensorlib.Classify(tensorlib.RuntimeError, err)
		}
	}
	dims := slices.Clone(tensors[0].dims)
	dims[axis] = 0
	for _, t := range tensors {
		dims[axis] += t.dims[axis]
		requiresGrad = requiresGrad || t.requiresGrad
	}
	outStrides := shapes.Strides(dims)
	values := make([]float64, xslices.Prod(dims))
	position := make([]int, len(dims))
	start := 0
	for _, t := range tensors {
		for indices := range shapes.IterDims(t.dims) {
			copy(position, indices)
			position[axis] += start
			values[shapes.FlatIndex(position, outStrides, 0)] = t.at(indices)
		}
		start += t.dims[axis]
	}
	result := newTensorFrom(dtype, tensors[0].device, dims, values)
	result.requiresGrad = requiresGrad && dtypesets.IsFloating(dtype)
	return result, nil
}

// execCat implements cat(tensors, dim=0). 1D empty tensors are skipped, for legacy compatibility.
func execCat(c *opCall) (any, error) {
	all, err := c.tensorList()
	if err != nil {
		return nil, err
	}
	if len(all) == 0 {
		return nil, tensorlib.Errorf(tensorlib.RuntimeError, "torch.cat(): expected a non-empty list of Tensors")
	}
	for ii, t := range all {
		if t.Rank() == 0 {
			return nil, tensorlib.Errorf(tensorlib.RuntimeError,
				"zero-dimensional tensor (at position %d) cannot be concatenated", ii)
		}
	}
	tensors := xslices.Filter(all, func(t *Tensor) bool { return !(t.Rank() == 1 && t.dims[0] == 0) })
	if len(tensors) == 0 {
		return concatenate(all[:1], 0)
	}
	axis, err := c.axisParam(0, "dim", 0, tensors[0].Rank())
	if err != nil {
		return nil, err
	}
	reference := tensors[0]
	for ii, t := range tensors {
		if t.Rank() != reference.Rank() {
			return nil, tensorlib.Errorf(tensorlib.RuntimeError,
				"Tensors must have same number of dimensions: got %d and %d", reference.Rank(), t.Rank())
		}
		for a, dim := range t.dims {
			if a != axis && dim != reference.dims[a] {
				return nil, tensorlib.Errorf(tensorlib.RuntimeError,
					"Sizes of tensors must match except in dimension %d. Expected size %d but got size %d for tensor number %d in the list.",
					axis, reference.dims[a], dim, ii)
			}
		}
	}
	return concatenate(tensors, axis)
}

// execStack implements stack(tensors, dim=0): all tensors must have the same dimensions.
func execStack(c *opCall) (any, error) {
	tensors, err := c.tensorList()
	if err != nil {
		return nil, err
	}
	if len(tensors) == 0 {
		return nil, tensorlib.Errorf(tensorlib.RuntimeError, "stack expects a non-empty TensorList")
	}
	for ii, t := range tensors {
		if !slices.Equal(t.dims, tensors[0].dims) {
			return nil, tensorlib.Errorf(tensorlib.RuntimeError,
				"stack expects each tensor to be equal size, but got %s at entry 0 and %s at entry %d",
				formatDims(tensors[0].dims), formatDims(t.dims), ii)
		}
	}
	axis, err := c.axisParam(0, "dim", 0, tensors[0].Rank()+1)
	if err != nil {
		return nil, err
	}
	expanded := make([]*Tensor, len(tensors))
	for ii, t := range tensors {
		dims := slices.Insert(slices.Clone(t.dims), axis, 1)
		expanded[ii] = reshaped(t, dims)
	}
	return concatenate(expanded, axis)
}
