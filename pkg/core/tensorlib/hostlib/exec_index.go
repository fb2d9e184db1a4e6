// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package hostlib

import (
	"slices"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/opinfo/pkg/core/dtypesets"
	"github.com/gomlx/opinfo/pkg/core/shapes"
	"github.com/gomlx/opinfo/pkg/core/tensorlib"
	"github.com/gomlx/opinfo/pkg/support/xslices"
)

func init() {
	registerOp("index_select", execIndexFamily, false)
	registerOp("index_add", execIndexFamily, false)
	registerOp("index_copy", execIndexFamily, false)
	registerOp("index_fill", execIndexFamily, false)
	registerOp("gather", execGather, false)
	registerOp("scatter", execScatter, false)
	registerOp("scatter_add", execScatter, false)
	registerOp("masked_fill", execMaskedFill, false)
}

// atLeast1D returns the dims of x, with scalars taken as 1D tensors with one element.
func atLeast1D(x *Tensor) []int {
	if x.Rank() == 0 {
		return []int{1}
	}
	return x.dims
}

// indexValues validates an index tensor of the index family (a vector, or a scalar, of Int32 or Int64) and
// returns its values normalized to [0, size).
func (c *opCall) indexValues(index *Tensor, axis, size int) ([]int, error) {
	if index.Rank() > 1 {
		return nil, tensorlib.Errorf(tensorlib.IndexError, "%s(): Index is supposed to be a vector", c.name)
	}
	if index.dtype != dtypes.Int64 && index.dtype != dtypes.Int32 {
		return nil, tensorlib.Errorf(tensorlib.IndexError, "%s(): Expected dtype int32/int64 for index", c.name)
	}
	values := index.Values()
	indices := make([]int, len(values))
	for ii, v := range values {
		idx := int(v)
		if idx < -size || idx >= size {
			return nil, tensorlib.Errorf(tensorlib.IndexError,
				"index %d is out of bounds for dimension %d with size %d", idx, axis, size)
		}
		if idx < 0 {
			idx += size
		}
		indices[ii] = idx
	}
	return indices, nil
}

// execIndexFamily implements, with dim-indexed slices of input selected by a vector index:
//
//   - index_select(input, dim, index)
//   - index_add(input, dim, index, source, alpha=1)
//   - index_copy(input, dim, index, source)
//   - index_fill(input, dim, index, value)
func execIndexFamily(c *opCall) (any, error) {
	x, err := c.inputTensor()
	if err != nil {
		return nil, err
	}
	axis, err := c.axisParam(0, "dim", 0, x.Rank())
	if err != nil {
		return nil, err
	}
	index, err := c.tensorParam(1, "index")
	if err != nil {
		return nil, err
	}
	dims := atLeast1D(x)
	indices, err := c.indexValues(index, axis, dims[axis])
	if err != nil {
		return nil, err
	}
	strides := shapes.Strides(dims)
	xValues := x.Values()

	if c.name == "index_select" {
		outDims := slices.Clone(dims)
		outDims[axis] = len(indices)
		values := make([]float64, 0, xslices.Prod(outDims))
		source := make([]int, len(dims))
		for position := range shapes.IterDims(outDims) {
			copy(source, position)
			source[axis] = indices[position[axis]]
			values = append(values, xValues[shapes.FlatIndex(source, strides, 0)])
		}
		if x.Rank() == 0 && index.Rank() == 0 {
			outDims = nil
		}
		result := newTensor(x.dtype, x.device, outDims, values)
		result.requiresGrad = x.requiresGrad
		return result, nil
	}

	var sourceValues []float64
	var alpha float64 = 1
	if c.name == "index_fill" {
		fillValue, found := c.param(2, "value")
		if !found {
			return nil, tensorlib.Errorf(tensorlib.TypeError, "index_fill() missing required argument 'value'")
		}
		if t, ok := fillValue.(*Tensor); ok {
			if t.Rank() != 0 {
				return nil, tensorlib.Errorf(tensorlib.RuntimeError,
					"index_fill_ only supports a 0-dimensional value tensor, but got tensor with %d dimension(s).", t.Rank())
			}
			fillValue = t.Values()[0]
		} else if !isScalar(fillValue) {
			return nil, c.typeError("value", "Number", fillValue)
		}
		scalar := quantize(x.dtype, scalarValue(fillValue))
		sourceValues = make([]float64, len(indices)*xslices.Prod(dims)/max(dims[axis], 1))
		for ii := range sourceValues {
			sourceValues[ii] = scalar
		}
	} else {
		source, err := c.tensorParam(2, "source")
		if err != nil {
			return nil, err
		}
		if source.dtype != x.dtype {
			return nil, tensorlib.Errorf(tensorlib.RuntimeError,
				"%s(): self (%s) and source (%s) must have the same scalar type", c.name, x.dtype, source.dtype)
		}
		expected := slices.Clone(dims)
		expected[axis] = len(indices)
		if !slices.Equal(atLeast1D(source), expected) && !(source.Rank() == 0 && len(indices) == 1 && xslices.Prod(expected) == 1) {
			return nil, tensorlib.Errorf(tensorlib.RuntimeError,
				"%s(): Source/destination tensor must have same slice shapes. Destination slice shape: %s at dimension %d and source slice shape: %s at dimension 0.",
				c.name, formatDims(expected), axis, formatDims(source.dims))
		}
		sourceValues = source.Values()
		if c.name == "index_add" {
			if alpha, err = c.floatParam(3, "alpha", 1); err != nil {
				return nil, err
			}
		}
	}

	sourceDims := slices.Clone(dims)
	sourceDims[axis] = len(indices)
	target := make([]int, len(dims))
	ii := 0
	for position := range shapes.IterDims(sourceDims) {
		copy(target, position)
		target[axis] = indices[position[axis]]
		flat := shapes.FlatIndex(target, strides, 0)
		if c.name == "index_add" {
			xValues[flat] += alpha * sourceValues[ii]
		} else {
			xValues[flat] = sourceValues[ii]
		}
		ii++
	}
	result := newTensorFrom(x.dtype, x.device, x.dims, xValues)
	result.requiresGrad = x.requiresGrad && dtypesets.IsFloating(x.dtype)
	return result, nil
}

// gatherIndex validates the index of the gather family: same rank as input, Int64, and no larger than
// input (or src) on the axes other than dim.
func (c *opCall) gatherIndex(x, index *Tensor, axis int, others ...*Tensor) error {
	if index.Rank() != x.Rank() && !(index.Rank() <= 1 && x.Rank() <= 1) {
		selfName := "input"
		if c.name != "gather" {
			selfName = "self"
		}
		return tensorlib.Errorf(tensorlib.RuntimeError,
			"Index tensor must have the same number of dimensions as %s tensor", selfName)
	}
	if index.dtype != dtypes.Int64 {
		return tensorlib.Errorf(tensorlib.RuntimeError, "%s(): Expected dtype int64 for index", c.name)
	}
	indexDims, xDims := atLeast1D(index), atLeast1D(x)
	for a := range indexDims {
		if a != axis && indexDims[a] > xDims[a] {
			return tensorlib.Errorf(tensorlib.RuntimeError,
				"Size does not match at dimension %d expected index %s to be smaller than self %s apart from dimension %d",
				a, formatDims(index.dims), formatDims(x.dims), axis)
		}
		for _, other := range others {
			if otherDims := atLeast1D(other); indexDims[a] > otherDims[a] {
				return tensorlib.Errorf(tensorlib.RuntimeError,
					"Expected index %s to be smaller than self %s apart from dimension %d and to be smaller size than src %s",
					formatDims(index.dims), formatDims(x.dims), axis, formatDims(other.dims))
			}
		}
	}
	return nil
}

// execGather implements gather(input, dim, index): out[i][j] = input[index[i][j]][j] for dim=0.
func execGather(c *opCall) (any, error) {
	x, err := c.inputTensor()
	if err != nil {
		return nil, err
	}
	axis, err := c.axisParam(0, "dim", 0, x.Rank())
	if err != nil {
		return nil, err
	}
	index, err := c.tensorParam(1, "index")
	if err != nil {
		return nil, err
	}
	if err = c.gatherIndex(x, index, axis); err != nil {
		return nil, err
	}
	xDims := atLeast1D(x)
	xStrides := shapes.Strides(xDims)
	xValues, indexValues := x.Values(), index.Values()
	values := make([]float64, len(indexValues))
	source := make([]int, len(xDims))
	ii := 0
	for position := range shapes.IterDims(atLeast1D(index)) {
		idx := int(indexValues[ii])
		if idx < -xDims[axis] || idx >= xDims[axis] {
			return nil, tensorlib.Errorf(tensorlib.RuntimeError,
				"index %d is out of bounds for dimension %d with size %d", idx, axis, xDims[axis])
		}
		if idx < 0 {
			idx += xDims[axis]
		}
		copy(source, position)
		source[axis] = idx
		values[ii] = xValues[shapes.FlatIndex(source, xStrides, 0)]
		ii++
	}
	result := newTensor(x.dtype, x.device, index.dims, values)
	result.requiresGrad = x.requiresGrad
	return result, nil
}

// execScatter implements scatter(input, dim, index, src) and scatter_add(input, dim, index, src):
// input[index[i][j]][j] = src[i][j] (or += for scatter_add) for dim=0. For scatter, src can also be a scalar.
func execScatter(c *opCall) (any, error) {
	x, err := c.inputTensor()
	if err != nil {
		return nil, err
	}
	axis, err := c.axisParam(0, "dim", 0, x.Rank())
	if err != nil {
		return nil, err
	}
	index, err := c.tensorParam(1, "index")
	if err != nil {
		return nil, err
	}
	src, found := c.param(2, "src")
	if !found {
		return nil, tensorlib.Errorf(tensorlib.TypeError, "%s() missing required argument 'src'", c.name)
	}
	srcTensor, srcIsTensor := src.(*Tensor)
	var others []*Tensor
	if srcIsTensor {
		if srcTensor.dtype != x.dtype {
			return nil, tensorlib.Errorf(tensorlib.RuntimeError,
				"%s(): Expected self.dtype to be equal to src.dtype", c.name)
		}
		others = append(others, srcTensor)
	} else if c.name == "scatter_add" || !isScalar(src) {
		return nil, c.typeError("src", "Tensor", src)
	}
	if err = c.gatherIndex(x, index, axis, others...); err != nil {
		return nil, err
	}
	xDims := atLeast1D(x)
	xStrides := shapes.Strides(xDims)
	xValues, indexValues := x.Values(), index.Values()
	var srcValues []float64
	var srcStrides []int
	if srcIsTensor {
		srcValues = srcTensor.Values()
		srcStrides = shapes.Strides(atLeast1D(srcTensor))
	}
	scalar := quantize(x.dtype, scalarValue(src))
	target := make([]int, len(xDims))
	ii := 0
	for position := range shapes.IterDims(atLeast1D(index)) {
		idx := int(indexValues[ii])
		ii++
		if idx < -xDims[axis] || idx >= xDims[axis] {
			return nil, tensorlib.Errorf(tensorlib.RuntimeError,
				"index %d is out of bounds for dimension %d with size %d", idx, axis, xDims[axis])
		}
		if idx < 0 {
			idx += xDims[axis]
		}
		value := scalar
		if srcIsTensor {
			value = srcValues[shapes.FlatIndex(position, srcStrides, 0)]
		}
		copy(target, position)
		target[axis] = idx
		flat := shapes.FlatIndex(target, xStrides, 0)
		if c.name == "scatter_add" {
			xValues[flat] += value
		} else {
			xValues[flat] = value
		}
	}
	result := newTensorFrom(x.dtype, x.device, x.dims, xValues)
	result.requiresGrad = x.requiresGrad || (srcIsTensor && srcTensor.requiresGrad)
	return result, nil
}

// execMaskedFill implements masked_fill(input, mask, value): value where the (broadcast) mask is true.
func execMaskedFill(c *opCall) (any, error) {
	x, err := c.inputTensor()
	if err != nil {
		return nil, err
	}
	mask, err := c.tensorParam(0, "mask")
	if err != nil {
		return nil, err
	}
	if mask.dtype != dtypes.Bool {
		return nil, tensorlib.Errorf(tensorlib.RuntimeError,
			"masked_fill_ only supports boolean masks, but got mask with dtype %s", mask.dtype)
	}
	value, found := c.param(1, "value")
	if !found {
		return nil, tensorlib.Errorf(tensorlib.TypeError, "masked_fill() missing required argument 'value'")
	}
	if t, ok := value.(*Tensor); ok {
		if t.Rank() != 0 {
			return nil, tensorlib.Errorf(tensorlib.RuntimeError,
				"masked_fill_ only supports a 0-dimensional value tensor, but got tensor with %d dimension(s).", t.Rank())
		}
		value = t.Values()[0]
	} else if !isScalar(value) {
		return nil, c.typeError("value", "Number", value)
	}
	dims, values, err := broadcastOperands(x.dtype, x, mask)
	if err != nil {
		return nil, err
	}
	fill := quantize(x.dtype, scalarValue(value))
	result := values[0]
	for ii := range result {
		if values[1][ii] != 0 {
			result[ii] = fill
		}
	}
	out := newTensor(x.dtype, x.device, dims, result)
	out.requiresGrad = x.requiresGrad
	return out, nil
}
