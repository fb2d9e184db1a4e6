// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package generators

import (
	"fmt"
	"iter"
	"regexp"
	"slices"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/opinfo/pkg/core/dtypesets"
	"github.com/gomlx/opinfo/pkg/core/shapes"
	"github.com/gomlx/opinfo/pkg/core/tensorlib"
	"github.com/gomlx/opinfo/pkg/opinfo"
	"github.com/janpfeifer/must"
)

// IndexVariant selects the operator of the index family, whose dim-slices of input are selected by a
// vector index.
type IndexVariant int

const (
	// IndexSelect is index_select(input, dim, index).
	IndexSelect IndexVariant = iota

	// IndexAdd is index_add(input, dim, index, source, alpha=1).
	IndexAdd

	// IndexCopy is index_copy(input, dim, index, source).
	IndexCopy

	// IndexFill is index_fill(input, dim, index, value).
	IndexFill
)

// String implements fmt.Stringer.
func (v IndexVariant) String() string {
	switch v {
	case IndexSelect:
		return "IndexSelect"
	case IndexAdd:
		return "IndexAdd"
	case IndexCopy:
		return "IndexCopy"
	case IndexFill:
		return "IndexFill"
	}
	return fmt.Sprintf("IndexVariant(%d)", int(v))
}

// indexCases are the (input dims, dim, index length) of the index family samples.
var indexCases = []struct {
	dims   []int
	dim    int
	length int
}{
	{[]int{5, 5}, 0, 3},
	{[]int{5, 5}, 1, 2},
	{[]int{5, 5}, -1, 5},
	{[]int{3, 4, 5}, 1, 2},
	{[]int{3, 4, 5}, 2, 1},
	{[]int{5, 5}, 0, 0},
	{[]int{0, 3}, 1, 2},
}

// uniqueIndex returns a vector of indexDType with length distinct indices in [0, size), in decreasing order.
func uniqueIndex(op *opinfo.OpInfo, device tensorlib.Device, indexDType dtypes.DType, length, size int) tensorlib.Tensor {
	values := make([]float64, length)
	for ii := range values {
		values[ii] = float64(size - 1 - ii)
	}
	return opinfo.FromValues(op, device, indexDType, values, length)
}

// IndexFamily returns the sample generator of the given variant of the index family.
//
// Indices are drawn at random in [0, size), except for IndexCopy, which gets distinct indices since the
// result of copying twice to the same position is not defined. Negative indices are included for the
// operators that read only.
func IndexFamily(variant IndexVariant) opinfo.SampleInputsFunc {
	return func(op *opinfo.OpInfo, device tensorlib.Device, dtype dtypes.DType, requiresGrad bool, _ map[string]any) iter.Seq[*opinfo.SampleInput] {
		return samples(func(e *emitter[*opinfo.SampleInput]) {
			makeFn := opinfo.Maker(op, device, dtype, requiresGrad)
			index := func(length, size int, indexDType dtypes.DType) tensorlib.Tensor {
				if variant == IndexCopy {
					return uniqueIndex(op, device, indexDType, length, size)
				}
				return makeFn([]int{length}, opinfo.WithDType(indexDType), opinfo.Range(0, float64(size)), opinfo.NoGrad())
			}
			sample := func(x tensorlib.Tensor, dim int, idx tensorlib.Tensor) *opinfo.SampleInput {
				dims := x.Dims()
				if len(dims) == 0 {
					dims = []int{1}
				}
				axis := must.M1(shapes.NormalizeAxis(dim, len(dims)))
				switch variant {
				case IndexAdd, IndexCopy:
					sourceDims := slices.Clone(dims)
					sourceDims[axis] = idx.Size()
					return opinfo.NewSample(x, dim, idx, makeFn(sourceDims))
				case IndexFill:
					return opinfo.NewSample(x, dim, idx, scalarOf(dtype, 2))
				}
				return opinfo.NewSample(x, dim, idx)
			}

			for _, c := range indexCases {
				size := c.dims[must.M1(shapes.NormalizeAxis(c.dim, len(c.dims)))]
				if c.length > size {
					skipf(op, "%s index of length %d for dims %v", variant, c.length, c.dims)
					continue
				}
				if !e.emit(sample(makeFn(c.dims), c.dim, index(c.length, size, dtypes.Int64))) {
					return
				}
			}
			e.emit(sample(makeFn([]int{5, 5}, opinfo.Noncontiguous()), 1, index(3, 5, dtypes.Int64)).WithName("noncontiguous"))
			e.emit(sample(makeFn([]int{5, 5}), 0, index(2, 5, dtypes.Int32)).WithName("int32 index"))
			e.emit(sample(makeFn(nil), 0, index(1, 1, dtypes.Int64)).WithName("scalar"))

			switch variant {
			case IndexSelect:
				negative := opinfo.FromValues(op, device, dtypes.Int64, []float64{-1, -5, 2}, 3)
				e.emit(sample(makeFn([]int{5, 5}), 0, negative).WithName("negative index"))
			case IndexAdd:
				alpha := scalarOf(dtype, 2)
				if dtypesets.IsFloating(dtype) {
					alpha = 0.5
				}
				e.emit(sample(makeFn([]int{5, 5}), 0, index(3, 5, dtypes.Int64)).WithKwarg("alpha", alpha).WithName("alpha"))
			case IndexFill:
				value := makeFn(nil, opinfo.NoGrad())
				e.emit(opinfo.NewSample(makeFn([]int{5, 5}), 1, index(2, 5, dtypes.Int64), value).WithName("tensor value"))
			}
		})
	}
}

// differentDType returns a dtype other than dtype, supported on device, from PromotionPartners.
func differentDType(op *opinfo.OpInfo, device tensorlib.Device, dtype dtypes.DType) dtypes.DType {
	capabilities := op.Library().Capabilities()
	for _, candidate := range slices.Backward(PromotionPartners) {
		if candidate != dtype && candidate != dtypes.Bool && capabilities.SupportsDType(device.Class, candidate) {
			return candidate
		}
	}
	return dtypes.Bool
}

// IndexErrors returns the error generator of the given variant of the index family: invalid indices,
// mismatching sources and invalid fill values.
func IndexErrors(variant IndexVariant) opinfo.ErrorInputsFunc {
	return func(op *opinfo.OpInfo, device tensorlib.Device, dtype dtypes.DType, _ bool, _ map[string]any) iter.Seq[*opinfo.ErrorInput] {
		return errorInputs(func(e *emitter[*opinfo.ErrorInput]) {
			makeFn := noGradMaker(op, device, dtype)
			rest := func(length int) []any {
				switch variant {
				case IndexAdd, IndexCopy:
					return []any{makeFn([]int{length, 5})}
				case IndexFill:
					return []any{scalarOf(dtype, 2)}
				}
				return nil
			}
			sample := func(idx tensorlib.Tensor, length int) *opinfo.SampleInput {
				return opinfo.NewSample(makeFn([]int{5, 5}), append([]any{0, idx}, rest(length)...)...)
			}

			idx := makeFn([]int{2, 2}, opinfo.WithDType(dtypes.Int64), opinfo.Range(0, 5))
			if !e.emit(opinfo.NewErrorInput(sample(idx, 4), tensorlib.IndexError,
				regexp.QuoteMeta(op.Name+"(): Index is supposed to be a vector"))) {
				return
			}
			idx = opinfo.FromValues(op, device, differentDType(op, device, dtypes.Int64), []float64{0, 1}, 2)
			e.emit(opinfo.NewErrorInput(sample(idx, 2), tensorlib.IndexError,
				regexp.QuoteMeta(op.Name+"(): Expected dtype int32/int64 for index")))
			idx = opinfo.FromValues(op, device, dtypes.Int64, []float64{0, 5}, 2)
			e.emit(opinfo.NewErrorInput(sample(idx, 2), tensorlib.IndexError,
				regexp.QuoteMeta("index 5 is out of bounds for dimension 0 with size 5")))
			idx = uniqueIndex(op, device, dtypes.Int64, 2, 5)
			e.emit(opinfo.NewErrorInput(opinfo.NewSample(makeFn([]int{5, 5}), 0), tensorlib.TypeError,
				regexp.QuoteMeta(op.Name+"() missing required argument 'index'")))

			switch variant {
			case IndexAdd, IndexCopy:
				source := makeFn([]int{2, 5}, opinfo.WithDType(differentDType(op, device, dtype)))
				e.emit(opinfo.NewErrorInput(opinfo.NewSample(makeFn([]int{5, 5}), 0, idx, source), tensorlib.RuntimeError,
					regexp.QuoteMeta(fmt.Sprintf("%s(): self (%s) and source (%s) must have the same scalar type",
						op.Name, dtype, source.DType()))))
				e.emit(opinfo.NewErrorInput(opinfo.NewSample(makeFn([]int{5, 5}), 0, idx, makeFn([]int{3, 5})), tensorlib.RuntimeError,
					regexp.QuoteMeta(op.Name+"(): Source/destination tensor must have same slice shapes.")))
			case IndexFill:
				e.emit(opinfo.NewErrorInput(opinfo.NewSample(makeFn([]int{5, 5}), 0, idx, makeFn([]int{2})), tensorlib.RuntimeError,
					regexp.QuoteMeta("index_fill_ only supports a 0-dimensional value tensor, but got tensor with 1 dimension(s).")))
				e.emit(opinfo.NewErrorInput(opinfo.NewSample(makeFn([]int{5, 5}), 0, idx), tensorlib.TypeError,
					regexp.QuoteMeta(op.Name+"() missing required argument 'value'")))
			}
		})
	}
}

// GatherVariant selects the operator of the gather family, whose index has the same rank as the input.
type GatherVariant int

const (
	// Gather is gather(input, dim, index).
	Gather GatherVariant = iota

	// Scatter is scatter(input, dim, index, src), with src a tensor or a scalar.
	Scatter

	// ScatterAdd is scatter_add(input, dim, index, src).
	ScatterAdd
)

// String implements fmt.Stringer.
func (v GatherVariant) String() string {
	switch v {
	case Gather:
		return "Gather"
	case Scatter:
		return "Scatter"
	case ScatterAdd:
		return "ScatterAdd"
	}
	return fmt.Sprintf("GatherVariant(%d)", int(v))
}

// gatherCases are the (input dims, dim, index dims) of the gather family samples.
var gatherCases = []struct {
	dims, indexDims []int
	dim             int
}{
	{[]int{5, 5}, []int{3, 5}, 0},
	{[]int{5, 5}, []int{5, 2}, 1},
	{[]int{3, 4, 5}, []int{3, 4, 2}, -1},
	{[]int{3, 4, 5}, []int{2, 2, 2}, 1},
	{[]int{}, []int{}, 0},
	{[]int{5, 5}, []int{0, 5}, 0},
}

// gatherIndex returns an Int64 index with the given dims whose values along axis are distinct in [0, size):
// (sum of the coordinates) mod size. It requires indexDims[axis] <= size.
func gatherIndex(op *opinfo.OpInfo, device tensorlib.Device, indexDims []int, axis, size int) tensorlib.Tensor {
	values := make([]float64, 0, max(len(indexDims), 1))
	for position := range shapes.IterDims(indexDims) {
		sum := 0
		for _, coordinate := range position {
			sum += coordinate
		}
		values = append(values, float64(sum%size))
	}
	return opinfo.FromValues(op, device, dtypes.Int64, values, indexDims...)
}

// GatherFamily returns the sample generator of the given variant of the gather family. Indices are
// deterministic and distinct along dim, so scattering is well-defined.
func GatherFamily(variant GatherVariant) opinfo.SampleInputsFunc {
	return func(op *opinfo.OpInfo, device tensorlib.Device, dtype dtypes.DType, requiresGrad bool, _ map[string]any) iter.Seq[*opinfo.SampleInput] {
		return samples(func(e *emitter[*opinfo.SampleInput]) {
			makeFn := opinfo.Maker(op, device, dtype, requiresGrad)
			sample := func(x tensorlib.Tensor, dim int, indexDims []int) *opinfo.SampleInput {
				dims := x.Dims()
				if len(dims) == 0 {
					dims = []int{1}
				}
				axis := must.M1(shapes.NormalizeAxis(dim, len(dims)))
				idx := gatherIndex(op, device, indexDims, axis, dims[axis])
				if variant == Gather {
					return opinfo.NewSample(x, dim, idx)
				}
				return opinfo.NewSample(x, dim, idx, makeFn(indexDims))
			}
			for _, c := range gatherCases {
				if !e.emit(sample(makeFn(c.dims), c.dim, c.indexDims)) {
					return
				}
			}
			e.emit(sample(makeFn([]int{5, 5}, opinfo.Noncontiguous()), 1, []int{4, 3}).WithName("noncontiguous"))
			if variant == Scatter {
				idx := gatherIndex(op, device, []int{2, 5}, 0, 5)
				e.emit(opinfo.NewSample(makeFn([]int{5, 5}), 0, idx, scalarOf(dtype, 3)).WithName("scalar src"))
			}
			if variant != Gather {
				// src larger than index: only the elements at index positions are used.
				idx := gatherIndex(op, device, []int{2, 3}, 0, 5)
				e.emit(opinfo.NewSample(makeFn([]int{5, 5}), 0, idx, makeFn([]int{4, 5})).WithName("larger src"))
			}
		})
	}
}

// GatherErrors returns the error generator of the given variant of the gather family: invalid indices and
// invalid sources.
func GatherErrors(variant GatherVariant) opinfo.ErrorInputsFunc {
	return func(op *opinfo.OpInfo, device tensorlib.Device, dtype dtypes.DType, _ bool, _ map[string]any) iter.Seq[*opinfo.ErrorInput] {
		return errorInputs(func(e *emitter[*opinfo.ErrorInput]) {
			makeFn := noGradMaker(op, device, dtype)
			sample := func(x tensorlib.Tensor, idx tensorlib.Tensor) *opinfo.SampleInput {
				if variant == Gather {
					return opinfo.NewSample(x, 0, idx)
				}
				return opinfo.NewSample(x, 0, idx, makeFn(idx.Dims()))
			}
			selfName := "self"
			if variant == Gather {
				selfName = "input"
			}

			idx := gatherIndex(op, device, []int{3}, 0, 3)
			if !e.emit(opinfo.NewErrorInput(sample(makeFn([]int{3, 4}), idx), tensorlib.RuntimeError,
				regexp.QuoteMeta("Index tensor must have the same number of dimensions as "+selfName+" tensor"))) {
				return
			}
			idx = opinfo.FromValues(op, device, dtypes.Int32, []float64{0, 1, 2, 0}, 1, 4)
			e.emit(opinfo.NewErrorInput(sample(makeFn([]int{3, 4}), idx), tensorlib.RuntimeError,
				regexp.QuoteMeta(op.Name+"(): Expected dtype int64 for index")))
			idx = opinfo.FromValues(op, device, dtypes.Int64, []float64{5, 0, 0, 0}, 1, 4)
			e.emit(opinfo.NewErrorInput(sample(makeFn([]int{3, 4}), idx), tensorlib.RuntimeError,
				regexp.QuoteMeta("index 5 is out of bounds for dimension 0 with size 3")))
			idx = gatherIndex(op, device, []int{3, 5}, 0, 3)
			e.emit(opinfo.NewErrorInput(sample(makeFn([]int{3, 4}), idx), tensorlib.RuntimeError,
				regexp.QuoteMeta("Size does not match at dimension 1 expected index [3, 5] to be smaller than self [3, 4] apart from dimension 0")))
			if variant == Gather {
				return
			}

			idx = gatherIndex(op, device, []int{2, 4}, 0, 3)
			src := makeFn([]int{2, 4}, opinfo.WithDType(differentDType(op, device, dtype)))
			e.emit(opinfo.NewErrorInput(opinfo.NewSample(makeFn([]int{3, 4}), 0, idx, src), tensorlib.RuntimeError,
				regexp.QuoteMeta(op.Name+"(): Expected self.dtype to be equal to src.dtype")))
			e.emit(opinfo.NewErrorInput(opinfo.NewSample(makeFn([]int{3, 4}), 0, idx, makeFn([]int{2, 3})), tensorlib.RuntimeError,
				regexp.QuoteMeta("Expected index [2, 4] to be smaller than self [3, 4] apart from dimension 0 and to be smaller size than src [2, 3]")))
			e.emit(opinfo.NewErrorInput(opinfo.NewSample(makeFn([]int{3, 4}), 0, idx), tensorlib.TypeError,
				regexp.QuoteMeta(op.Name+"() missing required argument 'src'")))
		})
	}
}

// MaskedFill generates samples for masked_fill(input, mask, value), with masks broadcastable to the input.
func MaskedFill(op *opinfo.OpInfo, device tensorlib.Device, dtype dtypes.DType, requiresGrad bool, _ map[string]any) iter.Seq[*opinfo.SampleInput] {
	return samples(func(e *emitter[*opinfo.SampleInput]) {
		makeFn := opinfo.Maker(op, device, dtype, requiresGrad)
		mask := func(dims ...int) tensorlib.Tensor { return makeFn(dims, opinfo.WithDType(dtypes.Bool)) }
		value := scalarOf(dtype, 3)
		for _, dims := range [][2][]int{
			{{5, 5}, {5, 5}},
			{{5, 5}, {5}},
			{{5, 5}, {5, 1}},
			{{3, 4, 5}, {4, 1}},
			{{}, {}},
			{{0, 3}, {3}},
		} {
			if !e.emit(opinfo.NewSample(makeFn(dims[0]), mask(dims[1]...), value)) {
				return
			}
		}
		e.emit(opinfo.NewSample(makeFn([]int{5, 5}, opinfo.Noncontiguous()), mask(5, 5), value).WithName("noncontiguous"))
		e.emit(opinfo.NewSample(makeFn([]int{5, 5}), mask(5, 5), makeFn(nil, opinfo.NoGrad())).WithName("tensor value"))
		e.emit(opinfo.NewSample(makeFn([]int{5, 5}), mask(5, 5)).WithKwarg("value", value).WithName("value keyword"))
	})
}

// MaskedFillErrors generates the error cases of masked_fill: non-boolean masks and invalid values.
func MaskedFillErrors(op *opinfo.OpInfo, device tensorlib.Device, dtype dtypes.DType, _ bool, _ map[string]any) iter.Seq[*opinfo.ErrorInput] {
	return errorInputs(func(e *emitter[*opinfo.ErrorInput]) {
		makeFn := noGradMaker(op, device, dtype)
		mask := makeFn([]int{3}, opinfo.WithDType(dtypes.Bool))
		notBool := differentDType(op, device, dtypes.Bool)
		e.emit(opinfo.NewErrorInput(opinfo.NewSample(makeFn([]int{3}), makeFn([]int{3}, opinfo.WithDType(notBool)), scalarOf(dtype, 1)),
			tensorlib.RuntimeError, regexp.QuoteMeta("masked_fill_ only supports boolean masks, but got mask with dtype "+notBool.String())))
		e.emit(opinfo.NewErrorInput(opinfo.NewSample(makeFn([]int{3}), mask, makeFn([]int{2})), tensorlib.RuntimeError,
			regexp.QuoteMeta("masked_fill_ only supports a 0-dimensional value tensor, but got tensor with 1 dimension(s).")))
		e.emit(opinfo.NewErrorInput(opinfo.NewSample(makeFn([]int{3}), mask), tensorlib.TypeError,
			regexp.QuoteMeta("masked_fill() missing required argument 'value'")))
	})
}
