// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package generators

import (
	"iter"
	"regexp"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/opinfo/pkg/core/tensorlib"
	"github.com/gomlx/opinfo/pkg/opinfo"
)

// shapeCase is one sample of a shape manipulation operator: the input dimensions and the arguments.
type shapeCase struct {
	dims   []int
	args   []any
	kwargs map[string]any
}

// shapeErrorCase is one error case of a shape manipulation operator.
type shapeErrorCase struct {
	dims    []int
	args    []any
	kind    tensorlib.ErrorKind
	message string
}

// shapeFamily returns a generator yielding one sample per case, followed by the first case on a
// noncontiguous input.
func shapeFamily(cases []shapeCase) opinfo.SampleInputsFunc {
	return func(op *opinfo.OpInfo, device tensorlib.Device, dtype dtypes.DType, requiresGrad bool, _ map[string]any) iter.Seq[*opinfo.SampleInput] {
		return samples(func(e *emitter[*opinfo.SampleInput]) {
			makeFn := opinfo.Maker(op, device, dtype, requiresGrad)
			for _, c := range cases {
				sample := opinfo.NewSample(makeFn(c.dims), c.args...)
				for key, value := range c.kwargs {
					sample.WithKwarg(key, value)
				}
				if !e.emit(sample) {
					return
				}
			}
			first := cases[0]
			e.emit(opinfo.NewSample(makeFn(first.dims, opinfo.Noncontiguous()), first.args...).WithName("noncontiguous"))
		})
	}
}

// shapeErrors returns an error generator yielding one error input per case. Messages are literal.
func shapeErrors(cases []shapeErrorCase) opinfo.ErrorInputsFunc {
	return func(op *opinfo.OpInfo, device tensorlib.Device, dtype dtypes.DType, _ bool, _ map[string]any) iter.Seq[*opinfo.ErrorInput] {
		return errorInputs(func(e *emitter[*opinfo.ErrorInput]) {
			makeFn := noGradMaker(op, device, dtype)
			for _, c := range cases {
				sample := opinfo.NewSample(makeFn(c.dims), c.args...)
				if !e.emit(opinfo.NewErrorInput(sample, c.kind, regexp.QuoteMeta(c.message))) {
					return
				}
			}
		})
	}
}

var (
	// Reshape generates samples for reshape(input, shape), including -1 inference.
	Reshape = shapeFamily([]shapeCase{
		{dims: []int{2, 3, 4}, args: []any{[]int{6, 4}}},
		{dims: []int{2, 3, 4}, args: []any{[]int{-1}}},
		{dims: []int{2, 3, 4}, args: []any{[]int{4, -1, 2}}},
		{dims: []int{2, 3, 4}, kwargs: map[string]any{"shape": []int{24, 1}}},
		{dims: []int{}, args: []any{[]int{1}}},
		{dims: []int{1}, args: []any{[]int{}}},
		{dims: []int{0, 3}, args: []any{[]int{3, 0}}},
	})

	// ReshapeErrors generates the error cases of reshape: sizes that don't match and two inferred dims.
	ReshapeErrors = shapeErrors([]shapeErrorCase{
		{[]int{2, 3}, []any{[]int{7}}, tensorlib.RuntimeError, "shape '[7]' is invalid for input of size 6"},
		{[]int{2, 3}, []any{[]int{-1, -1}}, tensorlib.RuntimeError, "only one dimension can be inferred"},
		{[]int{2, 3}, []any{[]int{4, -1}}, tensorlib.RuntimeError, "shape '[4, -1]' is invalid for input of size 6"},
	})

	// Transpose generates samples for transpose(input, dim0, dim1).
	Transpose = shapeFamily([]shapeCase{
		{dims: []int{3, 4, 5}, args: []any{0, 1}},
		{dims: []int{3, 4, 5}, args: []any{-1, 0}},
		{dims: []int{3, 4, 5}, args: []any{1, 1}},
		{dims: []int{}, args: []any{0, -1}},
		{dims: []int{0, 3}, args: []any{0, 1}},
	})

	// TransposeErrors generates the error case of transpose with a dim out of range.
	TransposeErrors = shapeErrors([]shapeErrorCase{
		{[]int{3, 4}, []any{0, 2}, tensorlib.IndexError, "Dimension out of range (expected to be in range of [-2, 1], but got 2)"},
	})

	// Permute generates samples for permute(input, dims).
	Permute = shapeFamily([]shapeCase{
		{dims: []int{3, 4, 5}, args: []any{[]int{2, 0, 1}}},
		{dims: []int{3, 4, 5}, args: []any{[]int{-1, 0, 1}}},
		{dims: []int{3, 4, 5}, args: []any{[]int{0, 1, 2}}},
		{dims: []int{}, args: []any{[]int{}}},
		{dims: []int{0, 3}, args: []any{[]int{1, 0}}},
	})

	// PermuteErrors generates the error cases of permute: wrong number of dims and repeated dims.
	PermuteErrors = shapeErrors([]shapeErrorCase{
		{[]int{3, 4}, []any{[]int{0}}, tensorlib.RuntimeError,
			"number of dimensions in the tensor input does not match the length of the desired ordering of dimensions"},
		{[]int{3, 4}, []any{[]int{1, 1}}, tensorlib.RuntimeError, "duplicate dims are not allowed"},
	})

	// Squeeze generates samples for squeeze(input, dim=None).
	Squeeze = shapeFamily([]shapeCase{
		{dims: []int{1, 3, 1, 4}},
		{dims: []int{1, 3, 1, 4}, args: []any{0}},
		{dims: []int{1, 3, 1, 4}, args: []any{2}},
		{dims: []int{1, 3, 1, 4}, args: []any{1}},
		{dims: []int{1, 3, 1, 4}, args: []any{[]int{0, -2}}},
		{dims: []int{}},
		{dims: []int{0, 1}, kwargs: map[string]any{"dim": 1}},
	})

	// SqueezeErrors generates the error case of squeeze with a dim out of range.
	SqueezeErrors = shapeErrors([]shapeErrorCase{
		{[]int{3, 1}, []any{2}, tensorlib.IndexError, "Dimension out of range (expected to be in range of [-2, 1], but got 2)"},
	})

	// Unsqueeze generates samples for unsqueeze(input, dim).
	Unsqueeze = shapeFamily([]shapeCase{
		{dims: []int{3, 4}, args: []any{0}},
		{dims: []int{3, 4}, args: []any{2}},
		{dims: []int{3, 4}, args: []any{-1}},
		{dims: []int{3, 4}, args: []any{-3}},
		{dims: []int{}, args: []any{0}},
		{dims: []int{0, 3}, args: []any{1}},
	})

	// UnsqueezeErrors generates the error case of unsqueeze with a dim out of range.
	UnsqueezeErrors = shapeErrors([]shapeErrorCase{
		{[]int{3, 4}, []any{3}, tensorlib.IndexError, "Dimension out of range (expected to be in range of [-3, 2], but got 3)"},
	})

	// Flatten generates samples for flatten(input, start_dim=0, end_dim=-1).
	Flatten = shapeFamily([]shapeCase{
		{dims: []int{2, 3, 4}},
		{dims: []int{2, 3, 4}, args: []any{1, 2}},
		{dims: []int{2, 3, 4}, args: []any{0, 1}},
		{dims: []int{2, 3, 4}, args: []any{-2, -1}},
		{dims: []int{2, 3, 4}, kwargs: map[string]any{"start_dim": 1}},
		{dims: []int{}},
		{dims: []int{0, 3}},
	})

	// FlattenErrors generates the error case of flatten with start_dim after end_dim.
	FlattenErrors = shapeErrors([]shapeErrorCase{
		{[]int{2, 3, 4}, []any{2, 0}, tensorlib.RuntimeError, "flatten() has invalid args: start_dim cannot come after end_dim"},
	})

	// Flip generates samples for flip(input, dims).
	Flip = shapeFamily([]shapeCase{
		{dims: []int{3, 4, 5}, args: []any{[]int{0}}},
		{dims: []int{3, 4, 5}, args: []any{[]int{1, 2}}},
		{dims: []int{3, 4, 5}, args: []any{[]int{-1}}},
		{dims: []int{3, 4, 5}, args: []any{[]int{0, 1, 2}}},
		{dims: []int{}, args: []any{[]int{}}},
		{dims: []int{0, 3}, args: []any{[]int{1}}},
	})

	// FlipErrors generates the error case of flip with a repeated dim.
	FlipErrors = shapeErrors([]shapeErrorCase{
		{[]int{3, 4}, []any{[]int{0, -2}}, tensorlib.RuntimeError, "dim 0 appears multiple times in the list of dims"},
	})

	// Expand generates samples for expand(input, sizes).
	Expand = shapeFamily([]shapeCase{
		{dims: []int{3, 1}, args: []any{[]int{3, 4}}},
		{dims: []int{3, 1}, args: []any{[]int{-1, 4}}},
		{dims: []int{3, 1}, args: []any{[]int{2, 3, 4}}},
		{dims: []int{}, args: []any{[]int{3, 3}}},
		{dims: []int{1}, args: []any{[]int{0}}},
		{dims: []int{3, 4}, args: []any{[]int{3, 4}}},
	})

	// ExpandErrors generates the error cases of expand: non-singleton dims and too few sizes.
	ExpandErrors = shapeErrors([]shapeErrorCase{
		{[]int{3, 2}, []any{[]int{3, 4}}, tensorlib.RuntimeError,
			"The expanded size of the tensor (4) must match the existing size (2) at non-singleton dimension 1"},
		{[]int{3, 4}, []any{[]int{4}}, tensorlib.RuntimeError,
			"the number of sizes provided (1) must be greater or equal to the number of dimensions in the tensor (2)"},
	})

	// Narrow generates samples for narrow(input, dim, start, length).
	Narrow = shapeFamily([]shapeCase{
		{dims: []int{3, 4, 5}, args: []any{0, 0, 2}},
		{dims: []int{3, 4, 5}, args: []any{1, 1, 3}},
		{dims: []int{3, 4, 5}, args: []any{-1, 2, 3}},
		{dims: []int{3, 4, 5}, args: []any{2, -3, 2}},
		{dims: []int{3, 4, 5}, args: []any{1, 4, 0}},
		{dims: []int{0, 3}, args: []any{1, 0, 2}},
	})

	// NarrowErrors generates the error cases of narrow: scalars, and slices past the end.
	NarrowErrors = shapeErrors([]shapeErrorCase{
		{[]int{}, []any{0, 0, 1}, tensorlib.RuntimeError, "narrow() cannot be applied to a 0-dim tensor."},
		{[]int{3, 4}, []any{1, 2, 3}, tensorlib.RuntimeError, "start (2) + length (3) exceeds dimension size (4)."},
		{[]int{3, 4}, []any{1, 5, 0}, tensorlib.IndexError, "start out of range (expected to be in range of [-4, 4], but got 5)"},
	})
)

// listCase is one sample of the operators taking a list of tensors.
type listCase struct {
	dims [][]int
	dim  int
}

// listFamily returns a generator for cat and stack: the input is a []tensorlib.Tensor, and dim is passed
// positionally. The first case is repeated with noncontiguous tensors.
func listFamily(cases []listCase) opinfo.SampleInputsFunc {
	return func(op *opinfo.OpInfo, device tensorlib.Device, dtype dtypes.DType, requiresGrad bool, _ map[string]any) iter.Seq[*opinfo.SampleInput] {
		return samples(func(e *emitter[*opinfo.SampleInput]) {
			makeFn := opinfo.Maker(op, device, dtype, requiresGrad)
			list := func(c listCase, options ...opinfo.MakeOption) []tensorlib.Tensor {
				tensors := make([]tensorlib.Tensor, len(c.dims))
				for ii, dims := range c.dims {
					tensors[ii] = makeFn(dims, options...)
				}
				return tensors
			}
			for _, c := range cases {
				if !e.emit(opinfo.NewSample(list(c), c.dim)) {
					return
				}
			}
			e.emit(opinfo.NewSample(list(cases[0], opinfo.Noncontiguous()), cases[0].dim).WithName("noncontiguous"))
			e.emit(opinfo.NewSample(list(cases[0])).WithKwarg("dim", cases[0].dim).WithName("dim keyword"))
		})
	}
}

// listErrorCase is one error case of the operators taking a list of tensors.
type listErrorCase struct {
	dims    [][]int
	kind    tensorlib.ErrorKind
	message string
}

func listErrors(cases []listErrorCase) opinfo.ErrorInputsFunc {
	return func(op *opinfo.OpInfo, device tensorlib.Device, dtype dtypes.DType, _ bool, _ map[string]any) iter.Seq[*opinfo.ErrorInput] {
		return errorInputs(func(e *emitter[*opinfo.ErrorInput]) {
			makeFn := noGradMaker(op, device, dtype)
			for _, c := range cases {
				tensors := make([]tensorlib.Tensor, 0, len(c.dims))
				for _, dims := range c.dims {
					tensors = append(tensors, makeFn(dims))
				}
				if !e.emit(opinfo.NewErrorInput(opinfo.NewSample(tensors), c.kind, regexp.QuoteMeta(c.message))) {
					return
				}
			}
		})
	}
}

var (
	// Cat generates samples for cat(tensors, dim=0).
	Cat = listFamily([]listCase{
		{[][]int{{2, 3}, {4, 3}}, 0},
		{[][]int{{2, 3}, {2, 1}, {2, 5}}, 1},
		{[][]int{{2, 3}, {2, 1}, {2, 5}}, -1},
		{[][]int{{0, 3}, {2, 3}}, 0},
		{[][]int{{3}}, 0},
		{[][]int{{0}, {2, 3}}, 1},
	})

	// CatErrors generates the error cases of cat: an empty list, mismatched sizes and scalars.
	CatErrors = listErrors([]listErrorCase{
		{[][]int{}, tensorlib.RuntimeError, "expected a non-empty list of Tensors"},
		{[][]int{{2, 3}, {3, 4}}, tensorlib.RuntimeError,
			"Sizes of tensors must match except in dimension 0. Expected size 3 but got size 4 for tensor number 1 in the list."},
		{[][]int{{}, {}}, tensorlib.RuntimeError, "zero-dimensional tensor (at position 0) cannot be concatenated"},
	})

	// Stack generates samples for stack(tensors, dim=0).
	Stack = listFamily([]listCase{
		{[][]int{{3, 4}, {3, 4}}, 0},
		{[][]int{{3, 4}, {3, 4}, {3, 4}}, 1},
		{[][]int{{3, 4}, {3, 4}}, 2},
		{[][]int{{3, 4}, {3, 4}}, -1},
		{[][]int{{}, {}}, 0},
		{[][]int{{0, 3}, {0, 3}}, 1},
	})

	// StackErrors generates the error cases of stack: an empty list and mismatched sizes.
	StackErrors = listErrors([]listErrorCase{
		{[][]int{}, tensorlib.RuntimeError, "stack expects a non-empty TensorList"},
		{[][]int{{3, 4}, {3, 5}}, tensorlib.RuntimeError, "stack expects each tensor to be equal size"},
	})
)
