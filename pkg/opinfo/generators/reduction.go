// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package generators

import (
	"fmt"
	"iter"
	"regexp"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/opinfo/pkg/core/tensorlib"
	"github.com/gomlx/opinfo/pkg/opinfo"
)

// reductionDims are the "dim" arguments of the reduction samples of a (3,4,5) tensor: single dims, and
// lists of dims, used only if the reduction supports multiple dims.
var (
	reductionSingleDims = []int{0, -1, 1}
	reductionMultiDims  = [][]int{{0, 2}, {-1, 0}}
)

// reducesEmptyAxis returns whether reducing a tensor of the given dims over dim (nil for all axes) reduces over a
// zero-sized axis.
func reducesEmptyAxis(dims []int, dim any) bool {
	var axes []int
	switch d := dim.(type) {
	case nil:
		for axis := range dims {
			axes = append(axes, axis)
		}
	case int:
		axes = []int{d}
	case []int:
		axes = d
	}
	for _, axis := range axes {
		if len(dims) == 0 {
			continue
		}
		if axis < 0 {
			axis += len(dims)
		}
		if dims[axis] == 0 {
			return true
		}
	}
	return false
}

// Reduction generates samples for reductions op(input, dim=None, keepdim=False), configured by op.Reduction.
//
// The full reduction of a (3,4,5) tensor comes first, followed by single dims and, if supported, lists of dims,
// each with keepdim false and true (unless the reduction has no keepdim argument). Then scalars, empty
// tensors and a noncontiguous tensor. Combinations that reduce over a zero-sized axis are skipped if the
// reduction has no identity.
func Reduction(op *opinfo.OpInfo, device tensorlib.Device, dtype dtypes.DType, requiresGrad bool, _ map[string]any) iter.Seq[*opinfo.SampleInput] {
	return reductionSamples(op, device, dtype, requiresGrad, nil)
}

// VarianceReduction generates the samples of Reduction for std and var, plus "correction" 0 and 1 samples.
func VarianceReduction(op *opinfo.OpInfo, device tensorlib.Device, dtype dtypes.DType, requiresGrad bool, _ map[string]any) iter.Seq[*opinfo.SampleInput] {
	return reductionSamples(op, device, dtype, requiresGrad, []any{0, 1})
}

func reductionSamples(op *opinfo.OpInfo, device tensorlib.Device, dtype dtypes.DType, requiresGrad bool, corrections []any) iter.Seq[*opinfo.SampleInput] {
	return samples(func(e *emitter[*opinfo.SampleInput]) {
		makeFn := opinfo.Maker(op, device, dtype, requiresGrad)
		info := op.Reduction
		keepDims := []bool{false, true}
		if info.NoKeepDim {
			keepDims = []bool{false}
		}
		sample := func(x tensorlib.Tensor, dim any, keepDim bool) *opinfo.SampleInput {
			s := opinfo.NewSample(x)
			if dim != nil {
				s.WithKwarg("dim", dim)
			}
			if keepDim {
				s.WithKwarg("keepdim", true)
			}
			return s
		}

		if !e.emit(sample(makeFn([]int{3, 4, 5}), nil, false)) {
			return
		}
		var dims []any
		for _, dim := range reductionSingleDims {
			dims = append(dims, dim)
		}
		if info.SupportsMultipleDims {
			for _, dim := range reductionMultiDims {
				dims = append(dims, dim)
			}
		}
		for _, dim := range dims {
			for _, keepDim := range keepDims {
				if !e.emit(sample(makeFn([]int{3, 4, 5}), dim, keepDim)) {
					return
				}
			}
		}

		for _, dim := range []any{nil, 0} {
			e.emit(sample(makeFn(nil), dim, false).WithName("scalar"))
		}
		for _, dim := range []any{nil, 0, 1} {
			if !info.Identity.IsPresent() && reducesEmptyAxis([]int{0, 3}, dim) {
				skipf(op, "reduction over empty axis, dim=%v", dim)
				continue
			}
			for _, keepDim := range keepDims {
				e.emit(sample(makeFn([]int{0, 3}), dim, keepDim).WithName("empty"))
			}
		}
		e.emit(sample(makeFn([]int{3, 4, 5}, opinfo.Noncontiguous()), 1, false).WithName("noncontiguous"))

		for _, correction := range corrections {
			e.emit(sample(makeFn([]int{3, 4, 5}), nil, false).WithKwarg("correction", correction).
				WithName(fmt.Sprintf("correction=%v", correction)))
			e.emit(sample(makeFn([]int{3, 4, 5}), 1, true).WithKwarg("correction", correction).
				WithName(fmt.Sprintf("correction=%v", correction)))
		}
	})
}

// ReductionSparse is the sparse generator of sum: full and single dim reductions of SparseCOO tensors.
func ReductionSparse(op *opinfo.OpInfo, device tensorlib.Device, dtype dtypes.DType, requiresGrad bool, _ map[string]any) iter.Seq[*opinfo.SampleInput] {
	return samples(func(e *emitter[*opinfo.SampleInput]) {
		makeFn := opinfo.Maker(op, device, dtype, requiresGrad)
		sparse := func(dims ...int) tensorlib.Tensor {
			x := makeFn(dims)
			for ii := 0; ii < x.Size(); ii += 3 {
				x.SetValue(ii, 0)
			}
			return sparseOf(op, x)
		}
		if !e.emit(opinfo.NewSample(sparse(5, 5)).WithSparseFillValue(0)) {
			return
		}
		e.emit(opinfo.NewSample(sparse(5, 5)).WithKwarg("dim", 0).WithSparseFillValue(0))
		e.emit(opinfo.NewSample(sparse(3, 4, 5)).WithKwarg("dim", -1).WithSparseFillValue(0))
		e.emit(opinfo.NewSample(sparse(0, 3)).WithSparseFillValue(0).WithName("empty"))
	})
}

// ReductionErrors generates the error cases of reductions: dims out of range, repeated dims (for reductions
// supporting multiple dims) and, for reductions without identity, reductions over zero-sized axes.
func ReductionErrors(op *opinfo.OpInfo, device tensorlib.Device, dtype dtypes.DType, _ bool, _ map[string]any) iter.Seq[*opinfo.ErrorInput] {
	return errorInputs(func(e *emitter[*opinfo.ErrorInput]) {
		makeFn := noGradMaker(op, device, dtype)
		info := op.Reduction
		e.emit(opinfo.NewErrorInput(opinfo.NewSample(makeFn([]int{3, 4})).WithKwarg("dim", 2), tensorlib.IndexError,
			regexp.QuoteMeta("Dimension out of range (expected to be in range of [-2, 1], but got 2)")))
		if info.SupportsMultipleDims {
			e.emit(opinfo.NewErrorInput(opinfo.NewSample(makeFn([]int{3, 4})).WithKwarg("dim", []int{0, -2}), tensorlib.RuntimeError,
				regexp.QuoteMeta("dim 0 appears multiple times in the list of dims")))
		}
		if info.Identity.IsPresent() {
			return
		}
		e.emit(opinfo.NewErrorInput(opinfo.NewSample(makeFn([]int{0, 3})).WithKwarg("dim", 0), tensorlib.IndexError,
			regexp.QuoteMeta(op.Name+"(): Expected reduction dim 0 to have non-zero size.")))
		if !info.SupportsMultipleDims {
			e.emit(opinfo.NewErrorInput(opinfo.NewSample(makeFn([]int{0, 3})), tensorlib.RuntimeError,
				regexp.QuoteMeta(op.Name+"(): Expected reduction dim to be specified for input.numel() == 0.")))
		}
	})
}
