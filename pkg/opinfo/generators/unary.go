// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package generators

import (
	"iter"
	"math"
	"regexp"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/opinfo/pkg/core/dtypesets"
	"github.com/gomlx/opinfo/pkg/core/tensorlib"
	"github.com/gomlx/opinfo/pkg/opinfo"
	"github.com/janpfeifer/must"
)

// unaryShapes are the shapes of the regular samples of unary operators, the first one being the canonical one.
var unaryShapes = [][]int{{5, 5}, {}, {0}, {2, 0, 3}, {3, 4, 5}}

// nearOffset is how far from a singularity the "near" samples are drawn.
const nearOffset = 0.01

// UnaryElementwise generates samples for elementwise unary operators, with values in op.Domain.
//
// After the regular shapes, it yields a noncontiguous sample and a transposed view. For floating point
// dtypes it then yields, for each of op.Singularities, one sample filled with the singular value, and one
// with values drawn close to it, on the side of op.Domain.
func UnaryElementwise(op *opinfo.OpInfo, device tensorlib.Device, dtype dtypes.DType, requiresGrad bool, _ map[string]any) iter.Seq[*opinfo.SampleInput] {
	return samples(func(e *emitter[*opinfo.SampleInput]) {
		makeFn := opinfo.Maker(op, device, dtype, requiresGrad)
		inDomain := opinfo.InDomain(op.Domain)
		for _, dims := range unaryShapes {
			if !e.emit(opinfo.NewSample(makeFn(dims, inDomain))) {
				return
			}
		}
		e.emit(opinfo.NewSample(makeFn([]int{5, 5}, inDomain, opinfo.Noncontiguous())).WithName("noncontiguous"))
		e.emit(opinfo.NewSample(transposed(op, func(dims []int, options ...opinfo.MakeOption) tensorlib.Tensor {
			return makeFn(dims, append(options, inDomain)...)
		}, []int{4, 3})).WithName("transposed"))
		if !dtypesets.IsFloating(dtype) {
			if len(op.Singularities) > 0 {
				skipf(op, "singularities for non-floating dtype %s", dtype)
			}
			return
		}
		for _, singularity := range op.Singularities {
			exact := opinfo.WithRequiresGrad(opinfo.Full(op, device, dtype, singularity, 3, 3), requiresGrad)
			e.emit(opinfo.NewSample(exact).WithName("singularity"))
			low, high := singularity+nearOffset, singularity+1
			if domainHigh, ok := op.Domain.High.Get(); ok && singularity >= domainHigh {
				low, high = singularity-1, singularity-nearOffset
			}
			e.emit(opinfo.NewSample(makeFn([]int{3, 3}, opinfo.Range(low, high))).WithName("near singularity"))
		}
	})
}

// UnarySparse is the sparse generator of zero-preserving unary operators: the samples of UnaryElementwise
// converted to SparseCOO, with the fill value 0.
var UnarySparse = Sparse(UnaryElementwise, 0)

// UnaryErrors generates the error cases shared by unary operators: sparse inputs for operators that don't
// support them, and out= arguments with a dtype the result can't be cast to, on another device, or
// combined with gradient tracking.
func UnaryErrors(op *opinfo.OpInfo, device tensorlib.Device, dtype dtypes.DType, _ bool, _ map[string]any) iter.Seq[*opinfo.ErrorInput] {
	return errorInputs(func(e *emitter[*opinfo.ErrorInput]) {
		makeFn := noGradMaker(op, device, dtype)
		inDomain := opinfo.InDomain(op.Domain)
		if !op.SupportsSparse {
			sparse := sparseOf(op, makeFn([]int{3, 3}, inDomain))
			e.emit(opinfo.NewErrorInput(opinfo.NewSample(sparse), tensorlib.NotImplementedError,
				regexp.QuoteMeta("Could not run 'aten::"+op.Name+"'")))
		}
		if !op.SupportsOut {
			return
		}
		resultDType := op.ResultDTypeFor(dtype)
		if outDType := dtypes.Int64; !dtypesets.CanCast(resultDType, outDType) {
			sample := opinfo.NewSample(makeFn([]int{3, 3}, inDomain)).WithKwarg("out", makeFn([]int{3, 3}, opinfo.WithDType(outDType)))
			e.emit(opinfo.NewErrorInput(sample, tensorlib.RuntimeError,
				regexp.QuoteMeta("result type "+resultDType.String()+" can't be cast to the desired output type "+outDType.String())))
		}
		if other, ok := otherDevice(op, device, resultDType); ok {
			out := opinfo.MakerFor(op.Library(), other, resultDType, false)([]int{3, 3})
			sample := opinfo.NewSample(makeFn([]int{3, 3}, inDomain)).WithKwarg("out", out)
			e.emit(opinfo.NewErrorInput(sample, tensorlib.RuntimeError, "^Expected out tensor to have device"))
		}
		if dtypesets.SupportsGrad(dtype) {
			input := opinfo.WithRequiresGrad(makeFn([]int{3, 3}, inDomain), true)
			sample := opinfo.NewSample(input).WithKwarg("out", makeFn([]int{3, 3}, opinfo.WithDType(resultDType)))
			e.emit(opinfo.NewErrorInput(sample, tensorlib.RuntimeError,
				regexp.QuoteMeta("functions with out=... arguments don't support automatic differentiation")))
		}
	})
}

// sparseOf converts t to SparseCOO.
func sparseOf(op *opinfo.OpInfo, t tensorlib.Tensor) tensorlib.Tensor {
	return must.M1(op.Library().ToSparseCOO(t))
}

// NanToNum generates samples for nan_to_num(input, nan=0.0, posinf=None, neginf=None): tensors with
// NaN and infinities, with and without replacement values.
func NanToNum(op *opinfo.OpInfo, device tensorlib.Device, dtype dtypes.DType, requiresGrad bool, _ map[string]any) iter.Seq[*opinfo.SampleInput] {
	return samples(func(e *emitter[*opinfo.SampleInput]) {
		makeFn := opinfo.Maker(op, device, dtype, requiresGrad)
		special := func() tensorlib.Tensor {
			values := []float64{math.NaN(), math.Inf(1), math.Inf(-1), 1.5, -2, 0}
			if !dtypesets.IsFloating(dtype) {
				values = []float64{3, -2, 0, 1, 7, 2}
			}
			return opinfo.WithRequiresGrad(opinfo.FromValues(op, device, dtype, values, 2, 3), requiresGrad)
		}
		e.emit(opinfo.NewSample(special()))
		e.emit(opinfo.NewSample(special()).WithKwarg("nan", 1.0))
		e.emit(opinfo.NewSample(special()).WithKwargs(map[string]any{"posinf": 2.0, "neginf": -2.0}))
		e.emit(opinfo.NewSample(special(), -1.0, 100.0, -100.0).WithName("positional"))
		for _, dims := range [][]int{{5, 5}, {}, {0}} {
			e.emit(opinfo.NewSample(makeFn(dims)))
		}
		e.emit(opinfo.NewSample(makeFn([]int{5, 5}, opinfo.Noncontiguous())).WithName("noncontiguous"))
	})
}
