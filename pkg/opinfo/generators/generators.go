// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package generators implements the sample and error generators shared by families of operators.
//
// Each generator is an opinfo.SampleInputsFunc (or opinfo.ErrorInputsFunc), or a constructor returning
// one for a tagged variant of the family (e.g. Div(RoundingTrunc) or IndexFamily(IndexAdd)).
// Operator-specific parameters come from the record (opinfo.OpInfo.Domain, RHSExcludeZero, Reduction, ...),
// never from its name.
//
// Generators are lazy: each sample is only built when the consumer asks for it, and every sample owns
// freshly created tensors. Failures while building a sample panic, see opinfo.Maker.
package generators

import (
	"iter"
	"slices"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/opinfo/pkg/core/dtypesets"
	"github.com/gomlx/opinfo/pkg/core/shapes"
	"github.com/gomlx/opinfo/pkg/core/tensorlib"
	"github.com/gomlx/opinfo/pkg/opinfo"
	"github.com/janpfeifer/must"
	"k8s.io/klog/v2"
)

// emitter wraps the yield function of an iterator, and remembers when the consumer stopped.
type emitter[T any] struct {
	yield   func(T) bool
	stopped bool
}

// emit yields v, unless the consumer already stopped. It returns false once the consumer stops.
func (e *emitter[T]) emit(v T) bool {
	if e.stopped {
		return false
	}
	if !e.yield(v) {
		e.stopped = true
	}
	return !e.stopped
}

// lazySeq creates an iterator from fn, which emits values with an emitter. Emitting after the consumer
// stopped is a no-op, so fn doesn't need to check the result of every emit.
func lazySeq[T any](fn func(e *emitter[T])) iter.Seq[T] {
	return func(yield func(T) bool) {
		fn(&emitter[T]{yield: yield})
	}
}

// samples is lazySeq for *opinfo.SampleInput.
func samples(fn func(e *emitter[*opinfo.SampleInput])) iter.Seq[*opinfo.SampleInput] {
	return lazySeq(fn)
}

// errorInputs is lazySeq for *opinfo.ErrorInput.
func errorInputs(fn func(e *emitter[*opinfo.ErrorInput])) iter.Seq[*opinfo.ErrorInput] {
	return lazySeq(fn)
}

// skipf logs a combination skipped by a generator.
func skipf(op *opinfo.OpInfo, format string, args ...any) {
	if klog.V(2).Enabled() {
		klog.Infof("generators(%s): skipping "+format, append([]any{op.FullName()}, args...)...)
	}
}

// callOp calls the operator name of op's library, used to derive values (views, products, ...) while
// building samples. It panics on failure.
func callOp(op *opinfo.OpInfo, name string, input any, args ...any) tensorlib.Tensor {
	return callOpWithKwargs(op, name, input, args, nil)
}

func callOpWithKwargs(op *opinfo.OpInfo, name string, input any, args []any, kwargs map[string]any) tensorlib.Tensor {
	fn := tensorlib.MustOp(op.Library(), name)
	return must.M1(fn(input, args, kwargs)).(tensorlib.Tensor)
}

// transposed returns a transposed view of a freshly made tensor with dims, reversed on the first two axes.
func transposed(op *opinfo.OpInfo, makeFn opinfo.MakeFunc, dims []int) tensorlib.Tensor {
	reversed := slices.Clone(dims)
	reversed[0], reversed[1] = reversed[1], reversed[0]
	return callOp(op, "transpose", makeFn(reversed), 0, 1)
}

// otherDevice returns a device of op's library other than device that supports dtype, if there is one.
func otherDevice(op *opinfo.OpInfo, device tensorlib.Device, dtype dtypes.DType) (tensorlib.Device, bool) {
	lib := op.Library()
	capabilities := lib.Capabilities()
	for _, d := range lib.Devices() {
		if d != device && capabilities.SupportsDType(d.Class, dtype) {
			return d, true
		}
	}
	return tensorlib.Device{}, false
}

// scalarOf returns a Go scalar of the kind matching dtype's category (bool, int or float64) with value.
// Using the matching kind keeps the result dtype of the operation unchanged.
func scalarOf(dtype dtypes.DType, value float64) any {
	switch dtypesets.CategoryOf(dtype) {
	case dtypesets.CategoryBool:
		return value != 0
	case dtypesets.CategoryInteger:
		return int(value)
	}
	return value
}

// broadcasts returns whether the tensors need broadcasting to a common shape.
func broadcasts(tensors ...tensorlib.Tensor) bool {
	allDims := make([][]int, len(tensors))
	for ii, t := range tensors {
		allDims[ii] = t.Dims()
	}
	return shapes.NeedsBroadcast(allDims...)
}

// noGradMaker returns the maker used by error generators, whose tensors never track gradients, so the
// errors checked are not shadowed by the autograd checks of out= arguments.
func noGradMaker(op *opinfo.OpInfo, device tensorlib.Device, dtype dtypes.DType) opinfo.MakeFunc {
	return opinfo.Maker(op, device, dtype, false)
}

// Sparse returns a sparse generator built from the dense samples of dense: the input of each sample with
// rank 2 or more gets every other element zeroed and is converted to SparseCOO. The fill value of the
// result is set to fill, the value the operator produces on implicit zeros.
func Sparse(dense opinfo.SampleInputsFunc, fill float64) opinfo.SampleInputsFunc {
	return func(op *opinfo.OpInfo, device tensorlib.Device, dtype dtypes.DType, requiresGrad bool, extra map[string]any) iter.Seq[*opinfo.SampleInput] {
		return samples(func(e *emitter[*opinfo.SampleInput]) {
			for sample := range dense(op, device, dtype, requiresGrad, extra) {
				input, ok := sample.Input.(tensorlib.Tensor)
				if !ok || input.Rank() < 2 || !input.IsContiguous() || len(sample.Tensors()) > 1 {
					continue
				}
				for ii := 0; ii < input.Size(); ii += 2 {
					input.SetValue(ii, 0)
				}
				sample.Input = sparseOf(op, input)
				if !e.emit(sample.WithSparseFillValue(fill)) {
					return
				}
			}
		})
	}
}
