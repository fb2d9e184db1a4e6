// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package generators

import (
	"fmt"
	"iter"
	"regexp"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/opinfo/pkg/core/tensorlib"
	"github.com/gomlx/opinfo/pkg/opinfo"
	"github.com/gomlx/opinfo/pkg/support/xslices"
)

// MatMulKind selects the matrix product operator, a tagged variant of the product family.
type MatMulKind int

const (
	// MatMul is matmul(input, other): any ranks >= 1, with broadcast batch axes.
	MatMul MatMulKind = iota

	// MM is mm(input, mat2): two matrices.
	MM

	// BMM is bmm(input, mat2): two batches of matrices with the same batch size.
	BMM

	// MV is mv(input, vec): a matrix and a vector.
	MV

	// Dot is dot(input, other): two vectors.
	Dot
)

// String implements fmt.Stringer.
func (k MatMulKind) String() string {
	switch k {
	case MatMul:
		return "MatMul"
	case MM:
		return "MM"
	case BMM:
		return "BMM"
	case MV:
		return "MV"
	case Dot:
		return "Dot"
	}
	return fmt.Sprintf("MatMulKind(%d)", int(k))
}

// productCase is a pair of operand dims of a product, and whether the batch axes of the input are broadcast.
type productCase struct {
	lhs, rhs   []int
	broadcasts bool
}

// productCases lists the operand shapes of each product operator. The first case of each is a plain
// product used again with noncontiguous operands.
var productCases = map[MatMulKind][]productCase{
	MatMul: {
		{lhs: []int{3, 4}, rhs: []int{4, 5}},
		{lhs: []int{4}, rhs: []int{4}},
		{lhs: []int{4}, rhs: []int{4, 5}},
		{lhs: []int{3, 4}, rhs: []int{4}},
		{lhs: []int{2, 3, 4}, rhs: []int{4, 5}},
		{lhs: []int{2, 3, 4}, rhs: []int{2, 4, 5}},
		{lhs: []int{1, 3, 4}, rhs: []int{2, 4, 5}, broadcasts: true},
		{lhs: []int{2, 1, 3, 4}, rhs: []int{5, 4, 2}, broadcasts: true},
		{lhs: []int{0, 4}, rhs: []int{4, 3}},
		{lhs: []int{3, 0}, rhs: []int{0, 4}},
	},
	MM: {
		{lhs: []int{3, 4}, rhs: []int{4, 5}},
		{lhs: []int{5, 5}, rhs: []int{5, 5}},
		{lhs: []int{1, 1}, rhs: []int{1, 1}},
		{lhs: []int{0, 4}, rhs: []int{4, 3}},
		{lhs: []int{3, 0}, rhs: []int{0, 2}},
	},
	BMM: {
		{lhs: []int{2, 3, 4}, rhs: []int{2, 4, 5}},
		{lhs: []int{1, 5, 5}, rhs: []int{1, 5, 5}},
		{lhs: []int{0, 3, 4}, rhs: []int{0, 4, 2}},
		{lhs: []int{2, 3, 0}, rhs: []int{2, 0, 4}},
	},
	MV: {
		{lhs: []int{3, 4}, rhs: []int{4}},
		{lhs: []int{1, 1}, rhs: []int{1}},
		{lhs: []int{0, 4}, rhs: []int{4}},
		{lhs: []int{3, 0}, rhs: []int{0}},
	},
	Dot: {
		{lhs: []int{5}, rhs: []int{5}},
		{lhs: []int{1}, rhs: []int{1}},
		{lhs: []int{0}, rhs: []int{0}},
	},
}

// Product returns the sample generator of the given matrix product operator.
func Product(kind MatMulKind) opinfo.SampleInputsFunc {
	return func(op *opinfo.OpInfo, device tensorlib.Device, dtype dtypes.DType, requiresGrad bool, _ map[string]any) iter.Seq[*opinfo.SampleInput] {
		return samples(func(e *emitter[*opinfo.SampleInput]) {
			makeFn := opinfo.Maker(op, device, dtype, requiresGrad)
			cases := productCases[kind]
			for _, c := range cases {
				if !e.emit(opinfo.NewSample(makeFn(c.lhs), makeFn(c.rhs)).WithBroadcastsInput(c.broadcasts)) {
					return
				}
			}
			first := cases[0]
			e.emit(opinfo.NewSample(makeFn(first.lhs, opinfo.Noncontiguous()), makeFn(first.rhs, opinfo.Noncontiguous())).
				WithName("noncontiguous"))
			if len(first.lhs) == 2 {
				e.emit(opinfo.NewSample(transposed(op, makeFn, first.lhs), makeFn(first.rhs)).WithName("transposed"))
			}
		})
	}
}

// productErrorCase is an invalid pair of operands of a product.
type productErrorCase struct {
	lhs, rhs []int
	message  string
}

var productErrorCases = map[MatMulKind][]productErrorCase{
	MatMul: {
		{[]int{}, []int{3}, "both arguments to matmul need to be at least 1D, but they are 0D and 1D"},
		{[]int{3, 4}, []int{5, 6}, "mat1 and mat2 shapes cannot be multiplied (3x4 and 5x6)"},
		{[]int{2, 3, 4}, []int{3, 4, 5}, "The size of tensor a (2) must match the size of tensor b (3) at non-singleton dimension 0"},
	},
	MM: {
		{[]int{3}, []int{3, 4}, "self must be a matrix"},
		{[]int{3, 4}, []int{4}, "mat2 must be a matrix"},
		{[]int{3, 4}, []int{5, 6}, "mat1 and mat2 shapes cannot be multiplied (3x4 and 5x6)"},
	},
	BMM: {
		{[]int{3, 4}, []int{2, 4, 5}, "batch1 must be a 3D tensor"},
		{[]int{2, 3, 4}, []int{3, 4, 5}, "batch1 and batch2 must have same number of batches, got 2 and 3"},
		{[]int{2, 3, 4}, []int{2, 5, 6}, "Expected size for first two dimensions of batch2 tensor to be: [2, 4] but got: [2, 5]."},
	},
	MV: {
		{[]int{3, 4}, []int{3, 4}, "vector + matrix @ vector expected, got 1, 2, 2"},
		{[]int{3, 4}, []int{5}, "mat1 and mat2 shapes cannot be multiplied (3x4 and 5x1)"},
	},
	Dot: {
		{[]int{3, 4}, []int{4}, "1D tensors expected, but got 2D and 1D tensors"},
		{[]int{3}, []int{4}, "inconsistent tensor size, expected tensor [3] and src [4] to have the same number of elements, but got 3 and 4 elements respectively"},
	},
}

// ProductErrors returns the error generator of the given matrix product operator: invalid ranks, shapes that
// can't be multiplied, and operands of different dtypes.
func ProductErrors(kind MatMulKind) opinfo.ErrorInputsFunc {
	return func(op *opinfo.OpInfo, device tensorlib.Device, dtype dtypes.DType, _ bool, _ map[string]any) iter.Seq[*opinfo.ErrorInput] {
		return errorInputs(func(e *emitter[*opinfo.ErrorInput]) {
			makeFn := noGradMaker(op, device, dtype)
			for _, c := range productErrorCases[kind] {
				if !e.emit(opinfo.NewErrorInput(opinfo.NewSample(makeFn(c.lhs), makeFn(c.rhs)), tensorlib.RuntimeError,
					regexp.QuoteMeta(c.message))) {
					return
				}
			}
			first := productCases[kind][0]
			other := differentDType(op, device, dtype)
			e.emit(opinfo.NewErrorInput(opinfo.NewSample(makeFn(first.lhs), makeFn(first.rhs, opinfo.WithDType(other))),
				tensorlib.RuntimeError,
				regexp.QuoteMeta(fmt.Sprintf("expected m1 and m2 to have the same dtype, but got: %s != %s", dtype, other))))
		})
	}
}

// Outer generates samples for outer(input, vec2).
func Outer(op *opinfo.OpInfo, device tensorlib.Device, dtype dtypes.DType, requiresGrad bool, _ map[string]any) iter.Seq[*opinfo.SampleInput] {
	return samples(func(e *emitter[*opinfo.SampleInput]) {
		makeFn := opinfo.Maker(op, device, dtype, requiresGrad)
		for _, dims := range [][2]int{{5, 3}, {1, 1}, {0, 3}, {4, 0}} {
			if !e.emit(opinfo.NewSample(makeFn([]int{dims[0]}), makeFn([]int{dims[1]}))) {
				return
			}
		}
		e.emit(opinfo.NewSample(makeFn([]int{5}, opinfo.Noncontiguous()), makeFn([]int{3}, opinfo.Noncontiguous())).
			WithName("noncontiguous"))
	})
}

// OuterErrors generates the error case of outer with a matrix operand.
func OuterErrors(op *opinfo.OpInfo, device tensorlib.Device, dtype dtypes.DType, _ bool, _ map[string]any) iter.Seq[*opinfo.ErrorInput] {
	return errorInputs(func(e *emitter[*opinfo.ErrorInput]) {
		makeFn := noGradMaker(op, device, dtype)
		e.emit(opinfo.NewErrorInput(opinfo.NewSample(makeFn([]int{3, 4}), makeFn([]int{3})), tensorlib.RuntimeError,
			regexp.QuoteMeta("outer: Expected 1-D argument self, but got 2-D")))
	})
}

// Triangular generates samples for tril(input, diagonal=0) and triu(input, diagonal=0).
func Triangular(op *opinfo.OpInfo, device tensorlib.Device, dtype dtypes.DType, requiresGrad bool, _ map[string]any) iter.Seq[*opinfo.SampleInput] {
	return samples(func(e *emitter[*opinfo.SampleInput]) {
		makeFn := opinfo.Maker(op, device, dtype, requiresGrad)
		if !e.emit(opinfo.NewSample(makeFn([]int{5, 5}))) {
			return
		}
		for _, c := range []struct {
			dims     []int
			diagonal int
		}{
			{[]int{3, 5}, 1},
			{[]int{5, 3}, -1},
			{[]int{2, 3, 4}, 0},
			{[]int{4, 4}, 10},
			{[]int{4, 4}, -10},
			{[]int{0, 3}, 0},
		} {
			e.emit(opinfo.NewSample(makeFn(c.dims), c.diagonal))
		}
		e.emit(opinfo.NewSample(makeFn([]int{5, 5})).WithKwarg("diagonal", 2).WithName("diagonal keyword"))
		e.emit(opinfo.NewSample(makeFn([]int{5, 5}, opinfo.Noncontiguous()), -1).WithName("noncontiguous"))
	})
}

// TriangularErrors generates the error case of tril and triu with a vector.
func TriangularErrors(op *opinfo.OpInfo, device tensorlib.Device, dtype dtypes.DType, _ bool, _ map[string]any) iter.Seq[*opinfo.ErrorInput] {
	return errorInputs(func(e *emitter[*opinfo.ErrorInput]) {
		makeFn := noGradMaker(op, device, dtype)
		e.emit(opinfo.NewErrorInput(opinfo.NewSample(makeFn([]int{3})), tensorlib.RuntimeError,
			regexp.QuoteMeta(op.Name+": input tensor must have at least 2 dimensions")))
	})
}

// LinalgKind selects the linear algebra operator on batches of square matrices.
type LinalgKind int

const (
	// Inverse is linalg.inv(A).
	Inverse LinalgKind = iota

	// Cholesky is linalg.cholesky(A, upper=False).
	Cholesky

	// Det is linalg.det(A).
	Det
)

// String implements fmt.Stringer.
func (k LinalgKind) String() string {
	switch k {
	case Inverse:
		return "Inverse"
	case Cholesky:
		return "Cholesky"
	case Det:
		return "Det"
	}
	return fmt.Sprintf("LinalgKind(%d)", int(k))
}

// linalgDims are the shapes of the batches of square matrices of the linalg samples.
var linalgDims = [][]int{{3, 3}, {5, 5}, {2, 3, 3}, {1, 1}, {0, 0}, {0, 3, 3}}

// identity returns a batch of n x n identity matrices scaled by scale, with the given dims.
func identity(op *opinfo.OpInfo, device tensorlib.Device, dtype dtypes.DType, scale float64, dims []int) tensorlib.Tensor {
	n := dims[len(dims)-1]
	values := make([]float64, xslices.Prod(dims))
	for start := 0; start < len(values); start += n * n {
		for ii := range n {
			values[start+ii*n+ii] = scale
		}
	}
	return opinfo.FromValues(op, device, dtype, values, dims...)
}

// conditioned returns a batch of matrices with the given dims the operator can be evaluated on in a
// numerically stable way, built with the operators of the library:
//
//   - Inverse: L·U, with L = tril(R₁, -1) + I unit lower-triangular and U = triu(R₂, 1) + diag(D) upper
//     triangular with D in [1, 2], so det(L·U) = prod(D) is never zero.
//   - Cholesky: R·Rᵀ + n·I, symmetric positive-definite.
//   - Det: R itself.
//
// R, R₁, R₂ are random in [-1, 1].
func conditioned(op *opinfo.OpInfo, kind LinalgKind, makeFn opinfo.MakeFunc, device tensorlib.Device, dtype dtypes.DType, dims []int) tensorlib.Tensor {
	r := makeFn(dims, opinfo.Range(-1, 1))
	rank, n := len(dims), dims[len(dims)-1]
	switch kind {
	case Inverse:
		lower := callOp(op, "add", callOp(op, "tril", r, -1), identity(op, device, dtype, 1, dims))
		diagonal := callOp(op, "mul", identity(op, device, dtype, 1, dims), makeFn(dims, opinfo.Range(1, 2)))
		upper := callOp(op, "add", callOp(op, "triu", makeFn(dims, opinfo.Range(-1, 1)), 1), diagonal)
		return callOp(op, "matmul", lower, upper)
	case Cholesky:
		gram := callOp(op, "matmul", r, callOp(op, "transpose", r, rank-2, rank-1))
		return callOp(op, "add", gram, identity(op, device, dtype, float64(n), dims))
	}
	return r
}

// Linalg returns the sample generator of the given linear algebra operator. Matrices are built so the
// operator is well-conditioned on them, see conditioned. Det also gets a singular matrix.
func Linalg(kind LinalgKind) opinfo.SampleInputsFunc {
	return func(op *opinfo.OpInfo, device tensorlib.Device, dtype dtypes.DType, requiresGrad bool, _ map[string]any) iter.Seq[*opinfo.SampleInput] {
		return samples(func(e *emitter[*opinfo.SampleInput]) {
			makeFn := opinfo.Maker(op, device, dtype, false)
			matrices := func(dims []int) tensorlib.Tensor {
				return opinfo.WithRequiresGrad(conditioned(op, kind, makeFn, device, dtype, dims), requiresGrad)
			}
			for _, dims := range linalgDims {
				if !e.emit(opinfo.NewSample(matrices(dims))) {
					return
				}
			}
			// The conditioned matrices of Cholesky are symmetric, so the transposed view is still valid input.
			x := callOp(op, "transpose", matrices([]int{4, 4}), 0, 1)
			e.emit(opinfo.NewSample(opinfo.WithRequiresGrad(x, requiresGrad)).WithName("noncontiguous"))
			switch kind {
			case Cholesky:
				e.emit(opinfo.NewSample(matrices([]int{3, 3})).WithKwarg("upper", true).WithName("upper"))
				e.emit(opinfo.NewSample(matrices([]int{2, 4, 4})).WithKwarg("upper", true).WithName("upper batch"))
			case Det:
				singular := opinfo.FromValues(op, device, dtype, []float64{1, 2, 2, 4}, 2, 2)
				e.emit(opinfo.NewSample(opinfo.WithRequiresGrad(singular, requiresGrad)).WithName("singular"))
			}
		})
	}
}

// LinalgErrors returns the error generator of the given linear algebra operator: inputs that are not
// batches of square floating point matrices, and for Inverse and Cholesky, matrices they can't factorize.
func LinalgErrors(kind LinalgKind) opinfo.ErrorInputsFunc {
	return func(op *opinfo.OpInfo, device tensorlib.Device, dtype dtypes.DType, _ bool, _ map[string]any) iter.Seq[*opinfo.ErrorInput] {
		return errorInputs(func(e *emitter[*opinfo.ErrorInput]) {
			makeFn := noGradMaker(op, device, dtype)
			if !e.emit(opinfo.NewErrorInput(opinfo.NewSample(makeFn([]int{3})), tensorlib.RuntimeError,
				regexp.QuoteMeta(op.Name+": The input tensor A must have at least 2 dimensions."))) {
				return
			}
			e.emit(opinfo.NewErrorInput(opinfo.NewSample(makeFn([]int{2, 3})), tensorlib.RuntimeError,
				regexp.QuoteMeta(op.Name+": A must be batches of square matrices, but they are 2 by 3 matrices")))
			e.emit(opinfo.NewErrorInput(opinfo.NewSample(makeFn([]int{3, 3}, opinfo.WithDType(dtypes.Int32))), tensorlib.RuntimeError,
				regexp.QuoteMeta(op.Name+": Expected a floating point or complex tensor as input. Got Int32")))
			switch kind {
			case Inverse:
				singular := opinfo.FromValues(op, device, dtype, []float64{1, 2, 2, 4}, 2, 2)
				e.emit(opinfo.NewErrorInput(opinfo.NewSample(singular), tensorlib.RuntimeError,
					regexp.QuoteMeta(op.Name+": The diagonal element 2 is zero, the inversion could not be completed because the input matrix is singular.")))
			case Cholesky:
				indefinite := opinfo.FromValues(op, device, dtype, []float64{1, 2, 2, 1}, 2, 2)
				e.emit(opinfo.NewErrorInput(opinfo.NewSample(indefinite), tensorlib.RuntimeError,
					regexp.QuoteMeta(op.Name+": The factorization could not be completed because the input is not positive-definite (the leading minor of order 2 is not positive-definite).")))
				e.emit(opinfo.NewErrorInput(opinfo.NewSample(makeFn([]int{3, 3})).WithKwarg("upper", 1), tensorlib.TypeError,
					regexp.QuoteMeta(op.Name+"(): argument 'upper' must be bool, not int")))
			}
		})
	}
}
