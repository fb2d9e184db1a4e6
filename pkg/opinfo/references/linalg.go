// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package references

import (
	"slices"

	"github.com/gomlx/opinfo/pkg/core/dtypesets"
	"github.com/gomlx/opinfo/pkg/core/shapes"
	"github.com/gomlx/opinfo/pkg/opinfo"
	"github.com/gomlx/opinfo/pkg/support/xslices"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// matMul multiplies the row-major matrices a (n x k) and b (k x m). gonum doesn't accept empty matrices, so
// those are handled here: the product of empty factors (k = 0) is all zeros.
func matMul(a, b []float64, n, k, m int) []float64 {
	out := make([]float64, n*m)
	if n == 0 || k == 0 || m == 0 {
		return out
	}
	var product mat.Dense
	product.Mul(mat.NewDense(n, k, a), mat.NewDense(k, m, b))
	return product.RawMatrix().Data
}

// MatMul is the reference of matmul, mm, bmm, mv and dot: the product over the last two axes, where a 1D first
// operand is taken as a row and a 1D second operand as a column (and the added axis removed from the result),
// and batch axes are broadcast.
func MatMul(sample *opinfo.SampleInput) ([]opinfo.Result, error) {
	a, err := input(sample)
	if err != nil {
		return nil, err
	}
	b, err := tensorParam(sample, 0, "other")
	if err != nil {
		return nil, err
	}
	if a.Rank() == 0 || b.Rank() == 0 || a.DType != b.DType {
		return nil, noReference("product of %s and %s", a.Shape(), b.Shape())
	}
	aDims, bDims := a.Dims, b.Dims
	if a.Rank() == 1 {
		aDims = []int{1, a.Dims[0]}
	}
	if b.Rank() == 1 {
		bDims = []int{b.Dims[0], 1}
	}
	n, k := aDims[len(aDims)-2], aDims[len(aDims)-1]
	m := bDims[len(bDims)-1]
	if bDims[len(bDims)-2] != k {
		return nil, noReference("product of %s and %s", a.Shape(), b.Shape())
	}
	batch, err := shapes.BroadcastDims(aDims[:len(aDims)-2], bDims[:len(bDims)-2])
	if err != nil {
		return nil, noReference("batch dims don't broadcast: %v", err)
	}
	aValues := (&Array{Dims: aDims, DType: a.DType, Data: a.Data}).broadcastTo(append(slices.Clone(batch), n, k))
	bValues := (&Array{Dims: bDims, DType: b.DType, Data: b.Data}).broadcastTo(append(slices.Clone(batch), k, m))
	numBatches := xslices.Prod(batch)
	values := make([]float64, 0, numBatches*n*m)
	for ii := range numBatches {
		values = append(values, matMul(aValues[ii*n*k:(ii+1)*n*k], bValues[ii*k*m:(ii+1)*k*m], n, k, m)...)
	}
	outDims := slices.Clone(batch)
	if a.Rank() > 1 {
		outDims = append(outDims, n)
	}
	if b.Rank() > 1 {
		outDims = append(outDims, m)
	}
	castAll(a.DType, values)
	return results(NewArray(a.DType, values, outDims...))
}

// Outer is the reference of outer(input, vec2), with type promotion.
func Outer(sample *opinfo.SampleInput) ([]opinfo.Result, error) {
	a, err := input(sample)
	if err != nil {
		return nil, err
	}
	b, err := tensorParam(sample, 0, "vec2")
	if err != nil {
		return nil, err
	}
	if a.Rank() != 1 || b.Rank() != 1 {
		return nil, noReference("outer of %s and %s", a.Shape(), b.Shape())
	}
	dtype, err := dtypesets.Promote(a.DType, b.DType)
	if err != nil {
		return nil, noReference("outer of %s and %s: %v", a.DType, b.DType, err)
	}
	n, m := a.Size(), b.Size()
	values := make([]float64, n*m)
	if n > 0 && m > 0 {
		var product mat.Dense
		product.Outer(1, mat.NewVecDense(n, a.Data), mat.NewVecDense(m, b.Data))
		values = product.RawMatrix().Data
	}
	castAll(dtype, values)
	return results(NewArray(dtype, values, n, m))
}

// Triangular returns the reference of tril (upper=false) or triu (upper=true) with the "diagonal" argument:
// the elements of the last two axes with col - row <= diagonal (tril) or >= diagonal (triu) are kept.
func Triangular(upper bool) opinfo.ReferenceFunc {
	return func(sample *opinfo.SampleInput) ([]opinfo.Result, error) {
		x, err := input(sample)
		if err != nil {
			return nil, err
		}
		if x.Rank() < 2 {
			return nil, noReference("triangular part of %s", x.Shape())
		}
		diagonal, err := intParam(sample, 0, "diagonal", 0)
		if err != nil {
			return nil, err
		}
		rows, cols := x.Dims[x.Rank()-2], x.Dims[x.Rank()-1]
		values := slices.Clone(x.Data)
		for start := 0; start < len(values); start += rows * cols {
			for row := range rows {
				for col := range cols {
					keep := col-row <= diagonal
					if upper {
						keep = col-row >= diagonal
					}
					if !keep {
						values[start+row*cols+col] = 0
					}
				}
			}
		}
		return results(NewArray(x.DType, values, x.Dims...))
	}
}

// squareMatrices returns the number of n x n matrices of x, which must be a batch of square matrices of a
// floating point dtype.
func squareMatrices(x *Array) (numMatrices, n int, err error) {
	if x.Rank() < 2 || x.Dims[x.Rank()-1] != x.Dims[x.Rank()-2] || !dtypesets.IsFloating(x.DType) {
		return 0, 0, noReference("linear algebra on %s", x.Shape())
	}
	n = x.Dims[x.Rank()-1]
	return xslices.Prod(x.Dims[:x.Rank()-2]), n, nil
}

// eachMatrix returns the concatenated results of fn applied to each matrix of x. Empty matrices (n = 0)
// are passed to fn as nil.
func eachMatrix(x *Array, fn func(m *mat.Dense, n int) ([]float64, error)) ([]float64, error) {
	numMatrices, n, err := squareMatrices(x)
	if err != nil {
		return nil, err
	}
	var out []float64
	for ii := range numMatrices {
		var m *mat.Dense
		if n > 0 {
			m = mat.NewDense(n, n, slices.Clone(x.Data[ii*n*n:(ii+1)*n*n]))
		}
		values, err := fn(m, n)
		if err != nil {
			return nil, err
		}
		out = append(out, values...)
	}
	return out, nil
}

// Inverse is the reference of linalg.inv(A).
func Inverse(sample *opinfo.SampleInput) ([]opinfo.Result, error) {
	x, err := input(sample)
	if err != nil {
		return nil, err
	}
	values, err := eachMatrix(x, func(m *mat.Dense, n int) ([]float64, error) {
		if n == 0 {
			return nil, nil
		}
		var inverse mat.Dense
		if err := inverse.Inverse(m); err != nil {
			// An ill-conditioned matrix still has its inverse computed.
			var condition mat.Condition
			if !errors.As(err, &condition) {
				return nil, noReference("inverse: %v", err)
			}
		}
		return inverse.RawMatrix().Data, nil
	})
	if err != nil {
		return nil, err
	}
	return linalgResult(x, x.Dims, values)
}

// Det is the reference of linalg.det(A). The determinant of a 0 x 0 matrix is 1.
func Det(sample *opinfo.SampleInput) ([]opinfo.Result, error) {
	x, err := input(sample)
	if err != nil {
		return nil, err
	}
	values, err := eachMatrix(x, func(m *mat.Dense, n int) ([]float64, error) {
		if n == 0 {
			return []float64{1}, nil
		}
		return []float64{mat.Det(m)}, nil
	})
	if err != nil {
		return nil, err
	}
	return linalgResult(x, x.Dims[:x.Rank()-2], values)
}

// Cholesky is the reference of linalg.cholesky(A, upper=False): L with A = L·Lᵀ, or Lᵀ if upper.
func Cholesky(sample *opinfo.SampleInput) ([]opinfo.Result, error) {
	x, err := input(sample)
	if err != nil {
		return nil, err
	}
	upper, err := boolParam(sample, -1, "upper", false)
	if err != nil {
		return nil, err
	}
	values, err := eachMatrix(x, func(m *mat.Dense, n int) ([]float64, error) {
		if n == 0 {
			return nil, nil
		}
		var chol mat.Cholesky
		if ok := chol.Factorize(mat.NewSymDense(n, m.RawMatrix().Data)); !ok {
			return nil, noReference("cholesky of a matrix that is not positive-definite")
		}
		var factor mat.TriDense
		if upper {
			chol.UTo(&factor)
		} else {
			chol.LTo(&factor)
		}
		out := make([]float64, 0, n*n)
		for row := range n {
			for col := range n {
				out = append(out, factor.At(row, col))
			}
		}
		return out, nil
	})
	if err != nil {
		return nil, err
	}
	return linalgResult(x, x.Dims, values)
}

// linalgResult builds the result of a linear algebra reference, in the dtype of x.
func linalgResult(x *Array, dims []int, values []float64) ([]opinfo.Result, error) {
	if values == nil {
		values = []float64{}
	}
	castAll(x.DType, values)
	return results(NewArray(x.DType, values, dims...))
}
