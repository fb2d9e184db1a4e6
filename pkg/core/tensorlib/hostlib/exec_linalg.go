// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package hostlib

import (
	"math"
	"slices"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/opinfo/pkg/core/dtypesets"
	"github.com/gomlx/opinfo/pkg/core/shapes"
	"github.com/gomlx/opinfo/pkg/core/tensorlib"
	"github.com/gomlx/opinfo/pkg/support/xslices"
)

func init() {
	registerOp("matmul", execMatMul, false)
	registerOp("mm", execMatMul, false)
	registerOp("bmm", execMatMul, false)
	registerOp("mv", execMatMul, false)
	registerOp("dot", execMatMul, false)
	registerOp("outer", execOuter, false)
	registerOp("tril", execTriangular, false)
	registerOp("triu", execTriangular, false)
	registerOp("linalg.inv", execInverse, false)
	registerOp("linalg.cholesky", execCholesky, false)
	registerOp("linalg.det", execDet, false)
}

// matmulBlock multiplies the row-major matrices a (n x k) and b (k x m).
func matmulBlock(a, b []float64, n, k, m int) []float64 {
	out := make([]float64, n*m)
	for row := range n {
		for col := range m {
			var sum float64
			for ii := range k {
				sum += a[row*k+ii] * b[ii*m+col]
			}
			out[row*m+col] = sum
		}
	}
	return out
}

// checkMatMulRanks validates the ranks of the operands for the specific product operator.
func (c *opCall) checkMatMulRanks(a, b *Tensor) error {
	ra, rb := a.Rank(), b.Rank()
	switch c.name {
	case "matmul":
		if ra == 0 || rb == 0 {
			return tensorlib.Errorf(tensorlib.RuntimeError,
				"both arguments to matmul need to be at least 1D, but they are %dD and %dD", ra, rb)
		}
	case "mm":
		if ra != 2 {
			return tensorlib.Errorf(tensorlib.RuntimeError, "self must be a matrix")
		}
		if rb != 2 {
			return tensorlib.Errorf(tensorlib.RuntimeError, "mat2 must be a matrix")
		}
	case "bmm":
		if ra != 3 {
			return tensorlib.Errorf(tensorlib.RuntimeError, "batch1 must be a 3D tensor")
		}
		if rb != 3 {
			return tensorlib.Errorf(tensorlib.RuntimeError, "batch2 must be a 3D tensor")
		}
		if a.dims[0] != b.dims[0] {
			return tensorlib.Errorf(tensorlib.RuntimeError,
				"batch1 and batch2 must have same number of batches, got %d and %d", a.dims[0], b.dims[0])
		}
	case "mv":
		if ra != 2 || rb != 1 {
			return tensorlib.Errorf(tensorlib.RuntimeError,
				"vector + matrix @ vector expected, got 1, %d, %d", ra, rb)
		}
	case "dot":
		if ra != 1 || rb != 1 {
			return tensorlib.Errorf(tensorlib.RuntimeError, "1D tensors expected, but got %dD and %dD tensors", ra, rb)
		}
	}
	return nil
}

// execMatMul implements matmul, mm, bmm, mv and dot: matrix products over the last two axes, with 1D
// operands taken as a row (first operand) or column (second operand) and broadcast batch axes.
// Both operands must have the same dtype.
func execMatMul(c *opCall) (any, error) {
	a, err := c.inputTensor()
	if err != nil {
		return nil, err
	}
	otherName := map[string]string{"matmul": "other", "mm": "mat2", "bmm": "mat2", "mv": "vec", "dot": "other"}[c.name]
	b, err := c.tensorParam(0, otherName)
	if err != nil {
		return nil, err
	}
	if err = c.checkMatMulRanks(a, b); err != nil {
		return nil, err
	}
	if a.dtype != b.dtype {
		return nil, tensorlib.Errorf(tensorlib.RuntimeError,
			"expected m1 and m2 to have the same dtype, but got: %s != %s", a.dtype, b.dtype)
	}
	if a.dtype == dtypes.Bool {
		return nil, notImplementedFor(c.name, a.dtype)
	}
	aVector, bVector := a.Rank() == 1, b.Rank() == 1
	if aVector && bVector && a.dims[0] != b.dims[0] {
		return nil, tensorlib.Errorf(tensorlib.RuntimeError,
			"inconsistent tensor size, expected tensor [%d] and src [%d] to have the same number of elements, but got %d and %d elements respectively",
			a.dims[0], b.dims[0], a.dims[0], b.dims[0])
	}
	aDims, bDims := a.dims, b.dims
	if aVector {
		aDims = []int{1, a.dims[0]}
	}
	if bVector {
		bDims = []int{b.dims[0], 1}
	}
	n, k := aDims[len(aDims)-2], aDims[len(aDims)-1]
	k2, m := bDims[len(bDims)-2], bDims[len(bDims)-1]
	if k != k2 {
		if c.name == "bmm" {
			return nil, tensorlib.Errorf(tensorlib.RuntimeError,
				"Expected size for first two dimensions of batch2 tensor to be: [%d, %d] but got: [%d, %d].",
				aDims[0], k, bDims[0], k2)
		}
		return nil, tensorlib.Errorf(tensorlib.RuntimeError,
			"mat1 and mat2 shapes cannot be multiplied (%dx%d and %dx%d)", xslices.Prod(aDims[:len(aDims)-1]), k, k2, m)
	}
	batch, err := shapes.BroadcastDims(aDims[:len(aDims)-2], bDims[:len(bDims)-2])
	if err != nil {
		return nil, tensorlib.Classify(tensorlib.RuntimeError, err)
	}
	aValues := reshaped(a, aDims).broadcastValues(append(slices.Clone(batch), n, k))
	bValues := reshaped(b, bDims).broadcastValues(append(slices.Clone(batch), k, m))
	numBatches := xslices.Prod(batch)
	values := make([]float64, 0, numBatches*n*m)
	for ii := range numBatches {
		values = append(values, matmulBlock(aValues[ii*n*k:(ii+1)*n*k], bValues[ii*k*m:(ii+1)*k*m], n, k, m)...)
	}
	outDims := slices.Clone(batch)
	if !aVector {
		outDims = append(outDims, n)
	}
	if !bVector {
		outDims = append(outDims, m)
	}
	inputs := []*Tensor{a, b}
	return c.output(binaryResult(a.dtype, a.device, outDims, values, inputs), inputs...)
}

// execOuter implements outer(input, vec2), with type promotion.
func execOuter(c *opCall) (any, error) {
	a, err := c.inputTensor()
	if err != nil {
		return nil, err
	}
	b, err := c.tensorParam(0, "vec2")
	if err != nil {
		return nil, err
	}
	if a.Rank() != 1 || b.Rank() != 1 {
		return nil, tensorlib.Errorf(tensorlib.RuntimeError, "outer: Expected 1-D argument self, but got %d-D", max(a.Rank(), b.Rank()))
	}
	dtype, err := dtypesets.Promote(a.dtype, b.dtype)
	if err != nil {
		return nil, tensorlib.Classify(tensorlib.RuntimeError, err)
	}
	aValues, bValues := a.Values(), b.Values()
	values := make([]float64, 0, len(aValues)*len(bValues))
	for _, x := range aValues {
		for _, y := range bValues {
			values = append(values, x*y)
		}
	}
	inputs := []*Tensor{a, b}
	return c.output(binaryResult(dtype, a.device, []int{len(aValues), len(bValues)}, values, inputs), inputs...)
}

// execTriangular implements tril(input, diagonal=0) and triu(input, diagonal=0) over the last two axes.
func execTriangular(c *opCall) (any, error) {
	x, err := c.inputTensor()
	if err != nil {
		return nil, err
	}
	if x.Rank() < 2 {
		return nil, tensorlib.Errorf(tensorlib.RuntimeError, "%s: input tensor must have at least 2 dimensions", c.name)
	}
	diagonal, err := c.intParam(0, "diagonal", 0)
	if err != nil {
		return nil, err
	}
	rank := x.Rank()
	values := make([]float64, 0, x.Size())
	for indices := range shapes.IterDims(x.dims) {
		row, col := indices[rank-2], indices[rank-1]
		keep := col-row <= diagonal
		if c.name == "triu" {
			keep = col-row >= diagonal
		}
		if keep {
			values = append(values, x.at(indices))
		} else {
			values = append(values, 0)
		}
	}
	result := newTensor(x.dtype, x.device, x.dims, values)
	result.requiresGrad = x.requiresGrad
	return result, nil
}

// squareMatrices validates the input of the linalg operators: batches of square matrices of Float32 or Float64.
// It returns the number of matrices and their size.
func (c *opCall) squareMatrices(x *Tensor) (numMatrices, n int, err error) {
	if x.Rank() < 2 {
		return 0, 0, tensorlib.Errorf(tensorlib.RuntimeError,
			"%s: The input tensor A must have at least 2 dimensions.", c.name)
	}
	rows, cols := x.dims[x.Rank()-2], x.dims[x.Rank()-1]
	if rows != cols {
		return 0, 0, tensorlib.Errorf(tensorlib.RuntimeError,
			"%s: A must be batches of square matrices, but they are %d by %d matrices", c.name, rows, cols)
	}
	if x.dtype != dtypes.Float32 && x.dtype != dtypes.Float64 {
		return 0, 0, tensorlib.Errorf(tensorlib.RuntimeError,
			"%s: Expected a floating point or complex tensor as input. Got %s", c.name, x.dtype)
	}
	return xslices.Prod(x.dims[:x.Rank()-2]), rows, nil
}

// forEachMatrix calls fn for each n x n matrix of x (row-major values), concatenating the outputs.
func forEachMatrix(x *Tensor, numMatrices, n int, fn func(matrix []float64) ([]float64, error)) ([]float64, error) {
	values := x.Values()
	var out []float64
	for ii := range numMatrices {
		result, err := fn(values[ii*n*n : (ii+1)*n*n])
		if err != nil {
			return nil, err
		}
		out = append(out, result...)
	}
	return out, nil
}

// luDecompose factorizes matrix in-place with partial pivoting. It returns the permutation sign, and
// the 1-based index of the first zero pivot (0 if none).
func luDecompose(matrix []float64, n int, perm []int) (sign float64, zeroPivot int) {
	sign = 1
	for ii := range perm {
		perm[ii] = ii
	}
	for col := range n {
		pivot := col
		for row := col + 1; row < n; row++ {
			if math.Abs(matrix[row*n+col]) > math.Abs(matrix[pivot*n+col]) {
				pivot = row
			}
		}
		if pivot != col {
			for jj := range n {
				matrix[col*n+jj], matrix[pivot*n+jj] = matrix[pivot*n+jj], matrix[col*n+jj]
			}
			perm[col], perm[pivot] = perm[pivot], perm[col]
			sign = -sign
		}
		diag := matrix[col*n+col]
		if diag == 0 {
			if zeroPivot == 0 {
				zeroPivot = col + 1
			}
			continue
		}
		for row := col + 1; row < n; row++ {
			factor := matrix[row*n+col] / diag
			matrix[row*n+col] = factor
			for jj := col + 1; jj < n; jj++ {
				matrix[row*n+jj] -= factor * matrix[col*n+jj]
			}
		}
	}
	return
}

// execInverse implements linalg.inv(A) with an LU factorization.
func execInverse(c *opCall) (any, error) {
	x, err := c.inputTensor()
	if err != nil {
		return nil, err
	}
	numMatrices, n, err := c.squareMatrices(x)
	if err != nil {
		return nil, err
	}
	values, err := forEachMatrix(x, numMatrices, n, func(matrix []float64) ([]float64, error) {
		lu := slices.Clone(matrix)
		perm := make([]int, n)
		if _, zeroPivot := luDecompose(lu, n, perm); zeroPivot > 0 {
			return nil, tensorlib.Errorf(tensorlib.RuntimeError,
				"linalg.inv: The diagonal element %d is zero, the inversion could not be completed because the input matrix is singular.", zeroPivot)
		}
		inverse := make([]float64, n*n)
		column := make([]float64, n)
		for col := range n {
			// Solve L·U·x = P·e_col.
			for row := range n {
				column[row] = 0
				if perm[row] == col {
					column[row] = 1
				}
			}
			for row := range n {
				for jj := range row {
					column[row] -= lu[row*n+jj] * column[jj]
				}
			}
			for row := n - 1; row >= 0; row-- {
				for jj := row + 1; jj < n; jj++ {
					column[row] -= lu[row*n+jj] * column[jj]
				}
				column[row] /= lu[row*n+row]
			}
			for row := range n {
				inverse[row*n+col] = column[row]
			}
		}
		return inverse, nil
	})
	if err != nil {
		return nil, err
	}
	result := newTensorFrom(x.dtype, x.device, x.dims, values)
	result.requiresGrad = x.requiresGrad
	return result, nil
}

// execDet implements linalg.det(A) with an LU factorization.
func execDet(c *opCall) (any, error) {
	x, err := c.inputTensor()
	if err != nil {
		return nil, err
	}
	numMatrices, n, err := c.squareMatrices(x)
	if err != nil {
		return nil, err
	}
	values, err := forEachMatrix(x, numMatrices, n, func(matrix []float64) ([]float64, error) {
		lu := slices.Clone(matrix)
		sign, zeroPivot := luDecompose(lu, n, make([]int, n))
		if zeroPivot > 0 {
			return []float64{0}, nil
		}
		det := sign
		for ii := range n {
			det *= lu[ii*n+ii]
		}
		return []float64{det}, nil
	})
	if err != nil {
		return nil, err
	}
	result := newTensorFrom(x.dtype, x.device, x.dims[:x.Rank()-2], values)
	result.requiresGrad = x.requiresGrad
	return result, nil
}

// execCholesky implements linalg.cholesky(A, upper=False), returning L with A = L·Lᵀ, or Lᵀ if upper is set.
func execCholesky(c *opCall) (any, error) {
	x, err := c.inputTensor()
	if err != nil {
		return nil, err
	}
	numMatrices, n, err := c.squareMatrices(x)
	if err != nil {
		return nil, err
	}
	upper, err := c.boolParam(-1, "upper", false)
	if err != nil {
		return nil, err
	}
	values, err := forEachMatrix(x, numMatrices, n, func(matrix []float64) ([]float64, error) {
		l := make([]float64, n*n)
		for row := range n {
			for col := 0; col <= row; col++ {
				sum := matrix[row*n+col]
				for kk := range col {
					sum -= l[row*n+kk] * l[col*n+kk]
				}
				if row == col {
					if !(sum > 0) {
						return nil, tensorlib.Errorf(tensorlib.RuntimeError,
							"linalg.cholesky: The factorization could not be completed because the input is not positive-definite (the leading minor of order %d is not positive-definite).",
							row+1)
					}
					l[row*n+row] = math.Sqrt(sum)
				} else {
					l[row*n+col] = sum / l[col*n+col]
				}
			}
		}
		if upper {
			for row := range n {
				for col := row + 1; col < n; col++ {
					l[row*n+col], l[col*n+row] = l[col*n+row], l[row*n+col]
				}
			}
		}
		return l, nil
	})
	if err != nil {
		return nil, err
	}
	result := newTensorFrom(x.dtype, x.device, x.dims, values)
	result.requiresGrad = x.requiresGrad
	return result, nil
}
