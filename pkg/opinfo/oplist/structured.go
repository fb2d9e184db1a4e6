// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package oplist

import (
	"math"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/opinfo/pkg/core/dtypesets"
	"github.com/gomlx/opinfo/pkg/opinfo"
	"github.com/gomlx/opinfo/pkg/opinfo/generators"
	"github.com/gomlx/opinfo/pkg/opinfo/references"
)

func int64Result(dtypes.DType) dtypes.DType { return dtypes.Int64 }

// reduction returns the record of a reduction, whose result dtype is the one of its reference.
func reduction(name string, kind references.ReduceKind, dtypeSet dtypesets.Set, info opinfo.ReductionInfo) *opinfo.OpInfo {
	info.ResultDType = kind.ResultDType
	op := &opinfo.OpInfo{
		Name:         name,
		Category:     opinfo.CategoryReduction,
		Ref:          references.Reduce(kind),
		SampleInputs: generators.Reduction,
		ErrorInputs:  generators.ReductionErrors,
		DTypes:       dtypeSet,
		Reduction:    info,
	}
	if kind == references.Var || kind == references.Std {
		op.SampleInputs = generators.VarianceReduction
	}
	op.SupportsAutograd = dtypesets.SupportsGrad(kind.ResultDType(dtypes.Float32))
	return op
}

func reductionRecords() []*opinfo.OpInfo {
	multi := func(identity float64) opinfo.ReductionInfo {
		return opinfo.ReductionInfo{Identity: opinfo.Some(identity), SupportsMultipleDims: true}
	}
	sum := reduction("sum", references.Sum, allNumeric(), multi(0))
	sum.SupportsSparse = true
	sum.SampleInputsSparse = generators.ReductionSparse
	return []*opinfo.OpInfo{
		sum,
		reduction("prod", references.Prod, allNumeric(), opinfo.ReductionInfo{Identity: opinfo.Some(1.0)}),
		reduction("mean", references.Mean, floating(), multi(math.NaN())),
		reduction("amax", references.AMax, allNumeric(), opinfo.ReductionInfo{SupportsMultipleDims: true}),
		reduction("amin", references.AMin, allNumeric(), opinfo.ReductionInfo{SupportsMultipleDims: true}),
		reduction("argmax", references.ArgMax, allNumeric(), opinfo.ReductionInfo{}),
		reduction("argmin", references.ArgMin, allNumeric(), opinfo.ReductionInfo{}),
		reduction("all", references.All, allWithBool(), multi(1)),
		reduction("any", references.Any, allWithBool(), multi(0)),
		reduction("count_nonzero", references.CountNonzero, allWithBool(), opinfo.ReductionInfo{
			Identity: opinfo.Some(0.0), SupportsMultipleDims: true, NoKeepDim: true}),
		reduction("logsumexp", references.LogSumExp, allNumeric(), multi(math.Inf(-1))),
		reduction("var", references.Var, floating(), multi(math.NaN())),
		reduction("std", references.Std, floating(), multi(math.NaN())),
	}
}

func scanRecords() []*opinfo.OpInfo {
	alongDim := func(name string, ref opinfo.ReferenceFunc, dtypeSet dtypesets.Set) *opinfo.OpInfo {
		return &opinfo.OpInfo{
			Name:             name,
			Category:         opinfo.CategoryScan,
			Ref:              ref,
			SampleInputs:     generators.AlongDim,
			ErrorInputs:      generators.AlongDimErrors,
			DTypes:           dtypeSet,
			SupportsAutograd: true,
		}
	}
	cumsum := alongDim("cumsum", references.CumSum, allNumeric())
	cumsum.ResultDType = dtypesets.SumResultType
	cumprod := alongDim("cumprod", references.CumProd, allNumeric())
	cumprod.ResultDType = dtypesets.SumResultType
	return []*opinfo.OpInfo{
		cumsum,
		cumprod,
		alongDim("softmax", references.Softmax, floating()),
		alongDim("log_softmax", references.LogSoftmax, floating()),
		{
			Name:             "sort",
			Category:         opinfo.CategorySort,
			Ref:              references.Sort,
			SampleInputs:     generators.Sort,
			ErrorInputs:      generators.SortErrors,
			DTypes:           allNumeric(),
			SupportsAutograd: true,
		},
		{
			Name:         "argsort",
			Category:     opinfo.CategorySort,
			Ref:          references.ArgSort,
			SampleInputs: generators.Sort,
			ErrorInputs:  generators.SortErrors,
			DTypes:       allNumeric(),
			ResultDType:  int64Result,
		},
		{
			Name:             "topk",
			Category:         opinfo.CategorySort,
			Ref:              references.TopK,
			SampleInputs:     generators.TopK,
			ErrorInputs:      generators.TopKErrors,
			DTypes:           allNumeric(),
			SupportsAutograd: true,
		},
	}
}

func shapeRecords() []*opinfo.OpInfo {
	shapeOp := func(name string, ref opinfo.ReferenceFunc, samples opinfo.SampleInputsFunc, errs opinfo.ErrorInputsFunc) *opinfo.OpInfo {
		return &opinfo.OpInfo{
			Name:              name,
			Category:          opinfo.CategoryShape,
			Ref:               ref,
			SampleInputs:      samples,
			ErrorInputs:       errs,
			DTypes:            allWithBool(),
			SupportsAutograd:  true,
			SupportsForwardAD: true,
		}
	}
	return []*opinfo.OpInfo{
		shapeOp("reshape", references.Reshape, generators.Reshape, generators.ReshapeErrors),
		shapeOp("transpose", references.Transpose, generators.Transpose, generators.TransposeErrors),
		shapeOp("permute", references.Permute, generators.Permute, generators.PermuteErrors),
		shapeOp("squeeze", references.Squeeze, generators.Squeeze, generators.SqueezeErrors),
		shapeOp("unsqueeze", references.Unsqueeze, generators.Unsqueeze, generators.UnsqueezeErrors),
		shapeOp("flatten", references.Flatten, generators.Flatten, generators.FlattenErrors),
		shapeOp("flip", references.Flip, generators.Flip, generators.FlipErrors),
		shapeOp("expand", references.Expand, generators.Expand, generators.ExpandErrors),
		shapeOp("narrow", references.Narrow, generators.Narrow, generators.NarrowErrors),
		shapeOp("cat", references.Cat, generators.Cat, generators.CatErrors),
		shapeOp("stack", references.Stack, generators.Stack, generators.StackErrors),
	}
}

func indexRecords() []*opinfo.OpInfo {
	indexOp := func(name string, ref opinfo.ReferenceFunc, samples opinfo.SampleInputsFunc, errs opinfo.ErrorInputsFunc, dtypeSet dtypesets.Set) *opinfo.OpInfo {
		return &opinfo.OpInfo{
			Name:             name,
			Category:         opinfo.CategoryIndexing,
			Ref:              ref,
			SampleInputs:     samples,
			ErrorInputs:      errs,
			DTypes:           dtypeSet,
			SupportsAutograd: true,
		}
	}
	return []*opinfo.OpInfo{
		indexOp("index_select", references.Index(references.IndexSelect),
			generators.IndexFamily(generators.IndexSelect), generators.IndexErrors(generators.IndexSelect), allWithBool()),
		indexOp("index_add", references.Index(references.IndexAdd),
			generators.IndexFamily(generators.IndexAdd), generators.IndexErrors(generators.IndexAdd), allNumeric()),
		indexOp("index_copy", references.Index(references.IndexCopy),
			generators.IndexFamily(generators.IndexCopy), generators.IndexErrors(generators.IndexCopy), allWithBool()),
		indexOp("index_fill", references.Index(references.IndexFill),
			generators.IndexFamily(generators.IndexFill), generators.IndexErrors(generators.IndexFill), allWithBool()),
		indexOp("gather", references.Gather,
			generators.GatherFamily(generators.Gather), generators.GatherErrors(generators.Gather), allWithBool()),
		indexOp("scatter", references.Scatter(false),
			generators.GatherFamily(generators.Scatter), generators.GatherErrors(generators.Scatter), allWithBool()),
		indexOp("scatter_add", references.Scatter(true),
			generators.GatherFamily(generators.ScatterAdd), generators.GatherErrors(generators.ScatterAdd), allNumeric()),
		indexOp("masked_fill", references.MaskedFill, generators.MaskedFill, generators.MaskedFillErrors, allWithBool()),
	}
}

func linalgRecords() []*opinfo.OpInfo {
	product := func(name string, kind generators.MatMulKind) *opinfo.OpInfo {
		return &opinfo.OpInfo{
			Name:              name,
			Category:          opinfo.CategoryLinalg,
			Ref:               references.MatMul,
			SampleInputs:      generators.Product(kind),
			ErrorInputs:       generators.ProductErrors(kind),
			DTypes:            allNumeric(),
			SupportsAutograd:  true,
			SupportsForwardAD: true,
			SupportsOut:       true,
		}
	}
	decomposition := func(name string, ref opinfo.ReferenceFunc, kind generators.LinalgKind) *opinfo.OpInfo {
		return &opinfo.OpInfo{
			Name:             name,
			Category:         opinfo.CategoryLinalg,
			Ref:              ref,
			SampleInputs:     generators.Linalg(kind),
			ErrorInputs:      generators.LinalgErrors(kind),
			DTypes:           dtypesets.FloatingTypes(),
			SupportsAutograd: true,
			GradcheckAtol:    1e-4,
			GradcheckRtol:    1e-3,
		}
	}
	triangular := func(name string, upper bool) *opinfo.OpInfo {
		return &opinfo.OpInfo{
			Name:              name,
			Category:          opinfo.CategoryLinalg,
			Ref:               references.Triangular(upper),
			SampleInputs:      generators.Triangular,
			ErrorInputs:       generators.TriangularErrors,
			DTypes:            allWithBool(),
			SupportsAutograd:  true,
			SupportsForwardAD: true,
		}
	}
	return []*opinfo.OpInfo{
		product("matmul", generators.MatMul),
		product("mm", generators.MM),
		product("bmm", generators.BMM),
		product("mv", generators.MV),
		product("dot", generators.Dot),
		{
			Name:              "outer",
			Category:          opinfo.CategoryLinalg,
			Ref:               references.Outer,
			SampleInputs:      generators.Outer,
			ErrorInputs:       generators.OuterErrors,
			DTypes:            allNumeric(),
			SupportsAutograd:  true,
			SupportsForwardAD: true,
			SupportsOut:       true,
		},
		triangular("tril", false),
		triangular("triu", true),
		decomposition("linalg.inv", references.Inverse, generators.Inverse),
		decomposition("linalg.cholesky", references.Cholesky, generators.Cholesky),
		decomposition("linalg.det", references.Det, generators.Det),
	}
}

func miscRecords() []*opinfo.OpInfo {
	like := func(name string, ref references.LikeKind, kind generators.LikeKind) *opinfo.OpInfo {
		return &opinfo.OpInfo{
			Name:         name,
			Category:     opinfo.CategoryCreation,
			Ref:          references.Like(ref),
			SampleInputs: generators.Like(kind),
			ErrorInputs:  generators.LikeErrors(kind),
			DTypes:       allWithBool(),
		}
	}
	return []*opinfo.OpInfo{
		{
			Name:         "histc",
			Category:     opinfo.CategoryOther,
			Ref:          references.Histc,
			SampleInputs: generators.Histc,
			ErrorInputs:  generators.HistcErrors,
			DTypes:       allNumeric(),
		},
		like("zeros_like", references.ZerosLike, generators.ZerosLike),
		like("ones_like", references.OnesLike, generators.OnesLike),
		like("full_like", references.FullLike, generators.FullLike),
	}
}
