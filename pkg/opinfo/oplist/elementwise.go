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

// unaryDef holds what differs among the elementwise unary records.
type unaryDef struct {
	name string
	fn   func(x float64) float64

	// dtypes defaults to allNumeric.
	dtypes dtypesets.Set

	// resultDType is nil for operators preserving the input dtype.
	resultDType func(dtypes.DType) dtypes.DType

	// sparse operators map 0 to 0, and accept SparseCOO inputs.
	sparse bool

	// differentiable operators support autograd.
	differentiable bool

	domain        opinfo.Domain
	singularities []float64
}

func (def unaryDef) record() *opinfo.OpInfo {
	op := &opinfo.OpInfo{
		Name:              def.name,
		Category:          opinfo.CategoryUnary,
		Ref:               references.Unary(def.fn, def.resultDType),
		SampleInputs:      generators.UnaryElementwise,
		ErrorInputs:       generators.UnaryErrors,
		DTypes:            def.dtypes,
		SupportsAutograd:  def.differentiable,
		SupportsForwardAD: def.differentiable,
		SupportsOut:       true,
		Domain:            def.domain,
		Singularities:     def.singularities,
		ResultDType:       def.resultDType,
	}
	if op.DTypes == nil {
		op.DTypes = allNumeric()
	} else {
		op.DTypes = op.DTypes.Clone()
	}
	if def.sparse {
		op.SupportsSparse = true
		op.SampleInputsSparse = generators.UnarySparse
	}
	return op
}

func predicate(fn func(x float64) bool) func(x float64) float64 {
	return func(x float64) float64 {
		if fn(x) {
			return 1
		}
		return 0
	}
}

var (
	positive     = opinfo.Domain{Low: opinfo.Some(0.0)}
	aboveMinus1  = opinfo.Domain{Low: opinfo.Some(-1.0)}
	unitInterval = opinfo.Domain{Low: opinfo.Some(-1.0), High: opinfo.Some(1.0)}
	floatResult  = dtypesets.FloatResultType
)

var unaryDefs = []unaryDef{
	{name: "abs", fn: math.Abs, sparse: true, differentiable: true},
	{name: "neg", fn: func(x float64) float64 { return -x }, sparse: true, differentiable: true},
	{name: "sign", fn: references.Sign, sparse: true, differentiable: true},
	{name: "sin", fn: math.Sin, resultDType: floatResult, sparse: true, differentiable: true},
	{name: "cos", fn: math.Cos, resultDType: floatResult, differentiable: true},
	{name: "tan", fn: math.Tan, resultDType: floatResult, sparse: true, differentiable: true},
	{name: "tanh", fn: math.Tanh, resultDType: floatResult, sparse: true, differentiable: true},
	{name: "sinh", fn: math.Sinh, resultDType: floatResult, sparse: true, differentiable: true},
	{name: "cosh", fn: math.Cosh, resultDType: floatResult, differentiable: true},
	{name: "asin", fn: math.Asin, resultDType: floatResult, sparse: true, differentiable: true,
		domain: unitInterval, singularities: []float64{-1, 1}},
	{name: "acos", fn: math.Acos, resultDType: floatResult, differentiable: true,
		domain: unitInterval, singularities: []float64{-1, 1}},
	{name: "atan", fn: math.Atan, resultDType: floatResult, sparse: true, differentiable: true},
	{name: "exp", fn: math.Exp, resultDType: floatResult, differentiable: true},
	{name: "expm1", fn: math.Expm1, resultDType: floatResult, sparse: true, differentiable: true},
	{name: "log", fn: math.Log, resultDType: floatResult, differentiable: true,
		domain: positive, singularities: []float64{0}},
	{name: "log2", fn: math.Log2, resultDType: floatResult, differentiable: true,
		domain: positive, singularities: []float64{0}},
	{name: "log10", fn: math.Log10, resultDType: floatResult, differentiable: true,
		domain: positive, singularities: []float64{0}},
	{name: "log1p", fn: math.Log1p, resultDType: floatResult, sparse: true, differentiable: true,
		domain: aboveMinus1, singularities: []float64{-1}},
	{name: "sqrt", fn: math.Sqrt, resultDType: floatResult, sparse: true, differentiable: true,
		domain: positive, singularities: []float64{0}},
	{name: "rsqrt", fn: func(x float64) float64 { return 1 / math.Sqrt(x) }, resultDType: floatResult, differentiable: true,
		domain: positive, singularities: []float64{0}},
	{name: "reciprocal", fn: func(x float64) float64 { return 1 / x }, resultDType: floatResult, differentiable: true,
		singularities: []float64{0}},
	{name: "sigmoid", fn: func(x float64) float64 { return 1 / (1 + math.Exp(-x)) }, resultDType: floatResult,
		differentiable: true},
	{name: "erf", fn: math.Erf, resultDType: floatResult, differentiable: true},
	{name: "ceil", fn: math.Ceil, sparse: true},
	{name: "floor", fn: math.Floor, sparse: true},
	{name: "round", fn: math.RoundToEven, sparse: true},
	{name: "trunc", fn: math.Trunc, sparse: true},
	{name: "frac", fn: func(x float64) float64 { return x - math.Trunc(x) }, dtypes: floating(), sparse: true,
		differentiable: true},
	{name: "square", fn: func(x float64) float64 { return x * x }, sparse: true, differentiable: true},
	{name: "isnan", fn: predicate(math.IsNaN), resultDType: references.BoolResult, dtypes: allWithBool()},
	{name: "isfinite", fn: predicate(func(x float64) bool { return !math.IsNaN(x) && !math.IsInf(x, 0) }),
		resultDType: references.BoolResult, dtypes: allWithBool()},
	{name: "logical_not", fn: predicate(func(x float64) bool { return x == 0 }),
		resultDType: references.BoolResult, dtypes: allWithBool()},
}

func unaryRecords() []*opinfo.OpInfo {
	ops := make([]*opinfo.OpInfo, 0, len(unaryDefs)+2)
	for _, def := range unaryDefs {
		ops = append(ops, def.record())
	}
	ops = append(ops,
		&opinfo.OpInfo{
			Name:         "bitwise_not",
			Category:     opinfo.CategoryUnary,
			Ref:          references.BitwiseNot,
			SampleInputs: generators.UnaryElementwise,
			ErrorInputs:  generators.UnaryErrors,
			DTypes:       dtypesets.IntegralTypesAnd(dtypes.Bool),
			SupportsOut:  true,
		},
		&opinfo.OpInfo{
			Name:             "nan_to_num",
			Category:         opinfo.CategoryUnary,
			Ref:              references.NanToNum,
			SampleInputs:     generators.NanToNum,
			ErrorInputs:      generators.UnaryErrors,
			DTypes:           allNumeric(),
			SupportsAutograd: true,
			SupportsOut:      true,
		})
	return ops
}

// binaryDef holds what differs among the elementwise binary records.
type binaryDef struct {
	name    string
	variant string
	ref     opinfo.ReferenceFunc
	samples opinfo.SampleInputsFunc
	errors  opinfo.ErrorInputsFunc

	// dtypes defaults to allNumeric.
	dtypes      dtypesets.Set
	resultDType func(dtypes.DType) dtypes.DType

	differentiable bool
	rhsExcludeZero bool
	rhsNonNegative bool
}

func (def binaryDef) record() *opinfo.OpInfo {
	op := &opinfo.OpInfo{
		Name:              def.name,
		Variant:           def.variant,
		Category:          opinfo.CategoryBinary,
		Ref:               def.ref,
		SampleInputs:      def.samples,
		ErrorInputs:       def.errors,
		DTypes:            def.dtypes,
		SupportsAutograd:  def.differentiable,
		SupportsForwardAD: def.differentiable,
		SupportsOut:       true,
		RHSExcludeZero:    def.rhsExcludeZero,
		RHSNonNegative:    def.rhsNonNegative,
		ResultDType:       def.resultDType,
	}
	if op.SampleInputs == nil {
		op.SampleInputs = generators.BinaryElementwise
	}
	if op.ErrorInputs == nil {
		op.ErrorInputs = generators.BinaryErrors
	}
	if op.DTypes == nil {
		op.DTypes = allNumeric()
	}
	return op
}

func comparison(name string, fn func(a, b float64) bool) binaryDef {
	return binaryDef{
		name: name,
		ref: references.Binary(references.Predicate, func(a, b float64) float64 {
			if fn(a, b) {
				return 1
			}
			return 0
		}),
		dtypes:      allWithBool(),
		resultDType: references.BoolResult,
	}
}

func bitwise(name string, fn func(a, b int64) int64) binaryDef {
	return binaryDef{
		name:   name,
		ref:    references.Binary(references.Bitwise, references.Bitwise64(fn)),
		dtypes: dtypesets.IntegralTypesAnd(dtypes.Bool),
	}
}

func division(mode generators.RoundingMode, variant string) binaryDef {
	def := binaryDef{
		name:           "div",
		variant:        variant,
		ref:            references.Div,
		samples:        generators.Div(mode),
		errors:         generators.DivErrors(mode),
		differentiable: mode == generators.RoundingNone,
		rhsExcludeZero: true,
	}
	if mode == generators.RoundingNone {
		def.resultDType = floatResult
	}
	return def
}

func binaryRecords() []*opinfo.OpInfo {
	arithmetic := func(fn func(a, b float64) float64) opinfo.ReferenceFunc {
		return references.Binary(references.Arithmetic, fn)
	}
	defs := []binaryDef{
		{name: "add", ref: references.AddScaled(1), samples: generators.BinaryWithAlpha, differentiable: true},
		{name: "sub", ref: references.AddScaled(-1), samples: generators.BinaryWithAlpha, differentiable: true},
		{name: "mul", ref: references.Mul, differentiable: true},
		division(generators.RoundingNone, ""),
		division(generators.RoundingTrunc, "trunc_rounding"),
		division(generators.RoundingFloor, "floor_rounding"),
		{name: "pow", ref: arithmetic(math.Pow), differentiable: true, rhsNonNegative: true},
		{name: "maximum", ref: arithmetic(references.Maximum), differentiable: true},
		{name: "minimum", ref: arithmetic(references.Minimum), differentiable: true},
		{name: "remainder", ref: arithmetic(references.Remainder), rhsExcludeZero: true},
		{name: "fmod", ref: arithmetic(math.Mod), rhsExcludeZero: true},
		{name: "atan2", ref: references.Binary(references.FloatResult, math.Atan2), resultDType: floatResult,
			differentiable: true},
		comparison("eq", func(a, b float64) bool { return a == b }),
		comparison("ne", func(a, b float64) bool { return a != b }),
		comparison("lt", func(a, b float64) bool { return a < b }),
		comparison("le", func(a, b float64) bool { return a <= b }),
		comparison("gt", func(a, b float64) bool { return a > b }),
		comparison("ge", func(a, b float64) bool { return a >= b }),
		comparison("logical_and", func(a, b float64) bool { return a != 0 && b != 0 }),
		comparison("logical_or", func(a, b float64) bool { return a != 0 || b != 0 }),
		comparison("logical_xor", func(a, b float64) bool { return (a != 0) != (b != 0) }),
		bitwise("bitwise_and", func(a, b int64) int64 { return a & b }),
		bitwise("bitwise_or", func(a, b int64) int64 { return a | b }),
		bitwise("bitwise_xor", func(a, b int64) int64 { return a ^ b }),
	}
	ops := make([]*opinfo.OpInfo, len(defs))
	for ii, def := range defs {
		ops[ii] = def.record()
	}
	return ops
}

func ternaryRecords() []*opinfo.OpInfo {
	return []*opinfo.OpInfo{
		{
			Name:             "where",
			Category:         opinfo.CategoryTernary,
			Ref:              references.Where,
			SampleInputs:     generators.Where,
			ErrorInputs:      generators.WhereErrors,
			DTypes:           allWithBool(),
			SupportsAutograd: true,
			SupportsOut:      true,
		},
		{
			Name:             "clamp",
			Category:         opinfo.CategoryTernary,
			Ref:              references.Clamp,
			SampleInputs:     generators.Clamp,
			ErrorInputs:      generators.ClampErrors,
			DTypes:           allNumeric(),
			SupportsAutograd: true,
			SupportsOut:      true,
		},
		{
			Name:              "lerp",
			Category:          opinfo.CategoryTernary,
			Ref:               references.Lerp,
			SampleInputs:      generators.Lerp,
			ErrorInputs:       generators.LerpErrors,
			DTypes:            floating(),
			SupportsAutograd:  true,
			SupportsForwardAD: true,
			SupportsOut:       true,
		},
	}
}
