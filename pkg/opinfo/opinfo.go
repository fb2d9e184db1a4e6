// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package opinfo is a declarative test-fixture engine for the operators of a tensor library.
//
// Each operator is described by an OpInfo record: its name, the dtypes it supports per device class,
// its capabilities (autograd, out=, sparse inputs) and the functions that generate its fixtures:
//
//   - SampleInputs: valid inputs covering shapes, dtypes, broadcasting, empty and zero-dimensional tensors,
//     noncontiguous and sparse layouts.
//   - ErrorInputs: invalid inputs, each paired with the expected error kind and message pattern.
//   - Ref: an independent reference implementation to cross-check results.
//
// Records are collected with a Builder into an immutable Registry, which is what a test runner iterates over.
// The records of the supported operators are in the sub-package oplist, their generators in generators,
// and the reference implementations in references.
package opinfo

import (
	"fmt"
	"iter"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/opinfo/pkg/core/dtypesets"
	"github.com/gomlx/opinfo/pkg/core/shapes"
	"github.com/gomlx/opinfo/pkg/core/tensorlib"
	"github.com/pkg/errors"
)

// SampleInputsFunc generates the samples of an operator for the given device, dtype and requires-grad setting.
//
// The sequence is finite, deterministic (the same structure on every call) and starts with the simplest,
// most typical, sample. extra holds generator specific options, and may be nil.
type SampleInputsFunc func(op *OpInfo, device tensorlib.Device, dtype dtypes.DType, requiresGrad bool, extra map[string]any) iter.Seq[*SampleInput]

// ErrorInputsFunc generates the error inputs of an operator, with the same arguments as SampleInputsFunc.
// dtype is a dtype supported by the operator, which the error inputs use unless they need some other one.
type ErrorInputsFunc func(op *OpInfo, device tensorlib.Device, dtype dtypes.DType, requiresGrad bool, extra map[string]any) iter.Seq[*ErrorInput]

// Result is anything with a shape and row-major values: tensorlib.Tensor and references.Array.
type Result interface {
	shapes.HasShape
	Values() []float64
}

// ReferenceFunc computes the expected results of the operator for a sample, with an implementation independent
// of the library under test. Operators with more than one output return one Result per output.
//
// A reference that doesn't cover some sample returns ErrNoReference for it.
type ReferenceFunc func(sample *SampleInput) ([]Result, error)

// ErrNoReference is returned by a ReferenceFunc for samples it doesn't cover.
var ErrNoReference = errors.New("no reference for this sample")

// Category groups operators that share generators.
type Category string

const (
	CategoryUnary     Category = "unary"
	CategoryBinary    Category = "binary"
	CategoryTernary   Category = "ternary"
	CategoryReduction Category = "reduction"
	CategoryScan      Category = "scan"
	CategorySort      Category = "sort"
	CategoryShape     Category = "shape"
	CategoryIndexing  Category = "indexing"
	CategoryLinalg    Category = "linalg"
	CategoryCreation  Category = "creation"
	CategoryOther     Category = "other"
)

// Domain of the values accepted by an elementwise operator: generators draw values inside it.
type Domain struct {
	Low, High Optional[float64]
}

// ReductionInfo describes a reduction operator to the reduction generators and references.
type ReductionInfo struct {
	// Identity of the reduction, if it has one: reductions without identity fail over empty axes.
	Identity Optional[float64]

	// SupportsMultipleDims is set if "dim" can be a list of axes.
	SupportsMultipleDims bool

	// NoKeepDim is set for reductions that don't take the keepdim argument.
	NoKeepDim bool

	// ResultDType returns the dtype of the result for the given input dtype. If nil the dtype is preserved.
	ResultDType func(dtype dtypes.DType) dtypes.DType
}

// OpInfo is the record of one operator, the unit a test runner iterates over.
//
// Records are plain data: they are declared once (see oplist), bound to a library by Builder.Build, and not
// changed afterwards.
type OpInfo struct {
	// Name of the operator in the library, e.g. "div" or "linalg.inv".
	Name string

	// Variant distinguishes records of the same operator with different fixtures, e.g. "floor_rounding".
	Variant string

	// Aliases are other names under which the record can be looked up.
	Aliases []string

	Category Category

	// Op is the operator under test. If nil, it's looked up in the library by FullName, and then by Name.
	Op tensorlib.OpFunc

	// Ref is the reference implementation, nil if there is none.
	Ref ReferenceFunc

	SampleInputs       SampleInputsFunc
	ErrorInputs        ErrorInputsFunc
	SampleInputsSparse SampleInputsFunc

	// DTypes supported on devices of the default class.
	DTypes dtypesets.Set

	// DTypesAccelerator supported on accelerator devices. If nil, it is the same as DTypes.
	DTypesAccelerator dtypesets.Set

	// BackwardDTypes for which gradients are supported. If nil, the floating point dtypes of DTypes.
	BackwardDTypes dtypesets.Set

	SupportsAutograd  bool
	SupportsForwardAD bool
	SupportsOut       bool
	SupportsSparse    bool

	// GradcheckAtol and GradcheckRtol are the tolerances of gradient checks: 0 for the runner's defaults.
	GradcheckAtol, GradcheckRtol float64

	// Decorators declare exceptions to the default "must pass" expectation of the runner's tests.
	Decorators []DecorateInfo

	// Domain of valid values, for elementwise operators.
	Domain Domain

	// Singularities are values where the operator (or its gradient) is singular: unary generators emit samples
	// exactly at and near them.
	Singularities []float64

	// RHSExcludeZero makes binary generators exclude zero from the second operand.
	RHSExcludeZero bool

	// RHSNonNegative makes binary generators use only non-negative second operands for integer dtypes.
	RHSNonNegative bool

	Reduction ReductionInfo

	// ResultDType returns the dtype of the (first) output for inputs of the given dtype. If nil, it's
	// Reduction.ResultDType, or the input dtype if that is not set either.
	ResultDType func(dtype dtypes.DType) dtypes.DType

	lib tensorlib.Library
}

// FullName is the unique key of the record: Name, or "Name.Variant" if Variant is set.
func (op *OpInfo) FullName() string {
	if op.Variant == "" {
		return op.Name
	}
	return op.Name + "." + op.Variant
}

// String implements fmt.Stringer.
func (op *OpInfo) String() string {
	return fmt.Sprintf("OpInfo(%s)", op.FullName())
}

// ResultDTypeFor returns the dtype of the output for inputs of the given dtype, see ResultDType.
func (op *OpInfo) ResultDTypeFor(dtype dtypes.DType) dtypes.DType {
	switch {
	case op.ResultDType != nil:
		return op.ResultDType(dtype)
	case op.Reduction.ResultDType != nil:
		return op.Reduction.ResultDType(dtype)
	}
	return dtype
}

// Library the record is bound to, or nil if it was not built into a Registry.
func (op *OpInfo) Library() tensorlib.Library { return op.lib }

// SupportedDTypes returns the dtypes supported on the given device.
func (op *OpInfo) SupportedDTypes(device tensorlib.Device) dtypesets.Set {
	return op.SupportedDTypesFor(device.Class)
}

// SupportedDTypesFor returns the dtypes supported on devices of the given class.
func (op *OpInfo) SupportedDTypesFor(class tensorlib.DeviceClass) dtypesets.Set {
	if class == tensorlib.DeviceAccelerator && op.DTypesAccelerator != nil {
		return op.DTypesAccelerator
	}
	return op.DTypes
}

// SupportedBackwardDTypes returns the dtypes for which gradients are checked: none if autograd is not supported.
func (op *OpInfo) SupportedBackwardDTypes(device tensorlib.Device) dtypesets.Set {
	if !op.SupportsAutograd {
		return dtypesets.Empty()
	}
	supported := op.SupportedDTypes(device)
	if op.BackwardDTypes != nil {
		return op.BackwardDTypes.Intersect(supported)
	}
	backward := dtypesets.Empty()
	for dtype := range supported {
		if dtypesets.SupportsGrad(dtype) {
			backward.Insert(dtype)
		}
	}
	return backward
}

// Samples returns the samples of the operator, see SampleInputsFunc.
func (op *OpInfo) Samples(device tensorlib.Device, dtype dtypes.DType, requiresGrad bool, extra map[string]any) iter.Seq[*SampleInput] {
	return op.SampleInputs(op, device, dtype, requiresGrad, extra)
}

// SparseSamples returns the samples with sparse inputs, or an empty sequence if the operator has none.
func (op *OpInfo) SparseSamples(device tensorlib.Device, dtype dtypes.DType, requiresGrad bool, extra map[string]any) iter.Seq[*SampleInput] {
	if op.SampleInputsSparse == nil {
		return func(func(*SampleInput) bool) {}
	}
	return op.SampleInputsSparse(op, device, dtype, requiresGrad, extra)
}

// Errors returns the error inputs of the operator, or an empty sequence if it has none.
func (op *OpInfo) Errors(device tensorlib.Device, dtype dtypes.DType, requiresGrad bool, extra map[string]any) iter.Seq[*ErrorInput] {
	if op.ErrorInputs == nil {
		return func(func(*ErrorInput) bool) {}
	}
	return op.ErrorInputs(op, device, dtype, requiresGrad, extra)
}

// resolveOp looks up the operator in the library if Op is not set.
func (op *OpInfo) resolveOp(lib tensorlib.Library) (tensorlib.OpFunc, error) {
	if op.Op != nil {
		return op.Op, nil
	}
	if fn, found := lib.Op(op.FullName()); found {
		return fn, nil
	}
	if fn, found := lib.Op(op.Name); found {
		return fn, nil
	}
	return nil, errors.Errorf("operator %q not found in library %q", op.FullName(), lib.Name())
}

// Call the operator under test with the sample.
func (op *OpInfo) Call(sample *SampleInput) (any, error) {
	if op.Op == nil {
		exceptions.Panicf("OpInfo(%s).Call: record not bound to a library, build it into a Registry first", op.FullName())
	}
	return op.Op(sample.Input, sample.Args, sample.Kwargs)
}

// Results converts the output of an operator to a list of Results: a tensor becomes a list with one element.
func Results(output any) ([]Result, error) {
	switch x := output.(type) {
	case tensorlib.Tensor:
		return []Result{x}, nil
	case []tensorlib.Tensor:
		results := make([]Result, len(x))
		for ii, t := range x {
			results[ii] = t
		}
		return results, nil
	}
	return nil, errors.Errorf("output of type %T is not a tensor or a list of tensors", output)
}

// Outcome expected from one of the runner's tests.
type Outcome int

const (
	Pass Outcome = iota
	Skip
	ExpectedFailure
)

// String implements fmt.Stringer.
func (o Outcome) String() string {
	switch o {
	case Pass:
		return "Pass"
	case Skip:
		return "Skip"
	case ExpectedFailure:
		return "ExpectedFailure"
	}
	return fmt.Sprintf("Outcome(%d)", int(o))
}

// DecorateInfo declares that a test of the runner, for an operator, is expected to have a different outcome
// than Pass on some devices and dtypes.
type DecorateInfo struct {
	// Action is the outcome when the rule matches: Skip or ExpectedFailure.
	Action Outcome

	// TestName the rule applies to. Empty matches every test.
	TestName string

	// DeviceClass the rule applies to, tensorlib.DeviceAny for all.
	DeviceClass tensorlib.DeviceClass

	// DTypes the rule applies to, nil for all.
	DTypes dtypesets.Set

	Reason string
}

// SkipIf returns a rule that skips the test on the given device class and dtypes (none for all).
func SkipIf(testName string, class tensorlib.DeviceClass, reason string, dtypeList ...dtypes.DType) DecorateInfo {
	return newDecorateInfo(Skip, testName, class, reason, dtypeList)
}

// ExpectFailureIf returns a rule that marks the test as an expected failure on the given device class and
// dtypes (none for all).
func ExpectFailureIf(testName string, class tensorlib.DeviceClass, reason string, dtypeList ...dtypes.DType) DecorateInfo {
	return newDecorateInfo(ExpectedFailure, testName, class, reason, dtypeList)
}

func newDecorateInfo(action Outcome, testName string, class tensorlib.DeviceClass, reason string, dtypeList []dtypes.DType) DecorateInfo {
	rule := DecorateInfo{Action: action, TestName: testName, DeviceClass: class, Reason: reason}
	if len(dtypeList) > 0 {
		rule.DTypes = dtypesets.Of(dtypeList...)
	}
	return rule
}

// Matches returns whether the rule applies to the test, device and dtype.
func (d DecorateInfo) Matches(testName string, device tensorlib.Device, dtype dtypes.DType) bool {
	if d.TestName != "" && d.TestName != testName {
		return false
	}
	if !d.DeviceClass.Matches(device.Class) {
		return false
	}
	return d.DTypes == nil || d.DTypes.Has(dtype)
}

// Expectation returns the outcome expected for the test, device and dtype: the action of the first matching
// decorator, or Pass.
func (op *OpInfo) Expectation(testName string, device tensorlib.Device, dtype dtypes.DType) Outcome {
	for _, rule := range op.Decorators {
		if rule.Matches(testName, device, dtype) {
			return rule.Action
		}
	}
	return Pass
}
