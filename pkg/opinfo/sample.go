// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package opinfo

import (
	"fmt"
	"maps"
	"reflect"
	"regexp"
	"slices"
	"strings"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/opinfo/pkg/core/tensorlib"
	"github.com/janpfeifer/must"
	"github.com/pkg/errors"
)

// SampleInput is one set of arguments to call an operator with: op(Input, Args..., Kwargs...).
//
// Input is usually a tensorlib.Tensor, but it can also be a []tensorlib.Tensor (e.g. for cat) or a Go scalar.
// A nil in Args or Kwargs stands for an argument intentionally set to None.
//
// Samples are built by the generators with NewSample and the With* methods, and are not modified afterwards.
type SampleInput struct {
	Input  any
	Args   []any
	Kwargs map[string]any

	// Name is a short label used when reporting failures.
	Name Optional[string]

	// BroadcastsInput is set when the operands must be broadcast to a shape different from the one of Input.
	BroadcastsInput bool

	// OutputProcessFnGrad transforms the output of the operator before gradient checks, e.g. to select
	// the values output of an operator returning values and indices.
	OutputProcessFnGrad Optional[func(output any) any]

	// SparseFillValue is the value of the elements not stored in sparse samples, as seen by the operator output:
	// f(0) for an elementwise f.
	SparseFillValue Optional[float64]
}

// NewSample creates a SampleInput with the given input and positional arguments.
// It panics if input is nil.
func NewSample(input any, args ...any) *SampleInput {
	if isNil(input) {
		exceptions.Panicf("opinfo.NewSample: input cannot be nil")
	}
	return &SampleInput{Input: input, Args: args}
}

// isNil returns true for nil, and for nil pointers, slices or maps stored in an interface.
func isNil(v any) bool {
	if v == nil {
		return true
	}
	switch rv := reflect.ValueOf(v); rv.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice:
		return rv.IsNil()
	}
	return false
}

// WithKwargs sets the keyword arguments, replacing any previous ones.
func (s *SampleInput) WithKwargs(kwargs map[string]any) *SampleInput {
	s.Kwargs = kwargs
	return s
}

// WithKwarg sets one keyword argument.
func (s *SampleInput) WithKwarg(key string, value any) *SampleInput {
	if s.Kwargs == nil {
		s.Kwargs = make(map[string]any)
	}
	s.Kwargs[key] = value
	return s
}

// WithName sets the label of the sample.
func (s *SampleInput) WithName(name string) *SampleInput {
	s.Name = Some(name)
	return s
}

// WithBroadcastsInput sets BroadcastsInput.
func (s *SampleInput) WithBroadcastsInput(broadcasts bool) *SampleInput {
	s.BroadcastsInput = broadcasts
	return s
}

// WithOutputProcessFnGrad sets the transformation applied to the output before gradient checks.
func (s *SampleInput) WithOutputProcessFnGrad(fn func(output any) any) *SampleInput {
	s.OutputProcessFnGrad = Some(fn)
	return s
}

// WithSparseFillValue sets the expected value of the elements not stored by sparse samples.
func (s *SampleInput) WithSparseFillValue(value float64) *SampleInput {
	s.SparseFillValue = Some(value)
	return s
}

// Arg returns the positional argument ii, or nil if there are not that many.
func (s *SampleInput) Arg(ii int) any {
	if ii < 0 || ii >= len(s.Args) {
		return nil
	}
	return s.Args[ii]
}

// Kwarg returns the keyword argument and whether it was given.
func (s *SampleInput) Kwarg(key string) (any, bool) {
	v, found := s.Kwargs[key]
	return v, found
}

// sortedKeys of the keyword arguments, so listing them is deterministic.
func (s *SampleInput) sortedKeys() []string {
	return slices.Sorted(maps.Keys(s.Kwargs))
}

// Tensors returns all tensors in the sample: in Input, then Args, then Kwargs (by key order), including
// tensors inside lists.
func (s *SampleInput) Tensors() []tensorlib.Tensor {
	var tensors []tensorlib.Tensor
	collect := func(v any) { tensors = append(tensors, tensorsIn(v)...) }
	collect(s.Input)
	for _, arg := range s.Args {
		collect(arg)
	}
	for _, key := range s.sortedKeys() {
		collect(s.Kwargs[key])
	}
	return tensors
}

// tensorsIn returns the tensors in v: v itself or the tensors in a list.
func tensorsIn(v any) []tensorlib.Tensor {
	switch x := v.(type) {
	case tensorlib.Tensor:
		return []tensorlib.Tensor{x}
	case []tensorlib.Tensor:
		return slices.Clone(x)
	case []any:
		var tensors []tensorlib.Tensor
		for _, e := range x {
			tensors = append(tensors, tensorsIn(e)...)
		}
		return tensors
	}
	return nil
}

// String implements fmt.Stringer, summarizing the sample in one line.
func (s *SampleInput) String() string {
	var sb strings.Builder
	if name, ok := s.Name.Get(); ok {
		fmt.Fprintf(&sb, "%q: ", name)
	}
	sb.WriteString(formatArg(s.Input))
	for _, arg := range s.Args {
		sb.WriteString(", ")
		sb.WriteString(formatArg(arg))
	}
	for _, key := range s.sortedKeys() {
		fmt.Fprintf(&sb, ", %s=%s", key, formatArg(s.Kwargs[key]))
	}
	if s.BroadcastsInput {
		sb.WriteString(" (broadcasts input)")
	}
	return sb.String()
}

// formatArg formats tensors by their shape, and everything else with %v.
func formatArg(v any) string {
	switch x := v.(type) {
	case nil:
		return "None"
	case tensorlib.Tensor:
		desc := x.Shape().String()
		if x.Layout() != tensorlib.Strided {
			desc += "/" + x.Layout().String()
		} else if !x.IsContiguous() {
			desc += "/noncontiguous"
		}
		if x.RequiresGrad() {
			desc += "/grad"
		}
		return desc
	case []tensorlib.Tensor:
		parts := make([]string, len(x))
		for ii, t := range x {
			parts[ii] = formatArg(t)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case string:
		return fmt.Sprintf("%q", x)
	}
	return fmt.Sprintf("%v", v)
}

// CloneSample returns a copy of s where every tensor is replaced by a clone with its own storage, with the
// same requires-grad flag. Non-tensor values are shared.
func CloneSample(s *SampleInput) *SampleInput {
	c := *s
	c.Input = cloneValue(s.Input)
	if s.Args != nil {
		c.Args = make([]any, len(s.Args))
		for ii, arg := range s.Args {
			c.Args[ii] = cloneValue(arg)
		}
	}
	if s.Kwargs != nil {
		c.Kwargs = make(map[string]any, len(s.Kwargs))
		for key, value := range s.Kwargs {
			c.Kwargs[key] = cloneValue(value)
		}
	}
	return &c
}

// cloneValue clones tensors and lists of tensors; anything else is returned as is.
func cloneValue(v any) any {
	switch x := v.(type) {
	case tensorlib.Tensor:
		return cloneTensor(x)
	case []tensorlib.Tensor:
		cloned := make([]tensorlib.Tensor, len(x))
		for ii, t := range x {
			cloned[ii] = cloneTensor(t)
		}
		return cloned
	case []any:
		cloned := make([]any, len(x))
		for ii, e := range x {
			cloned[ii] = cloneValue(e)
		}
		return cloned
	}
	return v
}

// cloneTensor clones, detaches and re-attaches gradient tracking.
func cloneTensor(t tensorlib.Tensor) tensorlib.Tensor {
	c := t.Clone().Detach()
	if t.RequiresGrad() {
		must.M(c.SetRequiresGrad(true))
	}
	return c
}

// ErrorInput is a sample that makes the operator fail, with the expected error classification and a pattern
// that the error message must match.
type ErrorInput struct {
	Sample     *SampleInput
	ErrorType  tensorlib.ErrorKind
	ErrorRegex *regexp.Regexp
}

// NewErrorInput creates an ErrorInput. pattern is a regular expression: use regexp.QuoteMeta for literal
// messages. It panics if pattern doesn't compile.
func NewErrorInput(sample *SampleInput, errorType tensorlib.ErrorKind, pattern string) *ErrorInput {
	if sample == nil {
		exceptions.Panicf("opinfo.NewErrorInput: sample cannot be nil")
	}
	return &ErrorInput{Sample: sample, ErrorType: errorType, ErrorRegex: regexp.MustCompile(pattern)}
}

// Matches returns whether err has the expected kind and a matching message.
func (e *ErrorInput) Matches(err error) bool {
	return e.Check(err) == nil
}

// Check returns nil if err is the expected error, or an error describing the mismatch otherwise.
func (e *ErrorInput) Check(err error) error {
	if err == nil {
		return errors.Errorf("expected %s matching %q, but the operator succeeded", e.ErrorType, e.ErrorRegex)
	}
	if kind := tensorlib.KindOf(err); kind != e.ErrorType {
		return errors.Errorf("expected %s matching %q, got %s: %v", e.ErrorType, e.ErrorRegex, kind, err)
	}
	if !e.ErrorRegex.MatchString(err.Error()) {
		return errors.Errorf("expected %s matching %q, got message %q", e.ErrorType, e.ErrorRegex, err.Error())
	}
	return nil
}

// String implements fmt.Stringer.
func (e *ErrorInput) String() string {
	return fmt.Sprintf("%s: %s ~ %q", e.Sample, e.ErrorType, e.ErrorRegex)
}
