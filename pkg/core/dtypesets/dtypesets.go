// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package dtypesets defines named groups of dtypes used to declare which element types an operator supports,
// plus the type promotion rules of the tested tensor library.
//
// The groups follow the usual naming of op capability manifests:
//
//   - FloatingTypes: Float32, Float64.
//   - IntegralTypes: Uint8, Int8, Int16, Int32, Int64.
//   - AllTypes: FloatingTypes + IntegralTypes.
//   - The "...And(extra...)" variants add extra dtypes, typically Bool, Float16 and BFloat16.
//
// Complex dtypes are not part of any group: the fixture engine doesn't generate complex samples.
package dtypesets

import (
	"slices"
	"strings"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/opinfo/pkg/support/sets"
	"github.com/gomlx/opinfo/pkg/support/xslices"
)

// Set of dtypes.
type Set = sets.Set[dtypes.DType]

// canonicalOrder is the order used when listing dtypes: it's also the order generators iterate over
// partner dtypes, so it's part of the enumeration order contract.
var canonicalOrder = []dtypes.DType{
	dtypes.Bool,
	dtypes.Uint8, dtypes.Uint16, dtypes.Uint32, dtypes.Uint64,
	dtypes.Int8, dtypes.Int16, dtypes.Int32, dtypes.Int64,
	dtypes.Float16, dtypes.BFloat16, dtypes.Float32, dtypes.Float64,
}

// Of returns a set with the given dtypes.
func Of(dtypeList ...dtypes.DType) Set {
	return sets.MakeWith(dtypeList...)
}

// Empty returns an empty set: used by operators that don't support a device class at all.
func Empty() Set { return sets.Make[dtypes.DType]() }

// FloatingTypes returns Float32 and Float64.
func FloatingTypes() Set { return Of(dtypes.Float32, dtypes.Float64) }

// FloatingTypesAnd returns FloatingTypes plus the extra dtypes.
func FloatingTypesAnd(extra ...dtypes.DType) Set { return And(FloatingTypes(), extra...) }

// IntegralTypes returns the signed integer types plus Uint8.
func IntegralTypes() Set {
	return Of(dtypes.Uint8, dtypes.Int8, dtypes.Int16, dtypes.Int32, dtypes.Int64)
}

// IntegralTypesAnd returns IntegralTypes plus the extra dtypes.
func IntegralTypesAnd(extra ...dtypes.DType) Set { return And(IntegralTypes(), extra...) }

// AllTypes returns FloatingTypes and IntegralTypes.
func AllTypes() Set { return FloatingTypes().Union(IntegralTypes()) }

// AllTypesAnd returns AllTypes plus the extra dtypes.
func AllTypesAnd(extra ...dtypes.DType) Set { return And(AllTypes(), extra...) }

// And returns a copy of set with the extra dtypes added.
func And(set Set, extra ...dtypes.DType) Set {
	s := set.Clone()
	s.Insert(extra...)
	return s
}

// Without returns a copy of set with the given dtypes removed.
func Without(set Set, remove ...dtypes.DType) Set {
	s := set.Clone()
	s.Remove(remove...)
	return s
}

// Sorted returns the dtypes of the set in canonical order: Bool, unsigned, signed integers, then floats
// from the narrowest to the widest.
func Sorted(set Set) []dtypes.DType {
	return xslices.Filter(canonicalOrder, set.Has)
}

// String returns the sorted list of the dtypes in the set, comma separated.
func String(set Set) string {
	return strings.Join(xslices.Map(Sorted(set), dtypes.DType.String), ", ")
}

// Known returns all dtypes the fixture engine knows about, in canonical order.
func Known() []dtypes.DType { return slices.Clone(canonicalOrder) }
