// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package tensorlib

import (
	"maps"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/opinfo/pkg/core/dtypesets"
)

// Capabilities holds mappings of what is supported by a library.
type Capabilities struct {
	// Operations supported by the library, by name.
	Operations map[string]bool

	// DTypes supported by each device class.
	DTypes map[DeviceClass]dtypesets.Set

	// SparseOperations is the subset of Operations that accept SparseCOO inputs.
	SparseOperations map[string]bool
}

// SupportsDType returns whether devices of the given class support dtype.
func (c Capabilities) SupportsDType(class DeviceClass, dtype dtypes.DType) bool {
	set, found := c.DTypes[class]
	return found && set.Has(dtype)
}

// Clone makes a deep copy of the Capabilities.
func (c Capabilities) Clone() Capabilities {
	var c2 Capabilities
	c2.Operations = maps.Clone(c.Operations)
	c2.SparseOperations = maps.Clone(c.SparseOperations)
	c2.DTypes = make(map[DeviceClass]dtypesets.Set, len(c.DTypes))
	for class, set := range c.DTypes {
		c2.DTypes[class] = set.Clone()
	}
	return c2
}
