// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package tensorlib

import "fmt"

// DeviceClass groups devices with the same capabilities: decorators and per-device dtype sets are
// declared per class, not per device.
type DeviceClass int

const (
	// DeviceAny matches any class, it's only used when filtering (e.g. in decorators).
	DeviceAny DeviceClass = iota

	// DeviceDefault is the class of the host (CPU) device.
	DeviceDefault

	// DeviceAccelerator is the class of accelerator devices, which may support a different set of dtypes.
	DeviceAccelerator
)

// String implements fmt.Stringer.
func (c DeviceClass) String() string {
	switch c {
	case DeviceAny:
		return "Any"
	case DeviceDefault:
		return "Default"
	case DeviceAccelerator:
		return "Accelerator"
	}
	return fmt.Sprintf("DeviceClass(%d)", int(c))
}

// Matches returns whether a device of class other matches c. DeviceAny matches everything.
func (c DeviceClass) Matches(other DeviceClass) bool {
	return c == DeviceAny || c == other
}

// Device identifies where a tensor lives: a type ("cpu", "sim") and an ordinal.
type Device struct {
	Type  string
	Index int
	Class DeviceClass
}

// CPU is the default host device.
var CPU = Device{Type: "cpu", Class: DeviceDefault}

// String returns "cpu" for the host, and "<type>:<index>" for other devices.
func (d Device) String() string {
	if d.Class == DeviceDefault && d.Index == 0 {
		return d.Type
	}
	return fmt.Sprintf("%s:%d", d.Type, d.Index)
}

// Layout of a tensor's storage.
type Layout int

const (
	// Strided layout: a dense buffer read with per-axis strides, possibly non-contiguous.
	Strided Layout = iota

	// SparseCOO layout: coordinates of the non-zero elements and their values.
	SparseCOO
)

// String implements fmt.Stringer.
func (l Layout) String() string {
	switch l {
	case Strided:
		return "Strided"
	case SparseCOO:
		return "SparseCOO"
	}
	return fmt.Sprintf("Layout(%d)", int(l))
}
