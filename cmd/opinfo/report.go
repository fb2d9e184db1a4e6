// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"iter"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/opinfo/pkg/core/dtypesets"
	"github.com/gomlx/opinfo/pkg/core/tensorlib"
	"github.com/gomlx/opinfo/pkg/opinfo"
	"github.com/schollz/progressbar/v3"
	"k8s.io/klog/v2"
)

// manifest returns the table with the capabilities declared by each record.
func manifest(ops []*opinfo.OpInfo) *TableWithReds {
	table := newTable(lipgloss.Left, lipgloss.Left, lipgloss.Left, lipgloss.Left, lipgloss.Center)
	table.Table.Headers("Name", "Category", "DTypes", "DTypes (accelerator)", "Autograd", "Forward AD", "Out",
		"Sparse", "Reference")
	for _, op := range ops {
		table.Row(false, op.FullName(), string(op.Category),
			dtypesets.String(op.SupportedDTypesFor(tensorlib.DeviceDefault)),
			dtypesets.String(op.SupportedDTypesFor(tensorlib.DeviceAccelerator)),
			yesNo(op.SupportsAutograd), yesNo(op.SupportsForwardAD), yesNo(op.SupportsOut), yesNo(op.SupportsSparse),
			yesNo(op.Ref != nil))
	}
	return table
}

func count[T any](seq iter.Seq[T]) int {
	var n int
	for range seq {
		n++
	}
	return n
}

// census returns the table with the number of samples, sparse samples and error inputs generated by each record
// for dtype, on each device of the library. Records that don't support dtype on a device are marked with "-".
func census(lib tensorlib.Library, ops []*opinfo.OpInfo, dtype dtypes.DType) *TableWithReds {
	devices := lib.Devices()
	table := newTable(lipgloss.Left, lipgloss.Right)
	headers := []string{"Name"}
	for _, device := range devices {
		headers = append(headers, device.String()+" samples", device.String()+" sparse", device.String()+" errors")
	}
	table.Table.Headers(headers...)

	bar := progressbar.NewOptions(len(ops)*len(devices),
		progressbar.OptionSetDescription(fmt.Sprintf("Census of %s: ", dtype)),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionShowCount(),
		progressbar.OptionSetItsString("records"),
		progressbar.OptionSetTheme(progressbar.ThemeUnicode),
		progressbar.OptionClearOnFinish())
	totals := make([]int, 3)
	for _, op := range ops {
		row := []string{op.FullName()}
		for _, device := range devices {
			if !op.SupportedDTypes(device).Has(dtype) {
				row = append(row, "-", "-", "-")
				_ = bar.Add(1)
				continue
			}
			counts := []int{
				count(op.Samples(device, dtype, false, nil)),
				count(op.SparseSamples(device, dtype, false, nil)),
				count(op.Errors(device, dtype, false, nil)),
			}
			for ii, n := range counts {
				totals[ii] += n
				row = append(row, humanize.Comma(int64(n)))
			}
			_ = bar.Add(1)
		}
		table.Row(false, row...)
	}
	_ = bar.Finish()
	klog.V(1).Infof("census: %s samples, %s sparse samples and %s error inputs",
		humanize.Comma(int64(totals[0])), humanize.Comma(int64(totals[1])), humanize.Comma(int64(totals[2])))
	return table
}

// verify runs every error input of the records, on every device and supported dtype, and prints the ones
// that didn't fail as expected. It returns the number of mismatches.
func verify(lib tensorlib.Library, ops []*opinfo.OpInfo) int {
	table := newTable(lipgloss.Left)
	table.Table.Headers("Record", "Device", "DType", "Error input", "Mismatch")
	var checked, mismatches int
	for _, op := range ops {
		for _, device := range lib.Devices() {
			for _, dtype := range dtypesets.Sorted(op.SupportedDTypes(device)) {
				for errorInput := range op.Errors(device, dtype, false, nil) {
					checked++
					_, err := op.Call(errorInput.Sample)
					if mismatch := errorInput.Check(err); mismatch != nil {
						mismatches++
						table.Row(true, op.FullName(), device.String(), dtype.String(), errorInput.Sample.String(),
							mismatch.Error())
					}
				}
			}
		}
	}
	if mismatches > 0 {
		fmt.Println(table.Render())
	}
	fmt.Printf("%s error inputs checked, %s mismatches\n", humanize.Comma(int64(checked)), humanize.Comma(int64(mismatches)))
	return mismatches
}
