// Package resource reads host capacity for the run manifest and derives
// the default concurrency limit.
package resource

import (
	"context"
	"runtime"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/load"
	"github.com/shirou/gopsutil/v4/mem"
)

// Snapshot describes the host at the start of a run.
type Snapshot struct {
	CPUCount       int     `json:"cpuCount"`
	LoadAvg1       float64 `json:"loadAvg1,omitempty"`
	MemoryTotal    uint64  `json:"memoryTotal,omitempty"`
	MemoryFree     uint64  `json:"memoryFree,omitempty"`
	MemoryUsedPerc float64 `json:"memoryUsedPercent,omitempty"`
}

// Collect gathers a host snapshot. Probes that fail leave their fields
// zero; a snapshot is informational and never blocks a run.
func Collect(ctx context.Context) Snapshot {
	snap := Snapshot{CPUCount: runtime.NumCPU()}

	if count, err := cpu.CountsWithContext(ctx, true); err == nil && count > 0 {
		snap.CPUCount = count
	}
	if avg, err := load.AvgWithContext(ctx); err == nil {
		snap.LoadAvg1 = avg.Load1
	}
	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		snap.MemoryTotal = vm.Total
		snap.MemoryFree = vm.Available
		snap.MemoryUsedPerc = vm.UsedPercent
	}
	return snap
}

// DefaultConcurrency returns the instance concurrency limit used when the
// pipeline and flags leave it unset.
func DefaultConcurrency(snap Snapshot) int {
	if snap.CPUCount < 1 {
		return 1
	}
	return snap.CPUCount
}
