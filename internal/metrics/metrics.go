// Package metrics reports process and system memory/CPU figures for the
// INFO command, backed by gopsutil rather than re-deriving figures the OS
// already tracks.
package metrics

import (
	"os"
	"time"

	"github.com/shirou/gopsutil/v4/mem"
	"github.com/shirou/gopsutil/v4/process"
)

// Snapshot is a point-in-time read of process and system resource usage.
type Snapshot struct {
	UsedMemoryBytes   uint64        // RSS of this process
	PeakMemoryBytes   uint64        // Highest RSS observed so far this run
	SystemTotalBytes  uint64        // Total physical memory on the host
	SystemUsedPercent float64       // Fraction of host memory in use, 0-100
	CPUPercent        float64       // Process CPU usage averaged over the process lifetime, 0-100 per core
	Uptime            time.Duration // Time since the collector was created
}

// Collector tracks the running process's peak RSS across calls to Snapshot,
// since gopsutil only ever reports the instantaneous value.
type Collector struct {
	proc      *process.Process
	startTime time.Time
	peakBytes uint64
}

// NewCollector opens a handle on the current process. Safe to call once at
// startup and reused for the lifetime of the server.
func NewCollector() *Collector {
	proc, _ := process.NewProcess(int32(os.Getpid()))
	return &Collector{
		proc:      proc,
		startTime: time.Now(),
	}
}

// Snapshot reads current memory and CPU figures. Errors from gopsutil are
// swallowed and leave the corresponding field zero-valued: INFO output
// should degrade gracefully rather than fail when the platform doesn't
// support a particular stat.
func (c *Collector) Snapshot() Snapshot {
	s := Snapshot{Uptime: time.Since(c.startTime)}

	if c.proc != nil {
		if memInfo, err := c.proc.MemoryInfo(); err == nil && memInfo != nil {
			s.UsedMemoryBytes = memInfo.RSS
			if memInfo.RSS > c.peakBytes {
				c.peakBytes = memInfo.RSS
			}
		}
		if pct, err := c.proc.CPUPercent(); err == nil {
			s.CPUPercent = pct
		}
	}
	s.PeakMemoryBytes = c.peakBytes

	if vm, err := mem.VirtualMemory(); err == nil && vm != nil {
		s.SystemTotalBytes = vm.Total
		s.SystemUsedPercent = vm.UsedPercent
	}

	return s
}
