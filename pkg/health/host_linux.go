//go:build linux

package health

import (
	"fmt"
	"runtime"

	"github.com/prometheus/procfs"
	"golang.org/x/sys/unix"
)

// Loads are fixed point with 16 fractional bits
const loadScale = 1 << 16

// sampleHost reads memory pressure from /proc/meminfo and the 1-minute load
// average from sysinfo(2).
func sampleHost() (HostSample, error) {
	var info unix.Sysinfo_t
	if err := unix.Sysinfo(&info); err != nil {
		return HostSample{}, fmt.Errorf("sysinfo: %w", err)
	}

	var mem float64
	fs, err := procfs.NewDefaultFS()
	if err == nil {
		mem, err = meminfoUtilization(fs)
	}
	if err != nil {
		// Kernels older than 3.14 have no MemAvailable
		if mem, err = sysinfoUtilization(&info); err != nil {
			return HostSample{}, err
		}
	}

	load1 := float64(info.Loads[0]) / loadScale

	return HostSample{
		MemoryUtilization: mem,
		CPULoad:           clamp01(load1 / float64(runtime.NumCPU())),
	}, nil
}

// meminfoUtilization is the share of memory the kernel cannot hand out
// without swapping. Reclaimable page cache counts as available.
func meminfoUtilization(fs procfs.FS) (float64, error) {
	mi, err := fs.Meminfo()
	if err != nil {
		return 0, fmt.Errorf("meminfo: %w", err)
	}
	if mi.MemTotal == nil || mi.MemAvailable == nil || *mi.MemTotal == 0 {
		return 0, fmt.Errorf("meminfo: MemTotal or MemAvailable missing")
	}
	return clamp01(1 - float64(*mi.MemAvailable)/float64(*mi.MemTotal)), nil
}

func sysinfoUtilization(info *unix.Sysinfo_t) (float64, error) {
	unit := uint64(info.Unit)
	if unit == 0 {
		unit = 1
	}
	total := uint64(info.Totalram) * unit
	if total == 0 {
		return 0, fmt.Errorf("sysinfo reported zero total memory")
	}
	free := (uint64(info.Freeram) + uint64(info.Bufferram)) * unit
	return clamp01(1 - float64(free)/float64(total)), nil
}
