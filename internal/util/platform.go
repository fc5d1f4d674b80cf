package util

import (
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"
)

// SystemInfo holds static information about the host.
type SystemInfo struct {
	Platform     string `json:"platform"`
	Hostname     string `json:"hostname"`
	OS           string `json:"os"`
	Architecture string `json:"architecture"`
	CPUModel     string `json:"cpu_model"`
	CPUCores     int    `json:"cpu_cores"`
	TotalMemory  uint64 `json:"total_memory_mb"`
	BootTime     uint64 `json:"boot_time,omitempty"`
}

// GetSystemInfo gathers system information. Fields gopsutil cannot read on
// this platform are left empty.
func GetSystemInfo() SystemInfo {
	info := SystemInfo{
		Platform:     runtime.GOOS,
		Architecture: runtime.GOARCH,
		CPUCores:     runtime.NumCPU(),
	}

	if hostname, err := os.Hostname(); err == nil {
		info.Hostname = hostname
	}

	if hostInfo, err := host.Info(); err == nil {
		info.OS = fmt.Sprintf("%s %s", hostInfo.Platform, hostInfo.PlatformVersion)
		info.BootTime = hostInfo.BootTime
	}

	if cpuInfo, err := cpu.Info(); err == nil && len(cpuInfo) > 0 {
		info.CPUModel = cpuInfo[0].ModelName
	}

	if memInfo, err := mem.VirtualMemory(); err == nil {
		info.TotalMemory = memInfo.Total / (1024 * 1024)
	}

	return info
}

// HostUsage is a point-in-time view of host load.
type HostUsage struct {
	CPUPercent    float64   `json:"cpu_percent"`
	MemoryUsedMB  uint64    `json:"memory_used_mb"`
	MemoryPercent float64   `json:"memory_percent"`
	DiskFreeGB    uint64    `json:"disk_free_gb"`
	DiskPercent   float64   `json:"disk_percent"`
	SampledAt     time.Time `json:"sampled_at"`
}

// GetHostUsage samples CPU, memory and the disk holding path. It reports the
// first error but fills in whatever could be read.
func GetHostUsage(path string) (HostUsage, error) {
	u := HostUsage{SampledAt: time.Now().UTC()}
	var firstErr error
	keep := func(err error) {
		if firstErr == nil {
			firstErr = err
		}
	}

	if pct, err := cpu.Percent(0, false); err != nil {
		keep(fmt.Errorf("cpu: %w", err))
	} else if len(pct) > 0 {
		u.CPUPercent = pct[0]
	}

	if m, err := mem.VirtualMemory(); err != nil {
		keep(fmt.Errorf("memory: %w", err))
	} else {
		u.MemoryUsedMB = m.Used / (1024 * 1024)
		u.MemoryPercent = m.UsedPercent
	}

	if d, err := disk.Usage(path); err != nil {
		keep(fmt.Errorf("disk %s: %w", path, err))
	} else {
		u.DiskFreeGB = d.Free / (1024 * 1024 * 1024)
		u.DiskPercent = d.UsedPercent
	}

	return u, firstErr
}
