package metrics

import (
	"os"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"
)

// SystemStats 系统统计信息
type SystemStats struct {
	Timestamp time.Time    `json:"timestamp"`
	CPU       CPUStats     `json:"cpu"`
	Memory    MemoryStats  `json:"memory"`
	Process   ProcessStats `json:"process"`
	Runtime   RuntimeStats `json:"runtime"`
	Host      HostStats    `json:"host"`
}

// CPUStats CPU统计信息
type CPUStats struct {
	UsagePercent float64 `json:"usage_percent"`
	Count        int     `json:"count"`
}

// MemoryStats 内存统计信息
type MemoryStats struct {
	Total        uint64  `json:"total"`
	Available    uint64  `json:"available"`
	Used         uint64  `json:"used"`
	UsagePercent float64 `json:"usage_percent"`
}

// ProcessStats 进程统计信息
type ProcessStats struct {
	PID           int32   `json:"pid"`
	CPUPercent    float64 `json:"cpu_percent"`
	MemoryPercent float32 `json:"memory_percent"`
	MemoryRSS     uint64  `json:"memory_rss"`
	NumThreads    int32   `json:"num_threads"`
}

// RuntimeStats Go运行时统计信息
type RuntimeStats struct {
	Goroutines int    `json:"goroutines"`
	HeapAlloc  uint64 `json:"heap_alloc"`
	HeapSys    uint64 `json:"heap_sys"`
	NumGC      uint32 `json:"num_gc"`
}

// HostStats 主机信息
type HostStats struct {
	Hostname string `json:"hostname"`
	OS       string `json:"os"`
	Platform string `json:"platform"`
	Uptime   uint64 `json:"uptime"`
}

// CollectSystemStats 采集一次系统快照，单项失败不影响其余字段
func CollectSystemStats() *SystemStats {
	stats := &SystemStats{Timestamp: time.Now()}

	if percents, err := cpu.Percent(0, false); err == nil && len(percents) > 0 {
		stats.CPU.UsagePercent = percents[0]
	}
	if count, err := cpu.Counts(true); err == nil {
		stats.CPU.Count = count
	}

	if vm, err := mem.VirtualMemory(); err == nil {
		stats.Memory = MemoryStats{
			Total:        vm.Total,
			Available:    vm.Available,
			Used:         vm.Used,
			UsagePercent: vm.UsedPercent,
		}
	}

	if proc, err := process.NewProcess(int32(os.Getpid())); err == nil {
		stats.Process.PID = proc.Pid
		if v, err := proc.CPUPercent(); err == nil {
			stats.Process.CPUPercent = v
		}
		if v, err := proc.MemoryPercent(); err == nil {
			stats.Process.MemoryPercent = v
		}
		if mi, err := proc.MemoryInfo(); err == nil && mi != nil {
			stats.Process.MemoryRSS = mi.RSS
		}
		if v, err := proc.NumThreads(); err == nil {
			stats.Process.NumThreads = v
		}
	}

	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	stats.Runtime = RuntimeStats{
		Goroutines: runtime.NumGoroutine(),
		HeapAlloc:  ms.HeapAlloc,
		HeapSys:    ms.HeapSys,
		NumGC:      ms.NumGC,
	}

	if info, err := host.Info(); err == nil {
		stats.Host = HostStats{
			Hostname: info.Hostname,
			OS:       info.OS,
			Platform: info.Platform,
			Uptime:   info.Uptime,
		}
	}

	return stats
}
