package diagnostics

import (
	"context"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/load"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"
)

// Snapshot is a point-in-time view of the host and this process. Fields a
// platform cannot report stay zero.
type Snapshot struct {
	Timestamp time.Time `json:"timestamp"`

	Hostname string `json:"hostname,omitempty"`
	Platform string `json:"platform,omitempty"`
	Uptime   uint64 `json:"uptime_seconds,omitempty"`

	CPUModel   string `json:"cpu_model,omitempty"`
	CPUCores   int    `json:"cpu_cores,omitempty"`
	CPUThreads int    `json:"cpu_threads,omitempty"`

	MemTotalMB float64 `json:"mem_total_mb"`
	MemUsedMB  float64 `json:"mem_used_mb"`
	MemPercent float64 `json:"mem_percent"`

	DiskPath    string  `json:"disk_path"`
	DiskTotalGB float64 `json:"disk_total_gb"`
	DiskFreeGB  float64 `json:"disk_free_gb"`
	DiskPercent float64 `json:"disk_percent"`

	LoadAvg1 float64 `json:"load_avg_1,omitempty"`
	LoadAvg5 float64 `json:"load_avg_5,omitempty"`

	GoVersion   string  `json:"go_version"`
	Goroutines  int     `json:"goroutines"`
	HeapAllocMB float64 `json:"heap_alloc_mb"`
	ProcessRSS  float64 `json:"process_rss_mb,omitempty"`
}

// Collector gathers snapshots. The probe fields are replaceable in tests.
type Collector struct {
	diskPath string

	hostInfo   func(context.Context) (*host.InfoStat, error)
	cpuInfo    func(context.Context) ([]cpu.InfoStat, error)
	cpuCounts  func(context.Context, bool) (int, error)
	memory     func(context.Context) (*mem.VirtualMemoryStat, error)
	diskUsage  func(context.Context, string) (*disk.UsageStat, error)
	loadAvg    func(context.Context) (*load.AvgStat, error)
	processRSS func(context.Context) (uint64, error)
}

// NewCollector creates a collector reporting disk usage for the filesystem
// holding diskPath (the data directory). Empty means the root filesystem.
func NewCollector(diskPath string) *Collector {
	if diskPath == "" {
		diskPath = rootDiskPath()
	}
	return &Collector{
		diskPath:   diskPath,
		hostInfo:   host.InfoWithContext,
		cpuInfo:    cpu.InfoWithContext,
		cpuCounts:  cpu.CountsWithContext,
		memory:     mem.VirtualMemoryWithContext,
		diskUsage:  disk.UsageWithContext,
		loadAvg:    load.AvgWithContext,
		processRSS: selfRSS,
	}
}

// Collect gathers a snapshot. Individual probe failures are skipped.
func (c *Collector) Collect(ctx context.Context) Snapshot {
	s := Snapshot{
		Timestamp:  time.Now(),
		DiskPath:   c.diskPath,
		GoVersion:  runtime.Version(),
		Goroutines: runtime.NumGoroutine(),
	}

	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	s.HeapAllocMB = float64(ms.HeapAlloc) / 1024 / 1024

	if h, err := c.hostInfo(ctx); err == nil {
		s.Hostname = h.Hostname
		s.Platform = strings.TrimSpace(h.Platform + " " + h.PlatformVersion)
		s.Uptime = h.Uptime
	}
	if infos, err := c.cpuInfo(ctx); err == nil && len(infos) > 0 {
		s.CPUModel = strings.TrimSpace(infos[0].ModelName)
	}
	if n, err := c.cpuCounts(ctx, false); err == nil {
		s.CPUCores = n
	}
	if n, err := c.cpuCounts(ctx, true); err == nil {
		s.CPUThreads = n
	}
	if vm, err := c.memory(ctx); err == nil {
		s.MemTotalMB = float64(vm.Total) / 1024 / 1024
		s.MemUsedMB = float64(vm.Used) / 1024 / 1024
		s.MemPercent = vm.UsedPercent
	}
	if u, err := c.diskUsage(ctx, existingDir(c.diskPath)); err == nil {
		s.DiskTotalGB = float64(u.Total) / 1024 / 1024 / 1024
		s.DiskFreeGB = float64(u.Free) / 1024 / 1024 / 1024
		s.DiskPercent = u.UsedPercent
	}
	if avg, err := c.loadAvg(ctx); err == nil {
		s.LoadAvg1 = avg.Load1
		s.LoadAvg5 = avg.Load5
	}
	if rss, err := c.processRSS(ctx); err == nil {
		s.ProcessRSS = float64(rss) / 1024 / 1024
	}
	return s
}

func selfRSS(ctx context.Context) (uint64, error) {
	p, err := process.NewProcessWithContext(ctx, int32(os.Getpid()))
	if err != nil {
		return 0, err
	}
	info, err := p.MemoryInfoWithContext(ctx)
	if err != nil {
		return 0, err
	}
	return info.RSS, nil
}

// existingDir walks up from path to the nearest directory that exists, so a
// data directory that is not created yet still reports its filesystem.
func existingDir(path string) string {
	for {
		if fi, err := os.Stat(path); err == nil && fi.IsDir() {
			return path
		}
		parent := parentDir(path)
		if parent == path {
			return path
		}
		path = parent
	}
}

func parentDir(path string) string {
	trimmed := strings.TrimRight(path, `/\`)
	i := strings.LastIndexAny(trimmed, `/\`)
	switch {
	case i < 0:
		return "."
	case i == 0:
		return trimmed[:1]
	default:
		return trimmed[:i]
	}
}

func rootDiskPath() string {
	if runtime.GOOS == "windows" {
		drive := os.Getenv("SystemDrive")
		if drive == "" {
			drive = "C:"
		}
		return drive + `\`
	}
	return "/"
}
