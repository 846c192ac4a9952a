package diagnostics

import (
	"context"
	"errors"
	"testing"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/load"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/stretchr/testify/assert"
)

func fakeCollector() *Collector {
	return &Collector{
		diskPath: "/data",
		hostInfo: func(context.Context) (*host.InfoStat, error) {
			return &host.InfoStat{Hostname: "planner", Platform: "debian", PlatformVersion: "12", Uptime: 60}, nil
		},
		cpuInfo: func(context.Context) ([]cpu.InfoStat, error) {
			return []cpu.InfoStat{{ModelName: " Test CPU "}}, nil
		},
		cpuCounts: func(_ context.Context, logical bool) (int, error) {
			if logical {
				return 8, nil
			}
			return 4, nil
		},
		memory: func(context.Context) (*mem.VirtualMemoryStat, error) {
			return &mem.VirtualMemoryStat{Total: 2048 << 20, Used: 1024 << 20, UsedPercent: 50}, nil
		},
		diskUsage: func(context.Context, string) (*disk.UsageStat, error) {
			return &disk.UsageStat{Total: 100 << 30, Free: 25 << 30, UsedPercent: 75}, nil
		},
		loadAvg: func(context.Context) (*load.AvgStat, error) {
			return nil, errors.New("unsupported")
		},
		processRSS: func(context.Context) (uint64, error) { return 64 << 20, nil },
	}
}

func TestCollector_Collect(t *testing.T) {
	s := fakeCollector().Collect(context.Background())

	assert.Equal(t, "planner", s.Hostname)
	assert.Equal(t, "debian 12", s.Platform)
	assert.Equal(t, "Test CPU", s.CPUModel)
	assert.Equal(t, 4, s.CPUCores)
	assert.Equal(t, 8, s.CPUThreads)
	assert.InDelta(t, 2048, s.MemTotalMB, 0.01)
	assert.InDelta(t, 1024, s.MemUsedMB, 0.01)
	assert.InDelta(t, 25, s.DiskFreeGB, 0.01)
	assert.InDelta(t, 64, s.ProcessRSS, 0.01)
	assert.Zero(t, s.LoadAvg1, "failed probes leave fields zero")
	assert.NotEmpty(t, s.GoVersion)
	assert.Positive(t, s.Goroutines)
}

func TestExistingDir(t *testing.T) {
	dir := t.TempDir()
	assert.Equal(t, dir, existingDir(dir+"/not/yet/created"))
	assert.Equal(t, dir, existingDir(dir))
}

func TestParentDir(t *testing.T) {
	assert.Equal(t, "/a", parentDir("/a/b"))
	assert.Equal(t, "/", parentDir("/a"))
	assert.Equal(t, ".", parentDir("a"))
}
