package diagnostics

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/lumia-zhu/aiplanner-sub000/internal/ai"
)

// Status grades one check.
type Status string

const (
	StatusOK   Status = "ok"
	StatusWarn Status = "warn"
	StatusFail Status = "fail"
)

// Check is one line of the doctor report.
type Check struct {
	Name   string `json:"name"`
	Status Status `json:"status"`
	Detail string `json:"detail,omitempty"`
}

// Report is the full doctor output.
type Report struct {
	System Snapshot `json:"system"`
	Checks []Check  `json:"checks"`
}

// Healthy reports whether no check failed.
func (r Report) Healthy() bool {
	for _, c := range r.Checks {
		if c.Status == StatusFail {
			return false
		}
	}
	return true
}

// Thresholds above which resource checks warn or fail.
type Thresholds struct {
	MemWarnPercent  float64
	DiskWarnPercent float64
	DiskFailFreeGB  float64
}

// DefaultThresholds returns the thresholds doctor uses.
func DefaultThresholds() Thresholds {
	return Thresholds{MemWarnPercent: 90, DiskWarnPercent: 90, DiskFailFreeGB: 0.5}
}

// CheckResources grades memory and disk headroom.
func CheckResources(s Snapshot, t Thresholds) []Check {
	memCheck := Check{Name: "memory", Status: StatusOK,
		Detail: fmt.Sprintf("%.0f%% of %.0f MB used", s.MemPercent, s.MemTotalMB)}
	if s.MemTotalMB == 0 {
		memCheck.Status, memCheck.Detail = StatusWarn, "memory usage unavailable"
	} else if s.MemPercent >= t.MemWarnPercent {
		memCheck.Status = StatusWarn
	}

	diskCheck := Check{Name: "disk", Status: StatusOK,
		Detail: fmt.Sprintf("%.1f GB free on %s (%.0f%% used)", s.DiskFreeGB, s.DiskPath, s.DiskPercent)}
	switch {
	case s.DiskTotalGB == 0:
		diskCheck.Status, diskCheck.Detail = StatusWarn, "disk usage unavailable for "+s.DiskPath
	case s.DiskFreeGB < t.DiskFailFreeGB:
		diskCheck.Status = StatusFail
	case s.DiskPercent >= t.DiskWarnPercent:
		diskCheck.Status = StatusWarn
	}
	return []Check{memCheck, diskCheck}
}

// CheckWritable verifies a file can be created next to path.
func CheckWritable(name, path string) Check {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return Check{Name: name, Status: StatusFail, Detail: err.Error()}
	}
	f, err := os.CreateTemp(dir, ".doctor-*")
	if err != nil {
		return Check{Name: name, Status: StatusFail, Detail: err.Error()}
	}
	_ = f.Close()
	_ = os.Remove(f.Name())
	return Check{Name: name, Status: StatusOK, Detail: path}
}

// CheckModels probes every registered model concurrently. An unreachable
// primary fails; an unreachable fallback only warns.
func CheckModels(ctx context.Context, svc *ai.Service, timeout time.Duration) []Check {
	adapters := svc.Adapters()
	if len(adapters) == 0 {
		return []Check{{Name: "models", Status: StatusFail, Detail: "no model is configured"}}
	}
	primary := svc.PrimaryModel()

	checks := make([]Check, len(adapters))
	var g errgroup.Group
	for i, a := range adapters {
		g.Go(func() error {
			cfg := a.Config()
			c := Check{Name: "model " + a.Name(), Detail: cfg.Provider + "/" + cfg.Model}
			pctx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()
			switch {
			case a.IsAvailable(pctx):
				c.Status = StatusOK
			case a.Name() == primary:
				c.Status = StatusFail
				c.Detail += " unreachable (primary)"
			default:
				c.Status = StatusWarn
				c.Detail += " unreachable"
			}
			checks[i] = c
			return nil
		})
	}
	_ = g.Wait()
	return checks
}
