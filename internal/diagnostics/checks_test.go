package diagnostics

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumia-zhu/aiplanner-sub000/internal/ai"
	"github.com/lumia-zhu/aiplanner-sub000/internal/testutil"
)

func TestCheckResources(t *testing.T) {
	th := DefaultThresholds()

	ok := CheckResources(Snapshot{MemTotalMB: 1000, MemPercent: 40, DiskTotalGB: 100, DiskFreeGB: 50, DiskPercent: 50}, th)
	require.Len(t, ok, 2)
	assert.Equal(t, StatusOK, ok[0].Status)
	assert.Equal(t, StatusOK, ok[1].Status)

	tight := CheckResources(Snapshot{MemTotalMB: 1000, MemPercent: 95, DiskTotalGB: 100, DiskFreeGB: 5, DiskPercent: 95}, th)
	assert.Equal(t, StatusWarn, tight[0].Status)
	assert.Equal(t, StatusWarn, tight[1].Status)

	full := CheckResources(Snapshot{MemTotalMB: 1000, DiskTotalGB: 100, DiskFreeGB: 0.1, DiskPercent: 99.9}, th)
	assert.Equal(t, StatusFail, full[1].Status)

	unknown := CheckResources(Snapshot{DiskPath: "/x"}, th)
	assert.Equal(t, StatusWarn, unknown[0].Status)
	assert.Equal(t, StatusWarn, unknown[1].Status)
}

func TestCheckWritable(t *testing.T) {
	dir := t.TempDir()
	c := CheckWritable("database", filepath.Join(dir, "nested", "planner.db"))
	assert.Equal(t, StatusOK, c.Status)

	entries, err := os.ReadDir(filepath.Join(dir, "nested"))
	require.NoError(t, err)
	assert.Empty(t, entries, "probe file is removed")

	blocker := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(blocker, nil, 0o600))
	bad := CheckWritable("database", filepath.Join(blocker, "planner.db"))
	assert.Equal(t, StatusFail, bad.Status)
}

func TestCheckModels(t *testing.T) {
	svc := ai.NewService(ai.ServiceConfig{PrimaryModel: "main"})
	svc.RegisterAdapter(ai.NewAdapter(
		ai.ModelConfig{Name: "main", Provider: "mock", Model: "m1", Enabled: true, Priority: 1},
		testutil.NewMockProvider(),
	))
	svc.RegisterAdapter(ai.NewAdapter(
		ai.ModelConfig{Name: "backup", Provider: "mock", Model: "m2", Enabled: true, Priority: 2},
		testutil.NewMockProvider().WithError(errors.New("connection refused")),
	))

	checks := CheckModels(context.Background(), svc, time.Second)
	require.Len(t, checks, 2)
	byName := map[string]Check{}
	for _, c := range checks {
		byName[c.Name] = c
	}
	assert.Equal(t, StatusOK, byName["model main"].Status)
	assert.Equal(t, StatusWarn, byName["model backup"].Status)
	assert.Contains(t, byName["model backup"].Detail, "mock/m2")

	report := Report{Checks: checks}
	assert.True(t, report.Healthy())
}

func TestCheckModels_PrimaryDownFails(t *testing.T) {
	svc := ai.NewService(ai.ServiceConfig{PrimaryModel: "main"})
	svc.RegisterAdapter(ai.NewAdapter(
		ai.ModelConfig{Name: "main", Provider: "mock", Model: "m1", Enabled: true},
		testutil.NewMockProvider().WithError(errors.New("unauthorized")),
	))

	checks := CheckModels(context.Background(), svc, time.Second)
	require.Len(t, checks, 1)
	assert.Equal(t, StatusFail, checks[0].Status)
	assert.False(t, Report{Checks: checks}.Healthy())
}

func TestCheckModels_NoneConfigured(t *testing.T) {
	checks := CheckModels(context.Background(), ai.NewService(ai.ServiceConfig{}), time.Second)
	require.Len(t, checks, 1)
	assert.Equal(t, StatusFail, checks[0].Status)
}
