package orchestrator_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tigerroll/sheetflow/example/sheetflow/internal/orchestrator"
	"github.com/tigerroll/sheetflow/pkg/batch/core/config"
)

type recordingRunner struct {
	mu    sync.Mutex
	order map[string][]string
	next  orchestrator.Runner
}

func (r *recordingRunner) Run(ctx context.Context, trig orchestrator.Trigger) (*orchestrator.Outcome, error) {
	r.mu.Lock()
	r.order[trig.TenantID] = append(r.order[trig.TenantID], trig.ObjectName)
	r.mu.Unlock()
	return r.next.Run(ctx, trig)
}

func TestScanner_Triggers(t *testing.T) {
	e := newEnv(t)
	e.upload(t, "incoming/t1/b.csv", "id\nS1\n")
	e.upload(t, "incoming/t1/a.csv", "id\nS1\n")
	e.upload(t, "incoming/t2/a.csv", "id\nS1\n")
	e.upload(t, "incoming/stray.csv", "id\nS1\n")

	scanner := orchestrator.NewScanner(e.resolver, e.orchestrator(config.SupersedeNone))
	byTenant, err := scanner.Triggers(context.Background(), "landing", "incoming/")
	require.NoError(t, err)
	require.Len(t, byTenant, 2)
	require.Len(t, byTenant["t1"], 2)
	assert.Equal(t, "incoming/t1/a.csv", byTenant["t1"][0].ObjectName)
	assert.Equal(t, "incoming/t1/b.csv", byTenant["t1"][1].ObjectName)
	assert.Equal(t, int64(len("id\nS1\n")), byTenant["t2"][0].Size)
}

func TestScanner_ScanRunsTenantsAndSkipsBusyOnes(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	e.upload(t, "incoming/t1/a.csv", "id\nS1\n")
	e.upload(t, "incoming/t1/b.csv", "id\nS2\n")
	e.upload(t, "incoming/t2/a.csv", "id\nS1\n")
	e.upload(t, "incoming/t3/a.csv", "id\nS1\n")
	e.upload(t, "incoming/t3/b.csv", "id\nS2\n")

	ok, err := e.locks.Acquire(ctx, "t3", "someone-else", "", time.Hour)
	require.NoError(t, err)
	require.True(t, ok)

	runner := &recordingRunner{order: map[string][]string{}, next: e.orchestrator(config.SupersedeNone)}
	result, err := orchestrator.NewScanner(e.resolver, runner).Scan(ctx, "landing", "incoming/")
	require.NoError(t, err)
	assert.Equal(t, orchestrator.ScanResult{Completed: 3, Busy: 1}, result)

	assert.Equal(t, []string{"incoming/t1/a.csv", "incoming/t1/b.csv"}, runner.order["t1"])
	assert.Equal(t, []string{"incoming/t3/a.csv"}, runner.order["t3"])

	_, err = e.conn.Stat(ctx, "", "incoming/t3/b.csv")
	assert.NoError(t, err)
	assert.Equal(t, 2, e.activeStudents(t, "t1"))
}

func TestScanner_ReportsFailures(t *testing.T) {
	e := newEnv(t)
	e.upload(t, "incoming/t1/bad.csv", "name\nAna\n")

	result, err := orchestrator.NewScanner(e.resolver, e.orchestrator(config.SupersedeNone)).Scan(context.Background(), "landing", "incoming/")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "incoming/t1/bad.csv")
	assert.Equal(t, 1, result.Failed)
}
