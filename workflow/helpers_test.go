package workflow

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/c360studio/semplan/storage"
)

type testEnv struct {
	manager      *Manager
	plans        *storage.FileStore
	catalogStore *storage.FileStore
	clock        *fakeClock
}

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) Now() time.Time {
	c.t = c.t.Add(time.Second)
	return c.t
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	root := t.TempDir()
	plans := storage.NewFileStore(filepath.Join(root, "plans"))
	catalogStore := storage.NewFileStore(root)
	clock := &fakeClock{t: time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)}
	catalog := NewCatalog(catalogStore, DefaultWorkflowsFile)
	return &testEnv{
		manager:      NewManager(plans, catalog, WithClock(clock.Now)),
		plans:        plans,
		catalogStore: catalogStore,
		clock:        clock,
	}
}

// createPlan creates a plan with the given workflow and returns its locator.
func (e *testEnv) createPlan(t *testing.T, task, workflowType string) string {
	t.Helper()
	res, err := e.manager.CreatePlan(context.Background(), CreatePlanRequest{
		Task:    task,
		Options: PlanOptions{WorkflowType: workflowType},
	})
	require.NoError(t, err)
	return res.Locator
}

func (e *testEnv) load(t *testing.T, locator string) *Plan {
	t.Helper()
	plan, err := e.manager.LoadPlan(context.Background(), locator)
	require.NoError(t, err)
	return plan
}

func stage(t *testing.T, plan *Plan, name string) *StageProgress {
	t.Helper()
	sp, ok := plan.Progress.Get(name)
	require.True(t, ok, "stage %s missing from progress", name)
	return sp
}

// builtinGenerator returns a generator over an empty catalog directory, so
// the built-in workflows apply.
func builtinGenerator(t *testing.T) *Generator {
	t.Helper()
	return NewGenerator(NewCatalog(storage.NewFileStore(t.TempDir()), DefaultWorkflowsFile), nil)
}
