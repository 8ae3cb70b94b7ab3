package server

import (
	"path/filepath"
	"testing"

	"github.com/c360studio/semplan/storage"
	"github.com/c360studio/semplan/tools"
	"github.com/c360studio/semplan/workflow"
)

func newTestExecutor(t *testing.T) tools.Executor {
	t.Helper()
	root := t.TempDir()
	catalog := workflow.NewCatalog(storage.NewFileStore(root), workflow.DefaultWorkflowsFile)
	manager := workflow.NewManager(storage.NewFileStore(filepath.Join(root, "plans")), catalog)
	return tools.NewPlanExecutor(manager)
}
