package workflow

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerator_Generate(t *testing.T) {
	ctx := context.Background()
	gen := builtinGenerator(t)

	t.Run("micro workflow", func(t *testing.T) {
		plan, err := gen.Generate(ctx, "Fix typo", "fix-typo", PlanOptions{WorkflowType: "micro"})
		require.NoError(t, err)

		assert.Equal(t, []string{StageImplementation}, plan.Progress.Stages())
		assert.Equal(t, StageImplementation, plan.CurrentStage)
	})

	t.Run("epic workflow", func(t *testing.T) {
		plan, err := gen.Generate(ctx, "Rewrite billing", "rewrite-billing", PlanOptions{WorkflowType: "epic"})
		require.NoError(t, err)

		assert.Equal(t, StandardStages, plan.Progress.Stages())
		assert.Equal(t, StageScopeAnalysis, plan.CurrentStage)
	})

	t.Run("defaults", func(t *testing.T) {
		plan, err := gen.Generate(ctx, "Something", "something", PlanOptions{})
		require.NoError(t, err)

		assert.Equal(t, DefaultWorkflowType, plan.WorkflowType)
		assert.Equal(t, PlanStatusActive, plan.Status)
		assert.Equal(t, PriorityMedium, plan.Priority)
		assert.Equal(t, plan.CreatedAt, plan.UpdatedAt)
		assert.NotNil(t, plan.Subtasks)
		assert.Empty(t, plan.Subtasks)
		for _, s := range plan.Progress.Stages() {
			assert.False(t, stage(t, plan, s).Complete, s)
		}
	})

	t.Run("subtask defaults to pending", func(t *testing.T) {
		plan, err := gen.Generate(ctx, "Child", "child", PlanOptions{PlanType: PlanTypeSubtask})
		require.NoError(t, err)
		assert.Equal(t, PlanStatusPending, plan.Status)
	})

	t.Run("explicit status wins", func(t *testing.T) {
		plan, err := gen.Generate(ctx, "Child", "child", PlanOptions{PlanType: PlanTypeSubtask, Status: PlanStatusActive})
		require.NoError(t, err)
		assert.Equal(t, PlanStatusActive, plan.Status)
	})

	t.Run("initial stage override", func(t *testing.T) {
		plan, err := gen.Generate(ctx, "Task", "task", PlanOptions{InitialStage: StageImplementation})
		require.NoError(t, err)
		assert.Equal(t, StageImplementation, plan.CurrentStage)
	})

	t.Run("unknown workflow uses default steps", func(t *testing.T) {
		plan, err := gen.Generate(ctx, "Task", "task", PlanOptions{WorkflowType: "bespoke"})
		require.NoError(t, err)
		assert.Equal(t, "bespoke", plan.WorkflowType)
		assert.Equal(t, BuiltinWorkflows().Default.Steps, plan.Progress.Stages())
	})
}

func TestGenerator_EmptyWorkflowFallsBackToScopeAnalysis(t *testing.T) {
	catalog, _ := newTestCatalog(t, "workflows:\n  empty:\n    steps: []\ndefault:\n  steps: []\n")
	plan, err := NewGenerator(catalog, nil).Generate(context.Background(), "Task", "task", PlanOptions{WorkflowType: "empty"})
	require.NoError(t, err)

	assert.Equal(t, StageScopeAnalysis, plan.CurrentStage)
	assert.Equal(t, 0, plan.Progress.Len())
}

func TestGenerator_PropagatesCatalogErrors(t *testing.T) {
	catalog, _ := newTestCatalog(t, "workflows: [broken\n")
	_, err := NewGenerator(catalog, nil).Generate(context.Background(), "Task", "task", PlanOptions{})
	assert.ErrorIs(t, err, ErrCatalogCorrupt)
}
