package workflow

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateSubtaskPlan(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	parent := env.createPlan(t, "Payment service", "large")

	res, err := env.manager.CreateSubtaskPlan(ctx, parent, "Add refund endpoint", SubtaskOptions{WorkflowType: "small"})
	require.NoError(t, err)
	assert.Equal(t, "payment-service/add-refund-endpoint.yaml", res.Locator)

	child := env.load(t, res.Locator)
	assert.Equal(t, PlanTypeSubtask, child.PlanType)
	assert.Equal(t, PlanStatusPending, child.Status)
	assert.Equal(t, "small", child.WorkflowType)
	require.NotNil(t, child.ParentPlan)
	assert.Equal(t, ParentRef{PlanFile: parent, Task: "Payment service", Slug: "payment-service"}, *child.ParentPlan)

	p := env.load(t, parent)
	require.Len(t, p.Subtasks, 1)
	ref := p.Subtasks[0]
	assert.Equal(t, "add-refund-endpoint", ref.Slug)
	assert.Equal(t, SubtaskStatusIndependent, ref.Status)
	assert.Equal(t, ReferenceTypeIndependentPlan, ref.ReferenceType)
	assert.Equal(t, res.Locator, ref.PlanFile)

	again, err := env.manager.CreateSubtaskPlan(ctx, parent, "Add refund endpoint", SubtaskOptions{})
	require.NoError(t, err)
	assert.Equal(t, "payment-service/add-refund-endpoint-2.yaml", again.Locator)

	_, err = env.manager.CreateSubtaskPlan(ctx, "missing.yaml", "x", SubtaskOptions{})
	assert.ErrorIs(t, err, ErrPlanNotFound)

	_, err = env.manager.CreateSubtaskPlan(ctx, parent, " ", SubtaskOptions{})
	assert.ErrorIs(t, err, ErrTaskRequired)
}

func TestCreateSubtaskPlan_NestedUnderSubtask(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	root := env.createPlan(t, "Payments", "large")
	env.createPlan(t, "Child", "micro")

	child, err := env.manager.CreateSubtaskPlan(ctx, root, "Child", SubtaskOptions{})
	require.NoError(t, err)
	require.Equal(t, "payments/child.yaml", child.Locator)

	grandchild, err := env.manager.CreateSubtaskPlan(ctx, child.Locator, "Write migration", SubtaskOptions{})
	require.NoError(t, err)
	assert.Equal(t, "payments/child/write-migration.yaml", grandchild.Locator)

	exists, err := env.plans.Exists(ctx, "child/write-migration.yaml")
	require.NoError(t, err)
	assert.False(t, exists, "grandchild must not be filed under the top-level plan named child")
	assert.Equal(t, child.Locator, env.load(t, grandchild.Locator).ParentPlan.PlanFile)
}

func TestPromoteSubtask(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	created, err := env.manager.CreatePlan(ctx, CreatePlanRequest{
		Task:     "Search rewrite",
		Options:  PlanOptions{WorkflowType: "large", Priority: PriorityLow},
		Subtasks: []string{"Tokenizer"},
	})
	require.NoError(t, err)
	parent := created.Locator

	t.Run("inline reference is materialized", func(t *testing.T) {
		res, err := env.manager.PromoteSubtask(ctx, parent, "tokenizer")
		require.NoError(t, err)
		assert.Equal(t, "search-rewrite/tokenizer.yaml", res.Locator)

		child := env.load(t, res.Locator)
		assert.Equal(t, PlanStatusActive, child.Status)
		assert.Equal(t, PlanTypePlan, child.PlanType)
		assert.Equal(t, PriorityLow, child.Priority)
		assert.Equal(t, "search-rewrite", child.ParentPlan.Slug)

		ref := env.load(t, parent).Subtasks[0]
		assert.Equal(t, SubtaskStatusPromoted, ref.Status)
		assert.Equal(t, ReferenceTypeIndependentPlan, ref.ReferenceType)
		assert.Equal(t, res.Locator, ref.PlanFile)
	})

	t.Run("independent subtask plan is activated", func(t *testing.T) {
		sub, err := env.manager.CreateSubtaskPlan(ctx, parent, "Ranking", SubtaskOptions{})
		require.NoError(t, err)
		assert.Equal(t, PlanStatusPending, env.load(t, sub.Locator).Status)

		res, err := env.manager.PromoteSubtask(ctx, parent, "ranking")
		require.NoError(t, err)
		assert.Equal(t, sub.Locator, res.Locator)

		child := env.load(t, sub.Locator)
		assert.Equal(t, PlanStatusActive, child.Status)
		assert.Equal(t, PlanTypePlan, child.PlanType)
	})

	t.Run("already promoted", func(t *testing.T) {
		_, err := env.manager.PromoteSubtask(ctx, parent, "tokenizer")
		assert.ErrorIs(t, err, ErrAlreadyPromoted)
	})

	t.Run("unknown subtask", func(t *testing.T) {
		_, err := env.manager.PromoteSubtask(ctx, parent, "nope")
		assert.ErrorIs(t, err, ErrSubtaskNotFound)
	})
}

func TestRecordFixCycle(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	locator := env.createPlan(t, "Importer", "small")

	_, err := env.manager.UpdateStage(ctx, locator, StageValidation, UpdateOptions{Force: true})
	require.NoError(t, err)
	require.Equal(t, PlanStatusCompleted, env.load(t, locator).Status)

	res, err := env.manager.RecordFixCycle(ctx, locator, []string{"nil map write", "flaky test"})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Cycle)
	assert.Equal(t, "importer/fix-validation-issues-cycle-1-for-importer.yaml", res.Subtask.Locator)

	sub := env.load(t, res.Subtask.Locator)
	assert.Equal(t, "small", sub.WorkflowType)
	assert.Equal(t, PriorityHigh, sub.Priority)

	plan := env.load(t, locator)
	assert.Equal(t, PlanStatusActive, plan.Status)
	sp := stage(t, plan, StageValidation)
	assert.False(t, sp.Complete)

	status, _ := sp.Get(FieldValidationStatus)
	assert.Equal(t, string(ValidationAwaitingFixes), status)
	issues, _ := sp.Get(FieldIssuesFound)
	assert.Equal(t, []any{"nil map write", "flaky test"}, issues)

	cycles, _ := sp.Get(FieldFixCycles)
	require.Len(t, cycles, 1)
	cycle := cycles.([]any)[0].(map[string]any)
	assert.Equal(t, 1, cycle["cycle"])
	assert.Equal(t, res.Subtask.Locator, cycle["subtask_plan"])

	second, err := env.manager.RecordFixCycle(ctx, locator, []string{"lint"})
	require.NoError(t, err)
	assert.Equal(t, 2, second.Cycle)
	issues, _ = stage(t, env.load(t, locator), StageValidation).Get(FieldIssuesFound)
	assert.Len(t, issues, 3)
}

func TestRecordFixCycle_Errors(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	micro := env.createPlan(t, "No validation", "micro")
	_, err := env.manager.RecordFixCycle(ctx, micro, []string{"x"})
	assert.ErrorIs(t, err, ErrStageNotFound)

	_, err = env.manager.RecordFixCycle(ctx, micro, nil)
	assert.ErrorIs(t, err, ErrIssuesRequired)
}
