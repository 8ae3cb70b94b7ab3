package workflow

import (
	"context"
	"time"
)

// PlanOptions controls how a new plan is generated.
type PlanOptions struct {
	// WorkflowType names a catalog entry. Defaults to "medium".
	WorkflowType string
	// Priority defaults to medium.
	Priority Priority
	// Status overrides the default (pending for subtasks, active otherwise).
	Status PlanStatus
	// PlanType marks the plan as a top-level plan or a subtask.
	PlanType PlanType
	// InitialStage overrides the workflow's first step.
	InitialStage string
}

// Generator builds new plan records from the workflow catalog.
type Generator struct {
	catalog *Catalog
	now     func() time.Time
}

// NewGenerator creates a generator. A nil clock uses time.Now.
func NewGenerator(catalog *Catalog, now func() time.Time) *Generator {
	if now == nil {
		now = time.Now
	}
	return &Generator{catalog: catalog, now: now}
}

// Generate creates a plan for task with every stage of its workflow
// pre-populated from the stage registry. Only catalog load errors fail it.
func (g *Generator) Generate(ctx context.Context, task, slug string, opts PlanOptions) (*Plan, error) {
	workflowType := opts.WorkflowType
	if workflowType == "" {
		workflowType = DefaultWorkflowType
	}

	cfg, err := g.catalog.Load(ctx)
	if err != nil {
		return nil, err
	}
	steps := cfg.StepsFor(workflowType)

	initialStage := opts.InitialStage
	if initialStage == "" {
		if len(steps) > 0 {
			initialStage = steps[0]
		} else {
			initialStage = StageScopeAnalysis
		}
	}

	status := opts.Status
	if status == "" {
		status = PlanStatusActive
		if opts.PlanType == PlanTypeSubtask {
			status = PlanStatusPending
		}
	}

	priority := opts.Priority
	if priority == "" {
		priority = PriorityMedium
	}

	now := g.now().UTC()
	return &Plan{
		Task:         task,
		Slug:         slug,
		WorkflowType: workflowType,
		CurrentStage: initialStage,
		Status:       status,
		Priority:     priority,
		PlanType:     opts.PlanType,
		CreatedAt:    now,
		UpdatedAt:    now,
		Subtasks:     []SubtaskRef{},
		Progress:     NewProgress(steps),
	}, nil
}
