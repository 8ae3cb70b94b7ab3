package workflow

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// SubtaskOptions controls a subtask plan.
type SubtaskOptions struct {
	WorkflowType string
	Priority     Priority
}

// CreateSubtaskPlan files a new subtask plan under the parent stored at
// parentLocator and records an independent_plan reference on the parent.
func (m *Manager) CreateSubtaskPlan(ctx context.Context, parentLocator, description string, opts SubtaskOptions) (*CreatePlanResult, error) {
	description = strings.TrimSpace(description)
	if description == "" {
		return nil, ErrTaskRequired
	}

	unlock := m.lockPlan(parentLocator)
	defer unlock()

	parent, err := m.LoadPlan(ctx, parentLocator)
	if err != nil {
		return nil, err
	}

	slug := GenerateSlug(description)
	if slug == "" {
		return nil, fmt.Errorf("%w (subtask %q)", ErrSlugRequired, description)
	}
	slug = uniqueSubtaskSlug(parent, slug)
	slug, err = m.resolveSlug(ctx, slug, true, func(s string) string { return SubtaskLocator(parentLocator, s) })
	if err != nil {
		return nil, err
	}

	priority := opts.Priority
	if priority == "" {
		priority = PriorityMedium
	}
	res, err := m.materializeSubtask(ctx, parentLocator, parent, description, slug, SubtaskOptions{
		WorkflowType: opts.WorkflowType,
		Priority:     priority,
	}, "", PlanTypeSubtask)
	if err != nil {
		return nil, err
	}

	parent.Subtasks = append(parent.Subtasks, SubtaskRef{
		Description:   description,
		Slug:          slug,
		Priority:      priority,
		Status:        SubtaskStatusIndependent,
		ReferenceType: ReferenceTypeIndependentPlan,
		PlanFile:      res.Locator,
		Created:       res.Plan.CreatedAt,
	})
	parent.UpdatedAt = m.now().UTC()
	if err := m.SavePlan(ctx, parentLocator, parent); err != nil {
		return nil, err
	}

	m.logger.Info("Created subtask plan",
		"parent", parentLocator,
		"locator", res.Locator,
		"workflow_type", res.Plan.WorkflowType)
	return res, nil
}

// materializeSubtask generates and writes the child plan for a subtask.
func (m *Manager) materializeSubtask(ctx context.Context, parentLocator string, parent *Plan, description, slug string, opts SubtaskOptions, status PlanStatus, planType PlanType) (*CreatePlanResult, error) {
	locator := SubtaskLocator(parentLocator, slug)

	unlock := m.lockPlan(locator)
	defer unlock()

	child, err := m.generator.Generate(ctx, description, slug, PlanOptions{
		WorkflowType: opts.WorkflowType,
		Priority:     opts.Priority,
		PlanType:     planType,
		Status:       status,
	})
	if err != nil {
		return nil, err
	}
	child.ParentPlan = &ParentRef{
		PlanFile: parentLocator,
		Task:     parent.Task,
		Slug:     parent.Slug,
	}

	if err := m.SavePlan(ctx, locator, child); err != nil {
		return nil, err
	}
	return &CreatePlanResult{Locator: locator, Plan: child}, nil
}

// PromoteSubtask turns a subtask into an active, independently tracked plan.
// Inline references are materialized first. The parent's reference is marked promoted.
func (m *Manager) PromoteSubtask(ctx context.Context, parentLocator, subtaskSlug string) (*CreatePlanResult, error) {
	unlock := m.lockPlan(parentLocator)
	defer unlock()

	parent, err := m.LoadPlan(ctx, parentLocator)
	if err != nil {
		return nil, err
	}

	idx := parent.FindSubtask(subtaskSlug)
	if idx < 0 {
		return nil, fmt.Errorf("%w: %s in %s", ErrSubtaskNotFound, subtaskSlug, parentLocator)
	}
	ref := &parent.Subtasks[idx]
	if ref.Status == SubtaskStatusPromoted {
		return nil, fmt.Errorf("%w: %s", ErrAlreadyPromoted, subtaskSlug)
	}

	now := m.now().UTC()
	var res *CreatePlanResult
	if ref.PlanFile == "" {
		res, err = m.materializeSubtask(ctx, parentLocator, parent, ref.Description, ref.Slug,
			SubtaskOptions{Priority: ref.Priority}, PlanStatusActive, PlanTypePlan)
		if err != nil {
			return nil, err
		}
	} else {
		res, err = m.activateSubtaskPlan(ctx, ref.PlanFile, now)
		if err != nil {
			return nil, err
		}
	}

	ref.Status = SubtaskStatusPromoted
	ref.ReferenceType = ReferenceTypeIndependentPlan
	ref.PlanFile = res.Locator
	parent.UpdatedAt = now
	if err := m.SavePlan(ctx, parentLocator, parent); err != nil {
		return nil, err
	}

	m.logger.Info("Promoted subtask", "parent", parentLocator, "locator", res.Locator)
	return res, nil
}

func (m *Manager) activateSubtaskPlan(ctx context.Context, locator string, now time.Time) (*CreatePlanResult, error) {
	unlock := m.lockPlan(locator)
	defer unlock()

	child, err := m.LoadPlan(ctx, locator)
	if err != nil {
		return nil, err
	}
	child.Status = PlanStatusActive
	child.PlanType = PlanTypePlan
	child.UpdatedAt = now
	if err := m.SavePlan(ctx, locator, child); err != nil {
		return nil, err
	}
	return &CreatePlanResult{Locator: locator, Plan: child}, nil
}

// FixCycleResult describes a recorded validation fix cycle.
type FixCycleResult struct {
	Cycle   int
	Subtask *CreatePlanResult
}

// RecordFixCycle pairs a list of validation issues with a new subtask plan
// meant to resolve them. The validation stage is set to awaiting_fixes and
// left incomplete.
func (m *Manager) RecordFixCycle(ctx context.Context, locator string, issues []string) (*FixCycleResult, error) {
	if len(issues) == 0 {
		return nil, ErrIssuesRequired
	}

	plan, err := m.LoadPlan(ctx, locator)
	if err != nil {
		return nil, err
	}
	sp, ok := plan.Progress.Get(StageValidation)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrStageNotFound, StageValidation)
	}
	cycle := len(listField(sp, FieldFixCycles)) + 1

	desc := fmt.Sprintf("Fix validation issues cycle %d for %s", cycle, plan.Task)
	sub, err := m.CreateSubtaskPlan(ctx, locator, desc, SubtaskOptions{
		WorkflowType: "small",
		Priority:     PriorityHigh,
	})
	if err != nil {
		return nil, err
	}

	unlock := m.lockPlan(locator)
	defer unlock()

	plan, err = m.LoadPlan(ctx, locator)
	if err != nil {
		return nil, err
	}
	sp = plan.Progress.Ensure(StageValidation)

	issueList := make([]any, 0, len(issues))
	for _, issue := range issues {
		issueList = append(issueList, issue)
	}
	now := m.now().UTC()

	sp.Set(FieldFixCycles, append(listField(sp, FieldFixCycles), map[string]any{
		"cycle":        cycle,
		"issues":       issueList,
		"subtask_plan": sub.Locator,
		"created_at":   now.Format(time.RFC3339),
	}))
	sp.Set(FieldIssuesFound, append(listField(sp, FieldIssuesFound), issueList...))
	sp.Set(FieldValidationStatus, string(ValidationAwaitingFixes))
	sp.SetComplete(false)
	if plan.Status == PlanStatusCompleted {
		plan.Status = PlanStatusActive
	}
	plan.UpdatedAt = now

	if err := m.SavePlan(ctx, locator, plan); err != nil {
		return nil, err
	}

	m.logger.Info("Recorded fix cycle", "locator", locator, "cycle", cycle, "subtask", sub.Locator)
	return &FixCycleResult{Cycle: cycle, Subtask: sub}, nil
}

// listField returns a sequence field, or nil when absent or not a sequence.
func listField(sp *StageProgress, key string) []any {
	raw, ok := sp.Get(key)
	if !ok {
		return nil
	}
	list, _ := raw.([]any)
	return list
}
