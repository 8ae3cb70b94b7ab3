package tools

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/c360studio/semplan/workflow"
)

// Tool names.
const (
	ToolCreatePlan          = "create_plan"
	ToolCreateSubtaskPlan   = "create_subtask_plan"
	ToolUpdatePlan          = "update_plan"
	ToolReadPlan            = "read_plan"
	ToolListPlans           = "list_plans"
	ToolPromoteSubtask      = "promote_subtask"
	ToolNextSteps           = "get_workflow_next_steps"
	ToolCreateWorkflowsFile = "create_workflows_file"
	ToolListWorkflows       = "list_workflows"
	ToolUpdateChecklistItem = "update_checklist_item"
	ToolAddChecklistItem    = "add_checklist_item"
	ToolRecordFixCycle      = "record_fix_cycle"
)

// PlanExecutor implements the plan tools on top of a workflow.Manager.
type PlanExecutor struct {
	manager *workflow.Manager
}

// NewPlanExecutor creates a new plan tool executor.
func NewPlanExecutor(manager *workflow.Manager) *PlanExecutor {
	return &PlanExecutor{manager: manager}
}

// Execute executes a plan tool call.
func (e *PlanExecutor) Execute(ctx context.Context, call ToolCall) (ToolResult, error) {
	var handler func(context.Context, map[string]any) (string, []string, error)
	switch call.Name {
	case ToolCreatePlan:
		handler = e.createPlan
	case ToolCreateSubtaskPlan:
		handler = e.createSubtaskPlan
	case ToolUpdatePlan:
		handler = e.updatePlan
	case ToolReadPlan:
		handler = e.readPlan
	case ToolListPlans:
		handler = e.listPlans
	case ToolPromoteSubtask:
		handler = e.promoteSubtask
	case ToolNextSteps:
		handler = e.nextSteps
	case ToolCreateWorkflowsFile:
		handler = e.createWorkflowsFile
	case ToolListWorkflows:
		handler = e.listWorkflows
	case ToolUpdateChecklistItem:
		handler = e.updateChecklistItem
	case ToolAddChecklistItem:
		handler = e.addChecklistItem
	case ToolRecordFixCycle:
		handler = e.recordFixCycle
	default:
		return ToolResult{
			CallID: call.ID,
			Error:  fmt.Sprintf("unknown tool: %s", call.Name),
		}, fmt.Errorf("unknown tool: %s", call.Name)
	}

	args := call.Arguments
	if args == nil {
		args = map[string]any{}
	}
	content, warnings, err := handler(ctx, args)
	if err != nil {
		return ToolResult{CallID: call.ID, Error: errorMessage(err)}, nil
	}
	return ToolResult{CallID: call.ID, Content: content, Warnings: warnings}, nil
}

// errorMessage renders a domain failure for the caller, with a hint where
// the caller can recover.
func errorMessage(err error) string {
	msg := err.Error()
	switch {
	case errors.Is(err, workflow.ErrPlanNotFound):
		return msg + " (create it with create_plan first)"
	case errors.Is(err, workflow.ErrPlanCorrupt), errors.Is(err, workflow.ErrCatalogCorrupt):
		return msg + " (the stored document needs manual repair)"
	}
	return msg
}

func (e *PlanExecutor) createPlan(ctx context.Context, args map[string]any) (string, []string, error) {
	task, err := requiredString(args, "task")
	if err != nil {
		return "", nil, err
	}
	slug, err := optionalString(args, "slug")
	if err != nil {
		return "", nil, err
	}
	workflowType, err := optionalString(args, "workflow_type")
	if err != nil {
		return "", nil, err
	}
	priority, err := optionalPriority(args)
	if err != nil {
		return "", nil, err
	}
	subtasks, err := optionalStrings(args, "subtasks")
	if err != nil {
		return "", nil, err
	}
	unique, err := optionalBool(args, "unique", false)
	if err != nil {
		return "", nil, err
	}

	res, err := e.manager.CreatePlan(ctx, workflow.CreatePlanRequest{
		Task: task,
		Slug: slug,
		Options: workflow.PlanOptions{
			WorkflowType: workflowType,
			Priority:     priority,
		},
		Subtasks: subtasks,
		Unique:   unique,
	})
	if err != nil {
		return "", nil, err
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Created plan %s\n", res.Locator)
	fmt.Fprintf(&sb, "Workflow: %s (%s)\n", res.Plan.WorkflowType, strings.Join(res.Plan.Progress.Stages(), " → "))
	fmt.Fprintf(&sb, "Current stage: %s\n", res.Plan.CurrentStage)
	if len(res.Plan.Subtasks) > 0 {
		fmt.Fprintf(&sb, "Inline subtasks: %d\n", len(res.Plan.Subtasks))
	}
	return sb.String(), nil, nil
}

func (e *PlanExecutor) createSubtaskPlan(ctx context.Context, args map[string]any) (string, []string, error) {
	parent, err := planLocator(args, "parent")
	if err != nil {
		return "", nil, err
	}
	description, err := requiredString(args, "description")
	if err != nil {
		return "", nil, err
	}
	workflowType, err := optionalString(args, "workflow_type")
	if err != nil {
		return "", nil, err
	}
	priority, err := optionalPriority(args)
	if err != nil {
		return "", nil, err
	}

	res, err := e.manager.CreateSubtaskPlan(ctx, parent, description, workflow.SubtaskOptions{
		WorkflowType: workflowType,
		Priority:     priority,
	})
	if err != nil {
		return "", nil, err
	}
	return fmt.Sprintf("Created subtask plan %s under %s (workflow %s, status %s)\n",
		res.Locator, parent, res.Plan.WorkflowType, res.Plan.Status), nil, nil
}

func (e *PlanExecutor) updatePlan(ctx context.Context, args map[string]any) (string, []string, error) {
	locator, err := planLocator(args, "plan")
	if err != nil {
		return "", nil, err
	}
	stage, err := requiredString(args, "stage")
	if err != nil {
		return "", nil, err
	}
	force, err := optionalBool(args, "force", false)
	if err != nil {
		return "", nil, err
	}
	leaveIncomplete, err := optionalBool(args, "leave_incomplete", false)
	if err != nil {
		return "", nil, err
	}
	sectionData, err := optionalObject(args, "section_data")
	if err != nil {
		return "", nil, err
	}

	res, err := e.manager.UpdateStage(ctx, locator, stage, workflow.UpdateOptions{
		Force:           force,
		LeaveIncomplete: leaveIncomplete,
		SectionData:     sectionData,
	})
	if err != nil {
		return "", nil, err
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Updated %s: stage %s, status %s\n", locator, res.Stage, res.Status)
	if len(sectionData) > 0 {
		fmt.Fprintf(&sb, "Merged fields: %s\n", formatSectionKeys(sectionData))
	}
	for _, w := range res.Warnings {
		fmt.Fprintf(&sb, "Warning: %s\n", w)
	}
	return sb.String(), res.Warnings, nil
}

func (e *PlanExecutor) readPlan(ctx context.Context, args map[string]any) (string, []string, error) {
	locator, err := planLocator(args, "plan")
	if err != nil {
		return "", nil, err
	}
	plan, err := e.manager.LoadPlan(ctx, locator)
	if err != nil {
		return "", nil, err
	}
	return FormatPlan(locator, plan, e.manager.NextSteps(ctx, plan)), nil, nil
}

func (e *PlanExecutor) listPlans(ctx context.Context, args map[string]any) (string, []string, error) {
	status, err := optionalStatus(args)
	if err != nil {
		return "", nil, err
	}
	workflowType, err := optionalString(args, "workflow_type")
	if err != nil {
		return "", nil, err
	}
	pattern, err := optionalString(args, "pattern")
	if err != nil {
		return "", nil, err
	}
	includeSubtasks, err := optionalBool(args, "include_subtasks", false)
	if err != nil {
		return "", nil, err
	}

	res, err := e.manager.ListPlans(ctx, workflow.ListFilter{
		Status:          status,
		WorkflowType:    workflowType,
		Pattern:         pattern,
		IncludeSubtasks: includeSubtasks,
	})
	if err != nil {
		return "", nil, err
	}

	var warnings []string
	for _, loadErr := range res.Errors {
		warnings = append(warnings, loadErr.Error())
	}
	return FormatPlanList(res), warnings, nil
}

func (e *PlanExecutor) promoteSubtask(ctx context.Context, args map[string]any) (string, []string, error) {
	parent, err := planLocator(args, "parent")
	if err != nil {
		return "", nil, err
	}
	subtask, err := requiredString(args, "subtask")
	if err != nil {
		return "", nil, err
	}

	res, err := e.manager.PromoteSubtask(ctx, parent, subtask)
	if err != nil {
		return "", nil, err
	}
	return fmt.Sprintf("Promoted subtask %s to plan %s (status %s)\n", subtask, res.Locator, res.Plan.Status), nil, nil
}

// nextSteps answers either for a stored plan or for an explicit
// workflow_type/current_stage pair.
func (e *PlanExecutor) nextSteps(ctx context.Context, args map[string]any) (string, []string, error) {
	if _, ok := args["plan"]; ok {
		locator, err := planLocator(args, "plan")
		if err != nil {
			return "", nil, err
		}
		plan, err := e.manager.LoadPlan(ctx, locator)
		if err != nil {
			return "", nil, err
		}
		return FormatNextSteps(plan.WorkflowType, e.manager.NextSteps(ctx, plan)), nil, nil
	}

	workflowType, err := optionalString(args, "workflow_type")
	if err != nil {
		return "", nil, err
	}
	if workflowType == "" {
		workflowType = workflow.DefaultWorkflowType
	}
	current, err := requiredString(args, "current_stage")
	if err != nil {
		return "", nil, argError("either plan or current_stage is required")
	}
	complete, err := optionalBool(args, "complete", false)
	if err != nil {
		return "", nil, err
	}

	next := e.manager.Catalog().NextSteps(ctx, workflowType, current, complete)
	return FormatNextSteps(workflowType, next), nil, nil
}

func (e *PlanExecutor) createWorkflowsFile(ctx context.Context, args map[string]any) (string, []string, error) {
	force, err := optionalBool(args, "force", false)
	if err != nil {
		return "", nil, err
	}
	catalog := e.manager.Catalog()
	if err := catalog.CreateFile(ctx, force); err != nil {
		return "", nil, err
	}
	return fmt.Sprintf("Wrote default workflows to %s\n", catalog.Key()), nil, nil
}

func (e *PlanExecutor) listWorkflows(ctx context.Context, _ map[string]any) (string, []string, error) {
	summaries, err := e.manager.Catalog().List(ctx)
	if err != nil {
		return "", nil, err
	}
	return FormatWorkflows(summaries), nil, nil
}

func (e *PlanExecutor) updateChecklistItem(ctx context.Context, args map[string]any) (string, []string, error) {
	locator, err := planLocator(args, "plan")
	if err != nil {
		return "", nil, err
	}
	stage, err := requiredString(args, "stage")
	if err != nil {
		return "", nil, err
	}
	pattern, err := requiredString(args, "pattern")
	if err != nil {
		return "", nil, err
	}
	complete, err := optionalBool(args, "complete", true)
	if err != nil {
		return "", nil, err
	}
	newTask, err := optionalString(args, "new_task")
	if err != nil {
		return "", nil, err
	}

	n, err := e.manager.UpdateChecklistItem(ctx, locator, stage, pattern, complete, newTask)
	if err != nil {
		return "", nil, err
	}
	return fmt.Sprintf("Updated %d checklist item(s) in %s matching %q (complete=%t)\n", n, stage, pattern, complete), nil, nil
}

func (e *PlanExecutor) addChecklistItem(ctx context.Context, args map[string]any) (string, []string, error) {
	locator, err := planLocator(args, "plan")
	if err != nil {
		return "", nil, err
	}
	stage, err := requiredString(args, "stage")
	if err != nil {
		return "", nil, err
	}
	task, err := requiredString(args, "task")
	if err != nil {
		return "", nil, err
	}
	complete, err := optionalBool(args, "complete", false)
	if err != nil {
		return "", nil, err
	}
	position, err := optionalInt(args, "position")
	if err != nil {
		return "", nil, err
	}

	idx, err := e.manager.AddChecklistItem(ctx, locator, stage, task, complete, position)
	if err != nil {
		return "", nil, err
	}
	return fmt.Sprintf("Added checklist item %q to %s at position %d\n", task, stage, idx), nil, nil
}

func (e *PlanExecutor) recordFixCycle(ctx context.Context, args map[string]any) (string, []string, error) {
	locator, err := planLocator(args, "plan")
	if err != nil {
		return "", nil, err
	}
	issues, err := optionalStrings(args, "issues")
	if err != nil {
		return "", nil, err
	}

	res, err := e.manager.RecordFixCycle(ctx, locator, issues)
	if err != nil {
		return "", nil, err
	}
	return fmt.Sprintf("Recorded fix cycle %d for %s with %d issue(s); fixes tracked in %s\n",
		res.Cycle, locator, len(issues), res.Subtask.Locator), nil, nil
}
