package tools

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/c360studio/semplan/workflow"
)

// FormatPlan renders a plan as a human-readable summary: header, stage list
// with completion markers, checklists, subtasks, and the next step.
func FormatPlan(locator string, plan *workflow.Plan, next workflow.NextSteps) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "# %s\n\n", plan.Task)
	fmt.Fprintf(&sb, "- Plan: %s (%s)\n", plan.Slug, locator)
	fmt.Fprintf(&sb, "- Workflow: %s\n", plan.WorkflowType)
	fmt.Fprintf(&sb, "- Status: %s\n", plan.Status)
	fmt.Fprintf(&sb, "- Priority: %s\n", plan.Priority)
	if plan.PlanType != "" {
		fmt.Fprintf(&sb, "- Type: %s\n", plan.PlanType)
	}
	fmt.Fprintf(&sb, "- Created: %s\n", formatTime(plan.CreatedAt))
	fmt.Fprintf(&sb, "- Updated: %s\n", formatTime(plan.UpdatedAt))
	if plan.ParentPlan != nil {
		fmt.Fprintf(&sb, "- Parent: %s (%s)\n", plan.ParentPlan.Task, plan.ParentPlan.PlanFile)
	}

	fmt.Fprintf(&sb, "\n## Progress (%d/%d complete)\n\n", plan.Progress.CompletedCount(), plan.Progress.Len())
	for _, name := range plan.Progress.Stages() {
		sp, _ := plan.Progress.Get(name)
		marker := " "
		if sp.Complete {
			marker = "✓"
		}
		line := fmt.Sprintf("%s %s", marker, name)
		if name == plan.CurrentStage {
			line += "  ← current"
		}
		sb.WriteString(line + "\n")

		if items, ok := workflow.ChecklistItems(sp); ok {
			for _, item := range items {
				box := "[ ]"
				if item.Complete {
					box = "[x]"
				}
				fmt.Fprintf(&sb, "    %s %s\n", box, item.Task)
			}
		}
		if status, ok := sp.Get(workflow.FieldValidationStatus); ok {
			if s, ok := status.(string); ok && s != "" {
				fmt.Fprintf(&sb, "    validation status: %s\n", s)
			}
		}
	}

	if len(plan.Subtasks) > 0 {
		sb.WriteString("\n## Subtasks\n\n")
		for _, ref := range plan.Subtasks {
			fmt.Fprintf(&sb, "- %s [%s, %s] %s", ref.Slug, ref.Status, ref.Priority, ref.Description)
			if ref.PlanFile != "" {
				fmt.Fprintf(&sb, " → %s", ref.PlanFile)
			}
			sb.WriteString("\n")
		}
	}

	sb.WriteString("\n")
	sb.WriteString(formatNextLine(next))
	return sb.String()
}

// FormatNextSteps renders the result of a next-step query.
func FormatNextSteps(workflowType string, next workflow.NextSteps) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Workflow: %s\n", workflowType)
	fmt.Fprintf(&sb, "Current step: %s\n", next.CurrentStep)
	sb.WriteString(formatNextLine(next))
	if len(next.RemainingSteps) > 0 {
		fmt.Fprintf(&sb, "Remaining: %s\n", strings.Join(next.RemainingSteps, " → "))
	}
	return sb.String()
}

func formatNextLine(next workflow.NextSteps) string {
	switch {
	case next.IsComplete:
		return "Next step: none, workflow complete\n"
	case next.NextStep == "":
		return fmt.Sprintf("Next step: finish %s\n", next.CurrentStep)
	default:
		return fmt.Sprintf("Next step: %s\n", next.NextStep)
	}
}

// FormatPlanList renders plan entries one per line.
func FormatPlanList(res *workflow.ListPlansResult) string {
	var sb strings.Builder
	if len(res.Plans) == 0 {
		sb.WriteString("No plans found.\n")
	} else {
		fmt.Fprintf(&sb, "%d plan(s):\n\n", len(res.Plans))
		for _, entry := range res.Plans {
			p := entry.Plan
			fmt.Fprintf(&sb, "- %s  [%s] %s/%s  %d/%d  %s\n",
				entry.Locator, p.Status, p.WorkflowType, p.CurrentStage,
				p.Progress.CompletedCount(), p.Progress.Len(), p.Task)
		}
	}
	if len(res.Errors) > 0 {
		fmt.Fprintf(&sb, "\n%d plan(s) could not be read:\n", len(res.Errors))
		for _, err := range res.Errors {
			fmt.Fprintf(&sb, "- %v\n", err)
		}
	}
	return sb.String()
}

// FormatWorkflows renders the workflow catalog.
func FormatWorkflows(summaries []workflow.WorkflowSummary) string {
	var sb strings.Builder
	sb.WriteString("Available workflows:\n\n")
	for _, s := range summaries {
		fmt.Fprintf(&sb, "- %s: %s\n", s.Name, strings.Join(s.Steps, " → "))
		if s.Description != "" {
			fmt.Fprintf(&sb, "  %s\n", s.Description)
		}
	}
	return sb.String()
}

// formatSectionKeys lists the keys merged by an update, for confirmation text.
func formatSectionKeys(data map[string]any) string {
	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return strings.Join(keys, ", ")
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "unknown"
	}
	return t.UTC().Format(time.RFC3339)
}
