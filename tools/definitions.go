package tools

import "github.com/c360studio/semplan/workflow"

func stringProp(description string) map[string]any {
	return map[string]any{"type": "string", "description": description}
}

func boolProp(description string) map[string]any {
	return map[string]any{"type": "boolean", "description": description}
}

func planProp() map[string]any {
	return stringProp("Plan slug or locator (e.g. 'add-user-authentication' or 'parent-plan/subtask')")
}

var (
	priorityProp = map[string]any{
		"type":        "string",
		"enum":        []string{string(workflow.PriorityHigh), string(workflow.PriorityMedium), string(workflow.PriorityLow)},
		"description": "Plan priority (default medium)",
	}
	workflowTypeProp = stringProp("Workflow type from the catalog (micro, small, medium, large, epic, or a custom entry). Unknown types use the default workflow.")
)

// ListTools returns the tool definitions for plan operations.
func (e *PlanExecutor) ListTools() []ToolDefinition {
	return []ToolDefinition{
		{
			Name:        ToolCreatePlan,
			Description: "Create a development plan for a task. The plan's stages come from the chosen workflow type; the slug is derived from the task unless given.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"task":          stringProp("Human-readable description of the task"),
					"slug":          stringProp("Optional identifier; derived from task when omitted"),
					"workflow_type": workflowTypeProp,
					"priority":      priorityProp,
					"subtasks": map[string]any{
						"type":        "array",
						"items":       map[string]any{"type": "string"},
						"description": "Optional subtask descriptions recorded as inline references",
					},
					"unique": boolProp("Append -2, -3, ... to the slug instead of failing when a plan already exists"),
				},
				"required": []string{"task"},
			},
		},
		{
			Name:        ToolCreateSubtaskPlan,
			Description: "Create a subtask plan filed under a parent plan. The parent records a reference to the new plan.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"parent":        planProp(),
					"description":   stringProp("Description of the subtask"),
					"workflow_type": workflowTypeProp,
					"priority":      priorityProp,
				},
				"required": []string{"parent", "description"},
			},
		},
		{
			Name: ToolUpdatePlan,
			Description: "Move a plan to a stage and merge stage data. Advancing marks earlier stages complete. " +
				"Jumping over incomplete stages fails unless force is true. Mapping fields are merged one level deep; other fields are replaced.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"plan":             planProp(),
					"stage":            stringProp("Target stage name (standard or custom)"),
					"force":            boolProp("Allow jumping over incomplete intermediate stages"),
					"leave_incomplete": boolProp("Do not mark the target stage complete"),
					"section_data": map[string]any{
						"type":        "object",
						"description": "Fields to merge into the target stage (e.g. findings, checklist, changes, results)",
					},
				},
				"required": []string{"plan", "stage"},
			},
		},
		{
			Name:        ToolReadPlan,
			Description: "Show a plan: status, stage progress, checklists, subtasks and the next step.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"plan": planProp(),
				},
				"required": []string{"plan"},
			},
		},
		{
			Name:        ToolListPlans,
			Description: "List stored plans, optionally filtered by status, workflow type or a glob pattern over locators.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"status":           stringProp("Only plans with this status"),
					"workflow_type":    stringProp("Only plans using this workflow type"),
					"pattern":          stringProp("Glob over locators, e.g. 'auth-*' or 'billing/**'"),
					"include_subtasks": boolProp("Include subtask plans filed under their parents"),
				},
			},
		},
		{
			Name:        ToolPromoteSubtask,
			Description: "Promote a subtask to an active, independently tracked plan.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"parent":  planProp(),
					"subtask": stringProp("Slug of the subtask reference on the parent"),
				},
				"required": []string{"parent", "subtask"},
			},
		},
		{
			Name:        ToolNextSteps,
			Description: "Report the current and next step of a workflow, for a stored plan or for an explicit workflow type and stage.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"plan":          planProp(),
					"workflow_type": workflowTypeProp,
					"current_stage": stringProp("Current stage name (when plan is not given)"),
					"complete":      boolProp("Whether the current stage is complete (when plan is not given)"),
				},
			},
		},
		{
			Name:        ToolCreateWorkflowsFile,
			Description: "Write the built-in workflow catalog to the workflows file so it can be customized.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"force": boolProp("Overwrite an existing workflows file"),
				},
			},
		},
		{
			Name:        ToolListWorkflows,
			Description: "List the workflow types in the catalog with their stages.",
			Parameters: map[string]any{
				"type":       "object",
				"properties": map[string]any{},
			},
		},
		{
			Name:        ToolUpdateChecklistItem,
			Description: "Mark checklist items in a stage complete or incomplete. Every item whose text contains the pattern (case-insensitive) is updated.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"plan":     planProp(),
					"stage":    stringProp("Stage holding the checklist"),
					"pattern":  stringProp("Case-insensitive substring of the item text"),
					"complete": boolProp("New completion state (default true)"),
					"new_task": stringProp("Optional replacement text for matched items"),
				},
				"required": []string{"plan", "stage", "pattern"},
			},
		},
		{
			Name:        ToolAddChecklistItem,
			Description: "Add an item to a stage checklist, creating the checklist if needed.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"plan":     planProp(),
					"stage":    stringProp("Stage to add the item to"),
					"task":     stringProp("Item text"),
					"complete": boolProp("Initial completion state"),
					"position": map[string]any{
						"type":        "integer",
						"description": "Zero-based insert position; out-of-range positions append",
					},
				},
				"required": []string{"plan", "stage", "task"},
			},
		},
		{
			Name:        ToolRecordFixCycle,
			Description: "Record validation issues as a fix cycle. A high-priority subtask plan is created for the fixes and validation is reopened.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"plan": planProp(),
					"issues": map[string]any{
						"type":        "array",
						"items":       map[string]any{"type": "string"},
						"description": "Issues found during validation",
					},
				},
				"required": []string{"plan", "issues"},
			},
		},
	}
}
