package workflow

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// PlanStatus is the lifecycle status of a plan.
type PlanStatus string

// Plan statuses.
const (
	PlanStatusActive      PlanStatus = "active"
	PlanStatusPending     PlanStatus = "pending"
	PlanStatusCompleted   PlanStatus = "completed"
	PlanStatusFailed      PlanStatus = "failed"
	PlanStatusPromoted    PlanStatus = "promoted"
	PlanStatusIndependent PlanStatus = "independent"
)

// IsValid returns true if the status is a known value.
func (s PlanStatus) IsValid() bool {
	switch s {
	case PlanStatusActive, PlanStatusPending, PlanStatusCompleted,
		PlanStatusFailed, PlanStatusPromoted, PlanStatusIndependent:
		return true
	}
	return false
}

// String returns the string representation.
func (s PlanStatus) String() string {
	return string(s)
}

// Priority ranks plans against each other.
type Priority string

// Priorities.
const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// IsValid returns true if the priority is a known value.
func (p Priority) IsValid() bool {
	return p == PriorityHigh || p == PriorityMedium || p == PriorityLow
}

// PlanType distinguishes top-level plans from subtask plans.
type PlanType string

// Plan types.
const (
	PlanTypePlan    PlanType = "plan"
	PlanTypeSubtask PlanType = "subtask"
)

// Subtask reference statuses and reference types.
const (
	SubtaskStatusPending     = "pending"
	SubtaskStatusIndependent = "independent"
	SubtaskStatusPromoted    = "promoted"

	ReferenceTypeIndependentPlan = "independent_plan"
	ReferenceTypeInline          = "inline"
)

// Plan is the persisted record tracking one task through a workflow.
type Plan struct {
	Task         string       `yaml:"task" json:"task"`
	Slug         string       `yaml:"slug" json:"slug"`
	WorkflowType string       `yaml:"workflow_type" json:"workflow_type"`
	CurrentStage string       `yaml:"current_stage" json:"current_stage"`
	Status       PlanStatus   `yaml:"status" json:"status"`
	Priority     Priority     `yaml:"priority" json:"priority"`
	PlanType     PlanType     `yaml:"plan_type,omitempty" json:"plan_type,omitempty"`
	CreatedAt    time.Time    `yaml:"created_at" json:"created_at"`
	UpdatedAt    time.Time    `yaml:"updated_at" json:"updated_at"`
	ParentPlan   *ParentRef   `yaml:"parent_plan,omitempty" json:"parent_plan,omitempty"`
	Subtasks     []SubtaskRef `yaml:"subtasks" json:"subtasks"`
	Progress     Progress     `yaml:"progress" json:"-"`
}

// ParentRef points a subtask plan back at the plan it was decomposed from.
// It is lookup-only; the parent owns nothing through it.
type ParentRef struct {
	PlanFile string `yaml:"plan_file" json:"plan_file"`
	Task     string `yaml:"task" json:"task"`
	Slug     string `yaml:"slug" json:"slug"`
}

// SubtaskRef is a parent's record of one decomposed child task.
type SubtaskRef struct {
	Description   string    `yaml:"description" json:"description"`
	Slug          string    `yaml:"slug" json:"slug"`
	Priority      Priority  `yaml:"priority" json:"priority"`
	Status        string    `yaml:"status" json:"status"`
	ReferenceType string    `yaml:"reference_type" json:"reference_type"`
	PlanFile      string    `yaml:"plan_file,omitempty" json:"plan_file,omitempty"`
	Created       time.Time `yaml:"created" json:"created"`
}

// FindSubtask returns the index of the subtask reference with the given slug, or -1.
func (p *Plan) FindSubtask(slug string) int {
	for i := range p.Subtasks {
		if p.Subtasks[i].Slug == slug {
			return i
		}
	}
	return -1
}

// Validate checks the fields every persisted record must carry.
func (p *Plan) Validate() error {
	var missing []string
	if p.Task == "" {
		missing = append(missing, "task")
	}
	if p.Slug == "" {
		missing = append(missing, "slug")
	}
	if p.WorkflowType == "" {
		missing = append(missing, "workflow_type")
	}
	if p.CurrentStage == "" {
		missing = append(missing, "current_stage")
	}
	if p.Status == "" {
		missing = append(missing, "status")
	}
	if p.CreatedAt.IsZero() {
		missing = append(missing, "created_at")
	}
	if p.UpdatedAt.IsZero() {
		missing = append(missing, "updated_at")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing required fields: %s", ErrInvalidRecordStructure, strings.Join(missing, ", "))
	}

	for _, stage := range p.Progress.Stages() {
		sp, _ := p.Progress.Get(stage)
		if !sp.HasComplete() {
			return fmt.Errorf("%w: stage %s is missing the complete field", ErrInvalidRecordStructure, stage)
		}
	}
	return nil
}

// MaxSlugLength caps generated slugs.
const MaxSlugLength = 50

var (
	slugStripPattern  = regexp.MustCompile(`[^a-z0-9\s\p{Zs}-]+`)
	slugSpacePattern  = regexp.MustCompile(`[\s\p{Zs}]+`)
	slugHyphenPattern = regexp.MustCompile(`-+`)

	// slugPattern validates slugs: lowercase alphanumeric with hyphens, 1-50 chars.
	slugPattern = regexp.MustCompile(`^[a-z0-9]([a-z0-9-]{0,48}[a-z0-9])?$`)
)

// GenerateSlug derives a filename-safe identifier from free text.
// Characters other than ASCII letters, digits, whitespace and hyphens are dropped,
// so non-ASCII letters and underscores disappear. The result may be empty.
func GenerateSlug(text string) string {
	s := strings.ToLower(text)
	s = slugStripPattern.ReplaceAllString(s, "")
	s = slugSpacePattern.ReplaceAllString(s, "-")
	s = slugHyphenPattern.ReplaceAllString(s, "-")
	s = strings.Trim(s, "-")
	if len(s) > MaxSlugLength {
		s = strings.TrimRight(s[:MaxSlugLength], "-")
	}
	return s
}

// ValidateSlug checks if a slug is valid and safe for use in file paths.
func ValidateSlug(slug string) error {
	if slug == "" {
		return ErrSlugRequired
	}
	// Prevent path traversal attacks
	if strings.Contains(slug, "..") || strings.Contains(slug, "/") || strings.Contains(slug, "\\") {
		return ErrInvalidSlug
	}
	if !slugPattern.MatchString(slug) {
		return ErrInvalidSlug
	}
	return nil
}

// PlanFileExt is the extension of plan record documents.
const PlanFileExt = ".yaml"

// PlanLocator returns the store key for a top-level plan.
func PlanLocator(slug string) string {
	return slug + PlanFileExt
}

// SubtaskLocator returns the store key for a subtask plan filed under the
// parent stored at parentLocator. A subtask of "p/child.yaml" lands in "p/child/".
func SubtaskLocator(parentLocator, slug string) string {
	return strings.TrimSuffix(parentLocator, PlanFileExt) + "/" + slug + PlanFileExt
}
