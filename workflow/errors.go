package workflow

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for plan, catalog, and checklist operations.
var (
	ErrPlanNotFound           = errors.New("plan not found")
	ErrPlanCorrupt            = errors.New("plan file is corrupt")
	ErrPlanExists             = errors.New("plan already exists")
	ErrCatalogCorrupt         = errors.New("workflow catalog is corrupt")
	ErrAlreadyExists          = errors.New("file already exists")
	ErrStageOrderViolation    = errors.New("stage order violation")
	ErrInvalidRecordStructure = errors.New("invalid plan structure")
	ErrStageNotFound          = errors.New("stage not found in plan")
	ErrNoChecklist            = errors.New("stage has no checklist")
	ErrInvalidChecklist       = errors.New("checklist is not a list")
	ErrNoMatch                = errors.New("no checklist items matched")
	ErrSubtaskNotFound        = errors.New("subtask not found")
	ErrAlreadyPromoted        = errors.New("subtask already promoted")
	ErrTaskRequired           = errors.New("task description is required")
	ErrIssuesRequired         = errors.New("at least one issue is required")
	ErrSlugRequired           = errors.New("slug is required")
	ErrInvalidSlug            = errors.New("invalid slug: must be lowercase alphanumeric with hyphens, no path separators")
)

// StageOrderError reports a forward jump over stages that are not complete.
// It unwraps to ErrStageOrderViolation.
type StageOrderError struct {
	From    string
	To      string
	Missing []string
}

func (e *StageOrderError) Error() string {
	return fmt.Sprintf("cannot move from %s to %s: intermediate stages not complete: %s (retry with force=true to skip them)",
		e.From, e.To, strings.Join(e.Missing, ", "))
}

// Unwrap lets errors.Is match ErrStageOrderViolation.
func (e *StageOrderError) Unwrap() error {
	return ErrStageOrderViolation
}
