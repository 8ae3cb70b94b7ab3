package workflow

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"
)

// UpdateOptions controls a stage update.
type UpdateOptions struct {
	// Force allows jumping over intermediate stages that are not complete.
	Force bool
	// LeaveIncomplete keeps the target stage's complete flag untouched.
	LeaveIncomplete bool
	// SectionData is merged into the target stage's record. Mapping values are
	// merged one level deep; everything else replaces the existing value.
	SectionData map[string]any
}

// UpdateResult is the outcome of a successful stage update.
type UpdateResult struct {
	Stage     string     `json:"stage"`
	UpdatedAt time.Time  `json:"updated_at"`
	Status    PlanStatus `json:"status"`
	Warnings  []string   `json:"warnings"`
}

// UpdateStage moves the plan stored under locator to target, merges section
// data, recomputes the plan status, and rewrites the record. Nothing is
// written when validation fails.
func (m *Manager) UpdateStage(ctx context.Context, locator, target string, opts UpdateOptions) (*UpdateResult, error) {
	target = strings.TrimSpace(target)
	if target == "" {
		return nil, fmt.Errorf("%w: target stage is required", ErrStageNotFound)
	}

	unlock := m.lockPlan(locator)
	defer unlock()

	plan, err := m.LoadPlan(ctx, locator)
	if err != nil {
		return nil, err
	}

	from := plan.CurrentStage
	warnings, err := ValidateTransition(plan, target, opts.Force)
	if err != nil {
		m.logger.Debug("Rejected stage transition",
			"locator", locator, "from", from, "to", target, "error", err)
		return nil, err
	}

	warnings = append(warnings, ApplyUpdate(plan, target, opts, m.now().UTC())...)

	if err := m.SavePlan(ctx, locator, plan); err != nil {
		return nil, err
	}

	m.logger.Info("Updated plan stage",
		"locator", locator,
		"from", from,
		"to", target,
		"status", plan.Status,
		"warnings", len(warnings))

	return &UpdateResult{
		Stage:     target,
		UpdatedAt: plan.UpdatedAt,
		Status:    plan.Status,
		Warnings:  warnings,
	}, nil
}

// ValidateTransition checks a move from the plan's current stage to target
// against the canonical stage ordering. Soft conditions come back as warnings;
// only a forward jump over incomplete stages without force is an error.
func ValidateTransition(plan *Plan, target string, force bool) ([]string, error) {
	warnings := []string{}
	current := plan.CurrentStage

	if !IsStandardStage(target) {
		warnings = append(warnings, fmt.Sprintf("%q is a custom stage (not one of the standard stages)", target))
	}

	currentIndex := StageIndex(current)
	targetIndex := StageIndex(target)

	switch {
	case currentIndex < 0 || targetIndex < 0:
		warnings = append(warnings, fmt.Sprintf("stage ordering cannot be validated for %s -> %s", current, target))

	case targetIndex < currentIndex:
		warnings = append(warnings, fmt.Sprintf("moving backwards from %s to %s", current, target))

	case targetIndex > currentIndex+1:
		var missing []string
		for i := currentIndex + 1; i < targetIndex; i++ {
			stage := StandardStages[i]
			sp, ok := plan.Progress.Get(stage)
			if ok && !sp.Complete {
				missing = append(missing, stage)
			}
		}
		switch {
		case len(missing) > 0 && !force:
			return nil, &StageOrderError{From: current, To: target, Missing: missing}
		case len(missing) > 0:
			warnings = append(warnings, fmt.Sprintf("forcing jump from %s to %s, skipping: %s",
				current, target, strings.Join(missing, ", ")))
		default:
			warnings = append(warnings, fmt.Sprintf("jumping from %s to %s (intermediate stages complete)", current, target))
		}
	}

	switch plan.Status {
	case PlanStatusCompleted:
		warnings = append(warnings, "plan is already completed, updating anyway")
	case PlanStatusFailed:
		warnings = append(warnings, "plan is marked failed, updating anyway")
	}

	return warnings, nil
}

// ApplyUpdate mutates plan for a validated move to target and returns any
// warnings produced along the way.
func ApplyUpdate(plan *Plan, target string, opts UpdateOptions, now time.Time) []string {
	var warnings []string
	prevStatus := plan.Status

	currentIndex := StageIndex(plan.CurrentStage)
	targetIndex := StageIndex(target)
	if currentIndex >= 0 && targetIndex > currentIndex {
		for i := 0; i < targetIndex; i++ {
			if sp, ok := plan.Progress.Get(StandardStages[i]); ok {
				sp.SetComplete(true)
			}
		}
	}

	plan.CurrentStage = target

	if opts.SectionData != nil {
		sp := plan.Progress.Ensure(target)
		warnings = append(warnings, MergeSectionData(sp, opts.SectionData)...)
	}

	if !opts.LeaveIncomplete {
		plan.Progress.Ensure(target).SetComplete(true)
	}

	if plan.Progress.AllComplete() {
		plan.Status = PlanStatusCompleted
		warnings = append(warnings, "all stages complete, plan marked completed")
	} else if prevStatus == PlanStatusCompleted {
		plan.Status = PlanStatusActive
		warnings = append(warnings, "status changed from completed to active")
	}

	plan.UpdatedAt = now
	return warnings
}

// MergeSectionData merges data into a stage record. When both the existing
// and the new value of a key are mappings, the new keys are laid over the old
// ones (one level only). Any other combination replaces the existing value.
func MergeSectionData(sp *StageProgress, data map[string]any) []string {
	var warnings []string

	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		value := data[key]
		if key == FieldComplete {
			if b, ok := value.(bool); ok {
				sp.SetComplete(b)
			} else {
				warnings = append(warnings, fmt.Sprintf("ignoring non-boolean %q value in section data", FieldComplete))
			}
			continue
		}

		existing, exists := sp.Get(key)
		oldMap, oldIsMap := asMap(existing)
		newMap, newIsMap := asMap(value)
		if exists && oldIsMap && newIsMap {
			merged := make(map[string]any, len(oldMap)+len(newMap))
			for k, v := range oldMap {
				merged[k] = v
			}
			for k, v := range newMap {
				merged[k] = v
			}
			sp.Set(key, merged)
			continue
		}
		sp.Set(key, value)
	}
	return warnings
}

// asMap normalizes the mapping types produced by JSON and YAML decoding.
func asMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case map[any]any:
		out := make(map[string]any, len(m))
		for k, val := range m {
			out[fmt.Sprint(k)] = val
		}
		return out, true
	default:
		return nil, false
	}
}
