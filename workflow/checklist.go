package workflow

import (
	"context"
	"fmt"
	"strings"
)

// ChecklistItem is one {task, complete} entry in a stage checklist.
type ChecklistItem struct {
	Task     string `json:"task"`
	Complete bool   `json:"complete"`
}

// ChecklistItems reads a stage's checklist, skipping malformed entries.
// The second result is false when the stage has no checklist sequence.
func ChecklistItems(sp *StageProgress) ([]ChecklistItem, bool) {
	raw, ok := sp.Get(FieldChecklist)
	if !ok {
		return nil, false
	}
	list, ok := raw.([]any)
	if !ok {
		return nil, false
	}
	items := make([]ChecklistItem, 0, len(list))
	for _, entry := range list {
		m, ok := asMap(entry)
		if !ok {
			continue
		}
		task, _ := m["task"].(string)
		done, _ := m[FieldComplete].(bool)
		items = append(items, ChecklistItem{Task: task, Complete: done})
	}
	return items, true
}

// UpdateChecklistItem sets complete (and optionally replaces the text) on
// every checklist item in stage whose task contains pattern, ignoring case.
// It returns how many items were updated.
func (m *Manager) UpdateChecklistItem(ctx context.Context, locator, stage, pattern string, complete bool, newTask string) (int, error) {
	unlock := m.lockPlan(locator)
	defer unlock()

	plan, err := m.LoadPlan(ctx, locator)
	if err != nil {
		return 0, err
	}

	sp, ok := plan.Progress.Get(stage)
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrStageNotFound, stage)
	}
	raw, ok := sp.Get(FieldChecklist)
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrNoChecklist, stage)
	}
	list, ok := raw.([]any)
	if !ok {
		return 0, fmt.Errorf("%w: %s has a %T checklist", ErrNoChecklist, stage, raw)
	}

	needle := strings.ToLower(pattern)
	updated := 0
	for i, entry := range list {
		item, ok := asMap(entry)
		if !ok {
			continue
		}
		task, ok := item["task"].(string)
		if !ok || !strings.Contains(strings.ToLower(task), needle) {
			continue
		}
		item[FieldComplete] = complete
		if newTask != "" {
			item["task"] = newTask
		}
		list[i] = item
		updated++
	}
	if updated == 0 {
		return 0, fmt.Errorf("%w: %q in %s", ErrNoMatch, pattern, stage)
	}

	sp.Set(FieldChecklist, list)
	plan.UpdatedAt = m.now().UTC()
	if err := m.SavePlan(ctx, locator, plan); err != nil {
		return 0, err
	}

	m.logger.Info("Updated checklist items", "locator", locator, "stage", stage, "count", updated)
	return updated, nil
}

// AddChecklistItem inserts a checklist item into stage at insertAt when it
// is within bounds, otherwise appends it. A missing or null checklist is created.
// It returns the index the item was stored at.
func (m *Manager) AddChecklistItem(ctx context.Context, locator, stage, task string, complete bool, insertAt *int) (int, error) {
	unlock := m.lockPlan(locator)
	defer unlock()

	plan, err := m.LoadPlan(ctx, locator)
	if err != nil {
		return 0, err
	}

	sp, ok := plan.Progress.Get(stage)
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrStageNotFound, stage)
	}

	var list []any
	if raw, ok := sp.Get(FieldChecklist); ok && raw != nil {
		list, ok = raw.([]any)
		if !ok {
			return 0, fmt.Errorf("%w: %s has a %T checklist", ErrInvalidChecklist, stage, raw)
		}
	}

	item := map[string]any{"task": task, FieldComplete: complete}
	index := len(list)
	if insertAt != nil && *insertAt >= 0 && *insertAt <= len(list) {
		index = *insertAt
	}
	list = append(list, nil)
	copy(list[index+1:], list[index:])
	list[index] = item

	sp.Set(FieldChecklist, list)
	plan.UpdatedAt = m.now().UTC()
	if err := m.SavePlan(ctx, locator, plan); err != nil {
		return 0, err
	}

	m.logger.Info("Added checklist item", "locator", locator, "stage", stage, "index", index)
	return index, nil
}
