package tools

import (
	"fmt"
	"math"
	"strings"

	"github.com/c360studio/semplan/workflow"
)

// argError is a problem with a call's arguments, reported as a tool error.
type argError string

func (e argError) Error() string { return string(e) }

func requiredString(args map[string]any, key string) (string, error) {
	s, ok := args[key].(string)
	if !ok || strings.TrimSpace(s) == "" {
		return "", argError(fmt.Sprintf("%s argument is required", key))
	}
	return s, nil
}

func optionalString(args map[string]any, key string) (string, error) {
	raw, ok := args[key]
	if !ok || raw == nil {
		return "", nil
	}
	s, ok := raw.(string)
	if !ok {
		return "", argError(fmt.Sprintf("%s must be a string", key))
	}
	return s, nil
}

func optionalBool(args map[string]any, key string, def bool) (bool, error) {
	raw, ok := args[key]
	if !ok || raw == nil {
		return def, nil
	}
	b, ok := raw.(bool)
	if !ok {
		return false, argError(fmt.Sprintf("%s must be a boolean", key))
	}
	return b, nil
}

// optionalInt accepts JSON numbers (float64) and Go integers.
func optionalInt(args map[string]any, key string) (*int, error) {
	raw, ok := args[key]
	if !ok || raw == nil {
		return nil, nil
	}
	var n int
	switch v := raw.(type) {
	case int:
		n = v
	case int64:
		n = int(v)
	case float64:
		if v != math.Trunc(v) {
			return nil, argError(fmt.Sprintf("%s must be an integer", key))
		}
		n = int(v)
	default:
		return nil, argError(fmt.Sprintf("%s must be an integer", key))
	}
	return &n, nil
}

func optionalStrings(args map[string]any, key string) ([]string, error) {
	raw, ok := args[key]
	if !ok || raw == nil {
		return nil, nil
	}
	switch v := raw.(type) {
	case []string:
		return v, nil
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, argError(fmt.Sprintf("%s must be a list of strings", key))
			}
			out = append(out, s)
		}
		return out, nil
	default:
		return nil, argError(fmt.Sprintf("%s must be a list of strings", key))
	}
}

func optionalObject(args map[string]any, key string) (map[string]any, error) {
	raw, ok := args[key]
	if !ok || raw == nil {
		return nil, nil
	}
	m, ok := raw.(map[string]any)
	if !ok {
		return nil, argError(fmt.Sprintf("%s must be an object", key))
	}
	return m, nil
}

func optionalPriority(args map[string]any) (workflow.Priority, error) {
	s, err := optionalString(args, "priority")
	if err != nil || s == "" {
		return "", err
	}
	p := workflow.Priority(strings.ToLower(s))
	if !p.IsValid() {
		return "", argError(fmt.Sprintf("invalid priority %q (expected high, medium or low)", s))
	}
	return p, nil
}

func optionalStatus(args map[string]any) (workflow.PlanStatus, error) {
	s, err := optionalString(args, "status")
	if err != nil || s == "" {
		return "", err
	}
	status := workflow.PlanStatus(strings.ToLower(s))
	if !status.IsValid() {
		return "", argError(fmt.Sprintf("invalid status %q", s))
	}
	return status, nil
}

// planLocator accepts a slug, a "parent/child" path, or a full locator.
func planLocator(args map[string]any, key string) (string, error) {
	s, err := requiredString(args, key)
	if err != nil {
		return "", err
	}
	s = strings.TrimSpace(s)
	if !strings.HasSuffix(s, workflow.PlanFileExt) {
		s += workflow.PlanFileExt
	}
	return s, nil
}
