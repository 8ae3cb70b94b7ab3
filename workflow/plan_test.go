package workflow

import (
	"context"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateSlug(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"simple", "Add user authentication", "add-user-authentication"},
		{"punctuation", "Fix bug #42: crash on save!", "fix-bug-42-crash-on-save"},
		{"collapses_hyphens", "a -- b --- c", "a-b-c"},
		{"trims_hyphens", "--leading and trailing--", "leading-and-trailing"},
		{"underscores_dropped", "snake_case_name", "snakecasename"},
		{"non_ascii_dropped", "Café résumé", "caf-rsum"},
		{"tabs_and_newlines", "one\ttwo\nthree", "one-two-three"},
		{"non_breaking_space", "hello\u00a0world", "hello-world"},
		{"ideographic_space", "alpha\u3000beta", "alpha-beta"},
		{"empty", "", ""},
		{"whitespace_only", "   ", ""},
		{"symbols_only", "!!!", ""},
		{"digits", "Release 2024 Q3", "release-2024-q3"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, GenerateSlug(tt.in))
		})
	}
}

func TestGenerateSlug_Properties(t *testing.T) {
	valid := regexp.MustCompile(`^[a-z0-9-]*$`)
	inputs := []string{
		"Implement the new OAuth2 flow for the mobile client with refresh tokens and logout",
		strings.Repeat("word ", 30),
		strings.Repeat("a", 49) + " b",
		strings.Repeat("x", 120),
		"Ünïcödé — dashes – and “quotes”",
		"  --  ",
		"MiXeD CaSe   SPACES",
	}

	for _, in := range inputs {
		got := GenerateSlug(in)
		assert.Regexp(t, valid, got, "input %q", in)
		assert.LessOrEqual(t, len(got), MaxSlugLength, "input %q", in)
		assert.False(t, strings.HasPrefix(got, "-"), "leading hyphen for %q: %q", in, got)
		assert.False(t, strings.HasSuffix(got, "-"), "trailing hyphen for %q: %q", in, got)
		assert.NotContains(t, got, "--", "input %q", in)
	}
}

func TestValidateSlug(t *testing.T) {
	tests := []struct {
		name    string
		slug    string
		wantErr error
	}{
		{"valid_simple", "test", nil},
		{"valid_with_hyphens", "test-feature", nil},
		{"valid_mixed", "auth-refresh-2", nil},
		{"single_char", "a", nil},
		{"empty", "", ErrSlugRequired},
		{"path_traversal_dots", "../etc/passwd", ErrInvalidSlug},
		{"path_traversal_slash", "foo/bar", ErrInvalidSlug},
		{"path_traversal_backslash", "foo\\bar", ErrInvalidSlug},
		{"uppercase", "TestFeature", ErrInvalidSlug},
		{"starts_with_hyphen", "-test", ErrInvalidSlug},
		{"ends_with_hyphen", "test-", ErrInvalidSlug},
		{"too_long", strings.Repeat("a", 51), ErrInvalidSlug},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateSlug(tt.slug)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestPlanStatus_IsValid(t *testing.T) {
	for _, s := range []PlanStatus{
		PlanStatusActive, PlanStatusPending, PlanStatusCompleted,
		PlanStatusFailed, PlanStatusPromoted, PlanStatusIndependent,
	} {
		assert.True(t, s.IsValid(), s.String())
	}
	assert.False(t, PlanStatus("archived").IsValid())
	assert.False(t, PlanStatus("").IsValid())
}

func TestPlan_Validate(t *testing.T) {
	valid := func() *Plan {
		p, err := builtinGenerator(t).Generate(context.Background(), "Task", "task", PlanOptions{WorkflowType: "micro"})
		require.NoError(t, err)
		return p
	}

	t.Run("generated plan is valid", func(t *testing.T) {
		assert.NoError(t, valid().Validate())
	})

	t.Run("missing top-level fields", func(t *testing.T) {
		p := valid()
		p.Task = ""
		p.Status = ""
		err := p.Validate()
		require.ErrorIs(t, err, ErrInvalidRecordStructure)
		assert.Contains(t, err.Error(), "task")
		assert.Contains(t, err.Error(), "status")
	})

	t.Run("stage without complete field", func(t *testing.T) {
		p := valid()
		p.Progress.Set("custom", &StageProgress{Fields: map[string]any{}})
		err := p.Validate()
		require.ErrorIs(t, err, ErrInvalidRecordStructure)
		assert.Contains(t, err.Error(), "custom")
	})
}

func TestPlanRoundTrip_PreservesStageOrderAndShape(t *testing.T) {
	plan, err := builtinGenerator(t).Generate(context.Background(), "Ship the thing — ñ", "ship-the-thing", PlanOptions{WorkflowType: "epic"})
	require.NoError(t, err)

	data, err := EncodePlan(plan)
	require.NoError(t, err)

	decoded, err := DecodePlan(data)
	require.NoError(t, err)

	assert.Equal(t, StandardStages, decoded.Progress.Stages())
	assert.Equal(t, plan.Task, decoded.Task)
	assert.True(t, plan.CreatedAt.Equal(decoded.CreatedAt))

	v := stage(t, decoded, StageValidation)
	assert.True(t, v.HasComplete())
	status, _ := v.Get(FieldValidationStatus)
	assert.Equal(t, string(ValidationInProgress), status)
	assert.IsType(t, []any{}, v.Fields[FieldIssuesFound])
	assert.Empty(t, v.Fields[FieldIssuesFound])
}

func TestDecodePlan_Rejects(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"empty", ""},
		{"scalar", "just a string"},
		{"sequence", "- a\n- b\n"},
		{"broken", "task: [unterminated\n"},
		{"progress_not_mapping", "task: x\nprogress: [a, b]\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodePlan([]byte(tt.data))
			assert.Error(t, err)
		})
	}
}

func TestDecodePlan_StageWithoutComplete(t *testing.T) {
	data := `task: Hand edited
slug: hand-edited
workflow_type: medium
current_stage: scope_analysis
status: active
priority: medium
created_at: 2025-01-01T00:00:00Z
updated_at: 2025-01-01T00:00:00Z
subtasks: []
progress:
  scope_analysis:
    findings: {}
  implementation:
    complete: "yes"
`
	plan, err := DecodePlan([]byte(data))
	require.NoError(t, err)

	assert.False(t, stage(t, plan, StageScopeAnalysis).HasComplete())
	assert.False(t, stage(t, plan, StageImplementation).HasComplete())
	assert.ErrorIs(t, plan.Validate(), ErrInvalidRecordStructure)
}
