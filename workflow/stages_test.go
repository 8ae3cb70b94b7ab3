package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStageIndex(t *testing.T) {
	for i, s := range StandardStages {
		assert.Equal(t, i, StageIndex(s), s)
		assert.True(t, IsStandardStage(s), s)
	}
	assert.Equal(t, -1, StageIndex("deployment"))
	assert.False(t, IsStandardStage(""))
}

func TestNewStageProgress(t *testing.T) {
	tests := []struct {
		stage  string
		kind   StageKind
		fields map[string]any
	}{
		{StageScopeAnalysis, StageKindFindings, map[string]any{FieldFindings: map[string]any{}}},
		{StageContextGathering, StageKindFindings, map[string]any{FieldFindings: map[string]any{}}},
		{StageSolutionDesign, StageKindDesign, map[string]any{
			FieldArtifacts: map[string]any{},
			FieldChecklist: []any{},
		}},
		{StageImplementation, StageKindChanges, map[string]any{FieldChanges: []any{}}},
		{StageValidation, StageKindValidation, map[string]any{
			FieldResults:          map[string]any{},
			FieldValidationStatus: "in_progress",
			FieldIssuesFound:      []any{},
			FieldFixCycles:        []any{},
		}},
		{StageDocumentation, StageKindDocumentation, map[string]any{FieldFiles: []any{}}},
		{StageKnowledgeCapture, StageKindKnowledge, map[string]any{FieldLearnings: map[string]any{}}},
		{"deployment", StageKindCustom, map[string]any{FieldData: map[string]any{}, FieldNotes: []any{}}},
	}

	for _, tt := range tests {
		t.Run(tt.stage, func(t *testing.T) {
			assert.Equal(t, tt.kind, StageKindOf(tt.stage))

			sp := NewStageProgress(tt.stage)
			assert.False(t, sp.Complete)
			assert.True(t, sp.HasComplete())
			assert.Equal(t, tt.fields, sp.Fields)
		})
	}
}

func TestNewStageProgress_IndependentInstances(t *testing.T) {
	a := NewStageProgress(StageScopeAnalysis)
	b := NewStageProgress(StageScopeAnalysis)
	a.Fields[FieldFindings].(map[string]any)["k"] = "v"
	assert.Empty(t, b.Fields[FieldFindings])
}

func TestNewProgress_FoldsDuplicates(t *testing.T) {
	p := NewProgress([]string{"implementation", "validation", "implementation", "review"})
	assert.Equal(t, []string{"implementation", "validation", "review"}, p.Stages())
	assert.Equal(t, 3, p.Len())
}

func TestProgress_AllComplete(t *testing.T) {
	var empty Progress
	assert.True(t, empty.AllComplete())

	p := NewProgress([]string{StageImplementation, StageValidation})
	assert.False(t, p.AllComplete())

	stageOf := func(name string) *StageProgress {
		sp, _ := p.Get(name)
		return sp
	}
	stageOf(StageImplementation).SetComplete(true)
	assert.False(t, p.AllComplete())
	assert.Equal(t, 1, p.CompletedCount())

	stageOf(StageValidation).SetComplete(true)
	assert.True(t, p.AllComplete())
}
