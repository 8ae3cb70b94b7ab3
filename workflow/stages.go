package workflow

import (
	"fmt"
	"sort"

	"gopkg.in/yaml.v3"
)

// Standard stage names, in canonical order.
const (
	StageScopeAnalysis    = "scope_analysis"
	StageContextGathering = "context_gathering"
	StageSolutionDesign   = "solution_design"
	StageImplementation   = "implementation"
	StageValidation       = "validation"
	StageDocumentation    = "documentation"
	StageKnowledgeCapture = "knowledge_capture"
)

// StandardStages is the canonical stage ordering used to validate transitions.
var StandardStages = []string{
	StageScopeAnalysis,
	StageContextGathering,
	StageSolutionDesign,
	StageImplementation,
	StageValidation,
	StageDocumentation,
	StageKnowledgeCapture,
}

// StageIndex returns the canonical position of a standard stage, or -1 for custom stages.
func StageIndex(stage string) int {
	for i, s := range StandardStages {
		if s == stage {
			return i
		}
	}
	return -1
}

// IsStandardStage reports whether stage is one of the seven standard stages.
func IsStandardStage(stage string) bool {
	return StageIndex(stage) >= 0
}

// StageKind classifies a stage by the shape of its progress data.
type StageKind string

// Stage kinds. Every standard stage has its own kind; anything else is custom.
const (
	StageKindFindings      StageKind = "findings"
	StageKindDesign        StageKind = "design"
	StageKindChanges       StageKind = "changes"
	StageKindValidation    StageKind = "validation"
	StageKindDocumentation StageKind = "documentation"
	StageKindKnowledge     StageKind = "knowledge"
	StageKindCustom        StageKind = "custom"
)

// StageKindOf returns the kind for a stage name.
func StageKindOf(stage string) StageKind {
	switch stage {
	case StageScopeAnalysis, StageContextGathering:
		return StageKindFindings
	case StageSolutionDesign:
		return StageKindDesign
	case StageImplementation:
		return StageKindChanges
	case StageValidation:
		return StageKindValidation
	case StageDocumentation:
		return StageKindDocumentation
	case StageKnowledgeCapture:
		return StageKindKnowledge
	default:
		return StageKindCustom
	}
}

// ValidationStatus is the outcome recorded in the validation stage.
type ValidationStatus string

// Validation statuses.
const (
	ValidationInProgress    ValidationStatus = "in_progress"
	ValidationPassed        ValidationStatus = "passed"
	ValidationFailed        ValidationStatus = "failed"
	ValidationAwaitingFixes ValidationStatus = "awaiting_fixes"
)

// Stage field names shared by the registry, the checklist editor, and fix cycles.
const (
	FieldComplete         = "complete"
	FieldFindings         = "findings"
	FieldArtifacts        = "artifacts"
	FieldChecklist        = "checklist"
	FieldChanges          = "changes"
	FieldResults          = "results"
	FieldValidationStatus = "validation_status"
	FieldIssuesFound      = "issues_found"
	FieldFixCycles        = "fix_cycles"
	FieldFiles            = "files"
	FieldLearnings        = "learnings"
	FieldData             = "data"
	FieldNotes            = "notes"
)

// StageProgress is the progress record for one stage: the complete flag plus
// an open set of fields. The registry provides the starting shape per kind;
// callers may merge in any additional fields.
type StageProgress struct {
	Complete bool
	Fields   map[string]any

	// hasComplete is false only for records decoded without a boolean
	// complete field. Such records fail persistence validation.
	hasComplete bool
}

// NewStageProgress returns the canonical empty progress record for a stage.
func NewStageProgress(stage string) *StageProgress {
	sp := &StageProgress{hasComplete: true, Fields: map[string]any{}}
	switch StageKindOf(stage) {
	case StageKindFindings:
		sp.Fields[FieldFindings] = map[string]any{}
	case StageKindDesign:
		sp.Fields[FieldArtifacts] = map[string]any{}
		sp.Fields[FieldChecklist] = []any{}
	case StageKindChanges:
		sp.Fields[FieldChanges] = []any{}
	case StageKindValidation:
		sp.Fields[FieldResults] = map[string]any{}
		sp.Fields[FieldValidationStatus] = string(ValidationInProgress)
		sp.Fields[FieldIssuesFound] = []any{}
		sp.Fields[FieldFixCycles] = []any{}
	case StageKindDocumentation:
		sp.Fields[FieldFiles] = []any{}
	case StageKindKnowledge:
		sp.Fields[FieldLearnings] = map[string]any{}
	default:
		sp.Fields[FieldData] = map[string]any{}
		sp.Fields[FieldNotes] = []any{}
	}
	return sp
}

// SetComplete sets the complete flag.
func (s *StageProgress) SetComplete(complete bool) {
	s.Complete = complete
	s.hasComplete = true
}

// HasComplete reports whether the record carries a boolean complete field.
func (s *StageProgress) HasComplete() bool {
	return s.hasComplete
}

// Get returns a stage field.
func (s *StageProgress) Get(key string) (any, bool) {
	v, ok := s.Fields[key]
	return v, ok
}

// Set stores a stage field.
func (s *StageProgress) Set(key string, value any) {
	if s.Fields == nil {
		s.Fields = map[string]any{}
	}
	s.Fields[key] = value
}

// MarshalYAML writes complete first, then the remaining fields in key order.
func (s StageProgress) MarshalYAML() (interface{}, error) {
	node := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	if err := appendPair(node, FieldComplete, s.Complete); err != nil {
		return nil, err
	}

	keys := make([]string, 0, len(s.Fields))
	for k := range s.Fields {
		if k != FieldComplete {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	for _, k := range keys {
		if err := appendPair(node, k, s.Fields[k]); err != nil {
			return nil, err
		}
	}
	return node, nil
}

// UnmarshalYAML decodes a stage mapping, remembering whether complete was present.
func (s *StageProgress) UnmarshalYAML(value *yaml.Node) error {
	var raw map[string]any
	if err := value.Decode(&raw); err != nil {
		return fmt.Errorf("stage progress: %w", err)
	}

	s.Fields = make(map[string]any, len(raw))
	s.Complete = false
	s.hasComplete = false
	for k, v := range raw {
		if k == FieldComplete {
			if b, ok := v.(bool); ok {
				s.Complete = b
				s.hasComplete = true
			}
			continue
		}
		s.Fields[k] = v
	}
	return nil
}

func appendPair(node *yaml.Node, key string, value any) error {
	var v yaml.Node
	if err := v.Encode(value); err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	node.Content = append(node.Content,
		&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: key},
		&v,
	)
	return nil
}
