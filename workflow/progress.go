package workflow

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// Progress maps stage names to their progress records, preserving the order
// stages were added in. The order round-trips through YAML.
type Progress struct {
	order  []string
	stages map[string]*StageProgress
}

// NewProgress builds a progress map with a fresh registry record for each stage.
// Duplicate stage names keep their first position.
func NewProgress(stages []string) Progress {
	var p Progress
	for _, stage := range stages {
		if _, ok := p.Get(stage); ok {
			continue
		}
		p.Set(stage, NewStageProgress(stage))
	}
	return p
}

// Get returns the record for a stage.
func (p *Progress) Get(stage string) (*StageProgress, bool) {
	sp, ok := p.stages[stage]
	return sp, ok
}

// Set adds or replaces the record for a stage. New stages are appended.
func (p *Progress) Set(stage string, sp *StageProgress) {
	if p.stages == nil {
		p.stages = make(map[string]*StageProgress)
	}
	if _, ok := p.stages[stage]; !ok {
		p.order = append(p.order, stage)
	}
	p.stages[stage] = sp
}

// Ensure returns the record for a stage, creating it from the registry if absent.
func (p *Progress) Ensure(stage string) *StageProgress {
	if sp, ok := p.Get(stage); ok {
		return sp
	}
	sp := NewStageProgress(stage)
	p.Set(stage, sp)
	return sp
}

// Stages returns stage names in insertion order.
func (p *Progress) Stages() []string {
	out := make([]string, len(p.order))
	copy(out, p.order)
	return out
}

// Len returns the number of stages.
func (p *Progress) Len() int {
	return len(p.order)
}

// AllComplete reports whether every stage is complete. Empty progress is complete.
func (p *Progress) AllComplete() bool {
	for _, stage := range p.order {
		if !p.stages[stage].Complete {
			return false
		}
	}
	return true
}

// CompletedCount returns how many stages are complete.
func (p *Progress) CompletedCount() int {
	n := 0
	for _, stage := range p.order {
		if p.stages[stage].Complete {
			n++
		}
	}
	return n
}

// MarshalYAML writes stages as a mapping in insertion order.
func (p Progress) MarshalYAML() (interface{}, error) {
	node := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	for _, stage := range p.order {
		var v yaml.Node
		if err := v.Encode(p.stages[stage]); err != nil {
			return nil, fmt.Errorf("encode stage %s: %w", stage, err)
		}
		node.Content = append(node.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: stage},
			&v,
		)
	}
	return node, nil
}

// UnmarshalYAML reads a stage mapping, keeping document order.
func (p *Progress) UnmarshalYAML(value *yaml.Node) error {
	p.order = nil
	p.stages = nil
	if value.Kind == yaml.ScalarNode && value.Tag == "!!null" {
		return nil
	}
	if value.Kind != yaml.MappingNode {
		return fmt.Errorf("progress must be a mapping, got %s", nodeKindName(value.Kind))
	}

	for i := 0; i+1 < len(value.Content); i += 2 {
		stage := value.Content[i].Value
		sp := &StageProgress{}
		if err := value.Content[i+1].Decode(sp); err != nil {
			return fmt.Errorf("stage %s: %w", stage, err)
		}
		p.Set(stage, sp)
	}
	return nil
}

func nodeKindName(k yaml.Kind) string {
	switch k {
	case yaml.DocumentNode:
		return "document"
	case yaml.SequenceNode:
		return "sequence"
	case yaml.MappingNode:
		return "mapping"
	case yaml.ScalarNode:
		return "scalar"
	case yaml.AliasNode:
		return "alias"
	default:
		return "unknown"
	}
}
