package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/c360studio/semplan/storage"
)

// DefaultWorkflowsFile is the catalog document name.
const DefaultWorkflowsFile = "workflows.yaml"

// DefaultWorkflowType is used when a plan is created without one.
const DefaultWorkflowType = "medium"

// WorkflowDefinition is one named, ordered list of stages.
type WorkflowDefinition struct {
	Description string   `yaml:"description" json:"description"`
	Steps       []string `yaml:"steps" json:"steps"`
}

// WorkflowsConfig is the workflow catalog document.
type WorkflowsConfig struct {
	Workflows map[string]WorkflowDefinition `yaml:"workflows" json:"workflows"`
	Default   WorkflowDefinition            `yaml:"default" json:"default"`
}

// BuiltinWorkflows returns the catalog used when no catalog file exists.
func BuiltinWorkflows() *WorkflowsConfig {
	medium := []string{
		StageScopeAnalysis, StageContextGathering, StageSolutionDesign,
		StageImplementation, StageValidation,
	}
	return &WorkflowsConfig{
		Workflows: map[string]WorkflowDefinition{
			"micro": {
				Description: "Trivial change: go straight to implementation",
				Steps:       []string{StageImplementation},
			},
			"small": {
				Description: "Small change with a quick look around and a check afterwards",
				Steps:       []string{StageContextGathering, StageImplementation, StageValidation},
			},
			"medium": {
				Description: "Standard feature work with scoping and design",
				Steps:       append([]string(nil), medium...),
			},
			"large": {
				Description: "Multi-part feature that needs documentation",
				Steps:       append(append([]string(nil), medium...), StageDocumentation),
			},
			"epic": {
				Description: "Large initiative running every stage including knowledge capture",
				Steps:       append([]string(nil), StandardStages...),
			},
		},
		Default: WorkflowDefinition{
			Description: "Fallback workflow for unknown workflow types",
			Steps:       append([]string(nil), medium...),
		},
	}
}

// StepsFor returns the deduplicated steps for a workflow type, falling back
// to the default entry when the type is unknown.
func (w *WorkflowsConfig) StepsFor(workflowType string) []string {
	if def, ok := w.Workflows[workflowType]; ok {
		return dedupeSteps(def.Steps)
	}
	return dedupeSteps(w.Default.Steps)
}

func dedupeSteps(steps []string) []string {
	seen := make(map[string]bool, len(steps))
	out := make([]string, 0, len(steps))
	for _, s := range steps {
		if seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}

// WorkflowSummary describes one catalog entry for listing.
type WorkflowSummary struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Steps       []string `json:"steps"`
}

// Catalog resolves workflow types to stage lists. It reads the catalog
// document from its store on every call unless caching is enabled, in which
// case the parsed document is kept until Invalidate is called.
type Catalog struct {
	store  storage.Store
	key    string
	logger *slog.Logger

	caching bool
	mu      sync.RWMutex
	cached  *WorkflowsConfig
	// gen counts invalidations; a read only fills the cache if none happened meanwhile.
	gen uint64
}

// CatalogOption configures a Catalog.
type CatalogOption func(*Catalog)

// WithCatalogLogger sets the logger.
func WithCatalogLogger(logger *slog.Logger) CatalogOption {
	return func(c *Catalog) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithCatalogCache keeps the parsed catalog in memory between calls.
// Pair it with a CatalogWatcher so edits to the file are picked up.
func WithCatalogCache(enabled bool) CatalogOption {
	return func(c *Catalog) {
		c.caching = enabled
	}
}

// NewCatalog creates a catalog backed by the document stored under key.
func NewCatalog(store storage.Store, key string, opts ...CatalogOption) *Catalog {
	if key == "" {
		key = DefaultWorkflowsFile
	}
	c := &Catalog{
		store:  store,
		key:    key,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Key returns the store key of the catalog document.
func (c *Catalog) Key() string {
	return c.key
}

// Load reads the catalog. A missing document yields the built-in catalog
// without writing anything.
func (c *Catalog) Load(ctx context.Context) (*WorkflowsConfig, error) {
	var gen uint64
	if c.caching {
		c.mu.RLock()
		cached := c.cached
		gen = c.gen
		c.mu.RUnlock()
		if cached != nil {
			return cached, nil
		}
	}

	cfg, err := c.read(ctx)
	if err != nil {
		return nil, err
	}

	if c.caching {
		c.mu.Lock()
		if c.gen == gen {
			c.cached = cfg
		}
		c.mu.Unlock()
	}
	return cfg, nil
}

func (c *Catalog) read(ctx context.Context) (*WorkflowsConfig, error) {
	data, err := c.store.Read(ctx, c.key)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return BuiltinWorkflows(), nil
		}
		return nil, fmt.Errorf("failed to read workflow catalog: %w", err)
	}

	var cfg WorkflowsConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCatalogCorrupt, c.key, err)
	}
	if cfg.Workflows == nil {
		cfg.Workflows = map[string]WorkflowDefinition{}
	}
	return &cfg, nil
}

// Invalidate drops the cached catalog so the next call re-reads the document.
func (c *Catalog) Invalidate() {
	c.mu.Lock()
	c.cached = nil
	c.gen++
	c.mu.Unlock()
}

// CreateFile writes the built-in catalog to the store. It refuses to
// overwrite an existing document unless force is set.
func (c *Catalog) CreateFile(ctx context.Context, force bool) error {
	if !force {
		exists, err := c.store.Exists(ctx, c.key)
		if err != nil {
			return err
		}
		if exists {
			return fmt.Errorf("%w: %s (use force to overwrite)", ErrAlreadyExists, c.key)
		}
	}

	data, err := yaml.Marshal(BuiltinWorkflows())
	if err != nil {
		return fmt.Errorf("failed to marshal workflow catalog: %w", err)
	}
	if err := c.store.Write(ctx, c.key, data); err != nil {
		return err
	}
	c.Invalidate()

	c.logger.Info("Created workflow catalog", "key", c.key, "force", force)
	return nil
}

// Steps returns the ordered stages for a workflow type. It never fails:
// unknown types use the default entry, and an unreadable catalog falls back
// to the built-in default.
func (c *Catalog) Steps(ctx context.Context, workflowType string) []string {
	cfg, err := c.Load(ctx)
	if err != nil {
		c.logger.Warn("Workflow catalog unavailable, using built-in default",
			"key", c.key, "error", err)
		cfg = BuiltinWorkflows()
	}
	return cfg.StepsFor(workflowType)
}

// List returns every workflow in the catalog sorted by name, followed by
// the default entry.
func (c *Catalog) List(ctx context.Context) ([]WorkflowSummary, error) {
	cfg, err := c.Load(ctx)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(cfg.Workflows))
	for name := range cfg.Workflows {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]WorkflowSummary, 0, len(names)+1)
	for _, name := range names {
		def := cfg.Workflows[name]
		out = append(out, WorkflowSummary{Name: name, Description: def.Description, Steps: dedupeSteps(def.Steps)})
	}
	out = append(out, WorkflowSummary{Name: "default", Description: cfg.Default.Description, Steps: dedupeSteps(cfg.Default.Steps)})
	return out, nil
}

// NextSteps describes where a plan sits in its workflow.
// NextStep is empty when there is no following step.
type NextSteps struct {
	CurrentStep    string   `json:"current_step"`
	NextStep       string   `json:"next_step,omitempty"`
	RemainingSteps []string `json:"remaining_steps"`
	IsComplete     bool     `json:"is_complete"`
}

// NextSteps resolves the workflow's steps and computes the position of currentStage.
func (c *Catalog) NextSteps(ctx context.Context, workflowType, currentStage string, currentComplete bool) NextSteps {
	return ComputeNextSteps(c.Steps(ctx, workflowType), currentStage, currentComplete)
}

// ComputeNextSteps locates currentStage in steps.
//
// A stage that is not part of steps is treated as the workflow just starting:
// the first step is reported as current regardless of where the caller
// actually is. An empty workflow echoes the stage back and reports complete.
func ComputeNextSteps(steps []string, currentStage string, currentComplete bool) NextSteps {
	if len(steps) == 0 {
		return NextSteps{CurrentStep: currentStage, RemainingSteps: []string{}, IsComplete: true}
	}

	currentIndex := -1
	for i, s := range steps {
		if s == currentStage {
			currentIndex = i
			break
		}
	}

	if currentIndex < 0 {
		ns := NextSteps{CurrentStep: steps[0], RemainingSteps: append([]string{}, steps[1:]...)}
		if len(steps) > 1 {
			ns.NextStep = steps[1]
		}
		return ns
	}

	advanceIndex := currentIndex
	if currentComplete {
		advanceIndex++
	}

	ns := NextSteps{
		CurrentStep: currentStage,
		IsComplete:  advanceIndex >= len(steps),
	}
	switch {
	case currentComplete && advanceIndex < len(steps):
		ns.NextStep = steps[advanceIndex]
	case !currentComplete && currentIndex+1 < len(steps):
		ns.NextStep = steps[currentIndex+1]
	}

	sliceFrom := currentIndex + 1
	if currentComplete {
		sliceFrom = advanceIndex + 1
	}
	if sliceFrom > len(steps) {
		sliceFrom = len(steps)
	}
	ns.RemainingSteps = append([]string{}, steps[sliceFrom:]...)
	return ns
}
