package workflow

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"gopkg.in/yaml.v3"

	"github.com/c360studio/semplan/storage"
)

// Manager loads, updates, and persists plan records in a store.
//
// Read-modify-write cycles on the same locator are serialized within one
// Manager. Separate processes sharing a store are not coordinated and race.
type Manager struct {
	store     storage.Store
	catalog   *Catalog
	generator *Generator
	logger    *slog.Logger
	now       func() time.Time

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex

	excluded map[string]bool
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) ManagerOption {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithClock overrides time.Now, mainly for tests.
func WithClock(now func() time.Time) ManagerOption {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// WithExcludedKeys hides store keys that are not plans, such as a workflow
// catalog kept in the same directory as the plans.
func WithExcludedKeys(keys ...string) ManagerOption {
	return func(m *Manager) {
		for _, k := range keys {
			m.excluded[k] = true
		}
	}
}

// NewManager creates a manager for plans in store, resolving workflows through catalog.
func NewManager(store storage.Store, catalog *Catalog, opts ...ManagerOption) *Manager {
	m := &Manager{
		store:   store,
		catalog: catalog,
		logger:  slog.Default(),
		now:     time.Now,
		locks:   make(map[string]*sync.Mutex),

		excluded: make(map[string]bool),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.generator = NewGenerator(catalog, m.now)
	return m
}

// Catalog returns the workflow catalog the manager resolves against.
func (m *Manager) Catalog() *Catalog {
	return m.catalog
}

// Generator returns the plan generator.
func (m *Manager) Generator() *Generator {
	return m.generator
}

// lockPlan returns the unlock func for the locator's mutex.
func (m *Manager) lockPlan(locator string) func() {
	m.locksMu.Lock()
	mu := m.locks[locator]
	if mu == nil {
		mu = &sync.Mutex{}
		m.locks[locator] = mu
	}
	m.locksMu.Unlock()

	mu.Lock()
	return mu.Unlock
}

// LoadPlan reads and parses the plan stored under locator. A record without a
// current stage is normalized to scope_analysis; missing stages are not synthesized.
func (m *Manager) LoadPlan(ctx context.Context, locator string) (*Plan, error) {
	data, err := m.store.Read(ctx, locator)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrPlanNotFound, locator)
		}
		return nil, err
	}

	plan, err := DecodePlan(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrPlanCorrupt, locator, err)
	}
	if plan.CurrentStage == "" {
		plan.CurrentStage = StageScopeAnalysis
	}
	return plan, nil
}

// DecodePlan parses a YAML plan document. The document must be a mapping.
func DecodePlan(data []byte) (*Plan, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 {
		return nil, errors.New("empty document")
	}
	if root := doc.Content[0]; root.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("expected a mapping, got %s", nodeKindName(root.Kind))
	}

	var plan Plan
	if err := doc.Decode(&plan); err != nil {
		return nil, err
	}
	return &plan, nil
}

// EncodePlan serializes a plan as a YAML document.
func EncodePlan(plan *Plan) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(plan); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// SavePlan validates the plan and overwrites the document under locator.
func (m *Manager) SavePlan(ctx context.Context, locator string, plan *Plan) error {
	if err := plan.Validate(); err != nil {
		return err
	}
	data, err := EncodePlan(plan)
	if err != nil {
		return fmt.Errorf("failed to marshal plan: %w", err)
	}
	return m.store.Write(ctx, locator, data)
}

// PlanExists reports whether a document is stored under locator.
func (m *Manager) PlanExists(ctx context.Context, locator string) (bool, error) {
	return m.store.Exists(ctx, locator)
}

// CreatePlanRequest describes a new top-level plan.
type CreatePlanRequest struct {
	Task    string
	Slug    string // derived from Task when empty
	Options PlanOptions
	// Subtasks are recorded as inline references, materialized later by PromoteSubtask.
	Subtasks []string
	// Unique appends -2, -3, ... to the slug instead of failing on collision.
	Unique bool
}

// CreatePlanResult is a created plan and where it was stored.
type CreatePlanResult struct {
	Locator string
	Plan    *Plan
}

// CreatePlan generates a plan and writes it as a new document.
func (m *Manager) CreatePlan(ctx context.Context, req CreatePlanRequest) (*CreatePlanResult, error) {
	task := strings.TrimSpace(req.Task)
	if task == "" {
		return nil, ErrTaskRequired
	}

	slug := req.Slug
	if slug == "" {
		slug = GenerateSlug(task)
	}
	if err := ValidateSlug(slug); err != nil {
		return nil, fmt.Errorf("%w (task %q)", err, task)
	}

	slug, err := m.resolveSlug(ctx, slug, req.Unique, PlanLocator)
	if err != nil {
		return nil, err
	}
	locator := PlanLocator(slug)

	unlock := m.lockPlan(locator)
	defer unlock()

	opts := req.Options
	if opts.PlanType == "" {
		opts.PlanType = PlanTypePlan
	}
	plan, err := m.generator.Generate(ctx, task, slug, opts)
	if err != nil {
		return nil, err
	}

	for _, desc := range req.Subtasks {
		desc = strings.TrimSpace(desc)
		if desc == "" {
			continue
		}
		subSlug := uniqueSubtaskSlug(plan, GenerateSlug(desc))
		plan.Subtasks = append(plan.Subtasks, SubtaskRef{
			Description:   desc,
			Slug:          subSlug,
			Priority:      plan.Priority,
			Status:        SubtaskStatusPending,
			ReferenceType: ReferenceTypeInline,
			Created:       plan.CreatedAt,
		})
	}

	if err := m.SavePlan(ctx, locator, plan); err != nil {
		return nil, err
	}

	m.logger.Info("Created plan",
		"locator", locator,
		"workflow_type", plan.WorkflowType,
		"stages", plan.Progress.Len())
	return &CreatePlanResult{Locator: locator, Plan: plan}, nil
}

// resolveSlug returns slug, or with unique set the first free slug-N variant.
func (m *Manager) resolveSlug(ctx context.Context, slug string, unique bool, locate func(string) string) (string, error) {
	candidate := slug
	for suffix := 2; ; suffix++ {
		exists, err := m.store.Exists(ctx, locate(candidate))
		if err != nil {
			return "", err
		}
		if !exists {
			return candidate, nil
		}
		if !unique {
			return "", fmt.Errorf("%w: %s", ErrPlanExists, locate(candidate))
		}
		candidate = withSuffix(slug, suffix)
	}
}

// withSuffix appends -n, trimming the base so the result stays within MaxSlugLength.
func withSuffix(slug string, n int) string {
	suffix := fmt.Sprintf("-%d", n)
	base := slug
	if len(base)+len(suffix) > MaxSlugLength {
		base = strings.TrimRight(base[:MaxSlugLength-len(suffix)], "-")
	}
	return base + suffix
}

func uniqueSubtaskSlug(plan *Plan, slug string) string {
	if slug == "" {
		slug = "subtask"
	}
	candidate := slug
	for n := 2; plan.FindSubtask(candidate) >= 0; n++ {
		candidate = withSuffix(slug, n)
	}
	return candidate
}

// ListFilter narrows ListPlans results. Zero values match everything.
type ListFilter struct {
	Status       PlanStatus
	WorkflowType string
	// Pattern is a doublestar glob matched against locators, e.g. "auth-*/**".
	Pattern string
	// IncludeSubtasks lists subtask plans filed under their parents too.
	IncludeSubtasks bool
}

// PlanEntry is one listed plan.
type PlanEntry struct {
	Locator string
	Plan    *Plan
}

// ListPlansResult contains the results of listing plans, including any
// non-fatal errors encountered while loading individual plans.
type ListPlansResult struct {
	Plans  []PlanEntry
	Errors []error
}

// ListPlans loads every plan document matching filter.
// Returns partial results along with any errors encountered loading individual plans.
func (m *Manager) ListPlans(ctx context.Context, filter ListFilter) (*ListPlansResult, error) {
	if filter.Pattern != "" && !doublestar.ValidatePattern(filter.Pattern) {
		return nil, fmt.Errorf("invalid pattern: %s", filter.Pattern)
	}

	keys, err := m.store.List(ctx)
	if err != nil {
		return nil, err
	}

	result := &ListPlansResult{Plans: []PlanEntry{}, Errors: []error{}}
	for _, key := range keys {
		if !strings.HasSuffix(key, PlanFileExt) || m.excluded[key] {
			continue
		}
		if !filter.IncludeSubtasks && strings.Contains(key, "/") {
			continue
		}
		if filter.Pattern != "" {
			ok, err := doublestar.Match(filter.Pattern, key)
			if err != nil || !ok {
				continue
			}
		}

		// Check context cancellation between iterations
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		plan, err := m.LoadPlan(ctx, key)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Errorf("failed to load plan %s: %w", key, err))
			continue
		}
		if filter.Status != "" && plan.Status != filter.Status {
			continue
		}
		if filter.WorkflowType != "" && plan.WorkflowType != filter.WorkflowType {
			continue
		}
		result.Plans = append(result.Plans, PlanEntry{Locator: key, Plan: plan})
	}

	sort.SliceStable(result.Plans, func(i, j int) bool {
		return result.Plans[i].Locator < result.Plans[j].Locator
	})
	return result, nil
}

// NextSteps reports the plan's position in its workflow, based on whether
// its current stage is complete.
func (m *Manager) NextSteps(ctx context.Context, plan *Plan) NextSteps {
	complete := false
	if sp, ok := plan.Progress.Get(plan.CurrentStage); ok {
		complete = sp.Complete
	}
	return m.catalog.NextSteps(ctx, plan.WorkflowType, plan.CurrentStage, complete)
}
