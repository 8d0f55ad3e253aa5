package scenario

import (
	_ "embed"
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var builtinCatalog []byte

// Kind tells how a scenario produces its contrast.
type Kind string

const (
	// KindSQL scenarios differ in the statements they issue.
	KindSQL Kind = "sql"
	// KindAlgorithmic scenarios differ in how the application processes data.
	KindAlgorithmic Kind = "algorithmic"
)

// Definition is one variant of a SQL scenario. Setup is optional.
type Definition struct {
	ID          string
	Description string
	Setup       string
	Query       string
}

// Explanation is the narrative shown next to a comparison: why the slow
// variant costs what it does and what the optimized one changes.
type Explanation struct {
	Slow      []string `json:"slow" yaml:"slow"`
	Optimized []string `json:"optimized" yaml:"optimized"`
}

// Summary describes a scenario for pickers and listings.
type Summary struct {
	ID           string             `json:"id"`
	Label        string             `json:"label"`
	Kind         Kind               `json:"kind"`
	Descriptions map[Variant]string `json:"descriptions"`
	Explanation  Explanation        `json:"explanation"`
}

type catalogFile struct {
	Scenarios []catalogEntry `yaml:"scenarios"`
}

type catalogEntry struct {
	ID          string          `yaml:"id"`
	Label       string          `yaml:"label"`
	Explanation Explanation     `yaml:"explanation"`
	Slow        *catalogVariant `yaml:"slow"`
	Optimized   *catalogVariant `yaml:"optimized"`
}

type catalogVariant struct {
	Description string `yaml:"description"`
	Setup       string `yaml:"setup"`
	Query       string `yaml:"query"`
}

// Registry is the read-only scenario catalog. It is built once at startup
// and never mutated, so it is safe for concurrent use.
type Registry struct {
	slow         map[string]Definition
	optimized    map[string]Definition
	labels       map[string]string
	explanations map[string]Explanation
	algorithms   map[string]Algorithm
}

// NewRegistry builds the registry from the embedded catalog plus the
// built-in algorithmic scenarios.
func NewRegistry() (*Registry, error) {
	return LoadRegistry(builtinCatalog, CursorAlgorithm())
}

// LoadRegistry parses a YAML catalog and registers the given algorithms.
// An algorithm shadows a SQL entry with the same id.
func LoadRegistry(catalog []byte, algorithms ...Algorithm) (*Registry, error) {
	var file catalogFile
	if err := yaml.Unmarshal(catalog, &file); err != nil {
		return nil, fmt.Errorf("failed to parse scenario catalog: %w", err)
	}

	r := &Registry{
		slow:         make(map[string]Definition),
		optimized:    make(map[string]Definition),
		labels:       make(map[string]string),
		explanations: make(map[string]Explanation),
		algorithms:   make(map[string]Algorithm),
	}

	for i, entry := range file.Scenarios {
		id := strings.TrimSpace(entry.ID)
		if id == "" {
			return nil, fmt.Errorf("catalog entry %d: missing id", i)
		}
		if _, dup := r.labels[id]; dup {
			return nil, fmt.Errorf("catalog entry %q: duplicate id", id)
		}
		if entry.Slow == nil && entry.Optimized == nil {
			return nil, fmt.Errorf("catalog entry %q: no variants", id)
		}

		label := entry.Label
		if label == "" {
			label = id
		}
		r.labels[id] = label
		r.explanations[id] = entry.Explanation

		if entry.Slow != nil {
			def, err := entry.Slow.definition(id)
			if err != nil {
				return nil, err
			}
			r.slow[id] = def
		}
		if entry.Optimized != nil {
			def, err := entry.Optimized.definition(id)
			if err != nil {
				return nil, err
			}
			r.optimized[id] = def
		}
	}

	for _, alg := range algorithms {
		if alg.ID == "" || alg.Run == nil {
			return nil, fmt.Errorf("algorithm %q: id and run func are required", alg.ID)
		}
		if _, dup := r.algorithms[alg.ID]; dup {
			return nil, fmt.Errorf("algorithm %q: duplicate id", alg.ID)
		}
		r.algorithms[alg.ID] = alg
	}

	return r, nil
}

func (v *catalogVariant) definition(id string) (Definition, error) {
	query := strings.TrimSpace(v.Query)
	if query == "" {
		return Definition{}, fmt.Errorf("catalog entry %q: empty query", id)
	}
	return Definition{
		ID:          id,
		Description: v.Description,
		Setup:       strings.TrimSpace(v.Setup),
		Query:       query,
	}, nil
}

// Slow returns the slow-variant definition for id.
func (r *Registry) Slow(id string) (Definition, bool) {
	def, ok := r.slow[id]
	return def, ok
}

// Optimized returns the optimized-variant definition for id.
func (r *Registry) Optimized(id string) (Definition, bool) {
	def, ok := r.optimized[id]
	return def, ok
}

// Algorithm returns the algorithmic scenario registered under id.
func (r *Registry) Algorithm(id string) (Algorithm, bool) {
	alg, ok := r.algorithms[id]
	return alg, ok
}

// Resolve finds the runnable form of id for variant v. Algorithmic
// scenarios take precedence over catalog entries.
func (r *Registry) Resolve(id string, v Variant) (Scenario, error) {
	if alg, ok := r.algorithms[id]; ok {
		return alg, nil
	}

	var (
		def Definition
		ok  bool
	)
	if v == VariantSlow {
		def, ok = r.Slow(id)
	} else {
		def, ok = r.Optimized(id)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownScenario, id)
	}
	return sqlScenario{def: def}, nil
}

// List returns every scenario sorted by id.
func (r *Registry) List() []Summary {
	seen := make(map[string]bool)
	var out []Summary

	for id, alg := range r.algorithms {
		seen[id] = true
		out = append(out, Summary{
			ID:           id,
			Label:        alg.Label,
			Kind:         KindAlgorithmic,
			Descriptions: alg.Descriptions,
			Explanation:  alg.Explanation,
		})
	}

	for id, label := range r.labels {
		if seen[id] {
			continue
		}
		descs := make(map[Variant]string)
		if def, ok := r.slow[id]; ok {
			descs[VariantSlow] = def.Description
		}
		if def, ok := r.optimized[id]; ok {
			descs[VariantOptimized] = def.Description
		}
		out = append(out, Summary{
			ID:           id,
			Label:        label,
			Kind:         KindSQL,
			Descriptions: descs,
			Explanation:  r.explanations[id],
		})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
