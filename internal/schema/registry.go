package schema

import (
	"errors"
	"fmt"
	"strings"
	"sync"
)

// Registry holds the immutable set of record shapes. It is safe for concurrent use.
type Registry struct {
	definitions []Definition
	byKind      map[Kind]int
	variants    map[Kind]map[string]string
}

var (
	defaultRegistry     *Registry
	defaultRegistryOnce sync.Once
)

// Default returns the registry with the traffic report and player data shapes.
func Default() *Registry {
	defaultRegistryOnce.Do(func() {
		registry, err := NewRegistry(trafficReportDefinition(), playersDataDefinition())
		if err != nil {
			panic(fmt.Sprintf("schema: invalid built-in definitions: %v", err))
		}
		defaultRegistry = registry
	})
	return defaultRegistry
}

// NewRegistry validates the definitions and indexes their header variants.
// The canonical name and column name of every field are accepted as variants
// after the declared spellings.
func NewRegistry(definitions ...Definition) (*Registry, error) {
	if len(definitions) == 0 {
		return nil, errors.New("at least one definition is required")
	}
	registry := &Registry{
		definitions: make([]Definition, 0, len(definitions)),
		byKind:      make(map[Kind]int, len(definitions)),
		variants:    make(map[Kind]map[string]string, len(definitions)),
	}
	for _, def := range definitions {
		if def.Kind == "" {
			return nil, errors.New("definition kind is required")
		}
		if _, exists := registry.byKind[def.Kind]; exists {
			return nil, fmt.Errorf("duplicate definition for %s", def.Kind)
		}
		if def.ExpectedColumns != len(def.Fields) {
			return nil, fmt.Errorf("%s declares %d columns but defines %d fields", def.Kind, def.ExpectedColumns, len(def.Fields))
		}

		index := make(map[string]string)
		fields := make([]Field, len(def.Fields))
		for i, field := range def.Fields {
			if field.Name == "" || field.Column == "" {
				return nil, fmt.Errorf("%s: field %d needs a name and column", def.Kind, i)
			}
			variants := make([]string, 0, len(field.Variants)+2)
			variants = append(variants, field.Variants...)
			variants = append(variants, field.Name, field.Column)
			seen := make(map[string]struct{}, len(variants))
			field.Variants = field.Variants[:0:0]
			for _, variant := range variants {
				key := normalizeHeader(variant)
				if key == "" {
					continue
				}
				if owner, taken := index[key]; taken && owner != field.Name {
					return nil, fmt.Errorf("%s: header %q maps to both %s and %s", def.Kind, variant, owner, field.Name)
				}
				index[key] = field.Name
				if _, dup := seen[key]; !dup {
					seen[key] = struct{}{}
					field.Variants = append(field.Variants, variant)
				}
			}
			fields[i] = field
		}
		for _, name := range def.NaturalKey {
			if _, ok := def.Field(name); !ok {
				return nil, fmt.Errorf("%s: natural key field %s is not defined", def.Kind, name)
			}
		}

		def.Fields = fields
		def.NaturalKey = append([]string(nil), def.NaturalKey...)
		registry.byKind[def.Kind] = len(registry.definitions)
		registry.definitions = append(registry.definitions, def)
		registry.variants[def.Kind] = index
	}
	return registry, nil
}

// Definition returns the shape registered for kind.
func (r *Registry) Definition(kind Kind) (Definition, bool) {
	idx, ok := r.byKind[kind]
	if !ok {
		return Definition{}, false
	}
	return r.definitions[idx], true
}

// Definitions returns every registered shape in registration order.
func (r *Registry) Definitions() []Definition {
	return append([]Definition(nil), r.definitions...)
}

// Kinds lists the registered kinds in registration order.
func (r *Registry) Kinds() []Kind {
	kinds := make([]Kind, len(r.definitions))
	for i, def := range r.definitions {
		kinds[i] = def.Kind
	}
	return kinds
}

func (r *Registry) lookup(kind Kind, header string) (string, bool) {
	index, ok := r.variants[kind]
	if !ok {
		return "", false
	}
	name, ok := index[normalizeHeader(header)]
	return name, ok
}

func normalizeHeader(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}
