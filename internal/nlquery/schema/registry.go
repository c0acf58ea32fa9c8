// internal/nlquery/schema/registry.go
package schema

import "strings"

// CatalogVersion identifies the built-in domain catalog. Bump on any change
// to domain keys, fields or keyword priority.
const CatalogVersion = "2024.2"

// Registry is the read-only catalog of domains. It is constructed once at
// process start and passed explicitly into the parser and compiler.
type Registry struct {
	version string
	domains []DomainSchema
	byKey   map[string]int
}

// NewRegistry builds the registry from the built-in catalog. Domain order
// is estimation priority and must stay stable: comprehensive, transactions,
// budget_items, tabarim.
func NewRegistry() *Registry {
	domains := builtinDomains()
	byKey := make(map[string]int, len(domains))
	for i, d := range domains {
		byKey[d.Key] = i
	}
	return &Registry{
		version: CatalogVersion,
		domains: domains,
		byKey:   byKey,
	}
}

// Version returns the catalog version.
func (r *Registry) Version() string {
	return r.version
}

// Get returns a domain by key.
func (r *Registry) Get(key string) (*DomainSchema, bool) {
	i, ok := r.byKey[key]
	if !ok {
		return nil, false
	}
	return &r.domains[i], true
}

// List returns all domains in priority order.
func (r *Registry) List() []*DomainSchema {
	out := make([]*DomainSchema, len(r.domains))
	for i := range r.domains {
		out[i] = &r.domains[i]
	}
	return out
}

// EstimateDomain scans each domain's primary keywords for a substring match
// against the normalized input and returns the first hit. Returns "" when
// nothing matches; it never guesses.
func (r *Registry) EstimateDomain(text string) string {
	normalized := NormalizeText(text)
	if normalized == "" {
		return ""
	}
	for _, d := range r.domains {
		for _, kw := range d.Keywords.Primary {
			if strings.Contains(normalized, NormalizeText(kw)) {
				return d.Key
			}
		}
	}
	return ""
}

// DomainSummary is the compact per-domain view serialized into the
// language-model prompt.
type DomainSummary struct {
	Key              string   `json:"key"`
	Label            string   `json:"label"`
	Description      string   `json:"description"`
	Fields           []string `json:"fields"`
	FilterableFields []string `json:"filterableFields"`
	Examples         []string `json:"examples"`
}

// Summary holds the registry view handed to the model extractor so its
// output vocabulary stays constrained to valid domains, fields and actions.
type Summary struct {
	Version string          `json:"version"`
	Domains []DomainSummary `json:"domains"`
	Actions []string        `json:"actions"`
}

// Summarize builds the prompt-facing registry view.
func (r *Registry) Summarize() Summary {
	s := Summary{
		Version: r.version,
		Actions: []string{"list", "count", "sum", "average", "group"},
	}
	for _, d := range r.domains {
		ds := DomainSummary{
			Key:         d.Key,
			Label:       d.Label,
			Description: d.Description,
			Fields:      d.FieldNames(),
		}
		for _, f := range d.Fields {
			if f.Filterable {
				ds.FilterableFields = append(ds.FilterableFields, f.Name)
			}
		}
		for _, ex := range d.Examples {
			ds.Examples = append(ds.Examples, ex.Query)
		}
		s.Domains = append(s.Domains, ds)
	}
	return s
}
