// Package schema holds the static catalog of queryable budget domains.
// Each domain describes one join-shape over the municipal budget tables,
// together with the vocabulary used to recognize it in free-text queries.
package schema

import "strings"

// FieldType enumerates the supported field kinds.
type FieldType string

const (
	FieldString   FieldType = "string"
	FieldNumber   FieldType = "number"
	FieldDate     FieldType = "date"
	FieldEnum     FieldType = "enum"
	FieldRelation FieldType = "relation"
)

// FieldDefinition describes one output/filter field of a domain.
type FieldDefinition struct {
	Name       string    `json:"name"`
	Label      string    `json:"label"`
	Type       FieldType `json:"type"`
	Filterable bool      `json:"filterable"`
	Options    []string  `json:"options,omitempty"`   // enum values
	Reference  string    `json:"reference,omitempty"` // referenced domain key
}

// ExampleQuery is a sample free-text question for a domain, surfaced by
// introspection and embedded into the model extractor prompt.
type ExampleQuery struct {
	Query       string `json:"query"`
	Description string `json:"description"`
}

// Keywords holds the recognition vocabulary of a domain. Primary keywords
// decide domain estimation; their order inside a domain and the order of
// domains in the registry encode matching priority.
type Keywords struct {
	Primary   []string `json:"primary"`
	Secondary []string `json:"secondary"`
}

// DomainSchema is one queryable domain. Immutable after registry construction.
type DomainSchema struct {
	Key           string            `json:"key"`
	Label         string            `json:"label"`
	Description   string            `json:"description"`
	Fields        []FieldDefinition `json:"fields"`
	DefaultFields []string          `json:"defaultFields"`
	Keywords      Keywords          `json:"keywords"`
	Examples      []ExampleQuery    `json:"examples"`
}

// Field returns the definition of a named field.
func (d *DomainSchema) Field(name string) (FieldDefinition, bool) {
	for _, f := range d.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return FieldDefinition{}, false
}

// IsFilterable reports whether the named field exists and accepts filters.
func (d *DomainSchema) IsFilterable(name string) bool {
	f, ok := d.Field(name)
	return ok && f.Filterable
}

// FieldNames returns the names of all fields in declaration order.
func (d *DomainSchema) FieldNames() []string {
	names := make([]string, 0, len(d.Fields))
	for _, f := range d.Fields {
		names = append(names, f.Name)
	}
	return names
}

// NormalizeText lowercases a query and strips the Hebrew and ASCII quote
// marks that appear inside abbreviations such as תב"ר, so keyword matching
// works regardless of which mark the client keyboard produced.
func NormalizeText(s string) string {
	s = strings.ToLower(s)
	replacer := strings.NewReplacer(
		"׳", "", // geresh
		"״", "", // gershayim
		"'", "",
		"\"", "",
		"“", "",
		"”", "",
	)
	s = replacer.Replace(s)
	return strings.Join(strings.Fields(s), " ")
}
