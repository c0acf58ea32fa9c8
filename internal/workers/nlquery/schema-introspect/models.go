// internal/workers/nlquery/schema-introspect/models.go
package schemaintrospect

// Operations supported by the introspection worker.
const (
	OperationDomains  = "domains"
	OperationFields   = "fields"
	OperationExamples = "examples"
)

type Input struct {
	// Operation selects the view: domains, fields or examples. Empty
	// defaults to domains.
	Operation string `json:"operation,omitempty"`
	// Domain is required for fields, optional for examples.
	Domain string `json:"domain,omitempty"`
}

type Output struct {
	Catalog interface{} `json:"catalog"`
}
