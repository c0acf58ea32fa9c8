// Package service orchestrates the two compiler stages behind the worker
// transport: confidence gating, confirmation, validation and schema
// introspection.
package service

import (
	"budget-nlq/internal/nlquery/compile"
	"budget-nlq/internal/nlquery/intent"
	"budget-nlq/internal/nlquery/schema"
)

// Response status values. awaiting_confirmation means Stage 2 was not run
// and the caller should echo the intent back through Confirm.
const (
	StatusCompleted            = "completed"
	StatusAwaitingConfirmation = "awaiting_confirmation"
)

// Options are per-request overrides. Zero values fall back to configured
// defaults.
type Options struct {
	// MinConfidence overrides the confirmation threshold for this request.
	MinConfidence *float64 `json:"minConfidence,omitempty"`
	// TimeoutMs bounds parsing and execution together.
	TimeoutMs int `json:"timeoutMs,omitempty"`
}

type ProcessRequest struct {
	Query          string   `json:"query"`
	MunicipalityID int      `json:"municipalityId"`
	Options        *Options `json:"options,omitempty"`
}

type ProcessResponse struct {
	RequestID   string                `json:"requestId"`
	Status      string                `json:"status"`
	Intent      *intent.ParsedIntent  `json:"intent"`
	Result      *compile.QueryResult  `json:"result,omitempty"`
	Message     string                `json:"message,omitempty"`
	Suggestions []string              `json:"suggestions,omitempty"`
}

// ConfirmRequest carries back the intent echoed by a below-threshold
// Process response, together with the original query text. The query is
// never re-parsed; it travels through for traceability only.
type ConfirmRequest struct {
	Intent         *intent.ParsedIntent `json:"intent"`
	OriginalQuery  string               `json:"originalQuery,omitempty"`
	MunicipalityID int                  `json:"municipalityId"`
	Options        *Options             `json:"options,omitempty"`
}

type ConfirmResponse struct {
	RequestID     string               `json:"requestId"`
	Status        string               `json:"status"`
	OriginalQuery string               `json:"originalQuery,omitempty"`
	Result        *compile.QueryResult `json:"result"`
}

type ValidateRequest struct {
	Query string `json:"query"`
}

// ValidateResponse is the cheap pre-check answer: surface features of the
// query text plus a keyword-only domain estimate. No parse, no database.
type ValidateResponse struct {
	RequestID       string   `json:"requestId"`
	Valid           bool     `json:"valid"`
	Length          int      `json:"length"`
	HasHebrew       bool     `json:"hasHebrew"`
	HasNumbers      bool     `json:"hasNumbers"`
	EstimatedDomain string   `json:"estimatedDomain,omitempty"`
	Suggestions     []string `json:"suggestions,omitempty"`
}

type SchemaResponse struct {
	RequestID string         `json:"requestId"`
	Catalog   schema.Summary `json:"catalog"`
}

type DomainFieldsResponse struct {
	RequestID string                   `json:"requestId"`
	Domain    string                   `json:"domain"`
	Label     string                   `json:"label"`
	Fields    []schema.FieldDefinition `json:"fields"`
}

type ExamplesResponse struct {
	RequestID string                `json:"requestId"`
	Examples  []DomainExample       `json:"examples"`
}

type DomainExample struct {
	Domain      string `json:"domain"`
	Query       string `json:"query"`
	Description string `json:"description"`
}
