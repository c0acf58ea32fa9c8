// Package intent implements Stage 1 of the query compiler: turning a
// free-text budget question into a structured, confidence-scored intent.
package intent

import "fmt"

// Action is the aggregation shape requested of the result.
type Action string

const (
	ActionList    Action = "list"
	ActionCount   Action = "count"
	ActionSum     Action = "sum"
	ActionAverage Action = "average"
	ActionGroup   Action = "group"
)

// ValidAction reports whether a is one of the known actions.
func ValidAction(a Action) bool {
	switch a {
	case ActionList, ActionCount, ActionSum, ActionAverage, ActionGroup:
		return true
	}
	return false
}

// Source identifies which extractor produced an intent.
type Source string

const (
	SourceModel Source = "model"
	SourceRules Source = "rules"
)

// ParsedIntent is the structured interpretation of one free-text query.
// Created once by Stage 1, consumed (never mutated) by Stage 2. Domain may
// be empty when no domain could be recognized; Stage 2 rejects such intents.
type ParsedIntent struct {
	Intent      string                 `json:"intent"`
	Domain      string                 `json:"domain"`
	Action      Action                 `json:"action"`
	Filters     map[string]interface{} `json:"filters"`
	Fields      []string               `json:"fields,omitempty"`
	Confidence  float64                `json:"confidence"`
	Explanation string                 `json:"explanation"`
	Source      Source                 `json:"source"`
	Suggestions []string               `json:"suggestions,omitempty"`
}

// Validate checks the parser output contract. A violation here is a bug in
// an extractor, not a property of the user input.
func (p *ParsedIntent) Validate() error {
	if p == nil {
		return fmt.Errorf("intent is nil")
	}
	if p.Confidence < 0 || p.Confidence > 1 {
		return fmt.Errorf("confidence %f outside [0,1]", p.Confidence)
	}
	if !ValidAction(p.Action) {
		return fmt.Errorf("unknown action %q", p.Action)
	}
	return nil
}
