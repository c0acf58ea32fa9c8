// internal/nlquery/intent/extractor.go
package intent

import "context"

// Extractor turns one free-text query into a ParsedIntent. The parser holds
// two interchangeable implementations: the language-model client and the
// rule-based matcher, selected by availability.
type Extractor interface {
	ExtractIntent(ctx context.Context, query string) (*ParsedIntent, error)
}
