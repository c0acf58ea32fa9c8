// internal/nlquery/intent/parser.go
package intent

import (
	"context"
	"strings"

	"budget-nlq/internal/common/errors"
	"budget-nlq/internal/common/logger"
	"budget-nlq/internal/common/metrics"
)

// Parser is Stage 1. It prefers the model extractor and falls back to the
// rule-based one when the model path is absent, fails, or returns an intent
// the contract rejects. The fallback means Stage 1 as a whole never
// requires network access to answer.
type Parser struct {
	model  Extractor
	rules  Extractor
	logger logger.Logger
}

// NewParser wires the two extractors. model may be nil when no API key is
// configured; rules must never be nil.
func NewParser(model, rules Extractor, log logger.Logger) *Parser {
	return &Parser{
		model:  model,
		rules:  rules,
		logger: log.WithFields(map[string]interface{}{"component": "intent-parser"}),
	}
}

// Parse produces the structured intent for one query. The only error it
// returns is invalid input; extractor failures are absorbed by falling back.
func (p *Parser) Parse(ctx context.Context, query string) (*ParsedIntent, error) {
	if strings.TrimSpace(query) == "" {
		return nil, errors.NewInvalidInputError("query text is empty")
	}

	if p.model != nil {
		parsed, err := p.model.ExtractIntent(ctx, query)
		if err == nil {
			p.record(parsed)
			return parsed, nil
		}
		p.logger.Warn("model extraction failed, using rules", map[string]interface{}{
			"error": err.Error(),
		})
	}

	parsed, err := p.rules.ExtractIntent(ctx, query)
	if err != nil {
		return nil, errors.NewIntentParsingFailedError(err.Error())
	}
	p.record(parsed)
	return parsed, nil
}

func (p *Parser) record(parsed *ParsedIntent) {
	source := string(parsed.Source)
	metrics.IntentParsesTotal.WithLabelValues(source).Inc()
	metrics.IntentConfidence.WithLabelValues(source).Observe(parsed.Confidence)
}
