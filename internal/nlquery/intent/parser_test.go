package intent

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	stderrors "budget-nlq/internal/common/errors"
	"budget-nlq/internal/common/logger"
	"budget-nlq/internal/nlquery/schema"
)

type fakeExtractor struct {
	parsed *ParsedIntent
	err    error
	calls  int
}

func (f *fakeExtractor) ExtractIntent(_ context.Context, query string) (*ParsedIntent, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	out := *f.parsed
	out.Intent = query
	return &out, nil
}

func modelIntent(confidence float64) *ParsedIntent {
	return &ParsedIntent{
		Domain:     "tabarim",
		Action:     ActionList,
		Filters:    map[string]interface{}{"status": "active"},
		Confidence: confidence,
		Source:     SourceModel,
	}
}

func TestParser_PrefersModel(t *testing.T) {
	model := &fakeExtractor{parsed: modelIntent(0.9)}
	rules := &fakeExtractor{parsed: &ParsedIntent{Action: ActionList, Source: SourceRules}}
	parser := NewParser(model, rules, logger.NewTestLogger(t))

	parsed, err := parser.Parse(context.Background(), "תברים פעילים")
	require.NoError(t, err)

	assert.Equal(t, SourceModel, parsed.Source)
	assert.Equal(t, 1, model.calls)
	assert.Equal(t, 0, rules.calls)
}

func TestParser_FallsBackOnModelError(t *testing.T) {
	model := &fakeExtractor{err: errors.New("connection refused")}
	rules := NewRuleExtractor(schema.NewRegistry(), logger.NewTestLogger(t))
	parser := NewParser(model, rules, logger.NewTestLogger(t))

	parsed, err := parser.Parse(context.Background(), "כמה תברים פעילים יש")
	require.NoError(t, err)

	assert.Equal(t, SourceRules, parsed.Source)
	assert.Equal(t, "tabarim", parsed.Domain)
	assert.Equal(t, ActionCount, parsed.Action)
}

func TestParser_NoModelConfigured(t *testing.T) {
	rules := NewRuleExtractor(schema.NewRegistry(), logger.NewTestLogger(t))
	parser := NewParser(nil, rules, logger.NewTestLogger(t))

	parsed, err := parser.Parse(context.Background(), "תברים של משרד החינוך")
	require.NoError(t, err)
	assert.Equal(t, SourceRules, parsed.Source)
}

func TestParser_EmptyQuery(t *testing.T) {
	rules := NewRuleExtractor(schema.NewRegistry(), logger.NewTestLogger(t))
	parser := NewParser(nil, rules, logger.NewTestLogger(t))

	for _, query := range []string{"", "   ", "\t\n"} {
		_, err := parser.Parse(context.Background(), query)
		require.Error(t, err)

		var stdErr *stderrors.StandardError
		require.ErrorAs(t, err, &stdErr)
		assert.Equal(t, stderrors.ErrCodeInvalidInput, stdErr.Code)
	}
}
