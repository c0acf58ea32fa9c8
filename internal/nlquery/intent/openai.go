// internal/nlquery/intent/openai.go
package intent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"github.com/xeipuuv/gojsonschema"

	"budget-nlq/internal/common/config"
	stderrors "budget-nlq/internal/common/errors"
	"budget-nlq/internal/common/logger"
	"budget-nlq/internal/nlquery/schema"
)

// intentResponseSchema constrains the model output before it is trusted.
// Anything that fails validation is treated as extractor failure, which
// sends the query to the rule-based path instead.
const intentResponseSchema = `{
	"type": "object",
	"required": ["domain", "action", "confidence"],
	"properties": {
		"domain": {"type": "string"},
		"action": {"type": "string", "enum": ["list", "count", "sum", "average", "group"]},
		"filters": {"type": "object"},
		"fields": {"type": "array", "items": {"type": "string"}},
		"confidence": {"type": "number", "minimum": 0, "maximum": 1},
		"explanation": {"type": "string"}
	},
	"additionalProperties": false
}`

const systemPromptTemplate = `You translate municipal budget questions, written in Hebrew or English, into a JSON intent.

Available domains, fields and actions:
%s

Rules:
- Respond with a single JSON object only, no prose and no code fences.
- "domain" must be one of the listed domain keys, or "" when the question does not fit any domain.
- "filters" keys must be filterable fields of the chosen domain. Numeric range filters use the suffixes _gt, _lt, _from, _to.
- "confidence" reflects how certain you are of the interpretation, between 0 and 1.
- "explanation" is one short sentence in the language of the question.`

// ModelExtractor asks a chat-completion model to produce the intent. The
// registry summary is embedded in the system prompt so the model's output
// vocabulary stays within the catalog.
type ModelExtractor struct {
	client       *openai.Client
	model        string
	timeout      time.Duration
	systemPrompt string
	validator    *gojsonschema.Schema
	registry     *schema.Registry
	logger       logger.Logger
}

func NewModelExtractor(cfg config.ExtractorConfig, registry *schema.Registry, log logger.Logger) (*ModelExtractor, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("extractor API key is empty")
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	validator, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(intentResponseSchema))
	if err != nil {
		return nil, fmt.Errorf("compiling intent response schema: %w", err)
	}

	summary, err := json.Marshal(registry.Summarize())
	if err != nil {
		return nil, fmt.Errorf("serializing registry summary: %w", err)
	}

	timeout := time.Duration(cfg.Timeout) * time.Millisecond
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &ModelExtractor{
		client:       openai.NewClientWithConfig(clientCfg),
		model:        cfg.Model,
		timeout:      timeout,
		systemPrompt: fmt.Sprintf(systemPromptTemplate, summary),
		validator:    validator,
		registry:     registry,
		logger:       log.WithFields(map[string]interface{}{"extractor": "model"}),
	}, nil
}

func (e *ModelExtractor) ExtractIntent(ctx context.Context, query string) (*ParsedIntent, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	resp, err := e.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       e.model,
		Temperature: 0,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: e.systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: query},
		},
	})
	if err != nil {
		return nil, stderrors.NewExtractorUnavailableError(describeAPIError(err))
	}
	if len(resp.Choices) == 0 {
		return nil, stderrors.NewExtractorUnavailableError(errors.New("empty completion response"))
	}

	parsed, err := e.parseResponse(query, resp.Choices[0].Message.Content)
	if err != nil {
		e.logger.Warn("model output rejected", map[string]interface{}{"error": err.Error()})
		return nil, stderrors.NewIntentParsingFailedError(err.Error())
	}
	return parsed, nil
}

// parseResponse validates the raw completion against the response schema
// and the registry before accepting it as an intent.
func (e *ModelExtractor) parseResponse(query, raw string) (*ParsedIntent, error) {
	raw = stripCodeFence(raw)

	result, err := e.validator.Validate(gojsonschema.NewStringLoader(raw))
	if err != nil {
		return nil, fmt.Errorf("completion is not valid JSON: %w", err)
	}
	if !result.Valid() {
		return nil, fmt.Errorf("completion violates response schema: %s", result.Errors()[0])
	}

	var body struct {
		Domain      string                 `json:"domain"`
		Action      string                 `json:"action"`
		Filters     map[string]interface{} `json:"filters"`
		Fields      []string               `json:"fields"`
		Confidence  float64                `json:"confidence"`
		Explanation string                 `json:"explanation"`
	}
	if err := json.Unmarshal([]byte(raw), &body); err != nil {
		return nil, fmt.Errorf("decoding completion: %w", err)
	}

	if body.Domain != "" {
		if _, ok := e.registry.Get(body.Domain); !ok {
			return nil, fmt.Errorf("model returned unknown domain %q", body.Domain)
		}
	}
	if body.Filters == nil {
		body.Filters = map[string]interface{}{}
	}

	parsed := &ParsedIntent{
		Intent:      query,
		Domain:      body.Domain,
		Action:      Action(body.Action),
		Filters:     body.Filters,
		Fields:      body.Fields,
		Confidence:  body.Confidence,
		Explanation: body.Explanation,
		Source:      SourceModel,
	}
	if err := parsed.Validate(); err != nil {
		return nil, err
	}
	return parsed, nil
}

// stripCodeFence tolerates models that wrap JSON in a markdown fence
// despite the prompt.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// describeAPIError condenses transport errors so the raw provider error,
// which may include request bodies, never reaches process variables.
func describeAPIError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("completion API error %d: %s", apiErr.HTTPStatusCode, apiErr.Message)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return fmt.Errorf("completion API error %d", reqErr.HTTPStatusCode)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return errors.New("completion request timed out")
	}
	return errors.New("completion request failed")
}
