// internal/nlquery/service/service.go
package service

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/google/uuid"

	"budget-nlq/internal/common/errors"
	"budget-nlq/internal/common/logger"
	"budget-nlq/internal/nlquery/compile"
	"budget-nlq/internal/nlquery/intent"
	"budget-nlq/internal/nlquery/schema"
)

// Recorder receives request-level telemetry. Satisfied by
// observability.Observability.
type Recorder interface {
	RecordRequest(ctx context.Context, status string)
	RecordRequestDuration(ctx context.Context, duration time.Duration, status string)
}

// Service wires Stage 1 and Stage 2 together. Stateless: the confirmation
// round trip travels entirely through process variables.
type Service struct {
	parser        *intent.Parser
	compiler      *compile.Compiler
	registry      *schema.Registry
	minConfidence float64
	obs           Recorder
	logger        logger.Logger
}

func New(parser *intent.Parser, compiler *compile.Compiler, registry *schema.Registry, minConfidence float64, log logger.Logger) *Service {
	if minConfidence <= 0 || minConfidence > 1 {
		minConfidence = 0.3
	}
	return &Service{
		parser:        parser,
		compiler:      compiler,
		registry:      registry,
		minConfidence: minConfidence,
		logger:        log.WithFields(map[string]interface{}{"component": "nlquery-service"}),
	}
}

// WithObservability attaches a request telemetry recorder.
func (s *Service) WithObservability(r Recorder) *Service {
	s.obs = r
	return s
}

func (s *Service) record(ctx context.Context, status string, start time.Time) {
	if s.obs == nil {
		return
	}
	s.obs.RecordRequest(ctx, status)
	s.obs.RecordRequestDuration(ctx, time.Since(start), status)
}

// Process runs the full pipeline: parse, gate, execute. A below-threshold
// intent is returned for confirmation instead of being executed.
func (s *Service) Process(ctx context.Context, req *ProcessRequest) (*ProcessResponse, error) {
	requestID := uuid.NewString()
	start := time.Now()
	log := s.logger.WithFields(map[string]interface{}{"requestId": requestID})

	if req == nil || strings.TrimSpace(req.Query) == "" {
		return nil, errors.NewInvalidInputError("query text is empty")
	}

	ctx, cancel := s.withTimeout(ctx, req.Options)
	defer cancel()

	parsed, err := s.parser.Parse(ctx, req.Query)
	if err != nil {
		s.record(ctx, "failed", start)
		return nil, err
	}

	threshold := s.threshold(req.Options)
	if parsed.Domain == "" || parsed.Confidence < threshold {
		log.Info("intent below confirmation threshold", map[string]interface{}{
			"confidence": parsed.Confidence,
			"threshold":  threshold,
			"domain":     parsed.Domain,
		})
		s.record(ctx, StatusAwaitingConfirmation, start)
		return &ProcessResponse{
			RequestID:   requestID,
			Status:      StatusAwaitingConfirmation,
			Intent:      parsed,
			Message:     confirmationMessage(parsed),
			Suggestions: parsed.Suggestions,
		}, nil
	}

	result, err := s.compiler.Execute(ctx, parsed, req.MunicipalityID)
	if err != nil {
		s.record(ctx, "failed", start)
		return nil, err
	}

	s.record(ctx, StatusCompleted, start)
	return &ProcessResponse{
		RequestID: requestID,
		Status:    StatusCompleted,
		Intent:    parsed,
		Result:    result,
	}, nil
}

// Confirm re-enters Stage 2 with a previously returned intent. The query
// text is not re-parsed, so what the user approved is exactly what runs.
func (s *Service) Confirm(ctx context.Context, req *ConfirmRequest) (*ConfirmResponse, error) {
	requestID := uuid.NewString()
	start := time.Now()

	if req == nil || req.Intent == nil {
		return nil, errors.NewInvalidInputError("confirmation intent is missing")
	}
	if err := req.Intent.Validate(); err != nil {
		return nil, errors.NewInvalidInputError(err.Error())
	}

	ctx, cancel := s.withTimeout(ctx, req.Options)
	defer cancel()

	result, err := s.compiler.Execute(ctx, req.Intent, req.MunicipalityID)
	if err != nil {
		s.record(ctx, "failed", start)
		return nil, err
	}

	s.record(ctx, StatusCompleted, start)
	return &ConfirmResponse{
		RequestID:     requestID,
		Status:        StatusCompleted,
		OriginalQuery: req.OriginalQuery,
		Result:        result,
	}, nil
}

// Validate is the surface-level pre-check: query length, script and digit
// detection, plus a keyword-only domain estimate straight from the
// registry. It never invokes the parser or the database, so it stays cheap
// even when a model extractor is configured.
func (s *Service) Validate(_ context.Context, req *ValidateRequest) (*ValidateResponse, error) {
	requestID := uuid.NewString()

	if req == nil {
		return nil, errors.NewInvalidInputError("validation request is missing")
	}

	query := strings.TrimSpace(req.Query)
	resp := &ValidateResponse{
		RequestID:  requestID,
		Valid:      query != "",
		Length:     utf8.RuneCountInString(query),
		HasHebrew:  containsHebrew(query),
		HasNumbers: strings.ContainsAny(query, "0123456789"),
	}
	if resp.Valid {
		resp.EstimatedDomain = s.registry.EstimateDomain(query)
	}
	if resp.EstimatedDomain == "" {
		resp.Suggestions = s.exampleSuggestions()
	}
	return resp, nil
}

func containsHebrew(s string) bool {
	for _, r := range s {
		if unicode.Is(unicode.Hebrew, r) {
			return true
		}
	}
	return false
}

// exampleSuggestions returns one example query per domain, surfaced when
// validation cannot place the query in any domain.
func (s *Service) exampleSuggestions() []string {
	var out []string
	for _, d := range s.registry.List() {
		if len(d.Examples) > 0 {
			out = append(out, d.Examples[0].Query)
		}
	}
	return out
}

// ListDomains returns the queryable catalog.
func (s *Service) ListDomains(_ context.Context) *SchemaResponse {
	return &SchemaResponse{
		RequestID: uuid.NewString(),
		Catalog:   s.registry.Summarize(),
	}
}

// DomainFields returns the full field definitions of one domain.
func (s *Service) DomainFields(_ context.Context, domainKey string) (*DomainFieldsResponse, error) {
	domain, ok := s.registry.Get(domainKey)
	if !ok {
		return nil, errors.NewDomainNotFoundError(domainKey)
	}
	return &DomainFieldsResponse{
		RequestID: uuid.NewString(),
		Domain:    domain.Key,
		Label:     domain.Label,
		Fields:    domain.Fields,
	}, nil
}

// ListExamples returns example queries, optionally for a single domain.
func (s *Service) ListExamples(_ context.Context, domainKey string) (*ExamplesResponse, error) {
	resp := &ExamplesResponse{RequestID: uuid.NewString()}

	if domainKey != "" {
		domain, ok := s.registry.Get(domainKey)
		if !ok {
			return nil, errors.NewDomainNotFoundError(domainKey)
		}
		appendExamples(resp, domain)
		return resp, nil
	}

	for _, domain := range s.registry.List() {
		appendExamples(resp, domain)
	}
	return resp, nil
}

func appendExamples(resp *ExamplesResponse, domain *schema.DomainSchema) {
	for _, ex := range domain.Examples {
		resp.Examples = append(resp.Examples, DomainExample{
			Domain:      domain.Key,
			Query:       ex.Query,
			Description: ex.Description,
		})
	}
}

func (s *Service) threshold(opts *Options) float64 {
	if opts != nil && opts.MinConfidence != nil && *opts.MinConfidence > 0 && *opts.MinConfidence <= 1 {
		return *opts.MinConfidence
	}
	return s.minConfidence
}

func (s *Service) withTimeout(ctx context.Context, opts *Options) (context.Context, context.CancelFunc) {
	if opts != nil && opts.TimeoutMs > 0 {
		return context.WithTimeout(ctx, time.Duration(opts.TimeoutMs)*time.Millisecond)
	}
	return context.WithCancel(ctx)
}

func confirmationMessage(parsed *intent.ParsedIntent) string {
	if parsed.Domain == "" {
		return "לא הצלחתי לזהות את נושא השאלה. נסו אחת מהדוגמאות."
	}
	return fmt.Sprintf("האם התכוונת: %s?", parsed.Explanation)
}
