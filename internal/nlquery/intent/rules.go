// internal/nlquery/intent/rules.go
package intent

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"budget-nlq/internal/common/logger"
	"budget-nlq/internal/nlquery/schema"
)

// Confidence weights. The absolute values are tuning, but the scale must
// stay in [0,1] with "nothing matched" clearly below the default 0.3 gate.
const (
	confidenceBase        = 0.30
	confidenceDomain      = 0.25
	confidenceAction      = 0.20
	confidenceFirstFilter = 0.15
	confidenceExtraFilter = 0.05
	confidenceCap         = 0.95
	confidenceNoDomainCap = 0.20
)

// Action vocabulary, checked in declaration order; the first group that
// matches wins, everything else falls through to list.
var actionVocabulary = []struct {
	action   Action
	keywords []string
}{
	{ActionCount, []string{"כמה", "מספר ה", "how many", "count"}},
	{ActionSum, []string{"סכום", "סך הכל", "סהכ", "total", "sum"}},
	{ActionAverage, []string{"ממוצע", "בממוצע", "average", "mean"}},
	{ActionGroup, []string{"לפי", "פילוח", "בחלוקה", "group by", "breakdown"}},
}

var (
	tabarNumberPattern = regexp.MustCompile(`תבר\s*(\d+)|tabar\s*(\d+)`)
	ministryPattern    = regexp.MustCompile(`(משרד ה[\p{Hebrew}]+)|ministry of ([a-z]+(?: [a-z]+)?)`)
	abovePattern       = regexp.MustCompile(`(?:מעל|יותר מ-?|above|over)\s*([\d,.]+|מיליון|אלף)(?:\s*(מיליון|אלף|million|thousand))?`)
	belowPattern       = regexp.MustCompile(`(?:מתחת ל-?|פחות מ-?|under|below|less than)\s*([\d,.]+|מיליון|אלף)(?:\s*(מיליון|אלף|million|thousand))?`)
	betweenPattern     = regexp.MustCompile(`(?:בין|between)\s*([\d,.]+)\s*(?:ל-?|ועד|and|to)\s*([\d,.]+)`)
	yearPattern        = regexp.MustCompile(`(?:בשנת|שנת|in|year)\s*((?:19|20)\d{2})|\b((?:19|20)\d{2})\b`)
	entityPattern      = regexp.MustCompile(`(?:של|עבור)\s+([\p{Hebrew}\d "]+)$`)
)

var statusVocabulary = []struct {
	value    string
	keywords []string
}{
	{"active", []string{"פעילים", "פעיל", "פעילות", "active"}},
	{"closed", []string{"סגורים", "סגור", "שנסגרו", "closed"}},
	{"pending", []string{"ממתינים", "ממתין", "באישור", "pending"}},
}

// amountField maps each domain to the numeric field that bare comparative
// phrases ("מעל מיליון") constrain.
var amountField = map[string]string{
	"tabarim":       "total_authorized",
	"transactions":  "amount",
	"budget_items":  "executed_amount",
	"comprehensive": "total_authorized",
}

// RuleExtractor is the deterministic keyword/pattern matcher over the
// schema registry. It is always available and never returns an error:
// unparseable input degrades confidence instead of failing, so Stage 1
// output is always inspectable by a human.
type RuleExtractor struct {
	registry *schema.Registry
	logger   logger.Logger
}

func NewRuleExtractor(registry *schema.Registry, log logger.Logger) *RuleExtractor {
	return &RuleExtractor{
		registry: registry,
		logger:   log.WithFields(map[string]interface{}{"extractor": "rules"}),
	}
}

func (e *RuleExtractor) ExtractIntent(_ context.Context, query string) (*ParsedIntent, error) {
	normalized := schema.NormalizeText(query)

	domainKey := e.registry.EstimateDomain(query)
	action, actionMatched := detectAction(normalized)

	parsed := &ParsedIntent{
		Intent:  query,
		Domain:  domainKey,
		Action:  action,
		Filters: map[string]interface{}{},
		Source:  SourceRules,
	}

	if domainKey == "" {
		parsed.Confidence = confidenceNoDomainCap
		parsed.Explanation = "לא זוהה תחום מתאים לשאלה"
		parsed.Suggestions = e.suggestions()
		return parsed, nil
	}

	domain, _ := e.registry.Get(domainKey)
	e.extractFilters(normalized, domain, parsed.Filters)

	parsed.Confidence = score(true, actionMatched, len(parsed.Filters))
	parsed.Explanation = explain(domain, action, parsed.Filters)

	e.logger.Debug("intent extracted", map[string]interface{}{
		"domain":      domainKey,
		"action":      string(action),
		"filterCount": len(parsed.Filters),
		"confidence":  parsed.Confidence,
	})

	return parsed, nil
}

func detectAction(normalized string) (Action, bool) {
	for _, group := range actionVocabulary {
		for _, kw := range group.keywords {
			if strings.Contains(normalized, kw) {
				return group.action, true
			}
		}
	}
	return ActionList, false
}

// extractFilters populates filters from comparative and prepositional
// patterns, constrained to the domain's filterable fields.
func (e *RuleExtractor) extractFilters(normalized string, domain *schema.DomainSchema, filters map[string]interface{}) {
	if m := tabarNumberPattern.FindStringSubmatch(normalized); m != nil && domain.IsFilterable("tabar_number") {
		num := m[1]
		if num == "" {
			num = m[2]
		}
		if n, err := strconv.Atoi(num); err == nil {
			filters["tabar_number"] = n
		}
	}

	if m := ministryPattern.FindStringSubmatch(normalized); m != nil && domain.IsFilterable("ministry_name") {
		name := m[1]
		if name == "" {
			name = m[2]
		}
		filters["ministry_name"] = strings.TrimSpace(name)
	}

	if domain.IsFilterable("status") {
	statuses:
		for _, group := range statusVocabulary {
			for _, kw := range group.keywords {
				if strings.Contains(normalized, kw) {
					filters["status"] = group.value
					break statuses
				}
			}
		}
	}

	field := amountField[domain.Key]
	if domain.IsFilterable(field) {
		if m := abovePattern.FindStringSubmatch(normalized); m != nil {
			if v, ok := parseAmount(m[1], m[2]); ok {
				filters[field+"_gt"] = v
			}
		}
		if m := belowPattern.FindStringSubmatch(normalized); m != nil {
			if v, ok := parseAmount(m[1], m[2]); ok {
				filters[field+"_lt"] = v
			}
		}
		if m := betweenPattern.FindStringSubmatch(normalized); m != nil {
			from, okFrom := parseAmount(m[1], "")
			to, okTo := parseAmount(m[2], "")
			if okFrom && okTo && from <= to {
				filters[field+"_from"] = from
				filters[field+"_to"] = to
			}
		}
	}

	if m := yearPattern.FindStringSubmatch(normalized); m != nil {
		year := m[1]
		if year == "" {
			year = m[2]
		}
		// A year already captured as a tabar number is not a year filter.
		if n, err := strconv.Atoi(year); err == nil && filters["tabar_number"] != n {
			filters["year"] = n
		}
	}

	// Entity phrase after "של"/"עבור" that is not a ministry or a project
	// number becomes a multi-field search term.
	if _, hasMinistry := filters["ministry_name"]; !hasMinistry {
		if m := entityPattern.FindStringSubmatch(normalized); m != nil {
			term := strings.TrimSpace(m[1])
			if term != "" && !tabarNumberPattern.MatchString(term) && !isNumeric(term) {
				filters["search"] = term
			}
		}
	}
}

func parseAmount(raw, unit string) (float64, bool) {
	var value float64
	switch raw {
	case "מיליון":
		return 1000000, true
	case "אלף":
		return 1000, true
	default:
		cleaned := strings.ReplaceAll(raw, ",", "")
		v, err := strconv.ParseFloat(cleaned, 64)
		if err != nil {
			return 0, false
		}
		value = v
	}

	switch unit {
	case "מיליון", "million":
		value *= 1000000
	case "אלף", "thousand":
		value *= 1000
	}
	return value, true
}

func isNumeric(s string) bool {
	_, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	return err == nil
}

func score(domainMatched, actionMatched bool, filterCount int) float64 {
	confidence := confidenceBase
	if domainMatched {
		confidence += confidenceDomain
	}
	if actionMatched {
		confidence += confidenceAction
	}
	if filterCount > 0 {
		confidence += confidenceFirstFilter
		confidence += confidenceExtraFilter * float64(filterCount-1)
	}
	if confidence > confidenceCap {
		confidence = confidenceCap
	}
	return confidence
}

func explain(domain *schema.DomainSchema, action Action, filters map[string]interface{}) string {
	verb := map[Action]string{
		ActionList:    "הצגת",
		ActionCount:   "ספירת",
		ActionSum:     "סיכום",
		ActionAverage: "ממוצע",
		ActionGroup:   "פילוח",
	}[action]

	if len(filters) == 0 {
		return fmt.Sprintf("%s %s", verb, domain.Label)
	}
	return fmt.Sprintf("%s %s עם %d תנאים", verb, domain.Label, len(filters))
}

// suggestions returns one example query per domain, used when no domain
// was recognized.
func (e *RuleExtractor) suggestions() []string {
	var out []string
	for _, d := range e.registry.List() {
		if len(d.Examples) > 0 {
			out = append(out, d.Examples[0].Query)
		}
	}
	return out
}
