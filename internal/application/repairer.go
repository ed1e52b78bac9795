package application

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/ahrav/go-dossier/internal/domain"
)

// Contract field names of the synthesis output.
const (
	fieldSummary   = "summary_markdown"
	fieldFindings  = "key_findings"
	fieldCaveats   = "caveats"
	fieldQuestions = "related_questions"
)

var (
	findingsHeading = regexp.MustCompile(`(?i)##\s*Key Findings?\s*\n`)
	caveatsHeading  = regexp.MustCompile(`(?i)##\s*Caveats?\s*\n`)
	listMarker      = regexp.MustCompile(`^[-*]\s*`)
)

// RepairOutcome records which path produced an accepted result.
type RepairOutcome string

const (
	OutcomeParsed   RepairOutcome = "parsed"
	OutcomeRepaired RepairOutcome = "repaired"
)

// ResponseRepairer turns raw synthesis output into a SynthesisResult.
//
// Output that parses as a JSON object is accepted after shape coercion.
// Anything else enters a single repair pass: an object embedded in prose or a
// fenced code block is recovered if present, then markdown "Key Findings" and
// "Caveats" sections are lifted out of the summary. When neither an object nor
// a heading can be found the output is rejected with a SynthesisFormatError.
type ResponseRepairer struct {
	logger *slog.Logger
}

// NewResponseRepairer creates a repairer. A nil logger discards output.
func NewResponseRepairer(logger *slog.Logger) *ResponseRepairer {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &ResponseRepairer{logger: logger}
}

// Repair parses raw and reports whether the repair path was needed.
func (r *ResponseRepairer) Repair(raw string) (domain.SynthesisResult, RepairOutcome, error) {
	text := strings.TrimSpace(raw)
	if text == "" {
		return domain.SynthesisResult{}, "", domain.NewSynthesisFormatError("empty completion", raw, nil)
	}

	if obj, ok := decodeObject(text); ok {
		res, err := coerceResult(obj)
		if err != nil {
			return domain.SynthesisResult{}, "", domain.NewSynthesisFormatError("parse", raw, err)
		}
		r.checkQuestions(res)
		return res, OutcomeParsed, nil
	}

	res, err := r.repair(text)
	if err != nil {
		return domain.SynthesisResult{}, "", domain.NewSynthesisFormatError("repair", raw, err)
	}
	r.logger.Warn("synthesis output required repair",
		"findings", len(res.KeyFindings), "caveats", len(res.Caveats))
	r.checkQuestions(res)
	return res, OutcomeRepaired, nil
}

func (r *ResponseRepairer) repair(text string) (domain.SynthesisResult, error) {
	var base domain.SynthesisResult
	recovered := false

	if candidate := extractJSON(text); candidate != "" {
		if obj, ok := decodeObject(candidate); ok {
			res, err := coerceResult(obj)
			if err != nil {
				return domain.SynthesisResult{}, err
			}
			base, recovered = res, true
		}
	}
	if !recovered {
		base = emptyResult()
		base.SummaryMarkdown = text
	}

	findings, summary, foundFindings := liftSection(base.SummaryMarkdown, findingsHeading)
	caveats, summary, foundCaveats := liftSection(summary, caveatsHeading)

	if !recovered && !foundFindings && !foundCaveats {
		return domain.SynthesisResult{}, errors.New("no JSON object or recognizable sections in output")
	}

	if recovered && strings.TrimSpace(summary) == "" {
		summary = base.SummaryMarkdown
	}
	base.SummaryMarkdown = summary
	if len(findings) > 0 {
		base.KeyFindings = findings
	}
	if len(caveats) > 0 {
		base.Caveats = caveats
	}
	return base, nil
}

func (r *ResponseRepairer) checkQuestions(res domain.SynthesisResult) {
	if n := len(res.RelatedQuestions); n < 3 || n > 5 {
		r.logger.Warn("related questions outside expected range", "count", n)
	}
}

func emptyResult() domain.SynthesisResult {
	return domain.SynthesisResult{
		KeyFindings:      []string{},
		Caveats:          []string{},
		RelatedQuestions: []string{},
	}
}

func decodeObject(text string) (map[string]any, bool) {
	var obj map[string]any
	if err := json.Unmarshal([]byte(text), &obj); err != nil || obj == nil {
		return nil, false
	}
	return obj, true
}

func coerceResult(obj map[string]any) (domain.SynthesisResult, error) {
	res := emptyResult()

	switch v := obj[fieldSummary].(type) {
	case nil:
	case string:
		res.SummaryMarkdown = v
	default:
		return domain.SynthesisResult{}, fmt.Errorf("%s must be a string, got %T", fieldSummary, v)
	}

	lists := []struct {
		field string
		dst   *[]string
	}{
		{fieldFindings, &res.KeyFindings},
		{fieldCaveats, &res.Caveats},
		{fieldQuestions, &res.RelatedQuestions},
	}
	for _, l := range lists {
		items, err := coerceList(l.field, obj[l.field])
		if err != nil {
			return domain.SynthesisResult{}, err
		}
		*l.dst = items
	}
	return res, nil
}

// coerceList accepts an array of strings as-is and wraps any other present
// scalar in a single-element list. Null, "", false and 0 count as absent.
// An array holding anything but strings is rejected.
func coerceList(field string, v any) ([]string, error) {
	switch val := v.(type) {
	case nil:
		return []string{}, nil
	case []any:
		out := make([]string, 0, len(val))
		for i, item := range val {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("%s[%d] must be a string, got %s", field, i, jsonKind(item))
			}
			out = append(out, s)
		}
		return out, nil
	case string:
		if val == "" {
			return []string{}, nil
		}
	case bool:
		if !val {
			return []string{}, nil
		}
	case float64:
		if val == 0 {
			return []string{}, nil
		}
	}
	return []string{stringify(v)}, nil
}

func jsonKind(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case map[string]any:
		return "object"
	case []any:
		return "array"
	case bool:
		return "boolean"
	case float64:
		return "number"
	default:
		return fmt.Sprintf("%T", v)
	}
}

func stringify(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(b)
}

// liftSection collects list items from every block introduced by heading and
// returns the text with those blocks removed. A block runs until the next
// line beginning with "##" or the end of the text.
func liftSection(text string, heading *regexp.Regexp) ([]string, string, bool) {
	var (
		items []string
		kept  []string
		found bool
	)
	keep := func(s string) {
		if s = strings.TrimSpace(s); s != "" {
			kept = append(kept, s)
		}
	}

	rest := text
	for {
		loc := heading.FindStringIndex(rest)
		if loc == nil {
			keep(rest)
			break
		}
		found = true
		keep(rest[:loc[0]])

		body := rest[loc[1]:]
		end := strings.Index(body, "\n##")
		if end == -1 {
			end = len(body)
		}
		items = append(items, listItems(body[:end])...)
		rest = body[end:]
	}
	return items, strings.Join(kept, "\n\n"), found
}

func listItems(block string) []string {
	var items []string
	for _, line := range strings.Split(block, "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "-") && !strings.HasPrefix(line, "*") {
			continue
		}
		if item := strings.TrimSpace(listMarker.ReplaceAllString(line, "")); item != "" {
			items = append(items, item)
		}
	}
	return items
}

// extractJSON attempts to extract a JSON object from a response that might
// contain additional text before or after it, including markdown code
// blocks.
func extractJSON(response string) string {
	response = strings.TrimSpace(response)

	if start := strings.Index(response, "```json"); start != -1 {
		start += len("```json")
		if end := strings.Index(response[start:], "```"); end != -1 {
			return strings.TrimSpace(response[start : start+end])
		}
	}

	// Generic fences, skipping any language identifier.
	if start := strings.Index(response, "```"); start != -1 {
		start += 3
		if nl := strings.Index(response[start:], "\n"); nl != -1 {
			start += nl + 1
		}
		if end := strings.Index(response[start:], "```"); end != -1 {
			candidate := strings.TrimSpace(response[start : start+end])
			if strings.HasPrefix(candidate, "{") {
				return candidate
			}
		}
	}

	start := strings.Index(response, "{")
	if start == -1 {
		return ""
	}

	// Match the closing brace, ignoring braces inside strings.
	depth := 0
	inString := false
	escapeNext := false
	for i := start; i < len(response); i++ {
		c := response[i]
		if escapeNext {
			escapeNext = false
			continue
		}
		if c == '\\' {
			escapeNext = true
			continue
		}
		if c == '"' {
			inString = !inString
			continue
		}
		if inString {
			continue
		}
		switch c {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return response[start : i+1]
			}
		}
	}
	return ""
}
