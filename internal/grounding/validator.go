// Package grounding decides whether generated text may be released: every
// factual claim must be traceable to a retrieved source via [S<n>] citation
// markers.
package grounding

import (
	"regexp"
	"sort"
)

// Rejection reasons. These are outcomes, not errors.
const (
	ReasonNoCitations      = "NO_CITATIONS"
	ReasonInvalidCitations = "INVALID_CITATIONS"
)

var citationPattern = regexp.MustCompile(`\[(S\d+)\]`)

// Result is the validation verdict. When OK is false, Reason says why; when
// OK is true with out-of-set citations under non-strict mode, they appear in
// InvalidCitations as a warning.
type Result struct {
	OK               bool     `json:"ok"`
	Reason           string   `json:"reason,omitempty"`
	Citations        []string `json:"citations"`
	InvalidCitations []string `json:"invalid_citations,omitempty"`
	Text             string   `json:"text,omitempty"`
}

// ExtractCitations returns the citation ids of text in first-occurrence
// order, de-duplicated.
func ExtractCitations(text string) []string {
	if text == "" {
		return nil
	}

	seen := make(map[string]bool)
	var ordered []string
	for _, match := range citationPattern.FindAllStringSubmatch(text, -1) {
		id := match[1]
		if !seen[id] {
			seen[id] = true
			ordered = append(ordered, id)
		}
	}
	return ordered
}

// Validate checks text against the set of citation ids the retriever actually
// returned. Pure function of its inputs.
func Validate(text string, allowedIDs []string, citationsRequired, strict bool) Result {
	allowed := make(map[string]bool, len(allowedIDs))
	for _, id := range allowedIDs {
		allowed[id] = true
	}

	extracted := ExtractCitations(text)

	if citationsRequired && len(extracted) == 0 {
		return Result{
			OK:        false,
			Reason:    ReasonNoCitations,
			Citations: extracted,
		}
	}

	var invalid []string
	for _, id := range extracted {
		if !allowed[id] {
			invalid = append(invalid, id)
		}
	}
	sort.Strings(invalid)

	if len(invalid) > 0 && strict {
		return Result{
			OK:               false,
			Reason:           ReasonInvalidCitations,
			Citations:        extracted,
			InvalidCitations: invalid,
		}
	}

	return Result{
		OK:               true,
		Citations:        extracted,
		InvalidCitations: invalid,
		Text:             text,
	}
}
