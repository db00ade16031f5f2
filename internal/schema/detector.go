package schema

import (
	"fmt"
	"strings"
)

// Outcome tags the result of a detection pass.
type Outcome string

const (
	OutcomeMatched   Outcome = "matched"
	OutcomeAmbiguous Outcome = "ambiguous"
	OutcomeNoMatch   Outcome = "no_match"
)

// Candidate scores one record shape against a header row.
type Candidate struct {
	Kind               Kind     `json:"kind"`
	ExpectedColumns    int      `json:"expectedColumns"`
	RequiredColumns    int      `json:"requiredColumns"`
	Missing            []string `json:"missing"`
	ColumnCountMatches bool     `json:"columnCountMatches"`
}

// Matches reports whether every required column is present and the count is exact.
func (c Candidate) Matches() bool {
	return len(c.Missing) == 0 && c.ColumnCountMatches
}

// DetectionResult is the outcome of classifying a header row.
type DetectionResult struct {
	Outcome     Outcome     `json:"outcome"`
	Type        *Kind       `json:"type"`
	ColumnCount int         `json:"columnCount"`
	Headers     []string    `json:"headers"`
	Candidates  []Candidate `json:"candidates"`
	Diagnostics []string    `json:"diagnostics"`
}

// Matched reports whether exactly one shape was selected.
func (r DetectionResult) Matched() bool {
	return r.Outcome == OutcomeMatched && r.Type != nil
}

// Detector classifies header rows against the registry.
type Detector struct {
	registry *Registry
}

// NewDetector returns a detector over registry.
func NewDetector(registry *Registry) *Detector {
	if registry == nil {
		registry = Default()
	}
	return &Detector{registry: registry}
}

// Detect scores every registered shape and selects the one whose required
// columns are all present and whose column count matches exactly.
func (d *Detector) Detect(headers []string) DetectionResult {
	result := DetectionResult{
		ColumnCount: len(headers),
		Headers:     append([]string(nil), headers...),
		Diagnostics: []string{},
	}

	present := make(map[string]struct{}, len(headers))
	for _, header := range headers {
		present[normalizeHeader(header)] = struct{}{}
	}

	var matched []Kind
	for _, def := range d.registry.Definitions() {
		candidate := scoreCandidate(def, present, len(headers))
		result.Candidates = append(result.Candidates, candidate)
		if candidate.Matches() {
			matched = append(matched, def.Kind)
		}
	}

	switch len(matched) {
	case 1:
		kind := matched[0]
		result.Outcome = OutcomeMatched
		result.Type = &kind
		return result
	case 0:
		result.Outcome = OutcomeNoMatch
	default:
		result.Outcome = OutcomeAmbiguous
	}

	if tied(result.Candidates) {
		result.Outcome = OutcomeAmbiguous
	}
	result.Diagnostics = diagnose(result.Candidates, len(headers))
	return result
}

func scoreCandidate(def Definition, present map[string]struct{}, columnCount int) Candidate {
	required := def.DetectionFields()
	candidate := Candidate{
		Kind:               def.Kind,
		ExpectedColumns:    def.ExpectedColumns,
		RequiredColumns:    len(required),
		Missing:            []string{},
		ColumnCountMatches: columnCount == def.ExpectedColumns,
	}
	for _, field := range required {
		found := false
		for _, variant := range field.Variants {
			if _, ok := present[normalizeHeader(variant)]; ok {
				found = true
				break
			}
		}
		if !found {
			candidate.Missing = append(candidate.Missing, displayName(field))
		}
	}
	return candidate
}

// tied reports whether the two best candidates miss the same number of columns.
func tied(candidates []Candidate) bool {
	if len(candidates) < 2 {
		return false
	}
	best, second := -1, -1
	for _, c := range candidates {
		missing := len(c.Missing)
		switch {
		case best < 0 || missing < best:
			best, second = missing, best
		case second < 0 || missing < second:
			second = missing
		}
	}
	return best == second
}

func diagnose(candidates []Candidate, columnCount int) []string {
	var diagnostics []string

	countMatchesAny := false
	for _, c := range candidates {
		if c.ColumnCountMatches {
			countMatchesAny = true
		}
	}
	if !countMatchesAny {
		diagnostics = append(diagnostics, fmt.Sprintf(
			"Unexpected column count: %d. Expected %s",
			columnCount, joinExpected(candidates, "%d (%s)", " or "),
		))
	}

	for _, c := range candidates {
		if c.ColumnCountMatches && len(c.Missing) > 0 {
			diagnostics = append(diagnostics, fmt.Sprintf(
				"Missing required columns for %s: %s",
				c.Kind, strings.Join(c.Missing, ", "),
			))
		}
	}

	if closest, ok := closestCandidate(candidates); ok {
		diagnostics = append(diagnostics, fmt.Sprintf(
			"Closest match: %s (missing %d of %d required columns)",
			closest.Kind, len(closest.Missing), closest.RequiredColumns,
		))
	} else if len(candidates) > 1 {
		kinds := make([]string, len(candidates))
		for i, c := range candidates {
			kinds[i] = string(c.Kind)
		}
		diagnostics = append(diagnostics, fmt.Sprintf(
			"Headers are equally close to %s (missing %d required columns each)",
			strings.Join(kinds, " and "), len(candidates[0].Missing),
		))
	}

	diagnostics = append(diagnostics, fmt.Sprintf(
		"Observed %d columns (%s)",
		columnCount, joinExpected(candidates, "%[2]s expects %[1]d", ", "),
	))
	return diagnostics
}

// closestCandidate returns the candidate missing the fewest required columns,
// or false when the lowest count is shared.
func closestCandidate(candidates []Candidate) (Candidate, bool) {
	if len(candidates) == 0 || tied(candidates) {
		return Candidate{}, false
	}
	best := candidates[0]
	for _, c := range candidates[1:] {
		if len(c.Missing) < len(best.Missing) {
			best = c
		}
	}
	return best, true
}

func joinExpected(candidates []Candidate, format, sep string) string {
	parts := make([]string, len(candidates))
	for i, c := range candidates {
		parts[i] = fmt.Sprintf(format, c.ExpectedColumns, c.Kind)
	}
	return strings.Join(parts, sep)
}

func displayName(field Field) string {
	if len(field.Variants) > 0 {
		return field.Variants[0]
	}
	return field.Name
}
