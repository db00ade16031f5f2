package schema

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const fallbackFieldName = "column"

// Mapper translates raw CSV headers into canonical field names.
type Mapper struct {
	registry *Registry
}

// NewMapper returns a mapper over the given registry.
func NewMapper(registry *Registry) *Mapper {
	if registry == nil {
		registry = Default()
	}
	return &Mapper{registry: registry}
}

// Map returns the canonical name for header within kind. Unknown headers are
// camel-cased so they still yield a stable identifier; mapping a result again
// returns it unchanged.
func (m *Mapper) Map(header string, kind Kind) string {
	if name, ok := m.registry.lookup(kind, header); ok {
		return name
	}
	camel := m.camelCase(header)
	if name, ok := m.registry.lookup(kind, camel); ok {
		return name
	}
	return camel
}

// Lookup returns the canonical name only when header is a known variant.
func (m *Mapper) Lookup(header string, kind Kind) (string, bool) {
	return m.registry.lookup(kind, header)
}

// CanonicalFields lists every canonical field name known for kind, in column order.
func (m *Mapper) CanonicalFields(kind Kind) []string {
	def, ok := m.registry.Definition(kind)
	if !ok {
		return nil
	}
	names := make([]string, len(def.Fields))
	for i, field := range def.Fields {
		names[i] = field.Name
	}
	return names
}

func (m *Mapper) camelCase(header string) string {
	words := splitWords(foldAccents(header))
	if len(words) == 0 {
		return fallbackFieldName
	}
	// Casers carry state and cannot be shared between goroutines.
	title := cases.Title(language.Und)
	var b strings.Builder
	for i, word := range words {
		word = strings.ToLower(word)
		if i == 0 {
			b.WriteString(word)
			continue
		}
		b.WriteString(title.String(word))
	}
	return b.String()
}

// foldAccents decomposes the header and drops combining marks.
func foldAccents(value string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, value)
	if err != nil {
		return value
	}
	return folded
}

// splitWords breaks on anything that is not a letter or digit, on
// lower-to-upper case transitions and where a letter follows a digit, so
// camelCase input keeps its word boundaries.
func splitWords(value string) []string {
	var (
		words   []string
		current []rune
		prev    rune
	)
	flush := func() {
		if len(current) > 0 {
			words = append(words, string(current))
			current = current[:0]
		}
	}
	for _, r := range value {
		switch {
		case !unicode.IsLetter(r) && !unicode.IsDigit(r):
			flush()
		case unicode.IsUpper(r) && unicode.IsLower(prev),
			unicode.IsLetter(r) && unicode.IsDigit(prev):
			flush()
			current = append(current, r)
		default:
			current = append(current, r)
		}
		prev = r
	}
	flush()
	return words
}
