package nlsql

import (
	"regexp"
	"strings"

	"github.com/bizgraph/registry-analytics/internal/taxonomy"
)

// IndustryMatch carries either an explicit SSIC code or a resolved
// taxonomy category, never both.
type IndustryMatch struct {
	Code     string
	Category string
	Span     Span
}

var (
	// "ssic 56", "ssic code 56231", leading zeros stripped
	reSSICPrefixed = regexp.MustCompile(`\bssic\s*(?:code\s*)?0*(\d{1,5})\b`)
	// a bare 5-digit number is unambiguous as a code; shorter bare
	// numbers collide with years and "top N" counts and are ignored
	reSSICBare = regexp.MustCompile(`\b(\d{5})\b`)
)

// ExtractIndustry resolves the industry slot. Numeric codes take
// precedence over keyword phrases; a keyword phrase resolves through the
// taxonomy with exact labels beating keywords beating partial matches.
func ExtractIndustry(norm string, tax *taxonomy.Taxonomy) (IndustryMatch, bool) {
	if m := reSSICPrefixed.FindStringSubmatchIndex(norm); m != nil {
		code := norm[m[2]:m[3]]
		if len(code) >= 2 {
			return IndustryMatch{Code: code, Span: Span{Start: m[0], End: m[1]}}, true
		}
	}
	if m := reSSICBare.FindStringSubmatchIndex(norm); m != nil {
		return IndustryMatch{Code: norm[m[2]:m[3]], Span: Span{Start: m[0], End: m[1]}}, true
	}

	if cm, ok := tax.MatchText(norm); ok {
		return IndustryMatch{Category: cm.Category.ID, Span: Span{Start: cm.Start, End: cm.End}}, true
	}
	return IndustryMatch{}, false
}

// ExtractLimit finds a "top N" style count. The renderer clamps the
// value; extraction only requires it to be a positive integer.
var reLimit = regexp.MustCompile(`\btop\s+(\d{1,3})\b`)

func ExtractLimit(norm string) (int, bool) {
	m := reLimit.FindStringSubmatch(norm)
	if m == nil {
		return 0, false
	}
	n := 0
	for _, ch := range m[1] {
		n = n*10 + int(ch-'0')
	}
	if n <= 0 {
		return 0, false
	}
	return n, true
}

// ExtractUEN matches the two Singapore UEN shapes: business/local company
// numbers (8-9 digits plus a check letter) and the newer T/S/R-prefixed
// entity format. Input is normalized lower case; the slot value is
// reported upper case as stored in the registry.
var (
	reUENNumeric = regexp.MustCompile(`\b(\d{8,9}[a-z])\b`)
	reUENEntity  = regexp.MustCompile(`\b([tsr]\d{2}[a-z]{2}\d{4}[a-z])\b`)
)

func ExtractUEN(norm string) (string, bool) {
	if m := reUENNumeric.FindStringSubmatch(norm); m != nil {
		return strings.ToUpper(m[1]), true
	}
	if m := reUENEntity.FindStringSubmatch(norm); m != nil {
		return strings.ToUpper(m[1]), true
	}
	return "", false
}

// ExtractQuotedName pulls an exact entity name from double quotes in the
// raw question. Quoted text is carried verbatim into a bound parameter,
// so quote characters inside it have no structural effect downstream.
var reQuoted = regexp.MustCompile(`"([^"]{2,120})"`)

func ExtractQuotedName(question string) (string, bool) {
	m := reQuoted.FindStringSubmatch(question)
	if m == nil {
		return "", false
	}
	name := strings.TrimSpace(m[1])
	if name == "" {
		return "", false
	}
	return name, true
}
