// Package taxonomy holds the read-only lookup data the NL layer matches
// questions against: the SSIC sector/category/keyword taxonomy and the
// planning-area/subzone gazetteer. Both are loaded once at process start
// and are safe for concurrent readers.
package taxonomy

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

//go:embed data/ssic_categories.json
var ssicData []byte

// Category groups SSIC code prefixes under a dashboard-facing id with the
// keywords questions use to refer to it
type Category struct {
	ID       string   `json:"id"`
	Label    string   `json:"label"`
	SSIC     []string `json:"ssic"`
	Keywords []string `json:"keywords"`
}

// Sector is the top level of the taxonomy
type Sector struct {
	ID         string     `json:"id"`
	Label      string     `json:"label"`
	Categories []Category `json:"categories"`
}

// Taxonomy is the loaded SSIC taxonomy with lookup indexes
type Taxonomy struct {
	Sectors []Sector `json:"sectors"`

	byID map[string]*Category
}

// MatchKind records how a category was matched, in precedence order
type MatchKind int

const (
	MatchLabel MatchKind = iota
	MatchKeyword
	MatchPartial
)

func (k MatchKind) String() string {
	switch k {
	case MatchLabel:
		return "label"
	case MatchKeyword:
		return "keyword"
	default:
		return "partial"
	}
}

// CategoryMatch is a category found in question text with its span
type CategoryMatch struct {
	Category *Category
	Kind     MatchKind
	Start    int
	End      int
}

// Load parses the embedded SSIC taxonomy
func Load() (*Taxonomy, error) {
	return Parse(ssicData)
}

// Parse builds a taxonomy from raw JSON
func Parse(data []byte) (*Taxonomy, error) {
	var t Taxonomy
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("failed to parse ssic taxonomy: %w", err)
	}

	t.byID = make(map[string]*Category)
	for si := range t.Sectors {
		for ci := range t.Sectors[si].Categories {
			cat := &t.Sectors[si].Categories[ci]
			if cat.ID == "" {
				return nil, fmt.Errorf("taxonomy category without id in sector %q", t.Sectors[si].ID)
			}
			if _, exists := t.byID[cat.ID]; exists {
				return nil, fmt.Errorf("duplicate taxonomy category id %q", cat.ID)
			}
			t.byID[cat.ID] = cat
		}
	}
	return &t, nil
}

// Category returns the category for an id
func (t *Taxonomy) Category(id string) (*Category, bool) {
	cat, ok := t.byID[id]
	return cat, ok
}

// CategoryCodes returns the SSIC code prefixes for a category id.
// The second return is false for an unknown id; a known id always returns
// the codes it declares, even when empty.
func (t *Taxonomy) CategoryCodes(id string) ([]string, bool) {
	cat, ok := t.byID[id]
	if !ok {
		return nil, false
	}
	return cat.SSIC, true
}

// MatchText finds the best category mention in normalized (lower-cased)
// question text. Precedence: exact label, then keyword, then partial
// substring. Within a tier the earliest mention wins.
func (t *Taxonomy) MatchText(norm string) (*CategoryMatch, bool) {
	var best *CategoryMatch

	consider := func(cand *CategoryMatch) {
		if best == nil ||
			cand.Kind < best.Kind ||
			(cand.Kind == best.Kind && cand.Start < best.Start) ||
			(cand.Kind == best.Kind && cand.Start == best.Start && cand.End > best.End) {
			best = cand
		}
	}

	for si := range t.Sectors {
		for ci := range t.Sectors[si].Categories {
			cat := &t.Sectors[si].Categories[ci]

			if start, end, ok := findWordBounded(norm, strings.ToLower(cat.Label)); ok {
				consider(&CategoryMatch{Category: cat, Kind: MatchLabel, Start: start, End: end})
				continue
			}

			matched := false
			for _, kw := range cat.Keywords {
				if start, end, ok := findWordBounded(norm, strings.ToLower(kw)); ok {
					consider(&CategoryMatch{Category: cat, Kind: MatchKeyword, Start: start, End: end})
					matched = true
					break
				}
			}
			if matched {
				continue
			}

			// Short keywords only match word-bounded; letting "it" fire
			// inside "entities" would mislabel most questions.
			for _, kw := range cat.Keywords {
				if len(kw) < 4 {
					continue
				}
				if idx := strings.Index(norm, strings.ToLower(kw)); idx >= 0 {
					consider(&CategoryMatch{Category: cat, Kind: MatchPartial, Start: idx, End: idx + len(kw)})
					break
				}
			}
		}
	}

	if best == nil {
		return nil, false
	}
	return best, true
}

// CategoryIDs lists all category ids in deterministic order
func (t *Taxonomy) CategoryIDs() []string {
	ids := make([]string, 0, len(t.byID))
	for id := range t.byID {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// findWordBounded locates needle in haystack with word boundaries on both
// sides, so "it" never matches inside "kitchen"
func findWordBounded(haystack, needle string) (int, int, bool) {
	if needle == "" {
		return 0, 0, false
	}
	from := 0
	for {
		idx := strings.Index(haystack[from:], needle)
		if idx < 0 {
			return 0, 0, false
		}
		start := from + idx
		end := start + len(needle)
		if boundaryBefore(haystack, start) && boundaryAfter(haystack, end) {
			return start, end, true
		}
		from = start + 1
		if from >= len(haystack) {
			return 0, 0, false
		}
	}
}

func boundaryBefore(s string, i int) bool {
	if i == 0 {
		return true
	}
	return !isWordByte(s[i-1])
}

func boundaryAfter(s string, i int) bool {
	if i >= len(s) {
		return true
	}
	return !isWordByte(s[i])
}

func isWordByte(b byte) bool {
	return b >= 'a' && b <= 'z' || b >= 'A' && b <= 'Z' || b >= '0' && b <= '9'
}
