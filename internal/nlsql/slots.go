// Package nlsql is the natural-language-to-SQL core: it parses a free-text
// question into a typed intent and structured slots, renders a bounded,
// parameter-bound SQL query against the analytical store, and produces a
// deterministic narrative over the result rows.
package nlsql

import (
	"strings"
	"time"

	"github.com/bizgraph/registry-analytics/internal/taxonomy"
)

// SlotSet is the structured information extracted from a question. A slot
// is present only when extraction found an unambiguous match; ambiguous or
// missing slots stay empty and intent-specific defaults are applied at
// render time, never here.
type SlotSet struct {
	DateFrom     string `json:"date_from,omitempty"`
	DateTo       string `json:"date_to,omitempty"`
	SSICCode     string `json:"ssic_code,omitempty"`
	SSICCategory string `json:"ssic_category,omitempty"`
	PlanningArea string `json:"planning_area,omitempty"`
	Subzone      string `json:"subzone,omitempty"`
	CompareAreaA string `json:"compare_area_a,omitempty"`
	CompareAreaB string `json:"compare_area_b,omitempty"`
	Limit        int    `json:"limit,omitempty"`
	UEN          string `json:"uen,omitempty"`
	EntityName   string `json:"entity_name,omitempty"`
}

// Span marks where in the normalized text a slot was matched, for
// conflict detection between extractors
type Span struct {
	Start int
	End   int
}

// Signals are the classifier inputs: slot presence plus lexical cues
type Signals struct {
	ComparisonPair  bool // two distinct areas joined by a comparison cue
	ComparisonCue   bool // comparison cue with at least one area, pair incomplete
	HotspotCue      bool
	DistributionCue bool
	RankingCue      bool
	TrendCue        bool
	LookupCue       bool
	HasDateRange    bool
	HasArea         bool
}

// Extraction bundles the slots and classifier signals for one question
type Extraction struct {
	Slots   SlotSet
	Signals Signals
}

// Normalize lower-cases and whitespace-collapses question text; all
// extractors run over this form
func Normalize(question string) string {
	return strings.Join(strings.Fields(strings.ToLower(question)), " ")
}

// Extract runs every slot extractor over the question. Extractors never
// fail on malformed input; absence of a match is the only failure signal.
// Relative date expressions are resolved against now.
func Extract(question string, now time.Time, tax *taxonomy.Taxonomy, gaz *taxonomy.Gazetteer) Extraction {
	norm := Normalize(question)

	var ex Extraction

	if dr, ok := ExtractDateRange(norm, now); ok {
		ex.Slots.DateFrom = dr.From.Format(isoDate)
		ex.Slots.DateTo = dr.To.Format(isoDate)
		ex.Signals.HasDateRange = true
	}

	if ind, ok := ExtractIndustry(norm, tax); ok {
		ex.Slots.SSICCode = ind.Code
		ex.Slots.SSICCategory = ind.Category
	}

	areas := ExtractAreas(norm, gaz)
	if areas.CompareA != nil && areas.CompareB != nil {
		ex.Slots.CompareAreaA = areas.CompareA.ID
		ex.Slots.CompareAreaB = areas.CompareB.ID
		ex.Signals.ComparisonPair = true
	} else if areas.Cue && areas.Primary != nil {
		// a comparison was asked for but only one side named; classify as
		// comparison and let rendering report the missing slot
		ex.Slots.CompareAreaA = areas.Primary.ID
		ex.Signals.ComparisonCue = true
	} else if areas.Primary != nil {
		switch areas.Primary.Type {
		case taxonomy.AreaTypeSubzone:
			ex.Slots.Subzone = areas.Primary.ID
		default:
			ex.Slots.PlanningArea = areas.Primary.ID
		}
		ex.Signals.HasArea = true
	}

	if limit, ok := ExtractLimit(norm); ok {
		ex.Slots.Limit = limit
	}

	if uen, ok := ExtractUEN(norm); ok {
		ex.Slots.UEN = uen
	}
	if name, ok := ExtractQuotedName(question); ok {
		ex.Slots.EntityName = name
	}

	ex.Signals.HotspotCue = hasAnyCue(norm, hotspotCues)
	ex.Signals.DistributionCue = hasAnyCue(norm, distributionCues)
	ex.Signals.RankingCue = hasAnyCue(norm, rankingCues)
	ex.Signals.TrendCue = hasAnyCue(norm, trendCues)
	ex.Signals.LookupCue = ex.Slots.UEN != "" || ex.Slots.EntityName != "" || hasAnyCue(norm, lookupCues)

	return ex
}

const isoDate = "2006-01-02"

var (
	hotspotCues      = []string{"hotspot", "hotspots", "hottest", "where", "map", "cluster", "clustering"}
	distributionCues = []string{"which subzones", "which areas", "which planning areas", "distribution", "across areas"}
	rankingCues      = []string{"top", "most", "highest", "biggest", "largest", "ranking", "rank"}
	trendCues        = []string{"trend", "trends", "over time", "growth", "monthly", "month by month", "time series"}
	lookupCues       = []string{"uen", "look up", "lookup"}
)

func hasAnyCue(norm string, cues []string) bool {
	for _, cue := range cues {
		if containsWord(norm, cue) {
			return true
		}
	}
	return false
}

// containsWord reports whether cue appears in norm with word boundaries,
// so "top" never fires inside "laptop"
func containsWord(norm, cue string) bool {
	from := 0
	for from <= len(norm)-len(cue) {
		idx := strings.Index(norm[from:], cue)
		if idx < 0 {
			return false
		}
		start := from + idx
		end := start + len(cue)
		beforeOK := start == 0 || !isWordChar(norm[start-1])
		afterOK := end == len(norm) || !isWordChar(norm[end])
		if beforeOK && afterOK {
			return true
		}
		from = start + 1
	}
	return false
}

func isWordChar(b byte) bool {
	return b >= 'a' && b <= 'z' || b >= '0' && b <= '9'
}
