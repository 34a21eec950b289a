package nlsql

import (
	"regexp"

	"github.com/bizgraph/registry-analytics/internal/taxonomy"
)

// AreaExtraction holds the geographic slots found in a question. A
// comparison pair is reported only when a comparison cue appears together
// with exactly two distinct areas; anything else degrades to a single
// primary area (the first mention) or nothing.
type AreaExtraction struct {
	Primary  *taxonomy.Area
	CompareA *taxonomy.Area
	CompareB *taxonomy.Area
	Cue      bool
}

var reCompareCue = regexp.MustCompile(`\b(?:vs\.?|versus|comparison|compared?)\b`)

// ExtractAreas resolves gazetteer mentions in the normalized question
func ExtractAreas(norm string, gaz *taxonomy.Gazetteer) AreaExtraction {
	mentions := gaz.FindMentions(norm)
	out := AreaExtraction{Cue: reCompareCue.MatchString(norm)}
	if len(mentions) == 0 {
		return out
	}
	out.Primary = mentions[0].Area

	if out.Cue {
		distinct := distinctAreas(mentions)
		if len(distinct) == 2 {
			out.CompareA = distinct[0]
			out.CompareB = distinct[1]
		}
	}
	return out
}

func distinctAreas(mentions []taxonomy.Mention) []*taxonomy.Area {
	seen := make(map[string]bool, len(mentions))
	var out []*taxonomy.Area
	for _, m := range mentions {
		if seen[m.Area.ID] {
			continue
		}
		seen[m.Area.ID] = true
		out = append(out, m.Area)
	}
	return out
}
