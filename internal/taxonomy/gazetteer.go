package taxonomy

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

//go:embed data/areas.json
var areaData []byte

// Area type identifiers, matching the warehouse filter columns
const (
	AreaTypePlanningArea = "planning_area"
	AreaTypeSubzone      = "subzone"
)

// Area is a geographic unit from the gazetteer
type Area struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Type           string `json:"type"`
	PlanningAreaID string `json:"planning_area_id,omitempty"`
}

// Mention is an area found in question text with its span
type Mention struct {
	Area  *Area
	Start int
	End   int
}

// Gazetteer is the loaded planning-area/subzone index
type Gazetteer struct {
	areas       []Area
	byLowerName map[string]*Area
	byID        map[string]*Area
	// ordered holds unique lowered names, longest first, so "Jurong West"
	// is tried before "Jurong" would be
	ordered []string
}

type gazetteerFile struct {
	PlanningAreas []struct {
		ID       string `json:"id"`
		Name     string `json:"name"`
		Subzones []struct {
			ID   string `json:"id"`
			Name string `json:"name"`
		} `json:"subzones"`
	} `json:"planning_areas"`
}

// LoadGazetteer parses the embedded gazetteer
func LoadGazetteer() (*Gazetteer, error) {
	return ParseGazetteer(areaData)
}

// ParseGazetteer builds a gazetteer from raw JSON
func ParseGazetteer(data []byte) (*Gazetteer, error) {
	var file gazetteerFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse gazetteer: %w", err)
	}

	g := &Gazetteer{byLowerName: make(map[string]*Area), byID: make(map[string]*Area)}

	for _, pa := range file.PlanningAreas {
		g.areas = append(g.areas, Area{ID: pa.ID, Name: pa.Name, Type: AreaTypePlanningArea})
		for _, sz := range pa.Subzones {
			g.areas = append(g.areas, Area{ID: sz.ID, Name: sz.Name, Type: AreaTypeSubzone, PlanningAreaID: pa.ID})
		}
	}

	// Planning areas win name collisions with subzones
	for i := range g.areas {
		a := &g.areas[i]
		key := strings.ToLower(a.Name)
		if existing, ok := g.byLowerName[key]; ok {
			if existing.Type == AreaTypePlanningArea {
				continue
			}
		}
		g.byLowerName[key] = a
	}
	for i := range g.areas {
		g.byID[g.areas[i].ID] = &g.areas[i]
	}

	g.ordered = make([]string, 0, len(g.byLowerName))
	for name := range g.byLowerName {
		g.ordered = append(g.ordered, name)
	}
	sort.Slice(g.ordered, func(i, j int) bool {
		if len(g.ordered[i]) != len(g.ordered[j]) {
			return len(g.ordered[i]) > len(g.ordered[j])
		}
		return g.ordered[i] < g.ordered[j]
	})

	return g, nil
}

// Resolve looks up an area by name, case-insensitively
func (g *Gazetteer) Resolve(name string) (*Area, bool) {
	area, ok := g.byLowerName[strings.ToLower(strings.TrimSpace(name))]
	return area, ok
}

// ResolveID looks up an area by its identifier
func (g *Gazetteer) ResolveID(id string) (*Area, bool) {
	area, ok := g.byID[id]
	return area, ok
}

// Areas lists all known areas
func (g *Gazetteer) Areas() []Area {
	out := make([]Area, len(g.areas))
	copy(out, g.areas)
	return out
}

// FindMentions locates every area name mentioned in normalized question
// text. Longer names are matched first so overlapping shorter names are
// suppressed; results come back in text order.
func (g *Gazetteer) FindMentions(norm string) []Mention {
	var mentions []Mention

	overlaps := func(start, end int) bool {
		for _, m := range mentions {
			if start < m.End && end > m.Start {
				return true
			}
		}
		return false
	}

	for _, name := range g.ordered {
		from := 0
		for from < len(norm) {
			idx := strings.Index(norm[from:], name)
			if idx < 0 {
				break
			}
			start := from + idx
			end := start + len(name)
			if boundaryBefore(norm, start) && boundaryAfter(norm, end) && !overlaps(start, end) {
				mentions = append(mentions, Mention{Area: g.byLowerName[name], Start: start, End: end})
			}
			from = start + 1
		}
	}

	sort.Slice(mentions, func(i, j int) bool { return mentions[i].Start < mentions[j].Start })
	return mentions
}
