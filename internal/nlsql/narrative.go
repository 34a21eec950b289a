package nlsql

import (
	"fmt"
	"sort"
	"strings"

	"github.com/bizgraph/registry-analytics/internal/taxonomy"
	"github.com/bizgraph/registry-analytics/internal/warehouse"
)

// GeneralFallback is the fixed answer for questions outside the supported
// intents. It lists what the engine can do instead of guessing.
const GeneralFallback = "I can answer questions about Singapore business registrations: " +
	"monthly trends, top industries, hotspot areas, area comparisons, and entity lookups by UEN. " +
	"Try something like \"top SSICs in Tampines last 12 months\"."

const noDataMessage = "No data found for this filter."

// Narrator produces a deterministic one-or-two sentence summary of the
// result rows. Identical rows always yield identical text.
type Narrator struct {
	gaz *taxonomy.Gazetteer
}

func NewNarrator(gaz *taxonomy.Gazetteer) *Narrator {
	return &Narrator{gaz: gaz}
}

func (n *Narrator) Narrate(intent Intent, slots SlotSet, rows []warehouse.Row) string {
	if intent == IntentGeneral {
		return GeneralFallback
	}
	if len(rows) == 0 {
		if intent == IntentEntityLookup {
			return "No entity found for that lookup."
		}
		return noDataMessage
	}

	switch intent {
	case IntentTrend:
		return n.narrateTrend(rows)
	case IntentRanking:
		return n.narrateRanking(rows)
	case IntentHotspot:
		return n.narrateHotspot(rows)
	case IntentComparison:
		return n.narrateComparison(rows)
	case IntentEntityLookup:
		return n.narrateEntity(rows[0])
	default:
		return GeneralFallback
	}
}

func (n *Narrator) narrateTrend(rows []warehouse.Row) string {
	total := 0
	for _, r := range rows {
		total += rowInt(r, "cnt")
	}
	first := rowInt(rows[0], "month")
	last := rowInt(rows[len(rows)-1], "month")
	if len(rows) == 1 {
		return fmt.Sprintf("%d new registrations in %06d.", total, first)
	}
	firstCnt := rowInt(rows[0], "cnt")
	lastCnt := rowInt(rows[len(rows)-1], "cnt")
	direction := "held steady"
	if lastCnt > firstCnt {
		direction = "rose"
	} else if lastCnt < firstCnt {
		direction = "fell"
	}
	return fmt.Sprintf("%d new registrations across %d months (%06d to %06d); monthly volume %s from %d to %d.",
		total, len(rows), first, last, direction, firstCnt, lastCnt)
}

func (n *Narrator) narrateRanking(rows []warehouse.Row) string {
	top := rows[0]
	parts := make([]string, 0, 3)
	for i := 0; i < len(rows) && i < 3; i++ {
		parts = append(parts, fmt.Sprintf("%s (%d)", rowString(rows[i], "ssic_code"), rowInt(rows[i], "cnt")))
	}
	return fmt.Sprintf("Top SSIC is %s with %d new registrations. Leading codes: %s.",
		rowString(top, "ssic_code"), rowInt(top, "cnt"), strings.Join(parts, ", "))
}

func (n *Narrator) narrateHotspot(rows []warehouse.Row) string {
	top := rows[0]
	parts := make([]string, 0, 3)
	for i := 0; i < len(rows) && i < 3; i++ {
		parts = append(parts, fmt.Sprintf("%s (%d)", n.areaName(rowString(rows[i], "planning_area_id")), rowInt(rows[i], "cnt")))
	}
	return fmt.Sprintf("%s leads with %d new registrations. Hottest areas: %s.",
		n.areaName(rowString(top, "planning_area_id")), rowInt(top, "cnt"), strings.Join(parts, ", "))
}

func (n *Narrator) narrateComparison(rows []warehouse.Row) string {
	totals := map[string]int{}
	for _, r := range rows {
		totals[rowString(r, "planning_area_id")] += rowInt(r, "cnt")
	}
	ids := make([]string, 0, len(totals))
	for id := range totals {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		if totals[ids[i]] != totals[ids[j]] {
			return totals[ids[i]] > totals[ids[j]]
		}
		return ids[i] < ids[j]
	})
	if len(ids) == 1 {
		return fmt.Sprintf("Only %s had registrations in this period (%d).", n.areaName(ids[0]), totals[ids[0]])
	}
	return fmt.Sprintf("%s leads with %d new registrations versus %s with %d.",
		n.areaName(ids[0]), totals[ids[0]], n.areaName(ids[1]), totals[ids[1]])
}

func (n *Narrator) narrateEntity(row warehouse.Row) string {
	name := rowString(row, "entity_name")
	uen := rowString(row, "uen")
	status := rowString(row, "entity_status_description")
	if status == "" {
		return fmt.Sprintf("Found %s (UEN %s).", name, uen)
	}
	return fmt.Sprintf("Found %s (UEN %s), status %s.", name, uen, status)
}

func (n *Narrator) areaName(id string) string {
	if area, ok := n.gaz.ResolveID(id); ok {
		return area.Name
	}
	return id
}

// rowInt tolerates the scan types database/sql produces for aggregates
func rowInt(row warehouse.Row, key string) int {
	switch v := row[key].(type) {
	case int:
		return v
	case int32:
		return int(v)
	case int64:
		return int(v)
	case float64:
		return int(v)
	case string:
		n := 0
		fmt.Sscanf(v, "%d", &n)
		return n
	default:
		return 0
	}
}

func rowString(row warehouse.Row, key string) string {
	if v, ok := row[key].(string); ok {
		return v
	}
	if row[key] == nil {
		return ""
	}
	return fmt.Sprintf("%v", row[key])
}
