package nlsql

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bizgraph/registry-analytics/internal/taxonomy"
	"github.com/bizgraph/registry-analytics/internal/warehouse"
)

func testNarrator(t *testing.T) *Narrator {
	t.Helper()
	gaz, err := taxonomy.LoadGazetteer()
	require.NoError(t, err)
	return NewNarrator(gaz)
}

func TestNarrateGeneral(t *testing.T) {
	n := testNarrator(t)
	assert.Equal(t, GeneralFallback, n.Narrate(IntentGeneral, SlotSet{}, nil))
}

func TestNarrateNoData(t *testing.T) {
	n := testNarrator(t)
	assert.Equal(t, noDataMessage, n.Narrate(IntentTrend, SlotSet{}, nil))
	assert.Equal(t, noDataMessage, n.Narrate(IntentRanking, SlotSet{}, []warehouse.Row{}))
	assert.Equal(t, "No entity found for that lookup.", n.Narrate(IntentEntityLookup, SlotSet{}, nil))
}

func TestNarrateTrend(t *testing.T) {
	n := testNarrator(t)
	rows := []warehouse.Row{
		{"month": int64(202301), "cnt": int64(100)},
		{"month": int64(202302), "cnt": int64(120)},
		{"month": int64(202303), "cnt": int64(150)},
	}
	got := n.Narrate(IntentTrend, SlotSet{}, rows)
	assert.Equal(t, "370 new registrations across 3 months (202301 to 202303); monthly volume rose from 100 to 150.", got)
}

func TestNarrateRanking(t *testing.T) {
	n := testNarrator(t)
	rows := []warehouse.Row{
		{"ssic_code": "56111", "cnt": int64(40)},
		{"ssic_code": "47110", "cnt": int64(25)},
	}
	got := n.Narrate(IntentRanking, SlotSet{}, rows)
	assert.Equal(t, "Top SSIC is 56111 with 40 new registrations. Leading codes: 56111 (40), 47110 (25).", got)
}

func TestNarrateHotspotUsesAreaNames(t *testing.T) {
	n := testNarrator(t)
	rows := []warehouse.Row{
		{"planning_area_id": "TAMPINES", "cnt": int64(90)},
		{"planning_area_id": "BEDOK", "cnt": int64(60)},
	}
	got := n.Narrate(IntentHotspot, SlotSet{}, rows)
	assert.Contains(t, got, "Tampines leads with 90 new registrations.")
	assert.Contains(t, got, "Bedok (60)")
}

func TestNarrateComparison(t *testing.T) {
	n := testNarrator(t)
	rows := []warehouse.Row{
		{"month": int64(202301), "planning_area_id": "JURONG_WEST", "cnt": int64(30)},
		{"month": int64(202301), "planning_area_id": "WOODLANDS", "cnt": int64(45)},
		{"month": int64(202302), "planning_area_id": "JURONG_WEST", "cnt": int64(20)},
		{"month": int64(202302), "planning_area_id": "WOODLANDS", "cnt": int64(15)},
	}
	got := n.Narrate(IntentComparison, SlotSet{}, rows)
	assert.Equal(t, "Woodlands leads with 60 new registrations versus Jurong West with 50.", got)
}

func TestNarrateComparisonDeterministicOnTie(t *testing.T) {
	n := testNarrator(t)
	rows := []warehouse.Row{
		{"planning_area_id": "WOODLANDS", "cnt": int64(10)},
		{"planning_area_id": "BEDOK", "cnt": int64(10)},
	}
	first := n.Narrate(IntentComparison, SlotSet{}, rows)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, n.Narrate(IntentComparison, SlotSet{}, rows))
	}
	assert.Contains(t, first, "Bedok leads")
}

func TestNarrateEntity(t *testing.T) {
	n := testNarrator(t)
	row := warehouse.Row{
		"uen":                       "201812345A",
		"entity_name":               "ACME HOLDINGS PTE. LTD.",
		"entity_status_description": "Live Company",
	}
	got := n.Narrate(IntentEntityLookup, SlotSet{}, []warehouse.Row{row})
	assert.Equal(t, "Found ACME HOLDINGS PTE. LTD. (UEN 201812345A), status Live Company.", got)
}
