package nlsql

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bizgraph/registry-analytics/internal/taxonomy"
)

func loadTaxonomies(t *testing.T) (*taxonomy.Taxonomy, *taxonomy.Gazetteer) {
	t.Helper()
	tax, err := taxonomy.Load()
	require.NoError(t, err)
	gaz, err := taxonomy.LoadGazetteer()
	require.NoError(t, err)
	return tax, gaz
}

func TestExtractIndustry(t *testing.T) {
	tax, _ := loadTaxonomies(t)

	tests := []struct {
		name         string
		question     string
		wantCode     string
		wantCategory string
		wantMatch    bool
	}{
		{name: "prefixed code", question: "new entities under ssic 56", wantCode: "56", wantMatch: true},
		{name: "prefixed code with leading zeros", question: "ssic 056231", wantCode: "56231", wantMatch: true},
		{name: "ssic code keyword", question: "ssic code 47 shops", wantCode: "47", wantMatch: true},
		{name: "bare five digit code", question: "how many 56231 registrations", wantCode: "56231", wantMatch: true},
		{name: "code beats keyword", question: "restaurants under ssic 47", wantCode: "47", wantMatch: true},
		{name: "category keyword", question: "new restaurants in bedok", wantCategory: "fnb", wantMatch: true},
		{name: "category ampersand keyword", question: "f&b growth", wantCategory: "fnb", wantMatch: true},
		{name: "category label", question: "food & beverage trend", wantCategory: "fnb", wantMatch: true},
		{name: "construction keyword", question: "renovation contractors", wantCategory: "construction", wantMatch: true},
		{name: "bare four digit number ignored", question: "top 1234 things", wantMatch: false},
		{name: "no industry", question: "top areas last year", wantMatch: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, ok := ExtractIndustry(Normalize(tt.question), tax)
			assert.Equal(t, tt.wantMatch, ok)
			if ok {
				assert.Equal(t, tt.wantCode, m.Code)
				assert.Equal(t, tt.wantCategory, m.Category)
			}
		})
	}
}

func TestExtractLimit(t *testing.T) {
	tests := []struct {
		question string
		want     int
		ok       bool
	}{
		{"top 5 industries", 5, true},
		{"top 100 subzones", 100, true},
		{"top industries", 0, false},
		{"stop 5", 0, false},
	}
	for _, tt := range tests {
		got, ok := ExtractLimit(Normalize(tt.question))
		assert.Equal(t, tt.ok, ok, tt.question)
		assert.Equal(t, tt.want, got, tt.question)
	}
}

func TestExtractUEN(t *testing.T) {
	tests := []struct {
		question string
		want     string
		ok       bool
	}{
		{"look up uen 201812345A", "201812345A", true},
		{"what is 53333444M", "53333444M", true},
		{"entity T09LL0001B please", "T09LL0001B", true},
		{"top 5 in 2023", "", false},
		{"phone 91234567", "", false},
	}
	for _, tt := range tests {
		got, ok := ExtractUEN(Normalize(tt.question))
		assert.Equal(t, tt.ok, ok, tt.question)
		assert.Equal(t, tt.want, got, tt.question)
	}
}

func TestExtractQuotedName(t *testing.T) {
	name, ok := ExtractQuotedName(`who is "Acme Holdings Pte. Ltd."`)
	require.True(t, ok)
	assert.Equal(t, "Acme Holdings Pte. Ltd.", name)

	_, ok = ExtractQuotedName("no quotes here")
	assert.False(t, ok)
}

func TestExtractAreas(t *testing.T) {
	_, gaz := loadTaxonomies(t)

	t.Run("single planning area", func(t *testing.T) {
		out := ExtractAreas(Normalize("new cafes in tampines"), gaz)
		require.NotNil(t, out.Primary)
		assert.Equal(t, "TAMPINES", out.Primary.ID)
		assert.Nil(t, out.CompareA)
	})

	t.Run("comparison pair in text order", func(t *testing.T) {
		out := ExtractAreas(Normalize("compare jurong west vs woodlands"), gaz)
		require.NotNil(t, out.CompareA)
		require.NotNil(t, out.CompareB)
		assert.Equal(t, "JURONG_WEST", out.CompareA.ID)
		assert.Equal(t, "WOODLANDS", out.CompareB.ID)
	})

	t.Run("cue without two areas degrades to primary", func(t *testing.T) {
		out := ExtractAreas(Normalize("bedok versus last year"), gaz)
		assert.Nil(t, out.CompareA)
		require.NotNil(t, out.Primary)
		assert.Equal(t, "BEDOK", out.Primary.ID)
	})

	t.Run("same area twice is not a pair", func(t *testing.T) {
		out := ExtractAreas(Normalize("bedok vs bedok"), gaz)
		assert.Nil(t, out.CompareA)
	})

	t.Run("no areas", func(t *testing.T) {
		out := ExtractAreas(Normalize("top industries"), gaz)
		assert.Nil(t, out.Primary)
	})
}

func TestExtractFull(t *testing.T) {
	tax, gaz := loadTaxonomies(t)

	ex := Extract("Top SSICs in Tampines last 12 months", fixedNow, tax, gaz)
	assert.Equal(t, "TAMPINES", ex.Slots.PlanningArea)
	assert.Equal(t, "2023-03-15", ex.Slots.DateFrom)
	assert.Equal(t, "2024-03-15", ex.Slots.DateTo)
	assert.Empty(t, ex.Slots.SSICCode)
	assert.True(t, ex.Signals.RankingCue)
	assert.True(t, ex.Signals.HasDateRange)
}
