package nlsql

// Intent is the closed set of question categories the engine answers
type Intent string

const (
	IntentTrend        Intent = "trend"
	IntentRanking      Intent = "ranking"
	IntentHotspot      Intent = "hotspot"
	IntentComparison   Intent = "comparison"
	IntentEntityLookup Intent = "entity_lookup"
	IntentGeneral      Intent = "general"
)

// Rule is one classifier entry. Rules are evaluated in slice order and
// the first match wins, which keeps precedence explicit and testable.
type Rule struct {
	Name   string
	Intent Intent
	Match  func(s Signals) bool
}

// Classifier maps extraction signals to an intent through an ordered
// rule table. The default table resolves the ranking/trend overlap in
// favour of ranking: a "top N" question with a date range is a ranking
// over that range, not a trend.
type Classifier struct {
	rules []Rule
}

// DefaultRules is the production precedence order
func DefaultRules() []Rule {
	return []Rule{
		{
			Name:   "comparison-pair",
			Intent: IntentComparison,
			Match:  func(s Signals) bool { return s.ComparisonPair || s.ComparisonCue },
		},
		{
			Name:   "hotspot-cue",
			Intent: IntentHotspot,
			Match:  func(s Signals) bool { return s.HotspotCue || s.DistributionCue },
		},
		{
			Name:   "ranking-cue",
			Intent: IntentRanking,
			Match:  func(s Signals) bool { return s.RankingCue },
		},
		{
			Name:   "trend-cue-or-dates",
			Intent: IntentTrend,
			Match:  func(s Signals) bool { return s.TrendCue || s.HasDateRange },
		},
		{
			Name:   "entity-lookup",
			Intent: IntentEntityLookup,
			Match:  func(s Signals) bool { return s.LookupCue },
		},
	}
}

func NewClassifier(rules ...Rule) *Classifier {
	if len(rules) == 0 {
		rules = DefaultRules()
	}
	return &Classifier{rules: rules}
}

// Classify returns the first matching rule's intent, or general when no
// rule fires. General is the explicit "cannot answer" outcome, never an
// error.
func (c *Classifier) Classify(s Signals) Intent {
	for _, r := range c.rules {
		if r.Match(s) {
			return r.Intent
		}
	}
	return IntentGeneral
}
