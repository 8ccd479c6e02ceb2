package detect

import (
	"strings"
	"testing"

	"github.com/scamdunk/scamguard/pkg/patterns"
)

func sampleAssessment() Assessment {
	return Assessment{
		Score:      0.82,
		Tier:       TierHigh,
		Confidence: 0.75,
		Predictions: []Prediction{
			{
				Model: ModelPattern, Score: 0.8, Confidence: 0.85,
				Pattern: &PatternMeta{
					Matches: []RuleMatch{{
						Pattern:   `guaranteed\s+(?:returns?|profits?|income)`,
						Category:  patterns.CategoryInvestment,
						Tier:      patterns.TierCritical,
						Matches:   []string{"guaranteed returns"},
						Positions: [][2]int{{0, 18}},
					}},
					CategoryHits: map[patterns.Category]int{patterns.CategoryInvestment: 1},
				},
			},
			{
				Model: ModelSentiment, Score: 0.6, Confidence: 0.5,
				Behavioral: &BehavioralMeta{
					UrgencyScore:      0.7,
					UrgencyTier:       "high",
					ManipulationScore: 0.4,
					FearCount:         2,
					GreedCount:        3,
				},
			},
			{
				Model: ModelBERT, Score: 0.9, Confidence: 0.88,
				ModelInfo: &ModelMeta{ModelID: "bert-sim", Simulated: true},
			},
		},
	}
}

func TestExplainFactors(t *testing.T) {
	ex := NewExplainer().Explain("Guaranteed returns! Act now to earn money fast.", sampleAssessment())

	if len(ex.KeyFactors) == 0 {
		t.Fatal("expected key factors")
	}
	if len(ex.KeyFactors) > maxFactors {
		t.Errorf("factors = %d, cap is %d", len(ex.KeyFactors), maxFactors)
	}

	// Sorted descending by importance.
	for i := 1; i < len(ex.KeyFactors); i++ {
		if ex.KeyFactors[i].Importance > ex.KeyFactors[i-1].Importance {
			t.Errorf("factors not sorted at %d: %v > %v",
				i, ex.KeyFactors[i].Importance, ex.KeyFactors[i-1].Importance)
		}
	}

	names := make(map[string]bool)
	for _, f := range ex.KeyFactors {
		names[f.Name] = true
	}
	for _, want := range []string{
		"pattern_risk_score",
		"pattern_investment_scams",
		"urgency_score",
		"manipulation_score",
		"fear_indicators",
		"greed_indicators",
		"model_prediction",
	} {
		if !names[want] {
			t.Errorf("missing factor %q in %v", want, names)
		}
	}
}

func TestExplainEvidence(t *testing.T) {
	text := "Guaranteed returns! Act now to earn money fast before the deadline."
	ex := NewExplainer().Explain(text, sampleAssessment())

	if len(ex.Evidence) == 0 {
		t.Fatal("expected evidence")
	}
	if len(ex.Evidence) > maxEvidence {
		t.Errorf("evidence = %d, cap is %d", len(ex.Evidence), maxEvidence)
	}

	joined := strings.Join(ex.Evidence, "\n")
	if !strings.Contains(joined, "Suspicious phrase:") {
		t.Errorf("missing suspicious phrase evidence:\n%s", joined)
	}
	if !strings.Contains(joined, "Urgency tactic:") {
		t.Errorf("missing urgency evidence:\n%s", joined)
	}
	if !strings.Contains(joined, "Financial reference:") {
		t.Errorf("missing financial evidence:\n%s", joined)
	}

	// No duplicates.
	seen := make(map[string]bool)
	for _, item := range ex.Evidence {
		if seen[item] {
			t.Errorf("duplicate evidence %q", item)
		}
		seen[item] = true
	}
}

func TestExplainRecommendations(t *testing.T) {
	ex := NewExplainer().Explain("Guaranteed returns! Act now.", sampleAssessment())

	if len(ex.Recommendations) == 0 || len(ex.Recommendations) > maxRecommendations {
		t.Fatalf("recommendations = %d, want 1..%d", len(ex.Recommendations), maxRecommendations)
	}
	if !strings.HasPrefix(ex.Recommendations[0], "HIGH RISK") {
		t.Errorf("first recommendation = %q, want high-risk lead", ex.Recommendations[0])
	}
}

func TestExplainRecommendationTiers(t *testing.T) {
	e := NewExplainer()
	testCases := []struct {
		tier RiskTier
		lead string
	}{
		{TierCritical, "HIGH RISK"},
		{TierHigh, "HIGH RISK"},
		{TierMedium, "MEDIUM RISK"},
		{TierLow, "LOW RISK"},
	}
	for _, tc := range testCases {
		a := Assessment{Score: 0.5, Tier: tc.tier, Predictions: []Prediction{}}
		ex := e.Explain("some text", a)
		if len(ex.Recommendations) == 0 || !strings.HasPrefix(ex.Recommendations[0], tc.lead) {
			t.Errorf("tier %s: recommendations = %v, want lead %q", tc.tier, ex.Recommendations, tc.lead)
		}
	}
}

func TestExplainMinimalTier(t *testing.T) {
	a := Assessment{Score: 0.05, Tier: TierMinimal, Predictions: []Prediction{
		{Model: ModelBERT, Score: 0.05, Confidence: 0.9, ModelInfo: &ModelMeta{}},
	}}
	ex := NewExplainer().Explain("Hello, how are you today?", a)

	if len(ex.KeyFactors) != 0 {
		t.Errorf("factors = %v, want none for clean text", ex.KeyFactors)
	}
	if ex.Recommendations == nil || ex.Evidence == nil {
		t.Error("slices must never be nil")
	}
}

func TestExplainSummary(t *testing.T) {
	ex := NewExplainer().Explain("Guaranteed returns! Act now.", sampleAssessment())

	if !strings.Contains(ex.Summary, "HIGH RISK") {
		t.Errorf("summary = %q, want tier", ex.Summary)
	}
	if !strings.Contains(ex.Summary, "82% scam probability") {
		t.Errorf("summary = %q, want score percent", ex.Summary)
	}
	if !strings.Contains(ex.Summary, "Key concerns:") {
		t.Errorf("summary = %q, want key concerns", ex.Summary)
	}
	if !strings.Contains(ex.Summary, "Action:") {
		t.Errorf("summary = %q, want action", ex.Summary)
	}
}
