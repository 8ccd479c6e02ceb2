package detect

import (
	"fmt"
	"sort"
	"strings"

	"github.com/scamdunk/scamguard/pkg/patterns"
)

// Factor is one ranked contributor to a verdict.
type Factor struct {
	Name        string  `json:"name"`
	Importance  float64 `json:"importance"`
	Value       float64 `json:"value"`
	Explanation string  `json:"explanation"`
}

// Explanation is the full decision-support report for one assessment.
type Explanation struct {
	Score           float64  `json:"score"`
	Tier            RiskTier `json:"tier"`
	Confidence      float64  `json:"confidence"`
	KeyFactors      []Factor `json:"key_factors"`
	Evidence        []string `json:"evidence"`
	Recommendations []string `json:"recommendations"`
	Summary         string   `json:"summary"`
}

const (
	maxFactors         = 10
	maxEvidence        = 5
	maxRecommendations = 8
)

// Explainer turns an Assessment into reviewer-facing factors, quoted
// evidence and recommendations. Stateless.
type Explainer struct{}

// NewExplainer returns an Explainer.
func NewExplainer() *Explainer { return &Explainer{} }

// Explain builds the full report for one assessed message.
func (e *Explainer) Explain(text string, a Assessment) Explanation {
	factors := e.keyFactors(a.Predictions)
	out := Explanation{
		Score:           a.Score,
		Tier:            a.Tier,
		Confidence:      a.Confidence,
		KeyFactors:      factors,
		Evidence:        e.findEvidence(text, a.Predictions),
		Recommendations: e.recommendations(a.Score, a.Tier, factors),
	}
	out.Summary = e.summary(out)
	return out
}

// keyFactors ranks contributors across all detectors, strongest first,
// truncated to maxFactors.
func (e *Explainer) keyFactors(predictions []Prediction) []Factor {
	var factors []Factor
	for _, p := range predictions {
		switch {
		case p.Pattern != nil:
			factors = append(factors, patternFactors(p)...)
		case p.Behavioral != nil:
			factors = append(factors, behavioralFactors(p)...)
		case p.ModelInfo != nil:
			factors = append(factors, modelFactors(p)...)
		}
	}

	sort.SliceStable(factors, func(i, j int) bool {
		return factors[i].Importance > factors[j].Importance
	})
	if len(factors) > maxFactors {
		factors = factors[:maxFactors]
	}
	if factors == nil {
		factors = []Factor{}
	}
	return factors
}

func patternFactors(p Prediction) []Factor {
	var out []Factor
	if p.Score > 0.3 {
		out = append(out, Factor{
			Name:        "pattern_risk_score",
			Importance:  p.Score,
			Value:       p.Score,
			Explanation: fmt.Sprintf("Pattern analysis detected %.1f%% scam probability", p.Score*100),
		})
	}
	for _, cat := range categoriesOf(p.Pattern.CategoryHits) {
		count := p.Pattern.CategoryHits[patterns.Category(cat)]
		if count == 0 {
			continue
		}
		readable := strings.ReplaceAll(cat, "_", " ")
		out = append(out, Factor{
			Name:        "pattern_" + cat,
			Importance:  float64(count) * 0.2,
			Value:       float64(count),
			Explanation: fmt.Sprintf("Contains %d %s indicators", count, readable),
		})
	}
	return out
}

func behavioralFactors(p Prediction) []Factor {
	b := p.Behavioral
	var out []Factor
	if b.UrgencyScore > 0.3 {
		out = append(out, Factor{
			Name:        "urgency_score",
			Importance:  b.UrgencyScore,
			Value:       b.UrgencyScore,
			Explanation: fmt.Sprintf("High urgency pressure detected (%.1f%%)", b.UrgencyScore*100),
		})
	}
	if b.ManipulationScore > 0.3 {
		out = append(out, Factor{
			Name:        "manipulation_score",
			Importance:  b.ManipulationScore,
			Value:       b.ManipulationScore,
			Explanation: fmt.Sprintf("Emotional manipulation tactics detected (%.1f%%)", b.ManipulationScore*100),
		})
	}
	if b.FearCount > 0 {
		out = append(out, Factor{
			Name:        "fear_indicators",
			Importance:  float64(b.FearCount) * 0.1,
			Value:       float64(b.FearCount),
			Explanation: fmt.Sprintf("Uses %d fear-based keywords", b.FearCount),
		})
	}
	if b.GreedCount > 0 {
		out = append(out, Factor{
			Name:        "greed_indicators",
			Importance:  float64(b.GreedCount) * 0.1,
			Value:       float64(b.GreedCount),
			Explanation: fmt.Sprintf("Contains %d greed-appeal terms", b.GreedCount),
		})
	}
	return out
}

func modelFactors(p Prediction) []Factor {
	if p.Score <= 0.3 {
		return nil
	}
	return []Factor{{
		Name:        "model_prediction",
		Importance:  p.Score * p.Confidence,
		Value:       p.Score,
		Explanation: fmt.Sprintf("AI language model predicts %.1f%% scam probability", p.Score*100),
	}}
}

// findEvidence quotes short windows of the original text around the strongest
// signals: rule matches, urgency keywords, and one financial reference.
// Deduplicated, capped at maxEvidence.
func (e *Explainer) findEvidence(text string, predictions []Prediction) []string {
	evidence := []string{}
	seen := make(map[string]struct{})
	add := func(item string) {
		if _, dup := seen[item]; dup || len(evidence) >= maxEvidence {
			return
		}
		seen[item] = struct{}{}
		evidence = append(evidence, item)
	}

	for _, p := range predictions {
		if p.Pattern == nil {
			continue
		}
		for _, m := range p.Pattern.Matches {
			limit := len(m.Positions)
			if limit > 2 {
				limit = 2
			}
			for _, pos := range m.Positions[:limit] {
				add(fmt.Sprintf("Suspicious phrase: %q", contextWindow(text, pos[0], pos[1], 20)))
			}
		}
	}

	lower := strings.ToLower(text)
	urgencyCount := 0
	for _, kw := range []string{"urgent", "immediately", "asap", "act now", "limited time"} {
		if urgencyCount >= 2 {
			break
		}
		if pos := strings.Index(lower, kw); pos >= 0 {
			add(fmt.Sprintf("Urgency tactic: %q", contextWindow(text, pos, pos+len(kw), 15)))
			urgencyCount++
		}
	}

	for _, term := range []string{"money", "$", "payment", "account", "bitcoin", "investment"} {
		if pos := strings.Index(lower, term); pos >= 0 {
			add(fmt.Sprintf("Financial reference: %q", contextWindow(text, pos, pos+len(term), 15)))
			break
		}
	}

	return evidence
}

func contextWindow(text string, start, end, pad int) string {
	s := start - pad
	if s < 0 {
		s = 0
	}
	e := end + pad
	if e > len(text) {
		e = len(text)
	}
	return strings.TrimSpace(text[s:e])
}

func (e *Explainer) recommendations(score float64, tier RiskTier, factors []Factor) []string {
	var recs []string
	switch tier {
	case TierCritical, TierHigh:
		recs = append(recs,
			"HIGH RISK: Do not respond or engage with this message",
			"Do not click any links or download attachments",
			"Never send money or provide financial information",
			"Do not call any phone numbers provided",
			"Report this message to relevant authorities",
		)
	case TierMedium:
		recs = append(recs,
			"MEDIUM RISK: Exercise extreme caution",
			"Verify sender identity through independent channels",
			"Do not provide personal or financial information",
			"Be skeptical of urgent requests or time pressure",
		)
	case TierLow:
		recs = append(recs,
			"LOW RISK: Some suspicious elements detected",
			"Verify legitimacy before taking any action",
			"Be cautious with personal information",
		)
	}

	hasPattern, hasUrgency, hasManipulation := false, false, false
	for _, f := range factors {
		switch {
		case strings.Contains(f.Name, "pattern"):
			hasPattern = true
		case strings.Contains(f.Name, "urgency"):
			hasUrgency = true
		case strings.Contains(f.Name, "manipulation"):
			hasManipulation = true
		}
	}
	if hasPattern {
		recs = append(recs, "Message contains known scam patterns")
	}
	if hasUrgency {
		recs = append(recs, "Pressure tactics detected - legitimate services don't rush you")
	}
	if hasManipulation {
		recs = append(recs, "Emotional manipulation detected - step back and think critically")
	}

	if score > 0.5 {
		recs = append(recs,
			"Consider using message filtering or security software",
			"Learn more about common scam tactics",
		)
	}

	if len(recs) > maxRecommendations {
		recs = recs[:maxRecommendations]
	}
	if recs == nil {
		recs = []string{}
	}
	return recs
}

func (e *Explainer) summary(ex Explanation) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s RISK (%.0f%% scam probability)", strings.ToUpper(string(ex.Tier)), ex.Score*100)

	if len(ex.KeyFactors) > 0 {
		b.WriteString(". Key concerns: ")
		limit := len(ex.KeyFactors)
		if limit > 3 {
			limit = 3
		}
		parts := make([]string, 0, limit)
		for _, f := range ex.KeyFactors[:limit] {
			parts = append(parts, f.Explanation)
		}
		b.WriteString(strings.Join(parts, "; "))
	}
	if len(ex.Recommendations) > 0 {
		b.WriteString(". Action: ")
		b.WriteString(ex.Recommendations[0])
	}
	return b.String()
}
