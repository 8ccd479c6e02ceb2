package detect

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/scamdunk/scamguard/pkg/logging"
	"github.com/scamdunk/scamguard/pkg/patterns"
)

// PatternDetector scores messages against the compiled scam-rule catalog.
// Stateless apart from the shared read-only registry; safe for concurrent use.
type PatternDetector struct {
	registry *patterns.Registry
	log      *logging.Logger
}

// NewPatternDetector wires the detector to a compiled registry.
func NewPatternDetector(registry *patterns.Registry, log *logging.Logger) *PatternDetector {
	return &PatternDetector{
		registry: registry,
		log:      log.WithComponent("pattern_detector"),
	}
}

// Name implements Detector.
func (d *PatternDetector) Name() string { return ModelPattern }

// FindMatches runs every rule against the text and reports the ones that
// fired. Per-rule confidence starts at the tier base and grows 0.05 per extra
// occurrence, capped at 0.95.
func (d *PatternDetector) FindMatches(text string) []RuleMatch {
	var out []RuleMatch
	for _, rule := range d.registry.All() {
		locs := rule.Regex.FindAllStringIndex(text, -1)
		if len(locs) == 0 {
			continue
		}

		m := RuleMatch{
			Pattern:  rule.Pattern,
			Category: rule.Category,
			Tier:     rule.Tier,
		}
		for _, loc := range locs {
			m.Matches = append(m.Matches, text[loc[0]:loc[1]])
			m.Positions = append(m.Positions, [2]int{loc[0], loc[1]})
		}
		m.Confidence = math.Min(0.95, rule.Tier.BaseConfidence()+float64(len(locs)-1)*0.05)
		out = append(out, m)
	}
	return out
}

// Analyze implements Detector. The aggregate score is a weighted mean of
// per-match confidences, with repeated matches in the same category damped
// by a 0.8 multiplier per repeat so one noisy category cannot dominate.
func (d *PatternDetector) Analyze(ctx context.Context, text string) (Prediction, error) {
	if err := ctx.Err(); err != nil {
		return Prediction{}, fmt.Errorf("pattern analysis: %w", err)
	}

	matches := d.FindMatches(text)
	meta := &PatternMeta{
		Matches:        matches,
		CategoryHits:   make(map[patterns.Category]int),
		RulesEvaluated: d.registry.Len(),
	}

	if len(matches) == 0 {
		meta.RiskTier = TierLow
		return Prediction{
			Model:      ModelPattern,
			Score:      0.1,
			Confidence: 0.5,
			Pattern:    meta,
		}, nil
	}

	var (
		totalScore  float64
		totalWeight float64
		confSum     float64
		multipliers = make(map[patterns.Category]float64)
	)
	for _, m := range matches {
		meta.CategoryHits[m.Category] += len(m.Matches)

		weight := m.Tier.Weight()
		if _, seen := multipliers[m.Category]; !seen {
			multipliers[m.Category] = 1.0
		} else {
			multipliers[m.Category] *= 0.8
		}
		mult := multipliers[m.Category]

		totalScore += m.Confidence * weight * mult
		totalWeight += weight * mult
		confSum += m.Confidence
	}

	score := 0.1
	if totalWeight > 0 {
		score = math.Min(0.95, totalScore/totalWeight)
	}

	avgConf := confSum / float64(len(matches))
	diversity := float64(len(multipliers))
	confidence := math.Min(0.95, avgConf*(1+diversity*0.1))

	meta.RiskTier = patternTier(score)

	d.log.Debug().
		Int("matches", len(matches)).
		Int("categories", len(multipliers)).
		Float64("score", score).
		Msg("pattern analysis complete")

	return Prediction{
		Model:      ModelPattern,
		Score:      score,
		Confidence: confidence,
		Pattern:    meta,
	}, nil
}

// patternTier uses the detector's own cut points, which sit lower than the
// ensemble tiers because pattern scores saturate at 0.95.
func patternTier(score float64) RiskTier {
	switch {
	case score >= 0.8:
		return TierCritical
	case score >= 0.6:
		return TierHigh
	case score >= 0.4:
		return TierMedium
	default:
		return TierLow
	}
}

// TopCategories returns the matched categories ordered by summed match
// confidence, strongest first, truncated to limit.
func TopCategories(matches []RuleMatch, limit int) []patterns.Category {
	sums := make(map[patterns.Category]float64)
	for _, m := range matches {
		sums[m.Category] += m.Confidence
	}
	cats := make([]patterns.Category, 0, len(sums))
	for cat := range sums {
		cats = append(cats, cat)
	}
	sort.Slice(cats, func(i, j int) bool {
		if sums[cats[i]] == sums[cats[j]] {
			return cats[i] < cats[j]
		}
		return sums[cats[i]] > sums[cats[j]]
	})
	if len(cats) > limit {
		cats = cats[:limit]
	}
	return cats
}
