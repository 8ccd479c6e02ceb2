// Package detect implements the risk detectors and their ensemble: the
// rule-based pattern detector, the behavioral analyzer, the external
// classifier adapter with its deterministic stand-in, the confidence-weighted
// ensemble and the explanation builder. Each detector maps a message to a
// Prediction; the ensemble folds Predictions into a single Assessment.
package detect

import "github.com/scamdunk/scamguard/pkg/patterns"

// RiskTier buckets a risk score for presentation and routing.
type RiskTier string

const (
	TierCritical RiskTier = "critical"
	TierHigh     RiskTier = "high"
	TierMedium   RiskTier = "medium"
	TierLow      RiskTier = "low"
	TierMinimal  RiskTier = "minimal"
)

// Model names used throughout predictions, ensemble weights and reports.
const (
	ModelPattern   = "pattern"
	ModelSentiment = "sentiment"
	ModelBERT      = "bert"
	ModelNER       = "ner"
)

// Prediction is one detector's verdict on a message. Score is risk in [0,1],
// Confidence is the detector's own certainty in [0,1]. Exactly one of the
// metadata pointers is set, matching Model.
type Prediction struct {
	Model      string  `json:"model"`
	Score      float64 `json:"score"`
	Confidence float64 `json:"confidence"`

	Pattern    *PatternMeta    `json:"pattern,omitempty"`
	Behavioral *BehavioralMeta `json:"behavioral,omitempty"`
	ModelInfo  *ModelMeta      `json:"model_info,omitempty"`
}

// RuleMatch records one rule that fired, with every location it fired at.
type RuleMatch struct {
	Pattern    string            `json:"pattern"`
	Category   patterns.Category `json:"category"`
	Tier       patterns.Tier     `json:"tier"`
	Matches    []string          `json:"matches"`
	Positions  [][2]int          `json:"positions"`
	Confidence float64           `json:"confidence"`
}

// PatternMeta is the pattern detector's structured evidence.
type PatternMeta struct {
	Matches        []RuleMatch               `json:"matches"`
	CategoryHits   map[patterns.Category]int `json:"category_hits"`
	RiskTier       RiskTier                  `json:"risk_tier"`
	RulesEvaluated int                       `json:"rules_evaluated"`
}

// BehavioralMeta is the behavioral analyzer's structured evidence.
type BehavioralMeta struct {
	UrgencyScore      float64        `json:"urgency_score"`
	UrgencyTier       string         `json:"urgency_tier"`
	ManipulationScore float64        `json:"manipulation_score"`
	Polarity          float64        `json:"polarity"`
	Subjectivity      float64        `json:"subjectivity"`
	FearCount         int            `json:"fear_count"`
	GreedCount        int            `json:"greed_count"`
	TrustCount        int            `json:"trust_count"`
	UrgencyKeywords   []string       `json:"urgency_keywords"`
	TacticCounts      map[string]int `json:"tactic_counts"`
}

// ModelMeta describes the classifier run backing a bert/ner prediction.
type ModelMeta struct {
	ModelID   string `json:"model_id"`
	Version   string `json:"version"`
	Simulated bool   `json:"simulated"`
	LatencyMS int64  `json:"latency_ms"`
}

// TierForScore maps a risk score to its presentation tier.
func TierForScore(score float64) RiskTier {
	switch {
	case score >= 0.9:
		return TierCritical
	case score >= 0.7:
		return TierHigh
	case score >= 0.5:
		return TierMedium
	case score >= 0.3:
		return TierLow
	default:
		return TierMinimal
	}
}

func clip01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
