package detect

import (
	"errors"
	"math"
	"strings"
	"sync"
	"testing"

	"github.com/scamdunk/scamguard/pkg/logging"
	"github.com/scamdunk/scamguard/pkg/patterns"
)

func defaultWeights() map[string]float64 {
	return map[string]float64{
		ModelBERT:      0.4,
		ModelPattern:   0.3,
		ModelSentiment: 0.15,
		ModelNER:       0.15,
	}
}

func TestCombineWeightedScore(t *testing.T) {
	e := NewEnsemble(defaultWeights(), logging.Nop())

	preds := []Prediction{
		{Model: ModelBERT, Score: 0.9, Confidence: 0.8},
		{Model: ModelPattern, Score: 0.7, Confidence: 0.9},
		{Model: ModelSentiment, Score: 0.5, Confidence: 0.6},
	}
	a := e.Combine(preds)

	// Confidence-weighted mean computed by hand.
	var sum, weight float64
	for _, p := range preds {
		eff := defaultWeights()[p.Model] * p.Confidence
		sum += p.Score * eff
		weight += eff
	}
	want := sum / weight
	if math.Abs(a.Score-want) > 1e-9 {
		t.Errorf("score = %v, want %v", a.Score, want)
	}
	if a.Tier != TierHigh {
		t.Errorf("tier = %v, want high", a.Tier)
	}
}

func TestCombineZeroWeightFallsBackToMean(t *testing.T) {
	e := NewEnsemble(defaultWeights(), logging.Nop())

	preds := []Prediction{
		{Model: ModelBERT, Score: 0.8, Confidence: 0},
		{Model: ModelPattern, Score: 0.4, Confidence: 0},
	}
	a := e.Combine(preds)
	if math.Abs(a.Score-0.6) > 1e-9 {
		t.Errorf("score = %v, want unweighted mean 0.6", a.Score)
	}
}

func TestCombineEmpty(t *testing.T) {
	e := NewEnsemble(defaultWeights(), logging.Nop())
	a := e.Combine(nil)
	if a.Score != 0 || a.Tier != TierMinimal || a.Confidence != 0 {
		t.Errorf("empty combine = %+v", a)
	}
}

func TestDisagreementLowersConfidence(t *testing.T) {
	e := NewEnsemble(defaultWeights(), logging.Nop())

	agree := e.Combine([]Prediction{
		{Model: ModelBERT, Score: 0.8, Confidence: 0.8},
		{Model: ModelPattern, Score: 0.8, Confidence: 0.8},
		{Model: ModelSentiment, Score: 0.8, Confidence: 0.8},
	})
	disagree := e.Combine([]Prediction{
		{Model: ModelBERT, Score: 0.8, Confidence: 0.95},
		{Model: ModelPattern, Score: 0.8, Confidence: 0.2},
		{Model: ModelSentiment, Score: 0.8, Confidence: 0.9},
	})

	if disagree.Confidence >= agree.Confidence {
		t.Errorf("disagreeing confidence %v should be below agreeing %v",
			disagree.Confidence, agree.Confidence)
	}
	if disagree.Confidence < 0.1 {
		t.Errorf("confidence = %v, floor is 0.1", disagree.Confidence)
	}
}

func TestSetWeights(t *testing.T) {
	e := NewEnsemble(defaultWeights(), logging.Nop())

	// Valid weights get normalized to sum 1.
	if err := e.SetWeights(map[string]float64{ModelBERT: 0.6, ModelPattern: 0.6}); err != nil {
		t.Fatalf("SetWeights: %v", err)
	}
	w := e.Weights()
	if math.Abs(w[ModelBERT]-0.5) > 1e-9 || math.Abs(w[ModelPattern]-0.5) > 1e-9 {
		t.Errorf("weights = %v, want 0.5 each", w)
	}

	// Invalid weights must leave the current map untouched.
	before := e.Weights()
	err := e.SetWeights(map[string]float64{ModelBERT: 1.5})
	if err == nil {
		t.Error("expected error for weight > 1")
	}
	var calErr *CalibrationError
	if !errors.As(err, &calErr) {
		t.Errorf("error type = %T, want *CalibrationError", err)
	}
	if err := e.SetWeights(map[string]float64{ModelBERT: -0.1}); err == nil {
		t.Error("expected error for negative weight")
	}
	if err := e.SetWeights(map[string]float64{}); err == nil {
		t.Error("expected error for empty map")
	}
	if err := e.SetWeights(map[string]float64{ModelBERT: 0, ModelPattern: 0}); err == nil {
		t.Error("expected error for zero total")
	}
	after := e.Weights()
	for k, v := range before {
		if after[k] != v {
			t.Errorf("weight %s changed from %v to %v after rejected update", k, v, after[k])
		}
	}
}

func TestSetWeightsConcurrent(t *testing.T) {
	e := NewEnsemble(defaultWeights(), logging.Nop())
	preds := []Prediction{
		{Model: ModelBERT, Score: 0.9, Confidence: 0.9},
		{Model: ModelPattern, Score: 0.3, Confidence: 0.9},
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				if i%2 == 0 {
					_ = e.SetWeights(map[string]float64{ModelBERT: 0.5, ModelPattern: 0.5})
				} else {
					a := e.Combine(preds)
					if a.Score < 0 || a.Score > 1 {
						t.Errorf("score out of range: %v", a.Score)
					}
				}
			}
		}(i)
	}
	wg.Wait()
}

func TestExplanationLines(t *testing.T) {
	e := NewEnsemble(defaultWeights(), logging.Nop())

	a := e.Combine([]Prediction{
		{Model: ModelBERT, Score: 0.92, Confidence: 0.9},
		{
			Model: ModelPattern, Score: 0.85, Confidence: 0.9,
			Pattern: &PatternMeta{
				Matches:      []RuleMatch{{Pattern: "x"}, {Pattern: "y"}},
				CategoryHits: map[patterns.Category]int{"investment_scams": 2, "phishing_scams": 1, "urgency_tactics": 1},
			},
		},
		{
			Model: ModelSentiment, Score: 0.6, Confidence: 0.7,
			Behavioral: &BehavioralMeta{UrgencyTier: "high"},
		},
	})

	joined := strings.Join(a.Explanation, "\n")
	for _, want := range []string{
		"Overall risk level:",
		"AI language model detected",
		"Pattern analysis found 2 suspicious indicators",
		"High urgency/pressure tactics detected",
		"Contains investment_scams, phishing_scams indicators",
		"High confidence scam detection",
	} {
		if !strings.Contains(joined, want) {
			t.Errorf("explanation missing %q:\n%s", want, joined)
		}
	}
}

func TestCalibrate(t *testing.T) {
	e := NewEnsemble(defaultWeights(), logging.Nop())

	// Scores that separate cleanly at 0.5.
	var samples []CalibrationSample
	for i := 0; i < 20; i++ {
		samples = append(samples, CalibrationSample{Score: 0.8, Label: 1})
		samples = append(samples, CalibrationSample{Score: 0.2, Label: 0})
	}

	th, err := e.Calibrate(samples)
	if err != nil {
		t.Fatalf("Calibrate: %v", err)
	}

	// Any threshold in (0.2, 0.8] has perfect F1; the sweep picks the first.
	if th.High <= 0.2 || th.High > 0.8 {
		t.Errorf("high threshold = %v, want in (0.2, 0.8]", th.High)
	}
	if th.Critical != math.Min(0.95, th.High+0.2) {
		t.Errorf("critical = %v, want high+0.2", th.Critical)
	}
	if th.Medium != math.Max(0.3, th.High-0.2) {
		t.Errorf("medium = %v", th.Medium)
	}
	if th.Low != math.Max(0.1, th.High-0.4) {
		t.Errorf("low = %v", th.Low)
	}

	// Installed atomically.
	if e.Thresholds() != th {
		t.Error("calibrated thresholds not installed")
	}
}

func TestCalibrateNoSamples(t *testing.T) {
	e := NewEnsemble(defaultWeights(), logging.Nop())
	before := e.Thresholds()
	th, err := e.Calibrate(nil)
	if err == nil {
		t.Error("expected error for empty validation set")
	}
	if th != before {
		t.Error("thresholds should be unchanged")
	}
}
