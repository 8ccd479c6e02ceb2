package detect

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"

	"github.com/scamdunk/scamguard/pkg/logging"
	"github.com/scamdunk/scamguard/pkg/patterns"
)

// Thresholds are the score cut points for each risk tier.
type Thresholds struct {
	Critical float64 `json:"critical"`
	High     float64 `json:"high"`
	Medium   float64 `json:"medium"`
	Low      float64 `json:"low"`
}

// DefaultThresholds mirror TierForScore.
func DefaultThresholds() Thresholds {
	return Thresholds{Critical: 0.9, High: 0.7, Medium: 0.5, Low: 0.3}
}

// Tier maps a score through the cut points.
func (t Thresholds) Tier(score float64) RiskTier {
	switch {
	case score >= t.Critical:
		return TierCritical
	case score >= t.High:
		return TierHigh
	case score >= t.Medium:
		return TierMedium
	case score >= t.Low:
		return TierLow
	default:
		return TierMinimal
	}
}

// Assessment is the ensemble's combined verdict.
type Assessment struct {
	Score       float64      `json:"score"`
	Tier        RiskTier     `json:"tier"`
	Confidence  float64      `json:"confidence"`
	Explanation []string     `json:"explanation"`
	Predictions []Prediction `json:"predictions"`
}

// Ensemble folds detector predictions into a single confidence-weighted
// verdict. Weight updates swap in a fresh map under the mutex; a Combine
// that already snapshotted the old map keeps reading it safely.
type Ensemble struct {
	mu         sync.RWMutex
	weights    map[string]float64
	thresholds Thresholds
	log        *logging.Logger
}

// NewEnsemble copies the initial weight map; unknown model names fall back to
// a 0.1 weight at combine time.
func NewEnsemble(weights map[string]float64, log *logging.Logger) *Ensemble {
	w := make(map[string]float64, len(weights))
	for k, v := range weights {
		w[k] = v
	}
	return &Ensemble{
		weights:    w,
		thresholds: DefaultThresholds(),
		log:        log.WithComponent("ensemble"),
	}
}

// Weights returns a copy of the current weight map.
func (e *Ensemble) Weights() map[string]float64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make(map[string]float64, len(e.weights))
	for k, v := range e.weights {
		out[k] = v
	}
	return out
}

// Thresholds returns the current tier cut points.
func (e *Ensemble) Thresholds() Thresholds {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.thresholds
}

// CalibrationError reports a rejected weight or threshold update. The
// ensemble's prior configuration stays in effect.
type CalibrationError struct {
	Reason string
}

func (e *CalibrationError) Error() string {
	return "calibration rejected: " + e.Reason
}

// SetWeights validates and installs a new weight map, normalized to sum to 1.
// On any validation failure the current weights are kept untouched.
func (e *Ensemble) SetWeights(weights map[string]float64) error {
	if len(weights) == 0 {
		return &CalibrationError{Reason: "empty weight map"}
	}
	total := 0.0
	for name, w := range weights {
		if w < 0 || w > 1 {
			return &CalibrationError{Reason: fmt.Sprintf("weight for %s = %v, must be in [0,1]", name, w)}
		}
		total += w
	}
	if total <= 0 {
		return &CalibrationError{Reason: "total weight must be greater than 0"}
	}

	normalized := make(map[string]float64, len(weights))
	for name, w := range weights {
		normalized[name] = w / total
	}

	e.mu.Lock()
	merged := make(map[string]float64, len(e.weights)+len(normalized))
	for name, w := range e.weights {
		merged[name] = w
	}
	for name, w := range normalized {
		merged[name] = w
	}
	e.weights = merged
	e.mu.Unlock()

	e.log.Info().Interface("weights", normalized).Msg("ensemble weights updated")
	return nil
}

// Combine computes the confidence-weighted score over the predictions. A
// detector's influence is its configured weight times its own confidence, so
// an unsure model is partially ignored. Confidence drops when the detectors
// disagree: penalty = min(0.3, 2*variance) with a 0.1 floor.
func (e *Ensemble) Combine(predictions []Prediction) Assessment {
	e.mu.RLock()
	weights := e.weights
	thresholds := e.thresholds
	e.mu.RUnlock()

	if len(predictions) == 0 {
		return Assessment{
			Score:       0,
			Tier:        TierMinimal,
			Confidence:  0,
			Explanation: []string{"No model predictions available"},
			Predictions: []Prediction{},
		}
	}

	var (
		weightedSum float64
		totalWeight float64
		confidences = make([]float64, 0, len(predictions))
	)
	for _, p := range predictions {
		w, ok := weights[p.Model]
		if !ok {
			w = 0.1
		}
		eff := w * p.Confidence
		weightedSum += p.Score * eff
		totalWeight += eff
		confidences = append(confidences, p.Confidence)
	}

	var score float64
	if totalWeight > 0 {
		score = weightedSum / totalWeight
	} else {
		for _, p := range predictions {
			score += p.Score
		}
		score /= float64(len(predictions))
	}

	avgConf := mean(confidences)
	confidence := avgConf
	if len(confidences) > 1 {
		penalty := math.Min(0.3, variance(confidences)*2)
		confidence = math.Max(0.1, avgConf-penalty)
	}

	return Assessment{
		Score:       score,
		Tier:        thresholds.Tier(score),
		Confidence:  confidence,
		Explanation: e.explain(predictions, score, avgConf, thresholds),
		Predictions: predictions,
	}
}

func (e *Ensemble) explain(predictions []Prediction, score, avgConf float64, thresholds Thresholds) []string {
	lines := []string{
		fmt.Sprintf("Overall risk level: %s (%.2f)", strings.ToUpper(string(thresholds.Tier(score))), score),
	}

	for _, p := range predictions {
		if p.Score <= 0.5 {
			continue
		}
		switch p.Model {
		case ModelBERT:
			lines = append(lines, fmt.Sprintf("AI language model detected %.1f%% scam probability", p.Score*100))
		case ModelPattern:
			if p.Pattern != nil && len(p.Pattern.Matches) > 0 {
				lines = append(lines, fmt.Sprintf("Pattern analysis found %d suspicious indicators", len(p.Pattern.Matches)))
			}
		case ModelSentiment:
			if p.Behavioral != nil && (p.Behavioral.UrgencyTier == "high" || p.Behavioral.UrgencyTier == "medium") {
				lines = append(lines, "High urgency/pressure tactics detected")
			}
		}
	}

	for _, p := range predictions {
		if p.Model != ModelPattern || p.Score <= 0.6 || p.Pattern == nil {
			continue
		}
		var riskyCats []string
		for cat := range p.Pattern.CategoryHits {
			s := string(cat)
			if strings.Contains(s, "scam") || strings.Contains(s, "phishing") {
				riskyCats = append(riskyCats, s)
			}
		}
		sort.Strings(riskyCats)
		if len(riskyCats) > 2 {
			riskyCats = riskyCats[:2]
		}
		if len(riskyCats) > 0 {
			lines = append(lines, fmt.Sprintf("Contains %s indicators", strings.Join(riskyCats, ", ")))
		}
	}

	if avgConf < 0.5 {
		lines = append(lines, "Low confidence prediction - manual review recommended")
	} else if score > 0.8 && avgConf > 0.8 {
		lines = append(lines, "High confidence scam detection - immediate action recommended")
	}
	return lines
}

// CalibrationSample pairs an ensemble score with its ground-truth label.
type CalibrationSample struct {
	Score float64
	Label int // 1 scam, 0 legitimate
}

// Calibrate sweeps decision thresholds over labeled scores, picks the one
// with the best F1, derives the tier cut points from it and installs them.
// The derived thresholds are returned; with no samples the current thresholds
// are kept.
func (e *Ensemble) Calibrate(samples []CalibrationSample) (Thresholds, error) {
	if len(samples) == 0 {
		return e.Thresholds(), &CalibrationError{Reason: "no validation samples"}
	}

	bestThreshold, bestF1 := 0.5, 0.0
	for t := 0.1; t < 0.95; t += 0.05 {
		tp, fp, fn := 0, 0, 0
		for _, s := range samples {
			predicted := 0
			if s.Score >= t {
				predicted = 1
			}
			switch {
			case predicted == 1 && s.Label == 1:
				tp++
			case predicted == 1 && s.Label == 0:
				fp++
			case predicted == 0 && s.Label == 1:
				fn++
			}
		}
		precision, recall := 0.0, 0.0
		if tp+fp > 0 {
			precision = float64(tp) / float64(tp+fp)
		}
		if tp+fn > 0 {
			recall = float64(tp) / float64(tp+fn)
		}
		f1 := 0.0
		if precision+recall > 0 {
			f1 = 2 * precision * recall / (precision + recall)
		}
		if f1 > bestF1 {
			bestF1, bestThreshold = f1, t
		}
	}

	calibrated := Thresholds{
		Critical: math.Min(0.95, bestThreshold+0.2),
		High:     bestThreshold,
		Medium:   math.Max(0.3, bestThreshold-0.2),
		Low:      math.Max(0.1, bestThreshold-0.4),
	}

	e.mu.Lock()
	e.thresholds = calibrated
	e.mu.Unlock()

	e.log.Info().
		Float64("threshold", bestThreshold).
		Float64("f1", bestF1).
		Int("samples", len(samples)).
		Msg("thresholds calibrated")
	return calibrated, nil
}

func mean(vals []float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range vals {
		sum += v
	}
	return sum / float64(len(vals))
}

func variance(vals []float64) float64 {
	if len(vals) < 2 {
		return 0
	}
	m := mean(vals)
	sum := 0.0
	for _, v := range vals {
		d := v - m
		sum += d * d
	}
	return sum / float64(len(vals))
}

// categoriesOf is a small helper for reports that need the matched category
// names as strings.
func categoriesOf(hits map[patterns.Category]int) []string {
	out := make([]string, 0, len(hits))
	for cat := range hits {
		out = append(out, string(cat))
	}
	sort.Strings(out)
	return out
}
