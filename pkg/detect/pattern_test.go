package detect

import (
	"context"
	"testing"

	"github.com/scamdunk/scamguard/pkg/logging"
	"github.com/scamdunk/scamguard/pkg/patterns"
)

func newPatternDetector(t *testing.T) *PatternDetector {
	t.Helper()
	reg, err := patterns.NewRegistry()
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	return NewPatternDetector(reg, logging.Nop())
}

func TestPatternDetectorNoMatches(t *testing.T) {
	d := newPatternDetector(t)

	p, err := d.Analyze(context.Background(), "Hello, how are you today?")
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}

	if p.Score != 0.1 {
		t.Errorf("score = %v, want 0.1 for clean text", p.Score)
	}
	if p.Confidence != 0.5 {
		t.Errorf("confidence = %v, want 0.5 for clean text", p.Confidence)
	}
	if p.Pattern == nil || len(p.Pattern.Matches) != 0 {
		t.Error("expected empty match list")
	}
	if p.Pattern.RiskTier != TierLow {
		t.Errorf("tier = %v, want low", p.Pattern.RiskTier)
	}
}

func TestPatternDetectorScamText(t *testing.T) {
	d := newPatternDetector(t)

	text := "Guaranteed 500% returns on your investment! Act now or miss out!"
	p, err := d.Analyze(context.Background(), text)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}

	if p.Score < 0.7 {
		t.Errorf("score = %v, want >= 0.7 for blatant scam text", p.Score)
	}
	if p.Score > 0.95 {
		t.Errorf("score = %v, must not exceed 0.95", p.Score)
	}
	if p.Confidence > 0.95 {
		t.Errorf("confidence = %v, must not exceed 0.95", p.Confidence)
	}

	hitInvestment := p.Pattern.CategoryHits[patterns.CategoryInvestment] > 0
	hitUrgency := p.Pattern.CategoryHits[patterns.CategoryUrgency] > 0
	if !hitInvestment || !hitUrgency {
		t.Errorf("category hits = %v, want investment and urgency", p.Pattern.CategoryHits)
	}
	if p.Pattern.RiskTier != TierCritical && p.Pattern.RiskTier != TierHigh {
		t.Errorf("tier = %v, want critical or high", p.Pattern.RiskTier)
	}
}

func TestPatternDetectorDeterministic(t *testing.T) {
	d := newPatternDetector(t)
	text := "verify your account immediately to claim your prize"

	first, err := d.Analyze(context.Background(), text)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 5; i++ {
		next, err := d.Analyze(context.Background(), text)
		if err != nil {
			t.Fatal(err)
		}
		if next.Score != first.Score || next.Confidence != first.Confidence {
			t.Fatalf("run %d: got (%v, %v), want (%v, %v)",
				i, next.Score, next.Confidence, first.Score, first.Confidence)
		}
	}
}

func TestFindMatchesConfidenceBoost(t *testing.T) {
	d := newPatternDetector(t)

	// Same critical rule firing twice should start at 0.9 and gain 0.05.
	text := "guaranteed returns here and guaranteed profits there"
	var m *RuleMatch
	for _, cand := range d.FindMatches(text) {
		if cand.Category == patterns.CategoryInvestment {
			cm := cand
			m = &cm
			break
		}
	}
	if m == nil {
		t.Fatal("expected an investment match")
	}
	if len(m.Matches) != 2 {
		t.Fatalf("occurrences = %d, want 2", len(m.Matches))
	}
	if got, want := m.Confidence, 0.95; got != want {
		t.Errorf("confidence = %v, want %v", got, want)
	}
	if len(m.Positions) != len(m.Matches) {
		t.Error("positions and matches out of sync")
	}
}

func TestPatternDetectorCanceledContext(t *testing.T) {
	d := newPatternDetector(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := d.Analyze(ctx, "anything"); err == nil {
		t.Error("expected error for canceled context")
	}
}

func TestTopCategories(t *testing.T) {
	matches := []RuleMatch{
		{Category: patterns.CategoryLottery, Confidence: 0.6},
		{Category: patterns.CategoryInvestment, Confidence: 0.9},
		{Category: patterns.CategoryInvestment, Confidence: 0.9},
		{Category: patterns.CategoryUrgency, Confidence: 0.7},
	}

	top := TopCategories(matches, 2)
	if len(top) != 2 {
		t.Fatalf("len = %d, want 2", len(top))
	}
	if top[0] != patterns.CategoryInvestment {
		t.Errorf("top[0] = %v, want investment", top[0])
	}
}

func TestTierForScore(t *testing.T) {
	testCases := []struct {
		score float64
		want  RiskTier
	}{
		{0.95, TierCritical},
		{0.9, TierCritical},
		{0.7, TierHigh},
		{0.6999, TierMedium},
		{0.5, TierMedium},
		{0.3, TierLow},
		{0.2999, TierMinimal},
		{0.0, TierMinimal},
	}
	for _, tc := range testCases {
		if got := TierForScore(tc.score); got != tc.want {
			t.Errorf("TierForScore(%v) = %v, want %v", tc.score, got, tc.want)
		}
	}
}
