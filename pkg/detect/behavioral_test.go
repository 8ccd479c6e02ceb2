package detect

import (
	"context"
	"testing"

	"github.com/scamdunk/scamguard/pkg/logging"
)

func TestUrgencyScoring(t *testing.T) {
	a := NewBehavioralAnalyzer(logging.Nop())

	testCases := []struct {
		name    string
		text    string
		minimum float64
		maximum float64
	}{
		{
			name:    "calm text",
			text:    "Looking forward to seeing you at the weekend barbecue.",
			minimum: 0,
			maximum: 0.05,
		},
		{
			name:    "saturated pressure",
			text:    "URGENT! Act now! Deadline expires tonight, hurry, don't delay, respond immediately asap!",
			minimum: 0.7,
			maximum: 1.0,
		},
		{
			name:    "mild urgency",
			text:    "Could you reply today if possible? No rush otherwise, whenever is convenient works fine for me honestly.",
			minimum: 0.2,
			maximum: 0.7,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			score, _ := a.Urgency(tc.text)
			if score < tc.minimum || score > tc.maximum {
				t.Errorf("urgency = %v, want in [%v, %v]", score, tc.minimum, tc.maximum)
			}
		})
	}
}

func TestUrgencyTiers(t *testing.T) {
	testCases := []struct {
		score float64
		want  string
	}{
		{0.8, "high"},
		{0.7, "high"},
		{0.5, "medium"},
		{0.4, "medium"},
		{0.2, "low"},
		{0.1, "low"},
		{0.05, "none"},
	}
	for _, tc := range testCases {
		if got := urgencyTier(tc.score); got != tc.want {
			t.Errorf("urgencyTier(%v) = %q, want %q", tc.score, got, tc.want)
		}
	}
}

func TestManipulationScoring(t *testing.T) {
	a := NewBehavioralAnalyzer(logging.Nop())

	// Fear plus greed plus an authority tactic should push the score up.
	hot := "Warning: your account is at risk! Act fast to win easy cash. " +
		"I am a government official and this is an exclusive offer."
	score, fear, greed, _, tactics := a.Manipulation(hot)
	if score <= 0.2 {
		t.Errorf("manipulation = %v, want > 0.2", score)
	}
	if fear == 0 {
		t.Error("expected fear keywords")
	}
	if greed == 0 {
		t.Error("expected greed keywords")
	}
	if tactics["authority"] == 0 {
		t.Errorf("tactics = %v, expected an authority hit", tactics)
	}

	// Neutral text should stay near zero.
	cold, _, _, _, _ := a.Manipulation("The meeting notes are attached for your review.")
	if cold > 0.1 {
		t.Errorf("manipulation = %v for neutral text, want <= 0.1", cold)
	}

	// Clipping.
	if score < 0 || score > 1 {
		t.Errorf("manipulation = %v, out of [0,1]", score)
	}
}

func TestPolarity(t *testing.T) {
	a := NewBehavioralAnalyzer(logging.Nop())

	if got := a.Polarity("This is wonderful, great, amazing!"); got <= 0 {
		t.Errorf("positive text polarity = %v, want > 0", got)
	}
	if got := a.Polarity("terrible awful horrible disaster"); got >= 0 {
		t.Errorf("negative text polarity = %v, want < 0", got)
	}
	if got := a.Polarity("the chair is next to the table"); got != 0 {
		t.Errorf("neutral text polarity = %v, want 0", got)
	}
}

func TestSubjectivity(t *testing.T) {
	a := NewBehavioralAnalyzer(logging.Nop())

	if got := a.Subjectivity(""); got != 0 {
		t.Errorf("empty text subjectivity = %v, want 0", got)
	}
	factual := a.Subjectivity("The meeting is scheduled for Tuesday at the north office.")
	if factual > 0.2 {
		t.Errorf("factual text subjectivity = %v, want <= 0.2", factual)
	}
	loaded := a.Subjectivity("This is absolutely incredible, guaranteed amazing, the best ever!")
	if loaded <= factual {
		t.Errorf("loaded text subjectivity = %v, want > factual %v", loaded, factual)
	}
	if loaded < 0 || loaded > 1 {
		t.Errorf("subjectivity = %v, out of [0,1]", loaded)
	}
}

func TestBehavioralAnalyze(t *testing.T) {
	a := NewBehavioralAnalyzer(logging.Nop())

	p, err := a.Analyze(context.Background(),
		"URGENT WARNING: act now to win guaranteed cash! Limited time, don't delay!")
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}

	if p.Model != ModelSentiment {
		t.Errorf("model = %q, want %q", p.Model, ModelSentiment)
	}
	if p.Score <= 0.3 {
		t.Errorf("composite = %v, want > 0.3 for pressured text", p.Score)
	}
	if p.Behavioral == nil {
		t.Fatal("behavioral metadata missing")
	}
	if p.Behavioral.UrgencyTier == "none" {
		t.Error("expected urgency tier above none")
	}
	if len(p.Behavioral.UrgencyKeywords) == 0 {
		t.Error("expected matched urgency keywords")
	}
	if p.Behavioral.Subjectivity <= 0 {
		t.Errorf("subjectivity = %v, want > 0 for loaded text", p.Behavioral.Subjectivity)
	}

	// Confidence is the mean of urgency and manipulation.
	want := (p.Behavioral.UrgencyScore + p.Behavioral.ManipulationScore) / 2
	if p.Confidence != want {
		t.Errorf("confidence = %v, want %v", p.Confidence, want)
	}
}

func TestBehavioralAnalyzeEmpty(t *testing.T) {
	a := NewBehavioralAnalyzer(logging.Nop())

	p, err := a.Analyze(context.Background(), "")
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if p.Score < 0 || p.Score > 1 {
		t.Errorf("score = %v, out of [0,1]", p.Score)
	}
}
