package patterns

import (
	"os"
	"path/filepath"
	"testing"
)

func TestRegistryHasRules(t *testing.T) {
	r, err := NewRegistry()
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}

	total := r.Len()
	if total < 50 {
		t.Errorf("expected at least 50 rules, got %d", total)
	}

	t.Logf("Registry loaded %d rules", total)
}

func TestCategoryRules(t *testing.T) {
	r, err := NewRegistry()
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}

	testCases := []struct {
		category Category
		minRules int
	}{
		{CategoryInvestment, 10},
		{CategoryCrypto, 9},
		{CategoryRomance, 8},
		{CategoryPhishing, 8},
		{CategoryTechSupport, 7},
		{CategoryLottery, 6},
		{CategoryJob, 6},
		{CategoryUrgency, 7},
		{CategoryContactPressure, 5},
	}

	for _, tc := range testCases {
		t.Run(string(tc.category), func(t *testing.T) {
			rules := r.ByCategory(tc.category)
			if len(rules) < tc.minRules {
				t.Errorf("category %s: expected at least %d rules, got %d",
					tc.category, tc.minRules, len(rules))
			}
		})
	}

	if got := len(r.Categories()); got != len(testCases) {
		t.Errorf("expected %d categories, got %d", len(testCases), got)
	}
}

func TestRuleMatching(t *testing.T) {
	r, err := NewRegistry()
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}

	testCases := []struct {
		name      string
		text      string
		category  Category
		wantMatch bool
	}{
		{
			name:      "guaranteed returns",
			text:      "We offer GUARANTEED RETURNS on your deposit",
			category:  CategoryInvestment,
			wantMatch: true,
		},
		{
			name:      "bitcoin doubler",
			text:      "join the bitcoin doubler program today",
			category:  CategoryCrypto,
			wantMatch: true,
		},
		{
			name:      "verify account now",
			text:      "Please verify your account immediately",
			category:  CategoryPhishing,
			wantMatch: true,
		},
		{
			name:      "act now pressure",
			text:      "act now or miss out on this deal",
			category:  CategoryUrgency,
			wantMatch: true,
		},
		{
			name:      "lottery winnings",
			text:      "Congratulations! You have won $5,000,000",
			category:  CategoryLottery,
			wantMatch: true,
		},
		{
			name:      "normal text",
			text:      "Hello, shall we meet for lunch tomorrow?",
			category:  CategoryInvestment,
			wantMatch: false,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			matched := false
			for _, rule := range r.ByCategory(tc.category) {
				if rule.Regex.MatchString(tc.text) {
					matched = true
					break
				}
			}
			if matched != tc.wantMatch {
				t.Errorf("text %q category %s: matched=%v, want %v",
					tc.text, tc.category, matched, tc.wantMatch)
			}
		})
	}
}

func TestTierWeights(t *testing.T) {
	testCases := []struct {
		tier     Tier
		weight   float64
		baseConf float64
	}{
		{TierCritical, 1.0, 0.9},
		{TierHigh, 0.8, 0.8},
		{TierMedium, 0.6, 0.6},
		{TierLow, 0.4, 0.4},
	}

	for _, tc := range testCases {
		if got := tc.tier.Weight(); got != tc.weight {
			t.Errorf("%s.Weight() = %v, want %v", tc.tier, got, tc.weight)
		}
		if got := tc.tier.BaseConfidence(); got != tc.baseConf {
			t.Errorf("%s.BaseConfidence() = %v, want %v", tc.tier, got, tc.baseConf)
		}
	}
}

func TestOverlayFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rules.yaml")
	overlay := `
version: "test-1"
rules:
  - pattern: 'wallet\s+drained'
    category: crypto_scams
    tier: high
  - pattern: '([unclosed'
    category: crypto_scams
    tier: high
  - pattern: 'something'
    category: crypto_scams
    tier: galactic
`
	if err := os.WriteFile(path, []byte(overlay), 0o644); err != nil {
		t.Fatal(err)
	}

	base, err := NewRegistry()
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	r, err := NewRegistry(WithOverlayFile(path))
	if err != nil {
		t.Fatalf("NewRegistry with overlay: %v", err)
	}

	if got, want := r.Len(), base.Len()+1; got != want {
		t.Errorf("rule count = %d, want %d (one valid overlay rule)", got, want)
	}
	if got := len(r.OverlaySkipped()); got != 2 {
		t.Errorf("skipped = %d, want 2 (bad regex, bad tier)", got)
	}

	matched := false
	for _, rule := range r.ByCategory(CategoryCrypto) {
		if rule.Regex.MatchString("my wallet drained overnight") {
			matched = true
		}
	}
	if !matched {
		t.Error("overlay rule did not match")
	}
}

func TestOverlayFileMissing(t *testing.T) {
	r, err := NewRegistry(WithOverlayFile("/nonexistent/rules.yaml"))
	if err != nil {
		t.Fatalf("missing overlay should not error, got %v", err)
	}
	if r.Len() < 50 {
		t.Error("static catalog should still load")
	}
}

func BenchmarkMatchAllCategories(b *testing.B) {
	r, err := NewRegistry()
	if err != nil {
		b.Fatal(err)
	}
	text := "Act now! Guaranteed returns on bitcoin investment. Verify your account immediately."

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		for _, rule := range r.All() {
			_ = rule.Regex.MatchString(text)
		}
	}
}
