package patterns

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// overlayFile is the on-disk shape of a site-local rule overlay:
//
//	version: "site-2024-03"
//	rules:
//	  - pattern: 'crypto\s+wallet\s+drained'
//	    category: crypto_scams
//	    tier: high
type overlayFile struct {
	Version string        `yaml:"version"`
	Rules   []overlayRule `yaml:"rules"`
}

type overlayRule struct {
	Pattern  string `yaml:"pattern"`
	Category string `yaml:"category"`
	Tier     string `yaml:"tier"`
}

var validTiers = map[string]Tier{
	"critical": TierCritical,
	"high":     TierHigh,
	"medium":   TierMedium,
	"low":      TierLow,
}

// loadOverlay merges rules from a YAML file. A missing file is not an error;
// a malformed file is. Individual rules with bad regexes or unknown tiers are
// skipped and reported through the returned OverlaySkipped list on the
// registry so the caller can log them.
func (r *Registry) loadOverlay(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read overlay %s: %w", path, err)
	}

	var of overlayFile
	if err := yaml.Unmarshal(data, &of); err != nil {
		return fmt.Errorf("parse overlay %s: %w", path, err)
	}

	for _, rule := range of.Rules {
		tier, ok := validTiers[rule.Tier]
		if !ok {
			r.skipped = append(r.skipped, fmt.Sprintf("rule %q: unknown tier %q", rule.Pattern, rule.Tier))
			continue
		}
		if rule.Pattern == "" {
			r.skipped = append(r.skipped, "rule with empty pattern")
			continue
		}
		if err := r.registerDynamic(rule.Pattern, Category(rule.Category), tier); err != nil {
			r.skipped = append(r.skipped, err.Error())
			continue
		}
	}
	if of.Version != "" {
		r.version = r.version + "+" + of.Version
	}
	return nil
}

// OverlaySkipped reports the overlay rules that were rejected during load,
// one message per rule. Empty when every rule compiled.
func (r *Registry) OverlaySkipped() []string {
	return r.skipped
}
