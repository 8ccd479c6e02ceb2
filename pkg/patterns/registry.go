// Package patterns provides the scam-rule catalog used by the pattern risk
// detector. All regexes are compiled once when the registry is built and the
// registry is read-only afterwards, so it can be shared across requests
// without locking.
//
// Design principles:
// - COMPILE ONCE: rules are compiled at construction, not per-request
// - CATEGORIZED: rules are organized by scam category for targeted scans
// - EXTENSIBLE: a YAML overlay can add site-local rules without code changes
package patterns

import (
	"fmt"
	"regexp"
	"sort"
)

// Category identifies a scam category.
type Category string

const (
	CategoryInvestment      Category = "investment_scams"
	CategoryCrypto          Category = "crypto_scams"
	CategoryRomance         Category = "romance_scams"
	CategoryPhishing        Category = "phishing_scams"
	CategoryTechSupport     Category = "tech_support_scams"
	CategoryLottery         Category = "lottery_scams"
	CategoryJob             Category = "job_scams"
	CategoryUrgency         Category = "urgency_tactics"
	CategoryContactPressure Category = "contact_pressure"
)

// Tier is the ordinal risk tier a rule contributes at.
type Tier string

const (
	TierCritical Tier = "critical"
	TierHigh     Tier = "high"
	TierMedium   Tier = "medium"
	TierLow      Tier = "low"
)

// Weight returns the aggregation weight for a tier.
func (t Tier) Weight() float64 {
	switch t {
	case TierCritical:
		return 1.0
	case TierHigh:
		return 0.8
	case TierMedium:
		return 0.6
	default:
		return 0.4
	}
}

// BaseConfidence returns the starting confidence for a single match at this tier.
func (t Tier) BaseConfidence() float64 {
	switch t {
	case TierCritical:
		return 0.9
	case TierHigh:
		return 0.8
	case TierMedium:
		return 0.6
	default:
		return 0.4
	}
}

// Rule holds a compiled regex with its risk metadata.
type Rule struct {
	Pattern  string         // Original pattern source, used in match reports
	Regex    *regexp.Regexp // Compiled regex (never nil after construction)
	Category Category       // Scam category
	Tier     Tier           // Risk tier
}

// Registry holds all compiled rules, organized by category. Immutable once
// built; safe for concurrent readers.
type Registry struct {
	byCategory map[Category][]*Rule
	all        []*Rule
	version    string
	skipped    []string
}

// Option customizes registry construction.
type Option func(*Registry) error

// WithOverlayFile merges extra rules from a YAML file into the registry.
// Invalid entries are skipped; a parse failure of the file itself is an error.
func WithOverlayFile(path string) Option {
	return func(r *Registry) error {
		return r.loadOverlay(path)
	}
}

// NewRegistry builds the full catalog.
func NewRegistry(opts ...Option) (*Registry, error) {
	r := &Registry{
		byCategory: make(map[Category][]*Rule),
		all:        make([]*Rule, 0, 64),
		version:    catalogVersion,
	}

	r.registerInvestmentRules()
	r.registerCryptoRules()
	r.registerRomanceRules()
	r.registerPhishingRules()
	r.registerTechSupportRules()
	r.registerLotteryRules()
	r.registerJobRules()
	r.registerUrgencyRules()
	r.registerContactPressureRules()

	for _, opt := range opts {
		if err := opt(r); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// register adds a rule during construction. Case-insensitive, multi-line.
func (r *Registry) register(pattern string, category Category, tier Tier) {
	compiled := regexp.MustCompile(`(?im)` + pattern)
	rule := &Rule{
		Pattern:  pattern,
		Regex:    compiled,
		Category: category,
		Tier:     tier,
	}
	r.byCategory[category] = append(r.byCategory[category], rule)
	r.all = append(r.all, rule)
}

// registerDynamic is the overlay variant: it reports bad regexes instead of
// panicking so one broken site-local rule cannot take the service down.
func (r *Registry) registerDynamic(pattern string, category Category, tier Tier) error {
	compiled, err := regexp.Compile(`(?im)` + pattern)
	if err != nil {
		return fmt.Errorf("invalid rule %q: %w", pattern, err)
	}
	rule := &Rule{
		Pattern:  pattern,
		Regex:    compiled,
		Category: category,
		Tier:     tier,
	}
	r.byCategory[category] = append(r.byCategory[category], rule)
	r.all = append(r.all, rule)
	return nil
}

// All returns every rule in registration order.
func (r *Registry) All() []*Rule {
	return r.all
}

// ByCategory returns the rules for one category. Never nil.
func (r *Registry) ByCategory(cat Category) []*Rule {
	if rules, ok := r.byCategory[cat]; ok {
		return rules
	}
	return []*Rule{}
}

// Categories returns all categories that have at least one rule, sorted.
func (r *Registry) Categories() []Category {
	cats := make([]Category, 0, len(r.byCategory))
	for cat := range r.byCategory {
		cats = append(cats, cat)
	}
	sort.Slice(cats, func(i, j int) bool { return cats[i] < cats[j] })
	return cats
}

// Len returns the total rule count.
func (r *Registry) Len() int {
	return len(r.all)
}

// Version identifies the static catalog revision.
func (r *Registry) Version() string {
	return r.version
}
