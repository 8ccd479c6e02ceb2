package detect

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"strings"

	"github.com/scamdunk/scamguard/pkg/logging"
)

// Emotional keyword lexicons. Matched as whole words against lowercased text.
var (
	urgencyKeywords = []string{
		"urgent", "immediately", "asap", "hurry", "quickly", "fast",
		"now", "today", "tonight", "deadline", "expires", "limited",
		"last chance", "final warning", "don't delay", "act now",
		"time running out", "while supplies last", "limited time",
	}

	fearKeywords = []string{
		"danger", "risk", "threat", "warning", "alert", "emergency",
		"security", "breach", "compromised", "hacked", "virus",
		"malware", "suspended", "locked", "frozen", "terminated",
		"lose", "loss", "miss out", "regret", "disaster",
	}

	greedKeywords = []string{
		"money", "cash", "profit", "earn", "rich", "wealthy",
		"millionaire", "fortune", "jackpot", "win", "winner",
		"prize", "reward", "bonus", "guaranteed", "easy money",
		"get rich", "financial freedom", "passive income",
	}

	trustKeywords = []string{
		"trust", "honest", "legitimate", "legal", "authorized",
		"certified", "verified", "official", "government",
		"bank", "secure", "safe", "protected", "confidential",
	}
)

// Urgency phrasing patterns, counted on top of keyword density.
var urgencyPhrases = compileAll([]string{
	`act\s+now`,
	`limited\s+time`,
	`expires?\s+(?:today|soon|tonight)`,
	`hurry\s+up`,
	`don'?t\s+(?:delay|wait|hesitate)`,
	`immediately\s+(?:required|needed)`,
	`urgent\s+(?:action|response)`,
	`time\s+(?:is\s+)?running\s+out`,
	`while\s+(?:supplies|stocks?)\s+last`,
	`last\s+(?:chance|opportunity)`,
})

// Manipulation tactic patterns, grouped by persuasion style.
var tacticPatterns = map[string][]*regexp.Regexp{
	"authority": compileAll([]string{
		`government\s+(?:official|agency)`,
		`bank\s+(?:official|representative)`,
		`microsoft\s+support`,
		`apple\s+support`,
		`authorized\s+(?:agent|representative)`,
		`certified\s+(?:professional|expert)`,
	}),
	"scarcity": compileAll([]string{
		`limited\s+(?:time|quantity|availability)`,
		`only\s+\d+\s+(?:left|remaining|available)`,
		`exclusive\s+offer`,
		`rare\s+opportunity`,
		`while\s+supplies\s+last`,
		`limited\s+spots?`,
	}),
	"social_proof": compileAll([]string{
		`thousands\s+of\s+(?:people|customers)`,
		`everyone\s+is\s+(?:doing|buying)`,
		`most\s+popular`,
		`trending\s+now`,
		`recommended\s+by`,
		`#1\s+(?:choice|rated)`,
	}),
}

// Small polarity lexicon standing in for a full sentiment model. Scam texts
// skew negative-with-pressure, which is the only signal the composite needs.
var (
	positiveWords = wordSet(
		"good", "great", "happy", "wonderful", "love", "excellent",
		"nice", "amazing", "fantastic", "best", "thanks", "thank",
		"pleased", "glad", "enjoy", "congratulations",
	)
	negativeWords = wordSet(
		"bad", "terrible", "awful", "horrible", "hate", "worst",
		"angry", "sad", "fear", "danger", "threat", "urgent",
		"warning", "problem", "fail", "lose", "risk", "scam",
	)

	// Intensifiers count toward subjectivity but carry no polarity.
	intensifierWords = wordSet(
		"very", "really", "extremely", "absolutely", "totally",
		"completely", "definitely", "certainly", "never", "always",
		"guaranteed", "incredible", "unbelievable", "must",
	)
)

func compileAll(exprs []string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(exprs))
	for i, e := range exprs {
		out[i] = regexp.MustCompile(`(?i)` + e)
	}
	return out
}

func wordSet(words ...string) map[string]struct{} {
	s := make(map[string]struct{}, len(words))
	for _, w := range words {
		s[w] = struct{}{}
	}
	return s
}

type keywordMatcher struct {
	word string
	re   *regexp.Regexp
}

// BehavioralAnalyzer scores urgency pressure and emotional manipulation.
// Stateless; safe for concurrent use.
type BehavioralAnalyzer struct {
	keywordRes map[string][]keywordMatcher
	log        *logging.Logger
}

// NewBehavioralAnalyzer compiles the keyword lexicons into whole-word regexes.
func NewBehavioralAnalyzer(log *logging.Logger) *BehavioralAnalyzer {
	compileWords := func(words []string) []keywordMatcher {
		out := make([]keywordMatcher, len(words))
		for i, w := range words {
			out[i] = keywordMatcher{
				word: w,
				re:   regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(w) + `\b`),
			}
		}
		return out
	}
	return &BehavioralAnalyzer{
		keywordRes: map[string][]keywordMatcher{
			"urgency": compileWords(urgencyKeywords),
			"fear":    compileWords(fearKeywords),
			"greed":   compileWords(greedKeywords),
			"trust":   compileWords(trustKeywords),
		},
		log: log.WithComponent("behavioral_analyzer"),
	}
}

// Name implements Detector.
func (a *BehavioralAnalyzer) Name() string { return ModelSentiment }

func (a *BehavioralAnalyzer) countKeywords(kind, text string) (count int, found []string) {
	for _, km := range a.keywordRes[kind] {
		n := len(km.re.FindAllString(text, -1))
		if n > 0 {
			count += n
			found = append(found, km.word)
		}
	}
	return count, found
}

// Urgency returns the urgency score in [0,1] and the matched keywords.
// Score is keyword density scaled by 10 plus 0.2 per phrase match, capped.
func (a *BehavioralAnalyzer) Urgency(text string) (float64, []string) {
	lower := strings.ToLower(text)
	wordCount := len(strings.Fields(text))

	keywordCount, found := a.countKeywords("urgency", lower)
	density := 0.0
	if wordCount > 0 {
		density = float64(keywordCount) / float64(wordCount)
	}

	phraseMatches := 0
	for _, re := range urgencyPhrases {
		phraseMatches += len(re.FindAllString(lower, -1))
	}

	return math.Min(1.0, density*10+float64(phraseMatches)*0.2), found
}

// Manipulation returns the emotional manipulation score in [0,1] along with
// the fear/greed/trust keyword counts and per-tactic pattern counts. Trust
// language subtracts: scammers borrow it, but so do legitimate institutions,
// and over-weighting it floods the signal with false positives.
func (a *BehavioralAnalyzer) Manipulation(text string) (score float64, fear, greed, trust int, tactics map[string]int) {
	lower := strings.ToLower(text)
	wordCount := len(strings.Fields(text))

	fear, _ = a.countKeywords("fear", lower)
	greed, _ = a.countKeywords("greed", lower)
	trust, _ = a.countKeywords("trust", lower)

	var fearD, greedD, trustD float64
	if wordCount > 0 {
		fearD = float64(fear) / float64(wordCount)
		greedD = float64(greed) / float64(wordCount)
		trustD = float64(trust) / float64(wordCount)
	}

	tactics = make(map[string]int, len(tacticPatterns))
	patternTotal := 0
	for name, res := range tacticPatterns {
		n := 0
		for _, re := range res {
			n += len(re.FindAllString(lower, -1))
		}
		tactics[name] = n
		patternTotal += n
	}

	emotion := (fearD+greedD)*2 - trustD
	score = clip01(emotion + float64(patternTotal)*0.1)
	return score, fear, greed, trust, tactics
}

// Polarity estimates sentiment in [-1,1] from the word lexicons.
func (a *BehavioralAnalyzer) Polarity(text string) float64 {
	pos, neg := 0, 0
	for _, w := range strings.Fields(strings.ToLower(text)) {
		w = strings.Trim(w, `.,!?;:"'()`)
		if _, ok := positiveWords[w]; ok {
			pos++
		}
		if _, ok := negativeWords[w]; ok {
			neg++
		}
	}
	if pos+neg == 0 {
		return 0
	}
	return float64(pos-neg) / float64(pos+neg)
}

// Subjectivity estimates how opinionated the text is in [0,1] from the share
// of evaluative and intensifier words. Factual text scores near 0; a short
// message stacked with loaded words approaches 1.
func (a *BehavioralAnalyzer) Subjectivity(text string) float64 {
	words := strings.Fields(strings.ToLower(text))
	if len(words) == 0 {
		return 0
	}
	loaded := 0
	for _, w := range words {
		w = strings.Trim(w, `.,!?;:"'()`)
		if _, ok := positiveWords[w]; ok {
			loaded++
			continue
		}
		if _, ok := negativeWords[w]; ok {
			loaded++
			continue
		}
		if _, ok := intensifierWords[w]; ok {
			loaded++
		}
	}
	return math.Min(1.0, float64(loaded)/float64(len(words))*5)
}

// Analyze implements Detector. The composite risk weighs urgency 0.4,
// manipulation 0.4 and inverted sentiment polarity 0.2.
func (a *BehavioralAnalyzer) Analyze(ctx context.Context, text string) (Prediction, error) {
	if err := ctx.Err(); err != nil {
		return Prediction{}, fmt.Errorf("behavioral analysis: %w", err)
	}

	urgency, urgencyWords := a.Urgency(text)
	manipulation, fear, greed, trust, tactics := a.Manipulation(text)
	polarity := a.Polarity(text)
	subjectivity := a.Subjectivity(text)

	sentimentRisk := clip01(0.5 - polarity*0.5)
	composite := clip01(urgency*0.4 + manipulation*0.4 + sentimentRisk*0.2)

	meta := &BehavioralMeta{
		UrgencyScore:      urgency,
		UrgencyTier:       urgencyTier(urgency),
		ManipulationScore: manipulation,
		Polarity:          polarity,
		Subjectivity:      subjectivity,
		FearCount:         fear,
		GreedCount:        greed,
		TrustCount:        trust,
		UrgencyKeywords:   urgencyWords,
		TacticCounts:      tactics,
	}

	a.log.Debug().
		Float64("urgency", urgency).
		Float64("manipulation", manipulation).
		Float64("composite", composite).
		Msg("behavioral analysis complete")

	return Prediction{
		Model:      ModelSentiment,
		Score:      composite,
		Confidence: (urgency + manipulation) / 2,
		Behavioral: meta,
	}, nil
}

func urgencyTier(score float64) string {
	switch {
	case score >= 0.7:
		return "high"
	case score >= 0.4:
		return "medium"
	case score >= 0.1:
		return "low"
	default:
		return "none"
	}
}
