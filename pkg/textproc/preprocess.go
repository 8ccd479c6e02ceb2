// Package textproc holds the shared text preprocessing used by every risk
// detector: normalization, content fingerprinting, entity extraction and
// surface statistics. Detectors call into this package so that, for a given
// input, they all see the same view of the text.
package textproc

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

var (
	urlRe    = regexp.MustCompile(`(?i)http[s]?://[a-zA-Z0-9$\-_@.&+!*\\(\\),%]+`)
	emailRe  = regexp.MustCompile(`\b[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}\b`)
	phoneRe  = regexp.MustCompile(`(\+?1[-.\s]?)?(\(?[0-9]{3}\)?[-.\s]?[0-9]{3}[-.\s]?[0-9]{4})`)
	cryptoRe = regexp.MustCompile(`\b[13][a-km-zA-HJ-NP-Z1-9]{25,34}\b|0x[a-fA-F0-9]{40}\b`)
	moneyRe  = regexp.MustCompile(`(?i)\$\d+(?:,\d{3})*(?:\.\d{2})?|\d+(?:,\d{3})*(?:\.\d{2})?\s?(?:dollars?|USD|euros?|EUR|pounds?|GBP)`)

	specialRe    = regexp.MustCompile(`[^\w\s]`)
	whitespaceRe = regexp.MustCompile(`\s+`)
)

// Entities are the structured items extracted from a message. Slices are never
// nil so callers can range without checking.
type Entities struct {
	URLs            []string `json:"urls"`
	Emails          []string `json:"emails"`
	Phones          []string `json:"phones"`
	CryptoAddresses []string `json:"crypto_addresses"`
	MoneyAmounts    []string `json:"money_amounts"`
}

// Statistics are surface-level features of the raw text.
type Statistics struct {
	CharCount        int     `json:"char_count"`
	WordCount        int     `json:"word_count"`
	AvgWordLength    float64 `json:"avg_word_length"`
	SpecialCharRatio float64 `json:"special_char_ratio"`
	UppercaseRatio   float64 `json:"uppercase_ratio"`
	DigitRatio       float64 `json:"digit_ratio"`
}

// Normalize applies unicode compatibility decomposition, lowercases and
// collapses whitespace. Empty input stays empty.
func Normalize(text string) string {
	if text == "" {
		return ""
	}
	text = norm.NFKD.String(text)
	text = strings.ToLower(text)
	text = whitespaceRe.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

// Fingerprint returns a 16-hex-char content key for cache and dedupe lookups.
// It is computed over the normalized text so trivially restyled copies of the
// same message share a fingerprint.
func Fingerprint(text string) string {
	sum := sha256.Sum256([]byte(Normalize(text)))
	return hex.EncodeToString(sum[:])[:16]
}

// ExtractEntities pulls URLs, emails, phone numbers, crypto addresses and
// money amounts out of the raw (non-normalized) text.
func ExtractEntities(text string) Entities {
	e := Entities{
		URLs:            []string{},
		Emails:          []string{},
		Phones:          []string{},
		CryptoAddresses: []string{},
		MoneyAmounts:    []string{},
	}
	if text == "" {
		return e
	}

	e.URLs = append(e.URLs, urlRe.FindAllString(text, -1)...)
	e.Emails = append(e.Emails, emailRe.FindAllString(text, -1)...)
	for _, m := range phoneRe.FindAllStringSubmatch(text, -1) {
		e.Phones = append(e.Phones, m[1]+m[2])
	}
	e.CryptoAddresses = append(e.CryptoAddresses, cryptoRe.FindAllString(text, -1)...)
	e.MoneyAmounts = append(e.MoneyAmounts, moneyRe.FindAllString(text, -1)...)
	return e
}

// Stats computes surface statistics over the raw text.
func Stats(text string) Statistics {
	s := Statistics{CharCount: len([]rune(text))}
	if s.CharCount == 0 {
		return s
	}

	words := strings.Fields(text)
	s.WordCount = len(words)
	if s.WordCount > 0 {
		total := 0
		for _, w := range words {
			total += len([]rune(w))
		}
		s.AvgWordLength = float64(total) / float64(s.WordCount)
	}

	s.SpecialCharRatio = float64(len(specialRe.FindAllString(text, -1))) / float64(s.CharCount)

	upper, digits := 0, 0
	for _, r := range text {
		if unicode.IsUpper(r) {
			upper++
		}
		if unicode.IsDigit(r) {
			digits++
		}
	}
	s.UppercaseRatio = float64(upper) / float64(s.CharCount)
	s.DigitRatio = float64(digits) / float64(s.CharCount)
	return s
}

// CapsRatio reports uppercase letters over total letters, the signal used for
// shouty all-caps messages. Zero when the text has no letters.
func CapsRatio(text string) float64 {
	letters, upper := 0, 0
	for _, r := range text {
		if unicode.IsLetter(r) {
			letters++
			if unicode.IsUpper(r) {
				upper++
			}
		}
	}
	if letters == 0 {
		return 0
	}
	return float64(upper) / float64(letters)
}
