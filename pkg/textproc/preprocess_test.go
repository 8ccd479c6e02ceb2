package textproc

import (
	"strings"
	"testing"
)

func TestNormalize(t *testing.T) {
	testCases := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "", ""},
		{"lowercases", "HELLO World", "hello world"},
		{"collapses whitespace", "a\t b\n\n c", "a b c"},
		{"trims", "  padded  ", "padded"},
		{"unicode compatibility", "ﬁnance", "finance"},
		{"fullwidth digits", "５００％", "500%"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Normalize(tc.in); got != tc.want {
				t.Errorf("Normalize(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestFingerprint(t *testing.T) {
	fp := Fingerprint("Send Bitcoin now!")
	if len(fp) != 16 {
		t.Fatalf("fingerprint length = %d, want 16", len(fp))
	}

	// Restyled copies of the same message must collide.
	if Fingerprint("SEND  bitcoin NOW!") != fp {
		t.Error("restyled text should share a fingerprint")
	}
	if Fingerprint("send ethereum now!") == fp {
		t.Error("different text should not share a fingerprint")
	}

	// Determinism across calls.
	if Fingerprint("Send Bitcoin now!") != fp {
		t.Error("fingerprint not stable")
	}
}

func TestExtractEntities(t *testing.T) {
	text := "Visit https://win-big.example.com, email winner@prizes.biz or " +
		"call (555) 123-4567. Send 0.5 BTC to 1A1zP1eP5QGefi2DMPTfTL5SLmv7DivfNa " +
		"and claim $1,000,000 plus 500 dollars."

	e := ExtractEntities(text)
	if len(e.URLs) != 1 {
		t.Errorf("urls = %v, want 1", e.URLs)
	}
	if len(e.Emails) != 1 || e.Emails[0] != "winner@prizes.biz" {
		t.Errorf("emails = %v", e.Emails)
	}
	if len(e.Phones) != 1 {
		t.Errorf("phones = %v, want 1", e.Phones)
	}
	if len(e.CryptoAddresses) != 1 {
		t.Errorf("crypto = %v, want 1", e.CryptoAddresses)
	}
	if len(e.MoneyAmounts) != 2 {
		t.Errorf("money = %v, want 2", e.MoneyAmounts)
	}
}

func TestExtractEntitiesEmpty(t *testing.T) {
	e := ExtractEntities("")
	if e.URLs == nil || e.Emails == nil || e.Phones == nil ||
		e.CryptoAddresses == nil || e.MoneyAmounts == nil {
		t.Error("entity slices must never be nil")
	}
}

func TestStats(t *testing.T) {
	s := Stats("CALL NOW! Win $500 today.")
	if s.CharCount == 0 || s.WordCount != 5 {
		t.Errorf("unexpected counts: %+v", s)
	}
	if s.UppercaseRatio <= 0 || s.DigitRatio <= 0 || s.SpecialCharRatio <= 0 {
		t.Errorf("ratios should be positive: %+v", s)
	}

	if got := Stats(""); got.CharCount != 0 || got.WordCount != 0 {
		t.Errorf("empty text stats = %+v", got)
	}
}

func TestCapsRatio(t *testing.T) {
	if got := CapsRatio("URGENT ACTION"); got != 1.0 {
		t.Errorf("all caps ratio = %v, want 1.0", got)
	}
	if got := CapsRatio("hello there"); got != 0 {
		t.Errorf("lowercase ratio = %v, want 0", got)
	}
	if got := CapsRatio("12345 !!!"); got != 0 {
		t.Errorf("no letters ratio = %v, want 0", got)
	}
	mixed := CapsRatio("Hello World")
	if mixed <= 0 || mixed >= 1 {
		t.Errorf("mixed case ratio = %v, want in (0,1)", mixed)
	}
}

func BenchmarkFingerprint(b *testing.B) {
	text := strings.Repeat("guaranteed returns act now ", 40)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = Fingerprint(text)
	}
}
