// pkg/transform/limon_test.go
package transform

import (
	"testing"

	"go.uber.org/zap"
)

func limonConvert(t *testing.T, in string) (string, bool) {
	t.Helper()
	tr := NewLimonTransformer()
	out, resolved, err := tr.Transform(in, Context{})
	if err != nil {
		t.Fatalf("Transform(%q): %v", in, err)
	}
	return out, resolved
}

func TestLimonTransformer_Substitution(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"kar", "ការ"},            // simple consonant + vowel + consonant
		{"mnusS", "មនុសS"},        // unmapped ASCII passes through
		{"2026", "២០២៦"},          // digits map to Khmer digits
		{"km>", "កម។"},            // sentence-final sign
	}
	for _, tc := range cases {
		got, _ := limonConvert(t, tc.in)
		if got != tc.want {
			t.Errorf("Transform(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

// Pre-positioned vowels are stored in visual order by the legacy
// encoding and must move behind the consonant cluster.
func TestLimonTransformer_Reordering(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"vowel before single consonant", "ekr", "កេរ"},
		{"vowel before subscript cluster", "es" + string(rune(0xB0)) + "c", "ស្តេច"},
		{"two-part vowel oo", "eda", "ដោ"},
		{"two-part vowel oe", "ekIt", "កើត"},
		{"ai vowel after subscript cluster", "of" + string(rune(0xBC)), "ថ្លៃ"},
	}
	for _, tc := range cases {
		got, resolved := limonConvert(t, tc.in)
		if got != tc.want {
			t.Errorf("%s: Transform(%q) = %q, want %q", tc.name, tc.in, got, tc.want)
		}
		if !resolved {
			t.Errorf("%s: expected fully resolved conversion", tc.name)
		}
	}
}

func TestLimonTransformer_SkipReorderHint(t *testing.T) {
	tr := NewLimonTransformer()
	got, _, err := tr.Transform("ekr", Context{Meta: map[string]string{"skip_reorder": "true"}})
	if err != nil {
		t.Fatalf("Transform: %v", err)
	}
	if got != "េករ" {
		t.Errorf("with skip_reorder, Transform(%q) = %q, want %q", "ekr", got, "េករ")
	}
}

func TestLimonTransformer_UnmappedGlyphRetained(t *testing.T) {
	// U+00FE has no glyph assignment; it must pass through and flag the
	// conversion as unresolved, never be dropped or guessed.
	got, resolved := limonConvert(t, "kþr")
	if resolved {
		t.Error("expected unresolved conversion for unmapped legacy glyph")
	}
	if got != "កþរ" {
		t.Errorf("unmapped glyph must be retained, got %q", got)
	}
}

// Applying the converter to its own output must be declined by the
// guard: any Khmer code point means the value is already converted.
func TestLimonTransformer_GuardRejectsConvertedText(t *testing.T) {
	tr := NewLimonTransformer()

	inputs := []string{"kar", "es" + string(rune(0xB0)) + "c", "ekIt"}
	for _, in := range inputs {
		out, _ := limonConvert(t, in)
		if tr.CanTransform(out) {
			t.Errorf("CanTransform(%q) = true for already-converted text", out)
		}
	}

	// Most Latin letters are Limon glyph codes; the code points the
	// font left unassigned are what identify plain text.
	plain := []string{
		"plain latin, no khmer glyphs?!",
		"ok?",
		"Sok Dara", // 'S' has no glyph assignment
		"",
	}
	for _, in := range plain {
		if tr.CanTransform(in) {
			t.Errorf("CanTransform(%q) = true for plain text", in)
		}
	}
	if !tr.CanTransform("kar") {
		t.Error("CanTransform must accept legacy-encoded text")
	}
	if !tr.CanTransform("kar ekIt") {
		t.Error("CanTransform must accept multi-word legacy text")
	}
}

func TestContainsLegacyScript(t *testing.T) {
	if !ContainsLegacyScript("kar") {
		t.Error("expected legacy detection for encoded text")
	}
	if ContainsLegacyScript("ការ") {
		t.Error("converted text must not be detected as legacy")
	}
	if ContainsLegacyScript("  ") {
		t.Error("blank values must not be detected as legacy")
	}
}

func TestApplyWithFallback_GuardAndResolution(t *testing.T) {
	r := NewDefaultRegistry()
	logger := zap.NewNop()

	// Guard declines already-converted text: not applied, still resolved.
	res := r.ApplyWithFallback("limon_to_unicode", "ការ", Context{}, logger)
	if res.Applied || !res.Resolved || res.Value != "ការ" {
		t.Errorf("declined value: got %+v", res)
	}

	// Legacy text converts and resolves.
	res = r.ApplyWithFallback("limon_to_unicode", "kar", Context{}, logger)
	if !res.Applied || !res.Resolved || res.Value != "ការ" {
		t.Errorf("converted value: got %+v", res)
	}

	// Unknown transformer degrades to the original value.
	res = r.ApplyWithFallback("no_such_transformer", "kar", Context{}, logger)
	if res.Value != "kar" || res.Resolved {
		t.Errorf("unknown transformer: got %+v", res)
	}
}
