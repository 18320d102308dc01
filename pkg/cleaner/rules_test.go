// pkg/cleaner/rules_test.go
package cleaner

import (
	"testing"
)

func apply(t *testing.T, r *Registry, rule, value string) Outcome {
	t.Helper()
	outcome, err := r.Apply(rule, value, RowContext{})
	if err != nil {
		t.Fatalf("rule %s: %v", rule, err)
	}
	return outcome
}

func TestNormalizePhone_CanonicalForms(t *testing.T) {
	r := NewDefaultRegistry()

	cases := []struct {
		in   string
		want string
	}{
		{"012 345 678", "+85512345678"},
		{"012-345-678", "+85512345678"},
		{"+855 12 345 678", "+85512345678"},
		{"85512345678", "+85512345678"},
		{"092345678", "+85592345678"},
	}
	for _, tc := range cases {
		got := apply(t, r, "normalize_phone", tc.in)
		if !got.Resolved {
			t.Errorf("normalize_phone(%q) unresolved, want %q", tc.in, tc.want)
			continue
		}
		if got.Value != tc.want {
			t.Errorf("normalize_phone(%q) = %q, want %q", tc.in, got.Value, tc.want)
		}
	}
}

func TestNormalizePhone_RetainsUnparseable(t *testing.T) {
	r := NewDefaultRegistry()

	for _, in := range []string{"n/a", "12345", "0123456789012"} {
		got := apply(t, r, "normalize_phone", in)
		if got.Resolved {
			t.Errorf("normalize_phone(%q) resolved to %q, want unresolved", in, got.Value)
		}
		if got.Value != in {
			t.Errorf("normalize_phone(%q) altered the value to %q, original must be retained", in, got.Value)
		}
	}
}

func TestNormalizeGender_TokensAndAmbiguity(t *testing.T) {
	r := NewDefaultRegistry()

	resolved := map[string]string{
		"M": "M", "male": "M", "1": "M",
		"f": "F", "Female": "F", "2": "F",
	}
	for in, want := range resolved {
		got := apply(t, r, "normalize_gender", in)
		if !got.Resolved || got.Value != want {
			t.Errorf("normalize_gender(%q) = (%q, %v), want (%q, true)", in, got.Value, got.Resolved, want)
		}
	}

	got := apply(t, r, "normalize_gender", "unknown")
	if got.Resolved {
		t.Errorf("normalize_gender must not guess on ambiguous input, got %q", got.Value)
	}
	if got.Value != "unknown" {
		t.Errorf("ambiguous value must be retained, got %q", got.Value)
	}
}

// Script tokens resolve only under the Khmer locale hint; without it
// they are retained for review.
func TestNormalizeGender_KhmerLocale(t *testing.T) {
	r := NewDefaultRegistry()
	km := RowContext{Locale: "km"}

	for in, want := range map[string]string{"ប្រុស": "M", "ស្រី": "F"} {
		got, err := r.Apply("normalize_gender", in, km)
		if err != nil {
			t.Fatalf("Apply: %v", err)
		}
		if !got.Resolved || got.Value != want {
			t.Errorf("normalize_gender(%q, km) = (%q, %v), want (%q, true)", in, got.Value, got.Resolved, want)
		}
	}

	got, err := r.Apply("normalize_gender", "ប្រុស", RowContext{})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if got.Resolved || got.Value != "ប្រុស" {
		t.Errorf("without the locale hint, script token must be retained, got (%q, %v)", got.Value, got.Resolved)
	}
}

func TestNormalizeDate_LegacyFormats(t *testing.T) {
	r := NewDefaultRegistry()

	cases := []struct {
		in   string
		want string
	}{
		{"1995-04-13", "1995-04-13"},
		{"13/04/1995", "1995-04-13"},
		{"13-04-1995", "1995-04-13"},
		{"1995/04/13", "1995-04-13"},
		{"13 Apr 1995", "1995-04-13"},
	}
	for _, tc := range cases {
		got := apply(t, r, "normalize_date", tc.in)
		if !got.Resolved || got.Value != tc.want {
			t.Errorf("normalize_date(%q) = (%q, %v), want (%q, true)", tc.in, got.Value, got.Resolved, tc.want)
		}
	}

	if got := apply(t, r, "normalize_date", "13th of April"); got.Resolved {
		t.Errorf("normalize_date must not resolve %q", "13th of April")
	}
}

func TestToInteger_AcceptsLegacySpellings(t *testing.T) {
	r := NewDefaultRegistry()

	cases := []struct {
		in   string
		want string
	}{
		{"42", "42"},
		{"1,200", "1200"},
		{"12.0", "12"},
		{" 7 ", "7"},
	}
	for _, tc := range cases {
		got := apply(t, r, "to_integer", tc.in)
		if !got.Resolved || got.Value != tc.want {
			t.Errorf("to_integer(%q) = (%q, %v), want (%q, true)", tc.in, got.Value, got.Resolved, tc.want)
		}
	}

	if got := apply(t, r, "to_integer", "12.5"); got.Resolved {
		t.Errorf("to_integer must not truncate %q", "12.5")
	}
}

func TestEncodingFix_RepairsMisdecodedUTF8(t *testing.T) {
	r := NewDefaultRegistry()

	// "ក" (U+1780) mis-decoded as Latin-1 becomes these three runes.
	mangled := "\u00e1\u009e\u0080"
	got := apply(t, r, "encoding_fix", mangled)
	if got.Value != "ក" {
		t.Errorf("encoding_fix(%q) = %q, want %q", mangled, got.Value, "ក")
	}

	// Already-correct text must pass through untouched.
	for _, in := range []string{"ក", "plain ascii", "café"} {
		got := apply(t, r, "encoding_fix", in)
		if got.Value != in {
			t.Errorf("encoding_fix(%q) = %q, must be unchanged", in, got.Value)
		}
	}
}

// Every rule must be idempotent: applying it to its own output returns
// the same output. Chunked re-runs depend on this.
func TestRules_Idempotent(t *testing.T) {
	r := NewDefaultRegistry()

	inputs := []string{
		"", "  padded  ", "a  b   c", "mixedCase",
		"012 345 678", "male", "13/04/1995", "1,200", "12.5",
		"$1,234.50", "yes", "n/a", "ក",
	}
	for _, rule := range r.Names() {
		for _, in := range inputs {
			first := apply(t, r, rule, in)
			second := apply(t, r, rule, first.Value)
			if second.Value != first.Value {
				t.Errorf("rule %s is not idempotent on %q: %q -> %q", rule, in, first.Value, second.Value)
			}
		}
	}
}

func TestApplySequence_StopsOnUnresolved(t *testing.T) {
	r := NewDefaultRegistry()

	// trim resolves, normalize_phone cannot; the trimmed value is
	// retained and the sequence reports unresolved.
	value, resolved, err := r.ApplySequence(
		[]string{"trim_whitespace", "normalize_phone"}, "  not-a-phone  ", RowContext{})
	if err != nil {
		t.Fatalf("ApplySequence: %v", err)
	}
	if resolved {
		t.Error("expected unresolved outcome")
	}
	if value != "not-a-phone" {
		t.Errorf("expected trimmed value to be retained, got %q", value)
	}
}
