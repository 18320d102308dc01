// pkg/transform/codes_test.go
package transform

import (
	"encoding/json"
	"testing"
)

func TestEducationCodeTransformer_Remapping(t *testing.T) {
	tr := NewEducationCodeTransformer(DefaultCourseCodeMap())

	cases := []struct {
		in       string
		want     string
		resolved bool
	}{
		{"ENG101", "ENGL-101", true},
		{"eng101", "ENGL-101", true}, // case-folded before lookup
		{"CSC101L", "COMP-101-L", true},
		{"CSC101-L", "COMP-101-L", true},
		{"XYZ999", "XYZ999", false}, // unmapped codes pass through
		{"XYZ999L", "XYZ999L", false},
	}
	for _, tc := range cases {
		got, resolved, err := tr.Transform(tc.in, Context{})
		if err != nil {
			t.Fatalf("Transform(%q): %v", tc.in, err)
		}
		if got != tc.want || resolved != tc.resolved {
			t.Errorf("Transform(%q) = (%q, %v), want (%q, %v)", tc.in, got, resolved, tc.want, tc.resolved)
		}
	}
}

func TestEducationCodeTransformer_GuardDeclinesCanonical(t *testing.T) {
	tr := NewEducationCodeTransformer(DefaultCourseCodeMap())

	if tr.CanTransform("ENGL-101") {
		t.Error("canonical codes must be declined")
	}
	if tr.CanTransform("COMP-101-L") {
		t.Error("canonical lab codes must be declined")
	}
	if !tr.CanTransform("ENG101") {
		t.Error("legacy codes must be accepted")
	}
	if !tr.CanTransform("CSC101-L") {
		t.Error("lab-suffixed legacy spellings must be accepted")
	}
	if tr.CanTransform("") {
		t.Error("blank codes must be declined")
	}
}

func TestTermCodeTransformer_ParseSpellings(t *testing.T) {
	cases := []struct {
		in         string
		year       int
		term       int
		program    string
		normalized string
	}{
		{"2009T3E", 2009, 3, "E", "2009T3E"},
		{"091E", 2009, 1, "E", "2009T1E"},
		{"2010-1", 2010, 1, "", "2010T1"},
		{"982", 1998, 2, "", "1998T2"},
	}
	for _, tc := range cases {
		parts := ParseTermCode(tc.in)
		if parts.Year != tc.year || parts.Term != tc.term || parts.Program != tc.program {
			t.Errorf("ParseTermCode(%q) = %+v, want year=%d term=%d program=%q",
				tc.in, parts, tc.year, tc.term, tc.program)
		}
		if parts.Normalized != tc.normalized {
			t.Errorf("ParseTermCode(%q).Normalized = %q, want %q", tc.in, parts.Normalized, tc.normalized)
		}
		if len(parts.Unresolved) != 0 {
			t.Errorf("ParseTermCode(%q) flagged %v, want fully resolved", tc.in, parts.Unresolved)
		}
	}
}

func TestTermCodeTransformer_PartialParseNeverFails(t *testing.T) {
	tr := NewTermCodeTransformer()

	for _, in := range []string{"garbage", "095", "20XX-1"} {
		out, resolved, err := tr.Transform(in, Context{})
		if err != nil {
			t.Fatalf("Transform(%q) must not fail: %v", in, err)
		}
		if resolved {
			t.Errorf("Transform(%q) reported resolved for a partial parse", in)
		}
		var parts TermParts
		if err := json.Unmarshal([]byte(out), &parts); err != nil {
			t.Fatalf("Transform(%q) output is not valid JSON: %v", in, err)
		}
		if len(parts.Unresolved) == 0 {
			t.Errorf("Transform(%q) must flag unresolved fields", in)
		}
	}
}

func TestTermCodeTransformer_GuardDeclinesOwnOutput(t *testing.T) {
	tr := NewTermCodeTransformer()

	out, _, err := tr.Transform("2009T3E", Context{})
	if err != nil {
		t.Fatalf("Transform: %v", err)
	}
	if tr.CanTransform(out) {
		t.Error("structured output must be declined on re-application")
	}
}

func TestCategoryCodeTransformer_Standardization(t *testing.T) {
	tr := NewCategoryCodeTransformer(DefaultCategoryMap())

	cases := []struct {
		in       string
		want     string
		resolved bool
	}{
		{"L", "LECTURE", true},
		{"lab", "LABORATORY", true},
		{"s", "SEMINAR", true},
		{"Z", "Z", false}, // unrecognized codes are retained verbatim
	}
	for _, tc := range cases {
		got, resolved, err := tr.Transform(tc.in, Context{})
		if err != nil {
			t.Fatalf("Transform(%q): %v", tc.in, err)
		}
		if got != tc.want || resolved != tc.resolved {
			t.Errorf("Transform(%q) = (%q, %v), want (%q, %v)", tc.in, got, resolved, tc.want, tc.resolved)
		}
	}

	if tr.CanTransform("LECTURE") {
		t.Error("values already in the target enumeration must be declined")
	}
}
