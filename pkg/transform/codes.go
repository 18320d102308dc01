// pkg/transform/codes.go
package transform

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// EducationCodeTransformer remaps legacy course codes to their current
// canonical codes via a lookup table. Codes carrying a lab-section
// suffix are split into a base lookup plus a suffix rewrite. Codes
// absent from the table pass through unchanged with resolved == false;
// the transformer never substitutes a default.
type EducationCodeTransformer struct {
	codes map[string]string
}

// NewEducationCodeTransformer builds the transformer over a code map.
func NewEducationCodeTransformer(codes map[string]string) *EducationCodeTransformer {
	return &EducationCodeTransformer{codes: codes}
}

// DefaultCourseCodeMap returns the legacy-to-canonical course code
// table. Legacy codes predate the department renumbering; canonical
// codes are the current catalog's.
func DefaultCourseCodeMap() map[string]string {
	return map[string]string{
		"ENG101": "ENGL-101",
		"ENG102": "ENGL-102",
		"ENG201": "ENGL-201",
		"KHM101": "KHMR-101",
		"KHM102": "KHMR-102",
		"MAT101": "MATH-101",
		"MAT201": "MATH-201",
		"CSC101": "COMP-101",
		"CSC102": "COMP-102",
		"CSC201": "COMP-210",
		"BIO101": "BIOL-101",
		"CHE101": "CHEM-101",
		"PHY101": "PHYS-101",
		"ACC101": "ACCT-101",
		"ACC201": "ACCT-201",
		"MGT101": "MGMT-101",
		"ECO101": "ECON-101",
		"LAW101": "LAWS-101",
		"HIS101": "HIST-101",
		"EDU101": "EDUC-101",
	}
}

func (t *EducationCodeTransformer) Name() string { return "education_code" }

// labSuffix matches a trailing lab-section marker: "CSC101L" or
// "CSC101-L".
var labSuffix = regexp.MustCompile(`^(.+\d)-?L$`)

// CanTransform declines codes already in canonical form (containing the
// department-number hyphen) so re-application is a no-op. Lab spellings
// are accepted only when the base segment is still hyphen-free:
// "CSC101-L" is legacy, "COMP-101-L" is already canonical.
func (t *EducationCodeTransformer) CanTransform(value string) bool {
	v := strings.TrimSpace(value)
	if v == "" {
		return false
	}
	if m := labSuffix.FindStringSubmatch(v); m != nil {
		return !strings.Contains(m[1], "-")
	}
	return !strings.Contains(v, "-")
}

func (t *EducationCodeTransformer) Transform(value string, _ Context) (string, bool, error) {
	code := strings.ToUpper(strings.TrimSpace(value))

	// Lab sections: look up the base code and rewrite the suffix into
	// the canonical "-L" form.
	if m := labSuffix.FindStringSubmatch(code); m != nil {
		if canonical, ok := t.codes[m[1]]; ok {
			return canonical + "-L", true, nil
		}
		return value, false, nil
	}

	if canonical, ok := t.codes[code]; ok {
		return canonical, true, nil
	}
	return value, false, nil
}

// TermParts is the structured record parsed out of an opaque legacy
// term code. Unresolved fields stay at their zero value and are listed
// in Unresolved rather than failing the parse.
type TermParts struct {
	Year       int      `json:"year"`
	Term       int      `json:"term"`
	Program    string   `json:"program,omitempty"`
	Normalized string   `json:"normalized"`
	Unresolved []string `json:"unresolved,omitempty"`
}

// TermCodeTransformer parses legacy period codes into TermParts using
// positional rules. Three spellings occur in the extracts:
//
//	2009T3E   four-digit year, term number, optional program letter
//	091E      two-digit year, term number, optional program letter
//	2010-1    four-digit year, dash, term number
//
// Malformed input yields a partial structure with the missing fields
// flagged, never a hard failure.
type TermCodeTransformer struct{}

// NewTermCodeTransformer returns the term code parser.
func NewTermCodeTransformer() *TermCodeTransformer {
	return &TermCodeTransformer{}
}

func (t *TermCodeTransformer) Name() string { return "term_code" }

var (
	longTermCode  = regexp.MustCompile(`^(\d{4})[T-]?(\d)([A-Z])?$`)
	shortTermCode = regexp.MustCompile(`^(\d{2})(\d)([A-Z])?$`)
)

// CanTransform declines values already emitted by this transformer
// (JSON objects) and blanks.
func (t *TermCodeTransformer) CanTransform(value string) bool {
	v := strings.TrimSpace(value)
	return v != "" && !strings.HasPrefix(v, "{")
}

func (t *TermCodeTransformer) Transform(value string, _ Context) (string, bool, error) {
	parts := ParseTermCode(value)
	encoded, err := json.Marshal(parts)
	if err != nil {
		return value, false, fmt.Errorf("encoding term parts: %w", err)
	}
	return string(encoded), len(parts.Unresolved) == 0, nil
}

// ParseTermCode applies the positional rules to one code.
func ParseTermCode(value string) TermParts {
	code := strings.ToUpper(strings.TrimSpace(value))
	parts := TermParts{}

	var m []string
	if m = longTermCode.FindStringSubmatch(code); m != nil {
		parts.Year, _ = strconv.Atoi(m[1])
	} else if m = shortTermCode.FindStringSubmatch(code); m != nil {
		yy, _ := strconv.Atoi(m[1])
		// The legacy system predates 2000 only in archived extracts;
		// two-digit years pivot at 50.
		if yy >= 50 {
			parts.Year = 1900 + yy
		} else {
			parts.Year = 2000 + yy
		}
	}

	if m == nil {
		parts.Unresolved = []string{"year", "term"}
		parts.Normalized = code
		return parts
	}

	parts.Term, _ = strconv.Atoi(m[2])
	if parts.Term < 1 || parts.Term > 3 {
		parts.Term = 0
		parts.Unresolved = append(parts.Unresolved, "term")
	}
	parts.Program = m[3]

	if len(parts.Unresolved) == 0 {
		parts.Normalized = fmt.Sprintf("%dT%d%s", parts.Year, parts.Term, parts.Program)
	} else {
		parts.Normalized = code
	}
	return parts
}

// CategoryCodeTransformer maps single-letter and abbreviated legacy
// category codes to a fixed enumeration. Unrecognized codes are
// retained verbatim and flagged for review, never defaulted to a
// guessed category.
type CategoryCodeTransformer struct {
	categories map[string]string
}

// NewCategoryCodeTransformer builds the transformer over a category map.
func NewCategoryCodeTransformer(categories map[string]string) *CategoryCodeTransformer {
	return &CategoryCodeTransformer{categories: categories}
}

// DefaultCategoryMap returns the course-type enumeration used by the
// legacy catalog.
func DefaultCategoryMap() map[string]string {
	return map[string]string{
		"L":   "LECTURE",
		"LAB": "LABORATORY",
		"S":   "SEMINAR",
		"P":   "PRACTICUM",
		"T":   "THESIS",
		"I":   "INDEPENDENT_STUDY",
		"W":   "WORKSHOP",
	}
}

func (t *CategoryCodeTransformer) Name() string { return "category_code" }

// CanTransform declines values already in the target enumeration.
func (t *CategoryCodeTransformer) CanTransform(value string) bool {
	v := strings.TrimSpace(value)
	if v == "" {
		return false
	}
	for _, canonical := range t.categories {
		if v == canonical {
			return false
		}
	}
	return true
}

func (t *CategoryCodeTransformer) Transform(value string, _ Context) (string, bool, error) {
	code := strings.ToUpper(strings.TrimSpace(value))
	if canonical, ok := t.categories[code]; ok {
		return canonical, true, nil
	}
	return value, false, nil
}
