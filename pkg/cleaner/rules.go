// pkg/cleaner/rules.go
package cleaner

import (
	"strconv"
	"strings"
	"time"
	"unicode/utf8"
)

// NewDefaultRegistry returns the registry with every built-in rule.
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register("trim_whitespace", trimWhitespace)
	r.Register("collapse_spaces", collapseSpaces)
	r.Register("uppercase", uppercase)
	r.Register("encoding_fix", encodingFix)
	r.Register("normalize_phone", normalizePhone)
	r.Register("normalize_gender", normalizeGender)
	r.Register("normalize_date", normalizeDate)
	r.Register("to_integer", toInteger)
	r.Register("to_decimal", toDecimal)
	r.Register("to_boolean", toBoolean)
	return r
}

func trimWhitespace(value string, _ RowContext) Outcome {
	return Cleaned(strings.TrimSpace(value))
}

func collapseSpaces(value string, _ RowContext) Outcome {
	fields := strings.Fields(value)
	if len(fields) == 0 {
		return Cleaned("")
	}
	return Cleaned(strings.Join(fields, " "))
}

func uppercase(value string, _ RowContext) Outcome {
	return Cleaned(strings.ToUpper(value))
}

// encodingFix repairs multi-byte text that was decoded as Latin-1
// somewhere upstream: each rune in U+0080..U+00FF is really one byte of
// a UTF-8 sequence. The repair re-encodes those runes as single bytes
// and accepts the result only if it is valid UTF-8 containing at least
// one multi-byte sequence. Repeated for doubly mis-decoded extracts.
// Text that is already correct has runes above U+00FF (or is plain
// ASCII) and passes through unchanged, which keeps the rule idempotent.
func encodingFix(value string, _ RowContext) Outcome {
	current := value
	for i := 0; i < 3; i++ { // extracts were observed at most doubly mangled
		repaired, ok := repairLatin1(current)
		if !ok {
			break
		}
		current = repaired
	}
	return Cleaned(current)
}

func repairLatin1(s string) (string, bool) {
	sawHigh := false
	b := make([]byte, 0, len(s))
	for _, r := range s {
		if r > 0xFF {
			// Genuine multi-byte text; nothing to repair.
			return s, false
		}
		if r >= 0x80 {
			sawHigh = true
		}
		b = append(b, byte(r))
	}
	if !sawHigh || !utf8.Valid(b) {
		return s, false
	}
	// Only accept if the reinterpretation actually produced multi-byte
	// sequences; otherwise the input was plain Latin text.
	if utf8.RuneCount(b) == len(b) {
		return s, false
	}
	return string(b), true
}

// normalizePhone canonicalizes Cambodian phone numbers to +855 form.
func normalizePhone(value string, _ RowContext) Outcome {
	if value == "" {
		return Cleaned("")
	}

	digits := make([]byte, 0, len(value))
	for i := 0; i < len(value); i++ {
		c := value[i]
		if c >= '0' && c <= '9' {
			digits = append(digits, c)
		}
	}
	if len(digits) == 0 {
		return Unresolved(value)
	}

	d := string(digits)
	switch {
	case strings.HasPrefix(d, "855"):
		d = d[3:]
	case strings.HasPrefix(d, "0"):
		d = d[1:]
	}

	// Cambodian subscriber numbers are 8 or 9 digits after the country code.
	if len(d) < 8 || len(d) > 9 {
		return Unresolved(value)
	}

	return Cleaned("+855" + d)
}

// genderTokens maps legacy gender spellings to the canonical enumeration.
var genderTokens = map[string]string{
	"m": "M", "male": "M", "1": "M",
	"f": "F", "female": "F", "2": "F",
}

// khmerGenderTokens covers sources where the column was entered in
// script; consulted only under the "km" locale hint.
var khmerGenderTokens = map[string]string{
	"ប្រុស": "M",
	"ស្រី":  "F",
}

func normalizeGender(value string, ctx RowContext) Outcome {
	if value == "" {
		return Cleaned("")
	}
	token := strings.ToLower(strings.TrimSpace(value))
	if canonical, ok := genderTokens[token]; ok {
		return Cleaned(canonical)
	}
	if ctx.Locale == "km" {
		if canonical, ok := khmerGenderTokens[token]; ok {
			return Cleaned(canonical)
		}
	}
	if token == "m." || token == "f." {
		return Cleaned(strings.ToUpper(token[:1]))
	}
	// Ambiguous classification is flagged for review, never guessed.
	return Unresolved(value)
}

// dateFormats lists the legacy date spellings seen in the extracts, in
// priority order. The canonical ISO form comes first so normalizing an
// already-normalized date is a no-op.
var dateFormats = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"02/01/2006", // day-first, as the legacy system printed dates
	"02-01-2006",
	"2006/01/02",
	"02 Jan 2006",
	"Jan 2, 2006",
}

func normalizeDate(value string, _ RowContext) Outcome {
	if value == "" {
		return Cleaned("")
	}
	for _, format := range dateFormats {
		if t, err := time.Parse(format, value); err == nil {
			return Cleaned(t.Format("2006-01-02"))
		}
	}
	return Unresolved(value)
}

func toInteger(value string, _ RowContext) Outcome {
	if value == "" {
		return Cleaned("")
	}
	cleaned := strings.ReplaceAll(strings.TrimSpace(value), ",", "")
	n, err := strconv.ParseInt(cleaned, 10, 64)
	if err != nil {
		// Some extracts store integers as "12.0".
		f, ferr := strconv.ParseFloat(cleaned, 64)
		if ferr != nil || f != float64(int64(f)) {
			return Unresolved(value)
		}
		n = int64(f)
	}
	return Cleaned(strconv.FormatInt(n, 10))
}

func toDecimal(value string, _ RowContext) Outcome {
	if value == "" {
		return Cleaned("")
	}
	cleaned := strings.ReplaceAll(strings.TrimSpace(value), ",", "")
	cleaned = strings.TrimPrefix(cleaned, "$")
	f, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return Unresolved(value)
	}
	return Cleaned(strconv.FormatFloat(f, 'f', -1, 64))
}

func toBoolean(value string, _ RowContext) Outcome {
	if value == "" {
		return Cleaned("")
	}
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "true", "t", "yes", "y", "1":
		return Cleaned("true")
	case "false", "f", "no", "n", "0":
		return Cleaned("false")
	default:
		return Unresolved(value)
	}
}
