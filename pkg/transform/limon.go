// pkg/transform/limon.go
package transform

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// LimonTransformer converts text stored in the legacy Limon 8-bit glyph
// encoding into Khmer Unicode. Conversion is two passes:
//
//  1. substitution: each legacy glyph code maps to one or a few Unicode
//     code points (subscript glyphs expand to U+17D2 + consonant);
//  2. reordering: Limon stores the pre-positioned vowels (e, ê, ai) in
//     visual order, before the consonant they attach to, while Unicode
//     requires logical order (base consonant, subscripts, then vowel).
//     The reorder pass moves buffered pre-vowels behind the following
//     consonant cluster and composes two-part vowels.
//
// Substitution without reordering yields text whose every character
// mapped "correctly" but which still renders wrong; the reorder pass is
// what makes the output usable.
type LimonTransformer struct{}

// NewLimonTransformer returns the Limon to Unicode converter.
func NewLimonTransformer() *LimonTransformer {
	return &LimonTransformer{}
}

func (t *LimonTransformer) Name() string { return "limon_to_unicode" }

const (
	khmerBlockStart = 'ក'
	khmerBlockEnd   = '៿'
	coeng           = '្'
)

// Khmer consonants in traditional order, ka through qa.
var khmerConsonants = []rune("កខគឃងចឆជឈញដឋឌឍណតថទធនបផពភមយរលវសហឡអ")

// limonMap is the glyph inventory of the Limon layout used by the
// legacy system: one entry per code point the font assigned a Khmer
// glyph to. Keys are the runes produced by decoding the original 8-bit
// bytes as Latin-1.
var limonMap = map[rune]string{
	// Consonants
	'k': "ក", 'x': "ខ", 'K': "គ", 'X': "ឃ", 'g': "ង",
	'c': "ច", 'q': "ឆ", 'C': "ជ", 'Q': "ឈ", 'j': "ញ",
	'd': "ដ", 'z': "ឋ", 'D': "ឌ", 'Z': "ឍ", 'N': "ណ",
	't': "ត", 'f': "ថ", 'T': "ទ", 'F': "ធ", 'n': "ន",
	'b': "ប", 'p': "ផ", 'B': "ព", 'P': "ភ", 'm': "ម",
	'y': "យ", 'r': "រ", 'l': "ល", 'v': "វ", 's': "ស",
	'h': "ហ", 'L': "ឡ", 'G': "អ",

	// Dependent vowels written after the consonant
	'a': "ា", 'i': "ិ", 'I': "ី", 'w': "ឹ", 'W': "ឺ",
	'u': "ុ", 'U': "ូ", 'Y': "ួ", 'J': "ឿ", 'V': "ៀ",
	'O': "ៅ",

	// Pre-positioned vowels: Limon stores these before the consonant
	// cluster (visual order); the reorder pass moves them into logical
	// position and composes the two-part vowels oo and oe.
	'e': "េ", 'E': "ែ", 'o': "ៃ",

	// Signs and diacritics
	'M': "ំ", 'H': "ះ", ':': "ៈ",
	'\'': "់", '^': "័",
	'(': "៉", ')': "៊",
	'&': "៌", '%': "៍", '@': "៏",
	'>': "។", '<': "៕", '#': "៛",

	// Independent vowels (upper half of the legacy code page)
	'Ð': "ឥ", 'Ñ': "ឦ", 'Ò': "ឧ", 'Ó': "ឩ",
	'Ô': "ឪ", 'Õ': "ឫ", 'Ö': "ឬ", '×': "ឭ",
	'Ø': "ឮ", 'Ù': "ឯ", 'Ú': "ឰ", 'Û': "ឱ",
	'Ü': "ឲ", 'Ý': "ឳ",

	// Composed final ligatures the font kept as single glyphs
	'á': "ាំ", 'â': "ោះ", 'ã': "េះ",
	'ä': "ុំ", 'å': "ុះ",

	// Khmer digits
	'0': "០", '1': "១", '2': "២", '3': "៣", '4': "៤",
	'5': "៥", '6': "៦", '7': "៧", '8': "៨", '9': "៩",
}

func init() {
	// Subscript (coeng) consonant glyphs occupy 0xA1..0xC1 in the
	// legacy code page, in the same traditional order as the base
	// consonants. Each expands to the coeng marker plus the consonant.
	for i, cons := range khmerConsonants {
		limonMap[rune(0xA1+i)] = string([]rune{coeng, cons})
	}
}

// CanTransform returns false for values already in canonical Unicode
// form (any Khmer block code point present), for values carrying ASCII
// code points the legacy font assigned no glyph to ('?', '!', ',', the
// letters A/R/S), and for values with no mappable Limon letters.
// Nearly all Latin letters double as Limon glyph codes, so Latin
// transcriptions misfiled in a script column would otherwise convert
// into mojibake; the unassigned code points are what separate plain
// text from genuine Limon. Re-application is always a no-op.
func (t *LimonTransformer) CanTransform(value string) bool {
	hasLimonLetter := false
	for _, r := range value {
		if r >= khmerBlockStart && r <= khmerBlockEnd {
			return false
		}
		mapped, ok := limonMap[r]
		if !ok && r < 0x80 && !unicode.IsSpace(r) {
			return false
		}
		if ok && isKhmerLetter([]rune(mapped)[0]) {
			hasLimonLetter = true
		}
	}
	return hasLimonLetter
}

// Transform substitutes and reorders. Legacy code points with no map
// entry pass through unchanged with resolved == false; the transformer
// never fails on unmapped input.
func (t *LimonTransformer) Transform(value string, ctx Context) (string, bool, error) {
	substituted, resolved := t.substitute(value)
	if ctx.Meta["skip_reorder"] != "true" {
		substituted = reorderSyllables(substituted)
	}
	return norm.NFC.String(string(substituted)), resolved, nil
}

// substitute maps every glyph code to its Unicode expansion. ASCII
// punctuation and whitespace shared between the legacy font and plain
// text pass through silently; unmapped upper-half code points are kept
// verbatim and reported as unresolved.
func (t *LimonTransformer) substitute(value string) ([]rune, bool) {
	out := make([]rune, 0, len(value))
	resolved := true
	for _, r := range value {
		if mapped, ok := limonMap[r]; ok {
			out = append(out, []rune(mapped)...)
			continue
		}
		if r >= 0x80 {
			resolved = false
		}
		out = append(out, r)
	}
	return out, resolved
}

// reorderSyllables moves pre-positioned vowels behind the consonant
// cluster they attach to. A cluster is a base letter followed by any
// coeng+consonant pairs and register shifters. Two-part vowels are
// composed here: e + aa -> oo (U+17C4), e + ii -> oe (U+17BE).
func reorderSyllables(in []rune) []rune {
	out := make([]rune, 0, len(in))
	var pending rune

	for i := 0; i < len(in); i++ {
		r := in[i]

		if isPreVowel(r) {
			if pending != 0 {
				// Two pre-vowels in a row: the first has no cluster to
				// attach to, emit it where it stood.
				out = append(out, pending)
			}
			pending = r
			continue
		}

		out = append(out, r)

		if pending == 0 || !isKhmerLetter(r) {
			continue
		}

		// Extend the cluster: subscript pairs and register shifters
		// stay between the base consonant and the vowel.
		for i+1 < len(in) {
			if in[i+1] == coeng && i+2 < len(in) && isKhmerLetter(in[i+2]) {
				out = append(out, in[i+1], in[i+2])
				i += 2
				continue
			}
			if isShifter(in[i+1]) {
				i++
				out = append(out, in[i])
				continue
			}
			break
		}

		// Emit the buffered vowel, composing with a trailing second
		// part when the pair forms a single Unicode vowel.
		if i+1 < len(in) {
			if composed, ok := composeTwoPart(pending, in[i+1]); ok {
				out = append(out, composed)
				pending = 0
				i++
				continue
			}
		}
		out = append(out, pending)
		pending = 0
	}

	if pending != 0 {
		out = append(out, pending)
	}
	return out
}

func composeTwoPart(pre, second rune) (rune, bool) {
	if pre != 'េ' { // only e participates in two-part vowels
		return 0, false
	}
	switch second {
	case 'ា': // aa
		return 'ោ', true // oo
	case 'ី': // ii
		return 'ើ', true // oe
	}
	return 0, false
}

func isPreVowel(r rune) bool {
	return r == 'េ' || r == 'ែ' || r == 'ៃ'
}

func isShifter(r rune) bool {
	return r == '៉' || r == '៊'
}

// isKhmerLetter reports whether r can serve as the base of a syllable
// cluster: a consonant or an independent vowel.
func isKhmerLetter(r rune) bool {
	return (r >= 'ក' && r <= 'អ') || (r >= 'ឥ' && r <= 'ឳ')
}

// ContainsLegacyScript reports whether a value looks Limon-encoded.
// The Profile stage uses this to estimate how much of a column needs
// script conversion.
func ContainsLegacyScript(value string) bool {
	t := LimonTransformer{}
	return t.CanTransform(value) && strings.TrimSpace(value) != ""
}
