// Package score implements the deterministic scoring rules for objective
// question types. All comparisons run on normalized text so that full-width
// letters, stray whitespace and common true/false synonyms from scanned
// handwriting do not count against the student.
package score

import (
	"math"
	"sort"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/width"
)

// Policy selects how multiple-choice answers are credited.
type Policy string

const (
	// PolicyAllOrNothing awards full points only for an exact set match.
	PolicyAllOrNothing Policy = "all_or_nothing"
	// PolicyPartialMissingNoWrong awards proportional credit for a subset
	// of the correct letters; any wrong letter still zeroes the question.
	PolicyPartialMissingNoWrong Policy = "partial_missing_no_wrong"
)

// Valid reports whether p is a known policy.
func (p Policy) Valid() bool {
	return p == PolicyAllOrNothing || p == PolicyPartialMissingNoWrong
}

// Rules carries the per-run scoring configuration.
type Rules struct {
	Policy      Policy
	Tolerance   float64           // numeric tolerance for fill-in-blank; 0 disables
	IgnoreUnits bool              // compare fill-in-blank numerically, ignoring trailing units
	Synonyms    map[string]string // fill-in-blank answer rewrites, applied to both sides
}

// DefaultRules returns the default scoring configuration.
func DefaultRules() Rules {
	return Rules{Policy: PolicyAllOrNothing}
}

// ParseSynonyms parses line-based "from=to" rules. Blank lines and lines
// without '=' are ignored; later rules win on duplicate keys.
func ParseSynonyms(text string) map[string]string {
	out := make(map[string]string)
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || !strings.Contains(line, "=") {
			continue
		}
		from, to, _ := strings.Cut(line, "=")
		from = NormalizeText(from)
		if from == "" {
			continue
		}
		out[from] = NormalizeText(to)
	}
	return out
}

// foldWidth maps full-width characters (common on answer sheets filled in
// with CJK input methods) to their ASCII forms.
func foldWidth(s string) string { return width.Fold.String(s) }

// NormalizeLetters reduces a choice answer to its uppercase letters only.
func NormalizeLetters(s string) string {
	var b strings.Builder
	for _, r := range foldWidth(s) {
		r = unicode.ToUpper(r)
		if r >= 'A' && r <= 'Z' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// NormalizeText folds width, lowercases nothing, and collapses whitespace
// and trailing/leading punctuation for exact-string comparison. Sign
// characters are kept: '-' is punctuation to unicode, and trimming it would
// turn "-5" into "5" before the numeric comparisons run.
func NormalizeText(s string) string {
	s = foldWidth(s)
	fields := strings.FieldsFunc(s, unicode.IsSpace)
	s = strings.Join(fields, " ")
	return strings.TrimFunc(s, func(r rune) bool {
		if r == '-' || r == '+' {
			return false
		}
		return unicode.IsPunct(r) || unicode.IsSpace(r)
	})
}

// trueFalseSynonyms maps the marks students actually write to T/F.
var trueFalseSynonyms = map[string]string{
	"√": "T", "✓": "T", "对": "T", "正确": "T", "T": "T", "TRUE": "T", "是": "T",
	"×": "F", "✗": "F", "X": "F", "错": "F", "错误": "F", "F": "F", "FALSE": "F", "否": "F",
}

// NormalizeTrueFalse maps an answer to "T", "F", or "" when unrecognizable.
func NormalizeTrueFalse(s string) string {
	s = strings.ToUpper(NormalizeText(s))
	if v, ok := trueFalseSynonyms[s]; ok {
		return v
	}
	return ""
}

// SingleChoice scores an exact single-letter match.
func SingleChoice(expected, got string, maxPoints float64) float64 {
	e := NormalizeLetters(expected)
	g := NormalizeLetters(got)
	if e != "" && e == g {
		return maxPoints
	}
	return 0
}

// MultipleChoice scores a letter-set answer under the given policy.
// Over-selection (any letter outside the expected set) always zeroes the
// question; proportional credit rounds to the nearest whole point.
func MultipleChoice(expected, got string, maxPoints float64, policy Policy) float64 {
	e := letterSet(expected)
	g := letterSet(got)
	if len(e) == 0 || len(g) == 0 {
		return 0
	}
	hits := 0
	for l := range g {
		if _, ok := e[l]; !ok {
			return 0
		}
		hits++
	}
	if hits == len(e) {
		return maxPoints
	}
	if policy == PolicyPartialMissingNoWrong {
		return math.Round(maxPoints * float64(hits) / float64(len(e)))
	}
	return 0
}

func letterSet(s string) map[rune]struct{} {
	set := make(map[rune]struct{})
	for _, r := range NormalizeLetters(s) {
		set[r] = struct{}{}
	}
	return set
}

// SortedLetters returns the normalized, deduplicated, sorted letters of a
// choice answer, for display and logging.
func SortedLetters(s string) string {
	set := letterSet(s)
	letters := make([]rune, 0, len(set))
	for r := range set {
		letters = append(letters, r)
	}
	sort.Slice(letters, func(i, j int) bool { return letters[i] < letters[j] })
	return string(letters)
}

// TrueFalse scores a true/false answer after synonym normalization.
func TrueFalse(expected, got string, maxPoints float64) float64 {
	e := NormalizeTrueFalse(expected)
	g := NormalizeTrueFalse(got)
	if e != "" && e == g {
		return maxPoints
	}
	return 0
}

// FillInBlank scores a fill-in-blank answer: synonym rewrite on both sides,
// then numeric-with-tolerance, then numeric-ignoring-units, then exact
// normalized text, in that order of preference.
func FillInBlank(expected, got string, maxPoints float64, r Rules) float64 {
	e := applySynonyms(NormalizeText(expected), r.Synonyms)
	g := applySynonyms(NormalizeText(got), r.Synonyms)
	if e == "" {
		return 0
	}

	if r.Tolerance > 0 {
		if ev, eok := parseNumber(e); eok {
			if gv, gok := parseNumber(g); gok {
				if math.Abs(ev-gv) <= r.Tolerance {
					return maxPoints
				}
				return 0
			}
		}
	}
	if r.IgnoreUnits {
		if ev, eok := leadingNumber(e); eok {
			if gv, gok := leadingNumber(g); gok {
				if ev == gv {
					return maxPoints
				}
				return 0
			}
		}
	}
	if e == g {
		return maxPoints
	}
	return 0
}

func applySynonyms(s string, synonyms map[string]string) string {
	if to, ok := synonyms[s]; ok {
		return to
	}
	return s
}

// parseNumber parses the whole string as a float.
func parseNumber(s string) (float64, bool) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// leadingNumber parses the leading numeric token, dropping a trailing unit
// such as "cm" or "kg".
func leadingNumber(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	end := 0
	for i, r := range s {
		if (r >= '0' && r <= '9') || r == '.' || r == '-' || r == '+' {
			end = i + len(string(r))
			continue
		}
		break
	}
	if end == 0 {
		return 0, false
	}
	return parseNumber(s[:end])
}
