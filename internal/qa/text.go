// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package qa

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

var (
	wordRe = regexp.MustCompile(`\b[\w'-]+\b`)

	// numberRe matches integers and decimals, with optional thousands
	// separators and a trailing percent sign.
	numberRe = regexp.MustCompile(`\b\d+(?:,\d{3})*(?:\.\d+)?\b%?`)

	// Exempt numeric contexts, removed before numbers are extracted.
	tableFigureRe  = regexp.MustCompile(`(?i)\b(?:supplementary\s+)?(?:table|tab\.|figure|fig\.?|appendix)\s*S?\d+[a-z]?\b`)
	ciLevelRe      = regexp.MustCompile(`(?i)\b\d{2}(?:\.\d+)?\s*%\s*(?:CI|CrI|confidence\s+intervals?)\b`)
	significanceRe = regexp.MustCompile(`(?i)(?:\bp|α)\s*[<≤]\s*0?\.\d+`)
)

// WordCount counts words the way journals usually do: runs of letters,
// digits, apostrophes and hyphens.
func WordCount(text string) int {
	return len(wordRe.FindAllStringIndex(text, -1))
}

// numericToken is one number found in prose.
type numericToken struct {
	raw     string
	value   float64
	percent bool
}

// numericTokens returns the numbers in text outside exempt contexts:
// table and figure labels, confidence-level notation, and significance
// thresholds.
func numericTokens(text string) []numericToken {
	for _, re := range []*regexp.Regexp{tableFigureRe, ciLevelRe, significanceRe} {
		text = re.ReplaceAllString(text, " ")
	}
	var out []numericToken
	for _, raw := range numberRe.FindAllString(text, -1) {
		num := strings.TrimSuffix(raw, "%")
		v, err := strconv.ParseFloat(strings.ReplaceAll(num, ",", ""), 64)
		if err != nil {
			continue
		}
		out = append(out, numericToken{raw: raw, value: v, percent: num != raw})
	}
	return out
}

// matchesAny reports whether the token equals one of the values. A
// percentage also matches its fraction (37.5% against 0.375). Signs are
// ignored since prose usually writes "decreased by 3" for a fact of -3.
func (t numericToken) matchesAny(values []float64) bool {
	for _, v := range values {
		v = math.Abs(v)
		if nearlyEqual(t.value, v) {
			return true
		}
		if t.percent && nearlyEqual(t.value, v*100) {
			return true
		}
	}
	return false
}

func nearlyEqual(a, b float64) bool {
	return math.Abs(a-b) <= 1e-9*math.Max(1, math.Max(math.Abs(a), math.Abs(b)))
}

// sentences splits text after terminal punctuation followed by whitespace.
func sentences(text string) []string {
	var out []string
	start := 0
	for i := 0; i < len(text)-1; i++ {
		switch text[i] {
		case '.', '!', '?':
			if isSpace(text[i+1]) {
				if s := strings.TrimSpace(text[start : i+1]); s != "" {
					out = append(out, s)
				}
				start = i + 1
			}
		}
	}
	if s := strings.TrimSpace(text[start:]); s != "" {
		out = append(out, s)
	}
	return out
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\n' || b == '\t' || b == '\r'
}

// truncate shortens s to n bytes on a rune boundary.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !isRuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}

func isRuneStart(b byte) bool { return b&0xC0 != 0x80 }
