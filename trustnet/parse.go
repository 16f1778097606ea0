package trustnet

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/use-agent/fundscrape/models"
)

var perfHeader = regexp.MustCompile(`\b3\s*m\b\s*\b6\s*m\b`)

var firstInt = regexp.MustCompile(`\d+`)

// lines splits text into whitespace-normalized, non-empty lines.
func lines(text string) []string {
	raw := strings.Split(text, "\n")
	out := make([]string, 0, len(raw))
	for _, ln := range raw {
		if ln = strings.Join(strings.Fields(ln), " "); ln != "" {
			out = append(out, ln)
		}
	}
	return out
}

// ExtractPerformance reads the five trailing-return figures from the text
// of a performance table. The header line ("3 m 6 m 1 y 3 y 5 y") is
// located first; the line after it carries the values in the same order.
// Non-numeric tokens on that line are skipped. Without a header every
// field is absent.
func ExtractPerformance(text string) models.Performance {
	var perf models.Performance
	ls := lines(text)
	for i, ln := range ls {
		if !perfHeader.MatchString(ln) {
			continue
		}
		if i+1 >= len(ls) {
			return perf
		}
		var vals []float64
		for _, tok := range strings.Fields(strings.ReplaceAll(ls[i+1], "%", "")) {
			if v, ok := parseFloat(tok); ok {
				vals = append(vals, v)
			}
		}
		slots := []*models.Field[float64]{&perf.M3, &perf.M6, &perf.Y1, &perf.Y3, &perf.Y5}
		for j := 0; j < len(slots) && j < len(vals); j++ {
			*slots[j] = models.Some(vals[j])
		}
		return perf
	}
	return perf
}

// FindQuartile returns the first integer on the line following a
// "Quartile Ranking" label.
func FindQuartile(text string) models.Field[int] {
	ls := lines(text)
	for i, ln := range ls {
		if !strings.Contains(ln, "Quartile Ranking") || i+1 >= len(ls) {
			continue
		}
		if m := firstInt.FindString(ls[i+1]); m != "" {
			if n, err := strconv.Atoi(m); err == nil {
				return models.Some(n)
			}
			return models.None[int]()
		}
	}
	return models.None[int]()
}

// CleanPrice strips the currency artefacts the unit table renders around
// a price ("Â", non-breaking spaces, the pence suffix).
func CleanPrice(tok string) models.Field[string] {
	r := strings.NewReplacer("Â", "", "\u00a0", "", "p", "")
	s := strings.TrimSpace(r.Replace(tok))
	if s == "" {
		return models.None[string]()
	}
	return models.Some(s)
}

// firstPriceToken returns the first whitespace-separated token of the
// unit-info table text that contains a digit.
func firstPriceToken(text string) models.Field[string] {
	for _, tok := range strings.Fields(strings.ReplaceAll(text, "%", "")) {
		if strings.IndexFunc(tok, unicode.IsDigit) >= 0 {
			return CleanPrice(tok)
		}
	}
	return models.None[string]()
}

// ParsePercent parses a table cell such as "12.34%" into a float. Anything
// that is not a finite number is absent.
func ParsePercent(cell string) models.Field[float64] {
	s := strings.TrimSpace(strings.ReplaceAll(cell, "%", ""))
	if v, ok := parseFloat(s); ok {
		return models.Some(v)
	}
	return models.None[float64]()
}

func parseFloat(s string) (float64, bool) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// parseRisk reads the integer risk score from its element text.
func parseRisk(text string) models.Field[int] {
	n, err := strconv.Atoi(strings.TrimSpace(text))
	if err != nil {
		return models.None[int]()
	}
	return models.Some(n)
}
