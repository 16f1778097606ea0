package sheet

import (
	"strings"
	"unicode"

	"github.com/antzucaro/matchr"
)

// Logical columns read from the tracking sheet.
const (
	ColumnURL     = "url"
	ColumnHold    = "hold"
	ColumnHolding = "holding"
)

// synonyms lists the header spellings accepted for each logical column,
// in priority order.
var synonyms = map[string][]string{
	ColumnURL:     {"url", "fund_url", "link"},
	ColumnHold:    {"hold", "held", "in_portfolio", "own", "have"},
	ColumnHolding: {"holding%", "holding_pct", "holding", "weight", "allocation"},
}

// legacyPositions is the fixed layout of older workbooks: URL in column A,
// hold flag in B, holding percentage in C.
var legacyPositions = map[string]int{
	ColumnURL:     0,
	ColumnHold:    1,
	ColumnHolding: 2,
}

// fuzzyThreshold is the minimum Jaro-Winkler similarity for a header to be
// accepted as a near-spelling of a synonym.
const fuzzyThreshold = 0.92

// Overrides are explicit header names supplied on the command line.
type Overrides struct {
	URL     string
	Hold    string
	Holding string
}

func (o Overrides) get(column string) string {
	switch column {
	case ColumnURL:
		return o.URL
	case ColumnHold:
		return o.Hold
	case ColumnHolding:
		return o.Holding
	}
	return ""
}

// Columns maps each logical column to a header index, -1 when unresolved.
type Columns struct {
	URL     int
	Hold    int
	Holding int

	// Names holds the header text each logical column resolved to.
	Names map[string]string
}

func (c *Columns) set(column string, idx int, name string) {
	switch column {
	case ColumnURL:
		c.URL = idx
	case ColumnHold:
		c.Hold = idx
	case ColumnHolding:
		c.Holding = idx
	}
	if idx >= 0 {
		c.Names[column] = name
	}
}

// normHeader lowercases and drops whitespace and word separators so that
// "Fund URL", "fund_url" and "FundUrl" compare equal.
func normHeader(h string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(h) {
		if unicode.IsSpace(r) || r == '_' || r == '-' {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// ResolveColumns locates the url, hold and holding columns in headers.
//
// Resolution order per column: explicit override, synonym list, fuzzy match
// against the synonyms and, when positional is set, the legacy fixed layout.
// A header is never assigned to two logical columns.
func ResolveColumns(headers []string, overrides Overrides, positional bool) Columns {
	cols := Columns{URL: -1, Hold: -1, Holding: -1, Names: map[string]string{}}

	index := make(map[string]int, len(headers))
	for i, h := range headers {
		key := normHeader(h)
		if key == "" {
			continue
		}
		if _, dup := index[key]; !dup {
			index[key] = i
		}
	}
	taken := make(map[int]bool, 3)

	order := []string{ColumnURL, ColumnHold, ColumnHolding}
	pending := make([]string, 0, len(order))

	for _, column := range order {
		if ov := overrides.get(column); ov != "" {
			if i, ok := index[normHeader(ov)]; ok && !taken[i] {
				cols.set(column, i, headers[i])
				taken[i] = true
			}
			continue
		}
		found := false
		for _, syn := range synonyms[column] {
			if i, ok := index[normHeader(syn)]; ok && !taken[i] {
				cols.set(column, i, headers[i])
				taken[i] = true
				found = true
				break
			}
		}
		if !found {
			pending = append(pending, column)
		}
	}

	var unresolved []string
	for _, column := range pending {
		if i := fuzzyMatch(headers, synonyms[column], taken); i >= 0 {
			cols.set(column, i, headers[i])
			taken[i] = true
			continue
		}
		unresolved = append(unresolved, column)
	}

	if positional {
		for _, column := range unresolved {
			i := legacyPositions[column]
			if i < len(headers) && !taken[i] {
				cols.set(column, i, headers[i])
				taken[i] = true
			}
		}
	}
	return cols
}

// fuzzyMatch returns the index of the header most similar to any synonym,
// or -1 if none reaches fuzzyThreshold.
func fuzzyMatch(headers, syns []string, taken map[int]bool) int {
	best, bestScore := -1, 0.0
	for i, h := range headers {
		if taken[i] {
			continue
		}
		key := normHeader(h)
		if key == "" {
			continue
		}
		for _, syn := range syns {
			score := matchr.JaroWinkler(key, normHeader(syn), false)
			if score > bestScore {
				best, bestScore = i, score
			}
		}
	}
	if bestScore < fuzzyThreshold {
		return -1
	}
	return best
}
