package sheet

import (
	"strconv"
	"strings"

	"github.com/use-agent/fundscrape/models"
)

var (
	truthy = map[string]struct{}{"hold": {}, "yes": {}, "y": {}, "true": {}, "1": {}, "t": {}}
	falsy  = map[string]struct{}{"no": {}, "n": {}, "false": {}, "0": {}, "f": {}, "": {}}
)

// ToBool parses a hold cell. Unknown values are false.
func ToBool(v string) bool {
	s := strings.ToLower(strings.TrimSpace(v))
	if _, ok := truthy[s]; ok {
		return true
	}
	if _, ok := falsy[s]; ok {
		return false
	}
	return false
}

// ToPct parses a holding cell as a bare float. A trailing "%" is dropped but
// the number is not rescaled.
func ToPct(v string) models.Field[float64] {
	s := strings.TrimSpace(strings.ReplaceAll(v, "%", ""))
	if s == "" {
		return models.None[float64]()
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return models.None[float64]()
	}
	return models.Some(f)
}
