package models

import (
	"time"

	"github.com/google/uuid"
)

// DefaultTimezone is the zone run timestamps are rendered in.
const DefaultTimezone = "Europe/London"

// RunMeta identifies a single pipeline run.
type RunMeta struct {
	RunID     string
	RunDate   string // YYYYMMDD, used in output file names
	Timestamp string // DD/MM/YY HH:MM, stamped on every output row
	Timezone  string
}

// NewRunMeta derives run metadata from now, rendered in DefaultTimezone.
// It falls back to UTC when the zone database is unavailable.
func NewRunMeta(now time.Time) RunMeta {
	tz := DefaultTimezone
	loc, err := time.LoadLocation(tz)
	if err != nil {
		loc, tz = time.UTC, "UTC"
	}
	local := now.In(loc)
	return RunMeta{
		RunID:     "run-" + uuid.NewString(),
		RunDate:   local.Format("20060102"),
		Timestamp: local.Format("02/01/06 15:04"),
		Timezone:  tz,
	}
}
