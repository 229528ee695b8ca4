package importer

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"time"

	"github.com/tallyhq/tally/internal/grid"
)

var serialText = regexp.MustCompile(`^\d+(\.\d+)?$`)

const (
	// unixEpochSerial is 1970-01-01 in the 1900 spreadsheet date system,
	// where serial 1 is 1900-01-01 and the phantom 1900-02-29 makes day 0
	// effectively 1899-12-30.
	unixEpochSerial = 25569
	// maxSerial is 9999-12-31.
	maxSerial = 2958465
)

// SerialDate converts a spreadsheet date serial to the calendar date it
// shows, at midnight in loc. The fractional (time-of-day) part is dropped.
// The calendar date is taken in UTC before moving to loc so that zones west
// of Greenwich do not shift it back a day.
func SerialDate(serial float64, loc *time.Location) (time.Time, error) {
	if math.IsNaN(serial) || serial < 1 || serial > maxSerial {
		return time.Time{}, fmt.Errorf("date serial %v out of range", serial)
	}
	days := int(math.Floor(serial)) - unixEpochSerial
	d := time.Unix(0, 0).UTC().AddDate(0, 0, days)
	return time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, loc), nil
}

// cellSerial reads a date serial from a number cell, or from the plain
// digits a CSV export writes in its place.
func cellSerial(c grid.Cell) (float64, bool) {
	if f, ok := c.Float(); ok {
		return f, true
	}
	s := c.Trimmed()
	if !serialText.MatchString(s) {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	return f, err == nil
}
