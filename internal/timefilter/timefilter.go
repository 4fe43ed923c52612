// Package timefilter validates the time-range values accepted by the
// Splunk ES API and supplies the default query window.
package timefilter

import (
	"regexp"
	"strconv"
	"time"

	"esctl/internal/errors"
)

// Values accepted by the API: relative offsets, epoch seconds, ISO 8601
// timestamps, and the literal "now".
var relativePattern = regexp.MustCompile(`^-\d+[mhdw]$`)

// Window is an earliest/latest pair applied to list queries.
type Window struct {
	Earliest string
	Latest   string
}

// DefaultWindow returns the window applied when the caller supplies
// neither earliest nor latest and is not querying by single identifier:
// the last 24 hours.
func DefaultWindow() Window {
	return Window{Earliest: "-24h", Latest: "now"}
}

// IsZero reports whether neither bound was set.
func (w Window) IsZero() bool {
	return w.Earliest == "" && w.Latest == ""
}

// OrDefault applies the default window when neither bound was supplied.
// A partially specified window is returned unchanged; the store applies
// its own default for the missing side.
func (w Window) OrDefault() Window {
	if w.IsZero() {
		return DefaultWindow()
	}
	return w
}

// Validate checks both bounds of the window.
func (w Window) Validate() error {
	if w.Earliest != "" {
		if err := Validate(w.Earliest); err != nil {
			return err
		}
	}
	if w.Latest != "" {
		if err := Validate(w.Latest); err != nil {
			return err
		}
	}
	return nil
}

// Validate checks a single time filter value against the formats the
// API accepts.
func Validate(value string) error {
	if value == "now" {
		return nil
	}

	if relativePattern.MatchString(value) {
		return nil
	}

	// Absolute epoch seconds
	if _, err := strconv.ParseInt(value, 10, 64); err == nil {
		return nil
	}

	// ISO 8601
	if _, err := time.Parse(time.RFC3339, value); err == nil {
		return nil
	}
	if _, err := time.Parse("2006-01-02", value); err == nil {
		return nil
	}

	return errors.NewInvalidTimeError(value)
}
