package controller

import (
	"errors"
	"strconv"
	"strings"
	"time"
)

// ParseTimeZone parses a configured time zone into a time.Location. It first
// tries to load the location directly, and if that doesn't work, it tries
// parsing it as a UTC offset. An empty string is UTC.
func ParseTimeZone(tz string) (*time.Location, error) {
	tz = strings.TrimSpace(tz)
	if tz == "" {
		return time.UTC, nil
	}
	// First try loading it as a location.
	if loc, err := time.LoadLocation(tz); err == nil {
		return loc, nil
	}
	// Then try parsing it as a UTC offset in the format "UTC-6" or "UTC+9"
	if len(tz) < 4 || tz[:3] != "UTC" {
		return nil, errors.New("unexpected timezone format")
	}

	hours, err := strconv.Atoi(tz[3:])
	if err != nil {
		return nil, err
	}
	if hours < -12 || hours > 14 {
		return nil, errors.New("timezone offset out of range")
	}

	seconds := hours * 60 * 60
	return time.FixedZone(tz, seconds), nil
}
