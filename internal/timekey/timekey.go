// Package timekey rewrites a common-log-format timestamp field into ISO8601
// for use as an aggregation time-key.
package timekey

import (
	"fmt"
	"strconv"
	"strings"
)

// months is a fixed lookup table rather than a locale-sensitive layout
// parse, since the three-letter abbreviations are a fixed wire format.
var months = map[string]string{
	"Jan": "01", "Feb": "02", "Mar": "03", "Apr": "04",
	"May": "05", "Jun": "06", "Jul": "07", "Aug": "08",
	"Sep": "09", "Oct": "10", "Nov": "11", "Dec": "12",
}

// Normalize rewrites a common-log timestamp "DD/MmmAlpha/YYYY:HH:MM:SS"
// into "YYYY-MM-DDTHH:MM:SS". It returns an error for any malformed input;
// callers must drop the whole line on error.
//
// For example, "28/Feb/2015:12:30:23" -> "2015-02-28T12:30:23".
func Normalize(raw string) (string, error) {
	// DD/Mmm/YYYY:HH:MM:SS
	slash1 := strings.IndexByte(raw, '/')
	if slash1 < 0 {
		return "", fmt.Errorf("timekey: missing day separator in %q", raw)
	}
	day := raw[:slash1]
	rest := raw[slash1+1:]

	slash2 := strings.IndexByte(rest, '/')
	if slash2 < 0 {
		return "", fmt.Errorf("timekey: missing month separator in %q", raw)
	}
	mon := rest[:slash2]
	rest = rest[slash2+1:]

	colon := strings.IndexByte(rest, ':')
	if colon < 0 {
		return "", fmt.Errorf("timekey: missing year separator in %q", raw)
	}
	year := rest[:colon]
	clock := rest[colon+1:]

	if len(day) != 2 {
		return "", fmt.Errorf("timekey: malformed day in %q", raw)
	}
	if _, err := strconv.Atoi(day); err != nil {
		return "", fmt.Errorf("timekey: malformed day in %q: %w", raw, err)
	}
	monthNum, ok := months[mon]
	if !ok {
		return "", fmt.Errorf("timekey: unknown month %q in %q", mon, raw)
	}
	if len(year) != 4 {
		return "", fmt.Errorf("timekey: malformed year in %q", raw)
	}
	if _, err := strconv.Atoi(year); err != nil {
		return "", fmt.Errorf("timekey: malformed year in %q: %w", raw, err)
	}

	clockParts := strings.Split(clock, ":")
	if len(clockParts) != 3 {
		return "", fmt.Errorf("timekey: malformed time-of-day in %q", raw)
	}
	for _, p := range clockParts {
		if len(p) != 2 {
			return "", fmt.Errorf("timekey: malformed time-of-day in %q", raw)
		}
		if _, err := strconv.Atoi(p); err != nil {
			return "", fmt.Errorf("timekey: malformed time-of-day in %q: %w", raw, err)
		}
	}

	return fmt.Sprintf("%s-%s-%sT%s", year, monthNum, day, clock), nil
}
