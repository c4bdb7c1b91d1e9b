package xmlrpc

import (
	"regexp"
	"strings"
	"time"
)

// accepts basic and extended date and time parts with an optional time zone
// (Z, +hh, +hhmm, +hh:mm)
var dateTimePattern = regexp.MustCompile(
	`^(?:(\d{4})-(\d{2})-(\d{2})|(\d{4})(\d{2})(\d{2}))` +
		`T(?:(\d{2}):(\d{2}):(\d{2})|(\d{2})(\d{2})(\d{2}))` +
		`(Z|[+-]\d{2}(?::?\d{2})?)?$`)

// the only form defined by the XML-RPC standard
var strictDateTimePattern = regexp.MustCompile(`^\d{8}T\d{2}:\d{2}:\d{2}$`)

const (
	dateTimeLayout = "20060102T15:04:05"
	basicLayout    = "20060102T150405"
)

// date-times that some servers send for "no date"
var zeroDateTimes = map[string]bool{
	"00000000T00:00:00":    true,
	"0000-00-00T00:00:00Z": true,
	"00000000T00:00:00Z":   true,
	"0000-00-00T00:00:00":  true,
}

// ParseDateTime parses an ISO 8601 date-time in the forms found in XML-RPC
// documents. If a time zone is specified, the result is converted to UTC.
// Otherwise the clock fields are taken as is (in UTC location).
func ParseDateTime(s string) (time.Time, bool) {
	m := dateTimePattern.FindStringSubmatch(s)
	if m == nil {
		return time.Time{}, false
	}
	// pick the alternatives that matched
	pick := func(a, b int) string {
		if m[a] != "" {
			return m[a]
		}
		return m[b]
	}
	var sb strings.Builder
	for _, p := range [][2]int{{1, 4}, {2, 5}, {3, 6}} {
		sb.WriteString(pick(p[0], p[1]))
	}
	sb.WriteByte('T')
	for _, p := range [][2]int{{7, 10}, {8, 11}, {9, 12}} {
		sb.WriteString(pick(p[0], p[1]))
	}
	tz := m[13]
	layout := basicLayout
	switch {
	case tz == "":
	case tz == "Z":
		layout += "Z"
		sb.WriteByte('Z')
	default:
		// normalize to +hhmm
		tz = strings.Replace(tz, ":", "", 1)
		if len(tz) == 3 {
			tz += "00"
		}
		layout += "-0700"
		sb.WriteString(tz)
	}
	t, err := time.Parse(layout, sb.String())
	if err != nil {
		return time.Time{}, false
	}
	return t.UTC(), true
}

// FormatDateTime formats a date-time for an XML-RPC document. The clock fields
// are written as is, no time zone is emitted.
func FormatDateTime(t time.Time) string {
	return t.Format(dateTimeLayout)
}
