package format

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// TimeMode selects how event timestamps are displayed.
type TimeMode string

const (
	Relative TimeMode = "relative"
	Absolute TimeMode = "absolute"
)

// ErrBadTimestamp is returned when a record's time cannot be parsed.
var ErrBadTimestamp = errors.New("unparseable timestamp")

const (
	second = 1000.0
	minute = 60 * second
	hour   = 60 * minute
	day    = 24 * hour
	month  = 30 * day
	year   = 365 * day
)

// absoluteLayout is "Mon 5 Jan 14:30": day unpadded, clock zero-padded.
const absoluteLayout = "Mon 2 Jan 15:04"

// Layouts accepted for record timestamps. The webhook intake writes the
// zone-less form, which is read as UTC.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05",
}

// TimeFormatter renders record timestamps in one mode.
type TimeFormatter struct {
	mode     TimeMode
	now      func() time.Time
	location *time.Location
}

// NewTimeFormatter returns a formatter for mode using the wall clock and the
// local zone. now and loc may be nil.
func NewTimeFormatter(mode TimeMode, now func() time.Time, loc *time.Location) (*TimeFormatter, error) {
	switch mode {
	case Relative, Absolute:
	case "":
		mode = Relative
	default:
		return nil, fmt.Errorf("unknown time mode %q", mode)
	}
	if now == nil {
		now = time.Now
	}
	if loc == nil {
		loc = time.Local
	}
	return &TimeFormatter{mode: mode, now: now, location: loc}, nil
}

// Mode returns the formatter's display mode.
func (f *TimeFormatter) Mode() TimeMode {
	return f.mode
}

// Format parses ts and renders it in the formatter's mode.
func (f *TimeFormatter) Format(ts string) (string, error) {
	t, err := ParseTimestamp(ts)
	if err != nil {
		return "", err
	}
	if f.mode == Absolute {
		return FormatAbsolute(t.In(f.location)), nil
	}
	return FormatRelative(f.now(), t), nil
}

// ParseTimestamp reads RFC 3339 or a zone-less ISO timestamp (as UTC).
func ParseTimestamp(ts string) (time.Time, error) {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, ts); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrBadTimestamp, ts)
}

// FormatRelative buckets the time elapsed between then and now.
// Months are 30 days and years 365 days.
func FormatRelative(now, then time.Time) string {
	elapsed := float64(now.Sub(then)) / float64(time.Millisecond)
	switch {
	case elapsed < 1:
		return "Just now"
	case elapsed < minute:
		return ago(elapsed, second, "seconds")
	case elapsed < hour:
		return ago(elapsed, minute, "minutes")
	case elapsed < day:
		return ago(elapsed, hour, "hours")
	case elapsed < month:
		return ago(elapsed, day, "days")
	case elapsed < year:
		return ago(elapsed, month, "months")
	default:
		return ago(elapsed, year, "years")
	}
}

func ago(elapsed, unit float64, name string) string {
	return fmt.Sprintf("%d %s ago", int64(math.Round(elapsed/unit)), name)
}

// FormatAbsolute renders t as "Mon 5 Jan 14:30".
func FormatAbsolute(t time.Time) string {
	return t.Format(absoluteLayout)
}
