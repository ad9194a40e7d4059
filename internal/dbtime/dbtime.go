// Package dbtime normalizes the mixed timestamp representations found in the
// rental database. Older rows carry bare "YYYY-MM-DD HH:MM:SS" strings that
// were written as UTC wall-clock readings with the zone dropped; newer rows
// carry RFC3339 values with an explicit Z or offset. Everything funnels
// through Parse so the rest of the system only ever sees absolute instants.
package dbtime

import (
	"database/sql/driver"
	"fmt"
	"math"
	"regexp"
	"strings"
	"time"
)

// DisplayZone is the fixed zone kiosk screens render in.
const DisplayZone = "Asia/Kolkata"

var displayLoc = func() *time.Location {
	loc, err := time.LoadLocation(DisplayZone)
	if err != nil {
		return time.FixedZone("IST", 5*3600+1800)
	}
	return loc
}()

var zoneSuffix = regexp.MustCompile(`(?i)(z|[+-]\d{2}:?\d{2})$`)

// Instant is an absolute point in time scanned from a column that may hold a
// timestamptz, a legacy zone-less text timestamp, or NULL. Invalid or NULL
// values scan as !Valid rather than erroring.
type Instant struct {
	Time  time.Time
	Valid bool
}

// Parse converts a stored timestamp string into an Instant. Values with a
// trailing Z or ±HH:MM offset are parsed as given; anything else is assumed
// to be a UTC wall-clock reading with the zone omitted. Unparseable input
// yields an invalid Instant, never an error.
func Parse(raw string) Instant {
	s := strings.TrimSpace(raw)
	if s == "" {
		return Instant{}
	}

	if !zoneSuffix.MatchString(s) {
		s = strings.Replace(s, " ", "T", 1) + "Z"
	} else {
		s = strings.Replace(s, " ", "T", 1)
	}

	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05Z0700", "2006-01-02T15:04:05-0700"} {
		if t, err := time.Parse(layout, s); err == nil {
			return Instant{Time: t.UTC(), Valid: true}
		}
	}
	return Instant{}
}

// At wraps a known-good time.Time.
func At(t time.Time) Instant {
	return Instant{Time: t.UTC(), Valid: true}
}

// Scan implements sql.Scanner across the representations the driver hands us.
func (i *Instant) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*i = Instant{}
	case time.Time:
		*i = Instant{Time: v.UTC(), Valid: true}
	case string:
		*i = Parse(v)
	case []byte:
		*i = Parse(string(v))
	default:
		return fmt.Errorf("dbtime: cannot scan %T into Instant", src)
	}
	return nil
}

// Value implements driver.Valuer. Invalid instants store as NULL.
func (i Instant) Value() (driver.Value, error) {
	if !i.Valid {
		return nil, nil
	}
	return i.Time.UTC(), nil
}

// MarshalJSON renders valid instants as RFC3339 UTC, invalid as null.
func (i Instant) MarshalJSON() ([]byte, error) {
	if !i.Valid {
		return []byte("null"), nil
	}
	return []byte(`"` + i.Time.UTC().Format(time.RFC3339) + `"`), nil
}

// FormatDisplay renders an instant in the fixed display zone, en-IN style.
func FormatDisplay(t time.Time) string {
	return t.In(displayLoc).Format("02/01/2006, 3:04:05 pm")
}

// Display renders the instant for kiosk screens, or a dash when invalid.
func (i Instant) Display() string {
	if !i.Valid {
		return "—"
	}
	return FormatDisplay(i.Time)
}

// MinutesBetween returns the whole minutes from a to b, rounded to nearest
// and clamped at zero. Used for elapsed-time display and rental durations.
func MinutesBetween(a, b time.Time) int {
	mins := math.Round(float64(b.Sub(a).Milliseconds()) / 60000)
	if mins < 0 {
		return 0
	}
	return int(mins)
}
