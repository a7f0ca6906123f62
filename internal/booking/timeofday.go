package booking

import (
	"fmt"
	"time"
)

// TimeOfDay is a minute-of-day value (0..1439). Slot identity is minute
// granular; persisted times may carry a seconds component that is dropped
// on parse.
type TimeOfDay int

const minutesPerDay = 24 * 60

// ParseTimeOfDay accepts HH:MM or HH:MM:SS. Every position must be the
// expected digit or separator; a mistyped time is rejected, never coerced
// onto a nearby slot.
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	switch len(s) {
	case 5:
	case 8:
		if s[5] != ':' || !twoDigits(s[6:8]) || int(s[6]-'0')*10+int(s[7]-'0') > 59 {
			return 0, fmt.Errorf("invalid time %q", s)
		}
	default:
		return 0, fmt.Errorf("invalid time %q", s)
	}
	if s[2] != ':' || !twoDigits(s[0:2]) || !twoDigits(s[3:5]) {
		return 0, fmt.Errorf("invalid time %q", s)
	}

	h := int(s[0]-'0')*10 + int(s[1]-'0')
	m := int(s[3]-'0')*10 + int(s[4]-'0')
	if h > 23 || m > 59 {
		return 0, fmt.Errorf("invalid time %q", s)
	}
	return TimeOfDay(h*60 + m), nil
}

func twoDigits(s string) bool {
	return s[0] >= '0' && s[0] <= '9' && s[1] >= '0' && s[1] <= '9'
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", int(t)/60, int(t)%60)
}

func (t TimeOfDay) Valid() bool {
	return t >= 0 && t < minutesPerDay
}

// ParseDate parses a YYYY-MM-DD string as a UTC civil date. The same
// convention decides which weekday's rule applies and whether the date is
// "today", so slot resolution cannot disagree with itself across timezones.
func ParseDate(s string) (time.Time, error) {
	d, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q", s)
	}
	return d, nil
}

// DateString formats a moment as its UTC civil date.
func DateString(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}
