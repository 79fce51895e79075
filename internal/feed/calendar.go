package feed

import (
	"fmt"
	"time"
)

// Weekday bits of the operating-days mask, bit 0 = Monday .. bit 6 = Sunday.
const (
	DayMonday    = 1 << 0
	DayTuesday   = 1 << 1
	DayWednesday = 1 << 2
	DayThursday  = 1 << 3
	DayFriday    = 1 << 4
	DaySaturday  = 1 << 5
	DaySunday    = 1 << 6
)

// dayRuleBits maps the feed's day-of-week rule names to mask bits. An
// unknown rule name is a hard error: skipping it would silently produce an
// under-specified calendar.
var dayRuleBits = map[string]uint8{
	"Monday":           DayMonday,
	"Tuesday":          DayTuesday,
	"Wednesday":        DayWednesday,
	"Thursday":         DayThursday,
	"Friday":           DayFriday,
	"Saturday":         DaySaturday,
	"Sunday":           DaySunday,
	"MondayToFriday":   DayMonday | DayTuesday | DayWednesday | DayThursday | DayFriday,
	"MondayToSaturday": DayMonday | DayTuesday | DayWednesday | DayThursday | DayFriday | DaySaturday,
	"MondayToSunday":   DayMonday | DayTuesday | DayWednesday | DayThursday | DayFriday | DaySaturday | DaySunday,
}

// DateRange is an inclusive calendar date range.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// ResolveDaysMask turns day-of-week rule names plus non-operation date
// ranges into a concrete 7-bit mask for the single week starting at
// refMonday. Every document in a batch is projected onto that one week,
// which keeps the whole dataset on one calendar baseline. Exception ranges
// clear the bit of each reference-week day they cover; ranges that miss the
// reference week entirely leave the mask untouched.
//
// refMonday must fall on a Monday; anything else is a caller error.
func ResolveDaysMask(rules []string, nonOperation []DateRange, refMonday time.Time) (uint8, error) {
	if refMonday.Weekday() != time.Monday {
		return 0, fmt.Errorf("reference date %s is a %s, not a Monday",
			refMonday.Format("2006-01-02"), refMonday.Weekday())
	}

	var mask uint8
	for _, rule := range rules {
		bits, ok := dayRuleBits[rule]
		if !ok {
			return 0, fmt.Errorf("unrecognized day-of-week rule %q", rule)
		}
		mask |= bits
	}

	for _, rng := range nonOperation {
		for date := rng.Start; !date.After(rng.End); date = date.AddDate(0, 0, 1) {
			offset := int(date.Sub(refMonday).Hours() / 24)
			if offset >= 0 && offset < 7 {
				mask &^= 1 << offset
			}
		}
	}

	return mask, nil
}
