package feed

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := time.Parse("2006-01-02", s)
	require.NoError(t, err)
	return d
}

// 2018-03-12 is the reference Monday used throughout these tests.
func refMonday(t *testing.T) time.Time {
	return date(t, "2018-03-12")
}

func TestResolveDaysMaskNamedRules(t *testing.T) {
	tests := []struct {
		name  string
		rules []string
		want  uint8
	}{
		{"single day", []string{"Sunday"}, 1 << 6},
		{"monday to friday", []string{"MondayToFriday"}, 0x1F},
		{"monday to saturday", []string{"MondayToSaturday"}, 0x3F},
		{"monday to sunday", []string{"MondayToSunday"}, 0x7F},
		{"union of rules", []string{"MondayToFriday", "Saturday"}, 0x3F},
		{"no rules", nil, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mask, err := ResolveDaysMask(tt.rules, nil, refMonday(t))
			require.NoError(t, err)
			assert.Equal(t, tt.want, mask)
		})
	}
}

func TestResolveDaysMaskUnknownRuleIsHardError(t *testing.T) {
	_, err := ResolveDaysMask([]string{"MondayToFriday", "HolidaysOnly"}, nil, refMonday(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HolidaysOnly")
}

func TestResolveDaysMaskRejectsNonMondayReference(t *testing.T) {
	_, err := ResolveDaysMask([]string{"Monday"}, nil, date(t, "2018-03-13"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a Monday")
}

func TestResolveDaysMaskExceptionInAnotherWeekIsIgnored(t *testing.T) {
	// The range covers the Monday of the previous week only.
	exceptions := []DateRange{{Start: date(t, "2018-03-05"), End: date(t, "2018-03-05")}}

	mask, err := ResolveDaysMask([]string{"MondayToFriday"}, exceptions, refMonday(t))
	require.NoError(t, err)
	assert.Equal(t, uint8(0x1F), mask)
}

func TestResolveDaysMaskExceptionClearsCoveredDay(t *testing.T) {
	exceptions := []DateRange{{Start: date(t, "2018-03-12"), End: date(t, "2018-03-12")}}

	mask, err := ResolveDaysMask([]string{"MondayToFriday"}, exceptions, refMonday(t))
	require.NoError(t, err)
	assert.Equal(t, uint8(0x1E), mask, "bit 0 cleared, other set bits untouched")
}

func TestResolveDaysMaskExceptionRangeSpanningWeek(t *testing.T) {
	// Wednesday 2018-03-14 through Friday 2018-03-16.
	exceptions := []DateRange{{Start: date(t, "2018-03-14"), End: date(t, "2018-03-16")}}

	mask, err := ResolveDaysMask([]string{"MondayToSunday"}, exceptions, refMonday(t))
	require.NoError(t, err)
	assert.Equal(t, uint8(0x63), mask)
}

func TestResolveDaysMaskExceptionCoveringWholeWeek(t *testing.T) {
	exceptions := []DateRange{{Start: date(t, "2018-03-01"), End: date(t, "2018-03-31")}}

	mask, err := ResolveDaysMask([]string{"MondayToSunday"}, exceptions, refMonday(t))
	require.NoError(t, err)
	assert.Equal(t, uint8(0), mask)
}

func TestResolveDaysMaskExceptionOnUnsetDayIsNoOp(t *testing.T) {
	// Saturday 2018-03-17 is not in the MondayToFriday mask anyway.
	exceptions := []DateRange{{Start: date(t, "2018-03-17"), End: date(t, "2018-03-17")}}

	mask, err := ResolveDaysMask([]string{"MondayToFriday"}, exceptions, refMonday(t))
	require.NoError(t, err)
	assert.Equal(t, uint8(0x1F), mask)
}
