package replay

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kaigo-tools/attendrelay/internal/extract"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestSplitShift_SameDay(t *testing.T) {
	subs, err := SplitShift(date(2025, 8, 15), "11:30", "14:30")
	require.NoError(t, err)

	require.Len(t, subs, 1)
	assert.Equal(t, Submission{Date: date(2025, 8, 15), Start: "1130", End: "1430"}, subs[0])
}

func TestSplitShift_Overnight(t *testing.T) {
	subs, err := SplitShift(date(2025, 8, 16), "20:00", "08:00")
	require.NoError(t, err)

	require.Len(t, subs, 2)
	assert.Equal(t, Submission{Date: date(2025, 8, 16), Start: "2000", End: "2400"}, subs[0])
	assert.Equal(t, Submission{Date: date(2025, 8, 17), Start: "0000", End: "0800"}, subs[1])
}

func TestSplitShift_OvernightMonthRollover(t *testing.T) {
	subs, err := SplitShift(date(2025, 8, 31), "22:00", "06:00")
	require.NoError(t, err)

	require.Len(t, subs, 2)
	assert.Equal(t, date(2025, 9, 1), subs[1].Date)
}

func TestSplitShift_OvernightYearRollover(t *testing.T) {
	subs, err := SplitShift(date(2025, 12, 31), "23:00", "01:00")
	require.NoError(t, err)

	require.Len(t, subs, 2)
	assert.Equal(t, date(2026, 1, 1), subs[1].Date)
}

func TestSplitShift_SingleHourDigitIsZeroPadded(t *testing.T) {
	subs, err := SplitShift(date(2025, 8, 15), "7:30", "9:00")
	require.NoError(t, err)

	require.Len(t, subs, 1)
	assert.Equal(t, "0730", subs[0].Start)
	assert.Equal(t, "0900", subs[0].End)
}

func TestSplitShift_EqualTimesAreOneSubmission(t *testing.T) {
	subs, err := SplitShift(date(2025, 8, 15), "10:00", "10:00")
	require.NoError(t, err)
	assert.Len(t, subs, 1)
}

func TestSplitShift_MalformedClock(t *testing.T) {
	_, err := SplitShift(date(2025, 8, 15), "25:99", "09:00")
	assert.Error(t, err)

	_, err = SplitShift(date(2025, 8, 15), "", "09:00")
	assert.Error(t, err)

	// Hour 24 only marks midnight.
	_, err = SplitShift(date(2025, 8, 15), "24:30", "08:00")
	assert.Error(t, err)
}

func TestCategoryFor(t *testing.T) {
	physical, err := CategoryFor(extract.AttendanceRecord{DisabilitySupportHours: 4.5})
	require.NoError(t, err)
	assert.Equal(t, CategoryPhysicalSupport, physical)

	severe, err := CategoryFor(extract.AttendanceRecord{SevereComprehensiveSupport: 2})
	require.NoError(t, err)
	assert.Equal(t, CategorySevereComprehensive, severe)

	visitation, err := CategoryFor(extract.AttendanceRecord{SevereVisitation: 1})
	require.NoError(t, err)
	assert.Equal(t, CategorySevereComprehensive, visitation)

	// Both positive: physical support wins.
	both, err := CategoryFor(extract.AttendanceRecord{DisabilitySupportHours: 3, SevereComprehensiveSupport: 2})
	require.NoError(t, err)
	assert.Equal(t, CategoryPhysicalSupport, both)

	_, err = CategoryFor(extract.AttendanceRecord{})
	assert.Error(t, err, "a record with no positive quantity cannot pick a service category")
}
