package replay

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/kaigo-tools/attendrelay/internal/extract"
)

// ServiceCategory selects which remote service menu a submission is filed
// under.
type ServiceCategory int

const (
	CategoryUnknown ServiceCategory = iota
	// CategoryPhysicalSupport is 障害者総合支援/身体.
	CategoryPhysicalSupport
	// CategorySevereComprehensive is 重度包括 / 重度訪問.
	CategorySevereComprehensive
)

func (c ServiceCategory) String() string {
	switch c {
	case CategoryPhysicalSupport:
		return "physical_support"
	case CategorySevereComprehensive:
		return "severe_comprehensive"
	default:
		return "unknown"
	}
}

// CategoryFor picks the service category from a record's support
// quantities. Exactly one quantity group is expected to be positive; when
// both are, the physical-support category wins.
func CategoryFor(rec extract.AttendanceRecord) (ServiceCategory, error) {
	switch {
	case rec.DisabilitySupportHours > 0:
		return CategoryPhysicalSupport, nil
	case rec.SevereComprehensiveSupport > 0 || rec.SevereVisitation > 0:
		return CategorySevereComprehensive, nil
	default:
		return CategoryUnknown, fmt.Errorf("no positive support quantity on record")
	}
}

// Submission is one form submission in the remote system: a calendar day
// plus a start/end pair in compact HHMM form.
type Submission struct {
	Date  time.Time
	Start string // "HHMM"
	End   string // "HHMM"
}

// SplitShift turns a record's time range into one or two submissions. A
// range whose end clock value precedes its start crosses midnight and is
// split at the day boundary: (day, start, "2400") and (day+1, "0000",
// end). Month and year rollover on day+1 is handled by AddDate.
func SplitShift(date time.Time, start, end string) ([]Submission, error) {
	s, err := compactClock(start)
	if err != nil {
		return nil, err
	}
	e, err := compactClock(end)
	if err != nil {
		return nil, err
	}

	if s > e {
		return []Submission{
			{Date: date, Start: s, End: "2400"},
			{Date: date.AddDate(0, 0, 1), Start: "0000", End: e},
		}, nil
	}

	return []Submission{{Date: date, Start: s, End: e}}, nil
}

// compactClock normalizes "H:MM" / "HH:MM" to a zero-padded 4-digit
// 24-hour string suitable for lexicographic comparison.
func compactClock(clock string) (string, error) {
	parts := strings.SplitN(strings.TrimSpace(clock), ":", 2)
	if len(parts) != 2 {
		return "", fmt.Errorf("malformed clock value %q", clock)
	}

	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour > 24 {
		return "", fmt.Errorf("malformed clock value %q", clock)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute > 59 || (hour == 24 && minute > 0) {
		return "", fmt.Errorf("malformed clock value %q", clock)
	}

	return fmt.Sprintf("%02d%02d", hour, minute), nil
}
