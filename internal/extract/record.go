package extract

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// AttendanceRecord is one shift to be entered into the remote scheduling
// system. Produced from one image, consumed exactly once by the replay
// engine.
type AttendanceRecord struct {
	PersonName   string
	ServiceDate  time.Time
	Start        string // "HH:MM"
	End          string // "HH:MM"
	FacilityName string

	DisabilitySupportHours     float64
	SevereComprehensiveSupport float64
	SevereVisitation           float64
	Housework                  float64
}

// Validate checks the fields the replay engine cannot proceed without.
// Records failing validation are skipped with a warning, never fatal.
func (r AttendanceRecord) Validate() error {
	if strings.TrimSpace(r.PersonName) == "" {
		return fmt.Errorf("missing person name")
	}
	if r.ServiceDate.IsZero() {
		return fmt.Errorf("missing or unparseable service date")
	}
	if !clockRe.MatchString(r.Start) || !clockRe.MatchString(r.End) {
		return fmt.Errorf("missing or malformed time range %q~%q", r.Start, r.End)
	}
	return nil
}

// rawRecord mirrors one object of the extraction model's JSON response.
// Unresolved fields arrive as null; numeric fields may arrive as numbers,
// numeric strings, or null.
type rawRecord struct {
	Name                       string    `json:"name"`
	Date                       string    `json:"date"`
	Time                       string    `json:"time"`
	FacilityName               string    `json:"facility_name"`
	DisabilitySupportHours     flexFloat `json:"disability_support_hours"`
	SevereComprehensiveSupport flexFloat `json:"severe_comprehensive_support"`
	SevereVisitation           flexFloat `json:"severe_visitation"`
	Housework                  flexFloat `json:"housework"`
}

// toRecord converts a raw extraction result, tolerating unparseable date
// and time values (left zero, caught later by Validate).
func (raw rawRecord) toRecord() AttendanceRecord {
	rec := AttendanceRecord{
		PersonName:                 strings.TrimSpace(raw.Name),
		FacilityName:               strings.TrimSpace(raw.FacilityName),
		DisabilitySupportHours:     clampNonNegative(float64(raw.DisabilitySupportHours)),
		SevereComprehensiveSupport: clampNonNegative(float64(raw.SevereComprehensiveSupport)),
		SevereVisitation:           clampNonNegative(float64(raw.SevereVisitation)),
		Housework:                  clampNonNegative(float64(raw.Housework)),
	}

	if d, err := parseJapaneseDate(raw.Date); err == nil {
		rec.ServiceDate = d
	}
	if start, end, err := parseTimeRange(raw.Time); err == nil {
		rec.Start = start
		rec.End = end
	}

	return rec
}

func clampNonNegative(v float64) float64 {
	if v < 0 {
		return 0
	}
	return v
}

// flexFloat decodes a number, a numeric string, or null. Anything that
// cannot be determined is recorded as zero to keep downstream arithmetic
// total.
type flexFloat float64

func (f *flexFloat) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if s == "null" || s == `""` {
		*f = 0
		return nil
	}

	var n float64
	if err := json.Unmarshal(data, &n); err == nil {
		*f = flexFloat(n)
		return nil
	}

	var str string
	if err := json.Unmarshal(data, &str); err == nil {
		if n, err := strconv.ParseFloat(strings.TrimSpace(str), 64); err == nil {
			*f = flexFloat(n)
			return nil
		}
	}

	*f = 0
	return nil
}

var (
	// "2025 年 8 月 15 日(金)" with arbitrary spacing; weekday suffix ignored.
	japaneseDateRe = regexp.MustCompile(`(\d{4})\s*年\s*(\d{1,2})\s*月\s*(\d{1,2})\s*日`)
	// "2025-08-15" or "2025/8/15" fallbacks.
	numericDateRe = regexp.MustCompile(`^(\d{4})[-/](\d{1,2})[-/](\d{1,2})$`)

	clockRe = regexp.MustCompile(`^(\d{1,2}):(\d{2})$`)
)

// parseJapaneseDate parses the date formats the extraction model emits.
func parseJapaneseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)

	m := japaneseDateRe.FindStringSubmatch(s)
	if m == nil {
		m = numericDateRe.FindStringSubmatch(s)
	}
	if m == nil {
		return time.Time{}, fmt.Errorf("unrecognized date %q", s)
	}

	year, _ := strconv.Atoi(m[1])
	month, _ := strconv.Atoi(m[2])
	day, _ := strconv.Atoi(m[3])

	if month < 1 || month > 12 || day < 1 || day > 31 {
		return time.Time{}, fmt.Errorf("date out of range %q", s)
	}

	return time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC), nil
}

// parseTimeRange splits "11:30~14:30" (ASCII tilde, full-width tilde, or
// wave dash) into a normalized zero-padded start/end pair. The end clock
// value may be earlier than the start for overnight shifts.
func parseTimeRange(s string) (string, string, error) {
	s = strings.TrimSpace(s)
	for _, sep := range []string{"~", "～", "〜", "-"} {
		if strings.Contains(s, sep) {
			parts := strings.SplitN(s, sep, 2)
			start, err := normalizeClock(parts[0])
			if err != nil {
				return "", "", err
			}
			end, err := normalizeClock(parts[1])
			if err != nil {
				return "", "", err
			}
			return start, end, nil
		}
	}
	return "", "", fmt.Errorf("unrecognized time range %q", s)
}

func normalizeClock(s string) (string, error) {
	m := clockRe.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return "", fmt.Errorf("unrecognized clock value %q", s)
	}

	hour, _ := strconv.Atoi(m[1])
	minute, _ := strconv.Atoi(m[2])
	if hour > 24 || minute > 59 || (hour == 24 && minute > 0) {
		return "", fmt.Errorf("clock value out of range %q", s)
	}

	return fmt.Sprintf("%02d:%02d", hour, minute), nil
}
