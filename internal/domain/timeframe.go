package domain

import "strings"

// TimeFrame is a truncation unit (or date part) applied to a date/timestamp dimension.
type TimeFrame string

const (
	TimeFrameRaw           TimeFrame = "RAW"
	TimeFrameMinute        TimeFrame = "MINUTE"
	TimeFrameHour          TimeFrame = "HOUR"
	TimeFrameDay           TimeFrame = "DAY"
	TimeFrameWeek          TimeFrame = "WEEK"
	TimeFrameMonth         TimeFrame = "MONTH"
	TimeFrameQuarter       TimeFrame = "QUARTER"
	TimeFrameYear          TimeFrame = "YEAR"
	TimeFrameDayOfWeekName TimeFrame = "DAY_OF_WEEK_NAME"
	TimeFrameMonthName     TimeFrame = "MONTH_NAME"
)

var timeFrameLabels = map[TimeFrame]string{
	TimeFrameRaw:           "Raw",
	TimeFrameMinute:        "Minute",
	TimeFrameHour:          "Hour",
	TimeFrameDay:           "Day",
	TimeFrameWeek:          "Week",
	TimeFrameMonth:         "Month",
	TimeFrameQuarter:       "Quarter",
	TimeFrameYear:          "Year",
	TimeFrameDayOfWeekName: "Day of week name",
	TimeFrameMonthName:     "Month name",
}

// granularity ordering, finest first. Date parts are not truncations and have no rank.
var timeFrameRank = map[TimeFrame]int{
	TimeFrameRaw:     0,
	TimeFrameMinute:  1,
	TimeFrameHour:    2,
	TimeFrameDay:     3,
	TimeFrameWeek:    4,
	TimeFrameMonth:   5,
	TimeFrameQuarter: 6,
	TimeFrameYear:    7,
}

// ParseTimeFrame accepts any casing of a known time frame.
func ParseTimeFrame(s string) (TimeFrame, error) {
	tf := TimeFrame(strings.ToUpper(strings.TrimSpace(s)))
	if _, ok := timeFrameLabels[tf]; !ok {
		return "", ErrValidation("invalid time interval %q", s)
	}
	return tf, nil
}

// Label returns the human readable name of the time frame.
func (t TimeFrame) Label() string { return timeFrameLabels[t] }

// Suffix is the lower-case token appended to generated dimension names.
func (t TimeFrame) Suffix() string { return strings.ToLower(string(t)) }

// IsDatePart reports whether the frame extracts a named part instead of truncating.
func (t TimeFrame) IsDatePart() bool {
	return t == TimeFrameDayOfWeekName || t == TimeFrameMonthName
}

// Rank orders truncating frames from finest to coarsest; date parts return -1.
func (t TimeFrame) Rank() int {
	r, ok := timeFrameRank[t]
	if !ok {
		return -1
	}
	return r
}
