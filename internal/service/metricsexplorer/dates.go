package metricsexplorer

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/yu-iskw/lightdash/internal/domain"
)

const dateLayout = "2006-01-02"

// DateRange is an inclusive [start, end] range of calendar dates.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// Days returns the number of calendar days covered, inclusive.
func (r DateRange) Days() int {
	return int(truncateDay(r.End).Sub(truncateDay(r.Start)).Hours()/24) + 1
}

var rangeLayouts = []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05", "2006-01-02 15:04:05", dateLayout}

// ParseDateRange parses the start and end strings of a request.
func ParseDateRange(start, end string) (DateRange, error) {
	s, err := parseDate(start)
	if err != nil {
		return DateRange{}, domain.ErrValidation("invalid start date %q", start)
	}
	e, err := parseDate(end)
	if err != nil {
		return DateRange{}, domain.ErrValidation("invalid end date %q", end)
	}
	if e.Before(s) {
		return DateRange{}, domain.ErrValidation("end date %s is before start date %s", end, start)
	}
	return DateRange{Start: s, End: e}, nil
}

// parseDate keeps the wall clock of the input, so an offset never moves the
// calendar date.
func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	var lastErr error
	for _, layout := range rangeLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.UTC), nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}

// grainThresholds maps the widest span (in days) each grain is used for.
var grainThresholds = []struct {
	maxDays int
	grain   domain.TimeFrame
}{
	{31, domain.TimeFrameDay},
	{183, domain.TimeFrameWeek},
	{730, domain.TimeFrameMonth},
	{1825, domain.TimeFrameQuarter},
}

// GrainForDateRange picks a truncation grain for a range. Wider ranges never get a finer grain.
func GrainForDateRange(r DateRange) domain.TimeFrame {
	days := r.Days()
	for _, t := range grainThresholds {
		if days <= t.maxDays {
			return t.grain
		}
	}
	return domain.TimeFrameYear
}

// ShiftDate moves t by n units of frame. Month, quarter and year shifts clamp to the
// last day of the target month, so Mar 31 minus one month is Feb 28 (or 29).
func ShiftDate(t time.Time, frame domain.TimeFrame, n int) time.Time {
	switch frame {
	case domain.TimeFrameMinute:
		return t.Add(time.Duration(n) * time.Minute)
	case domain.TimeFrameHour:
		return t.Add(time.Duration(n) * time.Hour)
	case domain.TimeFrameWeek:
		return t.AddDate(0, 0, 7*n)
	case domain.TimeFrameMonth:
		return addMonthsClamped(t, n)
	case domain.TimeFrameQuarter:
		return addMonthsClamped(t, 3*n)
	case domain.TimeFrameYear:
		return addMonthsClamped(t, 12*n)
	}
	return t.AddDate(0, 0, n)
}

func addMonthsClamped(t time.Time, months int) time.Time {
	y, m, d := t.Date()
	first := time.Date(y, m+time.Month(months), 1, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
	if last := daysIn(first); d > last {
		d = last
	}
	return time.Date(first.Year(), first.Month(), d, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

func daysIn(t time.Time) int {
	return time.Date(t.Year(), t.Month()+1, 0, 0, 0, 0, 0, t.Location()).Day()
}

// ShiftRange shifts both ends of r by n units of frame.
func ShiftRange(r DateRange, frame domain.TimeFrame, n int) DateRange {
	return DateRange{Start: ShiftDate(r.Start, frame, n), End: ShiftDate(r.End, frame, n)}
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// DefaultRangeForTotal returns the calendar unit of frame containing now, e.g. the
// current month for MONTH. Weeks start on Monday.
func DefaultRangeForTotal(frame domain.TimeFrame, now time.Time) (DateRange, error) {
	today := truncateDay(now)
	var start time.Time
	switch frame {
	case domain.TimeFrameDay:
		start = today
	case domain.TimeFrameWeek:
		offset := (int(today.Weekday()) + 6) % 7
		start = today.AddDate(0, 0, -offset)
	case domain.TimeFrameMonth:
		start = time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, today.Location())
	case domain.TimeFrameQuarter:
		q := (int(today.Month()) - 1) / 3
		start = time.Date(today.Year(), time.Month(q*3+1), 1, 0, 0, 0, 0, today.Location())
	case domain.TimeFrameYear:
		start = time.Date(today.Year(), time.January, 1, 0, 0, 0, 0, today.Location())
	default:
		return DateRange{}, domain.ErrValidation("time frame %q is not supported for metric totals", frame)
	}
	end := ShiftDate(start, frame, 1).AddDate(0, 0, -1)
	return DateRange{Start: start, End: end}, nil
}

// DateRangeFilters builds the filter group restricting the time dimension at interval to r.
func DateRangeFilters(td domain.TimeDimensionConfig, interval domain.TimeFrame, r DateRange) *domain.FilterGroup {
	fieldID := domain.GetItemID(td.Table, domain.TimeIntervalDimensionName(td.Field, interval))
	return &domain.FilterGroup{
		ID: uuid.NewString(),
		And: []domain.FilterGroupItem{{
			Rule: &domain.FilterRule{
				ID:       uuid.NewString(),
				Target:   domain.FieldTarget{FieldID: fieldID},
				Operator: domain.FilterOperatorInBetween,
				Values:   []any{r.Start.Format(dateLayout), r.End.Format(dateLayout)},
			},
		}},
	}
}
