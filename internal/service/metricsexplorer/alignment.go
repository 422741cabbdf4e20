package metricsexplorer

import (
	"fmt"
	"math/big"
	"sort"
	"strconv"
	"time"

	"github.com/yu-iskw/lightdash/internal/domain"
)

// seriesPoint is one row of a single-metric time series.
type seriesPoint struct {
	date    time.Time
	value   any
	segment *string
}

// readSeries extracts (date, value, segment) triples from result rows. Rows whose date
// is null are skipped.
func readSeries(rows []domain.ResultRow, dateFieldID, metricFieldID, segmentFieldID string) ([]seriesPoint, error) {
	out := make([]seriesPoint, 0, len(rows))
	for _, row := range rows {
		cell, ok := row[dateFieldID]
		if !ok || cell.Value.Raw == nil {
			continue
		}
		date, err := toTime(cell.Value.Raw)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", dateFieldID, err)
		}
		p := seriesPoint{date: date, value: parseMetricValue(row[metricFieldID].Value.Raw)}
		if segmentFieldID != "" {
			if seg, ok := row[segmentFieldID]; ok && seg.Value.Raw != nil {
				s := fmt.Sprint(seg.Value.Raw)
				p.segment = &s
			}
		}
		out = append(out, p)
	}
	return out, nil
}

func toTime(raw any) (time.Time, error) {
	switch v := raw.(type) {
	case time.Time:
		return v.UTC(), nil
	case string:
		return parseDate(v)
	case int64:
		return time.UnixMilli(v).UTC(), nil
	case float64:
		return time.UnixMilli(int64(v)).UTC(), nil
	}
	return time.Time{}, fmt.Errorf("unsupported date value %T", raw)
}

type float64er interface {
	Float64() float64
}

// parseMetricValue normalizes numeric warehouse values to float64. Non-numeric values become nil.
func parseMetricValue(raw any) any {
	switch v := raw.(type) {
	case nil:
		return nil
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	case int8:
		return float64(v)
	case int16:
		return float64(v)
	case int32:
		return float64(v)
	case int64:
		return float64(v)
	case uint8:
		return float64(v)
	case uint16:
		return float64(v)
	case uint32:
		return float64(v)
	case uint64:
		return float64(v)
	case *big.Int:
		f, _ := new(big.Float).SetInt(v).Float64()
		return f
	case float64er:
		return v.Float64()
	case string:
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil
		}
		return f
	}
	return nil
}

func sortSeries(s []seriesPoint) {
	sort.SliceStable(s, func(i, j int) bool { return s[i].date.Before(s[j].date) })
}

func label(s string) *string { return &s }

// dataPoints builds one point per current row. With a segment, the metric label is the segment value.
func dataPoints(dimension domain.Dimension, metric domain.MetricWithAssociatedTimeDimension, rows []domain.ResultRow, segmentFieldID string) ([]domain.MetricExploreDataPoint, error) {
	series, err := readSeries(rows, dimension.FieldID(), metric.FieldID(), segmentFieldID)
	if err != nil {
		return nil, err
	}
	points := make([]domain.MetricExploreDataPoint, 0, len(series))
	for _, p := range series {
		metricLabel := label(metric.Label)
		if p.segment != nil {
			metricLabel = p.segment
		}
		points = append(points, domain.MetricExploreDataPoint{
			Date:    p.date,
			Segment: p.segment,
			Metric:  domain.MetricPointValue{Value: p.value, Label: metricLabel},
		})
	}
	return points, nil
}

// dataPointsWithCompare merges the current series with its comparison series.
//
// Previous-period series are paired by position after sorting each by date; a
// comparison point without a current counterpart is placed one year after its own date.
// Different-metric series are paired by date, and a date present on one side only
// yields a point whose other side is nil.
func dataPointsWithCompare(
	mode domain.MetricExplorerComparison,
	dimension, compareDimension domain.Dimension,
	metric, compareMetric domain.MetricWithAssociatedTimeDimension,
	currentRows, compareRows []domain.ResultRow,
) ([]domain.MetricExploreDataPoint, error) {
	current, err := readSeries(currentRows, dimension.FieldID(), metric.FieldID(), "")
	if err != nil {
		return nil, err
	}
	compare, err := readSeries(compareRows, compareDimension.FieldID(), compareMetric.FieldID(), "")
	if err != nil {
		return nil, err
	}
	sortSeries(current)
	sortSeries(compare)

	switch mode {
	case domain.ComparisonPreviousPeriod:
		return alignByPosition(current, compare, metric.Label, metric.Label+" (previous period)"), nil
	case domain.ComparisonDifferentMetric:
		return alignByDate(current, compare, metric.Label, compareMetric.Label), nil
	}
	return nil, fmt.Errorf("no comparison alignment for %q", mode)
}

func alignByPosition(current, compare []seriesPoint, metricLabel, compareLabel string) []domain.MetricExploreDataPoint {
	n := max(len(current), len(compare))
	points := make([]domain.MetricExploreDataPoint, 0, n)
	for i := 0; i < n; i++ {
		var p domain.MetricExploreDataPoint
		if i < len(current) {
			p.Date = current[i].date
			p.Metric = domain.MetricPointValue{Value: current[i].value, Label: label(metricLabel)}
		} else {
			p.Date = ShiftDate(compare[i].date, domain.TimeFrameYear, 1)
		}
		if i < len(compare) {
			p.CompareMetric = domain.MetricPointValue{Value: compare[i].value, Label: label(compareLabel)}
		}
		points = append(points, p)
	}
	return points
}

func alignByDate(current, compare []seriesPoint, metricLabel, compareLabel string) []domain.MetricExploreDataPoint {
	byDate := map[int64]*domain.MetricExploreDataPoint{}
	var order []int64
	point := func(t time.Time) *domain.MetricExploreDataPoint {
		key := t.UnixMilli()
		if p, ok := byDate[key]; ok {
			return p
		}
		p := &domain.MetricExploreDataPoint{Date: t}
		byDate[key] = p
		order = append(order, key)
		return p
	}
	for _, c := range current {
		point(c.date).Metric = domain.MetricPointValue{Value: c.value, Label: label(metricLabel)}
	}
	for _, c := range compare {
		point(c.date).CompareMetric = domain.MetricPointValue{Value: c.value, Label: label(compareLabel)}
	}

	points := make([]domain.MetricExploreDataPoint, 0, len(order))
	for _, key := range order {
		points = append(points, *byDate[key])
	}
	return points
}

// finalizePoints stamps dateValue on every point and sorts ascending by it.
func finalizePoints(points []domain.MetricExploreDataPoint) []domain.MetricExploreDataPoint {
	for i := range points {
		points[i].DateValue = points[i].Date.UnixMilli()
	}
	sort.SliceStable(points, func(i, j int) bool { return points[i].DateValue < points[j].DateValue })
	return points
}
