package domain

import (
	"encoding/json"
	"time"
)

// MetricExplorerComparison is the discriminator of a MetricExplorerQuery.
type MetricExplorerComparison string

const (
	ComparisonNone            MetricExplorerComparison = "none"
	ComparisonPreviousPeriod  MetricExplorerComparison = "previous_period"
	ComparisonDifferentMetric MetricExplorerComparison = "different_metric"
)

// MetricExplorerQuery is a closed union: NoComparison, PreviousPeriodComparison
// or DifferentMetricComparison. Only types in this package implement it.
type MetricExplorerQuery interface {
	Comparison() MetricExplorerComparison
	isMetricExplorerQuery()
}

// NoComparison plots the metric alone, optionally split by a segment dimension field id.
type NoComparison struct {
	SegmentDimension string
}

// PreviousPeriodComparison overlays the same metric one year earlier.
type PreviousPeriodComparison struct{}

// DifferentMetricComparison overlays a second metric on the same date axis.
type DifferentMetricComparison struct {
	Metric MetricRef
}

// MetricRef names a metric by its table (explore) and name.
type MetricRef struct {
	Table string `json:"table"`
	Name  string `json:"name"`
}

func (NoComparison) Comparison() MetricExplorerComparison { return ComparisonNone }
func (PreviousPeriodComparison) Comparison() MetricExplorerComparison {
	return ComparisonPreviousPeriod
}
func (DifferentMetricComparison) Comparison() MetricExplorerComparison {
	return ComparisonDifferentMetric
}

func (NoComparison) isMetricExplorerQuery()              {}
func (PreviousPeriodComparison) isMetricExplorerQuery()  {}
func (DifferentMetricComparison) isMetricExplorerQuery() {}

// MetricExplorerQueryPayload is the wire form of a MetricExplorerQuery.
type MetricExplorerQueryPayload struct {
	Comparison       MetricExplorerComparison `json:"comparison"`
	SegmentDimension *string                  `json:"segmentDimension,omitempty"`
	Metric           *MetricRef               `json:"metric,omitempty"`
}

// ToQuery validates the payload shape for its comparison mode.
func (p MetricExplorerQueryPayload) ToQuery() (MetricExplorerQuery, error) {
	switch p.Comparison {
	case ComparisonNone:
		if p.Metric != nil {
			return nil, ErrValidation("comparison %q does not accept a metric", p.Comparison)
		}
		q := NoComparison{}
		if p.SegmentDimension != nil {
			q.SegmentDimension = *p.SegmentDimension
		}
		return q, nil
	case ComparisonPreviousPeriod:
		if p.Metric != nil || p.SegmentDimension != nil {
			return nil, ErrValidation("comparison %q accepts no extra fields", p.Comparison)
		}
		return PreviousPeriodComparison{}, nil
	case ComparisonDifferentMetric:
		if p.SegmentDimension != nil {
			return nil, ErrValidation("comparison %q does not accept a segment dimension", p.Comparison)
		}
		if p.Metric == nil || p.Metric.Table == "" || p.Metric.Name == "" {
			return nil, ErrValidation("invalid comparison metric")
		}
		return DifferentMetricComparison{Metric: *p.Metric}, nil
	}
	return nil, ErrValidation("unknown comparison type %q", p.Comparison)
}

// TimeDimensionConfig points a metric at a time dimension column. An empty
// Interval means the grain is inferred from the requested date range.
type TimeDimensionConfig struct {
	Table    string    `json:"table"`
	Field    string    `json:"field"`
	Interval TimeFrame `json:"interval,omitempty"`
}

// MetricWithAssociatedTimeDimension is a catalog metric plus its resolved time dimension.
type MetricWithAssociatedTimeDimension struct {
	Metric
	TimeDimension *TimeDimensionConfig `json:"timeDimension,omitempty"`
}

// MarshalJSON flattens the embedded metric next to timeDimension.
func (m MetricWithAssociatedTimeDimension) MarshalJSON() ([]byte, error) {
	base, err := json.Marshal(m.Metric)
	if err != nil {
		return nil, err
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(base, &obj); err != nil {
		return nil, err
	}
	if m.TimeDimension != nil {
		td, err := json.Marshal(m.TimeDimension)
		if err != nil {
			return nil, err
		}
		obj["timeDimension"] = td
	}
	return json.Marshal(obj)
}

// MetricPointValue is one side of a plotted point.
type MetricPointValue struct {
	Value any     `json:"value"`
	Label *string `json:"label"`
}

// MetricExploreDataPoint is one plotted point of the metrics explorer.
type MetricExploreDataPoint struct {
	Date          time.Time        `json:"date"`
	DateValue     int64            `json:"dateValue"`
	Segment       *string          `json:"segment"`
	Metric        MetricPointValue `json:"metric"`
	CompareMetric MetricPointValue `json:"compareMetric"`
}

// MetricsExplorerQueryResults is returned by RunMetricExplorerQuery.
type MetricsExplorerQueryResults struct {
	Results          []MetricExploreDataPoint           `json:"results"`
	Fields           map[string]Field                   `json:"fields"`
	Metric           MetricWithAssociatedTimeDimension  `json:"metric"`
	CompareMetric    *MetricWithAssociatedTimeDimension `json:"compareMetric"`
	SegmentDimension *Dimension                         `json:"segmentDimension"`
}

// MetricTotalComparisonType selects the optional comparison of a metric total.
type MetricTotalComparisonType string

const (
	MetricTotalComparisonNone           MetricTotalComparisonType = "none"
	MetricTotalComparisonPreviousPeriod MetricTotalComparisonType = "previous_period"
)

// ParseMetricTotalComparisonType defaults to none for an empty string.
func ParseMetricTotalComparisonType(s string) (MetricTotalComparisonType, error) {
	switch MetricTotalComparisonType(s) {
	case "", MetricTotalComparisonNone:
		return MetricTotalComparisonNone, nil
	case MetricTotalComparisonPreviousPeriod:
		return MetricTotalComparisonPreviousPeriod, nil
	}
	return "", ErrValidation("invalid comparison type %q", s)
}

// MetricTotalResults holds the scalar total and its optional comparison.
type MetricTotalResults struct {
	Value           *ResultValue `json:"value"`
	ComparisonValue *ResultValue `json:"comparisonValue"`
}
