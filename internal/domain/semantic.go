package domain

import (
	"fmt"
	"strings"
)

// FieldType distinguishes dimensions from metrics.
type FieldType string

const (
	FieldTypeDimension FieldType = "dimension"
	FieldTypeMetric    FieldType = "metric"
)

// DimensionType is the semantic type of a groupable column.
type DimensionType string

const (
	DimensionTypeString    DimensionType = "string"
	DimensionTypeNumber    DimensionType = "number"
	DimensionTypeTimestamp DimensionType = "timestamp"
	DimensionTypeDate      DimensionType = "date"
	DimensionTypeBoolean   DimensionType = "boolean"
)

// IsTimeBased reports whether dimensions of this type expand into time intervals.
func (t DimensionType) IsTimeBased() bool {
	return t == DimensionTypeDate || t == DimensionTypeTimestamp
}

// ParseDimensionType validates a dimension type declared in model metadata.
func ParseDimensionType(s string) (DimensionType, error) {
	switch t := DimensionType(strings.ToLower(strings.TrimSpace(s))); t {
	case DimensionTypeString, DimensionTypeNumber, DimensionTypeTimestamp, DimensionTypeDate, DimensionTypeBoolean:
		return t, nil
	}
	return "", ErrParse("invalid dimension type %q", s)
}

// MetricType is the aggregation (or post-aggregation type) of a metric.
type MetricType string

const (
	MetricTypeCount         MetricType = "count"
	MetricTypeCountDistinct MetricType = "count_distinct"
	MetricTypeSum           MetricType = "sum"
	MetricTypeAverage       MetricType = "average"
	MetricTypeMin           MetricType = "min"
	MetricTypeMax           MetricType = "max"
	MetricTypeMedian        MetricType = "median"
	MetricTypePercentile    MetricType = "percentile"
	MetricTypeNumber        MetricType = "number"
	MetricTypeString        MetricType = "string"
	MetricTypeDate          MetricType = "date"
	MetricTypeTimestamp     MetricType = "timestamp"
	MetricTypeBoolean       MetricType = "boolean"
)

// IsAggregate reports whether the metric type wraps its SQL in an aggregate function.
func (t MetricType) IsAggregate() bool {
	switch t {
	case MetricTypeCount, MetricTypeCountDistinct, MetricTypeSum, MetricTypeAverage,
		MetricTypeMin, MetricTypeMax, MetricTypeMedian, MetricTypePercentile:
		return true
	}
	return false
}

// ParseMetricType validates a metric type declared in model metadata.
func ParseMetricType(s string) (MetricType, error) {
	t := MetricType(strings.ToLower(strings.TrimSpace(s)))
	switch t {
	case MetricTypeCount, MetricTypeCountDistinct, MetricTypeSum, MetricTypeAverage,
		MetricTypeMin, MetricTypeMax, MetricTypeMedian, MetricTypePercentile,
		MetricTypeNumber, MetricTypeString, MetricTypeDate, MetricTypeTimestamp, MetricTypeBoolean:
		return t, nil
	}
	return "", ErrParse("invalid metric type %q", s)
}

// Field is implemented by Dimension and Metric.
type Field interface {
	FieldID() string
	Kind() FieldType
}

// GetItemID builds the wire field id "<table>_<name>". Dots in the name
// (joined-table references) become double underscores.
func GetItemID(table, name string) string {
	return fmt.Sprintf("%s_%s", table, strings.ReplaceAll(name, ".", "__"))
}

// TimeIntervalDimensionName names the dimension generated for one time grain.
func TimeIntervalDimensionName(column string, interval TimeFrame) string {
	return fmt.Sprintf("%s_%s", column, interval.Suffix())
}

// Dimension is a groupable attribute of a table.
type Dimension struct {
	FieldType                     FieldType     `json:"fieldType"`
	Name                          string        `json:"name"`
	Label                         string        `json:"label"`
	Table                         string        `json:"table"`
	TableLabel                    string        `json:"tableLabel"`
	Type                          DimensionType `json:"type"`
	SQL                           string        `json:"sql"`
	Description                   string        `json:"description,omitempty"`
	Hidden                        bool          `json:"hidden"`
	Format                        string        `json:"format,omitempty"`
	Round                         *int          `json:"round,omitempty"`
	Groups                        []string      `json:"groups"`
	TimeInterval                  TimeFrame     `json:"timeInterval,omitempty"`
	TimeIntervalBaseDimensionName string        `json:"timeIntervalBaseDimensionName,omitempty"`
	IsIntervalBase                bool          `json:"isIntervalBase,omitempty"`
	IsAdditionalDimension         bool          `json:"isAdditionalDimension,omitempty"`
	AIHint                        []string      `json:"aiHint,omitempty"`
	SpotlightCategories           []string      `json:"spotlightCategories,omitempty"`
	URLs                          []FieldURL    `json:"urls,omitempty"`
	Index                         int           `json:"index"`
}

// FieldURL is a link template rendered next to dimension values.
type FieldURL struct {
	URL   string `json:"url"`
	Label string `json:"label"`
}

// FieldID returns the wire id of the dimension.
func (d Dimension) FieldID() string { return GetItemID(d.Table, d.Name) }

// Kind returns FieldTypeDimension.
func (d Dimension) Kind() FieldType { return FieldTypeDimension }

// MetricFilterRule restricts the rows a metric aggregates over.
type MetricFilterRule struct {
	ID       string         `json:"id"`
	Target   FieldRef       `json:"target"`
	Operator FilterOperator `json:"operator"`
	Values   []any          `json:"values,omitempty"`
}

// FieldRef references a field of the owning table by name.
type FieldRef struct {
	FieldRef string `json:"fieldRef"`
}

// SpotlightVisibility controls whether a metric shows up in discovery UIs.
type SpotlightVisibility string

const (
	SpotlightVisibilityShow SpotlightVisibility = "show"
	SpotlightVisibilityHide SpotlightVisibility = "hide"
)

// MetricSpotlight holds the resolved spotlight settings of a metric.
type MetricSpotlight struct {
	Visibility SpotlightVisibility `json:"visibility"`
	Categories []string            `json:"categories,omitempty"`
}

// DefaultTimeDimension names the time dimension a metric is plotted against.
type DefaultTimeDimension struct {
	Field    string    `json:"field"`
	Interval TimeFrame `json:"interval"`
}

// Metric is an aggregation over a column or a raw expression.
type Metric struct {
	FieldType            FieldType             `json:"fieldType"`
	Name                 string                `json:"name"`
	Label                string                `json:"label"`
	Table                string                `json:"table"`
	TableLabel           string                `json:"tableLabel"`
	Type                 MetricType            `json:"type"`
	SQL                  string                `json:"sql"`
	Description          string                `json:"description,omitempty"`
	Hidden               bool                  `json:"hidden"`
	Format               string                `json:"format,omitempty"`
	Round                *int                  `json:"round,omitempty"`
	Percentile           *float64              `json:"percentile,omitempty"`
	Groups               []string              `json:"groups"`
	Filters              []MetricFilterRule    `json:"filters,omitempty"`
	DimensionReference   string                `json:"dimensionReference,omitempty"`
	IsAutoGenerated      bool                  `json:"isAutoGenerated"`
	DefaultTimeDimension *DefaultTimeDimension `json:"defaultTimeDimension,omitempty"`
	AIHint               []string              `json:"aiHint,omitempty"`
	Spotlight            *MetricSpotlight      `json:"spotlight,omitempty"`
	Index                int                   `json:"index"`
}

// FieldID returns the wire id of the metric.
func (m Metric) FieldID() string { return GetItemID(m.Table, m.Name) }

// Kind returns FieldTypeMetric.
func (m Metric) Kind() FieldType { return FieldTypeMetric }

// GroupDetail describes a field group declared in model metadata.
type GroupDetail struct {
	Label       string `json:"label"`
	Description string `json:"description,omitempty"`
}

// OrderFieldsBy controls field ordering in pickers.
type OrderFieldsBy string

const (
	OrderFieldsByIndex OrderFieldsBy = "INDEX"
	OrderFieldsByLabel OrderFieldsBy = "LABEL"
)

// Table is the canonical unit of query-ability produced from one dbt model.
type Table struct {
	Name                 string                 `json:"name"`
	Label                string                 `json:"label"`
	Database             string                 `json:"database"`
	Schema               string                 `json:"schema"`
	SQLTable             string                 `json:"sqlTable"`
	Description          string                 `json:"description"`
	Dimensions           []Dimension            `json:"dimensions"`
	Metrics              []Metric               `json:"metrics"`
	PrimaryKey           []string               `json:"primaryKey,omitempty"`
	SQLWhere             string                 `json:"sqlWhere,omitempty"`
	GroupLabel           string                 `json:"groupLabel,omitempty"`
	GroupDetails         map[string]GroupDetail `json:"groupDetails,omitempty"`
	OrderFieldsBy        OrderFieldsBy          `json:"orderFieldsBy"`
	DefaultTimeDimension *DefaultTimeDimension  `json:"defaultTimeDimension,omitempty"`
	AIHint               []string               `json:"aiHint,omitempty"`
	SpotlightCategories  []string               `json:"spotlightCategories,omitempty"`
}

// Dimension returns the dimension with the given name.
func (t *Table) Dimension(name string) (*Dimension, bool) {
	for i := range t.Dimensions {
		if t.Dimensions[i].Name == name {
			return &t.Dimensions[i], true
		}
	}
	return nil, false
}

// Metric returns the metric with the given name.
func (t *Table) Metric(name string) (*Metric, bool) {
	for i := range t.Metrics {
		if t.Metrics[i].Name == name {
			return &t.Metrics[i], true
		}
	}
	return nil, false
}

// FieldIDs returns the field ids of all dimensions followed by all metrics.
func (t *Table) FieldIDs() []string {
	ids := make([]string, 0, len(t.Dimensions)+len(t.Metrics))
	for _, d := range t.Dimensions {
		ids = append(ids, d.FieldID())
	}
	for _, m := range t.Metrics {
		ids = append(ids, m.FieldID())
	}
	return ids
}

// JoinType is the SQL join flavour used for an explore join.
type JoinType string

const (
	JoinTypeLeft  JoinType = "left"
	JoinTypeInner JoinType = "inner"
	JoinTypeRight JoinType = "right"
	JoinTypeFull  JoinType = "full"
)

// CompiledJoin is one joined table of an explore.
type CompiledJoin struct {
	Table string   `json:"table"`
	SQLOn string   `json:"sqlOn"`
	Type  JoinType `json:"type"`
}

// Explore is a named, queryable view over a base table and its joins.
type Explore struct {
	Name      string           `json:"name"`
	Label     string           `json:"label"`
	BaseTable string           `json:"baseTable"`
	Joins     []CompiledJoin   `json:"joinedTables"`
	Tables    map[string]Table `json:"tables"`
}

// FindField resolves a field id against every table of the explore.
func (e *Explore) FindField(fieldID string) (Field, bool) {
	for name := range e.Tables {
		t := e.Tables[name]
		for _, d := range t.Dimensions {
			if d.FieldID() == fieldID {
				return d, true
			}
		}
		for _, m := range t.Metrics {
			if m.FieldID() == fieldID {
				return m, true
			}
		}
	}
	return nil, false
}
