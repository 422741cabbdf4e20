package semantic

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/yu-iskw/lightdash/internal/domain"
)

var autoMetricLabels = map[domain.MetricType]string{
	domain.MetricTypeSum:           "Sum",
	domain.MetricTypeAverage:       "Average",
	domain.MetricTypeMin:           "Min",
	domain.MetricTypeMax:           "Max",
	domain.MetricTypeCount:         "Count",
	domain.MetricTypeCountDistinct: "Count distinct",
}

// metricSet keeps metrics in first-declared order; a later definition with the
// same name replaces the earlier one in place.
type metricSet struct {
	order []domain.Metric
	pos   map[string]int
}

func newMetricSet() *metricSet {
	return &metricSet{pos: map[string]int{}}
}

func (s *metricSet) add(m domain.Metric) {
	if i, ok := s.pos[m.Name]; ok {
		s.order[i] = m
		return
	}
	s.pos[m.Name] = len(s.order)
	s.order = append(s.order, m)
}

func (s *metricSet) list() []domain.Metric {
	for i := range s.order {
		s.order[i].Index = i
	}
	return s.order
}

type metricSource struct {
	// dimensionName is set for metrics declared on a column.
	dimensionName string
	dimensionSQL  string
}

// convertMetricMeta translates a meta-block metric (column or model level).
func (tc *tableContext) convertMetricMeta(name string, meta domain.DbtMetricMeta, src metricSource) (domain.Metric, error) {
	mt, err := domain.ParseMetricType(meta.Type)
	if err != nil {
		return domain.Metric{}, domain.ErrParse("Invalid metric type %q for metric %q in model %q", meta.Type, name, tc.tableName)
	}

	sql := meta.SQL
	if sql == "" {
		if !mt.IsAggregate() || src.dimensionName == "" {
			return domain.Metric{}, domain.ErrParse("Metric %q in model %q of type %q requires sql", name, tc.tableName, mt)
		}
		sql = src.dimensionSQL
	}

	filters, err := parseMetricFilters(meta.Filters)
	if err != nil {
		return domain.Metric{}, domain.ErrParse("Invalid filters on metric %q in model %q: %v", name, tc.tableName, err)
	}

	label := meta.Label
	if label == "" {
		label = friendlyName(name)
	}

	m := domain.Metric{
		FieldType:          domain.FieldTypeMetric,
		Name:               name,
		Label:              label,
		Table:              tc.tableName,
		TableLabel:         tc.tableLabel,
		Type:               mt,
		SQL:                sql,
		Description:        meta.Description,
		Hidden:             meta.Hidden,
		Format:             meta.Format,
		Round:              meta.Round,
		Percentile:         meta.Percentile,
		Groups:             resolveGroups(meta.Groups, meta.GroupLabel),
		Filters:            filters,
		DimensionReference: src.dimensionName,
		AIHint:             stringsOrNil(meta.AIHint),
	}
	if m.Description == "" {
		m.Description = fmt.Sprintf("%s of %s", friendlyName(string(mt)), label)
	}
	if mt == domain.MetricTypePercentile && m.Percentile == nil {
		return domain.Metric{}, domain.ErrParse("Percentile metric %q in model %q requires percentile", name, tc.tableName)
	}

	dtd, err := tc.resolveDefaultTimeDimension(name, meta.DefaultTimeDimension)
	if err != nil {
		return domain.Metric{}, err
	}
	m.DefaultTimeDimension = dtd
	m.Spotlight = tc.resolveSpotlight(meta.Spotlight)
	return m, nil
}

// autoMetric synthesizes the metric implied by a column's default_aggregation.
func (tc *tableContext) autoMetric(dim domain.Dimension, aggregation string) (domain.Metric, error) {
	mt, err := domain.ParseMetricType(aggregation)
	if err != nil || autoMetricLabels[mt] == "" {
		return domain.Metric{}, domain.ErrParse("Invalid default_aggregation %q on column %q in model %q", aggregation, dim.Name, tc.tableName)
	}
	switch dim.Type {
	case domain.DimensionTypeNumber:
	case domain.DimensionTypeBoolean:
		if mt != domain.MetricTypeCount && mt != domain.MetricTypeCountDistinct {
			return domain.Metric{}, domain.ErrParse("default_aggregation %q is not valid for boolean column %q in model %q", aggregation, dim.Name, tc.tableName)
		}
	default:
		return domain.Metric{}, domain.ErrParse("default_aggregation is only supported on numeric or boolean columns, %q in model %q is %s", dim.Name, tc.tableName, dim.Type)
	}

	name := fmt.Sprintf("%s_%s", dim.Name, mt)
	label := fmt.Sprintf("%s of %s", autoMetricLabels[mt], strings.ToLower(dim.Label))
	m := domain.Metric{
		FieldType:          domain.FieldTypeMetric,
		Name:               name,
		Label:              label,
		Table:              tc.tableName,
		TableLabel:         tc.tableLabel,
		Type:               mt,
		SQL:                dim.SQL,
		Description:        label,
		Hidden:             dim.Hidden,
		Groups:             append([]string(nil), dim.Groups...),
		DimensionReference: dim.Name,
		IsAutoGenerated:    true,
		Spotlight:          tc.resolveSpotlight(nil),
	}
	dtd, err := tc.resolveDefaultTimeDimension(name, nil)
	if err != nil {
		return domain.Metric{}, err
	}
	m.DefaultTimeDimension = dtd
	return m, nil
}

var legacyCalculationTypes = map[string]domain.MetricType{
	"count":          domain.MetricTypeCount,
	"count_distinct": domain.MetricTypeCountDistinct,
	"sum":            domain.MetricTypeSum,
	"average":        domain.MetricTypeAverage,
	"min":            domain.MetricTypeMin,
	"max":            domain.MetricTypeMax,
	"median":         domain.MetricTypeMedian,
}

var identifierPattern = regexp.MustCompile(`[A-Za-z_][A-Za-z0-9_]*`)

// convertDbtMetric translates a standalone dbt metric, legacy or 1.5+ shape.
func (tc *tableContext) convertDbtMetric(dm domain.DbtMetric, known map[string]bool) (domain.Metric, error) {
	var (
		mt  domain.MetricType
		sql string
	)
	switch {
	case dm.CalculationMethod != "":
		switch dm.CalculationMethod {
		case "derived":
			mt = domain.MetricTypeNumber
			sql = referenceMetrics(dm.Expression, known)
		case "expression":
			mt = domain.MetricTypeNumber
			sql = dm.Expression
		default:
			t, ok := legacyCalculationTypes[dm.CalculationMethod]
			if !ok {
				return domain.Metric{}, domain.ErrParse("Unsupported calculation_method %q on dbt metric %q", dm.CalculationMethod, dm.Name)
			}
			mt = t
			sql = defaultColumnSQL(dm.Expression)
			if strings.ContainsAny(dm.Expression, " ()*+-/") {
				sql = dm.Expression
			}
		}
	case dm.Type != "":
		params := dm.TypeParams
		if params == nil {
			params = &domain.DbtMetricTypeParams{}
		}
		switch dm.Type {
		case "simple":
			if params.Measure == nil || params.Measure.Name == "" {
				return domain.Metric{}, domain.ErrParse("dbt metric %q of type simple requires a measure", dm.Name)
			}
			mt = domain.MetricTypeSum
			if dm.Meta.Type != "" {
				t, err := domain.ParseMetricType(dm.Meta.Type)
				if err != nil || !t.IsAggregate() {
					return domain.Metric{}, domain.ErrParse("Invalid aggregation %q on dbt metric %q", dm.Meta.Type, dm.Name)
				}
				mt = t
			}
			sql = defaultColumnSQL(params.Measure.Name)
		case "ratio":
			if params.Numerator == nil || params.Denominator == nil {
				return domain.Metric{}, domain.ErrParse("dbt metric %q of type ratio requires numerator and denominator", dm.Name)
			}
			mt = domain.MetricTypeNumber
			sql = fmt.Sprintf("${%s} / NULLIF(${%s}, 0)", params.Numerator.Name, params.Denominator.Name)
		case "derived":
			mt = domain.MetricTypeNumber
			refs := map[string]bool{}
			for k := range known {
				refs[k] = true
			}
			for _, in := range params.Metrics {
				refs[in.Name] = true
			}
			sql = referenceMetrics(params.Expr, refs)
		default:
			return domain.Metric{}, domain.ErrParse("Unsupported dbt metric type %q on metric %q", dm.Type, dm.Name)
		}
	default:
		return domain.Metric{}, domain.ErrParse("dbt metric %q has neither calculation_method nor type", dm.Name)
	}

	if len(dm.Filters) > 0 {
		conds := make([]string, 0, len(dm.Filters))
		for _, f := range dm.Filters {
			conds = append(conds, fmt.Sprintf("(${TABLE}.%s %s %s)", f.Field, f.Operator, f.Value))
		}
		sql = fmt.Sprintf("CASE WHEN %s THEN %s ELSE NULL END", strings.Join(conds, " AND "), sql)
	}

	label := dm.Label
	if label == "" {
		label = friendlyName(dm.Name)
	}
	m := domain.Metric{
		FieldType:   domain.FieldTypeMetric,
		Name:        dm.Name,
		Label:       label,
		Table:       tc.tableName,
		TableLabel:  tc.tableLabel,
		Type:        mt,
		SQL:         sql,
		Description: dm.Description,
		Hidden:      dm.Meta.Hidden,
		Format:      dm.Meta.Format,
		Round:       dm.Meta.Round,
		Groups:      resolveGroups(dm.Meta.Groups, dm.Meta.GroupLabel),
		AIHint:      stringsOrNil(dm.Meta.AIHint),
	}
	dtd, err := tc.resolveDefaultTimeDimension(dm.Name, dm.Meta.DefaultTimeDimension)
	if err != nil {
		return domain.Metric{}, err
	}
	m.DefaultTimeDimension = dtd
	m.Spotlight = tc.resolveSpotlight(dm.Meta.Spotlight)
	return m, nil
}

// referenceMetrics wraps every bare identifier naming a known metric in ${...}.
func referenceMetrics(expr string, known map[string]bool) string {
	return identifierPattern.ReplaceAllStringFunc(expr, func(id string) string {
		if known[id] {
			return "${" + id + "}"
		}
		return id
	})
}

// parseMetricFilters converts `[{dimension: value}]` filters into rules.
// Values: "null" / "!null" test nullness, "!x" negates, "%x%", "x%" and "%x" match substrings.
func parseMetricFilters(raw []map[string]any) ([]domain.MetricFilterRule, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var rules []domain.MetricFilterRule
	for _, f := range raw {
		keys := make([]string, 0, len(f))
		for k := range f {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, field := range keys {
			rule, err := parseFilterValue(field, f[field])
			if err != nil {
				return nil, err
			}
			rules = append(rules, rule)
		}
	}
	return rules, nil
}

func parseFilterValue(field string, value any) (domain.MetricFilterRule, error) {
	rule := domain.MetricFilterRule{
		ID:     uuid.NewString(),
		Target: domain.FieldRef{FieldRef: field},
	}
	values, ok := value.([]any)
	if !ok {
		values = []any{value}
	}
	if len(values) == 0 {
		return rule, fmt.Errorf("filter on %q has no values", field)
	}

	first, isString := values[0].(string)
	if !isString || len(values) > 1 {
		rule.Operator = domain.FilterOperatorEquals
		rule.Values = values
		return rule, nil
	}
	switch {
	case first == "null":
		rule.Operator = domain.FilterOperatorIsNull
	case first == "!null":
		rule.Operator = domain.FilterOperatorNotNull
	case strings.HasPrefix(first, "!"):
		rule.Operator = domain.FilterOperatorNotEquals
		rule.Values = []any{strings.TrimPrefix(first, "!")}
	case len(first) > 1 && strings.HasPrefix(first, "%") && strings.HasSuffix(first, "%"):
		rule.Operator = domain.FilterOperatorInclude
		rule.Values = []any{strings.Trim(first, "%")}
	case strings.HasSuffix(first, "%"):
		rule.Operator = domain.FilterOperatorStartsWith
		rule.Values = []any{strings.TrimSuffix(first, "%")}
	case strings.HasPrefix(first, "%"):
		rule.Operator = domain.FilterOperatorEndsWith
		rule.Values = []any{strings.TrimPrefix(first, "%")}
	default:
		rule.Operator = domain.FilterOperatorEquals
		rule.Values = []any{first}
	}
	return rule, nil
}

// resolveDefaultTimeDimension picks the metric-level block, else the model-level one.
func (tc *tableContext) resolveDefaultTimeDimension(metricName string, own *domain.DbtDefaultTimeDimensionMeta) (*domain.DefaultTimeDimension, error) {
	block := own
	if block == nil {
		block = tc.meta.DefaultTimeDimension
	}
	if block == nil {
		return nil, nil
	}
	interval, err := domain.ParseTimeFrame(block.Interval)
	if err != nil || interval.IsDatePart() {
		return nil, domain.ErrParse("Invalid default_time_dimension interval %q on metric %q in model %q", block.Interval, metricName, tc.tableName)
	}
	if block.Field == "" {
		return nil, domain.ErrParse("default_time_dimension on metric %q in model %q requires a field", metricName, tc.tableName)
	}
	return &domain.DefaultTimeDimension{Field: block.Field, Interval: interval}, nil
}
