package semantic

import (
	"fmt"
	"strings"

	"github.com/yu-iskw/lightdash/internal/domain"
)

// ConvertTable translates one dbt model, with the dbt metrics attached to it, into a Table.
// It fails fast: any invalid definition aborts the conversion and no partial table is returned.
func ConvertTable(adapter domain.AdapterType, model domain.DbtNode, dbtMetrics []domain.DbtMetric, spotlight domain.SpotlightConfig) (*domain.Table, error) {
	meta := model.Meta.Merge(model.Config.Meta)
	if model.RelationName == "" {
		return nil, domain.ErrParse("Model %q has no relation_name. Has it been materialized in your warehouse?", model.Name)
	}
	if spotlight.DefaultVisibility == "" {
		spotlight.DefaultVisibility = domain.SpotlightVisibilityShow
	}

	label := meta.Label
	if label == "" {
		label = friendlyName(model.Name)
	}
	tc := &tableContext{
		adapter:    adapter,
		meta:       meta,
		spotlight:  spotlight,
		tableName:  model.Name,
		tableLabel: label,
	}

	var (
		dimensions []domain.Dimension
		columns    []domain.DbtColumn
		dimIndex   int
	)
	for _, entry := range model.Columns {
		col := entry.Value
		if col.Name == "" {
			col.Name = entry.Key
		}
		columns = append(columns, col)
		dims, err := tc.columnDimensions(col, &dimIndex)
		if err != nil {
			return nil, err
		}
		dimensions = append(dimensions, dims...)
	}

	metrics, err := tc.buildMetrics(columns, dimensions, dbtMetrics)
	if err != nil {
		return nil, err
	}

	if err := checkNameCollisions(dimensions, metrics); err != nil {
		return nil, err
	}
	if err := validateSpotlightCategories(dimensions, metrics, spotlight); err != nil {
		return nil, err
	}

	orderFieldsBy := domain.OrderFieldsByLabel
	if meta.OrderFieldsBy != "" {
		switch o := domain.OrderFieldsBy(strings.ToUpper(meta.OrderFieldsBy)); o {
		case domain.OrderFieldsByIndex, domain.OrderFieldsByLabel:
			orderFieldsBy = o
		default:
			return nil, domain.ErrParse("Invalid order_fields_by %q in model %q", meta.OrderFieldsBy, model.Name)
		}
	}

	description := model.Description
	if description == "" {
		description = fmt.Sprintf("%s table", model.Name)
	}
	sqlWhere := meta.SQLFilter
	if sqlWhere == "" {
		sqlWhere = meta.SQLWhere
	}

	table := &domain.Table{
		Name:          model.Name,
		Label:         label,
		Database:      model.Database,
		Schema:        model.Schema,
		SQLTable:      model.RelationName,
		Description:   description,
		Dimensions:    dimensions,
		Metrics:       metrics,
		PrimaryKey:    stringsOrNil(meta.PrimaryKey),
		SQLWhere:      sqlWhere,
		GroupLabel:    meta.GroupLabel,
		GroupDetails:  meta.GroupDetails,
		OrderFieldsBy: orderFieldsBy,
		AIHint:        stringsOrNil(meta.AIHint),
	}
	if meta.Spotlight != nil {
		table.SpotlightCategories = stringsOrNil(meta.Spotlight.Categories)
	}
	if meta.DefaultTimeDimension != nil {
		dtd, err := tc.resolveDefaultTimeDimension(model.Name, meta.DefaultTimeDimension)
		if err != nil {
			return nil, err
		}
		table.DefaultTimeDimension = dtd
	}
	if err := validateDefaultTimeDimensions(table); err != nil {
		return nil, err
	}
	return table, nil
}

// buildMetrics merges dbt metrics, model meta metrics, column meta metrics and
// auto-metrics, in that order.
func (tc *tableContext) buildMetrics(columns []domain.DbtColumn, dimensions []domain.Dimension, dbtMetrics []domain.DbtMetric) ([]domain.Metric, error) {
	set := newMetricSet()

	known := map[string]bool{}
	for _, dm := range dbtMetrics {
		known[dm.Name] = true
	}
	for _, key := range tc.meta.Metrics.Keys() {
		known[key] = true
	}
	for _, dm := range dbtMetrics {
		m, err := tc.convertDbtMetric(dm, known)
		if err != nil {
			return nil, err
		}
		set.add(m)
	}

	for _, entry := range tc.meta.Metrics {
		m, err := tc.convertMetricMeta(entry.Key, entry.Value, metricSource{})
		if err != nil {
			return nil, err
		}
		set.add(m)
	}

	baseDims := make(map[string]domain.Dimension, len(dimensions))
	for _, d := range dimensions {
		if d.TimeInterval == "" && !d.IsAdditionalDimension {
			baseDims[d.Name] = d
		}
	}
	for _, col := range columns {
		base := baseDims[col.Name]
		for _, entry := range col.Meta.Metrics {
			m, err := tc.convertMetricMeta(entry.Key, entry.Value, metricSource{dimensionName: col.Name, dimensionSQL: base.SQL})
			if err != nil {
				return nil, err
			}
			set.add(m)
		}
	}

	if !tc.meta.DisableAutoMetrics {
		for _, col := range columns {
			if col.Meta.Dimension == nil || col.Meta.Dimension.DefaultAggregation == "" {
				continue
			}
			m, err := tc.autoMetric(baseDims[col.Name], col.Meta.Dimension.DefaultAggregation)
			if err != nil {
				return nil, err
			}
			set.add(m)
		}
	}
	return set.list(), nil
}

// resolveSpotlight applies metric -> model -> project precedence for visibility and
// unions model and metric categories, model first.
func (tc *tableContext) resolveSpotlight(own *domain.DbtSpotlightMeta) *domain.MetricSpotlight {
	s := &domain.MetricSpotlight{Visibility: tc.spotlight.DefaultVisibility}
	if s.Visibility == "" {
		s.Visibility = domain.SpotlightVisibilityShow
	}
	seen := map[string]bool{}
	addCategories := func(list domain.StringList) {
		for _, c := range list {
			if !seen[c] {
				seen[c] = true
				s.Categories = append(s.Categories, c)
			}
		}
	}
	if tc.meta.Spotlight != nil {
		if tc.meta.Spotlight.Visibility != "" {
			s.Visibility = tc.meta.Spotlight.Visibility
		}
		addCategories(tc.meta.Spotlight.Categories)
	}
	if own != nil {
		if own.Visibility != "" {
			s.Visibility = own.Visibility
		}
		addCategories(own.Categories)
	}
	return s
}

// checkNameCollisions rejects metrics sharing a name with any dimension.
func checkNameCollisions(dimensions []domain.Dimension, metrics []domain.Metric) error {
	dimNames := make(map[string]bool, len(dimensions))
	for _, d := range dimensions {
		dimNames[d.Name] = true
	}
	var dupes []string
	for _, m := range metrics {
		if dimNames[m.Name] {
			dupes = append(dupes, m.Name)
		}
	}
	switch len(dupes) {
	case 0:
		return nil
	case 1:
		return domain.ErrParse("Found a metric and a dimension with the same name: %s", dupes[0])
	}
	return domain.ErrParse("Found multiple metrics and a dimensions with the same name: %s", strings.Join(dupes, ","))
}

// validateSpotlightCategories requires every referenced category to be declared in the project config.
func validateSpotlightCategories(dimensions []domain.Dimension, metrics []domain.Metric, cfg domain.SpotlightConfig) error {
	for _, m := range metrics {
		if m.Spotlight == nil {
			continue
		}
		if missing := undeclaredCategories(m.Spotlight.Categories, cfg); len(missing) > 0 {
			return domain.ErrParse("Invalid spotlight categories found in metric '%s': %s. Categories must be defined in project config.", m.Name, strings.Join(missing, ", "))
		}
	}
	for _, d := range dimensions {
		if d.TimeInterval != "" {
			continue
		}
		if missing := undeclaredCategories(d.SpotlightCategories, cfg); len(missing) > 0 {
			return domain.ErrParse("Invalid spotlight categories found in dimension '%s': %s. Categories must be defined in project config.", d.Name, strings.Join(missing, ", "))
		}
	}
	return nil
}

func undeclaredCategories(categories []string, cfg domain.SpotlightConfig) []string {
	var missing []string
	for _, c := range categories {
		if !cfg.HasCategory(c) {
			missing = append(missing, c)
		}
	}
	return missing
}

// validateDefaultTimeDimensions requires default time dimensions to name a date or timestamp dimension.
func validateDefaultTimeDimensions(t *domain.Table) error {
	check := func(owner string, dtd *domain.DefaultTimeDimension) error {
		if dtd == nil {
			return nil
		}
		d, ok := t.Dimension(dtd.Field)
		if !ok {
			return domain.ErrParse("Default time dimension %q of %q not found in model %q", dtd.Field, owner, t.Name)
		}
		if !d.Type.IsTimeBased() {
			return domain.ErrParse("Default time dimension %q of %q in model %q is not a date or timestamp", dtd.Field, owner, t.Name)
		}
		return nil
	}
	if err := check(t.Name, t.DefaultTimeDimension); err != nil {
		return err
	}
	for _, m := range t.Metrics {
		if err := check(m.Name, m.DefaultTimeDimension); err != nil {
			return err
		}
	}
	return nil
}
