package semantic

import (
	"fmt"
	"strings"

	"github.com/yu-iskw/lightdash/internal/domain"
)

var (
	defaultDateIntervals = []domain.TimeFrame{
		domain.TimeFrameDay, domain.TimeFrameWeek, domain.TimeFrameMonth,
		domain.TimeFrameQuarter, domain.TimeFrameYear,
	}
	defaultTimestampIntervals = []domain.TimeFrame{
		domain.TimeFrameRaw, domain.TimeFrameDay, domain.TimeFrameWeek,
		domain.TimeFrameMonth, domain.TimeFrameQuarter, domain.TimeFrameYear,
	}
	// adapters whose default expansion also includes the named date parts.
	namedDatePartAdapters = map[domain.AdapterType]bool{
		domain.AdapterSnowflake: true,
	}
)

// DefaultTimeIntervals returns the interval set a date or timestamp column expands
// into when its time_intervals setting is "default".
func DefaultTimeIntervals(adapter domain.AdapterType, t domain.DimensionType) []domain.TimeFrame {
	var base []domain.TimeFrame
	switch t {
	case domain.DimensionTypeDate:
		base = defaultDateIntervals
	case domain.DimensionTypeTimestamp:
		base = defaultTimestampIntervals
	default:
		return nil
	}
	out := append([]domain.TimeFrame(nil), base...)
	if namedDatePartAdapters[adapter] {
		out = append(out, domain.TimeFrameDayOfWeekName, domain.TimeFrameMonthName)
	}
	return out
}

// intervalDimensionType is the type of a generated interval dimension.
func intervalDimensionType(base domain.DimensionType, interval domain.TimeFrame) domain.DimensionType {
	switch interval {
	case domain.TimeFrameRaw:
		return base
	case domain.TimeFrameMinute, domain.TimeFrameHour:
		return domain.DimensionTypeTimestamp
	case domain.TimeFrameDayOfWeekName, domain.TimeFrameMonthName:
		return domain.DimensionTypeString
	}
	return domain.DimensionTypeDate
}

// TimeIntervalSQL renders the adapter-specific expression for one interval of a base SQL expression.
func TimeIntervalSQL(adapter domain.AdapterType, baseType domain.DimensionType, sql string, interval domain.TimeFrame) string {
	switch interval {
	case domain.TimeFrameRaw:
		return sql
	case domain.TimeFrameDayOfWeekName:
		return datePartNameSQL(adapter, sql, true)
	case domain.TimeFrameMonthName:
		return datePartNameSQL(adapter, sql, false)
	}
	grain := string(interval)
	switch adapter {
	case domain.AdapterBigQuery:
		if baseType == domain.DimensionTypeDate {
			return fmt.Sprintf("DATE_TRUNC(%s, %s)", sql, grain)
		}
		return fmt.Sprintf("TIMESTAMP_TRUNC(%s, %s)", sql, grain)
	case domain.AdapterSnowflake, domain.AdapterDatabricks:
		return fmt.Sprintf("DATE_TRUNC('%s', %s)", grain, sql)
	default:
		return fmt.Sprintf("DATE_TRUNC('%s', %s)", strings.ToLower(grain), sql)
	}
}

func datePartNameSQL(adapter domain.AdapterType, sql string, dayOfWeek bool) string {
	switch adapter {
	case domain.AdapterBigQuery:
		if dayOfWeek {
			return fmt.Sprintf("FORMAT_DATETIME('%%A', %s)", sql)
		}
		return fmt.Sprintf("FORMAT_DATETIME('%%B', %s)", sql)
	case domain.AdapterDatabricks:
		if dayOfWeek {
			return fmt.Sprintf("DATE_FORMAT(%s, 'EEEE')", sql)
		}
		return fmt.Sprintf("DATE_FORMAT(%s, 'MMMM')", sql)
	case domain.AdapterPostgres, domain.AdapterRedshift:
		if dayOfWeek {
			return fmt.Sprintf("TO_CHAR(%s, 'FMDay')", sql)
		}
		return fmt.Sprintf("TO_CHAR(%s, 'FMMonth')", sql)
	case domain.AdapterTrino:
		if dayOfWeek {
			return fmt.Sprintf("date_format(%s, '%%W')", sql)
		}
		return fmt.Sprintf("date_format(%s, '%%M')", sql)
	default:
		if dayOfWeek {
			return fmt.Sprintf("DAYNAME(%s)", sql)
		}
		return fmt.Sprintf("MONTHNAME(%s)", sql)
	}
}

// normalizeTimestampSQL converts Snowflake timestamps to UTC wall-clock values.
func normalizeTimestampSQL(adapter domain.AdapterType, t domain.DimensionType, sql string) string {
	if adapter == domain.AdapterSnowflake && t == domain.DimensionTypeTimestamp {
		return fmt.Sprintf("TO_TIMESTAMP_NTZ(CONVERT_TIMEZONE('UTC', %s))", sql)
	}
	return sql
}

func defaultColumnSQL(column string) string {
	return fmt.Sprintf("${TABLE}.%s", column)
}

// resolveGroups returns the structured groups when present, else the flat group label.
func resolveGroups(groups domain.StringList, groupLabel string) []string {
	if len(groups) > 0 {
		return append([]string(nil), groups...)
	}
	if groupLabel != "" {
		return []string{groupLabel}
	}
	return []string{}
}

func convertURLs(urls []domain.DbtFieldURL) []domain.FieldURL {
	if len(urls) == 0 {
		return nil
	}
	out := make([]domain.FieldURL, len(urls))
	for i, u := range urls {
		out[i] = domain.FieldURL{URL: u.URL, Label: u.Label}
	}
	return out
}

type tableContext struct {
	adapter    domain.AdapterType
	meta       domain.DbtModelMeta
	spotlight  domain.SpotlightConfig
	tableName  string
	tableLabel string
}

// columnDimensions builds the base dimension of a column, its interval dimensions
// and its additional dimensions, in that order.
func (tc *tableContext) columnDimensions(column domain.DbtColumn, index *int) ([]domain.Dimension, error) {
	meta := column.Meta.Dimension
	if meta == nil {
		meta = &domain.DbtDimensionMeta{}
	}

	dimType := NormalizeWarehouseType(column.DataType)
	if meta.Type != "" {
		t, err := domain.ParseDimensionType(meta.Type)
		if err != nil {
			return nil, domain.ErrParse("Invalid dimension type %q on column %q in model %q", meta.Type, column.Name, tc.tableName)
		}
		dimType = t
	}

	rawSQL := meta.SQL
	if rawSQL == "" {
		rawSQL = defaultColumnSQL(column.Name)
	}
	label := meta.Label
	if label == "" {
		label = friendlyName(column.Name)
	}
	description := meta.Description
	if description == "" {
		description = column.Description
	}
	var categories []string
	if meta.Spotlight != nil {
		categories = append(categories, meta.Spotlight.Categories...)
	}

	base := domain.Dimension{
		FieldType:           domain.FieldTypeDimension,
		Name:                column.Name,
		Label:               label,
		Table:               tc.tableName,
		TableLabel:          tc.tableLabel,
		Type:                dimType,
		SQL:                 normalizeTimestampSQL(tc.adapter, dimType, rawSQL),
		Description:         description,
		Hidden:              meta.Hidden,
		Format:              meta.Format,
		Round:               meta.Round,
		Groups:              resolveGroups(meta.Groups, meta.GroupLabel),
		AIHint:              stringsOrNil(meta.AIHint),
		SpotlightCategories: categories,
		URLs:                convertURLs(meta.URLs),
		Index:               *index,
	}
	*index++

	intervals := tc.intervalsFor(dimType, meta.TimeIntervals)
	if len(intervals) > 0 {
		base.IsIntervalBase = true
	}
	dims := []domain.Dimension{base}

	for _, interval := range intervals {
		d := base
		d.Name = domain.TimeIntervalDimensionName(column.Name, interval)
		d.Label = fmt.Sprintf("%s %s", label, strings.ToLower(interval.Label()))
		d.Type = intervalDimensionType(dimType, interval)
		d.SQL = TimeIntervalSQL(tc.adapter, dimType, base.SQL, interval)
		d.TimeInterval = interval
		d.TimeIntervalBaseDimensionName = column.Name
		d.IsIntervalBase = false
		d.Groups = []string{column.Name}
		d.Index = *index
		*index++
		dims = append(dims, d)
	}

	for _, entry := range column.Meta.AdditionalDimensions {
		add, err := tc.additionalDimension(column, entry.Key, entry.Value, dimType, *index)
		if err != nil {
			return nil, err
		}
		*index++
		dims = append(dims, add)
	}
	return dims, nil
}

func (tc *tableContext) intervalsFor(t domain.DimensionType, setting domain.TimeIntervalsSetting) []domain.TimeFrame {
	if !t.IsTimeBased() || setting.Off {
		return nil
	}
	if setting.IsDefault() {
		return DefaultTimeIntervals(tc.adapter, t)
	}
	return setting.Intervals
}

func (tc *tableContext) additionalDimension(column domain.DbtColumn, name string, meta domain.DbtAdditionalDimensionMeta, fallback domain.DimensionType, index int) (domain.Dimension, error) {
	dimType := fallback
	if meta.Type != "" {
		t, err := domain.ParseDimensionType(meta.Type)
		if err != nil {
			return domain.Dimension{}, domain.ErrParse("Invalid type %q on additional dimension %q in model %q", meta.Type, name, tc.tableName)
		}
		dimType = t
	}
	sql := meta.SQL
	if sql == "" {
		sql = defaultColumnSQL(column.Name)
	}
	label := meta.Label
	if label == "" {
		label = friendlyName(name)
	}
	return domain.Dimension{
		FieldType:             domain.FieldTypeDimension,
		Name:                  name,
		Label:                 label,
		Table:                 tc.tableName,
		TableLabel:            tc.tableLabel,
		Type:                  dimType,
		SQL:                   sql,
		Description:           meta.Description,
		Hidden:                meta.Hidden,
		Format:                meta.Format,
		Round:                 meta.Round,
		Groups:                resolveGroups(meta.Groups, ""),
		AIHint:                stringsOrNil(meta.AIHint),
		URLs:                  convertURLs(meta.URLs),
		IsAdditionalDimension: true,
		Index:                 index,
	}, nil
}

func stringsOrNil(list domain.StringList) []string {
	if len(list) == 0 {
		return nil
	}
	return append([]string(nil), list...)
}
