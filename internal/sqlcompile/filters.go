package sqlcompile

import (
	"fmt"
	"strings"

	"github.com/yu-iskw/lightdash/internal/domain"
)

// renderRule renders one predicate over an already-compiled field expression.
func renderRule(adapter domain.AdapterType, fieldSQL string, fieldType domain.DimensionType, op domain.FilterOperator, values []any) (string, error) {
	switch op {
	case domain.FilterOperatorIsNull:
		return fmt.Sprintf("(%s) IS NULL", fieldSQL), nil
	case domain.FilterOperatorNotNull:
		return fmt.Sprintf("(%s) IS NOT NULL", fieldSQL), nil
	}

	lits := make([]string, 0, len(values))
	for _, v := range values {
		l, err := literal(adapter, v, fieldType)
		if err != nil {
			return "", err
		}
		lits = append(lits, l)
	}

	switch op {
	case domain.FilterOperatorEquals:
		switch len(lits) {
		case 0:
			return "1=1", nil
		case 1:
			return fmt.Sprintf("(%s) = %s", fieldSQL, lits[0]), nil
		}
		return fmt.Sprintf("(%s) IN (%s)", fieldSQL, strings.Join(lits, ", ")), nil
	case domain.FilterOperatorNotEquals:
		switch len(lits) {
		case 0:
			return "1=1", nil
		case 1:
			return fmt.Sprintf("((%s) != %s OR (%s) IS NULL)", fieldSQL, lits[0], fieldSQL), nil
		}
		return fmt.Sprintf("((%s) NOT IN (%s) OR (%s) IS NULL)", fieldSQL, strings.Join(lits, ", "), fieldSQL), nil
	case domain.FilterOperatorStartsWith, domain.FilterOperatorEndsWith,
		domain.FilterOperatorInclude, domain.FilterOperatorNotInclude:
		return renderLike(adapter, fieldSQL, op, values), nil
	case domain.FilterOperatorLessThan, domain.FilterOperatorLessThanOrEqual,
		domain.FilterOperatorGreaterThan, domain.FilterOperatorGreaterThanOrEqual:
		if len(lits) == 0 {
			return "", domain.ErrValidation("operator %s requires a value", op)
		}
		return fmt.Sprintf("(%s) %s %s", fieldSQL, comparisonSymbols[op], lits[0]), nil
	case domain.FilterOperatorInBetween:
		if len(lits) != 2 {
			return "", domain.ErrValidation("operator %s requires exactly two values", op)
		}
		return fmt.Sprintf("(%s) >= %s AND (%s) <= %s", fieldSQL, lits[0], fieldSQL, lits[1]), nil
	case domain.FilterOperatorNotInBetween:
		if len(lits) != 2 {
			return "", domain.ErrValidation("operator %s requires exactly two values", op)
		}
		return fmt.Sprintf("((%s) < %s OR (%s) > %s)", fieldSQL, lits[0], fieldSQL, lits[1]), nil
	}
	return "", domain.ErrValidation("unsupported filter operator %q", op)
}

var comparisonSymbols = map[domain.FilterOperator]string{
	domain.FilterOperatorLessThan:           "<",
	domain.FilterOperatorLessThanOrEqual:    "<=",
	domain.FilterOperatorGreaterThan:        ">",
	domain.FilterOperatorGreaterThanOrEqual: ">=",
}

func renderLike(adapter domain.AdapterType, fieldSQL string, op domain.FilterOperator, values []any) string {
	if len(values) == 0 {
		return "1=1"
	}
	parts := make([]string, 0, len(values))
	for _, v := range values {
		s := fmt.Sprint(v)
		switch op {
		case domain.FilterOperatorStartsWith:
			parts = append(parts, fmt.Sprintf("(%s) LIKE %s", fieldSQL, QuoteLiteral(adapter, s+"%")))
		case domain.FilterOperatorEndsWith:
			parts = append(parts, fmt.Sprintf("(%s) LIKE %s", fieldSQL, QuoteLiteral(adapter, "%"+s)))
		case domain.FilterOperatorInclude:
			parts = append(parts, fmt.Sprintf("LOWER(%s) LIKE LOWER(%s)", fieldSQL, QuoteLiteral(adapter, "%"+s+"%")))
		case domain.FilterOperatorNotInclude:
			parts = append(parts, fmt.Sprintf("LOWER(%s) NOT LIKE LOWER(%s)", fieldSQL, QuoteLiteral(adapter, "%"+s+"%")))
		}
	}
	if len(parts) == 1 {
		return parts[0]
	}
	joiner := " OR "
	if op == domain.FilterOperatorNotInclude {
		joiner = " AND "
	}
	return "(" + strings.Join(parts, joiner) + ")"
}

// fieldCompiler resolves a filter target to its SQL and type.
type fieldCompiler func(fieldID string) (sql string, fieldType domain.DimensionType, err error)

// renderGroup renders a filter tree. Empty groups render as "".
func renderGroup(adapter domain.AdapterType, g *domain.FilterGroup, compile fieldCompiler) (string, error) {
	if g == nil {
		return "", nil
	}
	joiner := " AND "
	if g.And == nil && g.Or != nil {
		joiner = " OR "
	}
	var parts []string
	for _, item := range g.Items() {
		switch {
		case item.Group != nil:
			sql, err := renderGroup(adapter, item.Group, compile)
			if err != nil {
				return "", err
			}
			if sql != "" {
				parts = append(parts, sql)
			}
		case item.Rule != nil:
			fieldSQL, fieldType, err := compile(item.Rule.Target.FieldID)
			if err != nil {
				return "", err
			}
			sql, err := renderRule(adapter, fieldSQL, fieldType, item.Rule.Operator, item.Rule.Values)
			if err != nil {
				return "", err
			}
			parts = append(parts, "("+sql+")")
		}
	}
	switch len(parts) {
	case 0:
		return "", nil
	case 1:
		return parts[0], nil
	}
	return "(" + strings.Join(parts, joiner) + ")", nil
}

// aggregate wraps a metric's expanded SQL in its aggregate function.
func aggregate(adapter domain.AdapterType, m domain.Metric, sql string) (string, error) {
	switch m.Type {
	case domain.MetricTypeCount:
		return fmt.Sprintf("COUNT(%s)", sql), nil
	case domain.MetricTypeCountDistinct:
		return fmt.Sprintf("COUNT(DISTINCT %s)", sql), nil
	case domain.MetricTypeSum:
		return fmt.Sprintf("SUM(%s)", sql), nil
	case domain.MetricTypeAverage:
		return fmt.Sprintf("AVG(%s)", sql), nil
	case domain.MetricTypeMin:
		return fmt.Sprintf("MIN(%s)", sql), nil
	case domain.MetricTypeMax:
		return fmt.Sprintf("MAX(%s)", sql), nil
	case domain.MetricTypeMedian:
		return percentileSQL(adapter, sql, 50), nil
	case domain.MetricTypePercentile:
		p := 50.0
		if m.Percentile != nil {
			p = *m.Percentile
		}
		if p < 0 || p > 100 {
			return "", domain.ErrValidation("percentile of metric %q must be between 0 and 100", m.Name)
		}
		return percentileSQL(adapter, sql, p), nil
	}
	return sql, nil
}

func percentileSQL(adapter domain.AdapterType, sql string, p float64) string {
	fraction := p / 100
	switch adapter {
	case domain.AdapterDuckDB:
		return fmt.Sprintf("QUANTILE_CONT(%s, %g)", sql, fraction)
	case domain.AdapterBigQuery:
		return fmt.Sprintf("APPROX_QUANTILES(%s, 100)[OFFSET(%d)]", sql, int(p))
	case domain.AdapterDatabricks:
		return fmt.Sprintf("PERCENTILE(%s, %g)", sql, fraction)
	case domain.AdapterTrino:
		return fmt.Sprintf("APPROX_PERCENTILE(%s, %g)", sql, fraction)
	}
	return fmt.Sprintf("PERCENTILE_CONT(%g) WITHIN GROUP (ORDER BY %s)", fraction, sql)
}
