// Package sqlcompile turns a structured metric query over a compiled explore
// into a single warehouse SQL statement.
package sqlcompile

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/yu-iskw/lightdash/internal/domain"
)

// Compiler renders metric queries in one warehouse dialect.
type Compiler struct {
	adapter domain.AdapterType
}

// NewCompiler creates a compiler for the given adapter.
func NewCompiler(adapter domain.AdapterType) *Compiler {
	return &Compiler{adapter: adapter}
}

// CompiledQuery is the SQL of a metric query plus the fields it selects, keyed by field id.
type CompiledQuery struct {
	SQL    string
	Fields map[string]domain.Field
}

// Compile renders q against explore.
//
// Shape:
//
//	SELECT <dims>, <metrics> FROM <base> AS "<base>" [<joins>]
//	[WHERE ...] [GROUP BY ordinals] [HAVING ...] [ORDER BY ...] [LIMIT n]
//
// Table calculations wrap the statement in a CTE and are evaluated over its columns.
func (c *Compiler) Compile(explore *domain.Explore, q domain.MetricQuery) (*CompiledQuery, error) {
	if explore == nil {
		return nil, domain.ErrValidation("explore is required")
	}
	base, ok := explore.Tables[explore.BaseTable]
	if !ok {
		return nil, domain.ErrValidation("explore %q has no base table %q", explore.Name, explore.BaseTable)
	}
	if len(q.Dimensions) == 0 && len(q.Metrics) == 0 {
		return nil, domain.ErrValidation("query must select at least one dimension or metric")
	}

	r := newResolver(c.adapter, explore)
	r.tables[base.Name] = true
	fields := make(map[string]domain.Field, len(q.Dimensions)+len(q.Metrics))

	var selects []string
	for _, id := range q.Dimensions {
		f, ok := explore.FindField(id)
		if !ok {
			return nil, domain.ErrValidation("dimension %q not found in explore %q", id, explore.Name)
		}
		d, ok := f.(domain.Dimension)
		if !ok {
			return nil, domain.ErrValidation("field %q is not a dimension", id)
		}
		sql, err := r.dimensionSQL(d)
		if err != nil {
			return nil, err
		}
		selects = append(selects, fmt.Sprintf("  %s AS %s", sql, QuoteIdentifier(c.adapter, id)))
		fields[id] = d
	}
	for _, id := range q.Metrics {
		f, ok := explore.FindField(id)
		if !ok {
			return nil, domain.ErrValidation("metric %q not found in explore %q", id, explore.Name)
		}
		m, ok := f.(domain.Metric)
		if !ok {
			return nil, domain.ErrValidation("field %q is not a metric", id)
		}
		sql, err := r.metricSQL(m)
		if err != nil {
			return nil, err
		}
		selects = append(selects, fmt.Sprintf("  %s AS %s", sql, QuoteIdentifier(c.adapter, id)))
		fields[id] = m
	}

	where, err := renderGroup(c.adapter, q.Filters.Dimensions, func(id string) (string, domain.DimensionType, error) {
		f, ok := explore.FindField(id)
		if !ok {
			return "", "", domain.ErrValidation("filter field %q not found in explore %q", id, explore.Name)
		}
		d, ok := f.(domain.Dimension)
		if !ok {
			return "", "", domain.ErrValidation("dimension filter targets metric %q", id)
		}
		sql, err := r.dimensionSQL(d)
		return sql, d.Type, err
	})
	if err != nil {
		return nil, err
	}
	having, err := renderGroup(c.adapter, q.Filters.Metrics, func(id string) (string, domain.DimensionType, error) {
		f, ok := explore.FindField(id)
		if !ok {
			return "", "", domain.ErrValidation("filter field %q not found in explore %q", id, explore.Name)
		}
		m, ok := f.(domain.Metric)
		if !ok {
			return "", "", domain.ErrValidation("metric filter targets dimension %q", id)
		}
		sql, err := r.metricSQL(m)
		return sql, metricValueType(m.Type), err
	})
	if err != nil {
		return nil, err
	}

	joins, wheres, err := c.resolveJoins(r, explore)
	if err != nil {
		return nil, err
	}
	if where != "" {
		wheres = append(wheres, where)
	}

	var b strings.Builder
	b.WriteString("SELECT\n")
	b.WriteString(strings.Join(selects, ",\n"))
	fmt.Fprintf(&b, "\nFROM %s AS %s", base.SQLTable, QuoteIdentifier(c.adapter, base.Name))
	for _, j := range joins {
		b.WriteString("\n")
		b.WriteString(j)
	}
	if len(wheres) > 0 {
		b.WriteString("\nWHERE ")
		b.WriteString(strings.Join(wheres, " AND "))
	}
	if len(q.Dimensions) > 0 {
		ordinals := make([]string, len(q.Dimensions))
		for i := range q.Dimensions {
			ordinals[i] = strconv.Itoa(i + 1)
		}
		b.WriteString("\nGROUP BY ")
		b.WriteString(strings.Join(ordinals, ","))
	}
	if having != "" {
		b.WriteString("\nHAVING ")
		b.WriteString(having)
	}

	sql := b.String()
	if len(q.TableCalculations) > 0 {
		sql, err = c.wrapTableCalculations(sql, q, fields)
		if err != nil {
			return nil, err
		}
	}

	orderBy, err := c.orderBy(q, fields)
	if err != nil {
		return nil, err
	}
	sql += orderBy
	if q.Limit > 0 {
		sql += fmt.Sprintf("\nLIMIT %d", q.Limit)
	}
	return &CompiledQuery{SQL: sql, Fields: fields}, nil
}

// resolveJoins renders the joins the query touches, in declared order. A join's
// sql_on and a table's sql_where can pull in further tables, so it iterates to a fixpoint.
func (c *Compiler) resolveJoins(r *resolver, explore *domain.Explore) ([]string, []string, error) {
	order := make([]string, 0, len(explore.Joins)+1)
	order = append(order, explore.BaseTable)
	joinByTable := make(map[string]domain.CompiledJoin, len(explore.Joins))
	for _, j := range explore.Joins {
		if _, ok := explore.Tables[j.Table]; !ok {
			return nil, nil, domain.ErrValidation("explore %q joins unknown table %q", explore.Name, j.Table)
		}
		order = append(order, j.Table)
		joinByTable[j.Table] = j
	}

	on := map[string]string{}
	where := map[string]string{}
	done := map[string]bool{}
	for changed := true; changed; {
		changed = false
		for _, name := range order {
			if !r.tables[name] || done[name] {
				continue
			}
			done[name] = true
			changed = true
			if t := explore.Tables[name]; strings.TrimSpace(t.SQLWhere) != "" {
				sql, err := r.expand(t.SQLWhere, name, false)
				if err != nil {
					return nil, nil, err
				}
				where[name] = "(" + sql + ")"
			}
			if j, ok := joinByTable[name]; ok {
				sql, err := r.expand(j.SQLOn, explore.BaseTable, false)
				if err != nil {
					return nil, nil, err
				}
				on[name] = sql
			}
		}
	}

	var joins, wheres []string
	for _, name := range order {
		if !done[name] {
			continue
		}
		if w, ok := where[name]; ok {
			wheres = append(wheres, w)
		}
		j, ok := joinByTable[name]
		if !ok {
			continue
		}
		joins = append(joins, fmt.Sprintf("%s %s AS %s\n  ON %s",
			joinKeyword(j.Type), explore.Tables[name].SQLTable, QuoteIdentifier(c.adapter, name), on[name]))
	}
	return joins, wheres, nil
}

func joinKeyword(t domain.JoinType) string {
	switch t {
	case domain.JoinTypeInner:
		return "INNER JOIN"
	case domain.JoinTypeRight:
		return "RIGHT OUTER JOIN"
	case domain.JoinTypeFull:
		return "FULL OUTER JOIN"
	}
	return "LEFT OUTER JOIN"
}

func (c *Compiler) orderBy(q domain.MetricQuery, fields map[string]domain.Field) (string, error) {
	if len(q.Sorts) == 0 {
		return "", nil
	}
	calcs := make(map[string]bool, len(q.TableCalculations))
	for _, tc := range q.TableCalculations {
		calcs[tc.Name] = true
	}
	parts := make([]string, 0, len(q.Sorts))
	for _, s := range q.Sorts {
		if _, ok := fields[s.FieldID]; !ok && !calcs[s.FieldID] {
			return "", domain.ErrValidation("cannot sort by %q, it is not selected", s.FieldID)
		}
		part := QuoteIdentifier(c.adapter, s.FieldID)
		if s.Descending {
			part += " DESC"
		}
		parts = append(parts, part)
	}
	return "\nORDER BY " + strings.Join(parts, ", "), nil
}

// wrapTableCalculations evaluates calculations over the selected columns.
// Inside a calculation ${table.field} names a selected field.
func (c *Compiler) wrapTableCalculations(inner string, q domain.MetricQuery, fields map[string]domain.Field) (string, error) {
	calcs := make([]string, 0, len(q.TableCalculations))
	for _, tc := range q.TableCalculations {
		if tc.Name == "" {
			return "", domain.ErrValidation("table calculation name is required")
		}
		sql, err := replaceReferences(tc.SQL, func(ref string) (string, error) {
			i := strings.Index(ref, ".")
			if i < 0 {
				return "", domain.ErrValidation("table calculation %q reference ${%s} must be <table>.<field>", tc.Name, ref)
			}
			id := domain.GetItemID(ref[:i], ref[i+1:])
			if _, ok := fields[id]; !ok {
				return "", domain.ErrValidation("table calculation %q references %q, which is not selected", tc.Name, id)
			}
			return QuoteIdentifier(c.adapter, id), nil
		})
		if err != nil {
			return "", err
		}
		calcs = append(calcs, fmt.Sprintf("  %s AS %s", sql, QuoteIdentifier(c.adapter, tc.Name)))
	}
	return fmt.Sprintf("WITH metrics AS (\n%s\n)\nSELECT\n  *,\n%s\nFROM metrics", inner, strings.Join(calcs, ",\n")), nil
}

// metricValueType picks the literal typing for HAVING values.
func metricValueType(t domain.MetricType) domain.DimensionType {
	switch t {
	case domain.MetricTypeDate:
		return domain.DimensionTypeDate
	case domain.MetricTypeTimestamp:
		return domain.DimensionTypeTimestamp
	case domain.MetricTypeString:
		return domain.DimensionTypeString
	case domain.MetricTypeBoolean:
		return domain.DimensionTypeBoolean
	}
	return domain.DimensionTypeNumber
}
