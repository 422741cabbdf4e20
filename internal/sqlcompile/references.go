package sqlcompile

import (
	"regexp"
	"strings"

	"github.com/yu-iskw/lightdash/internal/domain"
)

var referenceRe = regexp.MustCompile(`\$\{([a-zA-Z0-9_.]+)\}`)

// replaceReferences rewrites every ${ref} in sql through fn, stopping at the first error.
func replaceReferences(sql string, fn func(ref string) (string, error)) (string, error) {
	matches := referenceRe.FindAllStringSubmatchIndex(sql, -1)
	if len(matches) == 0 {
		return sql, nil
	}
	var b strings.Builder
	last := 0
	for _, m := range matches {
		b.WriteString(sql[last:m[0]])
		out, err := fn(sql[m[2]:m[3]])
		if err != nil {
			return "", err
		}
		b.WriteString(out)
		last = m[1]
	}
	b.WriteString(sql[last:])
	return b.String(), nil
}

// resolver expands field SQL within one explore. It records every table an
// expanded expression touches so the compiler can render only the joins it needs.
type resolver struct {
	adapter  domain.AdapterType
	explore  *domain.Explore
	compiled map[string]string
	visiting map[string]bool
	tables   map[string]bool
}

func newResolver(adapter domain.AdapterType, explore *domain.Explore) *resolver {
	return &resolver{
		adapter:  adapter,
		explore:  explore,
		compiled: map[string]string{},
		visiting: map[string]bool{},
		tables:   map[string]bool{},
	}
}

// expand resolves references in sql written in the context of table. Metric
// references are only legal when allowMetrics is set.
func (r *resolver) expand(sql, table string, allowMetrics bool) (string, error) {
	return replaceReferences(sql, func(ref string) (string, error) {
		if ref == "TABLE" {
			r.tables[table] = true
			return QuoteIdentifier(r.adapter, table), nil
		}
		refTable, refName := table, ref
		if i := strings.Index(ref, "."); i >= 0 {
			refTable, refName = ref[:i], ref[i+1:]
		}
		t, ok := r.explore.Tables[refTable]
		if !ok {
			return "", domain.ErrValidation("reference ${%s} in table %q points at unknown table %q", ref, table, refTable)
		}
		if refName == "TABLE" {
			r.tables[refTable] = true
			return QuoteIdentifier(r.adapter, refTable), nil
		}
		if d, ok := t.Dimension(refName); ok {
			return r.dimensionSQL(*d)
		}
		if m, ok := t.Metric(refName); ok {
			if !allowMetrics {
				return "", domain.ErrValidation("dimension SQL in table %q cannot reference metric ${%s}", table, ref)
			}
			sql, err := r.metricSQL(*m)
			if err != nil {
				return "", err
			}
			if !m.Type.IsAggregate() {
				return "(" + sql + ")", nil
			}
			return sql, nil
		}
		return "", domain.ErrValidation("reference ${%s} in table %q does not match any field", ref, table)
	})
}

func (r *resolver) enter(id string) error {
	if r.visiting[id] {
		return domain.ErrValidation("circular reference detected at field %q", id)
	}
	r.visiting[id] = true
	return nil
}

func (r *resolver) dimensionSQL(d domain.Dimension) (string, error) {
	id := d.FieldID()
	if sql, ok := r.compiled[id]; ok {
		return sql, nil
	}
	if err := r.enter(id); err != nil {
		return "", err
	}
	defer delete(r.visiting, id)

	sql, err := r.expand(d.SQL, d.Table, false)
	if err != nil {
		return "", err
	}
	r.compiled[id] = sql
	return sql, nil
}

func (r *resolver) metricSQL(m domain.Metric) (string, error) {
	id := m.FieldID()
	if sql, ok := r.compiled[id]; ok {
		return sql, nil
	}
	if err := r.enter(id); err != nil {
		return "", err
	}
	defer delete(r.visiting, id)

	inner, err := r.expand(m.SQL, m.Table, !m.Type.IsAggregate())
	if err != nil {
		return "", err
	}
	if len(m.Filters) > 0 && m.Type.IsAggregate() {
		cond, err := r.metricFilterCondition(m)
		if err != nil {
			return "", err
		}
		inner = "CASE WHEN " + cond + " THEN " + inner + " ELSE NULL END"
	}
	sql, err := aggregate(r.adapter, m, inner)
	if err != nil {
		return "", err
	}
	r.compiled[id] = sql
	return sql, nil
}

// metricFilterCondition ANDs the metric's own filter rules. Targets name
// dimensions of the metric's table, or "<table>.<dimension>" for joined tables.
func (r *resolver) metricFilterCondition(m domain.Metric) (string, error) {
	parts := make([]string, 0, len(m.Filters))
	for _, f := range m.Filters {
		refTable, refName := m.Table, f.Target.FieldRef
		if i := strings.Index(refName, "."); i >= 0 {
			refTable, refName = refName[:i], refName[i+1:]
		}
		t, ok := r.explore.Tables[refTable]
		if !ok {
			return "", domain.ErrValidation("metric %q filters on unknown table %q", m.Name, refTable)
		}
		d, ok := t.Dimension(refName)
		if !ok {
			return "", domain.ErrValidation("metric %q filters on unknown dimension %q", m.Name, f.Target.FieldRef)
		}
		fieldSQL, err := r.dimensionSQL(*d)
		if err != nil {
			return "", err
		}
		cond, err := renderRule(r.adapter, fieldSQL, d.Type, f.Operator, f.Values)
		if err != nil {
			return "", err
		}
		parts = append(parts, "("+cond+")")
	}
	return strings.Join(parts, " AND "), nil
}
