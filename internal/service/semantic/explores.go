package semantic

import (
	"strings"

	"github.com/yu-iskw/lightdash/internal/domain"
)

// BuildExplores produces one explore per table. Each explore holds its base table plus
// the tables named in the model's meta.joins, renamed to the join alias when one is given.
func BuildExplores(tables []domain.Table, models []domain.DbtNode) ([]domain.Explore, error) {
	byName := make(map[string]domain.Table, len(tables))
	for _, t := range tables {
		byName[t.Name] = t
	}

	explores := make([]domain.Explore, 0, len(models))
	for _, model := range models {
		base, ok := byName[model.Name]
		if !ok {
			continue
		}
		meta := model.Meta.Merge(model.Config.Meta)
		explore := domain.Explore{
			Name:      base.Name,
			Label:     base.Label,
			BaseTable: base.Name,
			Tables:    map[string]domain.Table{base.Name: base},
		}
		for _, j := range meta.Joins {
			joined, ok := byName[j.Join]
			if !ok {
				return nil, domain.ErrParse("Model %q has a join to %q, which does not exist or failed to compile", model.Name, j.Join)
			}
			joinType := domain.JoinTypeLeft
			if j.Type != "" {
				switch t := domain.JoinType(strings.ToLower(j.Type)); t {
				case domain.JoinTypeLeft, domain.JoinTypeInner, domain.JoinTypeRight, domain.JoinTypeFull:
					joinType = t
				default:
					return nil, domain.ErrParse("Invalid join type %q in model %q", j.Type, model.Name)
				}
			}
			alias := j.Join
			if j.Alias != "" {
				alias = j.Alias
				joined = aliasTable(joined, alias, j.Label)
			}
			if _, dup := explore.Tables[alias]; dup {
				return nil, domain.ErrParse("Model %q joins %q more than once, use an alias", model.Name, alias)
			}
			if strings.TrimSpace(j.SQLOn) == "" {
				return nil, domain.ErrParse("Join %q in model %q requires sql_on", alias, model.Name)
			}
			explore.Tables[alias] = joined
			explore.Joins = append(explore.Joins, domain.CompiledJoin{Table: alias, SQLOn: j.SQLOn, Type: joinType})
		}
		explores = append(explores, explore)
	}
	return explores, nil
}

// aliasTable copies a table under a new name, re-pointing every field at the alias.
func aliasTable(t domain.Table, alias, label string) domain.Table {
	out := t
	out.Name = alias
	if label != "" {
		out.Label = label
	} else {
		out.Label = friendlyName(alias)
	}
	out.Dimensions = make([]domain.Dimension, len(t.Dimensions))
	for i, d := range t.Dimensions {
		d.Table = alias
		d.TableLabel = out.Label
		out.Dimensions[i] = d
	}
	out.Metrics = make([]domain.Metric, len(t.Metrics))
	for i, m := range t.Metrics {
		m.Table = alias
		m.TableLabel = out.Label
		out.Metrics[i] = m
	}
	return out
}
