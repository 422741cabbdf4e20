package semantic

import (
	"strings"

	"github.com/yu-iskw/lightdash/internal/domain"
)

// AttachOptions controls how strictly column types are resolved.
type AttachOptions struct {
	// ThrowOnMissing fails when a model's table or column is absent from the snapshot.
	ThrowOnMissing bool
	// CaseInsensitive also tries the upper-cased column name before declaring it missing.
	CaseInsensitive bool
}

// AttachTypesToModels annotates every column with its warehouse type taken from the
// schema snapshot keyed database -> schema -> table -> column. Models are copied, the
// input slice is left untouched. Without ThrowOnMissing, unresolved columns keep an
// empty type.
func AttachTypesToModels(models []domain.DbtNode, catalog domain.WarehouseCatalog, opts AttachOptions) ([]domain.DbtNode, error) {
	out := make([]domain.DbtNode, 0, len(models))
	for _, model := range models {
		typed, err := attachTypesToModel(model, catalog, opts)
		if err != nil {
			return nil, err
		}
		out = append(out, typed)
	}
	return out, nil
}

func attachTypesToModel(model domain.DbtNode, catalog domain.WarehouseCatalog, opts AttachOptions) (domain.DbtNode, error) {
	tableName := model.TableName()
	tableSchema, ok := catalog.Table(model.Database, model.Schema, tableName)
	if !ok {
		if opts.ThrowOnMissing {
			return domain.DbtNode{}, domain.ErrMissingCatalogEntry(
				"Model %q was expected in your target warehouse at \"%s.%s.%s\". Does the table exist in your target data warehouse?",
				tableName, model.Database, model.Schema, tableName)
		}
		return model, nil
	}

	columns := make(domain.OrderedMap[domain.DbtColumn], len(model.Columns))
	for i, entry := range model.Columns {
		col := entry.Value
		dataType, found := lookupColumnType(tableSchema, entry.Key, opts.CaseInsensitive)
		if !found && opts.ThrowOnMissing {
			return domain.DbtNode{}, domain.ErrMissingCatalogEntry(
				"Column %q from model %q does not exist.\n \"%s.%s\" was not found in your target warehouse at %s.%s.%s. Try rerunning dbt to update your warehouse.",
				entry.Key, tableName, tableName, entry.Key, model.Database, model.Schema, tableName)
		}
		if found {
			col.DataType = dataType
		}
		columns[i] = domain.OrderedEntry[domain.DbtColumn]{Key: entry.Key, Value: col}
	}
	model.Columns = columns
	return model, nil
}

func lookupColumnType(schema domain.WarehouseTableSchema, column string, caseInsensitive bool) (string, bool) {
	if t, ok := schema[column]; ok {
		return t, true
	}
	if caseInsensitive {
		if t, ok := schema[strings.ToUpper(column)]; ok {
			return t, true
		}
	}
	return "", false
}
