// Package semantic translates dbt artifacts into the semantic layer: typed columns,
// tables with dimensions and metrics, and explores.
package semantic

import (
	"fmt"

	"github.com/yu-iskw/lightdash/internal/domain"
)

// Translator converts a dbt project into explores for one warehouse adapter.
type Translator struct {
	adapter   domain.AdapterType
	spotlight domain.SpotlightConfig
	attach    AttachOptions
}

// NewTranslator creates a Translator.
func NewTranslator(adapter domain.AdapterType, spotlight domain.SpotlightConfig, attach AttachOptions) *Translator {
	return &Translator{adapter: adapter, spotlight: spotlight, attach: attach}
}

// TranslateResult holds the tables and explores of one translation pass.
type TranslateResult struct {
	Tables   []domain.Table
	Explores []domain.Explore
}

// Translate attaches warehouse types, converts every enabled model and builds explores.
// The first failing model aborts the whole pass.
func (t *Translator) Translate(manifest *domain.DbtManifest, catalog domain.WarehouseCatalog) (*TranslateResult, error) {
	models, err := AttachTypesToModels(manifest.Models(), catalog, t.attach)
	if err != nil {
		return nil, err
	}

	allMetrics := manifest.MetricList()
	tables := make([]domain.Table, 0, len(models))
	for _, model := range models {
		var modelMetrics []domain.DbtMetric
		for _, m := range allMetrics {
			if m.DependsOnModel(model.UniqueID) {
				modelMetrics = append(modelMetrics, m)
			}
		}
		table, err := ConvertTable(t.adapter, model, modelMetrics, t.spotlight)
		if err != nil {
			return nil, fmt.Errorf("convert model %q: %w", model.Name, err)
		}
		tables = append(tables, *table)
	}

	explores, err := BuildExplores(tables, models)
	if err != nil {
		return nil, err
	}
	return &TranslateResult{Tables: tables, Explores: explores}, nil
}

// TableRefs lists the warehouse relations the enabled models of a manifest expect.
func TableRefs(manifest *domain.DbtManifest) []domain.TableRef {
	models := manifest.Models()
	refs := make([]domain.TableRef, 0, len(models))
	for _, m := range models {
		refs = append(refs, domain.TableRef{Database: m.Database, Schema: m.Schema, Table: m.TableName()})
	}
	return refs
}
