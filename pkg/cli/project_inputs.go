package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/yu-iskw/lightdash/internal/config"
	"github.com/yu-iskw/lightdash/internal/domain"
	"github.com/yu-iskw/lightdash/internal/service/artifact"
	"github.com/yu-iskw/lightdash/internal/service/catalog"
	"github.com/yu-iskw/lightdash/internal/service/semantic"
	"github.com/yu-iskw/lightdash/internal/warehouse"
)

// projectInputs are the artifact locations shared by the offline commands.
type projectInputs struct {
	manifest     string
	catalog      string
	adapter      string
	config       string
	warehouseDSN string
	strict       bool
}

func (in *projectInputs) addFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&in.manifest, "manifest", "target/manifest.json", "Path or URI of the dbt manifest.json")
	cmd.Flags().StringVar(&in.catalog, "catalog", "", "Path or URI of the dbt catalog.json")
	cmd.Flags().StringVar(&in.adapter, "adapter", "", "Warehouse adapter (defaults to the manifest's adapter_type)")
	cmd.Flags().StringVar(&in.config, "config", "", "Path to lightdash.config.yml")
	cmd.Flags().StringVar(&in.warehouseDSN, "warehouse", "", "DuckDB database to read column types from when no catalog is given")
	cmd.Flags().BoolVar(&in.strict, "strict", true, "Fail when a model column is missing from the schema snapshot")
}

// compiled is the outcome of translating one dbt project.
type compiled struct {
	adapter domain.AdapterType
	result  *semantic.TranslateResult
}

func (in *projectInputs) translate(ctx context.Context) (*compiled, error) {
	reader := artifact.NewReader(config.StorageFromEnv().ArtifactOptions())

	manifest, err := catalog.ReadManifest(ctx, reader, in.manifest)
	if err != nil {
		return nil, err
	}

	adapterName := in.adapter
	if adapterName == "" {
		adapterName = manifest.Metadata.AdapterType
	}
	if adapterName == "" {
		return nil, domain.ErrValidation("manifest has no adapter_type; pass --adapter")
	}
	adapter, err := domain.ParseAdapterType(adapterName)
	if err != nil {
		return nil, err
	}

	spotlight := domain.DefaultSpotlightConfig()
	if in.config != "" {
		if spotlight, err = config.LoadLightdashConfig(in.config); err != nil {
			return nil, err
		}
	}

	snapshot, err := in.schemaSnapshot(ctx, reader, manifest)
	if err != nil {
		return nil, err
	}

	attach := semantic.AttachOptions{
		ThrowOnMissing:  in.strict,
		CaseInsensitive: adapter == domain.AdapterSnowflake,
	}
	result, err := semantic.NewTranslator(adapter, spotlight, attach).Translate(manifest, snapshot)
	if err != nil {
		return nil, err
	}
	return &compiled{adapter: adapter, result: result}, nil
}

func (in *projectInputs) schemaSnapshot(ctx context.Context, reader domain.ArtifactReader, manifest *domain.DbtManifest) (domain.WarehouseCatalog, error) {
	if in.catalog != "" {
		c, err := catalog.ReadCatalog(ctx, reader, in.catalog)
		if err != nil {
			return nil, err
		}
		return c.WarehouseCatalog(), nil
	}
	if in.warehouseDSN == "" {
		return domain.WarehouseCatalog{}, nil
	}
	client, err := warehouse.OpenDuckDB(in.warehouseDSN)
	if err != nil {
		return nil, fmt.Errorf("open warehouse: %w", err)
	}
	defer client.Close() //nolint:errcheck
	return client.Catalog(ctx, semantic.TableRefs(manifest))
}

// explore returns the named explore of a compiled project.
func (c *compiled) explore(name string) (*domain.Explore, error) {
	for i := range c.result.Explores {
		if c.result.Explores[i].Name == name {
			return &c.result.Explores[i], nil
		}
	}
	return nil, domain.ErrNotFound("explore %q not found", name)
}
