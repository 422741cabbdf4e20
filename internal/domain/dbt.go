package domain

import "sort"

// DbtManifest is the subset of dbt's manifest.json this service reads.
type DbtManifest struct {
	Metadata DbtManifestMetadata  `json:"metadata"`
	Nodes    map[string]DbtNode   `json:"nodes"`
	Metrics  map[string]DbtMetric `json:"metrics"`
}

// DbtManifestMetadata identifies the dbt version and adapter that produced a manifest.
type DbtManifestMetadata struct {
	DbtSchemaVersion string `json:"dbt_schema_version"`
	DbtVersion       string `json:"dbt_version"`
	AdapterType      string `json:"adapter_type"`
}

// Models returns the enabled, non-ephemeral model nodes ordered by unique id.
func (m *DbtManifest) Models() []DbtNode {
	out := make([]DbtNode, 0, len(m.Nodes))
	for _, n := range m.Nodes {
		if n.ResourceType != "model" {
			continue
		}
		if n.Config.Enabled != nil && !*n.Config.Enabled {
			continue
		}
		if n.Config.Materialized == "ephemeral" {
			continue
		}
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UniqueID < out[j].UniqueID })
	return out
}

// MetricList returns every dbt metric ordered by unique id.
func (m *DbtManifest) MetricList() []DbtMetric {
	out := make([]DbtMetric, 0, len(m.Metrics))
	for _, metric := range m.Metrics {
		out = append(out, metric)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UniqueID < out[j].UniqueID })
	return out
}

// DbtNode is one model node of the manifest (the semantic model input).
type DbtNode struct {
	UniqueID     string                `json:"unique_id"`
	ResourceType string                `json:"resource_type"`
	Name         string                `json:"name"`
	Alias        string                `json:"alias,omitempty"`
	Database     string                `json:"database"`
	Schema       string                `json:"schema"`
	RelationName string                `json:"relation_name"`
	Description  string                `json:"description,omitempty"`
	Columns      OrderedMap[DbtColumn] `json:"columns"`
	Meta         DbtModelMeta          `json:"meta"`
	Config       DbtNodeConfig         `json:"config"`
	Tags         []string              `json:"tags,omitempty"`
	DependsOn    DbtDependsOn          `json:"depends_on"`
	PatchPath    string                `json:"patch_path,omitempty"`
}

// TableName is the warehouse relation name used for schema lookups: alias when set, else name.
func (n *DbtNode) TableName() string {
	if n.Alias != "" {
		return n.Alias
	}
	return n.Name
}

// Column returns the column with the given key.
func (n *DbtNode) Column(name string) (DbtColumn, bool) {
	return n.Columns.Get(name)
}

// DbtNodeConfig is the node config block. Its meta overrides the node meta key by key.
type DbtNodeConfig struct {
	Enabled      *bool        `json:"enabled,omitempty"`
	Materialized string       `json:"materialized,omitempty"`
	Meta         DbtModelMeta `json:"meta"`
	Tags         []string     `json:"tags,omitempty"`
}

// DbtDependsOn lists upstream unique ids.
type DbtDependsOn struct {
	Nodes []string `json:"nodes"`
}

// DbtColumn is one column of a model, annotated with its warehouse type after type attachment.
type DbtColumn struct {
	Name        string        `json:"name"`
	Description string        `json:"description,omitempty"`
	DataType    string        `json:"data_type,omitempty"`
	Meta        DbtColumnMeta `json:"meta"`
}

// DbtColumnMeta is the meta block on a column.
type DbtColumnMeta struct {
	Dimension            *DbtDimensionMeta                      `json:"dimension,omitempty"`
	Metrics              OrderedMap[DbtMetricMeta]              `json:"metrics,omitempty"`
	AdditionalDimensions OrderedMap[DbtAdditionalDimensionMeta] `json:"additional_dimensions,omitempty"`
}

// DbtSpotlightMeta is a spotlight block on a model or metric.
type DbtSpotlightMeta struct {
	Visibility SpotlightVisibility `json:"visibility,omitempty"`
	Categories StringList          `json:"categories,omitempty"`
}

// DbtFieldURL is a link template attached to a dimension.
type DbtFieldURL struct {
	URL   string `json:"url"`
	Label string `json:"label"`
}

// DbtDimensionMeta is the meta.dimension block of a column.
type DbtDimensionMeta struct {
	Type               string               `json:"type,omitempty"`
	Label              string               `json:"label,omitempty"`
	SQL                string               `json:"sql,omitempty"`
	Description        string               `json:"description,omitempty"`
	Hidden             bool                 `json:"hidden,omitempty"`
	Format             string               `json:"format,omitempty"`
	Round              *int                 `json:"round,omitempty"`
	GroupLabel         string               `json:"group_label,omitempty"`
	Groups             StringList           `json:"groups,omitempty"`
	TimeIntervals      TimeIntervalsSetting `json:"time_intervals"`
	AIHint             StringList           `json:"ai_hint,omitempty"`
	URLs               []DbtFieldURL        `json:"urls,omitempty"`
	Spotlight          *DbtSpotlightMeta    `json:"spotlight,omitempty"`
	DefaultAggregation string               `json:"default_aggregation,omitempty"`
}

// DbtAdditionalDimensionMeta declares an extra dimension over the same column.
type DbtAdditionalDimensionMeta struct {
	Type        string        `json:"type,omitempty"`
	Label       string        `json:"label,omitempty"`
	SQL         string        `json:"sql,omitempty"`
	Description string        `json:"description,omitempty"`
	Hidden      bool          `json:"hidden,omitempty"`
	Format      string        `json:"format,omitempty"`
	Round       *int          `json:"round,omitempty"`
	Groups      StringList    `json:"groups,omitempty"`
	AIHint      StringList    `json:"ai_hint,omitempty"`
	URLs        []DbtFieldURL `json:"urls,omitempty"`
}

// DbtDefaultTimeDimensionMeta is a default_time_dimension block.
type DbtDefaultTimeDimensionMeta struct {
	Field    string `json:"field"`
	Interval string `json:"interval"`
}

// DbtMetricMeta is a metric declared in a column or model meta block.
type DbtMetricMeta struct {
	Type                 string                       `json:"type"`
	Label                string                       `json:"label,omitempty"`
	SQL                  string                       `json:"sql,omitempty"`
	Description          string                       `json:"description,omitempty"`
	Hidden               bool                         `json:"hidden,omitempty"`
	Format               string                       `json:"format,omitempty"`
	Round                *int                         `json:"round,omitempty"`
	Percentile           *float64                     `json:"percentile,omitempty"`
	GroupLabel           string                       `json:"group_label,omitempty"`
	Groups               StringList                   `json:"groups,omitempty"`
	Filters              []map[string]any             `json:"filters,omitempty"`
	AIHint               StringList                   `json:"ai_hint,omitempty"`
	Spotlight            *DbtSpotlightMeta            `json:"spotlight,omitempty"`
	DefaultTimeDimension *DbtDefaultTimeDimensionMeta `json:"default_time_dimension,omitempty"`
}

// DbtJoinMeta declares a join from a model's explore to another model.
type DbtJoinMeta struct {
	Join  string `json:"join"`
	Alias string `json:"alias,omitempty"`
	Label string `json:"label,omitempty"`
	SQLOn string `json:"sql_on"`
	Type  string `json:"type,omitempty"`
}

// DbtModelMeta is the meta block on a model (or its config).
type DbtModelMeta struct {
	Label                string                       `json:"label,omitempty"`
	GroupLabel           string                       `json:"group_label,omitempty"`
	GroupDetails         map[string]GroupDetail       `json:"group_details,omitempty"`
	OrderFieldsBy        string                       `json:"order_fields_by,omitempty"`
	SQLFilter            string                       `json:"sql_filter,omitempty"`
	SQLWhere             string                       `json:"sql_where,omitempty"`
	PrimaryKey           StringList                   `json:"primary_key,omitempty"`
	Metrics              OrderedMap[DbtMetricMeta]    `json:"metrics,omitempty"`
	Joins                []DbtJoinMeta                `json:"joins,omitempty"`
	AIHint               StringList                   `json:"ai_hint,omitempty"`
	Spotlight            *DbtSpotlightMeta            `json:"spotlight,omitempty"`
	DefaultTimeDimension *DbtDefaultTimeDimensionMeta `json:"default_time_dimension,omitempty"`
	DisableAutoMetrics   bool                         `json:"disable_auto_metrics,omitempty"`
}

// Merge overlays the non-empty keys of override onto m and returns the result.
func (m DbtModelMeta) Merge(override DbtModelMeta) DbtModelMeta {
	out := m
	if override.Label != "" {
		out.Label = override.Label
	}
	if override.GroupLabel != "" {
		out.GroupLabel = override.GroupLabel
	}
	if override.GroupDetails != nil {
		out.GroupDetails = override.GroupDetails
	}
	if override.OrderFieldsBy != "" {
		out.OrderFieldsBy = override.OrderFieldsBy
	}
	if override.SQLFilter != "" {
		out.SQLFilter = override.SQLFilter
	}
	if override.SQLWhere != "" {
		out.SQLWhere = override.SQLWhere
	}
	if len(override.PrimaryKey) > 0 {
		out.PrimaryKey = override.PrimaryKey
	}
	if len(override.Metrics) > 0 {
		out.Metrics = override.Metrics
	}
	if len(override.Joins) > 0 {
		out.Joins = override.Joins
	}
	if len(override.AIHint) > 0 {
		out.AIHint = override.AIHint
	}
	if override.Spotlight != nil {
		out.Spotlight = override.Spotlight
	}
	if override.DefaultTimeDimension != nil {
		out.DefaultTimeDimension = override.DefaultTimeDimension
	}
	if override.DisableAutoMetrics {
		out.DisableAutoMetrics = true
	}
	return out
}

// DbtMetric is a standalone dbt metric. Both the legacy shape
// (calculation_method/expression) and the dbt 1.5+ shape (type/type_params) decode into it.
type DbtMetric struct {
	UniqueID          string               `json:"unique_id"`
	Name              string               `json:"name"`
	Label             string               `json:"label,omitempty"`
	Description       string               `json:"description,omitempty"`
	CalculationMethod string               `json:"calculation_method,omitempty"`
	Expression        string               `json:"expression,omitempty"`
	Filters           []DbtMetricFilter    `json:"filters,omitempty"`
	Timestamp         string               `json:"timestamp,omitempty"`
	TimeGrains        []string             `json:"time_grains,omitempty"`
	Type              string               `json:"type,omitempty"`
	TypeParams        *DbtMetricTypeParams `json:"type_params,omitempty"`
	Meta              DbtMetricMeta        `json:"meta"`
	DependsOn         DbtDependsOn         `json:"depends_on"`
}

// DbtMetricFilter is a legacy dbt metric filter.
type DbtMetricFilter struct {
	Field    string `json:"field"`
	Operator string `json:"operator"`
	Value    string `json:"value"`
}

// DbtMetricTypeParams holds the dbt 1.5+ metric definition.
type DbtMetricTypeParams struct {
	Measure     *DbtMetricInput  `json:"measure,omitempty"`
	Numerator   *DbtMetricInput  `json:"numerator,omitempty"`
	Denominator *DbtMetricInput  `json:"denominator,omitempty"`
	Expr        string           `json:"expr,omitempty"`
	Metrics     []DbtMetricInput `json:"metrics,omitempty"`
}

// DbtMetricInput references a measure or another metric.
type DbtMetricInput struct {
	Name string `json:"name"`
}

// DependsOnModel reports whether the metric depends on the given model unique id.
func (m *DbtMetric) DependsOnModel(uniqueID string) bool {
	for _, n := range m.DependsOn.Nodes {
		if n == uniqueID {
			return true
		}
	}
	return false
}

// DbtCatalog is the subset of dbt's catalog.json used to build a warehouse schema snapshot.
type DbtCatalog struct {
	Nodes map[string]DbtCatalogNode `json:"nodes"`
}

// DbtCatalogNode describes one relation as dbt observed it in the warehouse.
type DbtCatalogNode struct {
	Metadata struct {
		Database string `json:"database"`
		Schema   string `json:"schema"`
		Name     string `json:"name"`
		Type     string `json:"type"`
	} `json:"metadata"`
	Columns map[string]DbtCatalogColumn `json:"columns"`
}

// DbtCatalogColumn is one column of a catalog node.
type DbtCatalogColumn struct {
	Name  string `json:"name"`
	Type  string `json:"type"`
	Index int    `json:"index"`
}

// WarehouseCatalog converts the dbt catalog into a schema snapshot.
func (c *DbtCatalog) WarehouseCatalog() WarehouseCatalog {
	wc := WarehouseCatalog{}
	for _, node := range c.Nodes {
		for _, col := range node.Columns {
			wc.Add(node.Metadata.Database, node.Metadata.Schema, node.Metadata.Name, col.Name, col.Type)
		}
	}
	return wc
}
