package domain

import "time"

// SpotlightCategory is one predeclared discovery category.
type SpotlightCategory struct {
	Label string `json:"label" yaml:"label"`
	Color string `json:"color,omitempty" yaml:"color,omitempty"`
}

// SpotlightConfig is the project-level categorization configuration.
type SpotlightConfig struct {
	DefaultVisibility SpotlightVisibility          `json:"default_visibility" yaml:"default_visibility"`
	Categories        map[string]SpotlightCategory `json:"categories,omitempty" yaml:"categories,omitempty"`
}

// DefaultSpotlightConfig shows every metric and declares no categories.
func DefaultSpotlightConfig() SpotlightConfig {
	return SpotlightConfig{DefaultVisibility: SpotlightVisibilityShow}
}

// HasCategory reports whether key is declared.
func (c SpotlightConfig) HasCategory(key string) bool {
	_, ok := c.Categories[key]
	return ok
}

// Project is a dbt project registered with the service.
type Project struct {
	UUID             string          `json:"projectUuid"`
	OrganizationUUID string          `json:"organizationUuid"`
	Name             string          `json:"name"`
	AdapterType      AdapterType     `json:"adapterType"`
	ManifestURI      string          `json:"manifestUri"`
	CatalogURI       string          `json:"catalogUri,omitempty"`
	RefreshSchedule  string          `json:"refreshSchedule,omitempty"`
	Spotlight        SpotlightConfig `json:"spotlight"`
	CreatedAt        time.Time       `json:"createdAt"`
	UpdatedAt        time.Time       `json:"updatedAt"`
}

// Validate checks the fields required to compile a project.
func (p *Project) Validate() error {
	if p.UUID == "" {
		return ErrValidation("project uuid is required")
	}
	if p.OrganizationUUID == "" {
		return ErrValidation("organization uuid is required")
	}
	if p.Name == "" {
		return ErrValidation("project name is required")
	}
	if _, err := ParseAdapterType(string(p.AdapterType)); err != nil {
		return err
	}
	if p.ManifestURI == "" {
		return ErrValidation("manifest uri is required")
	}
	return nil
}

// ProjectRole is the access level of a principal on a project.
type ProjectRole string

const (
	ProjectRoleViewer    ProjectRole = "viewer"
	ProjectRoleDeveloper ProjectRole = "developer"
	ProjectRoleAdmin     ProjectRole = "admin"
)

// ProjectAccess grants a principal a role on a project.
type ProjectAccess struct {
	ProjectUUID string      `json:"projectUuid"`
	Principal   string      `json:"principal"`
	Role        ProjectRole `json:"role"`
}

// Action is a capability checked by the authorizer.
type Action string

const (
	ActionView    Action = "view"
	ActionManage  Action = "manage"
	ActionCompile Action = "compile"
)

// ResourceContext identifies the subject of an authorization check.
type ResourceContext struct {
	Type             string
	OrganizationUUID string
	ProjectUUID      string
}

// StoredExplore is a compiled explore persisted for a project.
type StoredExplore struct {
	ProjectUUID string    `json:"projectUuid"`
	Explore     Explore   `json:"explore"`
	CompiledAt  time.Time `json:"compiledAt"`
}

// ExploreSummary is the list view of a stored explore.
type ExploreSummary struct {
	Name       string    `json:"name"`
	Label      string    `json:"label"`
	GroupLabel string    `json:"groupLabel,omitempty"`
	CompiledAt time.Time `json:"compiledAt"`
}

// CompileSummary reports the outcome of a project compilation.
type CompileSummary struct {
	ProjectUUID string    `json:"projectUuid"`
	Explores    int       `json:"explores"`
	Metrics     int       `json:"metrics"`
	Dimensions  int       `json:"dimensions"`
	CompiledAt  time.Time `json:"compiledAt"`
}
