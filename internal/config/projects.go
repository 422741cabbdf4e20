package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/yu-iskw/lightdash/internal/domain"
)

// ProjectsFile is the YAML document listing the projects served by the server.
type ProjectsFile struct {
	Projects []ProjectDefinition `yaml:"projects"`
}

// ProjectDefinition declares one dbt project and who may access it.
type ProjectDefinition struct {
	UUID             string        `yaml:"uuid"`
	OrganizationUUID string        `yaml:"organization_uuid"`
	Name             string        `yaml:"name"`
	AdapterType      string        `yaml:"adapter_type"`
	Manifest         string        `yaml:"manifest"`
	Catalog          string        `yaml:"catalog"`
	LightdashConfig  string        `yaml:"lightdash_config"`
	RefreshSchedule  string        `yaml:"refresh_schedule"`
	Access           []AccessGrant `yaml:"access"`
}

// AccessGrant gives a principal a role on a project.
type AccessGrant struct {
	Principal string             `yaml:"principal"`
	Role      domain.ProjectRole `yaml:"role"`
}

// ResolvedProject is a project definition with its spotlight config loaded.
type ResolvedProject struct {
	Project domain.Project
	Access  []domain.ProjectAccess
}

// LoadProjectsFile parses and validates a projects file. Relative artifact and
// config paths are resolved against the file's directory.
func LoadProjectsFile(path string) ([]ResolvedProject, error) {
	b, err := os.ReadFile(path) //nolint:gosec // path is operator-controlled
	if err != nil {
		return nil, fmt.Errorf("read projects file: %w", err)
	}
	var f ProjectsFile
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, domain.ErrParse("invalid projects file %s: %v", path, err)
	}
	return f.Resolve(filepath.Dir(path))
}

// Resolve validates every definition and loads its lightdash.config.yml.
func (f *ProjectsFile) Resolve(baseDir string) ([]ResolvedProject, error) {
	seen := make(map[string]bool, len(f.Projects))
	out := make([]ResolvedProject, 0, len(f.Projects))
	for i, def := range f.Projects {
		if seen[def.UUID] {
			return nil, domain.ErrValidation("projects[%d]: duplicate uuid %q", i, def.UUID)
		}
		seen[def.UUID] = true

		adapter, err := domain.ParseAdapterType(def.AdapterType)
		if err != nil {
			return nil, fmt.Errorf("projects[%d]: %w", i, err)
		}
		p := domain.Project{
			UUID:             def.UUID,
			OrganizationUUID: def.OrganizationUUID,
			Name:             def.Name,
			AdapterType:      adapter,
			ManifestURI:      resolvePath(baseDir, def.Manifest),
			CatalogURI:       resolvePath(baseDir, def.Catalog),
			RefreshSchedule:  def.RefreshSchedule,
			Spotlight:        domain.DefaultSpotlightConfig(),
		}
		if def.LightdashConfig != "" {
			if p.Spotlight, err = LoadLightdashConfig(resolvePath(baseDir, def.LightdashConfig)); err != nil {
				return nil, fmt.Errorf("projects[%d]: %w", i, err)
			}
		}
		if err := p.Validate(); err != nil {
			return nil, fmt.Errorf("projects[%d]: %w", i, err)
		}

		resolved := ResolvedProject{Project: p}
		for _, a := range def.Access {
			switch a.Role {
			case domain.ProjectRoleViewer, domain.ProjectRoleDeveloper, domain.ProjectRoleAdmin:
			default:
				return nil, domain.ErrValidation("projects[%d]: invalid role %q for %q", i, a.Role, a.Principal)
			}
			if a.Principal == "" {
				return nil, domain.ErrValidation("projects[%d]: access entry without principal", i)
			}
			resolved.Access = append(resolved.Access, domain.ProjectAccess{ProjectUUID: p.UUID, Principal: a.Principal, Role: a.Role})
		}
		out = append(out, resolved)
	}
	return out, nil
}

// resolvePath joins relative local paths onto baseDir; URIs and absolute paths pass through.
func resolvePath(baseDir, p string) string {
	if p == "" || filepath.IsAbs(p) || strings.Contains(p, "://") {
		return p
	}
	return filepath.Join(baseDir, p)
}

// lightdashConfigFile is the shape of lightdash.config.yml.
type lightdashConfigFile struct {
	Spotlight *domain.SpotlightConfig `yaml:"spotlight"`
}

// LoadLightdashConfig reads the spotlight section of a lightdash.config.yml.
// A missing file yields the default configuration.
func LoadLightdashConfig(path string) (domain.SpotlightConfig, error) {
	b, err := os.ReadFile(path) //nolint:gosec // path is operator-controlled
	if errors.Is(err, os.ErrNotExist) {
		return domain.DefaultSpotlightConfig(), nil
	}
	if err != nil {
		return domain.SpotlightConfig{}, fmt.Errorf("read lightdash config: %w", err)
	}
	return ParseLightdashConfig(b)
}

// ParseLightdashConfig parses lightdash.config.yml content.
func ParseLightdashConfig(b []byte) (domain.SpotlightConfig, error) {
	var f lightdashConfigFile
	if err := yaml.Unmarshal(b, &f); err != nil {
		return domain.SpotlightConfig{}, domain.ErrParse("invalid lightdash config: %v", err)
	}
	if f.Spotlight == nil {
		return domain.DefaultSpotlightConfig(), nil
	}
	cfg := *f.Spotlight
	switch cfg.DefaultVisibility {
	case "":
		cfg.DefaultVisibility = domain.SpotlightVisibilityShow
	case domain.SpotlightVisibilityShow, domain.SpotlightVisibilityHide:
	default:
		return domain.SpotlightConfig{}, domain.ErrParse("invalid spotlight default_visibility %q", cfg.DefaultVisibility)
	}
	for key, c := range cfg.Categories {
		if c.Label == "" {
			return domain.SpotlightConfig{}, domain.ErrParse("spotlight category %q requires a label", key)
		}
	}
	return cfg, nil
}
