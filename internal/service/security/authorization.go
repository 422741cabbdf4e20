// Package security implements project-level authorization.
package security

import (
	"context"
	"errors"
	"fmt"

	"github.com/yu-iskw/lightdash/internal/domain"
)

var _ domain.Authorizer = (*ProjectAuthorizer)(nil)

var roleRank = map[domain.ProjectRole]int{
	domain.ProjectRoleViewer:    1,
	domain.ProjectRoleDeveloper: 2,
	domain.ProjectRoleAdmin:     3,
}

// minimum role required per action
var actionRole = map[domain.Action]domain.ProjectRole{
	domain.ActionView:    domain.ProjectRoleViewer,
	domain.ActionCompile: domain.ProjectRoleDeveloper,
	domain.ActionManage:  domain.ProjectRoleAdmin,
}

// ProjectAuthorizer grants actions from the principal's role on the project.
// Admin principals may do everything.
type ProjectAuthorizer struct {
	access domain.ProjectAccessRepository
}

// NewProjectAuthorizer creates a ProjectAuthorizer backed by the access repository.
func NewProjectAuthorizer(access domain.ProjectAccessRepository) *ProjectAuthorizer {
	return &ProjectAuthorizer{access: access}
}

// CanPerform reports whether principal may perform action on resource.
func (a *ProjectAuthorizer) CanPerform(ctx context.Context, principal domain.ContextPrincipal, action domain.Action, resource domain.ResourceContext) (bool, error) {
	if principal.IsAdmin {
		return true, nil
	}
	required, ok := actionRole[action]
	if !ok {
		return false, fmt.Errorf("unknown action %q", action)
	}
	if principal.Name == "" || resource.ProjectUUID == "" {
		return false, nil
	}

	role, err := a.access.GetRole(ctx, resource.ProjectUUID, principal.Name)
	if err != nil {
		var nf *domain.NotFoundError
		if errors.As(err, &nf) {
			return false, nil
		}
		return false, fmt.Errorf("lookup role of %q on project %s: %w", principal.Name, resource.ProjectUUID, err)
	}
	return roleRank[role] >= roleRank[required], nil
}
