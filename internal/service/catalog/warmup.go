package catalog

import (
	"context"
	"errors"

	"github.com/yu-iskw/lightdash/internal/domain"
)

// CompileMissing compiles every project that has no stored explores yet.
// Failures are logged and skipped; it returns the number of projects compiled.
func (s *Service) CompileMissing(ctx context.Context) (int, error) {
	var (
		compiled int
		page     = domain.PageRequest{PageSize: domain.MaxPageSize}
	)
	for {
		projects, total, err := s.projects.List(ctx, page)
		if err != nil {
			return compiled, err
		}
		for i := range projects {
			p := &projects[i]
			_, n, err := s.explores.List(ctx, p.UUID, domain.PageRequest{PageSize: 1})
			if err != nil {
				return compiled, err
			}
			if n > 0 {
				continue
			}
			if _, err := s.compile(ctx, p); err != nil {
				if errors.Is(err, context.Canceled) {
					return compiled, err
				}
				s.logger.WarnContext(ctx, "initial compile failed", "project_uuid", p.UUID, "error", err)
				continue
			}
			compiled++
		}
		next := domain.NextPageToken(page.Offset(), page.Limit(), total)
		if next == "" || len(projects) == 0 {
			return compiled, nil
		}
		page.PageToken = next
	}
}
