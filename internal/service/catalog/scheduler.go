package catalog

import (
	"context"
	"log/slog"
	"slices"
	"sync"

	"github.com/robfig/cron/v3"

	"github.com/yu-iskw/lightdash/internal/domain"
)

// Scheduler recompiles projects on their refresh_schedule.
type Scheduler struct {
	cron     *cron.Cron
	svc      *Service
	projects domain.ProjectRepository
	logger   *slog.Logger
	mu       sync.Mutex
	entries  map[string]cron.EntryID // project uuid → cron entry
}

// NewScheduler creates a new refresh scheduler.
func NewScheduler(svc *Service, projects domain.ProjectRepository, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		cron:     cron.New(),
		svc:      svc,
		projects: projects,
		logger:   logger,
		entries:  make(map[string]cron.EntryID),
	}
}

// Start loads all project schedules and starts the cron scheduler.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	err := s.loadSchedules(ctx)
	s.mu.Unlock()
	if err != nil {
		return err
	}
	s.cron.Start()
	s.logger.Info("catalog refresh scheduler started", "projects", len(s.entries))
	return nil
}

// Stop stops the scheduler and waits for running refreshes.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.logger.Info("catalog refresh scheduler stopped")
}

// Reload clears all cron entries and reloads them from the project repository.
func (s *Scheduler) Reload(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, entryID := range s.entries {
		s.cron.Remove(entryID)
	}
	s.entries = make(map[string]cron.EntryID)

	return s.loadSchedules(ctx)
}

// ScheduledProjects returns the uuids of projects with an active refresh entry, sorted.
func (s *Scheduler) ScheduledProjects() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.entries))
	for uuid := range s.entries {
		out = append(out, uuid)
	}
	slices.Sort(out)
	return out
}

func (s *Scheduler) loadSchedules(ctx context.Context) error {
	page := domain.PageRequest{PageSize: domain.MaxPageSize}
	for {
		projects, total, err := s.projects.List(ctx, page)
		if err != nil {
			return err
		}
		for _, p := range projects {
			s.schedule(p)
		}
		next := domain.NextPageToken(page.Offset(), page.Limit(), total)
		if next == "" || len(projects) == 0 {
			return nil
		}
		page.PageToken = next
	}
}

func (s *Scheduler) schedule(p domain.Project) {
	if p.RefreshSchedule == "" {
		return
	}
	project := p
	entryID, err := s.cron.AddFunc(p.RefreshSchedule, func() {
		if _, err := s.svc.compile(context.Background(), &project); err != nil {
			s.logger.Warn("scheduled catalog refresh failed",
				"project_uuid", project.UUID,
				"error", err,
			)
		}
	})
	if err != nil {
		s.logger.Warn("invalid refresh schedule",
			"project_uuid", p.UUID,
			"schedule", p.RefreshSchedule,
			"error", err,
		)
		return
	}
	s.entries[p.UUID] = entryID
	s.logger.Info("scheduled catalog refresh", "project_uuid", p.UUID, "schedule", p.RefreshSchedule)
}
