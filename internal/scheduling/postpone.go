package scheduling

import (
	"context"
	"fmt"
	"time"

	"scheduling-api/internal/duration"
	"scheduling-api/internal/models"
	"scheduling-api/internal/store"
)

// PostponeProject moves a project to newStart and shifts every owned task by
// the same amount, keeping each task's offset from the project start.
func (s *Service) PostponeProject(ctx context.Context, company, projectName string, newStart time.Time) (*models.Project, error) {
	p, err := s.Project(ctx, company, projectName)
	if err != nil {
		return nil, err
	}
	if err := s.postponeProject(ctx, p, newStart); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Service) postponeProject(ctx context.Context, p *models.Project, newStart time.Time) error {
	if newStart.IsZero() {
		return fmt.Errorf("%w: new_start_time is required", ErrInvalidInput)
	}
	tasks, err := s.Tasks(ctx, p)
	if err != nil {
		return err
	}
	shiftTasks(tasks, newStart.Sub(p.StartDate))
	for i := range tasks {
		if err := s.store.UpdateTask(ctx, &tasks[i]); err != nil {
			return fmt.Errorf("shift task %q: %w", tasks[i].Name, err)
		}
	}
	p.StartDate = newStart
	if err := s.store.UpdateProject(ctx, p); err != nil {
		return err
	}
	s.obs.LifecycleOperation("postpone_project")
	return s.logProject(ctx, p.ID, "Project postponed to %s", newStart.In(p.Location()).Format(time.RFC3339))
}

// PostponeCompany postpones every project of a company to newStart.
func (s *Service) PostponeCompany(ctx context.Context, company string, newStart time.Time) ([]models.Project, error) {
	projects, err := s.ListProjects(ctx, company, store.ProjectFilter{Sort: "name"})
	if err != nil {
		return nil, err
	}
	for i := range projects {
		if err := s.postponeProject(ctx, &projects[i], newStart); err != nil {
			return nil, fmt.Errorf("postpone project %q: %w", projects[i].Name, err)
		}
	}
	return projects, nil
}

// PostponeTask moves a task to newStart outright and clears its postponed
// flag. A non-empty newDuration is stored as the task's duration. The change
// is logged as an update at the task's current progress.
func (s *Service) PostponeTask(ctx context.Context, company, projectName, taskName string, newStart time.Time, newDuration string) (*models.Task, error) {
	p, t, err := s.Task(ctx, company, projectName, taskName)
	if err != nil {
		return nil, err
	}
	if newStart.IsZero() {
		return nil, fmt.Errorf("%w: new_start_time is required", ErrInvalidInput)
	}
	if newDuration != "" {
		minutes, err := duration.Parse(newDuration)
		if err != nil {
			return nil, err
		}
		t.Duration = minutes
	}
	t.StartTime = newStart
	t.Postponed = false

	desc := fmt.Sprintf("Task postponed to %s", newStart.In(p.Location()).Format(time.RFC3339))
	if _, err := s.appendUpdate(ctx, t, UpdateInput{Percentage: t.Progress, Description: desc}, s.now(), false); err != nil {
		return nil, err
	}
	return t, nil
}
