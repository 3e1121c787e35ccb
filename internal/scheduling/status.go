package scheduling

import (
	"context"
	"errors"
	"time"

	"scheduling-api/internal/models"
	"scheduling-api/internal/store"
)

// snapshot extends tasks with every transitive dependency still in the
// store. Dependencies that no longer exist are left out.
func (s *Service) snapshot(ctx context.Context, tasks []models.Task) ([]models.Task, error) {
	asked := make(map[string]bool, len(tasks))
	for i := range tasks {
		asked[tasks[i].ID] = true
	}
	missing := func(ts []models.Task) []string {
		var ids []string
		for i := range ts {
			for _, d := range ts[i].Dependencies {
				if !asked[d] {
					asked[d] = true
					ids = append(ids, d)
				}
			}
		}
		return ids
	}

	frontier := missing(tasks)
	for len(frontier) > 0 {
		more, err := s.store.ListTasks(ctx, frontier)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, more...)
		frontier = missing(more)
	}
	return tasks, nil
}

// evaluator builds an Evaluator at `at` over the project's tasks and their
// dependency closure.
func (s *Service) evaluator(ctx context.Context, p *models.Project, at time.Time) (*Evaluator, []models.Task, error) {
	tasks, err := s.Tasks(ctx, p)
	if err != nil {
		return nil, nil, err
	}
	own := len(tasks)
	all, err := s.snapshot(ctx, tasks)
	if err != nil {
		return nil, nil, err
	}
	return NewEvaluator(at, all), all[:own], nil
}

// upstream loads the project's dependency projects, skipping deleted ones.
func (s *Service) upstream(ctx context.Context, p *models.Project) ([]models.Project, error) {
	out := make([]models.Project, 0, len(p.Dependencies))
	for _, id := range p.Dependencies {
		dp, err := s.store.GetProject(ctx, id)
		if errors.Is(err, store.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, *dp)
	}
	return out, nil
}

// TaskState derives a task's state at `at` without writing anything.
func (s *Service) TaskState(ctx context.Context, company, projectName, taskName string, at time.Time) (State, error) {
	_, t, err := s.Task(ctx, company, projectName, taskName)
	if err != nil {
		return "", err
	}
	all, err := s.snapshot(ctx, []models.Task{*t})
	if err != nil {
		return "", err
	}
	st, err := NewEvaluator(at, all).TaskState(t.ID)
	if err != nil {
		return "", err
	}
	s.obs.TaskStateEvaluated(st)
	return st, nil
}

// ProjectState derives a project's state at `at` without writing anything.
func (s *Service) ProjectState(ctx context.Context, p *models.Project, at time.Time) (State, error) {
	ev, _, err := s.evaluator(ctx, p, at)
	if err != nil {
		return "", err
	}
	up, err := s.upstream(ctx, p)
	if err != nil {
		return "", err
	}
	return ev.ProjectState(p, up)
}

// TaskStates derives the state of each of the project's tasks, keyed by id.
func (s *Service) TaskStates(ctx context.Context, p *models.Project, at time.Time) ([]models.Task, map[string]State, error) {
	ev, tasks, err := s.evaluator(ctx, p, at)
	if err != nil {
		return nil, nil, err
	}
	states, err := ev.States(p.Tasks)
	if err != nil {
		return nil, nil, err
	}
	for _, st := range states {
		s.obs.TaskStateEvaluated(st)
	}
	return tasks, states, nil
}

// RefreshProjectState derives the project's state at `at` and caches it on
// the project record.
func (s *Service) RefreshProjectState(ctx context.Context, company, projectName string, at time.Time) (*models.Project, error) {
	p, err := s.Project(ctx, company, projectName)
	if err != nil {
		return nil, err
	}
	if err := s.refresh(ctx, p, at); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Service) refresh(ctx context.Context, p *models.Project, at time.Time) error {
	st, err := s.ProjectState(ctx, p, at)
	if err != nil {
		return err
	}
	if p.State == string(st) {
		return nil
	}
	p.State = string(st)
	return s.store.UpdateProject(ctx, p)
}

// RefreshCompanyStates refreshes every project of the company.
func (s *Service) RefreshCompanyStates(ctx context.Context, company string, at time.Time) ([]models.Project, error) {
	projects, err := s.ListProjects(ctx, company, store.ProjectFilter{Sort: "name"})
	if err != nil {
		return nil, err
	}
	for i := range projects {
		if err := s.refresh(ctx, &projects[i], at); err != nil {
			return nil, err
		}
	}
	return projects, nil
}
