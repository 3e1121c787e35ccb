package scheduling

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"scheduling-api/internal/models"
	"scheduling-api/internal/store"
)

// SplitPart names a project produced by Split and the tasks moved into it.
type SplitPart struct {
	Name  string
	Tasks []string
}

// Split creates two projects from p and moves the named tasks into them.
// The first task matching a name wins; unnamed tasks stay with p. Each step
// is committed as it goes, so a failure leaves earlier steps in place.
func (s *Service) Split(ctx context.Context, company, projectName string, parts []SplitPart) ([]models.Project, error) {
	if len(parts) != 2 {
		return nil, fmt.Errorf("%w: split needs exactly two parts", ErrInvalidInput)
	}
	orig, err := s.Project(ctx, company, projectName)
	if err != nil {
		return nil, err
	}
	tasks, err := s.Tasks(ctx, orig)
	if err != nil {
		return nil, err
	}

	for i := range parts {
		if strings.TrimSpace(parts[i].Name) == "" {
			parts[i].Name = fmt.Sprintf("%s(%d)", orig.Name, i+1)
		}
	}
	if strings.EqualFold(parts[0].Name, parts[1].Name) {
		return nil, fmt.Errorf("%w: split parts must have different names", ErrDuplicateName)
	}

	taken := map[string]bool{}
	out := make([]models.Project, 0, len(parts))
	for _, part := range parts {
		np := &models.Project{
			Name:        part.Name,
			CompanyName: orig.CompanyName,
			StartDate:   orig.StartDate,
			Timezone:    orig.Timezone,
			ProjectType: orig.ProjectType,
		}
		if err := s.insertProject(ctx, np); err != nil {
			return nil, err
		}

		var moved []models.Task
		for _, name := range part.Tasks {
			for i := range tasks {
				t := &tasks[i]
				if taken[t.ID] || !strings.EqualFold(t.Name, name) {
					continue
				}
				taken[t.ID] = true
				t.ProjectID = np.ID
				if err := s.store.UpdateTask(ctx, t); err != nil {
					return nil, fmt.Errorf("move task %q: %w", t.Name, err)
				}
				np.Tasks = append(np.Tasks, t.ID)
				np.AddTeamMembers(t.Members...)
				orig.RemoveTask(t.ID)
				moved = append(moved, *t)
				break
			}
		}
		np.TotalEstimatedCost = TotalEstimatedCost(moved)
		if err := s.store.UpdateProject(ctx, np); err != nil {
			return nil, err
		}
		if err := s.logProject(ctx, np.ID, "Project split from '%s'", orig.Name); err != nil {
			return nil, err
		}
		out = append(out, *np)
	}

	rest, err := s.Tasks(ctx, orig)
	if err != nil {
		return nil, err
	}
	orig.TotalEstimatedCost = TotalEstimatedCost(rest)
	if err := s.store.UpdateProject(ctx, orig); err != nil {
		return nil, err
	}
	if err := s.logProject(ctx, orig.ID, "Project split into '%s' and '%s'", out[0].Name, out[1].Name); err != nil {
		return nil, err
	}
	s.obs.LifecycleOperation("split")
	log.Printf("split project %q into %q and %q", orig.Name, out[0].Name, out[1].Name)
	return out, nil
}

// Merge moves every task of the named projects into a new project. The
// inputs are kept but left without tasks.
func (s *Service) Merge(ctx context.Context, company string, names []string, newName string) (*models.Project, error) {
	var inputs []*models.Project
	seen := map[string]bool{}
	for _, n := range names {
		key := strings.ToLower(strings.TrimSpace(n))
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		p, err := s.Project(ctx, company, n)
		if err != nil {
			return nil, err
		}
		inputs = append(inputs, p)
	}
	if len(inputs) < 2 {
		return nil, fmt.Errorf("%w: merge needs at least two distinct projects", ErrInvalidInput)
	}

	taskSets := make([][]models.Task, len(inputs))
	taskNames := map[string]string{}
	for i, p := range inputs {
		tasks, err := s.Tasks(ctx, p)
		if err != nil {
			return nil, err
		}
		for _, t := range tasks {
			key := strings.ToLower(t.Name)
			if other, dup := taskNames[key]; dup {
				return nil, fmt.Errorf("%w: task %q exists in both %q and %q", ErrDuplicateName, t.Name, other, p.Name)
			}
			taskNames[key] = p.Name
		}
		taskSets[i] = tasks
	}

	if strings.TrimSpace(newName) == "" {
		newName = inputs[0].Name + "-" + inputs[1].Name
	}
	merged := &models.Project{
		Name:        newName,
		CompanyName: inputs[0].CompanyName,
		StartDate:   inputs[0].StartDate,
		Timezone:    inputs[0].Timezone,
		ProjectType: models.ProjectScheduled,
	}
	for _, p := range inputs {
		if p.StartDate.Before(merged.StartDate) {
			merged.StartDate = p.StartDate
		}
		if p.ProjectType == models.ProjectDocumented {
			merged.ProjectType = models.ProjectDocumented
		}
		merged.Objectives = append(merged.Objectives, p.Objectives...)
		merged.AddTeamMembers(p.Team...)
	}
	if err := s.insertProject(ctx, merged); err != nil {
		return nil, err
	}

	var all []models.Task
	for i, p := range inputs {
		for j := range taskSets[i] {
			t := &taskSets[i][j]
			t.ProjectID = merged.ID
			if err := s.store.UpdateTask(ctx, t); err != nil {
				return nil, fmt.Errorf("move task %q: %w", t.Name, err)
			}
			merged.Tasks = append(merged.Tasks, t.ID)
			all = append(all, *t)
		}
		p.Tasks = nil
		p.TotalEstimatedCost = 0
		if err := s.store.UpdateProject(ctx, p); err != nil {
			return nil, err
		}
		if err := s.logProject(ctx, p.ID, "Project merged into '%s'", merged.Name); err != nil {
			return nil, err
		}
	}

	merged.TotalEstimatedCost = TotalEstimatedCost(all)
	if AllComplete(all) {
		merged.Duration = TotalDuration(all)
	}
	if err := s.store.UpdateProject(ctx, merged); err != nil {
		return nil, err
	}
	inputNames := make([]string, len(inputs))
	for i, p := range inputs {
		inputNames[i] = p.Name
	}
	if err := s.logProject(ctx, merged.ID, "Project merged from %s", strings.Join(inputNames, ", ")); err != nil {
		return nil, err
	}
	s.obs.LifecycleOperation("merge")
	log.Printf("merged projects %v into %q", inputNames, merged.Name)
	return merged, nil
}

// Clone copies a project and all of its tasks under new ids. Dependencies
// between copied tasks point at the copies; progress and history start empty.
func (s *Service) Clone(ctx context.Context, company, projectName, newName string) (*models.Project, error) {
	orig, err := s.Project(ctx, company, projectName)
	if err != nil {
		return nil, err
	}
	tasks, err := s.Tasks(ctx, orig)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(newName) == "" {
		newName = orig.Name + "(copy)"
	}
	cp := &models.Project{
		Name:        newName,
		CompanyName: orig.CompanyName,
		StartDate:   orig.StartDate,
		Timezone:    orig.Timezone,
		ProjectType: orig.ProjectType,
		Objectives:  append([]string{}, orig.Objectives...),
		Team:        append([]string{}, orig.Team...),
	}
	if err := s.insertProject(ctx, cp); err != nil {
		return nil, err
	}

	// First pass creates the copies and fills the old to new id table.
	oldToNew := make(map[string]string, len(tasks))
	copies := make([]models.Task, 0, len(tasks))
	for _, t := range tasks {
		nt := models.Task{
			ProjectID:        cp.ID,
			Name:             t.Name,
			StartTime:        t.StartTime,
			ExpectedDuration: t.ExpectedDuration,
			Priority:         t.Priority,
			Members:          append([]string{}, t.Members...),
			Description:      t.Description,
			EstimatedCost:    t.EstimatedCost,
			Postponed:        t.Postponed,
		}
		if err := s.store.CreateTask(ctx, &nt); err != nil {
			return nil, fmt.Errorf("copy task %q: %w", t.Name, err)
		}
		oldToNew[t.ID] = nt.ID
		cp.Tasks = append(cp.Tasks, nt.ID)
		copies = append(copies, nt)
	}

	// Second pass rewrites dependencies through the table. References to
	// tasks outside the original project are dropped.
	for i, t := range tasks {
		var deps []string
		for _, d := range t.Dependencies {
			if nd, ok := oldToNew[d]; ok {
				deps = append(deps, nd)
			}
		}
		if len(deps) == 0 {
			continue
		}
		copies[i].Dependencies = deps
		if err := s.store.UpdateTask(ctx, &copies[i]); err != nil {
			return nil, err
		}
	}

	cp.RoleAllocations = map[string][]models.RoleAllocation{}
	for oldID, roles := range orig.RoleAllocations {
		if nid, ok := oldToNew[oldID]; ok {
			cp.RoleAllocations[nid] = append([]models.RoleAllocation{}, roles...)
		}
	}
	cp.TotalEstimatedCost = TotalEstimatedCost(copies)
	if err := s.store.UpdateProject(ctx, cp); err != nil {
		return nil, err
	}
	if err := s.logProject(ctx, cp.ID, "Project cloned from '%s'", orig.Name); err != nil {
		return nil, err
	}
	s.obs.LifecycleOperation("clone")
	return cp, nil
}

// RestoreProject sets a project's cached state back to active.
func (s *Service) RestoreProject(ctx context.Context, company, projectName string) (*models.Project, error) {
	p, err := s.Project(ctx, company, projectName)
	if err != nil {
		return nil, err
	}
	prev := p.State
	p.State = string(StateActive)
	if err := s.store.UpdateProject(ctx, p); err != nil {
		return nil, err
	}
	if err := s.logProject(ctx, p.ID, "Project '%s' restored from %s", p.Name, prev); err != nil {
		return nil, err
	}
	s.obs.LifecycleOperation("restore_project")
	return p, nil
}

// RestoreTask reopens a complete task. Its progress returns to the last
// report below 100% and the actual durations of task and project are reset.
func (s *Service) RestoreTask(ctx context.Context, company, projectName, taskName string) (*models.TaskUpdate, error) {
	p, t, err := s.Task(ctx, company, projectName, taskName)
	if err != nil {
		return nil, err
	}
	now := s.now()
	all, err := s.snapshot(ctx, []models.Task{*t})
	if err != nil {
		return nil, err
	}
	st, err := NewEvaluator(now, all).TaskState(t.ID)
	if err != nil {
		return nil, err
	}
	if st != StateComplete {
		return nil, fmt.Errorf("%w: task %q is %s, only complete tasks can be restored", ErrInvalidState, t.Name, st)
	}

	history, err := s.store.ListTaskUpdates(ctx, t.ID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}
	pct := 0
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].StatusPercentage < 100 {
			pct = history[i].StatusPercentage
			break
		}
	}

	t.Duration = 0
	t.Postponed = false
	u, err := s.appendUpdate(ctx, t, UpdateInput{Percentage: pct, Description: "Task restored to in progress"}, now, false)
	if err != nil {
		return nil, err
	}
	p.Duration = 0
	if err := s.store.UpdateProject(ctx, p); err != nil {
		return nil, err
	}
	if err := s.logProject(ctx, p.ID, "Task '%s' restored to in progress", t.Name); err != nil {
		return nil, err
	}
	s.obs.LifecycleOperation("restore_task")
	return u, nil
}
