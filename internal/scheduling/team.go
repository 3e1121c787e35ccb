package scheduling

import (
	"context"
	"fmt"
	"strings"

	"scheduling-api/internal/models"
)

// AddObjective appends an objective to a project and logs it.
func (s *Service) AddObjective(ctx context.Context, company, projectName, objective string) (*models.Project, error) {
	objective = strings.TrimSpace(objective)
	if objective == "" {
		return nil, fmt.Errorf("%w: objective is required", ErrInvalidInput)
	}
	p, err := s.Project(ctx, company, projectName)
	if err != nil {
		return nil, err
	}
	p.Objectives = append(p.Objectives, objective)
	if err := s.store.UpdateProject(ctx, p); err != nil {
		return nil, err
	}
	if err := s.logProject(ctx, p.ID, "Objective added: %s", objective); err != nil {
		return nil, err
	}
	return p, nil
}

// SetTeam replaces a project's team.
func (s *Service) SetTeam(ctx context.Context, company, projectName string, members []string) (*models.Project, error) {
	clean, err := normalizeMembers(members)
	if err != nil {
		return nil, err
	}
	p, err := s.Project(ctx, company, projectName)
	if err != nil {
		return nil, err
	}
	p.Team = clean
	if err := s.store.UpdateProject(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// AddTeamMembers extends a project's team, ignoring members already on it.
func (s *Service) AddTeamMembers(ctx context.Context, company, projectName string, members []string) (*models.Project, error) {
	clean, err := normalizeMembers(members)
	if err != nil {
		return nil, err
	}
	if len(clean) == 0 {
		return nil, fmt.Errorf("%w: members is required", ErrInvalidInput)
	}
	p, err := s.Project(ctx, company, projectName)
	if err != nil {
		return nil, err
	}
	p.AddTeamMembers(clean...)
	if err := s.store.UpdateProject(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// RoleInput names a duty for a member on a task.
type RoleInput struct {
	TaskName string
	Member   string
	Duty     string
}

// AllocateRole gives a member a duty on a task. The member must be on the team.
func (s *Service) AllocateRole(ctx context.Context, company, projectName string, in RoleInput) (*models.Project, error) {
	return s.editRoles(ctx, company, projectName, in, true, func(roles []models.RoleAllocation, member string) ([]models.RoleAllocation, error) {
		for _, r := range roles {
			if r.Member == member {
				return nil, fmt.Errorf("%w: %s already has a role on task %q", ErrDuplicateName, member, in.TaskName)
			}
		}
		return append(roles, models.RoleAllocation{Member: member, Duty: in.Duty}), nil
	})
}

// ChangeRole replaces a member's duty on a task.
func (s *Service) ChangeRole(ctx context.Context, company, projectName string, in RoleInput) (*models.Project, error) {
	return s.editRoles(ctx, company, projectName, in, true, func(roles []models.RoleAllocation, member string) ([]models.RoleAllocation, error) {
		for i := range roles {
			if roles[i].Member == member {
				roles[i].Duty = in.Duty
				return roles, nil
			}
		}
		return nil, fmt.Errorf("role for %s on task %q: %w", member, in.TaskName, ErrNotFound)
	})
}

// RemoveRole drops a member's duty on a task.
func (s *Service) RemoveRole(ctx context.Context, company, projectName string, in RoleInput) (*models.Project, error) {
	return s.editRoles(ctx, company, projectName, in, false, func(roles []models.RoleAllocation, member string) ([]models.RoleAllocation, error) {
		for i := range roles {
			if roles[i].Member == member {
				return append(roles[:i], roles[i+1:]...), nil
			}
		}
		return nil, fmt.Errorf("role for %s on task %q: %w", member, in.TaskName, ErrNotFound)
	})
}

func (s *Service) editRoles(ctx context.Context, company, projectName string, in RoleInput, needDuty bool,
	edit func([]models.RoleAllocation, string) ([]models.RoleAllocation, error)) (*models.Project, error) {
	member := NormalizeEmail(in.Member)
	if in.TaskName == "" || member == "" || (needDuty && strings.TrimSpace(in.Duty) == "") {
		return nil, fmt.Errorf("%w: task_name, member and duty are required", ErrInvalidInput)
	}
	p, t, err := s.Task(ctx, company, projectName, in.TaskName)
	if err != nil {
		return nil, err
	}
	if needDuty && !contains(p.Team, member) {
		return nil, fmt.Errorf("%w: %s is not on the project team", ErrInvalidInput, member)
	}
	roles, err := edit(p.RoleAllocations[t.ID], member)
	if err != nil {
		return nil, err
	}
	if p.RoleAllocations == nil {
		p.RoleAllocations = map[string][]models.RoleAllocation{}
	}
	if len(roles) == 0 {
		delete(p.RoleAllocations, t.ID)
	} else {
		p.RoleAllocations[t.ID] = roles
	}
	if err := s.store.UpdateProject(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// FundInput earmarks an amount for a team member or a task.
type FundInput struct {
	Amount   *float64
	Member   string
	TaskName string
}

// AllocateFunds records a fund allocation on a project.
func (s *Service) AllocateFunds(ctx context.Context, company, projectName string, in FundInput) (*models.Project, error) {
	if in.Amount == nil || *in.Amount <= 0 {
		return nil, fmt.Errorf("%w: amount must be positive", ErrInvalidInput)
	}
	member := NormalizeEmail(in.Member)
	if (member == "") == (in.TaskName == "") {
		return nil, fmt.Errorf("%w: exactly one of member or task_name is required", ErrInvalidInput)
	}
	p, err := s.Project(ctx, company, projectName)
	if err != nil {
		return nil, err
	}
	alloc := models.FundAllocation{Amount: *in.Amount}
	if member != "" {
		if !contains(p.Team, member) {
			return nil, fmt.Errorf("%w: %s is not on the project team", ErrInvalidInput, member)
		}
		alloc.Member = member
	} else {
		t, err := s.store.FindTask(ctx, p.ID, in.TaskName)
		if err != nil {
			return nil, fmt.Errorf("task %q: %w", in.TaskName, err)
		}
		alloc.TaskName = t.Name
	}
	p.FundAllocations = append(p.FundAllocations, alloc)
	if err := s.store.UpdateProject(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// AddTaskDependency makes a task depend on another task of the same project.
// Edges that would close a cycle are rejected. The task's start is left alone.
func (s *Service) AddTaskDependency(ctx context.Context, company, projectName, taskName, depName string) (*models.Task, error) {
	p, t, err := s.Task(ctx, company, projectName, taskName)
	if err != nil {
		return nil, err
	}
	dep, err := s.store.FindTask(ctx, p.ID, depName)
	if err != nil {
		return nil, fmt.Errorf("dependency task %q: %w", depName, err)
	}
	if contains(t.Dependencies, dep.ID) {
		return t, nil
	}

	tasks, err := s.Tasks(ctx, p)
	if err != nil {
		return nil, err
	}
	edges := make(map[string][]string, len(tasks))
	for i := range tasks {
		edges[tasks[i].ID] = tasks[i].Dependencies
	}
	if ClosesCycle(t.ID, dep.ID, func(id string) []string { return edges[id] }) {
		return nil, fmt.Errorf("%w: %q already depends on %q", ErrCyclicDependency, dep.Name, t.Name)
	}

	t.Dependencies = append(t.Dependencies, dep.ID)
	if err := s.store.UpdateTask(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

// AddProjectDependency makes a project wait on another project of the same
// company.
func (s *Service) AddProjectDependency(ctx context.Context, company, projectName, depName string) (*models.Project, error) {
	p, err := s.Project(ctx, company, projectName)
	if err != nil {
		return nil, err
	}
	dep, err := s.Project(ctx, company, depName)
	if err != nil {
		return nil, err
	}
	if contains(p.Dependencies, dep.ID) {
		return p, nil
	}

	edges := func(id string) []string {
		dp, err := s.store.GetProject(ctx, id)
		if err != nil {
			return nil
		}
		return dp.Dependencies
	}
	if ClosesCycle(p.ID, dep.ID, edges) {
		return nil, fmt.Errorf("%w: project %q already depends on %q", ErrCyclicDependency, dep.Name, p.Name)
	}

	p.Dependencies = append(p.Dependencies, dep.ID)
	if err := s.store.UpdateProject(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
