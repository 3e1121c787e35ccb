// Package scheduling derives task and project state, places tasks in time,
// aggregates progress and cost, and restructures projects. Service is the
// entry point; the pure building blocks (Evaluator, ResolveStartTime,
// BuildTimetable, BuildGantt) can be used on their own.
package scheduling

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"scheduling-api/internal/duration"
	"scheduling-api/internal/models"
	"scheduling-api/internal/store"
)

// DefaultTimezone is used for projects created without one.
const DefaultTimezone = "Africa/Addis_Ababa"

// Observer receives domain events, typically to feed metrics.
type Observer interface {
	TaskStateEvaluated(state State)
	TaskUpdateRecorded(completed bool)
	LifecycleOperation(op string)
}

type noopObserver struct{}

func (noopObserver) TaskStateEvaluated(State)  {}
func (noopObserver) TaskUpdateRecorded(bool)   {}
func (noopObserver) LifecycleOperation(string) {}

// Service runs scheduling operations against a store, scoped by company.
type Service struct {
	store     store.Store
	now       func() time.Time
	obs       Observer
	defaultTZ string
}

type Option func(*Service)

// WithClock overrides the wall clock.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithObserver(o Observer) Option {
	return func(s *Service) {
		if o != nil {
			s.obs = o
		}
	}
}

func WithDefaultTimezone(tz string) Option {
	return func(s *Service) {
		if tz != "" {
			s.defaultTZ = tz
		}
	}
}

func NewService(st store.Store, opts ...Option) *Service {
	s := &Service{
		store:     st,
		now:       time.Now,
		obs:       noopObserver{},
		defaultTZ: DefaultTimezone,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Store exposes the underlying store.
func (s *Service) Store() store.Store { return s.store }

// Now returns the service clock's current time.
func (s *Service) Now() time.Time { return s.now() }

// ProjectInput describes a new project. StartDate is RFC3339 or YYYY-MM-DD
// in the project's time zone; empty means now.
type ProjectInput struct {
	Name        string
	StartDate   string
	Timezone    string
	ProjectType string
	Objectives  []string
}

// TaskInput describes a new task. Dependencies are names of tasks in the
// same project.
type TaskInput struct {
	Name             string
	StartTime        *time.Time
	ExpectedDuration string
	Priority         string
	Members          []string
	Description      string
	EstimatedCost    float64
	Dependencies     []string
}

// ParseDate accepts RFC3339 or a plain date, which is read as midnight in loc.
func ParseDate(value string, loc *time.Location) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t, nil
	}
	t, err := time.ParseInLocation("2006-01-02", value, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: date %q must be RFC3339 or YYYY-MM-DD", ErrInvalidInput, value)
	}
	return t, nil
}

// NormalizeEmail lowercases and trims an address.
func NormalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// ValidEmail reports whether s is a bare email address.
func ValidEmail(s string) bool {
	addr, err := mail.ParseAddress(s)
	return err == nil && addr.Address == s && addr.Name == ""
}

// normalizeMembers cleans and validates member emails, dropping duplicates.
func normalizeMembers(members []string) ([]string, error) {
	out := make([]string, 0, len(members))
	seen := make(map[string]bool, len(members))
	var invalid []string
	for _, m := range members {
		n := NormalizeEmail(m)
		if !ValidEmail(n) {
			invalid = append(invalid, m)
			continue
		}
		if !seen[n] {
			seen[n] = true
			out = append(out, n)
		}
	}
	if len(invalid) > 0 {
		return nil, fmt.Errorf("%w: invalid member emails: %s", ErrInvalidInput, strings.Join(invalid, ", "))
	}
	return out, nil
}

// Project looks a project up by name within a company.
func (s *Service) Project(ctx context.Context, company, name string) (*models.Project, error) {
	p, err := s.store.FindProject(ctx, company, name)
	if err != nil {
		return nil, fmt.Errorf("project %q: %w", name, err)
	}
	return p, nil
}

// Task looks a task up by name within a company's project.
func (s *Service) Task(ctx context.Context, company, projectName, taskName string) (*models.Project, *models.Task, error) {
	p, err := s.Project(ctx, company, projectName)
	if err != nil {
		return nil, nil, err
	}
	t, err := s.store.FindTask(ctx, p.ID, taskName)
	if err != nil {
		return nil, nil, fmt.Errorf("task %q: %w", taskName, err)
	}
	return p, t, nil
}

// Tasks returns the project's tasks in project order.
func (s *Service) Tasks(ctx context.Context, p *models.Project) ([]models.Task, error) {
	return s.store.ListTasks(ctx, p.Tasks)
}

// ListProjects lists a company's projects.
func (s *Service) ListProjects(ctx context.Context, company string, f store.ProjectFilter) ([]models.Project, error) {
	if company == "" {
		return nil, fmt.Errorf("%w: company is required", ErrInvalidInput)
	}
	f.CompanyName = company
	return s.store.ListProjects(ctx, f)
}

// CreateProject validates and stores a new project. Scheduled projects may
// not start before now.
func (s *Service) CreateProject(ctx context.Context, company string, in ProjectInput) (*models.Project, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: project_name is required", ErrInvalidInput)
	}
	projectType := strings.ToLower(strings.TrimSpace(in.ProjectType))
	switch projectType {
	case "":
		projectType = models.ProjectScheduled
	case models.ProjectScheduled, models.ProjectDocumented:
	default:
		return nil, fmt.Errorf("%w: project_type must be %q or %q", ErrInvalidInput, models.ProjectScheduled, models.ProjectDocumented)
	}
	tz := in.Timezone
	if tz == "" {
		tz = s.defaultTZ
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("%w: unknown timezone %q", ErrInvalidInput, tz)
	}

	now := s.now()
	start := now
	if in.StartDate != "" {
		if start, err = ParseDate(in.StartDate, loc); err != nil {
			return nil, err
		}
	}
	if projectType == models.ProjectScheduled && start.Before(now) {
		return nil, fmt.Errorf("%w: scheduled project cannot start at %s; use project_type %q for past work",
			ErrPastStartTime, start.Format(time.RFC3339), models.ProjectDocumented)
	}

	p := &models.Project{
		Name:        name,
		CompanyName: company,
		StartDate:   start,
		Timezone:    tz,
		ProjectType: projectType,
		Objectives:  append([]string{}, in.Objectives...),
	}
	if err := s.insertProject(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// insertProject stores p with defaults filled in and no start validation.
func (s *Service) insertProject(ctx context.Context, p *models.Project) error {
	if p.State == "" {
		p.State = string(StateTentative)
	}
	if p.RoleAllocations == nil {
		p.RoleAllocations = map[string][]models.RoleAllocation{}
	}
	if err := s.store.CreateProject(ctx, p); err != nil {
		if errors.Is(err, store.ErrDuplicateKey) {
			return fmt.Errorf("%w: project %q", ErrDuplicateName, p.Name)
		}
		return err
	}
	return nil
}

// CreateTask adds a task to a company's project. Without an explicit start
// the task is placed after its latest dependency.
func (s *Service) CreateTask(ctx context.Context, company, projectName string, in TaskInput) (*models.Task, error) {
	p, err := s.Project(ctx, company, projectName)
	if err != nil {
		return nil, err
	}
	return s.createTask(ctx, p, in)
}

func (s *Service) createTask(ctx context.Context, p *models.Project, in TaskInput) (*models.Task, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: task_name is required", ErrInvalidInput)
	}
	if in.EstimatedCost < 0 {
		return nil, fmt.Errorf("%w: estimated_cost must not be negative", ErrInvalidInput)
	}
	expected, err := duration.Parse(in.ExpectedDuration)
	if err != nil {
		return nil, err
	}
	members, err := normalizeMembers(in.Members)
	if err != nil {
		return nil, err
	}
	priority := strings.ToLower(strings.TrimSpace(in.Priority))
	if priority == "" {
		priority = "medium"
	}
	if in.StartTime != nil && p.ProjectType == models.ProjectScheduled && in.StartTime.Before(s.now()) {
		return nil, fmt.Errorf("%w: a scheduled project cannot take an explicit start before now; omit start_time or use a documented project",
			ErrPastStartTime)
	}

	var depIDs []string
	for _, dn := range in.Dependencies {
		dep, err := s.store.FindTask(ctx, p.ID, dn)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return nil, fmt.Errorf("%w: dependency task %q not found", ErrInvalidInput, dn)
			}
			return nil, err
		}
		depIDs = append(depIDs, dep.ID)
	}
	deps, err := s.store.ListTasks(ctx, depIDs)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]*models.Task, len(deps))
	for i := range deps {
		byID[deps[i].ID] = &deps[i]
	}
	depIDs = FilterDependencies(p.ID, depIDs, func(id string) (*models.Task, bool) {
		t, ok := byID[id]
		return t, ok
	})
	valid := make([]models.Task, 0, len(depIDs))
	for _, id := range depIDs {
		valid = append(valid, *byID[id])
	}

	start, err := ResolveStartTime(p, in.StartTime, valid)
	if err != nil {
		return nil, err
	}

	t := &models.Task{
		ProjectID:        p.ID,
		Name:             name,
		StartTime:        start,
		ExpectedDuration: expected,
		Priority:         priority,
		Members:          members,
		Description:      in.Description,
		Dependencies:     depIDs,
		EstimatedCost:    in.EstimatedCost,
	}
	if err := s.store.CreateTask(ctx, t); err != nil {
		if errors.Is(err, store.ErrDuplicateKey) {
			return nil, fmt.Errorf("%w: task %q in project %q", ErrDuplicateName, name, p.Name)
		}
		return nil, err
	}

	p.Tasks = append(p.Tasks, t.ID)
	p.AddTeamMembers(members...)
	p.TotalEstimatedCost += t.EstimatedCost
	if err := s.store.UpdateProject(ctx, p); err != nil {
		return nil, fmt.Errorf("attach task %q: %w", name, err)
	}
	return t, nil
}

// BatchResult is the outcome of one item of CreateTasks.
type BatchResult struct {
	Name  string       `json:"task_name"`
	Task  *models.Task `json:"task,omitempty"`
	Error string       `json:"error,omitempty"`
	Err   error        `json:"-"`
}

// CreateTasks creates tasks in order. Dependencies may name tasks created
// earlier in the same batch. A failing item does not stop the rest.
func (s *Service) CreateTasks(ctx context.Context, company, projectName string, items []TaskInput) ([]BatchResult, error) {
	p, err := s.Project(ctx, company, projectName)
	if err != nil {
		return nil, err
	}
	results := make([]BatchResult, 0, len(items))
	for _, in := range items {
		r := BatchResult{Name: in.Name}
		t, err := s.createTask(ctx, p, in)
		if err != nil {
			r.Err = err
			r.Error = err.Error()
			// createTask may have changed p before failing; reload it
			if fresh, gerr := s.store.GetProject(ctx, p.ID); gerr == nil {
				p = fresh
			}
		} else {
			r.Task = t
		}
		results = append(results, r)
	}
	return results, nil
}

// TasksByPriority returns the project's tasks with the given priority.
func (s *Service) TasksByPriority(ctx context.Context, company, projectName, priority string) ([]models.Task, error) {
	return s.filterTasks(ctx, company, projectName, func(t *models.Task) bool {
		return strings.EqualFold(t.Priority, priority)
	})
}

// TasksByMember returns the project's tasks assigned to member.
func (s *Service) TasksByMember(ctx context.Context, company, projectName, member string) ([]models.Task, error) {
	member = NormalizeEmail(member)
	return s.filterTasks(ctx, company, projectName, func(t *models.Task) bool {
		return t.HasMember(member)
	})
}

func (s *Service) filterTasks(ctx context.Context, company, projectName string, keep func(*models.Task) bool) ([]models.Task, error) {
	p, err := s.Project(ctx, company, projectName)
	if err != nil {
		return nil, err
	}
	tasks, err := s.Tasks(ctx, p)
	if err != nil {
		return nil, err
	}
	out := make([]models.Task, 0, len(tasks))
	for i := range tasks {
		if keep(&tasks[i]) {
			out = append(out, tasks[i])
		}
	}
	return out, nil
}

// logProject appends an audit entry to a project.
func (s *Service) logProject(ctx context.Context, projectID, format string, args ...interface{}) error {
	return s.store.CreateProjectUpdate(ctx, &models.ProjectUpdate{
		ProjectID:   projectID,
		Description: fmt.Sprintf(format, args...),
		Timestamp:   s.now(),
	})
}
