package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"scheduling-api/internal/models"
)

// Memory is a process-local Store. Records are copied on the way in and on
// the way out so callers never share state with the store.
type Memory struct {
	mu             sync.RWMutex
	now            func() time.Time
	projects       map[string]*models.Project
	tasks          map[string]*models.Task
	taskUpdates    map[string]*models.TaskUpdate
	updatesByTask  map[string][]string
	projectUpdates []*models.ProjectUpdate
	users          map[string]*models.User
}

// NewMemory creates an empty in-memory store
func NewMemory() *Memory {
	return &Memory{
		now:           time.Now,
		projects:      make(map[string]*models.Project),
		tasks:         make(map[string]*models.Task),
		taskUpdates:   make(map[string]*models.TaskUpdate),
		updatesByTask: make(map[string][]string),
		users:         make(map[string]*models.User),
	}
}

func (m *Memory) Ping(context.Context) error { return nil }

func (m *Memory) Close() {}

func (m *Memory) CreateProject(_ context.Context, p *models.Project) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.projectNameTaken(p.CompanyName, p.Name, "") {
		return ErrDuplicateKey
	}
	now := m.now()
	p.ID = uuid.NewString()
	p.CreatedAt, p.UpdatedAt = now, now
	m.projects[p.ID] = copyProject(p)
	return nil
}

func (m *Memory) GetProject(_ context.Context, id string) (*models.Project, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.projects[id]
	if !ok {
		return nil, ErrNotFound
	}
	return copyProject(p), nil
}

func (m *Memory) FindProject(_ context.Context, companyName, name string) (*models.Project, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, p := range m.projects {
		if strings.EqualFold(p.CompanyName, companyName) && strings.EqualFold(p.Name, name) {
			return copyProject(p), nil
		}
	}
	return nil, ErrNotFound
}

func (m *Memory) ListProjects(_ context.Context, f ProjectFilter) ([]models.Project, error) {
	m.mu.RLock()
	out := []models.Project{}
	q := strings.ToLower(f.Query)
	for _, p := range m.projects {
		if f.CompanyName != "" && !strings.EqualFold(p.CompanyName, f.CompanyName) {
			continue
		}
		if q != "" && !strings.Contains(strings.ToLower(p.Name), q) {
			continue
		}
		out = append(out, *copyProject(p))
	}
	m.mu.RUnlock()

	keys := parseSort(f.Sort)
	sort.SliceStable(out, func(i, j int) bool {
		for _, k := range keys {
			c := compareProjects(&out[i], &out[j], k.field)
			if c == 0 {
				continue
			}
			if k.desc {
				return c > 0
			}
			return c < 0
		}
		return false
	})

	if f.Offset > 0 {
		if f.Offset >= len(out) {
			return []models.Project{}, nil
		}
		out = out[f.Offset:]
	}
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (m *Memory) UpdateProject(_ context.Context, p *models.Project) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.projects[p.ID]; !ok {
		return ErrNotFound
	}
	if m.projectNameTaken(p.CompanyName, p.Name, p.ID) {
		return ErrDuplicateKey
	}
	p.UpdatedAt = m.now()
	m.projects[p.ID] = copyProject(p)
	return nil
}

func (m *Memory) projectNameTaken(company, name, exceptID string) bool {
	for id, p := range m.projects {
		if id != exceptID && strings.EqualFold(p.CompanyName, company) && strings.EqualFold(p.Name, name) {
			return true
		}
	}
	return false
}

func (m *Memory) CreateTask(_ context.Context, t *models.Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.taskNameTaken(t.ProjectID, t.Name, "") {
		return ErrDuplicateKey
	}
	now := m.now()
	t.ID = uuid.NewString()
	t.CreatedAt, t.UpdatedAt = now, now
	m.tasks[t.ID] = copyTask(t)
	return nil
}

func (m *Memory) GetTask(_ context.Context, id string) (*models.Task, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.tasks[id]
	if !ok {
		return nil, ErrNotFound
	}
	return copyTask(t), nil
}

func (m *Memory) FindTask(_ context.Context, projectID, name string) (*models.Task, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, t := range m.tasks {
		if t.ProjectID == projectID && strings.EqualFold(t.Name, name) {
			return copyTask(t), nil
		}
	}
	return nil, ErrNotFound
}

func (m *Memory) ListTasks(_ context.Context, ids []string) ([]models.Task, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.Task, 0, len(ids))
	for _, id := range ids {
		if t, ok := m.tasks[id]; ok {
			out = append(out, *copyTask(t))
		}
	}
	return out, nil
}

func (m *Memory) UpdateTask(_ context.Context, t *models.Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tasks[t.ID]; !ok {
		return ErrNotFound
	}
	if m.taskNameTaken(t.ProjectID, t.Name, t.ID) {
		return ErrDuplicateKey
	}
	t.UpdatedAt = m.now()
	m.tasks[t.ID] = copyTask(t)
	return nil
}

func (m *Memory) taskNameTaken(projectID, name, exceptID string) bool {
	for id, t := range m.tasks {
		if id != exceptID && t.ProjectID == projectID && strings.EqualFold(t.Name, name) {
			return true
		}
	}
	return false
}

func (m *Memory) CreateTaskUpdate(_ context.Context, u *models.TaskUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u.ID = uuid.NewString()
	if u.Timestamp.IsZero() {
		u.Timestamp = m.now()
	}
	cp := *u
	cp.ImageFilenames = append([]string{}, u.ImageFilenames...)
	m.taskUpdates[u.ID] = &cp
	m.updatesByTask[u.TaskID] = append(m.updatesByTask[u.TaskID], u.ID)
	return nil
}

func (m *Memory) ListTaskUpdates(_ context.Context, taskID string) ([]models.TaskUpdate, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := m.updatesByTask[taskID]
	out := make([]models.TaskUpdate, 0, len(ids))
	for _, id := range ids {
		u := *m.taskUpdates[id]
		u.ImageFilenames = append([]string{}, u.ImageFilenames...)
		out = append(out, u)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out, nil
}

func (m *Memory) CreateProjectUpdate(_ context.Context, u *models.ProjectUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u.ID = uuid.NewString()
	if u.Timestamp.IsZero() {
		u.Timestamp = m.now()
	}
	cp := *u
	m.projectUpdates = append(m.projectUpdates, &cp)
	return nil
}

func (m *Memory) ListProjectUpdates(_ context.Context, projectIDs []string) ([]models.ProjectUpdate, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	want := make(map[string]bool, len(projectIDs))
	for _, id := range projectIDs {
		want[id] = true
	}
	out := []models.ProjectUpdate{}
	for _, u := range m.projectUpdates {
		if want[u.ProjectID] {
			out = append(out, *u)
		}
	}
	return out, nil
}

func (m *Memory) CreateUser(_ context.Context, u *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := strings.ToLower(u.Username)
	if _, ok := m.users[key]; ok {
		return ErrDuplicateKey
	}
	now := m.now()
	u.ID = uuid.NewString()
	u.CreatedAt, u.UpdatedAt = now, now
	cp := *u
	m.users[key] = &cp
	return nil
}

func (m *Memory) FindUser(_ context.Context, username string) (*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[strings.ToLower(username)]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func compareProjects(a, b *models.Project, field string) int {
	switch field {
	case "name":
		return strings.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name))
	case "start_date":
		return a.StartDate.Compare(b.StartDate)
	case "created_at":
		return a.CreatedAt.Compare(b.CreatedAt)
	case "updated_at":
		return a.UpdatedAt.Compare(b.UpdatedAt)
	default:
		return strings.Compare(a.ID, b.ID)
	}
}

func copyProject(p *models.Project) *models.Project {
	cp := *p
	cp.Objectives = append([]string{}, p.Objectives...)
	cp.Team = append([]string{}, p.Team...)
	cp.Dependencies = append([]string{}, p.Dependencies...)
	cp.Tasks = append([]string{}, p.Tasks...)
	cp.FundAllocations = append([]models.FundAllocation{}, p.FundAllocations...)
	cp.RoleAllocations = make(map[string][]models.RoleAllocation, len(p.RoleAllocations))
	for k, v := range p.RoleAllocations {
		cp.RoleAllocations[k] = append([]models.RoleAllocation{}, v...)
	}
	return &cp
}

func copyTask(t *models.Task) *models.Task {
	cp := *t
	cp.Members = append([]string{}, t.Members...)
	cp.Dependencies = append([]string{}, t.Dependencies...)
	cp.Updates = append([]string{}, t.Updates...)
	return &cp
}
