// Package store persists projects, tasks, their update logs and users.
//
// Every implementation honours the same natural keys: project names are
// unique per company and task names unique per project, both compared
// case-insensitively. Single record writes are atomic; keeping
// Project.Tasks and Task.ProjectID consistent is the caller's job.
package store

import (
	"context"
	"errors"
	"strings"

	"scheduling-api/internal/models"
)

var (
	// ErrNotFound is returned when a lookup matches no record
	ErrNotFound = errors.New("not found")
	// ErrDuplicateKey is returned when an insert or update collides with a natural key
	ErrDuplicateKey = errors.New("duplicate key")
)

// ProjectFilter narrows ListProjects. Sort is a comma separated list of
// fields, each optionally prefixed with '-' for descending order.
type ProjectFilter struct {
	CompanyName string
	Query       string
	Sort        string
	Limit       int
	Offset      int
}

// Store is the entity store consumed by the scheduling core
type Store interface {
	CreateProject(ctx context.Context, p *models.Project) error
	GetProject(ctx context.Context, id string) (*models.Project, error)
	FindProject(ctx context.Context, companyName, name string) (*models.Project, error)
	ListProjects(ctx context.Context, f ProjectFilter) ([]models.Project, error)
	UpdateProject(ctx context.Context, p *models.Project) error

	CreateTask(ctx context.Context, t *models.Task) error
	GetTask(ctx context.Context, id string) (*models.Task, error)
	FindTask(ctx context.Context, projectID, name string) (*models.Task, error)
	ListTasks(ctx context.Context, ids []string) ([]models.Task, error)
	UpdateTask(ctx context.Context, t *models.Task) error

	CreateTaskUpdate(ctx context.Context, u *models.TaskUpdate) error
	ListTaskUpdates(ctx context.Context, taskID string) ([]models.TaskUpdate, error)

	CreateProjectUpdate(ctx context.Context, u *models.ProjectUpdate) error
	ListProjectUpdates(ctx context.Context, projectIDs []string) ([]models.ProjectUpdate, error)

	CreateUser(ctx context.Context, u *models.User) error
	FindUser(ctx context.Context, username string) (*models.User, error)

	Ping(ctx context.Context) error
	Close()
}

// sortKeys maps accepted project sort keys to their record fields
var sortKeys = map[string]string{
	"id":         "id",
	"name":       "name",
	"start_date": "start_date",
	"created_at": "created_at",
	"updated_at": "updated_at",
}

type sortKey struct {
	field string
	desc  bool
}

// parseSort turns "name,-start_date" into whitelisted sort keys, defaulting
// to ascending id.
func parseSort(s string) []sortKey {
	var out []sortKey
	for _, raw := range strings.Split(s, ",") {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		desc := false
		if strings.HasPrefix(raw, "-") {
			desc = true
			raw = strings.TrimPrefix(raw, "-")
		}
		field, ok := sortKeys[raw]
		if !ok {
			continue
		}
		out = append(out, sortKey{field: field, desc: desc})
	}
	if len(out) == 0 {
		out = []sortKey{{field: "id"}}
	}
	return out
}
