package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"scheduling-api/internal/models"
)

// Postgres is a Store backed by a pgx connection pool. The schema lives in
// db/migrations.
type Postgres struct {
	Pool *pgxpool.Pool
}

// NewPostgres opens a pool for dsn and verifies it with a ping
func NewPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to create pgxpool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("database ping failed: %w", err)
	}
	return &Postgres{Pool: pool}, nil
}

func (s *Postgres) Ping(ctx context.Context) error { return s.Pool.Ping(ctx) }

func (s *Postgres) Close() { s.Pool.Close() }

const projectColumns = `id, company_name, name, start_date, timezone, project_type, objectives, team,
	role_allocations, fund_allocations, dependencies, tasks, state, duration, total_estimated_cost,
	created_at, updated_at`

func (s *Postgres) CreateProject(ctx context.Context, p *models.Project) error {
	roles, funds, err := marshalAllocations(p)
	if err != nil {
		return err
	}
	p.ID = uuid.NewString()
	err = s.Pool.QueryRow(ctx, `
		INSERT INTO projects (id, company_name, name, start_date, timezone, project_type, objectives, team,
			role_allocations, fund_allocations, dependencies, tasks, state, duration, total_estimated_cost)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
		RETURNING created_at, updated_at`,
		p.ID, p.CompanyName, p.Name, p.StartDate, p.Timezone, p.ProjectType, nonNil(p.Objectives), nonNil(p.Team),
		roles, funds, nonNil(p.Dependencies), nonNil(p.Tasks), p.State, p.Duration, p.TotalEstimatedCost,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	return mapError(err)
}

func (s *Postgres) GetProject(ctx context.Context, id string) (*models.Project, error) {
	row := s.Pool.QueryRow(ctx, `SELECT `+projectColumns+` FROM projects WHERE id = $1`, id)
	return scanProject(row)
}

func (s *Postgres) FindProject(ctx context.Context, companyName, name string) (*models.Project, error) {
	row := s.Pool.QueryRow(ctx, `SELECT `+projectColumns+` FROM projects
		WHERE lower(company_name) = lower($1) AND lower(name) = lower($2)`, companyName, name)
	return scanProject(row)
}

func (s *Postgres) ListProjects(ctx context.Context, f ProjectFilter) ([]models.Project, error) {
	clauses := []string{}
	args := []interface{}{}
	arg := 1

	if f.CompanyName != "" {
		clauses = append(clauses, fmt.Sprintf("lower(company_name) = lower($%d)", arg))
		args = append(args, f.CompanyName)
		arg++
	}
	if f.Query != "" {
		clauses = append(clauses, fmt.Sprintf("name ILIKE $%d", arg))
		args = append(args, "%"+f.Query+"%")
		arg++
	}

	sqlStr := `SELECT ` + projectColumns + ` FROM projects`
	if len(clauses) > 0 {
		sqlStr += " WHERE " + strings.Join(clauses, " AND ")
	}
	sqlStr += buildOrderBy(f.Sort)
	if f.Limit > 0 {
		sqlStr += fmt.Sprintf(" LIMIT %d", f.Limit)
	}
	if f.Offset > 0 {
		sqlStr += fmt.Sprintf(" OFFSET %d", f.Offset)
	}

	rows, err := s.Pool.Query(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	projects := []models.Project{}
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		projects = append(projects, *p)
	}
	return projects, rows.Err()
}

func (s *Postgres) UpdateProject(ctx context.Context, p *models.Project) error {
	roles, funds, err := marshalAllocations(p)
	if err != nil {
		return err
	}
	err = s.Pool.QueryRow(ctx, `
		UPDATE projects SET company_name = $2, name = $3, start_date = $4, timezone = $5, project_type = $6,
			objectives = $7, team = $8, role_allocations = $9, fund_allocations = $10, dependencies = $11,
			tasks = $12, state = $13, duration = $14, total_estimated_cost = $15, updated_at = now()
		WHERE id = $1
		RETURNING updated_at`,
		p.ID, p.CompanyName, p.Name, p.StartDate, p.Timezone, p.ProjectType, nonNil(p.Objectives), nonNil(p.Team),
		roles, funds, nonNil(p.Dependencies), nonNil(p.Tasks), p.State, p.Duration, p.TotalEstimatedCost,
	).Scan(&p.UpdatedAt)
	return mapError(err)
}

const taskColumns = `id, project_id, name, start_time, expected_duration, duration, priority, members,
	description, dependencies, estimated_cost, postponed, progress, updates, created_at, updated_at`

func (s *Postgres) CreateTask(ctx context.Context, t *models.Task) error {
	t.ID = uuid.NewString()
	err := s.Pool.QueryRow(ctx, `
		INSERT INTO tasks (id, project_id, name, start_time, expected_duration, duration, priority, members,
			description, dependencies, estimated_cost, postponed, progress, updates)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
		RETURNING created_at, updated_at`,
		t.ID, t.ProjectID, t.Name, t.StartTime, t.ExpectedDuration, t.Duration, t.Priority, nonNil(t.Members),
		t.Description, nonNil(t.Dependencies), t.EstimatedCost, t.Postponed, t.Progress, nonNil(t.Updates),
	).Scan(&t.CreatedAt, &t.UpdatedAt)
	return mapError(err)
}

func (s *Postgres) GetTask(ctx context.Context, id string) (*models.Task, error) {
	row := s.Pool.QueryRow(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = $1`, id)
	return scanTask(row)
}

func (s *Postgres) FindTask(ctx context.Context, projectID, name string) (*models.Task, error) {
	row := s.Pool.QueryRow(ctx, `SELECT `+taskColumns+` FROM tasks
		WHERE project_id = $1 AND lower(name) = lower($2)`, projectID, name)
	return scanTask(row)
}

// ListTasks returns the tasks for ids in the order the ids are given
func (s *Postgres) ListTasks(ctx context.Context, ids []string) ([]models.Task, error) {
	if len(ids) == 0 {
		return []models.Task{}, nil
	}
	rows, err := s.Pool.Query(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	byID := make(map[string]models.Task, len(ids))
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		byID[t.ID] = *t
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]models.Task, 0, len(byID))
	for _, id := range ids {
		if t, ok := byID[id]; ok {
			out = append(out, t)
		}
	}
	return out, nil
}

func (s *Postgres) UpdateTask(ctx context.Context, t *models.Task) error {
	err := s.Pool.QueryRow(ctx, `
		UPDATE tasks SET project_id = $2, name = $3, start_time = $4, expected_duration = $5, duration = $6,
			priority = $7, members = $8, description = $9, dependencies = $10, estimated_cost = $11,
			postponed = $12, progress = $13, updates = $14, updated_at = now()
		WHERE id = $1
		RETURNING updated_at`,
		t.ID, t.ProjectID, t.Name, t.StartTime, t.ExpectedDuration, t.Duration, t.Priority, nonNil(t.Members),
		t.Description, nonNil(t.Dependencies), t.EstimatedCost, t.Postponed, t.Progress, nonNil(t.Updates),
	).Scan(&t.UpdatedAt)
	return mapError(err)
}

func (s *Postgres) CreateTaskUpdate(ctx context.Context, u *models.TaskUpdate) error {
	u.ID = uuid.NewString()
	err := s.Pool.QueryRow(ctx, `
		INSERT INTO task_updates (id, task_id, status_percentage, description, image_filenames, expenditure, timestamp)
		VALUES ($1,$2,$3,$4,$5,$6,COALESCE($7::timestamptz, now()))
		RETURNING timestamp`,
		u.ID, u.TaskID, u.StatusPercentage, u.Description, nonNil(u.ImageFilenames), u.Expenditure, nullTime(u.Timestamp),
	).Scan(&u.Timestamp)
	return mapError(err)
}

func (s *Postgres) ListTaskUpdates(ctx context.Context, taskID string) ([]models.TaskUpdate, error) {
	rows, err := s.Pool.Query(ctx, `
		SELECT id, task_id, status_percentage, description, image_filenames, expenditure, timestamp
		FROM task_updates WHERE task_id = $1 ORDER BY timestamp ASC, seq ASC`, taskID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	updates := []models.TaskUpdate{}
	for rows.Next() {
		var u models.TaskUpdate
		if err := rows.Scan(&u.ID, &u.TaskID, &u.StatusPercentage, &u.Description, &u.ImageFilenames,
			&u.Expenditure, &u.Timestamp); err != nil {
			return nil, err
		}
		updates = append(updates, u)
	}
	return updates, rows.Err()
}

func (s *Postgres) CreateProjectUpdate(ctx context.Context, u *models.ProjectUpdate) error {
	u.ID = uuid.NewString()
	err := s.Pool.QueryRow(ctx, `
		INSERT INTO project_updates (id, project_id, description, timestamp)
		VALUES ($1,$2,$3,COALESCE($4::timestamptz, now()))
		RETURNING timestamp`,
		u.ID, u.ProjectID, u.Description, nullTime(u.Timestamp),
	).Scan(&u.Timestamp)
	return mapError(err)
}

func (s *Postgres) ListProjectUpdates(ctx context.Context, projectIDs []string) ([]models.ProjectUpdate, error) {
	rows, err := s.Pool.Query(ctx, `
		SELECT id, project_id, description, timestamp
		FROM project_updates WHERE project_id = ANY($1) ORDER BY timestamp ASC, seq ASC`, projectIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	updates := []models.ProjectUpdate{}
	for rows.Next() {
		var u models.ProjectUpdate
		if err := rows.Scan(&u.ID, &u.ProjectID, &u.Description, &u.Timestamp); err != nil {
			return nil, err
		}
		updates = append(updates, u)
	}
	return updates, rows.Err()
}

func (s *Postgres) CreateUser(ctx context.Context, u *models.User) error {
	u.ID = uuid.NewString()
	err := s.Pool.QueryRow(ctx, `
		INSERT INTO users (id, username, password_hash, company_name, role)
		VALUES ($1,$2,$3,$4,$5)
		RETURNING created_at, updated_at`,
		u.ID, u.Username, u.PasswordHash, u.CompanyName, u.Role,
	).Scan(&u.CreatedAt, &u.UpdatedAt)
	return mapError(err)
}

func (s *Postgres) FindUser(ctx context.Context, username string) (*models.User, error) {
	var u models.User
	err := s.Pool.QueryRow(ctx, `
		SELECT id, username, password_hash, company_name, role, created_at, updated_at
		FROM users WHERE lower(username) = lower($1)`, username,
	).Scan(&u.ID, &u.Username, &u.PasswordHash, &u.CompanyName, &u.Role, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, mapError(err)
	}
	return &u, nil
}

// buildOrderBy builds a safe ORDER BY clause from whitelisted sort keys
func buildOrderBy(sortParam string) string {
	keys := parseSort(sortParam)
	clauses := make([]string, 0, len(keys))
	for _, k := range keys {
		if k.desc {
			clauses = append(clauses, k.field+" DESC")
		} else {
			clauses = append(clauses, k.field+" ASC")
		}
	}
	return " ORDER BY " + strings.Join(clauses, ", ")
}

func scanProject(row pgx.Row) (*models.Project, error) {
	var p models.Project
	var roles, funds []byte
	err := row.Scan(&p.ID, &p.CompanyName, &p.Name, &p.StartDate, &p.Timezone, &p.ProjectType, &p.Objectives,
		&p.Team, &roles, &funds, &p.Dependencies, &p.Tasks, &p.State, &p.Duration, &p.TotalEstimatedCost,
		&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, mapError(err)
	}
	if len(roles) > 0 {
		if err := json.Unmarshal(roles, &p.RoleAllocations); err != nil {
			return nil, fmt.Errorf("decode role_allocations: %w", err)
		}
	}
	if len(funds) > 0 {
		if err := json.Unmarshal(funds, &p.FundAllocations); err != nil {
			return nil, fmt.Errorf("decode fund_allocations: %w", err)
		}
	}
	return &p, nil
}

func scanTask(row pgx.Row) (*models.Task, error) {
	var t models.Task
	err := row.Scan(&t.ID, &t.ProjectID, &t.Name, &t.StartTime, &t.ExpectedDuration, &t.Duration, &t.Priority,
		&t.Members, &t.Description, &t.Dependencies, &t.EstimatedCost, &t.Postponed, &t.Progress, &t.Updates,
		&t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, mapError(err)
	}
	return &t, nil
}

func marshalAllocations(p *models.Project) ([]byte, []byte, error) {
	roles := p.RoleAllocations
	if roles == nil {
		roles = map[string][]models.RoleAllocation{}
	}
	rb, err := json.Marshal(roles)
	if err != nil {
		return nil, nil, fmt.Errorf("encode role_allocations: %w", err)
	}
	funds := p.FundAllocations
	if funds == nil {
		funds = []models.FundAllocation{}
	}
	fb, err := json.Marshal(funds)
	if err != nil {
		return nil, nil, fmt.Errorf("encode fund_allocations: %w", err)
	}
	return rb, fb, nil
}

// mapError translates driver errors into the store's sentinel errors
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return fmt.Errorf("%w: %s", ErrDuplicateKey, pgErr.ConstraintName)
	}
	return err
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// nullTime lets the database stamp records created without a timestamp
func nullTime(t time.Time) interface{} {
	if t.IsZero() {
		return nil
	}
	return t
}
