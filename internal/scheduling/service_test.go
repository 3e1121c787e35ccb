package scheduling

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scheduling-api/internal/models"
	"scheduling-api/internal/store"
)

const acme = "Acme"

type recorder struct {
	states    []State
	updates   []bool
	lifecycle []string
}

func (r *recorder) TaskStateEvaluated(s State)   { r.states = append(r.states, s) }
func (r *recorder) TaskUpdateRecorded(c bool)    { r.updates = append(r.updates, c) }
func (r *recorder) LifecycleOperation(op string) { r.lifecycle = append(r.lifecycle, op) }

type fixture struct {
	svc   *Service
	st    *store.Memory
	clock time.Time
	obs   *recorder
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{st: store.NewMemory(), clock: t0, obs: &recorder{}}
	f.svc = NewService(f.st,
		WithClock(func() time.Time { return f.clock }),
		WithObserver(f.obs),
		WithDefaultTimezone("UTC"),
	)
	return f
}

func (f *fixture) project(t *testing.T, name string) *models.Project {
	t.Helper()
	p, err := f.svc.CreateProject(context.Background(), acme, ProjectInput{Name: name, StartDate: t0.Format(time.RFC3339)})
	require.NoError(t, err)
	return p
}

func (f *fixture) task(t *testing.T, project, name, dur string, deps ...string) *models.Task {
	t.Helper()
	tk, err := f.svc.CreateTask(context.Background(), acme, project, TaskInput{Name: name, ExpectedDuration: dur, Dependencies: deps})
	require.NoError(t, err)
	return tk
}

func (f *fixture) reload(t *testing.T, project, name string) *models.Task {
	t.Helper()
	_, tk, err := f.svc.Task(context.Background(), acme, project, name)
	require.NoError(t, err)
	return tk
}

func TestCreateProject(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	p := f.project(t, "Bridge")
	assert.Equal(t, string(StateTentative), p.State)
	assert.Equal(t, models.ProjectScheduled, p.ProjectType)
	assert.Equal(t, "UTC", p.Timezone)
	assert.Equal(t, acme, p.CompanyName)

	_, err := f.svc.CreateProject(ctx, acme, ProjectInput{Name: "bridge"})
	assert.ErrorIs(t, err, ErrDuplicateName)

	_, err = f.svc.CreateProject(ctx, acme, ProjectInput{Name: "Old", StartDate: "2023-12-31"})
	assert.ErrorIs(t, err, ErrPastStartTime)

	old, err := f.svc.CreateProject(ctx, acme, ProjectInput{Name: "Old", StartDate: "2023-12-31", ProjectType: "documented"})
	require.NoError(t, err)
	assert.Equal(t, time.Date(2023, 12, 31, 0, 0, 0, 0, time.UTC), old.StartDate.UTC())

	_, err = f.svc.CreateProject(ctx, acme, ProjectInput{Name: "X", ProjectType: "improvised"})
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = f.svc.CreateProject(ctx, acme, ProjectInput{Name: "X", Timezone: "Mars/Olympus"})
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = f.svc.CreateProject(ctx, acme, ProjectInput{Name: " "})
	assert.ErrorIs(t, err, ErrInvalidInput)

	// omitted start means now
	now, err := f.svc.CreateProject(ctx, acme, ProjectInput{Name: "Now"})
	require.NoError(t, err)
	assert.Equal(t, t0, now.StartDate)
}

func TestCreateTaskScheduling(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.project(t, "Bridge")

	a := f.task(t, "Bridge", "A", "1 hour")
	assert.Equal(t, t0, a.StartTime)
	assert.Equal(t, 60, a.ExpectedDuration)
	assert.Equal(t, "medium", a.Priority)

	b := f.task(t, "Bridge", "B", "2 hours", "A")
	assert.Equal(t, t0.Add(time.Hour), b.StartTime)
	assert.Equal(t, []string{a.ID}, b.Dependencies)

	c := f.task(t, "Bridge", "C", "30 minutes", "A", "B")
	assert.Equal(t, t0.Add(3*time.Hour), c.StartTime)

	explicit := t0.Add(10 * time.Minute)
	d, err := f.svc.CreateTask(ctx, acme, "Bridge", TaskInput{Name: "D", ExpectedDuration: "1 hour", StartTime: &explicit, Dependencies: []string{"B"}})
	require.NoError(t, err)
	assert.Equal(t, explicit, d.StartTime)

	_, err = f.svc.CreateTask(ctx, acme, "Bridge", TaskInput{Name: "a", ExpectedDuration: "1 hour"})
	assert.ErrorIs(t, err, ErrDuplicateName)
	_, err = f.svc.CreateTask(ctx, acme, "Bridge", TaskInput{Name: "E", ExpectedDuration: "0 minutes"})
	assert.ErrorIs(t, err, ErrInvalidDuration)
	_, err = f.svc.CreateTask(ctx, acme, "Bridge", TaskInput{Name: "E", ExpectedDuration: "1 hour", Dependencies: []string{"nope"}})
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = f.svc.CreateTask(ctx, acme, "Bridge", TaskInput{Name: "E", ExpectedDuration: "1 hour", Members: []string{"not-an-email"}})
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = f.svc.CreateTask(ctx, acme, "Tunnel", TaskInput{Name: "E", ExpectedDuration: "1 hour"})
	assert.ErrorIs(t, err, ErrNotFound)

	past := t0.Add(-time.Minute)
	_, err = f.svc.CreateTask(ctx, acme, "Bridge", TaskInput{Name: "E", ExpectedDuration: "1 hour", StartTime: &past})
	assert.ErrorIs(t, err, ErrPastStartTime)
}

func TestCreateTaskUpdatesProject(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.project(t, "Bridge")

	_, err := f.svc.CreateTask(ctx, acme, "Bridge", TaskInput{
		Name: "A", ExpectedDuration: "1 day", EstimatedCost: 150,
		Members: []string{" Ana@Example.com ", "ana@example.com", "bo@example.com"},
	})
	require.NoError(t, err)
	_, err = f.svc.CreateTask(ctx, acme, "Bridge", TaskInput{Name: "B", ExpectedDuration: "1 day", EstimatedCost: 50})
	require.NoError(t, err)

	p, err := f.svc.Project(ctx, acme, "bridge")
	require.NoError(t, err)
	assert.Len(t, p.Tasks, 2)
	assert.Equal(t, []string{"ana@example.com", "bo@example.com"}, p.Team)
	assert.InDelta(t, 200.0, p.TotalEstimatedCost, 0.001)

	a := f.reload(t, "Bridge", "A")
	assert.Equal(t, []string{"ana@example.com", "bo@example.com"}, a.Members)
}

func TestDocumentedProjectAcceptsPastExplicitStart(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	_, err := f.svc.CreateProject(ctx, acme, ProjectInput{Name: "Log", StartDate: "2023-01-01", ProjectType: models.ProjectDocumented})
	require.NoError(t, err)

	start := time.Date(2023, 2, 1, 0, 0, 0, 0, time.UTC)
	tk, err := f.svc.CreateTask(ctx, acme, "Log", TaskInput{Name: "A", ExpectedDuration: "1 week", StartTime: &start})
	require.NoError(t, err)
	assert.Equal(t, start, tk.StartTime)

	early := time.Date(2022, 12, 31, 0, 0, 0, 0, time.UTC)
	_, err = f.svc.CreateTask(ctx, acme, "Log", TaskInput{Name: "B", ExpectedDuration: "1 week", StartTime: &early})
	assert.ErrorIs(t, err, ErrPastStartTime)
}

func TestCreateTasksBatch(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.project(t, "Bridge")

	results, err := f.svc.CreateTasks(ctx, acme, "Bridge", []TaskInput{
		{Name: "A", ExpectedDuration: "1 hour"},
		{Name: "B", ExpectedDuration: "nonsense"},
		{Name: "C", ExpectedDuration: "2 hours", Dependencies: []string{"A"}},
		{Name: "D", ExpectedDuration: "1 hour", Dependencies: []string{"B"}},
	})
	require.NoError(t, err)
	require.Len(t, results, 4)

	assert.NotNil(t, results[0].Task)
	assert.ErrorIs(t, results[1].Err, ErrInvalidDuration)
	assert.NotEmpty(t, results[1].Error)
	require.NotNil(t, results[2].Task)
	assert.Equal(t, t0.Add(time.Hour), results[2].Task.StartTime)
	assert.ErrorIs(t, results[3].Err, ErrInvalidInput)

	p, err := f.svc.Project(ctx, acme, "Bridge")
	require.NoError(t, err)
	assert.Len(t, p.Tasks, 2)

	_, err = f.svc.CreateTasks(ctx, acme, "Nowhere", nil)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRecordUpdateDurations(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.project(t, "Bridge")
	f.task(t, "Bridge", "A", "1 hour")
	f.task(t, "Bridge", "B", "1 hour", "A")

	f.clock = t0.Add(20 * time.Minute)
	_, err := f.svc.RecordUpdate(ctx, acme, "Bridge", "A", UpdateInput{Percentage: 50, Description: "half"})
	require.NoError(t, err)
	a := f.reload(t, "Bridge", "A")
	assert.Equal(t, 50, a.Progress)
	assert.Equal(t, 0, a.Duration)

	f.clock = t0.Add(45 * time.Minute)
	u, err := f.svc.RecordUpdate(ctx, acme, "Bridge", "A", UpdateInput{Percentage: 100})
	require.NoError(t, err)
	assert.Equal(t, f.clock, u.Timestamp)
	a = f.reload(t, "Bridge", "A")
	assert.Equal(t, 45, a.Duration, "actual elapsed minutes, not expected duration")
	assert.Len(t, a.Updates, 2)

	p, err := f.svc.Project(ctx, acme, "Bridge")
	require.NoError(t, err)
	assert.Equal(t, 0, p.Duration, "project still has an open task")

	f.clock = t0.Add(150 * time.Minute)
	_, err = f.svc.RecordUpdate(ctx, acme, "Bridge", "B", UpdateInput{Percentage: 100})
	require.NoError(t, err)
	b := f.reload(t, "Bridge", "B")
	assert.Equal(t, 90, b.Duration)

	p, err = f.svc.Project(ctx, acme, "Bridge")
	require.NoError(t, err)
	assert.Equal(t, 135, p.Duration)
	assert.Equal(t, []bool{false, true, true}, f.obs.updates)

	_, err = f.svc.RecordUpdate(ctx, acme, "Bridge", "A", UpdateInput{Percentage: 101})
	assert.ErrorIs(t, err, ErrInvalidInput)
	neg := -1.0
	_, err = f.svc.RecordUpdate(ctx, acme, "Bridge", "A", UpdateInput{Percentage: 10, Expenditure: &neg})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestRecordUpdateKeepsImagesAndExpenditure(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.project(t, "Bridge")
	f.task(t, "Bridge", "A", "1 hour")

	spent := 12.5
	_, err := f.svc.RecordUpdate(ctx, acme, "Bridge", "A", UpdateInput{
		Percentage: 10, Images: []string{"task1_update1_img1.png"}, Expenditure: &spent,
	})
	require.NoError(t, err)
	_, err = f.svc.RecordUpdate(ctx, acme, "Bridge", "A", UpdateInput{Percentage: 20, Images: []string{"task1_update2_img1.jpg"}})
	require.NoError(t, err)

	images, err := f.svc.TaskImages(ctx, acme, "Bridge", "A")
	require.NoError(t, err)
	assert.Equal(t, []string{"task1_update1_img1.png", "task1_update2_img1.jpg"}, images)

	updates, err := f.svc.TaskUpdates(ctx, acme, "Bridge", "A")
	require.NoError(t, err)
	require.Len(t, updates, 2)
	require.NotNil(t, updates[0].Expenditure)
	assert.InDelta(t, 12.5, *updates[0].Expenditure, 0.001)
}

func TestStateThroughService(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.project(t, "Bridge")
	f.task(t, "Bridge", "A", "1 hour")
	f.task(t, "Bridge", "B", "1 hour", "A")

	st, err := f.svc.TaskState(ctx, acme, "Bridge", "A", t0.Add(10*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, StateIncipient, st)

	st, err = f.svc.TaskState(ctx, acme, "Bridge", "B", t0.Add(2*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, StateDelayed, st)

	// reading does not write the cached project state
	p, err := f.svc.Project(ctx, acme, "Bridge")
	require.NoError(t, err)
	st, err = f.svc.ProjectState(ctx, p, t0.Add(3*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, StateOverdue, st)
	p, err = f.svc.Project(ctx, acme, "Bridge")
	require.NoError(t, err)
	assert.Equal(t, string(StateTentative), p.State)

	p, err = f.svc.RefreshProjectState(ctx, acme, "Bridge", t0.Add(3*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, string(StateOverdue), p.State)
	p, err = f.svc.Project(ctx, acme, "Bridge")
	require.NoError(t, err)
	assert.Equal(t, string(StateOverdue), p.State)
}

func TestProjectDependencyDelaysProject(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.project(t, "Design")
	f.project(t, "Build")
	f.task(t, "Build", "A", "1 hour")

	_, err := f.svc.AddProjectDependency(ctx, acme, "Build", "Design")
	require.NoError(t, err)
	_, err = f.svc.AddProjectDependency(ctx, acme, "Design", "Build")
	assert.ErrorIs(t, err, ErrCyclicDependency)
	_, err = f.svc.AddProjectDependency(ctx, acme, "Build", "Build")
	assert.ErrorIs(t, err, ErrCyclicDependency)

	p, err := f.svc.RefreshProjectState(ctx, acme, "Build", t0.Add(10*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, string(StateDelayed), p.State)

	projects, err := f.svc.RefreshCompanyStates(ctx, acme, t0.Add(10*time.Minute))
	require.NoError(t, err)
	require.Len(t, projects, 2)
	assert.Equal(t, "Build", projects[0].Name)
}

func TestAddTaskDependencyRejectsCycles(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.project(t, "Bridge")
	f.task(t, "Bridge", "A", "1 hour")
	f.task(t, "Bridge", "B", "1 hour", "A")
	f.task(t, "Bridge", "C", "1 hour", "B")

	_, err := f.svc.AddTaskDependency(ctx, acme, "Bridge", "A", "C")
	assert.ErrorIs(t, err, ErrCyclicDependency)
	_, err = f.svc.AddTaskDependency(ctx, acme, "Bridge", "A", "A")
	assert.ErrorIs(t, err, ErrCyclicDependency)
	_, err = f.svc.AddTaskDependency(ctx, acme, "Bridge", "A", "Z")
	assert.ErrorIs(t, err, ErrNotFound)

	c, err := f.svc.AddTaskDependency(ctx, acme, "Bridge", "C", "A")
	require.NoError(t, err)
	assert.Len(t, c.Dependencies, 2)

	// already present is a no-op
	c, err = f.svc.AddTaskDependency(ctx, acme, "Bridge", "C", "a")
	require.NoError(t, err)
	assert.Len(t, c.Dependencies, 2)
}

func TestMarkTask(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.project(t, "Bridge")
	f.task(t, "Bridge", "A", "1 hour")

	_, err := f.svc.MarkTask(ctx, acme, "Bridge", "A", "started")
	require.NoError(t, err)
	a := f.reload(t, "Bridge", "A")
	assert.Equal(t, 0, a.Progress)
	assert.Len(t, a.Updates, 1)

	_, err = f.svc.MarkTask(ctx, acme, "Bridge", "A", "Postponed")
	require.NoError(t, err)
	st, err := f.svc.TaskState(ctx, acme, "Bridge", "A", t0.Add(10*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, StatePostponed, st)

	f.clock = t0.Add(30 * time.Minute)
	_, err = f.svc.MarkTask(ctx, acme, "Bridge", "A", "complete")
	require.NoError(t, err)
	a = f.reload(t, "Bridge", "A")
	assert.Equal(t, 100, a.Progress)
	assert.Equal(t, 30, a.Duration)

	_, err = f.svc.MarkTask(ctx, acme, "Bridge", "A", "abandoned")
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestPostponeProjectShiftsTasks(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.project(t, "Bridge")
	f.task(t, "Bridge", "A", "1 hour")
	f.task(t, "Bridge", "B", "1 hour", "A")

	newStart := t0.Add(48 * time.Hour)
	p, err := f.svc.PostponeProject(ctx, acme, "Bridge", newStart)
	require.NoError(t, err)
	assert.Equal(t, newStart, p.StartDate)

	assert.Equal(t, t0.Add(48*time.Hour), f.reload(t, "Bridge", "A").StartTime)
	assert.Equal(t, t0.Add(49*time.Hour), f.reload(t, "Bridge", "B").StartTime)

	feed, err := f.svc.LatestUpdates(ctx, acme, "Bridge")
	require.NoError(t, err)
	require.NotEmpty(t, feed)
	assert.Contains(t, feed[0].Description, "Project postponed to")

	_, err = f.svc.PostponeProject(ctx, acme, "Bridge", time.Time{})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestPostponeCompany(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.project(t, "Bridge")
	f.project(t, "Tunnel")
	f.task(t, "Tunnel", "Dig", "1 week")

	newStart := t0.AddDate(0, 0, 7)
	projects, err := f.svc.PostponeCompany(ctx, acme, newStart)
	require.NoError(t, err)
	require.Len(t, projects, 2)
	for _, p := range projects {
		assert.Equal(t, newStart, p.StartDate)
	}
	assert.Equal(t, newStart, f.reload(t, "Tunnel", "Dig").StartTime)

	_, err = f.svc.PostponeCompany(ctx, "", newStart)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestPostponeTask(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.project(t, "Bridge")
	f.task(t, "Bridge", "A", "1 hour")
	_, err := f.svc.MarkTask(ctx, acme, "Bridge", "A", "postponed")
	require.NoError(t, err)

	newStart := t0.Add(5 * time.Hour)
	tk, err := f.svc.PostponeTask(ctx, acme, "Bridge", "A", newStart, "2 hours")
	require.NoError(t, err)
	assert.Equal(t, newStart, tk.StartTime)
	assert.Equal(t, 120, tk.Duration)
	assert.Equal(t, 60, tk.ExpectedDuration)
	assert.False(t, tk.Postponed)

	a := f.reload(t, "Bridge", "A")
	assert.Equal(t, 120, a.Duration)
	assert.False(t, a.Postponed)
	assert.Len(t, a.Updates, 2)

	_, err = f.svc.PostponeTask(ctx, acme, "Bridge", "A", newStart, "soon")
	assert.ErrorIs(t, err, ErrInvalidDuration)
}

func TestTaskQueries(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.project(t, "Bridge")
	_, err := f.svc.CreateTask(ctx, acme, "Bridge", TaskInput{Name: "A", ExpectedDuration: "1 hour", Priority: "High", Members: []string{"ana@example.com"}})
	require.NoError(t, err)
	_, err = f.svc.CreateTask(ctx, acme, "Bridge", TaskInput{Name: "B", ExpectedDuration: "1 hour", Members: []string{"bo@example.com"}})
	require.NoError(t, err)

	high, err := f.svc.TasksByPriority(ctx, acme, "Bridge", "HIGH")
	require.NoError(t, err)
	require.Len(t, high, 1)
	assert.Equal(t, "A", high[0].Name)

	mine, err := f.svc.TasksByMember(ctx, acme, "Bridge", "Bo@Example.com")
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, "B", mine[0].Name)
}

func TestTeamRolesAndFunds(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.project(t, "Bridge")
	a := f.task(t, "Bridge", "A", "1 hour")

	p, err := f.svc.SetTeam(ctx, acme, "Bridge", []string{"Ana@example.com", "bo@example.com"})
	require.NoError(t, err)
	assert.Equal(t, []string{"ana@example.com", "bo@example.com"}, p.Team)

	_, err = f.svc.SetTeam(ctx, acme, "Bridge", []string{"bad"})
	assert.ErrorIs(t, err, ErrInvalidInput)

	p, err = f.svc.AddTeamMembers(ctx, acme, "Bridge", []string{"bo@example.com", "cy@example.com"})
	require.NoError(t, err)
	assert.Len(t, p.Team, 3)

	p, err = f.svc.AllocateRole(ctx, acme, "Bridge", RoleInput{TaskName: "A", Member: "ana@example.com", Duty: "lead"})
	require.NoError(t, err)
	assert.Equal(t, []models.RoleAllocation{{Member: "ana@example.com", Duty: "lead"}}, p.RoleAllocations[a.ID])

	_, err = f.svc.AllocateRole(ctx, acme, "Bridge", RoleInput{TaskName: "A", Member: "ana@example.com", Duty: "again"})
	assert.ErrorIs(t, err, ErrDuplicateName)
	_, err = f.svc.AllocateRole(ctx, acme, "Bridge", RoleInput{TaskName: "A", Member: "zed@example.com", Duty: "lead"})
	assert.ErrorIs(t, err, ErrInvalidInput)

	p, err = f.svc.ChangeRole(ctx, acme, "Bridge", RoleInput{TaskName: "A", Member: "ana@example.com", Duty: "review"})
	require.NoError(t, err)
	assert.Equal(t, "review", p.RoleAllocations[a.ID][0].Duty)

	p, err = f.svc.RemoveRole(ctx, acme, "Bridge", RoleInput{TaskName: "A", Member: "ana@example.com"})
	require.NoError(t, err)
	assert.NotContains(t, p.RoleAllocations, a.ID)
	_, err = f.svc.RemoveRole(ctx, acme, "Bridge", RoleInput{TaskName: "A", Member: "ana@example.com"})
	assert.ErrorIs(t, err, ErrNotFound)

	amount := 500.0
	p, err = f.svc.AllocateFunds(ctx, acme, "Bridge", FundInput{Amount: &amount, TaskName: "a"})
	require.NoError(t, err)
	assert.Equal(t, []models.FundAllocation{{Amount: 500, TaskName: "A"}}, p.FundAllocations)

	_, err = f.svc.AllocateFunds(ctx, acme, "Bridge", FundInput{Amount: &amount})
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = f.svc.AllocateFunds(ctx, acme, "Bridge", FundInput{Amount: &amount, Member: "out@example.com"})
	assert.ErrorIs(t, err, ErrInvalidInput)

	p, err = f.svc.AddObjective(ctx, acme, "Bridge", "Open by spring")
	require.NoError(t, err)
	assert.Equal(t, []string{"Open by spring"}, p.Objectives)
}

func TestLatestUpdatesFeed(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.project(t, "Bridge")
	f.project(t, "Tunnel")
	f.task(t, "Bridge", "A", "1 hour")
	f.task(t, "Tunnel", "Dig", "1 hour")

	f.clock = t0.Add(time.Minute)
	_, err := f.svc.RecordUpdate(ctx, acme, "Bridge", "A", UpdateInput{Percentage: 10, Description: "first"})
	require.NoError(t, err)
	f.clock = t0.Add(2 * time.Minute)
	_, err = f.svc.RecordUpdate(ctx, acme, "Bridge", "A", UpdateInput{Percentage: 20, Description: "second"})
	require.NoError(t, err)
	f.clock = t0.Add(3 * time.Minute)
	_, err = f.svc.AddObjective(ctx, acme, "Tunnel", "Reach the river")
	require.NoError(t, err)

	feed, err := f.svc.LatestUpdates(ctx, acme, "")
	require.NoError(t, err)
	require.Len(t, feed, 2)
	assert.Equal(t, FeedProject, feed[0].Type)
	assert.Equal(t, "Tunnel", feed[0].ProjectName)
	assert.Equal(t, FeedTask, feed[1].Type)
	assert.Equal(t, "second", feed[1].Description)
	require.NotNil(t, feed[1].StatusPercentage)
	assert.Equal(t, 20, *feed[1].StatusPercentage)

	feed, err = f.svc.LatestUpdates(ctx, acme, "Bridge")
	require.NoError(t, err)
	require.Len(t, feed, 1)
	assert.Equal(t, "A", feed[0].TaskName)
}
