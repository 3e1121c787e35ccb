package scheduling

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scheduling-api/internal/models"
)

func TestSplit(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.project(t, "Bridge")
	for _, name := range []string{"A", "B", "C"} {
		_, err := f.svc.CreateTask(ctx, acme, "Bridge", TaskInput{Name: name, ExpectedDuration: "1 hour", EstimatedCost: 10})
		require.NoError(t, err)
	}

	parts, err := f.svc.Split(ctx, acme, "Bridge", []SplitPart{
		{Name: "North", Tasks: []string{"A"}},
		{Tasks: []string{"b", "missing"}},
	})
	require.NoError(t, err)
	require.Len(t, parts, 2)
	assert.Equal(t, "North", parts[0].Name)
	assert.Equal(t, "Bridge(2)", parts[1].Name)
	assert.Len(t, parts[0].Tasks, 1)
	assert.Len(t, parts[1].Tasks, 1)
	assert.Equal(t, t0, parts[0].StartDate)
	assert.InDelta(t, 10.0, parts[1].TotalEstimatedCost, 0.001)

	orig, err := f.svc.Project(ctx, acme, "Bridge")
	require.NoError(t, err)
	assert.Len(t, orig.Tasks, 1, "unnamed task stays with the original")
	assert.InDelta(t, 10.0, orig.TotalEstimatedCost, 0.001)

	moved := f.reload(t, "North", "A")
	assert.Equal(t, parts[0].ID, moved.ProjectID)

	_, err = f.svc.Split(ctx, acme, "Bridge", []SplitPart{{Name: "one"}})
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = f.svc.Split(ctx, acme, "Bridge", []SplitPart{{Name: "North"}, {Name: "South"}})
	assert.ErrorIs(t, err, ErrDuplicateName)
	assert.Contains(t, f.obs.lifecycle, "split")
}

func TestMerge(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.project(t, "Bridge")
	_, err := f.svc.CreateProject(ctx, acme, ProjectInput{Name: "Ramp", StartDate: "2023-06-01", ProjectType: models.ProjectDocumented})
	require.NoError(t, err)
	f.task(t, "Bridge", "Deck", "1 day")
	f.task(t, "Ramp", "Grade", "1 day")

	merged, err := f.svc.Merge(ctx, acme, []string{"Bridge", "ramp", "BRIDGE"}, "")
	require.NoError(t, err)
	assert.Equal(t, "Bridge-Ramp", merged.Name)
	assert.Equal(t, models.ProjectDocumented, merged.ProjectType)
	assert.Equal(t, time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC), merged.StartDate.UTC())
	assert.Len(t, merged.Tasks, 2)

	bridge, err := f.svc.Project(ctx, acme, "Bridge")
	require.NoError(t, err)
	assert.Empty(t, bridge.Tasks)
	assert.Equal(t, merged.ID, f.reload(t, "Bridge-Ramp", "Grade").ProjectID)

	_, err = f.svc.Merge(ctx, acme, []string{"Bridge"}, "Solo")
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = f.svc.Merge(ctx, acme, []string{"Bridge", "Nope"}, "X")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMergeRejectsClashingTaskNames(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.project(t, "Bridge")
	f.project(t, "Tunnel")
	f.task(t, "Bridge", "Survey", "1 day")
	f.task(t, "Tunnel", "survey", "1 day")

	_, err := f.svc.Merge(ctx, acme, []string{"Bridge", "Tunnel"}, "Both")
	assert.ErrorIs(t, err, ErrDuplicateName)

	// nothing was created or moved
	_, err = f.svc.Project(ctx, acme, "Both")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Len(t, f.reloadProject(t, "Bridge").Tasks, 1)
}

func (f *fixture) reloadProject(t *testing.T, name string) *models.Project {
	t.Helper()
	p, err := f.svc.Project(context.Background(), acme, name)
	require.NoError(t, err)
	return p
}

func TestCloneRemapsDependencies(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.project(t, "Bridge")
	a := f.task(t, "Bridge", "A", "1 hour")
	b := f.task(t, "Bridge", "B", "1 hour", "A")
	_, err := f.svc.SetTeam(ctx, acme, "Bridge", []string{"ana@example.com"})
	require.NoError(t, err)
	_, err = f.svc.AllocateRole(ctx, acme, "Bridge", RoleInput{TaskName: "B", Member: "ana@example.com", Duty: "lead"})
	require.NoError(t, err)

	f.clock = t0.Add(30 * time.Minute)
	_, err = f.svc.RecordUpdate(ctx, acme, "Bridge", "A", UpdateInput{Percentage: 100})
	require.NoError(t, err)

	cp, err := f.svc.Clone(ctx, acme, "Bridge", "")
	require.NoError(t, err)
	assert.Equal(t, "Bridge(copy)", cp.Name)
	require.Len(t, cp.Tasks, 2)

	ca := f.reload(t, "Bridge(copy)", "A")
	cb := f.reload(t, "Bridge(copy)", "B")
	assert.NotEqual(t, a.ID, ca.ID)
	assert.NotEqual(t, b.ID, cb.ID)
	assert.Equal(t, []string{ca.ID}, cb.Dependencies)
	assert.Equal(t, a.StartTime, ca.StartTime)
	assert.Equal(t, 0, ca.Progress)
	assert.Equal(t, 0, ca.Duration)
	assert.Empty(t, ca.Updates)
	assert.Equal(t, []models.RoleAllocation{{Member: "ana@example.com", Duty: "lead"}}, cp.RoleAllocations[cb.ID])

	// the original is untouched
	assert.Equal(t, []string{a.ID}, f.reload(t, "Bridge", "B").Dependencies)

	_, err = f.svc.Clone(ctx, acme, "Bridge", "Bridge(copy)")
	assert.ErrorIs(t, err, ErrDuplicateName)
}

func TestRestoreProject(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.project(t, "Bridge")

	p, err := f.svc.RestoreProject(ctx, acme, "Bridge")
	require.NoError(t, err)
	assert.Equal(t, string(StateActive), p.State)

	feed, err := f.svc.LatestUpdates(ctx, acme, "Bridge")
	require.NoError(t, err)
	require.Len(t, feed, 1)
	assert.Equal(t, "Project 'Bridge' restored from tentative", feed[0].Description)
}

func TestRestoreTask(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.project(t, "Bridge")
	f.task(t, "Bridge", "A", "1 hour")

	_, err := f.svc.RestoreTask(ctx, acme, "Bridge", "A")
	assert.ErrorIs(t, err, ErrInvalidState)

	f.clock = t0.Add(10 * time.Minute)
	_, err = f.svc.RecordUpdate(ctx, acme, "Bridge", "A", UpdateInput{Percentage: 40})
	require.NoError(t, err)
	f.clock = t0.Add(50 * time.Minute)
	_, err = f.svc.RecordUpdate(ctx, acme, "Bridge", "A", UpdateInput{Percentage: 100})
	require.NoError(t, err)
	require.Equal(t, 50, f.reloadProject(t, "Bridge").Duration)

	f.clock = t0.Add(55 * time.Minute)
	u, err := f.svc.RestoreTask(ctx, acme, "Bridge", "A")
	require.NoError(t, err)
	assert.Equal(t, 40, u.StatusPercentage)
	assert.Equal(t, "Task restored to in progress", u.Description)

	a := f.reload(t, "Bridge", "A")
	assert.Equal(t, 40, a.Progress)
	assert.Equal(t, 0, a.Duration)
	assert.Equal(t, 0, f.reloadProject(t, "Bridge").Duration)

	st, err := f.svc.TaskState(ctx, acme, "Bridge", "A", f.clock)
	require.NoError(t, err)
	assert.Equal(t, StateInProgress, st)
}
