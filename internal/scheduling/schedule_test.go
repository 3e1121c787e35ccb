package scheduling

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scheduling-api/internal/models"
)

func TestResolveStartTime(t *testing.T) {
	p := &models.Project{StartDate: t0}

	got, err := ResolveStartTime(p, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, t0, got)

	// dependency ending after the project start wins
	deps := []models.Task{task("a", t0, 60, 0), task("b", t0.Add(30*time.Minute), 120, 0)}
	got, err = ResolveStartTime(p, nil, deps)
	require.NoError(t, err)
	assert.Equal(t, t0.Add(150*time.Minute), got)

	// dependency ending before the project start does not
	early := []models.Task{task("a", t0.Add(-5*time.Hour), 60, 0)}
	got, err = ResolveStartTime(p, nil, early)
	require.NoError(t, err)
	assert.Equal(t, t0, got)

	// explicit start wins over dependency timing
	explicit := t0.Add(10 * time.Minute)
	got, err = ResolveStartTime(p, &explicit, deps)
	require.NoError(t, err)
	assert.Equal(t, explicit, got)

	before := t0.Add(-time.Minute)
	_, err = ResolveStartTime(p, &before, nil)
	assert.ErrorIs(t, err, ErrPastStartTime)
}

func TestFilterDependencies(t *testing.T) {
	known := map[string]*models.Task{
		"a": {ID: "a", ProjectID: "p1"},
		"b": {ID: "b", ProjectID: "p1"},
		"x": {ID: "x", ProjectID: "p2"},
	}
	lookup := func(id string) (*models.Task, bool) {
		t, ok := known[id]
		return t, ok
	}
	got := FilterDependencies("p1", []string{"a", "x", "missing", "b", "a"}, lookup)
	assert.Equal(t, []string{"a", "b"}, got)
	assert.Empty(t, FilterDependencies("p1", nil, lookup))
}

func TestClosesCycle(t *testing.T) {
	edges := map[string][]string{
		"b": {"a"},
		"c": {"b"},
	}
	next := func(id string) []string { return edges[id] }

	assert.True(t, ClosesCycle("a", "c", next))
	assert.True(t, ClosesCycle("a", "a", next))
	assert.False(t, ClosesCycle("c", "a", next))
	assert.False(t, ClosesCycle("d", "c", next))
}

func TestShiftTasksPreservesOffsets(t *testing.T) {
	tasks := []models.Task{task("a", t0, 60, 0), task("b", t0.Add(90*time.Minute), 60, 0)}
	shiftTasks(tasks, 48*time.Hour)
	assert.Equal(t, t0.Add(48*time.Hour), tasks[0].StartTime)
	assert.Equal(t, 90*time.Minute, tasks[1].StartTime.Sub(tasks[0].StartTime))
}
