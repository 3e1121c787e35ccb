package scheduling

import (
	"fmt"
	"time"

	"scheduling-api/internal/models"
)

// DependencyEnd returns the latest planned end among deps. ok is false when
// deps is empty.
func DependencyEnd(deps []models.Task) (end time.Time, ok bool) {
	for i := range deps {
		e := deps[i].PlannedEnd()
		if !ok || e.After(end) {
			end, ok = e, true
		}
	}
	return end, ok
}

// ResolveStartTime picks a task's start. Without an explicit start the task
// begins at the later of the project start and the end of its latest
// dependency. An explicit start only has to respect the project start;
// dependency timing is not enforced against it.
func ResolveStartTime(project *models.Project, explicit *time.Time, deps []models.Task) (time.Time, error) {
	if explicit != nil {
		if explicit.Before(project.StartDate) {
			return time.Time{}, fmt.Errorf("%w: task start %s is before project start %s",
				ErrPastStartTime, explicit.Format(time.RFC3339), project.StartDate.Format(time.RFC3339))
		}
		return *explicit, nil
	}
	if end, ok := DependencyEnd(deps); ok && end.After(project.StartDate) {
		return end, nil
	}
	return project.StartDate, nil
}

// FilterDependencies keeps the ids that name an existing task of projectID,
// dropping duplicates and everything else.
func FilterDependencies(projectID string, ids []string, lookup func(id string) (*models.Task, bool)) []string {
	valid := make([]string, 0, len(ids))
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		t, ok := lookup(id)
		if !ok || t.ProjectID != projectID {
			continue
		}
		valid = append(valid, id)
	}
	return valid
}

// reachable reports whether to can be reached from from by following edges.
func reachable(from, to string, edges func(id string) []string) bool {
	seen := map[string]bool{}
	stack := []string{from}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if n == to {
			return true
		}
		if seen[n] {
			continue
		}
		seen[n] = true
		stack = append(stack, edges(n)...)
	}
	return false
}

// ClosesCycle reports whether adding the edge from -> to (from depends on to)
// would create a cycle.
func ClosesCycle(from, to string, edges func(id string) []string) bool {
	return from == to || reachable(to, from, edges)
}

// shiftTasks moves every task's start by delta, keeping relative offsets.
func shiftTasks(tasks []models.Task, delta time.Duration) {
	for i := range tasks {
		tasks[i].StartTime = tasks[i].StartTime.Add(delta)
	}
}
