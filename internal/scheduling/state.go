package scheduling

import (
	"fmt"
	"time"

	"scheduling-api/internal/models"
)

// State is the derived lifecycle state of a task or project.
type State string

const (
	StateTentative  State = "tentative"
	StateIncipient  State = "incipient"
	StateInProgress State = "in progress"
	StateOverdue    State = "overdue"
	StateDelayed    State = "delayed"
	StatePostponed  State = "postponed"
	StateComplete   State = "complete"
	StateActive     State = "active"
)

// Evaluator derives task and project states at a fixed instant over a
// snapshot of tasks. It never writes; results are memoised per task.
type Evaluator struct {
	now      time.Time
	tasks    map[string]*models.Task
	memo     map[string]State
	visiting map[string]bool
}

// NewEvaluator snapshots tasks for evaluation at now. Dependencies missing
// from the snapshot are treated as absent and skipped.
func NewEvaluator(now time.Time, tasks []models.Task) *Evaluator {
	e := &Evaluator{
		now:      now,
		tasks:    make(map[string]*models.Task, len(tasks)),
		memo:     make(map[string]State, len(tasks)),
		visiting: make(map[string]bool),
	}
	for i := range tasks {
		e.tasks[tasks[i].ID] = &tasks[i]
	}
	return e
}

// TaskState derives the state of the task with id. Precedence: postponed,
// then dependency states, then progress, then the planned window.
func (e *Evaluator) TaskState(id string) (State, error) {
	if s, ok := e.memo[id]; ok {
		return s, nil
	}
	t, ok := e.tasks[id]
	if !ok {
		return "", fmt.Errorf("task %s: %w", id, ErrNotFound)
	}
	if e.visiting[id] {
		return "", fmt.Errorf("%w: task %q depends on itself", ErrCyclicDependency, t.Name)
	}
	e.visiting[id] = true
	defer delete(e.visiting, id)

	s, err := e.derive(t)
	if err != nil {
		return "", err
	}
	e.memo[id] = s
	return s, nil
}

func (e *Evaluator) derive(t *models.Task) (State, error) {
	if t.Postponed {
		return StatePostponed, nil
	}

	// A late dependency anywhere in the list outranks an unfinished one.
	pending := false
	for _, dep := range t.Dependencies {
		if _, ok := e.tasks[dep]; !ok {
			continue
		}
		ds, err := e.TaskState(dep)
		if err != nil {
			return "", err
		}
		switch {
		case ds == StateDelayed || ds == StateOverdue:
			return StateDelayed, nil
		case ds != StateComplete:
			pending = true
		}
	}
	if pending {
		return StateTentative, nil
	}

	switch {
	case t.Progress >= 100:
		return StateComplete, nil
	case e.now.Before(t.StartTime):
		return StateTentative, nil
	case e.now.After(t.PlannedEnd()):
		return StateOverdue, nil
	case t.Progress == 0:
		return StateIncipient, nil
	default:
		return StateInProgress, nil
	}
}

// ProjectState derives a project's state from its upstream projects' cached
// states and its own tasks, which must be in the snapshot.
func (e *Evaluator) ProjectState(p *models.Project, upstream []models.Project) (State, error) {
	for i := range upstream {
		if State(upstream[i].State) != StateComplete {
			return StateDelayed, nil
		}
	}

	var (
		tentative, complete int
		latestEnd           time.Time
		counted             int
	)
	for _, id := range p.Tasks {
		t, ok := e.tasks[id]
		if !ok {
			continue
		}
		s, err := e.TaskState(id)
		if err != nil {
			return "", err
		}
		counted++
		switch s {
		case StateTentative:
			tentative++
		case StateComplete:
			complete++
		}
		if end := t.PlannedEnd(); end.After(latestEnd) {
			latestEnd = end
		}
	}

	switch {
	case counted == 0 || tentative == counted:
		return StateTentative, nil
	case complete == counted:
		return StateComplete, nil
	case e.now.After(latestEnd):
		return StateOverdue, nil
	default:
		return StateActive, nil
	}
}

// States derives the state of every task in the snapshot order given by ids.
func (e *Evaluator) States(ids []string) (map[string]State, error) {
	out := make(map[string]State, len(ids))
	for _, id := range ids {
		if _, ok := e.tasks[id]; !ok {
			continue
		}
		s, err := e.TaskState(id)
		if err != nil {
			return nil, err
		}
		out[id] = s
	}
	return out, nil
}
