package scheduling

import (
	"context"
	"sort"
	"strings"
	"time"

	"scheduling-api/internal/duration"
	"scheduling-api/internal/models"
)

// TimetableRow is one task placed on a project's sequential timetable.
type TimetableRow struct {
	Task             string    `json:"task"`
	Start            time.Time `json:"start"`
	End              time.Time `json:"end"`
	ExpectedDuration string    `json:"expected_duration"`
	Duration         string    `json:"duration,omitempty"`
	Members          []string  `json:"members"`
	Progress         int       `json:"progress"`
	State            State     `json:"state"`
}

// GanttRow is one bar of a project's Gantt chart.
type GanttRow struct {
	Task             string    `json:"task"`
	Start            time.Time `json:"start"`
	End              time.Time `json:"end"`
	ExpectedDuration string    `json:"expected_duration"`
	Duration         string    `json:"duration,omitempty"`
	Priority         string    `json:"priority"`
	Progress         int       `json:"progress"`
	Members          string    `json:"members"`
	State            State     `json:"state"`
}

// span is the minutes a task occupies on a chart: its actual duration once
// complete, otherwise the expected one.
func span(t *models.Task) time.Duration {
	m := t.ExpectedDuration
	if t.Progress >= 100 && t.Duration > 0 {
		m = t.Duration
	}
	return time.Duration(m) * time.Minute
}

func actual(t *models.Task) string {
	if t.Progress >= 100 && t.Duration > 0 {
		return duration.Format(t.Duration)
	}
	return ""
}

// BuildTimetable lays tasks out back to back from the project start. A task
// never begins before the previous row ends.
func BuildTimetable(p *models.Project, tasks []models.Task, states map[string]State) []TimetableRow {
	loc := p.Location()
	ordered := append([]models.Task{}, tasks...)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].StartTime.Before(ordered[j].StartTime) })

	rows := make([]TimetableRow, 0, len(ordered))
	cursor := p.StartDate
	for i := range ordered {
		t := &ordered[i]
		start := t.StartTime
		if cursor.After(start) {
			start = cursor
		}
		end := start.Add(span(t))
		rows = append(rows, TimetableRow{
			Task:             t.Name,
			Start:            start.In(loc),
			End:              end.In(loc),
			ExpectedDuration: duration.Format(t.ExpectedDuration),
			Duration:         actual(t),
			Members:          append([]string{}, t.Members...),
			Progress:         t.Progress,
			State:            states[t.ID],
		})
		cursor = end
	}
	return rows
}

// BuildGantt returns one bar per task in project order.
func BuildGantt(p *models.Project, tasks []models.Task, states map[string]State) []GanttRow {
	loc := p.Location()
	rows := make([]GanttRow, 0, len(tasks))
	for i := range tasks {
		t := &tasks[i]
		rows = append(rows, GanttRow{
			Task:             t.Name,
			Start:            t.StartTime.In(loc),
			End:              t.StartTime.Add(span(t)).In(loc),
			ExpectedDuration: duration.Format(t.ExpectedDuration),
			Duration:         actual(t),
			Priority:         t.Priority,
			Progress:         t.Progress,
			Members:          strings.Join(t.Members, ", "),
			State:            states[t.ID],
		})
	}
	return rows
}

// Timetable renders a project's timetable with task states at `at`.
func (s *Service) Timetable(ctx context.Context, company, projectName string, at time.Time) (*models.Project, []TimetableRow, error) {
	p, tasks, states, err := s.viewData(ctx, company, projectName, at)
	if err != nil {
		return nil, nil, err
	}
	return p, BuildTimetable(p, tasks, states), nil
}

// Gantt renders a project's Gantt chart with task states at `at`.
func (s *Service) Gantt(ctx context.Context, company, projectName string, at time.Time) (*models.Project, []GanttRow, error) {
	p, tasks, states, err := s.viewData(ctx, company, projectName, at)
	if err != nil {
		return nil, nil, err
	}
	return p, BuildGantt(p, tasks, states), nil
}

func (s *Service) viewData(ctx context.Context, company, projectName string, at time.Time) (*models.Project, []models.Task, map[string]State, error) {
	p, err := s.Project(ctx, company, projectName)
	if err != nil {
		return nil, nil, nil, err
	}
	tasks, states, err := s.TaskStates(ctx, p, at)
	if err != nil {
		return nil, nil, nil, err
	}
	return p, tasks, states, nil
}
