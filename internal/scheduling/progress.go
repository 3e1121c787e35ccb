package scheduling

import (
	"context"
	"fmt"
	"strings"
	"time"

	"scheduling-api/internal/models"
)

// Mark states accepted by MarkTask.
const (
	MarkStarted   = "started"
	MarkPostponed = "postponed"
	MarkComplete  = "complete"
)

// UpdateInput is a progress report on a task.
type UpdateInput struct {
	Percentage  int
	Description string
	Images      []string
	Expenditure *float64
}

// ElapsedMinutes is the whole minutes from start to at, never negative.
func ElapsedMinutes(start, at time.Time) int {
	m := int(at.Sub(start) / time.Minute)
	if m < 0 {
		return 0
	}
	return m
}

// AllComplete reports whether tasks is non-empty and every task is at 100%
func AllComplete(tasks []models.Task) bool {
	if len(tasks) == 0 {
		return false
	}
	for i := range tasks {
		if tasks[i].Progress < 100 {
			return false
		}
	}
	return true
}

// TotalDuration sums the actual durations of tasks.
func TotalDuration(tasks []models.Task) int {
	total := 0
	for i := range tasks {
		total += tasks[i].Duration
	}
	return total
}

// TotalEstimatedCost sums the estimated costs of tasks.
func TotalEstimatedCost(tasks []models.Task) float64 {
	total := 0.0
	for i := range tasks {
		total += tasks[i].EstimatedCost
	}
	return total
}

// RecordUpdate appends a progress report to a task. A 100% report fixes the
// task's actual duration, and once every task of the project is complete the
// project's duration becomes the sum of theirs.
func (s *Service) RecordUpdate(ctx context.Context, company, projectName, taskName string, in UpdateInput) (*models.TaskUpdate, error) {
	p, t, err := s.Task(ctx, company, projectName, taskName)
	if err != nil {
		return nil, err
	}
	return s.recordUpdate(ctx, p, t, in)
}

func (s *Service) recordUpdate(ctx context.Context, p *models.Project, t *models.Task, in UpdateInput) (*models.TaskUpdate, error) {
	if in.Percentage < 0 || in.Percentage > 100 {
		return nil, fmt.Errorf("%w: status_percentage must be between 0 and 100", ErrInvalidInput)
	}
	if in.Expenditure != nil && *in.Expenditure < 0 {
		return nil, fmt.Errorf("%w: expenditure must not be negative", ErrInvalidInput)
	}

	now := s.now()
	completed := in.Percentage == 100
	u, err := s.appendUpdate(ctx, t, in, now, completed)
	if err != nil {
		return nil, err
	}
	s.obs.TaskUpdateRecorded(completed)
	if !completed {
		return u, nil
	}

	tasks, err := s.Tasks(ctx, p)
	if err != nil {
		return nil, err
	}
	if AllComplete(tasks) {
		p.Duration = TotalDuration(tasks)
		if err := s.store.UpdateProject(ctx, p); err != nil {
			return nil, err
		}
	}
	return u, nil
}

// appendUpdate stores the update and moves the task's cached progress.
// finalize fixes the task's actual duration at now. Nothing is aggregated
// onto the project.
func (s *Service) appendUpdate(ctx context.Context, t *models.Task, in UpdateInput, now time.Time, finalize bool) (*models.TaskUpdate, error) {
	u := &models.TaskUpdate{
		TaskID:           t.ID,
		StatusPercentage: in.Percentage,
		Description:      in.Description,
		ImageFilenames:   append([]string{}, in.Images...),
		Expenditure:      in.Expenditure,
		Timestamp:        now,
	}
	if err := s.store.CreateTaskUpdate(ctx, u); err != nil {
		return nil, err
	}
	t.Updates = append(t.Updates, u.ID)
	t.Progress = in.Percentage
	if finalize {
		t.Duration = ElapsedMinutes(t.StartTime, now)
	}
	if err := s.store.UpdateTask(ctx, t); err != nil {
		return nil, err
	}
	return u, nil
}

// MarkTask marks a task started, postponed or complete. Each mark is logged
// as an update at the resulting progress.
func (s *Service) MarkTask(ctx context.Context, company, projectName, taskName, state string) (*models.TaskUpdate, error) {
	p, t, err := s.Task(ctx, company, projectName, taskName)
	if err != nil {
		return nil, err
	}
	switch strings.ToLower(strings.TrimSpace(state)) {
	case MarkComplete:
		return s.recordUpdate(ctx, p, t, UpdateInput{Percentage: 100, Description: "Task marked as complete"})
	case MarkStarted:
		return s.appendUpdate(ctx, t, UpdateInput{Percentage: t.Progress, Description: "Task marked as started"}, s.now(), false)
	case MarkPostponed:
		t.Postponed = true
		return s.appendUpdate(ctx, t, UpdateInput{Percentage: t.Progress, Description: "Task marked as postponed"}, s.now(), false)
	default:
		return nil, fmt.Errorf("%w: state must be one of %s, %s, %s", ErrInvalidInput, MarkStarted, MarkPostponed, MarkComplete)
	}
}

// TaskUpdates returns a task's update history, oldest first.
func (s *Service) TaskUpdates(ctx context.Context, company, projectName, taskName string) ([]models.TaskUpdate, error) {
	_, t, err := s.Task(ctx, company, projectName, taskName)
	if err != nil {
		return nil, err
	}
	return s.store.ListTaskUpdates(ctx, t.ID)
}

// TaskImages lists the image filenames attached to a task's updates.
func (s *Service) TaskImages(ctx context.Context, company, projectName, taskName string) ([]string, error) {
	updates, err := s.TaskUpdates(ctx, company, projectName, taskName)
	if err != nil {
		return nil, err
	}
	images := []string{}
	for _, u := range updates {
		images = append(images, u.ImageFilenames...)
	}
	return images, nil
}
