package models

import "time"

// Task represents a schedulable unit of work owned by exactly one project
type Task struct {
	ID               string    `json:"id"`
	ProjectID        string    `json:"project_id"`
	Name             string    `json:"name"`
	StartTime        time.Time `json:"start_time"`
	ExpectedDuration int       `json:"expected_duration"` // planned minutes
	Duration         int       `json:"duration"`          // actual minutes, 0 until complete
	Priority         string    `json:"priority"`
	Members          []string  `json:"members"`
	Description      string    `json:"description,omitempty"`
	Dependencies     []string  `json:"dependencies"`
	EstimatedCost    float64   `json:"estimated_cost"`
	Postponed        bool      `json:"postponed"`
	Progress         int       `json:"progress"` // latest status percentage
	Updates          []string  `json:"updates"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// PlannedEnd is the start time plus the expected duration
func (t *Task) PlannedEnd() time.Time {
	return t.StartTime.Add(time.Duration(t.ExpectedDuration) * time.Minute)
}

// HasMember reports whether member is assigned to the task
func (t *Task) HasMember(member string) bool {
	for _, m := range t.Members {
		if m == member {
			return true
		}
	}
	return false
}

// TaskUpdate is an immutable progress report on a task
type TaskUpdate struct {
	ID               string    `json:"id"`
	TaskID           string    `json:"task_id"`
	StatusPercentage int       `json:"status_percentage"`
	Description      string    `json:"description,omitempty"`
	ImageFilenames   []string  `json:"image_filenames"`
	Expenditure      *float64  `json:"expenditure,omitempty"`
	Timestamp        time.Time `json:"timestamp"`
}

// CreateTaskRequest represents the request body for creating a task.
// Dependencies are task names within the same project.
type CreateTaskRequest struct {
	Name             string     `json:"task_name"`
	StartTime        *time.Time `json:"start_time,omitempty"`
	ExpectedDuration string     `json:"expected_duration"`
	Priority         string     `json:"priority,omitempty"`
	Members          []string   `json:"members,omitempty"`
	Description      string     `json:"description,omitempty"`
	EstimatedCost    float64    `json:"estimated_cost,omitempty"`
	Dependencies     []string   `json:"dependencies,omitempty"`
}

// MarkRequest marks a task as started, postponed or complete
type MarkRequest struct {
	State string `json:"state"`
}

// UpdateRequest reports progress on a task. Multipart requests carry the
// same fields as form values plus image files.
type UpdateRequest struct {
	StatusPercentage int      `json:"status_percentage"`
	Description      string   `json:"description,omitempty"`
	Expenditure      *float64 `json:"expenditure,omitempty"`
}
