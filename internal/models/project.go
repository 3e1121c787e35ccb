package models

import "time"

// Project types. Scheduled projects may not start in the past; documented
// projects record work that already happened.
const (
	ProjectScheduled  = "scheduled"
	ProjectDocumented = "documented"
)

// Project represents a company's project and the tasks it owns
type Project struct {
	ID                 string                      `json:"id"`
	Name               string                      `json:"name"`
	CompanyName        string                      `json:"company_name"`
	StartDate          time.Time                   `json:"start_date"`
	Timezone           string                      `json:"timezone"`
	ProjectType        string                      `json:"project_type"`
	Objectives         []string                    `json:"objectives"`
	Team               []string                    `json:"team"`
	RoleAllocations    map[string][]RoleAllocation `json:"role_allocations"`
	FundAllocations    []FundAllocation            `json:"fund_allocations"`
	Dependencies       []string                    `json:"dependencies"`
	Tasks              []string                    `json:"tasks"`
	State              string                      `json:"state"`
	Duration           int                         `json:"duration"`
	TotalEstimatedCost float64                     `json:"total_estimated_cost"`
	CreatedAt          time.Time                   `json:"created_at"`
	UpdatedAt          time.Time                   `json:"updated_at"`
}

// RoleAllocation assigns a duty on a task to a team member
type RoleAllocation struct {
	Member string `json:"member"`
	Duty   string `json:"duty"`
}

// FundAllocation earmarks an amount for a member or a task
type FundAllocation struct {
	Amount   float64 `json:"amount"`
	Member   string  `json:"member,omitempty"`
	TaskName string  `json:"task_name,omitempty"`
}

// Location returns the project's time zone, falling back to UTC when the
// stored name cannot be loaded.
func (p *Project) Location() *time.Location {
	if p.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(p.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// HasTask reports whether id is in the project's task list
func (p *Project) HasTask(id string) bool {
	for _, t := range p.Tasks {
		if t == id {
			return true
		}
	}
	return false
}

// RemoveTask drops id from the task list, keeping the order of the rest
func (p *Project) RemoveTask(id string) {
	out := p.Tasks[:0]
	for _, t := range p.Tasks {
		if t != id {
			out = append(out, t)
		}
	}
	p.Tasks = out
}

// AddTeamMembers appends members not already on the team
func (p *Project) AddTeamMembers(members ...string) {
	seen := make(map[string]bool, len(p.Team))
	for _, m := range p.Team {
		seen[m] = true
	}
	for _, m := range members {
		if m == "" || seen[m] {
			continue
		}
		seen[m] = true
		p.Team = append(p.Team, m)
	}
}

// ProjectUpdate is an append-only audit log entry for a project
type ProjectUpdate struct {
	ID          string    `json:"id"`
	ProjectID   string    `json:"project_id"`
	Description string    `json:"description"`
	Timestamp   time.Time `json:"timestamp"`
}

// CreateProjectRequest represents the request body for creating a project.
// StartDate accepts RFC3339 or a plain YYYY-MM-DD date in the project time zone.
type CreateProjectRequest struct {
	Name        string   `json:"project_name"`
	StartDate   string   `json:"start_date,omitempty"`
	Timezone    string   `json:"timezone,omitempty"`
	ProjectType string   `json:"project_type,omitempty"`
	Objectives  []string `json:"objectives,omitempty"`
}

// SplitPart names one of the two projects produced by a split
type SplitPart struct {
	Name  string   `json:"name"`
	Tasks []string `json:"tasks"`
}

// SplitRequest represents the request body for splitting a project
type SplitRequest struct {
	Splits []SplitPart `json:"splits"`
}

// MergeRequest represents the request body for merging projects
type MergeRequest struct {
	ProjectNames []string `json:"project_names"`
	NewName      string   `json:"new_name,omitempty"`
}

// CloneRequest represents the request body for cloning a project
type CloneRequest struct {
	NewName string `json:"new_name,omitempty"`
}

// RestoreRequest represents the request body for restoring a project or one of its tasks
type RestoreRequest struct {
	TaskName string `json:"task_name,omitempty"`
}

// PostponeRequest moves a project or task to a new start
type PostponeRequest struct {
	NewStartTime time.Time `json:"new_start_time"`
	NewDuration  string    `json:"new_duration,omitempty"`
}

// ObjectiveRequest adds an objective to a project
type ObjectiveRequest struct {
	Objective string `json:"objective"`
}

// TeamRequest sets or extends a project's team
type TeamRequest struct {
	Members []string `json:"members"`
}

// RoleRequest allocates, changes or removes a duty on a task
type RoleRequest struct {
	TaskName string `json:"task_name"`
	Member   string `json:"member"`
	Duty     string `json:"duty"`
}

// FundRequest allocates funds to a member or a task
type FundRequest struct {
	Amount   *float64 `json:"amount"`
	Member   string   `json:"member,omitempty"`
	TaskName string   `json:"task_name,omitempty"`
}

// DependencyRequest adds a dependency by name
type DependencyRequest struct {
	Name string `json:"name"`
}
