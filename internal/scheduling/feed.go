package scheduling

import (
	"context"
	"sort"
	"time"

	"scheduling-api/internal/models"
	"scheduling-api/internal/store"
)

// Feed entry types.
const (
	FeedTask    = "task"
	FeedProject = "project"
)

// FeedEntry is one item of the latest-updates feed.
type FeedEntry struct {
	Type             string    `json:"type"`
	ProjectName      string    `json:"project_name"`
	TaskName         string    `json:"task_name,omitempty"`
	Description      string    `json:"description"`
	StatusPercentage *int      `json:"status_percentage,omitempty"`
	Images           []string  `json:"images,omitempty"`
	Timestamp        time.Time `json:"timestamp"`
}

// LatestUpdates returns the newest update of every task plus every project
// log entry, newest first. A non-empty projectName limits the feed to it.
func (s *Service) LatestUpdates(ctx context.Context, company, projectName string) ([]FeedEntry, error) {
	var projects []models.Project
	if projectName != "" {
		p, err := s.Project(ctx, company, projectName)
		if err != nil {
			return nil, err
		}
		projects = []models.Project{*p}
	} else {
		var err error
		projects, err = s.ListProjects(ctx, company, store.ProjectFilter{})
		if err != nil {
			return nil, err
		}
	}

	feed := []FeedEntry{}
	ids := make([]string, 0, len(projects))
	names := make(map[string]string, len(projects))
	for i := range projects {
		p := &projects[i]
		ids = append(ids, p.ID)
		names[p.ID] = p.Name

		tasks, err := s.Tasks(ctx, p)
		if err != nil {
			return nil, err
		}
		for _, t := range tasks {
			updates, err := s.store.ListTaskUpdates(ctx, t.ID)
			if err != nil {
				return nil, err
			}
			if len(updates) == 0 {
				continue
			}
			u := updates[len(updates)-1]
			pct := u.StatusPercentage
			feed = append(feed, FeedEntry{
				Type:             FeedTask,
				ProjectName:      p.Name,
				TaskName:         t.Name,
				Description:      u.Description,
				StatusPercentage: &pct,
				Images:           u.ImageFilenames,
				Timestamp:        u.Timestamp,
			})
		}
	}

	logs, err := s.store.ListProjectUpdates(ctx, ids)
	if err != nil {
		return nil, err
	}
	for _, u := range logs {
		feed = append(feed, FeedEntry{
			Type:        FeedProject,
			ProjectName: names[u.ProjectID],
			Description: u.Description,
			Timestamp:   u.Timestamp,
		})
	}

	sort.SliceStable(feed, func(i, j int) bool { return feed[i].Timestamp.After(feed[j].Timestamp) })
	return feed, nil
}
