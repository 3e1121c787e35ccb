package internal

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"scheduling-api/internal/auth"
	"scheduling-api/internal/models"
	"scheduling-api/internal/scheduling"
)

// projectView is a project with its state derived at the request time
type projectView struct {
	*models.Project
	DerivedState scheduling.State `json:"derived_state"`
}

func company(r *http.Request) string {
	return auth.CompanyFromContext(r.Context())
}

func projectName(r *http.Request) string {
	return chi.URLParam(r, "project")
}

func (s *Server) listProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := s.Service.ListProjects(r.Context(), company(r), parseListParams(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, projects)
}

func (s *Server) createProject(w http.ResponseWriter, r *http.Request) {
	var req models.CreateProjectRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	p, err := s.Service.CreateProject(r.Context(), company(r), scheduling.ProjectInput{
		Name:        req.Name,
		StartDate:   req.StartDate,
		Timezone:    req.Timezone,
		ProjectType: req.ProjectType,
		Objectives:  req.Objectives,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (s *Server) getProject(w http.ResponseWriter, r *http.Request) {
	at, err := s.evaluationTime(r)
	if err != nil {
		writeError(w, err)
		return
	}
	p, err := s.Service.Project(r.Context(), company(r), projectName(r))
	if err != nil {
		writeError(w, err)
		return
	}
	st, err := s.Service.ProjectState(r.Context(), p, at)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, projectView{Project: p, DerivedState: st})
}

// projectState derives the project's state and caches it on the record
func (s *Server) projectState(w http.ResponseWriter, r *http.Request) {
	at, err := s.evaluationTime(r)
	if err != nil {
		writeError(w, err)
		return
	}
	p, err := s.Service.RefreshProjectState(r.Context(), company(r), projectName(r), at)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"project_name": p.Name,
		"state":        p.State,
	})
}

func (s *Server) refreshCompanyStates(w http.ResponseWriter, r *http.Request) {
	at, err := s.evaluationTime(r)
	if err != nil {
		writeError(w, err)
		return
	}
	projects, err := s.Service.RefreshCompanyStates(r.Context(), company(r), at)
	if err != nil {
		writeError(w, err)
		return
	}
	states := make(map[string]string, len(projects))
	for _, p := range projects {
		states[p.Name] = p.State
	}
	writeJSON(w, http.StatusOK, states)
}

func (s *Server) postponeProject(w http.ResponseWriter, r *http.Request) {
	var req models.PostponeRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	p, err := s.Service.PostponeProject(r.Context(), company(r), projectName(r), req.NewStartTime)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) postponeCompany(w http.ResponseWriter, r *http.Request) {
	var req models.PostponeRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	projects, err := s.Service.PostponeCompany(r.Context(), company(r), req.NewStartTime)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, projects)
}

func (s *Server) addObjective(w http.ResponseWriter, r *http.Request) {
	var req models.ObjectiveRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	p, err := s.Service.AddObjective(r.Context(), company(r), projectName(r), req.Objective)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) setTeam(w http.ResponseWriter, r *http.Request) {
	var req models.TeamRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	p, err := s.Service.SetTeam(r.Context(), company(r), projectName(r), req.Members)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) addTeamMembers(w http.ResponseWriter, r *http.Request) {
	var req models.TeamRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	p, err := s.Service.AddTeamMembers(r.Context(), company(r), projectName(r), req.Members)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) editRole(w http.ResponseWriter, r *http.Request, op func(*http.Request, scheduling.RoleInput) (*models.Project, error)) {
	var req models.RoleRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	p, err := op(r, scheduling.RoleInput{TaskName: req.TaskName, Member: req.Member, Duty: req.Duty})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) allocateRole(w http.ResponseWriter, r *http.Request) {
	s.editRole(w, r, func(r *http.Request, in scheduling.RoleInput) (*models.Project, error) {
		return s.Service.AllocateRole(r.Context(), company(r), projectName(r), in)
	})
}

func (s *Server) changeRole(w http.ResponseWriter, r *http.Request) {
	s.editRole(w, r, func(r *http.Request, in scheduling.RoleInput) (*models.Project, error) {
		return s.Service.ChangeRole(r.Context(), company(r), projectName(r), in)
	})
}

func (s *Server) removeRole(w http.ResponseWriter, r *http.Request) {
	s.editRole(w, r, func(r *http.Request, in scheduling.RoleInput) (*models.Project, error) {
		return s.Service.RemoveRole(r.Context(), company(r), projectName(r), in)
	})
}

func (s *Server) allocateFunds(w http.ResponseWriter, r *http.Request) {
	var req models.FundRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	p, err := s.Service.AllocateFunds(r.Context(), company(r), projectName(r), scheduling.FundInput{
		Amount:   req.Amount,
		Member:   req.Member,
		TaskName: req.TaskName,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) addProjectDependency(w http.ResponseWriter, r *http.Request) {
	var req models.DependencyRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	p, err := s.Service.AddProjectDependency(r.Context(), company(r), projectName(r), req.Name)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) splitProject(w http.ResponseWriter, r *http.Request) {
	var req models.SplitRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	parts := make([]scheduling.SplitPart, len(req.Splits))
	for i, sp := range req.Splits {
		parts[i] = scheduling.SplitPart{Name: sp.Name, Tasks: sp.Tasks}
	}
	projects, err := s.Service.Split(r.Context(), company(r), projectName(r), parts)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, projects)
}

func (s *Server) mergeProjects(w http.ResponseWriter, r *http.Request) {
	var req models.MergeRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	p, err := s.Service.Merge(r.Context(), company(r), req.ProjectNames, req.NewName)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (s *Server) cloneProject(w http.ResponseWriter, r *http.Request) {
	var req models.CloneRequest
	if r.ContentLength != 0 && !decodeJSON(w, r, &req) {
		return
	}
	p, err := s.Service.Clone(r.Context(), company(r), projectName(r), req.NewName)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

// restoreProject reactivates the project, or with a task_name body restores
// that task instead
func (s *Server) restoreProject(w http.ResponseWriter, r *http.Request) {
	var req models.RestoreRequest
	if r.ContentLength != 0 && !decodeJSON(w, r, &req) {
		return
	}
	if req.TaskName != "" {
		u, err := s.Service.RestoreTask(r.Context(), company(r), projectName(r), req.TaskName)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, u)
		return
	}
	p, err := s.Service.RestoreProject(r.Context(), company(r), projectName(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// latestUpdates serves the activity feed, optionally for one ?project=
func (s *Server) latestUpdates(w http.ResponseWriter, r *http.Request) {
	feed, err := s.Service.LatestUpdates(r.Context(), company(r), r.URL.Query().Get("project"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, feed)
}
