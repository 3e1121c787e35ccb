package internal

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"scheduling-api/internal/auth"
	"scheduling-api/internal/models"
	"scheduling-api/internal/scheduling"
)

// taskView is a task with its state derived at the request time
type taskView struct {
	*models.Task
	State scheduling.State `json:"state"`
}

func taskName(r *http.Request) string {
	return chi.URLParam(r, "task")
}

func taskInput(req models.CreateTaskRequest) scheduling.TaskInput {
	return scheduling.TaskInput{
		Name:             req.Name,
		StartTime:        req.StartTime,
		ExpectedDuration: req.ExpectedDuration,
		Priority:         req.Priority,
		Members:          req.Members,
		Description:      req.Description,
		EstimatedCost:    req.EstimatedCost,
		Dependencies:     req.Dependencies,
	}
}

// listTasks lists a project's tasks, narrowed by ?priority= or ?member=
func (s *Server) listTasks(w http.ResponseWriter, r *http.Request) {
	var (
		tasks []models.Task
		err   error
	)
	q := r.URL.Query()
	switch {
	case q.Get("priority") != "":
		tasks, err = s.Service.TasksByPriority(r.Context(), company(r), projectName(r), q.Get("priority"))
	case q.Get("member") != "":
		tasks, err = s.Service.TasksByMember(r.Context(), company(r), projectName(r), q.Get("member"))
	default:
		var p *models.Project
		p, err = s.Service.Project(r.Context(), company(r), projectName(r))
		if err == nil {
			tasks, err = s.Service.Tasks(r.Context(), p)
		}
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tasks)
}

// createTasks accepts one task object or an array of them. Arrays are
// processed in order and answered with per-item results.
func (s *Server) createTasks(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		auth.SendErrorResponse(w, "failed to read body", "INVALID_JSON", http.StatusBadRequest)
		return
	}
	trimmed := bytes.TrimSpace(body)

	if len(trimmed) > 0 && trimmed[0] == '[' {
		var reqs []models.CreateTaskRequest
		if err := json.Unmarshal(trimmed, &reqs); err != nil {
			auth.SendErrorResponse(w, "invalid JSON: "+err.Error(), "INVALID_JSON", http.StatusBadRequest)
			return
		}
		items := make([]scheduling.TaskInput, len(reqs))
		for i, req := range reqs {
			items[i] = taskInput(req)
		}
		results, err := s.Service.CreateTasks(r.Context(), company(r), projectName(r), items)
		if err != nil {
			writeError(w, err)
			return
		}
		status := http.StatusCreated
		for _, res := range results {
			if res.Err != nil {
				status = http.StatusMultiStatus
				break
			}
		}
		writeJSON(w, status, results)
		return
	}

	var req models.CreateTaskRequest
	if err := json.Unmarshal(trimmed, &req); err != nil {
		auth.SendErrorResponse(w, "invalid JSON: "+err.Error(), "INVALID_JSON", http.StatusBadRequest)
		return
	}
	t, err := s.Service.CreateTask(r.Context(), company(r), projectName(r), taskInput(req))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, t)
}

func (s *Server) getTask(w http.ResponseWriter, r *http.Request) {
	at, err := s.evaluationTime(r)
	if err != nil {
		writeError(w, err)
		return
	}
	_, t, err := s.Service.Task(r.Context(), company(r), projectName(r), taskName(r))
	if err != nil {
		writeError(w, err)
		return
	}
	st, err := s.Service.TaskState(r.Context(), company(r), projectName(r), taskName(r), at)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, taskView{Task: t, State: st})
}

func (s *Server) taskState(w http.ResponseWriter, r *http.Request) {
	at, err := s.evaluationTime(r)
	if err != nil {
		writeError(w, err)
		return
	}
	st, err := s.Service.TaskState(r.Context(), company(r), projectName(r), taskName(r), at)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"task_name": taskName(r),
		"state":     st,
	})
}

func (s *Server) taskUpdates(w http.ResponseWriter, r *http.Request) {
	updates, err := s.Service.TaskUpdates(r.Context(), company(r), projectName(r), taskName(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updates)
}

type imageRef struct {
	Filename string `json:"filename"`
	URL      string `json:"url"`
}

func (s *Server) taskImages(w http.ResponseWriter, r *http.Request) {
	names, err := s.Service.TaskImages(r.Context(), company(r), projectName(r), taskName(r))
	if err != nil {
		writeError(w, err)
		return
	}
	images := make([]imageRef, len(names))
	for i, n := range names {
		images[i] = imageRef{Filename: n, URL: "/uploads/" + n}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"project": projectName(r),
		"task":    taskName(r),
		"images":  images,
	})
}

// recordUpdate takes a JSON body, or a multipart form with the same fields
// plus "images" files.
func (s *Server) recordUpdate(w http.ResponseWriter, r *http.Request) {
	var (
		req    models.UpdateRequest
		images []string
	)
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		var ok bool
		req, images, ok = s.readUpdateForm(w, r)
		if !ok {
			return
		}
	} else if !decodeJSON(w, r, &req) {
		return
	}

	u, err := s.Service.RecordUpdate(r.Context(), company(r), projectName(r), taskName(r), scheduling.UpdateInput{
		Percentage:  req.StatusPercentage,
		Description: req.Description,
		Images:      images,
		Expenditure: req.Expenditure,
	})
	if err != nil {
		if rmErr := s.Uploads.Remove(images...); rmErr != nil {
			log.Printf("remove orphaned uploads: %v", rmErr)
		}
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, u)
}

// readUpdateForm parses a multipart update and stores its images under the
// number the update is about to get.
func (s *Server) readUpdateForm(w http.ResponseWriter, r *http.Request) (models.UpdateRequest, []string, bool) {
	var req models.UpdateRequest
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)
	if err := r.ParseMultipartForm(s.cfg.MaxUploadBytes); err != nil {
		auth.SendErrorResponse(w, "invalid multipart form: "+err.Error(), "INVALID_FORM", http.StatusBadRequest)
		return req, nil, false
	}

	pct, err := strconv.Atoi(strings.TrimSpace(r.FormValue("status_percentage")))
	if err != nil {
		auth.SendErrorResponse(w, "status_percentage must be an integer", "INVALID_INPUT", http.StatusBadRequest)
		return req, nil, false
	}
	req.StatusPercentage = pct
	req.Description = r.FormValue("description")
	if v := strings.TrimSpace(r.FormValue("expenditure")); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			auth.SendErrorResponse(w, "expenditure must be a number", "INVALID_INPUT", http.StatusBadRequest)
			return req, nil, false
		}
		req.Expenditure = &f
	}

	var files []*multipart.FileHeader
	if r.MultipartForm != nil {
		files = r.MultipartForm.File["images"]
	}
	if len(files) == 0 {
		return req, nil, true
	}

	_, t, err := s.Service.Task(r.Context(), company(r), projectName(r), taskName(r))
	if err != nil {
		writeError(w, err)
		return req, nil, false
	}
	updateNo := len(t.Updates) + 1

	var saved []string
	for i, fh := range files {
		name, err := s.saveImage(t.ID, updateNo, i+1, fh)
		if err != nil {
			if rmErr := s.Uploads.Remove(saved...); rmErr != nil {
				log.Printf("remove partial uploads: %v", rmErr)
			}
			writeError(w, err)
			return req, nil, false
		}
		saved = append(saved, name)
	}
	return req, saved, true
}

func (s *Server) saveImage(taskID string, update, index int, fh *multipart.FileHeader) (string, error) {
	f, err := fh.Open()
	if err != nil {
		return "", fmt.Errorf("open upload %s: %w", fh.Filename, err)
	}
	defer f.Close()
	return s.Uploads.Save(taskID, update, index, fh.Filename, f)
}

func (s *Server) markTask(w http.ResponseWriter, r *http.Request) {
	var req models.MarkRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	u, err := s.Service.MarkTask(r.Context(), company(r), projectName(r), taskName(r), req.State)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (s *Server) postponeTask(w http.ResponseWriter, r *http.Request) {
	var req models.PostponeRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	t, err := s.Service.PostponeTask(r.Context(), company(r), projectName(r), taskName(r), req.NewStartTime, req.NewDuration)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (s *Server) restoreTask(w http.ResponseWriter, r *http.Request) {
	u, err := s.Service.RestoreTask(r.Context(), company(r), projectName(r), taskName(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (s *Server) addTaskDependency(w http.ResponseWriter, r *http.Request) {
	var req models.DependencyRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	t, err := s.Service.AddTaskDependency(r.Context(), company(r), projectName(r), taskName(r), req.Name)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

// serveUpload streams a stored image. Names carry the task id, so only
// images of the caller's company's tasks are served.
func (s *Server) serveUpload(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "filename")
	path, err := s.Uploads.Path(name)
	if err != nil {
		writeError(w, err)
		return
	}
	if !s.ownsUpload(r, name) {
		auth.SendErrorResponse(w, "not found", "NOT_FOUND", http.StatusNotFound)
		return
	}
	http.ServeFile(w, r, path)
}

// ownsUpload checks that the task encoded in an image name belongs to a
// project of the caller's company.
func (s *Server) ownsUpload(r *http.Request, name string) bool {
	rest, ok := strings.CutPrefix(name, "task")
	if !ok {
		return false
	}
	i := strings.Index(rest, "_update")
	if i <= 0 {
		return false
	}
	t, err := s.Store.GetTask(r.Context(), rest[:i])
	if err != nil {
		return false
	}
	p, err := s.Store.GetProject(r.Context(), t.ProjectID)
	if err != nil {
		return false
	}
	return p.CompanyName == company(r)
}
