package internal

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scheduling-api/internal/auth"
	"scheduling-api/internal/config"
	"scheduling-api/internal/models"
	"scheduling-api/internal/scheduling"
	"scheduling-api/internal/store"
)

var t0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

type harness struct {
	t     *testing.T
	srv   *Server
	clock time.Time
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{t: t, clock: t0}
	cfg := &config.Config{
		JWTSecret:       "test-secret-key-that-is-long-enough-for-testing",
		JWTIssuer:       "test-issuer",
		JWTAudience:     "test-audience",
		JWTExpiry:       time.Hour,
		StoreDriver:     config.DriverMemory,
		UploadDir:       t.TempDir(),
		MaxUploadBytes:  1 << 20,
		DefaultTimezone: "UTC",
		EnableMetrics:   true,
		EnableSwagger:   true,
	}
	srv, err := NewServer(cfg, store.NewMemory(), scheduling.WithClock(func() time.Time { return h.clock }))
	require.NoError(t, err)
	h.srv = srv
	return h
}

func (h *harness) token(company, role string) string {
	h.t.Helper()
	tok, err := h.srv.JWTManager.GenerateToken("ana@example.com", company, role)
	require.NoError(h.t, err)
	return tok
}

func (h *harness) send(req *http.Request, token string) *httptest.ResponseRecorder {
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	h.srv.Router.ServeHTTP(w, req)
	return w
}

func (h *harness) do(method, path, token string, body interface{}) *httptest.ResponseRecorder {
	h.t.Helper()
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		require.NoError(h.t, json.NewEncoder(&buf).Encode(b))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	return h.send(req, token)
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(w.Body).Decode(&v), w.Body.String())
	return v
}

func (h *harness) seedProject(token string) {
	h.t.Helper()
	w := h.do("POST", "/projects", token, models.CreateProjectRequest{Name: "Bridge", StartDate: "2024-01-01", Timezone: "UTC"})
	require.Equal(h.t, http.StatusCreated, w.Code, w.Body.String())
	w = h.do("POST", "/projects/Bridge/tasks", token, `{"task_name":"A","expected_duration":"1 hour"}`)
	require.Equal(h.t, http.StatusCreated, w.Code, w.Body.String())
}

func TestPublicRoutes(t *testing.T) {
	h := newHarness(t)

	w := h.do("GET", "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", w.Body.String())

	w = h.do("GET", "/dbping", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = h.do("GET", "/openapi.yaml", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "openapi:")

	w = h.do("GET", "/docs", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = h.do("GET", "/projects", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRegisterAndLogin(t *testing.T) {
	h := newHarness(t)

	reg := models.RegisterRequest{Username: " Ana@Example.com ", Password: "correct horse", CompanyName: "Acme", Role: "manager"}
	w := h.do("POST", "/auth/register", "", reg)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.NotContains(t, w.Body.String(), "password")
	user := decode[models.User](t, w)
	assert.Equal(t, "ana@example.com", user.Username)

	w = h.do("POST", "/auth/register", "", reg)
	assert.Equal(t, http.StatusConflict, w.Code)

	bad := []models.RegisterRequest{
		{Username: "not-an-email", Password: "correct horse", CompanyName: "Acme"},
		{Username: "bo@example.com", Password: "short", CompanyName: "Acme"},
		{Username: "bo@example.com", Password: "correct horse"},
		{Username: "bo@example.com", Password: "correct horse", CompanyName: "Acme", Role: "owner"},
	}
	for _, b := range bad {
		w = h.do("POST", "/auth/register", "", b)
		assert.Equal(t, http.StatusBadRequest, w.Code, b)
	}

	w = h.do("POST", "/auth/login", "", models.LoginRequest{Username: "ana@example.com", Password: "wrong password"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	w = h.do("POST", "/auth/login", "", models.LoginRequest{Username: "nobody@example.com", Password: "whatever1"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = h.do("POST", "/auth/login", "", models.LoginRequest{Username: "ANA@example.com", Password: "correct horse"})
	require.Equal(t, http.StatusOK, w.Code)
	login := decode[models.LoginResponse](t, w)
	require.NotEmpty(t, login.Token)

	claims, err := h.srv.JWTManager.ValidateToken(login.Token)
	require.NoError(t, err)
	assert.Equal(t, "Acme", claims.CompanyName)
	assert.Equal(t, "manager", claims.Role)

	w = h.do("GET", "/auth/profile", login.Token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Acme", decode[models.User](t, w).CompanyName)

	// the new manager can create projects
	w = h.do("POST", "/projects", login.Token, models.CreateProjectRequest{Name: "Bridge", StartDate: "2024-01-01"})
	assert.Equal(t, http.StatusCreated, w.Code, w.Body.String())
}

func TestProjectAndTaskFlow(t *testing.T) {
	h := newHarness(t)
	mgr := h.token("Acme", "manager")
	h.seedProject(mgr)

	w := h.do("POST", "/projects", mgr, models.CreateProjectRequest{Name: "bridge"})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "DUPLICATE_NAME", decode[auth.ErrorResponse](t, w).Code)

	w = h.do("POST", "/projects", mgr, models.CreateProjectRequest{Name: "Old", StartDate: "2023-01-01"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "PAST_START_TIME", decode[auth.ErrorResponse](t, w).Code)

	// batch: one good item, one bad duration
	w = h.do("POST", "/projects/Bridge/tasks", mgr, `[
		{"task_name":"B","expected_duration":"2 hours","dependencies":["A"],"priority":"High"},
		{"task_name":"C","expected_duration":"soon"}
	]`)
	require.Equal(t, http.StatusMultiStatus, w.Code, w.Body.String())
	results := decode[[]scheduling.BatchResult](t, w)
	require.Len(t, results, 2)
	require.NotNil(t, results[0].Task)
	assert.Equal(t, t0.Add(time.Hour), results[0].Task.StartTime.UTC())
	assert.NotEmpty(t, results[1].Error)

	w = h.do("GET", "/projects/Bridge/tasks?priority=high", mgr, nil)
	require.Equal(t, http.StatusOK, w.Code)
	tasks := decode[[]models.Task](t, w)
	require.Len(t, tasks, 1)
	assert.Equal(t, "B", tasks[0].Name)

	w = h.do("GET", "/projects/Bridge/tasks/B?at=2024-01-01T00:10:00Z", mgr, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "tentative", decode[map[string]any](t, w)["state"])

	w = h.do("GET", "/projects/Bridge/tasks/A/state?at=2024-01-01T00:10:00Z", mgr, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "incipient", decode[map[string]any](t, w)["state"])

	w = h.do("GET", "/projects/Bridge/tasks/A/state?at=yesterday", mgr, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = h.do("POST", "/projects/Bridge/tasks/A/dependencies", mgr, models.DependencyRequest{Name: "B"})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, "CYCLIC_DEPENDENCY", decode[auth.ErrorResponse](t, w).Code)

	h.clock = t0.Add(50 * time.Minute)
	w = h.do("POST", "/projects/Bridge/tasks/A/updates", mgr, models.UpdateRequest{StatusPercentage: 100, Description: "done"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = h.do("POST", "/projects/Bridge/tasks/A/updates", mgr, models.UpdateRequest{StatusPercentage: 120})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = h.do("GET", "/projects/Bridge/tasks/A", mgr, nil)
	require.Equal(t, http.StatusOK, w.Code)
	a := decode[map[string]any](t, w)
	assert.Equal(t, "complete", a["state"])
	assert.Equal(t, float64(50), a["duration"])

	w = h.do("GET", "/projects/Bridge/timetable", mgr, nil)
	require.Equal(t, http.StatusOK, w.Code)
	tt := decode[struct {
		Timetable []map[string]any `json:"timetable"`
	}](t, w)
	require.Len(t, tt.Timetable, 2)
	assert.Equal(t, "50 minutes", tt.Timetable[0]["duration"])

	w = h.do("GET", "/projects/Bridge/gantt", mgr, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"priority":"high"`)

	w = h.do("GET", "/projects/Bridge/gantt.xlsx", mgr, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "spreadsheetml")
	assert.True(t, bytes.HasPrefix(w.Body.Bytes(), []byte("PK")))

	w = h.do("GET", "/projects/Bridge/state", mgr, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, decode[map[string]any](t, w)["state"])

	w = h.do("GET", "/states", mgr, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, decode[map[string]string](t, w), "Bridge")

	w = h.do("GET", "/updates?project=Bridge", mgr, nil)
	require.Equal(t, http.StatusOK, w.Code)
	feed := decode[[]scheduling.FeedEntry](t, w)
	require.NotEmpty(t, feed)
	assert.Equal(t, "done", feed[0].Description)

	w = h.do("GET", "/metrics", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "task_state_evaluations_total")
	assert.Contains(t, w.Body.String(), `task_updates_total{completed="true"} 1`)
}

func TestRoleAndCompanyScoping(t *testing.T) {
	h := newHarness(t)
	mgr := h.token("Acme", "manager")
	member := h.token("Acme", "member")
	h.seedProject(mgr)

	w := h.do("POST", "/projects", member, models.CreateProjectRequest{Name: "Tunnel"})
	assert.Equal(t, http.StatusForbidden, w.Code)
	w = h.do("POST", "/projects/Bridge/clone", member, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	w = h.do("POST", "/postpone", mgr, models.PostponeRequest{NewStartTime: t0.Add(time.Hour)})
	assert.Equal(t, http.StatusForbidden, w.Code, "company postpone is admin only")

	// members report progress
	w = h.do("POST", "/projects/Bridge/tasks/A/updates", member, models.UpdateRequest{StatusPercentage: 10})
	assert.Equal(t, http.StatusCreated, w.Code)
	w = h.do("POST", "/projects/Bridge/tasks/A/mark", member, models.MarkRequest{State: "postponed"})
	assert.Equal(t, http.StatusOK, w.Code)

	other := h.token("Globex", "admin")
	w = h.do("GET", "/projects/Bridge", other, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = h.do("GET", "/projects", other, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decode[[]models.Project](t, w))
}

func TestLifecycleRoutes(t *testing.T) {
	h := newHarness(t)
	mgr := h.token("Acme", "manager")
	h.seedProject(mgr)

	w := h.do("POST", "/projects/Bridge/clone", mgr, nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, "Bridge(copy)", decode[models.Project](t, w).Name)

	w = h.do("POST", "/projects/merge", mgr, models.MergeRequest{ProjectNames: []string{"Bridge", "Bridge(copy)"}, NewName: "Both"})
	assert.Equal(t, http.StatusConflict, w.Code, "both hold a task named A")

	w = h.do("POST", "/projects/Bridge(copy)/split", mgr, models.SplitRequest{Splits: []models.SplitPart{{Name: "East", Tasks: []string{"A"}}, {Name: "West"}}})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Len(t, decode[[]models.Project](t, w), 2)

	w = h.do("POST", "/projects/Bridge/postpone", mgr, models.PostponeRequest{NewStartTime: t0.Add(48 * time.Hour)})
	require.Equal(t, http.StatusOK, w.Code)
	w = h.do("GET", "/projects/Bridge/tasks/A", mgr, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "2024-01-03T00:00:00Z", decode[map[string]any](t, w)["start_time"])

	w = h.do("POST", "/projects/Bridge/tasks/A/restore", mgr, nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = h.do("POST", "/projects/Bridge/restore", mgr, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "active", decode[models.Project](t, w).State)

	w = h.do("PUT", "/projects/Bridge/team", mgr, models.TeamRequest{Members: []string{"Bo@Example.com"}})
	require.Equal(t, http.StatusOK, w.Code)
	w = h.do("POST", "/projects/Bridge/roles", mgr, models.RoleRequest{TaskName: "A", Member: "bo@example.com", Duty: "lead"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	w = h.do("POST", "/projects/Bridge/funds", mgr, `{"amount": 250, "member": "bo@example.com"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Len(t, decode[models.Project](t, w).FundAllocations, 1)
	w = h.do("POST", "/projects/Bridge/objectives", mgr, models.ObjectiveRequest{Objective: "Open by spring"})
	require.Equal(t, http.StatusOK, w.Code)
	w = h.do("POST", "/projects/Bridge/dependencies", mgr, models.DependencyRequest{Name: "Bridge"})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func multipartUpdate(t *testing.T, fields map[string]string, files map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	for name, content := range files {
		part, err := mw.CreateFormFile("images", name)
		require.NoError(t, err)
		_, err = part.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return body, mw.FormDataContentType()
}

func TestUpdateImages(t *testing.T) {
	h := newHarness(t)
	mgr := h.token("Acme", "manager")
	h.seedProject(mgr)

	body, ct := multipartUpdate(t, map[string]string{"status_percentage": "40", "expenditure": "12.5"}, map[string]string{"crack.PNG": "png-bytes"})
	req := httptest.NewRequest("POST", "/projects/Bridge/tasks/A/updates", body)
	req.Header.Set("Content-Type", ct)
	w := h.send(req, mgr)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	u := decode[models.TaskUpdate](t, w)
	require.Len(t, u.ImageFilenames, 1)
	name := u.ImageFilenames[0]
	assert.True(t, strings.HasPrefix(name, "task"))
	assert.True(t, strings.HasSuffix(name, "_update1_img1.png"))
	require.NotNil(t, u.Expenditure)
	assert.InDelta(t, 12.5, *u.Expenditure, 0.001)

	w = h.do("GET", "/projects/Bridge/tasks/A/images", mgr, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "/uploads/"+name)

	w = h.do("GET", "/uploads/"+name, mgr, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "png-bytes", w.Body.String())

	w = h.do("GET", "/uploads/"+name, h.token("Globex", "admin"), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	body, ct = multipartUpdate(t, map[string]string{"status_percentage": "50"}, map[string]string{"notes.exe": "x"})
	req = httptest.NewRequest("POST", "/projects/Bridge/tasks/A/updates", body)
	req.Header.Set("Content-Type", ct)
	w = h.send(req, mgr)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = h.do("GET", "/projects/Bridge/tasks/A/updates", mgr, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]models.TaskUpdate](t, w), 1)

	body, ct = multipartUpdate(t, map[string]string{"status_percentage": "lots"}, nil)
	req = httptest.NewRequest("POST", "/projects/Bridge/tasks/A/updates", body)
	req.Header.Set("Content-Type", ct)
	assert.Equal(t, http.StatusBadRequest, h.send(req, mgr).Code)
}

func TestNewServerRejectsWeakSecret(t *testing.T) {
	_, err := NewServer(&config.Config{JWTSecret: "short", JWTIssuer: "i", JWTAudience: "a", JWTExpiry: time.Hour}, store.NewMemory())
	assert.Error(t, err)
}
