package echoapi_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	echoapi "github.com/trezcool/syllabus/apps/api/echo"
	"github.com/trezcool/syllabus/core"
	"github.com/trezcool/syllabus/core/degree"
	"github.com/trezcool/syllabus/core/task"
	dummydb "github.com/trezcool/syllabus/storage/database/dummy"
)

var (
	now = time.Date(2021, time.March, 1, 12, 0, 0, 0, time.UTC)

	errMissingToken = httpErr{Error: "missing or malformed jwt"}
	errForbidden    = httpErr{Error: "permission denied"}
	errNotFound     = httpErr{Error: "not found"}
)

type app struct {
	*echoapi.Server
	taskRepo   task.Repository
	degreeSvc  *degree.Service
	logger     *testLogger
	adminToken string
	userToken  string
}

func setup(t *testing.T) *app {
	db, err := dummydb.Open()
	require.NoError(t, err)

	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	task.InitValidators(validate, translator)

	degreeSvc := degree.NewService(dummydb.NewDegreeRepository(db), validate)
	taskRepo := dummydb.NewTaskRepository(db)
	logger := new(testLogger)

	server := echoapi.NewServer(
		echoapi.ServerDeps{
			Conf:           &core.Config{AppName: "Syllabus", SecretKey: "secret", TestMode: true},
			Logger:         logger,
			TaskSvc:        task.NewService(taskRepo, degreeSvc, validate),
			DegreeSvc:      degreeSvc,
			Validate:       validate,
			Translator:     translator,
			DisableReqLogs: true,
			Now:            func() time.Time { return now },
		},
	)
	t.Cleanup(func() { _ = server.Close() })

	a := &app{Server: server, taskRepo: taskRepo, degreeSvc: degreeSvc, logger: logger}
	a.adminToken = getToken(t, server, true)
	a.userToken = getToken(t, server, false)
	return a
}

// testLogger records the messages it is given.
type testLogger struct {
	mu       sync.Mutex
	messages []string
}

var _ core.Logger = (*testLogger)(nil)

func (l *testLogger) log(msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.messages = append(l.messages, msg)
}

func (l *testLogger) Debug(msg string, _ ...interface{}) { l.log(msg) }
func (l *testLogger) Info(msg string, _ ...interface{})  { l.log(msg) }
func (l *testLogger) Warn(msg string, _ ...interface{})  { l.log(msg) }
func (l *testLogger) Error(msg string, _ ...interface{}) { l.log(msg) }
func (l *testLogger) Fatal(msg string, _ ...interface{}) { l.log(msg) }

func (l *testLogger) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.messages)
}

type httpErr struct {
	Error string `json:"error"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	token    string
	wantCode int
	wantData []byte
	extra    interface{}
}

func newAuthRequest(method, path, token string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	return req, rec
}

func newRequest(method, path string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	return newAuthRequest(method, path, "", data...)
}

func getToken(t *testing.T, server *echoapi.Server, isAdmin bool) string {
	p := core.Person{ID: "1", Username: "teacher", Email: "teacher@test.cd"}
	if isAdmin {
		p = core.Person{ID: "2", Username: "admin", Email: "admin@test.cd"}
	}
	claims := echoapi.NewAuth(&core.Config{AppName: "Syllabus", SecretKey: "secret"}).
		NewClaims(p, isAdmin, time.Hour)
	token, err := server.GenerateToken(claims)
	if err != nil {
		t.Fatalf("getToken() failed: %v", err)
	}
	return token
}

func marchallObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marchallObj() failed: %v", err)
	}
	return data
}

func jsonBytesEqual(b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	return reflect.DeepEqual(j1, j2), nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	if rec.Code != tt.wantCode {
		t.Errorf("failed! code = %v; wantCode %v", rec.Code, tt.wantCode)
	}
	if tt.wantData == nil {
		return
	}
	ok, err := jsonBytesEqual(rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}

func (a *app) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	var data []byte
	if body != nil {
		data = marchallObj(t, body)
	}
	req, rec := newAuthRequest(method, path, token, data)
	a.ServeHTTP(rec, req)
	return rec
}

// createTask creates a task through the API.
func (a *app) createTask(t *testing.T, nt task.NewTask) task.ScheduledTask {
	rec := a.do(t, http.MethodPost, "/v1/tasks", a.adminToken, nt)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var st task.ScheduledTask
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &st))
	return st
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v), rec.Body.String())
}

func assertIDs(t *testing.T, want []string, tasks []task.ScheduledTask) {
	got := make([]string, 0, len(tasks))
	for _, st := range tasks {
		got = append(got, st.ID)
	}
	assert.Equal(t, want, got)
}
