package courses

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/Adda-Baaj/course-grader/internal/domain"
)

type recordedRequest struct {
	method      string
	path        string
	contentType string
	cookie      string
	body        []byte
	header      http.Header
}

// backendStub serves canned responses keyed by escaped path and records every request.
type backendStub struct {
	mu       sync.Mutex
	requests []recordedRequest
	routes   map[string]stubRoute
}

type stubRoute struct {
	status int
	body   string
}

func newBackendStub(t *testing.T, routes map[string]stubRoute) (*backendStub, *httptest.Server) {
	t.Helper()
	stub := &backendStub{routes: routes}
	srv := httptest.NewServer(http.HandlerFunc(stub.serve))
	t.Cleanup(srv.Close)
	return stub, srv
}

func (b *backendStub) serve(w http.ResponseWriter, r *http.Request) {
	raw, _ := io.ReadAll(r.Body)
	b.mu.Lock()
	b.requests = append(b.requests, recordedRequest{
		method:      r.Method,
		path:        r.URL.EscapedPath(),
		contentType: r.Header.Get("Content-Type"),
		cookie:      r.Header.Get("Cookie"),
		body:        raw,
		header:      r.Header.Clone(),
	})
	b.mu.Unlock()

	route, ok := b.routes[r.Method+" "+r.URL.EscapedPath()]
	if !ok {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"detail":"Not Found"}`))
		return
	}
	status := route.status
	if status == 0 {
		status = http.StatusOK
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(route.body))
}

func (b *backendStub) last(t *testing.T) recordedRequest {
	t.Helper()
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.requests) == 0 {
		t.Fatalf("no request recorded")
	}
	return b.requests[len(b.requests)-1]
}

func newTestClient(t *testing.T, baseURL string, mutate func(*Config), opts ...Option) *Client {
	t.Helper()
	cfg := Config{BaseURL: baseURL, Timeout: 2 * time.Second}
	if mutate != nil {
		mutate(&cfg)
	}
	c, err := New(cfg, opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func TestListCoursesReturnsPayloadUnchanged(t *testing.T) {
	_, srv := newBackendStub(t, map[string]stubRoute{
		"GET /courses": {body: `[
			{"id":"1","name":"Operating Systems","semester":"spring","logo":"/assets/os.png","email":"os@example.com"},
			{"id":"2","name":"Networks","semester":"fall","logo":"/assets/default.png","email":""}
		]`},
	})
	c := newTestClient(t, srv.URL, nil)

	got, err := c.ListCourses(context.Background())
	if err != nil {
		t.Fatalf("ListCourses: %v", err)
	}
	want := []domain.Course{
		{ID: "1", Name: "Operating Systems", Semester: "spring", Logo: "/assets/os.png", Email: "os@example.com"},
		{ID: "2", Name: "Networks", Semester: "fall", Logo: "/assets/default.png"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("ListCourses = %#v, want %#v", got, want)
	}
}

func TestGroupAndLabListings(t *testing.T) {
	stub, srv := newBackendStub(t, map[string]stubRoute{
		"GET /courses/1":                    {body: `{"id":"1","config":"os.yaml","name":"OS","semester":"spring","email":"e","github-organization":"org","google-spreadsheet":"sheet"}`},
		"GET /courses/1/groups":             {body: `["IU7-31","IU7-32"]`},
		"GET /courses/1/groups/IU7-31/labs": {body: `["ЛР1","ЛР2"]`},
	})
	c := newTestClient(t, srv.URL, nil)
	ctx := context.Background()

	details, err := c.GetCourseDetails(ctx, "1")
	if err != nil {
		t.Fatalf("GetCourseDetails: %v", err)
	}
	if details.GitHubOrganization != "org" || details.GoogleSpreadsheet != "sheet" || details.Config != "os.yaml" {
		t.Fatalf("unexpected details %#v", details)
	}

	groups, err := c.ListGroups(ctx, "1")
	if err != nil {
		t.Fatalf("ListGroups: %v", err)
	}
	if !reflect.DeepEqual(groups, []string{"IU7-31", "IU7-32"}) {
		t.Fatalf("unexpected groups %v", groups)
	}

	labs, err := c.ListLabs(ctx, "1", "IU7-31")
	if err != nil {
		t.Fatalf("ListLabs: %v", err)
	}
	if !reflect.DeepEqual(labs, []string{"ЛР1", "ЛР2"}) {
		t.Fatalf("unexpected labs %v", labs)
	}
	if req := stub.last(t); req.method != http.MethodGet || len(req.body) != 0 {
		t.Fatalf("expected bodiless GET, got %s with %q", req.method, req.body)
	}
}

func TestGradeLabEscapesLabIDAndSendsJSON(t *testing.T) {
	stub, srv := newBackendStub(t, map[string]stubRoute{
		"POST /courses/1/groups/G1/labs/lab%201%2Fintro/grade": {body: `{
			"status":"updated","result":"✓","message":"ok","passed":"2/2 тестов пройдено",
			"checks":["✅ build — https://ci/1"],"files_checked":{"required":["main.c"],"tests":[]}
		}`},
	})
	c := newTestClient(t, srv.URL, nil)

	res, err := c.GradeLab(context.Background(), "1", "G1", "lab 1/intro", "octocat")
	if err != nil {
		t.Fatalf("GradeLab: %v", err)
	}
	if !res.Final() || res.Result != "✓" || len(res.Checks) != 1 || res.FilesChecked.Required[0] != "main.c" {
		t.Fatalf("unexpected result %#v", res)
	}

	req := stub.last(t)
	if req.path != "/courses/1/groups/G1/labs/lab%201%2Fintro/grade" {
		t.Fatalf("unexpected path %q", req.path)
	}
	if req.contentType != "application/json" {
		t.Fatalf("Content-Type = %q", req.contentType)
	}
	want, _ := json.Marshal(map[string]string{"github": "octocat"})
	if string(req.body) != string(want) {
		t.Fatalf("body = %s, want %s", req.body, want)
	}
}

func TestGradeLabUsesGradeBaseURL(t *testing.T) {
	stub, srv := newBackendStub(t, map[string]stubRoute{
		"POST /api/courses/1/groups/G1/labs/%D0%9B%D0%A01/grade": {body: `{"status":"pending","message":"Нет активных CI-проверок ⏳"}`},
	})
	c := newTestClient(t, srv.URL, func(cfg *Config) { cfg.GradeBaseURL = srv.URL + "/api/" })

	res, err := c.GradeLab(context.Background(), "1", "G1", "ЛР1", "octocat")
	if err != nil {
		t.Fatalf("GradeLab: %v", err)
	}
	if res.Status != domain.GradeStatusPending || res.Final() {
		t.Fatalf("expected pending result, got %#v", res)
	}
	if got := stub.last(t).path; got != "/api/courses/1/groups/G1/labs/%D0%9B%D0%A01/grade" {
		t.Fatalf("unexpected path %q", got)
	}
}

func TestRegisterAndCheckSendsFormAsJSON(t *testing.T) {
	stub, srv := newBackendStub(t, map[string]stubRoute{
		"POST /courses/1/groups/G1/register": {body: `{"status":"registered","message":"Аккаунт GitHub успешно задан"}`},
	})
	c := newTestClient(t, srv.URL, nil)
	form := domain.RegistrationForm{Name: "Ivan", Surname: "Petrov", GitHub: "ipetrov"}

	res, err := c.RegisterAndCheck(context.Background(), "1", "G1", form)
	if err != nil {
		t.Fatalf("RegisterAndCheck: %v", err)
	}
	if res.Status != domain.RegistrationRegistered {
		t.Fatalf("unexpected status %q", res.Status)
	}

	req := stub.last(t)
	if req.contentType != "application/json" {
		t.Fatalf("Content-Type = %q", req.contentType)
	}
	want, _ := json.Marshal(form)
	if string(req.body) != string(want) {
		t.Fatalf("body = %s, want %s", req.body, want)
	}
}

func TestRegisterAndCheckAcceptsArbitraryForm(t *testing.T) {
	stub, srv := newBackendStub(t, map[string]stubRoute{
		"POST /courses/1/groups/G1/register": {body: `{"status":"already_registered","message":"m"}`},
	})
	c := newTestClient(t, srv.URL, nil)
	form := map[string]any{"github": "x", "extra": []int{1, 2}}

	if _, err := c.RegisterAndCheck(context.Background(), "1", "G1", form); err != nil {
		t.Fatalf("RegisterAndCheck: %v", err)
	}
	want, _ := json.Marshal(form)
	if got := stub.last(t).body; string(got) != string(want) {
		t.Fatalf("body = %s, want %s", got, want)
	}
}

func TestErrorStatusReturnsAPIError(t *testing.T) {
	_, srv := newBackendStub(t, map[string]stubRoute{
		"GET /courses":                       {status: http.StatusInternalServerError, body: `{"error":"x"}`},
		"GET /courses/9/groups":              {status: http.StatusNotFound, body: `{"detail":"Course not found"}`},
		"POST /courses/1/groups/G1/register": {status: http.StatusConflict, body: `{"detail":"Аккаунт GitHub уже был указан ранее"}`},
	})
	c := newTestClient(t, srv.URL, nil)
	ctx := context.Background()

	_, err := c.ListCourses(ctx)
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %v", err)
	}
	if apiErr.StatusCode != http.StatusInternalServerError || apiErr.Detail != "x" || apiErr.Operation != OpListCourses {
		t.Fatalf("unexpected api error %#v", apiErr)
	}

	if _, err := c.ListGroups(ctx, "9"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := c.RegisterAndCheck(ctx, "1", "G1", domain.RegistrationForm{}); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
}

func TestDecodeErrorBodiesReturnsErrorPayload(t *testing.T) {
	_, srv := newBackendStub(t, map[string]stubRoute{
		"GET /courses": {status: http.StatusInternalServerError, body: `{"error":"x"}`},
	})
	c := newTestClient(t, srv.URL, func(cfg *Config) { cfg.DecodeErrorBodies = true })

	var out map[string]any
	err := c.Do(context.Background(), Request{Method: http.MethodGet, Path: "/courses"}, &out)
	if err != nil {
		t.Fatalf("expected no error in legacy mode, got %v", err)
	}
	if !reflect.DeepEqual(out, map[string]any{"error": "x"}) {
		t.Fatalf("unexpected payload %#v", out)
	}
}

func TestDecodeErrorBodiesTypedOperations(t *testing.T) {
	_, srv := newBackendStub(t, map[string]stubRoute{
		"GET /courses": {status: http.StatusInternalServerError, body: `{"error":"x"}`},
		"POST /courses/1/groups/G1/labs/lab1/grade": {
			status: http.StatusNotFound,
			body:   `{"detail":"GitHub логин не найден"}`,
		},
		"POST /courses/1/groups/G1/register": {status: http.StatusInternalServerError, body: `{}`},
		"POST /courses/1/groups/G2/labs/lab1/grade": {
			status: http.StatusBadRequest,
			body:   `{"status":"error","message":"Нет тестов"}`,
		},
	})
	c := newTestClient(t, srv.URL, func(cfg *Config) { cfg.DecodeErrorBodies = true })
	ctx := context.Background()

	courses, err := c.ListCourses(ctx)
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError for a body that does not fit, got %v (%#v)", err, courses)
	}
	if apiErr.Detail != "x" || string(apiErr.Body) != `{"error":"x"}` {
		t.Fatalf("unexpected api error %#v", apiErr)
	}

	res, err := c.GradeLab(ctx, "1", "G1", "lab1", "octocat")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound instead of an empty result, got %#v, %v", res, err)
	}
	if !errors.As(err, &apiErr) || apiErr.Detail != "GitHub логин не найден" {
		t.Fatalf("detail lost: %v", err)
	}

	if _, err := c.RegisterAndCheck(ctx, "1", "G1", domain.RegistrationForm{}); !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError for an empty error body, got %v", err)
	}

	res, err = c.GradeLab(ctx, "1", "G2", "lab1", "octocat")
	if err != nil {
		t.Fatalf("a body matching the result should be returned, got %v", err)
	}
	if res.Status != "error" || res.Message != "Нет тестов" {
		t.Fatalf("unexpected result %#v", res)
	}
}

func TestNonJSONBodyFails(t *testing.T) {
	_, srv := newBackendStub(t, map[string]stubRoute{
		"GET /courses":   {body: `<html>oops</html>`},
		"GET /courses/1": {body: ``},
	})
	c := newTestClient(t, srv.URL, nil)

	if _, err := c.ListCourses(context.Background()); !errors.Is(err, ErrDecode) {
		t.Fatalf("expected ErrDecode, got %v", err)
	}
	if _, err := c.GetCourseDetails(context.Background(), "1"); !errors.Is(err, ErrDecode) {
		t.Fatalf("expected ErrDecode for empty body, got %v", err)
	}
}

func TestTransportFailureIsWrapped(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := newTestClient(t, url, nil)
	_, err := c.ListCourses(context.Background())
	if err == nil {
		t.Fatalf("expected transport error")
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		t.Fatalf("transport failure must not be an APIError: %v", err)
	}
}

func TestConcurrentCallsAreIndependent(t *testing.T) {
	stub, srv := newBackendStub(t, map[string]stubRoute{
		"GET /courses":          {body: `[]`},
		"GET /courses/1/groups": {body: `[]`},
	})
	c := newTestClient(t, srv.URL, nil)

	var wg sync.WaitGroup
	errs := make(chan error, 2)
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, err := c.ListCourses(context.Background())
		errs <- err
	}()
	go func() {
		defer wg.Done()
		_, err := c.ListGroups(context.Background(), "1")
		errs <- err
	}()
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("concurrent call: %v", err)
		}
	}

	stub.mu.Lock()
	defer stub.mu.Unlock()
	if len(stub.requests) != 2 {
		t.Fatalf("expected 2 requests, got %d", len(stub.requests))
	}
	for _, req := range stub.requests {
		if req.cookie != "" || req.header.Get("Authorization") != "" || req.header.Get("X-Request-Id") != "" {
			t.Fatalf("request carried session data: %#v", req.header)
		}
	}
}

type recordingObserver struct {
	mu    sync.Mutex
	calls []string
	codes []int
}

func (r *recordingObserver) ObserveRequest(op string, status int, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, op)
	r.codes = append(r.codes, status)
}

func TestObserverSeesEveryRequest(t *testing.T) {
	_, srv := newBackendStub(t, map[string]stubRoute{
		"GET /courses": {body: `[]`},
	})
	obs := &recordingObserver{}
	c := newTestClient(t, srv.URL, nil, WithObserver(obs))

	_, _ = c.ListCourses(context.Background())
	_, _ = c.ListGroups(context.Background(), "missing")

	if !reflect.DeepEqual(obs.calls, []string{OpListCourses, OpListGroups}) {
		t.Fatalf("unexpected operations %v", obs.calls)
	}
	if !reflect.DeepEqual(obs.codes, []int{http.StatusOK, http.StatusNotFound}) {
		t.Fatalf("unexpected status codes %v", obs.codes)
	}
}

func TestNewValidatesBaseURL(t *testing.T) {
	for _, raw := range []string{"localhost:8000", "ftp://host", "http://"} {
		if _, err := New(Config{BaseURL: raw}); err == nil {
			t.Fatalf("expected error for base url %q", raw)
		}
	}
	c, err := New(Config{})
	if err != nil {
		t.Fatalf("New with defaults: %v", err)
	}
	if c.BaseURL() != DefaultBaseURL {
		t.Fatalf("BaseURL = %q", c.BaseURL())
	}
}

func TestCustomEndpointTemplates(t *testing.T) {
	stub, srv := newBackendStub(t, map[string]stubRoute{
		"GET /v2/catalog": {body: `[]`},
	})
	c := newTestClient(t, srv.URL, func(cfg *Config) { cfg.Endpoints = Endpoints{Courses: "/v2/catalog"} })

	if _, err := c.ListCourses(context.Background()); err != nil {
		t.Fatalf("ListCourses: %v", err)
	}
	if got := stub.last(t).path; got != "/v2/catalog" {
		t.Fatalf("unexpected path %q", got)
	}
}

func TestExpandPath(t *testing.T) {
	got, err := expandPath("/courses/{courseId}/groups/{groupId}", map[string]string{
		ParamCourseID: "1",
		ParamGroupID:  "a b/c",
	})
	if err != nil {
		t.Fatalf("expandPath: %v", err)
	}
	if got != "/courses/1/groups/a%20b%2Fc" {
		t.Fatalf("expandPath = %q", got)
	}

	if _, err := expandPath("/courses/{courseId}", nil); err == nil {
		t.Fatalf("expected unresolved placeholder error")
	}
	if _, err := expandPath("/x/{courseId}", map[string]string{ParamCourseID: "{groupId}"}); err != nil {
		t.Fatalf("braces in values must be escaped, got %v", err)
	}
}

func TestErrorDetail(t *testing.T) {
	cases := map[string]string{
		`{"detail":"Студент не найден"}`:                              "Студент не найден",
		`{"detail":[{"msg":"field required"},{"msg":"too short"}]}`: "field required; too short",
		`{"message":"m"}`: "m",
		`plain text`:      "plain text",
	}
	for body, want := range cases {
		if got := errorDetail([]byte(body)); got != want {
			t.Errorf("errorDetail(%s) = %q, want %q", body, got, want)
		}
	}
}
