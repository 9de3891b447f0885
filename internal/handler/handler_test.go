package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/CageChen/filedesk/internal/command"
	"github.com/CageChen/filedesk/internal/config"
	"github.com/CageChen/filedesk/internal/fs"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

func init() {
	gin.SetMode(gin.TestMode)
	logrus.SetOutput(io.Discard)
}

// spyBackend counts calls and can fail uploads for chosen names.
type spyBackend struct {
	fs.Backend
	mu         sync.Mutex
	calls      map[string]int
	failUpload map[string]bool
}

func newSpyBackend() *spyBackend {
	return &spyBackend{
		Backend:    fs.NewMemoryFS(fs.NewMemoryStore()),
		calls:      make(map[string]int),
		failUpload: make(map[string]bool),
	}
}

func (s *spyBackend) record(op string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls[op]++
}

func (s *spyBackend) count(op string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[op]
}

func (s *spyBackend) Read(ctx context.Context, name string) ([]byte, error) {
	s.record("read")
	return s.Backend.Read(ctx, name)
}

func (s *spyBackend) Create(ctx context.Context, name string, content []byte) error {
	s.record("create")
	return s.Backend.Create(ctx, name, content)
}

func (s *spyBackend) Update(ctx context.Context, name string, content []byte) error {
	s.record("update")
	return s.Backend.Update(ctx, name, content)
}

func (s *spyBackend) Delete(ctx context.Context, name string) error {
	s.record("delete")
	return s.Backend.Delete(ctx, name)
}

func (s *spyBackend) AddUploaded(ctx context.Context, name string, content []byte, mimeType string) error {
	s.record("upload")
	if s.failUpload[name] {
		return fs.ErrWrite
	}
	return s.Backend.AddUploaded(ctx, name, content, mimeType)
}

func (s *spyBackend) mutations() int {
	return s.count("create") + s.count("update") + s.count("delete")
}

type stubModel struct {
	reply string
	err   error
	calls int
}

func (m *stubModel) Generate(_ context.Context, _ []*schema.Message, _ ...model.Option) (*schema.Message, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return schema.AssistantMessage(m.reply, nil), nil
}

type testServer struct {
	router  *gin.Engine
	backend *spyBackend
	model   *stubModel
	ws      *WSHandler
}

func newTestServer(t *testing.T, limits config.UploadConfig) *testServer {
	t.Helper()
	if limits.MaxFiles == 0 {
		limits = config.DefaultConfig().Upload
	}
	backend := newSpyBackend()
	m := &stubModel{}
	ws := NewWSHandler()
	router := NewRouter(Handlers{
		Files:    NewFileHandler(backend, limits),
		Commands: NewCommandHandler(backend, command.NewResolver(m, 0), command.NewDispatcher(backend)),
		System:   NewSystemHandler(backend.Name()),
		WS:       ws,
	})
	return &testServer{router: router, backend: backend, model: m, ws: ws}
}

func (s *testServer) seed(t *testing.T, files map[string]string) {
	t.Helper()
	for name, content := range files {
		if err := s.backend.Backend.Create(context.Background(), name, []byte(content)); err != nil {
			t.Fatal(err)
		}
	}
}

func (s *testServer) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), v); err != nil {
		t.Fatalf("invalid JSON response %q: %v", w.Body.String(), err)
	}
}

func errorMessage(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]interface{}
	decode(t, w, &body)
	msg, _ := body["error"].(string)
	return msg
}

func TestRoot(t *testing.T) {
	s := newTestServer(t, config.UploadConfig{})
	w := s.do(httptest.NewRequest(http.MethodGet, "/", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var body struct {
		Message   string            `json:"message"`
		Version   string            `json:"version"`
		Endpoints map[string]string `json:"endpoints"`
	}
	decode(t, w, &body)
	if body.Version != Version || body.Endpoints["command"] != "POST /command" {
		t.Errorf("unexpected root response: %+v", body)
	}
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, config.UploadConfig{})
	w := s.do(httptest.NewRequest(http.MethodGet, "/health", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var body map[string]interface{}
	decode(t, w, &body)
	if body["status"] != "OK" || body["backend"] != "memory" {
		t.Errorf("unexpected health response: %v", body)
	}
	if _, ok := body["uptime"].(float64); !ok {
		t.Errorf("expected numeric uptime, got %v", body["uptime"])
	}
}

func TestNoRoute(t *testing.T) {
	s := newTestServer(t, config.UploadConfig{})
	w := s.do(httptest.NewRequest(http.MethodGet, "/nope", nil))
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
	var body map[string]string
	decode(t, w, &body)
	if body["error"] != "Route not found" || body["path"] != "/nope" {
		t.Errorf("unexpected body: %v", body)
	}
}

func TestMiddleware(t *testing.T) {
	s := newTestServer(t, config.UploadConfig{})

	w := s.do(httptest.NewRequest(http.MethodOptions, "/files", nil))
	if w.Code != http.StatusNoContent {
		t.Errorf("expected 204 for preflight, got %d", w.Code)
	}
	if w.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Error("expected permissive CORS header")
	}

	w = s.do(httptest.NewRequest(http.MethodGet, "/files", nil))
	if w.Header().Get(requestIDHeader) == "" {
		t.Error("expected a request id header")
	}
}

func TestListAndRead(t *testing.T) {
	s := newTestServer(t, config.UploadConfig{})
	s.seed(t, map[string]string{"a.txt": "hello", "b.md": "# B"})

	w := s.do(httptest.NewRequest(http.MethodGet, "/files", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var entries []fs.FileEntry
	decode(t, w, &entries)
	if len(entries) != 2 || entries[0].Name != "a.txt" || entries[0].Size != 5 {
		t.Errorf("unexpected listing: %+v", entries)
	}
	if strings.Contains(w.Body.String(), "hello") {
		t.Error("listing must not include content")
	}

	w = s.do(httptest.NewRequest(http.MethodGet, "/files/a.txt", nil))
	if w.Code != http.StatusOK || w.Body.String() != "hello" {
		t.Fatalf("unexpected read: %d %q", w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Errorf("expected text/plain, got %s", ct)
	}
}

func TestRead_Missing(t *testing.T) {
	s := newTestServer(t, config.UploadConfig{})
	w := s.do(httptest.NewRequest(http.MethodGet, "/files/missing.txt", nil))
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
	if msg := errorMessage(t, w); msg != msgNotFound {
		t.Errorf("unexpected error message %q", msg)
	}
}

func TestFilenameValidation(t *testing.T) {
	tests := []struct {
		method string
		path   string
		op     string
	}{
		{http.MethodGet, "/files/../etc/passwd", "read"},
		{http.MethodGet, "/files/a/b.txt", "read"},
		{http.MethodGet, "/files/a%2Fb.txt", "read"},
		{http.MethodGet, "/files/..%2Fetc%2Fpasswd", "read"},
		{http.MethodGet, "/files/a%5Cb.txt", "read"},
		{http.MethodGet, "/files/..", "read"},
		{http.MethodGet, "/files/", "read"},
		{http.MethodGet, "/files/../etc/passwd/preview", "read"},
		{http.MethodGet, "/files/../preview", "read"},
		{http.MethodDelete, "/files/../etc/passwd", "delete"},
		{http.MethodDelete, "/files/a/b.txt", "delete"},
		{http.MethodDelete, "/files/a.txt/preview", "delete"},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			s := newTestServer(t, config.UploadConfig{})
			s.seed(t, map[string]string{"a.txt": "x"})
			w := s.do(httptest.NewRequest(tt.method, tt.path, nil))
			if w.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d: %s", w.Code, w.Body.String())
			}
			if msg := errorMessage(t, w); msg != msgInvalidFilename && msg != msgFilenameRequired {
				t.Errorf("unexpected error message %q", msg)
			}
			if s.backend.count(tt.op) != 0 {
				t.Error("backend must not be called for a bad name")
			}
		})
	}
}

func TestRead_DottedName(t *testing.T) {
	s := newTestServer(t, config.UploadConfig{})
	s.seed(t, map[string]string{"notes..txt": "dots"})

	w := s.do(httptest.NewRequest(http.MethodGet, "/files/notes..txt", nil))
	if w.Code != http.StatusOK || w.Body.String() != "dots" {
		t.Errorf("unexpected read: %d %q", w.Code, w.Body.String())
	}
}

func TestDelete(t *testing.T) {
	s := newTestServer(t, config.UploadConfig{})
	s.seed(t, map[string]string{"a.txt": "x"})

	w := s.do(httptest.NewRequest(http.MethodDelete, "/files/a.txt", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var body map[string]string
	decode(t, w, &body)
	if body["message"] != "File a.txt deleted." {
		t.Errorf("unexpected message %q", body["message"])
	}

	w = s.do(httptest.NewRequest(http.MethodDelete, "/files/a.txt", nil))
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404 on second delete, got %d", w.Code)
	}
}

func TestPreview(t *testing.T) {
	s := newTestServer(t, config.UploadConfig{})
	s.seed(t, map[string]string{"notes.md": "# Title\n\ntext"})

	w := s.do(httptest.NewRequest(http.MethodGet, "/files/notes.md/preview", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var body map[string]interface{}
	decode(t, w, &body)
	if body["kind"] != "markdown" || body["title"] != "Title" || body["name"] != "notes.md" {
		t.Errorf("unexpected preview: %v", body)
	}

	w = s.do(httptest.NewRequest(http.MethodGet, "/files/missing.md/preview", nil))
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
}

type upload struct {
	name    string
	content string
}

func uploadRequest(t *testing.T, files ...upload) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for _, f := range files {
		part, err := mw.CreateFormFile("files", f.name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := part.Write([]byte(f.content)); err != nil {
			t.Fatal(err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}
	req := httptest.NewRequest(http.MethodPost, "/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestUpload(t *testing.T) {
	s := newTestServer(t, config.UploadConfig{})
	s.backend.failUpload["bad.txt"] = true

	w := s.do(uploadRequest(t,
		upload{"one.txt", "1"},
		upload{"bad.txt", "2"},
		upload{"three.txt", "333"},
	))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var resp UploadResponse
	decode(t, w, &resp)
	if resp.Count != 2 || len(resp.Files) != 2 {
		t.Fatalf("expected 2 stored files, got %+v", resp)
	}
	if resp.Files[0].Name != "one.txt" || resp.Files[1].Name != "three.txt" || resp.Files[1].Size != 3 {
		t.Errorf("unexpected files: %+v", resp.Files)
	}

	names, err := s.backend.List(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if got := fs.Names(names); len(got) != 2 {
		t.Errorf("expected 2 files in storage, got %v", got)
	}
}

func TestUpload_Rejections(t *testing.T) {
	t.Run("no files", func(t *testing.T) {
		s := newTestServer(t, config.UploadConfig{})
		w := s.do(uploadRequest(t))
		if w.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", w.Code)
		}
	})

	t.Run("not multipart", func(t *testing.T) {
		s := newTestServer(t, config.UploadConfig{})
		w := s.do(httptest.NewRequest(http.MethodPost, "/upload", strings.NewReader("x")))
		if w.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", w.Code)
		}
	})

	t.Run("too many files", func(t *testing.T) {
		s := newTestServer(t, config.UploadConfig{MaxFiles: 2, MaxFileSize: 1 << 20})
		w := s.do(uploadRequest(t, upload{"a", "1"}, upload{"b", "2"}, upload{"c", "3"}))
		if w.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", w.Code)
		}
		if s.backend.count("upload") != 0 {
			t.Error("nothing should be stored")
		}
	})

	t.Run("all failed", func(t *testing.T) {
		s := newTestServer(t, config.UploadConfig{})
		s.backend.failUpload["a.txt"] = true
		s.backend.failUpload["b.txt"] = true
		w := s.do(uploadRequest(t, upload{"a.txt", "1"}, upload{"b.txt", "2"}))
		if w.Code != http.StatusInternalServerError {
			t.Errorf("expected 500, got %d", w.Code)
		}
	})

	t.Run("oversized file skipped", func(t *testing.T) {
		s := newTestServer(t, config.UploadConfig{MaxFiles: 10, MaxFileSize: 4})
		w := s.do(uploadRequest(t, upload{"small.txt", "ok"}, upload{"big.txt", "far too large"}))
		if w.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", w.Code)
		}
		var resp UploadResponse
		decode(t, w, &resp)
		if resp.Count != 1 || resp.Files[0].Name != "small.txt" {
			t.Errorf("unexpected response: %+v", resp)
		}
	})
}

func commandRequest(body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/command", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestCommand(t *testing.T) {
	s := newTestServer(t, config.UploadConfig{})
	s.seed(t, map[string]string{"a.txt": "a", "b.txt": "b"})
	s.model.reply = `{"command":"delete","args":["a.txt"]}`

	w := s.do(commandRequest(`{"prompt":"delete the file a.txt"}`))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var result command.Result
	decode(t, w, &result)
	if result.Message != "File a.txt deleted." {
		t.Errorf("unexpected message %q", result.Message)
	}
	if _, err := s.backend.Backend.Read(context.Background(), "a.txt"); !errors.Is(err, fs.ErrNotFound) {
		t.Errorf("expected a.txt removed, got %v", err)
	}
}

func TestCommand_Failures(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		reply      string
		modelErr   error
		wantStatus int
		wantMsg    string
		wantCalls  int
	}{
		{
			name:       "empty prompt",
			body:       `{"prompt":"   "}`,
			wantStatus: http.StatusBadRequest,
			wantMsg:    msgPromptRequired,
		},
		{
			name:       "missing prompt",
			body:       `{}`,
			wantStatus: http.StatusBadRequest,
			wantMsg:    msgPromptRequired,
		},
		{
			name:       "not json",
			body:       `prompt=hi`,
			wantStatus: http.StatusBadRequest,
			wantMsg:    msgPromptRequired,
		},
		{
			name:       "non-json reply",
			body:       `{"prompt":"do something"}`,
			reply:      "I am not sure what you mean.",
			wantStatus: http.StatusBadRequest,
			wantMsg:    msgInvalidStructure,
			wantCalls:  1,
		},
		{
			name:       "unknown verb",
			body:       `{"prompt":"rename a.txt"}`,
			reply:      `{"command":"rename","args":["a.txt","c.txt"]}`,
			wantStatus: http.StatusBadRequest,
			wantCalls:  1,
		},
		{
			name:       "traversal name from model",
			body:       `{"prompt":"delete passwd"}`,
			reply:      `{"command":"delete","args":["../etc/passwd"]}`,
			wantStatus: http.StatusBadRequest,
			wantCalls:  1,
		},
		{
			name:       "edit missing file",
			body:       `{"prompt":"edit c.txt"}`,
			reply:      `{"command":"edit","args":["c.txt","x"]}`,
			wantStatus: http.StatusNotFound,
			wantMsg:    msgNotFound,
			wantCalls:  1,
		},
		{
			name:       "upstream failure",
			body:       `{"prompt":"create c.txt"}`,
			modelErr:   errors.New("status code: 401, Incorrect API key provided"),
			wantStatus: http.StatusInternalServerError,
			wantMsg:    "Invalid language model API key. Please check your configuration.",
			wantCalls:  1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t, config.UploadConfig{})
			s.seed(t, map[string]string{"a.txt": "a"})
			s.model.reply = tt.reply
			s.model.err = tt.modelErr

			w := s.do(commandRequest(tt.body))
			if w.Code != tt.wantStatus {
				t.Fatalf("expected %d, got %d: %s", tt.wantStatus, w.Code, w.Body.String())
			}
			msg := errorMessage(t, w)
			if tt.wantMsg != "" && msg != tt.wantMsg {
				t.Errorf("error = %q, want %q", msg, tt.wantMsg)
			}
			if msg == "" {
				t.Error("expected an error message")
			}
			if s.model.calls != tt.wantCalls {
				t.Errorf("model calls = %d, want %d", s.model.calls, tt.wantCalls)
			}
			if tt.wantStatus == http.StatusBadRequest && s.backend.mutations() != 0 {
				t.Error("storage must not be mutated")
			}
			content, err := s.backend.Backend.Read(context.Background(), "a.txt")
			if err != nil || string(content) != "a" {
				t.Errorf("a.txt changed: %q %v", content, err)
			}
		})
	}
}
