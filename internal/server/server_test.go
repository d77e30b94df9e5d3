package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/xuri/excelize/v2"

	"github.com/ccollicutt/attendlog/internal/pipeline"
	"github.com/ccollicutt/attendlog/internal/store"
	"github.com/ccollicutt/attendlog/pkg/output"
)

const meetingCSV = `Name (Original Name),User Email,Join Time,Leave Time,Duration (Minutes)
10001 - Jane Doe,jane@example.com,2024-03-04 09:00:00,2024-03-04 10:40:00,100
John Roe,,2024-03-04 09:00:00,2024-03-04 09:20:00,20
`

type fakeArchive struct {
	mu      sync.Mutex
	saved   []*output.Report
	pingErr error
	saveErr error
}

func (f *fakeArchive) SaveRun(_ context.Context, report *output.Report) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveErr != nil {
		return false, f.saveErr
	}
	f.saved = append(f.saved, report)
	return true, nil
}

func (f *fakeArchive) RecentRuns(context.Context, int) ([]store.RunSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	runs := []store.RunSummary{}
	for _, r := range f.saved {
		runs = append(runs, store.RunSummary{RunID: r.Metadata.RunID, Summary: r.Summary})
	}
	return runs, nil
}

func (f *fakeArchive) Ping(context.Context) error {
	return f.pingErr
}

func newTestServer(t *testing.T, opts ...Option) http.Handler {
	t.Helper()
	runner, err := pipeline.New(nil)
	if err != nil {
		t.Fatalf("pipeline.New() error = %v", err)
	}
	return New(runner, opts...).Router()
}

// multipartBody builds a form with files keyed by field name and plain fields.
func multipartBody(t *testing.T, files map[string]string, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for field, content := range files {
		fw, err := mw.CreateFormFile(field, field+".csv")
		if err != nil {
			t.Fatalf("CreateFormFile() error = %v", err)
		}
		fw.Write([]byte(content))
	}
	for k, v := range fields {
		mw.WriteField(k, v)
	}
	mw.Close()
	return &buf, mw.FormDataContentType()
}

func post(t *testing.T, h http.Handler, path string, files, fields map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	body, ct := multipartBody(t, files, fields)
	req := httptest.NewRequest(http.MethodPost, path, body)
	req.Header.Set("Content-Type", ct)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	h := newTestServer(t)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/health", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"ok"`) {
		t.Errorf("body = %s", w.Body.String())
	}
	if w.Header().Get("X-Request-ID") == "" {
		t.Error("missing X-Request-ID")
	}
}

func TestProcess(t *testing.T) {
	archive := &fakeArchive{}
	h := newTestServer(t, WithArchive(archive))

	w := post(t, h, "/api/process", map[string]string{FieldLog: meetingCSV}, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	if got := w.Header().Get("Content-Disposition"); got != "attachment; filename="+ResultFileName {
		t.Errorf("Content-Disposition = %q", got)
	}

	var meta map[string]any
	if err := json.Unmarshal([]byte(w.Header().Get("X-Attendance-Meta")), &meta); err != nil {
		t.Fatalf("X-Attendance-Meta is not JSON: %v", err)
	}
	if meta["threshold_ratio"] != 0.8 {
		t.Errorf("threshold_ratio = %v", meta["threshold_ratio"])
	}

	book, err := excelize.OpenReader(w.Body)
	if err != nil {
		t.Fatalf("response is not a workbook: %v", err)
	}
	defer book.Close()
	rows, err := book.GetRows(output.SheetAttendance)
	if err != nil || len(rows) != 3 {
		t.Errorf("attendance rows = %d, err = %v", len(rows), err)
	}

	if len(archive.saved) != 1 {
		t.Errorf("archived runs = %d, want 1", len(archive.saved))
	}
}

func TestProcess_AliasFieldAndParams(t *testing.T) {
	h := newTestServer(t)

	w := post(t, h, "/api/process",
		map[string]string{FieldLogAlias: meetingCSV},
		map[string]string{FieldParams: `{"threshold_ratio": "0.2"}`, FieldExemptions: `{"NAME:john roe": {"naming": true}}`},
	)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	var meta map[string]any
	json.Unmarshal([]byte(w.Header().Get("X-Attendance-Meta")), &meta)
	if meta["threshold_ratio"] != 0.2 {
		t.Errorf("threshold_ratio = %v, want 0.2", meta["threshold_ratio"])
	}
}

func TestProcess_MalformedJSONFallsBack(t *testing.T) {
	h := newTestServer(t)

	w := post(t, h, "/api/process",
		map[string]string{FieldLog: meetingCSV},
		map[string]string{FieldParams: `{not json`, FieldExemptions: `[1,2`},
	)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var meta map[string]any
	json.Unmarshal([]byte(w.Header().Get("X-Attendance-Meta")), &meta)
	if meta["threshold_ratio"] != 0.8 {
		t.Errorf("threshold_ratio = %v, want default", meta["threshold_ratio"])
	}
}

func TestProcess_Errors(t *testing.T) {
	tests := []struct {
		name   string
		files  map[string]string
		fields map[string]string
		status int
	}{
		{"missing log", nil, nil, http.StatusBadRequest},
		{"no header", map[string]string{FieldLog: "just,some\nrandom,text\n"}, nil, http.StatusBadRequest},
		{"no duration signal", map[string]string{FieldLog: "Name (Original Name),User Email\nJane,j@x\n"}, nil, http.StatusBadRequest},
		{"invalid params", map[string]string{FieldLog: meetingCSV}, map[string]string{FieldParams: `{"threshold_ratio": 4}`}, http.StatusBadRequest},
	}

	h := newTestServer(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := post(t, h, "/api/process", tt.files, tt.fields)
			if w.Code != tt.status {
				t.Fatalf("status = %d, want %d (body %s)", w.Code, tt.status, w.Body.String())
			}
			var body map[string]string
			if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil || body["error"] == "" {
				t.Errorf("body = %s", w.Body.String())
			}
		})
	}
}

func TestProcess_ArchiveFailureIsNotFatal(t *testing.T) {
	h := newTestServer(t, WithArchive(&fakeArchive{saveErr: errors.New("db down")}))

	w := post(t, h, "/api/process", map[string]string{FieldLog: meetingCSV}, nil)
	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
}

func TestKeys(t *testing.T) {
	h := newTestServer(t)

	w := post(t, h, "/api/keys", map[string]string{FieldLog: meetingCSV}, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	var body struct {
		Keys []struct {
			Key      string   `json:"key"`
			RawNames []string `json:"raw_names"`
		} `json:"keys"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if len(body.Keys) != 2 || body.Keys[0].Key != "ID:10001" {
		t.Errorf("keys = %+v", body.Keys)
	}
}

func TestArchiveEndpoints(t *testing.T) {
	h := newTestServer(t)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/runs", nil))
	if w.Code != http.StatusNotFound {
		t.Errorf("/api/runs without archive = %d, want 404", w.Code)
	}

	archive := &fakeArchive{}
	h = newTestServer(t, WithArchive(archive))
	post(t, h, "/api/process", map[string]string{FieldLog: meetingCSV}, nil)

	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/runs", nil))
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), archive.saved[0].Metadata.RunID) {
		t.Errorf("/api/runs = %d %s", w.Code, w.Body.String())
	}

	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/ready", nil))
	if w.Code != http.StatusOK {
		t.Errorf("/api/ready = %d", w.Code)
	}

	h = newTestServer(t, WithArchive(&fakeArchive{pingErr: errors.New("down")}))
	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/ready", nil))
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("/api/ready with failing ping = %d, want 503", w.Code)
	}
}
