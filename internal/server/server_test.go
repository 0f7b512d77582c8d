package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/KaramelBytes/excelytics/internal/ai"
	"github.com/KaramelBytes/excelytics/internal/insights"
	"github.com/KaramelBytes/excelytics/internal/store"
	"github.com/KaramelBytes/excelytics/internal/upload"
)

const salesCSV = "Region,Revenue\nNorth,10\nSouth,5\nNorth,2\n"

type stubRuntime struct {
	reply string
	err   error
}

func (s *stubRuntime) Generate(_ context.Context, _ ai.GenerateRequest) (*ai.GenerateResponse, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &ai.GenerateResponse{Choices: []ai.Choice{{Message: ai.Message{Role: "assistant", Content: s.reply}}}}, nil
}

type harness struct {
	ts      *httptest.Server
	store   store.Store
	uploads *upload.Registry
}

func newHarness(t *testing.T, svc *insights.Service, maxBytes int64) *harness {
	t.Helper()
	st := store.NewMemory()
	reg := upload.NewRegistry(8, time.Minute)
	srv, err := New(st, reg, svc, Config{SpoolDir: t.TempDir(), FilesDir: t.TempDir(), MaxUploadBytes: maxBytes})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		ts.Close()
		reg.Close()
	})
	return &harness{ts: ts, store: st, uploads: reg}
}

func (h *harness) do(t *testing.T, method, path, owner string, body any) (*http.Response, map[string]any) {
	t.Helper()
	var rdr *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		rdr = bytes.NewReader(b)
	} else {
		rdr = bytes.NewReader(nil)
	}
	req, _ := http.NewRequest(method, h.ts.URL+path, rdr)
	req.Header.Set("Content-Type", "application/json")
	if owner != "" {
		req.Header.Set(OwnerHeader, owner)
	}
	return send(t, req)
}

func (h *harness) upload(t *testing.T, owner, name, content string) (*http.Response, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", name)
	if err != nil {
		t.Fatal(err)
	}
	_, _ = fw.Write([]byte(content))
	_ = mw.Close()
	req, _ := http.NewRequest(http.MethodPost, h.ts.URL+"/api/files/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set(OwnerHeader, owner)
	return send(t, req)
}

func send(t *testing.T, req *http.Request) (*http.Response, map[string]any) {
	t.Helper()
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	defer resp.Body.Close()
	var out map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	return resp, out
}

func expectStatus(t *testing.T, resp *http.Response, body map[string]any, want int) {
	t.Helper()
	if resp.StatusCode != want {
		t.Fatalf("status = %d, want %d (body %v)", resp.StatusCode, want, body)
	}
}

func TestFileAndChartLifecycle(t *testing.T) {
	h := newHarness(t, nil, 1<<20)

	resp, body := h.upload(t, "alice", "sales.csv", salesCSV)
	expectStatus(t, resp, body, http.StatusCreated)
	tempID, _ := body["tempId"].(string)
	if tempID == "" || body["originalName"] != "sales.csv" {
		t.Fatalf("unexpected upload response: %v", body)
	}
	sheets := body["sheets"].([]any)
	first := sheets[0].(map[string]any)
	if first["name"] != "Sheet1" || first["rowCount"].(float64) != 3 {
		t.Fatalf("unexpected sheet summary: %v", first)
	}
	if h.uploads.Len() != 1 {
		t.Fatalf("pending = %d, want 1", h.uploads.Len())
	}

	resp, body = h.do(t, http.MethodPost, "/api/files/confirm/"+tempID, "bob", nil)
	expectStatus(t, resp, body, http.StatusNotFound)

	resp, body = h.do(t, http.MethodPost, "/api/files/confirm/"+tempID, "alice", nil)
	expectStatus(t, resp, body, http.StatusCreated)
	file := body["file"].(map[string]any)
	fileID := file["id"].(string)
	storedPath := file["storedPath"].(string)
	if _, err := os.Stat(storedPath); err != nil {
		t.Fatalf("stored file missing: %v", err)
	}

	resp, body = h.do(t, http.MethodPost, "/api/files/confirm/"+tempID, "alice", nil)
	expectStatus(t, resp, body, http.StatusNotFound)

	resp, body = h.do(t, http.MethodGet, "/api/files", "alice", nil)
	expectStatus(t, resp, body, http.StatusOK)
	if n := len(body["files"].([]any)); n != 1 {
		t.Fatalf("alice has %d files, want 1", n)
	}
	resp, body = h.do(t, http.MethodGet, "/api/files", "bob", nil)
	if n := len(body["files"].([]any)); n != 0 {
		t.Fatalf("bob has %d files, want 0", n)
	}
	resp, body = h.do(t, http.MethodGet, "/api/files/"+fileID, "bob", nil)
	expectStatus(t, resp, body, http.StatusNotFound)

	spec := map[string]any{
		"sheet": "Sheet1", "chartType": "bar", "xAxis": "Region", "yAxis": "Revenue", "save": true,
	}
	resp, body = h.do(t, http.MethodPost, "/api/files/"+fileID+"/charts", "alice", spec)
	expectStatus(t, resp, body, http.StatusOK)
	chartID, _ := body["chartId"].(string)
	if chartID == "" {
		t.Fatalf("expected chartId: %v", body)
	}
	data := body["chart"].(map[string]any)["data"].(map[string]any)
	labels, values := data["labels"].([]any), data["values"].([]any)
	if len(labels) != 2 || labels[0] != "North" || values[0].(float64) != 12 || values[1].(float64) != 5 {
		t.Fatalf("unexpected chart data: %v", data)
	}

	spec["yAxis"] = "Profit"
	resp, body = h.do(t, http.MethodPost, "/api/files/"+fileID+"/charts", "alice", spec)
	expectStatus(t, resp, body, http.StatusBadRequest)
	if body["success"] != false || body["error"] != kindInvalidInput {
		t.Fatalf("unexpected error body: %v", body)
	}

	resp, body = h.do(t, http.MethodGet, "/api/files/"+fileID, "alice", nil)
	if n := len(body["file"].(map[string]any)["charts"].([]any)); n != 1 {
		t.Fatalf("file has %d charts, want 1", n)
	}

	resp, body = h.do(t, http.MethodDelete, "/api/files/"+fileID+"/charts/"+chartID, "alice", nil)
	expectStatus(t, resp, body, http.StatusOK)
	resp, body = h.do(t, http.MethodDelete, "/api/files/"+fileID+"/charts/"+chartID, "alice", nil)
	expectStatus(t, resp, body, http.StatusNotFound)

	resp, body = h.do(t, http.MethodDelete, "/api/files/"+fileID, "alice", nil)
	expectStatus(t, resp, body, http.StatusOK)
	if _, err := os.Stat(storedPath); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("stored file should be removed, stat err = %v", err)
	}
}

func TestUploadErrors(t *testing.T) {
	h := newHarness(t, nil, 1<<20)

	req, _ := http.NewRequest(http.MethodPost, h.ts.URL+"/api/files/upload", strings.NewReader("nope"))
	req.Header.Set("Content-Type", "text/plain")
	resp, body := send(t, req)
	expectStatus(t, resp, body, http.StatusBadRequest)

	resp, body = h.upload(t, "alice", "blob.bin", "\x00\x01\x02binary")
	expectStatus(t, resp, body, http.StatusUnprocessableEntity)
	if body["error"] != kindParse {
		t.Fatalf("unexpected error kind: %v", body)
	}

	if h.uploads.Len() != 0 {
		t.Fatalf("failed uploads should not be pending")
	}

	small := newHarness(t, nil, 256)
	resp, body = small.upload(t, "alice", "big.csv", "a,b\n"+strings.Repeat("1,2\n", 200))
	expectStatus(t, resp, body, http.StatusRequestEntityTooLarge)
}

func TestInsightsEndpoint(t *testing.T) {
	rt := &stubRuntime{reply: `Here you go: {"summary":"North leads","keyStats":["12 total"]}`}
	h := newHarness(t, insights.NewService(rt, "m", 128), 1<<20)

	body := map[string]any{
		"dataSummary":  map[string]any{"sheetName": "Sheet1", "columns": []string{"Region", "Revenue"}, "rowCount": 3},
		"chartContext": map[string]any{"type": "bar", "xAxis": "Region", "yAxis": "Revenue"},
	}
	resp, out := h.do(t, http.MethodPost, "/api/insights", "alice", body)
	expectStatus(t, resp, out, http.StatusOK)
	ins := out["insights"].(map[string]any)
	if ins["summary"] != "North leads" {
		t.Fatalf("unexpected insights: %v", ins)
	}

	resp, out = h.do(t, http.MethodPost, "/api/insights", "alice", map[string]any{"dataSummary": map[string]any{"sheetName": "S"}})
	expectStatus(t, resp, out, http.StatusBadRequest)

	for _, tc := range []struct {
		reply string
		err   error
		kind  string
	}{
		{reply: "no json here", kind: kindExtraction},
		{reply: `{"summary": oops}`, kind: kindMalformed},
		{err: errors.New("provider down"), kind: kindUpstream},
	} {
		rt.reply, rt.err = tc.reply, tc.err
		resp, out = h.do(t, http.MethodPost, "/api/insights", "alice", body)
		expectStatus(t, resp, out, http.StatusBadGateway)
		if out["error"] != tc.kind {
			t.Fatalf("reply %q / err %v: kind = %v, want %s", tc.reply, tc.err, out["error"], tc.kind)
		}
	}
}

func TestInsightsFromStoredFile(t *testing.T) {
	h := newHarness(t, insights.NewService(&stubRuntime{reply: `{"summary":"ok"}`}, "m", 0), 1<<20)
	_, body := h.upload(t, "alice", "sales.csv", salesCSV)
	_, body = h.do(t, http.MethodPost, "/api/files/confirm/"+body["tempId"].(string), "alice", nil)
	fileID := body["file"].(map[string]any)["id"].(string)

	resp, out := h.do(t, http.MethodPost, "/api/insights", "alice", map[string]any{"fileId": fileID, "sheet": "Sheet1"})
	expectStatus(t, resp, out, http.StatusOK)
	resp, out = h.do(t, http.MethodPost, "/api/insights", "alice", map[string]any{"fileId": fileID, "sheet": "Ghost"})
	expectStatus(t, resp, out, http.StatusBadRequest)
}

func TestInsightsUnavailableAndRouting(t *testing.T) {
	h := newHarness(t, nil, 1<<20)
	resp, out := h.do(t, http.MethodPost, "/api/insights", "", map[string]any{})
	expectStatus(t, resp, out, http.StatusServiceUnavailable)

	resp, out = h.do(t, http.MethodGet, "/api/nothing", "", nil)
	expectStatus(t, resp, out, http.StatusNotFound)

	resp, out = h.do(t, http.MethodGet, "/healthz", "", nil)
	expectStatus(t, resp, out, http.StatusOK)
	if resp.Header.Get("X-Request-ID") == "" {
		t.Fatalf("missing request id header")
	}
}

func TestClassify(t *testing.T) {
	cases := []struct {
		err  error
		code int
		kind string
	}{
		{&badRequest{msg: "x"}, http.StatusBadRequest, kindInvalidInput},
		{&insights.InvalidInputError{Field: "f", Reason: "r"}, http.StatusBadRequest, kindInvalidInput},
		{store.ErrNotFound, http.StatusNotFound, kindNotFound},
		{upload.ErrExpired, http.StatusNotFound, kindNotFound},
		{&upstreamError{err: errors.New("x")}, http.StatusBadGateway, kindUpstream},
		{&upstreamError{err: &insights.ExtractionError{Err: insights.ErrNoJSONObject}}, http.StatusBadGateway, kindExtraction},
		{&upstreamError{err: &insights.MalformedResponseError{Fragment: "{", Err: errors.New("eof")}}, http.StatusBadGateway, kindMalformed},
		{errors.New("boom"), http.StatusInternalServerError, kindInternal},
	}
	for _, tc := range cases {
		if code, kind := classify(tc.err); code != tc.code || kind != tc.kind {
			t.Errorf("classify(%v) = %d %s, want %d %s", tc.err, code, kind, tc.code, tc.kind)
		}
	}
}
