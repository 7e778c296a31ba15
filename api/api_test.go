package api

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/charmbracelet/log"

	"github.com/Xangel0s/docqr-Flex-sub000/errkind"
	"github.com/Xangel0s/docqr-Flex-sub000/internal/pdftest"
	"github.com/Xangel0s/docqr-Flex-sub000/lock"
	"github.com/Xangel0s/docqr-Flex-sub000/orchestrator"
	"github.com/Xangel0s/docqr-Flex-sub000/qrcode"
	"github.com/Xangel0s/docqr-Flex-sub000/storage"
	"github.com/Xangel0s/docqr-Flex-sub000/store"
)

type testServer struct {
	files   *storage.Memory
	records *store.Memory
	handler http.Handler
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	ctx := context.Background()
	logger := log.New(io.Discard)

	ts := &testServer{files: storage.NewMemory(), records: store.NewMemory()}
	docs := map[string][]byte{
		"letter":    pdftest.Letter(),
		"protected": pdftest.Encrypted(),
	}
	for id, data := range docs {
		ts.files.Write(ctx, "originals/"+id+".pdf", data)
		ts.records.Create(ctx, &store.Record{ID: id, SourcePath: "originals/" + id + ".pdf"})
	}
	ts.records.Create(ctx, &store.Record{ID: "lost", SourcePath: "originals/lost.pdf"})

	orch, err := orchestrator.New(orchestrator.Deps{
		Storage: ts.files,
		Store:   ts.records,
		Locker:  lock.NewLocal(),
	}, orchestrator.Options{Logger: logger})
	if err != nil {
		t.Fatal(err)
	}
	codes, err := qrcode.New("https://docs.example.com/d/", 128, "medium")
	if err != nil {
		t.Fatal(err)
	}
	ts.handler = New(orch, ts.records, ts.files, codes, WithLogger(logger)).Routes()
	return ts
}

func (ts *testServer) do(method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	return rec
}

func decodeResult(t *testing.T, rec *httptest.ResponseRecorder) orchestrator.EmbedResult {
	t.Helper()
	var res orchestrator.EmbedResult
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatalf("response %q is not JSON: %v", rec.Body.String(), err)
	}
	return res
}

func TestHealthz(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do(http.MethodGet, "/healthz", "")
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}

func TestEmbedWithDefaultOverlay(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(http.MethodPost, "/v1/documents/letter/embed",
		`{"placement":{"x":50,"y":50,"width":100,"height":100}}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	res := decodeResult(t, rec)
	if !res.Success || res.ArtifactRef == "" || res.Strategy != "primary" {
		t.Errorf("result = %+v", res)
	}

	rec = ts.do(http.MethodGet, "/v1/documents/letter/placement", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("placement status = %d", rec.Code)
	}
	var pr PlacementResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &pr); err != nil {
		t.Fatal(err)
	}
	if pr.Status != store.StatusEmbedded || pr.ArtifactRef != res.ArtifactRef || pr.Placement == nil || pr.Placement.X != 50 {
		t.Errorf("placement = %+v", pr)
	}
}

func TestEmbedWithOverlay(t *testing.T) {
	ts := newTestServer(t)
	body := `{"placement":{"x":100,"y":200,"width":80,"height":80},"overlay":"` +
		base64.StdEncoding.EncodeToString(pdftest.Overlay()) + `"}`

	rec := ts.do(http.MethodPost, "/v1/documents/letter/embed", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
}

func TestEmbedStatusMapping(t *testing.T) {
	ts := newTestServer(t)
	ok := `{"placement":{"x":50,"y":50,"width":100,"height":100}}`

	tests := []struct {
		name   string
		id     string
		body   string
		status int
		kind   errkind.Kind
	}{
		{"out of bounds", "letter", `{"placement":{"x":600,"y":50,"width":100,"height":100}}`, http.StatusUnprocessableEntity, errkind.Validation},
		{"protected", "protected", ok, http.StatusLocked, errkind.Protected},
		{"unknown", "nope", ok, http.StatusNotFound, errkind.NotFound},
		{"original lost", "lost", ok, http.StatusGone, errkind.OriginalLost},
		{"malformed", "letter", `{"placement":`, http.StatusBadRequest, errkind.Validation},
		{"no placement", "letter", `{}`, http.StatusBadRequest, errkind.Validation},
		{"unknown field", "letter", `{"placement":{"x":50,"y":50,"width":100,"height":100},"colour":"red"}`, http.StatusBadRequest, errkind.Validation},
		{"bad unit", "letter", `{"placement":{"x":50,"y":50,"width":100,"height":100},"replacement":{"unit":"inches"}}`, http.StatusBadRequest, errkind.Validation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := ts.do(http.MethodPost, "/v1/documents/"+tt.id+"/embed", tt.body)
			if rec.Code != tt.status {
				t.Errorf("status = %d, want %d (body %s)", rec.Code, tt.status, rec.Body)
			}
			if res := decodeResult(t, rec); res.ErrorKind != tt.kind || res.Hint == "" {
				t.Errorf("result = %+v, want kind %q with a hint", res, tt.kind)
			}
		})
	}
}

func TestUploadEmbedDelete(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(http.MethodPost, "/v1/documents", string(pdftest.A4()))
	if rec.Code != http.StatusCreated {
		t.Fatalf("upload status = %d, body %s", rec.Code, rec.Body)
	}
	var doc DocumentResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &doc); err != nil {
		t.Fatal(err)
	}
	if doc.DocumentID == "" || doc.CodeURL != "https://docs.example.com/d/"+doc.DocumentID {
		t.Fatalf("document = %+v", doc)
	}

	base := "/v1/documents/" + doc.DocumentID
	if rec := ts.do(http.MethodDelete, base, ""); rec.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d", rec.Code)
	}
	r, _ := ts.records.Get(context.Background(), doc.DocumentID)
	if !r.Deleted() {
		t.Fatal("record not soft-deleted")
	}

	rec = ts.do(http.MethodPost, base+"/embed", `{"placement":{"x":10,"y":10,"width":60,"height":60}}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("embed status = %d, body %s", rec.Code, rec.Body)
	}
	r, _ = ts.records.Get(context.Background(), doc.DocumentID)
	if r.Deleted() {
		t.Error("embed did not restore the record")
	}
}

func TestUploadRejectsNonPDF(t *testing.T) {
	ts := newTestServer(t)
	if rec := ts.do(http.MethodPost, "/v1/documents", "hello"); rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
	if rec := ts.do(http.MethodDelete, "/v1/documents/nope", ""); rec.Code != http.StatusNotFound {
		t.Errorf("delete unknown status = %d, want 404", rec.Code)
	}
}

func TestCodePNG(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(http.MethodGet, "/v1/documents/letter/code.png", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "image/png" {
		t.Errorf("Content-Type = %q", ct)
	}
	img, err := png.Decode(bytes.NewReader(rec.Body.Bytes()))
	if err != nil {
		t.Fatalf("body is not a PNG: %v", err)
	}
	if img.Bounds().Dx() != 128 {
		t.Errorf("width = %d, want 128", img.Bounds().Dx())
	}

	if rec := ts.do(http.MethodGet, "/v1/documents/nope/code.png", ""); rec.Code != http.StatusNotFound {
		t.Errorf("unknown document status = %d, want 404", rec.Code)
	}
}

func TestStatusFor(t *testing.T) {
	tests := map[errkind.Kind]int{
		"":                          http.StatusOK,
		errkind.Busy:                http.StatusConflict,
		errkind.UnsupportedEncoding: http.StatusInternalServerError,
		errkind.PageInvariant:       http.StatusInternalServerError,
		errkind.Storage:             http.StatusInternalServerError,
	}
	for kind, want := range tests {
		if got := StatusFor(kind); got != want {
			t.Errorf("StatusFor(%q) = %d, want %d", kind, got, want)
		}
	}
}

// refusingStore fails every Create.
type refusingStore struct {
	*store.Memory
}

func (refusingStore) Create(context.Context, *store.Record) error {
	return &store.Error{Op: "create", Err: errors.New("create refused")}
}

// undeletableFiles fails every Delete.
type undeletableFiles struct {
	*storage.Memory
}

func (undeletableFiles) Delete(_ context.Context, path string) error {
	return &storage.Error{Op: "delete", Path: path, Err: errors.New("delete refused")}
}

func TestUploadLogsOrphanedOriginal(t *testing.T) {
	var logs bytes.Buffer
	files := undeletableFiles{storage.NewMemory()}
	codes, err := qrcode.New("https://docs.example.com/d/", 128, "medium")
	if err != nil {
		t.Fatal(err)
	}
	handler := New(nil, refusingStore{store.NewMemory()}, files, codes, WithLogger(log.New(&logs))).Routes()

	req := httptest.NewRequest(http.MethodPost, "/v1/documents", bytes.NewReader(pdftest.Letter()))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	if paths := files.Paths(); len(paths) != 1 {
		t.Fatalf("stored paths = %v, want the orphaned original", paths)
	}
	if !strings.Contains(logs.String(), "remove orphaned original") || !strings.Contains(logs.String(), files.Paths()[0]) {
		t.Errorf("log does not report the orphaned original: %q", logs.String())
	}
}
