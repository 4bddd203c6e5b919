package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/qwill/qwill/internal/metrics"
	"github.com/qwill/qwill/internal/storage"
	"github.com/qwill/qwill/pkg/api"
)

func newTestServer(t *testing.T) (*Server, *httptest.Server, storage.Backend) {
	t.Helper()
	backend, err := storage.NewFileBackend(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	options := api.DefaultOptions()
	api.WithFont("monospace", 12)(&options)
	s := New(Dependencies{
		Storage:       backend,
		Options:       options,
		AutosaveDelay: time.Hour,
	})
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(func() {
		ts.Close()
		s.Close()
	})
	return s, ts, backend
}

func do(t *testing.T, method, url, body string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func TestDocumentLifecycle(t *testing.T) {
	s, ts, backend := newTestServer(t)

	resp := do(t, http.MethodPost, ts.URL+"/documents?name=notes.txt", "Shopping list\nmilk\n")
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("POST status = %d", resp.StatusCode)
	}
	var created documentResponse
	decode(t, resp, &created)
	if created.ID == "" || created.Title != "Shopping list" || len(created.Pages) != 1 {
		t.Fatalf("created = %+v", created)
	}

	resp = do(t, http.MethodGet, ts.URL+"/documents", "")
	var list []storage.Meta
	decode(t, resp, &list)
	if len(list) != 1 || list[0].ID != created.ID || list[0].Name != "Shopping list" {
		t.Errorf("list = %+v", list)
	}

	page := created.Pages[0].ID
	long := strings.Repeat("a", 5000)
	body, _ := json.Marshal(map[string]string{"content": long})
	resp = do(t, http.MethodPut, ts.URL+"/documents/"+created.ID+"/pages/"+page, string(body))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("PUT status = %d", resp.StatusCode)
	}
	var updated documentResponse
	decode(t, resp, &updated)
	if len(updated.Pages) != 2 || updated.Pages[0].ID != page {
		t.Errorf("updated pages = %d", len(updated.Pages))
	}
	if updated.Autosave != "pending" {
		t.Errorf("autosave = %q, want pending", updated.Autosave)
	}

	resp = do(t, http.MethodGet, ts.URL+"/documents/"+created.ID+"/export?format=html", "")
	if resp.StatusCode != http.StatusOK || !strings.HasPrefix(resp.Header.Get("Content-Type"), "text/html") {
		t.Fatalf("export status = %d type = %q", resp.StatusCode, resp.Header.Get("Content-Type"))
	}
	var buf bytes.Buffer
	buf.ReadFrom(resp.Body)
	if !strings.Contains(buf.String(), long) {
		t.Error("export does not hold the whole document")
	}

	resp = do(t, http.MethodDelete, ts.URL+"/documents/"+created.ID, "")
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("DELETE status = %d", resp.StatusCode)
	}
	if _, _, err := backend.Load(context.Background(), created.ID); err == nil {
		t.Error("document still stored after delete")
	}
	resp = do(t, http.MethodGet, ts.URL+"/documents/"+created.ID, "")
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("GET after delete status = %d", resp.StatusCode)
	}
	if len(s.sessions) != 0 {
		t.Errorf("sessions = %d after delete", len(s.sessions))
	}
}

func TestOpenStoredDocument(t *testing.T) {
	_, ts, backend := newTestServer(t)
	meta := storage.Meta{ID: "stored", Name: "Stored", LastModified: time.Now()}
	if err := backend.Save(context.Background(), meta, "<p>From disk</p>"); err != nil {
		t.Fatal(err)
	}

	resp := do(t, http.MethodGet, ts.URL+"/documents/stored", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var doc documentResponse
	decode(t, resp, &doc)
	if doc.Title != "From disk" || len(doc.Pages) != 1 || doc.Pages[0].Content != "<p>From disk</p>" {
		t.Errorf("doc = %+v", doc)
	}
}

func TestErrors(t *testing.T) {
	_, ts, _ := newTestServer(t)

	resp := do(t, http.MethodPost, ts.URL+"/documents?name=blob.bin", "\x00\x01\x02\xff")
	if resp.StatusCode != http.StatusUnsupportedMediaType {
		t.Errorf("unsupported upload status = %d", resp.StatusCode)
	}

	resp = do(t, http.MethodPost, ts.URL+"/documents", "")
	var created documentResponse
	decode(t, resp, &created)

	resp = do(t, http.MethodPut, ts.URL+"/documents/"+created.ID+"/pages/nope", `{"content":"x"}`)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("unknown page status = %d", resp.StatusCode)
	}
	resp = do(t, http.MethodPut, ts.URL+"/documents/"+created.ID+"/pages/nope", `{`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("bad json status = %d", resp.StatusCode)
	}
	resp = do(t, http.MethodGet, ts.URL+"/documents/"+created.ID+"/export?format=odt", "")
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("bad format status = %d", resp.StatusCode)
	}
	resp = do(t, http.MethodDelete, ts.URL+"/documents/missing", "")
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("delete missing status = %d", resp.StatusCode)
	}
	resp = do(t, http.MethodGet, ts.URL+"/documents/a%5Cb", "")
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("invalid id status = %d", resp.StatusCode)
	}
	resp = do(t, http.MethodDelete, ts.URL+"/documents/a%5Cb", "")
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("delete invalid id status = %d", resp.StatusCode)
	}
}

func TestExternalImagesAreNotFetched(t *testing.T) {
	var mu sync.Mutex
	hits := 0
	images := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		hits++
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer images.Close()

	_, ts, _ := newTestServer(t)
	resp := do(t, http.MethodPost, ts.URL+"/documents", "")
	var created documentResponse
	decode(t, resp, &created)

	content := `<p>logo <img src="` + images.URL + `/logo.png"/></p>`
	body, _ := json.Marshal(map[string]string{"content": content})
	resp = do(t, http.MethodPut, ts.URL+"/documents/"+created.ID+"/pages/"+created.Pages[0].ID, string(body))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("PUT status = %d", resp.StatusCode)
	}
	resp = do(t, http.MethodGet, ts.URL+"/documents/"+created.ID+"/export?format=pdf", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("export status = %d", resp.StatusCode)
	}

	mu.Lock()
	defer mu.Unlock()
	if hits != 0 {
		t.Errorf("image server was hit %d times", hits)
	}
}

func TestConcurrentOpenSharesSession(t *testing.T) {
	s, _, backend := newTestServer(t)
	meta := storage.Meta{ID: "shared", Name: "Shared", LastModified: time.Now()}
	if err := backend.Save(context.Background(), meta, "<p>x</p>"); err != nil {
		t.Fatal(err)
	}

	editors := make([]any, 8)
	var wg sync.WaitGroup
	for i := range editors {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			e, err := s.session(context.Background(), "shared")
			if err != nil {
				t.Error(err)
				return
			}
			editors[i] = e
		}(i)
	}
	wg.Wait()

	for _, e := range editors[1:] {
		if e != editors[0] {
			t.Fatal("concurrent opens returned different sessions")
		}
	}
	if len(s.sessions) != 1 {
		t.Errorf("sessions = %d", len(s.sessions))
	}
}

func TestSetFont(t *testing.T) {
	_, ts, _ := newTestServer(t)
	resp := do(t, http.MethodPost, ts.URL+"/documents", "")
	var created documentResponse
	decode(t, resp, &created)

	resp = do(t, http.MethodPut, ts.URL+"/documents/"+created.ID+"/font", `{"family":"serif"}`)
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d", resp.StatusCode)
	}
	resp = do(t, http.MethodPut, ts.URL+"/documents/"+created.ID+"/font", `{}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("missing family status = %d", resp.StatusCode)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	metrics.Init()
	_, ts, _ := newTestServer(t)
	resp := do(t, http.MethodGet, ts.URL+"/metrics", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var buf bytes.Buffer
	buf.ReadFrom(resp.Body)
	if !strings.Contains(buf.String(), "qwill_") {
		t.Error("metrics output has no qwill collectors")
	}
}
