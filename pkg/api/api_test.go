package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/shelfd/shelfd/pkg/catalog"
	"github.com/shelfd/shelfd/pkg/catalog/models"
	"github.com/shelfd/shelfd/pkg/service"
	"github.com/shelfd/shelfd/pkg/storage"
	"github.com/shelfd/shelfd/pkg/storage/memory"
)

// newTestAPI wires the full router over an in-memory catalog and blob store.
func newTestAPI(t *testing.T) http.Handler {
	t.Helper()

	store, err := catalog.New(&catalog.Config{
		Type:   catalog.DatabaseTypeSQLite,
		SQLite: catalog.SQLiteConfig{Path: ":memory:"},
	})
	if err != nil {
		t.Fatalf("failed to create catalog: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	registry := storage.NewRegistry()
	registry.Register("memory", memory.NewStore().Opener())
	factory := storage.NewFactory(registry, 2, 2)

	location := &models.Location{Name: "primary", URI: "mem://primary", Backend: "memory", Default: true}
	if err := store.CreateLocation(context.Background(), location); err != nil {
		t.Fatalf("failed to create location: %v", err)
	}

	svc := service.New(store, factory, service.Config{
		MinFileSize:           1,
		MultipartChunkSizeMin: 5,
		MultipartChunkSizeMax: 100,
		MultipartMaxParts:     10,
	}, nil)

	return NewRouter(svc, store, service.AllowAll{}, Config{})
}

func doJSON(t *testing.T, handler http.Handler, method, target, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()

	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	var decoded map[string]any
	if w.Body.Len() > 0 {
		if err := json.Unmarshal(w.Body.Bytes(), &decoded); err != nil {
			return w, nil
		}
	}
	return w, decoded
}

func createBucket(t *testing.T, handler http.Handler) string {
	t.Helper()
	w, body := doJSON(t, handler, http.MethodPost, "/files", "{}")
	if w.Code != http.StatusOK {
		t.Fatalf("create bucket failed: %d %s", w.Code, w.Body.String())
	}
	id, _ := body["id"].(string)
	if id == "" {
		t.Fatalf("no bucket id in response: %v", body)
	}
	return id
}

func TestCreateUploadDownloadDelete(t *testing.T) {
	handler := newTestAPI(t)
	bucket := createBucket(t, handler)

	// Upload.
	w, body := doJSON(t, handler, http.MethodPut, "/files/"+bucket+"/hello.txt", "hello\n")
	if w.Code != http.StatusOK {
		t.Fatalf("put failed: %d %s", w.Code, w.Body.String())
	}
	if body["size"].(float64) != 6 {
		t.Errorf("expected size 6, got %v", body["size"])
	}
	if body["checksum"] != "md5:b1946ac92492d2347c6235b4d2611184" {
		t.Errorf("unexpected checksum %v", body["checksum"])
	}
	versionID, _ := body["version_id"].(string)
	if versionID == "" {
		t.Fatal("expected version_id in response")
	}
	if body["is_head"] != true {
		t.Error("expected head version")
	}

	// Download.
	req := httptest.NewRequest(http.MethodGet, "/files/"+bucket+"/hello.txt", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("get failed: %d", rec.Code)
	}
	if rec.Body.String() != "hello\n" {
		t.Errorf("body mismatch: %q", rec.Body.String())
	}
	if etag := rec.Header().Get("ETag"); etag != `"md5:b1946ac92492d2347c6235b4d2611184"` {
		t.Errorf("unexpected ETag %q", etag)
	}
	if md5 := rec.Header().Get("Content-MD5"); md5 != "b1946ac92492d2347c6235b4d2611184" {
		t.Errorf("unexpected Content-MD5 %q", md5)
	}
	if rec.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("expected XSS-safety headers")
	}

	// Delete creates a marker; GET turns 404; the old version stays.
	w, _ = doJSON(t, handler, http.MethodDelete, "/files/"+bucket+"/hello.txt", "")
	if w.Code != http.StatusNoContent {
		t.Fatalf("delete failed: %d", w.Code)
	}

	w, errBody := doJSON(t, handler, http.MethodGet, "/files/"+bucket+"/hello.txt", "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 after delete, got %d", w.Code)
	}
	if errBody["status"].(float64) != 404 || errBody["message"] == "" {
		t.Errorf("unexpected error shape: %v", errBody)
	}

	req = httptest.NewRequest(http.MethodGet, "/files/"+bucket+"/hello.txt?versionId="+versionID, nil)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("expected old version reachable, got %d", rec.Code)
	}
	if rec.Body.String() != "hello\n" {
		t.Errorf("old version body mismatch: %q", rec.Body.String())
	}
}

func TestRangeRequests(t *testing.T) {
	handler := newTestAPI(t)
	bucket := createBucket(t, handler)

	if w, _ := doJSON(t, handler, http.MethodPut, "/files/"+bucket+"/data.bin", "0123456789"); w.Code != http.StatusOK {
		t.Fatalf("put failed: %d", w.Code)
	}

	tests := []struct {
		name       string
		rangeSpec  string
		wantStatus int
		wantBody   string
		wantRange  string
	}{
		{"prefix", "bytes=0-3", http.StatusPartialContent, "0123", "bytes 0-3/10"},
		{"middle", "bytes=4-6", http.StatusPartialContent, "456", "bytes 4-6/10"},
		{"open end", "bytes=7-", http.StatusPartialContent, "789", "bytes 7-9/10"},
		{"suffix", "bytes=-2", http.StatusPartialContent, "89", "bytes 8-9/10"},
		{"end clamped", "bytes=8-99", http.StatusPartialContent, "89", "bytes 8-9/10"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/files/"+bucket+"/data.bin", nil)
			req.Header.Set("Range", tt.rangeSpec)
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Fatalf("expected %d, got %d", tt.wantStatus, rec.Code)
			}
			if rec.Body.String() != tt.wantBody {
				t.Errorf("body = %q, want %q", rec.Body.String(), tt.wantBody)
			}
			if got := rec.Header().Get("Content-Range"); got != tt.wantRange {
				t.Errorf("Content-Range = %q, want %q", got, tt.wantRange)
			}
		})
	}

	t.Run("unsatisfiable", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/files/"+bucket+"/data.bin", nil)
		req.Header.Set("Range", "bytes=50-60")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusRequestedRangeNotSatisfiable {
			t.Errorf("expected 416, got %d", rec.Code)
		}
	})

	t.Run("stale if-range falls back to full body", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/files/"+bucket+"/data.bin", nil)
		req.Header.Set("Range", "bytes=0-3")
		req.Header.Set("If-Range", `"md5:stale"`)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Errorf("expected 200 full response, got %d", rec.Code)
		}
		if rec.Body.String() != "0123456789" {
			t.Errorf("expected full body, got %q", rec.Body.String())
		}
	})
}

func TestListVersions(t *testing.T) {
	handler := newTestAPI(t)
	bucket := createBucket(t, handler)

	doJSON(t, handler, http.MethodPut, "/files/"+bucket+"/k", "a")
	doJSON(t, handler, http.MethodPut, "/files/"+bucket+"/k", "bb")

	req := httptest.NewRequest(http.MethodGet, "/files/"+bucket+"?versions", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("list versions failed: %d", rec.Code)
	}

	var versions []map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &versions); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if len(versions) != 2 {
		t.Fatalf("expected 2 versions, got %d", len(versions))
	}

	heads := 0
	for _, v := range versions {
		if v["is_head"] == true {
			heads++
		}
	}
	if heads != 1 {
		t.Errorf("expected exactly one head, got %d", heads)
	}

	// Plain listing shows only the head.
	req = httptest.NewRequest(http.MethodGet, "/files/"+bucket, nil)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	var objects []map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &objects); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if len(objects) != 1 {
		t.Errorf("expected 1 head object, got %d", len(objects))
	}
}

func TestBucketEndpoints(t *testing.T) {
	handler := newTestAPI(t)
	bucket := createBucket(t, handler)

	t.Run("head existing", func(t *testing.T) {
		w, _ := doJSON(t, handler, http.MethodHead, "/files/"+bucket, "")
		if w.Code != http.StatusOK {
			t.Errorf("expected 200, got %d", w.Code)
		}
	})

	t.Run("head missing", func(t *testing.T) {
		w, _ := doJSON(t, handler, http.MethodHead, "/files/00000000-0000-0000-0000-000000000000", "")
		if w.Code != http.StatusNotFound {
			t.Errorf("expected 404, got %d", w.Code)
		}
	})

	t.Run("update quota", func(t *testing.T) {
		w, body := doJSON(t, handler, http.MethodPut, "/files/"+bucket, `{"quota_size": 1024}`)
		if w.Code != http.StatusOK {
			t.Fatalf("update failed: %d %s", w.Code, w.Body.String())
		}
		if body["quota_size"].(float64) != 1024 {
			t.Errorf("expected quota 1024, got %v", body["quota_size"])
		}
	})

	t.Run("soft delete", func(t *testing.T) {
		doomed := createBucket(t, handler)
		w, _ := doJSON(t, handler, http.MethodDelete, "/files/"+doomed, "")
		if w.Code != http.StatusNoContent {
			t.Fatalf("delete failed: %d", w.Code)
		}
		w, _ = doJSON(t, handler, http.MethodGet, "/files/"+doomed, "")
		if w.Code != http.StatusNotFound {
			t.Errorf("expected 404 after delete, got %d", w.Code)
		}
	})

	t.Run("snapshot", func(t *testing.T) {
		source := createBucket(t, handler)
		doJSON(t, handler, http.MethodPut, "/files/"+source+"/k", "abc")

		w, body := doJSON(t, handler, http.MethodPost, "/files/"+source+"?snapshot", "")
		if w.Code != http.StatusOK {
			t.Fatalf("snapshot failed: %d %s", w.Code, w.Body.String())
		}
		if body["id"] == source {
			t.Error("expected a new bucket id")
		}
		if body["size"].(float64) != 3 {
			t.Errorf("expected snapshot size 3, got %v", body["size"])
		}
	})
}

func TestQuotaOverHTTP(t *testing.T) {
	handler := newTestAPI(t)
	bucket := createBucket(t, handler)

	if w, _ := doJSON(t, handler, http.MethodPut, "/files/"+bucket, `{"quota_size": 4}`); w.Code != http.StatusOK {
		t.Fatalf("set quota failed: %d", w.Code)
	}
	if w, _ := doJSON(t, handler, http.MethodPut, "/files/"+bucket+"/a", "abc"); w.Code != http.StatusOK {
		t.Fatalf("put failed: %d", w.Code)
	}

	w, body := doJSON(t, handler, http.MethodPut, "/files/"+bucket+"/b", "xy")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 over quota, got %d", w.Code)
	}
	if msg, _ := body["message"].(string); !strings.Contains(msg, "quota") {
		t.Errorf("expected quota in message, got %q", msg)
	}
}

func TestMultipartOverHTTP(t *testing.T) {
	handler := newTestAPI(t)
	bucket := createBucket(t, handler)
	base := "/files/" + bucket + "/big"

	// Initiate.
	w, body := doJSON(t, handler, http.MethodPost, base+"?uploads&size=11&partSize=6", "")
	if w.Code != http.StatusOK {
		t.Fatalf("init failed: %d %s", w.Code, w.Body.String())
	}
	uploadID, _ := body["id"].(string)
	if uploadID == "" {
		t.Fatal("expected upload id")
	}
	if body["last_part_number"].(float64) != 1 || body["last_part_size"].(float64) != 5 {
		t.Errorf("unexpected layout: %v", body)
	}
	if body["part_size"].(float64) != 6 {
		t.Errorf("expected part_size 6, got %v", body["part_size"])
	}

	// Upload both parts.
	w, _ = doJSON(t, handler, http.MethodPut, fmt.Sprintf("%s?uploadId=%s&partNumber=0", base, uploadID), "AAAAAA")
	if w.Code != http.StatusOK {
		t.Fatalf("part 0 failed: %d %s", w.Code, w.Body.String())
	}
	w, _ = doJSON(t, handler, http.MethodPut, fmt.Sprintf("%s?uploadId=%s&partNumber=1", base, uploadID), "BBBBB")
	if w.Code != http.StatusOK {
		t.Fatalf("part 1 failed: %d %s", w.Code, w.Body.String())
	}

	// List parts.
	req := httptest.NewRequest(http.MethodGet, fmt.Sprintf("%s?uploadId=%s", base, uploadID), nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	var parts []map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &parts); err != nil {
		t.Fatalf("decode parts failed: %v", err)
	}
	if len(parts) != 2 {
		t.Errorf("expected 2 parts, got %d", len(parts))
	}

	// Complete; the merge runs inline without a scheduler.
	w, _ = doJSON(t, handler, http.MethodPost, fmt.Sprintf("%s?uploadId=%s", base, uploadID), "")
	if w.Code != http.StatusOK {
		t.Fatalf("complete failed: %d %s", w.Code, w.Body.String())
	}

	// The merged object reads back whole.
	req = httptest.NewRequest(http.MethodGet, base, nil)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("get merged failed: %d", rec.Code)
	}
	if rec.Body.String() != "AAAAAABBBBB" {
		t.Errorf("merged body mismatch: %q", rec.Body.String())
	}
}

func TestMultipartInvalidChunkSizeOverHTTP(t *testing.T) {
	handler := newTestAPI(t)
	bucket := createBucket(t, handler)
	base := "/files/" + bucket + "/big"

	_, body := doJSON(t, handler, http.MethodPost, base+"?uploads&size=11&partSize=6", "")
	uploadID, _ := body["id"].(string)

	// 5 bytes for a 6-byte part.
	w, _ := doJSON(t, handler, http.MethodPut, fmt.Sprintf("%s?uploadId=%s&partNumber=0", base, uploadID), "AAAAA")
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for invalid chunk size, got %d", w.Code)
	}

	// Abort.
	w, _ = doJSON(t, handler, http.MethodDelete, fmt.Sprintf("%s?uploadId=%s", base, uploadID), "")
	if w.Code != http.StatusNoContent {
		t.Errorf("abort failed: %d", w.Code)
	}

	// The upload is gone.
	w, _ = doJSON(t, handler, http.MethodGet, fmt.Sprintf("%s?uploadId=%s", base, uploadID), "")
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404 after abort, got %d", w.Code)
	}
}

func TestUploadsListing(t *testing.T) {
	handler := newTestAPI(t)
	bucket := createBucket(t, handler)

	doJSON(t, handler, http.MethodPost, "/files/"+bucket+"/one?uploads&size=11&partSize=6", "")
	doJSON(t, handler, http.MethodPost, "/files/"+bucket+"/two?uploads&size=20&partSize=7", "")

	req := httptest.NewRequest(http.MethodGet, "/files/"+bucket+"?uploads", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("list uploads failed: %d", rec.Code)
	}

	var uploads []map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &uploads); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if len(uploads) != 2 {
		t.Errorf("expected 2 uploads, got %d", len(uploads))
	}
}

func TestHealthEndpoints(t *testing.T) {
	handler := newTestAPI(t)

	w, body := doJSON(t, handler, http.MethodGet, "/health", "")
	if w.Code != http.StatusOK {
		t.Fatalf("liveness failed: %d", w.Code)
	}
	if body["service"] != "shelfd" {
		t.Errorf("unexpected service name %v", body["service"])
	}

	w, _ = doJSON(t, handler, http.MethodGet, "/health/ready", "")
	if w.Code != http.StatusOK {
		t.Errorf("readiness failed: %d", w.Code)
	}
}
