package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/EHam1/very-professional-blog/internal/content"
	"github.com/EHam1/very-professional-blog/pkg/types"
)

func newPostsMux(t *testing.T) *http.ServeMux {
	t.Helper()
	dir := t.TempDir()
	posts := map[string]string{
		"first.md":   "---\ntitle: First\ndate: \"2024-01-01\"\n---\nHello.",
		"second.mdx": "---\ntitle: Second\ndate: \"2024-02-01\"\n---\n<ab-test experiment=\"hero\"><ab-variant name=\"A\">A</ab-variant></ab-test>",
	}
	for name, body := range posts {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}

	mux := http.NewServeMux()
	NewPostsHandler(content.NewProvider(dir)).Register(mux, DefaultMiddleware(nil))
	return mux
}

func TestPostsHandler_List(t *testing.T) {
	rec := httptest.NewRecorder()
	newPostsMux(t).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/posts", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp PostsResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Posts) != 2 || resp.Posts[0].Slug != "second" || resp.Posts[1].Slug != "first" {
		t.Errorf("unexpected posts %+v", resp.Posts)
	}
}

func TestPostsHandler_Get(t *testing.T) {
	rec := httptest.NewRecorder()
	newPostsMux(t).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/posts/first", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var item types.ContentItem
	if err := json.Unmarshal(rec.Body.Bytes(), &item); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if item.Title != "First" || item.Body != "Hello." || item.ReadingTime != "1 min read" {
		t.Errorf("unexpected item %+v", item)
	}
}

func TestPostsHandler_NotFound(t *testing.T) {
	rec := httptest.NewRecorder()
	newPostsMux(t).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/posts/missing", nil))

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
	var resp ErrorResponse
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp.Error != "Post not found" {
		t.Errorf("error = %q", resp.Error)
	}
}
