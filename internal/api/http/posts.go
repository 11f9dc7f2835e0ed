package http

import (
	"errors"
	"net/http"

	"github.com/EHam1/very-professional-blog/internal/content"
	"github.com/EHam1/very-professional-blog/pkg/types"
)

// PostsResponse is the body of GET /api/posts.
type PostsResponse struct {
	Posts []types.ContentMetadata `json:"posts"`
}

// PostsHandler serves the content API.
type PostsHandler struct {
	provider *content.Provider
}

// NewPostsHandler creates a content API handler over provider.
func NewPostsHandler(provider *content.Provider) *PostsHandler {
	return &PostsHandler{provider: provider}
}

// Register adds the content routes to mux, wrapped in middleware.
func (h *PostsHandler) Register(mux *http.ServeMux, middleware func(http.Handler) http.Handler) {
	mux.Handle("GET /api/posts", middleware(http.HandlerFunc(h.List)))
	mux.Handle("GET /api/posts/{slug}", middleware(http.HandlerFunc(h.Get)))
}

// List handles GET /api/posts: all post metadata, newest first.
func (h *PostsHandler) List(w http.ResponseWriter, r *http.Request) {
	posts := h.provider.All()
	if posts == nil {
		posts = []types.ContentMetadata{}
	}
	writeJSON(w, http.StatusOK, PostsResponse{Posts: posts})
}

// Get handles GET /api/posts/{slug}.
func (h *PostsHandler) Get(w http.ResponseWriter, r *http.Request) {
	item, err := h.provider.Get(r.PathValue("slug"))
	if err != nil {
		if errors.Is(err, content.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Post not found", "", GetRequestID(r.Context()))
			return
		}
		writeError(w, http.StatusInternalServerError, "Internal server error", "", GetRequestID(r.Context()))
		return
	}
	writeJSON(w, http.StatusOK, item)
}
