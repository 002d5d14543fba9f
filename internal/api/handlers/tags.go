package handlers

import (
	"net/http"

	"github.com/bigkaa/blockhood/internal/domain/model"
)

// tagsResponse — ответ GET /api/v1/tags.
type tagsResponse struct {
	Items []model.Tag `json:"items"`
}

// ListTags обрабатывает GET /api/v1/tags (все теги по имени).
func (h *APIHandler) ListTags(w http.ResponseWriter, r *http.Request) {
	tags, err := h.svc.Tags.List(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	if tags == nil {
		tags = []model.Tag{}
	}
	writeJSON(w, http.StatusOK, tagsResponse{Items: tags})
}
