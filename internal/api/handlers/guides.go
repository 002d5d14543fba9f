// guides.go — endpoints гайдов /api/v1/guides.
package handlers

import (
	"net/http"
	"strings"

	"github.com/bigkaa/blockhood/internal/service"
)

// guideRequest — тело POST /api/v1/guides.
type guideRequest struct {
	Title    string   `json:"title"`
	Slug     string   `json:"slug"`
	Summary  string   `json:"summary"`
	Content  string   `json:"content"`
	Level    string   `json:"level"`
	Duration string   `json:"duration"`
	ImageURL *string  `json:"image_url"`
	Tags     []string `json:"tags"`
}

// guidePatchRequest — тело PATCH /api/v1/guides/{ref}.
// Отсутствующее поле не меняется, пустая строка очищает image_url.
type guidePatchRequest struct {
	Title    *string   `json:"title"`
	Summary  *string   `json:"summary"`
	Content  *string   `json:"content"`
	Level    *string   `json:"level"`
	Duration *string   `json:"duration"`
	ImageURL *string   `json:"image_url"`
	Tags     *[]string `json:"tags"`
}

// joinTags собирает теги в строку через запятую для service.ParseTags.
func joinTags(tags []string) string {
	return strings.Join(tags, ",")
}

// ListGuides обрабатывает GET /api/v1/guides.
func (h *APIHandler) ListGuides(w http.ResponseWriter, r *http.Request) {
	q, err := parseListQuery(r)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	guides, err := h.svc.Guides.List(r.Context(), q)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newListResponse(guides, q))
}

// GetGuide обрабатывает GET /api/v1/guides/{ref}.
func (h *APIHandler) GetGuide(w http.ResponseWriter, r *http.Request) {
	g, err := getByRef(r.Context(), pathRef(r), h.svc.Guides.GetByID, h.svc.Guides.Get)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, g)
}

// CreateGuide обрабатывает POST /api/v1/guides.
func (h *APIHandler) CreateGuide(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	var req guideRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	g, err := h.svc.Guides.Submit(r.Context(), actor, service.GuideInput{
		Title:    req.Title,
		Slug:     req.Slug,
		Summary:  req.Summary,
		Content:  req.Content,
		Level:    req.Level,
		Duration: req.Duration,
		ImageURL: req.ImageURL,
		Tags:     joinTags(req.Tags),
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	w.Header().Set("Location", "/api/v1/guides/"+g.Slug)
	writeJSON(w, http.StatusCreated, g)
}

// UpdateGuide обрабатывает PATCH /api/v1/guides/{ref}, ref — ID гайда.
func (h *APIHandler) UpdateGuide(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	var req guidePatchRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	patch := service.GuidePatch{
		Title:    req.Title,
		Summary:  req.Summary,
		Content:  req.Content,
		Level:    req.Level,
		Duration: req.Duration,
		ImageURL: req.ImageURL,
	}
	if req.Tags != nil {
		tags := joinTags(*req.Tags)
		patch.Tags = &tags
	}

	g, err := h.svc.Guides.Update(r.Context(), actor, pathRef(r), patch)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, g)
}

// DeleteGuide обрабатывает DELETE /api/v1/guides/{ref}, ref — ID гайда.
func (h *APIHandler) DeleteGuide(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	if err := h.svc.Guides.Delete(r.Context(), actor, pathRef(r)); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
