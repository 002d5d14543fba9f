// events.go — endpoints событий /api/v1/events и записи участников.
package handlers

import (
	"net/http"
	"time"

	"github.com/bigkaa/blockhood/internal/domain/model"
	"github.com/bigkaa/blockhood/internal/service"
)

// eventRequest — тело POST /api/v1/events.
type eventRequest struct {
	Title        string    `json:"title"`
	Slug         string    `json:"slug"`
	Summary      string    `json:"summary"`
	Description  string    `json:"description"`
	StartTime    time.Time `json:"start_time"`
	EndTime      time.Time `json:"end_time"`
	Location     string    `json:"location"`
	LocationType string    `json:"location_type"`
	Platform     string    `json:"platform"`
	Capacity     *int      `json:"capacity"`
	ImageURL     *string   `json:"image_url"`
	TagIDs       []string  `json:"tag_ids"`
}

// eventPatchRequest — тело PATCH /api/v1/events/{ref}.
type eventPatchRequest struct {
	Title        *string    `json:"title"`
	Summary      *string    `json:"summary"`
	Description  *string    `json:"description"`
	StartTime    *time.Time `json:"start_time"`
	EndTime      *time.Time `json:"end_time"`
	Location     *string    `json:"location"`
	LocationType *string    `json:"location_type"`
	Platform     *string    `json:"platform"`
	Capacity     *int       `json:"capacity"`
	ImageURL     *string    `json:"image_url"`
	TagIDs       *[]string  `json:"tag_ids"`
}

// registrationResponse — состояние записи текущего пользователя на событие.
type registrationResponse struct {
	Registered bool         `json:"registered"`
	Event      *model.Event `json:"event,omitempty"`
}

// ListEvents обрабатывает GET /api/v1/events.
func (h *APIHandler) ListEvents(w http.ResponseWriter, r *http.Request) {
	q, err := parseListQuery(r)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	events, err := h.svc.Events.List(r.Context(), q)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newListResponse(events, q))
}

// GetEvent обрабатывает GET /api/v1/events/{ref}.
func (h *APIHandler) GetEvent(w http.ResponseWriter, r *http.Request) {
	e, err := getByRef(r.Context(), pathRef(r), h.svc.Events.GetByID, h.svc.Events.Get)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

// CreateEvent обрабатывает POST /api/v1/events.
func (h *APIHandler) CreateEvent(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	var req eventRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	e, err := h.svc.Events.Create(r.Context(), actor, service.EventInput{
		Title:        req.Title,
		Slug:         req.Slug,
		Summary:      req.Summary,
		Description:  req.Description,
		StartTime:    req.StartTime,
		EndTime:      req.EndTime,
		Location:     req.Location,
		LocationType: req.LocationType,
		Platform:     req.Platform,
		Capacity:     req.Capacity,
		ImageURL:     req.ImageURL,
		TagIDs:       req.TagIDs,
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	w.Header().Set("Location", "/api/v1/events/"+e.Slug)
	writeJSON(w, http.StatusCreated, e)
}

// UpdateEvent обрабатывает PATCH /api/v1/events/{ref}, ref — ID события.
func (h *APIHandler) UpdateEvent(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	var req eventPatchRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	e, err := h.svc.Events.Update(r.Context(), actor, pathRef(r), service.EventPatch{
		Title:        req.Title,
		Summary:      req.Summary,
		Description:  req.Description,
		StartTime:    req.StartTime,
		EndTime:      req.EndTime,
		Location:     req.Location,
		LocationType: req.LocationType,
		Platform:     req.Platform,
		Capacity:     req.Capacity,
		ImageURL:     req.ImageURL,
		TagIDs:       req.TagIDs,
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

// DeleteEvent обрабатывает DELETE /api/v1/events/{ref}, ref — ID события.
func (h *APIHandler) DeleteEvent(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	if err := h.svc.Events.Delete(r.Context(), actor, pathRef(r)); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetRegistration обрабатывает GET /api/v1/events/{ref}/registration.
func (h *APIHandler) GetRegistration(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	registered, err := h.svc.Events.Registered(r.Context(), actor, pathRef(r))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, registrationResponse{Registered: registered})
}

// Register обрабатывает POST /api/v1/events/{ref}/registration.
func (h *APIHandler) Register(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	e, err := h.svc.Events.Register(r.Context(), actor, pathRef(r))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, registrationResponse{Registered: true, Event: e})
}

// Unregister обрабатывает DELETE /api/v1/events/{ref}/registration.
func (h *APIHandler) Unregister(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	e, err := h.svc.Events.Unregister(r.Context(), actor, pathRef(r))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, registrationResponse{Registered: false, Event: e})
}
