package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	openapi_types "github.com/oapi-codegen/runtime/types"
)

// meResponse — профиль текущего пользователя.
type meResponse struct {
	ID        string              `json:"id"`
	Email     openapi_types.Email `json:"email"`
	FullName  string              `json:"full_name"`
	AvatarURL *string             `json:"avatar_url"`
	Moderator bool                `json:"moderator"`
	CreatedAt time.Time           `json:"created_at"`
}

// GetMe обрабатывает GET /api/v1/me.
// При первом обращении профиль создаётся из claims токена.
func (h *APIHandler) GetMe(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	u, err := h.svc.Users.Ensure(r.Context(), actor)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, meResponse{
		ID:        u.ID,
		Email:     openapi_types.Email(u.Email),
		FullName:  u.FullName,
		AvatarURL: u.AvatarURL,
		Moderator: actor.Moderator,
		CreatedAt: u.CreatedAt,
	})
}

// userProfileResponse — публичный профиль автора, без email.
type userProfileResponse struct {
	ID        string    `json:"id"`
	FullName  string    `json:"full_name"`
	AvatarURL *string   `json:"avatar_url"`
	CreatedAt time.Time `json:"created_at"`
}

// GetUser обрабатывает GET /api/v1/users/{id} — страница автора.
func (h *APIHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	u, err := h.svc.Users.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, userProfileResponse{
		ID:        u.ID,
		FullName:  u.FullName,
		AvatarURL: u.AvatarURL,
		CreatedAt: u.CreatedAt,
	})
}
