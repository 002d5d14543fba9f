// handler.go — APIHandler: HTTP-обработчики Blockhood API поверх сервисного слоя.
// Здесь же общие функции: JSON-ответы, разбор тела, перевод ошибок сервисов в HTTP.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	apierrors "github.com/bigkaa/blockhood/internal/api/errors"
	"github.com/bigkaa/blockhood/internal/api/middleware"
	"github.com/bigkaa/blockhood/internal/service"
)

// maxJSONBody — максимальный размер JSON-тела запроса.
const maxJSONBody = 1 << 20

// Services — сервисы, которые использует API.
type Services struct {
	Users   *service.UserService
	Guides  *service.GuideService
	Events  *service.EventService
	Careers *service.CareerService
	Tags    *service.TagService
	Uploads *service.UploadService
}

// APIHandler — обработчик бизнес-endpoints /api/v1 и /uploads.
type APIHandler struct {
	svc    Services
	logger *slog.Logger
}

// NewAPIHandler создаёт обработчик API.
func NewAPIHandler(svc Services, logger *slog.Logger) *APIHandler {
	return &APIHandler{
		svc:    svc,
		logger: logger.With(slog.String("component", "api_handler")),
	}
}

// listResponse — страница списка.
type listResponse[T any] struct {
	Items  []T `json:"items"`
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}

func newListResponse[T any](items []T, q service.ListQuery) listResponse[T] {
	if items == nil {
		items = []T{}
	}
	limit := q.Limit
	if limit == 0 {
		limit = service.DefaultListLimit
	}
	return listResponse[T]{Items: items, Limit: limit, Offset: q.Offset}
}

// writeJSON записывает JSON-ответ с указанным статусом.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// decodeJSON читает JSON-тело в dst. Неизвестные поля — ошибка.
// При ошибке ответ уже записан, возвращается false.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			apierrors.PayloadTooLarge(w, fmt.Sprintf("Тело запроса больше %d байт", maxErr.Limit))
			return false
		}
		apierrors.ValidationError(w, fmt.Sprintf("Некорректный JSON: %s", err.Error()))
		return false
	}
	if dec.More() {
		apierrors.ValidationError(w, "Некорректный JSON: лишние данные после объекта")
		return false
	}
	return true
}

// writeServiceError переводит ошибку сервисного слоя в HTTP-ответ.
// Неизвестные ошибки логируются, клиенту возвращается 500 без деталей.
func (h *APIHandler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var maxErr *http.MaxBytesError
	switch {
	case errors.Is(err, service.ErrValidation):
		apierrors.ValidationError(w, err.Error())
	case errors.Is(err, service.ErrNotFound):
		apierrors.NotFound(w, err.Error())
	case errors.Is(err, service.ErrForbidden):
		apierrors.Forbidden(w, err.Error())
	case errors.Is(err, service.ErrConflict), errors.Is(err, service.ErrCapacityReached):
		apierrors.Conflict(w, err.Error())
	case errors.Is(err, service.ErrPayloadTooLarge), errors.As(err, &maxErr):
		apierrors.PayloadTooLarge(w, err.Error())
	default:
		h.logger.Error("Ошибка обработки запроса",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
		apierrors.InternalError(w, "Внутренняя ошибка сервера")
	}
}

// requireActor возвращает аутентифицированного пользователя.
// Маршрут должен быть защищён JWTAuth.Middleware.
func requireActor(w http.ResponseWriter, r *http.Request) (service.Actor, bool) {
	actor, ok := middleware.ActorFromContext(r.Context())
	if !ok {
		apierrors.Unauthorized(w, "Требуется аутентификация")
		return service.Actor{}, false
	}
	return actor, true
}

// pathRef — параметр {ref}: slug для чтения, ID для изменения.
func pathRef(r *http.Request) string {
	return chi.URLParam(r, "ref")
}

// isUUID проверяет, что ref выглядит как ID записи.
func isUUID(ref string) bool {
	_, err := uuid.Parse(ref)
	return err == nil
}

// getByRef читает публикацию по {ref}: UUID ищется сначала как ID,
// затем как slug; остальное — как slug.
func getByRef[T any](
	ctx context.Context,
	ref string,
	byID func(context.Context, string) (*T, error),
	bySlug func(context.Context, string) (*T, error),
) (*T, error) {
	if isUUID(ref) {
		item, err := byID(ctx, ref)
		if !errors.Is(err, service.ErrNotFound) {
			return item, err
		}
	}
	return bySlug(ctx, ref)
}

// parseListQuery разбирает ?author=&limit=&offset=.
// Диапазоны проверяет сервисный слой.
func parseListQuery(r *http.Request) (service.ListQuery, error) {
	q := service.ListQuery{AuthorID: r.URL.Query().Get("author")}

	for _, p := range []struct {
		name string
		dst  *int
	}{
		{"limit", &q.Limit},
		{"offset", &q.Offset},
	} {
		raw := r.URL.Query().Get(p.name)
		if raw == "" {
			continue
		}
		v, err := strconv.Atoi(raw)
		if err != nil {
			return q, fmt.Errorf("%w: параметр %s должен быть целым числом", service.ErrValidation, p.name)
		}
		*p.dst = v
	}
	return q, nil
}
