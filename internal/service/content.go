// content.go — общие операции над публикациями (гайды, события, вакансии).
package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"github.com/google/uuid"

	"github.com/bigkaa/blockhood/internal/repository"
)

// Ограничения выборки списков.
const (
	DefaultListLimit = 50
	MaxListLimit     = 100
)

// ListQuery — параметры списка публикаций (новые первыми).
type ListQuery struct {
	// AuthorID — только публикации автора (опционально)
	AuthorID string
	Limit    int
	Offset   int
}

// normalize проверяет параметры и подставляет значения по умолчанию.
func (q ListQuery) normalize() (ListQuery, error) {
	if q.AuthorID != "" {
		if _, err := uuid.Parse(q.AuthorID); err != nil {
			return q, validationf("author должен быть UUID")
		}
	}
	switch {
	case q.Limit == 0:
		q.Limit = DefaultListLimit
	case q.Limit < 0 || q.Limit > MaxListLimit:
		return q, validationf("limit должен быть в диапазоне 1-%d", MaxListLimit)
	}
	if q.Offset < 0 {
		return q, validationf("offset не может быть отрицательным")
	}
	return q, nil
}

// contentKind описывает тип публикации.
type contentKind struct {
	// name — название для сообщений об ошибках
	name  string
	table string
	// relations — строка выборки: все колонки, автор и теги
	relations string
	tags      tagLink
}

var (
	guideKind = contentKind{
		name:      "гайд",
		table:     repository.TableGuides,
		relations: "*, user:users!guides_user_id_fkey(id, full_name, avatar_url), tags(id, name)",
		tags:      guideTagLink,
	}
	eventKind = contentKind{
		name:      "событие",
		table:     repository.TableEvents,
		relations: "*, user:users!events_user_id_fkey(id, full_name, avatar_url), tags(id, name)",
		tags:      eventTagLink,
	}
	careerKind = contentKind{
		name:      "вакансия",
		table:     repository.TableCareers,
		relations: "*, user:users!careers_user_id_fkey(id, full_name, avatar_url), tags(id, name)",
		tags:      careerTagLink,
	}
)

// listContent возвращает публикации, новые первыми, с автором и тегами.
func listContent[T any](ctx context.Context, st *repository.Store, k contentKind, q ListQuery) ([]T, error) {
	q, err := q.normalize()
	if err != nil {
		return nil, err
	}
	opts := repository.ListOptions{OrderBy: "created_at", Desc: true, Limit: q.Limit, Offset: q.Offset}
	if q.AuthorID != "" {
		opts.Match = map[string]any{"user_id": q.AuthorID}
	}
	return repository.List[T](ctx, st, k.table, k.relations, opts)
}

// getContentBySlug возвращает публикацию по slug.
func getContentBySlug[T any](ctx context.Context, st *repository.Store, k contentKind, slug string) (*T, error) {
	item, err := repository.GetBySlug[T](ctx, st, k.table, "slug", slug, k.relations)
	if err != nil {
		return nil, mapRepoError(err, fmt.Sprintf("%s %q", k.name, slug))
	}
	return item, nil
}

// getContentByID возвращает публикацию по ID.
func getContentByID[T any](ctx context.Context, st *repository.Store, k contentKind, id string) (*T, error) {
	item, err := repository.GetByID[T](ctx, st, k.table, id, k.relations)
	if err != nil {
		return nil, mapRepoError(err, fmt.Sprintf("%s %s", k.name, id))
	}
	return item, nil
}

// owner — автор и slug публикации.
type owner struct {
	UserID string `db:"user_id"`
	Slug   string `db:"slug"`
}

// authorize проверяет, что actor может изменять публикацию id.
// Возвращает автора и slug (для инвалидации кэша).
func authorize(ctx context.Context, st *repository.Store, k contentKind, id string, actor Actor) (*owner, error) {
	o, err := repository.GetByID[owner](ctx, st, k.table, id, "user_id, slug")
	if err != nil {
		return nil, mapRepoError(err, fmt.Sprintf("%s %s", k.name, id))
	}
	if !actor.canModify(o.UserID) {
		return nil, fmt.Errorf("%w: изменять %s может только автор", ErrForbidden, k.name)
	}
	return o, nil
}

// ensureSlugFree проверяет, что slug ещё не занят.
func ensureSlugFree(ctx context.Context, st *repository.Store, k contentKind, slug string) error {
	_, err := repository.GetBySlug[owner](ctx, st, k.table, "slug", slug, "user_id, slug")
	switch {
	case err == nil:
		return fmt.Errorf("%w: slug %q уже используется", ErrConflict, slug)
	case errors.Is(err, repository.ErrNotFound):
		return nil
	default:
		return fmt.Errorf("проверка slug: %w", err)
	}
}

// resolveSlug берёт явный slug или строит его из заголовка.
func resolveSlug(explicit, title string) (string, error) {
	if explicit != "" {
		return Slugify(explicit)
	}
	return Slugify(title)
}

// deleteContent удаляет публикацию после проверки прав.
func deleteContent(ctx context.Context, st *repository.Store, k contentKind, id string, actor Actor) (*owner, error) {
	o, err := authorize(ctx, st, k, id, actor)
	if err != nil {
		return nil, err
	}
	if err := st.Remove(ctx, k.table, id); err != nil {
		return nil, mapRepoError(err, fmt.Sprintf("%s %s", k.name, id))
	}
	return o, nil
}

// validateURL проверяет необязательный http(s) URL.
func validateURL(field string, raw *string) error {
	if raw == nil || *raw == "" {
		return nil
	}
	u, err := url.ParseRequestURI(*raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return validationf("%s: ожидается http(s) URL", field)
	}
	return nil
}
