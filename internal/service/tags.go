// tags.go — разбор тегов, find-or-create и привязка к публикациям.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/bigkaa/blockhood/internal/domain/model"
	"github.com/bigkaa/blockhood/internal/repository"
)

// Ограничения тегов.
const (
	MaxTags      = 20
	MaxTagLength = 50
)

// ParseTags разбирает строку тегов через запятую: trim, нижний регистр,
// пустые отбрасываются, дубликаты удаляются с сохранением первого вхождения.
func ParseTags(raw string) ([]string, error) {
	var names []string
	seen := make(map[string]bool)
	for _, part := range strings.Split(raw, ",") {
		name := strings.ToLower(strings.TrimSpace(part))
		if name == "" || seen[name] {
			continue
		}
		if utf8.RuneCountInString(name) > MaxTagLength {
			return nil, validationf("тег %q длиннее %d символов", name, MaxTagLength)
		}
		seen[name] = true
		names = append(names, name)
	}
	if len(names) > MaxTags {
		return nil, validationf("не более %d тегов, передано %d", MaxTags, len(names))
	}
	return names, nil
}

// ensureTags находит теги по имени и создаёт отсутствующие.
// Найденный тег блокируется до конца транзакции (см. LockTagByName).
// Вставка идёт в savepoint: при гонке (unique violation) тег перечитывается.
func ensureTags(ctx context.Context, st *repository.Store, names []string) ([]model.Tag, error) {
	tags := make([]model.Tag, 0, len(names))
	for _, name := range names {
		id, err := st.LockTagByName(ctx, name)
		if err == nil {
			tags = append(tags, model.Tag{ID: id, Name: name})
			continue
		}
		if !errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("поиск тега %q: %w", name, err)
		}

		err = st.Savepoint(ctx, func(sp *repository.Store) error {
			var cerr error
			id, cerr = sp.Create(ctx, repository.TableTags, repository.Values{"name": name})
			return cerr
		})
		switch {
		case err == nil:
			tags = append(tags, model.Tag{ID: id, Name: name})
		case errors.Is(err, repository.ErrConflict):
			id, err = st.LockTagByName(ctx, name)
			if err != nil {
				return nil, fmt.Errorf("повторный поиск тега %q: %w", name, err)
			}
			tags = append(tags, model.Tag{ID: id, Name: name})
		default:
			return nil, fmt.Errorf("создание тега %q: %w", name, err)
		}
	}
	return tags, nil
}

// tagLink — таблица связей публикаций одного типа с тегами.
type tagLink struct {
	table  string
	column string
}

var (
	guideTagLink  = tagLink{table: repository.TableGuideTags, column: "guide_id"}
	eventTagLink  = tagLink{table: repository.TableEventTags, column: "event_id"}
	careerTagLink = tagLink{table: repository.TableCareerTags, column: "career_id"}
)

// replace заменяет набор тегов публикации parentID на tagIDs.
func (l tagLink) replace(ctx context.Context, st *repository.Store, parentID string, tagIDs []string) error {
	if _, err := st.RemoveWhere(ctx, l.table, repository.Values{l.column: parentID}); err != nil {
		return fmt.Errorf("отвязка тегов: %w", err)
	}
	for _, tagID := range tagIDs {
		if _, err := st.Create(ctx, l.table, repository.Values{l.column: parentID, "tag_id": tagID}); err != nil {
			return mapRepoError(err, "тег "+tagID)
		}
	}
	return nil
}

func tagIDs(tags []model.Tag) []string {
	ids := make([]string, len(tags))
	for i, t := range tags {
		ids[i] = t.ID
	}
	return ids
}

// TagService — чтение и обслуживание справочника тегов.
type TagService struct {
	store  *repository.Store
	logger *slog.Logger
}

// NewTagService создаёт сервис тегов.
func NewTagService(store *repository.Store, logger *slog.Logger) *TagService {
	return &TagService{
		store:  store,
		logger: logger.With(slog.String("component", "tag_service")),
	}
}

// List возвращает все теги, отсортированные по имени.
func (s *TagService) List(ctx context.Context) ([]model.Tag, error) {
	return repository.List[model.Tag](ctx, s.store, repository.TableTags, "", repository.ListOptions{OrderBy: "name"})
}

// CleanupOrphans удаляет теги без привязок к публикациям.
func (s *TagService) CleanupOrphans(ctx context.Context) (int64, error) {
	n, err := s.store.DeleteOrphanTags(ctx)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.logger.Info("Удалены теги без привязок", slog.Int64("count", n))
	}
	return n, nil
}
