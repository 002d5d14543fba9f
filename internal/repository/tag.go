package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// LockTagByName возвращает ID тега по имени и держит на строке FOR KEY SHARE
// до конца транзакции: очистка тегов не удалит его, пока связь не записана.
// Вне транзакции блокировка снимается сразу после запроса.
func (s *Store) LockTagByName(ctx context.Context, name string) (string, error) {
	var id string
	err := s.db.QueryRow(ctx,
		`SELECT id::text FROM tags WHERE name = $1 FOR KEY SHARE`, name,
	).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", fmt.Errorf("%w: tags.name = %s", ErrNotFound, name)
	}
	if err != nil {
		return "", fmt.Errorf("ошибка поиска тега %s: %w", name, err)
	}
	return id, nil
}

// DeleteOrphanTags удаляет теги, не привязанные ни к гайду, ни к событию,
// ни к вакансии. Теги, заблокированные незавершённой записью, пропускаются
// до следующего запуска. Возвращает количество удалённых тегов.
func (s *Store) DeleteOrphanTags(ctx context.Context) (int64, error) {
	query := `
		DELETE FROM tags
		WHERE id IN (
			SELECT t.id FROM tags t
			WHERE NOT EXISTS (SELECT 1 FROM guide_tags gt WHERE gt.tag_id = t.id)
			  AND NOT EXISTS (SELECT 1 FROM event_tags et WHERE et.tag_id = t.id)
			  AND NOT EXISTS (SELECT 1 FROM career_tags ct WHERE ct.tag_id = t.id)
			FOR UPDATE SKIP LOCKED
		)`

	tag, err := s.db.Exec(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("ошибка очистки тегов: %w", err)
	}
	return tag.RowsAffected(), nil
}
