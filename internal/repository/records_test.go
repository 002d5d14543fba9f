package repository_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/bigkaa/blockhood/internal/domain/model"
	"github.com/bigkaa/blockhood/internal/repository"
	"github.com/bigkaa/blockhood/internal/testutil/pgtest"
)

// createUser создаёт профиль пользователя и возвращает его ID.
func createUser(t *testing.T, s *repository.Store, name string) string {
	t.Helper()
	id := uuid.New().String()
	got, err := s.Create(context.Background(), repository.TableUsers, repository.Values{
		"id": id, "email": name + "@blockhood.test", "full_name": name,
	})
	if err != nil {
		t.Fatalf("Create(users) ошибка: %v", err)
	}
	if got != id {
		t.Fatalf("Create(users) вернул %q, хотели %q", got, id)
	}
	return id
}

func TestStoreCRUD(t *testing.T) {
	pool := pgtest.Start(t)
	ctx := context.Background()
	s := repository.NewStore(pool, repository.DefaultSchema)

	userID := createUser(t, s, "ada")

	// Create
	guideID, err := s.Create(ctx, repository.TableGuides, repository.Values{
		"title": "Intro to Go", "slug": "intro-to-go", "summary": "s", "content": "c",
		"level": model.LevelBeginner, "duration": "10 min", "user_id": userID,
	})
	if err != nil {
		t.Fatalf("Create(guides) ошибка: %v", err)
	}
	if _, err := uuid.Parse(guideID); err != nil {
		t.Errorf("Create вернул не UUID: %q", guideID)
	}

	// GetByID
	g, err := repository.GetByID[model.Guide](ctx, s, repository.TableGuides, guideID, "")
	if err != nil {
		t.Fatalf("GetByID() ошибка: %v", err)
	}
	if g.Slug != "intro-to-go" || g.UserID != userID {
		t.Errorf("GetByID: slug=%q user_id=%q", g.Slug, g.UserID)
	}

	// GetBySlug
	g2, err := repository.GetBySlug[model.Guide](ctx, s, repository.TableGuides, "slug", "intro-to-go", "")
	if err != nil {
		t.Fatalf("GetBySlug() ошибка: %v", err)
	}
	if g2.ID != guideID {
		t.Errorf("GetBySlug: ID = %q, хотели %q", g2.ID, guideID)
	}

	// Дубликат slug
	_, err = s.Create(ctx, repository.TableGuides, repository.Values{
		"title": "Dup", "slug": "intro-to-go", "user_id": userID,
	})
	if !errors.Is(err, repository.ErrConflict) {
		t.Errorf("дубликат slug: ожидали ErrConflict, получили %v", err)
	}

	// Ссылка на несуществующего автора
	_, err = s.Create(ctx, repository.TableGuides, repository.Values{
		"title": "Orphan", "slug": "orphan", "user_id": uuid.New().String(),
	})
	if !errors.Is(err, repository.ErrInvalidReference) {
		t.Errorf("несуществующий автор: ожидали ErrInvalidReference, получили %v", err)
	}

	// Update
	before := g.UpdatedAt
	time.Sleep(10 * time.Millisecond)
	if err := s.Update(ctx, repository.TableGuides, guideID, repository.Values{"title": "Intro to Go, 2nd ed."}); err != nil {
		t.Fatalf("Update() ошибка: %v", err)
	}
	g3, _ := repository.GetByID[model.Guide](ctx, s, repository.TableGuides, guideID, "")
	if g3.Title != "Intro to Go, 2nd ed." {
		t.Errorf("после Update: Title = %q", g3.Title)
	}
	if !g3.UpdatedAt.After(before) {
		t.Errorf("updated_at не обновлён: %v → %v", before, g3.UpdatedAt)
	}
	if err := s.Update(ctx, repository.TableGuides, uuid.New().String(), repository.Values{"title": "x"}); !errors.Is(err, repository.ErrNotFound) {
		t.Errorf("Update несуществующей: ожидали ErrNotFound, получили %v", err)
	}

	// Remove
	if err := s.Remove(ctx, repository.TableGuides, guideID); err != nil {
		t.Fatalf("Remove() ошибка: %v", err)
	}
	if _, err := repository.GetByID[model.Guide](ctx, s, repository.TableGuides, guideID, ""); !errors.Is(err, repository.ErrNotFound) {
		t.Errorf("после Remove ожидали ErrNotFound, получили %v", err)
	}
	if err := s.Remove(ctx, repository.TableGuides, guideID); !errors.Is(err, repository.ErrNotFound) {
		t.Errorf("повторный Remove: ожидали ErrNotFound, получили %v", err)
	}
	if _, err := repository.GetByID[model.Guide](ctx, s, repository.TableGuides, "not-a-uuid", ""); !errors.Is(err, repository.ErrNotFound) {
		t.Errorf("GetByID(не UUID): ожидали ErrNotFound, получили %v", err)
	}
}

func TestGetAll_WithRelations(t *testing.T) {
	pool := pgtest.Start(t)
	ctx := context.Background()
	s := repository.NewStore(pool, repository.DefaultSchema)

	userID := createUser(t, s, "grace")
	guideID, err := s.Create(ctx, repository.TableGuides, repository.Values{
		"title": "Tags", "slug": "tags", "user_id": userID,
	})
	if err != nil {
		t.Fatalf("Create(guides) ошибка: %v", err)
	}
	for _, name := range []string{"go", "sql"} {
		tagID, err := s.Create(ctx, repository.TableTags, repository.Values{"name": name})
		if err != nil {
			t.Fatalf("Create(tags) ошибка: %v", err)
		}
		if _, err := s.Create(ctx, repository.TableGuideTags, repository.Values{"guide_id": guideID, "tag_id": tagID}); err != nil {
			t.Fatalf("Create(guide_tags) ошибка: %v", err)
		}
	}

	guides, err := repository.GetAll[model.Guide](ctx, s, repository.TableGuides,
		"*, user:users!guides_user_id_fkey(id, full_name), tags(id, name)")
	if err != nil {
		t.Fatalf("GetAll() ошибка: %v", err)
	}
	if len(guides) != 1 {
		t.Fatalf("GetAll() вернул %d записей, хотели 1", len(guides))
	}
	g := guides[0]
	if g.User == nil || g.User.FullName != "grace" || g.User.ID != userID {
		t.Errorf("автор не встроен: %+v", g.User)
	}
	if len(g.Tags) != 2 {
		t.Errorf("теги: %+v, хотели 2", g.Tags)
	}

	// Пустая таблица — пустой срез, не nil
	events, err := repository.GetAll[model.Event](ctx, s, repository.TableEvents, "")
	if err != nil {
		t.Fatalf("GetAll(events) ошибка: %v", err)
	}
	if events == nil || len(events) != 0 {
		t.Errorf("GetAll(events) = %v, хотели пустой срез", events)
	}

	// Один-ко-многим с вложенным встраиванием
	type userWithGuides struct {
		ID     string        `db:"id"`
		Guides []model.Guide `db:"guides"`
	}
	u, err := repository.GetByID[userWithGuides](ctx, s, repository.TableUsers, userID, "id, guides(id, slug, tags(name))")
	if err != nil {
		t.Fatalf("GetByID(users) ошибка: %v", err)
	}
	if len(u.Guides) != 1 || u.Guides[0].Slug != "tags" || len(u.Guides[0].Tags) != 2 {
		t.Errorf("вложенное встраивание: %+v", u.Guides)
	}

	// RemoveWhere на таблице связей
	n, err := s.RemoveWhere(ctx, repository.TableGuideTags, repository.Values{"guide_id": guideID})
	if err != nil {
		t.Fatalf("RemoveWhere() ошибка: %v", err)
	}
	if n != 2 {
		t.Errorf("RemoveWhere() удалил %d, хотели 2", n)
	}

	deleted, err := s.DeleteOrphanTags(ctx)
	if err != nil {
		t.Fatalf("DeleteOrphanTags() ошибка: %v", err)
	}
	if deleted != 2 {
		t.Errorf("DeleteOrphanTags() = %d, хотели 2", deleted)
	}
}

func TestGetBySlug_MultipleRows(t *testing.T) {
	pool := pgtest.Start(t)
	ctx := context.Background()
	s := repository.NewStore(pool, repository.DefaultSchema)

	userID := createUser(t, s, "linus")
	for _, slug := range []string{"a", "b"} {
		if _, err := s.Create(ctx, repository.TableGuides, repository.Values{
			"title": "same", "slug": slug, "user_id": userID,
		}); err != nil {
			t.Fatalf("Create(guides) ошибка: %v", err)
		}
	}

	_, err := repository.GetBySlug[model.Guide](ctx, s, repository.TableGuides, "title", "same", "")
	if !errors.Is(err, repository.ErrMultipleRows) {
		t.Errorf("ожидали ErrMultipleRows, получили %v", err)
	}
	_, err = repository.GetBySlug[model.Guide](ctx, s, repository.TableGuides, "title", "missing", "")
	if !errors.Is(err, repository.ErrNotFound) {
		t.Errorf("ожидали ErrNotFound, получили %v", err)
	}
}

func TestAdjustAttendees(t *testing.T) {
	pool := pgtest.Start(t)
	ctx := context.Background()
	s := repository.NewStore(pool, repository.DefaultSchema)

	userID := createUser(t, s, "barbara")
	start := time.Now().Add(24 * time.Hour)
	eventID, err := s.Create(ctx, repository.TableEvents, repository.Values{
		"title": "Meetup", "slug": "meetup", "start_time": start, "end_time": start.Add(time.Hour),
		"capacity": 1, "user_id": userID,
	})
	if err != nil {
		t.Fatalf("Create(events) ошибка: %v", err)
	}

	if n, err := s.AdjustAttendees(ctx, eventID, 1); err != nil || n != 1 {
		t.Fatalf("AdjustAttendees(+1) = %d, %v", n, err)
	}
	if _, err := s.AdjustAttendees(ctx, eventID, 1); !errors.Is(err, repository.ErrCapacityReached) {
		t.Errorf("сверх capacity: ожидали ErrCapacityReached, получили %v", err)
	}
	if n, err := s.AdjustAttendees(ctx, eventID, -1); err != nil || n != 0 {
		t.Errorf("AdjustAttendees(-1) = %d, %v", n, err)
	}
	if n, err := s.AdjustAttendees(ctx, eventID, -1); err != nil || n != 0 {
		t.Errorf("счётчик ушёл ниже нуля: %d, %v", n, err)
	}
	if _, err := s.AdjustAttendees(ctx, uuid.New().String(), 1); !errors.Is(err, repository.ErrNotFound) {
		t.Errorf("несуществующее событие: ожидали ErrNotFound, получили %v", err)
	}
}

func TestSavepoint_KeepsOuterTx(t *testing.T) {
	pool := pgtest.Start(t)
	ctx := context.Background()
	runner := repository.NewTxRunner(pool)
	base := repository.NewStore(pool, repository.DefaultSchema)

	if _, err := base.Create(ctx, repository.TableTags, repository.Values{"name": "go"}); err != nil {
		t.Fatalf("Create(tags) ошибка: %v", err)
	}

	err := runner.RunInTx(ctx, func(tx pgx.Tx) error {
		s := base.WithTx(tx)
		err := s.Savepoint(ctx, func(st *repository.Store) error {
			_, err := st.Create(ctx, repository.TableTags, repository.Values{"name": "go"})
			return err
		})
		if !errors.Is(err, repository.ErrConflict) {
			t.Errorf("ожидали ErrConflict внутри savepoint, получили %v", err)
		}
		// Транзакция после отката savepoint остаётся рабочей
		_, err = repository.GetBySlug[model.Tag](ctx, s, repository.TableTags, "name", "go", "")
		return err
	})
	if err != nil {
		t.Fatalf("RunInTx() ошибка: %v", err)
	}
}
