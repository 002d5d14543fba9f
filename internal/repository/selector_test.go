package repository

import (
	"errors"
	"strings"
	"testing"
)

func TestParseSelect_Empty(t *testing.T) {
	items, err := parseSelect("  ")
	if err != nil {
		t.Fatalf("parseSelect() ошибка: %v", err)
	}
	if len(items) != 1 || !items[0].star {
		t.Errorf("пустая строка должна означать *, получили %+v", items)
	}
}

func TestParseSelect_Embeds(t *testing.T) {
	items, err := parseSelect("*, user:users!guides_user_id_fkey(id, full_name), tags(id, name)")
	if err != nil {
		t.Fatalf("parseSelect() ошибка: %v", err)
	}
	if len(items) != 3 {
		t.Fatalf("ожидали 3 элемента, получили %d", len(items))
	}
	if !items[0].star {
		t.Error("первый элемент должен быть *")
	}

	user := items[1]
	if user.embed == nil {
		t.Fatal("второй элемент должен быть встраиванием")
	}
	if user.alias != "user" || user.embed.table != "users" || user.embed.hint != "guides_user_id_fkey" {
		t.Errorf("user: alias=%q table=%q hint=%q", user.alias, user.embed.table, user.embed.hint)
	}
	if len(user.embed.items) != 2 || user.embed.items[1].column != "full_name" {
		t.Errorf("user: колонки %+v", user.embed.items)
	}

	if items[2].key() != "tags" {
		t.Errorf("key() = %q, ожидали tags", items[2].key())
	}
}

func TestParseSelect_Nested(t *testing.T) {
	items, err := parseSelect("id,guides(title,user:users(full_name))")
	if err != nil {
		t.Fatalf("parseSelect() ошибка: %v", err)
	}
	inner := items[1].embed.items[1]
	if inner.embed == nil || inner.alias != "user" {
		t.Errorf("вложенное встраивание не разобрано: %+v", inner)
	}
}

func TestParseSelect_ColumnAlias(t *testing.T) {
	items, err := parseSelect("author:user_id")
	if err != nil {
		t.Fatalf("parseSelect() ошибка: %v", err)
	}
	if items[0].column != "user_id" || items[0].key() != "author" {
		t.Errorf("alias колонки: %+v", items[0])
	}
}

func TestParseSelect_SyntaxErrors(t *testing.T) {
	bad := []string{
		"id,",
		"users(",
		"users()",
		"users(id",
		"id name",
		"user_id!fk",
		"a:",
		"id;drop table users",
		"*,)",
	}
	for _, src := range bad {
		if _, err := parseSelect(src); !errors.Is(err, ErrSelectSyntax) {
			t.Errorf("parseSelect(%q) = %v, ожидали ErrSelectSyntax", src, err)
		}
	}
}

func TestSelectSQL_Star(t *testing.T) {
	query, _, err := DefaultSchema.selectSQL(TableTags, "")
	if err != nil {
		t.Fatalf("selectSQL() ошибка: %v", err)
	}
	want := `SELECT t0."id" AS "id", t0."name" AS "name", t0."created_at" AS "created_at" FROM "tags" t0`
	if query != want {
		t.Errorf("selectSQL() =\n%s\nожидали\n%s", query, want)
	}
}

func TestSelectSQL_ManyToOne(t *testing.T) {
	query, _, err := DefaultSchema.selectSQL(TableGuides, "id, user:users!guides_user_id_fkey(id, full_name)")
	if err != nil {
		t.Fatalf("selectSQL() ошибка: %v", err)
	}
	want := `(SELECT json_build_object('id', t1."id", 'full_name', t1."full_name") FROM "users" t1 WHERE t1."id" = t0."user_id") AS "user"`
	if !strings.Contains(query, want) {
		t.Errorf("selectSQL() =\n%s\nне содержит\n%s", query, want)
	}
}

func TestSelectSQL_ManyToMany(t *testing.T) {
	query, _, err := DefaultSchema.selectSQL(TableGuides, "id, tags(id, name)")
	if err != nil {
		t.Fatalf("selectSQL() ошибка: %v", err)
	}
	for _, part := range []string{
		`COALESCE(json_agg(json_build_object('id', t1."id", 'name', t1."name") ORDER BY t1."id"), '[]'::json)`,
		`JOIN "guide_tags" t2 ON t2."tag_id" = t1."id"`,
		`WHERE t2."guide_id" = t0."id"`,
		`AS "tags"`,
	} {
		if !strings.Contains(query, part) {
			t.Errorf("selectSQL() =\n%s\nне содержит\n%s", query, part)
		}
	}
}

func TestSelectSQL_OneToMany(t *testing.T) {
	query, _, err := DefaultSchema.selectSQL(TableUsers, "id, guides(slug)")
	if err != nil {
		t.Fatalf("selectSQL() ошибка: %v", err)
	}
	want := `FROM "guides" t1 WHERE t1."user_id" = t0."id"`
	if !strings.Contains(query, want) {
		t.Errorf("selectSQL() =\n%s\nне содержит\n%s", query, want)
	}
}

func TestSelectSQL_RelationErrors(t *testing.T) {
	// events → users: автор (FK) и участники (event_registrations) — нужна подсказка
	if _, _, err := DefaultSchema.selectSQL(TableEvents, "*, users(id)"); !errors.Is(err, ErrRelation) {
		t.Errorf("неоднозначная связь: %v, ожидали ErrRelation", err)
	}
	if _, _, err := DefaultSchema.selectSQL(TableEvents, "*, attendees:users!event_registrations(id)"); err != nil {
		t.Errorf("связь через подсказку таблицы связей: %v", err)
	}
	if _, _, err := DefaultSchema.selectSQL(TableGuides, "*, users!no_such_fkey(id)"); !errors.Is(err, ErrRelation) {
		t.Errorf("несуществующая подсказка: %v, ожидали ErrRelation", err)
	}
	if _, _, err := DefaultSchema.selectSQL(TableGuides, "*, events(id)"); !errors.Is(err, ErrRelation) {
		t.Errorf("нет связи: %v, ожидали ErrRelation", err)
	}
	if _, _, err := DefaultSchema.selectSQL(TableGuides, "*, planets(id)"); !errors.Is(err, ErrUnknownTable) {
		t.Errorf("неизвестная таблица: %v, ожидали ErrUnknownTable", err)
	}
	if _, _, err := DefaultSchema.selectSQL(TableGuides, "id, password"); !errors.Is(err, ErrUnknownColumn) {
		t.Errorf("неизвестная колонка: %v, ожидали ErrUnknownColumn", err)
	}
	if _, _, err := DefaultSchema.selectSQL(TableGuides, "id, id"); !errors.Is(err, ErrSelectSyntax) {
		t.Errorf("дублирующееся поле: %v, ожидали ErrSelectSyntax", err)
	}
	if _, _, err := DefaultSchema.selectSQL("secrets", ""); !errors.Is(err, ErrUnknownTable) {
		t.Errorf("неизвестная корневая таблица: %v, ожидали ErrUnknownTable", err)
	}
}

func TestBuildList(t *testing.T) {
	s := NewStore(nil, DefaultSchema)

	query, args, err := s.buildList(TableGuides, "id", ListOptions{
		Match:   map[string]any{"user_id": "u1", "level": "advanced", "image_url": nil},
		OrderBy: "created_at",
		Desc:    true,
		Limit:   10,
		Offset:  20,
	})
	if err != nil {
		t.Fatalf("buildList() ошибка: %v", err)
	}
	want := `SELECT t0."id" AS "id" FROM "guides" t0 WHERE t0."image_url" IS NULL AND t0."level" = $1 AND t0."user_id" = $2 ORDER BY t0."created_at" DESC LIMIT $3 OFFSET $4`
	if query != want {
		t.Errorf("buildList() =\n%s\nожидали\n%s", query, want)
	}
	if len(args) != 4 || args[0] != "advanced" || args[1] != "u1" || args[2] != 10 || args[3] != 20 {
		t.Errorf("args = %v", args)
	}

	if _, _, err := s.buildList(TableGuides, "", ListOptions{OrderBy: "rank"}); !errors.Is(err, ErrUnknownColumn) {
		t.Errorf("сортировка по неизвестной колонке: %v, ожидали ErrUnknownColumn", err)
	}
}

func TestNewSchema_Validation(t *testing.T) {
	if _, err := NewSchema(Table{Name: "a", PrimaryKey: "id", Columns: []string{"name"}}); err == nil {
		t.Error("ожидали ошибку: первичный ключ вне колонок")
	}
	if _, err := NewSchema(Table{
		Name: "a", Columns: []string{"b_id"},
		ForeignKeys: []ForeignKey{{Name: "a_b_id_fkey", Column: "b_id", RefTable: "b", RefColumn: "id"}},
	}); err == nil {
		t.Error("ожидали ошибку: FK на неизвестную таблицу")
	}
	if _, err := NewSchema(Table{Name: "a"}, Table{Name: "a"}); err == nil {
		t.Error("ожидали ошибку: таблица описана дважды")
	}
}
