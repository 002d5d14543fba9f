package repository

import (
	"fmt"
	"slices"

	"github.com/google/uuid"
)

// ForeignKey — внешний ключ таблицы.
type ForeignKey struct {
	// Name — имя ограничения (например, guides_user_id_fkey)
	Name string
	// Column — колонка этой таблицы
	Column string
	// RefTable — таблица, на которую ссылается ключ
	RefTable string
	// RefColumn — колонка целевой таблицы
	RefColumn string
}

// Table — описание таблицы: колонки, первичный ключ, внешние ключи.
type Table struct {
	Name string
	// PrimaryKey — одиночный первичный ключ; пусто для таблиц связей
	// с составным ключом
	PrimaryKey string
	// UUIDKey — первичный ключ имеет тип uuid; значения, не являющиеся
	// UUID, заведомо не найдутся
	UUIDKey     bool
	Columns     []string
	ForeignKeys []ForeignKey
}

// validKey проверяет, может ли id быть значением первичного ключа.
func (t *Table) validKey(id string) bool {
	if !t.UUIDKey {
		return true
	}
	_, err := uuid.Parse(id)
	return err == nil
}

// HasColumn проверяет наличие колонки в таблице.
func (t *Table) HasColumn(name string) bool {
	return slices.Contains(t.Columns, name)
}

// Schema — реестр таблиц, доступных через Store.
type Schema struct {
	tables map[string]*Table
}

// NewSchema создаёт схему и проверяет согласованность внешних ключей.
func NewSchema(tables ...Table) (*Schema, error) {
	s := &Schema{tables: make(map[string]*Table, len(tables))}
	for i := range tables {
		t := tables[i]
		if _, dup := s.tables[t.Name]; dup {
			return nil, fmt.Errorf("таблица %s описана дважды", t.Name)
		}
		if t.PrimaryKey != "" && !t.HasColumn(t.PrimaryKey) {
			return nil, fmt.Errorf("таблица %s: первичный ключ %s не входит в колонки", t.Name, t.PrimaryKey)
		}
		s.tables[t.Name] = &t
	}

	for _, t := range s.tables {
		for _, fk := range t.ForeignKeys {
			if !t.HasColumn(fk.Column) {
				return nil, fmt.Errorf("таблица %s: колонка FK %s не найдена", t.Name, fk.Column)
			}
			ref, ok := s.tables[fk.RefTable]
			if !ok {
				return nil, fmt.Errorf("таблица %s: FK %s ссылается на неизвестную таблицу %s", t.Name, fk.Name, fk.RefTable)
			}
			if !ref.HasColumn(fk.RefColumn) {
				return nil, fmt.Errorf("таблица %s: FK %s ссылается на неизвестную колонку %s.%s", t.Name, fk.Name, fk.RefTable, fk.RefColumn)
			}
		}
	}
	return s, nil
}

// MustSchema — как NewSchema, но паникует при ошибке. Для статических схем.
func MustSchema(tables ...Table) *Schema {
	s, err := NewSchema(tables...)
	if err != nil {
		panic(err)
	}
	return s
}

// Table возвращает описание таблицы или ErrUnknownTable.
func (s *Schema) Table(name string) (*Table, error) {
	t, ok := s.tables[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTable, name)
	}
	return t, nil
}

// column проверяет, что колонка существует в таблице.
func (t *Table) column(name string) error {
	if !t.HasColumn(name) {
		return fmt.Errorf("%w: %s.%q", ErrUnknownColumn, t.Name, name)
	}
	return nil
}

// Имена таблиц Blockhood.
const (
	TableUsers              = "users"
	TableTags               = "tags"
	TableGuides             = "guides"
	TableEvents             = "events"
	TableCareers            = "careers"
	TableGuideTags          = "guide_tags"
	TableEventTags          = "event_tags"
	TableCareerTags         = "career_tags"
	TableEventRegistrations = "event_registrations"
)

// authorFK — внешний ключ автора публикации.
func authorFK(table string) ForeignKey {
	return ForeignKey{Name: table + "_user_id_fkey", Column: "user_id", RefTable: TableUsers, RefColumn: "id"}
}

// tagLink описывает таблицу связей публикаций с тегами.
func tagLink(table, parent, parentColumn string) Table {
	return Table{
		Name:    table,
		Columns: []string{parentColumn, "tag_id"},
		ForeignKeys: []ForeignKey{
			{Name: table + "_" + parentColumn + "_fkey", Column: parentColumn, RefTable: parent, RefColumn: "id"},
			{Name: table + "_tag_id_fkey", Column: "tag_id", RefTable: TableTags, RefColumn: "id"},
		},
	}
}

// DefaultSchema — схема базы Blockhood (см. migrations/000001_init.up.sql).
var DefaultSchema = MustSchema(
	Table{
		Name:       TableUsers,
		PrimaryKey: "id",
		UUIDKey:    true,
		Columns:    []string{"id", "email", "full_name", "avatar_url", "created_at"},
	},
	Table{
		Name:       TableTags,
		PrimaryKey: "id",
		UUIDKey:    true,
		Columns:    []string{"id", "name", "created_at"},
	},
	Table{
		Name:       TableGuides,
		PrimaryKey: "id",
		UUIDKey:    true,
		Columns: []string{
			"id", "title", "slug", "summary", "content", "level", "duration",
			"image_url", "user_id", "created_at", "updated_at",
		},
		ForeignKeys: []ForeignKey{authorFK(TableGuides)},
	},
	Table{
		Name:       TableEvents,
		PrimaryKey: "id",
		UUIDKey:    true,
		Columns: []string{
			"id", "title", "slug", "summary", "description", "start_time", "end_time",
			"location", "location_type", "platform", "capacity", "attendees_count",
			"image_url", "user_id", "created_at", "updated_at",
		},
		ForeignKeys: []ForeignKey{authorFK(TableEvents)},
	},
	Table{
		Name:       TableCareers,
		PrimaryKey: "id",
		UUIDKey:    true,
		Columns: []string{
			"id", "title", "slug", "summary", "about", "responsibilities", "requirements",
			"nice_to_have", "benefits", "job_type", "location", "experience", "salary_range",
			"posted_at", "deadline", "company_name", "company_website", "company_size",
			"company_founded", "image_url", "user_id", "created_at", "updated_at",
		},
		ForeignKeys: []ForeignKey{authorFK(TableCareers)},
	},
	tagLink(TableGuideTags, TableGuides, "guide_id"),
	tagLink(TableEventTags, TableEvents, "event_id"),
	tagLink(TableCareerTags, TableCareers, "career_id"),
	Table{
		Name:    TableEventRegistrations,
		Columns: []string{"event_id", "user_id", "created_at"},
		ForeignKeys: []ForeignKey{
			{Name: "event_registrations_event_id_fkey", Column: "event_id", RefTable: TableEvents, RefColumn: "id"},
			{Name: "event_registrations_user_id_fkey", Column: "user_id", RefTable: TableUsers, RefColumn: "id"},
		},
	},
)
