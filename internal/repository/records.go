package repository

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5"
)

// ListOptions — необязательные условия выборки списка.
// GetAll вызывает List с пустыми опциями.
type ListOptions struct {
	// Match — условия равенства колонка = значение (объединяются через AND)
	Match map[string]any
	// OrderBy — колонка сортировки; пусто — порядок не определён
	OrderBy string
	// Desc — сортировка по убыванию
	Desc bool
	// Limit — максимум строк; 0 — без ограничения
	Limit int
	// Offset — смещение
	Offset int
}

// sortedKeys возвращает ключи в детерминированном порядке,
// чтобы нумерация параметров $N не зависела от обхода map.
func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// whereClause строит "WHERE a = $1 AND b = $2" для таблицы t c алиасом alias.
// argNum — номер первого параметра.
func whereClause(t *Table, alias string, match map[string]any, argNum int) (string, []any, error) {
	if len(match) == 0 {
		return "", nil, nil
	}
	prefix := ""
	if alias != "" {
		prefix = alias + "."
	}

	conditions := make([]string, 0, len(match))
	args := make([]any, 0, len(match))
	for _, col := range sortedKeys(match) {
		if err := t.column(col); err != nil {
			return "", nil, err
		}
		v := match[col]
		if v == nil {
			conditions = append(conditions, prefix+quote(col)+" IS NULL")
			continue
		}
		conditions = append(conditions, fmt.Sprintf("%s%s = $%d", prefix, quote(col), argNum))
		args = append(args, v)
		argNum++
	}
	return " WHERE " + strings.Join(conditions, " AND "), args, nil
}

// buildList строит запрос List.
func (s *Store) buildList(table, relations string, opts ListOptions) (string, []any, error) {
	query, t, err := s.schema.selectSQL(table, relations)
	if err != nil {
		return "", nil, err
	}

	where, args, err := whereClause(t, "t0", opts.Match, 1)
	if err != nil {
		return "", nil, err
	}
	query += where

	if opts.OrderBy != "" {
		if err := t.column(opts.OrderBy); err != nil {
			return "", nil, err
		}
		dir := "ASC"
		if opts.Desc {
			dir = "DESC"
		}
		query += " ORDER BY t0." + quote(opts.OrderBy) + " " + dir
	}
	if opts.Limit > 0 {
		args = append(args, opts.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if opts.Offset > 0 {
		args = append(args, opts.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}
	return query, args, nil
}

// collect выполняет запрос и декодирует строки в T по именам колонок (теги db).
func collect[T any](ctx context.Context, db DBTX, table, query string, args ...any) ([]T, error) {
	rows, err := db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ошибка выборки %s: %w", table, err)
	}
	result, err := pgx.CollectRows(rows, pgx.RowToStructByNameLax[T])
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения строк %s: %w", table, err)
	}
	return result, nil
}

// GetAll возвращает все строки таблицы. relations — строка выборки
// (пусто — все колонки).
func GetAll[T any](ctx context.Context, s *Store, table, relations string) ([]T, error) {
	return List[T](ctx, s, table, relations, ListOptions{})
}

// List возвращает строки таблицы с условиями, сортировкой и пагинацией.
func List[T any](ctx context.Context, s *Store, table, relations string, opts ListOptions) ([]T, error) {
	query, args, err := s.buildList(table, relations, opts)
	if err != nil {
		return nil, err
	}
	result, err := collect[T](ctx, s.db, table, query, args...)
	if err != nil {
		return nil, err
	}
	if result == nil {
		result = []T{}
	}
	return result, nil
}

// GetByID возвращает строку по первичному ключу или ErrNotFound.
func GetByID[T any](ctx context.Context, s *Store, table, id, relations string) (*T, error) {
	t, err := s.schema.Table(table)
	if err != nil {
		return nil, err
	}
	if t.PrimaryKey == "" {
		return nil, fmt.Errorf("%w: у таблицы %s нет первичного ключа", ErrUnknownColumn, table)
	}
	if !t.validKey(id) {
		return nil, fmt.Errorf("%w: %s.%s = %s", ErrNotFound, table, t.PrimaryKey, id)
	}
	return GetBySlug[T](ctx, s, table, t.PrimaryKey, id, relations)
}

// GetBySlug возвращает единственную строку, у которой column = value.
// ErrNotFound — строк нет, ErrMultipleRows — строк больше одной.
func GetBySlug[T any](ctx context.Context, s *Store, table, column string, value any, relations string) (*T, error) {
	query, t, err := s.schema.selectSQL(table, relations)
	if err != nil {
		return nil, err
	}
	if err := t.column(column); err != nil {
		return nil, err
	}
	query += " WHERE t0." + quote(column) + " = $1 LIMIT 2"

	rows, err := collect[T](ctx, s.db, table, query, value)
	if err != nil {
		return nil, err
	}
	switch len(rows) {
	case 0:
		return nil, fmt.Errorf("%w: %s.%s = %v", ErrNotFound, table, column, value)
	case 1:
		return &rows[0], nil
	default:
		return nil, fmt.Errorf("%w: %s.%s = %v", ErrMultipleRows, table, column, value)
	}
}

// Values — значения колонок для вставки или обновления.
type Values map[string]any

// Create вставляет строку и возвращает сгенерированный первичный ключ
// (для таблиц без одиночного ключа — пустую строку).
func (s *Store) Create(ctx context.Context, table string, values Values) (string, error) {
	t, err := s.schema.Table(table)
	if err != nil {
		return "", err
	}

	var query string
	args := make([]any, 0, len(values))
	if len(values) == 0 {
		query = "INSERT INTO " + quote(t.Name) + " DEFAULT VALUES"
	} else {
		cols := make([]string, 0, len(values))
		params := make([]string, 0, len(values))
		for _, col := range sortedKeys(values) {
			if err := t.column(col); err != nil {
				return "", err
			}
			cols = append(cols, quote(col))
			args = append(args, values[col])
			params = append(params, fmt.Sprintf("$%d", len(args)))
		}
		query = fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
			quote(t.Name), strings.Join(cols, ", "), strings.Join(params, ", "))
	}

	if t.PrimaryKey == "" {
		if _, err := s.db.Exec(ctx, query, args...); err != nil {
			return "", mapWriteError("вставки в", table, err)
		}
		return "", nil
	}

	var id string
	query += " RETURNING " + quote(t.PrimaryKey) + "::text"
	if err := s.db.QueryRow(ctx, query, args...).Scan(&id); err != nil {
		return "", mapWriteError("вставки в", table, err)
	}
	return id, nil
}

// Update частично обновляет строку по первичному ключу.
// Если в таблице есть updated_at и он не передан — выставляется now().
func (s *Store) Update(ctx context.Context, table, id string, values Values) error {
	t, err := s.schema.Table(table)
	if err != nil {
		return err
	}
	if t.PrimaryKey == "" {
		return fmt.Errorf("%w: у таблицы %s нет первичного ключа", ErrUnknownColumn, table)
	}
	if len(values) == 0 {
		return fmt.Errorf("%w: нет полей для обновления %s", ErrConstraint, table)
	}
	if !t.validKey(id) {
		return fmt.Errorf("%w: %s.%s = %s", ErrNotFound, table, t.PrimaryKey, id)
	}

	sets := make([]string, 0, len(values)+1)
	args := make([]any, 0, len(values)+1)
	for _, col := range sortedKeys(values) {
		if err := t.column(col); err != nil {
			return err
		}
		if col == t.PrimaryKey {
			return fmt.Errorf("%w: первичный ключ %s.%s не обновляется", ErrConstraint, table, col)
		}
		args = append(args, values[col])
		sets = append(sets, fmt.Sprintf("%s = $%d", quote(col), len(args)))
	}
	if _, ok := values["updated_at"]; !ok && t.HasColumn("updated_at") {
		sets = append(sets, quote("updated_at")+" = now()")
	}
	args = append(args, id)

	query := fmt.Sprintf("UPDATE %s SET %s WHERE %s = $%d",
		quote(t.Name), strings.Join(sets, ", "), quote(t.PrimaryKey), len(args))

	tag, err := s.db.Exec(ctx, query, args...)
	if err != nil {
		return mapWriteError("обновления", table, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s.%s = %s", ErrNotFound, table, t.PrimaryKey, id)
	}
	return nil
}

// Remove удаляет строку по первичному ключу.
func (s *Store) Remove(ctx context.Context, table, id string) error {
	t, err := s.schema.Table(table)
	if err != nil {
		return err
	}
	if t.PrimaryKey == "" {
		return fmt.Errorf("%w: у таблицы %s нет первичного ключа", ErrUnknownColumn, table)
	}

	if !t.validKey(id) {
		return fmt.Errorf("%w: %s.%s = %s", ErrNotFound, table, t.PrimaryKey, id)
	}

	query := fmt.Sprintf("DELETE FROM %s WHERE %s = $1", quote(t.Name), quote(t.PrimaryKey))
	tag, err := s.db.Exec(ctx, query, id)
	if err != nil {
		return mapWriteError("удаления из", table, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s.%s = %s", ErrNotFound, table, t.PrimaryKey, id)
	}
	return nil
}

// RemoveWhere удаляет строки по условиям равенства и возвращает их количество.
// Пустые условия запрещены.
func (s *Store) RemoveWhere(ctx context.Context, table string, match Values) (int64, error) {
	t, err := s.schema.Table(table)
	if err != nil {
		return 0, err
	}
	if len(match) == 0 {
		return 0, fmt.Errorf("%w: удаление из %s без условий", ErrConstraint, table)
	}

	where, args, err := whereClause(t, "", match, 1)
	if err != nil {
		return 0, err
	}
	tag, err := s.db.Exec(ctx, "DELETE FROM "+quote(t.Name)+where, args...)
	if err != nil {
		return 0, mapWriteError("удаления из", table, err)
	}
	return tag.RowsAffected(), nil
}
