package repository

import (
	"fmt"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5"
)

// Строка выборки — подмножество синтаксиса select hosted-бэкенда:
//
//	select := item ("," item)*
//	item   := "*" | [alias ":"] column | [alias ":"] table ["!" hint] "(" select ")"
//
// Пример: "*, user:users!guides_user_id_fkey(id, full_name), tags(id, name)".

// selectItem — элемент строки выборки.
type selectItem struct {
	star   bool
	alias  string
	column string
	embed  *embed
}

// embed — встраиваемая связанная таблица.
type embed struct {
	table string
	hint  string
	items []selectItem
}

// key возвращает имя поля результата для элемента.
func (it selectItem) key() string {
	switch {
	case it.alias != "":
		return it.alias
	case it.embed != nil:
		return it.embed.table
	default:
		return it.column
	}
}

// selectParser — рекурсивный разбор строки выборки.
type selectParser struct {
	src string
	pos int
}

// parseSelect разбирает строку выборки. Пустая строка эквивалентна "*".
func parseSelect(src string) ([]selectItem, error) {
	if strings.TrimSpace(src) == "" {
		return []selectItem{{star: true}}, nil
	}

	p := &selectParser{src: src}
	items, err := p.list()
	if err != nil {
		return nil, err
	}
	p.skipSpace()
	if p.pos < len(p.src) {
		return nil, p.errorf("неожиданный символ %q", p.src[p.pos])
	}
	return items, nil
}

func (p *selectParser) errorf(format string, args ...any) error {
	return fmt.Errorf("%w: позиция %d: %s", ErrSelectSyntax, p.pos, fmt.Sprintf(format, args...))
}

func (p *selectParser) skipSpace() {
	for p.pos < len(p.src) && (p.src[p.pos] == ' ' || p.src[p.pos] == '\t' || p.src[p.pos] == '\n' || p.src[p.pos] == '\r') {
		p.pos++
	}
}

// peek возвращает следующий значимый символ или 0 в конце строки.
func (p *selectParser) peek() byte {
	p.skipSpace()
	if p.pos >= len(p.src) {
		return 0
	}
	return p.src[p.pos]
}

func (p *selectParser) accept(c byte) bool {
	if p.peek() == c {
		p.pos++
		return true
	}
	return false
}

func isIdentChar(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}

func (p *selectParser) ident() (string, error) {
	p.skipSpace()
	start := p.pos
	for p.pos < len(p.src) && isIdentChar(p.src[p.pos]) {
		p.pos++
	}
	if start == p.pos {
		if p.pos >= len(p.src) {
			return "", p.errorf("ожидался идентификатор, получен конец строки")
		}
		return "", p.errorf("ожидался идентификатор, получен %q", p.src[p.pos])
	}
	return p.src[start:p.pos], nil
}

func (p *selectParser) list() ([]selectItem, error) {
	var items []selectItem
	for {
		item, err := p.item()
		if err != nil {
			return nil, err
		}
		items = append(items, item)
		if !p.accept(',') {
			return items, nil
		}
	}
}

func (p *selectParser) item() (selectItem, error) {
	if p.accept('*') {
		return selectItem{star: true}, nil
	}

	name, err := p.ident()
	if err != nil {
		return selectItem{}, err
	}

	var alias string
	if p.accept(':') {
		alias = name
		if name, err = p.ident(); err != nil {
			return selectItem{}, err
		}
	}

	var hint string
	if p.accept('!') {
		if hint, err = p.ident(); err != nil {
			return selectItem{}, err
		}
	}

	if !p.accept('(') {
		if hint != "" {
			return selectItem{}, p.errorf("подсказка !%s допустима только для встраивания", hint)
		}
		return selectItem{alias: alias, column: name}, nil
	}

	if p.peek() == ')' {
		return selectItem{}, p.errorf("пустой список колонок для %s", name)
	}
	inner, err := p.list()
	if err != nil {
		return selectItem{}, err
	}
	if !p.accept(')') {
		return selectItem{}, p.errorf("ожидалась ')' после списка колонок %s", name)
	}
	return selectItem{alias: alias, embed: &embed{table: name, hint: hint, items: inner}}, nil
}

// --- Разрешение связей ---

// relationKind — вид связи между таблицами.
type relationKind int

const (
	// manyToOne — текущая таблица содержит FK на целевую.
	manyToOne relationKind = iota
	// oneToMany — целевая таблица содержит FK на текущую.
	oneToMany
	// manyToMany — таблица связей содержит FK на обе.
	manyToMany
)

// relation — найденная связь для встраивания.
type relation struct {
	kind relationKind
	// fk — ключ для manyToOne/oneToMany; для manyToMany — ключ таблицы
	// связей на текущую таблицу
	fk ForeignKey
	// join — таблица связей и её ключ на целевую таблицу (manyToMany)
	join   *Table
	joinFK ForeignKey
}

func (r relation) matches(hint string) bool {
	if hint == "" {
		return true
	}
	if r.kind == manyToMany {
		return hint == r.join.Name || hint == r.fk.Name || hint == r.joinFK.Name
	}
	return hint == r.fk.Name || hint == r.fk.Column
}

// resolveRelation находит единственную связь from → to с учётом подсказки.
func (s *Schema) resolveRelation(from, to *Table, hint string) (relation, error) {
	var candidates []relation

	for _, fk := range from.ForeignKeys {
		if fk.RefTable == to.Name {
			candidates = append(candidates, relation{kind: manyToOne, fk: fk})
		}
	}
	for _, fk := range to.ForeignKeys {
		if fk.RefTable == from.Name {
			candidates = append(candidates, relation{kind: oneToMany, fk: fk})
		}
	}

	names := make([]string, 0, len(s.tables))
	for name := range s.tables {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		j := s.tables[name]
		if j.Name == from.Name || j.Name == to.Name {
			continue
		}
		for _, fkFrom := range j.ForeignKeys {
			if fkFrom.RefTable != from.Name {
				continue
			}
			for _, fkTo := range j.ForeignKeys {
				if fkTo.RefTable == to.Name && fkTo.Name != fkFrom.Name {
					candidates = append(candidates, relation{kind: manyToMany, fk: fkFrom, join: j, joinFK: fkTo})
				}
			}
		}
	}

	var matched []relation
	for _, c := range candidates {
		if c.matches(hint) {
			matched = append(matched, c)
		}
	}

	switch len(matched) {
	case 0:
		if hint != "" {
			return relation{}, fmt.Errorf("%w: нет связи %s → %s с подсказкой %q", ErrRelation, from.Name, to.Name, hint)
		}
		return relation{}, fmt.Errorf("%w: нет связи %s → %s", ErrRelation, from.Name, to.Name)
	case 1:
		return matched[0], nil
	default:
		return relation{}, fmt.Errorf("%w: связь %s → %s неоднозначна (%d вариантов), укажите подсказку !<fkey>",
			ErrRelation, from.Name, to.Name, len(matched))
	}
}

// --- Построение SQL ---

// field — выражение выборки и имя поля результата.
type field struct {
	name string
	expr string
}

// queryBuilder строит SELECT по строке выборки. Алиасы таблиц — t0, t1, ...
type queryBuilder struct {
	schema *Schema
	next   int
}

func quote(name string) string {
	return pgx.Identifier{name}.Sanitize()
}

func (b *queryBuilder) alias() string {
	a := fmt.Sprintf("t%d", b.next)
	b.next++
	return a
}

// fields строит выражения для элементов выборки таблицы t с алиасом alias.
func (b *queryBuilder) fields(t *Table, alias string, items []selectItem) ([]field, error) {
	var out []field
	seen := make(map[string]bool)
	add := func(f field) error {
		if seen[f.name] {
			return fmt.Errorf("%w: поле %q выбрано дважды", ErrSelectSyntax, f.name)
		}
		seen[f.name] = true
		out = append(out, f)
		return nil
	}

	for _, it := range items {
		switch {
		case it.star:
			for _, col := range t.Columns {
				if err := add(field{name: col, expr: alias + "." + quote(col)}); err != nil {
					return nil, err
				}
			}
		case it.embed != nil:
			expr, err := b.embedExpr(t, alias, it.embed)
			if err != nil {
				return nil, err
			}
			if err := add(field{name: it.key(), expr: expr}); err != nil {
				return nil, err
			}
		default:
			if err := t.column(it.column); err != nil {
				return nil, err
			}
			if err := add(field{name: it.key(), expr: alias + "." + quote(it.column)}); err != nil {
				return nil, err
			}
		}
	}
	return out, nil
}

// jsonObject собирает json_build_object из полей.
func jsonObject(fields []field) string {
	parts := make([]string, 0, len(fields)*2)
	for _, f := range fields {
		parts = append(parts, "'"+f.name+"'", f.expr)
	}
	return "json_build_object(" + strings.Join(parts, ", ") + ")"
}

// embedExpr строит коррелированный подзапрос для встраивания связанной таблицы.
func (b *queryBuilder) embedExpr(parent *Table, parentAlias string, e *embed) (string, error) {
	target, err := b.schema.Table(e.table)
	if err != nil {
		return "", err
	}
	rel, err := b.schema.resolveRelation(parent, target, e.hint)
	if err != nil {
		return "", err
	}

	ta := b.alias()
	inner, err := b.fields(target, ta, e.items)
	if err != nil {
		return "", err
	}
	obj := jsonObject(inner)

	order := ""
	if target.PrimaryKey != "" {
		order = " ORDER BY " + ta + "." + quote(target.PrimaryKey)
	}

	switch rel.kind {
	case manyToOne:
		return fmt.Sprintf("(SELECT %s FROM %s %s WHERE %s.%s = %s.%s)",
			obj, quote(target.Name), ta,
			ta, quote(rel.fk.RefColumn), parentAlias, quote(rel.fk.Column)), nil
	case oneToMany:
		return fmt.Sprintf("(SELECT COALESCE(json_agg(%s%s), '[]'::json) FROM %s %s WHERE %s.%s = %s.%s)",
			obj, order, quote(target.Name), ta,
			ta, quote(rel.fk.Column), parentAlias, quote(rel.fk.RefColumn)), nil
	default:
		ja := b.alias()
		return fmt.Sprintf("(SELECT COALESCE(json_agg(%s%s), '[]'::json) FROM %s %s JOIN %s %s ON %s.%s = %s.%s WHERE %s.%s = %s.%s)",
			obj, order, quote(target.Name), ta,
			quote(rel.join.Name), ja, ja, quote(rel.joinFK.Column), ta, quote(rel.joinFK.RefColumn),
			ja, quote(rel.fk.Column), parentAlias, quote(rel.fk.RefColumn)), nil
	}
}

// selectSQL строит "SELECT ... FROM table t0" по строке выборки.
func (s *Schema) selectSQL(table, relations string) (string, *Table, error) {
	t, err := s.Table(table)
	if err != nil {
		return "", nil, err
	}
	items, err := parseSelect(relations)
	if err != nil {
		return "", nil, err
	}

	b := &queryBuilder{schema: s}
	root := b.alias()
	fields, err := b.fields(t, root, items)
	if err != nil {
		return "", nil, err
	}

	cols := make([]string, 0, len(fields))
	for _, f := range fields {
		cols = append(cols, f.expr+" AS "+quote(f.name))
	}
	return "SELECT " + strings.Join(cols, ", ") + " FROM " + quote(t.Name) + " " + root, t, nil
}
