// Пакет repository — слой доступа к данным PostgreSQL.
// Все запросы — чистый SQL через pgx, без ORM. Таблицы описываются
// статической схемой (Schema), по которой строятся запросы
// универсального доступа к записям.
package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Ошибки слоя репозиториев.
var (
	// ErrNotFound — запись не найдена.
	ErrNotFound = errors.New("запись не найдена")
	// ErrConflict — конфликт уникальности (дублирующийся ресурс).
	ErrConflict = errors.New("конфликт — запись уже существует")
	// ErrMultipleRows — условию выборки одной записи соответствует несколько строк.
	ErrMultipleRows = errors.New("найдено более одной записи")
	// ErrUnknownTable — таблица отсутствует в схеме.
	ErrUnknownTable = errors.New("неизвестная таблица")
	// ErrUnknownColumn — колонка отсутствует в таблице.
	ErrUnknownColumn = errors.New("неизвестная колонка")
	// ErrRelation — связь для встраивания не найдена или неоднозначна.
	ErrRelation = errors.New("некорректная связь")
	// ErrSelectSyntax — синтаксическая ошибка строки выборки.
	ErrSelectSyntax = errors.New("синтаксическая ошибка строки выборки")
	// ErrInvalidReference — ссылка на несуществующую запись (нарушение FK).
	ErrInvalidReference = errors.New("ссылка на несуществующую запись")
	// ErrConstraint — значение нарушает ограничение таблицы.
	ErrConstraint = errors.New("нарушено ограничение таблицы")
	// ErrCapacityReached — на событии не осталось свободных мест.
	ErrCapacityReached = errors.New("достигнут лимит участников")
)

// DBTX — интерфейс для выполнения SQL-запросов.
// Реализуется как *pgxpool.Pool, так и pgx.Tx, что позволяет
// использовать Store как внутри, так и вне транзакций.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// beginner — DBTX, умеющий открывать (вложенную) транзакцию.
// pgx.Tx.Begin создаёт savepoint, pgxpool.Pool.Begin — новую транзакцию.
type beginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// TxRunner позволяет выполнять операции в транзакции.
type TxRunner struct {
	pool *pgxpool.Pool
}

// NewTxRunner создаёт TxRunner для управления транзакциями.
func NewTxRunner(pool *pgxpool.Pool) *TxRunner {
	return &TxRunner{pool: pool}
}

// RunInTx выполняет fn внутри транзакции.
// При ошибке fn — транзакция откатывается.
// При успехе — коммитится.
func (r *TxRunner) RunInTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("ошибка начала транзакции: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // откат после коммита — no-op

	if err := fn(tx); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// Store — универсальный доступ к записям таблиц схемы.
type Store struct {
	db     DBTX
	schema *Schema
}

// NewStore создаёт Store поверх пула или транзакции.
func NewStore(db DBTX, schema *Schema) *Store {
	return &Store{db: db, schema: schema}
}

// WithTx возвращает Store, выполняющий запросы в транзакции tx.
func (s *Store) WithTx(tx DBTX) *Store {
	return &Store{db: tx, schema: s.schema}
}

// Savepoint выполняет fn во вложенной транзакции. Ошибка внутри fn
// откатывает только изменения fn, внешняя транзакция остаётся рабочей.
func (s *Store) Savepoint(ctx context.Context, fn func(st *Store) error) error {
	b, ok := s.db.(beginner)
	if !ok {
		return fn(s)
	}

	tx, err := b.Begin(ctx)
	if err != nil {
		return fmt.Errorf("ошибка создания savepoint: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // откат после коммита — no-op

	if err := fn(s.WithTx(tx)); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// SQLSTATE-коды PostgreSQL, которые отображаются на ошибки слоя.
const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
	codeNotNullViolation    = "23502"
	codeCheckViolation      = "23514"
	codeInvalidText         = "22P02"
)

// pgErrorCode возвращает SQLSTATE ошибки PostgreSQL или пустую строку.
func pgErrorCode(err error) (code, constraint string) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code, pgErr.ConstraintName
	}
	return "", ""
}

// mapWriteError переводит ошибку записи в ошибку слоя репозиториев.
// Исходная ошибка PostgreSQL остаётся в цепочке (errors.As → *pgconn.PgError).
func mapWriteError(op, table string, err error) error {
	code, constraint := pgErrorCode(err)
	switch code {
	case codeUniqueViolation:
		return fmt.Errorf("%w: %s (%s): %w", ErrConflict, table, constraint, err)
	case codeForeignKeyViolation:
		return fmt.Errorf("%w: %s (%s): %w", ErrInvalidReference, table, constraint, err)
	case codeNotNullViolation, codeCheckViolation, codeInvalidText:
		return fmt.Errorf("%w: %s: %w", ErrConstraint, table, err)
	}
	return fmt.Errorf("ошибка %s %s: %w", op, table, err)
}
