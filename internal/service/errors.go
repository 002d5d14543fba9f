// errors.go — ошибки бизнес-логики сервисного слоя.
package service

import (
	"errors"
	"fmt"

	"github.com/bigkaa/blockhood/internal/repository"
)

var (
	// ErrNotFound — ресурс не найден.
	ErrNotFound = errors.New("ресурс не найден")
	// ErrConflict — конфликт (дублирующийся ресурс).
	ErrConflict = errors.New("конфликт — ресурс уже существует")
	// ErrValidation — ошибка валидации входных данных.
	ErrValidation = errors.New("ошибка валидации")
	// ErrForbidden — действие запрещено текущему пользователю.
	ErrForbidden = errors.New("недостаточно прав")
	// ErrCapacityReached — на событии не осталось свободных мест.
	ErrCapacityReached = errors.New("на событии не осталось мест")
	// ErrPayloadTooLarge — загружаемый файл слишком большой.
	ErrPayloadTooLarge = errors.New("файл слишком большой")
)

// validationf создаёт ошибку валидации с сообщением.
func validationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// mapRepoError переводит ошибки репозитория в ошибки сервисного слоя.
// what — описание ресурса для сообщения.
func mapRepoError(err error, what string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrNotFound):
		return fmt.Errorf("%w: %s", ErrNotFound, what)
	case errors.Is(err, repository.ErrConflict):
		return fmt.Errorf("%w: %s", ErrConflict, what)
	case errors.Is(err, repository.ErrCapacityReached):
		return fmt.Errorf("%w: %s", ErrCapacityReached, what)
	case errors.Is(err, repository.ErrInvalidReference), errors.Is(err, repository.ErrConstraint):
		return fmt.Errorf("%w: %s: %w", ErrValidation, what, err)
	default:
		return err
	}
}
