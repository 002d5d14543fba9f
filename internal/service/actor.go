package service

import (
	"fmt"

	"github.com/google/uuid"
)

// Actor — аутентифицированный пользователь, от имени которого выполняется операция.
// Заполняется из проверенного JWT в middleware.
type Actor struct {
	// UserID — subject токена, совпадает с users.id
	UserID string
	Email  string
	// FullName — имя из user_metadata токена (может быть пустым)
	FullName string
	// Moderator — может изменять и удалять чужие публикации
	Moderator bool
}

// canModify проверяет, может ли actor изменять запись автора authorID.
func (a Actor) canModify(authorID string) bool {
	return a.Moderator || (a.UserID != "" && a.UserID == authorID)
}

// validate проверяет, что идентификатор пользователя — UUID.
func (a Actor) validate() error {
	if _, err := uuid.Parse(a.UserID); err != nil {
		return fmt.Errorf("%w: некорректный идентификатор пользователя %q", ErrForbidden, a.UserID)
	}
	return nil
}
