// Пакет model — доменные модели Blockhood.
// Поля размечены тегами db (имена колонок PostgreSQL) и json (ответы API).
package model

import "time"

// User — профиль пользователя (таблица users).
// ID совпадает с subject токена сервиса аутентификации.
type User struct {
	ID        string    `db:"id" json:"id"`
	Email     string    `db:"email" json:"email"`
	FullName  string    `db:"full_name" json:"full_name"`
	AvatarURL *string   `db:"avatar_url" json:"avatar_url"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// UserSummary — автор публикации, встраивается в выборки гайдов, событий и вакансий.
type UserSummary struct {
	ID        string  `json:"id"`
	FullName  string  `json:"full_name"`
	AvatarURL *string `json:"avatar_url,omitempty"`
}
