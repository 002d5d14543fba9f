package model

import "time"

// Уровни сложности гайда.
const (
	LevelBeginner     = "beginner"
	LevelIntermediate = "intermediate"
	LevelAdvanced     = "advanced"
)

// Guide — обучающий материал (таблица guides).
type Guide struct {
	ID       string `db:"id" json:"id"`
	Title    string `db:"title" json:"title"`
	Slug     string `db:"slug" json:"slug"`
	Summary  string `db:"summary" json:"summary"`
	Content  string `db:"content" json:"content"`
	Level    string `db:"level" json:"level"`
	Duration string `db:"duration" json:"duration"`
	// ImageURL — публичный URL обложки (опционально)
	ImageURL  *string   `db:"image_url" json:"image_url"`
	UserID    string    `db:"user_id" json:"user_id"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`

	// User — автор, если запрошен в выборке
	User *UserSummary `db:"user" json:"user,omitempty"`
	// Tags — теги, если запрошены в выборке
	Tags []Tag `db:"tags" json:"tags,omitempty"`
}
