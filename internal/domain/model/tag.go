package model

import "time"

// Tag — тег (таблица tags). Имя уникально и хранится в нижнем регистре.
type Tag struct {
	ID        string     `db:"id" json:"id"`
	Name      string     `db:"name" json:"name"`
	CreatedAt *time.Time `db:"created_at" json:"created_at,omitempty"`
}
