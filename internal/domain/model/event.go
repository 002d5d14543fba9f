package model

import "time"

// Формат проведения события.
const (
	LocationInPerson = "in_person"
	LocationVirtual  = "virtual"
)

// Event — событие сообщества (таблица events).
type Event struct {
	ID          string    `db:"id" json:"id"`
	Title       string    `db:"title" json:"title"`
	Slug        string    `db:"slug" json:"slug"`
	Summary     string    `db:"summary" json:"summary"`
	Description string    `db:"description" json:"description"`
	StartTime   time.Time `db:"start_time" json:"start_time"`
	EndTime     time.Time `db:"end_time" json:"end_time"`
	// Location — адрес; для онлайн-событий без адреса совпадает с Platform
	Location     string  `db:"location" json:"location"`
	LocationType string  `db:"location_type" json:"location_type"`
	Platform     *string `db:"platform" json:"platform"`
	// Capacity — максимум участников, nil — без ограничения
	Capacity       *int      `db:"capacity" json:"capacity"`
	AttendeesCount int       `db:"attendees_count" json:"attendees_count"`
	ImageURL       *string   `db:"image_url" json:"image_url"`
	UserID         string    `db:"user_id" json:"user_id"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`

	User *UserSummary `db:"user" json:"user,omitempty"`
	Tags []Tag        `db:"tags" json:"tags,omitempty"`
}

// EventRegistration — запись пользователя на событие (таблица event_registrations).
type EventRegistration struct {
	EventID   string    `db:"event_id" json:"event_id"`
	UserID    string    `db:"user_id" json:"user_id"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
