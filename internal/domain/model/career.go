package model

import "time"

// Типы занятости вакансии.
const (
	JobFullTime   = "full_time"
	JobPartTime   = "part_time"
	JobContract   = "contract"
	JobInternship = "internship"
)

// Career — вакансия (таблица careers).
type Career struct {
	ID               string     `db:"id" json:"id"`
	Title            string     `db:"title" json:"title"`
	Slug             string     `db:"slug" json:"slug"`
	Summary          string     `db:"summary" json:"summary"`
	About            string     `db:"about" json:"about"`
	Responsibilities string     `db:"responsibilities" json:"responsibilities"`
	Requirements     string     `db:"requirements" json:"requirements"`
	NiceToHave       string     `db:"nice_to_have" json:"nice_to_have"`
	Benefits         string     `db:"benefits" json:"benefits"`
	JobType          string     `db:"job_type" json:"job_type"`
	Location         string     `db:"location" json:"location"`
	Experience       string     `db:"experience" json:"experience"`
	SalaryRange      string     `db:"salary_range" json:"salary_range"`
	PostedAt         time.Time  `db:"posted_at" json:"posted_at"`
	Deadline         *time.Time `db:"deadline" json:"deadline"`
	CompanyName      string     `db:"company_name" json:"company_name"`
	CompanyWebsite   *string    `db:"company_website" json:"company_website"`
	CompanySize      *string    `db:"company_size" json:"company_size"`
	CompanyFounded   *int       `db:"company_founded" json:"company_founded"`
	ImageURL         *string    `db:"image_url" json:"image_url"`
	UserID           string     `db:"user_id" json:"user_id"`
	CreatedAt        time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time  `db:"updated_at" json:"updated_at"`

	User *UserSummary `db:"user" json:"user,omitempty"`
	Tags []Tag        `db:"tags" json:"tags,omitempty"`
}
