// careers.go — сервис вакансий.
package service

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/bigkaa/blockhood/internal/domain/model"
	"github.com/bigkaa/blockhood/internal/repository"
)

var validJobTypes = map[string]bool{
	model.JobFullTime:   true,
	model.JobPartTime:   true,
	model.JobContract:   true,
	model.JobInternship: true,
}

// minFoundedYear — минимально допустимый год основания компании.
const minFoundedYear = 1800

// CareerInput — данные формы публикации вакансии.
type CareerInput struct {
	Title            string
	Slug             string
	Summary          string
	About            string
	Responsibilities string
	Requirements     string
	NiceToHave       string
	Benefits         string
	JobType          string
	Location         string
	Experience       string
	SalaryRange      string
	Deadline         *time.Time
	CompanyName      string
	CompanyWebsite   *string
	CompanySize      *string
	CompanyFounded   *int
	ImageURL         *string
	// Tags — теги через запятую
	Tags string
}

// CareerPatch — частичное изменение вакансии. nil — поле не меняется.
type CareerPatch struct {
	Title            *string
	Summary          *string
	About            *string
	Responsibilities *string
	Requirements     *string
	NiceToHave       *string
	Benefits         *string
	JobType          *string
	Location         *string
	Experience       *string
	SalaryRange      *string
	Deadline         *time.Time
	CompanyName      *string
	CompanyWebsite   *string
	CompanySize      *string
	CompanyFounded   *int
	ImageURL         *string
	Tags             *string
}

// CareerService — сервис вакансий.
type CareerService struct {
	store  *repository.Store
	tx     *repository.TxRunner
	cache  *CacheService[*model.Career]
	logger *slog.Logger
	now    func() time.Time
}

// NewCareerService создаёт сервис вакансий.
func NewCareerService(
	store *repository.Store,
	tx *repository.TxRunner,
	cache *CacheService[*model.Career],
	logger *slog.Logger,
) *CareerService {
	return &CareerService{
		store:  store,
		tx:     tx,
		cache:  cache,
		logger: logger.With(slog.String("component", "career_service")),
		now:    time.Now,
	}
}

func validateJobType(jobType string) error {
	if !validJobTypes[jobType] {
		return validationf("job_type: допустимые значения full_time, part_time, contract, internship")
	}
	return nil
}

func (s *CareerService) validateDeadline(deadline *time.Time) error {
	if deadline != nil && deadline.Before(s.now()) {
		return validationf("deadline не может быть в прошлом")
	}
	return nil
}

func (s *CareerService) validateFounded(year *int) error {
	if year == nil {
		return nil
	}
	if *year < minFoundedYear || *year > s.now().Year() {
		return validationf("company_founded должен быть в диапазоне %d-%d", minFoundedYear, s.now().Year())
	}
	return nil
}

// Post публикует вакансию.
//
// Поток (одна транзакция):
//  1. Профиль автора
//  2. Проверка уникальности slug
//  3. Вставка вакансии (posted_at = now)
//  4. Find-or-create тегов и привязка career_tags
func (s *CareerService) Post(ctx context.Context, actor Actor, in CareerInput) (*model.Career, error) {
	if err := validateText("title", in.Title, true, MaxTitleLength); err != nil {
		return nil, err
	}
	if err := validateText("summary", in.Summary, false, MaxSummaryLength); err != nil {
		return nil, err
	}
	if err := validateText("company_name", in.CompanyName, true, MaxTitleLength); err != nil {
		return nil, err
	}
	if in.JobType == "" {
		in.JobType = model.JobFullTime
	}
	if err := validateJobType(in.JobType); err != nil {
		return nil, err
	}
	if err := s.validateDeadline(in.Deadline); err != nil {
		return nil, err
	}
	if err := s.validateFounded(in.CompanyFounded); err != nil {
		return nil, err
	}
	if err := validateURL("company_website", in.CompanyWebsite); err != nil {
		return nil, err
	}
	if err := validateURL("image_url", in.ImageURL); err != nil {
		return nil, err
	}
	slug, err := resolveSlug(in.Slug, in.Title)
	if err != nil {
		return nil, err
	}
	tagNames, err := ParseTags(in.Tags)
	if err != nil {
		return nil, err
	}

	var career *model.Career
	err = s.tx.RunInTx(ctx, func(tx pgx.Tx) error {
		st := s.store.WithTx(tx)

		if _, _, err := ensureProfile(ctx, st, actor); err != nil {
			return err
		}
		if err := ensureSlugFree(ctx, st, careerKind, slug); err != nil {
			return err
		}

		values := repository.Values{
			"title":            strings.TrimSpace(in.Title),
			"slug":             slug,
			"summary":          in.Summary,
			"about":            in.About,
			"responsibilities": in.Responsibilities,
			"requirements":     in.Requirements,
			"nice_to_have":     in.NiceToHave,
			"benefits":         in.Benefits,
			"job_type":         in.JobType,
			"location":         in.Location,
			"experience":       in.Experience,
			"salary_range":     in.SalaryRange,
			"posted_at":        s.now().UTC(),
			"company_name":     strings.TrimSpace(in.CompanyName),
			"company_website":  optional(in.CompanyWebsite),
			"company_size":     optional(in.CompanySize),
			"company_founded":  in.CompanyFounded,
			"image_url":        optional(in.ImageURL),
			"user_id":          actor.UserID,
		}
		if in.Deadline != nil {
			values["deadline"] = in.Deadline.UTC()
		}

		id, err := st.Create(ctx, repository.TableCareers, values)
		if err != nil {
			return mapRepoError(err, "вакансия "+slug)
		}

		tags, err := ensureTags(ctx, st, tagNames)
		if err != nil {
			return err
		}
		if err := careerTagLink.replace(ctx, st, id, tagIDs(tags)); err != nil {
			return err
		}

		career, err = getContentByID[model.Career](ctx, st, careerKind, id)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Вакансия опубликована",
		slog.String("career_id", career.ID),
		slog.String("slug", career.Slug),
		slog.String("company", career.CompanyName),
		slog.String("user_id", actor.UserID),
	)
	return career, nil
}

// List возвращает вакансии, новые первыми.
func (s *CareerService) List(ctx context.Context, q ListQuery) ([]model.Career, error) {
	return listContent[model.Career](ctx, s.store, careerKind, q)
}

// Get возвращает вакансию по slug (через кэш).
func (s *CareerService) Get(ctx context.Context, slug string) (*model.Career, error) {
	if c, ok := s.cache.Get(slug); ok {
		return c, nil
	}
	epoch := s.cache.Epoch()
	c, err := getContentBySlug[model.Career](ctx, s.store, careerKind, slug)
	if err != nil {
		return nil, err
	}
	s.cache.Set(slug, c, epoch)
	return c, nil
}

// GetByID возвращает вакансию по ID.
func (s *CareerService) GetByID(ctx context.Context, id string) (*model.Career, error) {
	return getContentByID[model.Career](ctx, s.store, careerKind, id)
}

// careerPatchValues проверяет изменения и собирает значения UPDATE.
func (s *CareerService) careerPatchValues(p CareerPatch) (repository.Values, error) {
	values := repository.Values{}

	texts := []struct {
		column   string
		value    *string
		required bool
		maxLen   int
	}{
		{"title", p.Title, true, MaxTitleLength},
		{"summary", p.Summary, false, MaxSummaryLength},
		{"about", p.About, false, 0},
		{"responsibilities", p.Responsibilities, false, 0},
		{"requirements", p.Requirements, false, 0},
		{"nice_to_have", p.NiceToHave, false, 0},
		{"benefits", p.Benefits, false, 0},
		{"location", p.Location, false, 0},
		{"experience", p.Experience, false, 0},
		{"salary_range", p.SalaryRange, false, 0},
		{"company_name", p.CompanyName, true, MaxTitleLength},
	}
	for _, f := range texts {
		if f.value == nil {
			continue
		}
		if err := validateText(f.column, *f.value, f.required, f.maxLen); err != nil {
			return nil, err
		}
		values[f.column] = *f.value
	}

	if p.JobType != nil {
		if err := validateJobType(*p.JobType); err != nil {
			return nil, err
		}
		values["job_type"] = *p.JobType
	}
	if p.Deadline != nil {
		if err := s.validateDeadline(p.Deadline); err != nil {
			return nil, err
		}
		values["deadline"] = p.Deadline.UTC()
	}
	if p.CompanyFounded != nil {
		if err := s.validateFounded(p.CompanyFounded); err != nil {
			return nil, err
		}
		values["company_founded"] = *p.CompanyFounded
	}
	if p.CompanyWebsite != nil {
		if err := validateURL("company_website", p.CompanyWebsite); err != nil {
			return nil, err
		}
		values["company_website"] = nullIfEmpty(*p.CompanyWebsite)
	}
	if p.CompanySize != nil {
		values["company_size"] = nullIfEmpty(*p.CompanySize)
	}
	if p.ImageURL != nil {
		if err := validateURL("image_url", p.ImageURL); err != nil {
			return nil, err
		}
		values["image_url"] = nullIfEmpty(*p.ImageURL)
	}
	return values, nil
}

// Update изменяет вакансию. Доступно автору и модератору.
func (s *CareerService) Update(ctx context.Context, actor Actor, id string, p CareerPatch) (*model.Career, error) {
	values, err := s.careerPatchValues(p)
	if err != nil {
		return nil, err
	}
	var tagNames []string
	if p.Tags != nil {
		if tagNames, err = ParseTags(*p.Tags); err != nil {
			return nil, err
		}
	}
	if len(values) == 0 && p.Tags == nil {
		return nil, validationf("нет полей для изменения")
	}

	var career *model.Career
	var slug string
	err = s.tx.RunInTx(ctx, func(tx pgx.Tx) error {
		st := s.store.WithTx(tx)

		o, err := authorize(ctx, st, careerKind, id, actor)
		if err != nil {
			return err
		}
		slug = o.Slug

		if len(values) > 0 {
			if err := st.Update(ctx, repository.TableCareers, id, values); err != nil {
				return mapRepoError(err, "вакансия "+id)
			}
		}
		if p.Tags != nil {
			tags, err := ensureTags(ctx, st, tagNames)
			if err != nil {
				return err
			}
			if err := careerTagLink.replace(ctx, st, id, tagIDs(tags)); err != nil {
				return err
			}
		}

		career, err = getContentByID[model.Career](ctx, st, careerKind, id)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.cache.Delete(slug)
	s.logger.Info("Вакансия изменена", slog.String("career_id", id), slog.String("user_id", actor.UserID))
	return career, nil
}

// Delete удаляет вакансию. Доступно автору и модератору.
func (s *CareerService) Delete(ctx context.Context, actor Actor, id string) error {
	o, err := deleteContent(ctx, s.store, careerKind, id, actor)
	if err != nil {
		return err
	}
	s.cache.Delete(o.Slug)
	s.logger.Info("Вакансия удалена", slog.String("career_id", id), slog.String("user_id", actor.UserID))
	return nil
}
