// guides.go — сервис гайдов: публикация, чтение, изменение, удаление.
package service

import (
	"context"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/jackc/pgx/v5"

	"github.com/bigkaa/blockhood/internal/domain/model"
	"github.com/bigkaa/blockhood/internal/repository"
)

// Ограничения полей публикаций.
const (
	MaxTitleLength   = 200
	MaxSummaryLength = 500
)

var validLevels = map[string]bool{
	model.LevelBeginner:     true,
	model.LevelIntermediate: true,
	model.LevelAdvanced:     true,
}

// GuideInput — данные формы публикации гайда.
type GuideInput struct {
	Title string
	// Slug — явный slug; пусто — строится из Title
	Slug     string
	Summary  string
	Content  string
	Level    string
	Duration string
	ImageURL *string
	// Tags — теги через запятую
	Tags string
}

// GuidePatch — частичное изменение гайда. nil — поле не меняется.
type GuidePatch struct {
	Title    *string
	Summary  *string
	Content  *string
	Level    *string
	Duration *string
	ImageURL *string
	Tags     *string
}

// GuideService — сервис гайдов.
type GuideService struct {
	store  *repository.Store
	tx     *repository.TxRunner
	cache  *CacheService[*model.Guide]
	logger *slog.Logger
}

// NewGuideService создаёт сервис гайдов.
func NewGuideService(
	store *repository.Store,
	tx *repository.TxRunner,
	cache *CacheService[*model.Guide],
	logger *slog.Logger,
) *GuideService {
	return &GuideService{
		store:  store,
		tx:     tx,
		cache:  cache,
		logger: logger.With(slog.String("component", "guide_service")),
	}
}

// validateText проверяет обязательное текстовое поле и его длину.
func validateText(field, value string, required bool, maxLen int) error {
	if required && strings.TrimSpace(value) == "" {
		return validationf("поле %s обязательно", field)
	}
	if maxLen > 0 && utf8.RuneCountInString(value) > maxLen {
		return validationf("поле %s длиннее %d символов", field, maxLen)
	}
	return nil
}

func validateLevel(level string) error {
	if !validLevels[level] {
		return validationf("level: допустимые значения beginner, intermediate, advanced")
	}
	return nil
}

// Submit публикует гайд.
//
// Поток (одна транзакция):
//  1. Профиль автора (find-or-create)
//  2. Проверка уникальности slug
//  3. Вставка гайда
//  4. Find-or-create тегов и привязка guide_tags
//  5. Повторное чтение со связями
func (s *GuideService) Submit(ctx context.Context, actor Actor, in GuideInput) (*model.Guide, error) {
	if err := validateText("title", in.Title, true, MaxTitleLength); err != nil {
		return nil, err
	}
	if err := validateText("summary", in.Summary, true, MaxSummaryLength); err != nil {
		return nil, err
	}
	if err := validateText("content", in.Content, true, 0); err != nil {
		return nil, err
	}
	if in.Level == "" {
		in.Level = model.LevelBeginner
	}
	if err := validateLevel(in.Level); err != nil {
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

	var guide *model.Guide
	err = s.tx.RunInTx(ctx, func(tx pgx.Tx) error {
		st := s.store.WithTx(tx)

		if _, _, err := ensureProfile(ctx, st, actor); err != nil {
			return err
		}
		if err := ensureSlugFree(ctx, st, guideKind, slug); err != nil {
			return err
		}

		id, err := st.Create(ctx, repository.TableGuides, repository.Values{
			"title":     strings.TrimSpace(in.Title),
			"slug":      slug,
			"summary":   in.Summary,
			"content":   in.Content,
			"level":     in.Level,
			"duration":  in.Duration,
			"image_url": optional(in.ImageURL),
			"user_id":   actor.UserID,
		})
		if err != nil {
			return mapRepoError(err, "гайд "+slug)
		}

		tags, err := ensureTags(ctx, st, tagNames)
		if err != nil {
			return err
		}
		if err := guideTagLink.replace(ctx, st, id, tagIDs(tags)); err != nil {
			return err
		}

		guide, err = getContentByID[model.Guide](ctx, st, guideKind, id)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Гайд опубликован",
		slog.String("guide_id", guide.ID),
		slog.String("slug", guide.Slug),
		slog.String("user_id", actor.UserID),
		slog.Int("tags", len(guide.Tags)),
	)
	return guide, nil
}

// List возвращает гайды, новые первыми.
func (s *GuideService) List(ctx context.Context, q ListQuery) ([]model.Guide, error) {
	return listContent[model.Guide](ctx, s.store, guideKind, q)
}

// Get возвращает гайд по slug (через кэш).
func (s *GuideService) Get(ctx context.Context, slug string) (*model.Guide, error) {
	if g, ok := s.cache.Get(slug); ok {
		return g, nil
	}
	epoch := s.cache.Epoch()
	g, err := getContentBySlug[model.Guide](ctx, s.store, guideKind, slug)
	if err != nil {
		return nil, err
	}
	s.cache.Set(slug, g, epoch)
	return g, nil
}

// GetByID возвращает гайд по ID.
func (s *GuideService) GetByID(ctx context.Context, id string) (*model.Guide, error) {
	return getContentByID[model.Guide](ctx, s.store, guideKind, id)
}

// Update изменяет гайд. Доступно автору и модератору. Slug не меняется.
func (s *GuideService) Update(ctx context.Context, actor Actor, id string, p GuidePatch) (*model.Guide, error) {
	values := repository.Values{}
	if p.Title != nil {
		if err := validateText("title", *p.Title, true, MaxTitleLength); err != nil {
			return nil, err
		}
		values["title"] = strings.TrimSpace(*p.Title)
	}
	if p.Summary != nil {
		if err := validateText("summary", *p.Summary, true, MaxSummaryLength); err != nil {
			return nil, err
		}
		values["summary"] = *p.Summary
	}
	if p.Content != nil {
		if err := validateText("content", *p.Content, true, 0); err != nil {
			return nil, err
		}
		values["content"] = *p.Content
	}
	if p.Level != nil {
		if err := validateLevel(*p.Level); err != nil {
			return nil, err
		}
		values["level"] = *p.Level
	}
	if p.Duration != nil {
		values["duration"] = *p.Duration
	}
	if p.ImageURL != nil {
		if err := validateURL("image_url", p.ImageURL); err != nil {
			return nil, err
		}
		values["image_url"] = nullIfEmpty(*p.ImageURL)
	}
	var tagNames []string
	if p.Tags != nil {
		var err error
		if tagNames, err = ParseTags(*p.Tags); err != nil {
			return nil, err
		}
	}
	if len(values) == 0 && p.Tags == nil {
		return nil, validationf("нет полей для изменения")
	}

	var guide *model.Guide
	var slug string
	err := s.tx.RunInTx(ctx, func(tx pgx.Tx) error {
		st := s.store.WithTx(tx)

		o, err := authorize(ctx, st, guideKind, id, actor)
		if err != nil {
			return err
		}
		slug = o.Slug

		if len(values) > 0 {
			if err := st.Update(ctx, repository.TableGuides, id, values); err != nil {
				return mapRepoError(err, "гайд "+id)
			}
		}
		if p.Tags != nil {
			tags, err := ensureTags(ctx, st, tagNames)
			if err != nil {
				return err
			}
			if err := guideTagLink.replace(ctx, st, id, tagIDs(tags)); err != nil {
				return err
			}
		}

		guide, err = getContentByID[model.Guide](ctx, st, guideKind, id)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.cache.Delete(slug)
	s.logger.Info("Гайд изменён", slog.String("guide_id", id), slog.String("user_id", actor.UserID))
	return guide, nil
}

// Delete удаляет гайд. Доступно автору и модератору.
func (s *GuideService) Delete(ctx context.Context, actor Actor, id string) error {
	o, err := deleteContent(ctx, s.store, guideKind, id, actor)
	if err != nil {
		return err
	}
	s.cache.Delete(o.Slug)
	s.logger.Info("Гайд удалён", slog.String("guide_id", id), slog.String("user_id", actor.UserID))
	return nil
}

// nullIfEmpty — пустая строка сохраняется как NULL.
func nullIfEmpty(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

// optional — как nullIfEmpty для необязательного поля формы.
func optional(p *string) *string {
	if p == nil {
		return nil
	}
	return nullIfEmpty(*p)
}
