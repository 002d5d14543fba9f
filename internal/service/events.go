// events.go — сервис событий: создание, чтение, изменение, удаление, запись участников.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/bigkaa/blockhood/internal/domain/model"
	"github.com/bigkaa/blockhood/internal/repository"
)

// EventInput — данные формы создания события.
type EventInput struct {
	Title       string
	Slug        string
	Summary     string
	Description string
	StartTime   time.Time
	EndTime     time.Time
	Location    string
	// LocationType — in_person (по умолчанию) или virtual
	LocationType string
	// Platform — площадка онлайн-события (Zoom, Meet...)
	Platform string
	Capacity *int
	ImageURL *string
	// TagIDs — выбранные существующие теги
	TagIDs []string
}

// EventPatch — частичное изменение события. nil — поле не меняется.
type EventPatch struct {
	Title        *string
	Summary      *string
	Description  *string
	StartTime    *time.Time
	EndTime      *time.Time
	Location     *string
	LocationType *string
	Platform     *string
	Capacity     *int
	ImageURL     *string
	TagIDs       *[]string
}

// EventService — сервис событий.
type EventService struct {
	store  *repository.Store
	tx     *repository.TxRunner
	cache  *CacheService[*model.Event]
	logger *slog.Logger
	now    func() time.Time
}

// NewEventService создаёт сервис событий.
func NewEventService(
	store *repository.Store,
	tx *repository.TxRunner,
	cache *CacheService[*model.Event],
	logger *slog.Logger,
) *EventService {
	return &EventService{
		store:  store,
		tx:     tx,
		cache:  cache,
		logger: logger.With(slog.String("component", "event_service")),
		now:    time.Now,
	}
}

// eventPlace — итоговые location/location_type/platform после правил формы.
type eventPlace struct {
	location     string
	locationType string
	platform     *string
}

// resolvePlace применяет правила места проведения:
// платформа сохраняется только для онлайн-событий, а пустой адрес
// онлайн-события заменяется платформой.
func resolvePlace(location, locationType, platform string) (eventPlace, error) {
	location = strings.TrimSpace(location)
	platform = strings.TrimSpace(platform)
	if locationType == "" {
		locationType = model.LocationInPerson
	}

	switch locationType {
	case model.LocationVirtual:
		if platform == "" {
			return eventPlace{}, validationf("platform обязательна для онлайн-события")
		}
		if location == "" {
			location = platform
		}
		return eventPlace{location: location, locationType: locationType, platform: &platform}, nil
	case model.LocationInPerson:
		if location == "" {
			return eventPlace{}, validationf("location обязателен для очного события")
		}
		return eventPlace{location: location, locationType: locationType}, nil
	default:
		return eventPlace{}, validationf("location_type: допустимые значения in_person, virtual")
	}
}

func validateSchedule(start, end time.Time) error {
	if start.IsZero() || end.IsZero() {
		return validationf("start_time и end_time обязательны")
	}
	if !end.After(start) {
		return validationf("end_time должен быть позже start_time")
	}
	return nil
}

func validateCapacity(capacity *int) error {
	if capacity != nil && *capacity < 1 {
		return validationf("capacity должна быть не меньше 1")
	}
	return nil
}

// normalizeTagIDs проверяет UUID и удаляет дубликаты.
func normalizeTagIDs(ids []string) ([]string, error) {
	if len(ids) > MaxTags {
		return nil, validationf("не более %d тегов, передано %d", MaxTags, len(ids))
	}
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		parsed, err := uuid.Parse(strings.TrimSpace(id))
		if err != nil {
			return nil, validationf("tag_ids: %q не является UUID", id)
		}
		key := parsed.String()
		if !seen[key] {
			seen[key] = true
			out = append(out, key)
		}
	}
	return out, nil
}

// Create создаёт событие.
//
// Поток (одна транзакция):
//  1. Профиль автора
//  2. Проверка уникальности slug
//  3. Вставка события (attendees_count = 0)
//  4. Привязка выбранных тегов event_tags
func (s *EventService) Create(ctx context.Context, actor Actor, in EventInput) (*model.Event, error) {
	if err := validateText("title", in.Title, true, MaxTitleLength); err != nil {
		return nil, err
	}
	if err := validateText("summary", in.Summary, false, MaxSummaryLength); err != nil {
		return nil, err
	}
	if err := validateSchedule(in.StartTime, in.EndTime); err != nil {
		return nil, err
	}
	place, err := resolvePlace(in.Location, in.LocationType, in.Platform)
	if err != nil {
		return nil, err
	}
	if err := validateCapacity(in.Capacity); err != nil {
		return nil, err
	}
	if err := validateURL("image_url", in.ImageURL); err != nil {
		return nil, err
	}
	tags, err := normalizeTagIDs(in.TagIDs)
	if err != nil {
		return nil, err
	}
	slug, err := resolveSlug(in.Slug, in.Title)
	if err != nil {
		return nil, err
	}

	var event *model.Event
	err = s.tx.RunInTx(ctx, func(tx pgx.Tx) error {
		st := s.store.WithTx(tx)

		if _, _, err := ensureProfile(ctx, st, actor); err != nil {
			return err
		}
		if err := ensureSlugFree(ctx, st, eventKind, slug); err != nil {
			return err
		}

		id, err := st.Create(ctx, repository.TableEvents, repository.Values{
			"title":           strings.TrimSpace(in.Title),
			"slug":            slug,
			"summary":         in.Summary,
			"description":     in.Description,
			"start_time":      in.StartTime.UTC(),
			"end_time":        in.EndTime.UTC(),
			"location":        place.location,
			"location_type":   place.locationType,
			"platform":        place.platform,
			"capacity":        in.Capacity,
			"attendees_count": 0,
			"image_url":       optional(in.ImageURL),
			"user_id":         actor.UserID,
		})
		if err != nil {
			return mapRepoError(err, "событие "+slug)
		}

		if err := eventTagLink.replace(ctx, st, id, tags); err != nil {
			return err
		}

		event, err = getContentByID[model.Event](ctx, st, eventKind, id)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Событие создано",
		slog.String("event_id", event.ID),
		slog.String("slug", event.Slug),
		slog.String("user_id", actor.UserID),
	)
	return event, nil
}

// List возвращает события, новые первыми.
func (s *EventService) List(ctx context.Context, q ListQuery) ([]model.Event, error) {
	return listContent[model.Event](ctx, s.store, eventKind, q)
}

// Get возвращает событие по slug (через кэш).
func (s *EventService) Get(ctx context.Context, slug string) (*model.Event, error) {
	if e, ok := s.cache.Get(slug); ok {
		return e, nil
	}
	epoch := s.cache.Epoch()
	e, err := getContentBySlug[model.Event](ctx, s.store, eventKind, slug)
	if err != nil {
		return nil, err
	}
	s.cache.Set(slug, e, epoch)
	return e, nil
}

// GetByID возвращает событие по ID.
func (s *EventService) GetByID(ctx context.Context, id string) (*model.Event, error) {
	return getContentByID[model.Event](ctx, s.store, eventKind, id)
}

// Update изменяет событие. Правила места и расписания проверяются
// на итоговых значениях (текущие + изменённые).
func (s *EventService) Update(ctx context.Context, actor Actor, id string, p EventPatch) (*model.Event, error) {
	if p.Title != nil {
		if err := validateText("title", *p.Title, true, MaxTitleLength); err != nil {
			return nil, err
		}
	}
	if p.Summary != nil {
		if err := validateText("summary", *p.Summary, false, MaxSummaryLength); err != nil {
			return nil, err
		}
	}
	if err := validateCapacity(p.Capacity); err != nil {
		return nil, err
	}
	if err := validateURL("image_url", p.ImageURL); err != nil {
		return nil, err
	}
	var tags []string
	if p.TagIDs != nil {
		var err error
		if tags, err = normalizeTagIDs(*p.TagIDs); err != nil {
			return nil, err
		}
	}

	var event *model.Event
	var slug string
	err := s.tx.RunInTx(ctx, func(tx pgx.Tx) error {
		st := s.store.WithTx(tx)

		o, err := authorize(ctx, st, eventKind, id, actor)
		if err != nil {
			return err
		}
		slug = o.Slug

		cur, err := repository.GetByID[model.Event](ctx, st, repository.TableEvents, id, "")
		if err != nil {
			return mapRepoError(err, "событие "+id)
		}

		values, err := eventPatchValues(cur, p)
		if err != nil {
			return err
		}
		if len(values) == 0 && p.TagIDs == nil {
			return validationf("нет полей для изменения")
		}
		if len(values) > 0 {
			if err := st.Update(ctx, repository.TableEvents, id, values); err != nil {
				return mapRepoError(err, "событие "+id)
			}
		}
		if p.TagIDs != nil {
			if err := eventTagLink.replace(ctx, st, id, tags); err != nil {
				return err
			}
		}

		event, err = getContentByID[model.Event](ctx, st, eventKind, id)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.cache.Delete(slug)
	s.logger.Info("Событие изменено", slog.String("event_id", id), slog.String("user_id", actor.UserID))
	return event, nil
}

// eventPatchValues собирает значения UPDATE и проверяет итоговое состояние события.
func eventPatchValues(cur *model.Event, p EventPatch) (repository.Values, error) {
	values := repository.Values{}
	if p.Title != nil {
		values["title"] = strings.TrimSpace(*p.Title)
	}
	if p.Summary != nil {
		values["summary"] = *p.Summary
	}
	if p.Description != nil {
		values["description"] = *p.Description
	}
	if p.ImageURL != nil {
		values["image_url"] = nullIfEmpty(*p.ImageURL)
	}

	start, end := cur.StartTime, cur.EndTime
	if p.StartTime != nil {
		start = *p.StartTime
	}
	if p.EndTime != nil {
		end = *p.EndTime
	}
	if p.StartTime != nil || p.EndTime != nil {
		if err := validateSchedule(start, end); err != nil {
			return nil, err
		}
		values["start_time"] = start.UTC()
		values["end_time"] = end.UTC()
	}

	if p.Location != nil || p.LocationType != nil || p.Platform != nil {
		location, locationType, platform := cur.Location, cur.LocationType, ""
		if cur.Platform != nil {
			platform = *cur.Platform
		}
		if p.Location != nil {
			location = *p.Location
		}
		if p.LocationType != nil {
			locationType = *p.LocationType
		}
		if p.Platform != nil {
			platform = *p.Platform
		}
		// Адрес, подставленный из платформы, меняется вместе с платформой
		if p.Location == nil && cur.Platform != nil && cur.Location == *cur.Platform {
			location = ""
		}
		place, err := resolvePlace(location, locationType, platform)
		if err != nil {
			return nil, err
		}
		values["location"] = place.location
		values["location_type"] = place.locationType
		values["platform"] = place.platform
	}

	if p.Capacity != nil {
		if *p.Capacity < cur.AttendeesCount {
			return nil, validationf("capacity %d меньше числа участников %d", *p.Capacity, cur.AttendeesCount)
		}
		values["capacity"] = *p.Capacity
	}
	return values, nil
}

// Delete удаляет событие. Доступно автору и модератору.
func (s *EventService) Delete(ctx context.Context, actor Actor, id string) error {
	o, err := deleteContent(ctx, s.store, eventKind, id, actor)
	if err != nil {
		return err
	}
	s.cache.Delete(o.Slug)
	s.logger.Info("Событие удалено", slog.String("event_id", id), slog.String("user_id", actor.UserID))
	return nil
}

// Register записывает actor на событие и увеличивает attendees_count.
// Повторная запись — ErrConflict, нет мест — ErrCapacityReached,
// завершившееся событие — ErrValidation.
func (s *EventService) Register(ctx context.Context, actor Actor, eventID string) (*model.Event, error) {
	var event *model.Event
	err := s.tx.RunInTx(ctx, func(tx pgx.Tx) error {
		st := s.store.WithTx(tx)

		if _, _, err := ensureProfile(ctx, st, actor); err != nil {
			return err
		}
		cur, err := repository.GetByID[model.Event](ctx, st, repository.TableEvents, eventID, "")
		if err != nil {
			return mapRepoError(err, "событие "+eventID)
		}
		if !cur.EndTime.After(s.now()) {
			return validationf("событие уже завершилось")
		}

		if _, err := st.Create(ctx, repository.TableEventRegistrations, repository.Values{
			"event_id": eventID,
			"user_id":  actor.UserID,
		}); err != nil {
			if errors.Is(err, repository.ErrConflict) {
				return fmt.Errorf("%w: пользователь уже записан на событие", ErrConflict)
			}
			return mapRepoError(err, "запись на событие")
		}
		if _, err := st.AdjustAttendees(ctx, eventID, 1); err != nil {
			return mapRepoError(err, "событие "+eventID)
		}

		event, err = getContentByID[model.Event](ctx, st, eventKind, eventID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.cache.Delete(event.Slug)
	s.logger.Info("Участник записан на событие",
		slog.String("event_id", eventID),
		slog.String("user_id", actor.UserID),
		slog.Int("attendees", event.AttendeesCount),
	)
	return event, nil
}

// Unregister отменяет запись actor на событие.
func (s *EventService) Unregister(ctx context.Context, actor Actor, eventID string) (*model.Event, error) {
	if err := actor.validate(); err != nil {
		return nil, err
	}
	if _, err := uuid.Parse(eventID); err != nil {
		return nil, fmt.Errorf("%w: событие %s", ErrNotFound, eventID)
	}

	var event *model.Event
	err := s.tx.RunInTx(ctx, func(tx pgx.Tx) error {
		st := s.store.WithTx(tx)

		n, err := st.RemoveWhere(ctx, repository.TableEventRegistrations, repository.Values{
			"event_id": eventID,
			"user_id":  actor.UserID,
		})
		if err != nil {
			return mapRepoError(err, "запись на событие")
		}
		if n == 0 {
			return fmt.Errorf("%w: запись на событие не найдена", ErrNotFound)
		}
		if _, err := st.AdjustAttendees(ctx, eventID, -1); err != nil {
			return mapRepoError(err, "событие "+eventID)
		}

		event, err = getContentByID[model.Event](ctx, st, eventKind, eventID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.cache.Delete(event.Slug)
	s.logger.Info("Запись на событие отменена",
		slog.String("event_id", eventID),
		slog.String("user_id", actor.UserID),
	)
	return event, nil
}

// Registered проверяет, записан ли actor на событие.
func (s *EventService) Registered(ctx context.Context, actor Actor, eventID string) (bool, error) {
	if err := actor.validate(); err != nil {
		return false, err
	}
	if _, err := uuid.Parse(eventID); err != nil {
		return false, nil
	}
	regs, err := repository.List[model.EventRegistration](ctx, s.store, repository.TableEventRegistrations, "",
		repository.ListOptions{Match: map[string]any{"event_id": eventID, "user_id": actor.UserID}, Limit: 1})
	if err != nil {
		return false, err
	}
	return len(regs) > 0, nil
}
