// users.go — профили пользователей.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/bigkaa/blockhood/internal/domain/model"
	"github.com/bigkaa/blockhood/internal/repository"
)

// UserService — профили пользователей.
type UserService struct {
	store  *repository.Store
	logger *slog.Logger
}

// NewUserService создаёт сервис пользователей.
func NewUserService(store *repository.Store, logger *slog.Logger) *UserService {
	return &UserService{
		store:  store,
		logger: logger.With(slog.String("component", "user_service")),
	}
}

// Ensure возвращает профиль пользователя, создавая его при первом обращении.
// full_name берётся из токена, а если он пуст — email.
func (s *UserService) Ensure(ctx context.Context, actor Actor) (*model.User, error) {
	user, created, err := ensureProfile(ctx, s.store, actor)
	if err != nil {
		return nil, err
	}
	if created {
		s.logger.Info("Создан профиль пользователя",
			slog.String("user_id", user.ID),
			slog.String("email", user.Email),
		)
	}
	return user, nil
}

// Get возвращает профиль по ID.
func (s *UserService) Get(ctx context.Context, id string) (*model.User, error) {
	user, err := repository.GetByID[model.User](ctx, s.store, repository.TableUsers, id, "")
	if err != nil {
		return nil, mapRepoError(err, "пользователь "+id)
	}
	return user, nil
}

// ensureProfile — find-or-create профиля внутри st (пул или транзакция).
func ensureProfile(ctx context.Context, st *repository.Store, actor Actor) (*model.User, bool, error) {
	if err := actor.validate(); err != nil {
		return nil, false, err
	}

	user, err := repository.GetByID[model.User](ctx, st, repository.TableUsers, actor.UserID, "")
	if err == nil {
		return user, false, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, false, fmt.Errorf("поиск профиля: %w", err)
	}

	fullName := actor.FullName
	if fullName == "" {
		fullName = actor.Email
	}

	err = st.Savepoint(ctx, func(sp *repository.Store) error {
		_, cerr := sp.Create(ctx, repository.TableUsers, repository.Values{
			"id":        actor.UserID,
			"email":     actor.Email,
			"full_name": fullName,
		})
		return cerr
	})
	created := err == nil
	if err != nil && !errors.Is(err, repository.ErrConflict) {
		return nil, false, mapRepoError(err, "профиль пользователя")
	}

	user, err = repository.GetByID[model.User](ctx, st, repository.TableUsers, actor.UserID, "")
	if err != nil {
		return nil, false, fmt.Errorf("чтение профиля: %w", err)
	}
	return user, created, nil
}
