package user

import (
	"context"
	"fmt"
	"strings"

	"github.com/klokku/daybook/pkg/timeutil"
)

type Service interface {
	GetCurrentUser(ctx context.Context) (User, error)
	CreateUser(ctx context.Context, user User) (User, error)
	GetUser(ctx context.Context, id int) (User, error)
	GetUserByUid(ctx context.Context, uid string) (User, error)
	UpdateUser(ctx context.Context, user User) (User, error)
	GetAllUsers(ctx context.Context) ([]User, error)
}

type UserServiceImpl struct {
	repo            Repo
	defaultTimezone string
}

func NewUserService(repo Repo, defaultTimezone string) *UserServiceImpl {
	return &UserServiceImpl{repo: repo, defaultTimezone: defaultTimezone}
}

func (u *UserServiceImpl) GetCurrentUser(ctx context.Context) (User, error) {
	userId, err := CurrentId(ctx)
	if err != nil {
		return User{}, fmt.Errorf("failed to get current user: %w", err)
	}
	return u.GetUser(ctx, userId)
}

func (u *UserServiceImpl) CreateUser(ctx context.Context, user User) (User, error) {
	if strings.TrimSpace(user.Username) == "" {
		return User{}, fmt.Errorf("%w: username is required", ErrUserDataInvalid)
	}
	if user.Settings.Timezone == "" {
		user.Settings.Timezone = u.defaultTimezone
	}
	if err := validateSettings(user.Settings); err != nil {
		return User{}, err
	}
	id, err := u.repo.CreateUser(ctx, user)
	if err != nil {
		return User{}, err
	}
	user.Id = id
	return user, nil
}

func (u *UserServiceImpl) GetUser(ctx context.Context, id int) (User, error) {
	return u.repo.GetUser(ctx, id)
}

func (u *UserServiceImpl) GetUserByUid(ctx context.Context, uid string) (User, error) {
	return u.repo.GetUserByUid(ctx, uid)
}

func (u *UserServiceImpl) UpdateUser(ctx context.Context, user User) (User, error) {
	userId, err := CurrentId(ctx)
	if err != nil {
		return User{}, fmt.Errorf("failed to get current user: %w", err)
	}
	if err := validateSettings(user.Settings); err != nil {
		return User{}, err
	}
	return u.repo.UpdateUser(ctx, userId, user)
}

func (u *UserServiceImpl) GetAllUsers(ctx context.Context) ([]User, error) {
	return u.repo.GetAllUsers(ctx)
}

func validateSettings(settings Settings) error {
	if _, err := timeutil.LoadZone(settings.Timezone); err != nil {
		return fmt.Errorf("%w: %v", ErrUserDataInvalid, err)
	}
	if settings.DisplayTimezone != "" {
		if _, err := timeutil.LoadZone(settings.DisplayTimezone); err != nil {
			return fmt.Errorf("%w: display %v", ErrUserDataInvalid, err)
		}
	}
	return nil
}
