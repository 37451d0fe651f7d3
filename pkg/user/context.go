package user

import (
	"context"
	"errors"

	log "github.com/sirupsen/logrus"
)

type userKey struct{}

// ErrNoUser is returned when a request context carries no user.
var ErrNoUser = errors.New("no user in context")

// WithUser returns a copy of ctx carrying u. Every per-user service reads it back with
// CurrentUser or CurrentId.
func WithUser(ctx context.Context, u User) context.Context {
	return context.WithValue(ctx, userKey{}, u)
}

func CurrentUser(ctx context.Context) (User, error) {
	u, ok := ctx.Value(userKey{}).(User)
	if !ok {
		log.Trace("no user in context")
		return User{}, ErrNoUser
	}
	return u, nil
}

func CurrentId(ctx context.Context) (int, error) {
	u, err := CurrentUser(ctx)
	if err != nil {
		return 0, err
	}
	return u.Id, nil
}
