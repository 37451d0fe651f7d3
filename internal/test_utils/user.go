package test_utils

import (
	"context"
	"time"

	"github.com/klokku/daybook/pkg/user"
)

// TestUser is the fixture user the package tests run as.
func TestUser() user.User {
	return user.User{
		Id:          1,
		Uid:         "test-user-uid",
		Username:    "test_user",
		DisplayName: "Test User",
		Settings: user.Settings{
			Timezone:     "Europe/Warsaw",
			WeekFirstDay: time.Monday,
		},
	}
}

// TestUserContext returns ctx carrying TestUser, optionally with another timezone.
func TestUserContext(ctx context.Context, timezone string) context.Context {
	u := TestUser()
	if timezone != "" {
		u.Settings.Timezone = timezone
	}
	return user.WithUser(ctx, u)
}
