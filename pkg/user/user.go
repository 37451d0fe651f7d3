package user

import (
	"errors"
	"time"
)

var ErrUserNotFound = errors.New("user not found")
var ErrUserDataInvalid = errors.New("invalid user data")

type User struct {
	Id          int
	Uid         string
	Username    string
	DisplayName string
	Settings    Settings
}

type Settings struct {
	// Timezone is the home zone routines are anchored in.
	Timezone string
	// DisplayTimezone is the zone views are rendered in; empty means Timezone.
	DisplayTimezone string
	WeekFirstDay    time.Weekday
}

// ViewZone returns the zone the user's views are rendered in.
func (s Settings) ViewZone() string {
	if s.DisplayTimezone != "" {
		return s.DisplayTimezone
	}
	return s.Timezone
}
