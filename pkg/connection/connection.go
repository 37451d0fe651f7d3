package connection

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"golang.org/x/oauth2"
)

var (
	ErrConnectionNotFound = errors.New("calendar connection not found")
	ErrInvalidConnection  = errors.New("invalid calendar connection")
)

type Provider string

const (
	ProviderGoogle  Provider = "google"
	ProviderOutlook Provider = "outlook"
	ProviderApple   Provider = "apple"
)

func ParseProvider(s string) (Provider, error) {
	switch p := Provider(strings.ToLower(strings.TrimSpace(s))); p {
	case ProviderGoogle, ProviderOutlook, ProviderApple:
		return p, nil
	}
	return "", fmt.Errorf("%w: unknown provider %q", ErrInvalidConnection, s)
}

// Connection is one external calendar a user has connected. Google and Outlook
// connections carry an OAuth token, Apple connections CalDAV credentials.
type Connection struct {
	Id           int
	Provider     Provider
	CalendarId   string
	CalendarName string
	// CalendarURL is the CalDAV collection URL of Apple connections.
	CalendarURL string
	Username    string
	Password    string
	Token       *oauth2.Token
	Enabled     bool
}

func (c Connection) Validate() error {
	if _, err := ParseProvider(string(c.Provider)); err != nil {
		return err
	}
	switch c.Provider {
	case ProviderApple:
		u, err := url.Parse(c.CalendarURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("%w: apple connection needs an absolute calendar URL", ErrInvalidConnection)
		}
		if c.Username == "" {
			return fmt.Errorf("%w: apple connection needs a username", ErrInvalidConnection)
		}
	default:
		if c.Token == nil || (c.Token.AccessToken == "" && c.Token.RefreshToken == "") {
			return fmt.Errorf("%w: %s connection needs an OAuth token", ErrInvalidConnection, c.Provider)
		}
	}
	return nil
}

// DisplayName is the name used in adapter names and event provenance.
func (c Connection) DisplayName() string {
	if c.CalendarName != "" {
		return c.CalendarName
	}
	if c.CalendarId != "" {
		return c.CalendarId
	}
	return string(c.Provider)
}
