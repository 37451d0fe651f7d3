package connection

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/klokku/daybook/pkg/calendar"
	"github.com/klokku/daybook/pkg/user"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

type builderStub struct {
	fail map[int]error
}

func (b builderStub) Build(ctx context.Context, userId int, c Connection) (calendar.Adapter, error) {
	if err, ok := b.fail[c.Id]; ok {
		return nil, err
	}
	return calendar.AdapterFunc{
		AdapterName: string(c.Provider) + ":" + c.DisplayName(),
		Source:      calendar.SourceType(c.Provider),
		FetchFunc: func(ctx context.Context, r calendar.TimeRange) ([]calendar.CanonicalEvent, error) {
			return nil, nil
		},
	}, nil
}

var nativeAdapter = calendar.AdapterFunc{
	AdapterName: "native",
	Source:      calendar.SourceNative,
	FetchFunc: func(ctx context.Context, r calendar.TimeRange) ([]calendar.CanonicalEvent, error) {
		return nil, nil
	},
}

func googleConnection(name string, enabled bool) Connection {
	return Connection{
		Provider:     ProviderGoogle,
		CalendarId:   name + "@group.calendar.google.com",
		CalendarName: name,
		Token:        &oauth2.Token{AccessToken: "a", RefreshToken: "r"},
		Enabled:      enabled,
	}
}

func setupService(t *testing.T, builder AdapterBuilder) (context.Context, *Service, *RepositoryStub) {
	repo := NewRepositoryStub()
	t.Cleanup(repo.Reset)
	ctx := user.WithUser(context.Background(), user.User{Id: 7})
	return ctx, NewService(repo, builder, nativeAdapter), repo
}

func TestService_ActiveAdapters(t *testing.T) {
	t.Run("native comes first and disabled connections are skipped", func(t *testing.T) {
		// given
		ctx, service, _ := setupService(t, builderStub{})
		_, err := service.StoreConnection(ctx, googleConnection("work", true))
		require.NoError(t, err)
		_, err = service.StoreConnection(ctx, googleConnection("old", false))
		require.NoError(t, err)
		_, err = service.StoreConnection(ctx, Connection{
			Provider: ProviderApple, CalendarURL: "https://caldav.icloud.com/1/calendars/home/", Username: "jane", Enabled: true,
		})
		require.NoError(t, err)

		// when
		adapters, err := service.ActiveAdapters(ctx)

		// then
		require.NoError(t, err)
		require.Len(t, adapters, 3)
		assert.Equal(t, "native", adapters[0].Name())
		assert.Equal(t, "google:work", adapters[1].Name())
		assert.Equal(t, calendar.SourceApple, adapters[2].SourceType())
	})

	t.Run("connection that cannot be built becomes an unavailable adapter", func(t *testing.T) {
		// given
		ctx, service, _ := setupService(t, builderStub{fail: map[int]error{1: errors.New("no client id")}})
		_, err := service.StoreConnection(ctx, googleConnection("work", true))
		require.NoError(t, err)

		// when
		adapters, err := service.ActiveAdapters(ctx)

		// then
		require.NoError(t, err)
		require.Len(t, adapters, 2)
		_, err = adapters[1].Fetch(ctx, calendar.TimeRange{})
		assert.ErrorIs(t, err, calendar.ErrAdapterUnavailable)
		assert.ErrorContains(t, err, "no client id")
	})

	t.Run("requires a user in context", func(t *testing.T) {
		_, service, _ := setupService(t, builderStub{})

		_, err := service.ActiveAdapters(context.Background())

		assert.ErrorIs(t, err, user.ErrNoUser)
	})
}

func TestService_StoreConnection_Validation(t *testing.T) {
	tests := []struct {
		name       string
		connection Connection
	}{
		{"unknown provider", Connection{Provider: "yahoo"}},
		{"google without token", Connection{Provider: ProviderGoogle}},
		{"apple without url", Connection{Provider: ProviderApple, Username: "jane"}},
		{"apple without username", Connection{Provider: ProviderApple, CalendarURL: "https://caldav.example.com/cal/"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx, service, repo := setupService(t, builderStub{})

			_, err := service.StoreConnection(ctx, tt.connection)

			assert.ErrorIs(t, err, ErrInvalidConnection)
			stored, _ := repo.GetConnections(ctx, 7)
			assert.Empty(t, stored)
		})
	}
}

func TestFactory_RefreshedTokenIsPersisted(t *testing.T) {
	// given
	var refreshes atomic.Int32
	tokenServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		refreshes.Add(1)
		assert.Equal(t, "refresh_token", r.FormValue("grant_type"))
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"access_token": "fresh", "token_type": "Bearer", "expires_in": 3600}`)
	}))
	defer tokenServer.Close()

	repo := NewRepositoryStub()
	ctx := context.Background()
	stored, err := repo.StoreConnection(ctx, 7, Connection{
		Provider: ProviderOutlook,
		Token:    &oauth2.Token{AccessToken: "stale", RefreshToken: "r1", Expiry: time.Now().Add(-time.Hour)},
	})
	require.NoError(t, err)

	factory := NewFactory(repo, FactoryConfig{})
	config := &oauth2.Config{Endpoint: oauth2.Endpoint{TokenURL: tokenServer.URL}}

	// when
	token, err := factory.tokenSource(ctx, config, 7, stored).Token()

	// then
	require.NoError(t, err)
	assert.Equal(t, "fresh", token.AccessToken)
	assert.Equal(t, int32(1), refreshes.Load())
	persisted, err := repo.GetConnection(ctx, 7, stored.Id)
	require.NoError(t, err)
	assert.Equal(t, "fresh", persisted.Token.AccessToken)
	assert.Equal(t, "r1", persisted.Token.RefreshToken)
}

func TestFactory_Build(t *testing.T) {
	factory := NewFactory(NewRepositoryStub(), FactoryConfig{Timeout: time.Second})
	ctx := context.Background()

	t.Run("apple", func(t *testing.T) {
		adapter, err := factory.Build(ctx, 7, Connection{Provider: ProviderApple, CalendarName: "Home", CalendarURL: "https://caldav.example.com/"})
		require.NoError(t, err)
		assert.Equal(t, "apple:Home", adapter.Name())
	})

	t.Run("outlook", func(t *testing.T) {
		adapter, err := factory.Build(ctx, 7, Connection{Provider: ProviderOutlook, CalendarName: "Work", Token: &oauth2.Token{AccessToken: "a"}})
		require.NoError(t, err)
		assert.Equal(t, calendar.SourceOutlook, adapter.SourceType())
	})

	t.Run("google without token", func(t *testing.T) {
		_, err := factory.Build(ctx, 7, Connection{Provider: ProviderGoogle})
		assert.Error(t, err)
	})

	t.Run("outlook without token", func(t *testing.T) {
		_, err := factory.Build(ctx, 7, Connection{Provider: ProviderOutlook})
		assert.ErrorIs(t, err, ErrInvalidConnection)
	})
}
