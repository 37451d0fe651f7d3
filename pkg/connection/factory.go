package connection

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/klokku/daybook/pkg/caldav"
	"github.com/klokku/daybook/pkg/calendar"
	"github.com/klokku/daybook/pkg/google"
	"github.com/klokku/daybook/pkg/outlook"
	log "github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
	oauthgoogle "golang.org/x/oauth2/google"
	"golang.org/x/oauth2/microsoft"
	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"
)

type OAuthClient struct {
	ClientId     string
	ClientSecret string
}

type FactoryConfig struct {
	Google        OAuthClient
	Outlook       OAuthClient
	OutlookTenant string
	// OutlookBaseURL and GoogleEndpoint override the provider APIs, mostly for tests.
	OutlookBaseURL string
	GoogleEndpoint string
	Timeout        time.Duration
}

// Factory builds calendar adapters from stored connections. Refreshed OAuth tokens are
// written back to the repository.
type Factory struct {
	repo    Repository
	google  *oauth2.Config
	outlook *oauth2.Config
	cfg     FactoryConfig
}

func NewFactory(repo Repository, cfg FactoryConfig) *Factory {
	tenant := cfg.OutlookTenant
	if tenant == "" {
		tenant = "common"
	}
	return &Factory{
		repo: repo,
		google: &oauth2.Config{
			ClientID:     cfg.Google.ClientId,
			ClientSecret: cfg.Google.ClientSecret,
			Endpoint:     oauthgoogle.Endpoint,
			Scopes:       []string{gcal.CalendarReadonlyScope},
		},
		outlook: &oauth2.Config{
			ClientID:     cfg.Outlook.ClientId,
			ClientSecret: cfg.Outlook.ClientSecret,
			Endpoint:     microsoft.AzureADEndpoint(tenant),
			Scopes:       []string{"offline_access", "Calendars.Read"},
		},
		cfg: cfg,
	}
}

func (f *Factory) Build(ctx context.Context, userId int, c Connection) (calendar.Adapter, error) {
	switch c.Provider {
	case ProviderGoogle:
		var opts []option.ClientOption
		if f.cfg.GoogleEndpoint != "" {
			opts = append(opts, option.WithEndpoint(f.cfg.GoogleEndpoint))
		}
		adapter, err := google.NewAdapter(ctx, f.tokenSource(ctx, f.google, userId, c), c.CalendarId, c.DisplayName(), opts...)
		if err != nil {
			return nil, err
		}
		return adapter, nil
	case ProviderOutlook:
		if c.Token == nil {
			return nil, fmt.Errorf("%w: outlook connection %d has no token", ErrInvalidConnection, c.Id)
		}
		return outlook.NewAdapter(f.tokenSource(ctx, f.outlook, userId, c), c.CalendarId, c.DisplayName(), outlook.Options{
			BaseURL:    f.cfg.OutlookBaseURL,
			Timeout:    f.cfg.Timeout,
			RetryCount: 2,
		}), nil
	case ProviderApple:
		return caldav.NewAdapter(caldav.Options{
			CalendarURL:  c.CalendarURL,
			Username:     c.Username,
			Password:     c.Password,
			CalendarName: c.DisplayName(),
			Timeout:      f.cfg.Timeout,
		}), nil
	}
	return nil, fmt.Errorf("%w: unknown provider %q", ErrInvalidConnection, c.Provider)
}

func (f *Factory) tokenSource(ctx context.Context, config *oauth2.Config, userId int, c Connection) oauth2.TokenSource {
	if c.Token == nil {
		return nil
	}
	// The refresh must outlive the request that triggered it.
	base := config.TokenSource(context.WithoutCancel(ctx), c.Token)
	return &persistingTokenSource{
		base: base,
		last: c.Token.AccessToken,
		save: func(token *oauth2.Token) error {
			return f.repo.UpdateToken(context.WithoutCancel(ctx), userId, c.Id, token)
		},
	}
}

// persistingTokenSource stores every newly issued access token.
type persistingTokenSource struct {
	mu   sync.Mutex
	base oauth2.TokenSource
	last string
	save func(token *oauth2.Token) error
}

func (s *persistingTokenSource) Token() (*oauth2.Token, error) {
	token, err := s.base.Token()
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if token.AccessToken != s.last {
		if err := s.save(token); err != nil {
			log.Warnf("unable to persist refreshed token: %v", err)
		} else {
			log.Debug("refreshed OAuth token persisted")
		}
		s.last = token.AccessToken
	}
	return token, nil
}
