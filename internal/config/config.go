package config

import (
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
	log "github.com/sirupsen/logrus"
)

const envPrefix = "DAYBOOK_"

type Application struct {
	Listen      string      `koanf:"listen"`
	Database    Database    `koanf:"db"`
	Google      OAuthClient `koanf:"google"`
	Outlook     Outlook     `koanf:"outlook"`
	Calendar    Calendar    `koanf:"calendar"`
	Positioning Positioning `koanf:"positioning"`
	Routines    Routines    `koanf:"routines"`
}

type OAuthClient struct {
	ClientId     string `koanf:"clientid"`
	ClientSecret string `koanf:"clientsecret"`
}

type Outlook struct {
	ClientId     string `koanf:"clientid"`
	ClientSecret string `koanf:"clientsecret"`
	Tenant       string `koanf:"tenant"`
	BaseURL      string `koanf:"baseurl"`
}

type Database struct {
	Host   string `koanf:"host"`
	Port   int    `koanf:"port"`
	User   string `koanf:"user"`
	Pass   string `koanf:"pass"`
	Name   string `koanf:"name"`
	Schema string `koanf:"schema"`
}

type Calendar struct {
	DefaultTimezone string        `koanf:"defaulttimezone"`
	AdapterTimeout  time.Duration `koanf:"adaptertimeout"`
	// MaxConcurrency caps parallel adapter fetches per request; 0 is unlimited.
	MaxConcurrency int `koanf:"maxconcurrency"`
}

// Positioning holds the minimum rendered height, in minutes, per view kind.
type Positioning struct {
	DayMinHeight   int `koanf:"dayminheight"`
	WeekMinHeight  int `koanf:"weekminheight"`
	MonthMinHeight int `koanf:"monthminheight"`
}

type Routines struct {
	SeedFile    string `koanf:"seedfile"`
	Materialize bool   `koanf:"materialize"`
	Cron        string `koanf:"cron"`
	HorizonDays int    `koanf:"horizondays"`
}

func defaults() Application {
	return Application{
		Listen: ":8181",
		Database: Database{
			Host:   "localhost",
			Port:   5432,
			User:   "daybook",
			Pass:   "",
			Name:   "daybook",
			Schema: "daybook",
		},
		Outlook: Outlook{
			Tenant:  "common",
			BaseURL: "https://graph.microsoft.com/v1.0",
		},
		Calendar: Calendar{
			DefaultTimezone: "UTC",
			AdapterTimeout:  10 * time.Second,
		},
		Positioning: Positioning{
			DayMinHeight:   20,
			WeekMinHeight:  20,
			MonthMinHeight: 15,
		},
		Routines: Routines{
			Materialize: true,
			Cron:        "15 3 * * *",
			HorizonDays: 14,
		},
	}
}

func Load(path string) (Application, error) {
	var k = koanf.New(".")

	err := k.Load(structs.Provider(defaults(), "koanf"), nil)
	if err != nil {
		log.Errorf("error loading config from structs: %v", err)
		return Application{}, err
	}

	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		if os.IsNotExist(err) {
			log.Infof("Config file not found at %s, using defaults and environment variables", path)
		} else {
			log.Errorf("error loading config from YAML: %v", err)
			return Application{}, err
		}
	} else {
		log.Infof("Loaded configuration from file: %s", path)
	}

	err = k.Load(env.Provider(".", env.Opt{
		Prefix: envPrefix,
		TransformFunc: func(k, v string) (string, any) {
			// DAYBOOK_CALENDAR_DEFAULTTIMEZONE -> calendar.defaulttimezone
			k = strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(k, envPrefix)), "_", ".")
			return k, v
		},
	}), nil)
	if err != nil {
		log.Errorf("error loading config from envs: %v", err)
		return Application{}, err
	}

	var app Application
	if err := k.Unmarshal("", &app); err != nil {
		return Application{}, err
	}

	return app, nil
}
