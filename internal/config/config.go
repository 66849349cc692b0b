package config

import (
	"errors"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server    Server
	DB        DB
	Redis     Redis
	Gateway   Gateway
	Poller    Poller
	Directory Directory
}

type Server struct {
	Port string
}

type DB struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	SSLMode  string
}

type Redis struct {
	Addr     string
	Password string
	DB       int
}

// Gateway holds the SMS provider coordinates. These are injected into
// the client at construction, never read from ambient state.
type Gateway struct {
	BaseURL        string
	DeviceID       string
	APIKey         string
	TimeoutSeconds int
}

type Poller struct {
	SyncIntervalSeconds     int
	DispatchIntervalSeconds int
}

// Directory maps usernames to the display name and department used
// for outbound signatures.
type Directory struct {
	Users map[string]DirectoryUser
}

type DirectoryUser struct {
	DisplayName string
	Department  string
}

func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("SMSPORTAL")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil, errors.New("config file not found")
		}
		return nil, err
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, err
	}

	if c.Server.Port == "" {
		c.Server.Port = "8080"
	}
	if c.DB.SSLMode == "" {
		c.DB.SSLMode = "disable"
	}
	if c.Gateway.TimeoutSeconds == 0 {
		c.Gateway.TimeoutSeconds = 30
	}
	if c.Poller.SyncIntervalSeconds == 0 {
		c.Poller.SyncIntervalSeconds = 10
	}
	if c.Poller.DispatchIntervalSeconds == 0 {
		c.Poller.DispatchIntervalSeconds = 60
	}
	return &c, nil
}

func (g Gateway) Timeout() time.Duration {
	return time.Duration(g.TimeoutSeconds) * time.Second
}

func (p Poller) SyncInterval() time.Duration {
	return time.Duration(p.SyncIntervalSeconds) * time.Second
}

func (p Poller) DispatchInterval() time.Duration {
	return time.Duration(p.DispatchIntervalSeconds) * time.Second
}

func (d DB) ConnString() string {
	return "host=" + d.Host +
		" port=" + d.Port +
		" user=" + d.User +
		" password=" + d.Password +
		" dbname=" + d.Name +
		" sslmode=" + d.SSLMode
}
