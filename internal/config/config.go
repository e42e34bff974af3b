package config

import (
	"fmt"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	LogLevel string    `yaml:"log-level" env:"LOG_LEVEL" env-default:"info"`
	Server   Server    `yaml:"server"`
	Session  Session   `yaml:"session"`
	Player   Player    `yaml:"player"`
	Hub      Reconnect `yaml:"reconnect"`
}

type Server struct {
	URL string `yaml:"url" env:"SERVER_URL" env-default:"ws://localhost:9090/gameHub"`
}

type Session struct {
	Path string `yaml:"path" env:"SESSION_PATH" env-default:".stopgame-session.json"`
}

type Player struct {
	Name     string `yaml:"name" env:"PLAYER_NAME" env-default:""`
	RoomCode string `yaml:"room-code" env:"ROOM_CODE" env-default:""`
}

type Reconnect struct {
	MaxAttempts      int `yaml:"max-attempts" env-default:"5"`
	BaseDelaySeconds int `yaml:"base-delay-seconds" env-default:"2"`
}

// MustLoad - load all configurations in config.yml file.
func MustLoad(path string) *Config {
	config := &Config{}

	if err := cleanenv.ReadConfig(path, config); err != nil {
		panic(fmt.Errorf("unable to load config file: %w", err))
	}

	return config
}

// BaseDelay - the delay before the first reconnect attempt; later attempts
// back off linearly from it.
func (that *Reconnect) BaseDelay() time.Duration {
	return time.Duration(that.BaseDelaySeconds) * time.Second
}
