package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

const envPrefix = "EDUSTREAM"

type Config struct {
	Mode           string        `mapstructure:"mode"`
	Port           int           `mapstructure:"port"`
	LogLevel       string        `mapstructure:"log_level"`
	Secret         string        `mapstructure:"secret"`
	JWTSecret      string        `mapstructure:"jwt_secret"`
	DatabaseURL    string        `mapstructure:"database_url"`
	ReadLimit      int64         `mapstructure:"read_limit"`
	PingPeriod     time.Duration `mapstructure:"ping_period"`
	SendBuffer     int           `mapstructure:"send_buffer"`
	AllowedOrigins []string      `mapstructure:"allowed_origins"`
	RateLimit      RateLimit     `mapstructure:"rate_limit"`
	Backpressure   string        `mapstructure:"backpressure"`
	AuthTimeout    time.Duration `mapstructure:"auth_timeout"`
	ICEServers     []ICEServer   `mapstructure:"ice_servers"`
	Attendance     bool          `mapstructure:"attendance"`
	Seed           Seed          `mapstructure:"seed"`
}

type RateLimit struct {
	Count    int           `mapstructure:"count"`
	Interval time.Duration `mapstructure:"interval"`
}

type ICEServer struct {
	URLs       []string `mapstructure:"urls"`
	Username   string   `mapstructure:"username"`
	Credential string   `mapstructure:"credential"`
}

// Seed holds fixtures for the in-memory store used when no database is
// configured.
type Seed struct {
	Users         []SeedUser     `mapstructure:"users"`
	Schedules     []SeedSchedule `mapstructure:"schedules"`
	Enrollments   []SeedAccess   `mapstructure:"enrollments"`
	Subscriptions []SeedAccess   `mapstructure:"subscriptions"`
}

type SeedUser struct {
	ID        string `mapstructure:"id"`
	Username  string `mapstructure:"username"`
	FirstName string `mapstructure:"first_name"`
	LastName  string `mapstructure:"last_name"`
	Role      string `mapstructure:"role"`
}

type SeedSchedule struct {
	ID      string `mapstructure:"id"`
	Room    string `mapstructure:"room"`
	Course  string `mapstructure:"course"`
	Teacher string `mapstructure:"teacher"`
}

// SeedAccess is an enrollment or a course subscription.
type SeedAccess struct {
	Student string `mapstructure:"student"`
	Course  string `mapstructure:"course"`
	Status  string `mapstructure:"status"`
	Active  *bool  `mapstructure:"active"`
}

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Warn().Err(err).Str("module", "config").Msg(".env not loaded")
	}

	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	return LoadFile(fmt.Sprintf("config/config.%s.yaml", env))
}

// LoadFile reads fileName over the defaults; a missing file is not an error.
// EDUSTREAM_* environment variables override both.
func LoadFile(fileName string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetConfigFile(fileName)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("mode", "release")
	v.SetDefault("port", 8080)
	v.SetDefault("log_level", "info")
	v.SetDefault("secret", "")
	v.SetDefault("jwt_secret", "")
	v.SetDefault("database_url", "")
	v.SetDefault("read_limit", 32768)
	v.SetDefault("ping_period", "54s")
	v.SetDefault("send_buffer", 64)
	v.SetDefault("rate_limit.count", 50)
	v.SetDefault("rate_limit.interval", "1s")
	v.SetDefault("backpressure", "drop")
	v.SetDefault("auth_timeout", "5s")
	v.SetDefault("attendance", true)

	if err := v.ReadInConfig(); err != nil {
		log.Warn().Str("module", "config").Str("file", fileName).Msg("config file not found, using defaults")
	} else {
		log.Info().Str("module", "config").Str("file", fileName).Msg("config loaded")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	log.Info().Str("module", "config").Str("mode", cfg.Mode).Int("port", cfg.Port).
		Bool("database", cfg.DatabaseURL != "").Msg("config ready")
	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.Mode {
	case "debug", "release", "test":
	default:
		return fmt.Errorf("config: unknown mode %q", c.Mode)
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("config: port %d out of range", c.Port)
	}
	if c.Mode == "release" && (c.Secret == "" || c.JWTSecret == "") {
		return errors.New("config: secret and jwt_secret are required in release mode")
	}
	return nil
}
