package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Duration decodes "5m" style values from YAML.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) Std() time.Duration { return time.Duration(d) }

type App struct {
	Env     string `yaml:"env"`
	Port    int    `yaml:"port"`
	Timeout string `yaml:"shutdown_timeout"`
}

func (a *App) PortString() string { return fmt.Sprintf("%d", a.Port) }

type Mongo struct {
	URI string `yaml:"uri"`
	DB  string `yaml:"db"`
}

type Redis struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type NATS struct {
	URL string `yaml:"url"`
}

type Kafka struct {
	Brokers  []string `yaml:"brokers"`
	TopicOut string   `yaml:"topic_out"`
}

type JWT struct {
	HSSecret string `yaml:"hs_secret"`
}

// Backend is one generative-backend variant, tried in list order.
type Backend struct {
	Model     string `yaml:"model"`
	Endpoint  string `yaml:"endpoint"`
	APIKeyEnv string `yaml:"api_key_env"`
}

type Moderation struct {
	Backends  []Backend `yaml:"backends"`
	Timeout   Duration  `yaml:"timeout"`
	MaxRetry  int       `yaml:"max_retry"`
	ToneLabel string    `yaml:"default_tone"`
}

type Lifecycle struct {
	EditWindow   Duration `yaml:"edit_window"`
	DeleteWindow Duration `yaml:"delete_window"`
	MaxContent   int      `yaml:"max_content"`
}

type Presence struct {
	OnlineTTL      Duration `yaml:"online_ttl"`
	TypingTTL      Duration `yaml:"typing_ttl"`
	TypingThrottle Duration `yaml:"typing_throttle"`
	SweepInterval  Duration `yaml:"sweep_interval"`
}

type Config struct {
	App        App        `yaml:"app"`
	Mongo      Mongo      `yaml:"mongo"`
	Redis      Redis      `yaml:"redis"`
	NATS       NATS       `yaml:"nats"`
	Kafka      Kafka      `yaml:"kafka"`
	JWT        JWT        `yaml:"jwt"`
	Moderation Moderation `yaml:"moderation"`
	Lifecycle  Lifecycle  `yaml:"lifecycle"`
	Presence   Presence   `yaml:"presence"`
}

func Load() (*Config, error) {
	cfg := &Config{}

	if _, err := os.Stat("config.yaml"); err == nil {
		b, _ := os.ReadFile("config.yaml")
		if err := yaml.Unmarshal(b, cfg); err != nil {
			return nil, err
		}
	}

	_ = godotenv.Load()
	overrideFromEnv(cfg)
	applyDefaults(cfg)

	if err := validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func overrideFromEnv(cfg *Config) {
	if v := os.Getenv("APP_ENV"); v != "" {
		cfg.App.Env = v
	}
	if v := os.Getenv("SERVICE_PORT"); v != "" {
		n, _ := strconv.Atoi(v)
		cfg.App.Port = n
	}

	if v := os.Getenv("MONGODB_URI"); v != "" {
		cfg.Mongo.URI = v
	}
	if v := os.Getenv("MONGO_NAME"); v != "" {
		cfg.Mongo.DB = v
	}

	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}

	if v := os.Getenv("NATS_URL"); v != "" {
		cfg.NATS.URL = v
	}

	if v := os.Getenv("KAFKA_BROKER"); v != "" {
		cfg.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("KAFKA_TOPIC_OUT"); v != "" {
		cfg.Kafka.TopicOut = v
	}

	if v := os.Getenv("JWT_SECRET"); v != "" {
		cfg.JWT.HSSecret = v
	}

	if v := os.Getenv("MODERATION_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Moderation.Timeout = Duration(d)
		}
	}
}

func applyDefaults(cfg *Config) {
	if cfg.App.Port == 0 {
		cfg.App.Port = 4000
	}
	if cfg.Moderation.Timeout == 0 {
		cfg.Moderation.Timeout = Duration(10 * time.Second)
	}
	if cfg.Moderation.ToneLabel == "" {
		cfg.Moderation.ToneLabel = "professional"
	}
	if cfg.Lifecycle.EditWindow == 0 {
		cfg.Lifecycle.EditWindow = Duration(5 * time.Minute)
	}
	if cfg.Lifecycle.DeleteWindow == 0 {
		cfg.Lifecycle.DeleteWindow = Duration(5 * time.Minute)
	}
	if cfg.Lifecycle.MaxContent == 0 {
		cfg.Lifecycle.MaxContent = 5000
	}
	if cfg.Presence.OnlineTTL == 0 {
		cfg.Presence.OnlineTTL = Duration(5 * time.Minute)
	}
	if cfg.Presence.TypingTTL == 0 {
		cfg.Presence.TypingTTL = Duration(3 * time.Second)
	}
	if cfg.Presence.TypingThrottle == 0 {
		cfg.Presence.TypingThrottle = Duration(2 * time.Second)
	}
	if cfg.Presence.SweepInterval == 0 {
		cfg.Presence.SweepInterval = Duration(5 * time.Minute)
	}
}

func validate(cfg *Config) error {
	if cfg.Mongo.URI == "" {
		return errors.New("mongo.uri missing")
	}
	if cfg.Mongo.DB == "" {
		return errors.New("mongo.db missing")
	}
	if cfg.Redis.Addr == "" {
		return errors.New("redis.addr missing")
	}
	if cfg.JWT.HSSecret == "" {
		return errors.New("jwt.hs_secret missing")
	}
	// Moderation timeout is a hard bound on the send path.
	if cfg.Moderation.Timeout.Std() > 30*time.Second {
		return errors.New("moderation.timeout must be <= 30s")
	}
	return nil
}
