package config

import (
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/pkg/errors"

	"storefront-system/internal/domain"
)

const (
	EventSinkRedis = "redis"
	EventSinkKafka = "kafka"
	EventSinkNone  = "none"
)

type Config struct {
	Env            string `envconfig:"APP_ENV" default:"development"`
	HTTPAddr       string `envconfig:"HTTP_ADDR" default:":8080"`
	GRPCHealthAddr string `envconfig:"GRPC_HEALTH_ADDR" default:":50051"`
	StoreFlavor    string `envconfig:"STORE_FLAVOR" default:"motoparts"`
	RateLimit      string `envconfig:"RATE_LIMIT" default:"100-M"`

	Redis RedisConfig
	DB    DBConfig
	Auth  AuthConfig
	Event EventConfig
	Order OrderConfig
}

type DBConfig struct {
	DSN string `envconfig:"DB_DSN" default:"host=localhost user=postgres password=postgres dbname=storefront port=5432 sslmode=disable"`
}

type AuthConfig struct {
	JWTSecret string        `envconfig:"JWT_SECRET" required:"true"`
	JWTTTL    time.Duration `envconfig:"JWT_TTL" default:"24h"`
}

type EventConfig struct {
	Sink          string   `envconfig:"EVENT_SINK" default:"redis"`
	ChannelPrefix string   `envconfig:"EVENT_CHANNEL_PREFIX" default:"storefront:events"`
	KafkaBrokers  []string `envconfig:"KAFKA_BROKERS" default:"localhost:9092"`
	KafkaTopic    string   `envconfig:"KAFKA_TOPIC" default:"storefront.events"`
}

type OrderConfig struct {
	AllowRefund bool `envconfig:"ORDER_ALLOW_REFUND" default:"false"`
}

// Transitions returns the order transition table selected by the configuration.
func (c OrderConfig) Transitions() domain.OrderTransitions {
	t := domain.DefaultOrderTransitions()
	if c.AllowRefund {
		return t.WithRefunds()
	}
	return t
}

// ItemKind maps STORE_FLAVOR to the catalog kind seeded by default.
func (c Config) ItemKind() domain.ItemKind {
	if strings.HasPrefix(strings.ToLower(c.StoreFlavor), "book") {
		return domain.KindBook
	}
	return domain.KindMotopart
}

func (c Config) IsProduction() bool {
	return c.Env == "production"
}

func LoadConfig() (Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, errors.Wrap(err, "load config")
	}

	if strings.TrimSpace(cfg.Auth.JWTSecret) == "" {
		return Config{}, errors.New("JWT_SECRET must not be empty")
	}
	switch cfg.Event.Sink {
	case EventSinkRedis, EventSinkKafka, EventSinkNone:
	default:
		return Config{}, errors.Errorf("unknown EVENT_SINK %q", cfg.Event.Sink)
	}
	return cfg, nil
}
