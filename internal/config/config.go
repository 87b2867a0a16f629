package config

import (
	"log"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

type Config struct {
	AppEnv  string `env:"APP_ENV" envDefault:"development"`
	AppPort string `env:"APP_PORT" envDefault:"8080"`
	SiteURL string `env:"SITE_URL" envDefault:"http://localhost:3000"`

	DBHost     string `env:"DB_HOST"`
	DBUser     string `env:"DB_USER"`
	DBPassword string `env:"DB_PASSWORD"`
	DBName     string `env:"DB_NAME"`
	DBPort     string `env:"DB_PORT" envDefault:"5432"`
	DBSSLMode  string `env:"DB_SSLMODE" envDefault:"disable"`

	DBMaxOpenConns    int           `env:"DB_MAX_OPEN_CONNS" envDefault:"25"`
	DBMaxIdleConns    int           `env:"DB_MAX_IDLE_CONNS" envDefault:"5"`
	DBConnMaxLifetime time.Duration `env:"DB_CONN_MAX_LIFETIME" envDefault:"30m"`

	JWTSecret         string `env:"JWT_SECRET"`
	InternalSecretKey string `env:"INTERNAL_SECRET_KEY"`

	PayU    PayU
	Storage Storage
	SMTP    SMTP
	Notify  Notify
}

// PayU holds the hosted-checkout credentials and the webhook secret.
type PayU struct {
	MerchantKey   string `env:"PAYU_MERCHANT_KEY"`
	Salt          string `env:"PAYU_SALT"`
	URL           string `env:"PAYU_URL" envDefault:"https://test.payu.in/_payment"`
	WebhookSecret string `env:"WEBHOOK_SECRET"`
}

type Storage struct {
	Dir        string        `env:"STORAGE_DIR" envDefault:"./data/documents"`
	SigningKey string        `env:"STORAGE_SIGNING_KEY"`
	PublicURL  string        `env:"STORAGE_PUBLIC_URL" envDefault:"http://localhost:8080"`
	AccessTTL  time.Duration `env:"ACCESS_TTL" envDefault:"1h"`
}

type SMTP struct {
	Host     string `env:"SMTP_HOST"`
	Port     string `env:"SMTP_PORT" envDefault:"587"`
	User     string `env:"SMTP_USER"`
	Password string `env:"SMTP_PASSWORD"`
	From     string `env:"EMAIL_FROM" envDefault:"no-reply@printlink.local"`
}

type Notify struct {
	Workers   int `env:"NOTIFY_WORKERS" envDefault:"2"`
	QueueSize int `env:"NOTIFY_QUEUE" envDefault:"128"`
}

func LoadConfig() *Config {
	_ = godotenv.Load()

	cfg, err := Parse()
	if err != nil {
		log.Fatalf("failed to parse environment: %v", err)
	}

	if cfg.DBHost == "" {
		log.Fatal("Environment variables not loaded properly")
	}

	return cfg
}

// Parse reads the process environment without loading .env or validating.
func Parse() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
