// Package config предоставляет структуры и функции для парсинга и загрузки конфига
// сервисов биллинга RH Master.
package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

// Config общая структура для хранения настроек.
type Config struct {
	Env                     string `yaml:"env" env:"APP_ENV" env-default:"local"`
	StorageConnectionString string `yaml:"storage_connection_string" env:"STORAGE_CONNECTION_STRING"`
	MigrationsPath          string `yaml:"migrations_path" env-default:"./migrations"`
	GRPCAddress             string `yaml:"grpc_address" env-default:":9090"`
	RedisConnection         `yaml:"redis_connection"`
	HTTPServer              `yaml:"http_server"`
	JWTToken                `yaml:"jwttoken"`
	Stripe                  `yaml:"stripe"`
	Billing                 `yaml:"billing"`
	RabbitMQ                `yaml:"rabbitmq"`
	SMTP                    `yaml:"smtp"`
	Scheduler               `yaml:"scheduler"`
}

// HTTPServer структура для настройки сервера.
type HTTPServer struct {
	AddressHTTP string        `yaml:"addresshttp" env-default:":8080"`
	TimeoutHTTP time.Duration `yaml:"timeouthttp" env-default:"10s"`
	IdleTimeout time.Duration `yaml:"idle_timeout" env-default:"60s"`
	// RateLimit — число запросов в секунду на одного ментора.
	RateLimit float64 `yaml:"rate_limit" env-default:"5"`
	RateBurst int     `yaml:"rate_burst" env-default:"10"`
}

// RedisConnection структура для настройки подключения к redis.
type RedisConnection struct {
	AddressRedis string        `yaml:"addressredis" env:"REDIS_ADDRESS"`
	Password     string        `yaml:"password" env:"REDIS_PASSWORD"`
	User         string        `yaml:"user"`
	DB           int           `yaml:"db"`
	MaxRetries   int           `yaml:"max_retries"`
	DialTimeout  time.Duration `yaml:"dial_timeout"`
	TimeoutRedis time.Duration `yaml:"timeoutredis"`
}

// JWTToken структура для работы с jwt-токеном.
type JWTToken struct {
	JWTSecretKey string        `yaml:"jwt_secret_key" env:"JWT_SECRET_KEY"`
	TokenTTL     time.Duration `yaml:"token_ttl" env-default:"24h"`
}

// Stripe настройки платежного провайдера.
type Stripe struct {
	SecretKey      string `yaml:"secret_key" env:"STRIPE_SECRET_KEY"`
	PublishableKey string `yaml:"publishable_key" env:"STRIPE_PUBLISHABLE_KEY"`
	WebhookSecret  string `yaml:"webhook_secret" env:"STRIPE_WEBHOOK_SECRET"`
	// Prices сопоставляет тариф и цикл оплаты с price ID в Stripe, ключ вида "pro_monthly".
	Prices map[string]string `yaml:"prices"`
}

// Billing бизнес-настройки подписок.
type Billing struct {
	TrialDays      int           `yaml:"trial_days" env-default:"7"`
	TrialPlan      string        `yaml:"trial_plan" env-default:"basic"`
	CacheTTL       time.Duration `yaml:"cache_ttl" env-default:"1h"`
	MutationLock   time.Duration `yaml:"mutation_lock" env-default:"30s"`
	IdempotencyTTL time.Duration `yaml:"idempotency_ttl" env-default:"24h"`
}

// RabbitMQ настройки брокера событий жизненного цикла подписки.
type RabbitMQ struct {
	RabbitMQURL        string        `yaml:"url" env:"RABBITMQ_URL"`
	RabbitMQMaxRetries int           `yaml:"max_retries" env-default:"5"`
	RabbitMQRetryDelay time.Duration `yaml:"retry_delay" env-default:"3s"`
}

// SMTP настройки почтового транспорта уведомлений.
type SMTP struct {
	SMTPHost string `yaml:"host" env:"SMTP_HOST"`
	SMTPPort string `yaml:"port" env:"SMTP_PORT" env-default:"587"`
	SMTPUser string `yaml:"user" env:"SMTP_USER"`
	SMTPPass string `yaml:"password" env:"SMTP_PASSWORD"`
}

// Scheduler настройки периодических проверок.
type Scheduler struct {
	Interval time.Duration `yaml:"interval" env-default:"12h"`
	// CancelGrace сколько ждать вебхук после конца периода, прежде чем отменить подписку локально.
	CancelGrace time.Duration `yaml:"cancel_grace" env-default:"1h"`
}

// ErrEmptyConfigPath возвращается, если CONFIG_PATH не задан.
var ErrEmptyConfigPath = errors.New("CONFIG_PATH is not set")

// Load читает конфиг из файла CONFIG_PATH, переменные окружения перекрывают значения файла.
// Перед чтением подгружается .env, если он есть.
func Load() (*Config, error) {
	const op = "config.Load"

	_ = godotenv.Load()

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		return nil, fmt.Errorf("%s: %w", op, ErrEmptyConfigPath)
	}
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("%s: file %s does not exist", op, configPath)
	}

	var cfg Config
	if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
		return nil, fmt.Errorf("%s: cannot read config: %w", op, err)
	}
	return &cfg, nil
}

// MustLoad функция для загрузки конфига, завершает процесс при ошибке.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		log.Fatal(err)
	}
	return cfg
}

// PriceID возвращает Stripe price ID для тарифа и цикла оплаты.
func (s Stripe) PriceID(plan, cycle string) (string, bool) {
	id, ok := s.Prices[plan+"_"+cycle]
	return id, ok && id != ""
}

// String выводит конфиг без секретов.
func (c *Config) String() string {
	return fmt.Sprintf(
		"Env: %s\n"+
			"RedisConnection:\n"+
			"  Addr: %s\n"+
			"  DB: %d\n"+
			"HTTPServer:\n"+
			"  Address: %s\n"+
			"  Timeout: %s\n"+
			"  IdleTimeout: %s\n"+
			"GRPCAddress: %s\n"+
			"Billing:\n"+
			"  TrialDays: %d\n"+
			"  TrialPlan: %s\n"+
			"Stripe:\n"+
			"  Prices: %d configured\n",
		c.Env,
		c.AddressRedis,
		c.DB,
		c.AddressHTTP,
		c.TimeoutHTTP,
		c.IdleTimeout,
		c.GRPCAddress,
		c.TrialDays,
		c.TrialPlan,
		len(c.Prices),
	)
}
