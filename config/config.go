package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	HTTPAddr string

	DBHost        string
	DBUser        string
	DBPassword    string
	DBName        string
	DBPort        string
	RedisAddr     string
	RedisPort     string
	RedisPassword string
	JWTSecret     string

	// Shared secret expected in X-Cron-Secret by the job trigger endpoints
	CronSecret string
	// Secret used to sign payment rows
	PaymentSecret string

	AMQPURL      string
	AMQPExchange string

	SchedulerEnabled bool
	SlotClosureSpec  string
	DebtPenaltySpec  string

	// Log configuration
	LogLevel      string
	LogFilename   string
	LogMaxSize    int
	LogMaxBackups int
	LogMaxAge     int
	LogCompress   bool
}

func (c *Config) DSN() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable",
		c.DBHost, c.DBUser, c.DBPassword, c.DBName, c.DBPort)
}

func (c *Config) RedisFullAddr() string {
	return fmt.Sprintf("%s:%s", c.RedisAddr, c.RedisPort)
}

func LoadConfig() (*Config, error) {
	err := godotenv.Load()
	if err != nil {
		// Ignore error if .env file is not found
		if !os.IsNotExist(err) {
			return nil, err
		}
	}

	return &Config{
		HTTPAddr: getEnv("HTTP_ADDR", ":8080"),

		DBHost:        os.Getenv("DB_HOST"),
		DBUser:        os.Getenv("DB_USER"),
		DBPassword:    os.Getenv("DB_PASSWORD"),
		DBName:        os.Getenv("DB_NAME"),
		DBPort:        getEnv("DB_PORT", "5432"),
		RedisAddr:     os.Getenv("REDIS_HOST"),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		JWTSecret:     os.Getenv("JWT_SECRET"),

		CronSecret:    os.Getenv("CRON_SECRET"),
		PaymentSecret: getEnv("PAYMENT_SECRET", os.Getenv("JWT_SECRET")),

		AMQPURL:      os.Getenv("AMQP_URL"),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "reservas.notifications"),

		SchedulerEnabled: getEnvAsBool("SCHEDULER_ENABLED", true),
		SlotClosureSpec:  getEnv("SLOT_CLOSURE_SPEC", "@every 5m"),
		DebtPenaltySpec:  getEnv("DEBT_PENALTY_SPEC", "@daily"),

		LogLevel:      getEnv("LOG_LEVEL", "INFO"),
		LogFilename:   getEnv("LOG_FILENAME", "logs/app.log"),
		LogMaxSize:    getEnvAsInt("LOG_MAX_SIZE", 100),
		LogMaxBackups: getEnvAsInt("LOG_MAX_BACKUPS", 3),
		LogMaxAge:     getEnvAsInt("LOG_MAX_AGE", 28),
		LogCompress:   getEnvAsBool("LOG_COMPRESS", true),
	}, nil
}

// Policy holds the business rules of the reservation lifecycle.
// Values are read from RESERVAS_* environment variables.
type Policy struct {
	MinDepositPct           float64       `envconfig:"MIN_DEPOSIT_PCT" default:"0.3"`
	MinRefundHours          float64       `envconfig:"MIN_REFUND_HOURS" default:"5"`
	MaxAllowedCancellations int           `envconfig:"MAX_ALLOWED_CANCELLATIONS" default:"3"`
	DaysDisabled            int           `envconfig:"DAYS_DISABLED" default:"30"`
	DailyInterestPct        float64       `envconfig:"DAILY_INTEREST_PCT" default:"0.01"`
	ClosureGrace            time.Duration `envconfig:"CLOSURE_GRACE" default:"1h"`
	DebtGrace               time.Duration `envconfig:"DEBT_GRACE" default:"25h"`
	TZOffsetHours           int           `envconfig:"TZ_OFFSET_HOURS" default:"-3"`
}

// DefaultPolicy returns the policy used when no overrides are set.
func DefaultPolicy() Policy {
	return Policy{
		MinDepositPct:           0.3,
		MinRefundHours:          5,
		MaxAllowedCancellations: 3,
		DaysDisabled:            30,
		DailyInterestPct:        0.01,
		ClosureGrace:            time.Hour,
		DebtGrace:               25 * time.Hour,
		TZOffsetHours:           -3,
	}
}

func LoadPolicy() (Policy, error) {
	var p Policy
	if err := envconfig.Process("RESERVAS", &p); err != nil {
		return Policy{}, err
	}
	if p.MinDepositPct <= 0 || p.MinDepositPct > 1 {
		return Policy{}, fmt.Errorf("RESERVAS_MIN_DEPOSIT_PCT must be in (0, 1], got %v", p.MinDepositPct)
	}
	if p.MaxAllowedCancellations < 0 {
		return Policy{}, fmt.Errorf("RESERVAS_MAX_ALLOWED_CANCELLATIONS must not be negative")
	}
	return p, nil
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if valueStr, exists := os.LookupEnv(key); exists {
		if value, err := strconv.Atoi(valueStr); err == nil {
			return value
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if valueStr, exists := os.LookupEnv(key); exists {
		if value, err := strconv.ParseBool(valueStr); err == nil {
			return value
		}
	}
	return defaultValue
}
