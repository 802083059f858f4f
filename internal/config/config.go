package config

import (
	"fmt"
	"os"
	"strconv"
)

type Config struct {
	Port     int
	LogLevel string
	Env      string

	// Database
	DBHost     string
	DBPort     int
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string

	// Redis config (idempotency cache)
	RedisHost     string
	RedisPort     int
	RedisPassword string
	RedisDB       int

	// Rate limiting: one quota class per endpoint family.
	// Windows are in seconds.
	ReadLimitMax     int
	ReadLimitWindow  int
	WriteLimitMax    int
	WriteLimitWindow int
	RateLimitMaxKeys int

	// Scheduler
	ReminderPageSize int

	// Nudge worker
	NudgeEnabled      bool
	NudgeAfterHours   int // hours a delivered reminder may sit unread before a nudge
	NudgePollInterval int // seconds between worker polls
	NudgeBatchSize    int

	// AWS SES for nudge emails
	AWSRegion    string
	SESFromEmail string
}

// Load reads configuration from environment variables with sensible defaults
func Load() (*Config, error) {
	cfg := &Config{
		Port:     8080,
		LogLevel: "info",
		Env:      "development",

		// Local postgres defaults
		DBHost:     "localhost",
		DBPort:     5432,
		DBUser:     "tend",
		DBPassword: "",
		DBName:     "tend",
		DBSSLMode:  "disable",

		// Redis defaults
		RedisHost:     "localhost",
		RedisPort:     6379,
		RedisPassword: "",
		RedisDB:       0,

		// Rate limit defaults
		ReadLimitMax:     120,
		ReadLimitWindow:  60,
		WriteLimitMax:    60,
		WriteLimitWindow: 60,
		RateLimitMaxKeys: 10000,

		ReminderPageSize: 20,

		// Nudge defaults
		NudgeAfterHours:   4,
		NudgePollInterval: 300,
		NudgeBatchSize:    25,

		AWSRegion:    "us-east-1",
		SESFromEmail: "reminders@tend.local",
	}

	if port := os.Getenv("PORT"); port != "" {
		p, err := strconv.Atoi(port)
		if err != nil {
			return nil, fmt.Errorf("invalid PORT: %w", err)
		}
		cfg.Port = p
	}

	if level := os.Getenv("LOG_LEVEL"); level != "" {
		cfg.LogLevel = level
	}

	if env := os.Getenv("ENV"); env != "" {
		cfg.Env = env
	}

	// Database config
	if host := os.Getenv("DB_HOST"); host != "" {
		cfg.DBHost = host
	}

	if port := os.Getenv("DB_PORT"); port != "" {
		p, err := strconv.Atoi(port)
		if err != nil {
			return nil, fmt.Errorf("invalid DB_PORT: %w", err)
		}
		cfg.DBPort = p
	}

	if user := os.Getenv("DB_USER"); user != "" {
		cfg.DBUser = user
	}

	if password := os.Getenv("DB_PASSWORD"); password != "" {
		cfg.DBPassword = password
	}

	if dbname := os.Getenv("DB_NAME"); dbname != "" {
		cfg.DBName = dbname
	}

	if sslmode := os.Getenv("DB_SSLMODE"); sslmode != "" {
		cfg.DBSSLMode = sslmode
	}

	// Redis config
	if host := os.Getenv("REDIS_HOST"); host != "" {
		cfg.RedisHost = host
	}

	if port := os.Getenv("REDIS_PORT"); port != "" {
		p, err := strconv.Atoi(port)
		if err != nil {
			return nil, fmt.Errorf("invalid REDIS_PORT: %w", err)
		}
		cfg.RedisPort = p
	}

	if password := os.Getenv("REDIS_PASSWORD"); password != "" {
		cfg.RedisPassword = password
	}

	if db := os.Getenv("REDIS_DB"); db != "" {
		d, err := strconv.Atoi(db)
		if err != nil {
			return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
		}
		cfg.RedisDB = d
	}

	// Rate limit config
	if v := os.Getenv("RATE_LIMIT_READ_MAX"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid RATE_LIMIT_READ_MAX: %w", err)
		}
		cfg.ReadLimitMax = n
	}

	if v := os.Getenv("RATE_LIMIT_READ_WINDOW"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid RATE_LIMIT_READ_WINDOW: %w", err)
		}
		cfg.ReadLimitWindow = n
	}

	if v := os.Getenv("RATE_LIMIT_WRITE_MAX"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid RATE_LIMIT_WRITE_MAX: %w", err)
		}
		cfg.WriteLimitMax = n
	}

	if v := os.Getenv("RATE_LIMIT_WRITE_WINDOW"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid RATE_LIMIT_WRITE_WINDOW: %w", err)
		}
		cfg.WriteLimitWindow = n
	}

	if v := os.Getenv("RATE_LIMIT_MAX_KEYS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid RATE_LIMIT_MAX_KEYS: %w", err)
		}
		cfg.RateLimitMaxKeys = n
	}

	if v := os.Getenv("REMINDER_PAGE_SIZE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid REMINDER_PAGE_SIZE: %w", err)
		}
		cfg.ReminderPageSize = n
	}

	// Nudge worker config
	if v := os.Getenv("NUDGE_ENABLED"); v != "" {
		cfg.NudgeEnabled = v == "true" || v == "1"
	}

	if v := os.Getenv("NUDGE_AFTER_HOURS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid NUDGE_AFTER_HOURS: %w", err)
		}
		cfg.NudgeAfterHours = n
	}

	if v := os.Getenv("NUDGE_POLL_INTERVAL"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid NUDGE_POLL_INTERVAL: %w", err)
		}
		cfg.NudgePollInterval = n
	}

	if v := os.Getenv("NUDGE_BATCH_SIZE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid NUDGE_BATCH_SIZE: %w", err)
		}
		cfg.NudgeBatchSize = n
	}

	if region := os.Getenv("AWS_REGION"); region != "" {
		cfg.AWSRegion = region
	}

	if from := os.Getenv("SES_FROM_EMAIL"); from != "" {
		cfg.SESFromEmail = from
	}

	return cfg, nil
}
