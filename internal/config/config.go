package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strconv"
	"time"

	env "github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

type Config struct {
	DatabaseURL   string `env:"DATABASE_URL,required,notEmpty"`
	JWTSecret     string `env:"JWT_SECRET,required,notEmpty"`
	WebhookSecret string `env:"WEBHOOK_SECRET,required,notEmpty"`
	RedisURL      string `env:"REDIS_URL"`
	Port          int    `env:"PORT" envDefault:"8080"`
	LogLevel      string `env:"LOG_LEVEL" envDefault:"info"`
	AppEnv        string `env:"APP_ENV" envDefault:"production"`

	ProfitTimezone   string            `env:"PROFIT_TIMEZONE" envDefault:"UTC"`
	ProfitRunHour    int               `env:"PROFIT_RUN_HOUR" envDefault:"0"`
	SchedulerEnabled bool              `env:"SCHEDULER_ENABLED" envDefault:"true"`
	SchedulerEvery   time.Duration     `env:"SCHEDULER_INTERVAL" envDefault:"1m"`
	StaleRunTimeout  time.Duration     `env:"STALE_RUN_TIMEOUT" envDefault:"2h"`
	LevelRatesRaw    map[string]string `env:"INVESTMENT_LEVEL_RATES" envDefault:"1:0.5,2:0.8,3:1.2" envKeyValSeparator:":"`

	RateLimitRPS   float64 `env:"RATE_LIMIT_RPS" envDefault:"10"`
	RateLimitBurst int     `env:"RATE_LIMIT_BURST" envDefault:"20"`

	DBMaxOpenConns     int `env:"DB_MAX_OPEN_CONNS" envDefault:"25"`
	DBMaxIdleConns     int `env:"DB_MAX_IDLE_CONNS" envDefault:"10"`
	DBConnMaxLifetimeS int `env:"DB_CONN_MAX_LIFETIME_S" envDefault:"300"`
	DBConnMaxIdleTimeS int `env:"DB_CONN_MAX_IDLE_TIME_S" envDefault:"60"`
	DBConnectAttempts  int `env:"DB_CONNECT_ATTEMPTS" envDefault:"10"`
}

// Load reads an optional .env file and then the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("config.Load: .env: %w", err)
	}

	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	if _, err := cfg.Location(); err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}
	if _, err := cfg.LevelRates(); err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}
	if cfg.ProfitRunHour < 0 || cfg.ProfitRunHour > 23 {
		return nil, fmt.Errorf("config.Load: PROFIT_RUN_HOUR %d out of range 0-23", cfg.ProfitRunHour)
	}
	return &cfg, nil
}

func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.ProfitTimezone)
	if err != nil {
		return nil, fmt.Errorf("PROFIT_TIMEZONE: %w", err)
	}
	return loc, nil
}

// LevelRates maps each investment level to its daily profit rate in percent.
func (c *Config) LevelRates() (map[int]decimal.Decimal, error) {
	if len(c.LevelRatesRaw) == 0 {
		return nil, errors.New("INVESTMENT_LEVEL_RATES: no levels configured")
	}

	rates := make(map[int]decimal.Decimal, len(c.LevelRatesRaw))
	for k, v := range c.LevelRatesRaw {
		level, err := strconv.Atoi(k)
		if err != nil || level <= 0 {
			return nil, fmt.Errorf("INVESTMENT_LEVEL_RATES: bad level %q", k)
		}
		rate, err := decimal.NewFromString(v)
		if err != nil || rate.IsNegative() {
			return nil, fmt.Errorf("INVESTMENT_LEVEL_RATES: bad rate %q for level %d", v, level)
		}
		rates[level] = rate
	}
	return rates, nil
}
