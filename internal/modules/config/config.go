package config

import (
	"os"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

const (
	configFileENV  = "CONFIG_FILE"
	apiKeyENV      = "BINANCE_API_KEY"
	apiSecretENV   = "BINANCE_API_SECRET"
	testAPIKeyENV  = "BINANCE_TEST_API_KEY"
	testSecretENV  = "BINANCE_TEST_API_SECRET"
	telegramENV    = "TELEGRAM_TOKEN"
	telegramChatID = "TELEGRAM_CHAT_ID"
	databaseDSNENV = "DATABASE_DSN"
)

type Config struct {
	Symbol  string `mapstructure:"symbol"`
	Asset   string `mapstructure:"asset"`
	Testnet bool   `mapstructure:"testnet"`

	// Secrets come from the environment only, never from the file.
	APIKey    string
	APISecret string

	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	KlinesLimit    int           `mapstructure:"klines_limit"`
	SafetyMargin   time.Duration `mapstructure:"safety_margin"`
	WakeOffset     time.Duration `mapstructure:"wake_offset"`
	Checkpoint     string        `mapstructure:"checkpoint"`

	Risk struct {
		RiskPct          float64 `mapstructure:"risk_pct"`
		SLPct            float64 `mapstructure:"sl_pct"`
		TPPct            float64 `mapstructure:"tp_pct"`
		MaxDailyLoss     float64 `mapstructure:"max_daily_loss"`
		MaxTradesPerDay  int     `mapstructure:"max_trades_per_day"`
		MaxTradesPerHour int     `mapstructure:"max_trades_per_hour"`
	} `mapstructure:"risk"`

	Strategy struct {
		Name      string `mapstructure:"name"`
		FastEMA   int    `mapstructure:"fast_ema"`
		SlowEMA   int    `mapstructure:"slow_ema"`
		VolumeSMA int    `mapstructure:"volume_sma"`
	} `mapstructure:"strategy"`

	Telegram struct {
		Token  string
		ChatID int64
	}

	DB string

	Health struct {
		Addr string `mapstructure:"addr"`
	} `mapstructure:"health"`

	Tracing struct {
		Enabled bool   `mapstructure:"enabled"`
		Host    string `mapstructure:"host"`
		Port    int    `mapstructure:"port"`
	} `mapstructure:"tracing"`
}

// NewConfig loads configs/<CONFIG_FILE>.yaml (default values_local) with
// defaults matching the reference deployment, then applies environment
// overrides for secrets. A missing file is fine; a malformed one is a
// startup fault.
func NewConfig() (*Config, error) {
	v := viper.New()

	name := os.Getenv(configFileENV)
	if name == "" {
		name = "values_local"
	}
	v.SetConfigName(name)
	v.SetConfigType("yaml")
	v.AddConfigPath("configs")

	v.SetDefault("symbol", "BTCUSDT")
	v.SetDefault("asset", "USDT")
	v.SetDefault("testnet", true)
	v.SetDefault("request_timeout", "10s")
	v.SetDefault("klines_limit", 200)
	v.SetDefault("safety_margin", "1500ms")
	v.SetDefault("wake_offset", "1s")
	v.SetDefault("checkpoint", "checkpoint.json")
	v.SetDefault("risk.risk_pct", 0.001)
	v.SetDefault("risk.sl_pct", 0.01)
	v.SetDefault("risk.tp_pct", 0.01)
	v.SetDefault("strategy.name", "ema_pullback")
	v.SetDefault("strategy.fast_ema", 20)
	v.SetDefault("strategy.slow_ema", 50)
	v.SetDefault("strategy.volume_sma", 20)
	v.SetDefault("health.addr", ":8080")
	v.SetDefault("tracing.host", "127.0.0.1")
	v.SetDefault("tracing.port", 6831)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, errors.Wrap(err, "read config file")
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errors.Wrap(err, "decode config")
	}

	if cfg.Testnet {
		cfg.APIKey = firstEnv(testAPIKeyENV, apiKeyENV)
		cfg.APISecret = firstEnv(testSecretENV, apiSecretENV)
	} else {
		cfg.APIKey = os.Getenv(apiKeyENV)
		cfg.APISecret = os.Getenv(apiSecretENV)
	}
	cfg.Telegram.Token = os.Getenv(telegramENV)
	if raw := os.Getenv(telegramChatID); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, errors.Wrapf(err, "parse %s", telegramChatID)
		}
		cfg.Telegram.ChatID = id
	}
	cfg.DB = os.Getenv(databaseDSNENV)

	if cfg.Risk.SLPct <= 0 || cfg.Risk.TPPct <= 0 || cfg.Risk.RiskPct <= 0 {
		return nil, errors.New("risk percentages must be strictly positive")
	}
	return cfg, nil
}

func firstEnv(keys ...string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return ""
}
