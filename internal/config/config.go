package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port int `yaml:"port"`
	} `yaml:"server"`

	Storage struct {
		Path string `yaml:"path"`
	} `yaml:"storage"`

	Monitor struct {
		LiquidationThreshold float64 `yaml:"liquidation_threshold"`
		PriceAlertThreshold  float64 `yaml:"price_alert_threshold"`
	} `yaml:"monitor"`

	Webhook struct {
		VerifySignature  bool     `yaml:"verify_signature"`
		TrustedVerifiers []string `yaml:"trusted_verifiers"`
		RateLimitPerSec  float64  `yaml:"rate_limit_per_sec"`
		RateLimitBurst   int      `yaml:"rate_limit_burst"`
	} `yaml:"webhook"`

	Notifications struct {
		URL       string `yaml:"url"`
		TimeoutMs int    `yaml:"timeout_ms"`
	} `yaml:"notifications"`

	Funding struct {
		IntervalMs int     `yaml:"interval_ms"`
		Volatility float64 `yaml:"volatility"`
	} `yaml:"funding"`

	Oracle struct {
		RESTEndpoint string            `yaml:"rest_endpoint"`
		WSEndpoint   string            `yaml:"ws_endpoint"`
		VsCurrency   string            `yaml:"vs_currency"`
		PollMs       int               `yaml:"poll_ms"`
		AssetIDs     map[string]string `yaml:"asset_ids"`
	} `yaml:"oracle"`

	Logging struct {
		Level string `yaml:"level"`
	} `yaml:"logging"`
}

// Load reads the YAML file, then applies PERPMON_* environment overrides so
// secrets like the notification URL can be injected at deploy time. A .env
// file is loaded first when present.
func Load(path string) (*Config, error) {
	cfg := defaults()

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	if err := yaml.NewDecoder(f).Decode(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	_ = godotenv.Load()
	applyEnvOverrides(cfg)

	return cfg, nil
}

func defaults() *Config {
	cfg := &Config{}
	cfg.Server.Port = 8080
	cfg.Storage.Path = "perpmon.db"
	cfg.Monitor.LiquidationThreshold = 0.8
	cfg.Monitor.PriceAlertThreshold = 0.05
	cfg.Webhook.RateLimitPerSec = 10
	cfg.Webhook.RateLimitBurst = 20
	cfg.Notifications.TimeoutMs = 10000
	cfg.Funding.IntervalMs = 60000
	cfg.Funding.Volatility = 0.1
	cfg.Oracle.VsCurrency = "usd"
	cfg.Oracle.PollMs = 30000
	cfg.Logging.Level = "info"
	return cfg
}

func applyEnvOverrides(cfg *Config) {
	setStr(&cfg.Notifications.URL, "PERPMON_NOTIFY_URL")
	setStr(&cfg.Storage.Path, "PERPMON_DB_PATH")
	setStr(&cfg.Oracle.RESTEndpoint, "PERPMON_ORACLE_REST_ENDPOINT")
	setStr(&cfg.Oracle.WSEndpoint, "PERPMON_ORACLE_WS_ENDPOINT")
	setStr(&cfg.Logging.Level, "PERPMON_LOG_LEVEL")
	setInt(&cfg.Server.Port, "PERPMON_PORT")
	setBool(&cfg.Webhook.VerifySignature, "PERPMON_VERIFY_SIGNATURE")
}

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}
