package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Job is one cron entry: a spec and the categories it launches together.
type Job struct {
	Label      string   `yaml:"label"`
	Spec       string   `yaml:"spec"`
	Categories []string `yaml:"categories"`
}

type Config struct {
	Environment string `yaml:"environment" default:"development"`
	Log         struct {
		Level         string        `yaml:"level" default:"info"`
		Format        string        `yaml:"format" default:"json"`
		Output        string        `yaml:"output" default:"stdout"`
		Collect       bool          `yaml:"collect"` // publish aggregated errors to Kafka
		FlushInterval time.Duration `yaml:"flush_interval" default:"30s"`
	} `yaml:"log"`
	Server struct {
		Port            int           `yaml:"port" default:"8080"`
		ReadTimeout     time.Duration `yaml:"read_timeout" default:"10s"`
		WriteTimeout    time.Duration `yaml:"write_timeout" default:"10s"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"15s"`
	} `yaml:"server"`
	Metrics struct {
		Enabled bool   `yaml:"enabled" default:"true"`
		Path    string `yaml:"path" default:"/metrics"`
	} `yaml:"metrics"`
	Kafka struct {
		Enabled      bool     `yaml:"enabled"`
		Brokers      []string `yaml:"brokers"`
		RequiredAcks int      `yaml:"required_acks" default:"-1"`
		Compression  string   `yaml:"compression" default:"snappy"`
		Topics       struct {
			Signals  string `yaml:"signals" default:"signals.published"`
			Triggers string `yaml:"triggers" default:"workflow.triggers"`
			Logs     string `yaml:"logs" default:"signalforge.logs"`
		} `yaml:"topics"`
		Producer struct {
			MaxAttempts  int           `yaml:"max_attempts" default:"3"`
			Linger       time.Duration `yaml:"linger" default:"50ms"`
			BatchBytes   int64         `yaml:"batch_bytes" default:"1048576"`
			BatchSize    int           `yaml:"batch_size" default:"100"`
			WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
		} `yaml:"producer"`
		Consumer struct {
			GroupID    string        `yaml:"group_id" default:"signalforge"`
			Workers    int           `yaml:"workers" default:"2"`
			BufferSize int           `yaml:"buffer_size" default:"16"`
			RetryMax   int           `yaml:"retry_max" default:"2"`
			BackoffMin time.Duration `yaml:"backoff_min" default:"500ms"`
			BackoffMax time.Duration `yaml:"backoff_max" default:"5s"`
			DLQTopic   string        `yaml:"dlq_topic" default:"workflow.triggers.dlq"`
			MinBytes   int           `yaml:"min_bytes" default:"1"`
			MaxBytes   int           `yaml:"max_bytes" default:"1048576"`
		} `yaml:"consumer"`
	} `yaml:"kafka"`
	ClickHouse struct {
		Host         string        `yaml:"host" default:"localhost"`
		Port         int           `yaml:"port" default:"9000"`
		Database     string        `yaml:"database" default:"signalforge"`
		User         string        `yaml:"user" default:"default"`
		Password     string        `yaml:"password"`
		UseHTTP      bool          `yaml:"use_http"`
		DialTimeout  time.Duration `yaml:"dial_timeout" default:"5s"`
		ReadTimeout  time.Duration `yaml:"read_timeout" default:"30s"`
		WriteTimeout time.Duration `yaml:"write_timeout" default:"30s"`
	} `yaml:"clickhouse"`
	Redis struct {
		Addr     string `yaml:"addr"` // empty keeps cache, locks and webhooks in process
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		Prefix   string `yaml:"prefix" default:"signalforge"`
	} `yaml:"redis"`
	Finnhub struct {
		Enabled        bool          `yaml:"enabled"`
		APIKey         string        `yaml:"api_key"`
		WebSocketURL   string        `yaml:"websocket_url" default:"wss://ws.finnhub.io"`
		SnapshotWait   time.Duration `yaml:"snapshot_wait" default:"3s"`
		ReconnectDelay time.Duration `yaml:"reconnect_delay" default:"5s"`
		PingInterval   time.Duration `yaml:"ping_interval" default:"30s"`
	} `yaml:"finnhub"`
	MarketData struct {
		BaseURL         string        `yaml:"base_url" default:"http://localhost:8090"`
		APIKey          string        `yaml:"api_key"`
		Timeout         time.Duration `yaml:"timeout" default:"10s"`
		Retries         int           `yaml:"retries" default:"2"`
		HistoryDays     int           `yaml:"history_days" default:"40"`
		MacroStaleAfter time.Duration `yaml:"macro_stale_after" default:"36h"`
	} `yaml:"market_data"`
	Universe struct {
		Crypto []string `yaml:"crypto" default:"[\"BTC\",\"ETH\",\"SOL\",\"XRP\",\"BNB\"]"`
		Forex  []string `yaml:"forex" default:"[\"EURUSD\",\"GBPUSD\",\"USDJPY\",\"AUDUSD\",\"USDCAD\"]"`
		Stocks []string `yaml:"stocks" default:"[\"SPY\",\"QQQ\",\"AAPL\",\"MSFT\",\"NVDA\"]"`
	} `yaml:"universe"`
	LLM struct {
		Timeout       time.Duration `yaml:"timeout" default:"20s"`
		PromptName    string        `yaml:"prompt_name" default:"daily-bias"`
		PromptVersion int           `yaml:"prompt_version"` // 0 means latest
		Remote        struct {
			BaseURL string `yaml:"base_url" default:"https://api.openai.com/v1"`
			APIKey  string `yaml:"api_key"`
			Model   string `yaml:"model" default:"gpt-4o-mini"`
		} `yaml:"remote"`
		Embedded struct {
			BaseURL string `yaml:"base_url" default:"http://localhost:8787/ai"`
			APIKey  string `yaml:"api_key"`
			Model   string `yaml:"model" default:"@cf/meta/llama-3.1-8b-instruct"`
		} `yaml:"embedded"`
	} `yaml:"llm"`
	Telegram struct {
		Enabled  bool   `yaml:"enabled"`
		BotToken string `yaml:"bot_token"`
		ChatID   string `yaml:"chat_id"`
		BaseURL  string `yaml:"base_url" default:"https://api.telegram.org"`
		SiteURL  string `yaml:"site_url" default:"https://signalforge.example.com/signals"`
	} `yaml:"telegram"`
	Webhooks struct {
		Enabled     bool          `yaml:"enabled" default:"true"`
		Timeout     time.Duration `yaml:"timeout" default:"10s"`
		MaxFailures int           `yaml:"max_failures" default:"10"`
	} `yaml:"webhooks"`
	Scheduler struct {
		Enabled    bool          `yaml:"enabled" default:"true"`
		RunTimeout time.Duration `yaml:"run_timeout" default:"5m"`
		Jobs       []Job         `yaml:"jobs"`
	} `yaml:"scheduler"`
	API struct {
		TriggerRatePerMinute int           `yaml:"trigger_rate_per_minute" default:"6"`
		LatestCacheTTL       time.Duration `yaml:"latest_cache_ttl" default:"30s"`
	} `yaml:"api"`
}

// DefaultJobs runs crypto every four hours and the market-hours categories on weekdays.
func DefaultJobs() []Job {
	return []Job{
		{Label: "crypto-4h", Spec: "0 */4 * * *", Categories: []string{"crypto"}},
		{Label: "weekday-open", Spec: "0 7,13 * * 1-5", Categories: []string{"forex", "stocks"}},
	}
}

// Default returns a configuration with every default applied.
func Default() (*Config, error) {
	var c Config
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("apply defaults: %w", err)
	}
	c.Scheduler.Jobs = DefaultJobs()
	return &c, nil
}

// Load reads a YAML file, applies defaults to fields it leaves empty and validates.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(b)
}

// Parse is Load without the file read. Defaults are applied first so that
// explicit zero values in the document (enabled: false) win.
func Parse(b []byte) (*Config, error) {
	var c Config
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("apply defaults: %w", err)
	}
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if len(c.Scheduler.Jobs) == 0 {
		c.Scheduler.Jobs = DefaultJobs()
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &c, nil
}

// LoadWithEnv loads .env (if present), the YAML file, and then applies
// environment overrides.
func LoadWithEnv(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	c, err := Load(path)
	if err != nil {
		return nil, err
	}
	c.ApplyEnv(os.Getenv)
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

// ApplyEnv overrides secrets and endpoints from the environment.
func (c *Config) ApplyEnv(getenv func(string) string) {
	set := func(key string, dst *string) {
		if v := getenv(key); v != "" {
			*dst = v
		}
	}
	set("MARKETDATA_API_KEY", &c.MarketData.APIKey)
	set("MARKETDATA_BASE_URL", &c.MarketData.BaseURL)
	set("LLM_API_KEY", &c.LLM.Remote.APIKey)
	set("EMBEDDED_LLM_API_KEY", &c.LLM.Embedded.APIKey)
	set("TELEGRAM_BOT_TOKEN", &c.Telegram.BotToken)
	set("TELEGRAM_CHAT_ID", &c.Telegram.ChatID)
	set("FINNHUB_API_KEY", &c.Finnhub.APIKey)
	set("REDIS_ADDR", &c.Redis.Addr)
	set("CLICKHOUSE_PASSWORD", &c.ClickHouse.Password)
	if v := getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
	}
}

// Tickers returns the configured universe for a category.
func (c *Config) Tickers(category string) []string {
	switch category {
	case "crypto":
		return c.Universe.Crypto
	case "forex":
		return c.Universe.Forex
	case "stocks":
		return c.Universe.Stocks
	default:
		return nil
	}
}

// Validate checks structural settings. Missing credentials are not fatal
// here; the affected category fails at run time.
func (c *Config) Validate() error {
	if c.Environment == "" {
		return fmt.Errorf("environment is required")
	}
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be positive")
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers cannot be empty when kafka is enabled")
	}
	if c.Telegram.Enabled && c.Telegram.ChatID == "" {
		return fmt.Errorf("telegram.chat_id is required when telegram is enabled")
	}
	for _, j := range c.Scheduler.Jobs {
		if j.Spec == "" {
			return fmt.Errorf("scheduler job %q has no spec", j.Label)
		}
		for _, cat := range j.Categories {
			if c.Tickers(cat) == nil {
				return fmt.Errorf("scheduler job %q: unknown category %q", j.Label, cat)
			}
		}
	}
	return nil
}
