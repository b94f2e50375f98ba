package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"SignalPulse/pkg/logger"
)

type Config struct {
	Environment string `yaml:"environment" default:"development"`
	Server      struct {
		Port            int           `yaml:"port" default:"8080"`
		ReadTimeout     time.Duration `yaml:"read_timeout" default:"10s"`
		WriteTimeout    time.Duration `yaml:"write_timeout" default:"30s"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"15s"`
	} `yaml:"server"`
	Metrics struct {
		Enabled bool   `yaml:"enabled" default:"true"`
		Path    string `yaml:"path" default:"/metrics"`
	} `yaml:"metrics"`
	Logger      logger.Config     `yaml:"logger"`
	Engine      EngineConfig      `yaml:"engine"`
	Attribution AttributionConfig `yaml:"attribution"`
	MarketData  MarketDataConfig  `yaml:"marketdata"`
	Postgres    struct {
		DSN             string        `yaml:"dsn"`
		MaxOpenConns    int           `yaml:"max_open_conns" default:"10"`
		MaxIdleConns    int           `yaml:"max_idle_conns" default:"5"`
		ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" default:"30m"`
		AutoMigrate     bool          `yaml:"auto_migrate" default:"true"`
	} `yaml:"postgres"`
	ClickHouse struct {
		Host             string        `yaml:"host" default:"localhost"`
		Port             int           `yaml:"port" default:"9000"`
		Database         string        `yaml:"database" default:"signalpulse"`
		User             string        `yaml:"user" default:"default"`
		Password         string        `yaml:"password"`
		UseHTTP          bool          `yaml:"use_http"`
		AsyncInsert      bool          `yaml:"async_insert"`
		WaitForAsync     bool          `yaml:"wait_for_async_insert"`
		DialTimeout      time.Duration `yaml:"dial_timeout" default:"5s"`
		ReadTimeout      time.Duration `yaml:"read_timeout" default:"30s"`
		WriteTimeout     time.Duration `yaml:"write_timeout" default:"30s"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time" default:"60s"`
	} `yaml:"clickhouse"`
	Kafka struct {
		Brokers      []string `yaml:"brokers"`
		RequiredAcks int      `yaml:"required_acks" default:"1"`
		Compression  string   `yaml:"compression" default:"snappy"`
		Topics       struct {
			Emitted string `yaml:"emitted" default:"signals.emitted"`
			Closed  string `yaml:"closed" default:"signals.closed"`
			Logs    string `yaml:"logs" default:"signalpulse.logs"`
		} `yaml:"topics"`
		Producer struct {
			MaxAttempts  int           `yaml:"max_attempts" default:"5"`
			Linger       time.Duration `yaml:"linger" default:"50ms"`
			BatchBytes   int           `yaml:"batch_bytes" default:"1048576"`
			BatchSize    int           `yaml:"batch_size" default:"100"`
			WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
			ReadTimeout  time.Duration `yaml:"read_timeout" default:"10s"`
			Async        bool          `yaml:"async"`
		} `yaml:"producer"`
		Consumer struct {
			GroupID    string        `yaml:"group_id" default:"signalpulse-attribution"`
			Workers    int           `yaml:"workers" default:"4"`
			BufferSize int           `yaml:"buffer_size" default:"256"`
			RetryMax   int           `yaml:"retry_max" default:"3"`
			BackoffMin time.Duration `yaml:"backoff_min" default:"200ms"`
			BackoffMax time.Duration `yaml:"backoff_max" default:"5s"`
			DLQTopic   string        `yaml:"dlq_topic" default:"signals.closed.dlq"`
			MinBytes   int           `yaml:"min_bytes" default:"1"`
			MaxBytes   int           `yaml:"max_bytes" default:"10485760"`
		} `yaml:"consumer"`
	} `yaml:"kafka"`
	Redis struct {
		Enabled  bool   `yaml:"enabled" default:"true"`
		Addr     string `yaml:"addr" default:"localhost:6379"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`
	Queue struct {
		Name            string        `yaml:"name" default:"signalpulse"`
		Workers         int           `yaml:"workers" default:"2"`
		MaxRetries      int           `yaml:"max_retries" default:"3"`
		PollInterval    time.Duration `yaml:"poll_interval" default:"1s"`
		RetryDelay      time.Duration `yaml:"retry_delay" default:"5s"`
		// DailyAnalysisAt is the UTC hour the daily analysis job is enqueued.
		DailyAnalysisAt int           `yaml:"daily_analysis_at" default:"22"`
	} `yaml:"queue"`
	Finnhub struct {
		Enabled        bool          `yaml:"enabled"`
		APIKey         string        `yaml:"api_key"`
		WebSocketURL   string        `yaml:"websocket_url" default:"wss://ws.finnhub.io"`
		ReconnectDelay time.Duration `yaml:"reconnect_delay" default:"5s"`
		PingInterval   time.Duration `yaml:"ping_interval" default:"30s"`
		MaxRPS         int           `yaml:"max_rps" default:"200"`
		BufferSize     int           `yaml:"buffer_size" default:"2048"`
	} `yaml:"finnhub"`
	Auth struct {
		Enabled   bool   `yaml:"enabled"`
		JWTSecret string `yaml:"jwt_secret"`
		Issuer    string `yaml:"issuer" default:"signalpulse"`
	} `yaml:"auth"`
}

// EngineConfig drives the detection cycle.
type EngineConfig struct {
	MinRiskReward      float64       `yaml:"min_risk_reward" default:"2.0"`
	MinConfidence      int           `yaml:"min_confidence" default:"6"`
	MaxSignalsPerCycle int           `yaml:"max_signals_per_cycle" default:"15"`
	Concurrency        int           `yaml:"concurrency" default:"8"`
	SymbolTimeout      time.Duration `yaml:"symbol_timeout" default:"20s"`
	CycleInterval      time.Duration `yaml:"cycle_interval" default:"15m"`
	// InvestmentHour is the hour, in InvestmentTimezone, at which investment
	// detectors run.
	InvestmentHour     int    `yaml:"investment_hour" default:"9"`
	InvestmentTimezone string `yaml:"investment_timezone" default:"Asia/Kolkata"`
	// FamilyMinConfidence gates proposals per strategy before global selection.
	FamilyMinConfidence map[string]int `yaml:"family_min_confidence"`
	Universe            struct {
		IndianEquity []string `yaml:"indian_equity"`
		USEquity     []string `yaml:"us_equity"`
		Crypto       []string `yaml:"crypto"`
		Forex        []string `yaml:"forex"`
	} `yaml:"universe"`
	Horizons struct {
		Intraday   HorizonConfig `yaml:"intraday"`
		Swing      HorizonConfig `yaml:"swing"`
		Investment HorizonConfig `yaml:"investment"`
	} `yaml:"horizons"`
}

type HorizonConfig struct {
	Period   string `yaml:"period"`
	Interval string `yaml:"interval"`
	MinBars  int    `yaml:"min_bars"`
}

type AttributionConfig struct {
	RiskFreeRate float64 `yaml:"risk_free_rate" default:"0.05"`
	TradingDays  int     `yaml:"trading_days" default:"252"`
	// HighConfidence and LowConfidence are the implied-win-probability cut-offs
	// of the quality score calibration rule.
	HighConfidence    float64           `yaml:"high_confidence" default:"0.7"`
	LowConfidence     float64           `yaml:"low_confidence" default:"0.4"`
	HitTolerance      float64           `yaml:"hit_tolerance" default:"0.01"`
	ExcursionInterval string            `yaml:"excursion_interval" default:"5m"`
	Benchmarks        map[string]string `yaml:"benchmarks"`
}

type MarketDataConfig struct {
	Alpaca     AlpacaConfig     `yaml:"alpaca"`
	TwelveData TwelveDataConfig `yaml:"twelvedata"`
	// Routes maps an asset class to a provider name ("alpaca" or "twelvedata").
	Routes map[string]string `yaml:"routes"`

	// SymbolRoutes pins individual tickers, such as benchmark indices, to a
	// provider regardless of their asset class.
	SymbolRoutes map[string]string `yaml:"symbol_routes"`

	Cache struct {
		Enabled   bool          `yaml:"enabled" default:"true"`
		TTL       time.Duration `yaml:"ttl" default:"2m"`
		Namespace string        `yaml:"namespace" default:"bars"`
	} `yaml:"cache"`
}

type AlpacaConfig struct {
	APIKey    string    `yaml:"api_key"`
	APISecret string    `yaml:"api_secret"`
	BaseURL   string    `yaml:"base_url"`
	Feed      string    `yaml:"feed" default:"iex"`
	RateLimit RateLimit `yaml:"rate_limit"`
}

type TwelveDataConfig struct {
	APIKey    string        `yaml:"api_key"`
	BaseURL   string        `yaml:"base_url" default:"https://api.twelvedata.com"`
	Timeout   time.Duration `yaml:"timeout" default:"10s"`
	RateLimit RateLimit     `yaml:"rate_limit"`

	// Aliases rewrites tickers to the provider's own naming (^GSPC -> SPX).
	Aliases map[string]string `yaml:"aliases"`
}

type RateLimit struct {
	Capacity     int     `yaml:"capacity" default:"8"`
	RefillPerSec float64 `yaml:"refill_per_sec" default:"3"`
}

// Load reads a YAML configuration file on top of the built-in defaults.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(b)
}

// Parse decodes raw YAML on top of the built-in defaults and validates it.
func Parse(raw []byte) (*Config, error) {
	var c Config
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("apply defaults: %w", err)
	}
	if err := yaml.Unmarshal(raw, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	c.fillMaps()

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &c, nil
}

// LoadWithEnv loads an optional .env file, the YAML config, and then applies
// environment overrides.
func LoadWithEnv(path string) (*Config, error) {
	// a missing .env is normal outside local development
	_ = godotenv.Load()

	c, err := Load(path)
	if err != nil {
		return nil, err
	}

	if v := os.Getenv("APP_ENV"); v != "" {
		c.Environment = v
	}
	if v := os.Getenv("POSTGRES_DSN"); v != "" {
		c.Postgres.DSN = v
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
	}
	if v := os.Getenv("CLICKHOUSE_HOST"); v != "" {
		c.ClickHouse.Host = v
	}
	if v := os.Getenv("CLICKHOUSE_PASSWORD"); v != "" {
		c.ClickHouse.Password = v
	}
	if v := os.Getenv("ALPACA_API_KEY"); v != "" {
		c.MarketData.Alpaca.APIKey = v
	}
	if v := os.Getenv("ALPACA_API_SECRET"); v != "" {
		c.MarketData.Alpaca.APISecret = v
	}
	if v := os.Getenv("TWELVEDATA_API_KEY"); v != "" {
		c.MarketData.TwelveData.APIKey = v
	}
	if v := os.Getenv("FINNHUB_API_KEY"); v != "" {
		c.Finnhub.APIKey = v
	}
	if v := os.Getenv("JWT_SECRET"); v != "" {
		c.Auth.JWTSecret = v
	}
	if v := os.Getenv("ENGINE_CONCURRENCY"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("ENGINE_CONCURRENCY: %w", err)
		}
		c.Engine.Concurrency = n
	}

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

func (c *Config) fillMaps() {
	if c.Engine.FamilyMinConfidence == nil {
		c.Engine.FamilyMinConfidence = map[string]int{
			"MEAN_REVERSION":     6,
			"MOMENTUM":           6,
			"SCALPING":           7,
			"TREND":              6,
			"SUPPORT_RESISTANCE": 7,
			"VALUE":              7,
			"GROWTH":             6,
		}
	}
	if c.Attribution.Benchmarks == nil {
		c.Attribution.Benchmarks = map[string]string{
			"INDIAN_EQUITY": "^NSEI",
			"US_EQUITY":     "^GSPC",
			"CRYPTO":        "BTC-USD",
			"FOREX":         "DX-Y.NYB",
		}
	}
	if c.MarketData.Routes == nil {
		c.MarketData.Routes = map[string]string{
			"US_EQUITY":     "alpaca",
			"CRYPTO":        "alpaca",
			"INDIAN_EQUITY": "twelvedata",
			"FOREX":         "twelvedata",
		}
	}
	if c.MarketData.SymbolRoutes == nil {
		c.MarketData.SymbolRoutes = map[string]string{
			"^GSPC":    "twelvedata",
			"^NSEI":    "twelvedata",
			"DX-Y.NYB": "twelvedata",
		}
	}
	if c.MarketData.TwelveData.Aliases == nil {
		c.MarketData.TwelveData.Aliases = map[string]string{
			"^GSPC":    "SPX",
			"^NSEI":    "NIFTY",
			"DX-Y.NYB": "DXY",
		}
	}

	h := &c.Engine.Horizons
	setHorizon(&h.Intraday, "2d", "5m", 50)
	setHorizon(&h.Swing, "30d", "1h", 100)
	setHorizon(&h.Investment, "1y", "1d", 20)
}

func setHorizon(h *HorizonConfig, period, interval string, minBars int) {
	if h.Period == "" {
		h.Period = period
	}
	if h.Interval == "" {
		h.Interval = interval
	}
	if h.MinBars == 0 {
		h.MinBars = minBars
	}
}

// Symbols returns the whole detection universe in configuration order.
func (e EngineConfig) Symbols() []string {
	u := e.Universe
	out := make([]string, 0, len(u.IndianEquity)+len(u.USEquity)+len(u.Crypto)+len(u.Forex))
	out = append(out, u.IndianEquity...)
	out = append(out, u.USEquity...)
	out = append(out, u.Crypto...)
	out = append(out, u.Forex...)
	return out
}

// Validate checks if the configuration is usable.
func (c *Config) Validate() error {
	if c.Environment == "" {
		return errors.New("environment is required")
	}
	if c.Engine.MinRiskReward <= 0 {
		return fmt.Errorf("engine.min_risk_reward must be positive, got %v", c.Engine.MinRiskReward)
	}
	if c.Engine.MinConfidence < 1 || c.Engine.MinConfidence > 10 {
		return fmt.Errorf("engine.min_confidence must be within [1,10], got %d", c.Engine.MinConfidence)
	}
	if c.Engine.MaxSignalsPerCycle <= 0 {
		return errors.New("engine.max_signals_per_cycle must be positive")
	}
	if c.Engine.Concurrency <= 0 {
		return errors.New("engine.concurrency must be positive")
	}
	if c.Attribution.LowConfidence >= c.Attribution.HighConfidence {
		return fmt.Errorf("attribution.low_confidence (%v) must be below high_confidence (%v)",
			c.Attribution.LowConfidence, c.Attribution.HighConfidence)
	}
	for class, provider := range c.MarketData.Routes {
		if provider != "alpaca" && provider != "twelvedata" {
			return fmt.Errorf("marketdata.routes[%s] must be 'alpaca' or 'twelvedata', got '%s'", class, provider)
		}
	}
	for sym, provider := range c.MarketData.SymbolRoutes {
		if provider != "alpaca" && provider != "twelvedata" {
			return fmt.Errorf("marketdata.symbol_routes[%s] must be 'alpaca' or 'twelvedata', got '%s'", sym, provider)
		}
	}
	if c.Auth.Enabled && c.Auth.JWTSecret == "" {
		return errors.New("auth.jwt_secret is required when auth is enabled")
	}
	return nil
}
