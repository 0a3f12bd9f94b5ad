// Package config loads and validates crawler configuration via Viper.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/JakeFAU/localbiz-crawler/internal/crawler"
)

// ErrConfiguration marks invalid or incomplete configuration.
var ErrConfiguration = errors.New("configuration error")

// Config captures all crawl configuration knobs loaded via Viper.
type Config struct {
	Crawl      CrawlConfig      `mapstructure:"crawl"`
	HTTP       HTTPConfig       `mapstructure:"http"`
	Proxy      ProxyConfig      `mapstructure:"proxy"`
	Geocode    GeocodeConfig    `mapstructure:"geocode"`
	Checkpoint CheckpointConfig `mapstructure:"checkpoint"`
	Output     OutputConfig     `mapstructure:"output"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
}

// CrawlConfig governs pagination pacing and the orchestrator.
type CrawlConfig struct {
	Workers            int           `mapstructure:"workers"`
	PageDelayMin       time.Duration `mapstructure:"page_delay_min"`
	PageDelayMax       time.Duration `mapstructure:"page_delay_max"`
	NextPageDelay      time.Duration `mapstructure:"next_page_delay"`
	DetailDelayMin     time.Duration `mapstructure:"detail_delay_min"`
	DetailDelayMax     time.Duration `mapstructure:"detail_delay_max"`
	LongPauseEveryPage int           `mapstructure:"long_pause_every_pages"`
	LongPauseMin       time.Duration `mapstructure:"long_pause_min"`
	LongPauseMax       time.Duration `mapstructure:"long_pause_max"`
	MaxPages           int           `mapstructure:"max_pages"`
	Shuffle            bool          `mapstructure:"shuffle"`
	Resume             bool          `mapstructure:"resume"`
	AutosaveEvery      int           `mapstructure:"autosave_every"`
	SearchRadius       int           `mapstructure:"search_radius"`

	Selectors crawler.Selectors `mapstructure:"selectors"`
}

// HTTPConfig configures the fetch client and its retry behavior.
type HTTPConfig struct {
	BaseURL     string        `mapstructure:"base_url"`
	Timeout     time.Duration `mapstructure:"timeout"`
	MaxAttempts int           `mapstructure:"max_attempts"`
	BackoffBase float64       `mapstructure:"backoff_base"`
	JitterMin   time.Duration `mapstructure:"jitter_min"`
	JitterMax   time.Duration `mapstructure:"jitter_max"`
	UserAgents  []string      `mapstructure:"user_agents"`
}

// ProxyConfig holds the rotating proxy credentials.
type ProxyConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	User           string `mapstructure:"user"`
	Pass           string `mapstructure:"pass"`
	Host           string `mapstructure:"host"`
	DirectFallback bool   `mapstructure:"direct_fallback"`
}

// GeocodeConfig controls address enrichment.
type GeocodeConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	APIKey      string        `mapstructure:"api_key"`
	Endpoint    string        `mapstructure:"endpoint"`
	MinInterval time.Duration `mapstructure:"min_interval"`
	MaxAttempts int           `mapstructure:"max_attempts"`
	CachePath   string        `mapstructure:"cache_path"`
	Quota       int64         `mapstructure:"quota"`
}

// CheckpointConfig locates the resume ledgers.
type CheckpointConfig struct {
	Dir string `mapstructure:"dir"`
}

// OutputConfig selects where records are persisted.
type OutputConfig struct {
	Dir         string `mapstructure:"dir"`
	PostgresDSN string `mapstructure:"postgres_dsn"`
	Table       string `mapstructure:"table"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// MetricsConfig exposes the status and Prometheus endpoints when Addr is set.
type MetricsConfig struct {
	Addr   string `mapstructure:"addr"`
	APIKey string `mapstructure:"api_key"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("LISTINGS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("crawl.workers", 5)
	v.SetDefault("crawl.page_delay_min", 2500*time.Millisecond)
	v.SetDefault("crawl.page_delay_max", 5*time.Second)
	v.SetDefault("crawl.next_page_delay", 2*time.Second)
	v.SetDefault("crawl.detail_delay_min", 400*time.Millisecond)
	v.SetDefault("crawl.detail_delay_max", time.Second)
	v.SetDefault("crawl.long_pause_every_pages", 10)
	v.SetDefault("crawl.long_pause_min", 15*time.Second)
	v.SetDefault("crawl.long_pause_max", 35*time.Second)
	v.SetDefault("crawl.max_pages", 0)
	v.SetDefault("crawl.shuffle", true)
	v.SetDefault("crawl.resume", true)
	v.SetDefault("crawl.autosave_every", 1)
	v.SetDefault("crawl.search_radius", 2415)
	setSelectorDefaults(v, crawler.DefaultSelectors())
	v.SetDefault("http.base_url", crawler.DefaultBaseURL)
	v.SetDefault("http.timeout", 30*time.Second)
	v.SetDefault("http.max_attempts", 3)
	v.SetDefault("http.backoff_base", 2.0)
	v.SetDefault("http.jitter_min", 300*time.Millisecond)
	v.SetDefault("http.jitter_max", 1200*time.Millisecond)
	v.SetDefault("http.user_agents", crawler.DefaultUserAgents)
	v.SetDefault("proxy.enabled", false)
	v.SetDefault("proxy.user", "")
	v.SetDefault("proxy.pass", "")
	v.SetDefault("proxy.host", "proxy.packetstream.io:31112")
	v.SetDefault("proxy.direct_fallback", true)
	v.SetDefault("geocode.enabled", true)
	v.SetDefault("geocode.api_key", "")
	v.SetDefault("geocode.endpoint", "https://maps.googleapis.com/maps/api/geocode/json")
	v.SetDefault("geocode.min_interval", 200*time.Millisecond)
	v.SetDefault("geocode.max_attempts", 3)
	v.SetDefault("geocode.cache_path", "geocode_cache.json")
	v.SetDefault("geocode.quota", 0)
	v.SetDefault("checkpoint.dir", "checkpoints")
	v.SetDefault("output.dir", "output")
	v.SetDefault("output.postgres_dsn", "")
	v.SetDefault("output.table", "business_records")
	v.SetDefault("logging.development", true)
	v.SetDefault("metrics.addr", "")
	v.SetDefault("metrics.api_key", "")
}

func setSelectorDefaults(v *viper.Viper, s crawler.Selectors) {
	for key, val := range map[string]string{
		"listing":           s.Listing,
		"listing_id_attr":   s.ListingIDAttr,
		"next_page_xpath":   s.NextPageXPath,
		"name":              s.Name,
		"address":           s.Address,
		"address_xpath":     s.AddressXPath,
		"phone":             s.Phone,
		"hours_rows":        s.HoursRows,
		"website":           s.Website,
		"rating":            s.Rating,
		"category_xpath":    s.CategoryXPath,
		"category_split_on": s.CategorySplitOn,
	} {
		v.SetDefault("crawl.selectors."+key, val)
	}
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	var errs []error
	check := func(bad bool, format string, args ...any) {
		if bad {
			errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrConfiguration}, args...)...))
		}
	}

	check(c.Crawl.Workers <= 0, "crawl.workers must be > 0")
	check(c.Crawl.MaxPages < 0, "crawl.max_pages must be >= 0")
	check(c.Crawl.AutosaveEvery < 0, "crawl.autosave_every must be >= 0")
	check(c.Crawl.LongPauseEveryPage < 0, "crawl.long_pause_every_pages must be >= 0")
	check(c.Crawl.PageDelayMin > c.Crawl.PageDelayMax, "crawl.page_delay_min exceeds crawl.page_delay_max")
	check(c.Crawl.DetailDelayMin > c.Crawl.DetailDelayMax, "crawl.detail_delay_min exceeds crawl.detail_delay_max")
	check(c.Crawl.LongPauseMin > c.Crawl.LongPauseMax, "crawl.long_pause_min exceeds crawl.long_pause_max")
	check(c.HTTP.Timeout <= 0, "http.timeout must be > 0")
	check(c.HTTP.MaxAttempts <= 0, "http.max_attempts must be > 0")
	check(c.HTTP.BackoffBase < 1, "http.backoff_base must be >= 1")
	check(c.HTTP.JitterMin > c.HTTP.JitterMax, "http.jitter_min exceeds http.jitter_max")
	check(c.Proxy.Enabled && (c.Proxy.User == "" || c.Proxy.Pass == ""),
		"proxy.user and proxy.pass must be set when the proxy is enabled")
	check(c.Proxy.Enabled && c.Proxy.Host == "", "proxy.host must be set when the proxy is enabled")
	check(c.Geocode.Enabled && c.Geocode.APIKey == "", "geocode.api_key must be set when geocoding is enabled")
	check(c.Geocode.Enabled && c.Geocode.MaxAttempts <= 0, "geocode.max_attempts must be > 0")
	check(c.Geocode.MinInterval < 0, "geocode.min_interval must be >= 0")
	check(c.Output.PostgresDSN != "" && c.Output.Table == "", "output.table must be set with output.postgres_dsn")

	return errors.Join(errs...)
}

// ProxyURL renders the proxy as a URL, or "" when proxying is disabled.
func (c Config) ProxyURL() string {
	if !c.Proxy.Enabled {
		return ""
	}
	u := url.URL{
		Scheme: "http",
		User:   url.UserPassword(c.Proxy.User, c.Proxy.Pass),
		Host:   c.Proxy.Host,
	}
	return u.String()
}

// UseDirectFallback reports whether exhausted proxied fetches get one direct
// attempt. Without a proxy every attempt is already direct.
func (c Config) UseDirectFallback() bool {
	return c.Proxy.Enabled && c.Proxy.DirectFallback
}

// FetchPolicy converts the HTTP retry knobs into a backoff policy.
func (c Config) FetchPolicy() crawler.BackoffPolicy {
	return crawler.BackoffPolicy{
		MaxAttempts: c.HTTP.MaxAttempts,
		Base:        c.HTTP.BackoffBase,
		JitterMin:   c.HTTP.JitterMin,
		JitterMax:   c.HTTP.JitterMax,
	}
}

// GeocodePolicy shares the HTTP backoff curve with its own attempt budget.
func (c Config) GeocodePolicy() crawler.BackoffPolicy {
	p := c.FetchPolicy()
	p.MaxAttempts = c.Geocode.MaxAttempts
	return p
}

// WalkerConfig builds the pagination settings.
func (c Config) WalkerConfig() crawler.WalkerConfig {
	wc := crawler.DefaultWalkerConfig()
	wc.PageDelay = crawler.DelayRange{Min: c.Crawl.PageDelayMin, Max: c.Crawl.PageDelayMax}
	wc.NextPageDelay = c.Crawl.NextPageDelay
	wc.LongPauseEvery = c.Crawl.LongPauseEveryPage
	wc.LongPause = crawler.DelayRange{Min: c.Crawl.LongPauseMin, Max: c.Crawl.LongPauseMax}
	wc.MaxPages = c.Crawl.MaxPages
	wc.URLs = crawler.URLBuilder{BaseURL: c.HTTP.BaseURL, Radius: c.Crawl.SearchRadius}
	wc.Selectors = c.Crawl.Selectors.WithDefaults()
	return wc
}

// PoolConfig builds the detail worker settings.
func (c Config) PoolConfig() crawler.PoolConfig {
	pc := crawler.DefaultPoolConfig()
	pc.Workers = c.Crawl.Workers
	pc.DetailDelay = crawler.DelayRange{Min: c.Crawl.DetailDelayMin, Max: c.Crawl.DetailDelayMax}
	pc.Selectors = c.Crawl.Selectors.WithDefaults()
	return pc
}

// RunOptions builds the orchestrator options; the caller supplies Persist.
func (c Config) RunOptions() crawler.Options {
	return crawler.Options{
		Shuffle:       c.Crawl.Shuffle,
		Resume:        c.Crawl.Resume,
		AutosaveEvery: c.Crawl.AutosaveEvery,
	}
}
