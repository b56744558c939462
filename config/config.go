package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const defaultSiteConfigPath = "config/sites/myhome_az.yaml"

type Config struct {
	Site      *SiteConfig
	Scraper   ScraperConfig
	Scheduler SchedulerConfig
	Proxy     ProxyConfig
	Output    OutputConfig
	S3        S3Config
	DBPath    string
	// DatabaseURL enables the optional Postgres sink when set.
	DatabaseURL string
	LogPath     string
	LogLevel    string
}

type ScraperConfig struct {
	RequestDelay      time.Duration
	MaxRetries        int
	RetryBackoff      time.Duration
	RateLimitBackoff  time.Duration
	BatchSize         int
	BatchPause        time.Duration
	PhoneConcurrency  int
	RequestsPerSecond float64
	ConnectTimeout    time.Duration
	RequestTimeout    time.Duration
	MaxBodyBytes      int64
}

type SchedulerConfig struct {
	Interval time.Duration
	Cron     string
}

type ProxyConfig struct {
	URL string
}

type OutputConfig struct {
	Dir  string
	CSV  bool
	XLSX bool
}

type S3Config struct {
	Bucket          string
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	Prefix          string
}

func (c S3Config) Enabled() bool {
	return c.Bucket != ""
}

type SiteConfig struct {
	ID           string            `yaml:"id"`
	Name         string            `yaml:"name"`
	BaseURL      string            `yaml:"base_url"`
	ListPath     string            `yaml:"list_path"`
	PhonePath    string            `yaml:"phone_path"`
	Headers      map[string]string `yaml:"headers"`
	PhoneHeaders map[string]string `yaml:"phone_headers"`
}

// ListURL builds the paginated list endpoint for a category code.
func (s *SiteConfig) ListURL(categoryCode, page int) string {
	return fmt.Sprintf("%s%s?announcementType=%d&page=%d", s.BaseURL, s.ListPath, categoryCode, page)
}

func (s *SiteConfig) PhoneURL(listingID int64) string {
	return fmt.Sprintf("%s%s/%d", s.BaseURL, s.PhonePath, listingID)
}

// DefaultScraper returns the collection constants the fetcher was tuned with.
func DefaultScraper() ScraperConfig {
	return ScraperConfig{
		RequestDelay:     500 * time.Millisecond,
		MaxRetries:       3,
		RetryBackoff:     2 * time.Second,
		RateLimitBackoff: 5 * time.Second,
		BatchSize:        10,
		BatchPause:       time.Second,
		PhoneConcurrency: 5,
		ConnectTimeout:   10 * time.Second,
		RequestTimeout:   30 * time.Second,
		MaxBodyBytes:     100 * 1024 * 1024,
	}
}

// DefaultSite is used when no site YAML is present.
func DefaultSite() *SiteConfig {
	return &SiteConfig{
		ID:        "myhome_az",
		Name:      "MyHome.az",
		BaseURL:   "https://api.myhome.az/api/announcement",
		ListPath:  "/list",
		PhonePath: "/phone",
		Headers: map[string]string{
			"Accept":          "application/json",
			"Accept-Encoding": "gzip, deflate, br, zstd",
			"Accept-Language": "en-GB,en-US;q=0.9,en;q=0.8,ru;q=0.7,az;q=0.6",
			"Authorization":   "Bearer undefined",
			"Origin":          "https://myhome.az",
			"Referer":         "https://myhome.az/",
			"User-Agent":      "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/140.0.0.0 Safari/537.36",
		},
		PhoneHeaders: map[string]string{
			"Accept":          "*/*",
			"Accept-Encoding": "gzip, deflate, br, zstd",
			"Accept-Language": "en-GB,en-US;q=0.9,en;q=0.8,ru;q=0.7,az;q=0.6",
			"Origin":          "https://myhome.az",
			"Referer":         "https://myhome.az/",
			"User-Agent":      "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/140.0.0.0 Safari/537.36",
		},
	}
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	defaults := DefaultScraper()
	cfg := &Config{
		Scraper: ScraperConfig{
			RequestDelay:      getEnvDuration("SCRAPE_DELAY", defaults.RequestDelay),
			MaxRetries:        getEnvInt("SCRAPE_MAX_RETRIES", defaults.MaxRetries),
			RetryBackoff:      getEnvDuration("SCRAPE_RETRY_BACKOFF", defaults.RetryBackoff),
			RateLimitBackoff:  getEnvDuration("SCRAPE_RATE_LIMIT_BACKOFF", defaults.RateLimitBackoff),
			BatchSize:         getEnvInt("SCRAPE_BATCH_SIZE", defaults.BatchSize),
			BatchPause:        getEnvDuration("SCRAPE_BATCH_PAUSE", defaults.BatchPause),
			PhoneConcurrency:  getEnvInt("SCRAPE_PHONE_CONCURRENCY", defaults.PhoneConcurrency),
			RequestsPerSecond: getEnvFloat("SCRAPE_RPS", 0),
			ConnectTimeout:    getEnvDuration("SCRAPE_CONNECT_TIMEOUT", defaults.ConnectTimeout),
			RequestTimeout:    getEnvDuration("SCRAPE_REQUEST_TIMEOUT", defaults.RequestTimeout),
			MaxBodyBytes:      defaults.MaxBodyBytes,
		},
		Scheduler: SchedulerConfig{
			Cron:     os.Getenv("SCRAPE_CRON"),
			Interval: getEnvDuration("SCRAPE_INTERVAL", 0),
		},
		Proxy: ProxyConfig{
			URL: os.Getenv("PROXY_URL"),
		},
		Output: OutputConfig{
			Dir:  getEnv("OUTPUT_DIR", "output"),
			CSV:  getEnv("EXPORT_CSV", "true") == "true",
			XLSX: getEnv("EXPORT_XLSX", "true") == "true",
		},
		S3: S3Config{
			Bucket:          os.Getenv("S3_BUCKET"),
			Region:          getEnv("S3_REGION", "us-east-1"),
			Endpoint:        os.Getenv("S3_ENDPOINT"),
			AccessKeyID:     os.Getenv("S3_ACCESS_KEY_ID"),
			SecretAccessKey: os.Getenv("S3_SECRET_ACCESS_KEY"),
			Prefix:          getEnv("S3_PREFIX", "exports"),
		},
		DBPath:      getEnv("DB_PATH", "scraper.db"),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		LogPath:     getEnv("LOG_PATH", "scraper.log"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
	}

	site, err := LoadSite(getEnv("SITE_CONFIG", defaultSiteConfigPath))
	if err != nil {
		return nil, err
	}
	if base := os.Getenv("MYHOME_BASE_URL"); base != "" {
		site.BaseURL = base
	}
	cfg.Site = site

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadSite reads a site YAML, falling back to DefaultSite when the file does
// not exist. Fields missing from the file keep their defaults.
func LoadSite(path string) (*SiteConfig, error) {
	site := DefaultSite()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return site, nil
		}
		return nil, fmt.Errorf("read site config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, site); err != nil {
		return nil, fmt.Errorf("parse site config %s: %w", path, err)
	}
	return site, nil
}

func (c *Config) Validate() error {
	if c.Site == nil || c.Site.BaseURL == "" {
		return fmt.Errorf("site base_url is required")
	}
	if c.Scraper.MaxRetries < 1 {
		return fmt.Errorf("SCRAPE_MAX_RETRIES must be >= 1, got %d", c.Scraper.MaxRetries)
	}
	if c.Scraper.BatchSize < 1 {
		return fmt.Errorf("SCRAPE_BATCH_SIZE must be >= 1, got %d", c.Scraper.BatchSize)
	}
	if c.Scraper.PhoneConcurrency < 1 {
		return fmt.Errorf("SCRAPE_PHONE_CONCURRENCY must be >= 1, got %d", c.Scraper.PhoneConcurrency)
	}
	return nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}
