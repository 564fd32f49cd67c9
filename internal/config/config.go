package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration.
type Config struct {
	// Database
	DatabasePath string

	// Mastodon
	MastodonAPIURL      string
	MastodonAccessToken string
	MaxPostChars        int
	Hashtags            []string

	// Source site
	SourceListingURL    string
	SourceBodySelector  string
	SourceDetailMarker  string
	SourceAuthorClass   string
	SourceAuthorParam   string
	AttributionPrefixes []string // added to the built-in set

	// Fetching
	UserAgent         string
	RequestTimeout    time.Duration
	RequestDelay      time.Duration
	RespectRobots     bool
	MaxPoemsPerScrape int

	// Logging
	LogLevel string

	// Scheduler settings
	PostSchedule      string
	ScrapeSchedule    string
	ScrapeAlways      bool
	MaxPostsPerDay    int
	LowStockThreshold int

	// Notification settings
	NotifyHandle string

	// HTTP server
	HTTPAddr   string
	CronSecret string
	AdminToken string
}

// Load reads configuration from environment variables.
// It automatically loads .env file if present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		DatabasePath:        getEnv("DATABASE_PATH", "data/sonetobot.db"),
		MastodonAPIURL:      strings.TrimRight(getEnv("MASTODON_API_URL", "https://col.social"), "/"),
		MastodonAccessToken: getEnv("MASTODON_ACCESS_TOKEN", ""),
		Hashtags:            strings.Fields(getEnv("HASHTAGS", "#PoesíaEspañola #Poesía #Spanish #Poetry #Literatura")),
		SourceListingURL:    getEnv("SOURCE_LISTING_URL", "https://www.palabravirtual.com/index.php?ir=select_texto.php"),
		SourceBodySelector:  getEnv("SOURCE_BODY_SELECTOR", "div.texto"),
		SourceDetailMarker:  getEnv("SOURCE_DETAIL_MARKER", "ver_texto"),
		SourceAuthorClass:   getEnv("SOURCE_AUTHOR_CLASS", "autor"),
		SourceAuthorParam:   getEnv("SOURCE_AUTHOR_PARAM", "autor"),
		AttributionPrefixes: splitList(getEnv("ATTRIBUTION_PREFIXES", "")),
		UserAgent:           getEnv("USER_AGENT", "Mozilla/5.0 (compatible; SonetoBot/1.0)"),
		LogLevel:            getEnv("LOG_LEVEL", "info"),
		PostSchedule:        getEnv("POST_SCHEDULE", "0 */6 * * *"),
		ScrapeSchedule:      getEnv("SCRAPE_SCHEDULE", "30 3 * * *"),
		NotifyHandle:        getEnv("NOTIFY_HANDLE", ""),
		HTTPAddr:            getEnv("HTTP_ADDR", ":8080"),
		CronSecret:          getEnv("CRON_SECRET", ""),
		AdminToken:          getEnv("ADMIN_TOKEN", ""),
	}

	var err error
	if cfg.RequestTimeout, err = getDuration("REQUEST_TIMEOUT", "15s"); err != nil {
		return nil, err
	}
	if cfg.RequestDelay, err = getDuration("REQUEST_DELAY", "300ms"); err != nil {
		return nil, err
	}

	if cfg.MaxPostChars, err = getInt("MAX_POST_CHARS", "500"); err != nil {
		return nil, err
	}
	if cfg.MaxPoemsPerScrape, err = getInt("MAX_POEMS_PER_SCRAPE", "50"); err != nil {
		return nil, err
	}
	if cfg.MaxPostsPerDay, err = getInt("MAX_POSTS_PER_DAY", "4"); err != nil {
		return nil, err
	}
	if cfg.LowStockThreshold, err = getInt("LOW_STOCK_THRESHOLD", "10"); err != nil {
		return nil, err
	}

	if cfg.RespectRobots, err = getBool("RESPECT_ROBOTS", "true"); err != nil {
		return nil, err
	}
	if cfg.ScrapeAlways, err = getBool("SCRAPE_ALWAYS", "false"); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that required configuration is present.
func (c *Config) Validate() error {
	if c.DatabasePath == "" {
		return fmt.Errorf("DATABASE_PATH is required")
	}
	return nil
}

// ValidateForScraping checks configuration needed to scrape the source site.
func (c *Config) ValidateForScraping() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.SourceListingURL == "" {
		return fmt.Errorf("SOURCE_LISTING_URL is required for scraping")
	}
	if c.SourceBodySelector == "" {
		return fmt.Errorf("SOURCE_BODY_SELECTOR is required for scraping")
	}
	if c.SourceDetailMarker == "" {
		return fmt.Errorf("SOURCE_DETAIL_MARKER is required for scraping")
	}
	if c.RequestDelay < 0 {
		return fmt.Errorf("REQUEST_DELAY must not be negative")
	}
	return nil
}

// ValidateForPosting checks configuration needed for posting.
func (c *Config) ValidateForPosting() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.MastodonAPIURL == "" {
		return fmt.Errorf("MASTODON_API_URL is required for posting")
	}
	if c.MastodonAccessToken == "" {
		return fmt.Errorf("MASTODON_ACCESS_TOKEN is required for posting")
	}
	if c.MaxPostChars <= 0 {
		return fmt.Errorf("MAX_POST_CHARS must be positive")
	}
	return nil
}

// ValidateForServe checks all configuration needed for serve mode.
func (c *Config) ValidateForServe() error {
	if err := c.ValidateForScraping(); err != nil {
		return err
	}
	if err := c.ValidateForPosting(); err != nil {
		return err
	}
	if c.HTTPAddr == "" {
		return fmt.Errorf("HTTP_ADDR is required for serve")
	}
	return nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getInt(key, defaultVal string) (int, error) {
	n, err := strconv.Atoi(getEnv(key, defaultVal))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func getBool(key, defaultVal string) (bool, error) {
	b, err := strconv.ParseBool(getEnv(key, defaultVal))
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return b, nil
}

func getDuration(key, defaultVal string) (time.Duration, error) {
	d, err := time.ParseDuration(getEnv(key, defaultVal))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

// splitList splits a comma separated value, dropping blank items.
func splitList(s string) []string {
	var out []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
