// Package config loads environment-based defaults for the crawler process
// and the per-crawl options that can override them at start time.
package config

import (
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds process-wide configuration loaded from the environment.
type Config struct {
	PostgresDSN string `env:"POSTGRES_DSN,required"`
	HealthPort  int    `env:"HEALTH_PORT" envDefault:"8080"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	MaxPages                int           `env:"CRAWL_MAX_PAGES" envDefault:"5000"`
	MaxDepth                int           `env:"CRAWL_MAX_DEPTH" envDefault:"10"`
	Concurrency             int           `env:"CRAWL_CONCURRENCY" envDefault:"5"`
	IncludeSubdomains       bool          `env:"CRAWL_INCLUDE_SUBDOMAINS" envDefault:"true"`
	FollowSitemaps          bool          `env:"CRAWL_FOLLOW_SITEMAPS" envDefault:"true"`
	RespectRobots           bool          `env:"CRAWL_RESPECT_ROBOTS" envDefault:"true"`
	IncludeLanguageVariants bool          `env:"CRAWL_INCLUDE_LANGUAGE_VARIANTS" envDefault:"true"`
	FollowPagination        bool          `env:"CRAWL_FOLLOW_PAGINATION" envDefault:"true"`
	CrawlDelay              time.Duration `env:"CRAWL_DELAY" envDefault:"300ms"`
	UserAgent               string        `env:"CRAWL_USER_AGENT" envDefault:"WebscraperCrawler/1.0"`

	CheckpointInterval int `env:"CRAWL_CHECKPOINT_INTERVAL" envDefault:"20"`
	LinkBatchSize      int `env:"CRAWL_LINK_BATCH_SIZE" envDefault:"20"`
}

// MaxPagesCap is the hard ceiling on MaxPages regardless of configured value.
const MaxPagesCap = 10000

// Load parses process configuration from the environment. A local .env
// file, if present, is loaded first; its absence is not an error.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	if cfg.MaxPages > MaxPagesCap {
		cfg.MaxPages = MaxPagesCap
	}

	return cfg, nil
}

// Options carries the per-crawl start-time overrides described in the
// control API. A nil pointer field means "use the process default."
type Options struct {
	MaxPages                *int
	MaxDepth                *int
	Concurrency             *int
	IncludeSubdomains       *bool
	FollowSitemaps          *bool
	RespectRobots           *bool
	IncludeLanguageVariants *bool
	FollowPagination        *bool
	CrawlDelay              *time.Duration
	UserAgent               *string
	Resume                  bool
}

// Resolved is the fully materialized set of options driving one crawl.
type Resolved struct {
	MaxPages                int
	MaxDepth                int
	Concurrency             int
	IncludeSubdomains       bool
	FollowSitemaps          bool
	RespectRobots           bool
	IncludeLanguageVariants bool
	FollowPagination        bool
	CrawlDelay              time.Duration
	UserAgent               string
	Resume                  bool
	CheckpointInterval      int
}

// Resolve merges per-crawl Options over process-wide Config defaults.
func (c *Config) Resolve(o Options) Resolved {
	r := Resolved{
		MaxPages:                c.MaxPages,
		MaxDepth:                c.MaxDepth,
		Concurrency:             c.Concurrency,
		IncludeSubdomains:       c.IncludeSubdomains,
		FollowSitemaps:          c.FollowSitemaps,
		RespectRobots:           c.RespectRobots,
		IncludeLanguageVariants: c.IncludeLanguageVariants,
		FollowPagination:        c.FollowPagination,
		CrawlDelay:              c.CrawlDelay,
		UserAgent:               c.UserAgent,
		Resume:                  o.Resume,
		CheckpointInterval:      c.CheckpointInterval,
	}

	if o.MaxPages != nil {
		r.MaxPages = *o.MaxPages
	}

	if r.MaxPages > MaxPagesCap {
		r.MaxPages = MaxPagesCap
	}

	if o.MaxDepth != nil {
		r.MaxDepth = *o.MaxDepth
	}

	if o.Concurrency != nil {
		r.Concurrency = *o.Concurrency
	}

	if o.IncludeSubdomains != nil {
		r.IncludeSubdomains = *o.IncludeSubdomains
	}

	if o.FollowSitemaps != nil {
		r.FollowSitemaps = *o.FollowSitemaps
	}

	if o.RespectRobots != nil {
		r.RespectRobots = *o.RespectRobots
	}

	if o.IncludeLanguageVariants != nil {
		r.IncludeLanguageVariants = *o.IncludeLanguageVariants
	}

	if o.FollowPagination != nil {
		r.FollowPagination = *o.FollowPagination
	}

	if o.CrawlDelay != nil {
		r.CrawlDelay = *o.CrawlDelay
	}

	if o.UserAgent != nil {
		r.UserAgent = *o.UserAgent
	}

	return r
}
