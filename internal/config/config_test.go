package config

import (
	"testing"
	"time"
)

func baseConfig() *Config {
	return &Config{
		MaxPages:                5000,
		MaxDepth:                10,
		Concurrency:             5,
		IncludeSubdomains:       true,
		FollowSitemaps:          true,
		RespectRobots:           true,
		IncludeLanguageVariants: true,
		FollowPagination:        true,
		CrawlDelay:              300 * time.Millisecond,
		UserAgent:               "WebscraperCrawler/1.0",
		CheckpointInterval:      20,
	}
}

func TestResolveUsesDefaultsWhenNoOverrides(t *testing.T) {
	r := baseConfig().Resolve(Options{})

	if r.MaxPages != 5000 || r.Concurrency != 5 || r.CrawlDelay != 300*time.Millisecond {
		t.Fatalf("unexpected resolved defaults: %+v", r)
	}

	if r.Resume {
		t.Fatal("Resume should default to false")
	}
}

func TestResolveFalseOverrideIsHonored(t *testing.T) {
	no := false
	r := baseConfig().Resolve(Options{IncludeSubdomains: &no})

	if r.IncludeSubdomains {
		t.Fatal("explicit false override should not fall back to the true default")
	}
}

func TestResolveCapsMaxPages(t *testing.T) {
	huge := 50000
	r := baseConfig().Resolve(Options{MaxPages: &huge})

	if r.MaxPages != MaxPagesCap {
		t.Fatalf("MaxPages = %d, want cap %d", r.MaxPages, MaxPagesCap)
	}
}

func TestResolveZeroOverrideIsHonored(t *testing.T) {
	zero := 0
	r := baseConfig().Resolve(Options{MaxDepth: &zero})

	if r.MaxDepth != 0 {
		t.Fatalf("MaxDepth = %d, want 0 (explicit override)", r.MaxDepth)
	}
}
