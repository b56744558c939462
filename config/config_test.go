package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadSite_MissingFileFallsBackToDefault(t *testing.T) {
	site, err := LoadSite(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("LoadSite: %v", err)
	}
	if site.BaseURL != "https://api.myhome.az/api/announcement" {
		t.Fatalf("unexpected base url %q", site.BaseURL)
	}
	if got := site.ListURL(2, 7); got != "https://api.myhome.az/api/announcement/list?announcementType=2&page=7" {
		t.Fatalf("unexpected list url %q", got)
	}
	if got := site.PhoneURL(8908); got != "https://api.myhome.az/api/announcement/phone/8908" {
		t.Fatalf("unexpected phone url %q", got)
	}
}

func TestLoadSite_OverridesFromYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "site.yaml")
	body := "id: staging\nbase_url: http://localhost:9000/api\nphone_headers:\n  Accept: text/plain\n"
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}

	site, err := LoadSite(path)
	if err != nil {
		t.Fatalf("LoadSite: %v", err)
	}
	if site.ID != "staging" {
		t.Fatalf("expected id staging, got %q", site.ID)
	}
	if site.ListPath != "/list" {
		t.Fatalf("expected default list path to survive, got %q", site.ListPath)
	}
	if site.PhoneHeaders["Accept"] != "text/plain" {
		t.Fatalf("expected phone Accept override, got %q", site.PhoneHeaders["Accept"])
	}
}

func TestLoadSite_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("base_url: [unterminated"), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := LoadSite(path); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("SITE_CONFIG", filepath.Join(t.TempDir(), "absent.yaml"))
	t.Setenv("SCRAPE_DELAY", "50ms")
	t.Setenv("SCRAPE_BATCH_SIZE", "4")
	t.Setenv("SCRAPE_PHONE_CONCURRENCY", "2")
	t.Setenv("SCRAPE_INTERVAL", "1h")
	t.Setenv("MYHOME_BASE_URL", "http://127.0.0.1:1234")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Scraper.RequestDelay != 50*time.Millisecond {
		t.Fatalf("expected 50ms delay, got %v", cfg.Scraper.RequestDelay)
	}
	if cfg.Scraper.BatchSize != 4 || cfg.Scraper.PhoneConcurrency != 2 {
		t.Fatalf("unexpected batch/phone settings: %+v", cfg.Scraper)
	}
	if cfg.Scraper.MaxRetries != 3 {
		t.Fatalf("expected default retries 3, got %d", cfg.Scraper.MaxRetries)
	}
	if cfg.Scheduler.Interval != time.Hour {
		t.Fatalf("expected 1h interval, got %v", cfg.Scheduler.Interval)
	}
	if cfg.Site.BaseURL != "http://127.0.0.1:1234" {
		t.Fatalf("expected base url override, got %q", cfg.Site.BaseURL)
	}
}

func TestLoad_RejectsZeroRetries(t *testing.T) {
	t.Setenv("SITE_CONFIG", filepath.Join(t.TempDir(), "absent.yaml"))
	t.Setenv("SCRAPE_MAX_RETRIES", "0")

	if _, err := Load(); err == nil {
		t.Fatalf("expected validation error")
	}
}
