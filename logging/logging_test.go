package logging

import (
	"bytes"
	"log"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"myhome_scrooper/models"
)

func TestRotatingWriter_RotatesPastMaxSize(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scraper.log")
	w, err := NewRotatingWriter(path, 16)
	if err != nil {
		t.Fatalf("NewRotatingWriter: %v", err)
	}
	defer w.Close()

	if _, err := w.Write([]byte("0123456789abcdefXYZ")); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := w.Write([]byte("after")); err != nil {
		t.Fatalf("write: %v", err)
	}

	backup, err := os.ReadFile(path + ".1")
	if err != nil {
		t.Fatalf("expected backup file: %v", err)
	}
	if string(backup) != "0123456789abcdefXYZ" {
		t.Fatalf("unexpected backup contents %q", backup)
	}
	current, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read current: %v", err)
	}
	if string(current) != "after" {
		t.Fatalf("unexpected current contents %q", current)
	}
}

func TestLogf_RespectsThreshold(t *testing.T) {
	var buf bytes.Buffer
	prevOut, prevFlags := log.Writer(), log.Flags()
	log.SetOutput(&buf)
	log.SetFlags(0)
	defer func() {
		log.SetOutput(prevOut)
		log.SetFlags(prevFlags)
		SetLevel("info")
	}()

	SetLevel("warn")
	if Logf(models.LogLevelInfo, "fetcher", "hidden %d", 1) {
		t.Fatalf("info line should be filtered at warn")
	}
	if !Logf(models.LogLevelError, "fetcher", "page %d failed", 3) {
		t.Fatalf("error line should pass at warn")
	}

	got := buf.String()
	if strings.Contains(got, "hidden") {
		t.Fatalf("filtered line leaked: %q", got)
	}
	if !strings.Contains(got, "[error] fetcher: page 3 failed") {
		t.Fatalf("unexpected log output %q", got)
	}
}
