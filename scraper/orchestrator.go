package scraper

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"myhome_scrooper/config"
	"myhome_scrooper/logging"
	"myhome_scrooper/models"
	"myhome_scrooper/services"
)

// ErrNoListings is returned when a run finishes without a single record.
var ErrNoListings = errors.New("no listings collected")

// Collector gathers every category's records for one run.
type Collector interface {
	ScrapeAll(ctx context.Context) ([]models.ListingRecord, []models.CategoryStats)
	SetLogger(fn LogFunc)
}

// RunStore keeps run history and the log lines of each run.
type RunStore interface {
	CreateRun(run *models.ScrapeRun) error
	UpdateRun(run *models.ScrapeRun) error
	Log(runID uuid.UUID, level models.LogLevel, message, source string) error
}

// Exporter persists a finished run's records.
type Exporter interface {
	Export(ctx context.Context, run *models.ScrapeRun, records []models.ListingRecord) (*services.ExportResult, error)
}

type Orchestrator struct {
	site     *config.SiteConfig
	store    RunStore
	fetcher  Collector
	exporter Exporter
	// mu serializes runs; a second caller waits for the first to finish.
	mu sync.Mutex
}

func NewOrchestrator(site *config.SiteConfig, store RunStore, fetcher Collector, exporter Exporter) *Orchestrator {
	return &Orchestrator{
		site:     site,
		store:    store,
		fetcher:  fetcher,
		exporter: exporter,
	}
}

// RunOnce performs one full collection and export. A partial run is not an
// error; the caller inspects run.Status and run.Categories for that.
func (o *Orchestrator) RunOnce(ctx context.Context) (*models.ScrapeRun, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	run := models.NewScrapeRun(o.site.ID)
	if err := o.store.CreateRun(run); err != nil {
		return nil, fmt.Errorf("create run: %w", err)
	}

	o.fetcher.SetLogger(func(level models.LogLevel, source, message string) {
		o.log(run.ID, level, message, source)
	})

	o.log(run.ID, models.LogLevelInfo, fmt.Sprintf("Starting scrape for %s", o.site.Name), o.site.ID)

	records, stats := o.fetcher.ScrapeAll(ctx)

	withPhone := 0
	for i := range records {
		if records[i].HasPhone() {
			withPhone++
		}
	}
	run.Finish(len(records), withPhone, stats)

	for _, s := range stats {
		level := models.LogLevelInfo
		if !s.Complete() {
			level = models.LogLevelWarn
		}
		o.log(run.ID, level, fmt.Sprintf(
			"%s: pages %d/%d (failed %d), listings %d, records %d, dropped %d, missing phones %d",
			s.Category, s.PagesFetched, s.PagesExpected, s.PagesFailed, s.ListingsSeen,
			s.RecordsEmitted, s.RecordsDropped, s.PhonesMissing), o.site.ID)
	}

	if err := o.store.UpdateRun(run); err != nil {
		log.Printf("Warning: failed to update run %s: %v", run.ID, err)
	}

	result, exportErr := o.exporter.Export(ctx, run, records)
	if exportErr != nil {
		o.log(run.ID, models.LogLevelError, fmt.Sprintf("Export errors: %v", exportErr), o.site.ID)
	}

	if result != nil {
		o.log(run.ID, models.LogLevelInfo, fmt.Sprintf(
			"Completed in %s: %d listings (%d sale, %d rent), %d with phone numbers, status %s",
			run.Duration().Round(time.Millisecond), result.Summary.Total, result.Summary.Sale, result.Summary.Rent,
			result.Summary.WithPhone, run.Status), o.site.ID)
		for _, f := range result.Files {
			o.log(run.ID, models.LogLevelInfo, fmt.Sprintf("Saved %s", f), o.site.ID)
		}
		for _, key := range result.Uploaded {
			o.log(run.ID, models.LogLevelInfo, fmt.Sprintf("Uploaded %s", key), o.site.ID)
		}
	}

	if run.Status == models.RunStatusFailed {
		return run, errors.Join(ErrNoListings, exportErr)
	}
	return run, exportErr
}

// Run is RunOnce for callers that only care about failure.
func (o *Orchestrator) Run(ctx context.Context) error {
	_, err := o.RunOnce(ctx)
	return err
}

// log writes through the level filter and mirrors emitted lines into the
// run's stored log.
func (o *Orchestrator) log(runID uuid.UUID, level models.LogLevel, message, source string) {
	if !logging.Logf(level, source, "%s", message) {
		return
	}
	if err := o.store.Log(runID, level, message, source); err != nil {
		log.Printf("Warning: failed to store log line: %v", err)
	}
}
