package scraper

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"myhome_scrooper/config"
	"myhome_scrooper/models"
)

// Fetcher walks every page of a category in fixed-size batches and enriches
// each listing with its phone number. Failures shrink the output; they never
// abort the run.
type Fetcher struct {
	client *Client
	cfg    config.ScraperConfig
	// gate bounds in-flight phone lookups across all categories.
	gate *semaphore.Weighted
	logf LogFunc
}

func NewFetcher(client *Client, cfg config.ScraperConfig) *Fetcher {
	if cfg.BatchSize < 1 {
		cfg.BatchSize = 1
	}
	if cfg.PhoneConcurrency < 1 {
		cfg.PhoneConcurrency = 1
	}
	return &Fetcher{
		client: client,
		cfg:    cfg,
		gate:   semaphore.NewWeighted(int64(cfg.PhoneConcurrency)),
		logf:   StdLogger,
	}
}

// SetLogger routes fetcher and client log lines to fn.
func (f *Fetcher) SetLogger(fn LogFunc) {
	if fn == nil {
		return
	}
	f.logf = fn
	f.client.SetLogger(fn)
}

// ScrapeAll collects both categories concurrently. A category that fails
// outright or panics is left out; the other still contributes. Record order
// is not stable across runs.
func (f *Fetcher) ScrapeAll(ctx context.Context) ([]models.ListingRecord, []models.CategoryStats) {
	categories := models.Categories()
	results := make([][]models.ListingRecord, len(categories))
	stats := make([]models.CategoryStats, len(categories))

	var g errgroup.Group
	for i, category := range categories {
		g.Go(func() error {
			defer func() {
				if r := recover(); r != nil {
					results[i] = nil
					stats[i] = models.CategoryStats{
						Category:      category,
						Failed:        true,
						FailureReason: fmt.Sprintf("panic: %v", r),
					}
					f.logf(models.LogLevelError, logSource, fmt.Sprintf("%s excluded from results: panic: %v", category, r))
				}
			}()

			records, st, err := f.ScrapeCategory(ctx, category)
			stats[i] = st
			if err != nil {
				f.logf(models.LogLevelError, logSource, fmt.Sprintf("%s excluded from results: %v", category, err))
				return nil
			}
			results[i] = records
			return nil
		})
	}
	g.Wait()

	var all []models.ListingRecord
	for _, records := range results {
		all = append(all, records...)
	}
	f.logf(models.LogLevelInfo, logSource, fmt.Sprintf("Total listings scraped: %d", len(all)))
	return all, stats
}

// ScrapeCategory returns an error only when the category as a whole is
// unusable: the page count is unknown or ctx was cancelled.
func (f *Fetcher) ScrapeCategory(ctx context.Context, category models.Category) ([]models.ListingRecord, models.CategoryStats, error) {
	start := time.Now()
	stats := models.CategoryStats{Category: category}
	fail := func(err error) ([]models.ListingRecord, models.CategoryStats, error) {
		stats.Failed = true
		stats.FailureReason = err.Error()
		stats.DurationSeconds = time.Since(start).Seconds()
		return nil, stats, err
	}

	f.logf(models.LogLevelInfo, logSource, fmt.Sprintf("Starting to scrape %s listings", category))

	total := f.client.PageCount(ctx, category)
	stats.PagesExpected = total
	if total == 0 {
		if ctx.Err() != nil {
			return fail(ctx.Err())
		}
		return fail(fmt.Errorf("could not determine page count for %s", category))
	}
	f.logf(models.LogLevelInfo, logSource, fmt.Sprintf("Found %d pages for %s listings", total, category))

	var records []models.ListingRecord
	for batchStart := 1; batchStart <= total; batchStart += f.cfg.BatchSize {
		batchEnd := min(batchStart+f.cfg.BatchSize-1, total)
		f.logf(models.LogLevelInfo, logSource,
			fmt.Sprintf("Processing pages %d-%d of %d for %s", batchStart, batchEnd, total, category))

		var raw []json.RawMessage
		for _, page := range f.fetchBatch(ctx, category, batchStart, batchEnd) {
			if page.Failed() {
				stats.PagesFailed++
				continue
			}
			stats.PagesFetched++
			raw = append(raw, page.Listings...)
		}
		stats.ListingsSeen += len(raw)

		if len(raw) > 0 {
			batch := f.enrich(ctx, category, raw)
			records = append(records, batch.records...)
			stats.RecordsDropped += batch.dropped
			stats.PhonesMissing += batch.missingPhone
			f.logf(models.LogLevelInfo, logSource,
				fmt.Sprintf("Processed %d listings from batch %d-%d", len(batch.records), batchStart, batchEnd))
		}

		if ctx.Err() != nil {
			return fail(ctx.Err())
		}
		if batchEnd < total {
			if err := sleepCtx(ctx, f.cfg.BatchPause); err != nil {
				return fail(err)
			}
		}
	}

	stats.RecordsEmitted = len(records)
	stats.DurationSeconds = time.Since(start).Seconds()

	f.logf(models.LogLevelInfo, logSource, fmt.Sprintf("Completed scraping %d %s listings", len(records), category))
	if !stats.Complete() {
		f.logf(models.LogLevelWarn, logSource, fmt.Sprintf(
			"%s incomplete: %d/%d pages fetched, %d pages failed, %d listings seen, %d dropped, %d without phone",
			category, stats.PagesFetched, stats.PagesExpected, stats.PagesFailed,
			stats.ListingsSeen, stats.RecordsDropped, stats.PhonesMissing))
	}
	return records, stats, nil
}

// fetchBatch requests pages [from, to] concurrently. Results are indexed by
// page so the slice is in page order even though completion order is not.
func (f *Fetcher) fetchBatch(ctx context.Context, category models.Category, from, to int) []Page {
	pages := make([]Page, to-from+1)

	var g errgroup.Group
	for i := range pages {
		page := from + i
		g.Go(func() error {
			pages[i] = f.client.FetchPage(ctx, category, page)
			return nil
		})
	}
	g.Wait()
	return pages
}

type enrichedBatch struct {
	records      []models.ListingRecord
	dropped      int
	missingPhone int
}

// enrich looks up phones for a batch of raw listings through the admission
// gate. Listings that cannot be parsed, or that never get a permit because
// ctx ended, are dropped.
func (f *Fetcher) enrich(ctx context.Context, category models.Category, raw []json.RawMessage) enrichedBatch {
	var (
		out enrichedBatch
		mu  sync.Mutex
		g   errgroup.Group
	)

	for i, item := range raw {
		listing, err := parseListing(item)
		if err != nil {
			f.logf(models.LogLevelDebug, logSource, fmt.Sprintf("%s: skipping listing: %v", category, err))
			out.dropped++
			continue
		}

		if err := f.gate.Acquire(ctx, 1); err != nil {
			out.dropped += len(raw) - i
			break
		}
		g.Go(func() error {
			phone := func() string {
				defer f.gate.Release(1)
				return f.client.FetchPhone(ctx, listing.id)
			}()

			rec := flatten(listing, category, phone)

			mu.Lock()
			defer mu.Unlock()
			out.records = append(out.records, rec)
			if phone == "" {
				out.missingPhone++
			}
			return nil
		})
	}
	g.Wait()
	return out
}
