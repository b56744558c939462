package scraper

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"myhome_scrooper/config"
	"myhome_scrooper/models"
)

// fakeAPI serves /list and /phone/{id}. Listing ids encode their origin as
// category*10000 + page*100 + index.
type fakeAPI struct {
	lastPage     int
	perPage      int
	failPage     int
	failRentMeta bool
	noIDPage     int // first listing on this page has no id
	phoneDelay   time.Duration

	phoneCalls  atomic.Int32
	inFlight    atomic.Int32
	maxInFlight atomic.Int32
}

func (f *fakeAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.URL.Path == "/list":
		f.serveList(w, r)
	case strings.HasPrefix(r.URL.Path, "/phone/"):
		f.servePhone(w, r)
	default:
		http.NotFound(w, r)
	}
}

func (f *fakeAPI) serveList(w http.ResponseWriter, r *http.Request) {
	category, _ := strconv.Atoi(r.URL.Query().Get("announcementType"))
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))

	if category == int(models.CategoryRent) && f.failRentMeta {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	if page == f.failPage {
		w.WriteHeader(http.StatusBadGateway)
		return
	}

	var items []string
	for i := 0; i < f.perPage; i++ {
		id := category*10000 + page*100 + i
		if page == f.noIDPage && i == 0 {
			items = append(items, fmt.Sprintf(`{"title":"listing without id","price":"%d"}`, id))
			continue
		}
		items = append(items, fmt.Sprintf(`{"id":%d,"title":"listing %d","price":"%d"}`, id, id, id))
	}
	fmt.Fprintf(w, `{"meta":{"last_page":%d},"data":[%s]}`, f.lastPage, strings.Join(items, ","))
}

func (f *fakeAPI) servePhone(w http.ResponseWriter, r *http.Request) {
	f.phoneCalls.Add(1)
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		prev := f.maxInFlight.Load()
		if n <= prev || f.maxInFlight.CompareAndSwap(prev, n) {
			break
		}
	}
	time.Sleep(f.phoneDelay)

	id := strings.TrimPrefix(r.URL.Path, "/phone/")
	fmt.Fprintf(w, "+99450%s\n+99455%s\n", id, id)
}

func newTestFetcher(t *testing.T, api *fakeAPI, mutate func(*config.ScraperConfig)) *Fetcher {
	t.Helper()
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)

	cfg := testScraperConfig()
	if mutate != nil {
		mutate(&cfg)
	}
	site := config.DefaultSite()
	site.BaseURL = srv.URL

	f := NewFetcher(NewClient(&http.Client{Timeout: 5 * time.Second}, site, cfg), cfg)
	f.SetLogger(NoOpLogger)
	return f
}

func pagesOf(records []models.ListingRecord) map[int]int {
	pages := make(map[int]int)
	for _, r := range records {
		pages[int(r.ID%10000)/100]++
	}
	return pages
}

func TestScrapeCategory_SkipsFailingPage(t *testing.T) {
	t.Parallel()

	api := &fakeAPI{lastPage: 5, perPage: 4, failPage: 3}
	f := newTestFetcher(t, api, func(c *config.ScraperConfig) { c.BatchSize = 2 })

	records, stats, err := f.ScrapeCategory(context.Background(), models.CategorySale)
	if err != nil {
		t.Fatalf("ScrapeCategory returned error: %v", err)
	}

	pages := pagesOf(records)
	for _, p := range []int{1, 2, 4, 5} {
		if pages[p] != 4 {
			t.Fatalf("expected 4 records from page %d, got %d", p, pages[p])
		}
	}
	if pages[3] != 0 {
		t.Fatalf("expected no records from failing page 3, got %d", pages[3])
	}
	if len(records) != 16 {
		t.Fatalf("expected 16 records, got %d", len(records))
	}

	if stats.PagesExpected != 5 || stats.PagesFetched != 4 || stats.PagesFailed != 1 {
		t.Fatalf("unexpected page stats %+v", stats)
	}
	if stats.RecordsEmitted != 16 || stats.Complete() {
		t.Fatalf("expected incomplete stats with 16 records, got %+v", stats)
	}
	for _, r := range records {
		if r.Category != models.CategorySale {
			t.Fatalf("record %d has category %s", r.ID, r.Category)
		}
		want := fmt.Sprintf("+99450%d, +99455%d", r.ID, r.ID)
		if r.PhoneNumber != want {
			t.Fatalf("record %d phone %q, want %q", r.ID, r.PhoneNumber, want)
		}
	}
}

func TestScrapeCategory_RecordCountBoundedByPages(t *testing.T) {
	t.Parallel()

	api := &fakeAPI{lastPage: 3, perPage: 5}
	f := newTestFetcher(t, api, nil)

	records, stats, err := f.ScrapeCategory(context.Background(), models.CategoryRent)
	if err != nil {
		t.Fatalf("ScrapeCategory returned error: %v", err)
	}
	if len(records) != 15 {
		t.Fatalf("expected exactly 15 records when nothing fails, got %d", len(records))
	}
	if !stats.Complete() {
		t.Fatalf("expected complete stats, got %+v", stats)
	}
}

func TestScrapeCategory_PhoneConcurrencyBounded(t *testing.T) {
	t.Parallel()

	api := &fakeAPI{lastPage: 4, perPage: 10, phoneDelay: 15 * time.Millisecond}
	f := newTestFetcher(t, api, nil)

	records, _, err := f.ScrapeCategory(context.Background(), models.CategorySale)
	if err != nil {
		t.Fatalf("ScrapeCategory returned error: %v", err)
	}
	if len(records) != 40 || api.phoneCalls.Load() != 40 {
		t.Fatalf("expected 40 records and phone calls, got %d/%d", len(records), api.phoneCalls.Load())
	}
	if peak := api.maxInFlight.Load(); peak != 5 {
		t.Fatalf("expected exactly 5 concurrent phone calls at peak, saw %d", peak)
	}
}

func TestScrapeCategory_DropsListingWithoutID(t *testing.T) {
	t.Parallel()

	api := &fakeAPI{lastPage: 2, perPage: 3, noIDPage: 2}
	f := newTestFetcher(t, api, nil)

	records, stats, err := f.ScrapeCategory(context.Background(), models.CategorySale)
	if err != nil {
		t.Fatalf("ScrapeCategory returned error: %v", err)
	}

	if len(records) != 5 {
		t.Fatalf("expected the other 5 listings to survive, got %d", len(records))
	}
	pages := pagesOf(records)
	if pages[1] != 3 || pages[2] != 2 {
		t.Fatalf("unexpected per-page counts %v", pages)
	}
	if stats.ListingsSeen != 6 || stats.RecordsDropped != 1 || stats.RecordsEmitted != 5 {
		t.Fatalf("unexpected stats %+v", stats)
	}
	if stats.Complete() {
		t.Fatalf("expected a dropped listing to make the category incomplete")
	}
	if api.phoneCalls.Load() != 5 {
		t.Fatalf("expected no phone lookup for the dropped listing, got %d calls", api.phoneCalls.Load())
	}
}

func TestScrapeCategory_UnknownPageCountFails(t *testing.T) {
	t.Parallel()

	api := &fakeAPI{lastPage: 2, perPage: 1, failRentMeta: true}
	f := newTestFetcher(t, api, nil)

	records, stats, err := f.ScrapeCategory(context.Background(), models.CategoryRent)
	if err == nil {
		t.Fatalf("expected error when page count is unknown")
	}
	if records != nil || !stats.Failed {
		t.Fatalf("expected no records and failed stats, got %d / %+v", len(records), stats)
	}
}

func TestScrapeAll_ExcludesFailedCategory(t *testing.T) {
	t.Parallel()

	api := &fakeAPI{lastPage: 2, perPage: 3, failRentMeta: true}
	f := newTestFetcher(t, api, nil)

	records, stats := f.ScrapeAll(context.Background())

	if len(records) != 6 {
		t.Fatalf("expected 6 sale records, got %d", len(records))
	}
	for _, r := range records {
		if r.Category != models.CategorySale {
			t.Fatalf("unexpected %s record %d", r.Category, r.ID)
		}
	}
	if len(stats) != 2 {
		t.Fatalf("expected stats for 2 categories, got %d", len(stats))
	}
	if stats[0].Failed || !stats[1].Failed {
		t.Fatalf("expected only rent to fail, got %+v", stats)
	}
}

// panickingTransport panics on any rent list request.
type panickingTransport struct {
	next http.RoundTripper
}

func (p panickingTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	if r.URL.Query().Get("announcementType") == strconv.Itoa(int(models.CategoryRent)) {
		panic("rent handler blew up")
	}
	return p.next.RoundTrip(r)
}

func TestScrapeAll_ExcludesPanickingCategory(t *testing.T) {
	t.Parallel()

	api := &fakeAPI{lastPage: 2, perPage: 3}
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)

	cfg := testScraperConfig()
	site := config.DefaultSite()
	site.BaseURL = srv.URL
	httpClient := &http.Client{
		Timeout:   5 * time.Second,
		Transport: panickingTransport{next: http.DefaultTransport},
	}
	f := NewFetcher(NewClient(httpClient, site, cfg), cfg)
	f.SetLogger(NoOpLogger)

	records, stats := f.ScrapeAll(context.Background())

	if len(records) != 6 {
		t.Fatalf("expected 6 sale records, got %d", len(records))
	}
	for _, r := range records {
		if r.Category != models.CategorySale {
			t.Fatalf("unexpected %s record %d", r.Category, r.ID)
		}
	}
	if stats[0].Failed {
		t.Fatalf("expected sale to succeed, got %+v", stats[0])
	}
	if !stats[1].Failed || stats[1].Category != models.CategoryRent || !strings.Contains(stats[1].FailureReason, "panic") {
		t.Fatalf("expected rent marked failed by panic, got %+v", stats[1])
	}
}

func TestScrapeAll_BothCategories(t *testing.T) {
	t.Parallel()

	api := &fakeAPI{lastPage: 2, perPage: 2}
	f := newTestFetcher(t, api, nil)

	records, _ := f.ScrapeAll(context.Background())

	counts := map[models.Category]int{}
	seen := map[int64]bool{}
	for _, r := range records {
		counts[r.Category]++
		if seen[r.ID] {
			t.Fatalf("duplicate record %d", r.ID)
		}
		seen[r.ID] = true
	}
	if counts[models.CategorySale] != 4 || counts[models.CategoryRent] != 4 {
		t.Fatalf("unexpected category counts %v", counts)
	}
}
