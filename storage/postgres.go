package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"myhome_scrooper/models"
)

// PostgresStore is the optional warehouse sink for runs and listings.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, connString string) (*PostgresStore, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	config.MaxConns = 4
	config.MinConns = 1
	config.MaxConnLifetime = 30 * time.Minute
	config.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Close() {
	s.pool.Close()
}

// pgColumnTypes overrides the TEXT default for typed listing columns.
var pgColumnTypes = map[string]string{
	"listing_id":         "BIGINT NOT NULL",
	"announcement_type":  "TEXT NOT NULL",
	"room_count":         "INTEGER",
	"floor_count":        "INTEGER",
	"floor":              "INTEGER",
	"is_repaired":        "BOOLEAN",
	"is_vip":             "BOOLEAN",
	"is_premium":         "BOOLEAN",
	"credit_possible":    "BOOLEAN",
	"in_credit":          "BOOLEAN",
	"is_favorite":        "BOOLEAN",
	"is_price_decreased": "BOOLEAN",
}

// listingColumnNames is models.ListingColumns with the record id stored as
// listing_id; the table's own id is a surrogate so duplicates are kept.
func listingColumnNames() []string {
	cols := make([]string, len(models.ListingColumns))
	for i, c := range models.ListingColumns {
		if c == "id" {
			c = "listing_id"
		}
		cols[i] = c
	}
	return cols
}

func listingsSchema() string {
	var b strings.Builder
	b.WriteString("CREATE TABLE IF NOT EXISTS listings (\n")
	b.WriteString("\t\tid BIGSERIAL PRIMARY KEY,\n")
	b.WriteString("\t\trun_id UUID NOT NULL REFERENCES scrape_runs(id),\n")
	for _, c := range listingColumnNames() {
		typ, ok := pgColumnTypes[c]
		if !ok {
			typ = "TEXT"
		}
		fmt.Fprintf(&b, "\t\t%s %s,\n", c, typ)
	}
	b.WriteString("\t\tcreated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()\n\t);")
	return b.String()
}

func insertListingSQL() string {
	cols := append([]string{"run_id"}, listingColumnNames()...)
	params := make([]string, len(cols))
	for i := range params {
		params[i] = fmt.Sprintf("$%d", i+1)
	}
	return fmt.Sprintf("INSERT INTO listings (%s) VALUES (%s)",
		strings.Join(cols, ", "), strings.Join(params, ", "))
}

// listingArgs returns the run id followed by the record's fields in
// models.ListingColumns order.
func listingArgs(runID uuid.UUID, r *models.ListingRecord) []any {
	return []any{
		runID,
		r.ID,
		r.Title,
		r.Description,
		r.Price,
		r.Category.String(),
		r.Area,
		r.RoomCount,
		r.FloorCount,
		r.Floor,
		r.HouseArea,
		r.RentalType,
		r.IsRepaired,
		r.IsVIP,
		r.IsPremium,
		r.CreditPossible,
		r.InCredit,
		r.DocumentID,
		r.Status,
		r.FormattedDate,
		r.UserID,
		r.PhoneNumber,
		r.MainImageThumb,
		r.City, r.CityLat, r.CityLng,
		r.Region, r.RegionLat, r.RegionLng,
		r.Village, r.VillageLat, r.VillageLng,
		r.Address, r.Lat, r.Lng,
		r.MetroStations,
		r.IsFavorite,
		r.IsPriceDecreased,
	}
}

func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS scrape_runs (
		id UUID PRIMARY KEY,
		source TEXT NOT NULL,
		started_at TIMESTAMPTZ NOT NULL,
		finished_at TIMESTAMPTZ,
		status TEXT NOT NULL,
		listings_found INTEGER NOT NULL DEFAULT 0,
		with_phone INTEGER NOT NULL DEFAULT 0,
		errors_count INTEGER NOT NULL DEFAULT 0,
		categories JSONB
	);

	` + listingsSchema() + `

	CREATE INDEX IF NOT EXISTS idx_listings_run ON listings(run_id);
	CREATE INDEX IF NOT EXISTS idx_listings_listing_id ON listings(listing_id);
	CREATE INDEX IF NOT EXISTS idx_listings_city ON listings(city);
	`
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) SaveRun(ctx context.Context, run *models.ScrapeRun) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO scrape_runs (id, source, started_at, finished_at, status, listings_found,
			with_phone, errors_count, categories)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			finished_at = EXCLUDED.finished_at,
			status = EXCLUDED.status,
			listings_found = EXCLUDED.listings_found,
			with_phone = EXCLUDED.with_phone,
			errors_count = EXCLUDED.errors_count,
			categories = EXCLUDED.categories`,
		run.ID, run.Source, run.StartedAt, run.FinishedAt, string(run.Status), run.ListingsFound,
		run.WithPhone, run.ErrorsCount, run.CategoriesJSON())
	if err != nil {
		return fmt.Errorf("save run: %w", err)
	}
	return nil
}

// WriteBatch queues every record into a single pgx batch. Records with the
// same listing id are all kept, matching the file exports.
func (s *PostgresStore) WriteBatch(ctx context.Context, run *models.ScrapeRun, records []models.ListingRecord) error {
	if len(records) == 0 {
		return nil
	}

	insertSQL := insertListingSQL()
	batch := &pgx.Batch{}
	for i := range records {
		batch.Queue(insertSQL, listingArgs(run.ID, &records[i])...)
	}

	results := s.pool.SendBatch(ctx, batch)
	defer results.Close()

	for i := 0; i < batch.Len(); i++ {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("batch insert failed at row %d: %w", i, err)
		}
	}
	return results.Close()
}
