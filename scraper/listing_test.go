package scraper

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"myhome_scrooper/models"
)

func loadFixture(t *testing.T, name string) []byte {
	t.Helper()
	path := filepath.Join("testdata", name)
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read fixture %s: %v", name, err)
	}
	return data
}

func TestFlatten_FullListing(t *testing.T) {
	parsed, err := parseListing(loadFixture(t, "listing_full.json"))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	rec := flatten(parsed, models.CategorySale, "+994501234567")

	if rec.ID != 8908 {
		t.Fatalf("expected id 8908, got %d", rec.ID)
	}
	if rec.Title != "3 otaqlı mənzil, Nərimanov r." {
		t.Fatalf("unexpected title %q", rec.Title)
	}
	if rec.Price != "185000" || rec.Area != "96.5" {
		t.Fatalf("unexpected price/area %q/%q", rec.Price, rec.Area)
	}
	if rec.Category != models.CategorySale {
		t.Fatalf("expected Sale, got %s", rec.Category)
	}
	if rec.RoomCount == nil || *rec.RoomCount != 3 {
		t.Fatalf("expected room count 3, got %v", rec.RoomCount)
	}
	if rec.Floor == nil || *rec.Floor != 7 || rec.FloorCount == nil || *rec.FloorCount != 16 {
		t.Fatalf("unexpected floors %v/%v", rec.Floor, rec.FloorCount)
	}
	if rec.HouseArea != "" || rec.RentalType != "" {
		t.Fatalf("expected null fields to be empty, got %q/%q", rec.HouseArea, rec.RentalType)
	}
	if rec.IsRepaired == nil || !*rec.IsRepaired {
		t.Fatalf("expected is_repaired=1 to be true")
	}
	if rec.CreditPossible == nil || *rec.CreditPossible {
		t.Fatalf("expected credit_possible=\"0\" to be false")
	}
	if rec.IsVIP == nil || *rec.IsVIP || rec.IsPremium == nil || !*rec.IsPremium {
		t.Fatalf("unexpected vip/premium flags")
	}
	if rec.IsPriceDecreased == nil || !*rec.IsPriceDecreased {
		t.Fatalf("expected is_price_decreased true")
	}
	if rec.UserID != "55123" || rec.DocumentID != "2" || rec.Status != "1" {
		t.Fatalf("unexpected ids %q/%q/%q", rec.UserID, rec.DocumentID, rec.Status)
	}
	if rec.City != "Bakı" || rec.CityLat != "40.4093" || rec.CityLng != "49.8671" {
		t.Fatalf("unexpected city %q %q %q", rec.City, rec.CityLat, rec.CityLng)
	}
	if rec.Region != "Nərimanov r." || rec.RegionLat != "40.40" {
		t.Fatalf("unexpected region %q %q", rec.Region, rec.RegionLat)
	}
	if rec.Village != "" || rec.VillageLat != "" {
		t.Fatalf("expected empty village, got %q", rec.Village)
	}
	if rec.Address != "Təbriz küç. 12" || rec.Lat != "40.4093" || rec.Lng != "49.8671" {
		t.Fatalf("unexpected address %q %q %q", rec.Address, rec.Lat, rec.Lng)
	}
	if rec.MetroStations != "Nərimanov, Gənclik" {
		t.Fatalf("unexpected metro stations %q", rec.MetroStations)
	}
	if rec.PhoneNumber != "+994501234567" {
		t.Fatalf("unexpected phone %q", rec.PhoneNumber)
	}
}

func TestFlatten_SparseListingTolerated(t *testing.T) {
	parsed, err := parseListing(loadFixture(t, "listing_sparse.json"))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	rec := flatten(parsed, models.CategoryRent, "")

	if rec.ID != 77 {
		t.Fatalf("expected string id to parse as 77, got %d", rec.ID)
	}
	if rec.Price != "90000" {
		t.Fatalf("expected numeric price as text, got %q", rec.Price)
	}
	if rec.City != "" || rec.Address != "" {
		t.Fatalf("expected empty location for [] address, got %q %q", rec.City, rec.Address)
	}
	if rec.MetroStations != "" {
		t.Fatalf("expected no metro stations, got %q", rec.MetroStations)
	}
	if rec.RoomCount != nil || rec.IsVIP != nil {
		t.Fatalf("expected absent fields to stay nil")
	}
	if rec.Category.String() != "Rent" {
		t.Fatalf("expected Rent, got %s", rec.Category)
	}
}

func TestParseListing_RejectsMissingID(t *testing.T) {
	for _, body := range []string{`{"title":"x"}`, `{"id":null}`, `{"id":"abc"}`, `[1,2]`} {
		if _, err := parseListing(json.RawMessage(body)); err == nil {
			t.Fatalf("expected error for %s", body)
		}
	}
}

func TestListingRecord_ValuesMatchColumns(t *testing.T) {
	parsed, err := parseListing(loadFixture(t, "listing_full.json"))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	rec := flatten(parsed, models.CategorySale, "")

	values := rec.Values()
	if len(values) != len(models.ListingColumns) {
		t.Fatalf("values has %d entries, columns has %d", len(values), len(models.ListingColumns))
	}
	byColumn := make(map[string]string, len(values))
	for i, col := range models.ListingColumns {
		byColumn[col] = values[i]
	}
	if byColumn["id"] != "8908" || byColumn["announcement_type"] != "Sale" {
		t.Fatalf("unexpected id/type %q/%q", byColumn["id"], byColumn["announcement_type"])
	}
	if byColumn["is_repaired"] != "True" || byColumn["is_vip"] != "False" || byColumn["house_area"] != "" {
		t.Fatalf("unexpected flag rendering %q/%q/%q", byColumn["is_repaired"], byColumn["is_vip"], byColumn["house_area"])
	}
	if byColumn["metro_stations"] != "Nərimanov, Gənclik" {
		t.Fatalf("unexpected metro column %q", byColumn["metro_stations"])
	}
}
