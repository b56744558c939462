package scraper

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"myhome_scrooper/models"
)

var errNoListingID = errors.New("listing has no usable id")

// rawListing mirrors the announcement objects returned by /list. Scalars are
// kept as raw JSON because the API mixes numbers, numeric strings and nulls.
type rawListing struct {
	ID               json.RawMessage `json:"id"`
	Title            json.RawMessage `json:"title"`
	Description      json.RawMessage `json:"description"`
	Price            json.RawMessage `json:"price"`
	Area             json.RawMessage `json:"area"`
	RoomCount        json.RawMessage `json:"room_count"`
	FloorCount       json.RawMessage `json:"floor_count"`
	Floor            json.RawMessage `json:"floor"`
	HouseArea        json.RawMessage `json:"house_area"`
	RentalType       json.RawMessage `json:"rental_type"`
	IsRepaired       json.RawMessage `json:"is_repaired"`
	IsVIP            json.RawMessage `json:"is_vip"`
	IsPremium        json.RawMessage `json:"is_premium"`
	CreditPossible   json.RawMessage `json:"credit_possible"`
	InCredit         json.RawMessage `json:"in_credit"`
	DocumentID       json.RawMessage `json:"document_id"`
	Status           json.RawMessage `json:"status"`
	FormattedDate    json.RawMessage `json:"formatted_date"`
	UserID           json.RawMessage `json:"user_id"`
	MainImageThumb   json.RawMessage `json:"main_image_thumb"`
	IsFavorite       json.RawMessage `json:"is_favorite"`
	IsPriceDecreased json.RawMessage `json:"is_price_decreased"`
	Address          json.RawMessage `json:"address"`
	MetroStations    json.RawMessage `json:"metro_stations"`
}

type rawPlace struct {
	Name json.RawMessage `json:"name"`
	Lat  json.RawMessage `json:"lat"`
	Lng  json.RawMessage `json:"lng"`
}

type rawAddress struct {
	City    json.RawMessage `json:"city"`
	Region  json.RawMessage `json:"region"`
	Village json.RawMessage `json:"village"`
	Address json.RawMessage `json:"address"`
	Lat     json.RawMessage `json:"lat"`
	Lng     json.RawMessage `json:"lng"`
}

type parsedListing struct {
	id  int64
	raw rawListing
}

func parseListing(data json.RawMessage) (*parsedListing, error) {
	var raw rawListing
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode listing: %w", err)
	}

	id, ok := toInt64(raw.ID)
	if !ok || id <= 0 {
		return nil, errNoListingID
	}
	return &parsedListing{id: id, raw: raw}, nil
}

// flatten builds the tabular record from a parsed listing and its phone.
func flatten(p *parsedListing, category models.Category, phone string) models.ListingRecord {
	r := p.raw
	rec := models.ListingRecord{
		ID:               p.id,
		Title:            text(r.Title),
		Description:      text(r.Description),
		Price:            text(r.Price),
		Category:         category,
		Area:             text(r.Area),
		RoomCount:        intPtr(r.RoomCount),
		FloorCount:       intPtr(r.FloorCount),
		Floor:            intPtr(r.Floor),
		HouseArea:        text(r.HouseArea),
		RentalType:       text(r.RentalType),
		IsRepaired:       boolPtr(r.IsRepaired),
		IsVIP:            boolPtr(r.IsVIP),
		IsPremium:        boolPtr(r.IsPremium),
		CreditPossible:   boolPtr(r.CreditPossible),
		InCredit:         boolPtr(r.InCredit),
		DocumentID:       text(r.DocumentID),
		Status:           text(r.Status),
		FormattedDate:    text(r.FormattedDate),
		UserID:           text(r.UserID),
		PhoneNumber:      phone,
		MainImageThumb:   text(r.MainImageThumb),
		IsFavorite:       boolPtr(r.IsFavorite),
		IsPriceDecreased: boolPtr(r.IsPriceDecreased),
		MetroStations:    stationNames(r.MetroStations),
	}

	var addr rawAddress
	if decodeObject(r.Address, &addr) {
		rec.Address = text(addr.Address)
		rec.Lat = text(addr.Lat)
		rec.Lng = text(addr.Lng)

		var place rawPlace
		if decodeObject(addr.City, &place) {
			rec.City, rec.CityLat, rec.CityLng = text(place.Name), text(place.Lat), text(place.Lng)
		}
		place = rawPlace{}
		if decodeObject(addr.Region, &place) {
			rec.Region, rec.RegionLat, rec.RegionLng = text(place.Name), text(place.Lat), text(place.Lng)
		}
		place = rawPlace{}
		if decodeObject(addr.Village, &place) {
			rec.Village, rec.VillageLat, rec.VillageLng = text(place.Name), text(place.Lat), text(place.Lng)
		}
	}

	return rec
}

// decodeObject only decodes JSON objects; null, arrays (an empty PHP object
// often arrives as []) and scalars leave dst untouched.
func decodeObject(data json.RawMessage, dst any) bool {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return false
	}
	return json.Unmarshal(trimmed, dst) == nil
}

func stationNames(data json.RawMessage) string {
	var stations []rawPlace
	if err := json.Unmarshal(data, &stations); err != nil {
		return ""
	}
	names := make([]string, 0, len(stations))
	for _, s := range stations {
		names = append(names, text(s.Name))
	}
	return strings.Join(names, ", ")
}

// text renders a raw JSON scalar as plain text: strings unquoted, numbers and
// booleans verbatim, null or missing as "".
func text(data json.RawMessage) string {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return ""
	}
	if trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err == nil {
			return s
		}
	}
	return string(trimmed)
}

func toInt64(data json.RawMessage) (int64, bool) {
	s := text(data)
	if s == "" {
		return 0, false
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n, true
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f == float64(int64(f)) {
		return int64(f), true
	}
	return 0, false
}

func intPtr(data json.RawMessage) *int {
	n, ok := toInt64(data)
	if !ok {
		return nil
	}
	v := int(n)
	return &v
}

// boolPtr accepts JSON booleans as well as 0/1 in numeric or string form.
func boolPtr(data json.RawMessage) *bool {
	var v bool
	switch strings.ToLower(text(data)) {
	case "true", "1":
		v = true
	case "false", "0":
		v = false
	default:
		return nil
	}
	return &v
}
