package models

import "strconv"

// Category is the announcement type the remote API filters on.
type Category int

const (
	CategorySale Category = 1
	CategoryRent Category = 2
)

// Categories returns every category a full run collects.
func Categories() []Category {
	return []Category{CategorySale, CategoryRent}
}

func (c Category) Code() int {
	return int(c)
}

func (c Category) String() string {
	switch c {
	case CategorySale:
		return "Sale"
	case CategoryRent:
		return "Rent"
	default:
		return "Unknown(" + strconv.Itoa(int(c)) + ")"
	}
}

// ListingRecord is one flattened announcement. Loosely typed upstream values
// (price, area, ids that arrive as either numbers or strings) are kept as raw
// text; pointer fields are nil when the upstream value was absent or null.
type ListingRecord struct {
	ID               int64    `json:"id" db:"listing_id"`
	Title            string   `json:"title" db:"title"`
	Description      string   `json:"description" db:"description"`
	Price            string   `json:"price" db:"price"`
	Category         Category `json:"announcement_type" db:"announcement_type"`
	Area             string   `json:"area" db:"area"`
	RoomCount        *int     `json:"room_count" db:"room_count"`
	FloorCount       *int     `json:"floor_count" db:"floor_count"`
	Floor            *int     `json:"floor" db:"floor"`
	HouseArea        string   `json:"house_area" db:"house_area"`
	RentalType       string   `json:"rental_type" db:"rental_type"`
	IsRepaired       *bool    `json:"is_repaired" db:"is_repaired"`
	IsVIP            *bool    `json:"is_vip" db:"is_vip"`
	IsPremium        *bool    `json:"is_premium" db:"is_premium"`
	CreditPossible   *bool    `json:"credit_possible" db:"credit_possible"`
	InCredit         *bool    `json:"in_credit" db:"in_credit"`
	DocumentID       string   `json:"document_id" db:"document_id"`
	Status           string   `json:"status" db:"status"`
	FormattedDate    string   `json:"formatted_date" db:"formatted_date"`
	UserID           string   `json:"user_id" db:"user_id"`
	PhoneNumber      string   `json:"phone_number" db:"phone_number"`
	MainImageThumb   string   `json:"main_image_thumb" db:"main_image_thumb"`
	City             string   `json:"city" db:"city"`
	CityLat          string   `json:"city_lat" db:"city_lat"`
	CityLng          string   `json:"city_lng" db:"city_lng"`
	Region           string   `json:"region" db:"region"`
	RegionLat        string   `json:"region_lat" db:"region_lat"`
	RegionLng        string   `json:"region_lng" db:"region_lng"`
	Village          string   `json:"village" db:"village"`
	VillageLat       string   `json:"village_lat" db:"village_lat"`
	VillageLng       string   `json:"village_lng" db:"village_lng"`
	Address          string   `json:"address" db:"address"`
	Lat              string   `json:"lat" db:"lat"`
	Lng              string   `json:"lng" db:"lng"`
	MetroStations    string   `json:"metro_stations" db:"metro_stations"`
	IsFavorite       *bool    `json:"is_favorite" db:"is_favorite"`
	IsPriceDecreased *bool    `json:"is_price_decreased" db:"is_price_decreased"`
}

// ListingColumns is the tabular header shared by every export. Its order
// matches ListingRecord.Values.
var ListingColumns = []string{
	"id", "title", "description", "price", "announcement_type", "area",
	"room_count", "floor_count", "floor", "house_area", "rental_type",
	"is_repaired", "is_vip", "is_premium", "credit_possible", "in_credit",
	"document_id", "status", "formatted_date", "user_id", "phone_number",
	"main_image_thumb",
	"city", "city_lat", "city_lng",
	"region", "region_lat", "region_lng",
	"village", "village_lat", "village_lng",
	"address", "lat", "lng", "metro_stations",
	"is_favorite", "is_price_decreased",
}

// Values renders the record as one text row in ListingColumns order.
func (r *ListingRecord) Values() []string {
	return []string{
		strconv.FormatInt(r.ID, 10),
		r.Title,
		r.Description,
		r.Price,
		r.Category.String(),
		r.Area,
		intText(r.RoomCount),
		intText(r.FloorCount),
		intText(r.Floor),
		r.HouseArea,
		r.RentalType,
		boolText(r.IsRepaired),
		boolText(r.IsVIP),
		boolText(r.IsPremium),
		boolText(r.CreditPossible),
		boolText(r.InCredit),
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
		boolText(r.IsFavorite),
		boolText(r.IsPriceDecreased),
	}
}

func (r *ListingRecord) HasPhone() bool {
	return r.PhoneNumber != ""
}

func intText(v *int) string {
	if v == nil {
		return ""
	}
	return strconv.Itoa(*v)
}

func boolText(v *bool) string {
	if v == nil {
		return ""
	}
	if *v {
		return "True"
	}
	return "False"
}
