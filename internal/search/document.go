package search

import (
	"errors"
	"time"

	"github.com/imrishuroy/go-listing-sync/internal/events"
)

// ErrMissingID is returned when a row has no primary key to key the document by.
var ErrMissingID = errors.New("listing row has no id")

// GeoPoint is the Elasticsearch geo_point object form.
type GeoPoint struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Document is the search projection of a listings row. It is rebuilt on every
// sync and never stored on its own.
type Document struct {
	ID          string    `json:"id"`
	TenantID    string    `json:"tenant_id,omitempty"`
	Slug        string    `json:"slug,omitempty"`
	Title       string    `json:"title,omitempty"`
	Description string    `json:"description,omitempty"`
	Status      string    `json:"status,omitempty"`
	CategoryID  string    `json:"category_id,omitempty"`
	ListingType string    `json:"listing_type,omitempty"`
	Tags        []string  `json:"tags,omitempty"`
	Price       *float64  `json:"price,omitempty"`
	Currency    string    `json:"currency"`
	Location    *GeoPoint `json:"location,omitempty"`
	AddressLine string    `json:"address_line,omitempty"`
	City        string    `json:"city,omitempty"`
	Region      string    `json:"region,omitempty"`
	Country     string    `json:"country,omitempty"`
	PostalCode  string    `json:"postal_code,omitempty"`
	Featured    bool      `json:"featured"`
	ViewCount   int64     `json:"view_count"`
	PublishedAt *int64    `json:"published_at,omitempty"` // ms since epoch
	CreatedAt   *int64    `json:"created_at,omitempty"`
	UpdatedAt   *int64    `json:"updated_at,omitempty"`
}

// BuildDocument maps a listings row to its search document. Absent optional
// columns are omitted; currency falls back to defaultCurrency.
func BuildDocument(row events.Row, defaultCurrency string) (Document, error) {
	id := row.ID()
	if id == "" {
		return Document{}, ErrMissingID
	}
	doc := Document{
		ID:          id,
		TenantID:    text(row, "tenant_id"),
		Slug:        text(row, "slug"),
		Title:       text(row, "title"),
		Description: text(row, "description"),
		Status:      text(row, "status"),
		CategoryID:  text(row, "category_id"),
		ListingType: text(row, "listing_type"),
		Currency:    text(row, "currency"),
	}
	if doc.Currency == "" {
		doc.Currency = defaultCurrency
	}
	if tags, ok := row.Strings("tags"); ok && len(tags) > 0 {
		doc.Tags = tags
	}
	if price, ok := row.Float("price"); ok {
		doc.Price = &price
	}

	lat, latOK := row.Float("latitude")
	lon, lonOK := row.Float("longitude")
	if latOK && lonOK {
		doc.Location = &GeoPoint{Lat: lat, Lon: lon}
	}

	// address sub-fields become top-level facets; flat columns are the fallback
	addr, ok := row.Object("address")
	if !ok {
		addr = row
	}
	doc.AddressLine = firstText(addr, "line1", "street", "address_line")
	doc.City = firstText(addr, "city")
	doc.Region = firstText(addr, "region", "state")
	doc.Country = firstText(addr, "country")
	doc.PostalCode = firstText(addr, "postal_code", "zip")

	if featured, ok := row.Bool("featured"); ok {
		doc.Featured = featured
	}
	if views, ok := row.Int("view_count"); ok {
		doc.ViewCount = views
	}

	doc.PublishedAt = millis(row, "published_at")
	doc.CreatedAt = millis(row, "created_at")
	doc.UpdatedAt = millis(row, "updated_at")
	return doc, nil
}

func text(row events.Row, key string) string {
	s, _ := row.Text(key)
	return s
}

func firstText(row events.Row, keys ...string) string {
	for _, k := range keys {
		if s, ok := row.Text(k); ok && s != "" {
			return s
		}
	}
	return ""
}

func millis(row events.Row, key string) *int64 {
	t, ok := row.Time(key)
	if !ok || t.Equal(time.Time{}) {
		return nil
	}
	ms := t.UnixMilli()
	return &ms
}
