package models

import (
	"strings"
	"time"
)

// ListingStatus is the lifecycle state of a listing.
type ListingStatus string

const (
	StatusActive   ListingStatus = "active"
	StatusSold     ListingStatus = "sold"
	StatusInactive ListingStatus = "inactive"
)

// Valid reports whether s is one of the known statuses.
func (s ListingStatus) Valid() bool {
	switch s {
	case StatusActive, StatusSold, StatusInactive:
		return true
	}
	return false
}

// Listing is a for-sale item. Owner is only populated on reads that embed the owner profile.
type Listing struct {
	ID          string          `json:"id"`
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Price       float64         `json:"price"`
	ImageURL    *string         `json:"image_url"`
	Tags        []string        `json:"tags"`
	Location    string          `json:"location"`
	Lat         *float64        `json:"lat"`
	Lng         *float64        `json:"lng"`
	UserID      string          `json:"user_id"`
	Status      ListingStatus   `json:"status"`
	Quantity    int             `json:"quantity"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
	Owner       *ProfileSummary `json:"owner,omitempty"`
}

// ListingInput is the writable part of a new listing.
type ListingInput struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Price       float64  `json:"price"`
	ImageURL    *string  `json:"image_url,omitempty"`
	Tags        []string `json:"tags"`
	Location    string   `json:"location"`
	Lat         *float64 `json:"lat,omitempty"`
	Lng         *float64 `json:"lng,omitempty"`
	Quantity    int      `json:"quantity"`
}

// ListingUpdate is a partial update; nil fields are left untouched.
type ListingUpdate struct {
	Title       *string        `json:"title,omitempty"`
	Description *string        `json:"description,omitempty"`
	Price       *float64       `json:"price,omitempty"`
	ImageURL    *string        `json:"image_url,omitempty"`
	Tags        []string       `json:"tags,omitempty"`
	Location    *string        `json:"location,omitempty"`
	Lat         *float64       `json:"lat,omitempty"`
	Lng         *float64       `json:"lng,omitempty"`
	Status      *ListingStatus `json:"status,omitempty"`
	Quantity    *int           `json:"quantity,omitempty"`
}

// Empty reports whether the update changes nothing.
func (u ListingUpdate) Empty() bool {
	return u.Title == nil && u.Description == nil && u.Price == nil && u.ImageURL == nil &&
		u.Tags == nil && u.Location == nil && u.Lat == nil && u.Lng == nil &&
		u.Status == nil && u.Quantity == nil
}

// Apply copies the set fields of u onto l.
func (u ListingUpdate) Apply(l *Listing) {
	if u.Title != nil {
		l.Title = *u.Title
	}
	if u.Description != nil {
		l.Description = *u.Description
	}
	if u.Price != nil {
		l.Price = *u.Price
	}
	if u.ImageURL != nil {
		l.ImageURL = u.ImageURL
	}
	if u.Tags != nil {
		l.Tags = append([]string(nil), u.Tags...)
	}
	if u.Location != nil {
		l.Location = *u.Location
	}
	if u.Lat != nil {
		l.Lat = u.Lat
	}
	if u.Lng != nil {
		l.Lng = u.Lng
	}
	if u.Status != nil {
		l.Status = *u.Status
	}
	if u.Quantity != nil {
		l.Quantity = *u.Quantity
	}
}

// ListingFilters narrows a listing search. Zero values mean "no filter".
type ListingFilters struct {
	Tags     []string
	Location string
	MinPrice *float64
	MaxPrice *float64
	Status   ListingStatus
	Search   string
}

// Matches applies the filter semantics in memory: tag overlap, case-insensitive
// substring on location, and title-or-description search.
func (f ListingFilters) Matches(l *Listing) bool {
	if f.Status != "" && l.Status != f.Status {
		return false
	}
	if len(f.Tags) > 0 && !overlaps(l.Tags, f.Tags) {
		return false
	}
	if f.Location != "" && !containsFold(l.Location, f.Location) {
		return false
	}
	if f.MinPrice != nil && l.Price < *f.MinPrice {
		return false
	}
	if f.MaxPrice != nil && l.Price > *f.MaxPrice {
		return false
	}
	if f.Search != "" && !containsFold(l.Title, f.Search) && !containsFold(l.Description, f.Search) {
		return false
	}
	return true
}

// ListingQuery is a filtered, paginated listing read.
type ListingQuery struct {
	Filters ListingFilters
	Offset  int
	Limit   int
}

// ListingPage is one page of results plus the total number of matches.
type ListingPage struct {
	Listings []Listing `json:"listings"`
	Count    int       `json:"count"`
}

func overlaps(have, want []string) bool {
	for _, w := range want {
		for _, h := range have {
			if h == w {
				return true
			}
		}
	}
	return false
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
