// Package supabase implements the marketplace stores on top of the hosted
// PostgREST API. Requests carry the caller's access token from the context, so
// the project's row-level security policies decide what each user may touch.
package supabase

import (
	"context"
	"strconv"
	"time"

	"github.com/Vasu1712/campus-marketplace/internal/apperr"
	"github.com/Vasu1712/campus-marketplace/internal/models"
	client "github.com/Vasu1712/campus-marketplace/internal/supabase"
)

const (
	listingsTable = "listings"

	listingColumns = "*,owner:profiles!user_id(id,username,profile_picture)"
)

// listingRow is the insert payload; id and timestamps are assigned by the database.
type listingRow struct {
	Title       string               `json:"title"`
	Description string               `json:"description"`
	Price       float64              `json:"price"`
	ImageURL    *string              `json:"image_url"`
	Tags        []string             `json:"tags"`
	Location    string               `json:"location"`
	Lat         *float64             `json:"lat"`
	Lng         *float64             `json:"lng"`
	UserID      string               `json:"user_id"`
	Status      models.ListingStatus `json:"status"`
	Quantity    int                  `json:"quantity"`
}

type ListingStore struct {
	db *client.DatabaseClient
}

func NewListingStore(db *client.DatabaseClient) *ListingStore {
	return &ListingStore{db: db}
}

func (s *ListingStore) List(ctx context.Context, q models.ListingQuery) (*models.ListingPage, error) {
	qb := s.db.From(listingsTable).Select(listingColumns).Count()
	applyFilters(qb, q.Filters)
	qb.Order("created_at", client.OrderDesc)
	if q.Limit > 0 {
		qb.Range(q.Offset, q.Offset+q.Limit-1)
	}

	var rows []models.Listing
	count, err := qb.ExecuteCount(ctx, &rows)
	if err != nil {
		return nil, err
	}
	if rows == nil {
		rows = []models.Listing{}
	}
	if count < 0 {
		count = len(rows)
	}
	return &models.ListingPage{Listings: rows, Count: count}, nil
}

func applyFilters(qb *client.QueryBuilder, f models.ListingFilters) {
	if f.Status != "" {
		qb.Eq("status", f.Status)
	}
	if len(f.Tags) > 0 {
		qb.Overlaps("tags", f.Tags)
	}
	if f.Location != "" {
		qb.ILike("location", "*"+f.Location+"*")
	}
	if f.MinPrice != nil {
		qb.Gte("price", formatPrice(*f.MinPrice))
	}
	if f.MaxPrice != nil {
		qb.Lte("price", formatPrice(*f.MaxPrice))
	}
	if f.Search != "" {
		pattern := client.Quote("*" + f.Search + "*")
		qb.Or("title.ilike."+pattern, "description.ilike."+pattern)
	}
}

func formatPrice(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func (s *ListingStore) Get(ctx context.Context, id string) (*models.Listing, error) {
	var rows []models.Listing
	err := s.db.From(listingsTable).Select(listingColumns).Eq("id", id).Limit(1).ExecuteInto(ctx, &rows)
	if client.IsInvalidText(err) {
		return nil, apperr.NotFound("Listing not found")
	}
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, apperr.NotFound("Listing not found")
	}
	return &rows[0], nil
}

func (s *ListingStore) ListByUser(ctx context.Context, userID string) ([]models.Listing, error) {
	var rows []models.Listing
	err := s.db.From(listingsTable).
		Eq("user_id", userID).
		Order("created_at", client.OrderDesc).
		ExecuteInto(ctx, &rows)
	if err != nil {
		return nil, err
	}
	if rows == nil {
		rows = []models.Listing{}
	}
	return rows, nil
}

func (s *ListingStore) Create(ctx context.Context, l *models.Listing) (*models.Listing, error) {
	tags := l.Tags
	if tags == nil {
		tags = []string{}
	}
	row := listingRow{
		Title:       l.Title,
		Description: l.Description,
		Price:       l.Price,
		ImageURL:    l.ImageURL,
		Tags:        tags,
		Location:    l.Location,
		Lat:         l.Lat,
		Lng:         l.Lng,
		UserID:      l.UserID,
		Status:      l.Status,
		Quantity:    l.Quantity,
	}
	var rows []models.Listing
	if err := s.db.From(listingsTable).Insert(row).ExecuteInto(ctx, &rows); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, apperr.New(apperr.KindTransport, "insert returned no rows")
	}
	return &rows[0], nil
}

// Update matches on id AND user_id; zero affected rows is NotFound.
func (s *ListingStore) Update(ctx context.Context, id, userID string, u models.ListingUpdate) (*models.Listing, error) {
	var rows []models.Listing
	err := s.db.From(listingsTable).
		Update(listingPatch(u)).
		Eq("id", id).
		Eq("user_id", userID).
		ExecuteInto(ctx, &rows)
	if err != nil && !client.IsInvalidText(err) {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, apperr.NotFound("Listing not found")
	}
	return &rows[0], nil
}

func listingPatch(u models.ListingUpdate) map[string]interface{} {
	patch := map[string]interface{}{"updated_at": time.Now().UTC()}
	if u.Title != nil {
		patch["title"] = *u.Title
	}
	if u.Description != nil {
		patch["description"] = *u.Description
	}
	if u.Price != nil {
		patch["price"] = *u.Price
	}
	if u.ImageURL != nil {
		patch["image_url"] = *u.ImageURL
	}
	if u.Tags != nil {
		patch["tags"] = u.Tags
	}
	if u.Location != nil {
		patch["location"] = *u.Location
	}
	if u.Lat != nil {
		patch["lat"] = *u.Lat
	}
	if u.Lng != nil {
		patch["lng"] = *u.Lng
	}
	if u.Status != nil {
		patch["status"] = *u.Status
	}
	if u.Quantity != nil {
		patch["quantity"] = *u.Quantity
	}
	return patch
}

func (s *ListingStore) Delete(ctx context.Context, id, userID string) error {
	var rows []struct {
		ID string `json:"id"`
	}
	err := s.db.From(listingsTable).
		Delete().
		Select("id").
		Eq("id", id).
		Eq("user_id", userID).
		ExecuteInto(ctx, &rows)
	if err != nil && !client.IsInvalidText(err) {
		return err
	}
	if len(rows) == 0 {
		return apperr.NotFound("Listing not found")
	}
	return nil
}

func (s *ListingStore) Exists(ctx context.Context, id string) (bool, error) {
	var rows []struct {
		ID string `json:"id"`
	}
	err := s.db.From(listingsTable).Select("id").Eq("id", id).Limit(1).ExecuteInto(ctx, &rows)
	if client.IsInvalidText(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return len(rows) > 0, nil
}
