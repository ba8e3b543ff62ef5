// Package listings is the access layer for marketplace listings: filtered
// reads, owner-scoped writes and tag validation.
package listings

import (
	"context"
	"fmt"
	"math"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/Vasu1712/campus-marketplace/internal/apperr"
	"github.com/Vasu1712/campus-marketplace/internal/logging"
	"github.com/Vasu1712/campus-marketplace/internal/models"
)

const (
	DefaultLimit = 20
	MaxLimit     = 100
	RecentLimit  = 6

	imageFolder = "listing-images"
)

// Store persists listings. Get, Update and Delete return an apperr NotFound
// error when no row matches; Update and Delete match on id AND userID.
type Store interface {
	List(ctx context.Context, q models.ListingQuery) (*models.ListingPage, error)
	Get(ctx context.Context, id string) (*models.Listing, error)
	ListByUser(ctx context.Context, userID string) ([]models.Listing, error)
	Create(ctx context.Context, l *models.Listing) (*models.Listing, error)
	Update(ctx context.Context, id, userID string, u models.ListingUpdate) (*models.Listing, error)
	Delete(ctx context.Context, id, userID string) error
	Exists(ctx context.Context, id string) (bool, error)
}

// ObjectStore holds uploaded images.
type ObjectStore interface {
	Upload(ctx context.Context, bucket, path string, data []byte, contentType string, upsert bool) error
	Remove(ctx context.Context, bucket string, paths []string) error
	PublicURL(bucket, path string) string
}

// Image is an optional picture attached to a new listing.
type Image struct {
	Filename    string
	ContentType string
	Data        []byte
}

type Service struct {
	store   Store
	objects ObjectStore
	bucket  string
	log     *logrus.Entry
}

type Option func(*Service)

// WithImages enables image uploads into bucket.
func WithImages(objects ObjectStore, bucket string) Option {
	return func(s *Service) {
		s.objects = objects
		s.bucket = bucket
	}
}

func WithLogger(log logrus.FieldLogger) Option {
	return func(s *Service) {
		s.log = logging.Component(log, "listings")
	}
}

func NewService(store Store, opts ...Option) *Service {
	s := &Service{store: store, log: logging.Component(nil, "listings")}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// AllowedTags returns a copy of the category allow-list.
func (s *Service) AllowedTags() []string {
	return append([]string(nil), models.AllowedTags...)
}

// GetListings returns one page of listings matching filters, newest first.
// Status defaults to active.
func (s *Service) GetListings(ctx context.Context, filters models.ListingFilters, page, limit int) (*models.ListingPage, error) {
	if filters.Status == "" {
		filters.Status = models.StatusActive
	} else if !filters.Status.Valid() {
		return nil, apperr.Validation("Invalid status: %s", filters.Status)
	}
	filters.Search = strings.TrimSpace(filters.Search)
	filters.Location = strings.TrimSpace(filters.Location)

	from, size := Window(page, limit)
	result, err := s.store.List(ctx, models.ListingQuery{Filters: filters, Offset: from, Limit: size})
	if err != nil {
		return nil, apperr.Wrap(err, "Error fetching listings")
	}
	if result.Listings == nil {
		result.Listings = []models.Listing{}
	}
	return result, nil
}

// SearchListings matches term against title or description of active listings.
func (s *Service) SearchListings(ctx context.Context, term string, limit int) ([]models.Listing, error) {
	from, size := Window(1, limit)
	result, err := s.store.List(ctx, models.ListingQuery{
		Filters: models.ListingFilters{Search: strings.TrimSpace(term), Status: models.StatusActive},
		Offset:  from,
		Limit:   size,
	})
	if err != nil {
		return nil, apperr.Wrap(err, "Error searching listings")
	}
	if result.Listings == nil {
		return []models.Listing{}, nil
	}
	return result.Listings, nil
}

// RecentListings returns the newest active listings for the landing page.
func (s *Service) RecentListings(ctx context.Context) ([]models.Listing, error) {
	page, err := s.GetListings(ctx, models.ListingFilters{}, 1, RecentLimit)
	if err != nil {
		return nil, err
	}
	return page.Listings, nil
}

// GetListing returns a listing with its owner projection.
func (s *Service) GetListing(ctx context.Context, id string) (*models.Listing, error) {
	if id == "" {
		return nil, apperr.Validation("listing id is required")
	}
	l, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, apperr.Wrap(err, "Error fetching listing")
	}
	return l, nil
}

// GetUserListings returns every listing owned by userID regardless of status.
func (s *Service) GetUserListings(ctx context.Context, userID string) ([]models.Listing, error) {
	out, err := s.store.ListByUser(ctx, userID)
	if err != nil {
		return nil, apperr.Wrap(err, "Error fetching user listings")
	}
	if out == nil {
		out = []models.Listing{}
	}
	return out, nil
}

func (s *Service) CreateListing(ctx context.Context, input models.ListingInput, userID string) (*models.Listing, error) {
	return s.CreateListingWithImage(ctx, input, nil, userID)
}

// CreateListingWithImage validates input, uploads img (if any) and inserts the
// listing owned by userID. The uploaded object is removed again if the insert fails.
func (s *Service) CreateListingWithImage(ctx context.Context, input models.ListingInput, img *Image, userID string) (*models.Listing, error) {
	if userID == "" {
		return nil, apperr.Unauthenticated("You must be signed in to create a listing")
	}
	if err := validateInput(&input); err != nil {
		return nil, err
	}

	var uploaded string
	if img != nil && len(img.Data) > 0 {
		if s.objects == nil {
			return nil, apperr.Configuration("image uploads are not configured")
		}
		uploaded = imagePath(userID, img.Filename)
		if err := s.objects.Upload(ctx, s.bucket, uploaded, img.Data, img.ContentType, false); err != nil {
			return nil, apperr.Wrap(err, "Error uploading image")
		}
		url := s.objects.PublicURL(s.bucket, uploaded)
		input.ImageURL = &url
	}

	listing := &models.Listing{
		Title:       input.Title,
		Description: input.Description,
		Price:       input.Price,
		ImageURL:    input.ImageURL,
		Tags:        input.Tags,
		Location:    input.Location,
		Lat:         input.Lat,
		Lng:         input.Lng,
		UserID:      userID,
		Status:      models.StatusActive,
		Quantity:    input.Quantity,
	}
	created, err := s.store.Create(ctx, listing)
	if err != nil {
		if uploaded != "" {
			if rmErr := s.objects.Remove(ctx, s.bucket, []string{uploaded}); rmErr != nil {
				s.log.WithError(rmErr).WithField("path", uploaded).Warn("failed to remove image of rejected listing")
			}
		}
		return nil, apperr.Wrap(err, "Error creating listing")
	}
	s.log.WithFields(logrus.Fields{"listing_id": created.ID, "user_id": userID}).Info("listing created")
	return created, nil
}

// UpdateListing applies u to a listing owned by userID. A listing that exists but
// belongs to someone else yields AccessDenied; a missing one NotFound.
func (s *Service) UpdateListing(ctx context.Context, id string, u models.ListingUpdate, userID string) (*models.Listing, error) {
	if err := validateUpdate(u); err != nil {
		return nil, err
	}
	if u.Empty() {
		return nil, apperr.Validation("no fields to update")
	}
	updated, err := s.store.Update(ctx, id, userID, u)
	if err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			return nil, s.ownershipError(ctx, id, "Error updating listing")
		}
		return nil, apperr.Wrap(err, "Error updating listing")
	}
	return updated, nil
}

// DeleteListing removes a listing owned by userID.
func (s *Service) DeleteListing(ctx context.Context, id, userID string) error {
	err := s.store.Delete(ctx, id, userID)
	if err == nil {
		s.log.WithFields(logrus.Fields{"listing_id": id, "user_id": userID}).Info("listing deleted")
		return nil
	}
	if apperr.Is(err, apperr.KindNotFound) {
		return s.ownershipError(ctx, id, "Error deleting listing")
	}
	return apperr.Wrap(err, "Error deleting listing")
}

// ownershipError explains why an owner-scoped write matched no rows.
func (s *Service) ownershipError(ctx context.Context, id, label string) error {
	exists, err := s.store.Exists(ctx, id)
	if err != nil {
		return apperr.Wrap(err, label)
	}
	if exists {
		return apperr.AccessDenied("You do not own this listing")
	}
	return apperr.NotFound("Listing not found")
}

// Window converts a 1-based page and limit into an offset and a clamped size.
func Window(page, limit int) (offset, size int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	if maxPage := math.MaxInt/limit - 1; page > maxPage {
		page = maxPage
	}
	return (page - 1) * limit, limit
}

func validatePrice(p float64) error {
	if math.IsNaN(p) || math.IsInf(p, 0) {
		return apperr.Validation("price must be a finite number")
	}
	if p < 0 {
		return apperr.Validation("price must not be negative")
	}
	return nil
}

func validateTags(tags []string) error {
	if invalid := models.InvalidTags(tags); len(invalid) > 0 {
		return apperr.Validation("Invalid tags: %s. Allowed tags: %s",
			strings.Join(invalid, ", "), strings.Join(models.AllowedTags, ", "))
	}
	return nil
}

func validateInput(in *models.ListingInput) error {
	if err := validateTags(in.Tags); err != nil {
		return err
	}
	in.Title = strings.TrimSpace(in.Title)
	if in.Title == "" {
		return apperr.Validation("title is required")
	}
	if err := validatePrice(in.Price); err != nil {
		return err
	}
	if in.Quantity == 0 {
		in.Quantity = 1
	}
	if in.Quantity < 0 {
		return apperr.Validation("quantity must be at least 1")
	}
	if in.Tags == nil {
		in.Tags = []string{}
	}
	return nil
}

func validateUpdate(u models.ListingUpdate) error {
	if u.Tags != nil {
		if err := validateTags(u.Tags); err != nil {
			return err
		}
	}
	if u.Title != nil && strings.TrimSpace(*u.Title) == "" {
		return apperr.Validation("title is required")
	}
	if u.Price != nil {
		if err := validatePrice(*u.Price); err != nil {
			return err
		}
	}
	if u.Quantity != nil && *u.Quantity < 1 {
		return apperr.Validation("quantity must be at least 1")
	}
	if u.Status != nil && !u.Status.Valid() {
		return apperr.Validation("Invalid status: %s", *u.Status)
	}
	return nil
}

func imagePath(userID, filename string) string {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(filename)), ".")
	if ext == "" {
		ext = "jpg"
	}
	return fmt.Sprintf("%s/%s-%s.%s", imageFolder, userID, uuid.NewString(), ext)
}
