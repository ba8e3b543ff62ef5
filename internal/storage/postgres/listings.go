package postgres

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/lib/pq"

	"github.com/Vasu1712/campus-marketplace/internal/apperr"
	"github.com/Vasu1712/campus-marketplace/internal/models"
)

const listingColumns = `l.id, l.title, l.description, l.price, l.image_url, l.tags, l.location,
	l.lat, l.lng, l.user_id, l.status, l.quantity, l.created_at, l.updated_at`

const ownerColumns = `p.id, p.username, p.profile_picture`

// ListingStore implements the listing store using PostgreSQL.
type ListingStore struct {
	db *sql.DB
}

func NewListingStore(db *sql.DB) *ListingStore {
	return &ListingStore{db: db}
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanListing(row scanner, withOwner bool) (models.Listing, error) {
	var (
		l        models.Listing
		imageURL sql.NullString
		lat, lng sql.NullFloat64
		ownerID  sql.NullString
		username sql.NullString
		picture  sql.NullString
	)
	dest := []interface{}{
		&l.ID, &l.Title, &l.Description, &l.Price, &imageURL, pq.Array(&l.Tags), &l.Location,
		&lat, &lng, &l.UserID, &l.Status, &l.Quantity, &l.CreatedAt, &l.UpdatedAt,
	}
	if withOwner {
		dest = append(dest, &ownerID, &username, &picture)
	}
	if err := row.Scan(dest...); err != nil {
		return l, err
	}
	l.ImageURL = nullString(imageURL)
	l.Lat, l.Lng = nullFloat(lat), nullFloat(lng)
	if l.Tags == nil {
		l.Tags = []string{}
	}
	if ownerID.Valid {
		l.Owner = &models.ProfileSummary{ID: ownerID.String, Username: username.String, ProfilePicture: picture.String}
	}
	return l, nil
}

func listingWhere(f models.ListingFilters, a *args) string {
	var clauses []string
	if f.Status != "" {
		clauses = append(clauses, "l.status = "+a.add(string(f.Status)))
	}
	if len(f.Tags) > 0 {
		clauses = append(clauses, "l.tags && "+a.add(pq.Array(f.Tags)))
	}
	if f.Location != "" {
		clauses = append(clauses, "l.location ILIKE "+a.add(likePattern(f.Location)))
	}
	if f.MinPrice != nil {
		clauses = append(clauses, "l.price >= "+a.add(*f.MinPrice))
	}
	if f.MaxPrice != nil {
		clauses = append(clauses, "l.price <= "+a.add(*f.MaxPrice))
	}
	if f.Search != "" {
		p := a.add(likePattern(f.Search))
		clauses = append(clauses, "(l.title ILIKE "+p+" OR l.description ILIKE "+p+")")
	}
	if len(clauses) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(clauses, " AND ")
}

func (s *ListingStore) List(ctx context.Context, q models.ListingQuery) (*models.ListingPage, error) {
	var a args
	where := listingWhere(q.Filters, &a)

	page := &models.ListingPage{Listings: []models.Listing{}}
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM listings l"+where, a...).Scan(&page.Count); err != nil {
		return nil, err
	}

	query := "SELECT " + listingColumns + ", " + ownerColumns +
		" FROM listings l LEFT JOIN profiles p ON p.id = l.user_id" + where +
		" ORDER BY l.created_at DESC"
	if q.Limit > 0 {
		query += " LIMIT " + a.add(q.Limit)
	}
	query += " OFFSET " + a.add(q.Offset)

	rows, err := s.db.QueryContext(ctx, query, a...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		l, err := scanListing(rows, true)
		if err != nil {
			return nil, err
		}
		page.Listings = append(page.Listings, l)
	}
	return page, rows.Err()
}

func (s *ListingStore) Get(ctx context.Context, id string) (*models.Listing, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+listingColumns+", "+ownerColumns+
		" FROM listings l LEFT JOIN profiles p ON p.id = l.user_id WHERE l.id = $1", id)
	l, err := scanListing(row, true)
	if errors.Is(err, sql.ErrNoRows) || isInvalidText(err) {
		return nil, apperr.NotFound("Listing not found")
	}
	if err != nil {
		return nil, err
	}
	return &l, nil
}

func (s *ListingStore) ListByUser(ctx context.Context, userID string) ([]models.Listing, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT "+listingColumns+
		" FROM listings l WHERE l.user_id = $1 ORDER BY l.created_at DESC", userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []models.Listing{}
	for rows.Next() {
		l, err := scanListing(rows, false)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func (s *ListingStore) Create(ctx context.Context, l *models.Listing) (*models.Listing, error) {
	query := `INSERT INTO listings AS l (title, description, price, image_url, tags, location, lat, lng, user_id, status, quantity)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING ` + listingColumns
	row := s.db.QueryRowContext(ctx, query,
		l.Title, l.Description, l.Price, l.ImageURL, pq.Array(l.Tags), l.Location,
		l.Lat, l.Lng, l.UserID, string(l.Status), l.Quantity,
	)
	created, err := scanListing(row, false)
	if err != nil {
		return nil, err
	}
	return &created, nil
}

// Update matches on id AND user_id; zero affected rows is NotFound.
func (s *ListingStore) Update(ctx context.Context, id, userID string, u models.ListingUpdate) (*models.Listing, error) {
	var a args
	sets := []string{"updated_at = NOW()"}
	set := func(col string, v interface{}) { sets = append(sets, col+" = "+a.add(v)) }
	if u.Title != nil {
		set("title", *u.Title)
	}
	if u.Description != nil {
		set("description", *u.Description)
	}
	if u.Price != nil {
		set("price", *u.Price)
	}
	if u.ImageURL != nil {
		set("image_url", *u.ImageURL)
	}
	if u.Tags != nil {
		set("tags", pq.Array(u.Tags))
	}
	if u.Location != nil {
		set("location", *u.Location)
	}
	if u.Lat != nil {
		set("lat", *u.Lat)
	}
	if u.Lng != nil {
		set("lng", *u.Lng)
	}
	if u.Status != nil {
		set("status", string(*u.Status))
	}
	if u.Quantity != nil {
		set("quantity", *u.Quantity)
	}

	query := "UPDATE listings AS l SET " + strings.Join(sets, ", ") +
		" WHERE l.id = " + a.add(id) + " AND l.user_id = " + a.add(userID) +
		" RETURNING " + listingColumns
	updated, err := scanListing(s.db.QueryRowContext(ctx, query, a...), false)
	if errors.Is(err, sql.ErrNoRows) || isInvalidText(err) {
		return nil, apperr.NotFound("Listing not found")
	}
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

func (s *ListingStore) Delete(ctx context.Context, id, userID string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM listings WHERE id = $1 AND user_id = $2", id, userID)
	if isInvalidText(err) {
		return apperr.NotFound("Listing not found")
	}
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return apperr.NotFound("Listing not found")
	}
	return nil
}

func (s *ListingStore) Exists(ctx context.Context, id string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, "SELECT EXISTS(SELECT 1 FROM listings WHERE id = $1)", id).Scan(&exists)
	if isInvalidText(err) {
		return false, nil
	}
	return exists, err
}
