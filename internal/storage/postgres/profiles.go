package postgres

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/Vasu1712/campus-marketplace/internal/apperr"
	"github.com/Vasu1712/campus-marketplace/internal/models"
)

const profileColumns = `id, email, username, full_name, profile_picture, interests, wanted_items,
	created_at, updated_at, last_login`

// ProfileStore implements the profile store using PostgreSQL.
type ProfileStore struct {
	db *sql.DB
}

func NewProfileStore(db *sql.DB) *ProfileStore {
	return &ProfileStore{db: db}
}

func scanProfile(row scanner) (*models.Profile, error) {
	var (
		p         models.Profile
		fullName  sql.NullString
		lastLogin sql.NullTime
	)
	err := row.Scan(&p.ID, &p.Email, &p.Username, &fullName, &p.ProfilePicture,
		pq.Array(&p.Interests), pq.Array(&p.WantedItems), &p.CreatedAt, &p.UpdatedAt, &lastLogin)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("Profile not found")
	}
	if err != nil {
		return nil, err
	}
	p.FullName = nullString(fullName)
	if lastLogin.Valid {
		t := lastLogin.Time
		p.LastLogin = &t
	}
	if p.Interests == nil {
		p.Interests = []string{}
	}
	if p.WantedItems == nil {
		p.WantedItems = []string{}
	}
	return &p, nil
}

func (s *ProfileStore) CreateProfile(ctx context.Context, p *models.Profile) (*models.Profile, error) {
	interests, wanted := p.Interests, p.WantedItems
	if interests == nil {
		interests = []string{}
	}
	if wanted == nil {
		wanted = []string{}
	}
	return scanProfile(s.db.QueryRowContext(ctx, `INSERT INTO profiles
		(id, email, username, full_name, profile_picture, interests, wanted_items)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING `+profileColumns,
		p.ID, p.Email, p.Username, p.FullName, p.ProfilePicture, pq.Array(interests), pq.Array(wanted)))
}

func (s *ProfileStore) GetProfile(ctx context.Context, id string) (*models.Profile, error) {
	return scanProfile(s.db.QueryRowContext(ctx, "SELECT "+profileColumns+" FROM profiles WHERE id = $1", id))
}

func (s *ProfileStore) UpdateProfile(ctx context.Context, id string, u models.ProfileUpdate) (*models.Profile, error) {
	var a args
	sets := []string{"updated_at = NOW()"}
	if u.Username != nil {
		sets = append(sets, "username = "+a.add(*u.Username))
	}
	if u.FullName != nil {
		sets = append(sets, "full_name = "+a.add(*u.FullName))
	}
	if u.Interests != nil {
		sets = append(sets, "interests = "+a.add(pq.Array(u.Interests)))
	}
	if u.WantedItems != nil {
		sets = append(sets, "wanted_items = "+a.add(pq.Array(u.WantedItems)))
	}
	query := "UPDATE profiles SET " + strings.Join(sets, ", ") +
		" WHERE id = " + a.add(id) + " RETURNING " + profileColumns
	return scanProfile(s.db.QueryRowContext(ctx, query, a...))
}

func (s *ProfileStore) TouchLastLogin(ctx context.Context, userID string, at time.Time) error {
	res, err := s.db.ExecContext(ctx, "UPDATE profiles SET last_login = $1 WHERE id = $2", at.UTC(), userID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.NotFound("Profile not found")
	}
	return nil
}
