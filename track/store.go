package track

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// Content is one tracked page: the text an agent last submitted for one
// (owner, url) pair, with its ranked keywords and their density. Keywords
// are stored in rank order, most salient first.
type Content struct {
	ID             string             `json:"id"`
	OwnerID        string             `json:"owner_id"`
	URL            string             `json:"url"`
	Title          string             `json:"title"`
	ReferrerURL    string             `json:"referrer_url"`
	Content        string             `json:"content"`
	Keywords       []string           `json:"keywords"`
	KeywordDensity map[string]float64 `json:"keyword_density"`
	CreatedAt      int64              `json:"created_at"`
	UpdatedAt      int64              `json:"updated_at"`
}

// Store is the data access layer for tracked content. It receives an
// already-opened database; apply Schema via dbopen.WithSchema at startup.
type Store struct {
	DB *sql.DB
}

// NewStore creates a Store from an already-opened database connection.
func NewStore(db *sql.DB) *Store {
	return &Store{DB: db}
}

const contentColumns = `id, owner_id, url, title, referrer_url, content,
	keywords, keyword_density, created_at, updated_at`

// GetByOwnerURL retrieves the tracked content for one (owner, url) pair.
// Returns ErrNotFound if absent.
func (s *Store) GetByOwnerURL(ctx context.Context, ownerID, url string) (*Content, error) {
	row := s.DB.QueryRowContext(ctx,
		`SELECT `+contentColumns+` FROM tracked_content WHERE owner_id = ? AND url = ?`,
		ownerID, url)
	return scanContent(row)
}

// Get retrieves tracked content by ID. Returns ErrNotFound if absent.
func (s *Store) Get(ctx context.Context, id string) (*Content, error) {
	row := s.DB.QueryRowContext(ctx,
		`SELECT `+contentColumns+` FROM tracked_content WHERE id = ?`, id)
	return scanContent(row)
}

// Insert adds a new tracked content row. CreatedAt/UpdatedAt are set to
// now when zero.
func (s *Store) Insert(ctx context.Context, c *Content) error {
	now := time.Now().UnixMilli()
	if c.CreatedAt == 0 {
		c.CreatedAt = now
	}
	if c.UpdatedAt == 0 {
		c.UpdatedAt = now
	}

	keywords, density, err := marshalKeywords(c)
	if err != nil {
		return err
	}

	_, err = s.DB.ExecContext(ctx,
		`INSERT INTO tracked_content (id, owner_id, url, title, referrer_url, content,
		keywords, keyword_density, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.OwnerID, c.URL, c.Title, c.ReferrerURL, c.Content,
		keywords, density, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("track: insert %s: %w", c.URL, err)
	}
	return nil
}

// Update rewrites the mutable fields of an existing row and bumps
// updated_at.
func (s *Store) Update(ctx context.Context, c *Content) error {
	c.UpdatedAt = time.Now().UnixMilli()

	keywords, density, err := marshalKeywords(c)
	if err != nil {
		return err
	}

	res, err := s.DB.ExecContext(ctx,
		`UPDATE tracked_content
		SET title = ?, referrer_url = ?, content = ?, keywords = ?, keyword_density = ?, updated_at = ?
		WHERE id = ?`,
		c.Title, c.ReferrerURL, c.Content, keywords, density, c.UpdatedAt, c.ID)
	if err != nil {
		return fmt.Errorf("track: update %s: %w", c.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func marshalKeywords(c *Content) (string, string, error) {
	kw := c.Keywords
	if kw == nil {
		kw = []string{}
	}
	kd := c.KeywordDensity
	if kd == nil {
		kd = map[string]float64{}
	}
	keywords, err := json.Marshal(kw)
	if err != nil {
		return "", "", fmt.Errorf("track: marshal keywords: %w", err)
	}
	density, err := json.Marshal(kd)
	if err != nil {
		return "", "", fmt.Errorf("track: marshal density: %w", err)
	}
	return string(keywords), string(density), nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanContent(row rowScanner) (*Content, error) {
	var c Content
	var keywords, density string
	err := row.Scan(&c.ID, &c.OwnerID, &c.URL, &c.Title, &c.ReferrerURL, &c.Content,
		&keywords, &density, &c.CreatedAt, &c.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(keywords), &c.Keywords); err != nil {
		return nil, fmt.Errorf("track: corrupt keywords for %s: %w", c.ID, err)
	}
	if err := json.Unmarshal([]byte(density), &c.KeywordDensity); err != nil {
		return nil, fmt.Errorf("track: corrupt density for %s: %w", c.ID, err)
	}
	return &c, nil
}
