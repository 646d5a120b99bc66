package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Contact is a known caller keyed by phone number.
type Contact struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name,omitempty"`
	Company     string    `json:"company,omitempty"`
	PhoneNumber string    `json:"phone_number"`
	Email       string    `json:"email,omitempty"`
	IsSpam      bool      `json:"is_spam"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// ContactByPhone looks up a contact by exact phone number. Returns nil with
// no error when the number is unknown.
func (s *Store) ContactByPhone(ctx context.Context, phone string) (*Contact, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, company, phone_number, email, is_spam, created_at, updated_at
		FROM contacts WHERE phone_number = ?
	`, phone)

	contact, err := scanContact(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query contact by phone: %w", err)
	}
	return contact, nil
}

// CreateContact inserts a new contact. A duplicate phone number returns the
// existing row instead of failing, so concurrent terminal paths for the same
// caller stay idempotent.
func (s *Store) CreateContact(ctx context.Context, c Contact) (*Contact, error) {
	now := time.Now().UTC().Unix()
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO contacts (name, company, phone_number, email, is_spam, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, toNullString(c.Name), toNullString(c.Company), c.PhoneNumber, toNullString(c.Email), boolToInt(c.IsSpam), now, now)
	if err != nil {
		if isUniqueConstraintError(err) {
			return s.ContactByPhone(ctx, c.PhoneNumber)
		}
		return nil, fmt.Errorf("insert contact: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("contact insert id: %w", err)
	}
	return s.contactByID(ctx, id)
}

func (s *Store) contactByID(ctx context.Context, id int64) (*Contact, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, company, phone_number, email, is_spam, created_at, updated_at
		FROM contacts WHERE id = ?
	`, id)

	contact, err := scanContact(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query contact: %w", err)
	}
	return contact, nil
}

func scanContact(row *sql.Row) (*Contact, error) {
	var (
		c                    Contact
		name, company, email sql.NullString
		isSpam               int
		createdAt, updatedAt int64
	)
	if err := row.Scan(&c.ID, &name, &company, &c.PhoneNumber, &email, &isSpam, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	c.Name = fromNullString(name)
	c.Company = fromNullString(company)
	c.Email = fromNullString(email)
	c.IsSpam = isSpam != 0
	c.CreatedAt = time.Unix(createdAt, 0).UTC()
	c.UpdatedAt = time.Unix(updatedAt, 0).UTC()
	return &c, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
