package database

import (
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// Account is a registered bot user or web admin.
// ExternalID is the Telegram user id and is null for web-only admins.
type Account struct {
	ID         int64         `db:"id"`
	ExternalID sql.NullInt64 `db:"external_id"`

	Username  string `db:"username"`
	FirstName string `db:"first_name"`
	LastName  string `db:"last_name"`

	IsAdmin  bool `db:"is_admin"`
	IsActive bool `db:"is_active"`

	PasswordHash sql.NullString `db:"password_hash"`
	TOTPSecret   sql.NullString `db:"totp_secret"`

	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

// HasTOTP reports whether a second factor is configured.
func (a *Account) HasTOTP() bool {
	return a.TOTPSecret.Valid && a.TOTPSecret.String != ""
}

// DisplayName prefers @username, then the full name, then the platform id.
func (a *Account) DisplayName() string {
	return displayName(a.Username, a.FirstName, a.LastName, a.ExternalID, a.ID)
}

// ExternalProfile is what the chat platform reports about a user on contact.
type ExternalProfile struct {
	ExternalID int64
	Username   string
	FirstName  string
	LastName   string
}

// AdminSeed describes the first web admin created when no admin exists.
type AdminSeed struct {
	Username     string
	PasswordHash string
	TOTPSecret   string
}

// LocationQuery is one logged geocoding or location-share event.
// Coordinates are kept as text and are null when no point was resolved.
type LocationQuery struct {
	ID        int64          `db:"id"`
	AccountID int64          `db:"account_id"`
	Latitude  sql.NullString `db:"latitude"`
	Longitude sql.NullString `db:"longitude"`
	Address   sql.NullString `db:"address"`
	Query     sql.NullString `db:"query"`
	CreatedAt time.Time      `db:"created_at"`
}

// LocationQueryView is a LocationQuery joined with its owner's contact fields.
type LocationQueryView struct {
	LocationQuery

	OwnerExternalID sql.NullInt64 `db:"owner_external_id"`
	OwnerUsername   string        `db:"owner_username"`
	OwnerFirstName  string        `db:"owner_first_name"`
	OwnerLastName   string        `db:"owner_last_name"`
}

// OwnerDisplayName renders the owner the same way Account.DisplayName does.
func (v *LocationQueryView) OwnerDisplayName() string {
	return displayName(v.OwnerUsername, v.OwnerFirstName, v.OwnerLastName, v.OwnerExternalID, v.AccountID)
}

// NearbyRecord is a LocationQueryView ranked by L1 distance from a point.
type NearbyRecord struct {
	LocationQueryView

	Distance float64 `db:"distance"`
}

// Stats summarizes store contents for the dashboard and /stats.
type Stats struct {
	Accounts int `db:"accounts"`
	Admins   int `db:"admins"`
	Queries  int `db:"queries"`
}

// Page selects a window of a listing. Number starts at 1.
type Page struct {
	Number int
	Size   int
}

const (
	defaultPageSize = 50
	maxPageSize     = 200
)

// Normalize clamps the page to sane bounds.
func (p Page) Normalize() Page {
	if p.Number < 1 {
		p.Number = 1
	}
	if p.Size <= 0 {
		p.Size = defaultPageSize
	} else if p.Size > maxPageSize {
		p.Size = maxPageSize
	}
	return p
}

// Offset is the row offset of the normalized page.
func (p Page) Offset() int {
	n := p.Normalize()
	return (n.Number - 1) * n.Size
}

func displayName(username, first, last string, externalID sql.NullInt64, id int64) string {
	if username != "" {
		return "@" + username
	}
	if name := strings.TrimSpace(first + " " + last); name != "" {
		return name
	}
	if externalID.Valid && externalID.Int64 != 0 {
		return fmt.Sprintf("user %d", externalID.Int64)
	}
	return fmt.Sprintf("user %d", id)
}
