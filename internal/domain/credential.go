package domain

import (
	"strings"
	"time"
)

// ProviderApify is the default scraping provider for stored credentials.
const ProviderApify = "apify"

// Credential represents a user's API token for a scraping provider.
// One row per (user, provider); saving again overwrites the token.
type Credential struct {
	ID        string    `gorm:"type:text;primaryKey" json:"id"`
	UserID    string    `gorm:"type:text;not null;index:idx_api_credentials_user_provider,unique" json:"user_id"`
	Provider  string    `gorm:"type:text;not null;index:idx_api_credentials_user_provider,unique" json:"provider"`
	Label     string    `gorm:"type:text" json:"label,omitempty"`
	Token     string    `gorm:"type:text;not null" json:"-"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName returns the database table name for Credential.
// Parameters: none.
// Returns:
//   - string: table name for GORM mapping.
func (Credential) TableName() string {
	return "api_credentials"
}

// MaskedToken returns the token with everything but the last four characters
// replaced, for display in credential listings.
func (c Credential) MaskedToken() string {
	if len(c.Token) <= 4 {
		return strings.Repeat("*", len(c.Token))
	}
	return strings.Repeat("*", len(c.Token)-4) + c.Token[len(c.Token)-4:]
}
