package domain

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"
)

// JSONText is a custom type for storing raw JSON documents as text in the database.
type JSONText json.RawMessage

// Value implements the driver.Valuer interface for database serialization.
// Parameters: none.
// Returns:
//   - driver.Value: the document as a string, "{}" when empty.
//   - error: always nil.
func (j JSONText) Value() (driver.Value, error) {
	if len(j) == 0 {
		return "{}", nil
	}
	return string(j), nil
}

// Scan implements the sql.Scanner interface for database deserialization.
// Parameters:
//   - value: raw database value to decode.
// Returns:
//   - error: non-nil if the type is unexpected.
func (j *JSONText) Scan(value interface{}) error {
	if value == nil {
		*j = JSONText("{}")
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		str, ok := value.(string)
		if !ok {
			return errors.New("failed to scan JSONText")
		}
		bytes = []byte(str)
	}
	*j = JSONText(append([]byte(nil), bytes...))
	return nil
}

// MarshalJSON writes the stored document verbatim.
func (j JSONText) MarshalJSON() ([]byte, error) {
	if len(j) == 0 {
		return []byte("null"), nil
	}
	return j, nil
}

// UnmarshalJSON keeps the incoming document verbatim.
func (j *JSONText) UnmarshalJSON(data []byte) error {
	*j = JSONText(append([]byte(nil), data...))
	return nil
}

// Profile represents a scraped LinkedIn profile in the shared cache.
// Rows are keyed by canonical URL and shared across users; re-scrapes
// overwrite the payload in place. Rows are never deleted automatically.
type Profile struct {
	ID        string    `gorm:"type:text;primaryKey" json:"id"`
	URL       string    `gorm:"type:text;not null;uniqueIndex:idx_profiles_url" json:"url"`
	FullName  string    `gorm:"type:text" json:"full_name,omitempty"`
	Headline  string    `gorm:"type:text" json:"headline,omitempty"`
	Payload   JSONText  `gorm:"type:text" json:"payload"`
	ScrapedAt time.Time `json:"scraped_at"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName returns the database table name for Profile.
// Parameters: none.
// Returns:
//   - string: table name for GORM mapping.
func (Profile) TableName() string {
	return "profiles"
}

// ProfileLink ties a cached profile to a user that requested it.
// The profile payload stays shared; visibility is per user.
type ProfileLink struct {
	ID        string    `gorm:"type:text;primaryKey" json:"id"`
	UserID    string    `gorm:"type:text;not null;index:idx_profile_links_user_profile,unique" json:"user_id"`
	ProfileID string    `gorm:"type:text;not null;index:idx_profile_links_user_profile,unique" json:"profile_id"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName returns the database table name for ProfileLink.
// Parameters: none.
// Returns:
//   - string: table name for GORM mapping.
func (ProfileLink) TableName() string {
	return "profile_links"
}
