package domain

import "time"

// Comment represents one raw comment record captured by a post scrape.
// Comments are job-scoped output, not cached: a re-run of the same post
// produces fresh rows under the new job.
type Comment struct {
	ID               string    `gorm:"type:text;primaryKey" json:"id"`
	JobID            string    `gorm:"type:text;not null;index:idx_comments_job" json:"job_id"`
	PostURL          string    `gorm:"type:text" json:"post_url"`
	AuthorName       string    `gorm:"type:text" json:"author_name,omitempty"`
	AuthorProfileURL string    `gorm:"type:text" json:"author_profile_url,omitempty"`
	Commentary       string    `gorm:"type:text" json:"commentary,omitempty"`
	Payload          JSONText  `gorm:"type:text" json:"payload"`
	CreatedAt        time.Time `json:"created_at"`
}

// TableName returns the database table name for Comment.
// Parameters: none.
// Returns:
//   - string: table name for GORM mapping.
func (Comment) TableName() string {
	return "comments"
}
