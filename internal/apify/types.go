package apify

import "encoding/json"

// Run identifies a remote actor run. DatasetID points at the default dataset
// the run writes its records to.
type Run struct {
	ID            string
	Status        string
	StatusMessage string
	DatasetID     string
}

// Actor run statuses as reported by the API. Anything else is treated as
// still in flight.
const (
	statusSucceeded = "SUCCEEDED"
	statusFailed    = "FAILED"
	statusTimedOut  = "TIMED-OUT"
	statusAborting  = "ABORTING"
	statusAborted   = "ABORTED"
)

// runEnvelope is the wire wrapper around run objects.
type runEnvelope struct {
	Data runData `json:"data"`
}

type runData struct {
	ID               string `json:"id"`
	Status           string `json:"status"`
	StatusMessage    string `json:"statusMessage"`
	DefaultDatasetID string `json:"defaultDatasetId"`
}

func (d runData) run() *Run {
	return &Run{
		ID:            d.ID,
		Status:        d.Status,
		StatusMessage: d.StatusMessage,
		DatasetID:     d.DefaultDatasetID,
	}
}

// errorEnvelope is the wire wrapper around API error responses.
type errorEnvelope struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// commentsInput is the actor input for a post comments run.
type commentsInput struct {
	PostURLs    []string `json:"postUrls"`
	MaxComments int      `json:"maxComments,omitempty"`
}

// profilesInput is the actor input for a profile details run.
type profilesInput struct {
	ProfileURLs []string `json:"profileUrls"`
}

// CommentActor identifies the author of a scraped comment.
type CommentActor struct {
	Name        string `json:"name"`
	LinkedInURL string `json:"linkedinUrl"`
	Position    string `json:"position"`
}

// CommentItem is the subset of a comments dataset record the service reads.
// Raw preserves the unmodified record for persistence and archival.
type CommentItem struct {
	PostURL    string          `json:"postUrl"`
	Commentary string          `json:"commentary"`
	CreatedAt  string          `json:"createdAt"`
	Actor      CommentActor    `json:"actor"`
	Raw        json.RawMessage `json:"-"`
}

// ProfileItem is the subset of a profiles dataset record the service reads.
// LinkedInURL is the record's own reported profile URL; after normalization
// it becomes the shared cache key. Raw preserves the unmodified record.
type ProfileItem struct {
	LinkedInURL string          `json:"linkedinUrl"`
	FullName    string          `json:"fullName"`
	Headline    string          `json:"headline"`
	Raw         json.RawMessage `json:"-"`
}

// DecodeComments parses raw dataset records into comment items, skipping
// records that are not JSON objects. Raw is kept verbatim on each item.
func DecodeComments(records []json.RawMessage) []CommentItem {
	out := make([]CommentItem, 0, len(records))
	for _, raw := range records {
		var item CommentItem
		if err := json.Unmarshal(raw, &item); err != nil {
			continue
		}
		item.Raw = raw
		out = append(out, item)
	}
	return out
}

// DecodeProfiles parses raw dataset records into profile items, skipping
// records that are not JSON objects. Raw is kept verbatim on each item.
func DecodeProfiles(records []json.RawMessage) []ProfileItem {
	out := make([]ProfileItem, 0, len(records))
	for _, raw := range records {
		var item ProfileItem
		if err := json.Unmarshal(raw, &item); err != nil {
			continue
		}
		item.Raw = raw
		out = append(out, item)
	}
	return out
}
