package types

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Kind values used by the upstream API to tag Thing envelopes.
const (
	KindListing   = "Listing"
	KindComment   = "t1"
	KindPost      = "t3"
	KindSubreddit = "t5"
	KindMore      = "more"
)

// Thing is the envelope the upstream wraps every object in: a kind tag and a
// raw payload whose shape depends on the kind.
type Thing struct {
	Kind string          `json:"kind"`
	Data json.RawMessage `json:"data"`
}

// ListingData contains one page of Things together with pagination cursors.
type ListingData struct {
	BeforeFullname string   `json:"before"` // fullname for backward pagination
	AfterFullname  string   `json:"after"`  // fullname for forward pagination
	Children       []*Thing `json:"children"`
}

// Edited represents the upstream "edited" field, which can be a boolean or a
// timestamp. If IsEdited is true and Timestamp is 0, the edit predates
// upstream's timestamp tracking. If IsEdited is false, the item was not
// edited.
type Edited struct {
	IsEdited  bool
	Timestamp float64
}

// UnmarshalJSON implements json.Unmarshaler to handle mixed types for the "edited" field.
func (e *Edited) UnmarshalJSON(data []byte) error {
	switch strings.ToLower(string(data)) {
	case "false", "null":
		e.IsEdited = false
		e.Timestamp = 0
		return nil
	case "true":
		e.IsEdited = true
		e.Timestamp = 0
		return nil
	}

	var timestamp float64
	if err := json.Unmarshal(data, &timestamp); err == nil {
		e.IsEdited = true
		e.Timestamp = timestamp
		return nil
	}

	return fmt.Errorf("unrecognized type for 'edited' field: %s", data)
}

// SubredditData contains the raw payload of a t5 Thing.
type SubredditData struct {
	ID                string  `json:"id"`
	DisplayName       string  `json:"display_name"`
	Title             string  `json:"title"`
	Description       string  `json:"description"`
	PublicDescription string  `json:"public_description"`
	Subscribers       int64   `json:"subscribers"`
	CreatedUTC        float64 `json:"created_utc"`
	Over18            bool    `json:"over18"`
	SubredditType     string  `json:"subreddit_type"`
	URL               string  `json:"url"`
}

// RuleData contains one entry of the subreddit rules endpoint.
type RuleData struct {
	ShortName       string  `json:"short_name"`
	Description     string  `json:"description"`
	Kind            string  `json:"kind"`
	CreatedUTC      float64 `json:"created_utc"`
	Priority        int     `json:"priority"`
	ViolationReason string  `json:"violation_reason"`
}

// RulesEnvelope is the response of the rules endpoint, which is a bare object
// rather than a Thing.
type RulesEnvelope struct {
	Rules []RuleData `json:"rules"`
}

// RedditVideo describes an upstream-hosted video.
type RedditVideo struct {
	FallbackURL string `json:"fallback_url"`
	Duration    int    `json:"duration"`
	IsGIF       bool   `json:"is_gif"`
}

// Media is the secure_media/media object attached to video posts.
type Media struct {
	RedditVideo *RedditVideo `json:"reddit_video"`
}

// MediaMetadataItem describes one uploaded asset of a gallery post. M carries
// the MIME type, e.g. "image/png".
type MediaMetadataItem struct {
	Status string `json:"status"`
	E      string `json:"e"`
	M      string `json:"m"`
}

// GalleryItem references one asset of a gallery in display order.
type GalleryItem struct {
	MediaID string `json:"media_id"`
	ID      int    `json:"id"`
}

// GalleryData preserves the author-chosen ordering of gallery assets.
type GalleryData struct {
	Items []GalleryItem `json:"items"`
}

// PostData contains the raw payload of a t3 Thing.
type PostData struct {
	ID            string  `json:"id"`
	Name          string  `json:"name"`
	Title         string  `json:"title"`
	Author        string  `json:"author"`
	Subreddit     string  `json:"subreddit"`
	Score         int     `json:"score"`
	NumComments   int     `json:"num_comments"`
	CreatedUTC    float64 `json:"created_utc"`
	Permalink     string  `json:"permalink"`
	SelfText      string  `json:"selftext"`
	IsSelf        bool    `json:"is_self"`
	IsVideo       bool    `json:"is_video"`
	IsGallery     bool    `json:"is_gallery"`
	PostHint      string  `json:"post_hint"`
	Over18        bool    `json:"over_18"`
	Spoiler       bool    `json:"spoiler"`
	Stickied      bool    `json:"stickied"`
	LinkFlairText *string `json:"link_flair_text"`
	Thumbnail     string  `json:"thumbnail"`
	URL           string  `json:"url"`
	URLOverridden string  `json:"url_overridden_by_dest"`

	Media         *Media                       `json:"media"`
	SecureMedia   *Media                       `json:"secure_media"`
	MediaMetadata map[string]MediaMetadataItem `json:"media_metadata"`
	GalleryData   *GalleryData                 `json:"gallery_data"`
}

// CommentData contains the raw payload of a t1 Thing. Replies holds either an
// empty string or a nested Listing Thing; the normalizer resolves it.
type CommentData struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Author      string          `json:"author"`
	Body        string          `json:"body"`
	Score       int             `json:"score"`
	CreatedUTC  float64         `json:"created_utc"`
	Edited      Edited          `json:"edited"`
	IsSubmitter bool            `json:"is_submitter"`
	Permalink   string          `json:"permalink"`
	ParentID    string          `json:"parent_id"`
	Replies     json.RawMessage `json:"replies"`
}

// MoreData contains the raw payload of a "more" Thing: identifiers of
// comments the upstream left out of the tree.
type MoreData struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Count    int      `json:"count"`
	ParentID string   `json:"parent_id"`
	Children []string `json:"children"`
}

// MoreChildrenEnvelope is the response of the morechildren endpoint when
// called with api_type=json.
type MoreChildrenEnvelope struct {
	JSON struct {
		Errors [][]json.RawMessage `json:"errors"`
		Data   struct {
			Things []*Thing `json:"things"`
		} `json:"data"`
	} `json:"json"`
}
