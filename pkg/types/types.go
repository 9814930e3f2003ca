// Package types defines the wire shapes received from the upstream API and
// the normalized shapes served to downstream consumers. Wire types mirror the
// upstream JSON field-for-field; normalized types are the stable contract of
// this module and carry no upstream envelope noise.
package types

import "time"

// DeletedAuthor is substituted for missing author names so downstream
// consumers never see an empty author.
const DeletedAuthor = "[deleted]"

// PostType classifies how a post should be rendered.
type PostType string

const (
	PostTypeSelf    PostType = "self"
	PostTypeLink    PostType = "link"
	PostTypeImage   PostType = "image"
	PostTypeVideo   PostType = "video"
	PostTypeGallery PostType = "gallery"
)

// Node kinds used in normalized comment trees.
const (
	NodeComment = "comment"
	NodeMore    = "more"
)

// Subreddit is the normalized summary of a community.
type Subreddit struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Subscribers int64     `json:"subscribers"`
	CreatedAt   time.Time `json:"created_at"`
	NSFW        bool      `json:"nsfw"`
	Type        string    `json:"type"`
	URL         string    `json:"url"`
}

// Rule is one normalized subreddit rule.
type Rule struct {
	Name            string    `json:"name"`
	Description     string    `json:"description"`
	Kind            string    `json:"kind"`
	CreatedAt       time.Time `json:"created_at"`
	Priority        int       `json:"priority"`
	ViolationReason string    `json:"violation_reason,omitempty"`
}

// Post is the normalized representation of a submission.
type Post struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Author      string    `json:"author"`
	Subreddit   string    `json:"subreddit"`
	Score       int       `json:"score"`
	NumComments int       `json:"num_comments"`
	CreatedAt   time.Time `json:"created_at"`
	Permalink   string    `json:"permalink"`
	Type        PostType  `json:"type"`

	// Body carries the (possibly truncated) selftext of self posts and is
	// empty for every other type.
	Body string `json:"body,omitempty"`

	// MediaURL points at the playable or viewable asset for video, image
	// and link posts, when one could be resolved.
	MediaURL string `json:"media_url,omitempty"`

	// GalleryURLs lists the direct image URLs of a gallery post in the
	// author-chosen order. Only set for gallery posts.
	GalleryURLs []string `json:"gallery_urls,omitempty"`

	// Thumbnail is a direct preview URL. Upstream placeholder markers are
	// suppressed rather than passed through.
	Thumbnail string `json:"thumbnail,omitempty"`

	Flair    string `json:"flair,omitempty"`
	NSFW     bool   `json:"nsfw"`
	Spoiler  bool   `json:"spoiler"`
	Stickied bool   `json:"stickied"`
}

// Comment is a normalized comment together with its nested replies.
type Comment struct {
	ID          string         `json:"id"`
	Author      string         `json:"author"`
	Body        string         `json:"body"`
	Score       int            `json:"score"`
	CreatedAt   time.Time      `json:"created_at"`
	EditedAt    *time.Time     `json:"edited_at,omitempty"`
	IsSubmitter bool           `json:"is_submitter"`
	Permalink   string         `json:"permalink"`
	ParentID    string         `json:"parent_id"`
	Replies     []*CommentNode `json:"replies"`
}

// More marks a point in a comment tree where the upstream elided descendants.
// Children holds the comment IDs that can be fetched with MoreChildren.
type More struct {
	ID       string   `json:"id"`
	Count    int      `json:"count"`
	ParentID string   `json:"parent_id"`
	Children []string `json:"children"`
}

// CommentNode is one entry of a comment tree. Exactly one of Comment or More
// is set, indicated by Kind.
type CommentNode struct {
	Kind    string   `json:"kind"`
	Comment *Comment `json:"comment,omitempty"`
	More    *More    `json:"more,omitempty"`
}

// PostPage is one page of a subreddit listing with its continuation cursors.
type PostPage struct {
	Posts          []Post `json:"posts"`
	AfterFullname  string `json:"after,omitempty"`
	BeforeFullname string `json:"before,omitempty"`
}

// Thread is a post together with its normalized comment tree. Post may be nil
// when the upstream response carried only comments.
type Thread struct {
	Post *Post `json:"post,omitempty"`

	Comments []*CommentNode `json:"comments"`

	// CommentCount is the number of comments actually present in the tree.
	CommentCount int `json:"comment_count"`

	// HiddenCount sums the descendants advertised by "more" placeholders.
	HiddenCount int `json:"hidden_count"`
}

// PostsQuery describes a request for a page of subreddit posts.
type PostsQuery struct {
	Subreddit string

	// Sort selects the listing: "hot", "new", "top" or "rising".
	Sort string

	// TimeRange narrows "top" listings: "hour", "day", "week", "month",
	// "year" or "all". Ignored for other sorts.
	TimeRange string

	// Limit specifies the number of posts to retrieve. The upstream caps
	// this at 100 and applies its own default when 0.
	Limit int

	// After and Before are fullname cursors from a previous page. At most
	// one may be set.
	After  string
	Before string
}

// CommentsQuery describes a request for a post with its comment tree.
type CommentsQuery struct {
	Subreddit string
	PostID    string

	// Sort selects the comment ordering: "confidence", "top", "new",
	// "controversial", "old" or "qa". Empty uses the upstream default.
	Sort string

	// Limit caps the number of comments returned. 0 uses the upstream
	// default.
	Limit int

	// Depth caps the nesting level of returned replies. 0 uses the
	// upstream default; values above the supported maximum are clamped.
	Depth int
}

// MoreChildrenQuery describes a request to expand a "more" placeholder.
type MoreChildrenQuery struct {
	// LinkID identifies the post the comments belong to, with or without
	// the t3_ prefix.
	LinkID string

	// CommentIDs are the bare comment IDs taken from More.Children.
	CommentIDs []string

	// Sort, Depth and Limit mirror the fields of CommentsQuery.
	Sort  string
	Depth int
	Limit int
}
