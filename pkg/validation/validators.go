// Package validation checks caller-supplied parameters before they reach the
// upstream API. All validators return *errors.ConfigError so callers can map
// failures to bad-request responses without string matching.
package validation

import (
	"fmt"
	"regexp"
	"strings"

	pkgerrs "github.com/snooproxy/pkg/errors"
)

const (
	minSubredditLength = 3
	maxSubredditLength = 21

	// MaxListingLimit is the upstream cap on items per listing page.
	MaxListingLimit = 100

	// MaxCommentIDs is the upstream cap on IDs per morechildren call.
	MaxCommentIDs = 100

	// MaxCommentDepth is the deepest reply nesting the upstream renders.
	// Requests above it are clamped rather than rejected.
	MaxCommentDepth = 10

	maxIDLength        = 100
	maxUserAgentLength = 256
)

// fullnamePattern matches upstream fullnames such as "t3_abc123".
var fullnamePattern = regexp.MustCompile(`^t[1-6]_[0-9a-z]+$`)

// postSorts are the listing orderings accepted by Posts requests.
var postSorts = map[string]struct{}{
	"hot":    {},
	"new":    {},
	"top":    {},
	"rising": {},
}

// commentSorts are the orderings accepted by Comments requests.
var commentSorts = map[string]struct{}{
	"confidence":    {},
	"top":           {},
	"new":           {},
	"controversial": {},
	"old":           {},
	"qa":            {},
}

// timeRanges narrow "top" listings.
var timeRanges = map[string]struct{}{
	"hour":  {},
	"day":   {},
	"week":  {},
	"month": {},
	"year":  {},
	"all":   {},
}

// SubredditName checks a community name against the upstream naming rules:
// 3-21 characters, letters, digits and underscores, with no leading,
// trailing or doubled underscore.
func SubredditName(name string) error {
	if name == "" {
		return &pkgerrs.ConfigError{Field: "subreddit", Message: "subreddit name cannot be empty"}
	}
	if len(name) < minSubredditLength {
		return &pkgerrs.ConfigError{Field: "subreddit", Message: fmt.Sprintf("subreddit name must be at least %d characters", minSubredditLength)}
	}
	if len(name) > maxSubredditLength {
		return &pkgerrs.ConfigError{Field: "subreddit", Message: fmt.Sprintf("subreddit name cannot exceed %d characters", maxSubredditLength)}
	}
	if name[0] == '_' || name[len(name)-1] == '_' {
		return &pkgerrs.ConfigError{Field: "subreddit", Message: "subreddit name cannot start or end with underscore"}
	}

	prevWasUnderscore := false
	for i, ch := range name {
		if !(ch >= 'a' && ch <= 'z') && !(ch >= 'A' && ch <= 'Z') && !(ch >= '0' && ch <= '9') && ch != '_' {
			return &pkgerrs.ConfigError{Field: "subreddit", Message: fmt.Sprintf("subreddit name contains invalid character '%c' at position %d", ch, i)}
		}
		if ch == '_' {
			if prevWasUnderscore {
				return &pkgerrs.ConfigError{Field: "subreddit", Message: "subreddit name cannot contain consecutive underscores"}
			}
			prevWasUnderscore = true
		} else {
			prevWasUnderscore = false
		}
	}
	return nil
}

// PostID checks a bare base36 post identifier.
func PostID(id string) error {
	if err := validateID36(id); err != nil {
		return &pkgerrs.ConfigError{Field: "post_id", Message: err.Error()}
	}
	return nil
}

// PostSort checks the ordering of a posts listing request.
func PostSort(sort string) error {
	if _, ok := postSorts[sort]; !ok {
		return &pkgerrs.ConfigError{Field: "sort", Message: fmt.Sprintf("unsupported post sort %q", sort)}
	}
	return nil
}

// CommentSort checks the ordering of a comments request. Empty means the
// upstream default and is accepted.
func CommentSort(sort string) error {
	if sort == "" {
		return nil
	}
	if _, ok := commentSorts[sort]; !ok {
		return &pkgerrs.ConfigError{Field: "sort", Message: fmt.Sprintf("unsupported comment sort %q", sort)}
	}
	return nil
}

// TimeRange checks the window parameter of "top" listings. Empty means the
// upstream default and is accepted.
func TimeRange(window string) error {
	if window == "" {
		return nil
	}
	if _, ok := timeRanges[window]; !ok {
		return &pkgerrs.ConfigError{Field: "t", Message: fmt.Sprintf("unsupported time range %q", window)}
	}
	return nil
}

// Listing checks pagination parameters: the limit range and that at most one
// cursor is set. Cursors must be well-formed fullnames.
func Listing(limit int, after, before string) error {
	if after != "" && before != "" {
		return &pkgerrs.ConfigError{Field: "pagination", Message: "cannot set both after and before"}
	}
	if limit < 0 {
		return &pkgerrs.ConfigError{Field: "limit", Message: "limit cannot be negative"}
	}
	if limit > MaxListingLimit {
		return &pkgerrs.ConfigError{Field: "limit", Message: fmt.Sprintf("limit cannot exceed %d", MaxListingLimit)}
	}
	if after != "" && !IsFullname(after) {
		return &pkgerrs.ConfigError{Field: "after", Message: fmt.Sprintf("malformed fullname cursor %q", after)}
	}
	if before != "" && !IsFullname(before) {
		return &pkgerrs.ConfigError{Field: "before", Message: fmt.Sprintf("malformed fullname cursor %q", before)}
	}
	return nil
}

// Depth checks a comment depth parameter. Negative depths are rejected;
// clamping of large values happens at the call site.
func Depth(depth int) error {
	if depth < 0 {
		return &pkgerrs.ConfigError{Field: "depth", Message: "depth cannot be negative"}
	}
	return nil
}

// CommentIDs checks the identifier list of a morechildren request.
func CommentIDs(ids []string) error {
	if len(ids) == 0 {
		return &pkgerrs.ConfigError{Field: "comment_ids", Message: "at least one comment ID is required"}
	}
	if len(ids) > MaxCommentIDs {
		return &pkgerrs.ConfigError{Field: "comment_ids", Message: fmt.Sprintf("cannot request more than %d comment IDs at once (got %d)", MaxCommentIDs, len(ids))}
	}
	for i, id := range ids {
		if err := validateID36(id); err != nil {
			return &pkgerrs.ConfigError{
				Field:   fmt.Sprintf("comment_ids[%d]", i),
				Message: fmt.Sprintf("invalid comment ID at index %d: %v", i, err),
			}
		}
	}
	return nil
}

// LinkID checks the post reference of a morechildren request. Both bare IDs
// and t3_-prefixed fullnames are accepted.
func LinkID(id string) error {
	if id == "" {
		return &pkgerrs.ConfigError{Field: "link_id", Message: "link ID cannot be empty"}
	}
	bare := strings.TrimPrefix(id, "t3_")
	if err := validateID36(bare); err != nil {
		return &pkgerrs.ConfigError{Field: "link_id", Message: err.Error()}
	}
	return nil
}

// UserAgent checks the identifying header sent upstream. Newlines are
// rejected to prevent header injection.
func UserAgent(ua string) error {
	if len(ua) == 0 {
		return &pkgerrs.ConfigError{Field: "user_agent", Message: "user agent cannot be empty"}
	}
	if strings.ContainsAny(ua, "\r\n") {
		return &pkgerrs.ConfigError{Field: "user_agent", Message: "user agent cannot contain newline characters"}
	}
	if len(ua) > maxUserAgentLength {
		return &pkgerrs.ConfigError{Field: "user_agent", Message: fmt.Sprintf("user agent too long (max %d characters)", maxUserAgentLength)}
	}
	return nil
}

// IsFullname reports whether s is a well-formed upstream fullname like
// "t3_abc123".
func IsFullname(s string) bool {
	return fullnamePattern.MatchString(s)
}

func validateID36(id string) error {
	if len(id) == 0 {
		return fmt.Errorf("ID cannot be empty")
	}
	if len(id) > maxIDLength {
		return fmt.Errorf("ID too long (max %d characters)", maxIDLength)
	}
	for _, char := range id {
		if !((char >= '0' && char <= '9') ||
			(char >= 'a' && char <= 'z') ||
			(char >= 'A' && char <= 'Z')) {
			return fmt.Errorf("ID contains invalid character: %c (only alphanumeric allowed)", char)
		}
	}
	return nil
}
