// Package normalize converts raw upstream payloads into the normalized
// shapes served to downstream consumers. All transforms are pure: they
// neither fetch nor cache.
package normalize

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	pkgerrs "github.com/snooproxy/pkg/errors"
	"github.com/snooproxy/pkg/types"
)

// MaxBodyRunes caps the selftext carried on normalized self posts.
const MaxBodyRunes = 2000

// thumbnailPlaceholders are upstream marker values that are not real URLs.
var thumbnailPlaceholders = map[string]struct{}{
	"":        {},
	"self":    {},
	"default": {},
	"nsfw":    {},
	"spoiler": {},
	"image":   {},
}

// Normalizer converts upstream Things into normalized domain values. It
// holds no state and is safe for concurrent use.
type Normalizer struct{}

// New creates a new Normalizer.
func New() *Normalizer {
	return &Normalizer{}
}

// Subreddit converts a t5 Thing into a normalized subreddit summary.
func (n *Normalizer) Subreddit(thing *types.Thing) (*types.Subreddit, error) {
	if thing == nil || thing.Kind != types.KindSubreddit {
		return nil, shapeErr("subreddit", fmt.Sprintf("expected %s Thing, got %s", types.KindSubreddit, kindOf(thing)))
	}

	var data types.SubredditData
	if err := json.Unmarshal(thing.Data, &data); err != nil {
		return nil, &pkgerrs.ParseError{Operation: "subreddit", Err: err}
	}

	description := data.PublicDescription
	if description == "" {
		description = data.Description
	}

	return &types.Subreddit{
		ID:          data.ID,
		Name:        data.DisplayName,
		Title:       data.Title,
		Description: Clean(description),
		Subscribers: data.Subscribers,
		CreatedAt:   epochTime(data.CreatedUTC),
		NSFW:        data.Over18,
		Type:        data.SubredditType,
		URL:         data.URL,
	}, nil
}

// Rules converts the rules endpoint payload into normalized rules.
func (n *Normalizer) Rules(raw json.RawMessage) ([]types.Rule, error) {
	var envelope types.RulesEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, &pkgerrs.ParseError{Operation: "rules", Err: err}
	}

	rules := make([]types.Rule, 0, len(envelope.Rules))
	for _, r := range envelope.Rules {
		rules = append(rules, types.Rule{
			Name:            r.ShortName,
			Description:     Clean(r.Description),
			Kind:            r.Kind,
			CreatedAt:       epochTime(r.CreatedUTC),
			Priority:        r.Priority,
			ViolationReason: r.ViolationReason,
		})
	}
	return rules, nil
}

// PostPage converts a Listing Thing into one page of normalized posts.
// Children of other kinds are dropped.
func (n *Normalizer) PostPage(thing *types.Thing) (*types.PostPage, error) {
	listing, err := n.listing(thing, "posts")
	if err != nil {
		return nil, err
	}

	page := &types.PostPage{
		Posts:          make([]types.Post, 0, len(listing.Children)),
		AfterFullname:  listing.AfterFullname,
		BeforeFullname: listing.BeforeFullname,
	}
	for _, child := range listing.Children {
		if child == nil || child.Kind != types.KindPost {
			continue
		}
		var data types.PostData
		if err := json.Unmarshal(child.Data, &data); err != nil {
			return nil, &pkgerrs.ParseError{Operation: "posts", Message: "malformed post child", Err: err}
		}
		page.Posts = append(page.Posts, n.Post(&data))
	}
	return page, nil
}

// Post converts raw post data into its normalized form.
func (n *Normalizer) Post(data *types.PostData) types.Post {
	post := types.Post{
		ID:          data.ID,
		Title:       data.Title,
		Author:      author(data.Author),
		Subreddit:   data.Subreddit,
		Score:       data.Score,
		NumComments: data.NumComments,
		CreatedAt:   epochTime(data.CreatedUTC),
		Permalink:   data.Permalink,
		Type:        classify(data),
		Thumbnail:   thumbnail(data.Thumbnail),
		NSFW:        data.Over18,
		Spoiler:     data.Spoiler,
		Stickied:    data.Stickied,
	}
	if data.LinkFlairText != nil {
		post.Flair = *data.LinkFlairText
	}

	switch post.Type {
	case types.PostTypeSelf:
		post.Body = truncateRunes(data.SelfText, MaxBodyRunes)
	case types.PostTypeGallery:
		post.GalleryURLs = galleryURLs(data)
	default:
		post.MediaURL = mediaURL(data)
	}
	return post
}

// Thread converts a comments endpoint response into a post with its comment
// tree. The upstream sends either a [post listing, comment listing] pair or
// a bare comment listing; both are handled.
func (n *Normalizer) Thread(things []*types.Thing) (*types.Thread, error) {
	if len(things) == 0 {
		return nil, shapeErr("comments", "empty response")
	}

	thread := &types.Thread{}
	commentsThing := things[0]
	if len(things) >= 2 {
		page, err := n.PostPage(things[0])
		if err != nil {
			return nil, err
		}
		if len(page.Posts) > 0 {
			post := page.Posts[0]
			thread.Post = &post
		}
		commentsThing = things[1]
	}

	nodes, err := n.CommentTree(commentsThing)
	if err != nil {
		return nil, err
	}
	thread.Comments = nodes

	tree := types.CommentTree(nodes)
	thread.CommentCount = tree.Count()
	thread.HiddenCount = tree.HiddenCount()
	return thread, nil
}

// CommentTree converts a Listing Thing into a normalized comment tree,
// preserving sibling order and reply nesting.
func (n *Normalizer) CommentTree(thing *types.Thing) ([]*types.CommentNode, error) {
	listing, err := n.listing(thing, "comments")
	if err != nil {
		return nil, err
	}
	return n.nodes(listing.Children, "comments")
}

// MoreChildren converts a morechildren envelope into comment nodes. The
// upstream returns the expanded comments as a flat list of Things.
func (n *Normalizer) MoreChildren(raw json.RawMessage) ([]*types.CommentNode, error) {
	var envelope types.MoreChildrenEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, &pkgerrs.ParseError{Operation: "morechildren", Err: err}
	}
	if len(envelope.JSON.Errors) > 0 {
		rendered, _ := json.Marshal(envelope.JSON.Errors)
		return nil, &pkgerrs.ParseError{
			Operation: "morechildren",
			Message:   "upstream reported errors: " + string(rendered),
		}
	}
	return n.nodes(envelope.JSON.Data.Things, "morechildren")
}

// nodes converts listing children into comment tree nodes. Comments and
// "more" placeholders keep their relative order; children of unknown kinds
// are dropped.
func (n *Normalizer) nodes(children []*types.Thing, op string) ([]*types.CommentNode, error) {
	nodes := make([]*types.CommentNode, 0, len(children))
	for _, child := range children {
		if child == nil {
			continue
		}
		switch child.Kind {
		case types.KindComment:
			comment, err := n.comment(child.Data, op)
			if err != nil {
				return nil, err
			}
			nodes = append(nodes, &types.CommentNode{Kind: types.NodeComment, Comment: comment})
		case types.KindMore:
			var more types.MoreData
			if err := json.Unmarshal(child.Data, &more); err != nil {
				return nil, &pkgerrs.ParseError{Operation: op, Message: "malformed more child", Err: err}
			}
			nodes = append(nodes, &types.CommentNode{Kind: types.NodeMore, More: &types.More{
				ID:       more.ID,
				Count:    more.Count,
				ParentID: more.ParentID,
				Children: more.Children,
			}})
		}
	}
	return nodes, nil
}

func (n *Normalizer) comment(raw json.RawMessage, op string) (*types.Comment, error) {
	var data types.CommentData
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, &pkgerrs.ParseError{Operation: op, Message: "malformed comment child", Err: err}
	}

	comment := &types.Comment{
		ID:          data.ID,
		Author:      author(data.Author),
		Body:        data.Body,
		Score:       data.Score,
		CreatedAt:   epochTime(data.CreatedUTC),
		IsSubmitter: data.IsSubmitter,
		Permalink:   data.Permalink,
		ParentID:    data.ParentID,
		Replies:     []*types.CommentNode{},
	}
	if data.Edited.IsEdited && data.Edited.Timestamp > 0 {
		t := epochTime(data.Edited.Timestamp)
		comment.EditedAt = &t
	}

	replies, err := n.replies(data.Replies, op)
	if err != nil {
		return nil, err
	}
	if len(replies) > 0 {
		comment.Replies = replies
	}
	return comment, nil
}

// replies resolves the mixed-type replies field: absent, "" and null mean no
// replies, anything else must be a nested Listing Thing.
func (n *Normalizer) replies(raw json.RawMessage, op string) ([]*types.CommentNode, error) {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == `""` || trimmed == "null" {
		return nil, nil
	}

	var thing types.Thing
	if err := json.Unmarshal(raw, &thing); err != nil {
		return nil, &pkgerrs.ParseError{Operation: op, Message: "malformed replies field", Err: err}
	}
	if thing.Kind != types.KindListing {
		return nil, nil
	}

	var listing types.ListingData
	if err := json.Unmarshal(thing.Data, &listing); err != nil {
		return nil, &pkgerrs.ParseError{Operation: op, Message: "malformed replies listing", Err: err}
	}
	return n.nodes(listing.Children, op)
}

func (n *Normalizer) listing(thing *types.Thing, op string) (*types.ListingData, error) {
	if thing == nil || thing.Kind != types.KindListing {
		return nil, shapeErr(op, fmt.Sprintf("expected Listing Thing, got %s", kindOf(thing)))
	}
	var listing types.ListingData
	if err := json.Unmarshal(thing.Data, &listing); err != nil {
		return nil, &pkgerrs.ParseError{Operation: op, Err: err}
	}
	return &listing, nil
}

// classify picks the post type. The checks are ordered so upstream flags win
// over the weaker post_hint field.
func classify(data *types.PostData) types.PostType {
	switch {
	case data.IsVideo:
		return types.PostTypeVideo
	case data.IsGallery:
		return types.PostTypeGallery
	case data.IsSelf:
		return types.PostTypeSelf
	case data.PostHint == "image":
		return types.PostTypeImage
	default:
		return types.PostTypeLink
	}
}

// mediaURL resolves the most direct asset URL for non-gallery posts. Video
// posts prefer the playable fallback stream over the permalink-style url.
func mediaURL(data *types.PostData) string {
	if data.IsVideo {
		if m := data.Media; m != nil && m.RedditVideo != nil && m.RedditVideo.FallbackURL != "" {
			return m.RedditVideo.FallbackURL
		}
		if m := data.SecureMedia; m != nil && m.RedditVideo != nil && m.RedditVideo.FallbackURL != "" {
			return m.RedditVideo.FallbackURL
		}
	}
	if data.URLOverridden != "" {
		return data.URLOverridden
	}
	return data.URL
}

// galleryURLs builds direct image URLs for gallery posts. Ordering follows
// gallery_data when present, otherwise sorted media IDs for determinism.
// Entries whose upload did not complete are skipped.
func galleryURLs(data *types.PostData) []string {
	if len(data.MediaMetadata) == 0 {
		return nil
	}

	ids := make([]string, 0, len(data.MediaMetadata))
	if data.GalleryData != nil && len(data.GalleryData.Items) > 0 {
		for _, item := range data.GalleryData.Items {
			ids = append(ids, item.MediaID)
		}
	} else {
		for id := range data.MediaMetadata {
			ids = append(ids, id)
		}
		sort.Strings(ids)
	}

	urls := make([]string, 0, len(ids))
	for _, id := range ids {
		meta, ok := data.MediaMetadata[id]
		if !ok || meta.Status != "valid" {
			continue
		}
		urls = append(urls, fmt.Sprintf("https://i.redd.it/%s.%s", id, imageExt(meta.M)))
	}
	return urls
}

// imageExt derives a file extension from a MIME type like "image/png".
func imageExt(mimeType string) string {
	if _, ext, ok := strings.Cut(mimeType, "/"); ok && ext != "" {
		return ext
	}
	return "jpg"
}

func author(name string) string {
	if name == "" {
		return types.DeletedAuthor
	}
	return name
}

func thumbnail(value string) string {
	if _, ok := thumbnailPlaceholders[value]; ok {
		return ""
	}
	return value
}

func epochTime(sec float64) time.Time {
	if sec <= 0 {
		return time.Time{}
	}
	return time.Unix(int64(sec), 0).UTC()
}

func truncateRunes(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}

func kindOf(thing *types.Thing) string {
	switch {
	case thing == nil:
		return "<nil>"
	case thing.Kind == "":
		return "<empty>"
	default:
		return thing.Kind
	}
}

func shapeErr(op, msg string) error {
	return &pkgerrs.ParseError{Operation: op, Message: msg}
}
