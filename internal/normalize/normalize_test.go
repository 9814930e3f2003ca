package normalize

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"testing"

	pkgerrs "github.com/snooproxy/pkg/errors"
	"github.com/snooproxy/pkg/types"
)

func mustThing(t *testing.T, raw string) *types.Thing {
	t.Helper()
	var thing types.Thing
	if err := json.Unmarshal([]byte(raw), &thing); err != nil {
		t.Fatalf("bad fixture: %v", err)
	}
	return &thing
}

func TestSubreddit(t *testing.T) {
	thing := mustThing(t, `{"kind": "t5", "data": {
		"id": "2qh1i",
		"display_name": "golang",
		"title": "The Go Programming Language",
		"public_description": "**Gophers** welcome, see [the wiki](https://example.com)",
		"subscribers": 250000,
		"created_utc": 1232850357,
		"over18": false,
		"subreddit_type": "public",
		"url": "/r/golang/"
	}}`)

	sub, err := New().Subreddit(thing)
	if err != nil {
		t.Fatalf("Subreddit failed: %v", err)
	}

	if sub.Name != "golang" {
		t.Errorf("Name = %q, want %q", sub.Name, "golang")
	}
	if sub.Description != "Gophers welcome, see the wiki" {
		t.Errorf("Description = %q, want cleaned text", sub.Description)
	}
	if sub.Subscribers != 250000 {
		t.Errorf("Subscribers = %d, want 250000", sub.Subscribers)
	}
	if sub.CreatedAt.IsZero() {
		t.Error("CreatedAt should be set")
	}
	if sub.NSFW {
		t.Error("NSFW = true, want false")
	}
}

func TestSubreddit_WrongKind(t *testing.T) {
	_, err := New().Subreddit(mustThing(t, `{"kind": "t3", "data": {}}`))

	var parseErr *pkgerrs.ParseError
	if !errors.As(err, &parseErr) {
		t.Fatalf("error = %v, want *ParseError", err)
	}
	if parseErr.Operation != "subreddit" {
		t.Errorf("Operation = %q, want %q", parseErr.Operation, "subreddit")
	}
}

func TestSubreddit_Nil(t *testing.T) {
	var parseErr *pkgerrs.ParseError
	if _, err := New().Subreddit(nil); !errors.As(err, &parseErr) {
		t.Fatalf("error = %v, want *ParseError", err)
	}
}

func TestRules(t *testing.T) {
	raw := json.RawMessage(`{"rules": [
		{"short_name": "Be civil", "description": "No *personal* attacks", "kind": "comment", "created_utc": 1600000000, "priority": 0, "violation_reason": "Incivility"},
		{"short_name": "On topic", "description": "", "kind": "all", "created_utc": 1600000001, "priority": 1}
	]}`)

	rules, err := New().Rules(raw)
	if err != nil {
		t.Fatalf("Rules failed: %v", err)
	}
	if len(rules) != 2 {
		t.Fatalf("len = %d, want 2", len(rules))
	}
	if rules[0].Name != "Be civil" {
		t.Errorf("Name = %q, want %q", rules[0].Name, "Be civil")
	}
	if rules[0].Description != "No personal attacks" {
		t.Errorf("Description = %q, want cleaned text", rules[0].Description)
	}
	if rules[1].Priority != 1 {
		t.Errorf("Priority = %d, want 1", rules[1].Priority)
	}
}

func TestRules_Malformed(t *testing.T) {
	var parseErr *pkgerrs.ParseError
	if _, err := New().Rules(json.RawMessage(`[1, 2, 3]`)); !errors.As(err, &parseErr) {
		t.Fatalf("error = %v, want *ParseError", err)
	}
}

func TestPostPage(t *testing.T) {
	thing := mustThing(t, `{"kind": "Listing", "data": {
		"after": "t3_next",
		"children": [
			{"kind": "t3", "data": {"id": "p1", "title": "first", "author": "alice", "url": "https://example.com/1"}},
			{"kind": "t5", "data": {"id": "ignored"}},
			{"kind": "t3", "data": {"id": "p2", "title": "second", "author": "bob", "url": "https://example.com/2"}}
		]
	}}`)

	page, err := New().PostPage(thing)
	if err != nil {
		t.Fatalf("PostPage failed: %v", err)
	}

	if len(page.Posts) != 2 {
		t.Fatalf("len(Posts) = %d, want 2 (non-post children skipped)", len(page.Posts))
	}
	if page.Posts[0].ID != "p1" || page.Posts[1].ID != "p2" {
		t.Errorf("IDs = %s, %s; want p1, p2", page.Posts[0].ID, page.Posts[1].ID)
	}
	if page.AfterFullname != "t3_next" {
		t.Errorf("AfterFullname = %q, want %q", page.AfterFullname, "t3_next")
	}
}

func TestPostPage_WrongKind(t *testing.T) {
	var parseErr *pkgerrs.ParseError
	if _, err := New().PostPage(mustThing(t, `{"kind": "t1", "data": {}}`)); !errors.As(err, &parseErr) {
		t.Fatalf("error = %v, want *ParseError", err)
	}
}

func TestPost_Classification(t *testing.T) {
	tests := []struct {
		name string
		data types.PostData
		want types.PostType
	}{
		{name: "video flag wins", data: types.PostData{IsVideo: true, IsGallery: true, IsSelf: true}, want: types.PostTypeVideo},
		{name: "gallery before self", data: types.PostData{IsGallery: true, IsSelf: true}, want: types.PostTypeGallery},
		{name: "self before hint", data: types.PostData{IsSelf: true, PostHint: "image"}, want: types.PostTypeSelf},
		{name: "image hint", data: types.PostData{PostHint: "image"}, want: types.PostTypeImage},
		{name: "default link", data: types.PostData{}, want: types.PostTypeLink},
		{name: "other hints fall through", data: types.PostData{PostHint: "rich:video"}, want: types.PostTypeLink},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			post := New().Post(&tt.data)
			if post.Type != tt.want {
				t.Errorf("Type = %q, want %q", post.Type, tt.want)
			}
		})
	}
}

func TestPost_MediaURL(t *testing.T) {
	tests := []struct {
		name string
		data types.PostData
		want string
	}{
		{
			name: "video prefers fallback stream",
			data: types.PostData{
				IsVideo: true,
				URL:     "https://v.redd.it/xyz",
				Media:   &types.Media{RedditVideo: &types.RedditVideo{FallbackURL: "https://v.redd.it/xyz/DASH_720.mp4"}},
			},
			want: "https://v.redd.it/xyz/DASH_720.mp4",
		},
		{
			name: "video falls back to secure media",
			data: types.PostData{
				IsVideo:     true,
				URL:         "https://v.redd.it/xyz",
				SecureMedia: &types.Media{RedditVideo: &types.RedditVideo{FallbackURL: "https://v.redd.it/xyz/DASH_480.mp4"}},
			},
			want: "https://v.redd.it/xyz/DASH_480.mp4",
		},
		{
			name: "destination override preferred",
			data: types.PostData{URL: "https://reddit.example/post", URLOverridden: "https://blog.example/article"},
			want: "https://blog.example/article",
		},
		{
			name: "own url as last resort",
			data: types.PostData{URL: "https://example.com/page"},
			want: "https://example.com/page",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			post := New().Post(&tt.data)
			if post.MediaURL != tt.want {
				t.Errorf("MediaURL = %q, want %q", post.MediaURL, tt.want)
			}
		})
	}
}

func TestPost_GalleryURLs(t *testing.T) {
	data := types.PostData{
		IsGallery: true,
		MediaMetadata: map[string]types.MediaMetadataItem{
			"img1": {Status: "valid", M: "image/png"},
			"img2": {Status: "failed", M: "image/jpg"},
			"img3": {Status: "valid"},
		},
		GalleryData: &types.GalleryData{Items: []types.GalleryItem{
			{MediaID: "img3"},
			{MediaID: "img1"},
			{MediaID: "img2"},
		}},
	}

	post := New().Post(&data)

	want := []string{
		"https://i.redd.it/img3.jpg",
		"https://i.redd.it/img1.png",
	}
	if !reflect.DeepEqual(post.GalleryURLs, want) {
		t.Errorf("GalleryURLs = %v, want %v (invalid entry skipped, gallery order kept)", post.GalleryURLs, want)
	}
	if post.MediaURL != "" {
		t.Errorf("MediaURL = %q, want empty for gallery posts", post.MediaURL)
	}
}

func TestPost_GalleryWithoutOrdering(t *testing.T) {
	data := types.PostData{
		IsGallery: true,
		MediaMetadata: map[string]types.MediaMetadataItem{
			"bbb": {Status: "valid", M: "image/gif"},
			"aaa": {Status: "valid", M: "image/png"},
		},
	}

	post := New().Post(&data)

	want := []string{
		"https://i.redd.it/aaa.png",
		"https://i.redd.it/bbb.gif",
	}
	if !reflect.DeepEqual(post.GalleryURLs, want) {
		t.Errorf("GalleryURLs = %v, want %v (sorted when gallery_data missing)", post.GalleryURLs, want)
	}
}

func TestPost_BodyTruncation(t *testing.T) {
	long := strings.Repeat("é", MaxBodyRunes+500)
	post := New().Post(&types.PostData{IsSelf: true, SelfText: long})

	if got := len([]rune(post.Body)); got != MaxBodyRunes {
		t.Errorf("body rune length = %d, want %d", got, MaxBodyRunes)
	}

	short := New().Post(&types.PostData{IsSelf: true, SelfText: "short body"})
	if short.Body != "short body" {
		t.Errorf("Body = %q, want untouched short body", short.Body)
	}

	link := New().Post(&types.PostData{SelfText: "should not appear", URL: "https://example.com"})
	if link.Body != "" {
		t.Errorf("Body = %q, want empty for non-self posts", link.Body)
	}
}

func TestPost_DeletedAuthor(t *testing.T) {
	post := New().Post(&types.PostData{})
	if post.Author != types.DeletedAuthor {
		t.Errorf("Author = %q, want %q", post.Author, types.DeletedAuthor)
	}
}

func TestPost_ThumbnailPlaceholders(t *testing.T) {
	for _, placeholder := range []string{"", "self", "default", "nsfw", "spoiler", "image"} {
		post := New().Post(&types.PostData{Thumbnail: placeholder})
		if post.Thumbnail != "" {
			t.Errorf("Thumbnail(%q) = %q, want suppressed", placeholder, post.Thumbnail)
		}
	}

	post := New().Post(&types.PostData{Thumbnail: "https://b.thumbs.example/abc.jpg"})
	if post.Thumbnail != "https://b.thumbs.example/abc.jpg" {
		t.Errorf("Thumbnail = %q, want real URL passed through", post.Thumbnail)
	}
}

// commentListing is a comment with two nested replies plus a sibling "more"
// placeholder, the canonical shape of a partially loaded thread.
const commentListing = `{"kind": "Listing", "data": {"children": [
	{"kind": "t1", "data": {
		"id": "c1", "author": "alice", "body": "parent", "score": 10,
		"created_utc": 1700000000, "parent_id": "t3_post1", "is_submitter": true,
		"replies": {"kind": "Listing", "data": {"children": [
			{"kind": "t1", "data": {"id": "c2", "author": "bob", "body": "first reply", "parent_id": "t1_c1", "replies": ""}},
			{"kind": "t1", "data": {"id": "c3", "author": "carol", "body": "second reply", "parent_id": "t1_c1", "replies": ""}}
		]}}
	}},
	{"kind": "more", "data": {"id": "m1", "count": 42, "parent_id": "t3_post1", "children": ["c4", "c5", "c6"]}},
	{"kind": "t6", "data": {"id": "unknown-kind"}}
]}}`

func TestCommentTree(t *testing.T) {
	nodes, err := New().CommentTree(mustThing(t, commentListing))
	if err != nil {
		t.Fatalf("CommentTree failed: %v", err)
	}

	if len(nodes) != 2 {
		t.Fatalf("len(nodes) = %d, want 2 (unknown kind dropped)", len(nodes))
	}

	comment := nodes[0]
	if comment.Kind != types.NodeComment || comment.Comment == nil {
		t.Fatalf("nodes[0] = %+v, want a comment node", comment)
	}
	if comment.Comment.ID != "c1" || !comment.Comment.IsSubmitter {
		t.Errorf("comment = %+v, want c1 by the submitter", comment.Comment)
	}
	if len(comment.Comment.Replies) != 2 {
		t.Fatalf("len(Replies) = %d, want 2", len(comment.Comment.Replies))
	}
	if got := comment.Comment.Replies[1].Comment; got == nil || got.ID != "c3" {
		t.Errorf("second reply = %+v, want c3", got)
	}
	if got := comment.Comment.Replies[0].Comment.Replies; len(got) != 0 {
		t.Errorf("leaf Replies = %v, want empty slice", got)
	}

	more := nodes[1]
	if more.Kind != types.NodeMore || more.More == nil {
		t.Fatalf("nodes[1] = %+v, want a more node", more)
	}
	if more.More.Count != 42 {
		t.Errorf("Count = %d, want 42", more.More.Count)
	}
	if want := []string{"c4", "c5", "c6"}; !reflect.DeepEqual(more.More.Children, want) {
		t.Errorf("Children = %v, want %v", more.More.Children, want)
	}
	if more.More.ParentID != "t3_post1" {
		t.Errorf("ParentID = %q, want %q", more.More.ParentID, "t3_post1")
	}
}

func TestCommentTree_EditedTimestamp(t *testing.T) {
	thing := mustThing(t, `{"kind": "Listing", "data": {"children": [
		{"kind": "t1", "data": {"id": "c1", "author": "alice", "body": "x", "edited": 1700000500, "replies": ""}},
		{"kind": "t1", "data": {"id": "c2", "author": "bob", "body": "y", "edited": false, "replies": ""}}
	]}}`)

	nodes, err := New().CommentTree(thing)
	if err != nil {
		t.Fatalf("CommentTree failed: %v", err)
	}
	if nodes[0].Comment.EditedAt == nil {
		t.Error("EditedAt = nil, want the edit timestamp")
	}
	if nodes[1].Comment.EditedAt != nil {
		t.Errorf("EditedAt = %v, want nil for unedited comment", nodes[1].Comment.EditedAt)
	}
}

func TestThread_PostAndComments(t *testing.T) {
	postListing := `{"kind": "Listing", "data": {"children": [
		{"kind": "t3", "data": {"id": "post1", "title": "the post", "author": "alice", "is_self": true, "selftext": "hello"}}
	]}}`

	var things []*types.Thing
	raw := "[" + postListing + "," + commentListing + "]"
	if err := json.Unmarshal([]byte(raw), &things); err != nil {
		t.Fatalf("bad fixture: %v", err)
	}

	thread, err := New().Thread(things)
	if err != nil {
		t.Fatalf("Thread failed: %v", err)
	}

	if thread.Post == nil || thread.Post.ID != "post1" {
		t.Fatalf("Post = %+v, want post1", thread.Post)
	}
	if len(thread.Comments) != 2 {
		t.Errorf("len(Comments) = %d, want 2", len(thread.Comments))
	}
	if thread.CommentCount != 3 {
		t.Errorf("CommentCount = %d, want 3", thread.CommentCount)
	}
	if thread.HiddenCount != 42 {
		t.Errorf("HiddenCount = %d, want 42", thread.HiddenCount)
	}
}

func TestThread_CommentsOnly(t *testing.T) {
	things := []*types.Thing{mustThing(t, commentListing)}

	thread, err := New().Thread(things)
	if err != nil {
		t.Fatalf("Thread failed: %v", err)
	}
	if thread.Post != nil {
		t.Errorf("Post = %+v, want nil", thread.Post)
	}
	if len(thread.Comments) != 2 {
		t.Errorf("len(Comments) = %d, want 2", len(thread.Comments))
	}
}

func TestThread_Empty(t *testing.T) {
	var parseErr *pkgerrs.ParseError
	if _, err := New().Thread(nil); !errors.As(err, &parseErr) {
		t.Fatalf("error = %v, want *ParseError", err)
	}
}

func TestThread_DeepNesting(t *testing.T) {
	// Build a 200-level reply chain to confirm deep threads normalize.
	leaf := `{"kind": "t1", "data": {"id": "c200", "author": "a", "body": "deep", "replies": ""}}`
	for i := 199; i >= 1; i-- {
		leaf = fmt.Sprintf(`{"kind": "t1", "data": {"id": "c%d", "author": "a", "body": "b",
			"replies": {"kind": "Listing", "data": {"children": [%s]}}}}`, i, leaf)
	}
	thing := mustThing(t, `{"kind": "Listing", "data": {"children": [`+leaf+`]}}`)

	nodes, err := New().CommentTree(thing)
	if err != nil {
		t.Fatalf("CommentTree failed: %v", err)
	}
	if got := types.CommentTree(nodes).MaxDepth(); got != 200 {
		t.Errorf("MaxDepth = %d, want 200", got)
	}
}

func TestMoreChildren(t *testing.T) {
	raw := json.RawMessage(`{"json": {"errors": [], "data": {"things": [
		{"kind": "t1", "data": {"id": "c4", "author": "dana", "body": "expanded", "replies": ""}},
		{"kind": "more", "data": {"id": "m2", "count": 7, "parent_id": "t1_c4", "children": ["c9"]}}
	]}}}`)

	nodes, err := New().MoreChildren(raw)
	if err != nil {
		t.Fatalf("MoreChildren failed: %v", err)
	}
	if len(nodes) != 2 {
		t.Fatalf("len = %d, want 2", len(nodes))
	}
	if nodes[0].Comment == nil || nodes[0].Comment.ID != "c4" {
		t.Errorf("nodes[0] = %+v, want comment c4", nodes[0])
	}
	if nodes[1].More == nil || nodes[1].More.Count != 7 {
		t.Errorf("nodes[1] = %+v, want more with count 7", nodes[1])
	}
}

func TestMoreChildren_UpstreamErrors(t *testing.T) {
	raw := json.RawMessage(`{"json": {"errors": [["INVALID_LINK", "that link is invalid", "link_id"]], "data": {"things": []}}}`)

	var parseErr *pkgerrs.ParseError
	if _, err := New().MoreChildren(raw); !errors.As(err, &parseErr) {
		t.Fatalf("error = %v, want *ParseError", err)
	}
}

// Normalization is pure: running the same payload through twice must yield
// structurally equal results with no hidden mutation.
func TestNormalizationIsIdempotent(t *testing.T) {
	thing := mustThing(t, commentListing)

	first, err := New().CommentTree(thing)
	if err != nil {
		t.Fatalf("first pass failed: %v", err)
	}
	second, err := New().CommentTree(thing)
	if err != nil {
		t.Fatalf("second pass failed: %v", err)
	}

	if !reflect.DeepEqual(first, second) {
		t.Error("normalizing the same payload twice produced different trees")
	}
}
