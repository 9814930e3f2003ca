package snooproxy

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/snooproxy/pkg/types"
)

// pagedUpstream serves a three-page hot listing keyed by the after cursor.
func pagedUpstream(t *testing.T) *httptest.Server {
	t.Helper()
	pages := map[string]string{
		"": `{"kind": "Listing", "data": {"after": "t3_p2", "children": [
			{"kind": "t3", "data": {"id": "a1", "title": "one", "author": "x", "url": "https://example.com/1"}},
			{"kind": "t3", "data": {"id": "a2", "title": "two", "author": "x", "url": "https://example.com/2"}}
		]}}`,
		"t3_p2": `{"kind": "Listing", "data": {"after": "t3_p3", "children": [
			{"kind": "t3", "data": {"id": "b1", "title": "three", "author": "x", "url": "https://example.com/3"}}
		]}}`,
		"t3_p3": `{"kind": "Listing", "data": {"after": null, "children": [
			{"kind": "t3", "data": {"id": "c1", "title": "four", "author": "x", "url": "https://example.com/4"}}
		]}}`,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/access_token", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"access_token": "tok", "expires_in": 3600}`)
	})
	mux.HandleFunc("/r/golang/hot", func(w http.ResponseWriter, r *http.Request) {
		page, ok := pages[r.URL.Query().Get("after")]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		fmt.Fprint(w, page)
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func pagedClient(t *testing.T) *Client {
	t.Helper()
	server := pagedUpstream(t)
	client, err := New(&Config{
		ClientID:       "id",
		ClientSecret:   "secret",
		UserAgent:      "server:snooproxy-test:1.0",
		BaseURL:        server.URL,
		AuthURL:        server.URL,
		PacingInterval: time.Millisecond,
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return client
}

func TestPostPager_WalksAllPages(t *testing.T) {
	client := pagedClient(t)
	pager := client.NewPostPager(types.PostsQuery{Subreddit: "golang", Sort: "hot"})

	var ids []string
	for pager.Next(context.Background()) {
		for _, post := range pager.Page().Posts {
			ids = append(ids, post.ID)
		}
	}
	if err := pager.Err(); err != nil {
		t.Fatalf("pager failed: %v", err)
	}

	want := []string{"a1", "a2", "b1", "c1"}
	if len(ids) != len(want) {
		t.Fatalf("ids = %v, want %v", ids, want)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Errorf("ids[%d] = %q, want %q", i, ids[i], want[i])
		}
	}

	// The walk is over; further calls stay false without refetching.
	if pager.Next(context.Background()) {
		t.Error("Next after exhaustion = true, want false")
	}
}

func TestPostPager_StartsFromCursor(t *testing.T) {
	client := pagedClient(t)
	pager := client.NewPostPager(types.PostsQuery{Subreddit: "golang", Sort: "hot", After: "t3_p2"})

	if !pager.Next(context.Background()) {
		t.Fatalf("Next = false, err = %v", pager.Err())
	}
	if got := pager.Page().Posts[0].ID; got != "b1" {
		t.Errorf("first post = %q, want b1 (second page)", got)
	}
}

func TestPostPager_Collect(t *testing.T) {
	client := pagedClient(t)

	posts, err := client.NewPostPager(types.PostsQuery{Subreddit: "golang", Sort: "hot"}).Collect(context.Background(), 3)
	if err != nil {
		t.Fatalf("Collect failed: %v", err)
	}
	if len(posts) != 3 {
		t.Errorf("len = %d, want the cap of 3", len(posts))
	}

	all, err := client.NewPostPager(types.PostsQuery{Subreddit: "golang", Sort: "hot"}).Collect(context.Background(), 0)
	if err != nil {
		t.Fatalf("Collect failed: %v", err)
	}
	if len(all) != 4 {
		t.Errorf("len = %d, want all 4 posts", len(all))
	}
}

func TestPostPager_SurfacesError(t *testing.T) {
	client := pagedClient(t)
	pager := client.NewPostPager(types.PostsQuery{Subreddit: "golang", Sort: "new"})

	if pager.Next(context.Background()) {
		t.Fatal("Next = true, want false on a 404 route")
	}
	if pager.Err() == nil {
		t.Error("Err() = nil, want the fetch error")
	}
}
