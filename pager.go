package snooproxy

import (
	"context"

	"github.com/snooproxy/pkg/types"
)

// PostPager walks a community listing one page at a time using the upstream
// continuation cursors. It is not safe for concurrent use; create one pager
// per walk.
//
//	pager := client.NewPostPager(types.PostsQuery{Subreddit: "golang", Limit: 100})
//	for pager.Next(ctx) {
//		for _, post := range pager.Page().Posts {
//			// ...
//		}
//	}
//	if err := pager.Err(); err != nil {
//		// ...
//	}
type PostPager struct {
	client *Client
	query  types.PostsQuery
	page   *types.PostPage
	err    error
	done   bool
}

// NewPostPager creates a pager for the given query. The query's After cursor
// selects where the walk starts; Before is ignored.
func (c *Client) NewPostPager(query types.PostsQuery) *PostPager {
	query.Before = ""
	return &PostPager{
		client: c,
		query:  query,
	}
}

// Next fetches the next page and reports whether one was retrieved. It
// returns false once the listing is exhausted or a fetch fails; Err
// distinguishes the two.
func (p *PostPager) Next(ctx context.Context) bool {
	if p.done || p.err != nil {
		return false
	}

	page, err := p.client.Posts(ctx, p.query)
	if err != nil {
		p.err = err
		return false
	}

	p.page = page
	if page.AfterFullname == "" || len(page.Posts) == 0 {
		p.done = true
	} else {
		p.query.After = page.AfterFullname
	}
	return len(page.Posts) > 0
}

// Page returns the most recently fetched page. It is nil before the first
// successful Next call.
func (p *PostPager) Page() *types.PostPage {
	return p.page
}

// Err returns the error that stopped the walk, if any.
func (p *PostPager) Err() error {
	return p.err
}

// Collect walks forward until maxPosts are gathered or the listing ends.
// A maxPosts of zero or less means no cap. The pager's error, if any, is
// returned alongside the posts collected so far.
func (p *PostPager) Collect(ctx context.Context, maxPosts int) ([]types.Post, error) {
	var posts []types.Post
	for p.Next(ctx) {
		for _, post := range p.page.Posts {
			posts = append(posts, post)
			if maxPosts > 0 && len(posts) >= maxPosts {
				return posts, nil
			}
		}
	}
	return posts, p.err
}
