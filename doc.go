// Package snooproxy mediates a Reddit-style content API for server-side
// consumers: it owns the application token, paces and retries upstream
// traffic, and normalizes raw listing payloads into stable shapes.
//
// # Overview
//
// The package is built for services that sit between downstream HTTP
// consumers and the upstream content API. A single Client carries everything
// the upstream demands of a well-behaved integration: an application-only
// OAuth token refreshed ahead of expiry, one process-wide pacing queue that
// keeps outbound calls spaced apart, automatic retries with exponential
// backoff when the upstream throttles or the network fails, and pure
// normalization of the kind/data envelopes into plain structs.
//
// # Quick Start
//
// Basic setup requires API credentials and an identifying user agent:
//
//	client, err := snooproxy.New(&snooproxy.Config{
//		ClientID:     "your-client-id",
//		ClientSecret: "your-client-secret",
//		UserAgent:    "server:myapp:1.0 (by /u/yourusername)",
//	})
//	if err != nil {
//		log.Fatal(err)
//	}
//
// Connecting is optional; operations authenticate on demand. Services that
// prefer failing fast on bad credentials can verify them at startup:
//
//	if err := client.Connect(ctx); err != nil {
//		log.Fatal(err)
//	}
//
// # Common Operations
//
// Fetch a page of posts:
//
//	page, err := client.Posts(ctx, types.PostsQuery{Subreddit: "golang", Sort: "hot", Limit: 25})
//	if err != nil {
//		log.Fatal(err)
//	}
//	for _, post := range page.Posts {
//		fmt.Printf("%s (score: %d, type: %s)\n", post.Title, post.Score, post.Type)
//	}
//
// Fetch a community summary:
//
//	sub, err := client.Subreddit(ctx, "golang")
//	if err != nil {
//		log.Fatal(err)
//	}
//	fmt.Printf("r/%s has %d subscribers\n", sub.Name, sub.Subscribers)
//
// Fetch a post with its comment tree:
//
//	thread, err := client.Comments(ctx, types.CommentsQuery{Subreddit: "golang", PostID: "abc123"})
//	if err != nil {
//		log.Fatal(err)
//	}
//	fmt.Printf("%d comments shown, %d hidden\n", thread.CommentCount, thread.HiddenCount)
//
// Large threads arrive truncated: the tree contains placeholder nodes whose
// IDs can be expanded with MoreChildren. The types.CommentTree helpers
// collect them:
//
//	ids := types.CommentTree(thread.Comments).MoreIDs()
//	nodes, err := client.MoreChildren(ctx, types.MoreChildrenQuery{
//		LinkID:     "abc123",
//		CommentIDs: ids,
//	})
//
// Walk a listing page by page:
//
//	pager := client.NewPostPager(types.PostsQuery{Subreddit: "golang", Limit: 100})
//	for pager.Next(ctx) {
//		// pager.Page()
//	}
//	if err := pager.Err(); err != nil {
//		log.Fatal(err)
//	}
//
// # Pacing and Retries
//
// Every upstream call, from every goroutine, passes through one shared
// limiter before it is sent, so sustained throughput stays inside the
// upstream quota no matter how many downstream requests arrive at once.
// Requests that hit a throttling response or a network failure are retried
// with exponentially growing backoff; each retry re-enters the pacing queue
// and re-fetches the token, so retries neither stampede nor reuse stale
// credentials. Any other upstream status is returned immediately.
//
// # Errors
//
// Failures surface as typed errors from the pkg/errors package: ConfigError
// for invalid parameters, AuthError for failed token exchanges,
// RateLimitError and TransportError once the retry budget is exhausted,
// APIError for other upstream statuses, and ParseError for payloads that do
// not match the expected shape. Match them with errors.As.
package snooproxy
