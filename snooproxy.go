package snooproxy

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/snooproxy/internal/auth"
	"github.com/snooproxy/internal/dispatch"
	"github.com/snooproxy/internal/normalize"
	pkgerrs "github.com/snooproxy/pkg/errors"
	"github.com/snooproxy/pkg/types"
	"github.com/snooproxy/pkg/validation"
)

const (
	// DefaultBaseURL is the default upstream API host.
	DefaultBaseURL = "https://oauth.reddit.com/"
	// DefaultAuthURL is the default OAuth host.
	DefaultAuthURL = "https://www.reddit.com/"
	// DefaultTimeout is the default HTTP client timeout.
	DefaultTimeout = 30 * time.Second

	// responsePreviewBytes caps debug logging of raw upstream payloads.
	responsePreviewBytes = 500
)

// Config holds the configuration for the client.
//
// ClientID, ClientSecret and UserAgent are required; everything else has a
// sensible default. The user agent should identify the deployment, e.g.
// "server:myapp:1.0 (by /u/owner)".
type Config struct {
	// ClientID and ClientSecret identify the registered application for
	// the client_credentials grant.
	ClientID     string
	ClientSecret string

	// UserAgent is attached to every upstream request, including token
	// exchanges.
	UserAgent string

	// BaseURL for the upstream API. Defaults to DefaultBaseURL.
	BaseURL string

	// AuthURL for the token endpoint. Defaults to DefaultAuthURL.
	AuthURL string

	// HTTPClient used for all outbound calls. Defaults to a client with
	// DefaultTimeout.
	HTTPClient *http.Client

	// PacingInterval is the minimum spacing between outbound upstream
	// calls, shared across all operations of this client. Defaults to
	// dispatch.DefaultInterval.
	PacingInterval time.Duration

	// MaxRetries is the retry budget for throttled or network-failed
	// requests. Zero means dispatch.DefaultRetries; negative disables
	// retrying.
	MaxRetries int

	// Logger for structured diagnostics. Optional; silent when nil.
	Logger *zerolog.Logger
}

// Client mediates the upstream content API for server-side consumers. All
// operations are safe for concurrent use and share one pacing queue and one
// application token.
type Client struct {
	dispatcher *dispatch.Dispatcher
	tokens     *auth.Manager
	normalizer *normalize.Normalizer
	logger     zerolog.Logger

	connectOnce sync.Once
	connectErr  error
}

// New creates a client from the given configuration. It validates the
// credentials are present and wires the token manager and dispatcher, but
// performs no network activity.
func New(config *Config) (*Client, error) {
	if config == nil {
		return nil, &pkgerrs.ConfigError{Message: "config cannot be nil"}
	}
	if config.ClientID == "" {
		return nil, &pkgerrs.ConfigError{Field: "ClientID", Message: "client ID is required"}
	}
	if config.ClientSecret == "" {
		return nil, &pkgerrs.ConfigError{Field: "ClientSecret", Message: "client secret is required"}
	}
	if err := validation.UserAgent(config.UserAgent); err != nil {
		return nil, err
	}

	baseURL := config.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	authURL := config.AuthURL
	if authURL == "" {
		authURL = DefaultAuthURL
	}
	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultTimeout}
	}

	logger := zerolog.Nop()
	if config.Logger != nil {
		logger = *config.Logger
	}

	tokens, err := auth.NewManager(httpClient, config.ClientID, config.ClientSecret, config.UserAgent, authURL, logger)
	if err != nil {
		return nil, err
	}

	dispatcher, err := dispatch.New(dispatch.Config{
		HTTPClient: httpClient,
		BaseURL:    baseURL,
		UserAgent:  config.UserAgent,
		Tokens:     tokens,
		Interval:   config.PacingInterval,
		Retries:    config.MaxRetries,
		Logger:     logger,
	})
	if err != nil {
		return nil, err
	}

	return &Client{
		dispatcher: dispatcher,
		tokens:     tokens,
		normalizer: normalize.New(),
		logger:     logger,
	}, nil
}

// Connect verifies the credentials by performing a token exchange. Calling
// it is optional: every operation obtains tokens on demand. It exists so
// services can fail fast at startup instead of on the first request, and it
// is safe to call multiple times; the exchange happens once.
func (c *Client) Connect(ctx context.Context) error {
	c.connectOnce.Do(func() {
		_, c.connectErr = c.tokens.Token(ctx)
	})
	return c.connectErr
}

// Subreddit retrieves the normalized summary of a community.
func (c *Client) Subreddit(ctx context.Context, name string) (*types.Subreddit, error) {
	if err := validation.SubredditName(name); err != nil {
		return nil, err
	}

	raw, err := c.dispatcher.Get(ctx, "r/"+name+"/about", nil)
	if err != nil {
		return nil, err
	}

	var thing types.Thing
	if err := json.Unmarshal(raw, &thing); err != nil {
		return nil, &pkgerrs.ParseError{Operation: "subreddit", Err: err}
	}
	return c.normalizer.Subreddit(&thing)
}

// Rules retrieves the posting rules of a community, cleaned of markup.
func (c *Client) Rules(ctx context.Context, name string) ([]types.Rule, error) {
	if err := validation.SubredditName(name); err != nil {
		return nil, err
	}

	raw, err := c.dispatcher.Get(ctx, "r/"+name+"/about/rules", nil)
	if err != nil {
		return nil, err
	}
	return c.normalizer.Rules(raw)
}

// Posts retrieves one page of a community listing in the requested order,
// with continuation cursors for fetching the next page.
func (c *Client) Posts(ctx context.Context, query types.PostsQuery) (*types.PostPage, error) {
	if query.Sort == "" {
		query.Sort = "hot"
	}
	if err := validation.SubredditName(query.Subreddit); err != nil {
		return nil, err
	}
	if err := validation.PostSort(query.Sort); err != nil {
		return nil, err
	}
	if err := validation.TimeRange(query.TimeRange); err != nil {
		return nil, err
	}
	if err := validation.Listing(query.Limit, query.After, query.Before); err != nil {
		return nil, err
	}

	q := url.Values{}
	if query.Limit > 0 {
		q.Set("limit", fmt.Sprintf("%d", query.Limit))
	}
	if query.After != "" {
		q.Set("after", query.After)
	}
	if query.Before != "" {
		q.Set("before", query.Before)
	}
	if query.Sort == "top" && query.TimeRange != "" {
		q.Set("t", query.TimeRange)
	}

	raw, err := c.dispatcher.Get(ctx, "r/"+query.Subreddit+"/"+query.Sort, q)
	if err != nil {
		return nil, err
	}

	var thing types.Thing
	if err := json.Unmarshal(raw, &thing); err != nil {
		return nil, &pkgerrs.ParseError{Operation: "posts", Err: err}
	}
	return c.normalizer.PostPage(&thing)
}

// Comments retrieves a post together with its comment tree. Elided parts of
// the tree appear as placeholder nodes that can be expanded with
// MoreChildren.
func (c *Client) Comments(ctx context.Context, query types.CommentsQuery) (*types.Thread, error) {
	if err := validation.SubredditName(query.Subreddit); err != nil {
		return nil, err
	}
	if err := validation.PostID(query.PostID); err != nil {
		return nil, err
	}
	if err := validation.CommentSort(query.Sort); err != nil {
		return nil, err
	}
	if err := validation.Depth(query.Depth); err != nil {
		return nil, err
	}
	if query.Limit < 0 {
		return nil, &pkgerrs.ConfigError{Field: "limit", Message: "limit cannot be negative"}
	}
	depth := c.clampDepth(query.Depth)

	q := url.Values{}
	if query.Limit > 0 {
		q.Set("limit", fmt.Sprintf("%d", query.Limit))
	}
	if query.Sort != "" {
		q.Set("sort", query.Sort)
	}
	if depth > 0 {
		q.Set("depth", fmt.Sprintf("%d", depth))
	}

	path := "r/" + query.Subreddit + "/comments/" + query.PostID
	raw, err := c.dispatcher.Get(ctx, path, q)
	if err != nil {
		return nil, err
	}

	if preview := rawPreview(raw); preview != "" {
		c.logger.Debug().Str("path", path).Str("response_preview", preview).Msg("comments raw response")
	}

	things, err := decodeThings(raw, "comments")
	if err != nil {
		return nil, err
	}
	return c.normalizer.Thread(things)
}

// Threads retrieves comment trees for several posts concurrently. Results
// come back in the order of the queries; the first error encountered is
// returned alongside whatever succeeded. The shared pacing queue still
// spaces the underlying upstream calls.
func (c *Client) Threads(ctx context.Context, queries []types.CommentsQuery) ([]*types.Thread, error) {
	if len(queries) == 0 {
		return []*types.Thread{}, nil
	}

	type result struct {
		index  int
		thread *types.Thread
		err    error
	}
	resultChan := make(chan result, len(queries))

	for i, query := range queries {
		go func(index int, q types.CommentsQuery) {
			thread, err := c.Comments(ctx, q)
			resultChan <- result{index: index, thread: thread, err: err}
		}(i, query)
	}

	threads := make([]*types.Thread, len(queries))
	var firstErr error
	for range queries {
		res := <-resultChan
		if res.err != nil && firstErr == nil {
			firstErr = res.err
		}
		threads[res.index] = res.thread
	}
	return threads, firstErr
}

// MoreChildren expands a "more" placeholder from a comment tree, returning
// the previously elided comments as a flat list of nodes.
func (c *Client) MoreChildren(ctx context.Context, query types.MoreChildrenQuery) ([]*types.CommentNode, error) {
	if err := validation.LinkID(query.LinkID); err != nil {
		return nil, err
	}
	if err := validation.CommentIDs(query.CommentIDs); err != nil {
		return nil, err
	}
	if err := validation.CommentSort(query.Sort); err != nil {
		return nil, err
	}
	if err := validation.Depth(query.Depth); err != nil {
		return nil, err
	}
	if query.Limit < 0 {
		return nil, &pkgerrs.ConfigError{Field: "limit", Message: "limit cannot be negative"}
	}

	// The upstream requires the type prefix on the link reference.
	linkID := query.LinkID
	if !strings.HasPrefix(linkID, "t3_") {
		linkID = "t3_" + linkID
	}

	form := url.Values{}
	form.Set("link_id", linkID)
	form.Set("children", strings.Join(query.CommentIDs, ","))
	form.Set("api_type", "json")
	if query.Sort != "" {
		form.Set("sort", query.Sort)
	}
	if depth := c.clampDepth(query.Depth); depth > 0 {
		form.Set("depth", fmt.Sprintf("%d", depth))
	}
	if query.Limit > 0 {
		form.Set("limit_children", fmt.Sprintf("%d", query.Limit))
	}

	raw, err := c.dispatcher.PostForm(ctx, "api/morechildren", form)
	if err != nil {
		return nil, err
	}
	return c.normalizer.MoreChildren(raw)
}

// clampDepth caps depth requests at the deepest nesting the upstream
// renders, logging when a caller asked for more.
func (c *Client) clampDepth(depth int) int {
	if depth > validation.MaxCommentDepth {
		c.logger.Debug().
			Int("requested", depth).
			Int("clamped", validation.MaxCommentDepth).
			Msg("comment depth clamped to supported maximum")
		return validation.MaxCommentDepth
	}
	return depth
}

// decodeThings handles the two shapes the comments endpoint produces: a
// [post listing, comment listing] array, or a single Listing object when the
// post is omitted.
func decodeThings(raw json.RawMessage, op string) ([]*types.Thing, error) {
	trimmed := strings.TrimSpace(string(raw))
	switch {
	case strings.HasPrefix(trimmed, "["):
		var things []*types.Thing
		if err := json.Unmarshal(raw, &things); err != nil {
			return nil, &pkgerrs.ParseError{Operation: op, Message: "malformed response array", Err: err}
		}
		return things, nil

	case strings.HasPrefix(trimmed, "{"):
		var thing types.Thing
		if err := json.Unmarshal(raw, &thing); err != nil {
			return nil, &pkgerrs.ParseError{Operation: op, Message: "malformed response object", Err: err}
		}
		if thing.Kind != types.KindListing {
			return nil, &pkgerrs.ParseError{Operation: op, Message: fmt.Sprintf("unexpected response kind %q", thing.Kind)}
		}
		return []*types.Thing{&thing}, nil

	default:
		return nil, &pkgerrs.ParseError{Operation: op, Message: "empty or invalid response"}
	}
}

func rawPreview(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	if len(raw) > responsePreviewBytes {
		return string(raw[:responsePreviewBytes])
	}
	return string(raw)
}
