package server

import (
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	pkgerrs "github.com/snooproxy/pkg/errors"
	"github.com/snooproxy/pkg/types"
)

// defaultPostLimit applies when a posts request carries no limit parameter.
const defaultPostLimit = 25

// envelope wraps successful responses.
type envelope struct {
	Data interface{} `json:"data"`
}

// errorBody wraps failed responses.
type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

func (s *Server) health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) subreddit(c echo.Context) error {
	sub, err := s.client.Subreddit(c.Request().Context(), c.Param("subreddit"))
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(http.StatusOK, envelope{Data: sub})
}

func (s *Server) rules(c echo.Context) error {
	rules, err := s.client.Rules(c.Request().Context(), c.Param("subreddit"))
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(http.StatusOK, envelope{Data: rules})
}

func (s *Server) posts(c echo.Context) error {
	limit, err := intParam(c, "limit", defaultPostLimit)
	if err != nil {
		return s.respondError(c, err)
	}

	page, err := s.client.Posts(c.Request().Context(), types.PostsQuery{
		Subreddit: c.Param("subreddit"),
		Sort:      c.QueryParam("sort"),
		TimeRange: c.QueryParam("t"),
		Limit:     limit,
		After:     c.QueryParam("after"),
		Before:    c.QueryParam("before"),
	})
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(http.StatusOK, envelope{Data: page})
}

func (s *Server) comments(c echo.Context) error {
	limit, err := intParam(c, "limit", 0)
	if err != nil {
		return s.respondError(c, err)
	}
	depth, err := intParam(c, "depth", 0)
	if err != nil {
		return s.respondError(c, err)
	}

	thread, err := s.client.Comments(c.Request().Context(), types.CommentsQuery{
		Subreddit: c.Param("subreddit"),
		PostID:    c.Param("postID"),
		Sort:      c.QueryParam("sort"),
		Limit:     limit,
		Depth:     depth,
	})
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(http.StatusOK, envelope{Data: thread})
}

type moreChildrenRequest struct {
	LinkID     string   `json:"link_id"`
	CommentIDs []string `json:"comment_ids"`
	Sort       string   `json:"sort"`
	Depth      int      `json:"depth"`
	Limit      int      `json:"limit"`
}

func (s *Server) moreChildren(c echo.Context) error {
	var req moreChildrenRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorBody{Error: errorDetail{
			Kind:    "bad_request",
			Message: "malformed request body",
		}})
	}

	nodes, err := s.client.MoreChildren(c.Request().Context(), types.MoreChildrenQuery{
		LinkID:     req.LinkID,
		CommentIDs: req.CommentIDs,
		Sort:       req.Sort,
		Depth:      req.Depth,
		Limit:      req.Limit,
	})
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(http.StatusOK, envelope{Data: nodes})
}

// respondError maps a typed client error onto a downstream status. Upstream
// details stay in the logs; downstream consumers get a stable kind and a
// short message.
func (s *Server) respondError(c echo.Context, err error) error {
	status, kind, message := classify(err)

	if status >= http.StatusInternalServerError {
		s.logger.Error().
			Str("request_id", c.Response().Header().Get(echo.HeaderXRequestID)).
			Str("kind", kind).
			Err(err).
			Msg("request failed")
	} else {
		s.logger.Debug().
			Str("request_id", c.Response().Header().Get(echo.HeaderXRequestID)).
			Str("kind", kind).
			Err(err).
			Msg("request rejected")
	}

	var rateErr *pkgerrs.RateLimitError
	if errors.As(err, &rateErr) && rateErr.RetryAfter > 0 {
		seconds := int(math.Ceil(rateErr.RetryAfter.Seconds()))
		c.Response().Header().Set("Retry-After", strconv.Itoa(seconds))
	}

	return c.JSON(status, errorBody{Error: errorDetail{Kind: kind, Message: message}})
}

func classify(err error) (int, string, string) {
	var configErr *pkgerrs.ConfigError
	var authErr *pkgerrs.AuthError
	var rateErr *pkgerrs.RateLimitError
	var transportErr *pkgerrs.TransportError
	var apiErr *pkgerrs.APIError
	var parseErr *pkgerrs.ParseError

	switch {
	case errors.As(err, &configErr):
		return http.StatusBadRequest, "bad_request", configErr.Error()

	case errors.As(err, &authErr):
		return http.StatusBadGateway, "upstream_auth", "upstream authentication failed"

	case errors.As(err, &rateErr):
		return http.StatusServiceUnavailable, "rate_limited", "upstream rate limit exceeded, try again later"

	case errors.As(err, &transportErr):
		return http.StatusGatewayTimeout, "upstream_unreachable", "upstream did not respond"

	case errors.As(err, &apiErr):
		switch {
		case apiErr.IsNotFound():
			return http.StatusNotFound, "not_found", "subreddit or post not found"
		case apiErr.StatusCode == http.StatusForbidden:
			return http.StatusForbidden, "forbidden", "access to this resource is forbidden"
		case apiErr.IsClientError():
			return http.StatusBadRequest, "bad_request", "upstream rejected the request"
		default:
			return http.StatusBadGateway, "upstream_error", "upstream returned a server error"
		}

	case errors.As(err, &parseErr):
		return http.StatusBadGateway, "upstream_shape", "upstream response could not be interpreted"

	default:
		return http.StatusInternalServerError, "internal", "internal error"
	}
}

func intParam(c echo.Context, name string, fallback int) (int, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return fallback, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, &pkgerrs.ConfigError{Field: name, Message: fmt.Sprintf("not an integer: %q", raw)}
	}
	return value, nil
}
