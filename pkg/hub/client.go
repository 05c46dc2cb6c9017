// Package hub is a small Black Duck REST client covering the calls bomsync
// needs: projects, scans, BOM components, custom components, reports and
// users.
package hub

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog/log"
	"stackerbuild.io/bomsync/errors"
)

const (
	DefaultPageSize         = 100
	DefaultMaxSearchResults = 1000
	DefaultTimeout          = 30 * time.Second
	DefaultRetryCount       = 3

	AcceptInternal  = "application/vnd.blackducksoftware.internal-1+json"
	AcceptUser4     = "application/vnd.blackducksoftware.user-4+json"
	AcceptCopyright = "application/vnd.blackducksoftware.copyright-4+json"
)

type Options struct {
	BaseURL  string
	Token    string
	Insecure bool
	Timeout  time.Duration
	Retries  int
	PageSize int
	// MaxSearchResults bounds name searches, a warning is logged when a
	// search has more results than this.
	MaxSearchResults int
}

type Client struct {
	rc *resty.Client

	token      string
	pageSize   int
	maxResults int
}

// New returns an unauthenticated client, call Authenticate before use.
func New(opts Options) (*Client, error) {
	if opts.BaseURL == "" {
		return nil, fmt.Errorf("%w: hub base url is not set", errors.ErrConfig)
	}

	if opts.Token == "" {
		return nil, fmt.Errorf("%w: hub api token is not set", errors.ErrConfig)
	}

	if opts.Timeout == 0 {
		opts.Timeout = DefaultTimeout
	}

	if opts.PageSize == 0 {
		opts.PageSize = DefaultPageSize
	}

	if opts.MaxSearchResults == 0 {
		opts.MaxSearchResults = DefaultMaxSearchResults
	}

	rc := resty.New().
		SetBaseURL(strings.TrimRight(opts.BaseURL, "/")).
		SetTimeout(opts.Timeout).
		SetRetryCount(opts.Retries).
		SetRetryWaitTime(time.Second).
		AddRetryCondition(retryable)

	if opts.Insecure {
		rc.SetTLSClientConfig(&tls.Config{InsecureSkipVerify: true}) //nolint:gosec // --no-verify
	}

	return &Client{
		rc:         rc,
		token:      opts.Token,
		pageSize:   opts.PageSize,
		maxResults: opts.MaxSearchResults,
	}, nil
}

// retryable retries idempotent requests on transport errors and 5xx answers.
func retryable(resp *resty.Response, err error) bool {
	if resp == nil || resp.Request == nil || resp.Request.Method != http.MethodGet {
		return false
	}

	return err != nil || resp.StatusCode() >= http.StatusInternalServerError
}

type authResponse struct {
	BearerToken           string `json:"bearerToken"`
	ExpiresInMilliseconds int64  `json:"expiresInMilliseconds"`
}

// Authenticate exchanges the api token for a bearer token.
func (c *Client) Authenticate(ctx context.Context) error {
	var auth authResponse

	resp, err := c.rc.R().
		SetContext(ctx).
		SetHeader("Authorization", "token "+c.token).
		SetHeader("Accept", AcceptUser4).
		SetResult(&auth).
		Post("/api/tokens/authenticate")
	if err := check(resp, err, "authenticate"); err != nil {
		log.Error().Err(err).Msg("unable to authenticate to hub")

		return err
	}

	if auth.BearerToken == "" {
		return fmt.Errorf("%w: authenticate: no bearer token in response", errors.ErrRemote)
	}

	c.rc.SetAuthToken(auth.BearerToken)

	log.Debug().Int64("expires_ms", auth.ExpiresInMilliseconds).Msg("authenticated to hub")

	return nil
}

func (c *Client) request(ctx context.Context) *resty.Request {
	return c.rc.R().SetContext(ctx)
}

// check turns transport errors and non-2xx answers into errors.
func check(resp *resty.Response, err error, what string) error {
	if err != nil {
		return fmt.Errorf("%s: %w", what, err)
	}

	if resp.IsError() {
		return fmt.Errorf("%w: %s: %s: %s", errors.ErrRemote, what, resp.Status(), abbrev(resp.String()))
	}

	return nil
}

func abbrev(body string) string {
	const max = 256

	body = strings.TrimSpace(body)
	if len(body) > max {
		return body[:max] + "..."
	}

	return body
}

type Link struct {
	Rel  string `json:"rel"`
	Href string `json:"href"`
}

type Meta struct {
	Href  string `json:"href"`
	Links []Link `json:"links"`
}

// Link returns the href of the named relation or "".
func (m Meta) Link(rel string) string {
	for _, l := range m.Links {
		if l.Rel == rel {
			return l.Href
		}
	}

	return ""
}

// LinkOf returns the named relation or an error naming the resource.
func (m Meta) LinkOf(rel string) (string, error) {
	href := m.Link(rel)
	if href == "" {
		return "", fmt.Errorf("%w: %s has no %s link", errors.ErrIncomplete, m.Href, rel)
	}

	return href, nil
}

type page[T any] struct {
	TotalCount int `json:"totalCount"`
	Items      []T `json:"items"`
}

type query struct {
	params url.Values
	accept string
	// max stops paging after this many items, 0 reads everything
	max int
}

// getItems pages through a collection with limit and offset until
// totalCount items have been read.
func getItems[T any](ctx context.Context, c *Client, href string, q query) ([]T, error) {
	items := []T{}

	for offset := 0; ; {
		var p page[T]

		req := c.request(ctx).
			SetQueryParamsFromValues(q.params).
			SetQueryParam("limit", strconv.Itoa(c.pageSize)).
			SetQueryParam("offset", strconv.Itoa(offset)).
			SetResult(&p)
		if q.accept != "" {
			req.SetHeader("Accept", q.accept)
		}

		resp, err := req.Get(href)
		if err := check(resp, err, "get "+href); err != nil {
			return nil, err
		}

		items = append(items, p.Items...)
		offset += len(p.Items)

		if q.max > 0 && len(items) >= q.max && p.TotalCount > len(items) {
			log.Warn().Str("url", href).Int("total", p.TotalCount).Int("read", len(items)).
				Msg("search has too many results, some matches may be missed")

			return items[:q.max], nil
		}

		if len(p.Items) == 0 || offset >= p.TotalCount {
			return items, nil
		}
	}
}

// getJSON reads a single resource.
func getJSON[T any](ctx context.Context, c *Client, href, accept string) (*T, error) {
	var res T

	req := c.request(ctx).SetResult(&res)
	if accept != "" {
		req.SetHeader("Accept", accept)
	}

	resp, err := req.Get(href)
	if err := check(resp, err, "get "+href); err != nil {
		return nil, err
	}

	return &res, nil
}

// search builds the parameters of a "q=<field>:<value>" search.
func search(field, value string, extra ...string) url.Values {
	params := url.Values{"q": []string{field + ":" + value}}

	for i := 0; i+1 < len(extra); i += 2 {
		params.Add(extra[i], extra[i+1])
	}

	return params
}

// location returns the url of a created resource: the Location header, or
// the named relation of the Link header.
func location(resp *resty.Response, rel string) string {
	if rel != "" {
		if href := linkHeader(resp.Header().Values("Link"), rel); href != "" {
			return href
		}
	}

	return resp.Header().Get("Location")
}

// linkHeader parses RFC 8288 values like `<https://x/y>; rel="versions"`.
func linkHeader(values []string, rel string) string {
	for _, value := range values {
		for _, part := range strings.Split(value, ",") {
			fields := strings.Split(part, ";")
			if len(fields) < 2 {
				continue
			}

			href := strings.Trim(strings.TrimSpace(fields[0]), "<>")

			for _, f := range fields[1:] {
				key, val, ok := strings.Cut(strings.TrimSpace(f), "=")
				if ok && key == "rel" && strings.Trim(val, `"`) == rel {
					return href
				}
			}
		}
	}

	return ""
}
