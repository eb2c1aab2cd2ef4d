package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"ShareDesk/internal/model"
)

// ErrNotFound is returned when the requested row or object does not exist.
var ErrNotFound = errors.New("not found")

// StatusError is a non-2xx answer from the data service.
type StatusError struct {
	Op   string
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: status %d, body: %s", e.Op, e.Code, e.Body)
}

// Source is the part of the data service the listing and detail fetchers use.
type Source interface {
	ListCompanies(ctx context.Context) ([]model.Company, error)
	GetCompany(ctx context.Context, name string) (*model.Company, error)
}

// Config configures a Client.
type Config struct {
	BaseURL string
	APIKey  string
	Bucket  string
	Timeout time.Duration
	Proxy   string
}

// DefaultBucket holds the uploaded financial statements.
const DefaultBucket = "financial_documents"

// Client talks to the hosted data service: PostgREST tables under
// /rest/v1 and object storage under /storage/v1.
type Client struct {
	http    *resty.Client
	baseURL string
	bucket  string
}

// NewClient creates a data service client.
func NewClient(cfg Config) *Client {
	base := strings.TrimRight(cfg.BaseURL, "/")
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	bucket := cfg.Bucket
	if bucket == "" {
		bucket = DefaultBucket
	}

	client := resty.New()
	client.SetBaseURL(base)
	client.SetTimeout(timeout)
	client.SetHeader("Accept", "application/json")
	if cfg.APIKey != "" {
		client.SetHeader("apikey", cfg.APIKey)
		client.SetAuthToken(cfg.APIKey)
	}
	if cfg.Proxy != "" {
		client.SetProxy(cfg.Proxy)
	}

	return &Client{http: client, baseURL: base, bucket: bucket}
}

const listingSelect = "id,name,symbol,sector,logo,stock_prices(id,company_id,price,change_percentage,trade_date,marketcap)"

const detailSelect = "*,board_members(*),company_subsidiaries(*),shareholding_pattern(*),stock_prices(*)"

// ListCompanies returns every company with its full price history.
func (c *Client) ListCompanies(ctx context.Context) ([]model.Company, error) {
	var companies []model.Company
	err := c.get(ctx, "list companies", "/rest/v1/companies", map[string]string{
		"select": listingSelect,
		"order":  "name.asc",
	}, &companies)
	if err != nil {
		return nil, err
	}
	return companies, nil
}

// GetCompany returns one company by exact name with every relation joined.
func (c *Client) GetCompany(ctx context.Context, name string) (*model.Company, error) {
	var companies []model.Company
	err := c.get(ctx, "get company", "/rest/v1/companies", map[string]string{
		"select": detailSelect,
		"name":   "eq." + name,
		"limit":  "1",
	}, &companies)
	if err != nil {
		return nil, err
	}
	if len(companies) == 0 {
		return nil, fmt.Errorf("company %q: %w", name, ErrNotFound)
	}
	return &companies[0], nil
}

// ListBlogPosts returns published posts, newest first.
func (c *Client) ListBlogPosts(ctx context.Context) ([]model.BlogPost, error) {
	var posts []model.BlogPost
	err := c.get(ctx, "list blog posts", "/rest/v1/blog_posts", map[string]string{
		"select": "*",
		"order":  "published_at.desc",
	}, &posts)
	if err != nil {
		return nil, err
	}
	return posts, nil
}

// GetBlogPost returns the post with the given slug.
func (c *Client) GetBlogPost(ctx context.Context, slug string) (*model.BlogPost, error) {
	var posts []model.BlogPost
	err := c.get(ctx, "get blog post", "/rest/v1/blog_posts", map[string]string{
		"select": "*",
		"slug":   "eq." + slug,
		"limit":  "1",
	}, &posts)
	if err != nil {
		return nil, err
	}
	if len(posts) == 0 {
		return nil, fmt.Errorf("blog post %q: %w", slug, ErrNotFound)
	}
	return &posts[0], nil
}

func (c *Client) get(ctx context.Context, op, path string, params map[string]string, out any) error {
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(params).
		Get(path)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return decode(op, resp, out)
}

func (c *Client) post(ctx context.Context, op, path string, body, out any) error {
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(body).
		Post(path)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return decode(op, resp, out)
}

func decode(op string, resp *resty.Response, out any) error {
	if resp.StatusCode() == http.StatusNotFound {
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	if resp.IsError() {
		return &StatusError{Op: op, Code: resp.StatusCode(), Body: resp.String()}
	}
	if err := json.Unmarshal(resp.Body(), out); err != nil {
		return fmt.Errorf("%s: decode: %w", op, err)
	}
	return nil
}
