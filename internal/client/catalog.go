package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"catalog/browser/internal/config"
	"catalog/browser/internal/domain"
	"catalog/browser/internal/excerpt"
	"catalog/browser/internal/proxy"

	log "github.com/sirupsen/logrus"
	"go.uber.org/ratelimit"
	"resty.dev/v3"
)

var ErrCircuitOpen = errors.New("circuit breaker is open")

// APIError is a non-2xx answer from the catalog API.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("catalog api error: %d %s", e.StatusCode, http.StatusText(e.StatusCode))
	}
	return fmt.Sprintf("catalog api error: %d %s", e.StatusCode, e.Message)
}

// StoreMessage is the human-readable reason given by the API, if any.
func (e *APIError) StoreMessage() string {
	return e.Message
}

func (e *APIError) Unwrap() error {
	if e.StatusCode == http.StatusNotFound {
		return domain.ErrNotFound
	}
	return nil
}

// CatalogClient reads and mutates categories over the catalog HTTP API.
type CatalogClient interface {
	List(ctx context.Context, q domain.Query) (*domain.ListResult, error)
	Delete(ctx context.Context, id string) error
	SetActive(ctx context.Context, id string, active bool) error
}

type catalogClient struct {
	rl         ratelimit.Limiter
	baseURL    string
	httpClient *resty.Client
	proxies    proxy.Supplier
	breaker    *breaker
}

func NewCatalogClient(cfg config.CatalogConfig, proxies proxy.Supplier) CatalogClient {
	client := resty.New().
		SetTimeout(time.Duration(cfg.Timeout)*time.Second).
		SetRetryCount(cfg.MaxRetries).
		SetRetryWaitTime(500*time.Millisecond).
		SetRetryMaxWaitTime(5*time.Second).
		SetHeader("Accept", "application/json").
		SetHeader("User-Agent", "catalog-browser/1.0")

	if proxies != nil {
		if proxyURL := proxies.Get(); proxyURL != "" {
			client.SetProxy(proxyURL)
			log.Infof("🔗 Using initial proxy: %s", proxyURL)
		}
	}

	return &catalogClient{
		rl:         ratelimit.New(cfg.MaxRequestsPerSecond),
		baseURL:    cfg.BaseURL,
		httpClient: client,
		proxies:    proxies,
		breaker:    newBreaker(time.Duration(cfg.CircuitBreakerDelay) * time.Second),
	}
}

type categoryDTO struct {
	ID               string            `json:"id"`
	Name             string            `json:"name"`
	Description      string            `json:"description"`
	Image            string            `json:"image"`
	IsActive         bool              `json:"isActive"`
	IsFeatured       bool              `json:"isFeatured"`
	ProductCount     int               `json:"productCount"`
	SubcategoryCount *int              `json:"subcategoryCount"`
	Subcategories    []json.RawMessage `json:"subcategories"`
	ParentID         *string           `json:"parentId"`
	Slug             string            `json:"slug"`
}

func (d categoryDTO) node() domain.Node {
	subcategories := len(d.Subcategories)
	if d.SubcategoryCount != nil {
		subcategories = *d.SubcategoryCount
	}

	return domain.Node{
		ID:               d.ID,
		Name:             d.Name,
		Description:      d.Description,
		ImageURL:         d.Image,
		IsActive:         d.IsActive,
		IsFeatured:       d.IsFeatured,
		ProductCount:     d.ProductCount,
		SubcategoryCount: subcategories,
		ParentID:         d.ParentID,
		Slug:             d.Slug,
		Excerpt:          excerpt.FromHTML(d.Description),
	}
}

type listResponse struct {
	Data       []categoryDTO `json:"data"`
	Pagination struct {
		TotalPages int `json:"totalPages"`
		TotalCount int `json:"totalCount"`
	} `json:"pagination"`
	Parent *domain.ParentInfo `json:"parent"`
}

// listParams renders q as query parameters. The root and "all" filters are
// expressed by leaving the parameter out.
func listParams(q domain.Query) map[string]string {
	params := map[string]string{
		"page":      strconv.Itoa(q.Page),
		"limit":     strconv.Itoa(q.Limit),
		"sortBy":    q.SortBy.String(),
		"sortOrder": q.SortOrder.String(),
	}
	if q.ParentID != nil {
		params["parent"] = *q.ParentID
	}
	if q.Status != domain.StatusAll {
		params["status"] = q.Status.String()
	}
	if q.Featured != domain.FeaturedAll {
		params["featured"] = q.Featured.String()
	}
	if q.Search != "" {
		params["search"] = q.Search
	}
	return params
}

func (c *catalogClient) List(ctx context.Context, q domain.Query) (*domain.ListResult, error) {
	resp, err := c.execute(ctx, http.MethodGet, c.baseURL+"/categories", func(r *resty.Request) {
		r.SetQueryParams(listParams(q))
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}

	var body listResponse
	if err := json.Unmarshal([]byte(resp.String()), &body); err != nil {
		return nil, fmt.Errorf("failed to decode category list: %w", err)
	}

	result := &domain.ListResult{
		Nodes: make([]domain.Node, 0, len(body.Data)),
		Pagination: domain.Pagination{
			TotalCount: body.Pagination.TotalCount,
			TotalPages: body.Pagination.TotalPages,
			Page:       q.Page,
			Limit:      q.Limit,
		},
		Parent: body.Parent,
	}
	for _, dto := range body.Data {
		result.Nodes = append(result.Nodes, dto.node())
	}

	log.Debugf("Fetched %d categories (page %d of %d) for parent %q",
		len(result.Nodes), q.Page, result.Pagination.TotalPages, q.Parent())
	return result, nil
}

func (c *catalogClient) Delete(ctx context.Context, id string) error {
	if _, err := c.execute(ctx, http.MethodDelete, c.categoryURL(id), nil); err != nil {
		return fmt.Errorf("failed to delete category %s: %w", id, err)
	}
	return nil
}

func (c *catalogClient) SetActive(ctx context.Context, id string, active bool) error {
	_, err := c.execute(ctx, http.MethodPatch, c.categoryURL(id)+"/status", func(r *resty.Request) {
		r.SetHeader("Content-Type", "application/json").
			SetBody(map[string]bool{"isActive": active})
	})
	if err != nil {
		return fmt.Errorf("failed to update status of category %s: %w", id, err)
	}
	return nil
}

func (c *catalogClient) categoryURL(id string) string {
	return c.baseURL + "/categories/" + url.PathEscape(id)
}

// execute sends one paced request. A throttled answer is retried once through
// the next proxy; if that is throttled too, the circuit breaker trips.
func (c *catalogClient) execute(ctx context.Context, method, target string, prepare func(*resty.Request)) (*resty.Response, error) {
	if remaining := c.breaker.remaining(); remaining > 0 {
		log.Debugf("🚫 Request blocked by circuit breaker. Remaining time: %v", remaining.Round(time.Second))
		return nil, fmt.Errorf("%w: requests disabled for %v more", ErrCircuitOpen, remaining.Round(time.Second))
	}

	c.rl.Take()

	resp, err := c.send(ctx, method, target, prepare)
	if err != nil {
		return nil, err
	}

	if throttled(resp) {
		code := resp.StatusCode()
		log.Warnf("🚫 Catalog is throttling requests to %s (%d)", target, code)
		retried, retryErr := c.retryWithNextProxy(ctx, method, target, prepare)
		if retryErr == nil {
			return retried, nil
		}
		var api *APIError
		if errors.As(retryErr, &api) {
			return nil, retryErr
		}
		log.Debugf("Retry through next proxy failed: %v", retryErr)
		c.breaker.trip()
		return nil, fmt.Errorf("%w: catalog answered %d", ErrCircuitOpen, code)
	}

	if resp.IsError() {
		return nil, apiError(resp)
	}
	return resp, nil
}

func (c *catalogClient) retryWithNextProxy(ctx context.Context, method, target string, prepare func(*resty.Request)) (*resty.Response, error) {
	if c.proxies == nil {
		return nil, errors.New("no proxy available")
	}
	next := c.proxies.Get()
	if next == "" {
		return nil, errors.New("no proxy available")
	}

	log.Infof("🔄 Switching to proxy %s and retrying", next)
	c.httpClient.SetProxy(next)

	resp, err := c.send(ctx, method, target, prepare)
	if err != nil {
		return nil, err
	}
	if throttled(resp) {
		return nil, errors.New("still throttled")
	}
	if resp.IsError() {
		return nil, apiError(resp)
	}
	log.Infof("✅ Retry successful with new proxy")
	return resp, nil
}

func (c *catalogClient) send(ctx context.Context, method, target string, prepare func(*resty.Request)) (*resty.Response, error) {
	req := c.httpClient.R().SetContext(ctx)
	if prepare != nil {
		prepare(req)
	}

	resp, err := req.Execute(method, target)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("request cancelled: %w", ctx.Err())
		}
		return nil, fmt.Errorf("failed to %s %s: %w", method, target, err)
	}
	return resp, nil
}

func throttled(resp *resty.Response) bool {
	code := resp.StatusCode()
	return code == http.StatusTooManyRequests || code == http.StatusServiceUnavailable
}

func apiError(resp *resty.Response) error {
	var body struct {
		Message string `json:"message"`
	}
	_ = json.Unmarshal([]byte(resp.String()), &body)
	return &APIError{StatusCode: resp.StatusCode(), Message: body.Message}
}
