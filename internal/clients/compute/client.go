package compute

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/sync/singleflight"

	"github.com/asterlab/mission-gateway/internal/pkg/httpx"
	"github.com/asterlab/mission-gateway/internal/platform/apierr"
	"github.com/asterlab/mission-gateway/internal/platform/logger"
)

// Client is the single funnel for compute-backend traffic; nothing else in
// the control plane shapes backend HTTP requests.
type Client interface {
	Submit(ctx context.Context, req SubmitRequest) (*JobHandle, error)
	Status(ctx context.Context, backendJobID string) (*JobInfo, error)
	Revoke(ctx context.Context, backendJobID string, wait bool) (*PurgeResult, error)
	Purge(ctx context.Context, backendJobID string, wait bool) (*PurgeResult, error)
	List(ctx context.Context, filter ListFilter) ([]*JobInfo, error)
	Spec(ctx context.Context, jobType string) (*JobSpec, error)
	Queues(ctx context.Context) ([]string, error)
}

type Config struct {
	BaseURL  string
	APIKey   string
	Timeout  time.Duration
	CacheTTL time.Duration
}

type client struct {
	log     *logger.Logger
	cfg     Config
	baseURL string
	http    *http.Client

	// Spec and queue-list responses are identical for every caller, so a
	// short-lived cache is safe; nothing principal-specific goes in here.
	cache  *gocache.Cache
	flight singleflight.Group
}

func NewClient(baseLog *logger.Logger, cfg Config) (Client, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, fmt.Errorf("compute backend base url required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	ttl := cfg.CacheTTL
	if ttl <= 0 || ttl > 60*time.Second {
		ttl = 60 * time.Second
	}
	return &client{
		log:     baseLog.With("client", "ComputeBackend"),
		cfg:     cfg,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		cache:   gocache.New(ttl, 2*ttl),
	}, nil
}

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
}

func (c *client) do(ctx context.Context, method, path string, query url.Values, body interface{}, out interface{}) error {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return apierr.Internal(fmt.Errorf("encode backend request: %w", err))
		}
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return apierr.Internal(err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.cfg.APIKey != "" {
		req.Header.Set("X-API-Key", c.cfg.APIKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return apierr.UpstreamUnavailable(fmt.Errorf("compute backend %s %s: %w", method, path, err))
	}
	defer httpx.DrainAndClose(resp)

	if resp.StatusCode == http.StatusNotFound {
		return apierr.NotFoundf("compute backend: %s", httpx.ErrorBody(resp))
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return apierr.UpstreamRejected(fmt.Errorf("compute backend %s %s: %d: %s", method, path, resp.StatusCode, httpx.ErrorBody(resp)))
	}

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return apierr.UpstreamRejected(fmt.Errorf("compute backend %s %s: decode response: %w", method, path, err))
	}
	if !env.Success {
		return apierr.UpstreamRejected(fmt.Errorf("compute backend %s %s: %s", method, path, env.Message))
	}
	if out != nil && len(env.Result) > 0 {
		if err := json.Unmarshal(env.Result, out); err != nil {
			return apierr.UpstreamRejected(fmt.Errorf("compute backend %s %s: decode result: %w", method, path, err))
		}
	}
	return nil
}

func (c *client) Submit(ctx context.Context, req SubmitRequest) (*JobHandle, error) {
	if req.Type == "" {
		return nil, apierr.InvalidRequestf("job type required")
	}
	payload := map[string]interface{}{
		"type":   req.Type,
		"queue":  req.Queue,
		"params": req.Params,
	}
	if req.Tag != "" {
		payload["tags"] = []string{req.Tag}
	}
	if req.Dedup != nil {
		payload["enable_dedup"] = *req.Dedup
	}
	if req.TimeLimit > 0 {
		payload["time_limit"] = req.TimeLimit
	}

	var handle JobHandle
	if err := c.do(ctx, http.MethodPost, "/job/submit", nil, payload, &handle); err != nil {
		return nil, err
	}
	if handle.ID == "" {
		return nil, apierr.UpstreamRejected(fmt.Errorf("compute backend accepted submission but returned no job id"))
	}
	c.log.Info("job submitted", "backend_job_id", handle.ID, "type", req.Type, "queue", req.Queue)
	return &handle, nil
}

func (c *client) Status(ctx context.Context, backendJobID string) (*JobInfo, error) {
	q := url.Values{"id": []string{backendJobID}}
	var info JobInfo
	if err := c.do(ctx, http.MethodGet, "/job/info", q, nil, &info); err != nil {
		return nil, err
	}
	if info.ID == "" {
		info.ID = backendJobID
	}
	return &info, nil
}

func (c *client) Revoke(ctx context.Context, backendJobID string, wait bool) (*PurgeResult, error) {
	return c.terminate(ctx, "/job/revoke", backendJobID, wait)
}

func (c *client) Purge(ctx context.Context, backendJobID string, wait bool) (*PurgeResult, error) {
	return c.terminate(ctx, "/job/purge", backendJobID, wait)
}

func (c *client) terminate(ctx context.Context, path, backendJobID string, wait bool) (*PurgeResult, error) {
	payload := map[string]interface{}{
		"id":                  backendJobID,
		"wait_for_completion": wait,
	}
	var res PurgeResult
	if err := c.do(ctx, http.MethodPost, path, nil, payload, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *client) List(ctx context.Context, filter ListFilter) ([]*JobInfo, error) {
	q := url.Values{}
	set := func(key, val string) {
		if val != "" {
			q.Set(key, val)
		}
	}
	set("job_type", filter.JobType)
	set("tag", filter.Tag)
	set("queue", filter.Queue)
	set("status", filter.Status)
	set("username", filter.Username)
	if filter.StartTime != nil {
		q.Set("start_time", filter.StartTime.UTC().Format(time.RFC3339))
	}
	if filter.EndTime != nil {
		q.Set("end_time", filter.EndTime.UTC().Format(time.RFC3339))
	}
	if filter.Limit > 0 {
		q.Set("limit", strconv.Itoa(filter.Limit))
	}
	if filter.Offset > 0 {
		q.Set("offset", strconv.Itoa(filter.Offset))
	}
	if filter.Detailed {
		q.Set("detailed", "true")
	}

	var jobs []*JobInfo
	if err := c.do(ctx, http.MethodGet, "/job/list", q, nil, &jobs); err != nil {
		return nil, err
	}
	return jobs, nil
}

func (c *client) Spec(ctx context.Context, jobType string) (*JobSpec, error) {
	cacheKey := "spec:" + jobType
	if cached, ok := c.cache.Get(cacheKey); ok {
		return cached.(*JobSpec), nil
	}

	v, err, _ := c.flight.Do(cacheKey, func() (interface{}, error) {
		var spec JobSpec
		q := url.Values{"type": []string{jobType}}
		if err := c.do(ctx, http.MethodGet, "/job-spec", q, nil, &spec); err != nil {
			return nil, err
		}
		if spec.Type == "" {
			spec.Type = jobType
		}
		c.cache.SetDefault(cacheKey, &spec)
		return &spec, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*JobSpec), nil
}

func (c *client) Queues(ctx context.Context) ([]string, error) {
	const cacheKey = "queues"
	if cached, ok := c.cache.Get(cacheKey); ok {
		return cached.([]string), nil
	}

	v, err, _ := c.flight.Do(cacheKey, func() (interface{}, error) {
		var out struct {
			Queues []string `json:"queues"`
		}
		if err := c.do(ctx, http.MethodGet, "/queue/list", nil, nil, &out); err != nil {
			return nil, err
		}
		c.cache.SetDefault(cacheKey, out.Queues)
		return out.Queues, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]string), nil
}
