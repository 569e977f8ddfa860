package ci

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/asterlab/mission-gateway/internal/pkg/httpx"
	"github.com/asterlab/mission-gateway/internal/platform/apierr"
	"github.com/asterlab/mission-gateway/internal/platform/logger"
)

// Kind selects which pipeline a trigger lands on. The driver owns the mapping
// from kind to CI project and ref so callers never shape CI requests.
type Kind string

const (
	KindProcessDeploy Kind = "process-deploy"
	KindBuild         Kind = "build"
)

// InlineDocumentVariable carries a base64-encoded workflow document when the
// caller supplies text instead of a URL.
const InlineDocumentVariable = "WORKFLOW_DOC_B64"

type Target struct {
	ProjectID string
	Ref       string
}

type Config struct {
	BaseURL      string
	TriggerToken string
	AccessToken  string
	Targets      map[Kind]Target
	Timeout      time.Duration
}

type PipelineHandle struct {
	ID  int64
	URL string
}

type PipelineState struct {
	State string
	URL   string
}

type Driver interface {
	Trigger(ctx context.Context, kind Kind, variables map[string]string) (*PipelineHandle, error)
	// TriggerInline is the variant for caller-supplied document text: the
	// document travels base64-encoded in a trigger variable.
	TriggerInline(ctx context.Context, kind Kind, variables map[string]string, document string) (*PipelineHandle, error)
	Query(ctx context.Context, kind Kind, pipelineID int64) (*PipelineState, error)
}

type driver struct {
	log     *logger.Logger
	cfg     Config
	baseURL string
	http    *http.Client
}

func NewDriver(baseLog *logger.Logger, cfg Config) (Driver, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, fmt.Errorf("ci base url required")
	}
	if len(cfg.Targets) == 0 {
		return nil, fmt.Errorf("ci targets required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &driver{
		log:     baseLog.With("client", "CIDriver"),
		cfg:     cfg,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}, nil
}

type pipelineResponse struct {
	ID     int64  `json:"id"`
	Status string `json:"status"`
	WebURL string `json:"web_url"`
}

func (d *driver) Trigger(ctx context.Context, kind Kind, variables map[string]string) (*PipelineHandle, error) {
	target, ok := d.cfg.Targets[kind]
	if !ok {
		return nil, apierr.Internal(fmt.Errorf("no CI target configured for kind %q", kind))
	}

	form := url.Values{}
	form.Set("token", d.cfg.TriggerToken)
	form.Set("ref", target.Ref)
	for k, v := range variables {
		form.Set(fmt.Sprintf("variables[%s]", k), v)
	}

	endpoint := fmt.Sprintf("%s/api/v4/projects/%s/trigger/pipeline", d.baseURL, url.PathEscape(target.ProjectID))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, apierr.Internal(err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := d.http.Do(req)
	if err != nil {
		return nil, apierr.UpstreamUnavailable(fmt.Errorf("trigger pipeline: %w", err))
	}
	defer httpx.DrainAndClose(resp)

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, apierr.UpstreamRejected(fmt.Errorf("trigger pipeline: CI rejected credentials (%d)", resp.StatusCode))
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, apierr.UpstreamRejected(fmt.Errorf("trigger pipeline: CI returned %d: %s", resp.StatusCode, httpx.ErrorBody(resp)))
	}

	var pr pipelineResponse
	if err := json.NewDecoder(resp.Body).Decode(&pr); err != nil {
		return nil, apierr.UpstreamRejected(fmt.Errorf("trigger pipeline: decode response: %w", err))
	}
	if pr.ID == 0 {
		return nil, apierr.UpstreamRejected(fmt.Errorf("trigger pipeline: CI response carried no pipeline id"))
	}

	d.log.Info("pipeline triggered", "kind", string(kind), "pipeline_id", pr.ID, "project", target.ProjectID, "ref", target.Ref)
	return &PipelineHandle{ID: pr.ID, URL: pr.WebURL}, nil
}

func (d *driver) TriggerInline(ctx context.Context, kind Kind, variables map[string]string, document string) (*PipelineHandle, error) {
	merged := make(map[string]string, len(variables)+1)
	for k, v := range variables {
		merged[k] = v
	}
	merged[InlineDocumentVariable] = base64.StdEncoding.EncodeToString([]byte(document))
	return d.Trigger(ctx, kind, merged)
}

func (d *driver) Query(ctx context.Context, kind Kind, pipelineID int64) (*PipelineState, error) {
	target, ok := d.cfg.Targets[kind]
	if !ok {
		return nil, apierr.Internal(fmt.Errorf("no CI target configured for kind %q", kind))
	}

	endpoint := fmt.Sprintf("%s/api/v4/projects/%s/pipelines/%d", d.baseURL, url.PathEscape(target.ProjectID), pipelineID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, apierr.Internal(err)
	}
	if d.cfg.AccessToken != "" {
		req.Header.Set("PRIVATE-TOKEN", d.cfg.AccessToken)
	}

	resp, err := d.http.Do(req)
	if err != nil {
		return nil, apierr.UpstreamUnavailable(fmt.Errorf("query pipeline %d: %w", pipelineID, err))
	}
	defer httpx.DrainAndClose(resp)

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, apierr.NotFoundf("pipeline %d not found in CI", pipelineID)
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, apierr.UpstreamRejected(fmt.Errorf("query pipeline %d: CI rejected credentials (%d)", pipelineID, resp.StatusCode))
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, apierr.UpstreamRejected(fmt.Errorf("query pipeline %d: CI returned %d", pipelineID, resp.StatusCode))
	}

	var pr pipelineResponse
	if err := json.NewDecoder(resp.Body).Decode(&pr); err != nil {
		return nil, apierr.UpstreamRejected(fmt.Errorf("query pipeline %d: decode response: %w", pipelineID, err))
	}
	return &PipelineState{State: pr.Status, URL: pr.WebURL}, nil
}
