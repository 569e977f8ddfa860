package cwl

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/asterlab/mission-gateway/internal/pkg/httpx"
	"github.com/asterlab/mission-gateway/internal/platform/apierr"
	"github.com/asterlab/mission-gateway/internal/platform/logger"
)

const maxDocumentBytes = 4 << 20

// Metadata is the fixed field set extracted from a workflow document.
// Everything except Ident and Version may be empty; the reader never guesses
// a value the document does not carry.
type Metadata struct {
	Ident         string
	Version       string
	Title         string
	Description   string
	Keywords      []string
	SourceRepoURL string
	SourceCommit  string
	Author        string
	RAMMin        int
	CoresMin      int
	BaseCommand   string
	Raw           string
}

// Source is either a URL to fetch or the document text itself.
type Source struct {
	URL    string
	Inline string
}

type Reader interface {
	Read(ctx context.Context, src Source) (*Metadata, error)
}

type reader struct {
	log  *logger.Logger
	http *http.Client
}

func NewReader(baseLog *logger.Logger, timeout time.Duration) Reader {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &reader{
		log:  baseLog.With("client", "CWLReader"),
		http: &http.Client{Timeout: timeout},
	}
}

// The s:... metadata lines are freeform schema.org annotations; the ecosystem
// is too loose to parse them structurally, so they are matched by scoped
// regex on the raw text while the object graph itself goes through YAML.
var (
	versionRe  = regexp.MustCompile(`(?m)^\s*s:version:\s*["']?([^"'\s]+)`)
	keywordsRe = regexp.MustCompile(`(?m)^\s*s:keywords:\s*["']?([^"'\n]+)`)
	repoRe     = regexp.MustCompile(`(?m)^\s*s:codeRepository:\s*["']?([^"'\s]+)`)
	commitRe   = regexp.MustCompile(`(?m)^\s*s:commitHash:\s*["']?([^"'\s]+)`)
	authorRe   = regexp.MustCompile(`(?m)^\s*s:author:[ \t]*["']?([^"'\n{[-][^"'\n]*)`)
	authorNmRe = regexp.MustCompile(`(?ms)s:author:.*?s:name:\s*["']?([^"'\n]+)`)
)

func (r *reader) Read(ctx context.Context, src Source) (*Metadata, error) {
	raw := src.Inline
	if raw == "" {
		fetched, err := r.fetch(ctx, src.URL)
		if err != nil {
			return nil, err
		}
		raw = fetched
	}
	if strings.TrimSpace(raw) == "" {
		return nil, apierr.InvalidRequestf("workflow document is empty")
	}
	return parse(raw)
}

func (r *reader) fetch(ctx context.Context, url string) (string, error) {
	if strings.TrimSpace(url) == "" {
		return "", apierr.InvalidRequestf("workflow document source missing: provide href or inline text")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", apierr.InvalidRequestf("invalid workflow document url %q: %v", url, err)
	}
	resp, err := r.http.Do(req)
	if err != nil {
		if httpx.IsUnreachable(err) {
			return "", apierr.UpstreamUnavailable(fmt.Errorf("fetch workflow document: %w", err))
		}
		return "", apierr.UpstreamRejected(fmt.Errorf("fetch workflow document: %w", err))
	}
	defer httpx.DrainAndClose(resp)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", apierr.UpstreamRejected(fmt.Errorf("fetch workflow document: host returned %d", resp.StatusCode))
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxDocumentBytes+1))
	if err != nil {
		return "", apierr.UpstreamUnavailable(fmt.Errorf("read workflow document: %w", err))
	}
	if len(body) > maxDocumentBytes {
		return "", apierr.InvalidRequestf("workflow document exceeds %d bytes", maxDocumentBytes)
	}
	return string(body), nil
}

func parse(raw string) (*Metadata, error) {
	var doc map[string]interface{}
	if err := yaml.Unmarshal([]byte(raw), &doc); err != nil {
		return nil, apierr.InvalidRequestf("workflow document is not valid YAML: %v", err)
	}

	workflow := findByClass(doc, "Workflow")
	if workflow == nil {
		return nil, apierr.InvalidRequestf("workflow document declares no Workflow object")
	}
	tool := toolFor(doc, workflow)
	if tool == nil {
		return nil, apierr.InvalidRequestf("workflow document references no CommandLineTool")
	}

	ident := identFrom(workflow)
	if ident == "" {
		return nil, apierr.InvalidRequestf("workflow self-identifier missing")
	}

	m := &Metadata{
		Ident:       ident,
		Title:       stringField(workflow, "label"),
		Description: stringField(workflow, "doc"),
		Raw:         raw,
	}

	if match := versionRe.FindStringSubmatch(raw); match != nil {
		m.Version = strings.TrimSpace(match[1])
	}
	if m.Version == "" {
		return nil, apierr.InvalidRequestf("workflow document carries no s:version")
	}
	if strings.Contains(m.Version, ":") {
		return nil, apierr.InvalidRequestf("workflow version %q must not contain ':'", m.Version)
	}

	if match := keywordsRe.FindStringSubmatch(raw); match != nil {
		for _, kw := range strings.Split(match[1], ",") {
			if kw = strings.TrimSpace(kw); kw != "" {
				m.Keywords = append(m.Keywords, kw)
			}
		}
	}
	if match := repoRe.FindStringSubmatch(raw); match != nil {
		m.SourceRepoURL = strings.TrimSpace(match[1])
	}
	if match := commitRe.FindStringSubmatch(raw); match != nil {
		m.SourceCommit = strings.TrimSpace(match[1])
	}
	if match := authorRe.FindStringSubmatch(raw); match != nil {
		m.Author = strings.TrimSpace(match[1])
	} else if match := authorNmRe.FindStringSubmatch(raw); match != nil {
		m.Author = strings.TrimSpace(match[1])
	}

	m.RAMMin, m.CoresMin = resourceHints(tool)
	m.BaseCommand = baseCommand(tool)
	return m, nil
}

// toolFor resolves the tool the workflow's first step runs. When the step's
// run reference cannot be resolved in $graph (or steps are map-shaped, which
// carries no order), the first CommandLineTool in graph order answers.
func toolFor(doc, workflow map[string]interface{}) map[string]interface{} {
	if ref := firstStepRun(workflow); ref != "" {
		if obj := findByID(doc, ref); obj != nil {
			if cls, _ := obj["class"].(string); cls == "CommandLineTool" {
				return obj
			}
		}
	}
	return findByClass(doc, "CommandLineTool")
}

func firstStepRun(workflow map[string]interface{}) string {
	steps, _ := workflow["steps"].([]interface{})
	for _, entry := range steps {
		obj, ok := entry.(map[string]interface{})
		if !ok {
			continue
		}
		if run := stringField(obj, "run"); run != "" {
			return run
		}
	}
	return ""
}

func findByID(doc map[string]interface{}, ref string) map[string]interface{} {
	want := strings.TrimPrefix(ref, "#")
	graph, _ := doc["$graph"].([]interface{})
	for _, entry := range graph {
		obj, ok := entry.(map[string]interface{})
		if !ok {
			continue
		}
		id := strings.TrimPrefix(stringField(obj, "id"), "#")
		if id == want || strings.HasSuffix(id, "/"+want) {
			return obj
		}
	}
	return nil
}

// findByClass returns the first object in the document's $graph (or the
// document itself) whose class matches.
func findByClass(doc map[string]interface{}, class string) map[string]interface{} {
	if str, _ := doc["class"].(string); str == class {
		return doc
	}
	graph, _ := doc["$graph"].([]interface{})
	for _, entry := range graph {
		obj, ok := entry.(map[string]interface{})
		if !ok {
			continue
		}
		if str, _ := obj["class"].(string); str == class {
			return obj
		}
	}
	return nil
}

// identFrom extracts the short id: fragment after '#', then the final path
// segment.
func identFrom(workflow map[string]interface{}) string {
	id := stringField(workflow, "id")
	if id == "" {
		return ""
	}
	if i := strings.LastIndex(id, "#"); i >= 0 {
		id = id[i+1:]
	}
	if i := strings.LastIndex(id, "/"); i >= 0 {
		id = id[i+1:]
	}
	return strings.TrimSpace(id)
}

func resourceHints(tool map[string]interface{}) (ramMin, coresMin int) {
	req := findRequirement(tool, "ResourceRequirement")
	if req == nil {
		return 0, 0
	}
	return intField(req, "ramMin"), intField(req, "coresMin")
}

// findRequirement handles both list-shaped and map-shaped requirement blocks.
func findRequirement(tool map[string]interface{}, class string) map[string]interface{} {
	for _, key := range []string{"requirements", "hints"} {
		switch block := tool[key].(type) {
		case []interface{}:
			for _, entry := range block {
				obj, ok := entry.(map[string]interface{})
				if !ok {
					continue
				}
				if str, _ := obj["class"].(string); str == class {
					return obj
				}
			}
		case map[string]interface{}:
			if obj, ok := block[class].(map[string]interface{}); ok {
				return obj
			}
		}
	}
	return nil
}

func baseCommand(tool map[string]interface{}) string {
	switch v := tool["baseCommand"].(type) {
	case string:
		return v
	case []interface{}:
		parts := make([]string, 0, len(v))
		for _, p := range v {
			if s, ok := p.(string); ok {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, " ")
	}
	return ""
}

func stringField(obj map[string]interface{}, key string) string {
	s, _ := obj[key].(string)
	return strings.TrimSpace(s)
}

func intField(obj map[string]interface{}, key string) int {
	switch v := obj[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return 0
}
