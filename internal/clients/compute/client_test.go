package compute

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/asterlab/mission-gateway/internal/platform/apierr"
	"github.com/asterlab/mission-gateway/internal/platform/logger"
)

func testClient(t *testing.T, baseURL string) Client {
	t.Helper()
	log, err := logger.New("development")
	if err != nil {
		t.Fatalf("logger init: %v", err)
	}
	c, err := NewClient(log, Config{
		BaseURL:  baseURL,
		APIKey:   "test-key",
		Timeout:  5 * time.Second,
		CacheTTL: 30 * time.Second,
	})
	if err != nil {
		t.Fatalf("client init: %v", err)
	}
	return c
}

func TestSubmitSendsPayloadAndDecodesHandle(t *testing.T) {
	t.Parallel()

	var gotPayload map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/job/submit" {
			t.Errorf("unexpected path: %q", r.URL.Path)
		}
		if got := r.Header.Get("X-API-Key"); got != "test-key" {
			t.Errorf("unexpected api key: %q", got)
		}
		json.NewDecoder(r.Body).Decode(&gotPayload)
		w.Write([]byte(`{"success": true, "result": {"id": "bj-123"}}`))
	}))
	defer srv.Close()

	dedup := true
	h, err := testClient(t, srv.URL).Submit(context.Background(), SubmitRequest{
		Type:      "job-subset_9:1.0",
		Queue:     "standard",
		Params:    map[string]interface{}{"granule_url": "s3://b/g.h5"},
		Tag:       "ops",
		Dedup:     &dedup,
		TimeLimit: 1800,
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if h.ID != "bj-123" {
		t.Fatalf("unexpected job id: got=%q", h.ID)
	}
	if gotPayload["type"] != "job-subset_9:1.0" || gotPayload["queue"] != "standard" {
		t.Fatalf("unexpected payload: %v", gotPayload)
	}
	if gotPayload["enable_dedup"] != true {
		t.Fatalf("dedup flag not forwarded: %v", gotPayload)
	}
	if gotPayload["time_limit"] != float64(1800) {
		t.Fatalf("time limit not forwarded: %v", gotPayload)
	}
}

func TestEnvelopeFailureIsUpstreamRejected(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success": false, "message": "queue does not exist"}`))
	}))
	defer srv.Close()

	_, err := testClient(t, srv.URL).Status(context.Background(), "bj-1")
	if !apierr.IsCode(err, apierr.CodeUpstreamRejected) {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestStatusNotFound(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := testClient(t, srv.URL).Status(context.Background(), "bj-missing")
	if !apierr.IsCode(err, apierr.CodeNotFound) {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestSpecIsCached(t *testing.T) {
	t.Parallel()

	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Write([]byte(`{"success": true, "result": {"type": "job-x_1:1.0", "params": []}}`))
	}))
	defer srv.Close()

	c := testClient(t, srv.URL)
	for i := 0; i < 3; i++ {
		spec, err := c.Spec(context.Background(), "job-x_1:1.0")
		if err != nil {
			t.Fatalf("spec: %v", err)
		}
		if spec.Type != "job-x_1:1.0" {
			t.Fatalf("unexpected spec type: %q", spec.Type)
		}
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Fatalf("expected a single backend call, got %d", got)
	}
}

func TestQueuesDecodesList(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/queue/list" {
			t.Errorf("unexpected path: %q", r.URL.Path)
		}
		w.Write([]byte(`{"success": true, "result": {"queues": ["gpu", "standard"]}}`))
	}))
	defer srv.Close()

	qs, err := testClient(t, srv.URL).Queues(context.Background())
	if err != nil {
		t.Fatalf("queues: %v", err)
	}
	if len(qs) != 2 || qs[0] != "gpu" || qs[1] != "standard" {
		t.Fatalf("unexpected queues: %v", qs)
	}
}

func TestListForwardsFilters(t *testing.T) {
	t.Parallel()

	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		w.Write([]byte(`{"success": true, "result": [{"id": "bj-1", "type": "job-x_1:1.0", "status": "job-completed"}]}`))
	}))
	defer srv.Close()

	start := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	jobs, err := testClient(t, srv.URL).List(context.Background(), ListFilter{
		JobType:   "job-x_1:1.0",
		Username:  "rdoe",
		StartTime: &start,
		Limit:     10,
	})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(jobs) != 1 || jobs[0].ID != "bj-1" {
		t.Fatalf("unexpected jobs: %v", jobs)
	}
	for _, want := range []string{"job_type=", "username=rdoe", "start_time=", "limit=10"} {
		if !strings.Contains(gotQuery, want) {
			t.Fatalf("query missing %q: %q", want, gotQuery)
		}
	}
}
