package services

import (
	"context"
	"testing"

	"github.com/asterlab/mission-gateway/internal/clients/compute"
	types "github.com/asterlab/mission-gateway/internal/domain"
	"github.com/asterlab/mission-gateway/internal/pkg/dbctx"
	"github.com/asterlab/mission-gateway/internal/platform/apierr"
)

type fakeQueueRepo struct {
	eligible []*types.Queue
}

func (f *fakeQueueRepo) GetByName(dbc dbctx.Context, name string) (*types.Queue, error) {
	for _, q := range f.eligible {
		if q.Name == name {
			return q, nil
		}
	}
	return nil, nil
}

func (f *fakeQueueRepo) ListEligible(dbc dbctx.Context, principalID int64) ([]*types.Queue, error) {
	return f.eligible, nil
}

func (f *fakeQueueRepo) ListAll(dbc dbctx.Context) ([]*types.Queue, error) {
	return f.eligible, nil
}

type fakeBackend struct {
	compute.Client
	spec *compute.JobSpec
}

func (f *fakeBackend) Spec(ctx context.Context, jobType string) (*compute.JobSpec, error) {
	return f.spec, nil
}

func queues(names ...string) []*types.Queue {
	out := make([]*types.Queue, 0, len(names))
	for i, n := range names {
		out = append(out, &types.Queue{ID: int64(i + 1), Name: n})
	}
	return out
}

func TestAdmitRequestedQueue(t *testing.T) {
	t.Parallel()
	repo := &fakeQueueRepo{eligible: queues("high-mem", "standard")}
	svc := NewAdmissionService(testLogger(t), repo, &fakeBackend{spec: &compute.JobSpec{}})

	q, err := svc.Admit(dbctx.New(context.Background()), testPrincipal(), "job-x_1:1.0", "high-mem")
	if err != nil {
		t.Fatalf("admit: %v", err)
	}
	if q.Name != "high-mem" {
		t.Fatalf("unexpected queue: got=%q", q.Name)
	}
}

func TestAdmitRejectsIneligibleQueue(t *testing.T) {
	t.Parallel()
	repo := &fakeQueueRepo{eligible: queues("standard")}
	svc := NewAdmissionService(testLogger(t), repo, &fakeBackend{spec: &compute.JobSpec{}})

	_, err := svc.Admit(dbctx.New(context.Background()), testPrincipal(), "job-x_1:1.0", "restricted")
	if err == nil {
		t.Fatal("expected admission error")
	}
	if !apierr.IsCode(err, apierr.CodeInvalidRequest) {
		t.Fatalf("unexpected error code: %v", err)
	}
}

func TestAdmitPrefersRecommendedQueue(t *testing.T) {
	t.Parallel()
	qs := queues("a-default", "gpu")
	qs[0].IsDefault = true
	repo := &fakeQueueRepo{eligible: qs}
	backend := &fakeBackend{spec: &compute.JobSpec{RecommendedQueues: []string{"gpu"}}}
	svc := NewAdmissionService(testLogger(t), repo, backend)

	q, err := svc.Admit(dbctx.New(context.Background()), testPrincipal(), "job-x_1:1.0", "")
	if err != nil {
		t.Fatalf("admit: %v", err)
	}
	if q.Name != "gpu" {
		t.Fatalf("recommended queue not chosen: got=%q", q.Name)
	}
}

func TestAdmitFallsBackToDefault(t *testing.T) {
	t.Parallel()
	qs := queues("alpha", "beta")
	qs[1].IsDefault = true
	repo := &fakeQueueRepo{eligible: qs}
	backend := &fakeBackend{spec: &compute.JobSpec{RecommendedQueues: []string{"not-eligible"}}}
	svc := NewAdmissionService(testLogger(t), repo, backend)

	q, err := svc.Admit(dbctx.New(context.Background()), testPrincipal(), "job-x_1:1.0", "")
	if err != nil {
		t.Fatalf("admit: %v", err)
	}
	if q.Name != "beta" {
		t.Fatalf("default queue not chosen: got=%q", q.Name)
	}
}

func TestAdmitNoDefaultQueue(t *testing.T) {
	t.Parallel()
	repo := &fakeQueueRepo{eligible: queues("alpha")}
	svc := NewAdmissionService(testLogger(t), repo, &fakeBackend{spec: &compute.JobSpec{}})

	_, err := svc.Admit(dbctx.New(context.Background()), testPrincipal(), "job-x_1:1.0", "")
	if err == nil {
		t.Fatal("expected admission error")
	}
	if !apierr.IsCode(err, apierr.CodeInvalidRequest) {
		t.Fatalf("unexpected error code: %v", err)
	}
}
