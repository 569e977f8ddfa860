package services

import (
	"context"
	"testing"

	"github.com/asterlab/mission-gateway/internal/clients/ci"
	"github.com/asterlab/mission-gateway/internal/clients/cwl"
	"github.com/asterlab/mission-gateway/internal/data/repos"
	"github.com/asterlab/mission-gateway/internal/data/repos/testutil"
	types "github.com/asterlab/mission-gateway/internal/domain"
	"github.com/asterlab/mission-gateway/internal/pkg/dbctx"
	"github.com/asterlab/mission-gateway/internal/platform/apierr"
)

type fakeDriver struct {
	nextID   int64
	state    string
	queryErr error
}

func (f *fakeDriver) Trigger(ctx context.Context, kind ci.Kind, variables map[string]string) (*ci.PipelineHandle, error) {
	f.nextID++
	return &ci.PipelineHandle{ID: f.nextID, URL: "https://ci.example.org/p"}, nil
}

func (f *fakeDriver) TriggerInline(ctx context.Context, kind ci.Kind, variables map[string]string, document string) (*ci.PipelineHandle, error) {
	return f.Trigger(ctx, kind, variables)
}

func (f *fakeDriver) Query(ctx context.Context, kind ci.Kind, pipelineID int64) (*ci.PipelineState, error) {
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	return &ci.PipelineState{State: f.state}, nil
}

type fakeReader struct {
	meta *cwl.Metadata
}

func (f *fakeReader) Read(ctx context.Context, src cwl.Source) (*cwl.Metadata, error) {
	return f.meta, nil
}

func TestDeploymentWebhookLifecycle(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()
	dbc := dbctx.New(ctx)

	const venue = "test-venue"
	log := testutil.Logger(t)
	processRepo := repos.NewProcessRepo(tx, log)
	deploymentRepo := repos.NewDeploymentRepo(tx, log)
	catalog := NewCatalogService(tx, log, processRepo)
	svc := NewDeploymentService(tx, log, deploymentRepo, catalog, &fakeReader{}, &fakeDriver{}, venue)

	d := testutil.SeedDeployment(t, ctx, tx, "wh-subset", "3.0", 11, 900100, venue, types.StatusAccepted)

	// accepted -> running
	matched, err := svc.HandleWebhook(dbc, d.PipelineID, "running")
	if err != nil {
		t.Fatalf("webhook running: %v", err)
	}
	if !matched {
		t.Fatal("expected the pipeline to match the seeded deployment")
	}

	// running -> successful promotes into the catalog in the same step
	if _, err := svc.HandleWebhook(dbc, d.PipelineID, "success"); err != nil {
		t.Fatalf("webhook success: %v", err)
	}

	var after types.Deployment
	if err := tx.First(&after, "job_id = ?", d.JobID).Error; err != nil {
		t.Fatalf("reload deployment: %v", err)
	}
	if after.Status != types.StatusSuccessful {
		t.Fatalf("unexpected status: got=%q", after.Status)
	}
	if after.LinkedProcessID == nil {
		t.Fatal("successful deployment not linked to a catalog row")
	}

	p, err := processRepo.GetByID(dbc.WithTx(tx), *after.LinkedProcessID)
	if err != nil || p == nil {
		t.Fatalf("promoted process missing: p=%v err=%v", p, err)
	}
	if p.Status != types.ProcessDeployed || p.Ident != "wh-subset" || p.Version != "3.0" {
		t.Fatalf("unexpected promoted process: %+v", p)
	}

	// terminal states are monotone
	if _, err := svc.HandleWebhook(dbc, d.PipelineID, "failed"); err != nil {
		t.Fatalf("webhook after terminal: %v", err)
	}
	if err := tx.First(&after, "job_id = ?", d.JobID).Error; err != nil {
		t.Fatalf("reload deployment: %v", err)
	}
	if after.Status != types.StatusSuccessful {
		t.Fatalf("terminal status moved: got=%q", after.Status)
	}
}

func TestDeploymentWebhookUnknownPipeline(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	dbc := dbctx.New(context.Background())

	log := testutil.Logger(t)
	deploymentRepo := repos.NewDeploymentRepo(tx, log)
	catalog := NewCatalogService(tx, log, repos.NewProcessRepo(tx, log))
	svc := NewDeploymentService(tx, log, deploymentRepo, catalog, &fakeReader{}, &fakeDriver{}, "test-venue")

	matched, err := svc.HandleWebhook(dbc, 424242, "success")
	if err != nil {
		t.Fatalf("webhook: %v", err)
	}
	if matched {
		t.Fatal("no deployment owns this pipeline; expected no match")
	}
}

func TestPollKeepsStateWhenPipelineQueryFails(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()
	dbc := dbctx.New(ctx)

	const venue = "test-venue"
	log := testutil.Logger(t)
	catalog := NewCatalogService(tx, log, repos.NewProcessRepo(tx, log))
	driver := &fakeDriver{queryErr: apierr.NotFoundf("pipeline 900300 not found")}
	svc := NewDeploymentService(tx, log, repos.NewDeploymentRepo(tx, log), catalog, &fakeReader{}, driver, venue)

	seeded := testutil.SeedDeployment(t, ctx, tx, "blip-subset", "1.0", 51, 900300, venue, types.StatusAccepted)

	d, promoted, err := svc.Poll(dbc, seeded.JobID)
	if err != nil {
		t.Fatalf("poll during CI outage: %v", err)
	}
	if promoted {
		t.Fatal("a failed pipeline query must not promote")
	}
	if d.Status != types.StatusAccepted {
		t.Fatalf("status moved without pipeline progress: got=%q", d.Status)
	}
}

func TestDeployDuplicateCarriesExistingProcessID(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()
	dbc := dbctx.New(ctx)

	log := testutil.Logger(t)
	catalog := NewCatalogService(tx, log, repos.NewProcessRepo(tx, log))
	reader := &fakeReader{meta: &cwl.Metadata{Ident: "dup-subset", Version: "1.0"}}
	svc := NewDeploymentService(tx, log, repos.NewDeploymentRepo(tx, log), catalog, reader, &fakeDriver{}, "test-venue")

	existing := testutil.SeedProcess(t, ctx, tx, "dup-subset", "1.0", 61)
	deployer := &types.Principal{ID: 61, Username: "rdoe", Role: types.RoleMember, Status: types.PrincipalActive}

	_, err := svc.Deploy(dbc, deployer, DeployRequest{Href: "https://x/wf.cwl"})
	if !apierr.IsCode(err, apierr.CodeConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	ae := apierr.From(err)
	if got, ok := ae.Extra["processID"].(int64); !ok || got != existing.ProcessID {
		t.Fatalf("conflict does not carry the existing process id: %v", ae.Extra)
	}
}

func TestUndeployTwiceIsNotFound(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()
	dbc := dbctx.New(ctx)

	log := testutil.Logger(t)
	catalog := NewCatalogService(tx, log, repos.NewProcessRepo(tx, log))

	p := testutil.SeedProcess(t, ctx, tx, "bye-subset", "1.0", 71)
	owner := &types.Principal{ID: 71, Username: "rdoe", Role: types.RoleMember, Status: types.PrincipalActive}

	if err := catalog.Undeploy(dbc, owner, p.ProcessID); err != nil {
		t.Fatalf("first undeploy: %v", err)
	}
	if err := catalog.Undeploy(dbc, owner, p.ProcessID); !apierr.IsCode(err, apierr.CodeNotFound) {
		t.Fatalf("expected not found on a repeated undeploy, got %v", err)
	}
}

func TestRedeployRejectsForeignProcess(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()
	dbc := dbctx.New(ctx)

	log := testutil.Logger(t)
	catalog := NewCatalogService(tx, log, repos.NewProcessRepo(tx, log))
	reader := &fakeReader{meta: &cwl.Metadata{Ident: "owned", Version: "1.0"}}
	svc := NewDeploymentService(tx, log, repos.NewDeploymentRepo(tx, log), catalog, reader, &fakeDriver{}, "test-venue")

	owner := testutil.SeedProcess(t, ctx, tx, "owned", "1.0", 21)

	stranger := &types.Principal{ID: 22, Username: "eve", Role: types.RoleMember, Status: types.PrincipalActive}
	if _, err := svc.Redeploy(dbc, stranger, owner.ProcessID, DeployRequest{Href: "https://x/wf.cwl"}); err == nil {
		t.Fatal("expected redeploy by non-owner to fail")
	}

	admin := &types.Principal{ID: 23, Username: "root", Role: types.RoleAdmin, Status: types.PrincipalActive}
	if _, err := svc.Redeploy(dbc, admin, owner.ProcessID, DeployRequest{Href: "https://x/wf.cwl"}); err != nil {
		t.Fatalf("admin redeploy: %v", err)
	}
}
