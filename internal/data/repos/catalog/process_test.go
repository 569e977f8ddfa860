package catalog

import (
	"context"
	"testing"

	types "github.com/asterlab/mission-gateway/internal/domain"

	"github.com/asterlab/mission-gateway/internal/data/repos/testutil"
	"github.com/asterlab/mission-gateway/internal/pkg/dbctx"
)

func TestProcessDeployedUniqueness(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()
	dbc := dbctx.New(ctx).WithTx(tx)
	repo := NewProcessRepo(db, testutil.Logger(t))

	first := testutil.SeedProcess(t, ctx, tx, "subset", "1.0", 1)

	dup := &types.Process{
		Ident:        "subset",
		Version:      "1.0",
		DeployerID:   1,
		Status:       types.ProcessDeployed,
		LastModified: first.LastModified,
	}
	if err := repo.Create(dbc, dup); err == nil {
		t.Fatal("expected duplicate deployed row to violate the partial unique index")
	}

	if err := repo.MarkUndeployed(dbc, first.ProcessID); err != nil {
		t.Fatalf("mark undeployed: %v", err)
	}

	// With the old row undeployed the natural key is free again.
	if err := repo.Create(dbc, dup); err != nil {
		t.Fatalf("re-deploy after undeploy: %v", err)
	}

	got, err := repo.GetDeployedByNaturalKey(dbc, "subset", "1.0", 1)
	if err != nil {
		t.Fatalf("get by natural key: %v", err)
	}
	if got == nil || got.ProcessID != dup.ProcessID {
		t.Fatalf("unexpected deployed row: %+v", got)
	}
}

func TestProcessGetByIDMissing(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	dbc := dbctx.New(context.Background()).WithTx(tx)
	repo := NewProcessRepo(db, testutil.Logger(t))

	got, err := repo.GetByID(dbc, 999999999)
	if err != nil {
		t.Fatalf("get by id: %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil for missing process, got %+v", got)
	}
}

func TestProcessListDeployedExcludesUndeployed(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()
	dbc := dbctx.New(ctx).WithTx(tx)
	repo := NewProcessRepo(db, testutil.Logger(t))

	live := testutil.SeedProcess(t, ctx, tx, "list-live", "1.0", 2)
	gone := testutil.SeedProcess(t, ctx, tx, "list-gone", "1.0", 2)
	if err := repo.MarkUndeployed(dbc, gone.ProcessID); err != nil {
		t.Fatalf("mark undeployed: %v", err)
	}

	all, err := repo.ListDeployed(dbc)
	if err != nil {
		t.Fatalf("list deployed: %v", err)
	}
	var sawLive, sawGone bool
	for _, p := range all {
		if p.ProcessID == live.ProcessID {
			sawLive = true
		}
		if p.ProcessID == gone.ProcessID {
			sawGone = true
		}
	}
	if !sawLive || sawGone {
		t.Fatalf("unexpected listing: live=%v gone=%v", sawLive, sawGone)
	}
}
