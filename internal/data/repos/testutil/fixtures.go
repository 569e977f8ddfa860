package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	types "github.com/asterlab/mission-gateway/internal/domain"
)

func SeedProcess(tb testing.TB, ctx context.Context, tx *gorm.DB, ident, version string, deployerID int64) *types.Process {
	tb.Helper()
	p := &types.Process{
		Ident:        ident,
		Version:      version,
		DeployerID:   deployerID,
		Title:        "seed process",
		Keywords:     datatypes.JSON([]byte(`[]`)),
		Status:       types.ProcessDeployed,
		LastModified: time.Now().UTC(),
	}
	if err := tx.WithContext(ctx).Create(p).Error; err != nil {
		tb.Fatalf("seed process: %v", err)
	}
	return p
}

func SeedDeployment(tb testing.TB, ctx context.Context, tx *gorm.DB, ident, version string, deployerID, pipelineID int64, venue string, status types.Status) *types.Deployment {
	tb.Helper()
	d := &types.Deployment{
		Ident:          ident,
		Version:        version,
		DeployerID:     deployerID,
		Keywords:       datatypes.JSON([]byte(`[]`)),
		PipelineID:     pipelineID,
		ExecutionVenue: venue,
		Status:         status,
	}
	if err := tx.WithContext(ctx).Create(d).Error; err != nil {
		tb.Fatalf("seed deployment: %v", err)
	}
	return d
}

func SeedBuild(tb testing.TB, ctx context.Context, tx *gorm.DB, requesterID, pipelineID int64, venue string, status types.Status) *types.Build {
	tb.Helper()
	b := &types.Build{
		BuildID:        uuid.NewString(),
		RequesterID:    requesterID,
		RepositoryURL:  "https://git.example.com/org/repo.git",
		BranchRef:      "main",
		PipelineID:     pipelineID,
		ExecutionVenue: venue,
		Status:         status,
	}
	if err := tx.WithContext(ctx).Create(b).Error; err != nil {
		tb.Fatalf("seed build: %v", err)
	}
	return b
}

func SeedQueue(tb testing.TB, ctx context.Context, tx *gorm.DB, name string, guestTier, isDefault bool, timeLimitMinutes *int) *types.Queue {
	tb.Helper()
	q := &types.Queue{
		Name:             name,
		GuestTier:        guestTier,
		IsDefault:        isDefault,
		TimeLimitMinutes: timeLimitMinutes,
	}
	if err := tx.WithContext(ctx).Create(q).Error; err != nil {
		tb.Fatalf("seed queue: %v", err)
	}
	return q
}

func GrantQueue(tb testing.TB, ctx context.Context, tx *gorm.DB, orgName string, principalID, queueID int64) {
	tb.Helper()
	org := &types.Organization{Name: orgName}
	if err := tx.WithContext(ctx).Create(org).Error; err != nil {
		tb.Fatalf("seed organization: %v", err)
	}
	if err := tx.WithContext(ctx).Create(&types.OrganizationMember{
		OrganizationID: org.ID,
		PrincipalID:    principalID,
	}).Error; err != nil {
		tb.Fatalf("seed organization member: %v", err)
	}
	if err := tx.WithContext(ctx).Create(&types.OrganizationQueue{
		OrganizationID: org.ID,
		QueueID:        queueID,
	}).Error; err != nil {
		tb.Fatalf("seed organization queue: %v", err)
	}
}
