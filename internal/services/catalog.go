package services

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/asterlab/mission-gateway/internal/data/repos"
	types "github.com/asterlab/mission-gateway/internal/domain"
	"github.com/asterlab/mission-gateway/internal/pkg/dbctx"
	"github.com/asterlab/mission-gateway/internal/platform/apierr"
	"github.com/asterlab/mission-gateway/internal/platform/logger"
)

type CatalogService interface {
	ListDeployed(dbc dbctx.Context) ([]*types.Process, error)
	Get(dbc dbctx.Context, processID int64) (*types.Process, error)
	// FindDeployedDuplicate returns the live process for a natural key, or
	// nil when the key is free.
	FindDeployedDuplicate(dbc dbctx.Context, ident, version string, deployerID int64) (*types.Process, error)
	// Undeploy flips a live process to undeployed. Only the deployer or an
	// admin may do it; an already-undeployed process reads as not found so a
	// concurrent delete is never masked.
	Undeploy(dbc dbctx.Context, actor *types.Principal, processID int64) error
	// Promote writes or updates the catalog row for a successful deployment.
	// It must run inside the transaction that commits the deployment's
	// terminal status; dbc.Tx is required.
	Promote(dbc dbctx.Context, d *types.Deployment) (*types.Process, error)

	JobTypeName(p *types.Process) string
	ParseJobTypeName(name string) (ident string, deployerID int64, version string, ok bool)
}

type catalogService struct {
	db        *gorm.DB
	log       *logger.Logger
	processes repos.ProcessRepo
}

func NewCatalogService(db *gorm.DB, baseLog *logger.Logger, processes repos.ProcessRepo) CatalogService {
	return &catalogService{
		db:        db,
		log:       baseLog.With("service", "CatalogService"),
		processes: processes,
	}
}

func (s *catalogService) ListDeployed(dbc dbctx.Context) ([]*types.Process, error) {
	return s.processes.ListDeployed(dbc)
}

func (s *catalogService) Get(dbc dbctx.Context, processID int64) (*types.Process, error) {
	p, err := s.processes.GetByID(dbc, processID)
	if err != nil {
		return nil, apierr.Internal(err)
	}
	if p == nil {
		return nil, apierr.NotFoundf("process %d not found", processID)
	}
	return p, nil
}

func (s *catalogService) FindDeployedDuplicate(dbc dbctx.Context, ident, version string, deployerID int64) (*types.Process, error) {
	p, err := s.processes.GetDeployedByNaturalKey(dbc, ident, version, deployerID)
	if err != nil {
		return nil, apierr.Internal(err)
	}
	return p, nil
}

func (s *catalogService) Undeploy(dbc dbctx.Context, actor *types.Principal, processID int64) error {
	run := func(tx *gorm.DB) error {
		txc := dbc.WithTx(tx)
		p, err := s.processes.GetByIDForUpdate(txc, processID)
		if err != nil {
			return apierr.Internal(err)
		}
		if p == nil || p.Status != types.ProcessDeployed {
			return apierr.NotFoundf("process %d not found", processID)
		}
		if p.DeployerID != actor.ID && !actor.IsAdmin() {
			return apierr.Forbiddenf("only the deployer or an admin may undeploy process %d", processID)
		}
		if err := s.processes.MarkUndeployed(txc, processID); err != nil {
			return apierr.Internal(err)
		}
		s.log.Info("process undeployed", "process_id", processID, "actor", actor.ID)
		return nil
	}
	if dbc.Tx != nil {
		return run(dbc.Tx)
	}
	return s.db.WithContext(dbc.Ctx).Transaction(run)
}

func (s *catalogService) Promote(dbc dbctx.Context, d *types.Deployment) (*types.Process, error) {
	if dbc.Tx == nil {
		return nil, apierr.Internal(fmt.Errorf("promotion requires a transaction"))
	}

	existing, err := s.processes.GetDeployedByNaturalKeyForUpdate(dbc, d.Ident, d.Version, d.DeployerID)
	if err != nil {
		return nil, apierr.Internal(err)
	}

	now := time.Now().UTC()
	if existing != nil {
		existing.Title = d.Title
		existing.Description = d.Description
		existing.Keywords = d.Keywords
		existing.Author = d.Author
		existing.WorkflowDocURL = d.WorkflowDocURL
		existing.SourceRepoURL = d.SourceRepoURL
		existing.SourceCommit = d.SourceCommit
		existing.RAMMin = d.RAMMin
		existing.CoresMin = d.CoresMin
		existing.BaseCommand = d.BaseCommand
		existing.LastModified = now
		if err := s.processes.Save(dbc, existing); err != nil {
			return nil, apierr.Internal(err)
		}
		s.log.Info("process updated from deployment", "process_id", existing.ProcessID, "deployment_job_id", d.JobID)
		return existing, nil
	}

	p := &types.Process{
		Ident:          d.Ident,
		Version:        d.Version,
		DeployerID:     d.DeployerID,
		Title:          d.Title,
		Description:    d.Description,
		Keywords:       d.Keywords,
		Author:         d.Author,
		WorkflowDocURL: d.WorkflowDocURL,
		SourceRepoURL:  d.SourceRepoURL,
		SourceCommit:   d.SourceCommit,
		RAMMin:         d.RAMMin,
		CoresMin:       d.CoresMin,
		BaseCommand:    d.BaseCommand,
		Status:         types.ProcessDeployed,
		LastModified:   now,
	}
	if err := s.processes.Create(dbc, p); err != nil {
		return nil, apierr.Internal(err)
	}
	s.log.Info("process created from deployment", "process_id", p.ProcessID, "deployment_job_id", d.JobID)
	return p, nil
}

// JobTypeName renders the backend's naming scheme for a catalog entry:
// job-{ident}_{deployer_id}:{version}. Versions never contain ':' (the
// descriptor reader rejects them), so the mapping is reversible.
func (s *catalogService) JobTypeName(p *types.Process) string {
	return fmt.Sprintf("job-%s_%d:%s", p.Ident, p.DeployerID, p.Version)
}

func (s *catalogService) ParseJobTypeName(name string) (string, int64, string, bool) {
	rest, found := strings.CutPrefix(name, "job-")
	if !found {
		return "", 0, "", false
	}
	rest, version, found := cutLast(rest, ":")
	if !found || version == "" {
		return "", 0, "", false
	}
	ident, deployerStr, found := cutLast(rest, "_")
	if !found || ident == "" {
		return "", 0, "", false
	}
	deployerID, err := strconv.ParseInt(deployerStr, 10, 64)
	if err != nil {
		return "", 0, "", false
	}
	return ident, deployerID, version, true
}

func cutLast(s, sep string) (before, after string, found bool) {
	i := strings.LastIndex(s, sep)
	if i < 0 {
		return s, "", false
	}
	return s[:i], s[i+len(sep):], true
}
