package services

import (
	"encoding/json"
	"fmt"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/asterlab/mission-gateway/internal/clients/ci"
	"github.com/asterlab/mission-gateway/internal/clients/cwl"
	"github.com/asterlab/mission-gateway/internal/data/repos"
	types "github.com/asterlab/mission-gateway/internal/domain"
	"github.com/asterlab/mission-gateway/internal/domain/lifecycle"
	"github.com/asterlab/mission-gateway/internal/pkg/dbctx"
	"github.com/asterlab/mission-gateway/internal/platform/apierr"
	"github.com/asterlab/mission-gateway/internal/platform/logger"
)

type DeployRequest struct {
	Href   string
	Inline string
}

type DeploymentService interface {
	// Deploy reads the workflow document, rejects duplicates of a live
	// process, triggers the CI pipeline and records the deployment in state
	// accepted.
	Deploy(dbc dbctx.Context, principal *types.Principal, req DeployRequest) (*types.Deployment, error)
	// Redeploy re-triggers the pipeline for an owned process; the document
	// must carry the same natural key as the process being replaced.
	Redeploy(dbc dbctx.Context, principal *types.Principal, processID int64, req DeployRequest) (*types.Deployment, error)
	// Poll refreshes a non-terminal deployment from the CI and reports
	// whether this call observed the successful promotion.
	Poll(dbc dbctx.Context, jobID int64) (d *types.Deployment, promoted bool, err error)
	List(dbc dbctx.Context, principal *types.Principal) ([]*types.Deployment, error)
	// HandleWebhook applies a pipeline event to the matching deployment.
	// It reports false when no deployment owns the pipeline so the caller
	// can offer the event to the build tracker instead.
	HandleWebhook(dbc dbctx.Context, pipelineID int64, pipelineState string) (bool, error)
}

type deploymentService struct {
	db          *gorm.DB
	log         *logger.Logger
	deployments repos.DeploymentRepo
	catalog     CatalogService
	reader      cwl.Reader
	driver      ci.Driver
	venue       string
}

func NewDeploymentService(
	db *gorm.DB,
	baseLog *logger.Logger,
	deployments repos.DeploymentRepo,
	catalog CatalogService,
	reader cwl.Reader,
	driver ci.Driver,
	venue string,
) DeploymentService {
	return &deploymentService{
		db:          db,
		log:         baseLog.With("service", "DeploymentService"),
		deployments: deployments,
		catalog:     catalog,
		reader:      reader,
		driver:      driver,
		venue:       venue,
	}
}

func (s *deploymentService) Deploy(dbc dbctx.Context, principal *types.Principal, req DeployRequest) (*types.Deployment, error) {
	meta, err := s.reader.Read(dbc.Ctx, cwl.Source{URL: req.Href, Inline: req.Inline})
	if err != nil {
		return nil, err
	}

	existing, err := s.catalog.FindDeployedDuplicate(dbc, meta.Ident, meta.Version, principal.ID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, apierr.Conflict(
			fmt.Errorf("process %s:%s is already deployed", meta.Ident, meta.Version),
			map[string]any{"processID": existing.ProcessID},
		)
	}

	return s.startPipeline(dbc, principal, meta, req)
}

func (s *deploymentService) Redeploy(dbc dbctx.Context, principal *types.Principal, processID int64, req DeployRequest) (*types.Deployment, error) {
	p, err := s.catalog.Get(dbc, processID)
	if err != nil {
		return nil, err
	}
	if p.Status != types.ProcessDeployed {
		return nil, apierr.NotFoundf("process %d not found", processID)
	}
	if p.DeployerID != principal.ID && !principal.IsAdmin() {
		return nil, apierr.Forbiddenf("only the deployer or an admin may replace process %d", processID)
	}

	meta, err := s.reader.Read(dbc.Ctx, cwl.Source{URL: req.Href, Inline: req.Inline})
	if err != nil {
		return nil, err
	}
	if meta.Ident != p.Ident || meta.Version != p.Version {
		return nil, apierr.InvalidRequestf(
			"replacement document identifies %s:%s, process %d is %s:%s",
			meta.Ident, meta.Version, processID, p.Ident, p.Version,
		)
	}

	return s.startPipeline(dbc, principal, meta, req)
}

func (s *deploymentService) startPipeline(dbc dbctx.Context, principal *types.Principal, meta *cwl.Metadata, req DeployRequest) (*types.Deployment, error) {
	variables := map[string]string{
		"PROCESS_IDENT":   meta.Ident,
		"PROCESS_VERSION": meta.Version,
		"SOURCE_REPO_URL": meta.SourceRepoURL,
		"SOURCE_COMMIT":   meta.SourceCommit,
		"DEPLOYER":        principal.Username,
		"VENUE":           s.venue,
	}

	var handle *ci.PipelineHandle
	var err error
	if req.Inline != "" {
		handle, err = s.driver.TriggerInline(dbc.Ctx, ci.KindProcessDeploy, variables, meta.Raw)
	} else {
		variables["WORKFLOW_DOC_URL"] = req.Href
		handle, err = s.driver.Trigger(dbc.Ctx, ci.KindProcessDeploy, variables)
	}
	if err != nil {
		return nil, err
	}

	keywords := datatypes.JSON([]byte(`[]`))
	if len(meta.Keywords) > 0 {
		if b, err := json.Marshal(meta.Keywords); err == nil {
			keywords = datatypes.JSON(b)
		}
	}

	d := &types.Deployment{
		Ident:          meta.Ident,
		Version:        meta.Version,
		DeployerID:     principal.ID,
		Title:          meta.Title,
		Description:    meta.Description,
		Keywords:       keywords,
		Author:         meta.Author,
		WorkflowDocURL: req.Href,
		SourceRepoURL:  meta.SourceRepoURL,
		SourceCommit:   meta.SourceCommit,
		RAMMin:         meta.RAMMin,
		CoresMin:       meta.CoresMin,
		BaseCommand:    meta.BaseCommand,
		PipelineID:     handle.ID,
		PipelineURL:    handle.URL,
		ExecutionVenue: s.venue,
		Status:         types.StatusAccepted,
	}
	if err := s.deployments.Create(dbc, d); err != nil {
		return nil, apierr.Internal(err)
	}
	s.log.Info("deployment accepted",
		"deployment_job_id", d.JobID,
		"process", meta.Ident+":"+meta.Version,
		"pipeline_id", handle.ID,
		"deployer", principal.ID,
	)
	return d, nil
}

func (s *deploymentService) Poll(dbc dbctx.Context, jobID int64) (*types.Deployment, bool, error) {
	d, err := s.deployments.GetByID(dbc, jobID)
	if err != nil {
		return nil, false, apierr.Internal(err)
	}
	if d == nil {
		return nil, false, apierr.NotFoundf("deployment %d not found", jobID)
	}
	if d.Status.Terminal() {
		return d, false, nil
	}

	state, err := s.driver.Query(dbc.Ctx, ci.KindProcessDeploy, d.PipelineID)
	if err != nil {
		// A CI blip or a reaped pipeline reads as no progress; the record
		// itself still exists and is returned unchanged.
		s.log.Warn("pipeline query failed, keeping last known state",
			"deployment_job_id", d.JobID,
			"pipeline_id", d.PipelineID,
			"error", err,
		)
		return d, false, nil
	}
	next := lifecycle.FromPipelineState(state.State)
	if next == d.Status {
		return d, false, nil
	}

	promoted := false
	err = s.db.WithContext(dbc.Ctx).Transaction(func(tx *gorm.DB) error {
		txc := dbc.WithTx(tx)
		locked, err := s.deployments.GetByIDForUpdate(txc, jobID)
		if err != nil {
			return apierr.Internal(err)
		}
		if locked == nil {
			return apierr.NotFoundf("deployment %d not found", jobID)
		}
		changed, err := s.transitionLocked(txc, locked, next)
		if err != nil {
			return err
		}
		promoted = changed && next == types.StatusSuccessful
		d = locked
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return d, promoted, nil
}

func (s *deploymentService) List(dbc dbctx.Context, principal *types.Principal) ([]*types.Deployment, error) {
	if principal.IsAdmin() {
		out, err := s.deployments.ListAll(dbc)
		if err != nil {
			return nil, apierr.Internal(err)
		}
		return out, nil
	}
	out, err := s.deployments.ListByDeployer(dbc, principal.ID)
	if err != nil {
		return nil, apierr.Internal(err)
	}
	return out, nil
}

func (s *deploymentService) HandleWebhook(dbc dbctx.Context, pipelineID int64, pipelineState string) (bool, error) {
	next := lifecycle.FromPipelineState(pipelineState)
	matched := false
	err := s.db.WithContext(dbc.Ctx).Transaction(func(tx *gorm.DB) error {
		txc := dbc.WithTx(tx)
		d, err := s.deployments.GetByPipelineForUpdate(txc, pipelineID, s.venue)
		if err != nil {
			return apierr.Internal(err)
		}
		if d == nil {
			return nil
		}
		matched = true
		_, err = s.transitionLocked(txc, d, next)
		return err
	})
	if err != nil {
		return matched, err
	}
	return matched, nil
}

// transitionLocked applies one state-machine step to a row the caller holds
// a lock on. Terminal states are monotone: a transition out of one is a
// no-op. The catalog promotion rides the same transaction as the successful
// commit; if promotion fails, the status does not move.
func (s *deploymentService) transitionLocked(txc dbctx.Context, d *types.Deployment, next types.Status) (bool, error) {
	if d.Status.Terminal() || next == d.Status {
		return false, nil
	}
	var linked *int64
	if next == types.StatusSuccessful {
		p, err := s.catalog.Promote(txc, d)
		if err != nil {
			return false, err
		}
		linked = &p.ProcessID
		d.LinkedProcessID = linked
	}
	if err := s.deployments.UpdateStatus(txc, d.JobID, next, linked); err != nil {
		return false, apierr.Internal(err)
	}
	s.log.Info("deployment transition",
		"deployment_job_id", d.JobID,
		"from", string(d.Status),
		"to", string(next),
	)
	d.Status = next
	return true, nil
}
