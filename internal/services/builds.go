package services

import (
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/asterlab/mission-gateway/internal/clients/ci"
	"github.com/asterlab/mission-gateway/internal/data/repos"
	types "github.com/asterlab/mission-gateway/internal/domain"
	"github.com/asterlab/mission-gateway/internal/domain/lifecycle"
	"github.com/asterlab/mission-gateway/internal/pkg/dbctx"
	"github.com/asterlab/mission-gateway/internal/platform/apierr"
	"github.com/asterlab/mission-gateway/internal/platform/logger"
)

type BuildRequest struct {
	RepositoryURL string
	BranchRef     string
}

// BuildService tracks raw container builds: same lifecycle as deployments,
// no catalog side-effect, owner-or-admin reads.
type BuildService interface {
	Create(dbc dbctx.Context, principal *types.Principal, req BuildRequest) (*types.Build, error)
	Get(dbc dbctx.Context, principal *types.Principal, buildID string) (*types.Build, error)
	List(dbc dbctx.Context, principal *types.Principal) ([]*types.Build, error)
	HandleWebhook(dbc dbctx.Context, pipelineID int64, pipelineState string) (bool, error)
}

type buildService struct {
	db     *gorm.DB
	log    *logger.Logger
	builds repos.BuildRepo
	driver ci.Driver
	venue  string
}

func NewBuildService(db *gorm.DB, baseLog *logger.Logger, builds repos.BuildRepo, driver ci.Driver, venue string) BuildService {
	return &buildService{
		db:     db,
		log:    baseLog.With("service", "BuildService"),
		builds: builds,
		driver: driver,
		venue:  venue,
	}
}

func (s *buildService) Create(dbc dbctx.Context, principal *types.Principal, req BuildRequest) (*types.Build, error) {
	repoURL := strings.TrimSpace(req.RepositoryURL)
	if repoURL == "" {
		return nil, apierr.InvalidRequestf("repository URL required")
	}
	branch := strings.TrimSpace(req.BranchRef)
	if branch == "" {
		branch = "main"
	}

	handle, err := s.driver.Trigger(dbc.Ctx, ci.KindBuild, map[string]string{
		"REPOSITORY_URL": repoURL,
		"BRANCH_REF":     branch,
		"REQUESTER":      principal.Username,
		"VENUE":          s.venue,
	})
	if err != nil {
		return nil, err
	}

	b := &types.Build{
		BuildID:        uuid.NewString(),
		RequesterID:    principal.ID,
		RepositoryURL:  repoURL,
		BranchRef:      branch,
		PipelineID:     handle.ID,
		PipelineURL:    handle.URL,
		ExecutionVenue: s.venue,
		Status:         types.StatusAccepted,
	}
	if err := s.builds.Create(dbc, b); err != nil {
		return nil, apierr.Internal(err)
	}
	s.log.Info("build accepted", "build_id", b.BuildID, "pipeline_id", handle.ID, "requester", principal.ID)
	return b, nil
}

func (s *buildService) Get(dbc dbctx.Context, principal *types.Principal, buildID string) (*types.Build, error) {
	b, err := s.builds.GetByID(dbc, buildID)
	if err != nil {
		return nil, apierr.Internal(err)
	}
	if b == nil {
		return nil, apierr.NotFoundf("build %s not found", buildID)
	}
	if b.RequesterID != principal.ID && !principal.IsAdmin() {
		return nil, apierr.Forbiddenf("build %s belongs to another principal", buildID)
	}

	if b.Status.Terminal() {
		return b, nil
	}
	state, err := s.driver.Query(dbc.Ctx, ci.KindBuild, b.PipelineID)
	if err != nil {
		// Refresh-on-read tolerates CI outages; the stored record answers.
		s.log.Warn("pipeline query failed, keeping last known state",
			"build_id", b.BuildID,
			"pipeline_id", b.PipelineID,
			"error", err,
		)
		return b, nil
	}
	next := lifecycle.FromPipelineState(state.State)
	if next == b.Status {
		return b, nil
	}

	err = s.db.WithContext(dbc.Ctx).Transaction(func(tx *gorm.DB) error {
		txc := dbc.WithTx(tx)
		locked, err := s.builds.GetByIDForUpdate(txc, buildID)
		if err != nil {
			return apierr.Internal(err)
		}
		if locked == nil {
			return apierr.NotFoundf("build %s not found", buildID)
		}
		if err := s.transitionLocked(txc, locked, next); err != nil {
			return err
		}
		b = locked
		return nil
	})
	if err != nil {
		return nil, err
	}
	return b, nil
}

func (s *buildService) List(dbc dbctx.Context, principal *types.Principal) ([]*types.Build, error) {
	if principal.IsAdmin() {
		out, err := s.builds.ListAll(dbc)
		if err != nil {
			return nil, apierr.Internal(err)
		}
		return out, nil
	}
	out, err := s.builds.ListByRequester(dbc, principal.ID)
	if err != nil {
		return nil, apierr.Internal(err)
	}
	return out, nil
}

func (s *buildService) HandleWebhook(dbc dbctx.Context, pipelineID int64, pipelineState string) (bool, error) {
	next := lifecycle.FromPipelineState(pipelineState)
	matched := false
	err := s.db.WithContext(dbc.Ctx).Transaction(func(tx *gorm.DB) error {
		txc := dbc.WithTx(tx)
		b, err := s.builds.GetByPipelineForUpdate(txc, pipelineID, s.venue)
		if err != nil {
			return apierr.Internal(err)
		}
		if b == nil {
			return nil
		}
		matched = true
		return s.transitionLocked(txc, b, next)
	})
	if err != nil {
		return matched, err
	}
	return matched, nil
}

func (s *buildService) transitionLocked(txc dbctx.Context, b *types.Build, next types.Status) error {
	if b.Status.Terminal() || next == b.Status {
		return nil
	}
	if err := s.builds.UpdateStatus(txc, b.BuildID, next); err != nil {
		return apierr.Internal(err)
	}
	s.log.Info("build transition", "build_id", b.BuildID, "from", string(b.Status), "to", string(next))
	b.Status = next
	return nil
}
