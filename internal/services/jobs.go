package services

import (
	"time"

	"gorm.io/gorm"

	"github.com/asterlab/mission-gateway/internal/clients/compute"
	"github.com/asterlab/mission-gateway/internal/data/repos"
	types "github.com/asterlab/mission-gateway/internal/domain"
	"github.com/asterlab/mission-gateway/internal/pkg/dbctx"
	"github.com/asterlab/mission-gateway/internal/platform/apierr"
	"github.com/asterlab/mission-gateway/internal/platform/logger"
)

type SubmitJobRequest struct {
	Inputs map[string]interface{}
	Queue  string
	Dedup  *bool
	Tag    string
}

// JobView is the stable projection of a backend job the HTTP surface
// returns; the backend's dialect never leaks past this shape.
type JobView struct {
	ID        string     `json:"id"`
	Status    string     `json:"status"`
	Type      string     `json:"type,omitempty"`
	ProcessID *int64     `json:"processID,omitempty"`
	Queue     string     `json:"queue,omitempty"`
	Tags      []string   `json:"tags,omitempty"`
	Started   *time.Time `json:"started,omitempty"`
	Finished  *time.Time `json:"finished,omitempty"`
	Traceback string     `json:"traceback,omitempty"`
}

type JobListParams struct {
	ProcessID   *int64
	JobType     string
	Tag         string
	Queue       string
	Status      string
	Username    string
	StartTime   *time.Time
	EndTime     *time.Time
	MinDuration time.Duration
	MaxDuration time.Duration
	Limit       int
	Offset      int
	Detailed    bool
}

type JobService interface {
	Submit(dbc dbctx.Context, principal *types.Principal, processID int64, req SubmitJobRequest) (*JobView, error)
	Status(dbc dbctx.Context, backendJobID string) (*JobView, error)
	Results(dbc dbctx.Context, backendJobID string) ([]map[string]interface{}, error)
	Metrics(dbc dbctx.Context, backendJobID string) (map[string]interface{}, error)
	Cancel(dbc dbctx.Context, backendJobID string, wait bool) (*JobView, error)
	List(dbc dbctx.Context, principal *types.Principal, params JobListParams) ([]*JobView, error)
}

type jobService struct {
	db          *gorm.DB
	log         *logger.Logger
	submissions repos.SubmissionRepo
	catalog     CatalogService
	admission   AdmissionService
	inputs      InputService
	backend     compute.Client
}

func NewJobService(
	db *gorm.DB,
	baseLog *logger.Logger,
	submissions repos.SubmissionRepo,
	catalog CatalogService,
	admission AdmissionService,
	inputs InputService,
	backend compute.Client,
) JobService {
	return &jobService{
		db:          db,
		log:         baseLog.With("service", "JobService"),
		submissions: submissions,
		catalog:     catalog,
		admission:   admission,
		inputs:      inputs,
		backend:     backend,
	}
}

func (s *jobService) Submit(dbc dbctx.Context, principal *types.Principal, processID int64, req SubmitJobRequest) (*JobView, error) {
	p, err := s.catalog.Get(dbc, processID)
	if err != nil {
		return nil, err
	}
	if p.Status != types.ProcessDeployed {
		return nil, apierr.NotFoundf("process %d not found", processID)
	}
	jobType := s.catalog.JobTypeName(p)

	spec, err := s.backend.Spec(dbc.Ctx, jobType)
	if err != nil {
		return nil, err
	}

	params, err := s.inputs.Validate(spec, req.Inputs, principal)
	if err != nil {
		return nil, err
	}

	queue, err := s.admission.Admit(dbc, principal, jobType, req.Queue)
	if err != nil {
		return nil, err
	}

	timeLimit := queue.TimeLimitSeconds()
	if timeLimit == 0 {
		timeLimit = spec.SoftTimeLimit
	}

	handle, err := s.backend.Submit(dbc.Ctx, compute.SubmitRequest{
		Type:      jobType,
		Queue:     queue.Name,
		Params:    params,
		Tag:       req.Tag,
		Dedup:     req.Dedup,
		TimeLimit: timeLimit,
	})
	if err != nil {
		return nil, err
	}

	sub := &types.JobSubmission{
		BackendJobID: handle.ID,
		SubmitterID:  principal.ID,
		ProcessID:    &p.ProcessID,
		SubmittedAt:  time.Now().UTC(),
	}
	if err := s.submissions.Create(dbc, sub); err != nil {
		return nil, apierr.Internal(err)
	}

	s.log.Info("job submitted",
		"backend_job_id", handle.ID,
		"process_id", p.ProcessID,
		"queue", queue.Name,
		"submitter", principal.ID,
	)
	return &JobView{
		ID:        handle.ID,
		Status:    string(types.StatusAccepted),
		Type:      jobType,
		ProcessID: &p.ProcessID,
		Queue:     queue.Name,
	}, nil
}

func (s *jobService) Status(dbc dbctx.Context, backendJobID string) (*JobView, error) {
	info, err := s.backend.Status(dbc.Ctx, backendJobID)
	if err != nil {
		return nil, err
	}
	return s.view(dbc, info), nil
}

func (s *jobService) Results(dbc dbctx.Context, backendJobID string) ([]map[string]interface{}, error) {
	info, err := s.backend.Status(dbc.Ctx, backendJobID)
	if err != nil {
		return nil, err
	}
	if info.Products == nil {
		return []map[string]interface{}{}, nil
	}
	return info.Products, nil
}

func (s *jobService) Metrics(dbc dbctx.Context, backendJobID string) (map[string]interface{}, error) {
	info, err := s.backend.Status(dbc.Ctx, backendJobID)
	if err != nil {
		return nil, err
	}
	if info.Metrics == nil {
		return map[string]interface{}{}, nil
	}
	return info.Metrics, nil
}

func (s *jobService) Cancel(dbc dbctx.Context, backendJobID string, wait bool) (*JobView, error) {
	info, err := s.backend.Status(dbc.Ctx, backendJobID)
	if err != nil {
		return nil, err
	}

	var res *compute.PurgeResult
	switch info.Status {
	case compute.StateStarted:
		res, err = s.backend.Revoke(dbc.Ctx, backendJobID, wait)
	case compute.StateQueued:
		res, err = s.backend.Purge(dbc.Ctx, backendJobID, wait)
	default:
		return nil, apierr.InvalidRequestf("cannot cancel job %s from state %q", backendJobID, info.Status)
	}
	if err != nil {
		return nil, err
	}
	if wait && res.State != "" && res.State != compute.StateRevoked && res.State != compute.StateCompleted {
		return nil, apierr.UpstreamRejected(
			apierr.InvalidRequestf("cancellation of %s finished in state %q", backendJobID, res.State),
		)
	}

	s.log.Info("job cancellation issued", "backend_job_id", backendJobID, "wait", wait)
	return &JobView{ID: backendJobID, Status: string(types.StatusDismissed)}, nil
}

func (s *jobService) List(dbc dbctx.Context, principal *types.Principal, params JobListParams) ([]*JobView, error) {
	filter := compute.ListFilter{
		JobType:   params.JobType,
		Tag:       params.Tag,
		Queue:     params.Queue,
		Status:    params.Status,
		Username:  params.Username,
		StartTime: params.StartTime,
		EndTime:   params.EndTime,
		Limit:     params.Limit,
		Offset:    params.Offset,
		Detailed:  params.Detailed,
	}
	// Non-admins only see their own jobs regardless of the filter.
	if !principal.IsAdmin() {
		filter.Username = principal.Username
	}
	if params.ProcessID != nil {
		p, err := s.catalog.Get(dbc, *params.ProcessID)
		if err != nil {
			return nil, err
		}
		filter.JobType = s.catalog.JobTypeName(p)
	}

	jobs, err := s.backend.List(dbc.Ctx, filter)
	if err != nil {
		return nil, err
	}

	out := make([]*JobView, 0, len(jobs))
	for _, info := range jobs {
		// Duration bounds come from the backend's reported wall times and
		// are applied here; the backend has no duration filter.
		if params.MinDuration > 0 || params.MaxDuration > 0 {
			d := info.Duration()
			if d == 0 {
				continue
			}
			if params.MinDuration > 0 && d < params.MinDuration {
				continue
			}
			if params.MaxDuration > 0 && d > params.MaxDuration {
				continue
			}
		}
		out = append(out, s.view(dbc, info))
	}
	return out, nil
}

// view projects a backend job record, relating it back to the catalog
// through the backend's job-type naming scheme when possible.
func (s *jobService) view(dbc dbctx.Context, info *compute.JobInfo) *JobView {
	v := &JobView{
		ID:        info.ID,
		Status:    externalStatus(info.Status),
		Type:      info.Type,
		Queue:     info.Queue,
		Tags:      info.Tags,
		Started:   info.TimeStart,
		Finished:  info.TimeEnd,
		Traceback: info.Traceback,
	}
	if ident, deployerID, version, ok := s.catalog.ParseJobTypeName(info.Type); ok {
		if p, err := s.catalog.FindDeployedDuplicate(dbc, ident, version, deployerID); err == nil && p != nil {
			v.ProcessID = &p.ProcessID
		}
	}
	return v
}

func externalStatus(backendState string) string {
	switch backendState {
	case compute.StateQueued:
		return string(types.StatusAccepted)
	case compute.StateStarted:
		return string(types.StatusRunning)
	case compute.StateCompleted, compute.StateDeduped:
		return string(types.StatusSuccessful)
	case compute.StateFailed, compute.StateOffline:
		return string(types.StatusFailed)
	case compute.StateRevoked:
		return string(types.StatusDismissed)
	default:
		return backendState
	}
}
