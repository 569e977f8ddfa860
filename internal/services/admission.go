package services

import (
	"github.com/asterlab/mission-gateway/internal/clients/compute"
	"github.com/asterlab/mission-gateway/internal/data/repos"
	types "github.com/asterlab/mission-gateway/internal/domain"
	"github.com/asterlab/mission-gateway/internal/pkg/dbctx"
	"github.com/asterlab/mission-gateway/internal/platform/apierr"
	"github.com/asterlab/mission-gateway/internal/platform/logger"
)

type AdmissionService interface {
	// Admit resolves the queue a submission will run on. A requested queue
	// must be in the principal's eligible set; with no request, the job
	// type's recommended queue wins when eligible, then any eligible default.
	Admit(dbc dbctx.Context, principal *types.Principal, jobType, requestedQueue string) (*types.Queue, error)
}

type admissionService struct {
	log     *logger.Logger
	queues  repos.QueueRepo
	backend compute.Client
}

func NewAdmissionService(baseLog *logger.Logger, queues repos.QueueRepo, backend compute.Client) AdmissionService {
	return &admissionService{
		log:     baseLog.With("service", "AdmissionService"),
		queues:  queues,
		backend: backend,
	}
}

func (s *admissionService) Admit(dbc dbctx.Context, principal *types.Principal, jobType, requestedQueue string) (*types.Queue, error) {
	eligible, err := s.queues.ListEligible(dbc, principal.ID)
	if err != nil {
		return nil, apierr.Internal(err)
	}
	byName := make(map[string]*types.Queue, len(eligible))
	for _, q := range eligible {
		byName[q.Name] = q
	}

	if requestedQueue != "" {
		q, ok := byName[requestedQueue]
		if !ok {
			return nil, apierr.InvalidRequestf("queue %q: principal %d is not eligible", requestedQueue, principal.ID)
		}
		return q, nil
	}

	spec, err := s.backend.Spec(dbc.Ctx, jobType)
	if err != nil {
		return nil, err
	}
	if len(spec.RecommendedQueues) > 0 {
		if q, ok := byName[spec.RecommendedQueues[0]]; ok {
			return q, nil
		}
	}

	// eligible is name-ordered, so default selection is stable when more
	// than one default exists.
	for _, q := range eligible {
		if q.IsDefault {
			return q, nil
		}
	}
	return nil, apierr.InvalidRequestf("no eligible default queue for principal %d and job type %q", principal.ID, jobType)
}
