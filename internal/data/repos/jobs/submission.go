package jobs

import (
	"gorm.io/gorm"

	types "github.com/asterlab/mission-gateway/internal/domain"
	"github.com/asterlab/mission-gateway/internal/pkg/dbctx"
	"github.com/asterlab/mission-gateway/internal/platform/logger"
)

type SubmissionRepo interface {
	Create(dbc dbctx.Context, s *types.JobSubmission) error
	GetByBackendJobID(dbc dbctx.Context, backendJobID string) (*types.JobSubmission, error)
	ListBySubmitter(dbc dbctx.Context, submitterID int64, limit, offset int) ([]*types.JobSubmission, error)
}

type submissionRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewSubmissionRepo(db *gorm.DB, baseLog *logger.Logger) SubmissionRepo {
	return &submissionRepo{
		db:  db,
		log: baseLog.With("repo", "SubmissionRepo"),
	}
}

func (r *submissionRepo) conn(dbc dbctx.Context) *gorm.DB {
	if dbc.Tx != nil {
		return dbc.Tx.WithContext(dbc.Ctx)
	}
	return r.db.WithContext(dbc.Ctx)
}

func (r *submissionRepo) Create(dbc dbctx.Context, s *types.JobSubmission) error {
	return r.conn(dbc).Create(s).Error
}

func (r *submissionRepo) GetByBackendJobID(dbc dbctx.Context, backendJobID string) (*types.JobSubmission, error) {
	var s types.JobSubmission
	err := r.conn(dbc).
		Where("backend_job_id = ?", backendJobID).
		Limit(1).
		Find(&s).Error
	if err != nil {
		return nil, err
	}
	if s.ID == 0 {
		return nil, nil
	}
	return &s, nil
}

func (r *submissionRepo) ListBySubmitter(dbc dbctx.Context, submitterID int64, limit, offset int) ([]*types.JobSubmission, error) {
	q := r.conn(dbc).
		Where("submitter_id = ?", submitterID).
		Order("submitted_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if offset > 0 {
		q = q.Offset(offset)
	}
	var out []*types.JobSubmission
	if err := q.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
