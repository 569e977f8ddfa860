package builds

import (
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/asterlab/mission-gateway/internal/domain"
	"github.com/asterlab/mission-gateway/internal/pkg/dbctx"
	"github.com/asterlab/mission-gateway/internal/platform/logger"
)

type BuildRepo interface {
	Create(dbc dbctx.Context, b *types.Build) error
	GetByID(dbc dbctx.Context, buildID string) (*types.Build, error)
	GetByIDForUpdate(dbc dbctx.Context, buildID string) (*types.Build, error)
	GetByPipelineForUpdate(dbc dbctx.Context, pipelineID int64, venue string) (*types.Build, error)
	ListByRequester(dbc dbctx.Context, requesterID int64) ([]*types.Build, error)
	ListAll(dbc dbctx.Context) ([]*types.Build, error)
	UpdateStatus(dbc dbctx.Context, buildID string, status types.Status) error
}

type buildRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewBuildRepo(db *gorm.DB, baseLog *logger.Logger) BuildRepo {
	return &buildRepo{
		db:  db,
		log: baseLog.With("repo", "BuildRepo"),
	}
}

func (r *buildRepo) conn(dbc dbctx.Context) *gorm.DB {
	if dbc.Tx != nil {
		return dbc.Tx.WithContext(dbc.Ctx)
	}
	return r.db.WithContext(dbc.Ctx)
}

func (r *buildRepo) Create(dbc dbctx.Context, b *types.Build) error {
	return r.conn(dbc).Create(b).Error
}

func (r *buildRepo) GetByID(dbc dbctx.Context, buildID string) (*types.Build, error) {
	return r.get(dbc, "build_id = ?", []interface{}{buildID}, false)
}

func (r *buildRepo) GetByIDForUpdate(dbc dbctx.Context, buildID string) (*types.Build, error) {
	return r.get(dbc, "build_id = ?", []interface{}{buildID}, true)
}

func (r *buildRepo) GetByPipelineForUpdate(dbc dbctx.Context, pipelineID int64, venue string) (*types.Build, error) {
	return r.get(dbc, "pipeline_id = ? AND execution_venue = ?", []interface{}{pipelineID, venue}, true)
}

func (r *buildRepo) get(dbc dbctx.Context, cond string, args []interface{}, lock bool) (*types.Build, error) {
	q := r.conn(dbc)
	if lock {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var b types.Build
	err := q.Where(cond, args...).Limit(1).Find(&b).Error
	if err != nil {
		return nil, err
	}
	if b.BuildID == "" {
		return nil, nil
	}
	return &b, nil
}

func (r *buildRepo) ListByRequester(dbc dbctx.Context, requesterID int64) ([]*types.Build, error) {
	var out []*types.Build
	err := r.conn(dbc).
		Where("requester_id = ?", requesterID).
		Order("created_at DESC").
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *buildRepo) ListAll(dbc dbctx.Context) ([]*types.Build, error) {
	var out []*types.Build
	err := r.conn(dbc).
		Order("created_at DESC").
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *buildRepo) UpdateStatus(dbc dbctx.Context, buildID string, status types.Status) error {
	return r.conn(dbc).
		Model(&types.Build{}).
		Where("build_id = ?", buildID).
		Updates(map[string]interface{}{
			"status":     status,
			"updated_at": time.Now().UTC(),
		}).Error
}
