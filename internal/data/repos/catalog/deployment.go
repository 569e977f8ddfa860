package catalog

import (
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/asterlab/mission-gateway/internal/domain"
	"github.com/asterlab/mission-gateway/internal/pkg/dbctx"
	"github.com/asterlab/mission-gateway/internal/platform/logger"
)

type DeploymentRepo interface {
	Create(dbc dbctx.Context, d *types.Deployment) error
	GetByID(dbc dbctx.Context, jobID int64) (*types.Deployment, error)
	// GetByIDForUpdate and GetByPipelineForUpdate take a row lock; polls and
	// webhooks racing on the same deployment serialize on it.
	GetByIDForUpdate(dbc dbctx.Context, jobID int64) (*types.Deployment, error)
	GetByPipelineForUpdate(dbc dbctx.Context, pipelineID int64, venue string) (*types.Deployment, error)
	ListByDeployer(dbc dbctx.Context, deployerID int64) ([]*types.Deployment, error)
	ListAll(dbc dbctx.Context) ([]*types.Deployment, error)
	UpdateStatus(dbc dbctx.Context, jobID int64, status types.Status, linkedProcessID *int64) error
}

type deploymentRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewDeploymentRepo(db *gorm.DB, baseLog *logger.Logger) DeploymentRepo {
	return &deploymentRepo{
		db:  db,
		log: baseLog.With("repo", "DeploymentRepo"),
	}
}

func (r *deploymentRepo) conn(dbc dbctx.Context) *gorm.DB {
	if dbc.Tx != nil {
		return dbc.Tx.WithContext(dbc.Ctx)
	}
	return r.db.WithContext(dbc.Ctx)
}

func (r *deploymentRepo) Create(dbc dbctx.Context, d *types.Deployment) error {
	return r.conn(dbc).Create(d).Error
}

func (r *deploymentRepo) GetByID(dbc dbctx.Context, jobID int64) (*types.Deployment, error) {
	return r.get(dbc, "job_id = ?", []interface{}{jobID}, false)
}

func (r *deploymentRepo) GetByIDForUpdate(dbc dbctx.Context, jobID int64) (*types.Deployment, error) {
	return r.get(dbc, "job_id = ?", []interface{}{jobID}, true)
}

func (r *deploymentRepo) GetByPipelineForUpdate(dbc dbctx.Context, pipelineID int64, venue string) (*types.Deployment, error) {
	return r.get(dbc, "pipeline_id = ? AND execution_venue = ?", []interface{}{pipelineID, venue}, true)
}

func (r *deploymentRepo) get(dbc dbctx.Context, cond string, args []interface{}, lock bool) (*types.Deployment, error) {
	q := r.conn(dbc)
	if lock {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var d types.Deployment
	err := q.Where(cond, args...).Limit(1).Find(&d).Error
	if err != nil {
		return nil, err
	}
	if d.JobID == 0 {
		return nil, nil
	}
	return &d, nil
}

func (r *deploymentRepo) ListByDeployer(dbc dbctx.Context, deployerID int64) ([]*types.Deployment, error) {
	var out []*types.Deployment
	err := r.conn(dbc).
		Where("deployer_id = ?", deployerID).
		Order("created_at DESC").
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *deploymentRepo) ListAll(dbc dbctx.Context) ([]*types.Deployment, error) {
	var out []*types.Deployment
	err := r.conn(dbc).
		Order("created_at DESC").
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *deploymentRepo) UpdateStatus(dbc dbctx.Context, jobID int64, status types.Status, linkedProcessID *int64) error {
	updates := map[string]interface{}{
		"status":     status,
		"updated_at": time.Now().UTC(),
	}
	if linkedProcessID != nil {
		updates["linked_process_id"] = *linkedProcessID
	}
	return r.conn(dbc).
		Model(&types.Deployment{}).
		Where("job_id = ?", jobID).
		Updates(updates).Error
}
