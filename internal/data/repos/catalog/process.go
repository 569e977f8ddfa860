package catalog

import (
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/asterlab/mission-gateway/internal/domain"
	"github.com/asterlab/mission-gateway/internal/pkg/dbctx"
	"github.com/asterlab/mission-gateway/internal/platform/logger"
)

type ProcessRepo interface {
	Create(dbc dbctx.Context, p *types.Process) error
	GetByID(dbc dbctx.Context, processID int64) (*types.Process, error)
	GetDeployedByNaturalKey(dbc dbctx.Context, ident, version string, deployerID int64) (*types.Process, error)
	// GetDeployedByNaturalKeyForUpdate takes a row lock; call inside the
	// promotion transaction so concurrent successful webhooks serialize.
	GetDeployedByNaturalKeyForUpdate(dbc dbctx.Context, ident, version string, deployerID int64) (*types.Process, error)
	GetByIDForUpdate(dbc dbctx.Context, processID int64) (*types.Process, error)
	ListDeployed(dbc dbctx.Context) ([]*types.Process, error)
	Save(dbc dbctx.Context, p *types.Process) error
	MarkUndeployed(dbc dbctx.Context, processID int64) error
}

type processRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewProcessRepo(db *gorm.DB, baseLog *logger.Logger) ProcessRepo {
	return &processRepo{
		db:  db,
		log: baseLog.With("repo", "ProcessRepo"),
	}
}

func (r *processRepo) conn(dbc dbctx.Context) *gorm.DB {
	if dbc.Tx != nil {
		return dbc.Tx.WithContext(dbc.Ctx)
	}
	return r.db.WithContext(dbc.Ctx)
}

func (r *processRepo) Create(dbc dbctx.Context, p *types.Process) error {
	return r.conn(dbc).Create(p).Error
}

func (r *processRepo) GetByID(dbc dbctx.Context, processID int64) (*types.Process, error) {
	var p types.Process
	err := r.conn(dbc).
		Where("process_id = ?", processID).
		Limit(1).
		Find(&p).Error
	if err != nil {
		return nil, err
	}
	if p.ProcessID == 0 {
		return nil, nil
	}
	return &p, nil
}

func (r *processRepo) GetByIDForUpdate(dbc dbctx.Context, processID int64) (*types.Process, error) {
	var p types.Process
	err := r.conn(dbc).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("process_id = ?", processID).
		Limit(1).
		Find(&p).Error
	if err != nil {
		return nil, err
	}
	if p.ProcessID == 0 {
		return nil, nil
	}
	return &p, nil
}

func (r *processRepo) GetDeployedByNaturalKey(dbc dbctx.Context, ident, version string, deployerID int64) (*types.Process, error) {
	return r.getDeployed(dbc, ident, version, deployerID, false)
}

func (r *processRepo) GetDeployedByNaturalKeyForUpdate(dbc dbctx.Context, ident, version string, deployerID int64) (*types.Process, error) {
	return r.getDeployed(dbc, ident, version, deployerID, true)
}

func (r *processRepo) getDeployed(dbc dbctx.Context, ident, version string, deployerID int64, lock bool) (*types.Process, error) {
	q := r.conn(dbc)
	if lock {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var p types.Process
	err := q.
		Where("ident = ? AND version = ? AND deployer_id = ? AND status = ?",
			ident, version, deployerID, types.ProcessDeployed).
		Limit(1).
		Find(&p).Error
	if err != nil {
		return nil, err
	}
	if p.ProcessID == 0 {
		return nil, nil
	}
	return &p, nil
}

func (r *processRepo) ListDeployed(dbc dbctx.Context) ([]*types.Process, error) {
	var out []*types.Process
	err := r.conn(dbc).
		Where("status = ?", types.ProcessDeployed).
		Order("process_id ASC").
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *processRepo) Save(dbc dbctx.Context, p *types.Process) error {
	return r.conn(dbc).Save(p).Error
}

func (r *processRepo) MarkUndeployed(dbc dbctx.Context, processID int64) error {
	return r.conn(dbc).
		Model(&types.Process{}).
		Where("process_id = ?", processID).
		Updates(map[string]interface{}{
			"status":        types.ProcessUndeployed,
			"last_modified": time.Now().UTC(),
		}).Error
}
