package queues

import (
	"gorm.io/gorm"

	types "github.com/asterlab/mission-gateway/internal/domain"
	"github.com/asterlab/mission-gateway/internal/pkg/dbctx"
	"github.com/asterlab/mission-gateway/internal/platform/logger"
)

type QueueRepo interface {
	GetByName(dbc dbctx.Context, name string) (*types.Queue, error)
	// ListEligible returns the union of guest-tier queues and queues granted
	// to any organization the principal belongs to, ordered by name for a
	// stable default selection.
	ListEligible(dbc dbctx.Context, principalID int64) ([]*types.Queue, error)
	ListAll(dbc dbctx.Context) ([]*types.Queue, error)
}

type queueRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewQueueRepo(db *gorm.DB, baseLog *logger.Logger) QueueRepo {
	return &queueRepo{
		db:  db,
		log: baseLog.With("repo", "QueueRepo"),
	}
}

func (r *queueRepo) conn(dbc dbctx.Context) *gorm.DB {
	if dbc.Tx != nil {
		return dbc.Tx.WithContext(dbc.Ctx)
	}
	return r.db.WithContext(dbc.Ctx)
}

func (r *queueRepo) GetByName(dbc dbctx.Context, name string) (*types.Queue, error) {
	var q types.Queue
	err := r.conn(dbc).
		Where("name = ?", name).
		Limit(1).
		Find(&q).Error
	if err != nil {
		return nil, err
	}
	if q.ID == 0 {
		return nil, nil
	}
	return &q, nil
}

func (r *queueRepo) ListEligible(dbc dbctx.Context, principalID int64) ([]*types.Queue, error) {
	var out []*types.Queue
	err := r.conn(dbc).
		Where(`guest_tier = TRUE OR id IN (
			SELECT oq.queue_id
			FROM organization_queue oq
			JOIN organization_member om ON om.organization_id = oq.organization_id
			WHERE om.principal_id = ?
		)`, principalID).
		Order("name ASC").
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *queueRepo) ListAll(dbc dbctx.Context) ([]*types.Queue, error) {
	var out []*types.Queue
	err := r.conn(dbc).
		Order("name ASC").
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}
