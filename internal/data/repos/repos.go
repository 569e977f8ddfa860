package repos

import (
	"gorm.io/gorm"

	"github.com/asterlab/mission-gateway/internal/data/repos/builds"
	"github.com/asterlab/mission-gateway/internal/data/repos/catalog"
	"github.com/asterlab/mission-gateway/internal/data/repos/jobs"
	"github.com/asterlab/mission-gateway/internal/data/repos/queues"
	"github.com/asterlab/mission-gateway/internal/platform/logger"
)

type ProcessRepo = catalog.ProcessRepo
type DeploymentRepo = catalog.DeploymentRepo
type BuildRepo = builds.BuildRepo
type SubmissionRepo = jobs.SubmissionRepo
type QueueRepo = queues.QueueRepo

func NewProcessRepo(db *gorm.DB, baseLog *logger.Logger) ProcessRepo {
	return catalog.NewProcessRepo(db, baseLog)
}

func NewDeploymentRepo(db *gorm.DB, baseLog *logger.Logger) DeploymentRepo {
	return catalog.NewDeploymentRepo(db, baseLog)
}

func NewBuildRepo(db *gorm.DB, baseLog *logger.Logger) BuildRepo {
	return builds.NewBuildRepo(db, baseLog)
}

func NewSubmissionRepo(db *gorm.DB, baseLog *logger.Logger) SubmissionRepo {
	return jobs.NewSubmissionRepo(db, baseLog)
}

func NewQueueRepo(db *gorm.DB, baseLog *logger.Logger) QueueRepo {
	return queues.NewQueueRepo(db, baseLog)
}
