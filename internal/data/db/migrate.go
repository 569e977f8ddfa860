package db

import (
	"gorm.io/gorm"

	types "github.com/asterlab/mission-gateway/internal/domain"
)

func AutoMigrateAll(db *gorm.DB) error {
	return db.AutoMigrate(
		&types.Process{},
		&types.Deployment{},
		&types.Build{},
		&types.JobSubmission{},

		&types.Queue{},
		&types.Organization{},
		&types.OrganizationMember{},
		&types.OrganizationQueue{},
	)
}
