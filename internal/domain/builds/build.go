package builds

import (
	"time"

	"github.com/asterlab/mission-gateway/internal/domain/lifecycle"
)

// Build is a container build with no catalog side-effect. BuildID is a
// server-generated opaque string so ids cannot be enumerated; reads are
// restricted to the owner or an admin.
type Build struct {
	BuildID        string           `gorm:"column:build_id;primaryKey" json:"buildID"`
	RequesterID    int64            `gorm:"column:requester_id;not null;index" json:"requesterID"`
	RepositoryURL  string           `gorm:"column:repository_url;not null" json:"repositoryURL"`
	BranchRef      string           `gorm:"column:branch_ref;not null" json:"branchRef"`
	PipelineID     int64            `gorm:"column:pipeline_id;not null;uniqueIndex:idx_build_pipeline" json:"pipelineID"`
	PipelineURL    string           `gorm:"column:pipeline_url" json:"pipelineURL,omitempty"`
	ExecutionVenue string           `gorm:"column:execution_venue;not null;uniqueIndex:idx_build_pipeline" json:"executionVenue"`
	Status         lifecycle.Status `gorm:"column:status;not null;index" json:"status"`
	CreatedAt      time.Time        `gorm:"not null;default:now();index" json:"createdAt"`
	UpdatedAt      time.Time        `gorm:"not null;default:now()" json:"updatedAt"`
}

func (Build) TableName() string { return "build" }
