package catalog

import (
	"time"

	"gorm.io/datatypes"

	"github.com/asterlab/mission-gateway/internal/domain/lifecycle"
)

// Deployment is one attempt to install a Process. It snapshots the workflow
// document metadata at request time so the catalog row can be written on
// success without re-reading the document. The pair
// (pipeline_id, execution_venue) uniquely identifies a deployment for
// webhook lookup.
type Deployment struct {
	JobID           int64            `gorm:"column:job_id;primaryKey;autoIncrement" json:"jobID"`
	Ident           string           `gorm:"column:ident;not null;index" json:"id"`
	Version         string           `gorm:"column:version;not null" json:"version"`
	DeployerID      int64            `gorm:"column:deployer_id;not null;index" json:"deployerID"`
	Title           string           `gorm:"column:title" json:"title,omitempty"`
	Description     string           `gorm:"column:description;type:text" json:"description,omitempty"`
	Keywords        datatypes.JSON   `gorm:"column:keywords;type:jsonb" json:"keywords,omitempty"`
	Author          string           `gorm:"column:author" json:"author,omitempty"`
	WorkflowDocURL  string           `gorm:"column:workflow_doc_url" json:"workflowDocURL,omitempty"`
	SourceRepoURL   string           `gorm:"column:source_repo_url" json:"sourceRepoURL,omitempty"`
	SourceCommit    string           `gorm:"column:source_commit" json:"sourceCommit,omitempty"`
	RAMMin          int              `gorm:"column:ram_min" json:"ramMin,omitempty"`
	CoresMin        int              `gorm:"column:cores_min" json:"coresMin,omitempty"`
	BaseCommand     string           `gorm:"column:base_command" json:"baseCommand,omitempty"`
	PipelineID      int64            `gorm:"column:pipeline_id;not null;uniqueIndex:idx_deployment_pipeline" json:"pipelineID"`
	PipelineURL     string           `gorm:"column:pipeline_url" json:"pipelineURL,omitempty"`
	ExecutionVenue  string           `gorm:"column:execution_venue;not null;uniqueIndex:idx_deployment_pipeline" json:"executionVenue"`
	Status          lifecycle.Status `gorm:"column:status;not null;index" json:"status"`
	LinkedProcessID *int64           `gorm:"column:linked_process_id" json:"linkedProcessID,omitempty"`
	CreatedAt       time.Time        `gorm:"not null;default:now();index" json:"createdAt"`
	UpdatedAt       time.Time        `gorm:"not null;default:now()" json:"updatedAt"`
}

func (Deployment) TableName() string { return "deployment" }
