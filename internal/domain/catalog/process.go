package catalog

import (
	"time"

	"gorm.io/datatypes"
)

type ProcessStatus string

const (
	ProcessDeployed   ProcessStatus = "deployed"
	ProcessUndeployed ProcessStatus = "undeployed"
)

// Process is a reusable, deployed executable unit. Externally it is known by
// the natural key (ident, version, deployer); the catalog assigns ProcessID.
// At most one row per natural key may be in status deployed, enforced by a
// partial unique index. Rows are never hard-deleted: undeploy flips Status.
type Process struct {
	ProcessID      int64          `gorm:"column:process_id;primaryKey;autoIncrement" json:"processID"`
	Ident          string         `gorm:"column:ident;not null;uniqueIndex:idx_process_deployed,where:status = 'deployed'" json:"id"`
	Version        string         `gorm:"column:version;not null;uniqueIndex:idx_process_deployed,where:status = 'deployed'" json:"version"`
	DeployerID     int64          `gorm:"column:deployer_id;not null;index;uniqueIndex:idx_process_deployed,where:status = 'deployed'" json:"deployerID"`
	Title          string         `gorm:"column:title" json:"title,omitempty"`
	Description    string         `gorm:"column:description;type:text" json:"description,omitempty"`
	Keywords       datatypes.JSON `gorm:"column:keywords;type:jsonb" json:"keywords,omitempty"`
	Author         string         `gorm:"column:author" json:"author,omitempty"`
	WorkflowDocURL string         `gorm:"column:workflow_doc_url" json:"workflowDocURL,omitempty"`
	SourceRepoURL  string         `gorm:"column:source_repo_url" json:"sourceRepoURL,omitempty"`
	SourceCommit   string         `gorm:"column:source_commit" json:"sourceCommit,omitempty"`
	RAMMin         int            `gorm:"column:ram_min" json:"ramMin,omitempty"`
	CoresMin       int            `gorm:"column:cores_min" json:"coresMin,omitempty"`
	BaseCommand    string         `gorm:"column:base_command" json:"baseCommand,omitempty"`
	Status         ProcessStatus  `gorm:"column:status;not null;index" json:"status"`
	LastModified   time.Time      `gorm:"column:last_modified;not null" json:"lastModified"`
	CreatedAt      time.Time      `gorm:"not null;default:now()" json:"createdAt"`
}

func (Process) TableName() string { return "process" }
